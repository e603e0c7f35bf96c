package reliability

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/tom-sims/quant-research-toolkit/internal/database"
)

// backupTimeout bounds a single scheduled backup
const backupTimeout = 10 * time.Minute

// BackupJob uploads a nightly backup archive
type BackupJob struct {
	service *BackupService
	log     zerolog.Logger
}

// NewBackupJob creates a new backup job
func NewBackupJob(service *BackupService, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		service: service,
		log:     log.With().Str("job", "backup").Logger(),
	}
}

// Run executes the backup job
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), backupTimeout)
	defer cancel()

	_, err := j.service.CreateAndUploadBackup(ctx)
	return err
}

// Name returns the job name for scheduler
func (j *BackupJob) Name() string {
	return "backup"
}

// VacuumJob reclaims space in the toolkit databases (weekly)
type VacuumJob struct {
	databases map[string]*database.DB
	log       zerolog.Logger
}

// NewVacuumJob creates a new vacuum job
func NewVacuumJob(databases map[string]*database.DB, log zerolog.Logger) *VacuumJob {
	return &VacuumJob{
		databases: databases,
		log:       log.With().Str("job", "vacuum").Logger(),
	}
}

// Run executes the vacuum job
func (j *VacuumJob) Run() error {
	j.log.Info().Msg("Starting weekly vacuum")
	startTime := time.Now()

	names := make([]string, 0, len(j.databases))
	for name := range j.databases {
		names = append(names, name)
	}
	sort.Strings(names)

	failed := 0
	for _, name := range names {
		db := j.databases[name]
		if db == nil {
			continue
		}
		if err := j.vacuumDatabase(db, name); err != nil {
			j.log.Error().Str("database", name).Err(err).Msg("VACUUM failed")
			failed++
			// Continue with other databases
		}
	}

	j.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Int("failed", failed).
		Msg("Weekly vacuum completed")

	if failed > 0 {
		return fmt.Errorf("vacuum failed for %d database(s)", failed)
	}
	return nil
}

// Name returns the job name for scheduler
func (j *VacuumJob) Name() string {
	return "vacuum"
}

// vacuumDatabase performs VACUUM on a database and logs the space reclaimed
func (j *VacuumJob) vacuumDatabase(db *database.DB, name string) error {
	sizeBefore := databaseSizeMB(db)

	if _, err := db.Conn().Exec("VACUUM"); err != nil {
		return fmt.Errorf("VACUUM failed: %w", err)
	}

	sizeAfter := databaseSizeMB(db)
	j.log.Info().
		Str("database", name).
		Float64("size_before_mb", sizeBefore).
		Float64("size_after_mb", sizeAfter).
		Float64("space_reclaimed_mb", sizeBefore-sizeAfter).
		Msg("VACUUM completed")

	return nil
}

func databaseSizeMB(db *database.DB) float64 {
	var pageCount, pageSize int
	if err := db.Conn().QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0
	}
	if err := db.Conn().QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0
	}
	return float64(pageCount*pageSize) / 1024 / 1024
}
