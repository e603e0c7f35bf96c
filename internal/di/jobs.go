package di

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/tom-sims/quant-research-toolkit/internal/clientdata"
	"github.com/tom-sims/quant-research-toolkit/internal/config"
	"github.com/tom-sims/quant-research-toolkit/internal/modules/factors"
	"github.com/tom-sims/quant-research-toolkit/internal/reliability"
	"github.com/tom-sims/quant-research-toolkit/internal/scheduler"
)

const (
	// Hourly cache sweep
	clientDataCleanupSchedule = "0 15 * * * *"
	// Every 30 minutes
	walCheckpointSchedule = "0 */30 * * * *"
	// Sundays at 03:00
	vacuumSchedule = "0 0 3 * * 0"
	// Nightly at 02:00
	backupSchedule = "0 0 2 * * *"
)

type scheduledJob struct {
	spec string
	job  scheduler.Job
}

// RegisterJobs creates all background jobs and adds them to the scheduler
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	jobs := &JobInstances{
		FactorRefresh:       factors.NewRefreshJob(container.FactorClient, log),
		ClientDataCleanup:   clientdata.NewCleanupJob(container.ClientDataRepo, log),
		CheckWALCheckpoints: scheduler.NewCheckWALCheckpointsJob(container.Databases(), log),
		Vacuum:              reliability.NewVacuumJob(container.Databases(), log),
	}

	schedules := []scheduledJob{
		{cfg.FactorsRefreshSchedule, jobs.FactorRefresh},
		{clientDataCleanupSchedule, jobs.ClientDataCleanup},
		{walCheckpointSchedule, jobs.CheckWALCheckpoints},
		{vacuumSchedule, jobs.Vacuum},
	}

	if container.BackupService != nil {
		jobs.Backup = reliability.NewBackupJob(container.BackupService, log)
		schedules = append(schedules, scheduledJob{backupSchedule, jobs.Backup})
	}

	for _, s := range schedules {
		if err := container.Scheduler.AddJob(s.spec, s.job); err != nil {
			return nil, fmt.Errorf("failed to register job %s: %w", s.job.Name(), err)
		}
	}

	log.Info().Int("jobs", len(schedules)).Msg("Background jobs registered")
	return jobs, nil
}
