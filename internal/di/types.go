/**
 * Package di provides dependency injection type definitions.
 *
 * This package defines the Container type which holds all application dependencies.
 * The Container is the single source of truth for all service instances and is
 * passed to the server for access to services.
 */
package di

import (
	"github.com/tom-sims/quant-research-toolkit/internal/clientdata"
	"github.com/tom-sims/quant-research-toolkit/internal/database"
	"github.com/tom-sims/quant-research-toolkit/internal/modules/factors"
	"github.com/tom-sims/quant-research-toolkit/internal/modules/reporting"
	"github.com/tom-sims/quant-research-toolkit/internal/modules/runs"
	"github.com/tom-sims/quant-research-toolkit/internal/reliability"
	"github.com/tom-sims/quant-research-toolkit/internal/scheduler"
)

// Container holds all application dependencies
type Container struct {
	// Databases
	CacheDB *database.DB // cache.db - French factor dataset cache
	RunsDB  *database.DB // runs.db - calculation history

	// Repositories
	ClientDataRepo *clientdata.Repository
	RunRepo        *runs.Repository

	// Services
	FactorClient  *factors.Client
	FactorModel   *factors.Model
	ReportBuilder *reporting.Builder
	// ReportUploader is nil unless R2 storage is configured
	ReportUploader *reporting.Uploader
	// BackupService is nil unless R2 storage is configured
	BackupService *reliability.BackupService

	Scheduler *scheduler.Scheduler
}

// Databases returns the open databases keyed by name
func (c *Container) Databases() map[string]*database.DB {
	return map[string]*database.DB{
		"cache": c.CacheDB,
		"runs":  c.RunsDB,
	}
}

// Close closes every open database
func (c *Container) Close() {
	for _, db := range []*database.DB{c.CacheDB, c.RunsDB} {
		if db != nil {
			db.Close()
		}
	}
}

// JobInstances holds references to all registered jobs
type JobInstances struct {
	FactorRefresh       scheduler.Job
	ClientDataCleanup   scheduler.Job
	CheckWALCheckpoints scheduler.Job
	Vacuum              scheduler.Job
	Backup              scheduler.Job // nil without R2 storage
}

// All returns every registered job
func (j *JobInstances) All() []scheduler.Job {
	all := []scheduler.Job{j.FactorRefresh, j.ClientDataCleanup, j.CheckWALCheckpoints, j.Vacuum}
	if j.Backup != nil {
		all = append(all, j.Backup)
	}
	return all
}
