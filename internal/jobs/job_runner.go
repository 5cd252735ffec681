package jobs

import (
	"guildgate/internal/config"
	"guildgate/internal/logger"
	"guildgate/internal/queue"
	"guildgate/internal/service"
)

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	queue    queue.Queue
	services *Services
	config   *config.Config
}

// Services holds all service dependencies needed by jobs
type Services struct {
	Verification service.VerificationService
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(q queue.Queue, services *Services, cfg *config.Config) *JobRunner {
	return &JobRunner{
		queue:    q,
		services: services,
		config:   cfg,
	}
}

// Config exposes the configuration the scheduler reads job cadences from
func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
		}
	}()

	logger.Debug("Starting job", "job", jobName)
	jobFunc()
	logger.Debug("Job completed", "job", jobName)
}
