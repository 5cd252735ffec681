package jobs

import (
	"context"
	"errors"
	"fmt"

	"guildgate/internal/domain"
	"guildgate/internal/logger"
	"guildgate/internal/queue"
)

// DrainVerificationQueue processes every queued verification request in
// enqueue order, one at a time, while holding the queue's consumer lease.
// A failing or panicking item is logged and the drain moves on to the next one.
func (jr *JobRunner) DrainVerificationQueue() {
	jr.runWithRecovery("DrainVerificationQueue", func() {
		ctx := context.Background()

		size, err := jr.queue.Len(ctx)
		if err != nil {
			logger.Error("Failed to read verification queue size", "error", err)
			return
		}
		if size == 0 {
			return
		}

		lease, err := jr.queue.AcquireLease(ctx)
		if errors.Is(err, queue.ErrLeaseHeld) {
			logger.Debug("Verification queue is being drained elsewhere", "queue_size", size)
			return
		}
		if err != nil {
			logger.Error("Failed to acquire verification queue lease", "error", err)
			return
		}
		defer func() {
			if err := lease.Release(ctx); err != nil {
				logger.Warn("Failed to release verification queue lease", "error", err)
			}
		}()
		logger.Info("Draining verification queue", "queue_size", size)

		processed := 0
		for {
			if err := lease.Refresh(ctx); err != nil {
				logger.Error("Stopping drain, queue lease lost", "processed", processed, "error", err)
				break
			}

			req, ok, err := jr.queue.Dequeue(ctx)
			if errors.Is(err, queue.ErrCorruptItem) {
				logger.Error("Dropping unreadable verification request", "error", err)
				continue
			}
			if err != nil {
				// Backend unavailable; the next tick retries
				logger.Error("Failed to dequeue verification request", "error", err)
				break
			}
			if !ok {
				break
			}

			outcome, err := jr.processOne(ctx, req)
			if err != nil {
				logger.Error("Verification failed",
					"request_id", req.ID,
					"guild_id", req.TargetCommunityID,
					"user_id", req.UserID,
					"outcome", outcome,
					"error", err,
				)
			}
			processed++
		}

		logger.Info("Verification queue drained", "processed", processed)
	})
}

// processOne isolates a single request so a panic cannot abort the drain
func (jr *JobRunner) processOne(ctx context.Context, req *domain.VerificationRequest) (outcome domain.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing verification: %v", r)
		}
	}()
	return jr.services.Verification.Process(ctx, req)
}
