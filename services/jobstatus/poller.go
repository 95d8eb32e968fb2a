// Package jobstatus polls the backend for print-job progress.
package jobstatus

import (
	"context"
	"time"

	"atpkiosk/models"
	"atpkiosk/services/task"

	"go.uber.org/zap"
)

// DefaultInterval is the time between the starts of consecutive queries.
const DefaultInterval = 2 * time.Second

// Backend is the part of the gateway the poller needs.
type Backend interface {
	GetJobStatus(ctx context.Context, sessionID string) (*models.JobStatusResponse, error)
}

// UpdateFunc receives each recognized status, in query order.
type UpdateFunc func(models.JobStatus)

// Poller queries job status one request at a time until the job is done.
type Poller struct {
	backend  Backend
	interval time.Duration
	logger   *zap.Logger
}

func NewPoller(backend Backend, interval time.Duration, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{backend: backend, interval: interval, logger: logger}
}

// Start queries immediately and then every interval. A query always finishes
// or is abandoned before the next is sent, so onUpdate never overlaps itself.
// Polling ends at COMPLETED or FAILED, or when the handle is cancelled;
// nothing is delivered after cancellation.
func (p *Poller) Start(ctx context.Context, sessionID string, onUpdate UpdateFunc) *task.Handle {
	logger := p.logger.With(zap.String("sessionID", sessionID))
	return task.Go(ctx, p.logger, "poll:"+sessionID, func(ctx context.Context) {
		timer := time.NewTimer(0)
		defer timer.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}
			started := time.Now()

			status, ok := p.query(ctx, logger, sessionID)
			if ctx.Err() != nil {
				return
			}
			if ok {
				onUpdate(status)
				if status.Terminal() {
					logger.Info("print job finished", zap.String("status", string(status)))
					return
				}
			}

			wait := p.interval - time.Since(started)
			if wait < 0 {
				wait = 0
			}
			timer.Reset(wait)
		}
	})
}

// query performs one status request. Failures and unknown values are
// logged and reported as ok == false.
func (p *Poller) query(ctx context.Context, logger *zap.Logger, sessionID string) (models.JobStatus, bool) {
	resp, err := p.backend.GetJobStatus(ctx, sessionID)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn("job status query failed", zap.Error(err))
		}
		return "", false
	}
	status, err := models.ParseJobStatus(resp.Status)
	if err != nil {
		logger.Warn("ignoring unrecognized job status", zap.String("status", resp.Status))
		return "", false
	}
	return status, true
}

// Steps returns the display steps for status, given the last good status
// seen before it.
func Steps(status, last models.JobStatus) []models.Step {
	return models.BuildSteps(status, last)
}
