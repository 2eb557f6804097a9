package providers

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/listenupapp/stagehand/internal/config"
	"github.com/listenupapp/stagehand/internal/logger"
	"github.com/listenupapp/stagehand/internal/staging"
)

// SweepJob periodically reclaims provisional rows abandoned by sessions
// that never committed or rolled back.
type SweepJob struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Shutdown implements do.Shutdownable.
func (j *SweepJob) Shutdown() error {
	j.cancel()
	return waitDone(j.done)
}

// ProvideSweepJob provides the periodic sweep job.
func ProvideSweepJob(i do.Injector) (*SweepJob, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	coordinator := do.MustInvoke[*staging.Coordinator](i)

	ctx, cancel := context.WithCancel(context.Background())
	job := &SweepJob{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(job.done)
		runSweepLoop(ctx, coordinator, cfg.Staging.SweepInterval, cfg.Staging.SweepThreshold, log)
	}()

	log.Info("Sweep job started",
		"interval", cfg.Staging.SweepInterval,
		"threshold", cfg.Staging.SweepThreshold,
	)

	return job, nil
}

// sweeper is the part of the coordinator the job drives.
type sweeper interface {
	Sweep(ctx context.Context, olderThan time.Duration) (*staging.SweepResult, error)
}

func runSweepLoop(ctx context.Context, s sweeper, interval, threshold time.Duration, log *logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Initial sweep on startup reclaims what a previous run left behind.
	sweepOnce(ctx, s, threshold, log)

	for {
		select {
		case <-ticker.C:
			sweepOnce(ctx, s, threshold, log)
		case <-ctx.Done():
			return
		}
	}
}

func sweepOnce(ctx context.Context, s sweeper, threshold time.Duration, log *logger.Logger) {
	res, err := s.Sweep(ctx, threshold)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn("Sweep failed", "error", err)
		}
		return
	}
	if res.DeletedCount > 0 {
		log.Info("Sweep completed", "deleted", res.DeletedCount)
	}
}
