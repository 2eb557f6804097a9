package providers

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/listenupapp/stagehand/internal/logger"
	"github.com/listenupapp/stagehand/internal/staging"
)

type countingSweeper struct {
	calls     atomic.Int32
	threshold atomic.Int64
	err       error
}

func (s *countingSweeper) Sweep(_ context.Context, olderThan time.Duration) (*staging.SweepResult, error) {
	s.calls.Add(1)
	s.threshold.Store(int64(olderThan))
	if s.err != nil {
		return nil, s.err
	}
	return &staging.SweepResult{DeletedCount: 1}, nil
}

func discardLogger() *logger.Logger {
	return logger.New(logger.Config{Writer: io.Discard})
}

func TestRunSweepLoop_SweepsOnStartAndEachTick(t *testing.T) {
	s := &countingSweeper{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		runSweepLoop(ctx, s, 10*time.Millisecond, time.Hour, discardLogger())
	}()

	assert.Eventually(t, func() bool { return s.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, int64(time.Hour), s.threshold.Load())
}

func TestRunSweepLoop_KeepsRunningAfterFailure(t *testing.T) {
	s := &countingSweeper{err: errors.New("database is locked")}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		runSweepLoop(ctx, s, 10*time.Millisecond, time.Hour, discardLogger())
	}()

	assert.Eventually(t, func() bool { return s.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestSweepJob_ShutdownWaitsForLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	job := &SweepJob{cancel: cancel, done: make(chan struct{})}
	s := &countingSweeper{}
	log := logger.New(logger.Config{Writer: io.Discard})

	go func() {
		defer close(job.done)
		runSweepLoop(ctx, s, time.Hour, time.Hour, log)
	}()

	assert.Eventually(t, func() bool { return s.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.NoError(t, job.Shutdown())
}
