package mockserver

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/paycrest/e2e/types"
	"github.com/paycrest/e2e/utils/logger"
)

// Scheduler fires one-shot jobs after a delay, the way provider webhooks arrive
// some time after the payment was created
type Scheduler struct {
	scheduler *gocron.Scheduler
}

// NewScheduler starts an async scheduler
func NewScheduler() *Scheduler {
	s := &Scheduler{scheduler: gocron.NewScheduler(time.UTC)}
	s.scheduler.StartAsync()
	return s
}

// After runs fn once after delay. An error from fn fails the scope's test.
// The returned channel is closed when fn has returned.
func (s *Scheduler) After(ctx context.Context, delay time.Duration, scope types.TestScope, fn func(ctx context.Context) error) (<-chan struct{}, error) {
	done := make(chan struct{})

	job := func() {
		defer close(done)
		if ctx.Err() != nil {
			return
		}
		if err := fn(ctx); err != nil {
			logger.WithFields(logger.Fields{
				"Error": fmt.Sprintf("%v", err),
				"Delay": delay.String(),
			}).Errorf("Scheduled job failed")
			scope.Fail(err)
		}
	}

	if delay < time.Millisecond {
		go job()
		return done, nil
	}

	_, err := s.scheduler.Every(delay).WaitForSchedule().LimitRunsTo(1).Do(job)
	if err != nil {
		return nil, fmt.Errorf("After: %w", err)
	}

	return done, nil
}

// Jobs is the number of jobs still scheduled
func (s *Scheduler) Jobs() int {
	return s.scheduler.Len()
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}
