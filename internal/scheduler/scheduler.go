// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"deckhand/internal/manager"
	"deckhand/internal/types/options"
)

// Scheduler runs worker updates on a cron schedule. Each run goes through
// the rollover's own preflight check, which catches leftovers from an
// interrupted or still-running predecessor.
type Scheduler struct {
	manager    *manager.Manager
	cron       *cron.Cron
	updateOpts options.UpdateOptions
	logger     *logrus.Logger
	stopOnce   sync.Once
	stopChan   chan struct{}
	doneChan   chan struct{}
}

// Options configures a Scheduler.
type Options struct {
	UpdateOpts options.UpdateOptions
	Logger     *logrus.Logger
}

// NewScheduler builds a scheduler around an existing manager.
func NewScheduler(m *manager.Manager, opts Options) *Scheduler {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
		opts.Logger.SetLevel(logrus.InfoLevel)
	}

	return &Scheduler{
		manager: m,
		cron: cron.New(cron.WithParser(cron.NewParser(
			cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
		))),
		updateOpts: opts.UpdateOpts,
		logger:     opts.Logger,
		stopChan:   make(chan struct{}),
		doneChan:   make(chan struct{}),
	}
}

// Start registers the update job and begins the schedule. It returns once
// the schedule is running; use Wait to block until shutdown.
func (s *Scheduler) Start(cronExpr string) error {
	if _, err := s.cron.AddFunc(cronExpr, s.runScheduledUpdate); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}

	s.logger.Infof("starting update scheduler with cron expression: %s", cronExpr)

	s.cron.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			s.logger.Infof("received signal %v, stopping scheduler...", sig)
			s.Stop()
		case <-s.stopChan:
		}
	}()

	return nil
}

func (s *Scheduler) runScheduledUpdate() {
	ctx := context.Background()

	result, err := s.manager.Update(ctx, s.updateOpts)
	if err != nil {
		s.logger.Errorf("scheduled update failed: %v", err)
		return
	}

	switch {
	case result.Success:
		if result.OldImage == result.NewImage {
			s.logger.Infof("✓ %s: refreshed on %s", result.ContainerName, result.NewImage)
		} else {
			s.logger.Infof("✓ %s: updated from %s to %s",
				result.ContainerName, result.OldImage, result.NewImage)
		}
	case result.Error != nil:
		s.logger.Errorf("✗ %s: %v (stage %s)", result.ContainerName, result.Error, result.Stage)
	}

	if next := s.NextRun(); next != nil {
		s.logger.Infof("next update scheduled at: %s", next.Format("2006-01-02 15:04:05"))
	}
}

// Stop halts the schedule, waits for a run in flight to finish, and
// releases Wait. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("stopping scheduler...")

		ctx := s.cron.Stop()
		close(s.stopChan)
		<-ctx.Done()

		s.logger.Info("scheduler stopped")
		close(s.doneChan)
	})
}

// Wait blocks until the scheduler has fully stopped.
func (s *Scheduler) Wait() {
	<-s.doneChan
}

// NextRun reports the next scheduled execution, nil when nothing is
// registered.
func (s *Scheduler) NextRun() *time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
