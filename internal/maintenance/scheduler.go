// Package maintenance runs periodic background repair jobs.
package maintenance

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Recounter is the repair surface the scheduler drives.
type Recounter interface {
	RecountTicketTotals(ctx context.Context) (int64, error)
}

// Scheduler owns the cron runner for periodic maintenance. Currently it
// carries a single job: recomputing the denormalized per-customer ticket
// counters, which drift when a counter increment fails after ticket creation.
type Scheduler struct {
	cron      *cron.Cron
	recounter Recounter
	logger    *log.Logger
}

// NewScheduler creates a scheduler around the given recounter.
func NewScheduler(recounter Recounter, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		cron:      cron.New(),
		recounter: recounter,
		logger:    logger,
	}
}

// Start registers the recount job on the given cron schedule and starts the
// runner. An empty schedule disables the job.
func (s *Scheduler) Start(schedule string) error {
	if schedule == "" || s.recounter == nil {
		return nil
	}
	if _, err := s.cron.AddFunc(schedule, s.runRecount); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Printf("maintenance: ticket count recount scheduled at %q", schedule)
	return nil
}

// Stop halts the cron runner and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) runRecount() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	updated, err := s.recounter.RecountTicketTotals(ctx)
	if err != nil {
		s.logger.Printf("maintenance: ticket count recount failed: %v", err)
		return
	}
	s.logger.Printf("maintenance: ticket count recount updated %d customers", updated)
}
