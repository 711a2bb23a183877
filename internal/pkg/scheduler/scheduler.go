package scheduler

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"github.com/robfig/cron/v3"

	"github.com/renewalworks/billingd/internal/pkg/metrics/counter"
	"github.com/renewalworks/billingd/internal/pkg/outbox"
)

// Scheduler fires the daily scan+relay run at the configured cron expression
// in the billing timezone.
type Scheduler struct {
	cron   *cron.Cron
	runner *Runner
}

// NewScheduler wires the runner into a cron schedule.
func NewScheduler(runner *Runner, cfg outbox.Config) (*Scheduler, error) {
	c := cron.New(cron.WithLocation(cfg.Location))
	s := &Scheduler{cron: c, runner: runner}
	if _, err := c.AddFunc(cfg.ScheduleCron, s.runScheduled); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", cfg.ScheduleCron, err)
	}
	return s, nil
}

func (s *Scheduler) runScheduled() {
	ctx := context.Background()
	res, err := s.runner.Run(ctx, s.runner.DailyParams())
	if res != nil {
		if cerr := counter.RecordRun(res.Status, res.Inserted, res.Published); cerr != nil {
			log.Errorf("[Scheduler] Record run counters: %v", cerr)
		}
	}
	if err != nil {
		log.Errorf("[Scheduler] Daily run failed: %v", err)
		return
	}
	log.Infof("[Scheduler] Daily run %s: %s", res.RunID, res.Status)
}

// Start begins the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the cron loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
