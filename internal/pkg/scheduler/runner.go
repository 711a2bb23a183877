package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/renewalworks/billingd/internal/pkg/outbox"
)

// Scanner is the scan phase of a batch run.
type Scanner interface {
	Scan(ctx context.Context, win outbox.Window) (int, error)
}

// Relayer is the publish phase of a batch run.
type Relayer interface {
	Relay(ctx context.Context) (int, error)
}

const (
	RunStatusCompleted = "completed"
	RunStatusSkipped   = "skipped"
	RunStatusFailed    = "failed"
)

const scheduleDateFormat = "2006-01-02"

// RunParams identifies one batch run. The daily scheduled run reuses the
// schedule date as its run ID so there is exactly one per day; a forced run
// carries a random ID to get past the single-flight lock.
type RunParams struct {
	ScheduleDate time.Time
	RunID        string
	Forced       bool
}

// RunResult reports a run's outcome and resolved parameters.
type RunResult struct {
	Job          string `json:"job"`
	RunID        string `json:"run_id"`
	ScheduleDate string `json:"schedule_date"`
	Status       string `json:"status"`
	Inserted     int    `json:"inserted"`
	Published    int    `json:"published"`
}

// Runner executes scan then relay as one single-flight batch run. The run
// lock is kept after success (it expires on its own) so re-triggering the
// same run is a no-op, and released after failure so the run can be retried.
type Runner struct {
	scanner Scanner
	relay   Relayer
	lock    Locker
	cfg     outbox.Config
	now     func() time.Time
}

// NewRunner creates a batch runner.
func NewRunner(scanner Scanner, relay Relayer, lock Locker, cfg outbox.Config) *Runner {
	return &Runner{scanner: scanner, relay: relay, lock: lock, cfg: cfg, now: time.Now}
}

// DailyParams builds the parameters for the scheduled run of the current
// local day.
func (r *Runner) DailyParams() RunParams {
	today := r.now().In(r.cfg.Location)
	return RunParams{ScheduleDate: today, RunID: today.Format(scheduleDateFormat)}
}

// ForcedParams builds parameters for an explicitly requested re-run with a
// fresh run identity.
func (r *Runner) ForcedParams() RunParams {
	return RunParams{ScheduleDate: r.now().In(r.cfg.Location), RunID: uuid.New().String(), Forced: true}
}

// Launch resolves the parameters for a trigger request and runs.
func (r *Runner) Launch(ctx context.Context, forced bool) (*RunResult, error) {
	if forced {
		return r.Run(ctx, r.ForcedParams())
	}
	return r.Run(ctx, r.DailyParams())
}

// Run executes one batch run for the given identity.
func (r *Runner) Run(ctx context.Context, p RunParams) (*RunResult, error) {
	dateStr := p.ScheduleDate.In(r.cfg.Location).Format(scheduleDateFormat)
	result := &RunResult{Job: "renewalJob", RunID: p.RunID, ScheduleDate: dateStr}

	key := fmt.Sprintf("renewal_run:%s:%s", dateStr, p.RunID)
	acquired, err := r.lock.Acquire(ctx, key)
	if err != nil {
		result.Status = RunStatusFailed
		return result, fmt.Errorf("acquire run lock: %w", err)
	}
	if !acquired {
		result.Status = RunStatusSkipped
		log.Infof("[Runner] Run %s already executed or in flight, skipping", key)
		return result, nil
	}

	win := outbox.DayWindow(p.ScheduleDate, r.cfg.Location)

	inserted, err := r.scanner.Scan(ctx, win)
	result.Inserted = inserted
	if err != nil {
		r.releaseQuietly(ctx, key)
		result.Status = RunStatusFailed
		return result, fmt.Errorf("scan phase: %w", err)
	}

	published, err := r.relay.Relay(ctx)
	result.Published = published
	if err != nil {
		r.releaseQuietly(ctx, key)
		result.Status = RunStatusFailed
		return result, fmt.Errorf("relay phase: %w", err)
	}

	result.Status = RunStatusCompleted
	log.Infof("[Runner] Run %s completed: inserted=%d published=%d", key, inserted, published)
	return result, nil
}

func (r *Runner) releaseQuietly(ctx context.Context, key string) {
	if err := r.lock.Release(ctx, key); err != nil {
		log.Errorf("[Runner] Release run lock %s: %v", key, err)
	}
}
