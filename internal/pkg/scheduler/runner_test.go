package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renewalworks/billingd/internal/pkg/outbox"
)

type memoryLock struct {
	held map[string]bool
}

func newMemoryLock() *memoryLock {
	return &memoryLock{held: make(map[string]bool)}
}

func (l *memoryLock) Acquire(_ context.Context, key string) (bool, error) {
	if l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

func (l *memoryLock) Release(_ context.Context, key string) error {
	delete(l.held, key)
	return nil
}

type fakeScanner struct {
	inserted int
	err      error
	calls    int
}

func (s *fakeScanner) Scan(context.Context, outbox.Window) (int, error) {
	s.calls++
	return s.inserted, s.err
}

type fakeRelayer struct {
	published int
	err       error
	calls     int
}

func (r *fakeRelayer) Relay(context.Context) (int, error) {
	r.calls++
	return r.published, r.err
}

func testRunner(scanner *fakeScanner, relay *fakeRelayer, lock Locker) *Runner {
	loc, _ := time.LoadLocation("Europe/Brussels")
	cfg := outbox.Config{Timezone: "Europe/Brussels", Location: loc, ChunkSize: 100, BatchSize: 100}
	r := NewRunner(scanner, relay, lock, cfg)
	r.now = func() time.Time { return time.Date(2024, 2, 15, 3, 0, 0, 0, loc) }
	return r
}

func TestRunCompletes(t *testing.T) {
	scanner := &fakeScanner{inserted: 3}
	relay := &fakeRelayer{published: 3}
	runner := testRunner(scanner, relay, newMemoryLock())

	result, err := runner.Launch(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, result.Status)
	assert.Equal(t, "renewalJob", result.Job)
	assert.Equal(t, "2024-02-15", result.ScheduleDate)
	assert.Equal(t, "2024-02-15", result.RunID, "daily run reuses the schedule date as its id")
	assert.Equal(t, 3, result.Inserted)
	assert.Equal(t, 3, result.Published)
}

func TestRunSameDayIsSingleFlight(t *testing.T) {
	scanner := &fakeScanner{inserted: 1}
	relay := &fakeRelayer{published: 1}
	runner := testRunner(scanner, relay, newMemoryLock())

	first, err := runner.Launch(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, first.Status)

	second, err := runner.Launch(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, RunStatusSkipped, second.Status)
	assert.Equal(t, 1, scanner.calls, "skipped run must not scan")
	assert.Equal(t, 1, relay.calls)
}

func TestForcedRunsGetFreshIdentity(t *testing.T) {
	scanner := &fakeScanner{}
	relay := &fakeRelayer{}
	runner := testRunner(scanner, relay, newMemoryLock())

	first, err := runner.Launch(context.Background(), true)
	require.NoError(t, err)
	second, err := runner.Launch(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, RunStatusCompleted, first.Status)
	assert.Equal(t, RunStatusCompleted, second.Status)
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, 2, scanner.calls)
}

func TestFailedRunReleasesLock(t *testing.T) {
	scanner := &fakeScanner{err: errors.New("db unreachable")}
	relay := &fakeRelayer{}
	lock := newMemoryLock()
	runner := testRunner(scanner, relay, lock)

	result, err := runner.Launch(context.Background(), false)
	require.Error(t, err)
	assert.Equal(t, RunStatusFailed, result.Status)
	assert.Equal(t, 0, relay.calls, "relay must not run after a failed scan")

	// The lock was released, so the same daily run can be retried.
	scanner.err = nil
	retry, err := runner.Launch(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, retry.Status)
}

func TestRelayFailureMarksRunFailed(t *testing.T) {
	scanner := &fakeScanner{inserted: 2}
	relay := &fakeRelayer{published: 1, err: errors.New("broker down")}
	runner := testRunner(scanner, relay, newMemoryLock())

	result, err := runner.Launch(context.Background(), false)
	require.Error(t, err)
	assert.Equal(t, RunStatusFailed, result.Status)
	assert.Equal(t, 2, result.Inserted, "scan results are still reported")
	assert.Equal(t, 1, result.Published)
}
