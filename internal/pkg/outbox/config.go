package outbox

import (
	"fmt"
	"time"
)

const (
	DefaultTimezone     = "Europe/Brussels"
	DefaultChunkSize    = 1000
	DefaultBatchSize    = 5000
	DefaultScheduleCron = "0 3 * * *"
)

// Config carries the explicit parameters for a scan+relay run. It is built
// by the caller and passed down; components never read global state.
type Config struct {
	Timezone     string
	Location     *time.Location
	ChunkSize    int
	BatchSize    int
	ScheduleCron string
}

// NewConfig resolves the timezone and fills in defaults for zero values.
func NewConfig(timezone string, chunkSize, batchSize int, scheduleCron string) (Config, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return Config{}, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if scheduleCron == "" {
		scheduleCron = DefaultScheduleCron
	}
	return Config{
		Timezone:     timezone,
		Location:     loc,
		ChunkSize:    chunkSize,
		BatchSize:    batchSize,
		ScheduleCron: scheduleCron,
	}, nil
}

// Window is a half-open local-time interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// DayWindow returns the full local day containing the given instant.
func DayWindow(t time.Time, loc *time.Location) Window {
	y, m, d := t.In(loc).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return Window{Start: start, End: start.AddDate(0, 0, 1)}
}

// Contains reports whether the instant falls inside the window once
// converted to the window's timezone.
func (w Window) Contains(t time.Time) bool {
	local := t.In(w.Start.Location())
	return !local.Before(w.Start) && local.Before(w.End)
}
