package outbox

import (
	"testing"
	"time"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg, err := NewConfig("", 0, 0, "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Timezone != DefaultTimezone {
		t.Fatalf("timezone = %q", cfg.Timezone)
	}
	if cfg.ChunkSize != DefaultChunkSize || cfg.BatchSize != DefaultBatchSize {
		t.Fatalf("sizes = %d/%d", cfg.ChunkSize, cfg.BatchSize)
	}
	if cfg.ScheduleCron != DefaultScheduleCron {
		t.Fatalf("cron = %q", cfg.ScheduleCron)
	}
	if cfg.Location == nil {
		t.Fatal("location not resolved")
	}
}

func TestNewConfigBadTimezone(t *testing.T) {
	if _, err := NewConfig("Mars/Olympus", 0, 0, ""); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}

func TestDayWindow(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Brussels")
	if err != nil {
		t.Fatal(err)
	}

	win := DayWindow(time.Date(2024, 2, 15, 3, 0, 0, 0, loc), loc)
	if !win.Start.Equal(time.Date(2024, 2, 15, 0, 0, 0, 0, loc)) {
		t.Fatalf("start = %v", win.Start)
	}
	if !win.End.Equal(time.Date(2024, 2, 16, 0, 0, 0, 0, loc)) {
		t.Fatalf("end = %v", win.End)
	}
}

func TestWindowContainsIsHalfOpen(t *testing.T) {
	loc, _ := time.LoadLocation("Europe/Brussels")
	win := DayWindow(time.Date(2024, 2, 15, 12, 0, 0, 0, loc), loc)

	tests := []struct {
		name string
		t    time.Time
		want bool
	}{
		{name: "start inclusive", t: time.Date(2024, 2, 15, 0, 0, 0, 0, loc), want: true},
		{name: "midday", t: time.Date(2024, 2, 15, 9, 0, 0, 0, loc), want: true},
		{name: "end exclusive", t: time.Date(2024, 2, 16, 0, 0, 0, 0, loc), want: false},
		{name: "day before", t: time.Date(2024, 2, 14, 23, 59, 59, 0, loc), want: false},
		{name: "utc instant inside local day", t: time.Date(2024, 2, 15, 22, 0, 0, 0, time.UTC), want: true},
		{name: "utc instant in next local day", t: time.Date(2024, 2, 15, 23, 30, 0, 0, time.UTC), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := win.Contains(tt.t); got != tt.want {
				t.Fatalf("Contains(%v) = %v, want %v", tt.t, got, tt.want)
			}
		})
	}
}
