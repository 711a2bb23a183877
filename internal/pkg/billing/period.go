package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/renewalworks/billingd/app/models"
)

// isoDate is the wire format for billing period boundaries.
const isoDate = "2006-01-02"

// renewalAnchorHour is the local wall-clock hour renewed_at is pinned to
// after a successful capture, so the next scan's due computation is
// deterministic.
const renewalAnchorHour = 9

// DateOf truncates an instant to its calendar date, normalized to UTC
// midnight for storage in date columns.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddInterval advances an instant by one billing interval. Month arithmetic
// clamps to the last day of the target month (Jan 31 + 1 month = Feb 28/29)
// instead of rolling over, matching calendar billing semantics.
func AddInterval(t time.Time, interval string) time.Time {
	y, m, d := t.Date()
	if interval == models.PlanIntervalYear {
		y++
	} else {
		m++
	}
	if last := daysIn(y, m); d > last {
		d = last
	}
	h, min, sec := t.Clock()
	return time.Date(y, m, d, h, min, sec, t.Nanosecond(), t.Location())
}

// daysIn returns the number of days in the given month. Month values beyond
// December are normalized by time.Date.
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DerivePeriod resolves the billing period for an event: explicit boundaries
// win; otherwise the period starts on the current local date and ends one
// plan interval later.
func DerivePeriod(evt *RenewalEvent, now time.Time) (start, end time.Time, err error) {
	if evt.PeriodStart != "" {
		start, err = time.Parse(isoDate, evt.PeriodStart)
		if err != nil {
			return start, end, fmt.Errorf("%w: period_start: %v", ErrInvalidEvent, err)
		}
	} else {
		start = DateOf(now)
	}

	if evt.PeriodEnd != "" {
		end, err = time.Parse(isoDate, evt.PeriodEnd)
		if err != nil {
			return start, end, fmt.Errorf("%w: period_end: %v", ErrInvalidEvent, err)
		}
	} else {
		end = AddInterval(start, evt.Interval)
	}
	return start, end, nil
}

// DeriveIdempotencyKey returns the event's explicit key when present and
// non-blank, otherwise a deterministic key from subscription and period start
// so that every redelivery of the same logical renewal converges to one key.
// A whitespace-only key counts as absent: the key is globally unique, so
// letting it through would collide unrelated subscriptions on one payment.
func DeriveIdempotencyKey(evt *RenewalEvent, periodStart time.Time) string {
	if strings.TrimSpace(evt.IdempotencyKey) != "" {
		return evt.IdempotencyKey
	}
	return fmt.Sprintf("sub-%s|%s", evt.SubscriptionID, periodStart.Format(isoDate))
}

// RenewedAtAnchor returns period end at 09:00 in the billing timezone, the
// value renewed_at advances to after a successful capture.
func RenewedAtAnchor(periodEnd time.Time, loc *time.Location) time.Time {
	y, m, d := periodEnd.Date()
	return time.Date(y, m, d, renewalAnchorHour, 0, 0, 0, loc)
}
