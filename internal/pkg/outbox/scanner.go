package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/renewalworks/billingd/app/models"
	"github.com/renewalworks/billingd/internal/pkg/billing"
)

// Scanner finds subscriptions whose next due instant falls inside a local
// day window and records each one as a deduplicated outbox entry. Re-running
// the scan for the same window inserts nothing new.
type Scanner struct {
	repo Repository
	cfg  Config
}

// NewScanner creates a renewal scanner.
func NewScanner(repo Repository, cfg Config) *Scanner {
	return &Scanner{repo: repo, cfg: cfg}
}

// Scan walks due candidates and inserts one outbox entry per subscription
// due in the window. Returns the count of newly inserted rows; zero is a
// valid outcome.
func (s *Scanner) Scan(ctx context.Context, win Window) (int, error) {
	inserted := 0
	err := s.repo.EachDueCandidate(ctx, s.cfg.ChunkSize, func(subs []models.Subscription) error {
		entries := make([]models.OutboxEntry, 0, len(subs))
		for i := range subs {
			entry, ok := EntryForWindow(&subs[i], win)
			if !ok {
				continue
			}
			entries = append(entries, *entry)
		}
		n, err := s.repo.InsertEntries(ctx, entries)
		if err != nil {
			return fmt.Errorf("insert outbox entries: %w", err)
		}
		inserted += n
		return nil
	})
	if err != nil {
		return inserted, err
	}
	log.Infof("[Scanner] Outbox rows inserted: %d", inserted)
	return inserted, nil
}

// EntryForWindow computes a subscription's next due instant (renewed_at plus
// one plan interval) and, when its local time falls inside the window,
// builds the outbox entry carrying the event snapshot.
func EntryForWindow(sub *models.Subscription, win Window) (*models.OutboxEntry, bool) {
	if sub.RenewedAt == nil || sub.Status != models.SubscriptionStatusActive {
		return nil, false
	}
	if !models.IsValidInterval(sub.Plan.Interval) {
		return nil, false
	}

	due := billing.AddInterval(*sub.RenewedAt, sub.Plan.Interval)
	if !win.Contains(due) {
		return nil, false
	}
	dueLocal := due.In(win.Start.Location())

	payload, err := json.Marshal(billing.RenewalEvent{
		SubscriptionID: sub.ID,
		CustomerID:     sub.CustomerID,
		PlanID:         sub.PlanID,
		Interval:       sub.Plan.Interval,
		AmountCents:    sub.Plan.PriceCents,
		Currency:       sub.Plan.Currency,
	})
	if err != nil {
		return nil, false
	}

	return &models.OutboxEntry{
		SubscriptionID: sub.ID,
		DueDate:        billing.DateOf(dueLocal),
		Payload:        models.JSON(payload),
	}, true
}
