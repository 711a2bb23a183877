package outbox

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

// Publisher sends one renewal event to the bus. A nil return means the
// broker confirmed the message.
type Publisher interface {
	Publish(ctx context.Context, body []byte) error
}

// Relay publishes unpublished outbox entries in creation order and stamps
// published_at only after a confirmed send. A crash between publish and
// stamp leaves the row unpublished, so the next run re-sends it; that
// duplicate is absorbed by the idempotent consumer. Delivery is therefore
// at least once, never zero.
type Relay struct {
	repo Repository
	pub  Publisher
	cfg  Config
}

// NewRelay creates an outbox relay.
func NewRelay(repo Repository, pub Publisher, cfg Config) *Relay {
	return &Relay{repo: repo, pub: pub, cfg: cfg}
}

// Relay publishes up to BatchSize pending entries. A failing row is logged
// and skipped without affecting the rest of the batch; it stays unpublished
// and is retried on the next run. Returns the number of rows confirmed
// published and the first error encountered, if any.
func (r *Relay) Relay(ctx context.Context) (int, error) {
	rows, err := r.repo.ListUnpublished(ctx, r.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	published := 0
	var firstErr error
	for i := range rows {
		row := &rows[i]
		if err := r.pub.Publish(ctx, []byte(row.Payload)); err != nil {
			log.Errorf("[Relay] Publish failed for entry %s: %v", row.ID, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := r.repo.MarkPublished(ctx, row.ID, time.Now()); err != nil {
			// The message is already on the bus; the row will be re-sent next
			// run and deduplicated downstream.
			log.Errorf("[Relay] Mark published failed for entry %s: %v", row.ID, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		published++
	}

	log.Infof("[Relay] Published messages: %d", published)
	return published, firstErr
}
