package outbox

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/renewalworks/billingd/app/models"
)

// Repository provides the outbox table operations. The scanner is the only
// writer of new rows and the relay the only mutator of published_at.
type Repository interface {
	// EachDueCandidate streams active, previously-billed subscriptions with
	// their plan in chunks.
	EachDueCandidate(ctx context.Context, chunkSize int, fn func(subs []models.Subscription) error) error
	// InsertEntries inserts outbox rows, silently skipping rows that collide
	// with the (subscription_id, due_date) unique index. Returns the number
	// of rows actually inserted.
	InsertEntries(ctx context.Context, entries []models.OutboxEntry) (int, error)
	ListUnpublished(ctx context.Context, limit int) ([]models.OutboxEntry, error)
	MarkPublished(ctx context.Context, id string, at time.Time) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates an outbox repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) EachDueCandidate(ctx context.Context, chunkSize int, fn func(subs []models.Subscription) error) error {
	var subs []models.Subscription
	return r.db.WithContext(ctx).
		Joins("Plan").
		Where("subscriptions.status = ? AND subscriptions.renewed_at IS NOT NULL", models.SubscriptionStatusActive).
		FindInBatches(&subs, chunkSize, func(tx *gorm.DB, batch int) error {
			return fn(subs)
		}).Error
}

func (r *gormRepository) InsertEntries(ctx context.Context, entries []models.OutboxEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "subscription_id"},
			{Name: "due_date"},
		},
		DoNothing: true,
	}).Create(&entries)
	if tx.Error != nil {
		return 0, tx.Error
	}
	return int(tx.RowsAffected), nil
}

func (r *gormRepository) ListUnpublished(ctx context.Context, limit int) ([]models.OutboxEntry, error) {
	var rows []models.OutboxEntry
	err := r.db.WithContext(ctx).
		Where("published_at IS NULL").
		Order("created_at").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *gormRepository) MarkPublished(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.OutboxEntry{}).
		Where("id = ?", id).
		Update("published_at", at).Error
}
