package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusFailed    = "failed"
)

const PaymentChannelCard = "CARD"

// Payment is one capture attempt for a charge. The globally unique
// idempotency key is the terminal dedup anchor of the whole pipeline: once a
// row exists for a key, no second payment is ever created for it.
type Payment struct {
	ID             string     `gorm:"type:char(36);primaryKey" json:"id"`
	ChargeID       string     `gorm:"type:char(36);not null;index" json:"charge_id"`
	AmountCents    int64      `gorm:"not null" json:"amount_cents"`
	Currency       string     `gorm:"type:char(3);not null" json:"currency"`
	Channel        string     `gorm:"type:varchar(16);not null;default:'CARD'" json:"channel"`
	IdempotencyKey string     `gorm:"type:varchar(191);not null;uniqueIndex" json:"idempotency_key"`
	Status         string     `gorm:"type:varchar(16);not null;default:'pending'" json:"status"`
	CompletedAt    *time.Time `gorm:"type:datetime;default:null" json:"completed_at,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}
