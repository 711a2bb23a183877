package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ChargeStatusPending = "pending"
	ChargeStatusSettled = "settled"
)

// Charge links a subscription's renewal to its invoice. Uniqueness over
// (subscription_id, due_date, amount_cents, currency) collapses redeliveries
// of the same renewal onto a single row.
type Charge struct {
	ID             string    `gorm:"type:char(36);primaryKey" json:"id"`
	SubscriptionID string    `gorm:"type:char(36);not null;index:uniq_charge_period,unique,priority:1" json:"subscription_id"`
	InvoiceID      string    `gorm:"type:char(36);not null;index" json:"invoice_id"`
	AmountCents    int64     `gorm:"not null;index:uniq_charge_period,unique,priority:3" json:"amount_cents"`
	Currency       string    `gorm:"type:char(3);not null;index:uniq_charge_period,unique,priority:4" json:"currency"`
	Status         string    `gorm:"type:varchar(16);not null;default:'pending'" json:"status"`
	DueDate        time.Time `gorm:"type:date;not null;index:uniq_charge_period,unique,priority:2" json:"due_date"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c *Charge) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}
