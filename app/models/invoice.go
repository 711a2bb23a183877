package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	InvoiceStatusPosted = "posted"
	InvoiceStatusPaid   = "paid"
)

// Invoice is the billing document for one customer and billing period.
// The unique index over (customer_id, period_start, period_end, currency)
// is what makes create-or-reuse race-safe under concurrent deliveries.
type Invoice struct {
	ID          string    `gorm:"type:char(36);primaryKey" json:"id"`
	CustomerID  string    `gorm:"type:char(36);not null;index:uniq_invoice_period,unique,priority:1" json:"customer_id"`
	PeriodStart time.Time `gorm:"type:date;not null;index:uniq_invoice_period,unique,priority:2" json:"period_start"`
	PeriodEnd   time.Time `gorm:"type:date;not null;index:uniq_invoice_period,unique,priority:3" json:"period_end"`
	TotalCents  int64     `gorm:"not null" json:"total_cents"`
	Currency    string    `gorm:"type:char(3);not null;index:uniq_invoice_period,unique,priority:4" json:"currency"`
	Status      string    `gorm:"type:varchar(16);not null;default:'posted'" json:"status"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	return nil
}
