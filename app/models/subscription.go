package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusPastDue  = "past_due"
	SubscriptionStatusCanceled = "canceled"
	SubscriptionStatusExpired  = "expired"
)

// Subscription tracks a customer's recurring plan enrollment. RenewedAt is
// the instant of the last completed renewal and is nil until the first
// billing cycle has been collected; it only ever moves forward and is
// advanced exclusively by the renewal event handler after a successful
// capture.
type Subscription struct {
	ID         string     `gorm:"type:char(36);primaryKey" json:"id"`
	CustomerID string     `gorm:"type:char(36);not null;index" json:"customer_id"`
	PlanID     string     `gorm:"type:char(36);not null;index" json:"plan_id"`
	Status     string     `gorm:"type:varchar(32);not null;default:'active';index" json:"status"`
	RenewedAt  *time.Time `gorm:"type:datetime;default:null" json:"renewed_at,omitempty"`
	StartAt    time.Time  `gorm:"type:datetime;not null" json:"start_at"`
	CancelAt   *time.Time `gorm:"type:datetime;default:null" json:"cancel_at,omitempty"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Plan Plan `gorm:"foreignKey:PlanID" json:"-"`
}

func (s *Subscription) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}
