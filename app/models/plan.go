package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	PlanIntervalMonth = "month"
	PlanIntervalYear  = "year"
)

// Plan is immutable reference data describing a billable subscription tier.
type Plan struct {
	ID         string    `gorm:"type:char(36);primaryKey" json:"id"`
	Name       string    `gorm:"type:varchar(100);not null" json:"name"`
	Interval   string    `gorm:"type:varchar(16);not null;default:'month'" json:"interval"`
	PriceCents int64     `gorm:"not null" json:"price_cents"`
	Currency   string    `gorm:"type:char(3);not null" json:"currency"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Plan) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

// IsValidInterval reports whether the given billing interval is supported.
func IsValidInterval(interval string) bool {
	return interval == PlanIntervalMonth || interval == PlanIntervalYear
}
