package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JSON stores raw JSON documents in a text column.
type JSON json.RawMessage

// Value implements the driver.Valuer interface.
func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

// Scan implements the sql.Scanner interface.
func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = JSON("{}")
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*j = JSON(append([]byte(nil), v...))
	case string:
		*j = JSON(v)
	default:
		return errors.New("invalid scan source for JSON")
	}
	return nil
}

// OutboxEntry is the durable record of a renewal that is due. At most one
// entry exists per (subscription_id, due_date); entries are created by the
// scanner, stamped with PublishedAt by the relay once the broker confirmed
// the message, and never deleted so the table doubles as an audit log.
type OutboxEntry struct {
	ID             string     `gorm:"type:char(36);primaryKey" json:"id"`
	SubscriptionID string     `gorm:"type:char(36);not null;index:ux_renewal_outbox_sub_due,unique,priority:1" json:"subscription_id"`
	DueDate        time.Time  `gorm:"type:date;not null;index:ux_renewal_outbox_sub_due,unique,priority:2" json:"due_date"`
	Payload        JSON       `gorm:"type:longtext;not null" json:"payload"`
	CreatedAt      time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	PublishedAt    *time.Time `gorm:"type:datetime;default:null" json:"published_at,omitempty"`
}

func (e *OutboxEntry) TableName() string {
	return "renewal_outbox"
}

func (e *OutboxEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return nil
}
