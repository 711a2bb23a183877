package billing

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidEvent marks payloads that can never be processed (unparseable or
// missing mandatory fields). Consumers route these to the dead-letter queue
// instead of requeueing them.
var ErrInvalidEvent = errors.New("invalid renewal event")

// ErrCaptureFailed is returned when the payment channel declined or timed
// out. The payment row is left in failed state; a retry happens only through
// message redelivery.
var ErrCaptureFailed = errors.New("payment capture failed")

var validate = validator.New()

// RenewalEvent is the bus message produced from an outbox entry. PeriodStart,
// PeriodEnd and IdempotencyKey are optional; the handler derives them when
// the producer leaves them empty.
type RenewalEvent struct {
	SubscriptionID string `json:"subscription_id" validate:"required,uuid"`
	CustomerID     string `json:"customer_id" validate:"required,uuid"`
	PlanID         string `json:"plan_id" validate:"required,uuid"`
	Interval       string `json:"interval" validate:"required,oneof=month year"`
	AmountCents    int64  `json:"amount_cents" validate:"required,gt=0"`
	Currency       string `json:"currency" validate:"required,len=3"`
	IdempotencyKey string `json:"idempotency_key,omitempty" validate:"omitempty,max=191"`
	PeriodStart    string `json:"period_start,omitempty" validate:"omitempty,datetime=2006-01-02"`
	PeriodEnd      string `json:"period_end,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// ParseRenewalEvent decodes and validates a raw message body. Any failure is
// wrapped in ErrInvalidEvent because a malformed payload will never become
// valid through redelivery.
func ParseRenewalEvent(body []byte) (*RenewalEvent, error) {
	var evt RenewalEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if err := validate.Struct(&evt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	return &evt, nil
}
