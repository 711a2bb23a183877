package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/renewalworks/billingd/app/models"
)

// DefaultCaptureTimeout bounds the external capture call. A timeout marks
// the payment failed rather than blocking the worker.
const DefaultCaptureTimeout = 10 * time.Second

// Service consumes renewal events and drives the idempotent billing
// sequence: invoice, charge, payment, capture, finalize. Every step is safe
// to repeat, so redelivered or concurrently delivered copies of the same
// logical renewal converge on the same rows.
type Service struct {
	repo           Repository
	channel        PaymentChannel
	loc            *time.Location
	captureTimeout time.Duration
	now            func() time.Time
}

// Outcome reports the rows a processed event resolved to.
type Outcome struct {
	InvoiceID     string
	ChargeID      string
	PaymentID     string
	PaymentStatus string
	Replayed      bool
}

// NewService creates a renewal handler service.
func NewService(repo Repository, channel PaymentChannel, loc *time.Location, captureTimeout time.Duration) *Service {
	if captureTimeout <= 0 {
		captureTimeout = DefaultCaptureTimeout
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:           repo,
		channel:        channel,
		loc:            loc,
		captureTimeout: captureTimeout,
		now:            time.Now,
	}
}

// NewServiceFromDB creates a renewal handler service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, channel PaymentChannel, loc *time.Location, captureTimeout time.Duration) *Service {
	return NewService(NewRepository(db), channel, loc, captureTimeout)
}

// Process handles one renewal event. It returns ErrCaptureFailed when the
// payment channel declined or timed out (payment left failed, everything
// downstream untouched) and ErrInvalidEvent for payloads that can never
// succeed. Any other error is transient and worth a redelivery.
func (s *Service) Process(ctx context.Context, evt *RenewalEvent) (*Outcome, error) {
	periodStart, periodEnd, err := DerivePeriod(evt, s.now().In(s.loc))
	if err != nil {
		return nil, err
	}
	key := DeriveIdempotencyKey(evt, periodStart)

	invoice, err := s.repo.GetOrCreateInvoice(&models.Invoice{
		CustomerID:  evt.CustomerID,
		PeriodStart: DateOf(periodStart),
		PeriodEnd:   DateOf(periodEnd),
		TotalCents:  evt.AmountCents,
		Currency:    evt.Currency,
		Status:      models.InvoiceStatusPosted,
	})
	if err != nil {
		return nil, fmt.Errorf("invoice for customer %s: %w", evt.CustomerID, err)
	}

	charge, err := s.repo.GetOrCreateCharge(&models.Charge{
		SubscriptionID: evt.SubscriptionID,
		InvoiceID:      invoice.ID,
		AmountCents:    evt.AmountCents,
		Currency:       evt.Currency,
		Status:         models.ChargeStatusPending,
		DueDate:        DateOf(periodEnd),
	})
	if err != nil {
		return nil, fmt.Errorf("charge for subscription %s: %w", evt.SubscriptionID, err)
	}

	payment, err := s.repo.GetOrCreatePayment(&models.Payment{
		ChargeID:       charge.ID,
		AmountCents:    evt.AmountCents,
		Currency:       evt.Currency,
		Channel:        models.PaymentChannelCard,
		IdempotencyKey: key,
		Status:         models.PaymentStatusPending,
	})
	if err != nil {
		return nil, fmt.Errorf("payment for key %s: %w", key, err)
	}

	out := &Outcome{
		InvoiceID:     invoice.ID,
		ChargeID:      charge.ID,
		PaymentID:     payment.ID,
		PaymentStatus: payment.Status,
	}

	if payment.Status == models.PaymentStatusSucceeded {
		// Redelivery of an already-collected renewal. Finalize sets absolute
		// values, so re-applying it is a converging no-op.
		if err := s.repo.FinalizeRenewal(invoice.ID, charge.ID, evt.SubscriptionID, RenewedAtAnchor(periodEnd, s.loc)); err != nil {
			return out, fmt.Errorf("re-finalize renewal %s: %w", evt.SubscriptionID, err)
		}
		out.Replayed = true
		log.Infof("[Billing] Renewal %s period %s already collected, converged", evt.SubscriptionID, evt.PeriodStart)
		return out, nil
	}

	// The capture is an external side effect and cannot share the store's
	// atomicity. The payment row is durably pending before the attempt, so a
	// crash here lands in a re-driveable state.
	captureCtx, cancel := context.WithTimeout(ctx, s.captureTimeout)
	defer cancel()

	result, captureErr := s.channel.AttemptCapture(captureCtx, payment.ID, payment.AmountCents, payment.Currency)
	if captureErr != nil || !result.Succeeded {
		if err := s.repo.UpdatePaymentStatus(payment.ID, models.PaymentStatusFailed, nil); err != nil {
			return out, fmt.Errorf("mark payment %s failed: %w", payment.ID, err)
		}
		out.PaymentStatus = models.PaymentStatusFailed
		if captureErr != nil {
			return out, fmt.Errorf("%w: %v", ErrCaptureFailed, captureErr)
		}
		return out, ErrCaptureFailed
	}

	completedAt := s.now()
	if err := s.repo.UpdatePaymentStatus(payment.ID, models.PaymentStatusSucceeded, &completedAt); err != nil {
		return out, fmt.Errorf("mark payment %s succeeded: %w", payment.ID, err)
	}
	out.PaymentStatus = models.PaymentStatusSucceeded

	if err := s.repo.FinalizeRenewal(invoice.ID, charge.ID, evt.SubscriptionID, RenewedAtAnchor(periodEnd, s.loc)); err != nil {
		return out, fmt.Errorf("finalize renewal %s: %w", evt.SubscriptionID, err)
	}

	log.Infof("[Billing] Renewal collected: subscription=%s invoice=%s charge=%s payment=%s",
		evt.SubscriptionID, invoice.ID, charge.ID, payment.ID)
	return out, nil
}

// HandleMessage adapts Process to a raw bus delivery.
func (s *Service) HandleMessage(ctx context.Context, body []byte) error {
	evt, err := ParseRenewalEvent(body)
	if err != nil {
		return err
	}
	_, err = s.Process(ctx, evt)
	return err
}
