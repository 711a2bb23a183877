package billing

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/renewalworks/billingd/app/models"
)

// Repository provides the atomic create-or-reuse operations the renewal
// handler runs on. Each GetOrCreate* relies on the table's unique index: the
// conditional insert either wins or silently loses to an existing row, and
// the follow-up read returns the single surviving row either way. There is
// no check-then-insert window.
type Repository interface {
	GetOrCreateInvoice(inv *models.Invoice) (*models.Invoice, error)
	GetOrCreateCharge(ch *models.Charge) (*models.Charge, error)
	GetOrCreatePayment(p *models.Payment) (*models.Payment, error)
	UpdatePaymentStatus(id, status string, completedAt *time.Time) error
	FinalizeRenewal(invoiceID, chargeID, subscriptionID string, renewedAt time.Time) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetOrCreateInvoice(inv *models.Invoice) (*models.Invoice, error) {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "customer_id"},
			{Name: "period_start"},
			{Name: "period_end"},
			{Name: "currency"},
		},
		DoNothing: true,
	}).Create(inv).Error; err != nil {
		return nil, err
	}

	var stored models.Invoice
	if err := r.db.
		Where("customer_id = ? AND period_start = ? AND period_end = ? AND currency = ?",
			inv.CustomerID, inv.PeriodStart.Format("2006-01-02"), inv.PeriodEnd.Format("2006-01-02"), inv.Currency).
		First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *gormRepository) GetOrCreateCharge(ch *models.Charge) (*models.Charge, error) {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "subscription_id"},
			{Name: "due_date"},
			{Name: "amount_cents"},
			{Name: "currency"},
		},
		DoNothing: true,
	}).Create(ch).Error; err != nil {
		return nil, err
	}

	var stored models.Charge
	if err := r.db.
		Where("subscription_id = ? AND due_date = ? AND amount_cents = ? AND currency = ?",
			ch.SubscriptionID, ch.DueDate.Format("2006-01-02"), ch.AmountCents, ch.Currency).
		First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *gormRepository) GetOrCreatePayment(p *models.Payment) (*models.Payment, error) {
	if err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "idempotency_key"}},
		DoNothing: true,
	}).Create(p).Error; err != nil {
		return nil, err
	}

	var stored models.Payment
	if err := r.db.Where("idempotency_key = ?", p.IdempotencyKey).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *gormRepository) UpdatePaymentStatus(id, status string, completedAt *time.Time) error {
	return r.db.Model(&models.Payment{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":       status,
		"completed_at": completedAt,
	}).Error
}

// FinalizeRenewal applies the success-path state transition in one
// transaction: charge settled, invoice paid, renewed_at advanced. All writes
// set absolute values, so re-applying on a redelivery converges to the same
// state; the renewed_at guard keeps the clock monotonic.
func (r *gormRepository) FinalizeRenewal(invoiceID, chargeID, subscriptionID string, renewedAt time.Time) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Charge{}).Where("id = ?", chargeID).
			Update("status", models.ChargeStatusSettled).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Invoice{}).Where("id = ?", invoiceID).
			Update("status", models.InvoiceStatusPaid).Error; err != nil {
			return err
		}
		return tx.Model(&models.Subscription{}).
			Where("id = ? AND (renewed_at IS NULL OR renewed_at <= ?)", subscriptionID, renewedAt).
			Update("renewed_at", renewedAt).Error
	})
}
