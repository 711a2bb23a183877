package billing

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/renewalworks/billingd/app/models"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	return db, mock
}

func TestGetOrCreatePaymentReusesExistingRow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRepository(db)

	// The conditional insert loses against the unique key and affects no
	// rows; the follow-up read returns the surviving row.
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `payments`").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectQuery("SELECT \\* FROM `payments` WHERE idempotency_key").
		WillReturnRows(sqlmock.NewRows([]string{"id", "charge_id", "amount_cents", "currency", "channel", "idempotency_key", "status"}).
			AddRow("pay-1", "chg-1", int64(999), "EUR", "CARD", "sub-abc|2024-02-15", models.PaymentStatusSucceeded))

	stored, err := repo.GetOrCreatePayment(&models.Payment{
		ChargeID:       "chg-1",
		AmountCents:    999,
		Currency:       "EUR",
		Channel:        models.PaymentChannelCard,
		IdempotencyKey: "sub-abc|2024-02-15",
		Status:         models.PaymentStatusPending,
	})
	require.NoError(t, err)
	assert.Equal(t, "pay-1", stored.ID)
	assert.Equal(t, models.PaymentStatusSucceeded, stored.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreateInvoiceInserts(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `invoices`").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery("SELECT \\* FROM `invoices` WHERE customer_id").
		WillReturnRows(sqlmock.NewRows([]string{"id", "customer_id", "total_cents", "currency", "status"}).
			AddRow("inv-1", "cust-1", int64(999), "EUR", models.InvoiceStatusPosted))

	start, _ := time.Parse("2006-01-02", "2024-02-15")
	end, _ := time.Parse("2006-01-02", "2024-03-15")
	stored, err := repo.GetOrCreateInvoice(&models.Invoice{
		CustomerID:  "cust-1",
		PeriodStart: start,
		PeriodEnd:   end,
		TotalCents:  999,
		Currency:    "EUR",
		Status:      models.InvoiceStatusPosted,
	})
	require.NoError(t, err)
	assert.Equal(t, "inv-1", stored.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePaymentStatus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `payments` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	now := time.Now()
	err := repo.UpdatePaymentStatus("pay-1", models.PaymentStatusSucceeded, &now)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinalizeRenewalRunsInOneTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `charges` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `invoices` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `subscriptions` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	loc, _ := time.LoadLocation("Europe/Brussels")
	err := repo.FinalizeRenewal("inv-1", "chg-1", "sub-1", time.Date(2024, 3, 15, 9, 0, 0, 0, loc))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
