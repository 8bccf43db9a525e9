package data

import (
	"errors"

	"github.com/sebenzapay/escrow-platform-backend/db"
)

var (
	ErrRecordNotFound          = errors.New("record not found")
	ErrRecordAlreadyExists     = errors.New("record already exists")
	ErrMismatchNumRowsAffected = errors.New("mismatch number of rows affected")
	ErrMissingInput            = errors.New("missing input")
	ErrDuplicateLedgerEntry    = errors.New("duplicate ledger entry")
	ErrInvalidLedgerAmount     = errors.New("ledger entry amount must be greater than zero")
)

type Models struct {
	Bookings          *BookingModel
	Providers         *ProviderModel
	Payments          *PaymentModel
	Payouts           *PayoutModel
	PayoutBatches     *PayoutBatchModel
	LedgerEntries     *LedgerEntryModel
	WebhookEvents     *WebhookEventModel
	SettlementBatches *SettlementBatchModel
	DBConnectionPool  db.DBConnectionPool
}

func NewModels(dbConnectionPool db.DBConnectionPool) (*Models, error) {
	if dbConnectionPool == nil {
		return nil, errors.New("dbConnectionPool is required for NewModels")
	}
	return &Models{
		Bookings:          &BookingModel{dbConnectionPool: dbConnectionPool},
		Providers:         &ProviderModel{dbConnectionPool: dbConnectionPool},
		Payments:          &PaymentModel{dbConnectionPool: dbConnectionPool},
		Payouts:           &PayoutModel{dbConnectionPool: dbConnectionPool},
		PayoutBatches:     &PayoutBatchModel{dbConnectionPool: dbConnectionPool},
		LedgerEntries:     &LedgerEntryModel{dbConnectionPool: dbConnectionPool},
		WebhookEvents:     &WebhookEventModel{dbConnectionPool: dbConnectionPool},
		SettlementBatches: &SettlementBatchModel{dbConnectionPool: dbConnectionPool},
		DBConnectionPool:  dbConnectionPool,
	}, nil
}
