package data

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sebenzapay/escrow-platform-backend/db"
)

func CreateProviderFixture(t *testing.T, ctx context.Context, sqlExec db.SQLExecuter, name, email string) *Provider {
	const query = `
		INSERT INTO providers
			(name, email, phone_number, bank_code, account_number, account_name)
		VALUES
			($1, $2, '+27821234567', '632005', '1234567890', $1)
		RETURNING
			id
	`

	var id string
	err := sqlExec.GetContext(ctx, &id, query, name, email)
	require.NoError(t, err)

	model := &ProviderModel{}
	provider, err := model.Get(ctx, sqlExec, id)
	require.NoError(t, err)
	return provider
}

func DeleteAllProvidersFixtures(t *testing.T, ctx context.Context, sqlExec db.SQLExecuter) {
	const query = "DELETE FROM providers"
	_, err := sqlExec.ExecContext(ctx, query)
	require.NoError(t, err)
}

func CreateBookingFixture(t *testing.T, ctx context.Context, sqlExec db.SQLExecuter, b *Booking) *Booking {
	if b.ClientID == "" {
		b.ClientID = uuid.NewString()
	}
	if b.ServiceName == "" {
		b.ServiceName = "Garden maintenance"
	}
	if b.Amount.IsZero() {
		b.Amount = decimal.RequireFromString("200.00")
	}
	if b.Currency == "" {
		b.Currency = "ZAR"
	}
	if b.Status == "" {
		b.Status = PendingBookingStatus
	}
	if b.StatusHistory == nil {
		b.StatusHistory = BookingStatusHistory{{
			Timestamp: time.Now(),
			Status:    b.Status,
		}}
	}

	const query = `
		INSERT INTO bookings
			(client_id, provider_id, service_name, amount, currency, scheduled_for, status, status_history)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING
			id
	`

	var id string
	err := sqlExec.GetContext(ctx, &id, query,
		b.ClientID, b.ProviderID, b.ServiceName, b.Amount, b.Currency, b.ScheduledFor, b.Status, b.StatusHistory)
	require.NoError(t, err)

	model := &BookingModel{}
	booking, err := model.Get(ctx, sqlExec, id)
	require.NoError(t, err)
	return booking
}

func DeleteAllBookingsFixtures(t *testing.T, ctx context.Context, sqlExec db.SQLExecuter) {
	const query = "DELETE FROM bookings"
	_, err := sqlExec.ExecContext(ctx, query)
	require.NoError(t, err)
}

func CreatePaymentFixture(t *testing.T, ctx context.Context, sqlExec db.SQLExecuter, p *Payment) *Payment {
	if p.Currency == "" {
		p.Currency = "ZAR"
	}
	if p.PaymentMethod == "" {
		p.PaymentMethod = CardPaymentMethod
	}
	if p.Status == "" {
		p.Status = PendingPaymentStatus
	}
	if p.StatusHistory == nil {
		p.StatusHistory = PaymentStatusHistory{{
			Timestamp: time.Now(),
			Status:    p.Status,
		}}
	}
	if p.Amount.IsZero() {
		p.Amount = decimal.RequireFromString("200.00")
		p.PlatformFee = decimal.RequireFromString("20.00")
		p.EscrowAmount = decimal.RequireFromString("180.00")
	}

	const query = `
		INSERT INTO payments
			(booking_id, client_id, provider_id, amount, platform_fee, escrow_amount, currency,
			payment_method, status, status_history, external_ref, paid_at, released_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''), $12, $13)
		RETURNING
			id
	`

	var id string
	err := sqlExec.GetContext(ctx, &id, query,
		p.BookingID, p.ClientID, p.ProviderID, p.Amount, p.PlatformFee, p.EscrowAmount, p.Currency,
		p.PaymentMethod, p.Status, p.StatusHistory, p.ExternalRef, p.PaidAt, p.ReleasedAt)
	require.NoError(t, err)

	model := &PaymentModel{}
	payment, err := model.Get(ctx, sqlExec, id)
	require.NoError(t, err)
	return payment
}

func DeleteAllPaymentsFixtures(t *testing.T, ctx context.Context, sqlExec db.SQLExecuter) {
	const query = "DELETE FROM payments"
	_, err := sqlExec.ExecContext(ctx, query)
	require.NoError(t, err)
}

// CreateEscrowedPaymentFixture builds the provider/booking/payment chain for
// a card payment already sitting in escrow, ledger entries included.
func CreateEscrowedPaymentFixture(t *testing.T, ctx context.Context, sqlExec db.SQLExecuter, amount, platformFee, escrowAmount decimal.Decimal) *Payment {
	provider := CreateProviderFixture(t, ctx, sqlExec, "Thabo's Plumbing", fmt.Sprintf("thabo+%s@example.com", uuid.NewString()[:8]))
	booking := CreateBookingFixture(t, ctx, sqlExec, &Booking{
		ProviderID: provider.ID,
		Amount:     amount,
		Status:     PendingExecutionBookingStatus,
	})
	now := time.Now()
	payment := CreatePaymentFixture(t, ctx, sqlExec, &Payment{
		BookingID:    booking.ID,
		ClientID:     booking.ClientID,
		ProviderID:   provider.ID,
		Amount:       amount,
		PlatformFee:  platformFee,
		EscrowAmount: escrowAmount,
		Status:       EscrowPaymentStatus,
		ExternalRef:  "PAY_" + uuid.NewString(),
		PaidAt:       &now,
	})

	ledger := &LedgerEntryModel{}
	err := ledger.Record(ctx, sqlExec,
		LedgerEntryInsert{
			AccountType:   ProviderBalanceAccountType,
			AccountID:     provider.ID,
			EntryType:     CreditLedgerEntryType,
			Amount:        escrowAmount,
			ReferenceType: PaymentLedgerReferenceType,
			ReferenceID:   payment.ID,
		},
		LedgerEntryInsert{
			AccountType:   PlatformRevenueAccountType,
			AccountID:     PlatformAccountID,
			EntryType:     CreditLedgerEntryType,
			Amount:        platformFee,
			ReferenceType: PaymentLedgerReferenceType,
			ReferenceID:   payment.ID,
		})
	require.NoError(t, err)

	return payment
}

func CreatePayoutFixture(t *testing.T, ctx context.Context, sqlExec db.SQLExecuter, y *Payout) *Payout {
	if y.Currency == "" {
		y.Currency = "ZAR"
	}
	if y.Method == "" {
		y.Method = AutoPayoutMethod
	}
	if y.Status == "" {
		y.Status = PendingApprovalPayoutStatus
	}
	if y.StatusHistory == nil {
		y.StatusHistory = PayoutStatusHistory{{
			Timestamp: time.Now(),
			Status:    y.Status,
		}}
	}

	const query = `
		INSERT INTO payouts
			(payment_id, booking_id, provider_id, amount, currency, method, status, status_history,
			batch_id, transfer_code, external_ref, approved_at, approved_by, completed_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), NULLIF($11, ''), $12, NULLIF($13, ''), $14)
		RETURNING
			id
	`

	var id string
	err := sqlExec.GetContext(ctx, &id, query,
		y.PaymentID, y.BookingID, y.ProviderID, y.Amount, y.Currency, y.Method, y.Status, y.StatusHistory,
		y.BatchID, y.TransferCode, y.ExternalRef, y.ApprovedAt, y.ApprovedBy, y.CompletedAt)
	require.NoError(t, err)

	model := &PayoutModel{}
	payout, err := model.Get(ctx, sqlExec, id)
	require.NoError(t, err)
	return payout
}

// CreatePayoutChainFixture builds the provider, booking, escrowed payment and
// payout rows behind one payout in the given state. The payout amount is the
// payment's escrow amount.
func CreatePayoutChainFixture(t *testing.T, ctx context.Context, sqlExec db.SQLExecuter, method PayoutMethod, status PayoutStatus, amount decimal.Decimal) *Payout {
	escrowAmount := amount.Mul(decimal.RequireFromString("0.9")).RoundBank(2)
	platformFee := amount.Sub(escrowAmount)
	payment := CreateEscrowedPaymentFixture(t, ctx, sqlExec, amount, platformFee, escrowAmount)

	y := &Payout{
		PaymentID:  payment.ID,
		BookingID:  payment.BookingID,
		ProviderID: payment.ProviderID,
		Amount:     escrowAmount,
		Method:     method,
		Status:     status,
	}
	if status != PendingApprovalPayoutStatus && status != RejectedPayoutStatus {
		now := time.Now()
		y.ApprovedAt = &now
		y.ApprovedBy = "admin-fixture"
	}

	return CreatePayoutFixture(t, ctx, sqlExec, y)
}

func DeleteAllPayoutsFixtures(t *testing.T, ctx context.Context, sqlExec db.SQLExecuter) {
	const query = "DELETE FROM payouts"
	_, err := sqlExec.ExecContext(ctx, query)
	require.NoError(t, err)
}

func CreatePayoutBatchFixture(t *testing.T, ctx context.Context, sqlExec db.SQLExecuter, pb *PayoutBatch) *PayoutBatch {
	if pb.Reference == "" {
		pb.Reference = fmt.Sprintf("BATCH_%s_%03d", time.Now().Format("20060102"), 1)
	}
	if pb.BatchDate.IsZero() {
		pb.BatchDate = time.Now()
	}
	if pb.PayoutCount == 0 {
		pb.PayoutCount = 1
	}
	if pb.TotalAmount.IsZero() {
		pb.TotalAmount = decimal.RequireFromString("180.00")
	}
	if pb.Status == "" {
		pb.Status = ExportedPayoutBatchStatus
	}
	if pb.ExportedBy == "" {
		pb.ExportedBy = uuid.NewString()
	}

	const query = `
		INSERT INTO payout_batches
			(reference, batch_date, payout_count, total_amount, csv_content, status, exported_by, executed_by, executed_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9)
		RETURNING
			id
	`

	var id string
	err := sqlExec.GetContext(ctx, &id, query,
		pb.Reference, pb.BatchDate.Format("2006-01-02"), pb.PayoutCount, pb.TotalAmount, pb.CSVContent,
		pb.Status, pb.ExportedBy, pb.ExecutedBy, pb.ExecutedAt)
	require.NoError(t, err)

	model := &PayoutBatchModel{}
	batch, err := model.Get(ctx, sqlExec, id)
	require.NoError(t, err)
	return batch
}

func DeleteAllPayoutBatchesFixtures(t *testing.T, ctx context.Context, sqlExec db.SQLExecuter) {
	const query = "DELETE FROM payout_batches"
	_, err := sqlExec.ExecContext(ctx, query)
	require.NoError(t, err)

	const sequencesQuery = "DELETE FROM batch_sequences"
	_, err = sqlExec.ExecContext(ctx, sequencesQuery)
	require.NoError(t, err)
}

func CreateLedgerEntryFixture(t *testing.T, ctx context.Context, sqlExec db.SQLExecuter, insert LedgerEntryInsert) *LedgerEntry {
	if insert.Currency == "" {
		insert.Currency = "ZAR"
	}

	const query = `
		INSERT INTO ledger_entries
			(account_type, account_id, entry_type, amount, currency, reference_type, reference_id, description)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''))
		RETURNING
			id, account_type, account_id, entry_type, amount, currency,
			reference_type, reference_id, COALESCE(description, '') AS description, created_at
	`

	entry := &LedgerEntry{}
	err := sqlExec.GetContext(ctx, entry, query,
		insert.AccountType, insert.AccountID, insert.EntryType, insert.Amount, insert.Currency,
		insert.ReferenceType, insert.ReferenceID, insert.Description)
	require.NoError(t, err)

	return entry
}

func DeleteAllLedgerEntriesFixtures(t *testing.T, ctx context.Context, sqlExec db.SQLExecuter) {
	const query = "DELETE FROM ledger_entries"
	_, err := sqlExec.ExecContext(ctx, query)
	require.NoError(t, err)
}

func CreateWebhookEventFixture(t *testing.T, ctx context.Context, sqlExec db.SQLExecuter, we *WebhookEvent) *WebhookEvent {
	if we.EventType == "" {
		we.EventType = "charge.success"
	}
	if we.ExternalRef == "" {
		we.ExternalRef = "PAY_" + uuid.NewString()
	}
	if len(we.RawPayload) == 0 {
		we.RawPayload = []byte(fmt.Sprintf(`{"event":%q,"data":{"reference":%q}}`, we.EventType, we.ExternalRef))
	}
	if we.Signature == "" {
		we.Signature = "test-signature"
	}

	const query = `
		INSERT INTO webhook_events
			(event_type, external_ref, raw_payload, signature, processed, processing_error, retry_count, received_at, processed_at)
		VALUES
			($1, $2, $3, $4, $5, NULLIF($6, ''), $7, COALESCE($8, NOW()), $9)
		RETURNING
			id
	`

	var receivedAt *time.Time
	if !we.ReceivedAt.IsZero() {
		receivedAt = &we.ReceivedAt
	}

	var id string
	err := sqlExec.GetContext(ctx, &id, query,
		we.EventType, we.ExternalRef, we.RawPayload, we.Signature, we.Processed, we.ProcessingError,
		we.RetryCount, receivedAt, we.ProcessedAt)
	require.NoError(t, err)

	model := &WebhookEventModel{}
	event, err := model.Get(ctx, sqlExec, id)
	require.NoError(t, err)
	return event
}

func DeleteAllWebhookEventsFixtures(t *testing.T, ctx context.Context, sqlExec db.SQLExecuter) {
	const query = "DELETE FROM webhook_events"
	_, err := sqlExec.ExecContext(ctx, query)
	require.NoError(t, err)
}

func CreateSettlementBatchFixture(t *testing.T, ctx context.Context, sqlExec db.SQLExecuter, sb *SettlementBatch) *SettlementBatch {
	if sb.BatchDate.IsZero() {
		sb.BatchDate = time.Now()
	}
	if sb.Status == "" {
		sb.Status = PendingSettlementStatus
	}

	const query = `
		INSERT INTO settlement_batches
			(batch_date, expected_amount, payment_count, status, reconciled_by, reconciled_at, notes)
		VALUES
			($1, $2, $3, $4, NULLIF($5, ''), $6, NULLIF($7, ''))
		RETURNING
			id
	`

	var id string
	err := sqlExec.GetContext(ctx, &id, query,
		sb.BatchDate.Format("2006-01-02"), sb.ExpectedAmount, sb.PaymentCount, sb.Status,
		sb.ReconciledBy, sb.ReconciledAt, sb.Notes)
	require.NoError(t, err)

	model := &SettlementBatchModel{}
	batch, err := model.Get(ctx, sqlExec, id)
	require.NoError(t, err)
	return batch
}

func DeleteAllSettlementBatchesFixtures(t *testing.T, ctx context.Context, sqlExec db.SQLExecuter) {
	const query = "DELETE FROM settlement_batches"
	_, err := sqlExec.ExecContext(ctx, query)
	require.NoError(t, err)
}

// DeleteAllFixtures clears every table in dependency order.
func DeleteAllFixtures(t *testing.T, ctx context.Context, sqlExec db.SQLExecuter) {
	DeleteAllLedgerEntriesFixtures(t, ctx, sqlExec)
	DeleteAllWebhookEventsFixtures(t, ctx, sqlExec)
	DeleteAllPayoutsFixtures(t, ctx, sqlExec)
	DeleteAllPayoutBatchesFixtures(t, ctx, sqlExec)
	DeleteAllSettlementBatchesFixtures(t, ctx, sqlExec)
	DeleteAllPaymentsFixtures(t, ctx, sqlExec)
	DeleteAllBookingsFixtures(t, ctx, sqlExec)
	DeleteAllProvidersFixtures(t, ctx, sqlExec)
}
