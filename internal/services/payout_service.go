package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/sebenzapay/escrow-platform-backend/db"
	"github.com/sebenzapay/escrow-platform-backend/internal/data"
	"github.com/sebenzapay/escrow-platform-backend/internal/paystack"
	"github.com/sebenzapay/escrow-platform-backend/internal/utils"
)

var (
	ErrPayoutNotFound             = errors.New("payout not found")
	ErrPayoutAlreadyExists        = errors.New("payment already has a payout")
	ErrInvalidPayoutStatus        = errors.New("payout status does not allow this operation")
	ErrInvalidPayoutMethod        = errors.New("payout method does not allow this operation")
	ErrInvalidBookingStatus       = errors.New("booking status does not allow this operation")
	ErrPaymentNotInEscrow         = errors.New("payment is not in escrow")
	ErrInsufficientBalance        = errors.New("provider balance does not cover the payout")
	ErrInsufficientLiquidity      = errors.New("bank account balance does not cover the payout")
	ErrProviderMissingBankDetails = errors.New("provider has no bank details on file")
	ErrPayoutExecutionFailed      = errors.New("processor rejected the transfer")
)

// serializableTxOpts is used for every transaction that reads ledger balances
// and then moves money based on what it saw.
var serializableTxOpts = &sql.TxOptions{Isolation: sql.LevelSerializable}

// PayoutService owns the payout lifecycle from the moment a booking is
// delivered to the moment the provider's bank account is funded. Approvals
// run serializable so two admins cannot approve past the same balance.
type PayoutService struct {
	models              *data.Models
	dbConnectionPool    db.DBConnectionPool
	processorClient     paystack.ClientInterface
	notificationService NotificationServiceInterface
	defaultPayoutMethod data.PayoutMethod
	bankMainAccountID   string
}

func NewPayoutService(models *data.Models, dbConnectionPool db.DBConnectionPool, processorClient paystack.ClientInterface, notificationService NotificationServiceInterface, defaultPayoutMethod data.PayoutMethod, bankMainAccountID string) *PayoutService {
	return &PayoutService{
		models:              models,
		dbConnectionPool:    dbConnectionPool,
		processorClient:     processorClient,
		notificationService: notificationService,
		defaultPayoutMethod: defaultPayoutMethod,
		bankMainAccountID:   bankMainAccountID,
	}
}

// payoutTransferReference derives the processor-side idempotency reference
// for a payout transfer. Deterministic, so a crashed execute retried against
// the processor reuses the same reference instead of paying twice.
func payoutTransferReference(payoutID string) string {
	if len(payoutID) > 8 {
		return "PO_" + payoutID[:8]
	}
	return "PO_" + payoutID
}

// MarkBookingDelivered flips the booking to DELIVERED on behalf of the
// provider and requests the payout for its escrowed payment in the same
// transaction. providerID is the caller's identity; empty means an admin
// acting on any booking.
func (s *PayoutService) MarkBookingDelivered(ctx context.Context, bookingID, providerID string) (*data.Booking, *data.Payout, error) {
	type deliveredResult struct {
		booking *data.Booking
		payout  *data.Payout
	}

	result, err := db.RunInTransactionWithResult(ctx, s.dbConnectionPool, nil, func(dbTx db.DBTransaction) (deliveredResult, error) {
		booking, err := s.models.Bookings.GetForUpdate(ctx, dbTx, bookingID)
		if err != nil {
			if errors.Is(err, data.ErrRecordNotFound) {
				return deliveredResult{}, ErrBookingNotFound
			}
			return deliveredResult{}, fmt.Errorf("getting booking with id %s: %w", bookingID, err)
		}
		if providerID != "" && booking.ProviderID != providerID {
			return deliveredResult{}, ErrBookingNotOwned
		}

		numRowsAffected, err := s.models.Bookings.UpdateStatus(ctx, dbTx, bookingID, data.DeliveredBookingStatus, "service delivered")
		if err != nil {
			return deliveredResult{}, fmt.Errorf("updating booking %s to delivered: %w", bookingID, err)
		}
		if numRowsAffected == 0 {
			return deliveredResult{}, ErrInvalidBookingStatus
		}

		payment, err := s.models.Payments.GetLiveByBookingID(ctx, dbTx, bookingID)
		if err != nil {
			return deliveredResult{}, fmt.Errorf("getting live payment for booking %s: %w", bookingID, err)
		}

		var payout *data.Payout
		if payment.Status == data.EscrowPaymentStatus {
			payout, err = s.requestPayoutInTx(ctx, dbTx, payment)
			if err != nil {
				return deliveredResult{}, err
			}
		} else {
			log.Ctx(ctx).Warnf("booking %s delivered but payment %s is %s; no payout requested", bookingID, payment.ID, payment.Status)
		}

		booking, err = s.models.Bookings.Get(ctx, dbTx, bookingID)
		if err != nil {
			return deliveredResult{}, fmt.Errorf("reloading booking %s: %w", bookingID, err)
		}
		return deliveredResult{booking: booking, payout: payout}, nil
	})
	if err != nil {
		return nil, nil, err
	}

	return result.booking, result.payout, nil
}

// RequestPayout opens a payout for the booking's escrowed payment. Normally
// invoked through MarkBookingDelivered; admins can call it directly when the
// automatic request was skipped.
func (s *PayoutService) RequestPayout(ctx context.Context, bookingID string) (*data.Payout, error) {
	return db.RunInTransactionWithResult(ctx, s.dbConnectionPool, nil, func(dbTx db.DBTransaction) (*data.Payout, error) {
		payment, err := s.models.Payments.GetLiveByBookingID(ctx, dbTx, bookingID)
		if err != nil {
			if errors.Is(err, data.ErrRecordNotFound) {
				return nil, ErrPaymentNotFound
			}
			return nil, fmt.Errorf("getting live payment for booking %s: %w", bookingID, err)
		}
		if payment.Status != data.EscrowPaymentStatus {
			return nil, ErrPaymentNotInEscrow
		}

		return s.requestPayoutInTx(ctx, dbTx, payment)
	})
}

func (s *PayoutService) requestPayoutInTx(ctx context.Context, dbTx db.DBTransaction, payment *data.Payment) (*data.Payout, error) {
	provider, err := s.models.Providers.Get(ctx, dbTx, payment.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("getting provider %s: %w", payment.ProviderID, err)
	}

	method := s.defaultPayoutMethod
	if !provider.HasBankAccount() {
		// No bank details means the processor cannot transfer; an operator
		// pays through the manual batch once details arrive.
		method = data.ManualPayoutMethod
	}

	payout, err := s.models.Payouts.Insert(ctx, dbTx, data.PayoutInsert{
		PaymentID:  payment.ID,
		BookingID:  payment.BookingID,
		ProviderID: payment.ProviderID,
		Amount:     payment.EscrowAmount,
		Currency:   payment.Currency,
		Method:     method,
	})
	if err != nil {
		if errors.Is(err, data.ErrRecordAlreadyExists) {
			return nil, ErrPayoutAlreadyExists
		}
		return nil, fmt.Errorf("inserting payout for payment %s: %w", payment.ID, err)
	}

	return payout, nil
}

// Approve moves the payout to APPROVED after checking that the provider's
// ledger balance and the bank account can actually cover it. The whole check
// runs serializable; a competing approval or completion forces a retry
// instead of approving against stale balances.
func (s *PayoutService) Approve(ctx context.Context, payoutID, approverID string) (*data.Payout, error) {
	return db.RunInTransactionWithResult(ctx, s.dbConnectionPool, serializableTxOpts, func(dbTx db.DBTransaction) (*data.Payout, error) {
		payout, err := s.models.Payouts.Get(ctx, dbTx, payoutID)
		if err != nil {
			if errors.Is(err, data.ErrRecordNotFound) {
				return nil, ErrPayoutNotFound
			}
			return nil, fmt.Errorf("getting payout with id %s: %w", payoutID, err)
		}

		// 1. Flip with the status guard; a payout that is not awaiting
		// approval affects zero rows.
		numRowsAffected, err := s.models.Payouts.UpdateToApproved(ctx, dbTx, payoutID, approverID)
		if err != nil {
			return nil, fmt.Errorf("approving payout %s: %w", payoutID, err)
		}
		if numRowsAffected == 0 {
			return nil, ErrInvalidPayoutStatus
		}

		// 2. The provider's balance must cover the payout.
		balance, err := s.models.LedgerEntries.Balance(ctx, dbTx, data.ProviderBalanceAccountType, payout.ProviderID)
		if err != nil {
			return nil, fmt.Errorf("getting provider %s balance: %w", payout.ProviderID, err)
		}
		if balance.LessThan(payout.Amount) {
			return nil, ErrInsufficientBalance
		}

		// 3. The bank account must have the liquidity to pay it.
		liquidity, err := s.models.LedgerEntries.Balance(ctx, dbTx, data.BankAccountAccountType, s.bankMainAccountID)
		if err != nil {
			return nil, fmt.Errorf("getting bank account %s balance: %w", s.bankMainAccountID, err)
		}
		if liquidity.LessThan(payout.Amount) {
			return nil, ErrInsufficientLiquidity
		}

		return s.models.Payouts.Get(ctx, dbTx, payoutID)
	})
}

// Reject declines a payout awaiting approval and records why.
func (s *PayoutService) Reject(ctx context.Context, payoutID, reason, actorID string) (*data.Payout, error) {
	return db.RunInTransactionWithResult(ctx, s.dbConnectionPool, nil, func(dbTx db.DBTransaction) (*data.Payout, error) {
		_, err := s.models.Payouts.Get(ctx, dbTx, payoutID)
		if err != nil {
			if errors.Is(err, data.ErrRecordNotFound) {
				return nil, ErrPayoutNotFound
			}
			return nil, fmt.Errorf("getting payout with id %s: %w", payoutID, err)
		}

		numRowsAffected, err := s.models.Payouts.UpdateToRejected(ctx, dbTx, payoutID, actorID, reason)
		if err != nil {
			return nil, fmt.Errorf("rejecting payout %s: %w", payoutID, err)
		}
		if numRowsAffected == 0 {
			return nil, ErrInvalidPayoutStatus
		}

		return s.models.Payouts.Get(ctx, dbTx, payoutID)
	})
}

// Execute pushes an approved AUTO payout to the processor's transfer API.
// The payout flips to PROCESSING before the processor is called, so a crash
// between the two leaves a deterministic reference the processor dedups on.
// Completion arrives asynchronously via the transfer.success webhook.
func (s *PayoutService) Execute(ctx context.Context, payoutID string) (*data.Payout, error) {
	payout, err := s.models.Payouts.Get(ctx, s.dbConnectionPool, payoutID)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			return nil, ErrPayoutNotFound
		}
		return nil, fmt.Errorf("getting payout with id %s: %w", payoutID, err)
	}
	if payout.Method != data.AutoPayoutMethod {
		return nil, ErrInvalidPayoutMethod
	}

	provider, err := s.models.Providers.Get(ctx, s.dbConnectionPool, payout.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("getting provider %s: %w", payout.ProviderID, err)
	}
	if !provider.HasBankAccount() {
		return nil, ErrProviderMissingBankDetails
	}

	// 1. Claim the payout. Zero rows means it was not APPROVED, or another
	// execute got here first.
	reference := payoutTransferReference(payout.ID)
	numRowsAffected, err := s.models.Payouts.UpdateToProcessing(ctx, s.dbConnectionPool, payout.ID, "", reference)
	if err != nil {
		return nil, fmt.Errorf("moving payout %s to processing: %w", payout.ID, err)
	}
	if numRowsAffected == 0 {
		return nil, ErrInvalidPayoutStatus
	}

	// 2. Make sure the processor knows the provider's bank account.
	recipientCode := provider.RecipientCode
	if recipientCode == "" {
		recipient, recipientErr := s.processorClient.CreateTransferRecipient(ctx, paystack.TransferRecipientRequest{
			Type:          paystack.RecipientTypeBASA,
			Name:          provider.AccountName,
			AccountNumber: provider.AccountNumber,
			BankCode:      provider.BankCode,
			Currency:      payout.Currency,
		})
		if recipientErr != nil {
			return nil, s.failPayout(ctx, payout.ID, "creating transfer recipient", recipientErr)
		}
		recipientCode = recipient.RecipientCode

		if updateErr := s.models.Providers.UpdateRecipientCode(ctx, s.dbConnectionPool, provider.ID, recipientCode); updateErr != nil {
			log.Ctx(ctx).Errorf("caching recipient code for provider %s: %v", provider.ID, updateErr)
		}
	}

	// 3. Initiate the transfer.
	transfer, err := s.processorClient.InitiateTransfer(ctx, paystack.TransferRequest{
		Source:    paystack.TransferSourceBalance,
		Amount:    paystack.ToMinorUnits(payout.Amount),
		Recipient: recipientCode,
		Reference: reference,
		Reason:    "Payout " + reference,
		Currency:  payout.Currency,
	})
	if err != nil {
		return nil, s.failPayout(ctx, payout.ID, "initiating transfer", err)
	}

	// 4. Remember the transfer code; the webhook resolves by it. Losing it
	// is survivable since the webhook also resolves by our reference.
	if err = s.models.Payouts.SetTransferCode(ctx, s.dbConnectionPool, payout.ID, transfer.TransferCode); err != nil {
		log.Ctx(ctx).Errorf("storing transfer code for payout %s: %v", payout.ID, err)
	}

	return s.models.Payouts.Get(ctx, s.dbConnectionPool, payout.ID)
}

// failPayout records a processor failure on a PROCESSING payout and tells
// the provider. Returns the error the handler should surface.
func (s *PayoutService) failPayout(ctx context.Context, payoutID, operation string, cause error) error {
	reason := fmt.Sprintf("%s: %v", operation, cause)
	if _, err := s.models.Payouts.UpdateToFailed(ctx, s.dbConnectionPool, payoutID, reason); err != nil {
		log.Ctx(ctx).Errorf("marking payout %s as failed: %v", payoutID, err)
	}

	if payout, err := s.models.Payouts.Get(ctx, s.dbConnectionPool, payoutID); err == nil {
		if notifyErr := s.notificationService.NotifyPayoutFailed(ctx, payout, reason); notifyErr != nil {
			log.Ctx(ctx).Errorf("notifying provider about failed payout %s: %v", payoutID, notifyErr)
		}
	}

	var apiErr *paystack.APIError
	if errors.As(cause, &apiErr) && apiErr.IsClientError() {
		return fmt.Errorf("%w: %s", ErrPayoutExecutionFailed, apiErr.Message)
	}
	log.Ctx(ctx).Errorf("%s for payout %s: %v", operation, payoutID, cause)
	return ErrProcessorUnavailable
}

// MarkPaid completes an approved MANUAL payout that an operator settled
// outside the platform, running the full completion transaction. The
// externalRef, when present, is the operator's proof reference (an EFT or
// batch line number) and is stored on the payout.
func (s *PayoutService) MarkPaid(ctx context.Context, payoutID, externalRef, actorID string) (*data.Payout, error) {
	payout, err := db.RunInTransactionWithResult(ctx, s.dbConnectionPool, serializableTxOpts, func(dbTx db.DBTransaction) (*data.Payout, error) {
		payout, err := s.models.Payouts.Get(ctx, dbTx, payoutID)
		if err != nil {
			if errors.Is(err, data.ErrRecordNotFound) {
				return nil, ErrPayoutNotFound
			}
			return nil, fmt.Errorf("getting payout with id %s: %w", payoutID, err)
		}
		if payout.Method != data.ManualPayoutMethod {
			return nil, ErrInvalidPayoutMethod
		}
		if payout.Status != data.ApprovedPayoutStatus {
			return nil, ErrInvalidPayoutStatus
		}

		if err = s.CompletePayoutInTx(ctx, dbTx, payoutID, externalRef); err != nil {
			return nil, err
		}

		return s.models.Payouts.Get(ctx, dbTx, payoutID)
	})
	if err != nil {
		return nil, err
	}

	log.Ctx(ctx).Infof("payout %s marked paid by %s", payoutID, actorID)
	if notifyErr := s.notificationService.NotifyPayoutCompleted(ctx, payout); notifyErr != nil {
		log.Ctx(ctx).Errorf("notifying provider about completed payout %s: %v", payoutID, notifyErr)
	}
	return payout, nil
}

// CompletePayoutInTx runs the single completion transaction shared by the
// transfer webhook, manual mark-paid and batch execute: payout COMPLETED,
// payment RELEASED, booking COMPLETED and the release ledger entries, all or
// nothing inside the caller's transaction. A payout that already completed
// is a no-op so webhook replays stay harmless.
func (s *PayoutService) CompletePayoutInTx(ctx context.Context, dbTx db.DBTransaction, payoutID, externalRef string) error {
	payout, err := s.models.Payouts.GetForUpdate(ctx, dbTx, payoutID)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			return ErrPayoutNotFound
		}
		return fmt.Errorf("getting payout with id %s: %w", payoutID, err)
	}

	numRowsAffected, err := s.models.Payouts.UpdateToCompleted(ctx, dbTx, payoutID, externalRef)
	if err != nil {
		return fmt.Errorf("completing payout %s: %w", payoutID, err)
	}
	if numRowsAffected == 0 {
		if payout.Status == data.CompletedPayoutStatus {
			return nil
		}
		return ErrInvalidPayoutStatus
	}

	payment, err := s.models.Payments.GetForUpdate(ctx, dbTx, payout.PaymentID)
	if err != nil {
		return fmt.Errorf("getting payment %s for payout %s: %w", payout.PaymentID, payoutID, err)
	}

	numRowsAffected, err = s.models.Payments.MarkReleased(ctx, dbTx, payment.ID)
	if err != nil {
		return fmt.Errorf("releasing payment %s: %w", payment.ID, err)
	}
	if numRowsAffected == 0 {
		return fmt.Errorf("payment %s is %s, expected ESCROW", payment.ID, payment.Status)
	}

	err = s.models.LedgerEntries.Record(ctx, dbTx, payoutCompletionLedgerEntries(payout, payment, s.bankMainAccountID)...)
	if err != nil {
		return fmt.Errorf("recording release entries for payout %s: %w", payoutID, err)
	}

	numRowsAffected, err = s.models.Bookings.UpdateStatus(ctx, dbTx, payout.BookingID, data.CompletedBookingStatus, "payout completed")
	if err != nil {
		return fmt.Errorf("completing booking %s: %w", payout.BookingID, err)
	}
	if numRowsAffected == 0 {
		return fmt.Errorf("booking %s could not be completed", payout.BookingID)
	}

	return nil
}

// GetPayout returns one payout.
func (s *PayoutService) GetPayout(ctx context.Context, payoutID string) (*data.Payout, error) {
	payout, err := s.models.Payouts.Get(ctx, s.dbConnectionPool, payoutID)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			return nil, ErrPayoutNotFound
		}
		return nil, fmt.Errorf("getting payout with id %s: %w", payoutID, err)
	}
	return payout, nil
}

// GetPayoutsWithCount returns a page of payouts plus the unpaged total.
func (s *PayoutService) GetPayoutsWithCount(ctx context.Context, queryParams *data.QueryParams) (*utils.ResultWithTotal, error) {
	return db.RunInTransactionWithResult(ctx, s.dbConnectionPool, &sql.TxOptions{Isolation: sql.LevelReadCommitted, ReadOnly: true},
		func(dbTx db.DBTransaction) (*utils.ResultWithTotal, error) {
			totalPayouts, err := s.models.Payouts.Count(ctx, dbTx, queryParams)
			if err != nil {
				return nil, fmt.Errorf("counting payouts: %w", err)
			}

			var payouts []data.Payout
			if totalPayouts != 0 {
				payouts, err = s.models.Payouts.GetAll(ctx, dbTx, queryParams)
				if err != nil {
					return nil, fmt.Errorf("getting payouts: %w", err)
				}
			}

			return utils.NewResultWithTotal(totalPayouts, payouts), nil
		})
}
