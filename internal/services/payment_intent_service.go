package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/sebenzapay/escrow-platform-backend/db"
	"github.com/sebenzapay/escrow-platform-backend/internal/data"
	"github.com/sebenzapay/escrow-platform-backend/internal/paystack"
)

var (
	ErrBookingNotFound      = errors.New("booking not found")
	ErrBookingNotOwned      = errors.New("booking does not belong to the requesting client")
	ErrBookingNotConfirmed  = errors.New("booking is not confirmed")
	ErrPaymentAlreadyExists = errors.New("booking already has a payment in progress")
	ErrProcessorUnavailable = errors.New("payment processor is unavailable")
)

// PaymentIntentService opens payments for confirmed bookings. Card intents go
// through the processor's checkout initialization; cash intents only create
// the local row and wait for the client to hand money over in person.
type PaymentIntentService struct {
	models           *data.Models
	dbConnectionPool db.DBConnectionPool
	processorClient  paystack.ClientInterface
	platformFeeRate  decimal.Decimal
	currency         string
	callbackURL      string
}

func NewPaymentIntentService(models *data.Models, dbConnectionPool db.DBConnectionPool, processorClient paystack.ClientInterface, platformFeeRate decimal.Decimal, currency, callbackURL string) *PaymentIntentService {
	return &PaymentIntentService{
		models:           models,
		dbConnectionPool: dbConnectionPool,
		processorClient:  processorClient,
		platformFeeRate:  platformFeeRate,
		currency:         currency,
		callbackURL:      callbackURL,
	}
}

type CreateIntentRequest struct {
	BookingID   string
	ClientID    string
	ClientEmail string
	Method      data.PaymentMethod
}

func (r CreateIntentRequest) Validate() error {
	if r.BookingID == "" {
		return fmt.Errorf("booking ID is required")
	}
	if r.ClientID == "" {
		return fmt.Errorf("client ID is required")
	}
	return nil
}

// intentResult carries the payment out of the intent transaction along with
// whether it was found rather than inserted.
type intentResult struct {
	payment  *data.Payment
	existing bool
}

// CreateIntent opens a payment for the booking. The partial unique index on
// live payments makes a second concurrent intent a constraint violation;
// re-posting an intent for the same booking and method is idempotent and
// returns the live payment instead of a new one. The returned bool reports
// whether the payment already existed.
//
// A FAILED attempt does not block retrying; the retry gets a fresh payment
// row and a fresh processor reference.
func (s *PaymentIntentService) CreateIntent(ctx context.Context, req CreateIntentRequest) (*data.Payment, bool, error) {
	if err := req.Validate(); err != nil {
		return nil, false, fmt.Errorf("validating create intent request: %w", err)
	}

	method := req.Method
	if method == "" {
		method = data.CardPaymentMethod
	}
	if err := method.Validate(); err != nil {
		return nil, false, fmt.Errorf("validating create intent request: %w", err)
	}

	result, err := db.RunInTransactionWithResult(ctx, s.dbConnectionPool, nil, func(dbTx db.DBTransaction) (intentResult, error) {
		// 1. Lock the booking and verify it can take a payment.
		booking, err := s.models.Bookings.GetForUpdate(ctx, dbTx, req.BookingID)
		if err != nil {
			if errors.Is(err, data.ErrRecordNotFound) {
				return intentResult{}, ErrBookingNotFound
			}
			return intentResult{}, fmt.Errorf("getting booking with id %s: %w", req.BookingID, err)
		}
		if booking.ClientID != req.ClientID {
			return intentResult{}, ErrBookingNotOwned
		}
		if booking.Status != data.ConfirmedBookingStatus {
			return intentResult{}, ErrBookingNotConfirmed
		}

		// 2. Split the fee. Cash changes hands outside the platform, so cash
		// intents carry no platform fee.
		platformFee, escrowAmount := decimal.Zero, booking.Amount
		if method == data.CardPaymentMethod {
			platformFee, escrowAmount, err = SplitFee(booking.Amount, s.platformFeeRate)
			if err != nil {
				return intentResult{}, fmt.Errorf("splitting fee for booking %s: %w", req.BookingID, err)
			}
		}

		// 3. Insert the PENDING payment. A collision on the live-payment
		// index means an intent is already open: same method is an
		// idempotent re-post and gets the live payment back, a different
		// method is a conflict.
		payment, err := s.models.Payments.Insert(ctx, dbTx, data.PaymentInsert{
			BookingID:     booking.ID,
			ClientID:      booking.ClientID,
			ProviderID:    booking.ProviderID,
			Amount:        booking.Amount,
			PlatformFee:   platformFee,
			EscrowAmount:  escrowAmount,
			Currency:      s.currency,
			PaymentMethod: method,
		})
		if err != nil {
			if errors.Is(err, data.ErrRecordAlreadyExists) {
				livePayment, liveErr := s.models.Payments.GetLiveByBookingID(ctx, dbTx, req.BookingID)
				if liveErr != nil {
					return intentResult{}, fmt.Errorf("getting live payment for booking %s: %w", req.BookingID, liveErr)
				}
				if livePayment.PaymentMethod != method {
					return intentResult{}, ErrPaymentAlreadyExists
				}
				return intentResult{payment: livePayment, existing: true}, nil
			}
			return intentResult{}, fmt.Errorf("inserting payment for booking %s: %w", req.BookingID, err)
		}

		return intentResult{payment: payment}, nil
	})
	if err != nil {
		return nil, false, err
	}

	payment := result.payment
	if method == data.CashPaymentMethod {
		return payment, result.existing, nil
	}
	if result.existing && (payment.Status != data.PendingPaymentStatus || payment.ExternalRef != "") {
		return payment, true, nil
	}

	// 4. Initialize the processor checkout outside the transaction. The
	// reference doubles as the webhook correlation key. A re-posted PENDING
	// intent that never got its reference stored lands here too and picks
	// up where the first attempt stopped.
	reference := "PAY_" + payment.ID
	initialized, err := s.processorClient.InitializeTransaction(ctx, paystack.InitializeTransactionRequest{
		Email:       req.ClientEmail,
		Amount:      paystack.ToMinorUnits(payment.Amount),
		Reference:   reference,
		Currency:    payment.Currency,
		CallbackURL: s.callbackURL,
		Metadata: map[string]string{
			"payment_id": payment.ID,
			"booking_id": payment.BookingID,
		},
	})
	if err != nil {
		log.Ctx(ctx).Errorf("initializing processor transaction for payment %s: %v", payment.ID, err)
		if _, failErr := s.models.Payments.MarkFailed(ctx, s.dbConnectionPool, payment.ID, "payment processor initialization failed"); failErr != nil {
			log.Ctx(ctx).Errorf("marking payment %s as failed: %v", payment.ID, failErr)
		}
		return nil, false, ErrProcessorUnavailable
	}

	// 5. Store the processor references on the pending row.
	err = s.models.Payments.UpdateProcessorRefs(ctx, s.dbConnectionPool, payment.ID, initialized.Reference, initialized.AuthorizationURL)
	if err != nil {
		return nil, false, fmt.Errorf("storing processor refs on payment %s: %w", payment.ID, err)
	}

	payment.ExternalRef = initialized.Reference
	payment.AuthorizationURL = initialized.AuthorizationURL
	return payment, result.existing, nil
}
