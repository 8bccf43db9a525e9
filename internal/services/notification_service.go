package services

import (
	"context"
	"fmt"

	"github.com/sebenzapay/escrow-platform-backend/internal/data"
	"github.com/sebenzapay/escrow-platform-backend/internal/message"
)

const (
	paymentEscrowedMessageTitle = "Payment secured"
	cashClaimedMessageTitle     = "Cash payment reported"
	payoutCompletedMessageTitle = "Payout completed"
	payoutFailedMessageTitle    = "Payout failed"
)

// NotificationServiceInterface notifies providers about money movements on
// their bookings. Client-facing notifications are owned by the identity
// service, which holds the client contact details; this service only reaches
// the providers table.
//
// All methods are best effort: callers log failures and move on, a payment is
// never rolled back because an email bounced.
type NotificationServiceInterface interface {
	NotifyPaymentEscrowed(ctx context.Context, payment *data.Payment, booking *data.Booking) error
	NotifyCashClaimed(ctx context.Context, payment *data.Payment, booking *data.Booking) error
	NotifyPayoutCompleted(ctx context.Context, payout *data.Payout) error
	NotifyPayoutFailed(ctx context.Context, payout *data.Payout, reason string) error
}

type NotificationService struct {
	messengerClient message.MessengerClient
	models          *data.Models
}

var _ NotificationServiceInterface = (*NotificationService)(nil)

func NewNotificationService(messengerClient message.MessengerClient, models *data.Models) *NotificationService {
	return &NotificationService{
		messengerClient: messengerClient,
		models:          models,
	}
}

func (s *NotificationService) NotifyPaymentEscrowed(ctx context.Context, payment *data.Payment, booking *data.Booking) error {
	body := fmt.Sprintf(
		"A payment of %s %s for %q has been secured. Your share of %s %s will be paid out after the service is delivered.",
		payment.Currency, payment.Amount.StringFixed(2), booking.ServiceName, payment.Currency, payment.EscrowAmount.StringFixed(2))

	return s.sendToProvider(ctx, payment.ProviderID, paymentEscrowedMessageTitle, body)
}

func (s *NotificationService) NotifyCashClaimed(ctx context.Context, payment *data.Payment, booking *data.Booking) error {
	body := fmt.Sprintf(
		"The client reports paying %s %s in cash for %q. The booking completes once you confirm receiving it.",
		payment.Currency, payment.Amount.StringFixed(2), booking.ServiceName)

	return s.sendToProvider(ctx, payment.ProviderID, cashClaimedMessageTitle, body)
}

func (s *NotificationService) NotifyPayoutCompleted(ctx context.Context, payout *data.Payout) error {
	body := fmt.Sprintf(
		"Your payout of %s %s is on its way to your bank account.",
		payout.Currency, payout.Amount.StringFixed(2))

	return s.sendToProvider(ctx, payout.ProviderID, payoutCompletedMessageTitle, body)
}

func (s *NotificationService) NotifyPayoutFailed(ctx context.Context, payout *data.Payout, reason string) error {
	body := fmt.Sprintf(
		"Your payout of %s %s could not be completed: %s. Please verify your bank details.",
		payout.Currency, payout.Amount.StringFixed(2), reason)

	return s.sendToProvider(ctx, payout.ProviderID, payoutFailedMessageTitle, body)
}

func (s *NotificationService) sendToProvider(ctx context.Context, providerID, title, body string) error {
	provider, err := s.models.Providers.Get(ctx, s.models.DBConnectionPool, providerID)
	if err != nil {
		return fmt.Errorf("getting provider %s: %w", providerID, err)
	}

	msg := message.Message{
		ToEmail:       provider.Email,
		ToPhoneNumber: provider.PhoneNumber,
		Title:         title,
		Message:       body,
	}
	if err = s.messengerClient.SendMessage(msg); err != nil {
		return fmt.Errorf("sending %q message to provider %s: %w", title, providerID, err)
	}

	return nil
}
