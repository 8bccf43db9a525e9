package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sebenzapay/escrow-platform-backend/db"
	"github.com/sebenzapay/escrow-platform-backend/internal/data"
)

type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) NotifyPaymentEscrowed(ctx context.Context, payment *data.Payment, booking *data.Booking) error {
	return m.Called(ctx, payment, booking).Error(0)
}

func (m *MockNotificationService) NotifyCashClaimed(ctx context.Context, payment *data.Payment, booking *data.Booking) error {
	return m.Called(ctx, payment, booking).Error(0)
}

func (m *MockNotificationService) NotifyPayoutCompleted(ctx context.Context, payout *data.Payout) error {
	return m.Called(ctx, payout).Error(0)
}

func (m *MockNotificationService) NotifyPayoutFailed(ctx context.Context, payout *data.Payout, reason string) error {
	return m.Called(ctx, payout, reason).Error(0)
}

var _ NotificationServiceInterface = (*MockNotificationService)(nil)

type MockPayoutCompleter struct {
	mock.Mock
}

func (m *MockPayoutCompleter) CompletePayoutInTx(ctx context.Context, dbTx db.DBTransaction, payoutID, externalRef string) error {
	return m.Called(ctx, dbTx, payoutID, externalRef).Error(0)
}

var _ PayoutCompleter = (*MockPayoutCompleter)(nil)

type MockWebhookEventProcessor struct {
	mock.Mock
}

func (m *MockWebhookEventProcessor) ProcessStoredEvent(ctx context.Context, webhookEvent data.WebhookEvent) error {
	return m.Called(ctx, webhookEvent).Error(0)
}

var _ WebhookEventProcessor = (*MockWebhookEventProcessor)(nil)
