package paystack

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type ClientMock struct {
	mock.Mock
}

func (c *ClientMock) InitializeTransaction(ctx context.Context, txReq InitializeTransactionRequest) (*InitializedTransaction, error) {
	args := c.Called(ctx, txReq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*InitializedTransaction), args.Error(1)
}

func (c *ClientMock) VerifyTransaction(ctx context.Context, reference string) (*TransactionVerification, error) {
	args := c.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*TransactionVerification), args.Error(1)
}

func (c *ClientMock) CreateTransferRecipient(ctx context.Context, recipientReq TransferRecipientRequest) (*TransferRecipient, error) {
	args := c.Called(ctx, recipientReq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*TransferRecipient), args.Error(1)
}

func (c *ClientMock) InitiateTransfer(ctx context.Context, transferReq TransferRequest) (*Transfer, error) {
	args := c.Called(ctx, transferReq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Transfer), args.Error(1)
}

func (c *ClientMock) ListBanks(ctx context.Context, currency string) ([]Bank, error) {
	args := c.Called(ctx, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Bank), args.Error(1)
}

var _ ClientInterface = (*ClientMock)(nil)
