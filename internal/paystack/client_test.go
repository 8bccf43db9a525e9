package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sebenzapay/escrow-platform-backend/internal/serve/httpclient"
)

func newClientWithMock(t *testing.T) (Client, *httpclient.HTTPClientMock) {
	httpClientMock := &httpclient.HTTPClientMock{}
	t.Cleanup(func() { httpClientMock.AssertExpectations(t) })

	return Client{
		BasePath:   "http://localhost:8080",
		SecretKey:  "test-key",
		httpClient: httpClientMock,
	}, httpClientMock
}

func Test_NewClient(t *testing.T) {
	client := NewClient("https://api.paystack.co", "sk_test_abc")
	assert.Equal(t, "https://api.paystack.co", client.BasePath)
	assert.Equal(t, "sk_test_abc", client.SecretKey)
	assert.NotNil(t, client.httpClient)
}

func Test_Client_InitializeTransaction(t *testing.T) {
	ctx := context.Background()
	validTxReq := InitializeTransactionRequest{
		Email:       "thabo@example.com",
		Amount:      20000,
		Reference:   "PAY_7f4a2c9b",
		Currency:    "ZAR",
		CallbackURL: "https://app.sebenzapay.co.za/payments/return",
		Metadata:    map[string]string{"payment_id": "payment-123", "booking_id": "booking-123"},
	}

	t.Run("fails to validate request", func(t *testing.T) {
		client, _ := newClientWithMock(t)
		tx, err := client.InitializeTransaction(ctx, InitializeTransactionRequest{})
		assert.EqualError(t, err, fmt.Errorf("validating initialize transaction request: %w", errors.New("email must be provided")).Error())
		assert.Nil(t, tx)
	})

	t.Run("request error is retried until attempts run out", func(t *testing.T) {
		client, httpClientMock := newClientWithMock(t)
		testError := errors.New("test error")
		httpClientMock.
			On("Do", mock.Anything).
			Return(nil, testError).
			Times(maxRequestAttempts)

		tx, err := client.InitializeTransaction(ctx, validTxReq)
		assert.EqualError(t, err, fmt.Errorf("making request: %w", testError).Error())
		assert.Nil(t, tx)
	})

	t.Run("API rejection is not retried", func(t *testing.T) {
		unauthorizedResponse := `{"status": false, "message": "Invalid key"}`
		client, httpClientMock := newClientWithMock(t)
		httpClientMock.
			On("Do", mock.Anything).
			Return(&http.Response{
				StatusCode: http.StatusUnauthorized,
				Body:       io.NopCloser(bytes.NewBufferString(unauthorizedResponse)),
			}, nil).
			Once()

		tx, err := client.InitializeTransaction(ctx, validTxReq)
		assert.EqualError(t, err, "making request: API error: APIError: Code=, Message=Invalid key, StatusCode=401")
		assert.Nil(t, tx)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.True(t, apiErr.IsClientError())
	})

	t.Run("successful", func(t *testing.T) {
		successResponse := `{
			"status": true,
			"message": "Authorization URL created",
			"data": {
				"authorization_url": "https://checkout.paystack.com/0peioxfhpn",
				"access_code": "0peioxfhpn",
				"reference": "PAY_7f4a2c9b"
			}
		}`
		client, httpClientMock := newClientWithMock(t)
		httpClientMock.
			On("Do", mock.Anything).
			Return(&http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(bytes.NewBufferString(successResponse)),
			}, nil).
			Run(func(args mock.Arguments) {
				req, ok := args.Get(0).(*http.Request)
				require.True(t, ok)

				assert.Equal(t, "http://localhost:8080/transaction/initialize", req.URL.String())
				assert.Equal(t, http.MethodPost, req.Method)
				assert.Equal(t, "Bearer test-key", req.Header.Get("Authorization"))
				assert.Equal(t, "application/json", req.Header.Get("Content-Type"))

				reqBody, readErr := io.ReadAll(req.Body)
				require.NoError(t, readErr)
				var gotReq InitializeTransactionRequest
				require.NoError(t, json.Unmarshal(reqBody, &gotReq))
				assert.Equal(t, validTxReq, gotReq)
			}).
			Once()

		tx, err := client.InitializeTransaction(ctx, validTxReq)
		assert.NoError(t, err)
		assert.Equal(t, &InitializedTransaction{
			AuthorizationURL: "https://checkout.paystack.com/0peioxfhpn",
			AccessCode:       "0peioxfhpn",
			Reference:        "PAY_7f4a2c9b",
		}, tx)
	})
}

func Test_Client_VerifyTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("fails without a reference", func(t *testing.T) {
		client, _ := newClientWithMock(t)
		verification, err := client.VerifyTransaction(ctx, "")
		assert.EqualError(t, err, "reference must be provided")
		assert.Nil(t, verification)
	})

	t.Run("request error is retried until attempts run out", func(t *testing.T) {
		client, httpClientMock := newClientWithMock(t)
		testError := errors.New("test error")
		httpClientMock.
			On("Do", mock.Anything).
			Return(nil, testError).
			Times(maxRequestAttempts)

		verification, err := client.VerifyTransaction(ctx, "PAY_7f4a2c9b")
		assert.EqualError(t, err, fmt.Errorf("making request: %w", testError).Error())
		assert.Nil(t, verification)
	})

	t.Run("unknown reference", func(t *testing.T) {
		notFoundResponse := `{"status": false, "message": "Transaction reference not found"}`
		client, httpClientMock := newClientWithMock(t)
		httpClientMock.
			On("Do", mock.Anything).
			Return(&http.Response{
				StatusCode: http.StatusBadRequest,
				Body:       io.NopCloser(bytes.NewBufferString(notFoundResponse)),
			}, nil).
			Once()

		verification, err := client.VerifyTransaction(ctx, "PAY_unknown")
		assert.EqualError(t, err, "making request: API error: APIError: Code=, Message=Transaction reference not found, StatusCode=400")
		assert.Nil(t, verification)
	})

	t.Run("successful", func(t *testing.T) {
		successResponse := `{
			"status": true,
			"message": "Verification successful",
			"data": {
				"id": 4099260516,
				"status": "success",
				"reference": "PAY_7f4a2c9b",
				"amount": 20000,
				"currency": "ZAR",
				"channel": "card",
				"gateway_response": "Successful",
				"paid_at": "2026-01-15T10:30:00.000Z"
			}
		}`
		client, httpClientMock := newClientWithMock(t)
		httpClientMock.
			On("Do", mock.Anything).
			Return(&http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(bytes.NewBufferString(successResponse)),
			}, nil).
			Run(func(args mock.Arguments) {
				req, ok := args.Get(0).(*http.Request)
				require.True(t, ok)

				assert.Equal(t, "http://localhost:8080/transaction/verify/PAY_7f4a2c9b", req.URL.String())
				assert.Equal(t, http.MethodGet, req.Method)
				assert.Equal(t, "Bearer test-key", req.Header.Get("Authorization"))
				assert.Empty(t, req.Header.Get("Content-Type"))
			}).
			Once()

		verification, err := client.VerifyTransaction(ctx, "PAY_7f4a2c9b")
		assert.NoError(t, err)
		assert.Equal(t, int64(4099260516), verification.ID)
		assert.Equal(t, TransactionStatusSuccess, verification.Status)
		assert.Equal(t, "PAY_7f4a2c9b", verification.Reference)
		assert.Equal(t, int64(20000), verification.Amount)
		assert.Equal(t, "ZAR", verification.Currency)
		require.NotNil(t, verification.PaidAt)
		assert.Equal(t, time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC), verification.PaidAt.UTC())
	})
}

func Test_Client_CreateTransferRecipient(t *testing.T) {
	ctx := context.Background()
	validRecipientReq := TransferRecipientRequest{
		Type:          RecipientTypeBASA,
		Name:          "Thabo Mokoena",
		AccountNumber: "1234567890",
		BankCode:      "058",
		Currency:      "ZAR",
	}

	t.Run("fails to validate request", func(t *testing.T) {
		client, _ := newClientWithMock(t)
		recipient, err := client.CreateTransferRecipient(ctx, TransferRecipientRequest{Type: RecipientTypeBASA})
		assert.EqualError(t, err, fmt.Errorf("validating transfer recipient request: %w", errors.New("name must be provided")).Error())
		assert.Nil(t, recipient)
	})

	t.Run("API rejection is not retried", func(t *testing.T) {
		badRequestResponse := `{"status": false, "message": "Could not resolve account name. Check parameters or try again.", "code": "invalid_bank_code", "type": "validation_error"}`
		client, httpClientMock := newClientWithMock(t)
		httpClientMock.
			On("Do", mock.Anything).
			Return(&http.Response{
				StatusCode: http.StatusBadRequest,
				Body:       io.NopCloser(bytes.NewBufferString(badRequestResponse)),
			}, nil).
			Once()

		recipient, err := client.CreateTransferRecipient(ctx, validRecipientReq)
		assert.EqualError(t, err, "making request: API error: APIError: Code=invalid_bank_code, Message=Could not resolve account name. Check parameters or try again., StatusCode=400")
		assert.Nil(t, recipient)
	})

	t.Run("successful", func(t *testing.T) {
		successResponse := `{
			"status": true,
			"message": "Transfer recipient created successfully",
			"data": {
				"recipient_code": "RCP_2x5j67tnnw1t98k",
				"type": "basa",
				"name": "Thabo Mokoena",
				"currency": "ZAR",
				"active": true
			}
		}`
		client, httpClientMock := newClientWithMock(t)
		httpClientMock.
			On("Do", mock.Anything).
			Return(&http.Response{
				StatusCode: http.StatusCreated,
				Body:       io.NopCloser(bytes.NewBufferString(successResponse)),
			}, nil).
			Run(func(args mock.Arguments) {
				req, ok := args.Get(0).(*http.Request)
				require.True(t, ok)

				assert.Equal(t, "http://localhost:8080/transferrecipient", req.URL.String())
				assert.Equal(t, http.MethodPost, req.Method)

				reqBody, readErr := io.ReadAll(req.Body)
				require.NoError(t, readErr)
				var gotReq TransferRecipientRequest
				require.NoError(t, json.Unmarshal(reqBody, &gotReq))
				assert.Equal(t, validRecipientReq, gotReq)
			}).
			Once()

		recipient, err := client.CreateTransferRecipient(ctx, validRecipientReq)
		assert.NoError(t, err)
		assert.Equal(t, "RCP_2x5j67tnnw1t98k", recipient.RecipientCode)
		assert.True(t, recipient.Active)
	})
}

func Test_Client_InitiateTransfer(t *testing.T) {
	ctx := context.Background()
	validTransferReq := TransferRequest{
		Source:    TransferSourceBalance,
		Amount:    27000,
		Recipient: "RCP_2x5j67tnnw1t98k",
		Reference: "PO_9b1d4e2a",
		Reason:    "Payout for Garden maintenance",
		Currency:  "ZAR",
	}

	t.Run("fails to validate request", func(t *testing.T) {
		client, _ := newClientWithMock(t)
		transfer, err := client.InitiateTransfer(ctx, TransferRequest{})
		assert.EqualError(t, err, fmt.Errorf("validating transfer request: %w", errors.New("source must be balance")).Error())
		assert.Nil(t, transfer)
	})

	t.Run("insufficient balance is not retried", func(t *testing.T) {
		insufficientResponse := `{"status": false, "message": "Your balance is not enough to fulfil this request", "code": "insufficient_balance", "type": "api_error"}`
		client, httpClientMock := newClientWithMock(t)
		httpClientMock.
			On("Do", mock.Anything).
			Return(&http.Response{
				StatusCode: http.StatusBadRequest,
				Body:       io.NopCloser(bytes.NewBufferString(insufficientResponse)),
			}, nil).
			Once()

		transfer, err := client.InitiateTransfer(ctx, validTransferReq)
		assert.EqualError(t, err, "making request: API error: APIError: Code=insufficient_balance, Message=Your balance is not enough to fulfil this request, StatusCode=400")
		assert.Nil(t, transfer)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.True(t, apiErr.IsClientError())
	})

	t.Run("processor outage is retried", func(t *testing.T) {
		client, httpClientMock := newClientWithMock(t)
		httpClientMock.
			On("Do", mock.Anything).
			Return(&http.Response{
				StatusCode: http.StatusServiceUnavailable,
				Body:       io.NopCloser(bytes.NewBufferString(`upstream unavailable`)),
			}, nil).
			Twice()
		httpClientMock.
			On("Do", mock.Anything).
			Return(&http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(bytes.NewBufferString(`{"status": true, "message": "Transfer requested", "data": {"id": 151, "transfer_code": "TRF_1ptvuv321ahaa7q", "reference": "PO_9b1d4e2a", "amount": 27000, "currency": "ZAR", "status": "pending"}}`)),
			}, nil).
			Once()

		transfer, err := client.InitiateTransfer(ctx, validTransferReq)
		assert.NoError(t, err)
		assert.Equal(t, "TRF_1ptvuv321ahaa7q", transfer.TransferCode)
		assert.Equal(t, TransferStatusPending, transfer.Status)
	})

	t.Run("successful", func(t *testing.T) {
		successResponse := `{
			"status": true,
			"message": "Transfer requested",
			"data": {
				"id": 151,
				"transfer_code": "TRF_1ptvuv321ahaa7q",
				"reference": "PO_9b1d4e2a",
				"amount": 27000,
				"currency": "ZAR",
				"status": "pending"
			}
		}`
		client, httpClientMock := newClientWithMock(t)
		httpClientMock.
			On("Do", mock.Anything).
			Return(&http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(bytes.NewBufferString(successResponse)),
			}, nil).
			Run(func(args mock.Arguments) {
				req, ok := args.Get(0).(*http.Request)
				require.True(t, ok)

				assert.Equal(t, "http://localhost:8080/transfer", req.URL.String())
				assert.Equal(t, http.MethodPost, req.Method)

				reqBody, readErr := io.ReadAll(req.Body)
				require.NoError(t, readErr)
				var gotReq TransferRequest
				require.NoError(t, json.Unmarshal(reqBody, &gotReq))
				assert.Equal(t, validTransferReq, gotReq)
			}).
			Once()

		transfer, err := client.InitiateTransfer(ctx, validTransferReq)
		assert.NoError(t, err)
		assert.Equal(t, &Transfer{
			ID:           151,
			TransferCode: "TRF_1ptvuv321ahaa7q",
			Reference:    "PO_9b1d4e2a",
			Amount:       27000,
			Currency:     "ZAR",
			Status:       TransferStatusPending,
		}, transfer)
	})
}

func Test_Client_ListBanks(t *testing.T) {
	ctx := context.Background()

	t.Run("request error is retried until attempts run out", func(t *testing.T) {
		client, httpClientMock := newClientWithMock(t)
		testError := errors.New("test error")
		httpClientMock.
			On("Do", mock.Anything).
			Return(nil, testError).
			Times(maxRequestAttempts)

		banks, err := client.ListBanks(ctx, "ZAR")
		assert.EqualError(t, err, fmt.Errorf("making request: %w", testError).Error())
		assert.Nil(t, banks)
	})

	t.Run("successful", func(t *testing.T) {
		successResponse := `{
			"status": true,
			"message": "Banks retrieved",
			"data": [
				{"id": 140, "name": "Absa Bank Limited, South Africa", "code": "632005", "currency": "ZAR", "active": true},
				{"id": 162, "name": "Capitec Bank Limited", "code": "470010", "currency": "ZAR", "active": true}
			]
		}`
		client, httpClientMock := newClientWithMock(t)
		httpClientMock.
			On("Do", mock.Anything).
			Return(&http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(bytes.NewBufferString(successResponse)),
			}, nil).
			Run(func(args mock.Arguments) {
				req, ok := args.Get(0).(*http.Request)
				require.True(t, ok)

				assert.Equal(t, "http://localhost:8080/bank?currency=ZAR&perPage=100", req.URL.String())
				assert.Equal(t, http.MethodGet, req.Method)
			}).
			Once()

		banks, err := client.ListBanks(ctx, "ZAR")
		assert.NoError(t, err)
		require.Len(t, banks, 2)
		assert.Equal(t, "632005", banks[0].Code)
		assert.Equal(t, "Capitec Bank Limited", banks[1].Name)
	})
}
