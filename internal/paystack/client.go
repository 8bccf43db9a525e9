package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/avast/retry-go/v4"

	"github.com/sebenzapay/escrow-platform-backend/internal/serve/httpclient"
)

const (
	transactionInitializePath = "/transaction/initialize"
	transactionVerifyPath     = "/transaction/verify"
	transferRecipientPath     = "/transferrecipient"
	transferPath              = "/transfer"
	bankPath                  = "/bank"
)

// maxRequestAttempts bounds the retry loop around each outbound call.
const maxRequestAttempts = 4

// ClientInterface defines the interface for interacting with the Paystack API.
type ClientInterface interface {
	InitializeTransaction(ctx context.Context, txReq InitializeTransactionRequest) (*InitializedTransaction, error)
	VerifyTransaction(ctx context.Context, reference string) (*TransactionVerification, error)
	CreateTransferRecipient(ctx context.Context, recipientReq TransferRecipientRequest) (*TransferRecipient, error)
	InitiateTransfer(ctx context.Context, transferReq TransferRequest) (*Transfer, error)
	ListBanks(ctx context.Context, currency string) ([]Bank, error)
}

// Client provides methods to interact with the Paystack API.
type Client struct {
	BasePath   string
	SecretKey  string
	httpClient httpclient.HTTPClientInterface
}

// NewClient creates a new instance of Paystack Client.
func NewClient(basePath, secretKey string) *Client {
	return &Client{
		BasePath:   basePath,
		SecretKey:  secretKey,
		httpClient: httpclient.DefaultClient(),
	}
}

// InitializeTransaction creates a pending charge and returns the URL the
// payer is redirected to.
// https://paystack.com/docs/api/transaction/#initialize.
func (client *Client) InitializeTransaction(ctx context.Context, txReq InitializeTransactionRequest) (*InitializedTransaction, error) {
	err := txReq.validate()
	if err != nil {
		return nil, fmt.Errorf("validating initialize transaction request: %w", err)
	}

	u, err := url.JoinPath(client.BasePath, transactionInitializePath)
	if err != nil {
		return nil, fmt.Errorf("building path: %w", err)
	}

	txData, err := json.Marshal(txReq)
	if err != nil {
		return nil, err
	}

	resp, err := client.request(ctx, u, http.MethodPost, txData)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}

	return parseResponseData[InitializedTransaction](resp)
}

// VerifyTransaction fetches the authoritative state of a charge by its
// reference.
// https://paystack.com/docs/api/transaction/#verify.
func (client *Client) VerifyTransaction(ctx context.Context, reference string) (*TransactionVerification, error) {
	if reference == "" {
		return nil, fmt.Errorf("reference must be provided")
	}

	u, err := url.JoinPath(client.BasePath, transactionVerifyPath, reference)
	if err != nil {
		return nil, fmt.Errorf("building path: %w", err)
	}

	resp, err := client.request(ctx, u, http.MethodGet, nil)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}

	return parseResponseData[TransactionVerification](resp)
}

// CreateTransferRecipient registers a provider's bank account as a transfer
// beneficiary and returns its recipient code.
// https://paystack.com/docs/api/transfer-recipient/#create.
func (client *Client) CreateTransferRecipient(ctx context.Context, recipientReq TransferRecipientRequest) (*TransferRecipient, error) {
	err := recipientReq.validate()
	if err != nil {
		return nil, fmt.Errorf("validating transfer recipient request: %w", err)
	}

	u, err := url.JoinPath(client.BasePath, transferRecipientPath)
	if err != nil {
		return nil, fmt.Errorf("building path: %w", err)
	}

	recipientData, err := json.Marshal(recipientReq)
	if err != nil {
		return nil, err
	}

	resp, err := client.request(ctx, u, http.MethodPost, recipientData)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}

	return parseResponseData[TransferRecipient](resp)
}

// InitiateTransfer starts a payout transfer to a stored recipient. The final
// state arrives asynchronously through transfer.* webhooks.
// https://paystack.com/docs/api/transfer/#initiate.
func (client *Client) InitiateTransfer(ctx context.Context, transferReq TransferRequest) (*Transfer, error) {
	err := transferReq.validate()
	if err != nil {
		return nil, fmt.Errorf("validating transfer request: %w", err)
	}

	u, err := url.JoinPath(client.BasePath, transferPath)
	if err != nil {
		return nil, fmt.Errorf("building path: %w", err)
	}

	transferData, err := json.Marshal(transferReq)
	if err != nil {
		return nil, err
	}

	resp, err := client.request(ctx, u, http.MethodPost, transferData)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}

	return parseResponseData[Transfer](resp)
}

// ListBanks fetches the bank directory for a currency.
// https://paystack.com/docs/api/miscellaneous/#bank.
func (client *Client) ListBanks(ctx context.Context, currency string) ([]Bank, error) {
	u, err := url.JoinPath(client.BasePath, bankPath)
	if err != nil {
		return nil, fmt.Errorf("building path: %w", err)
	}
	u = fmt.Sprintf("%s?currency=%s&perPage=100", u, url.QueryEscape(currency))

	resp, err := client.request(ctx, u, http.MethodGet, nil)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}

	banks, err := parseResponseData[[]Bank](resp)
	if err != nil {
		return nil, err
	}

	return *banks, nil
}

// request makes an HTTP request to the Paystack API, retrying transient
// failures with exponential backoff. API rejections (4xx) are returned as an
// *APIError without retrying.
func (client *Client) request(ctx context.Context, u string, method string, body []byte) (*http.Response, error) {
	var resp *http.Response

	err := retry.Do(
		func() error {
			var reqBody io.Reader
			if body != nil {
				reqBody = bytes.NewReader(body)
			}

			req, reqErr := http.NewRequestWithContext(ctx, method, u, reqBody)
			if reqErr != nil {
				return retry.Unrecoverable(reqErr)
			}

			req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", client.SecretKey))
			if body != nil {
				req.Header.Set("Content-Type", "application/json")
			}

			var doErr error
			resp, doErr = client.httpClient.Do(req)
			if doErr != nil {
				return doErr
			}

			if resp.StatusCode >= http.StatusBadRequest && resp.StatusCode < http.StatusInternalServerError {
				apiError, parseErr := parseAPIError(resp)
				if parseErr != nil {
					return retry.Unrecoverable(fmt.Errorf("parsing API error: %w", parseErr))
				}
				return retry.Unrecoverable(fmt.Errorf("API error: %w", apiError))
			}

			if resp.StatusCode >= http.StatusInternalServerError {
				resp.Body.Close()
				return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
			}

			return nil
		},
		retry.Attempts(maxRequestAttempts),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}

	return resp, nil
}

// parseResponseData unwraps Paystack's {status, message, data} envelope.
func parseResponseData[T any](resp *http.Response) (*T, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	var envelope struct {
		Status  bool            `json:"status"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err = json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("unmarshalling response body: %w", err)
	}

	if !envelope.Status {
		return nil, fmt.Errorf("request was not successful: %s", envelope.Message)
	}

	var data T
	if err = json.Unmarshal(envelope.Data, &data); err != nil {
		return nil, fmt.Errorf("unmarshalling response data: %w", err)
	}

	return &data, nil
}

var _ ClientInterface = (*Client)(nil)
