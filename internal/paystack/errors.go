package paystack

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// APIError represents the error response from the Paystack API.
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	// StatusCode is the HTTP status code.
	StatusCode int `json:"status_code,omitempty"`
}

// Error implements the error interface for APIError.
func (e APIError) Error() string {
	return fmt.Sprintf("APIError: Code=%s, Message=%s, StatusCode=%d", e.Code, e.Message, e.StatusCode)
}

// IsClientError reports whether the API rejected the request outright, as
// opposed to a transient processor failure.
func (e APIError) IsClientError() bool {
	return e.StatusCode >= http.StatusBadRequest && e.StatusCode < http.StatusInternalServerError
}

// parseAPIError parses the error response from the Paystack API.
// https://paystack.com/docs/api/#errors.
func parseAPIError(resp *http.Response) (*APIError, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading error response body: %w", err)
	}
	defer resp.Body.Close()

	var apiErr APIError
	if err = json.Unmarshal(body, &apiErr); err != nil {
		return nil, fmt.Errorf("unmarshalling error response body: %w", err)
	}
	apiErr.StatusCode = resp.StatusCode

	return &apiErr, nil
}
