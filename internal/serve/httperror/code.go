package httperror

// Error codes returned in the error_code field of error responses. API
// clients are expected to switch on these rather than parse the
// human-readable message, which may change.
const (
	// Request shape.
	ErrorCodeValidationError    = "validation_error"
	ErrorCodeInvalidRequestBody = "invalid_request_body"

	// Authentication and authorization.
	ErrorCodeInvalidToken     = "invalid_token"
	ErrorCodeInvalidSignature = "invalid_signature"
	ErrorCodeForbidden        = "forbidden"
	ErrorCodeNotFound         = "not_found"

	// Lifecycle conflicts: the resource exists but its current status does
	// not allow the operation.
	ErrorCodeInvalidPaymentStatus    = "invalid_payment_status"
	ErrorCodeInvalidPayoutStatus     = "invalid_payout_status"
	ErrorCodeInvalidBookingStatus    = "invalid_booking_status"
	ErrorCodeInvalidBatchStatus      = "invalid_batch_status"
	ErrorCodeInvalidSettlementStatus = "invalid_settlement_status"
	ErrorCodeBookingNotConfirmed     = "booking_not_confirmed"
	ErrorCodePaymentAlreadyExists    = "payment_already_exists"
	ErrorCodePayoutAlreadyExists     = "payout_already_exists"

	// Domain rejections: the request is well formed but the books or the
	// resource reject it.
	ErrorCodeInvalidPaymentMethod       = "invalid_payment_method"
	ErrorCodeInvalidPayoutMethod        = "invalid_payout_method"
	ErrorCodeInsufficientBalance        = "insufficient_balance"
	ErrorCodeInsufficientLiquidity      = "insufficient_liquidity"
	ErrorCodeAmountMismatch             = "amount_mismatch"
	ErrorCodeNoPayoutsToExport          = "no_payouts_to_export"
	ErrorCodeProviderMissingBankDetails = "provider_missing_bank_details"

	// Upstream failures.
	ErrorCodeProcessorUnavailable  = "processor_unavailable"
	ErrorCodePayoutExecutionFailed = "payout_execution_failed"
)
