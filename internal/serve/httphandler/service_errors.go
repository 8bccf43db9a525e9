package httphandler

import (
	"context"
	"errors"
	"net/http"

	"github.com/sebenzapay/escrow-platform-backend/internal/data"
	"github.com/sebenzapay/escrow-platform-backend/internal/serve/httperror"
	"github.com/sebenzapay/escrow-platform-backend/internal/services"
)

// serviceErrorResponse maps the domain sentinels returned by the services
// layer onto their HTTP representation. Unrecognized errors come back as an
// opaque InternalError, which also reports them to the crash tracker; msg is
// only used for that fallback.
func serviceErrorResponse(ctx context.Context, msg string, err error) *httperror.HTTPError {
	switch {
	case errors.Is(err, services.ErrPaymentNotFound),
		errors.Is(err, services.ErrPayoutNotFound),
		errors.Is(err, services.ErrBookingNotFound),
		errors.Is(err, services.ErrBatchNotFound),
		errors.Is(err, services.ErrSettlementNotFound),
		errors.Is(err, data.ErrRecordNotFound):
		return httperror.NotFound(err.Error(), err, nil).WithErrorCode(httperror.ErrorCodeNotFound)

	case errors.Is(err, services.ErrPaymentNotOwned),
		errors.Is(err, services.ErrBookingNotOwned):
		return httperror.Forbidden("", err, nil).WithErrorCode(httperror.ErrorCodeForbidden)

	case errors.Is(err, services.ErrInvalidPaymentStatus):
		return httperror.Conflict(err.Error(), err, nil).WithErrorCode(httperror.ErrorCodeInvalidPaymentStatus)
	case errors.Is(err, services.ErrInvalidPayoutStatus):
		return httperror.Conflict(err.Error(), err, nil).WithErrorCode(httperror.ErrorCodeInvalidPayoutStatus)
	case errors.Is(err, services.ErrInvalidBookingStatus):
		return httperror.Conflict(err.Error(), err, nil).WithErrorCode(httperror.ErrorCodeInvalidBookingStatus)
	case errors.Is(err, services.ErrInvalidBatchStatus):
		return httperror.Conflict(err.Error(), err, nil).WithErrorCode(httperror.ErrorCodeInvalidBatchStatus)
	case errors.Is(err, services.ErrInvalidSettlementStatus):
		return httperror.Conflict(err.Error(), err, nil).WithErrorCode(httperror.ErrorCodeInvalidSettlementStatus)
	case errors.Is(err, services.ErrBookingNotConfirmed):
		return httperror.Conflict(err.Error(), err, nil).WithErrorCode(httperror.ErrorCodeBookingNotConfirmed)
	case errors.Is(err, services.ErrPaymentAlreadyExists):
		return httperror.Conflict(err.Error(), err, nil).WithErrorCode(httperror.ErrorCodePaymentAlreadyExists)
	case errors.Is(err, services.ErrPayoutAlreadyExists):
		return httperror.Conflict(err.Error(), err, nil).WithErrorCode(httperror.ErrorCodePayoutAlreadyExists)

	case errors.Is(err, services.ErrInvalidPaymentMethod):
		return httperror.BadRequest(err.Error(), err, nil).WithErrorCode(httperror.ErrorCodeInvalidPaymentMethod)
	case errors.Is(err, services.ErrInvalidPayoutMethod):
		return httperror.BadRequest(err.Error(), err, nil).WithErrorCode(httperror.ErrorCodeInvalidPayoutMethod)

	case errors.Is(err, services.ErrInsufficientBalance):
		return httperror.UnprocessableEntity(err.Error(), err, nil).WithErrorCode(httperror.ErrorCodeInsufficientBalance)
	case errors.Is(err, services.ErrInsufficientLiquidity):
		return httperror.UnprocessableEntity(err.Error(), err, nil).WithErrorCode(httperror.ErrorCodeInsufficientLiquidity)
	case errors.Is(err, services.ErrAmountMismatch):
		return httperror.UnprocessableEntity(err.Error(), err, nil).WithErrorCode(httperror.ErrorCodeAmountMismatch)
	case errors.Is(err, services.ErrNoPayoutsToExport):
		return httperror.UnprocessableEntity(err.Error(), err, nil).WithErrorCode(httperror.ErrorCodeNoPayoutsToExport)
	case errors.Is(err, services.ErrProviderMissingBankDetails):
		return httperror.UnprocessableEntity(err.Error(), err, nil).WithErrorCode(httperror.ErrorCodeProviderMissingBankDetails)
	case errors.Is(err, services.ErrPayoutExecutionFailed):
		return httperror.UnprocessableEntity(err.Error(), err, nil).WithErrorCode(httperror.ErrorCodePayoutExecutionFailed)

	case errors.Is(err, services.ErrProcessorUnavailable):
		return httperror.NewHTTPError(http.StatusServiceUnavailable, err.Error(), err, nil).
			WithErrorCode(httperror.ErrorCodeProcessorUnavailable)

	default:
		return httperror.InternalError(ctx, msg, err, nil)
	}
}
