package httphandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stellar/go-stellar-sdk/support/http/httpdecode"
	"github.com/stellar/go-stellar-sdk/support/log"
	"github.com/stellar/go-stellar-sdk/support/render/httpjson"

	"github.com/sebenzapay/escrow-platform-backend/internal/data"
	"github.com/sebenzapay/escrow-platform-backend/internal/monitor"
	"github.com/sebenzapay/escrow-platform-backend/internal/serve/auth"
	"github.com/sebenzapay/escrow-platform-backend/internal/serve/httperror"
	"github.com/sebenzapay/escrow-platform-backend/internal/serve/httpresponse"
	"github.com/sebenzapay/escrow-platform-backend/internal/serve/validators"
	"github.com/sebenzapay/escrow-platform-backend/internal/services"
)

type PaymentsHandler struct {
	PaymentIntentService     *services.PaymentIntentService
	PaymentManagementService *services.PaymentManagementService
	CashPaymentService       *services.CashPaymentService
	MonitorService           monitor.MonitorServiceInterface
	ProcessorPublicKey       string
	Currency                 string
}

// GetPaymentsConfig returns what a checkout front end needs to start a card
// payment: the processor's publishable key and the platform currency.
func (p PaymentsHandler) GetPaymentsConfig(w http.ResponseWriter, r *http.Request) {
	config := map[string]string{
		"processor_public_key": p.ProcessorPublicKey,
		"currency":             p.Currency,
	}
	httpjson.RenderStatus(w, http.StatusOK, config, httpjson.JSON)
}

type PostPaymentIntentRequest struct {
	BookingID     string `json:"booking_id"`
	PaymentMethod string `json:"payment_method"`
}

func (p PaymentsHandler) validateIntentRequest(req PostPaymentIntentRequest) (data.PaymentMethod, *validators.Validator) {
	v := validators.NewValidator()

	v.Check(req.BookingID != "", "booking_id", "booking_id is required")
	v.Check(req.PaymentMethod != "", "payment_method", "payment_method is required")

	var method data.PaymentMethod
	if req.PaymentMethod != "" {
		var err error
		method, err = data.ToPaymentMethod(req.PaymentMethod)
		v.CheckError(err, "payment_method", "invalid payment method. valid values are: CARD, CASH")
	}

	return method, v
}

func (p PaymentsHandler) PostPaymentIntent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := auth.UserFromContext(ctx)
	if err != nil {
		httperror.Unauthorized("", err, nil).Render(w)
		return
	}

	var reqBody PostPaymentIntentRequest
	if err = httpdecode.DecodeJSON(r, &reqBody); err != nil {
		httperror.BadRequest("", err, nil).Render(w)
		return
	}

	method, v := p.validateIntentRequest(reqBody)
	if v.HasErrors() {
		httperror.BadRequest("Request invalid", nil, v.Errors).Render(w)
		return
	}

	payment, existing, err := p.PaymentIntentService.CreateIntent(ctx, services.CreateIntentRequest{
		BookingID:   reqBody.BookingID,
		ClientID:    user.ID,
		ClientEmail: user.Email,
		Method:      method,
	})
	if err != nil {
		serviceErrorResponse(ctx, "Cannot create payment intent", err).Render(w)
		return
	}

	// A re-post of an intent that is already open returns the live payment
	// without counting it again.
	if existing {
		httpjson.RenderStatus(w, http.StatusOK, payment, httpjson.JSON)
		return
	}

	labels := monitor.PaymentLabels{
		PaymentMethod: string(payment.PaymentMethod),
		Currency:      payment.Currency,
	}
	if monitorErr := p.MonitorService.MonitorCounters(monitor.PaymentsCounterTag, labels.ToMap()); monitorErr != nil {
		log.Ctx(ctx).Errorf("Error trying to monitor payments counter: %s", monitorErr)
	}

	httpjson.RenderStatus(w, http.StatusCreated, payment, httpjson.JSON)
}

// GetPayments returns a paginated list of payments.
func (p PaymentsHandler) GetPayments(w http.ResponseWriter, r *http.Request) {
	validator := validators.NewPaymentQueryValidator()
	queryParams := validator.ParseParametersFromRequest(r)

	if validator.HasErrors() {
		httperror.BadRequest("Request invalid", nil, validator.Errors).Render(w)
		return
	}

	queryParams.Filters = validator.ValidateAndGetPaymentFilters(queryParams.Filters)
	if validator.HasErrors() {
		httperror.BadRequest("Request invalid", nil, validator.Errors).Render(w)
		return
	}

	ctx := r.Context()

	result, err := p.PaymentManagementService.GetPaymentsWithCount(ctx, queryParams)
	if err != nil {
		httperror.InternalError(ctx, "Cannot retrieve payments", err, nil).Render(w)
		return
	}
	if result.Total == 0 {
		httpjson.RenderStatus(w, http.StatusOK, httpresponse.NewEmptyPaginatedResponse(), httpjson.JSON)
	} else {
		response, errGet := httpresponse.NewPaginatedResponse(r, result.Result, queryParams.Page, queryParams.PageLimit, result.Total)
		if errGet != nil {
			httperror.InternalError(ctx, "Cannot create paginated payments response", errGet, nil).Render(w)
			return
		}
		httpjson.RenderStatus(w, http.StatusOK, response, httpjson.JSON)
	}
}

func (p PaymentsHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	paymentID := chi.URLParam(r, "id")

	user, err := auth.UserFromContext(ctx)
	if err != nil {
		httperror.Unauthorized("", err, nil).Render(w)
		return
	}

	payment, err := p.PaymentManagementService.GetPayment(ctx, paymentID)
	if err != nil {
		serviceErrorResponse(ctx, "Cannot retrieve payment", err).Render(w)
		return
	}

	if !user.HasAnyRole(data.AdminUserRole.String()) && payment.ClientID != user.ID && payment.ProviderID != user.ID {
		httperror.Forbidden("", nil, nil).WithErrorCode(httperror.ErrorCodeForbidden).Render(w)
		return
	}

	httpjson.RenderStatus(w, http.StatusOK, payment, httpjson.JSON)
}

type CashAmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (req CashAmountRequest) validate() *httperror.HTTPError {
	v := validators.NewValidator()
	v.Check(req.Amount.IsPositive(), "amount", "amount must be greater than zero")
	if v.HasErrors() {
		return httperror.BadRequest("Request invalid", nil, v.Errors)
	}
	return nil
}

// PostCashClaim records the client side of a cash hand-over: "I paid this
// much in person". The payment stays out of the ledger until the provider
// confirms receipt.
func (p PaymentsHandler) PostCashClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	paymentID := chi.URLParam(r, "id")

	user, err := auth.UserFromContext(ctx)
	if err != nil {
		httperror.Unauthorized("", err, nil).Render(w)
		return
	}

	var reqBody CashAmountRequest
	if err = httpdecode.DecodeJSON(r, &reqBody); err != nil {
		httperror.BadRequest("", err, nil).Render(w)
		return
	}
	if httpErr := reqBody.validate(); httpErr != nil {
		httpErr.Render(w)
		return
	}

	payment, err := p.CashPaymentService.MarkCashPaid(ctx, paymentID, user.ID, reqBody.Amount)
	if err != nil {
		serviceErrorResponse(ctx, "Cannot mark payment as cash paid", err).Render(w)
		return
	}

	httpjson.RenderStatus(w, http.StatusOK, payment, httpjson.JSON)
}

// PostCashConfirm records the provider side of a cash hand-over and settles
// the payment on the books.
func (p PaymentsHandler) PostCashConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	paymentID := chi.URLParam(r, "id")

	user, err := auth.UserFromContext(ctx)
	if err != nil {
		httperror.Unauthorized("", err, nil).Render(w)
		return
	}

	var reqBody CashAmountRequest
	if err = httpdecode.DecodeJSON(r, &reqBody); err != nil {
		httperror.BadRequest("", err, nil).Render(w)
		return
	}
	if httpErr := reqBody.validate(); httpErr != nil {
		httpErr.Render(w)
		return
	}

	payment, err := p.CashPaymentService.ConfirmCashReceived(ctx, paymentID, user.ID, reqBody.Amount)
	if err != nil {
		serviceErrorResponse(ctx, "Cannot confirm cash received", err).Render(w)
		return
	}

	httpjson.RenderStatus(w, http.StatusOK, payment, httpjson.JSON)
}

type RefundPaymentRequest struct {
	Reason string `json:"reason"`
}

func (p PaymentsHandler) PostRefund(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	paymentID := chi.URLParam(r, "id")

	user, err := auth.UserFromContext(ctx)
	if err != nil {
		httperror.Unauthorized("", err, nil).Render(w)
		return
	}

	var reqBody RefundPaymentRequest
	if err = httpdecode.DecodeJSON(r, &reqBody); err != nil {
		httperror.BadRequest("", err, nil).Render(w)
		return
	}

	v := validators.NewValidator()
	v.Check(reqBody.Reason != "", "reason", "reason is required")
	if v.HasErrors() {
		httperror.BadRequest("Request invalid", nil, v.Errors).Render(w)
		return
	}

	payment, err := p.PaymentManagementService.RefundPayment(ctx, paymentID, reqBody.Reason, user.ID)
	if err != nil {
		serviceErrorResponse(ctx, "Cannot refund payment", err).Render(w)
		return
	}

	httpjson.RenderStatus(w, http.StatusOK, payment, httpjson.JSON)
}
