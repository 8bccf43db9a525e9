package httphandler

import (
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/stellar/go-stellar-sdk/support/http/httpdecode"
	"github.com/stellar/go-stellar-sdk/support/log"
	"github.com/stellar/go-stellar-sdk/support/render/httpjson"

	"github.com/sebenzapay/escrow-platform-backend/db"
	"github.com/sebenzapay/escrow-platform-backend/internal/data"
	"github.com/sebenzapay/escrow-platform-backend/internal/monitor"
	"github.com/sebenzapay/escrow-platform-backend/internal/serve/auth"
	"github.com/sebenzapay/escrow-platform-backend/internal/serve/httperror"
	"github.com/sebenzapay/escrow-platform-backend/internal/serve/httpresponse"
	"github.com/sebenzapay/escrow-platform-backend/internal/serve/validators"
	"github.com/sebenzapay/escrow-platform-backend/internal/services"
)

// LedgerHandler exposes the double-entry books to operators: balances,
// entry listings, manual bank-funding adjustments and the accounting
// invariant check.
type LedgerHandler struct {
	Models            *data.Models
	DBConnectionPool  db.DBConnectionPool
	SettlementService *services.SettlementService
	MonitorService    monitor.MonitorServiceInterface
}

type LedgerBalanceResponse struct {
	AccountType data.LedgerAccountType `json:"account_type"`
	AccountID   string                 `json:"account_id"`
	Balance     decimal.Decimal        `json:"balance"`
}

func (l LedgerHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accountType := data.LedgerAccountType(r.URL.Query().Get("account_type"))
	accountID := r.URL.Query().Get("account_id")

	v := validators.NewValidator()
	v.CheckError(accountType.Validate(), "account_type", "invalid parameter. valid values are: PROVIDER_BALANCE, PLATFORM_REVENUE, BANK_ACCOUNT, SETTLEMENT")
	v.Check(accountID != "", "account_id", "account_id is required")
	if v.HasErrors() {
		httperror.BadRequest("Request invalid", nil, v.Errors).Render(w)
		return
	}

	balance, err := l.Models.LedgerEntries.Balance(ctx, l.DBConnectionPool, accountType, accountID)
	if err != nil {
		httperror.InternalError(ctx, "Cannot compute ledger balance", err, nil).Render(w)
		return
	}

	response := LedgerBalanceResponse{
		AccountType: accountType,
		AccountID:   accountID,
		Balance:     balance,
	}
	httpjson.RenderStatus(w, http.StatusOK, response, httpjson.JSON)
}

// GetEntries lists ledger entries either by reference (every leg a payment
// or payout posted) or by account (one account's statement, paginated).
func (l LedgerHandler) GetEntries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	if query.Get("reference_type") != "" || query.Get("reference_id") != "" {
		referenceType := data.LedgerReferenceType(query.Get("reference_type"))
		referenceID := query.Get("reference_id")

		v := validators.NewValidator()
		v.CheckError(referenceType.Validate(), "reference_type", "invalid parameter. valid values are: PAYMENT, PAYOUT, ADJUSTMENT")
		v.Check(referenceID != "", "reference_id", "reference_id is required")
		if v.HasErrors() {
			httperror.BadRequest("Request invalid", nil, v.Errors).Render(w)
			return
		}

		entries, err := l.Models.LedgerEntries.GetByReference(ctx, l.DBConnectionPool, referenceType, referenceID)
		if err != nil {
			httperror.InternalError(ctx, "Cannot retrieve ledger entries", err, nil).Render(w)
			return
		}
		httpjson.RenderStatus(w, http.StatusOK, entries, httpjson.JSON)
		return
	}

	accountType := data.LedgerAccountType(query.Get("account_type"))
	accountID := query.Get("account_id")

	validator := validators.NewLedgerEntryQueryValidator()
	queryParams := validator.ParseParametersFromRequest(r)
	validator.CheckError(accountType.Validate(), "account_type", "invalid parameter. valid values are: PROVIDER_BALANCE, PLATFORM_REVENUE, BANK_ACCOUNT, SETTLEMENT")
	validator.Check(accountID != "", "account_id", "account_id is required")
	if validator.HasErrors() {
		httperror.BadRequest("Request invalid", nil, validator.Errors).Render(w)
		return
	}

	total, err := l.Models.LedgerEntries.CountByAccount(ctx, l.DBConnectionPool, accountType, accountID)
	if err != nil {
		httperror.InternalError(ctx, "Cannot count ledger entries", err, nil).Render(w)
		return
	}
	if total == 0 {
		httpjson.RenderStatus(w, http.StatusOK, httpresponse.NewEmptyPaginatedResponse(), httpjson.JSON)
		return
	}

	entries, err := l.Models.LedgerEntries.GetByAccount(ctx, l.DBConnectionPool, accountType, accountID, queryParams)
	if err != nil {
		httperror.InternalError(ctx, "Cannot retrieve ledger entries", err, nil).Render(w)
		return
	}

	response, err := httpresponse.NewPaginatedResponse(r, entries, queryParams.Page, queryParams.PageLimit, total)
	if err != nil {
		httperror.InternalError(ctx, "Cannot create paginated ledger entries response", err, nil).Render(w)
		return
	}
	httpjson.RenderStatus(w, http.StatusOK, response, httpjson.JSON)
}

type PostAdjustmentRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// PostAdjustment records a manual bank funding entry pair. This is the only
// write the ledger accepts outside the payment and payout flows.
func (l LedgerHandler) PostAdjustment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := auth.UserFromContext(ctx)
	if err != nil {
		httperror.Unauthorized("", err, nil).Render(w)
		return
	}

	var reqBody PostAdjustmentRequest
	if err = httpdecode.DecodeJSON(r, &reqBody); err != nil {
		httperror.BadRequest("", err, nil).Render(w)
		return
	}

	v := validators.NewValidator()
	v.Check(reqBody.Amount.IsPositive(), "amount", "amount must be greater than zero")
	v.Check(reqBody.Description != "", "description", "description is required")
	if v.HasErrors() {
		httperror.BadRequest("Request invalid", nil, v.Errors).Render(w)
		return
	}

	referenceID, err := l.SettlementService.RecordBankFunding(ctx, reqBody.Amount, reqBody.Description, user.ID)
	if err != nil {
		serviceErrorResponse(ctx, "Cannot record ledger adjustment", err).Render(w)
		return
	}

	httpjson.RenderStatus(w, http.StatusCreated, map[string]string{"reference_id": referenceID}, httpjson.JSON)
}

type LedgerVerifyResponse struct {
	*data.LedgerInvariantReport
	Duplicates []data.LedgerEntry `json:"duplicates,omitempty"`
}

// GetVerify runs the accounting invariant over the whole book. When a
// specific reference is queried it also reports duplicate legs for it.
func (l LedgerHandler) GetVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	report, err := l.Models.LedgerEntries.VerifyInvariant(ctx, l.DBConnectionPool)
	if err != nil {
		httperror.InternalError(ctx, "Cannot verify ledger invariant", err, nil).Render(w)
		return
	}

	if !report.Valid {
		if monitorErr := l.MonitorService.MonitorCounters(monitor.LedgerOutOfBalanceCounterTag, nil); monitorErr != nil {
			log.Ctx(ctx).Errorf("Error trying to monitor ledger out-of-balance counter: %s", monitorErr)
		}
	}

	response := LedgerVerifyResponse{LedgerInvariantReport: report}

	query := r.URL.Query()
	if query.Get("reference_type") != "" && query.Get("reference_id") != "" {
		duplicates, dupErr := l.Models.LedgerEntries.VerifyNoDuplicates(ctx, l.DBConnectionPool,
			data.LedgerReferenceType(query.Get("reference_type")), query.Get("reference_id"))
		if dupErr != nil {
			httperror.InternalError(ctx, "Cannot verify ledger duplicates", dupErr, nil).Render(w)
			return
		}
		response.Duplicates = duplicates
	}

	httpjson.RenderStatus(w, http.StatusOK, response, httpjson.JSON)
}
