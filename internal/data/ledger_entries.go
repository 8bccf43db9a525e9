package data

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/sebenzapay/escrow-platform-backend/db"
)

// PlatformAccountID is the accountID under which platform-owned revenue and
// settlement entries are posted.
const PlatformAccountID = "PLATFORM"

type LedgerAccountType string

const (
	ProviderBalanceAccountType LedgerAccountType = "PROVIDER_BALANCE"
	PlatformRevenueAccountType LedgerAccountType = "PLATFORM_REVENUE"
	BankAccountAccountType     LedgerAccountType = "BANK_ACCOUNT"
	SettlementAccountType      LedgerAccountType = "SETTLEMENT"
)

func (t LedgerAccountType) Validate() error {
	switch t {
	case ProviderBalanceAccountType, PlatformRevenueAccountType, BankAccountAccountType, SettlementAccountType:
		return nil
	default:
		return fmt.Errorf("invalid ledger account type: %s", t)
	}
}

type LedgerEntryType string

const (
	CreditLedgerEntryType LedgerEntryType = "CREDIT"
	DebitLedgerEntryType  LedgerEntryType = "DEBIT"
)

func (t LedgerEntryType) Validate() error {
	switch t {
	case CreditLedgerEntryType, DebitLedgerEntryType:
		return nil
	default:
		return fmt.Errorf("invalid ledger entry type: %s", t)
	}
}

type LedgerReferenceType string

const (
	PaymentLedgerReferenceType    LedgerReferenceType = "PAYMENT"
	PayoutLedgerReferenceType     LedgerReferenceType = "PAYOUT"
	AdjustmentLedgerReferenceType LedgerReferenceType = "ADJUSTMENT"
)

func (t LedgerReferenceType) Validate() error {
	switch t {
	case PaymentLedgerReferenceType, PayoutLedgerReferenceType, AdjustmentLedgerReferenceType:
		return nil
	default:
		return fmt.Errorf("invalid ledger reference type: %s", t)
	}
}

// LedgerEntry is one append-only monetary event. Rows are never updated or
// deleted; the (reference_type, reference_id, account_type, account_id,
// entry_type) tuple is the idempotency key that makes double-posting a
// constraint violation instead of a money bug.
type LedgerEntry struct {
	ID            string              `json:"id" db:"id"`
	AccountType   LedgerAccountType   `json:"account_type" db:"account_type"`
	AccountID     string              `json:"account_id" db:"account_id"`
	EntryType     LedgerEntryType     `json:"entry_type" db:"entry_type"`
	Amount        decimal.Decimal     `json:"amount" db:"amount"`
	Currency      string              `json:"currency" db:"currency"`
	ReferenceType LedgerReferenceType `json:"reference_type" db:"reference_type"`
	ReferenceID   string              `json:"reference_id" db:"reference_id"`
	Description   string              `json:"description,omitempty" db:"description"`
	CreatedAt     time.Time           `json:"created_at" db:"created_at"`
}

type LedgerEntryInsert struct {
	AccountType   LedgerAccountType   `db:"account_type"`
	AccountID     string              `db:"account_id"`
	EntryType     LedgerEntryType     `db:"entry_type"`
	Amount        decimal.Decimal     `db:"amount"`
	Currency      string              `db:"currency"`
	ReferenceType LedgerReferenceType `db:"reference_type"`
	ReferenceID   string              `db:"reference_id"`
	Description   string              `db:"description"`
}

func (lei *LedgerEntryInsert) Validate() error {
	if err := lei.AccountType.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(lei.AccountID) == "" {
		return fmt.Errorf("account_id is required")
	}
	if err := lei.EntryType.Validate(); err != nil {
		return err
	}
	if !lei.Amount.IsPositive() {
		return fmt.Errorf("amount %s: %w", lei.Amount, ErrInvalidLedgerAmount)
	}
	if err := lei.ReferenceType.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(lei.ReferenceID) == "" {
		return fmt.Errorf("reference_id is required")
	}
	return nil
}

// LedgerReferenceBalance is the per-reference credit/debit roll-up used by
// the accounting invariant report.
type LedgerReferenceBalance struct {
	ReferenceType LedgerReferenceType `json:"reference_type" db:"reference_type"`
	ReferenceID   string              `json:"reference_id" db:"reference_id"`
	Credits       decimal.Decimal     `json:"credits" db:"credits"`
	Debits        decimal.Decimal     `json:"debits" db:"debits"`
}

// LedgerInvariantReport is the result of VerifyInvariant: Valid when every
// terminal reference balances.
type LedgerInvariantReport struct {
	Valid        bool                     `json:"valid"`
	TotalCredits decimal.Decimal          `json:"total_credits"`
	TotalDebits  decimal.Decimal          `json:"total_debits"`
	Breakdown    []LedgerReferenceBalance `json:"breakdown,omitempty"`
}

type LedgerEntryModel struct {
	dbConnectionPool db.DBConnectionPool
}

// Record appends the given entries atomically within the caller's executer.
// A collision on the idempotency key surfaces as ErrDuplicateLedgerEntry so
// the caller can decide whether the retry is benign.
func (m *LedgerEntryModel) Record(ctx context.Context, sqlExec db.SQLExecuter, inserts ...LedgerEntryInsert) error {
	if len(inserts) == 0 {
		return fmt.Errorf("no ledger entries to record: %w", ErrMissingInput)
	}
	for i, insert := range inserts {
		if err := insert.Validate(); err != nil {
			return fmt.Errorf("validating ledger entry %d: %w", i, err)
		}
	}

	const query = `
		INSERT INTO ledger_entries (
			account_type, account_id, entry_type, amount, currency,
			reference_type, reference_id, description
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''))
	`

	for _, insert := range inserts {
		currency := insert.Currency
		if currency == "" {
			currency = "ZAR"
		}
		_, err := sqlExec.ExecContext(ctx, query,
			insert.AccountType, insert.AccountID, insert.EntryType, insert.Amount, currency,
			insert.ReferenceType, insert.ReferenceID, insert.Description)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" {
				return fmt.Errorf("recording ledger entry for %s %s: %w", insert.ReferenceType, insert.ReferenceID, ErrDuplicateLedgerEntry)
			}
			return fmt.Errorf("recording ledger entry for %s %s: %w", insert.ReferenceType, insert.ReferenceID, err)
		}
	}

	return nil
}

// Balance returns credits minus debits for the account, at whatever snapshot
// the given executer sees. Callers that need the value to hold until commit
// must run this inside a serializable transaction.
func (m *LedgerEntryModel) Balance(ctx context.Context, sqlExec db.SQLExecuter, accountType LedgerAccountType, accountID string) (decimal.Decimal, error) {
	if err := accountType.Validate(); err != nil {
		return decimal.Zero, err
	}

	const query = `
		SELECT COALESCE(SUM(CASE WHEN entry_type = 'CREDIT' THEN amount ELSE -amount END), 0)
		FROM ledger_entries
		WHERE account_type = $1
		AND account_id = $2
	`

	var balance decimal.Decimal
	err := sqlExec.GetContext(ctx, &balance, query, accountType, accountID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("computing balance for %s %s: %w", accountType, accountID, err)
	}

	return balance, nil
}

// GetByReference returns every entry posted under the given reference, oldest first.
func (m *LedgerEntryModel) GetByReference(ctx context.Context, sqlExec db.SQLExecuter, referenceType LedgerReferenceType, referenceID string) ([]LedgerEntry, error) {
	if err := referenceType.Validate(); err != nil {
		return nil, err
	}

	entries := []LedgerEntry{}
	const query = `
		SELECT
			le.id, le.account_type, le.account_id, le.entry_type, le.amount, le.currency,
			le.reference_type, le.reference_id, COALESCE(le.description, '') AS description, le.created_at
		FROM ledger_entries le
		WHERE le.reference_type = $1
		AND le.reference_id = $2
		ORDER BY le.created_at, le.id
	`

	err := sqlExec.SelectContext(ctx, &entries, query, referenceType, referenceID)
	if err != nil {
		return nil, fmt.Errorf("querying ledger entries for %s %s: %w", referenceType, referenceID, err)
	}

	return entries, nil
}

// GetByAccount returns the account's entries, newest first, paginated.
func (m *LedgerEntryModel) GetByAccount(ctx context.Context, sqlExec db.SQLExecuter, accountType LedgerAccountType, accountID string, queryParams *QueryParams) ([]LedgerEntry, error) {
	if err := accountType.Validate(); err != nil {
		return nil, err
	}

	entries := []LedgerEntry{}
	baseQuery := `
		SELECT
			le.id, le.account_type, le.account_id, le.entry_type, le.amount, le.currency,
			le.reference_type, le.reference_id, COALESCE(le.description, '') AS description, le.created_at
		FROM ledger_entries le
	`

	qb := NewQueryBuilder(baseQuery)
	qb.AddCondition("le.account_type = ?", accountType)
	qb.AddCondition("le.account_id = ?", accountID)
	qb.AddSorting(SortFieldCreatedAt, SortOrderDESC, "le")
	qb.AddPagination(queryParams.Page, queryParams.PageLimit)
	query, params := qb.BuildAndRebind(sqlExec)

	err := sqlExec.SelectContext(ctx, &entries, query, params...)
	if err != nil {
		return nil, fmt.Errorf("querying ledger entries for account %s %s: %w", accountType, accountID, err)
	}

	return entries, nil
}

// CountByAccount returns the number of entries for the account.
func (m *LedgerEntryModel) CountByAccount(ctx context.Context, sqlExec db.SQLExecuter, accountType LedgerAccountType, accountID string) (int, error) {
	var count int
	const query = `SELECT count(*) FROM ledger_entries WHERE account_type = $1 AND account_id = $2`

	err := sqlExec.GetContext(ctx, &count, query, accountType, accountID)
	if err != nil {
		return 0, fmt.Errorf("counting ledger entries for account %s %s: %w", accountType, accountID, err)
	}

	return count, nil
}

// VerifyInvariant checks the accounting identity: for every reference whose
// owning row reached a terminal state, credits must equal debits. References
// still in flight (an escrowed payment waiting for its payout) legitimately
// carry an open credit and are excluded.
func (m *LedgerEntryModel) VerifyInvariant(ctx context.Context, sqlExec db.SQLExecuter) (*LedgerInvariantReport, error) {
	report := LedgerInvariantReport{}

	const totalsQuery = `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE entry_type = 'CREDIT'), 0) AS credits,
			COALESCE(SUM(amount) FILTER (WHERE entry_type = 'DEBIT'), 0) AS debits
		FROM ledger_entries
	`

	totals := LedgerReferenceBalance{}
	err := sqlExec.GetContext(ctx, &totals, totalsQuery)
	if err != nil {
		return nil, fmt.Errorf("computing ledger totals: %w", err)
	}
	report.TotalCredits = totals.Credits
	report.TotalDebits = totals.Debits

	const mismatchQuery = `
		WITH per_reference AS (
			SELECT
				reference_type,
				reference_id,
				COALESCE(SUM(amount) FILTER (WHERE entry_type = 'CREDIT'), 0) AS credits,
				COALESCE(SUM(amount) FILTER (WHERE entry_type = 'DEBIT'), 0) AS debits
			FROM ledger_entries
			GROUP BY reference_type, reference_id
		)
		SELECT pr.reference_type, pr.reference_id, pr.credits, pr.debits
		FROM per_reference pr
		LEFT JOIN payments p ON pr.reference_type = 'PAYMENT' AND p.id = pr.reference_id
		LEFT JOIN payouts y ON pr.reference_type = 'PAYOUT' AND y.id = pr.reference_id
		WHERE pr.credits != pr.debits
		AND (
			(pr.reference_type = 'PAYMENT' AND p.status IN ('RELEASED', 'REFUNDED', 'CASH_RECEIVED'))
			OR (pr.reference_type = 'PAYOUT' AND y.status = 'COMPLETED')
			OR pr.reference_type = 'ADJUSTMENT'
		)
		ORDER BY pr.reference_type, pr.reference_id
	`

	breakdown := []LedgerReferenceBalance{}
	err = sqlExec.SelectContext(ctx, &breakdown, mismatchQuery)
	if err != nil {
		return nil, fmt.Errorf("verifying ledger invariant: %w", err)
	}

	report.Breakdown = breakdown
	report.Valid = len(breakdown) == 0

	return &report, nil
}

// VerifyNoDuplicates audits the idempotency key: it returns the references
// holding more than one entry with the same key tuple. The unique index makes
// this impossible to violate through the application; a non-empty result
// means the schema itself was tampered with.
func (m *LedgerEntryModel) VerifyNoDuplicates(ctx context.Context, sqlExec db.SQLExecuter, referenceType LedgerReferenceType, referenceID string) ([]LedgerEntry, error) {
	if err := referenceType.Validate(); err != nil {
		return nil, err
	}

	duplicates := []LedgerEntry{}
	const query = `
		SELECT
			le.id, le.account_type, le.account_id, le.entry_type, le.amount, le.currency,
			le.reference_type, le.reference_id, COALESCE(le.description, '') AS description, le.created_at
		FROM ledger_entries le
		WHERE le.reference_type = $1
		AND le.reference_id = $2
		AND (le.account_type, le.account_id, le.entry_type) IN (
			SELECT account_type, account_id, entry_type
			FROM ledger_entries
			WHERE reference_type = $1
			AND reference_id = $2
			GROUP BY account_type, account_id, entry_type
			HAVING count(*) > 1
		)
		ORDER BY le.created_at, le.id
	`

	err := sqlExec.SelectContext(ctx, &duplicates, query, referenceType, referenceID)
	if err != nil {
		return nil, fmt.Errorf("auditing ledger duplicates for %s %s: %w", referenceType, referenceID, err)
	}

	return duplicates, nil
}

// SumByAccountType totals credits minus debits across every account of the
// given type. Statistics use it for the aggregate escrow liability.
func (m *LedgerEntryModel) SumByAccountType(ctx context.Context, sqlExec db.SQLExecuter, accountType LedgerAccountType) (decimal.Decimal, error) {
	if err := accountType.Validate(); err != nil {
		return decimal.Zero, err
	}

	const query = `
		SELECT COALESCE(SUM(CASE WHEN entry_type = 'CREDIT' THEN amount ELSE -amount END), 0)
		FROM ledger_entries
		WHERE account_type = $1
	`

	var sum decimal.Decimal
	err := sqlExec.GetContext(ctx, &sum, query, accountType)
	if err != nil {
		return decimal.Zero, fmt.Errorf("summing ledger accounts of type %s: %w", accountType, err)
	}

	return sum, nil
}
