package statistics

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sebenzapay/escrow-platform-backend/db"
	"github.com/sebenzapay/escrow-platform-backend/internal/data"
)

var ErrResourcesNotFound = errors.New("resources not found")

type PaymentCounters struct {
	Pending      int64 `json:"pending"`
	Escrow       int64 `json:"escrow"`
	Released     int64 `json:"released"`
	Failed       int64 `json:"failed"`
	Refunded     int64 `json:"refunded"`
	CashPaid     int64 `json:"cash_paid"`
	CashReceived int64 `json:"cash_received"`
	Total        int64 `json:"total"`
}

type PaymentAmounts struct {
	Pending      string `json:"pending"`
	Escrow       string `json:"escrow"`
	Released     string `json:"released"`
	Failed       string `json:"failed"`
	Refunded     string `json:"refunded"`
	CashPaid     string `json:"cash_paid"`
	CashReceived string `json:"cash_received"`
	Average      string `json:"average"`
	Total        string `json:"total"`
}

type PaymentAmountsByCurrency struct {
	Currency       string         `json:"currency"`
	PaymentAmounts PaymentAmounts `json:"payment_amounts"`
}

type PayoutCounters struct {
	PendingApproval int64 `json:"pending_approval"`
	Approved        int64 `json:"approved"`
	Processing      int64 `json:"processing"`
	Completed       int64 `json:"completed"`
	Rejected        int64 `json:"rejected"`
	Failed          int64 `json:"failed"`
	Total           int64 `json:"total"`
}

type GeneralStatistics struct {
	ProviderStatistics
	TotalProviders  int64  `json:"total_providers"`
	PlatformRevenue string `json:"platform_revenue"`
	BankBalance     string `json:"bank_balance"`
}

type ProviderStatistics struct {
	PaymentCounters          PaymentCounters            `json:"payment_counters"`
	PaymentAmountsByCurrency []PaymentAmountsByCurrency `json:"payment_amounts_by_currency"`
	PayoutCounters           PayoutCounters             `json:"payout_counters"`
	EscrowBalance            string                     `json:"escrow_balance"`
}

// getPaymentsStats returns payment statistics aggregated by payment status, if a provider ID
// is sent in the parameters the payment stats will be calculated for a specific provider.
func getPaymentsStats(ctx context.Context, sqlExec db.SQLExecuter, providerID string) (*PaymentCounters, []PaymentAmountsByCurrency, error) {
	query := []string{
		0: "SELECT p.currency, p.status, Count(*), Sum(p.amount)",
		1: "FROM payments p",
		2: "",
		3: "GROUP BY (p.currency, p.status)",
		4: "ORDER BY (p.currency);",
	}

	var args []interface{}
	if providerID != "" {
		query[2] = "WHERE p.provider_id = $1"
		args = append(args, providerID)
	}

	rows, err := sqlExec.QueryxContext(ctx, strings.Join(query, " "), args...)
	if err != nil {
		return nil, nil, fmt.Errorf("getting payments data in getPaymentsStats: %w", err)
	}

	defer db.CloseRows(ctx, rows)

	currentCurrency := ""
	paymentCounters := PaymentCounters{}
	paymentAmounts := PaymentAmounts{}

	paymentAmountsByCurrency := []PaymentAmountsByCurrency{}
	totalAmount := decimal.Zero
	var totalCount int64

	for rows.Next() {
		var (
			currency, status, amount string
			count                    int64
		)

		err = rows.Scan(&currency, &status, &count, &amount)
		if err != nil {
			return nil, nil, fmt.Errorf("attributing values to rows in getPaymentsStats: %w", err)
		}

		if currentCurrency != currency {

			if currentCurrency != "" {
				avg := totalAmount.Div(decimal.NewFromInt(totalCount))
				paymentAmounts.Total = totalAmount.StringFixed(2)
				paymentAmounts.Average = avg.StringFixed(2)
				totalAmount = decimal.Zero
				totalCount = 0

				paymentAmountsByCurrency = append(
					paymentAmountsByCurrency,
					PaymentAmountsByCurrency{
						Currency:       currentCurrency,
						PaymentAmounts: paymentAmounts,
					},
				)

				paymentAmounts = PaymentAmounts{}
			}

			currentCurrency = currency
		}

		switch data.PaymentStatus(status) {
		case data.PendingPaymentStatus:
			paymentCounters.Pending += count
			paymentAmounts.Pending = amount

		case data.EscrowPaymentStatus:
			paymentCounters.Escrow += count
			paymentAmounts.Escrow = amount

		case data.ReleasedPaymentStatus:
			paymentCounters.Released += count
			paymentAmounts.Released = amount

		case data.FailedPaymentStatus:
			paymentCounters.Failed += count
			paymentAmounts.Failed = amount

		case data.RefundedPaymentStatus:
			paymentCounters.Refunded += count
			paymentAmounts.Refunded = amount

		case data.CashPaidPaymentStatus:
			paymentCounters.CashPaid += count
			paymentAmounts.CashPaid = amount

		case data.CashReceivedPaymentStatus:
			paymentCounters.CashReceived += count
			paymentAmounts.CashReceived = amount
		default:
			return nil, nil, fmt.Errorf("status %v is not a valid payment status", status)
		}

		paymentCounters.Total += count

		totalCount += count
		value, parseErr := decimal.NewFromString(amount)
		if parseErr != nil {
			return nil, nil, fmt.Errorf("parsing payment amount: %w", parseErr)
		}
		totalAmount = totalAmount.Add(value)
	}

	if err = rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("end scanning: %w", err)
	}

	if currentCurrency != "" {
		avg := totalAmount.Div(decimal.NewFromInt(totalCount))
		paymentAmounts.Total = totalAmount.StringFixed(2)
		paymentAmounts.Average = avg.StringFixed(2)

		paymentAmountsByCurrency = append(
			paymentAmountsByCurrency,
			PaymentAmountsByCurrency{
				Currency:       currentCurrency,
				PaymentAmounts: paymentAmounts,
			},
		)
	}

	return &paymentCounters, paymentAmountsByCurrency, nil
}

// getPayoutsStats returns payout statistics aggregated by payout status, if a provider ID is
// sent in the parameters the payout stats will be calculated for a specific provider.
func getPayoutsStats(ctx context.Context, sqlExec db.SQLExecuter, providerID string) (*PayoutCounters, error) {
	query := []string{
		0: "SELECT y.status, Count(*)",
		1: "FROM payouts y",
		2: "",
		3: "GROUP BY (y.status);",
	}

	var args []interface{}
	if providerID != "" {
		query[2] = "WHERE y.provider_id = $1"
		args = append(args, providerID)
	}

	rows, err := sqlExec.QueryxContext(ctx, strings.Join(query, " "), args...)
	if err != nil {
		return nil, fmt.Errorf("getting payouts data in getPayoutsStats: %w", err)
	}

	defer db.CloseRows(ctx, rows)

	payoutCounters := PayoutCounters{}

	for rows.Next() {
		var (
			status string
			count  int64
		)

		err = rows.Scan(&status, &count)
		if err != nil {
			return nil, fmt.Errorf("attributing values to rows: %w", err)
		}

		switch data.PayoutStatus(status) {
		case data.PendingApprovalPayoutStatus:
			payoutCounters.PendingApproval = count

		case data.ApprovedPayoutStatus:
			payoutCounters.Approved = count

		case data.ProcessingPayoutStatus:
			payoutCounters.Processing = count

		case data.CompletedPayoutStatus:
			payoutCounters.Completed = count

		case data.RejectedPayoutStatus:
			payoutCounters.Rejected = count

		case data.FailedPayoutStatus:
			payoutCounters.Failed = count

		default:
			return nil, fmt.Errorf("status %v is not a valid payout status", status)
		}

		payoutCounters.Total += count
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("end scanning: %w", err)
	}

	return &payoutCounters, nil
}

// getLedgerBalance sums credits minus debits for an account type, optionally
// narrowed to one account ID.
func getLedgerBalance(ctx context.Context, sqlExec db.SQLExecuter, accountType data.LedgerAccountType, accountID string) (string, error) {
	query := "SELECT COALESCE(SUM(CASE WHEN le.entry_type = 'CREDIT' THEN le.amount ELSE -le.amount END), 0) FROM ledger_entries le WHERE le.account_type = $1"

	args := []interface{}{accountType}
	if accountID != "" {
		query += " AND le.account_id = $2"
		args = append(args, accountID)
	}

	var balance decimal.Decimal
	err := sqlExec.GetContext(ctx, &balance, query, args...)
	if err != nil {
		return "", fmt.Errorf("getting ledger balance for %s: %w", accountType, err)
	}

	return balance.StringFixed(2), nil
}

// getTotalProviders returns the total amount of providers on the platform.
func getTotalProviders(ctx context.Context, sqlExec db.SQLExecuter) (totalProviders int64, err error) {
	q := "SELECT COUNT(*) FROM providers"
	err = sqlExec.GetContext(ctx, &totalProviders, q)
	if err != nil {
		return 0, fmt.Errorf("getting total provider data: %w", err)
	}

	return totalProviders, nil
}

func checkIfProviderExists(ctx context.Context, sqlExec db.SQLExecuter, providerID string) (bool, error) {
	var exists bool
	q := "SELECT EXISTS (SELECT 1 FROM providers WHERE id = $1)"
	err := sqlExec.GetContext(ctx, &exists, q, providerID)
	if err != nil {
		return false, fmt.Errorf("checking if provider exists: %w", err)
	}

	return exists, nil
}

// CalculateStatistics calculates statistics across the whole platform.
func CalculateStatistics(ctx context.Context, dbConnectionPool db.DBConnectionPool) (statistics *GeneralStatistics, err error) {
	// Start transaction
	dbTx, err := dbConnectionPool.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction in CalculateStatistics: %w", err)
	}
	defer func() {
		db.DBTxRollback(ctx, dbTx, err, "error in CalculateStatistics")
	}()

	paymentCounters, paymentAmountsByCurrency, err := getPaymentsStats(ctx, dbTx, "")
	if err != nil {
		return nil, err
	}

	payoutCounters, err := getPayoutsStats(ctx, dbTx, "")
	if err != nil {
		return nil, err
	}

	escrowBalance, err := getLedgerBalance(ctx, dbTx, data.ProviderBalanceAccountType, "")
	if err != nil {
		return nil, err
	}

	platformRevenue, err := getLedgerBalance(ctx, dbTx, data.PlatformRevenueAccountType, "")
	if err != nil {
		return nil, err
	}

	bankBalance, err := getLedgerBalance(ctx, dbTx, data.BankAccountAccountType, "")
	if err != nil {
		return nil, err
	}

	totalProviders, err := getTotalProviders(ctx, dbTx)
	if err != nil {
		return nil, err
	}

	err = dbTx.Commit()
	if err != nil {
		return nil, fmt.Errorf("committing transaction in CalculateStatistics: %w", err)
	}

	return &GeneralStatistics{
		ProviderStatistics: ProviderStatistics{
			PaymentCounters:          *paymentCounters,
			PaymentAmountsByCurrency: paymentAmountsByCurrency,
			PayoutCounters:           *payoutCounters,
			EscrowBalance:            escrowBalance,
		},
		TotalProviders:  totalProviders,
		PlatformRevenue: platformRevenue,
		BankBalance:     bankBalance,
	}, nil
}

// CalculateStatisticsByProvider calculates statistics for a specific provider.
func CalculateStatisticsByProvider(ctx context.Context, dbConnectionPool db.DBConnectionPool, providerID string) (statistics *ProviderStatistics, err error) {
	// Start transaction
	dbTx, err := dbConnectionPool.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction in CalculateStatisticsByProvider: %w", err)
	}
	defer func() {
		db.DBTxRollback(ctx, dbTx, err, "error in CalculateStatisticsByProvider")
	}()

	providerExists, err := checkIfProviderExists(ctx, dbTx, providerID)
	if err != nil {
		return nil, fmt.Errorf("checking if provider exists in CalculateStatisticsByProvider: %w", err)
	}
	if !providerExists {
		return nil, ErrResourcesNotFound
	}

	paymentCounters, paymentAmountsByCurrency, err := getPaymentsStats(ctx, dbTx, providerID)
	if err != nil {
		return nil, err
	}

	payoutCounters, err := getPayoutsStats(ctx, dbTx, providerID)
	if err != nil {
		return nil, err
	}

	escrowBalance, err := getLedgerBalance(ctx, dbTx, data.ProviderBalanceAccountType, providerID)
	if err != nil {
		return nil, err
	}

	err = dbTx.Commit()
	if err != nil {
		return nil, fmt.Errorf("committing transaction in CalculateStatisticsByProvider: %w", err)
	}

	return &ProviderStatistics{
		PaymentCounters:          *paymentCounters,
		PaymentAmountsByCurrency: paymentAmountsByCurrency,
		PayoutCounters:           *payoutCounters,
		EscrowBalance:            escrowBalance,
	}, nil
}
