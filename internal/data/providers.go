package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/sebenzapay/escrow-platform-backend/db"
)

// Provider is the payee side of the marketplace. Bank fields are what the
// batch exporter and the processor transfer API need to move money to them.
type Provider struct {
	ID            string    `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	Email         string    `json:"email" db:"email"`
	PhoneNumber   string    `json:"phone_number,omitempty" db:"phone_number"`
	BankCode      string    `json:"bank_code,omitempty" db:"bank_code"`
	AccountNumber string    `json:"account_number,omitempty" db:"account_number"`
	AccountName   string    `json:"account_name,omitempty" db:"account_name"`
	RecipientCode string    `json:"recipient_code,omitempty" db:"recipient_code"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// HasBankAccount reports whether the provider carries everything a bank
// transfer needs.
func (p Provider) HasBankAccount() bool {
	return p.BankCode != "" && p.AccountNumber != "" && p.AccountName != ""
}

type ProviderInsert struct {
	Name          string `db:"name"`
	Email         string `db:"email"`
	PhoneNumber   string `db:"phone_number"`
	BankCode      string `db:"bank_code"`
	AccountNumber string `db:"account_number"`
	AccountName   string `db:"account_name"`
}

func (pi *ProviderInsert) Validate() error {
	if strings.TrimSpace(pi.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(pi.Email) == "" {
		return fmt.Errorf("email is required")
	}
	return nil
}

// ProviderUpdate carries the mutable bank details. Zero-value fields are left
// untouched.
type ProviderUpdate struct {
	PhoneNumber   string `db:"phone_number"`
	BankCode      string `db:"bank_code"`
	AccountNumber string `db:"account_number"`
	AccountName   string `db:"account_name"`
}

func (pu *ProviderUpdate) IsEmpty() bool {
	return pu.PhoneNumber == "" && pu.BankCode == "" && pu.AccountNumber == "" && pu.AccountName == ""
}

type ProviderModel struct {
	dbConnectionPool db.DBConnectionPool
}

const baseProviderQuery = `
	SELECT
		p.id,
		p.name,
		p.email,
		COALESCE(p.phone_number, '') AS phone_number,
		COALESCE(p.bank_code, '') AS bank_code,
		COALESCE(p.account_number, '') AS account_number,
		COALESCE(p.account_name, '') AS account_name,
		COALESCE(p.recipient_code, '') AS recipient_code,
		p.created_at,
		p.updated_at
	FROM providers p
`

func (m *ProviderModel) Get(ctx context.Context, sqlExec db.SQLExecuter, id string) (*Provider, error) {
	provider := Provider{}
	query := baseProviderQuery + ` WHERE p.id = $1`

	err := sqlExec.GetContext(ctx, &provider, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying provider ID %s: %w", id, err)
	}

	return &provider, nil
}

// GetByIDs returns the providers for the given IDs, in no particular order.
func (m *ProviderModel) GetByIDs(ctx context.Context, sqlExec db.SQLExecuter, ids ...string) ([]Provider, error) {
	providers := []Provider{}
	if len(ids) == 0 {
		return providers, nil
	}

	query := baseProviderQuery + ` WHERE p.id = ANY($1)`
	err := sqlExec.SelectContext(ctx, &providers, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("querying providers by IDs: %w", err)
	}

	return providers, nil
}

func (m *ProviderModel) GetAll(ctx context.Context, sqlExec db.SQLExecuter) ([]Provider, error) {
	providers := []Provider{}
	query := baseProviderQuery + ` ORDER BY p.name`

	err := sqlExec.SelectContext(ctx, &providers, query)
	if err != nil {
		return nil, fmt.Errorf("querying providers: %w", err)
	}

	return providers, nil
}

func (m *ProviderModel) Insert(ctx context.Context, sqlExec db.SQLExecuter, insert ProviderInsert) (*Provider, error) {
	if err := insert.Validate(); err != nil {
		return nil, fmt.Errorf("validating provider insert: %w", err)
	}

	const query = `
		INSERT INTO providers (name, email, phone_number, bank_code, account_number, account_name)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''))
		RETURNING id
	`

	var id string
	err := sqlExec.GetContext(ctx, &id, query, insert.Name, insert.Email, insert.PhoneNumber, insert.BankCode, insert.AccountNumber, insert.AccountName)
	if err != nil {
		return nil, fmt.Errorf("inserting provider: %w", err)
	}

	return m.Get(ctx, sqlExec, id)
}

// Update applies the non-empty fields of the update to the provider.
func (m *ProviderModel) Update(ctx context.Context, sqlExec db.SQLExecuter, id string, update ProviderUpdate) (*Provider, error) {
	if update.IsEmpty() {
		return nil, fmt.Errorf("provider update is empty: %w", ErrMissingInput)
	}

	setClause, params := BuildSetClause(update)
	query := fmt.Sprintf(`UPDATE providers SET %s WHERE id = ?`, setClause)
	params = append(params, id)

	result, err := sqlExec.ExecContext(ctx, sqlExec.Rebind(query), params...)
	if err != nil {
		return nil, fmt.Errorf("updating provider ID %s: %w", id, err)
	}
	numRowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("getting number of rows affected: %w", err)
	}
	if numRowsAffected == 0 {
		return nil, ErrRecordNotFound
	}

	return m.Get(ctx, sqlExec, id)
}

// UpdateRecipientCode stores the processor-side transfer recipient handle once
// it has been created. It is written at most once per bank-detail change.
func (m *ProviderModel) UpdateRecipientCode(ctx context.Context, sqlExec db.SQLExecuter, id, recipientCode string) error {
	if strings.TrimSpace(recipientCode) == "" {
		return fmt.Errorf("recipientCode is required: %w", ErrMissingInput)
	}

	const query = `UPDATE providers SET recipient_code = $1 WHERE id = $2`
	result, err := sqlExec.ExecContext(ctx, query, recipientCode, id)
	if err != nil {
		return fmt.Errorf("updating recipient code for provider ID %s: %w", id, err)
	}
	numRowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting number of rows affected: %w", err)
	}
	if numRowsAffected == 0 {
		return ErrRecordNotFound
	}

	return nil
}
