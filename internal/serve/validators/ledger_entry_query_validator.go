package validators

import (
	"github.com/sebenzapay/escrow-platform-backend/internal/data"
)

// NewLedgerEntryQueryValidator handles pagination for account statements.
// Entries are append-only, so the only sort that means anything is creation
// order; filtering happens on the account coordinates, not here.
func NewLedgerEntryQueryValidator() *QueryValidator {
	return &QueryValidator{
		DefaultSortField:  data.SortFieldCreatedAt,
		DefaultSortOrder:  data.SortOrderDESC,
		AllowedSortFields: []data.SortField{data.SortFieldCreatedAt},
		AllowedFilters:    []data.FilterKey{},
		Validator:         NewValidator(),
	}
}
