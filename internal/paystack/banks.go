package paystack

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/stellar/go-stellar-sdk/support/log"
)

// bankDirectoryCacheTTL is how long a fetched bank list stays fresh. Clearing
// codes change rarely, and a stale entry only means one extra API round trip.
const bankDirectoryCacheTTL = 12 * time.Hour

// Bank is one entry in the processor's bank directory.
type Bank struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Code     string `json:"code"`
	Currency string `json:"currency"`
	Active   bool   `json:"active"`
}

// BankDirectory serves the processor's bank list through an in-process TTL
// cache. The directory is advisory: lookups that cannot be answered fall
// through to the API, and callers decide how to treat API failures.
type BankDirectory struct {
	client ClientInterface
	cache  *ristretto.Cache
}

// NewBankDirectory creates a BankDirectory backed by client. If the cache
// cannot be created the directory still works, hitting the API every time.
func NewBankDirectory(client ClientInterface) *BankDirectory {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1_000,
		MaxCost:     100,
		BufferItems: 64,
	})
	if err != nil {
		log.Errorf("Failed to create bank directory cache: %v", err)
		return &BankDirectory{client: client}
	}

	cache.Wait()

	return &BankDirectory{
		client: client,
		cache:  cache,
	}
}

// ListBanks returns the bank directory for a currency, served from cache when
// fresh.
func (d *BankDirectory) ListBanks(ctx context.Context, currency string) ([]Bank, error) {
	cacheKey := "banks:" + currency

	if d.cache != nil {
		if cached, found := d.cache.Get(cacheKey); found {
			if banks, ok := cached.([]Bank); ok {
				return banks, nil
			}
			d.cache.Del(cacheKey)
		}
	}

	banks, err := d.client.ListBanks(ctx, currency)
	if err != nil {
		return nil, fmt.Errorf("listing banks for %s: %w", currency, err)
	}

	if d.cache != nil {
		d.cache.SetWithTTL(cacheKey, banks, 1, bankDirectoryCacheTTL)
	}

	return banks, nil
}

// FindBankByCode returns the directory entry for a clearing code, or
// (nil, nil) when the code is not listed for the currency.
func (d *BankDirectory) FindBankByCode(ctx context.Context, currency, code string) (*Bank, error) {
	banks, err := d.ListBanks(ctx, currency)
	if err != nil {
		return nil, err
	}

	for _, bank := range banks {
		if bank.Code == code {
			return &bank, nil
		}
	}

	return nil, nil
}
