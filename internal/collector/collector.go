package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"AllowanceLogger/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	mu     sync.Mutex
	Grants map[string][]model.Grant
	Errors map[string]error
	Calls  []string
}

// NewMockFetcher creates an empty MockFetcher.
func NewMockFetcher() *MockFetcher {
	return &MockFetcher{
		Grants: make(map[string][]model.Grant),
		Errors: make(map[string]error),
	}
}

func (m *MockFetcher) Name() string { return "mock" }

// SetTotal replaces the wallet's grants with a single non-expiring grant of total.
func (m *MockFetcher) SetTotal(wallet string, total decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Errors, wallet)
	m.Grants[wallet] = []model.Grant{{Quantity: total, HasExpiry: true}}
}

// SetError makes the next fetches for wallet fail with err.
func (m *MockFetcher) SetError(wallet string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors[wallet] = err
}

func (m *MockFetcher) FetchAllowances(_ context.Context, wallet string) ([]model.Grant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, wallet)
	if err := m.Errors[wallet]; err != nil {
		return nil, err
	}
	return m.Grants[wallet], nil
}

// Collector turns raw allowance grants into the per-wallet spendable total.
type Collector struct {
	Fetcher Fetcher
	Now     func() time.Time
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher) *Collector {
	return &Collector{Fetcher: fetcher, Now: time.Now}
}

// Collect fetches the wallet's grants and sums the remaining quantity of every
// unexpired grant with a positive remainder.
func (c *Collector) Collect(ctx context.Context, wallet string) (decimal.Decimal, error) {
	grants, err := c.Fetcher.FetchAllowances(ctx, wallet)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetch allowances for %s: %w", wallet, err)
	}
	return model.TotalRemaining(grants, c.Now()), nil
}
