package collector

import (
	"context"

	"AllowanceLogger/internal/model"
)

// Fetcher defines the interface for fetching allowance grants of a wallet.
type Fetcher interface {
	FetchAllowances(ctx context.Context, wallet string) ([]model.Grant, error)
	Name() string
}
