package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Grant is a single allowance entry returned by the FetchAllowances endpoint.
type Grant struct {
	Quantity      decimal.Decimal
	QuantitySpent decimal.Decimal
	Expires       int64 // unix milliseconds, 0 means no expiry
	HasExpiry     bool  // false when the API omitted the field entirely
}

// Remaining returns quantity minus quantity spent. It may be negative.
func (g Grant) Remaining() decimal.Decimal {
	return g.Quantity.Sub(g.QuantitySpent)
}

// Active reports whether the grant still contributes to the spendable total at now.
func (g Grant) Active(now time.Time) bool {
	if !g.Remaining().IsPositive() {
		return false
	}
	if !g.HasExpiry {
		return false
	}
	return g.Expires == 0 || g.Expires > now.UnixMilli()
}

// TotalRemaining sums the remaining quantity of every active grant.
func TotalRemaining(grants []Grant, now time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, g := range grants {
		if g.Active(now) {
			total = total.Add(g.Remaining())
		}
	}
	return total
}
