package interfaces

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// MarketDataClient resolves historical USD prices for an asset. Used as the
// last-resort price source after the inference passes have run.
type MarketDataClient interface {
	// GetHistoricalPriceUSD returns the USD price of the asset symbol at
	// the given time, at daily granularity.
	GetHistoricalPriceUSD(ctx context.Context, symbol string, at time.Time) (decimal.Decimal, error)
}
