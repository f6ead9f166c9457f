package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/chaintax/chaintax/internal/models"
)

// PassResult is the output of one inference pass: the transformed
// transaction list plus the set of transaction IDs the pass touched, so
// callers can persist only deltas. Untouched transactions pass through by
// reference, unchanged.
type PassResult struct {
	Transactions []*models.Transaction
	ModifiedIDs  map[string]bool
}

// transform applies fn over each transaction, cloning a transaction before
// fn the first time it reports a modification. fn returns the (possibly
// cloned) transaction and whether it changed anything.
func transform(txs []*models.Transaction, fn func(tx *models.Transaction) bool) PassResult {
	result := PassResult{
		Transactions: make([]*models.Transaction, len(txs)),
		ModifiedIDs:  make(map[string]bool),
	}
	for i, tx := range txs {
		clone := tx.Clone()
		if fn(clone) {
			result.Transactions[i] = clone
			result.ModifiedIDs[tx.ID] = true
		} else {
			result.Transactions[i] = tx
		}
	}
	return result
}

func executionSourceFor(currency string) models.PriceSource {
	if IsUSD(currency) {
		return models.PriceSourceExchangeExecution
	}
	return models.PriceSourceFiatExecutionTentative
}

// identityPrice stamps amount=1 in the movement's own currency.
func identityPrice(m *models.AssetMovement, now time.Time) {
	m.Price = &models.PriceAtTxTime{
		Price:     models.Price{Amount: decimal.New(1, 0), Currency: m.AssetSymbol},
		Source:    executionSourceFor(m.AssetSymbol),
		FetchedAt: now,
	}
}

// ApplyExecutionPrices is pass 0: for simple trades with one fiat leg,
// derive the crypto leg's price from the trade ratio; then stamp identity
// prices on any fiat movement still lacking one. USD prices are final
// (exchange-execution); other fiat is tentative pending FX normalization.
func ApplyExecutionPrices(txs []*models.Transaction, now time.Time) PassResult {
	return transform(txs, func(tx *models.Transaction) bool {
		modified := false

		if tx.IsSimpleTrade() {
			inflow, outflow := &tx.Inflows[0], &tx.Outflows[0]
			switch {
			case IsFiat(outflow.AssetSymbol) && !IsFiat(inflow.AssetSymbol):
				// buying crypto with fiat
				if inflow.Price == nil && inflow.Amount.IsPositive() {
					inflow.Price = &models.PriceAtTxTime{
						Price: models.Price{
							Amount:   outflow.Amount.Div(inflow.Amount),
							Currency: outflow.AssetSymbol,
						},
						Source:    executionSourceFor(outflow.AssetSymbol),
						FetchedAt: now,
					}
					modified = true
				}
			case IsFiat(inflow.AssetSymbol) && !IsFiat(outflow.AssetSymbol):
				// selling crypto for fiat
				if outflow.Price == nil && outflow.Amount.IsPositive() {
					outflow.Price = &models.PriceAtTxTime{
						Price: models.Price{
							Amount:   inflow.Amount.Div(outflow.Amount),
							Currency: inflow.AssetSymbol,
						},
						Source:    executionSourceFor(inflow.AssetSymbol),
						FetchedAt: now,
					}
					modified = true
				}
			}
		}

		for _, movements := range [][]models.AssetMovement{tx.Inflows, tx.Outflows, tx.Fees} {
			for i := range movements {
				m := &movements[i]
				if m.Price == nil && IsFiat(m.AssetSymbol) {
					identityPrice(m, now)
					modified = true
				}
			}
		}
		return modified
	})
}

// DeriveMissingInflowPrices is pass 1: for a simple trade where the
// outflow carries a price but the inflow does not, derive the inflow price
// from the execution ratio. Trades with more than one leg per side are
// ambiguous and skipped.
func DeriveMissingInflowPrices(txs []*models.Transaction, now time.Time) PassResult {
	return transform(txs, func(tx *models.Transaction) bool {
		if !tx.IsSimpleTrade() {
			return false
		}
		inflow, outflow := &tx.Inflows[0], &tx.Outflows[0]
		if outflow.Price == nil || inflow.Price != nil {
			return false
		}
		if !inflow.Amount.IsPositive() {
			return false
		}
		inflow.Price = &models.PriceAtTxTime{
			Price: models.Price{
				Amount:   ratioPrice(outflow, inflow),
				Currency: outflow.Price.Price.Currency,
			},
			Source:    models.PriceSourceDerivedRatio,
			FetchedAt: now,
		}
		return true
	})
}

// OverrideCryptoCryptoInflows is pass 2: for simple trades where both legs
// are priced and neither is fiat or a stablecoin, recompute the inflow
// price from the outflow's. The disposal side's fair market value is the
// execution ground truth, so the acquisition cost basis must reflect it
// rather than an externally fetched market quote.
func OverrideCryptoCryptoInflows(txs []*models.Transaction, now time.Time) PassResult {
	return transform(txs, func(tx *models.Transaction) bool {
		if !tx.IsSimpleTrade() {
			return false
		}
		inflow, outflow := &tx.Inflows[0], &tx.Outflows[0]
		if outflow.Price == nil || inflow.Price == nil {
			return false
		}
		if IsFiatOrStablecoin(inflow.AssetSymbol) || IsFiatOrStablecoin(outflow.AssetSymbol) {
			return false
		}
		if !inflow.Amount.IsPositive() {
			return false
		}
		implied := ratioPrice(outflow, inflow)
		if inflow.Price.Price.Amount.Equal(implied) && inflow.Price.Source == models.PriceSourceDerivedRatio {
			return false
		}
		inflow.Price = &models.PriceAtTxTime{
			Price: models.Price{
				Amount:   implied,
				Currency: outflow.Price.Price.Currency,
			},
			Source:    models.PriceSourceDerivedRatio,
			FetchedAt: now,
		}
		return true
	})
}

// ratioPrice computes the inflow unit price implied by a priced outflow:
// outflowPrice * outflowAmount / inflowAmount.
func ratioPrice(outflow, inflow *models.AssetMovement) decimal.Decimal {
	return outflow.Price.Price.Amount.Mul(outflow.Amount).Div(inflow.Amount)
}
