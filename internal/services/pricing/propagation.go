package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/chaintax/chaintax/internal/models"
)

// propagationTolerance is the relative amount gap allowed between a linked
// outflow and inflow; network fees make exact equality rare.
var propagationTolerance = decimal.RequireFromString("0.1")

// PropagateLinkPrices copies prices across confirmed transaction links:
// a priced source outflow prices the target's matching inflow of the same
// asset when the amounts are within 10% of each other. Only the first
// matching target movement per source movement receives the price.
func PropagateLinkPrices(txs []*models.Transaction, links []*models.TransactionLink, now time.Time) PassResult {
	byID := make(map[string]*models.Transaction, len(txs))
	for _, tx := range txs {
		byID[tx.ID] = tx
	}

	// target tx id -> prices to apply, keyed by inflow index
	pending := make(map[string]map[int]models.PriceAtTxTime)

	for _, link := range links {
		if link.Status != models.LinkStatusConfirmed {
			continue
		}
		source, ok := byID[link.SourceTransactionID]
		if !ok {
			continue
		}
		target, ok := byID[link.TargetTransactionID]
		if !ok {
			continue
		}

		for i := range source.Outflows {
			outflow := &source.Outflows[i]
			if outflow.Price == nil || outflow.AssetID != link.AssetID {
				continue
			}
			for j := range target.Inflows {
				inflow := &target.Inflows[j]
				if inflow.AssetID != link.AssetID || inflow.Price != nil {
					continue
				}
				if _, taken := pending[target.ID][j]; taken {
					continue
				}
				if !amountsWithinTolerance(outflow.EffectiveAmount(), inflow.EffectiveAmount()) {
					continue
				}
				if pending[target.ID] == nil {
					pending[target.ID] = make(map[int]models.PriceAtTxTime)
				}
				pending[target.ID][j] = models.PriceAtTxTime{
					Price:       outflow.Price.Price,
					Source:      models.PriceSourceLinkPropagated,
					FetchedAt:   now,
					Granularity: outflow.Price.Granularity,
				}
				break // first matching target movement only
			}
		}
	}

	return transform(txs, func(tx *models.Transaction) bool {
		prices, ok := pending[tx.ID]
		if !ok {
			return false
		}
		for j, price := range prices {
			p := price
			tx.Inflows[j].Price = &p
		}
		return true
	})
}

func amountsWithinTolerance(a, b decimal.Decimal) bool {
	if a.IsZero() && b.IsZero() {
		return true
	}
	larger := decimal.Max(a.Abs(), b.Abs())
	if larger.IsZero() {
		return true
	}
	return a.Sub(b).Abs().Div(larger).LessThanOrEqual(propagationTolerance)
}
