package pricing

import (
	"time"

	"github.com/chaintax/chaintax/internal/models"
)

// EnrichFeePrices is the final pass: price fee entries that the earlier
// passes left bare. A fee shares its transaction's timestamp, so a price
// on any same-asset inflow or outflow is directly reusable; failing that,
// fiat fees are stamped at identity.
func EnrichFeePrices(txs []*models.Transaction, now time.Time) PassResult {
	return transform(txs, func(tx *models.Transaction) bool {
		modified := false
		for i := range tx.Fees {
			fee := &tx.Fees[i]
			if fee.Price != nil {
				continue
			}
			if price := sameAssetPrice(tx, fee); price != nil {
				copied := *price
				copied.FetchedAt = now
				fee.Price = &copied
				modified = true
				continue
			}
			if IsFiat(fee.AssetSymbol) {
				identityPrice(fee, now)
				modified = true
			}
		}
		return modified
	})
}

// sameAssetPrice finds a price carried by any inflow or outflow of the
// same asset as the fee.
func sameAssetPrice(tx *models.Transaction, fee *models.AssetMovement) *models.PriceAtTxTime {
	for _, movements := range [][]models.AssetMovement{tx.Inflows, tx.Outflows} {
		for i := range movements {
			m := &movements[i]
			if m.Price == nil {
				continue
			}
			if m.AssetID == fee.AssetID || (m.AssetID == "" && fee.AssetID == "" && m.AssetSymbol == fee.AssetSymbol) {
				return m.Price
			}
		}
	}
	return nil
}
