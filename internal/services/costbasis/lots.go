package costbasis

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chaintax/chaintax/internal/models"
)

// NewAcquisitionLot builds an open lot for a freshly acquired quantity.
func NewAcquisitionLot(calculationID, transactionID, assetID, assetSymbol string, quantity, costBasisPerUnit decimal.Decimal, acquired time.Time, method models.AccountingMethod, now time.Time) *models.AcquisitionLot {
	return &models.AcquisitionLot{
		ID:                       uuid.NewString(),
		CalculationID:            calculationID,
		AcquisitionTransactionID: transactionID,
		AssetID:                  assetID,
		AssetSymbol:              assetSymbol,
		Quantity:                 quantity,
		CostBasisPerUnit:         costBasisPerUnit,
		TotalCostBasis:           quantity.Mul(costBasisPerUnit),
		AcquisitionDate:          acquired,
		Method:                   method,
		RemainingQuantity:        quantity,
		Status:                   models.LotStatusOpen,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
}

// ApplyDisposals returns a new lot slice with remaining quantities
// decremented per the disposals. Input lots are never mutated; statuses
// are recomputed from the new remaining quantity. Disposing more than a
// lot's remaining quantity is an invariant violation and errors out.
func ApplyDisposals(lots []*models.AcquisitionLot, disposals []models.LotDisposal, now time.Time) ([]*models.AcquisitionLot, error) {
	consumed := make(map[string]decimal.Decimal)
	for _, d := range disposals {
		consumed[d.LotID] = consumed[d.LotID].Add(d.QuantityDisposed)
	}

	updated := make([]*models.AcquisitionLot, len(lots))
	for i, lot := range lots {
		take, ok := consumed[lot.ID]
		if !ok {
			updated[i] = lot
			continue
		}
		if take.GreaterThan(lot.RemainingQuantity) {
			return nil, fmt.Errorf("disposal of %s exceeds remaining quantity %s on lot %s", take, lot.RemainingQuantity, lot.ID)
		}
		clone := *lot
		clone.RemainingQuantity = lot.RemainingQuantity.Sub(take)
		clone.Status = models.LotStatusFor(clone.RemainingQuantity, clone.Quantity)
		clone.UpdatedAt = now
		updated[i] = &clone
	}
	return updated, nil
}
