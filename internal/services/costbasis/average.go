package costbasis

import (
	"github.com/shopspring/decimal"

	"github.com/chaintax/chaintax/internal/models"
)

// averageCostStrategy collapses all open lots of the asset into a single
// weighted-average unit cost, then consumes lots in acquisition order at
// that blended basis.
type averageCostStrategy struct{}

func (averageCostStrategy) Method() models.AccountingMethod {
	return models.MethodAverageCost
}

func (averageCostStrategy) MatchDisposal(req DisposalRequest, openLots []*models.AcquisitionLot) ([]models.LotDisposal, error) {
	open := openLotsForAsset(req.AssetSymbol, openLots)

	totalQuantity := decimal.Zero
	totalBasis := decimal.Zero
	for _, lot := range open {
		totalQuantity = totalQuantity.Add(lot.RemainingQuantity)
		totalBasis = totalBasis.Add(lot.RemainingQuantity.Mul(lot.CostBasisPerUnit))
	}

	averageCost := decimal.Zero
	if totalQuantity.IsPositive() {
		averageCost = totalBasis.Div(totalQuantity)
	}

	sorted := sortByAcquisitionDate(open, true)
	return consumeInOrder(req, sorted, &averageCost)
}
