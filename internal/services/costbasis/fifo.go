package costbasis

import "github.com/chaintax/chaintax/internal/models"

// fifoStrategy consumes the oldest open lots first.
type fifoStrategy struct{}

func (fifoStrategy) Method() models.AccountingMethod {
	return models.MethodFIFO
}

func (fifoStrategy) MatchDisposal(req DisposalRequest, openLots []*models.AcquisitionLot) ([]models.LotDisposal, error) {
	sorted := sortByAcquisitionDate(openLotsForAsset(req.AssetSymbol, openLots), true)
	return consumeInOrder(req, sorted, nil)
}
