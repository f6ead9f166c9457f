package costbasis

import "github.com/chaintax/chaintax/internal/models"

// lifoStrategy consumes the newest open lots first.
type lifoStrategy struct{}

func (lifoStrategy) Method() models.AccountingMethod {
	return models.MethodLIFO
}

func (lifoStrategy) MatchDisposal(req DisposalRequest, openLots []*models.AcquisitionLot) ([]models.LotDisposal, error) {
	sorted := sortByAcquisitionDate(openLotsForAsset(req.AssetSymbol, openLots), false)
	return consumeInOrder(req, sorted, nil)
}
