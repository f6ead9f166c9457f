// Package costbasis computes acquisition lots, disposals, and transfer
// cost-basis inheritance under a configurable accounting method
package costbasis

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chaintax/chaintax/internal/models"
)

// ErrInsufficientLots indicates open lots cannot cover a disposal.
// The run fails hard rather than invent a zero-basis phantom lot.
var ErrInsufficientLots = errors.New("insufficient open lots to cover disposal")

// DisposalRequest describes an outflow to be matched against open lots.
type DisposalRequest struct {
	AssetSymbol     string
	Quantity        decimal.Decimal
	Date            time.Time
	ProceedsPerUnit decimal.Decimal
	TransactionID   string
}

// Strategy selects which open lots satisfy a disposal.
type Strategy interface {
	Method() models.AccountingMethod
	// MatchDisposal consumes open lots to cover the request, returning one
	// LotDisposal per lot slice. Lots are not mutated; the caller applies
	// the decrements.
	MatchDisposal(req DisposalRequest, openLots []*models.AcquisitionLot) ([]models.LotDisposal, error)
}

// NewStrategy builds the strategy for a configured accounting method.
// specific-id is declared but intentionally unimplemented; selecting it
// fails here rather than silently degrading to another method.
func NewStrategy(method models.AccountingMethod) (Strategy, error) {
	switch models.AccountingMethod(strings.ToLower(string(method))) {
	case models.MethodFIFO:
		return fifoStrategy{}, nil
	case models.MethodLIFO:
		return lifoStrategy{}, nil
	case models.MethodAverageCost:
		return averageCostStrategy{}, nil
	case models.MethodSpecificID:
		return nil, fmt.Errorf("accounting method %q is not implemented", method)
	default:
		return nil, fmt.Errorf("unknown accounting method %q", method)
	}
}

// openLotsForAsset filters to consumable lots of the requested asset.
func openLotsForAsset(symbol string, lots []*models.AcquisitionLot) []*models.AcquisitionLot {
	var open []*models.AcquisitionLot
	for _, lot := range lots {
		if !strings.EqualFold(lot.AssetSymbol, symbol) {
			continue
		}
		if lot.Status == models.LotStatusFullyDisposed || !lot.RemainingQuantity.IsPositive() {
			continue
		}
		open = append(open, lot)
	}
	return open
}

// sortByAcquisitionDate orders lots by acquisition date, id breaking ties,
// ascending or descending.
func sortByAcquisitionDate(lots []*models.AcquisitionLot, ascending bool) []*models.AcquisitionLot {
	sorted := make([]*models.AcquisitionLot, len(lots))
	copy(sorted, lots)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].AcquisitionDate.Equal(sorted[j].AcquisitionDate) {
			if ascending {
				return sorted[i].AcquisitionDate.Before(sorted[j].AcquisitionDate)
			}
			return sorted[i].AcquisitionDate.After(sorted[j].AcquisitionDate)
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}

// consumeInOrder walks sorted lots, consuming
// min(remaining, still needed) from each until the request is satisfied.
// costPerUnit overrides the lot's own basis when non-nil (average cost).
func consumeInOrder(req DisposalRequest, sorted []*models.AcquisitionLot, costPerUnit *decimal.Decimal) ([]models.LotDisposal, error) {
	needed := req.Quantity
	var disposals []models.LotDisposal

	for _, lot := range sorted {
		if !needed.IsPositive() {
			break
		}
		take := decimal.Min(lot.RemainingQuantity, needed)
		basis := lot.CostBasisPerUnit
		if costPerUnit != nil {
			basis = *costPerUnit
		}
		disposals = append(disposals, models.LotDisposal{
			LotID:            lot.ID,
			QuantityDisposed: take,
			CostBasisPerUnit: basis,
			ProceedsPerUnit:  req.ProceedsPerUnit,
			TransactionID:    req.TransactionID,
			Date:             req.Date,
		})
		needed = needed.Sub(take)
	}

	if needed.IsPositive() {
		return nil, fmt.Errorf("%w: %s %s uncovered for transaction %s", ErrInsufficientLots, needed, req.AssetSymbol, req.TransactionID)
	}
	return disposals, nil
}
