package costbasis

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chaintax/chaintax/internal/common"
	"github.com/chaintax/chaintax/internal/models"
	"github.com/chaintax/chaintax/internal/services/pricing"
)

// TargetLegOptions parameterizes transfer-target processing.
type TargetLegOptions struct {
	CalculationID string
	Method        models.AccountingMethod
	Tolerance     common.VarianceTolerance
	Now           time.Time
}

// ProcessTransferTarget handles the incoming leg of a confirmed transfer
// link: the received quantity becomes a new open lot whose basis is
// inherited from the source leg's lot transfers, plus any fiat fees paid
// on either side.
func ProcessTransferTarget(link *models.TransactionLink, sourceTx, targetTx *models.Transaction, transfers []models.LotTransfer, opts TargetLegOptions) (*models.AcquisitionLot, []models.Warning, error) {
	if len(transfers) == 0 {
		return nil, nil, fmt.Errorf("no lot transfers exist for link %s: source transaction should have been processed first", link.ID)
	}

	inflow := findMovement(targetTx.Inflows, link.AssetID, link.AssetSymbol)
	if inflow == nil {
		return nil, nil, fmt.Errorf("transaction %s has no inflow of %s for link %s", targetTx.ID, link.AssetSymbol, link.ID)
	}
	received := inflow.EffectiveAmount()
	if !received.IsPositive() {
		return nil, nil, fmt.Errorf("transaction %s: non-positive received quantity %s", targetTx.ID, received)
	}

	inherited := decimal.Zero
	transferred := decimal.Zero
	for _, t := range transfers {
		inherited = inherited.Add(t.QuantityTransferred.Mul(t.CostBasisPerUnit))
		transferred = transferred.Add(t.QuantityTransferred)
		if t.Metadata.CryptoFeeUSDValue != nil {
			// add-to-basis fee value folds into the inherited basis
			inherited = inherited.Add(*t.Metadata.CryptoFeeUSDValue)
		}
	}

	var warnings []models.Warning
	if pct, level := CheckVariance(transferred, received, opts.Tolerance); level != VarianceOK {
		warnings = append(warnings, models.NewWarning(models.WarningVariance, map[string]any{
			"link_id":      link.ID,
			"kind":         "received-amount",
			"expected":     transferred.String(),
			"actual":       received.String(),
			"variance_pct": pct.String(),
		}))
	}

	fiatFees, feeWarnings := fiatFeesUSD(link, sourceTx, targetTx)
	warnings = append(warnings, feeWarnings...)

	costBasisPerUnit := inherited.Add(fiatFees).Div(received)

	lot := NewAcquisitionLot(
		opts.CalculationID,
		targetTx.ID,
		link.AssetID,
		link.AssetSymbol,
		received,
		costBasisPerUnit,
		targetTx.Timestamp,
		opts.Method,
		opts.Now,
	)
	return lot, warnings, nil
}

// fiatFeesUSD sums the USD value of fiat-denominated fees on either side
// of the transfer. Crypto fees are already accounted for in the transfer
// metadata or the disposal batch; fiat fees with no known price are
// excluded with a warning.
func fiatFeesUSD(link *models.TransactionLink, sourceTx, targetTx *models.Transaction) (decimal.Decimal, []models.Warning) {
	total := decimal.Zero
	var warnings []models.Warning

	for _, tx := range []*models.Transaction{sourceTx, targetTx} {
		if tx == nil {
			continue
		}
		for i := range tx.Fees {
			fee := &tx.Fees[i]
			if !pricing.IsFiat(fee.AssetSymbol) {
				continue
			}
			if fee.Price == nil || !strings.EqualFold(fee.Price.Price.Currency, "USD") {
				warnings = append(warnings, models.NewWarning(models.WarningMissingPrice, map[string]any{
					"link_id":        link.ID,
					"transaction_id": tx.ID,
					"asset":          fee.AssetSymbol,
					"kind":           "fiat-fee",
				}))
				continue
			}
			total = total.Add(fee.EffectiveAmount().Mul(fee.Price.Price.Amount))
		}
	}
	return total, warnings
}
