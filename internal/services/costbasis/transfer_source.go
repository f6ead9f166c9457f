package costbasis

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chaintax/chaintax/internal/common"
	"github.com/chaintax/chaintax/internal/models"
)

// FeePolicy mirrors the jurisdiction's same-asset transfer fee treatment.
type FeePolicy string

const (
	// FeePolicyAddToBasis disposes the full gross amount; the fee's value
	// carries into the new lot's basis via transfer metadata.
	FeePolicyAddToBasis FeePolicy = "add-to-basis"
	// FeePolicyDisposal disposes gross minus fee as the transfer and the
	// fee itself separately at zero proceeds.
	FeePolicyDisposal FeePolicy = "disposal"
)

// SourceLegOptions parameterizes transfer-source processing.
type SourceLegOptions struct {
	CalculationID string
	FeePolicy     FeePolicy
	Tolerance     common.VarianceTolerance
	// EffectiveAmount, when set, is a UTXO partial-outflow adjustment: the
	// fee is already baked into it, so fee extraction is skipped.
	EffectiveAmount *decimal.Decimal
}

// SourceLegResult is the bookkeeping produced by the source side of a
// transfer: disposals drawn from open lots, the lot transfers carrying
// basis to the target leg, and the updated lot set.
type SourceLegResult struct {
	Disposals   []models.LotDisposal
	Transfers   []models.LotTransfer
	UpdatedLots []*models.AcquisitionLot
	Warnings    []models.Warning
}

// ProcessTransferSource handles the outgoing leg of a confirmed transfer
// link: the transferred quantity leaves the source lot pool and its cost
// basis is recorded on LotTransfers for the target leg to inherit. The
// input lots slice is not mutated; decrements are applied in one batch at
// the end.
func ProcessTransferSource(link *models.TransactionLink, sourceTx *models.Transaction, lots []*models.AcquisitionLot, strategy Strategy, opts SourceLegOptions) (*SourceLegResult, error) {
	outflow := findMovement(sourceTx.Outflows, link.AssetID, link.AssetSymbol)
	if outflow == nil {
		return nil, fmt.Errorf("transaction %s has no outflow of %s for link %s", sourceTx.ID, link.AssetSymbol, link.ID)
	}

	result := &SourceLegResult{}

	gross := outflow.Amount
	fee := decimal.Zero
	if opts.EffectiveAmount != nil {
		gross = *opts.EffectiveAmount
	} else {
		fee = sameAssetFees(sourceTx, link.AssetID, link.AssetSymbol)
		if outflow.NetAmount != nil {
			// net must reconcile with gross minus on-chain fees
			pct, level := CheckVariance(gross.Sub(fee), *outflow.NetAmount, opts.Tolerance)
			switch level {
			case VarianceError:
				return nil, fmt.Errorf("transaction %s: net amount %s does not reconcile with gross %s minus fees %s (variance %s%%)", sourceTx.ID, outflow.NetAmount, gross, fee, pct.Round(2))
			case VarianceWarn:
				result.Warnings = append(result.Warnings, models.NewWarning(models.WarningVariance, map[string]any{
					"transaction_id": sourceTx.ID,
					"kind":           "net-reconciliation",
					"variance_pct":   pct.String(),
				}))
			}
		}
	}

	netTransfer := gross.Sub(fee)
	if !netTransfer.IsPositive() {
		return nil, fmt.Errorf("transaction %s: non-positive net transfer amount %s", sourceTx.ID, netTransfer)
	}

	// variance against the link's recorded target amount warns but never
	// blocks; the link was already validated at creation
	if pct, level := CheckVariance(netTransfer, link.TargetAmount, opts.Tolerance); level != VarianceOK {
		result.Warnings = append(result.Warnings, models.NewWarning(models.WarningVariance, map[string]any{
			"link_id":      link.ID,
			"kind":         "transfer-amount",
			"expected":     netTransfer.String(),
			"actual":       link.TargetAmount.String(),
			"variance_pct": pct.String(),
		}))
	}

	disposalQuantity := gross
	if opts.FeePolicy == FeePolicyDisposal {
		disposalQuantity = gross.Sub(fee)
	}

	mainDisposals, err := strategy.MatchDisposal(DisposalRequest{
		AssetSymbol:     link.AssetSymbol,
		Quantity:        disposalQuantity,
		Date:            sourceTx.Timestamp,
		ProceedsPerUnit: decimal.Zero,
		TransactionID:   sourceTx.ID,
	}, lots)
	if err != nil {
		return nil, err
	}
	result.Disposals = mainDisposals

	if opts.FeePolicy == FeePolicyDisposal && fee.IsPositive() {
		// the fee is its own zero-proceeds disposal against the lots left
		// after the main batch
		remaining, err := ApplyDisposals(lots, mainDisposals, sourceTx.Timestamp)
		if err != nil {
			return nil, err
		}
		feeDisposals, err := strategy.MatchDisposal(DisposalRequest{
			AssetSymbol:     link.AssetSymbol,
			Quantity:        fee,
			Date:            sourceTx.Timestamp,
			ProceedsPerUnit: decimal.Zero,
			TransactionID:   sourceTx.ID,
		}, remaining)
		if err != nil {
			return nil, err
		}
		result.Disposals = append(result.Disposals, feeDisposals...)
	}

	result.Transfers = buildLotTransfers(link, sourceTx, mainDisposals, netTransfer, fee, opts)

	updated, err := ApplyDisposals(lots, result.Disposals, sourceTx.Timestamp)
	if err != nil {
		return nil, err
	}
	result.UpdatedLots = updated

	return result, nil
}

// buildLotTransfers allocates the transferred quantity proportionally over
// the disposal batch. Under add-to-basis the disposed quantity includes
// the fee, so each transfer carries its share of the fee's USD value.
func buildLotTransfers(link *models.TransactionLink, sourceTx *models.Transaction, disposals []models.LotDisposal, netTransfer, fee decimal.Decimal, opts SourceLegOptions) []models.LotTransfer {
	totalDisposed := decimal.Zero
	for _, d := range disposals {
		totalDisposed = totalDisposed.Add(d.QuantityDisposed)
	}
	if !totalDisposed.IsPositive() {
		return nil
	}

	feeUSD := cryptoFeeUSDValue(sourceTx, link.AssetID, link.AssetSymbol, fee, opts.FeePolicy)

	transfers := make([]models.LotTransfer, 0, len(disposals))
	for _, d := range disposals {
		share := d.QuantityDisposed.Div(totalDisposed)
		transfer := models.LotTransfer{
			ID:                  uuid.NewString(),
			SourceLotID:         d.LotID,
			QuantityTransferred: netTransfer.Mul(share),
			CostBasisPerUnit:    d.CostBasisPerUnit,
			LinkID:              link.ID,
			SourceTransactionID: link.SourceTransactionID,
			TargetTransactionID: link.TargetTransactionID,
			TransferDate:        sourceTx.Timestamp,
		}
		if feeUSD != nil {
			portion := feeUSD.Mul(share)
			transfer.Metadata.CryptoFeeUSDValue = &portion
		}
		transfers = append(transfers, transfer)
	}
	return transfers
}

// cryptoFeeUSDValue resolves the USD value of the same-asset fee when the
// add-to-basis policy applies and the fee movement carries a known price.
func cryptoFeeUSDValue(sourceTx *models.Transaction, assetID, assetSymbol string, fee decimal.Decimal, policy FeePolicy) *decimal.Decimal {
	if policy != FeePolicyAddToBasis || !fee.IsPositive() {
		return nil
	}
	for i := range sourceTx.Fees {
		m := &sourceTx.Fees[i]
		if !movementMatchesAsset(m, assetID, assetSymbol) || m.Price == nil {
			continue
		}
		if !strings.EqualFold(m.Price.Price.Currency, "USD") {
			continue
		}
		value := fee.Mul(m.Price.Price.Amount)
		return &value
	}
	return nil
}

func findMovement(movements []models.AssetMovement, assetID, assetSymbol string) *models.AssetMovement {
	for i := range movements {
		if movementMatchesAsset(&movements[i], assetID, assetSymbol) {
			return &movements[i]
		}
	}
	return nil
}

func movementMatchesAsset(m *models.AssetMovement, assetID, assetSymbol string) bool {
	if assetID != "" && m.AssetID != "" {
		return m.AssetID == assetID
	}
	return strings.EqualFold(m.AssetSymbol, assetSymbol)
}

// sameAssetFees totals the network and platform fees denominated in the
// transferred asset.
func sameAssetFees(tx *models.Transaction, assetID, assetSymbol string) decimal.Decimal {
	total := decimal.Zero
	for i := range tx.Fees {
		if movementMatchesAsset(&tx.Fees[i], assetID, assetSymbol) {
			total = total.Add(tx.Fees[i].EffectiveAmount())
		}
	}
	return total
}
