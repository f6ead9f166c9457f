package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountingMethod selects the cost-basis lot matching strategy.
type AccountingMethod string

const (
	MethodFIFO        AccountingMethod = "fifo"
	MethodLIFO        AccountingMethod = "lifo"
	MethodAverageCost AccountingMethod = "average-cost"
	MethodSpecificID  AccountingMethod = "specific-id"
)

// LotStatus describes how much of an acquisition lot has been consumed.
type LotStatus string

const (
	LotStatusOpen             LotStatus = "open"
	LotStatusPartiallyDisposed LotStatus = "partially_disposed"
	LotStatusFullyDisposed    LotStatus = "fully_disposed"
)

// LotStatusFor computes the status implied by remaining vs total quantity.
// Status is always a pure function of these two values.
func LotStatusFor(remaining, quantity decimal.Decimal) LotStatus {
	switch {
	case remaining.IsZero():
		return LotStatusFullyDisposed
	case remaining.LessThan(quantity):
		return LotStatusPartiallyDisposed
	default:
		return LotStatusOpen
	}
}

// AcquisitionLot is a quantity of an asset acquired at a point in time at a
// known unit cost. Lots are never deleted, only status-transitioned as
// disposals consume their remaining quantity.
type AcquisitionLot struct {
	ID                       string           `json:"id"`
	CalculationID            string           `json:"calculation_id"`
	AcquisitionTransactionID string           `json:"acquisition_transaction_id"`
	AssetID                  string           `json:"asset_id"`
	AssetSymbol              string           `json:"asset_symbol"`
	Quantity                 decimal.Decimal  `json:"quantity"`
	CostBasisPerUnit         decimal.Decimal  `json:"cost_basis_per_unit"`
	TotalCostBasis           decimal.Decimal  `json:"total_cost_basis"`
	AcquisitionDate          time.Time        `json:"acquisition_date"`
	Method                   AccountingMethod `json:"method"`
	RemainingQuantity        decimal.Decimal  `json:"remaining_quantity"`
	Status                   LotStatus        `json:"status"`
	CreatedAt                time.Time        `json:"created_at"`
	UpdatedAt                time.Time        `json:"updated_at"`
}

// LotDisposal records consuming part of a lot to satisfy an outflow.
// Immutable once created.
type LotDisposal struct {
	LotID            string          `json:"lot_id"`
	QuantityDisposed decimal.Decimal `json:"quantity_disposed"`
	CostBasisPerUnit decimal.Decimal `json:"cost_basis_per_unit"`
	ProceedsPerUnit  decimal.Decimal `json:"proceeds_per_unit"`
	TransactionID    string          `json:"transaction_id"`
	Date             time.Time       `json:"date"`
}

// LotTransferMetadata carries optional extras recorded on a transfer.
type LotTransferMetadata struct {
	// CryptoFeeUSDValue is the USD value of the on-chain fee folded into
	// basis under the add-to-basis policy.
	CryptoFeeUSDValue *decimal.Decimal `json:"crypto_fee_usd_value,omitempty"`
}

// LotTransfer records cost-basis inheritance across a transaction link:
// quantity leaving a source lot that the target leg turns into a new lot.
type LotTransfer struct {
	ID                  string              `json:"id"`
	SourceLotID         string              `json:"source_lot_id"`
	QuantityTransferred decimal.Decimal     `json:"quantity_transferred"`
	CostBasisPerUnit    decimal.Decimal     `json:"cost_basis_per_unit"`
	LinkID              string              `json:"link_id"`
	SourceTransactionID string              `json:"source_transaction_id"`
	TargetTransactionID string              `json:"target_transaction_id"`
	Metadata            LotTransferMetadata `json:"metadata"`
	TransferDate        time.Time           `json:"transfer_date"`
}
