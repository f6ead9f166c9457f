// Package models defines the domain types shared across chaintax services
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SourceType identifies the kind of platform a transaction was recorded on.
type SourceType string

const (
	SourceTypeExchange   SourceType = "exchange"
	SourceTypeBlockchain SourceType = "blockchain"
)

// MovementDirection is the direction of an asset movement relative to the
// account that recorded it.
type MovementDirection string

const (
	DirectionIn  MovementDirection = "in"
	DirectionOut MovementDirection = "out"
)

// PriceSource tags how a movement price was obtained. Values form an
// implicit priority order: exchange-execution is authoritative,
// derived-ratio and link-propagated are execution-implied,
// fiat-execution-tentative awaits FX normalization, and derived-history
// is an external market quote of last resort.
type PriceSource string

const (
	PriceSourceExchangeExecution      PriceSource = "exchange-execution"
	PriceSourceFiatExecutionTentative PriceSource = "fiat-execution-tentative"
	PriceSourceDerivedRatio           PriceSource = "derived-ratio"
	PriceSourceLinkPropagated         PriceSource = "link-propagated"
	PriceSourceDerivedHistory         PriceSource = "derived-history"
)

// Price is an amount in a named fiat currency.
type Price struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// PriceAtTxTime is the fiat price attached to a single asset movement.
// Each movement in a transaction may carry an independently sourced price.
type PriceAtTxTime struct {
	Price       Price       `json:"price"`
	Source      PriceSource `json:"source"`
	FetchedAt   time.Time   `json:"fetched_at"`
	Granularity string      `json:"granularity,omitempty"`
}

// AssetMovement is one directional quantity of an asset within a
// transaction: an inflow, an outflow, or a fee.
type AssetMovement struct {
	AssetID     string           `json:"asset_id"`
	AssetSymbol string           `json:"asset_symbol"`
	Amount      decimal.Decimal  `json:"amount"`               // gross
	NetAmount   *decimal.Decimal `json:"net_amount,omitempty"` // gross minus embedded fees, when known
	FromAddress string           `json:"from_address,omitempty"`
	ToAddress   string           `json:"to_address,omitempty"`
	TxHash      string           `json:"tx_hash,omitempty"`
	Price       *PriceAtTxTime   `json:"price_at_tx_time,omitempty"`
}

// EffectiveAmount returns the net amount when present, else the gross.
func (m *AssetMovement) EffectiveAmount() decimal.Decimal {
	if m.NetAmount != nil {
		return *m.NetAmount
	}
	return m.Amount
}

// Clone returns a deep copy of the movement.
func (m AssetMovement) Clone() AssetMovement {
	out := m
	if m.NetAmount != nil {
		net := *m.NetAmount
		out.NetAmount = &net
	}
	if m.Price != nil {
		price := *m.Price
		out.Price = &price
	}
	return out
}

// Transaction is the normalized common transaction model produced by the
// per-source importers.
type Transaction struct {
	ID         string          `json:"id"`
	ExternalID string          `json:"external_id,omitempty"`
	Source     string          `json:"source"` // e.g. "kraken", "bitcoin"
	SourceType SourceType      `json:"source_type"`
	Timestamp  time.Time       `json:"timestamp"`
	Inflows    []AssetMovement `json:"inflows,omitempty"`
	Outflows   []AssetMovement `json:"outflows,omitempty"`
	Fees       []AssetMovement `json:"fees,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// IsSimpleTrade reports whether the transaction is a plain two-legged
// trade: exactly one inflow and one outflow.
func (t *Transaction) IsSimpleTrade() bool {
	return len(t.Inflows) == 1 && len(t.Outflows) == 1
}

// Clone returns a deep copy of the transaction. The pricing passes operate
// on copies so that unmodified inputs are never mutated.
func (t *Transaction) Clone() *Transaction {
	out := *t
	out.Inflows = cloneMovements(t.Inflows)
	out.Outflows = cloneMovements(t.Outflows)
	out.Fees = cloneMovements(t.Fees)
	return &out
}

func cloneMovements(in []AssetMovement) []AssetMovement {
	if in == nil {
		return nil
	}
	out := make([]AssetMovement, len(in))
	for i, m := range in {
		out[i] = m.Clone()
	}
	return out
}
