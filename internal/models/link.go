package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LinkType categorizes the platform pairing of a transfer link.
type LinkType string

const (
	LinkTypeExchangeToBlockchain   LinkType = "exchange_to_blockchain"
	LinkTypeBlockchainToBlockchain LinkType = "blockchain_to_blockchain"
	LinkTypeExchangeToExchange     LinkType = "exchange_to_exchange"
)

// LinkStatus is the review lifecycle state of a transaction link.
type LinkStatus string

const (
	LinkStatusSuggested LinkStatus = "suggested"
	LinkStatusConfirmed LinkStatus = "confirmed"
	LinkStatusRejected  LinkStatus = "rejected"
)

// LinkMetadata carries audit data computed at link creation.
type LinkMetadata struct {
	Variance    decimal.Decimal `json:"variance"`
	VariancePct decimal.Decimal `json:"variance_pct"`
	ImpliedFee  decimal.Decimal `json:"implied_fee"`
}

// TransactionLink is the durable record of a resolved match between an
// outgoing and an incoming transaction. Once confirmed it is immutable
// except for the review fields.
type TransactionLink struct {
	ID                  string          `json:"id"`
	SourceTransactionID string          `json:"source_transaction_id"`
	TargetTransactionID string          `json:"target_transaction_id"`
	AssetID             string          `json:"asset_id"`
	AssetSymbol         string          `json:"asset_symbol"`
	SourceAmount        decimal.Decimal `json:"source_amount"`
	TargetAmount        decimal.Decimal `json:"target_amount"`
	LinkType            LinkType        `json:"link_type"`
	ConfidenceScore     decimal.Decimal `json:"confidence_score"`
	MatchCriteria       MatchCriteria   `json:"match_criteria"`
	Status              LinkStatus      `json:"status"`
	ReviewedBy          string          `json:"reviewed_by,omitempty"`
	ReviewedAt          *time.Time      `json:"reviewed_at,omitempty"`
	Metadata            LinkMetadata    `json:"metadata"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// DeriveLinkType maps a source/target platform pairing to a link type.
// A blockchain source with an exchange target is not an expected pairing
// (deposits to exchanges surface as exchange-side transactions); it falls
// back to exchange_to_blockchain. TODO: revisit the fallback once
// blockchain->exchange candidates are observed in real data.
func DeriveLinkType(source, target SourceType) LinkType {
	switch {
	case source == SourceTypeExchange && target == SourceTypeBlockchain:
		return LinkTypeExchangeToBlockchain
	case source == SourceTypeBlockchain && target == SourceTypeBlockchain:
		return LinkTypeBlockchainToBlockchain
	case source == SourceTypeExchange && target == SourceTypeExchange:
		return LinkTypeExchangeToExchange
	default:
		return LinkTypeExchangeToBlockchain
	}
}
