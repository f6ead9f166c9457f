package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionCandidate is one directional asset movement extracted from a
// transaction for matching. Candidates are built fresh per matching run and
// never persisted.
type TransactionCandidate struct {
	TransactionID string
	ExternalID    string
	Source        string
	SourceType    SourceType
	Timestamp     time.Time
	AssetID       string
	AssetSymbol   string
	Amount        decimal.Decimal
	Direction     MovementDirection
	FromAddress   string
	ToAddress     string
	TxHash        string
}

// MatchCriteria holds the computed comparison between two candidates.
// AddressMatch and HashMatch are nil when the comparison could not be made
// (missing data on either side).
type MatchCriteria struct {
	AssetMatch       bool            `json:"asset_match"`
	AmountSimilarity decimal.Decimal `json:"amount_similarity"`
	TimingValid      bool            `json:"timing_valid"`
	TimingHours      float64         `json:"timing_hours"`
	AddressMatch     *bool           `json:"address_match,omitempty"`
	HashMatch        *bool           `json:"hash_match,omitempty"`
}

// IsHashMatch reports whether the criteria carry a positive hash match.
func (c *MatchCriteria) IsHashMatch() bool {
	return c.HashMatch != nil && *c.HashMatch
}

// PotentialMatch pairs an outflow candidate with an inflow candidate and
// the computed confidence. Consumed immediately by the resolver.
type PotentialMatch struct {
	Source          TransactionCandidate
	Target          TransactionCandidate
	Criteria        MatchCriteria
	ConfidenceScore decimal.Decimal
	LinkType        LinkType
}
