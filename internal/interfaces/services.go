package interfaces

import (
	"context"

	"github.com/chaintax/chaintax/internal/models"
)

// MatchingResult summarizes one matching run.
type MatchingResult struct {
	Confirmed []*models.TransactionLink
	Suggested []*models.TransactionLink
	Warnings  []models.Warning
}

// MatchingService finds and resolves cross-platform transfer links.
type MatchingService interface {
	// RunMatching builds candidates from all stored transactions, scores
	// and resolves matches, and persists the resulting links.
	RunMatching(ctx context.Context) (*MatchingResult, error)
}

// PricingResult summarizes one price-inference run.
type PricingResult struct {
	TransactionsUpdated int
	MovementsPriced     int
	Warnings            []models.Warning
}

// PricingService runs the multi-pass price inference pipeline over stored
// transactions and persists movement deltas.
type PricingService interface {
	EnrichPrices(ctx context.Context) (*PricingResult, error)
}

// CostBasisResult summarizes one cost-basis calculation run.
type CostBasisResult struct {
	CalculationID    string
	LotsCreated      int
	DisposalsCreated int
	TransfersCreated int
	Warnings         []models.Warning
	Errors           []error
}

// CostBasisService computes acquisition lots, disposals, and lot transfers
// for a calculation run.
type CostBasisService interface {
	// RunCalculation processes all priced transactions in dependency order
	// under the configured accounting method, persisting lots, disposals,
	// and transfers tagged with calculationID.
	RunCalculation(ctx context.Context, calculationID string) (*CostBasisResult, error)
}
