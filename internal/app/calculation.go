package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chaintax/chaintax/internal/models"
)

// CalculationReport summarizes one full pipeline run: matching, price
// enrichment, then lot accounting.
type CalculationReport struct {
	CalculationID       string           `json:"calculation_id"`
	StartedAt           time.Time        `json:"started_at"`
	CompletedAt         time.Time        `json:"completed_at"`
	LinksConfirmed      int              `json:"links_confirmed"`
	LinksSuggested      int              `json:"links_suggested"`
	TransactionsUpdated int              `json:"transactions_updated"`
	MovementsPriced     int              `json:"movements_priced"`
	LotsCreated         int              `json:"lots_created"`
	DisposalsCreated    int              `json:"disposals_created"`
	TransfersCreated    int              `json:"transfers_created"`
	Warnings            []models.Warning `json:"warnings,omitempty"`
	Errors              []string         `json:"errors,omitempty"`
}

// RunCalculation executes the full pipeline in order: cross-platform
// matching first so links exist, price enrichment second so the link
// propagation pass can run, and lot accounting last over the fully
// priced, linked transaction set.
func (a *App) RunCalculation(ctx context.Context) (*CalculationReport, error) {
	report := &CalculationReport{
		CalculationID: uuid.NewString(),
		StartedAt:     time.Now(),
	}

	a.Logger.Info().Str("calculation", report.CalculationID).Msg("Calculation started")

	matchResult, err := a.MatchingService.RunMatching(ctx)
	if err != nil {
		return nil, fmt.Errorf("matching failed: %w", err)
	}
	report.LinksConfirmed = len(matchResult.Confirmed)
	report.LinksSuggested = len(matchResult.Suggested)
	report.Warnings = append(report.Warnings, matchResult.Warnings...)

	pricingResult, err := a.PricingService.EnrichPrices(ctx)
	if err != nil {
		return nil, fmt.Errorf("price enrichment failed: %w", err)
	}
	report.TransactionsUpdated = pricingResult.TransactionsUpdated
	report.MovementsPriced = pricingResult.MovementsPriced
	report.Warnings = append(report.Warnings, pricingResult.Warnings...)

	costResult, err := a.CostBasisService.RunCalculation(ctx, report.CalculationID)
	if err != nil {
		return nil, fmt.Errorf("cost-basis calculation failed: %w", err)
	}
	report.LotsCreated = costResult.LotsCreated
	report.DisposalsCreated = costResult.DisposalsCreated
	report.TransfersCreated = costResult.TransfersCreated
	report.Warnings = append(report.Warnings, costResult.Warnings...)
	for _, procErr := range costResult.Errors {
		report.Errors = append(report.Errors, procErr.Error())
	}

	report.CompletedAt = time.Now()
	a.Logger.Info().
		Str("calculation", report.CalculationID).
		Int("links_confirmed", report.LinksConfirmed).
		Int("lots", report.LotsCreated).
		Int("disposals", report.DisposalsCreated).
		Int("errors", len(report.Errors)).
		Msg("Calculation complete")
	return report, nil
}
