package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/chaintax/chaintax/internal/common"
	"github.com/chaintax/chaintax/internal/interfaces"
	"github.com/chaintax/chaintax/internal/models"
)

// Service implements PricingService
type Service struct {
	storage    interfaces.StorageManager
	marketData interfaces.MarketDataClient // optional last-resort source
	logger     *common.Logger
}

// NewService creates a new pricing service. marketData may be nil, in
// which case movements the passes cannot price stay unpriced.
func NewService(storage interfaces.StorageManager, marketData interfaces.MarketDataClient, logger *common.Logger) *Service {
	return &Service{
		storage:    storage,
		marketData: marketData,
		logger:     logger,
	}
}

// EnrichPrices runs the full inference pipeline over transactions that
// still have unpriced movements and persists only the modified ones.
// Per-transaction persistence failures are collected so one bad batch does
// not lose the rest.
func (s *Service) EnrichPrices(ctx context.Context) (*interfaces.PricingResult, error) {
	txs, err := s.storage.Transactions().ListTransactionsNeedingPrices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions needing prices: %w", err)
	}
	links, err := s.storage.Links().ListLinksByStatus(ctx, models.LinkStatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to load confirmed links: %w", err)
	}
	s.logger.Info().Int("transactions", len(txs)).Int("links", len(links)).Msg("Starting price inference")

	now := time.Now()
	modified := make(map[string]bool)
	pricedBefore := make(map[string]int, len(txs))
	for _, tx := range txs {
		pricedBefore[tx.ID] = countPriced(tx)
	}

	run := func(pass PassResult) []*models.Transaction {
		for id := range pass.ModifiedIDs {
			modified[id] = true
		}
		return pass.Transactions
	}

	current := run(ApplyExecutionPrices(txs, now))
	current = run(DeriveMissingInflowPrices(current, now))
	current = run(OverrideCryptoCryptoInflows(current, now))
	current = run(PropagateLinkPrices(current, links, now))
	current = run(EnrichFeePrices(current, now))

	result := &interfaces.PricingResult{}

	if s.marketData != nil {
		current = run(s.fillFromMarketHistory(ctx, current, result))
	}

	for _, tx := range current {
		if !modified[tx.ID] {
			continue
		}
		if err := s.storage.Transactions().UpdateMovements(ctx, tx.ID, tx.Inflows, tx.Outflows, tx.Fees); err != nil {
			s.logger.Warn().Err(err).Str("tx", tx.ID).Msg("Failed to persist priced movements")
			result.Warnings = append(result.Warnings, models.NewWarning(models.WarningMissingPrice, map[string]any{
				"transaction_id": tx.ID,
				"error":          err.Error(),
			}))
			continue
		}
		result.TransactionsUpdated++
		// only movements stamped by this run count
		result.MovementsPriced += countPriced(tx) - pricedBefore[tx.ID]
	}

	s.logger.Info().
		Int("updated", result.TransactionsUpdated).
		Int("movements", result.MovementsPriced).
		Msg("Price inference complete")
	return result, nil
}

// fillFromMarketHistory prices remaining bare movements from the
// historical market-data provider, tagged derived-history. Provider
// failures demote to warnings; a missing quote is not fatal.
func (s *Service) fillFromMarketHistory(ctx context.Context, txs []*models.Transaction, result *interfaces.PricingResult) PassResult {
	return transform(txs, func(tx *models.Transaction) bool {
		modified := false
		for _, movements := range [][]models.AssetMovement{tx.Inflows, tx.Outflows, tx.Fees} {
			for i := range movements {
				m := &movements[i]
				if m.Price != nil || IsFiat(m.AssetSymbol) {
					continue
				}
				price, err := s.marketData.GetHistoricalPriceUSD(ctx, m.AssetSymbol, tx.Timestamp)
				if err != nil {
					result.Warnings = append(result.Warnings, models.NewWarning(models.WarningMissingPrice, map[string]any{
						"transaction_id": tx.ID,
						"asset":          m.AssetSymbol,
						"error":          err.Error(),
					}))
					continue
				}
				m.Price = &models.PriceAtTxTime{
					Price:       models.Price{Amount: price, Currency: USD},
					Source:      models.PriceSourceDerivedHistory,
					FetchedAt:   time.Now(),
					Granularity: "day",
				}
				modified = true
			}
		}
		return modified
	})
}

func countPriced(tx *models.Transaction) int {
	count := 0
	for _, movements := range [][]models.AssetMovement{tx.Inflows, tx.Outflows, tx.Fees} {
		for i := range movements {
			if movements[i].Price != nil {
				count++
			}
		}
	}
	return count
}
