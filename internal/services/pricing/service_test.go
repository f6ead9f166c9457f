package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaintax/chaintax/internal/common"
	"github.com/chaintax/chaintax/internal/models"
	"github.com/chaintax/chaintax/internal/storage"
)

// A movement priced on an earlier run must not count again when a later
// run prices a sibling movement on the same transaction.
func TestEnrichPricesCountsOnlyNewlyPricedMovements(t *testing.T) {
	ctx := context.Background()
	manager := storage.NewMemoryManager(common.NopLogger())
	t.Cleanup(func() { manager.Close() })

	tx := &models.Transaction{
		ID:         "tx-1",
		Source:     "kraken",
		SourceType: models.SourceTypeExchange,
		Timestamp:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Outflows: []models.AssetMovement{{
			AssetID: "BTC", AssetSymbol: "BTC", Amount: dec("1"),
			Price: &models.PriceAtTxTime{
				Price:  models.Price{Amount: dec("30000"), Currency: "USD"},
				Source: models.PriceSourceExchangeExecution,
			},
		}},
		Fees: []models.AssetMovement{
			{AssetID: "BTC", AssetSymbol: "BTC", Amount: dec("0.0001")},
		},
	}
	require.NoError(t, manager.Transactions().SaveTransaction(ctx, tx))

	svc := NewService(manager, nil, common.NopLogger())
	result, err := svc.EnrichPrices(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, result.TransactionsUpdated)
	// the outflow came in priced; only the fee is new
	assert.Equal(t, 1, result.MovementsPriced)

	stored, err := manager.Transactions().GetTransaction(ctx, "tx-1")
	require.NoError(t, err)
	require.NotNil(t, stored.Fees[0].Price)
	assert.True(t, stored.Fees[0].Price.Price.Amount.Equal(dec("30000")))
}
