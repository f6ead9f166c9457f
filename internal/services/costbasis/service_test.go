package costbasis

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaintax/chaintax/internal/common"
	"github.com/chaintax/chaintax/internal/models"
	"github.com/chaintax/chaintax/internal/storage"
)

func newTestService(t *testing.T) (*Service, *storage.Manager) {
	t.Helper()
	config := common.NewDefaultConfig()
	manager := storage.NewMemoryManager(common.NopLogger())
	t.Cleanup(func() { manager.Close() })
	svc := NewService(manager, config.Jurisdiction, config.Variance, common.NopLogger())
	return svc, manager
}

// A UTXO send spends a whole output and takes change back: the wallet
// sends 1.0 BTC gross, receives 0.3 change, pays 0.001 in fees, and the
// link records the 0.699 that actually moved. Only that 0.699 may leave
// the lot pool, and the change must not mint a second lot.
func TestRunCalculationUTXOPartialSpend(t *testing.T) {
	svc, manager := newTestService(t)
	ctx := context.Background()

	jan1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mar1 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	acquire := &models.Transaction{
		ID:         "tx-acquire",
		Source:     "bitcoin",
		SourceType: models.SourceTypeBlockchain,
		Timestamp:  jan1,
		Inflows: []models.AssetMovement{
			{AssetSymbol: "BTC", Amount: decimal.NewFromInt(1), Price: usdPrice("30000")},
		},
	}
	send := &models.Transaction{
		ID:         "tx-send",
		Source:     "bitcoin",
		SourceType: models.SourceTypeBlockchain,
		Timestamp:  mar1,
		Outflows: []models.AssetMovement{
			{AssetSymbol: "BTC", Amount: decimal.NewFromInt(1), TxHash: "h1"},
		},
		Inflows: []models.AssetMovement{
			// change back to the sending wallet
			{AssetSymbol: "BTC", Amount: decimal.RequireFromString("0.3"), TxHash: "h1"},
		},
		Fees: []models.AssetMovement{
			{AssetSymbol: "BTC", Amount: decimal.RequireFromString("0.001"), TxHash: "h1"},
		},
	}
	receive := &models.Transaction{
		ID:         "tx-receive",
		Source:     "bitcoin",
		SourceType: models.SourceTypeBlockchain,
		Timestamp:  mar1.Add(30 * time.Minute),
		Inflows: []models.AssetMovement{
			{AssetSymbol: "BTC", Amount: decimal.RequireFromString("0.699"), TxHash: "h1"},
		},
	}
	for _, tx := range []*models.Transaction{acquire, send, receive} {
		require.NoError(t, manager.Transactions().SaveTransaction(ctx, tx))
	}

	link := &models.TransactionLink{
		ID:                  "link-1",
		SourceTransactionID: "tx-send",
		TargetTransactionID: "tx-receive",
		AssetSymbol:         "BTC",
		SourceAmount:        decimal.RequireFromString("0.699"),
		TargetAmount:        decimal.RequireFromString("0.699"),
		LinkType:            models.LinkTypeBlockchainToBlockchain,
		ConfidenceScore:     decimal.NewFromInt(1),
		Status:              models.LinkStatusConfirmed,
	}
	require.NoError(t, manager.Links().SaveLink(ctx, link))

	result, err := svc.RunCalculation(ctx, "calc-utxo")
	require.NoError(t, err)
	require.Empty(t, result.Errors)

	// the acquisition lot and the receiving wallet's inherited lot; the
	// change inflow creates nothing
	assert.Equal(t, 2, result.LotsCreated)
	assert.Equal(t, 1, result.DisposalsCreated)
	assert.Equal(t, 1, result.TransfersCreated)

	lots, err := manager.Lots().ListLotsByCalculation(ctx, "calc-utxo")
	require.NoError(t, err)
	require.Len(t, lots, 2)

	var sourceLot, targetLot *models.AcquisitionLot
	for _, lot := range lots {
		switch lot.AcquisitionTransactionID {
		case "tx-acquire":
			sourceLot = lot
		case "tx-receive":
			targetLot = lot
		}
	}
	require.NotNil(t, sourceLot)
	require.NotNil(t, targetLot)

	// only the linked amount leaves the pool, not the gross outflow
	assert.True(t, sourceLot.RemainingQuantity.Equal(decimal.RequireFromString("0.301")),
		"remaining = %s", sourceLot.RemainingQuantity)
	assert.Equal(t, models.LotStatusPartiallyDisposed, sourceLot.Status)

	disposals, err := manager.Lots().ListDisposalsByCalculation(ctx, "calc-utxo")
	require.NoError(t, err)
	require.Len(t, disposals, 1)
	assert.True(t, disposals[0].QuantityDisposed.Equal(decimal.RequireFromString("0.699")),
		"disposed = %s", disposals[0].QuantityDisposed)

	assert.True(t, targetLot.Quantity.Equal(decimal.RequireFromString("0.699")))
	assert.True(t, targetLot.CostBasisPerUnit.Equal(decimal.NewFromInt(30000)),
		"basis per unit = %s", targetLot.CostBasisPerUnit)
	assert.Equal(t, models.LotStatusOpen, targetLot.Status)
}
