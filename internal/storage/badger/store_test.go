package badger

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chaintax/chaintax/internal/common"
	"github.com/chaintax/chaintax/internal/models"
)

func newUnitTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(common.NopLogger(), t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestTransactionCRUD(t *testing.T) {
	store := newUnitTestStore(t)
	ctx := context.Background()

	tx := &models.Transaction{
		ID:         "tx-1",
		Source:     "kraken",
		SourceType: models.SourceTypeExchange,
		Timestamp:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Outflows: []models.AssetMovement{
			{AssetSymbol: "BTC", Amount: decimal.NewFromInt(1)},
		},
	}
	if err := store.SaveTransaction(ctx, tx); err != nil {
		t.Fatalf("SaveTransaction: %v", err)
	}

	got, err := store.GetTransaction(ctx, "tx-1")
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if got.Source != "kraken" || len(got.Outflows) != 1 {
		t.Errorf("got %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	// update preserves CreatedAt
	created := got.CreatedAt
	tx.Source = "binance"
	if err := store.SaveTransaction(ctx, tx); err != nil {
		t.Fatalf("SaveTransaction update: %v", err)
	}
	got, _ = store.GetTransaction(ctx, "tx-1")
	if got.Source != "binance" {
		t.Error("Source not updated")
	}
	if !got.CreatedAt.Equal(created) {
		t.Error("CreatedAt should be preserved on update")
	}

	if _, err := store.GetTransaction(ctx, "nope"); err == nil {
		t.Error("expected not-found error")
	}
}

func TestListTransactionsNeedingPrices(t *testing.T) {
	store := newUnitTestStore(t)
	ctx := context.Background()

	priced := &models.Transaction{
		ID: "tx-priced", Source: "kraken",
		Inflows: []models.AssetMovement{{
			AssetSymbol: "BTC", Amount: decimal.NewFromInt(1),
			Price: &models.PriceAtTxTime{Price: models.Price{Amount: decimal.NewFromInt(50000), Currency: "USD"}},
		}},
	}
	unpriced := &models.Transaction{
		ID: "tx-unpriced", Source: "kraken",
		Inflows: []models.AssetMovement{{AssetSymbol: "BTC", Amount: decimal.NewFromInt(1)}},
	}
	for _, tx := range []*models.Transaction{priced, unpriced} {
		if err := store.SaveTransaction(ctx, tx); err != nil {
			t.Fatal(err)
		}
	}

	needing, err := store.ListTransactionsNeedingPrices(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(needing) != 1 || needing[0].ID != "tx-unpriced" {
		t.Fatalf("needing = %+v, want only tx-unpriced", needing)
	}
}

func TestUpdateMovements(t *testing.T) {
	store := newUnitTestStore(t)
	ctx := context.Background()

	tx := &models.Transaction{
		ID: "tx-1", Source: "kraken",
		Inflows: []models.AssetMovement{{AssetSymbol: "BTC", Amount: decimal.NewFromInt(1)}},
	}
	if err := store.SaveTransaction(ctx, tx); err != nil {
		t.Fatal(err)
	}

	inflows := []models.AssetMovement{{
		AssetSymbol: "BTC", Amount: decimal.NewFromInt(1),
		Price: &models.PriceAtTxTime{
			Price:  models.Price{Amount: decimal.NewFromInt(50000), Currency: "USD"},
			Source: models.PriceSourceExchangeExecution,
		},
	}}
	if err := store.UpdateMovements(ctx, "tx-1", inflows, nil, nil); err != nil {
		t.Fatalf("UpdateMovements: %v", err)
	}

	got, _ := store.GetTransaction(ctx, "tx-1")
	if got.Inflows[0].Price == nil || got.Inflows[0].Price.Source != models.PriceSourceExchangeExecution {
		t.Errorf("price not persisted: %+v", got.Inflows[0])
	}
}

func TestLinksByStatus(t *testing.T) {
	store := newUnitTestStore(t)
	ctx := context.Background()

	links := []*models.TransactionLink{
		{ID: "link-1", SourceTransactionID: "a", TargetTransactionID: "b", Status: models.LinkStatusConfirmed},
		{ID: "link-2", SourceTransactionID: "c", TargetTransactionID: "d", Status: models.LinkStatusSuggested},
	}
	for _, link := range links {
		if err := store.SaveLink(ctx, link); err != nil {
			t.Fatal(err)
		}
	}

	confirmed, err := store.ListLinksByStatus(ctx, models.LinkStatusConfirmed)
	if err != nil {
		t.Fatal(err)
	}
	if len(confirmed) != 1 || confirmed[0].ID != "link-1" {
		t.Fatalf("confirmed = %+v, want only link-1", confirmed)
	}

	all, err := store.ListLinks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d links, want 2", len(all))
	}
}

func TestLotsDisposalsTransfers(t *testing.T) {
	store := newUnitTestStore(t)
	ctx := context.Background()

	lot := &models.AcquisitionLot{
		ID:            "lot-1",
		CalculationID: "calc-1",
		AssetSymbol:   "BTC",
		Quantity:      decimal.NewFromInt(1),
	}
	if err := store.SaveLot(ctx, lot); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveLot(ctx, &models.AcquisitionLot{ID: "lot-2", CalculationID: "calc-other"}); err != nil {
		t.Fatal(err)
	}

	lots, err := store.ListLotsByCalculation(ctx, "calc-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(lots) != 1 || lots[0].ID != "lot-1" {
		t.Fatalf("lots = %+v, want only lot-1", lots)
	}

	disposal := &models.LotDisposal{LotID: "lot-1", QuantityDisposed: decimal.NewFromInt(1), TransactionID: "tx-1"}
	if err := store.SaveDisposal(ctx, "calc-1", disposal); err != nil {
		t.Fatal(err)
	}
	disposals, err := store.ListDisposalsByCalculation(ctx, "calc-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(disposals) != 1 || disposals[0].LotID != "lot-1" {
		t.Fatalf("disposals = %+v, want one for lot-1", disposals)
	}

	transfer := &models.LotTransfer{ID: "tr-1", SourceLotID: "lot-1", LinkID: "link-1"}
	if err := store.SaveTransfer(ctx, "calc-1", transfer); err != nil {
		t.Fatal(err)
	}
	transfers, err := store.ListTransfersByLink(ctx, "calc-1", "link-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(transfers) != 1 || transfers[0].ID != "tr-1" {
		t.Fatalf("transfers = %+v, want one for link-1", transfers)
	}
	if empty, _ := store.ListTransfersByLink(ctx, "calc-1", "link-other"); len(empty) != 0 {
		t.Fatalf("transfers for unrelated link = %+v, want none", empty)
	}
}
