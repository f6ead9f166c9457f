package memory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/chaintax/chaintax/internal/models"
)

func TestReadsReturnClones(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	tx := &models.Transaction{
		ID: "tx-1", Source: "kraken",
		Inflows: []models.AssetMovement{{AssetSymbol: "BTC", Amount: decimal.NewFromInt(1)}},
	}
	if err := store.SaveTransaction(ctx, tx); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetTransaction(ctx, "tx-1")
	if err != nil {
		t.Fatal(err)
	}
	got.Inflows[0].AssetSymbol = "ETH"

	again, _ := store.GetTransaction(ctx, "tx-1")
	if again.Inflows[0].AssetSymbol != "BTC" {
		t.Error("stored transaction was mutated through a read result")
	}
}

func TestUpdateMovementsUnknownTransaction(t *testing.T) {
	store := NewStore()
	if err := store.UpdateMovements(context.Background(), "missing", nil, nil, nil); err == nil {
		t.Fatal("expected not-found error")
	}
}

func TestDisposalsAndTransfersScopedByCalculation(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	if err := store.SaveDisposal(ctx, "calc-1", &models.LotDisposal{LotID: "lot-1"}); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveDisposal(ctx, "calc-2", &models.LotDisposal{LotID: "lot-2"}); err != nil {
		t.Fatal(err)
	}
	disposals, err := store.ListDisposalsByCalculation(ctx, "calc-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(disposals) != 1 || disposals[0].LotID != "lot-1" {
		t.Fatalf("disposals = %+v, want only calc-1's", disposals)
	}

	if err := store.SaveTransfer(ctx, "calc-1", &models.LotTransfer{ID: "tr-1", LinkID: "link-1"}); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveTransfer(ctx, "calc-1", &models.LotTransfer{ID: "tr-2", LinkID: "link-2"}); err != nil {
		t.Fatal(err)
	}
	transfers, err := store.ListTransfersByLink(ctx, "calc-1", "link-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(transfers) != 1 || transfers[0].ID != "tr-1" {
		t.Fatalf("transfers = %+v, want only link-1's", transfers)
	}
}
