package pricing

import (
	"testing"
	"time"

	"github.com/chaintax/chaintax/internal/models"
)

func confirmedLink(sourceTx, targetTx, assetID string) *models.TransactionLink {
	return &models.TransactionLink{
		ID:                  "link-" + sourceTx + "-" + targetTx,
		SourceTransactionID: sourceTx,
		TargetTransactionID: targetTx,
		AssetID:             assetID,
		AssetSymbol:         assetID,
		Status:              models.LinkStatusConfirmed,
	}
}

func TestPropagateLinkPrices(t *testing.T) {
	source := &models.Transaction{
		ID:        "tx-out",
		Timestamp: passNow,
		Outflows: []models.AssetMovement{{
			AssetID: "BTC", AssetSymbol: "BTC", Amount: dec("1"),
			Price: &models.PriceAtTxTime{
				Price:  models.Price{Amount: dec("30000"), Currency: "USD"},
				Source: models.PriceSourceExchangeExecution,
			},
		}},
	}
	target := &models.Transaction{
		ID:        "tx-in",
		Timestamp: passNow.Add(10 * time.Minute),
		Inflows: []models.AssetMovement{{
			AssetID: "BTC", AssetSymbol: "BTC", Amount: dec("0.999"),
		}},
	}

	result := PropagateLinkPrices(
		[]*models.Transaction{source, target},
		[]*models.TransactionLink{confirmedLink("tx-out", "tx-in", "BTC")},
		passNow,
	)

	price := result.Transactions[1].Inflows[0].Price
	if price == nil {
		t.Fatal("target inflow not priced")
	}
	if !price.Price.Amount.Equal(dec("30000")) {
		t.Errorf("propagated price = %s, want 30000", price.Price.Amount)
	}
	if price.Source != models.PriceSourceLinkPropagated {
		t.Errorf("source = %s, want link-propagated", price.Source)
	}
	if !result.ModifiedIDs["tx-in"] || result.ModifiedIDs["tx-out"] {
		t.Errorf("modified ids = %v, want only tx-in", result.ModifiedIDs)
	}
}

func TestPropagateLinkPrices_SkipsUnconfirmed(t *testing.T) {
	source := &models.Transaction{
		ID: "tx-out",
		Outflows: []models.AssetMovement{{
			AssetID: "BTC", AssetSymbol: "BTC", Amount: dec("1"),
			Price: &models.PriceAtTxTime{Price: models.Price{Amount: dec("30000"), Currency: "USD"}},
		}},
	}
	target := &models.Transaction{
		ID:      "tx-in",
		Inflows: []models.AssetMovement{{AssetID: "BTC", AssetSymbol: "BTC", Amount: dec("1")}},
	}
	link := confirmedLink("tx-out", "tx-in", "BTC")
	link.Status = models.LinkStatusSuggested

	result := PropagateLinkPrices([]*models.Transaction{source, target}, []*models.TransactionLink{link}, passNow)
	if len(result.ModifiedIDs) != 0 {
		t.Error("suggested link should not propagate prices")
	}
}

func TestPropagateLinkPrices_FirstMatchingInflowOnly(t *testing.T) {
	source := &models.Transaction{
		ID: "tx-out",
		Outflows: []models.AssetMovement{{
			AssetID: "BTC", AssetSymbol: "BTC", Amount: dec("1"),
			Price: &models.PriceAtTxTime{
				Price:  models.Price{Amount: dec("30000"), Currency: "USD"},
				Source: models.PriceSourceExchangeExecution,
			},
		}},
	}
	// both inflows sit within tolerance of the outflow
	target := &models.Transaction{
		ID: "tx-in",
		Inflows: []models.AssetMovement{
			{AssetID: "BTC", AssetSymbol: "BTC", Amount: dec("0.999")},
			{AssetID: "BTC", AssetSymbol: "BTC", Amount: dec("0.998")},
		},
	}

	result := PropagateLinkPrices(
		[]*models.Transaction{source, target},
		[]*models.TransactionLink{confirmedLink("tx-out", "tx-in", "BTC")},
		passNow,
	)

	inflows := result.Transactions[1].Inflows
	if inflows[0].Price == nil {
		t.Fatal("first inflow not priced")
	}
	if !inflows[0].Price.Price.Amount.Equal(dec("30000")) {
		t.Errorf("first inflow price = %s, want 30000", inflows[0].Price.Price.Amount)
	}
	if inflows[1].Price != nil {
		t.Errorf("second inflow priced %+v, want only the first to receive the price", inflows[1].Price)
	}
}

func TestPropagateLinkPrices_AmountToleranceEnforced(t *testing.T) {
	source := &models.Transaction{
		ID: "tx-out",
		Outflows: []models.AssetMovement{{
			AssetID: "BTC", AssetSymbol: "BTC", Amount: dec("1"),
			Price: &models.PriceAtTxTime{Price: models.Price{Amount: dec("30000"), Currency: "USD"}},
		}},
	}
	// amount differs by far more than network fees explain
	target := &models.Transaction{
		ID:      "tx-in",
		Inflows: []models.AssetMovement{{AssetID: "BTC", AssetSymbol: "BTC", Amount: dec("0.5")}},
	}

	result := PropagateLinkPrices(
		[]*models.Transaction{source, target},
		[]*models.TransactionLink{confirmedLink("tx-out", "tx-in", "BTC")},
		passNow,
	)
	if len(result.ModifiedIDs) != 0 {
		t.Error("out-of-tolerance amounts should not propagate")
	}
}

func TestEnrichFeePrices(t *testing.T) {
	tx := &models.Transaction{
		ID:        "tx-1",
		Timestamp: passNow,
		Outflows: []models.AssetMovement{{
			AssetID: "BTC", AssetSymbol: "BTC", Amount: dec("1"),
			Price: &models.PriceAtTxTime{
				Price:  models.Price{Amount: dec("30000"), Currency: "USD"},
				Source: models.PriceSourceExchangeExecution,
			},
		}},
		Fees: []models.AssetMovement{
			{AssetID: "BTC", AssetSymbol: "BTC", Amount: dec("0.0001")},
			{AssetID: "EUR", AssetSymbol: "EUR", Amount: dec("1.5")},
			{AssetID: "XMR", AssetSymbol: "XMR", Amount: dec("0.01")},
		},
	}

	result := EnrichFeePrices([]*models.Transaction{tx}, passNow)
	fees := result.Transactions[0].Fees

	if fees[0].Price == nil || !fees[0].Price.Price.Amount.Equal(dec("30000")) {
		t.Errorf("same-asset fee price = %+v, want copied 30000", fees[0].Price)
	}
	if fees[1].Price == nil || fees[1].Price.Source != models.PriceSourceFiatExecutionTentative {
		t.Errorf("fiat fee price = %+v, want tentative identity", fees[1].Price)
	}
	if fees[2].Price != nil {
		t.Error("unpriceable crypto fee should stay bare")
	}
}
