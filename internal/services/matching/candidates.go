package matching

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/chaintax/chaintax/internal/models"
)

// SkipReason explains why no outflow adjustment applies to a group.
type SkipReason string

const (
	SkipNone        SkipReason = ""
	SkipNonPositive SkipReason = "non-positive"
	SkipNoAdjust    SkipReason = "no-adjustment"
)

// MovementAggregates holds per-transaction per-asset movement sums.
type MovementAggregates struct {
	InflowsByTx  map[string]map[string]decimal.Decimal
	OutflowsByTx map[string]map[string]decimal.Decimal
	AssetIDs     map[string]bool
}

// AggregateMovementsByTransaction sums movement amounts per transaction per
// asset, using the net amount when present, else the gross.
func AggregateMovementsByTransaction(txs []*models.Transaction) MovementAggregates {
	agg := MovementAggregates{
		InflowsByTx:  make(map[string]map[string]decimal.Decimal),
		OutflowsByTx: make(map[string]map[string]decimal.Decimal),
		AssetIDs:     make(map[string]bool),
	}
	for _, tx := range txs {
		for i := range tx.Inflows {
			addAmount(agg.InflowsByTx, tx.ID, tx.Inflows[i].AssetID, tx.Inflows[i].EffectiveAmount())
			agg.AssetIDs[tx.Inflows[i].AssetID] = true
		}
		for i := range tx.Outflows {
			addAmount(agg.OutflowsByTx, tx.ID, tx.Outflows[i].AssetID, tx.Outflows[i].EffectiveAmount())
			agg.AssetIDs[tx.Outflows[i].AssetID] = true
		}
	}
	return agg
}

func addAmount(byTx map[string]map[string]decimal.Decimal, txID, assetID string, amount decimal.Decimal) {
	assets, ok := byTx[txID]
	if !ok {
		assets = make(map[string]decimal.Decimal)
		byTx[txID] = assets
	}
	assets[assetID] = assets[assetID].Add(amount)
}

// OutflowAdjustment is the corrected external transfer amount for a UTXO
// cluster, attributed to a single representative transaction.
type OutflowAdjustment struct {
	RepresentativeTxID string
	Amount             decimal.Decimal
}

// CalculateOutflowAdjustment computes the true external transfer amount for
// a cluster of transactions that share an internal-transfer link:
// sum of outflows minus internal change inflows minus the deduplicated
// on-chain fee. The member with the smallest id acts as the representative.
// This relies on the upstream processor emitting one row per address; a
// multi-address row model would double count here.
func CalculateOutflowAdjustment(assetID string, group []*models.Transaction, agg MovementAggregates) (*OutflowAdjustment, SkipReason) {
	totalOut := decimal.Zero
	internalIn := decimal.Zero
	hasOutflow := false
	representative := ""

	for _, tx := range group {
		if out, ok := agg.OutflowsByTx[tx.ID][assetID]; ok {
			totalOut = totalOut.Add(out)
			hasOutflow = true
			if representative == "" || tx.ID < representative {
				representative = tx.ID
			}
		}
		if in, ok := agg.InflowsByTx[tx.ID][assetID]; ok {
			internalIn = internalIn.Add(in)
		}
	}

	if !hasOutflow || internalIn.IsZero() && len(group) < 2 {
		return nil, SkipNoAdjust
	}

	adjusted := totalOut.Sub(internalIn).Sub(dedupedFee(assetID, group))
	if !adjusted.IsPositive() {
		return nil, SkipNonPositive
	}

	return &OutflowAdjustment{RepresentativeTxID: representative, Amount: adjusted}, SkipNone
}

// dedupedFee sums the on-chain fee for the group, counting each underlying
// chain transaction once. Per-address rows of the same chain transaction
// repeat the same fee, keyed here by tx hash (falling back to the row id).
func dedupedFee(assetID string, group []*models.Transaction) decimal.Decimal {
	total := decimal.Zero
	seen := make(map[string]bool)
	for _, tx := range group {
		for i := range tx.Fees {
			fee := &tx.Fees[i]
			if fee.AssetID != assetID {
				continue
			}
			key := fee.TxHash
			if key == "" {
				key = tx.ID
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			total = total.Add(fee.EffectiveAmount())
		}
	}
	return total
}

// ConvertToCandidates flattens transactions into directional matching
// candidates: one per inflow and one per qualifying outflow. Non-
// representative members of an outflow grouping are skipped, their amount
// already folded into the representative's override.
func ConvertToCandidates(txs []*models.Transaction, amountOverrides map[string]decimal.Decimal, outflowGroupings [][]string) []models.TransactionCandidate {
	skip := make(map[string]bool)
	for _, group := range outflowGroupings {
		representative := ""
		for _, id := range group {
			if representative == "" || id < representative {
				representative = id
			}
		}
		for _, id := range group {
			if id != representative {
				skip[id] = true
			}
		}
	}

	var candidates []models.TransactionCandidate
	for _, tx := range txs {
		for i := range tx.Inflows {
			candidates = append(candidates, movementCandidate(tx, &tx.Inflows[i], models.DirectionIn, tx.Inflows[i].EffectiveAmount()))
		}
		if skip[tx.ID] {
			continue
		}
		for i := range tx.Outflows {
			amount := tx.Outflows[i].EffectiveAmount()
			if override, ok := amountOverrides[overrideKey(tx.ID, tx.Outflows[i].AssetID)]; ok {
				amount = override
			}
			candidates = append(candidates, movementCandidate(tx, &tx.Outflows[i], models.DirectionOut, amount))
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if !candidates[i].Timestamp.Equal(candidates[j].Timestamp) {
			return candidates[i].Timestamp.Before(candidates[j].Timestamp)
		}
		return candidates[i].TransactionID < candidates[j].TransactionID
	})
	return candidates
}

// overrideKey keys an amount override by transaction and asset.
func overrideKey(txID, assetID string) string {
	return txID + "|" + assetID
}

func movementCandidate(tx *models.Transaction, m *models.AssetMovement, dir models.MovementDirection, amount decimal.Decimal) models.TransactionCandidate {
	return models.TransactionCandidate{
		TransactionID: tx.ID,
		ExternalID:    tx.ExternalID,
		Source:        tx.Source,
		SourceType:    tx.SourceType,
		Timestamp:     tx.Timestamp,
		AssetID:       m.AssetID,
		AssetSymbol:   m.AssetSymbol,
		Amount:        amount,
		Direction:     dir,
		FromAddress:   m.FromAddress,
		ToAddress:     m.ToAddress,
		TxHash:        m.TxHash,
	}
}
