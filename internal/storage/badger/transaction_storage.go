package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/chaintax/chaintax/internal/models"
)

func (s *Store) GetTransaction(_ context.Context, id string) (*models.Transaction, error) {
	var tx models.Transaction
	if err := s.db.Get(id, &tx); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("transaction '%s' not found", id)
		}
		return nil, fmt.Errorf("failed to get transaction '%s': %w", id, err)
	}
	return &tx, nil
}

func (s *Store) SaveTransaction(_ context.Context, tx *models.Transaction) error {
	now := time.Now()
	var existing models.Transaction
	if err := s.db.Get(tx.ID, &existing); err == nil {
		tx.CreatedAt = existing.CreatedAt
	} else if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	tx.UpdatedAt = now

	if err := s.db.Upsert(tx.ID, tx); err != nil {
		return fmt.Errorf("failed to save transaction '%s': %w", tx.ID, err)
	}
	s.logger.Debug().Str("id", tx.ID).Str("source", tx.Source).Msg("Transaction saved")
	return nil
}

func (s *Store) ListTransactions(_ context.Context) ([]*models.Transaction, error) {
	var txs []models.Transaction
	if err := s.db.Find(&txs, nil); err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return toPointers(txs), nil
}

func (s *Store) ListTransactionsBySource(_ context.Context, source string) ([]*models.Transaction, error) {
	var txs []models.Transaction
	if err := s.db.Find(&txs, badgerhold.Where("Source").Eq(source)); err != nil {
		return nil, fmt.Errorf("failed to list transactions for source '%s': %w", source, err)
	}
	return toPointers(txs), nil
}

// ListTransactionsNeedingPrices filters in memory: movement prices live
// inside nested slices BadgerHold cannot index.
func (s *Store) ListTransactionsNeedingPrices(ctx context.Context) ([]*models.Transaction, error) {
	all, err := s.ListTransactions(ctx)
	if err != nil {
		return nil, err
	}
	var needing []*models.Transaction
	for _, tx := range all {
		if transactionNeedsPrices(tx) {
			needing = append(needing, tx)
		}
	}
	return needing, nil
}

func (s *Store) UpdateMovements(ctx context.Context, id string, inflows, outflows, fees []models.AssetMovement) error {
	tx, err := s.GetTransaction(ctx, id)
	if err != nil {
		return err
	}
	tx.Inflows = inflows
	tx.Outflows = outflows
	tx.Fees = fees
	return s.SaveTransaction(ctx, tx)
}

func transactionNeedsPrices(tx *models.Transaction) bool {
	for _, group := range [][]models.AssetMovement{tx.Inflows, tx.Outflows, tx.Fees} {
		for i := range group {
			if group[i].Price == nil {
				return true
			}
		}
	}
	return false
}

func toPointers(txs []models.Transaction) []*models.Transaction {
	out := make([]*models.Transaction, len(txs))
	for i := range txs {
		out[i] = &txs[i]
	}
	return out
}
