// Package memory implements chaintax storage with in-process maps.
// It backs tests and the "memory" storage backend; nothing survives a
// restart.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chaintax/chaintax/internal/models"
)

// Store holds all records behind a single mutex. Reads return clones so
// callers can mutate results freely.
type Store struct {
	mu        sync.RWMutex
	txs       map[string]*models.Transaction
	links     map[string]*models.TransactionLink
	lots      map[string]*models.AcquisitionLot
	disposals map[string][]models.LotDisposal
	transfers map[string][]models.LotTransfer
}

func NewStore() *Store {
	return &Store{
		txs:       make(map[string]*models.Transaction),
		links:     make(map[string]*models.TransactionLink),
		lots:      make(map[string]*models.AcquisitionLot),
		disposals: make(map[string][]models.LotDisposal),
		transfers: make(map[string][]models.LotTransfer),
	}
}

func (s *Store) Close() error {
	return nil
}

// --- Transactions ---

func (s *Store) GetTransaction(_ context.Context, id string) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.txs[id]
	if !ok {
		return nil, fmt.Errorf("transaction '%s' not found", id)
	}
	return tx.Clone(), nil
}

func (s *Store) SaveTransaction(_ context.Context, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if existing, ok := s.txs[tx.ID]; ok {
		tx.CreatedAt = existing.CreatedAt
	} else if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	tx.UpdatedAt = now
	s.txs[tx.ID] = tx.Clone()
	return nil
}

func (s *Store) ListTransactions(_ context.Context) ([]*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Transaction, 0, len(s.txs))
	for _, tx := range s.txs {
		out = append(out, tx.Clone())
	}
	return out, nil
}

func (s *Store) ListTransactionsBySource(_ context.Context, source string) ([]*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Transaction
	for _, tx := range s.txs {
		if tx.Source == source {
			out = append(out, tx.Clone())
		}
	}
	return out, nil
}

func (s *Store) ListTransactionsNeedingPrices(_ context.Context) ([]*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Transaction
	for _, tx := range s.txs {
		if transactionNeedsPrices(tx) {
			out = append(out, tx.Clone())
		}
	}
	return out, nil
}

func (s *Store) UpdateMovements(_ context.Context, id string, inflows, outflows, fees []models.AssetMovement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[id]
	if !ok {
		return fmt.Errorf("transaction '%s' not found", id)
	}
	updated := tx.Clone()
	updated.Inflows = inflows
	updated.Outflows = outflows
	updated.Fees = fees
	updated.UpdatedAt = time.Now()
	s.txs[id] = updated
	return nil
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

// --- Links ---

func (s *Store) GetLink(_ context.Context, id string) (*models.TransactionLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	link, ok := s.links[id]
	if !ok {
		return nil, fmt.Errorf("link '%s' not found", id)
	}
	clone := *link
	return &clone, nil
}

func (s *Store) SaveLink(_ context.Context, link *models.TransactionLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if existing, ok := s.links[link.ID]; ok {
		link.CreatedAt = existing.CreatedAt
	} else if link.CreatedAt.IsZero() {
		link.CreatedAt = now
	}
	link.UpdatedAt = now
	clone := *link
	s.links[link.ID] = &clone
	return nil
}

func (s *Store) ListLinks(_ context.Context) ([]*models.TransactionLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.TransactionLink, 0, len(s.links))
	for _, link := range s.links {
		clone := *link
		out = append(out, &clone)
	}
	return out, nil
}

func (s *Store) ListLinksByStatus(_ context.Context, status models.LinkStatus) ([]*models.TransactionLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.TransactionLink
	for _, link := range s.links {
		if link.Status == status {
			clone := *link
			out = append(out, &clone)
		}
	}
	return out, nil
}

// --- Lots ---

func (s *Store) SaveLot(_ context.Context, lot *models.AcquisitionLot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *lot
	s.lots[lot.ID] = &clone
	return nil
}

func (s *Store) ListLotsByCalculation(_ context.Context, calculationID string) ([]*models.AcquisitionLot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.AcquisitionLot
	for _, lot := range s.lots {
		if lot.CalculationID == calculationID {
			clone := *lot
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (s *Store) SaveDisposal(_ context.Context, calculationID string, disposal *models.LotDisposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disposals[calculationID] = append(s.disposals[calculationID], *disposal)
	return nil
}

func (s *Store) ListDisposalsByCalculation(_ context.Context, calculationID string) ([]*models.LotDisposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.disposals[calculationID]
	out := make([]*models.LotDisposal, len(stored))
	for i := range stored {
		clone := stored[i]
		out[i] = &clone
	}
	return out, nil
}

func (s *Store) SaveTransfer(_ context.Context, calculationID string, transfer *models.LotTransfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transfers[calculationID] = append(s.transfers[calculationID], *transfer)
	return nil
}

func (s *Store) ListTransfersByLink(_ context.Context, calculationID, linkID string) ([]*models.LotTransfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.LotTransfer
	for i := range s.transfers[calculationID] {
		if s.transfers[calculationID][i].LinkID == linkID {
			clone := s.transfers[calculationID][i]
			out = append(out, &clone)
		}
	}
	return out, nil
}
