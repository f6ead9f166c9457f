// Package interfaces defines service contracts for chaintax
package interfaces

import (
	"context"

	"github.com/chaintax/chaintax/internal/models"
)

// StorageManager coordinates all storage backends
type StorageManager interface {
	Transactions() TransactionStorage
	Links() LinkStorage
	Lots() LotStorage

	Close() error
}

// TransactionStorage persists normalized transactions and their movement
// arrays.
type TransactionStorage interface {
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	SaveTransaction(ctx context.Context, tx *models.Transaction) error
	ListTransactions(ctx context.Context) ([]*models.Transaction, error)
	ListTransactionsBySource(ctx context.Context, source string) ([]*models.Transaction, error)
	// ListTransactionsNeedingPrices returns transactions with at least one
	// movement lacking a price.
	ListTransactionsNeedingPrices(ctx context.Context) ([]*models.Transaction, error)
	// UpdateMovements replaces a transaction's movement arrays by id.
	UpdateMovements(ctx context.Context, id string, inflows, outflows, fees []models.AssetMovement) error
}

// LinkStorage persists transaction links.
type LinkStorage interface {
	GetLink(ctx context.Context, id string) (*models.TransactionLink, error)
	SaveLink(ctx context.Context, link *models.TransactionLink) error
	ListLinks(ctx context.Context) ([]*models.TransactionLink, error)
	ListLinksByStatus(ctx context.Context, status models.LinkStatus) ([]*models.TransactionLink, error)
}

// LotStorage persists acquisition lots, disposals, and lot transfers,
// grouped by calculation run.
type LotStorage interface {
	SaveLot(ctx context.Context, lot *models.AcquisitionLot) error
	ListLotsByCalculation(ctx context.Context, calculationID string) ([]*models.AcquisitionLot, error)
	SaveDisposal(ctx context.Context, calculationID string, disposal *models.LotDisposal) error
	ListDisposalsByCalculation(ctx context.Context, calculationID string) ([]*models.LotDisposal, error)
	SaveTransfer(ctx context.Context, calculationID string, transfer *models.LotTransfer) error
	ListTransfersByLink(ctx context.Context, calculationID, linkID string) ([]*models.LotTransfer, error)
}
