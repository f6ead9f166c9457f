package costbasis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chaintax/chaintax/internal/common"
	"github.com/chaintax/chaintax/internal/interfaces"
	"github.com/chaintax/chaintax/internal/models"
	"github.com/chaintax/chaintax/internal/services/pricing"
)

// Service implements CostBasisService
type Service struct {
	storage      interfaces.StorageManager
	jurisdiction common.JurisdictionConfig
	variance     common.VarianceConfig
	logger       *common.Logger
}

// NewService creates a new cost-basis service
func NewService(storage interfaces.StorageManager, jurisdiction common.JurisdictionConfig, variance common.VarianceConfig, logger *common.Logger) *Service {
	return &Service{
		storage:      storage,
		jurisdiction: jurisdiction,
		variance:     variance,
		logger:       logger,
	}
}

// RunCalculation processes all transactions in dependency order, creating
// lots for acquisitions, disposals for outflows, and transfer records for
// confirmed links. Per-transaction failures are collected so the rest of
// the run still completes; persistence happens at the end.
func (s *Service) RunCalculation(ctx context.Context, calculationID string) (*interfaces.CostBasisResult, error) {
	strategy, err := NewStrategy(models.AccountingMethod(s.jurisdiction.AccountingMethod))
	if err != nil {
		return nil, err
	}

	txs, err := s.storage.Transactions().ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	links, err := s.storage.Links().ListLinksByStatus(ctx, models.LinkStatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to load confirmed links: %w", err)
	}

	s.logger.Info().
		Str("calculation", calculationID).
		Str("method", s.jurisdiction.AccountingMethod).
		Int("transactions", len(txs)).
		Int("links", len(links)).
		Msg("Starting cost-basis calculation")

	run := newCalculationRun(calculationID, strategy, s)
	for _, tx := range SortWithLogicalOrdering(txs, links) {
		run.processTransaction(ctx, tx, links)
	}

	result := run.result
	if err := s.persist(ctx, calculationID, run); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("calculation", calculationID).
		Int("lots", result.LotsCreated).
		Int("disposals", result.DisposalsCreated).
		Int("transfers", result.TransfersCreated).
		Int("errors", len(result.Errors)).
		Msg("Cost-basis calculation complete")
	return result, nil
}

// calculationRun holds the evolving in-memory state of one run.
type calculationRun struct {
	calculationID   string
	strategy        Strategy
	svc             *Service
	lots            []*models.AcquisitionLot
	disposals       []models.LotDisposal
	transfersByLink map[string][]models.LotTransfer
	result          *interfaces.CostBasisResult
	now             time.Time
}

func newCalculationRun(calculationID string, strategy Strategy, svc *Service) *calculationRun {
	return &calculationRun{
		calculationID:   calculationID,
		strategy:        strategy,
		svc:             svc,
		transfersByLink: make(map[string][]models.LotTransfer),
		result:          &interfaces.CostBasisResult{CalculationID: calculationID},
		now:             time.Now(),
	}
}

func (r *calculationRun) fail(txID string, err error) {
	r.svc.logger.Warn().Err(err).Str("tx", txID).Msg("Transaction failed during cost-basis processing")
	r.result.Errors = append(r.result.Errors, fmt.Errorf("transaction %s: %w", txID, err))
}

func (r *calculationRun) processTransaction(ctx context.Context, tx *models.Transaction, links []*models.TransactionLink) {
	// fiat legs are proceeds or cost, never lots
	for i := range tx.Outflows {
		outflow := &tx.Outflows[i]
		if pricing.IsFiat(outflow.AssetSymbol) {
			continue
		}
		if link := linkForMovement(links, tx.ID, outflow, true); link != nil {
			r.processSourceLeg(link, tx, outflow)
			continue
		}
		r.processDisposal(tx, outflow)
	}
	for i := range tx.Inflows {
		inflow := &tx.Inflows[i]
		if pricing.IsFiat(inflow.AssetSymbol) {
			continue
		}
		// change returned by a UTXO send never left the wallet's lots
		if isChangeInflow(tx, inflow) {
			continue
		}
		if link := linkForMovement(links, tx.ID, inflow, false); link != nil {
			r.processTargetLeg(ctx, link, tx)
			continue
		}
		r.processAcquisition(tx, inflow)
	}
}

func (r *calculationRun) processSourceLeg(link *models.TransactionLink, tx *models.Transaction, outflow *models.AssetMovement) {
	opts := SourceLegOptions{
		CalculationID: r.calculationID,
		FeePolicy:     FeePolicy(r.svc.jurisdiction.SameAssetTransferFeePolicy),
		Tolerance:     r.svc.variance.ForSource(tx.Source),
	}
	// UTXO sends consume whole outputs; the link carries the amount that
	// actually left the wallet after change and fee come back off the gross.
	if tx.SourceType == models.SourceTypeBlockchain && link.SourceAmount.IsPositive() && link.SourceAmount.LessThan(outflow.Amount) {
		effective := link.SourceAmount
		opts.EffectiveAmount = &effective
	}
	result, err := ProcessTransferSource(link, tx, r.lots, r.strategy, opts)
	if err != nil {
		r.fail(tx.ID, err)
		return
	}
	r.lots = result.UpdatedLots
	r.disposals = append(r.disposals, result.Disposals...)
	r.transfersByLink[link.ID] = append(r.transfersByLink[link.ID], result.Transfers...)
	r.result.DisposalsCreated += len(result.Disposals)
	r.result.TransfersCreated += len(result.Transfers)
	r.result.Warnings = append(r.result.Warnings, result.Warnings...)
}

func (r *calculationRun) processTargetLeg(ctx context.Context, link *models.TransactionLink, tx *models.Transaction) {
	var sourceTx *models.Transaction
	if stored, err := r.svc.storage.Transactions().GetTransaction(ctx, link.SourceTransactionID); err == nil {
		sourceTx = stored
	}
	lot, warnings, err := ProcessTransferTarget(link, sourceTx, tx, r.transfersByLink[link.ID], TargetLegOptions{
		CalculationID: r.calculationID,
		Method:        r.strategy.Method(),
		Tolerance:     r.svc.variance.ForSource(tx.Source),
		Now:           r.now,
	})
	if err != nil {
		r.fail(tx.ID, err)
		return
	}
	r.lots = append(r.lots, lot)
	r.result.LotsCreated++
	r.result.Warnings = append(r.result.Warnings, warnings...)
}

func (r *calculationRun) processAcquisition(tx *models.Transaction, inflow *models.AssetMovement) {
	price, err := usdUnitPrice(inflow)
	if err != nil {
		r.fail(tx.ID, fmt.Errorf("acquisition of %s: %w", inflow.AssetSymbol, err))
		return
	}
	lot := NewAcquisitionLot(
		r.calculationID,
		tx.ID,
		inflow.AssetID,
		inflow.AssetSymbol,
		inflow.EffectiveAmount(),
		price,
		tx.Timestamp,
		r.strategy.Method(),
		r.now,
	)
	r.lots = append(r.lots, lot)
	r.result.LotsCreated++
}

func (r *calculationRun) processDisposal(tx *models.Transaction, outflow *models.AssetMovement) {
	price, err := usdUnitPrice(outflow)
	if err != nil {
		r.fail(tx.ID, fmt.Errorf("disposal of %s: %w", outflow.AssetSymbol, err))
		return
	}
	disposals, err := r.strategy.MatchDisposal(DisposalRequest{
		AssetSymbol:     outflow.AssetSymbol,
		Quantity:        outflow.EffectiveAmount(),
		Date:            tx.Timestamp,
		ProceedsPerUnit: price,
		TransactionID:   tx.ID,
	}, r.lots)
	if err != nil {
		r.fail(tx.ID, err)
		return
	}
	updated, err := ApplyDisposals(r.lots, disposals, tx.Timestamp)
	if err != nil {
		r.fail(tx.ID, err)
		return
	}
	r.lots = updated
	r.disposals = append(r.disposals, disposals...)
	r.result.DisposalsCreated += len(disposals)
}

func (s *Service) persist(ctx context.Context, calculationID string, run *calculationRun) error {
	for _, lot := range run.lots {
		if err := s.storage.Lots().SaveLot(ctx, lot); err != nil {
			return fmt.Errorf("failed to save lot %s: %w", lot.ID, err)
		}
	}
	for i := range run.disposals {
		if err := s.storage.Lots().SaveDisposal(ctx, calculationID, &run.disposals[i]); err != nil {
			return fmt.Errorf("failed to save disposal for lot %s: %w", run.disposals[i].LotID, err)
		}
	}
	for _, transfers := range run.transfersByLink {
		for i := range transfers {
			if err := s.storage.Lots().SaveTransfer(ctx, calculationID, &transfers[i]); err != nil {
				return fmt.Errorf("failed to save transfer %s: %w", transfers[i].ID, err)
			}
		}
	}
	return nil
}

// linkForMovement finds the confirmed link in which this transaction
// participates on the given side for the movement's asset.
func linkForMovement(links []*models.TransactionLink, txID string, m *models.AssetMovement, asSource bool) *models.TransactionLink {
	for _, link := range links {
		if link.Status != models.LinkStatusConfirmed {
			continue
		}
		if asSource && link.SourceTransactionID != txID {
			continue
		}
		if !asSource && link.TargetTransactionID != txID {
			continue
		}
		if movementMatchesAsset(m, link.AssetID, link.AssetSymbol) {
			return link
		}
	}
	return nil
}

// isChangeInflow reports whether the inflow is change from a send within the
// same blockchain transaction: the asset matches one of the transaction's own
// outflows under the same hash.
func isChangeInflow(tx *models.Transaction, inflow *models.AssetMovement) bool {
	if tx.SourceType != models.SourceTypeBlockchain || inflow.TxHash == "" {
		return false
	}
	for i := range tx.Outflows {
		out := &tx.Outflows[i]
		if strings.EqualFold(out.TxHash, inflow.TxHash) && movementMatchesAsset(out, inflow.AssetID, inflow.AssetSymbol) {
			return true
		}
	}
	return false
}

// usdUnitPrice extracts the movement's USD unit price, a hard requirement
// for basis math.
func usdUnitPrice(m *models.AssetMovement) (decimal.Decimal, error) {
	if m.Price == nil {
		return decimal.Zero, fmt.Errorf("movement has no price")
	}
	if !strings.EqualFold(m.Price.Price.Currency, "USD") {
		return decimal.Zero, fmt.Errorf("movement priced in %s, want USD", m.Price.Price.Currency)
	}
	return m.Price.Price.Amount, nil
}
