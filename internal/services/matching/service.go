package matching

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chaintax/chaintax/internal/common"
	"github.com/chaintax/chaintax/internal/interfaces"
	"github.com/chaintax/chaintax/internal/models"
)

// Service implements MatchingService
type Service struct {
	storage interfaces.StorageManager
	config  Config
	logger  *common.Logger
}

// NewService creates a new matching service
func NewService(storage interfaces.StorageManager, config Config, logger *common.Logger) *Service {
	return &Service{
		storage: storage,
		config:  config,
		logger:  logger,
	}
}

// RunMatching builds candidates from all stored transactions, finds and
// resolves matches, and persists the resulting links.
func (s *Service) RunMatching(ctx context.Context) (*interfaces.MatchingResult, error) {
	txs, err := s.storage.Transactions().ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	s.logger.Info().Int("transactions", len(txs)).Msg("Starting matching run")

	candidates, warnings := s.BuildCandidates(txs)

	var sources, targets []models.TransactionCandidate
	for _, c := range candidates {
		switch c.Direction {
		case models.DirectionOut:
			sources = append(sources, c)
		case models.DirectionIn:
			targets = append(targets, c)
		}
	}

	var all []models.PotentialMatch
	for _, source := range sources {
		all = append(all, FindPotentialMatches(source, targets, s.config)...)
	}
	s.logger.Debug().
		Int("sources", len(sources)).
		Int("targets", len(targets)).
		Int("potential", len(all)).
		Msg("Scored potential matches")

	resolution := DeduplicateAndConfirm(all, s.config)

	existing, err := s.existingLinkKeys(ctx)
	if err != nil {
		return nil, err
	}

	result := &interfaces.MatchingResult{Warnings: warnings}
	now := time.Now()
	for _, match := range resolution.Confirmed {
		if existing[matchKey(match)] {
			continue
		}
		link, err := CreateTransactionLink(match, models.LinkStatusConfirmed, now)
		if err != nil {
			s.logger.Warn().Err(err).
				Str("source", match.Source.TransactionID).
				Str("target", match.Target.TransactionID).
				Msg("Dropping invalid confirmed match")
			continue
		}
		if err := s.storage.Links().SaveLink(ctx, link); err != nil {
			return nil, fmt.Errorf("failed to save link: %w", err)
		}
		result.Confirmed = append(result.Confirmed, link)
	}
	for _, match := range resolution.Suggested {
		if existing[matchKey(match)] {
			continue
		}
		link, err := CreateTransactionLink(match, models.LinkStatusSuggested, now)
		if err != nil {
			s.logger.Warn().Err(err).
				Str("source", match.Source.TransactionID).
				Str("target", match.Target.TransactionID).
				Msg("Dropping invalid suggested match")
			continue
		}
		if err := s.storage.Links().SaveLink(ctx, link); err != nil {
			return nil, fmt.Errorf("failed to save link: %w", err)
		}
		result.Suggested = append(result.Suggested, link)
	}

	s.logger.Info().
		Int("confirmed", len(result.Confirmed)).
		Int("suggested", len(result.Suggested)).
		Msg("Matching run complete")
	return result, nil
}

// existingLinkKeys indexes stored links by source, target, and asset so a
// repeated run never duplicates a link. Rejected links count too: a pair
// the reviewer turned down stays down.
func (s *Service) existingLinkKeys(ctx context.Context) (map[string]bool, error) {
	links, err := s.storage.Links().ListLinks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing links: %w", err)
	}
	keys := make(map[string]bool, len(links))
	for _, link := range links {
		keys[linkKey(link.SourceTransactionID, link.TargetTransactionID, link.AssetID, link.AssetSymbol)] = true
	}
	return keys, nil
}

func matchKey(match models.PotentialMatch) string {
	return linkKey(match.Source.TransactionID, match.Target.TransactionID, match.Source.AssetID, match.Source.AssetSymbol)
}

func linkKey(sourceTxID, targetTxID, assetID, assetSymbol string) string {
	asset := assetID
	if asset == "" {
		asset = strings.ToUpper(assetSymbol)
	}
	return sourceTxID + "|" + targetTxID + "|" + asset
}

// BuildCandidates converts transactions into matching candidates, applying
// UTXO outflow adjustments for per-address clusters that share an on-chain
// hash.
func (s *Service) BuildCandidates(txs []*models.Transaction) ([]models.TransactionCandidate, []models.Warning) {
	agg := AggregateMovementsByTransaction(txs)
	groupings := buildOutflowGroupings(txs)

	overrides := make(map[string]decimal.Decimal)
	var applied [][]string
	var warnings []models.Warning

	for _, grouping := range groupings {
		adjustment, skip := CalculateOutflowAdjustment(grouping.assetID, grouping.members, agg)
		if skip != SkipNone {
			if skip == SkipNonPositive {
				warnings = append(warnings, models.NewWarning(models.WarningSkippedOutflow, map[string]any{
					"asset_id": grouping.assetID,
					"tx_hash":  grouping.hash,
					"reason":   string(skip),
				}))
			}
			continue
		}
		overrides[overrideKey(adjustment.RepresentativeTxID, grouping.assetID)] = adjustment.Amount
		ids := make([]string, len(grouping.members))
		for i, tx := range grouping.members {
			ids[i] = tx.ID
		}
		applied = append(applied, ids)
	}

	return ConvertToCandidates(txs, overrides, applied), warnings
}

type outflowGrouping struct {
	assetID string
	hash    string
	members []*models.Transaction
}

// buildOutflowGroupings clusters blockchain transactions by shared outflow
// hash. Per-address UTXO imports surface one row per address, so rows
// sharing a hash describe one chain transaction, and any same-hash inflow
// is change returning to the sender.
func buildOutflowGroupings(txs []*models.Transaction) []outflowGrouping {
	type key struct {
		source  string
		hash    string
		assetID string
	}
	members := make(map[key][]*models.Transaction)
	seen := make(map[key]map[string]bool)

	add := func(k key, tx *models.Transaction) {
		if seen[k] == nil {
			seen[k] = make(map[string]bool)
		}
		if seen[k][tx.ID] {
			return
		}
		seen[k][tx.ID] = true
		members[k] = append(members[k], tx)
	}

	for _, tx := range txs {
		if tx.SourceType != models.SourceTypeBlockchain {
			continue
		}
		for i := range tx.Outflows {
			if tx.Outflows[i].TxHash == "" {
				continue
			}
			add(key{tx.Source, tx.Outflows[i].TxHash, tx.Outflows[i].AssetID}, tx)
		}
		for i := range tx.Inflows {
			if tx.Inflows[i].TxHash == "" {
				continue
			}
			add(key{tx.Source, tx.Inflows[i].TxHash, tx.Inflows[i].AssetID}, tx)
		}
	}

	var groupings []outflowGrouping
	for k, txs := range members {
		hasChange := false
		for _, tx := range txs {
			for i := range tx.Inflows {
				if tx.Inflows[i].TxHash == k.hash && tx.Inflows[i].AssetID == k.assetID {
					hasChange = true
				}
			}
		}
		if len(txs) < 2 && !hasChange {
			continue
		}
		sort.Slice(txs, func(i, j int) bool { return txs[i].ID < txs[j].ID })
		groupings = append(groupings, outflowGrouping{assetID: k.assetID, hash: k.hash, members: txs})
	}
	sort.Slice(groupings, func(i, j int) bool {
		if groupings[i].hash != groupings[j].hash {
			return groupings[i].hash < groupings[j].hash
		}
		return groupings[i].assetID < groupings[j].assetID
	})
	return groupings
}
