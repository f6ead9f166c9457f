package matching

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chaintax/chaintax/internal/models"
)

// maxVariancePct is the hard ceiling on source/target variance for a link.
var maxVariancePct = decimal.NewFromInt(10)

// hashExcessTolerance allows a hash-matched target to exceed the source by
// up to 1%, covering per-address data gaps in UTXO imports.
var hashExcessTolerance = decimal.RequireFromString("0.01")

// baseExcessTolerance is the rounding slack allowed without a hash match.
var baseExcessTolerance = decimal.RequireFromString("0.001")

// Resolution splits accepted matches into auto-confirmed and
// suggested-for-review sets.
type Resolution struct {
	Confirmed []models.PotentialMatch
	Suggested []models.PotentialMatch
}

// DeduplicateAndConfirm enforces a global assignment over potential
// matches: a target is used by at most one accepted match; a source takes
// at most one non-hash match but may fund multiple hash matches (one chain
// transaction paying several deposits) so long as it has no non-hash
// assignment. Matches at or above the auto-confirm threshold are confirmed,
// the rest suggested.
func DeduplicateAndConfirm(matches []models.PotentialMatch, cfg Config) Resolution {
	ordered := make([]models.PotentialMatch, len(matches))
	copy(ordered, matches)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].ConfidenceScore.Equal(ordered[j].ConfidenceScore) {
			return ordered[i].ConfidenceScore.GreaterThan(ordered[j].ConfidenceScore)
		}
		// hash matches win ties over heuristic matches
		iHash, jHash := ordered[i].Criteria.IsHashMatch(), ordered[j].Criteria.IsHashMatch()
		if iHash != jHash {
			return iHash
		}
		if ordered[i].Source.TransactionID != ordered[j].Source.TransactionID {
			return ordered[i].Source.TransactionID < ordered[j].Source.TransactionID
		}
		return ordered[i].Target.TransactionID < ordered[j].Target.TransactionID
	})

	usedTargets := make(map[string]bool)
	sourceNonHash := make(map[string]bool)
	sourceHash := make(map[string]bool)

	var resolution Resolution
	for _, match := range ordered {
		sourceID := match.Source.TransactionID
		targetID := match.Target.TransactionID

		if usedTargets[targetID] {
			continue
		}
		if match.Criteria.IsHashMatch() {
			if sourceNonHash[sourceID] {
				continue
			}
			sourceHash[sourceID] = true
		} else {
			if sourceNonHash[sourceID] || sourceHash[sourceID] {
				continue
			}
			sourceNonHash[sourceID] = true
		}
		usedTargets[targetID] = true

		if match.ConfidenceScore.GreaterThanOrEqual(cfg.AutoConfirmThreshold) {
			resolution.Confirmed = append(resolution.Confirmed, match)
		} else {
			resolution.Suggested = append(resolution.Suggested, match)
		}
	}
	return resolution
}

// ValidateLinkAmountsForMatch checks that a link's amounts are plausible.
// The target may exceed the source only within rounding slack, or within 1%
// when the pair is hash-matched.
func ValidateLinkAmountsForMatch(source, target decimal.Decimal, hashMatch bool) error {
	if !source.IsPositive() {
		return fmt.Errorf("invalid link: source amount %s must be positive", source)
	}
	if !target.IsPositive() {
		return fmt.Errorf("invalid link: target amount %s must be positive", target)
	}
	if target.GreaterThan(source) {
		tolerance := baseExcessTolerance
		if hashMatch {
			tolerance = hashExcessTolerance
		}
		excess := target.Sub(source).Div(source)
		if excess.GreaterThan(tolerance) {
			return fmt.Errorf("invalid link: target amount %s exceeds source amount %s beyond tolerance", target, source)
		}
		return nil
	}
	variancePct := source.Sub(target).Div(source).Mul(decimal.NewFromInt(100))
	if variancePct.GreaterThan(maxVariancePct) {
		return fmt.Errorf("invalid link: variance %s%% between source %s and target %s exceeds %s%%", variancePct.Round(2), source, target, maxVariancePct)
	}
	return nil
}

// CreateTransactionLink materializes an accepted match as a durable link
// with variance metadata for audit.
func CreateTransactionLink(match models.PotentialMatch, status models.LinkStatus, now time.Time) (*models.TransactionLink, error) {
	if err := ValidateLinkAmountsForMatch(match.Source.Amount, match.Target.Amount, match.Criteria.IsHashMatch()); err != nil {
		return nil, err
	}

	variance := match.Source.Amount.Sub(match.Target.Amount)
	variancePct := decimal.Zero
	if match.Source.Amount.IsPositive() {
		variancePct = variance.Div(match.Source.Amount).Mul(decimal.NewFromInt(100))
	}
	impliedFee := decimal.Zero
	if variance.IsPositive() {
		impliedFee = variance
	}

	return &models.TransactionLink{
		ID:                  uuid.NewString(),
		SourceTransactionID: match.Source.TransactionID,
		TargetTransactionID: match.Target.TransactionID,
		AssetID:             match.Source.AssetID,
		AssetSymbol:         match.Source.AssetSymbol,
		SourceAmount:        match.Source.Amount,
		TargetAmount:        match.Target.Amount,
		LinkType:            match.LinkType,
		ConfidenceScore:     match.ConfidenceScore,
		MatchCriteria:       match.Criteria,
		Status:              status,
		Metadata: models.LinkMetadata{
			Variance:    variance,
			VariancePct: variancePct,
			ImpliedFee:  impliedFee,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
