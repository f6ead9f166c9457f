package matching

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/chaintax/chaintax/internal/common"
	"github.com/chaintax/chaintax/internal/models"
)

// Config holds the matching thresholds as decimals.
type Config struct {
	MaxTimingWindowHours float64
	MinAmountSimilarity  decimal.Decimal
	MinConfidenceScore   decimal.Decimal
	AutoConfirmThreshold decimal.Decimal
}

// ConfigFrom converts the TOML-level matching configuration.
func ConfigFrom(cfg common.MatchingConfig) Config {
	return Config{
		MaxTimingWindowHours: cfg.MaxTimingWindowHours,
		MinAmountSimilarity:  decimal.NewFromFloat(cfg.MinAmountSimilarity),
		MinConfidenceScore:   decimal.NewFromFloat(cfg.MinConfidenceScore),
		AutoConfirmThreshold: decimal.NewFromFloat(cfg.AutoConfirmThreshold),
	}
}

// DefaultConfig returns the standard matching thresholds.
func DefaultConfig() Config {
	return Config{
		MaxTimingWindowHours: 48,
		MinAmountSimilarity:  decimal.RequireFromString("0.95"),
		MinConfidenceScore:   decimal.RequireFromString("0.7"),
		AutoConfirmThreshold: decimal.RequireFromString("0.95"),
	}
}

// Confidence weights. Asset identity dominates, amount similarity is the
// strongest continuous signal, timing validates plausibility, and a
// matching deposit address is a strong corroboration.
var (
	weightAsset       = decimal.RequireFromString("0.30")
	weightAmount      = decimal.RequireFromString("0.40")
	weightTiming      = decimal.RequireFromString("0.20")
	weightTimingBonus = decimal.RequireFromString("0.05")
	weightAddress     = decimal.RequireFromString("0.10")

	perfectConfidence = decimal.New(1, 0)
)

// nearExactBand is the similarity at or above which the amount signal
// earns its full weight. Network fees leave the received amount a fraction
// below the sent amount on virtually every real transfer; a fee-sized gap
// must not hold an otherwise perfect match under the auto-confirm
// threshold.
var nearExactBand = decimal.RequireFromString("0.99")

// confidenceDecimals is the rounding applied to confidence scores so that
// threshold comparisons are deterministic across runs.
const confidenceDecimals = 6

func assetsMatch(a, b models.TransactionCandidate) bool {
	if a.AssetID != "" && b.AssetID != "" {
		return a.AssetID == b.AssetID
	}
	return strings.EqualFold(a.AssetSymbol, b.AssetSymbol)
}

// BuildMatchCriteria computes the comparison between an outflow candidate
// and an inflow candidate.
func BuildMatchCriteria(source, target models.TransactionCandidate, cfg Config) models.MatchCriteria {
	hours := CalculateTimeDifferenceHours(source.Timestamp, target.Timestamp)
	criteria := models.MatchCriteria{
		AssetMatch:       assetsMatch(source, target),
		AmountSimilarity: CalculateAmountSimilarity(source.Amount, target.Amount),
		TimingValid:      hours >= 0 && hours <= cfg.MaxTimingWindowHours,
		TimingHours:      hours,
		AddressMatch:     compareAddresses(source.ToAddress, target.ToAddress),
	}
	if source.TxHash != "" && target.TxHash != "" {
		match := CheckTransactionHashMatch(source.TxHash, target.TxHash)
		criteria.HashMatch = &match
	}
	return criteria
}

// CalculateConfidenceScore turns match criteria into a [0,1] score rounded
// to six decimal places (half up). An asset mismatch or a known address
// mismatch forces the score to zero.
func CalculateConfidenceScore(criteria models.MatchCriteria) decimal.Decimal {
	if !criteria.AssetMatch {
		return decimal.Zero
	}
	if criteria.AddressMatch != nil && !*criteria.AddressMatch {
		return decimal.Zero
	}

	score := weightAsset
	if criteria.AmountSimilarity.GreaterThanOrEqual(nearExactBand) {
		score = score.Add(weightAmount)
	} else {
		score = score.Add(weightAmount.Mul(criteria.AmountSimilarity))
	}
	if criteria.TimingValid {
		score = score.Add(weightTiming)
		if criteria.TimingHours <= 1 {
			score = score.Add(weightTimingBonus)
		}
	}
	if criteria.AddressMatch != nil && *criteria.AddressMatch {
		score = score.Add(weightAddress)
	}
	return score.Round(confidenceDecimals)
}

// FindPotentialMatches scores every compatible inflow candidate against an
// outflow candidate and returns the accepted matches ordered by confidence
// descending.
func FindPotentialMatches(source models.TransactionCandidate, targets []models.TransactionCandidate, cfg Config) []models.PotentialMatch {
	if source.Direction != models.DirectionOut {
		return nil
	}

	hashSums := sumAmountsByHash(source, targets)

	var matches []models.PotentialMatch
	for _, target := range targets {
		if target.TransactionID == source.TransactionID {
			continue
		}
		if target.Direction != models.DirectionIn {
			continue
		}
		if !assetsMatch(source, target) {
			continue
		}

		criteria := BuildMatchCriteria(source, target, cfg)

		if match, ok := hashFastPath(source, target, criteria, hashSums); ok {
			matches = append(matches, match)
			continue
		}

		confidence := CalculateConfidenceScore(criteria)
		if !criteria.TimingValid {
			continue
		}
		if criteria.AmountSimilarity.LessThan(cfg.MinAmountSimilarity) {
			continue
		}
		if confidence.LessThan(cfg.MinConfidenceScore) {
			continue
		}

		matches = append(matches, models.PotentialMatch{
			Source:          source,
			Target:          target,
			Criteria:        criteria,
			ConfidenceScore: confidence,
			LinkType:        models.DeriveLinkType(source.SourceType, target.SourceType),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].ConfidenceScore.GreaterThan(matches[j].ConfidenceScore)
	})
	return matches
}

// hashFastPath treats a hash-identified pair as a perfect match. It does
// not apply to blockchain-to-blockchain pairs (those are internal transfer
// territory) and falls back to heuristic scoring when the combined targets
// sharing the hash exceed the source amount.
func hashFastPath(source, target models.TransactionCandidate, criteria models.MatchCriteria, hashSums map[string]decimal.Decimal) (models.PotentialMatch, bool) {
	if !criteria.IsHashMatch() {
		return models.PotentialMatch{}, false
	}
	if source.SourceType == models.SourceTypeBlockchain && target.SourceType == models.SourceTypeBlockchain {
		return models.PotentialMatch{}, false
	}
	if sum, ok := hashSums[source.TxHash]; ok && sum.GreaterThan(source.Amount) {
		// Multi-output targets claim more than the source sent; the hash
		// data is unreliable here, so score heuristically instead.
		return models.PotentialMatch{}, false
	}
	return models.PotentialMatch{
		Source:          source,
		Target:          target,
		Criteria:        criteria,
		ConfidenceScore: perfectConfidence,
		LinkType:        models.DeriveLinkType(source.SourceType, target.SourceType),
	}, true
}

// sumAmountsByHash totals, per source hash, the amounts of all inflow
// targets whose hash matches it. Multiple deposits may legitimately share
// one funding transaction, but never for more than the source amount.
func sumAmountsByHash(source models.TransactionCandidate, targets []models.TransactionCandidate) map[string]decimal.Decimal {
	if source.TxHash == "" {
		return nil
	}
	sums := make(map[string]decimal.Decimal)
	for _, target := range targets {
		if target.Direction != models.DirectionIn || target.TxHash == "" {
			continue
		}
		if target.TransactionID == source.TransactionID {
			continue
		}
		if !assetsMatch(source, target) {
			continue
		}
		if CheckTransactionHashMatch(source.TxHash, target.TxHash) {
			sums[source.TxHash] = sums[source.TxHash].Add(target.Amount)
		}
	}
	return sums
}
