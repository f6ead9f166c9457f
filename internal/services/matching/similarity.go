// Package matching finds cross-platform transfer links between transactions
package matching

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// roundingTolerance is the relative excess by which a target amount may
// exceed the source amount and still be treated as a rounding artifact.
var roundingTolerance = decimal.RequireFromString("0.001")

// nearMatchSimilarity is the similarity assigned when the target exceeds
// the source within the rounding tolerance.
var nearMatchSimilarity = decimal.RequireFromString("0.99")

// CalculateAmountSimilarity scores how close a target (received) amount is
// to a source (sent) amount. A target at or below the source scores
// target/source; a target exceeding the source by at most 0.1% scores 0.99;
// anything larger scores 0.
func CalculateAmountSimilarity(source, target decimal.Decimal) decimal.Decimal {
	if source.IsZero() || source.IsNegative() || target.IsNegative() {
		return decimal.Zero
	}
	if target.LessThanOrEqual(source) {
		ratio := target.Div(source)
		if ratio.GreaterThan(decimal.New(1, 0)) {
			return decimal.New(1, 0)
		}
		return ratio
	}
	excess := target.Sub(source).Div(source)
	if excess.LessThanOrEqual(roundingTolerance) {
		return nearMatchSimilarity
	}
	return decimal.Zero
}

// CalculateTimeDifferenceHours returns the gap in hours from source to
// target. A target before the source is the wrong order and returns +Inf.
func CalculateTimeDifferenceHours(source, target time.Time) float64 {
	if source.After(target) {
		return math.Inf(1)
	}
	return target.Sub(source).Hours()
}

// splitLogIndex splits a "<hash>-<logIndex>" identifier. ok is false when
// the value carries no numeric suffix.
func splitLogIndex(hash string) (base string, ok bool) {
	idx := strings.LastIndex(hash, "-")
	if idx <= 0 || idx == len(hash)-1 {
		return hash, false
	}
	suffix := hash[idx+1:]
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return hash, false
		}
	}
	return hash[:idx], true
}

// hashesEqual compares two hashes, case-insensitively only when both are
// 0x-prefixed hex hashes.
func hashesEqual(a, b string) bool {
	if isHexHash(a) && isHexHash(b) {
		return strings.EqualFold(a, b)
	}
	return a == b
}

func isHexHash(h string) bool {
	return len(h) > 2 && (strings.HasPrefix(h, "0x") || strings.HasPrefix(h, "0X"))
}

// CheckTransactionHashMatch reports whether two blockchain transaction
// hashes identify the same on-chain transaction. A "-<logIndex>" suffix is
// stripped only when exactly one side carries one; when both carry log
// indices the full identifiers must match exactly.
func CheckTransactionHashMatch(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	aBase, aHas := splitLogIndex(a)
	bBase, bHas := splitLogIndex(b)
	switch {
	case aHas && bHas:
		return hashesEqual(a, b)
	case aHas:
		return hashesEqual(aBase, b)
	case bHas:
		return hashesEqual(a, bBase)
	default:
		return hashesEqual(a, b)
	}
}

// compareAddresses compares two addresses when both are known. Returns nil
// when the comparison cannot be made.
func compareAddresses(a, b string) *bool {
	if a == "" || b == "" {
		return nil
	}
	match := hashesEqual(a, b)
	return &match
}
