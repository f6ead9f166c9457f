package costbasis

import (
	"github.com/shopspring/decimal"

	"github.com/chaintax/chaintax/internal/common"
)

// VarianceLevel classifies the gap between expected and actual amounts.
type VarianceLevel int

const (
	VarianceOK VarianceLevel = iota
	VarianceWarn
	VarianceError
)

// CheckVariance returns the percentage gap between expected and actual and
// the severity under the given tolerance. A zero expected amount with a
// non-zero actual is always an error.
func CheckVariance(expected, actual decimal.Decimal, tol common.VarianceTolerance) (decimal.Decimal, VarianceLevel) {
	if expected.IsZero() {
		if actual.IsZero() {
			return decimal.Zero, VarianceOK
		}
		return decimal.NewFromInt(100), VarianceError
	}

	pct := expected.Sub(actual).Abs().Div(expected.Abs()).Mul(decimal.NewFromInt(100))
	switch {
	case pct.GreaterThan(decimal.NewFromFloat(tol.ErrorPct)):
		return pct, VarianceError
	case pct.GreaterThan(decimal.NewFromFloat(tol.WarnPct)):
		return pct, VarianceWarn
	default:
		return pct, VarianceOK
	}
}
