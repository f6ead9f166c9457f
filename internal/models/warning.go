package models

// WarningType identifies a soft, non-blocking processing condition.
type WarningType string

const (
	WarningVariance       WarningType = "variance"
	WarningMissingPrice   WarningType = "missing-price"
	WarningSkippedOutflow WarningType = "skipped-outflow"
)

// Warning is a structured record returned alongside a success value for
// conditions the caller should surface but that do not block processing.
type Warning struct {
	Type WarningType    `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// NewWarning builds a warning with the given type and data pairs.
func NewWarning(t WarningType, data map[string]any) Warning {
	return Warning{Type: t, Data: data}
}
