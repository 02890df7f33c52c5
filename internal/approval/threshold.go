package approval

import "fmt"

// DefaultThresholdCents is the amount at which a second approval level kicks
// in: 1000.00 in the request currency.
const DefaultThresholdCents int64 = 100000

// MaxLevels is the number of approval levels the chain supports.
const MaxLevels = 2

// ThresholdResolver decides how many approval levels a request needs based on
// its total amount. Pure and deterministic: no I/O, no side effects.
type ThresholdResolver struct {
	ThresholdCents int64
}

// NewThresholdResolver creates a resolver with the given threshold. A zero or
// negative threshold falls back to the default.
func NewThresholdResolver(thresholdCents int64) *ThresholdResolver {
	if thresholdCents <= 0 {
		thresholdCents = DefaultThresholdCents
	}
	return &ThresholdResolver{ThresholdCents: thresholdCents}
}

// Resolve returns the required approval levels for the amount: 1 below the
// threshold, 2 at or above it.
func (r *ThresholdResolver) Resolve(amountCents int64) int {
	if amountCents < r.ThresholdCents {
		return 1
	}
	return MaxLevels
}

// Validate ensures the configured threshold is usable.
func (r *ThresholdResolver) Validate() error {
	if r.ThresholdCents <= 0 {
		return fmt.Errorf("approval threshold must be positive, got %d", r.ThresholdCents)
	}
	return nil
}
