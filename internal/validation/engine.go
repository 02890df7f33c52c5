package validation

import (
	"time"

	"go.uber.org/zap"

	"github.com/procure2pay/server/internal/domain/entity"
)

// DefaultAmountTolerance is the allowed relative deviation between the PO
// total and the receipt total.
const DefaultAmountTolerance = 0.05

// DefaultVendorSimilarity is the edit-distance ratio a fuzzy vendor match
// must reach.
const DefaultVendorSimilarity = 0.8

// Config tunes the comparator rules.
type Config struct {
	AmountTolerance  float64
	FuzzyVendor      bool
	VendorSimilarity float64
	DateCheck        bool
	DateGrace        time.Duration
}

// DefaultConfig returns the standard rule configuration.
func DefaultConfig() Config {
	return Config{
		AmountTolerance:  DefaultAmountTolerance,
		FuzzyVendor:      true,
		VendorSimilarity: DefaultVendorSimilarity,
		DateCheck:        true,
		DateGrace:        24 * time.Hour,
	}
}

// Engine runs the configured comparator rules over a receipt and produces a
// validation report. Every call yields a fresh report; persistence and audit
// retention are the caller's concern.
type Engine struct {
	rules  []Rule
	logger *zap.Logger
}

// NewEngine assembles the rule list from config.
func NewEngine(cfg Config, logger *zap.Logger) *Engine {
	if cfg.AmountTolerance <= 0 {
		cfg.AmountTolerance = DefaultAmountTolerance
	}
	if cfg.VendorSimilarity <= 0 {
		cfg.VendorSimilarity = DefaultVendorSimilarity
	}

	rules := []Rule{
		AmountRule{Tolerance: cfg.AmountTolerance},
		VendorRule{Fuzzy: cfg.FuzzyVendor, SimilarityThreshold: cfg.VendorSimilarity},
		CurrencyRule{},
	}
	if cfg.DateCheck {
		rules = append(rules, DateRule{Grace: cfg.DateGrace})
	}

	return &Engine{rules: rules, logger: logger}
}

// Validate compares receipt metadata against the PO snapshot. The report's
// confidence is the weighted average of the extraction confidence over the
// fields that were actually comparable; a receipt with nothing comparable is
// invalid with confidence zero and a single unreadable-document discrepancy.
func (e *Engine) Validate(po *entity.PurchaseOrder, receipt *entity.ExtractedMetadata, evaluatedAt time.Time) *entity.ValidationReport {
	report := &entity.ValidationReport{
		RequestID:     po.RequestID,
		IsValid:       true,
		Discrepancies: make(map[string]entity.Discrepancy),
		EvaluatedAt:   evaluatedAt,
	}

	var comparedWeight, confidenceWeight float64

	for _, rule := range e.rules {
		result := rule.Compare(po, receipt)

		if !result.Pass {
			report.IsValid = false
		}
		if result.Discrepancy != nil {
			report.Discrepancies[rule.Field()] = *result.Discrepancy
		}
		if result.Comparable {
			comparedWeight += rule.Weight()
			confidenceWeight += rule.Weight() * receipt.Confidence
		}
	}

	if comparedWeight == 0 {
		report.IsValid = false
		report.Confidence = 0
		report.Discrepancies = map[string]entity.Discrepancy{
			"document": {Expected: "legible receipt", Actual: "unreadable document"},
		}
		e.logger.Warn("Receipt produced no comparable fields",
			zap.String("request_id", po.RequestID))
		return report
	}

	report.Confidence = confidenceWeight / comparedWeight

	e.logger.Info("Receipt validated",
		zap.String("request_id", po.RequestID),
		zap.Bool("is_valid", report.IsValid),
		zap.Float64("confidence", report.Confidence),
		zap.Int("discrepancies", len(report.Discrepancies)))

	return report
}
