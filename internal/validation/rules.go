package validation

import (
	"fmt"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/procure2pay/server/internal/domain/entity"
)

// Result is the outcome of a single field comparison. A rule that could not
// compare anything (field missing from the receipt) reports Comparable=false
// and is excluded from the confidence average.
type Result struct {
	Comparable  bool
	Pass        bool
	Discrepancy *entity.Discrepancy
}

// Rule compares one field of the PO snapshot against receipt metadata.
type Rule interface {
	Field() string
	Weight() float64
	Compare(po *entity.PurchaseOrder, receipt *entity.ExtractedMetadata) Result
}

// AmountRule fails when the receipt total is missing, non-positive, or
// deviates from the PO total by more than the tolerance.
type AmountRule struct {
	Tolerance float64
}

func (r AmountRule) Field() string   { return "amount" }
func (r AmountRule) Weight() float64 { return 0.4 }

func (r AmountRule) Compare(po *entity.PurchaseOrder, receipt *entity.ExtractedMetadata) Result {
	expected := centsToDecimal(po.Snapshot.TotalCents)

	if receipt.TotalCents == nil || *receipt.TotalCents <= 0 {
		actual := "missing"
		if receipt.TotalCents != nil {
			actual = centsToDecimal(*receipt.TotalCents)
		}
		return Result{
			Comparable:  false,
			Pass:        false,
			Discrepancy: &entity.Discrepancy{Expected: expected, Actual: actual},
		}
	}

	poCents := po.Snapshot.TotalCents
	diff := *receipt.TotalCents - poCents
	if diff < 0 {
		diff = -diff
	}
	if poCents > 0 && float64(diff)/float64(poCents) > r.Tolerance {
		return Result{
			Comparable:  true,
			Pass:        false,
			Discrepancy: &entity.Discrepancy{Expected: expected, Actual: centsToDecimal(*receipt.TotalCents)},
		}
	}

	return Result{Comparable: true, Pass: true}
}

// VendorRule normalizes both names and requires an exact match, or an
// edit-distance similarity above the threshold when fuzzy matching is on.
type VendorRule struct {
	Fuzzy               bool
	SimilarityThreshold float64
}

func (r VendorRule) Field() string   { return "vendor" }
func (r VendorRule) Weight() float64 { return 0.3 }

func (r VendorRule) Compare(po *entity.PurchaseOrder, receipt *entity.ExtractedMetadata) Result {
	if receipt.Vendor == nil {
		return Result{Comparable: false, Pass: true}
	}

	expected := normalizeVendor(po.Snapshot.Vendor)
	actual := normalizeVendor(*receipt.Vendor)

	if expected == actual {
		return Result{Comparable: true, Pass: true}
	}
	if r.Fuzzy && similarity(expected, actual) >= r.SimilarityThreshold {
		return Result{Comparable: true, Pass: true}
	}

	return Result{
		Comparable:  true,
		Pass:        false,
		Discrepancy: &entity.Discrepancy{Expected: po.Snapshot.Vendor, Actual: *receipt.Vendor},
	}
}

// CurrencyRule requires an exact currency code match.
type CurrencyRule struct{}

func (r CurrencyRule) Field() string   { return "currency" }
func (r CurrencyRule) Weight() float64 { return 0.2 }

func (r CurrencyRule) Compare(po *entity.PurchaseOrder, receipt *entity.ExtractedMetadata) Result {
	if receipt.Currency == nil {
		return Result{Comparable: false, Pass: true}
	}

	if strings.EqualFold(po.Snapshot.Currency, *receipt.Currency) {
		return Result{Comparable: true, Pass: true}
	}

	return Result{
		Comparable:  true,
		Pass:        false,
		Discrepancy: &entity.Discrepancy{Expected: po.Snapshot.Currency, Actual: *receipt.Currency},
	}
}

// DateRule rejects receipts dated before the PO existed, minus a grace
// window for timezone skew.
type DateRule struct {
	Grace time.Duration
}

func (r DateRule) Field() string   { return "date" }
func (r DateRule) Weight() float64 { return 0.1 }

func (r DateRule) Compare(po *entity.PurchaseOrder, receipt *entity.ExtractedMetadata) Result {
	if receipt.Date == nil {
		return Result{Comparable: false, Pass: true}
	}

	earliest := po.GeneratedAt.Add(-r.Grace)
	if receipt.Date.Before(earliest) {
		return Result{
			Comparable: true,
			Pass:       false,
			Discrepancy: &entity.Discrepancy{
				Expected: fmt.Sprintf("on or after %s", earliest.Format("2006-01-02")),
				Actual:   receipt.Date.Format("2006-01-02"),
			},
		}
	}

	return Result{Comparable: true, Pass: true}
}

func normalizeVendor(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// similarity is 1 minus the normalized edit distance between two strings.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 1
	}
	distance := levenshtein.ComputeDistance(a, b)
	return 1 - float64(distance)/float64(longest)
}

func centsToDecimal(cents int64) string {
	return fmt.Sprintf("%.2f", float64(cents)/100.0)
}
