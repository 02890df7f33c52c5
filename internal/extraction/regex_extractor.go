package extraction

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/procure2pay/server/internal/domain/entity"
)

var (
	vendorPattern   = regexp.MustCompile(`(?im)^\s*(?:Vendor|Supplier|Company)[:\-]?\s*(.+?)\s*$`)
	currencyPattern = regexp.MustCompile(`(?i)(?:Currency|Curr)[:\-]?\s*([A-Z]{3})`)
	totalPattern    = regexp.MustCompile(`(?i)(?:Grand Total|Total|Amount)[:\-]?\s*[$€£¥]?\s*(\d+(?:,\d{3})*(?:\.\d{1,2})?)`)
	datePattern     = regexp.MustCompile(`(?i)(?:Date|Issued)[:\-]?\s*(\d{4}-\d{2}-\d{2}|\d{2}/\d{2}/\d{4})`)
)

// RegexExtractor pulls vendor, currency, total and date out of document text
// with field patterns. Used as the fallback when AI extraction is unavailable
// or fails.
type RegexExtractor struct{}

// NewRegexExtractor creates a new pattern-based extractor
func NewRegexExtractor() *RegexExtractor {
	return &RegexExtractor{}
}

// ExtractFromText scans the text for known field patterns. Confidence scales
// with the number of fields found; nothing found yields the unreadable result.
func (e *RegexExtractor) ExtractFromText(text string) *entity.ExtractedMetadata {
	if strings.TrimSpace(text) == "" {
		return Unreadable()
	}

	meta := &entity.ExtractedMetadata{}
	found := 0

	if m := vendorPattern.FindStringSubmatch(text); len(m) > 1 {
		vendor := strings.TrimSpace(m[1])
		if vendor != "" {
			meta.Vendor = &vendor
			found++
		}
	}

	if m := currencyPattern.FindStringSubmatch(text); len(m) > 1 {
		currency := strings.ToUpper(m[1])
		meta.Currency = &currency
		found++
	}

	if m := totalPattern.FindStringSubmatch(text); len(m) > 1 {
		if cents, ok := ParseAmountCents(m[1]); ok {
			meta.TotalCents = &cents
			found++
		}
	}

	if m := datePattern.FindStringSubmatch(text); len(m) > 1 {
		if date, ok := parseDate(m[1]); ok {
			meta.Date = &date
			found++
		}
	}

	if found == 0 {
		return Unreadable()
	}

	// Pattern matching is inherently less reliable than structured
	// extraction, so confidence tops out well below 1.
	meta.Confidence = 0.2 * float64(found)
	return meta
}

// ParseAmountCents parses a decimal money string ("1,234.56") into cents.
func ParseAmountCents(s string) (int64, bool) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if cleaned == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return FloatToCents(value), true
}

// FloatToCents converts a currency-unit amount to cents, rounding to the
// nearest cent.
func FloatToCents(v float64) int64 {
	return int64(math.Round(v * 100))
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range []string{"2006-01-02", "02/01/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
