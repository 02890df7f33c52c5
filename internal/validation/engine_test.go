package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/procure2pay/server/internal/domain/entity"
)

func testPO() *entity.PurchaseOrder {
	return &entity.PurchaseOrder{
		RequestID: "req-1",
		Snapshot: entity.POSnapshot{
			Vendor:     "ABC Corp",
			Currency:   "USD",
			TotalCents: 5000000, // 50000.00
		},
		GeneratedAt: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	}
}

func receiptMeta(vendor string, totalCents int64, currency string, confidence float64) *entity.ExtractedMetadata {
	return &entity.ExtractedMetadata{
		Vendor:     &vendor,
		TotalCents: &totalCents,
		Currency:   &currency,
		Confidence: confidence,
	}
}

func TestEngine_ValidWithinTolerance(t *testing.T) {
	engine := NewEngine(DefaultConfig(), zap.NewNop())

	// 49500.00 against 50000.00 is a 1% deviation, inside the 5% tolerance.
	report := engine.Validate(testPO(), receiptMeta("ABC Corp", 4950000, "USD", 0.9), time.Now())

	assert.True(t, report.IsValid)
	assert.Empty(t, report.Discrepancies)
	assert.InDelta(t, 0.9, report.Confidence, 0.001)
}

func TestEngine_AmountBeyondTolerance(t *testing.T) {
	engine := NewEngine(DefaultConfig(), zap.NewNop())

	// 40000.00 against 50000.00 is a 20% deviation.
	report := engine.Validate(testPO(), receiptMeta("ABC Corp", 4000000, "USD", 0.9), time.Now())

	assert.False(t, report.IsValid)
	require.Contains(t, report.Discrepancies, "amount")
	assert.Equal(t, "50000.00", report.Discrepancies["amount"].Expected)
	assert.Equal(t, "40000.00", report.Discrepancies["amount"].Actual)
}

func TestEngine_MissingAmountFails(t *testing.T) {
	engine := NewEngine(DefaultConfig(), zap.NewNop())

	vendor := "ABC Corp"
	currency := "USD"
	receipt := &entity.ExtractedMetadata{Vendor: &vendor, Currency: &currency, Confidence: 0.7}

	report := engine.Validate(testPO(), receipt, time.Now())

	assert.False(t, report.IsValid)
	require.Contains(t, report.Discrepancies, "amount")
	assert.Equal(t, "missing", report.Discrepancies["amount"].Actual)
	// Vendor and currency still compared, so confidence is not zero.
	assert.InDelta(t, 0.7, report.Confidence, 0.001)
}

func TestEngine_UnreadableDocument(t *testing.T) {
	engine := NewEngine(DefaultConfig(), zap.NewNop())

	report := engine.Validate(testPO(), &entity.ExtractedMetadata{Confidence: 0}, time.Now())

	assert.False(t, report.IsValid)
	assert.Zero(t, report.Confidence)
	require.Len(t, report.Discrepancies, 1)
	assert.Equal(t, "unreadable document", report.Discrepancies["document"].Actual)
}

func TestEngine_CurrencyMismatch(t *testing.T) {
	engine := NewEngine(DefaultConfig(), zap.NewNop())

	report := engine.Validate(testPO(), receiptMeta("ABC Corp", 5000000, "EUR", 0.9), time.Now())

	assert.False(t, report.IsValid)
	require.Contains(t, report.Discrepancies, "currency")
	assert.Equal(t, "USD", report.Discrepancies["currency"].Expected)
	assert.Equal(t, "EUR", report.Discrepancies["currency"].Actual)
}

func TestEngine_FuzzyVendorMatch(t *testing.T) {
	engine := NewEngine(DefaultConfig(), zap.NewNop())

	// One character off after normalization; similarity well above 0.8.
	report := engine.Validate(testPO(), receiptMeta("ABC Corpp", 5000000, "USD", 0.9), time.Now())

	assert.True(t, report.IsValid)
}

func TestEngine_VendorMismatch(t *testing.T) {
	engine := NewEngine(DefaultConfig(), zap.NewNop())

	report := engine.Validate(testPO(), receiptMeta("Totally Different LLC", 5000000, "USD", 0.9), time.Now())

	assert.False(t, report.IsValid)
	require.Contains(t, report.Discrepancies, "vendor")
}

func TestEngine_ExactVendorRequiredWithoutFuzzy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FuzzyVendor = false
	engine := NewEngine(cfg, zap.NewNop())

	report := engine.Validate(testPO(), receiptMeta("ABC Corpp", 5000000, "USD", 0.9), time.Now())
	assert.False(t, report.IsValid)

	// Case and whitespace differences are normalized away regardless.
	report = engine.Validate(testPO(), receiptMeta("  abc   CORP ", 5000000, "USD", 0.9), time.Now())
	assert.True(t, report.IsValid)
}

func TestEngine_ReceiptPredatingPO(t *testing.T) {
	engine := NewEngine(DefaultConfig(), zap.NewNop())

	meta := receiptMeta("ABC Corp", 5000000, "USD", 0.9)
	early := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	meta.Date = &early

	report := engine.Validate(testPO(), meta, time.Now())

	assert.False(t, report.IsValid)
	require.Contains(t, report.Discrepancies, "date")
}

func TestEngine_DateWithinGrace(t *testing.T) {
	engine := NewEngine(DefaultConfig(), zap.NewNop())

	meta := receiptMeta("ABC Corp", 5000000, "USD", 0.9)
	// A few hours before PO generation, inside the 24h grace window.
	nearMiss := time.Date(2026, 3, 31, 20, 0, 0, 0, time.UTC)
	meta.Date = &nearMiss

	report := engine.Validate(testPO(), meta, time.Now())
	assert.True(t, report.IsValid)
}

func TestEngine_DateCheckDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DateCheck = false
	engine := NewEngine(cfg, zap.NewNop())

	meta := receiptMeta("ABC Corp", 5000000, "USD", 0.9)
	early := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	meta.Date = &early

	report := engine.Validate(testPO(), meta, time.Now())
	assert.True(t, report.IsValid)
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, similarity("abc corp", "abc corp"))
	assert.InDelta(t, 0.888, similarity("abc corp", "abc corpp"), 0.01)
	assert.Less(t, similarity("abc corp", "xyz ltd"), 0.5)
	assert.Equal(t, 1.0, similarity("", ""))
}
