package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/procure2pay/server/internal/domain/entity"
	"github.com/procure2pay/server/internal/extraction"
	"github.com/procure2pay/server/internal/validation"
)

type mockReceiptRepo struct {
	receipts []*entity.Receipt
}

func (m *mockReceiptRepo) Create(ctx context.Context, r *entity.Receipt) error {
	r.ID = int64(len(m.receipts) + 1)
	m.receipts = append(m.receipts, r)
	return nil
}

func (m *mockReceiptRepo) GetByRequestID(ctx context.Context, requestID string) ([]*entity.Receipt, error) {
	return m.receipts, nil
}

type mockReportRepo struct {
	reports []*entity.ValidationReport
}

func (m *mockReportRepo) Create(ctx context.Context, r *entity.ValidationReport) error {
	m.reports = append(m.reports, r)
	return nil
}

func (m *mockReportRepo) GetByRequestID(ctx context.Context, requestID string) ([]*entity.ValidationReport, error) {
	return m.reports, nil
}

type stubExtractor struct {
	meta      *entity.ExtractedMetadata
	err       error
	onExtract func()
}

func (s *stubExtractor) Extract(ctx context.Context, data []byte, mimeType string) (*entity.ExtractedMetadata, error) {
	if s.onExtract != nil {
		s.onExtract()
	}
	return s.meta, s.err
}

type receiptFixture struct {
	requests  *mockRequestRepo
	orders    *mockPORepo
	receipts  *mockReceiptRepo
	reports   *mockReportRepo
	extractor *stubExtractor
	svc       *ReceiptService
}

func newReceiptFixture(status string) (*receiptFixture, *entity.PurchaseRequest) {
	f := &receiptFixture{
		requests:  newMockRequestRepo(),
		orders:    newMockPORepo(),
		receipts:  &mockReceiptRepo{},
		reports:   &mockReportRepo{},
		extractor: &stubExtractor{},
	}
	f.svc = NewReceiptService(
		f.requests,
		f.orders,
		f.receipts,
		f.reports,
		&mockTxManager{},
		f.extractor,
		validation.NewEngine(validation.DefaultConfig(), zap.NewNop()),
		nil,
		zap.NewNop(),
	)

	req := &entity.PurchaseRequest{
		ID:       "req-1",
		Status:   status,
		Currency: "USD",
	}
	f.requests.stored[req.ID] = req

	if status != entity.StatusPendingL1 {
		f.orders.orders[req.ID] = &entity.PurchaseOrder{
			RequestID: req.ID,
			PONumber:  "PO-req-1-abc",
			Snapshot: entity.POSnapshot{
				Vendor:     "ABC Corp",
				Currency:   "USD",
				TotalCents: 50000,
			},
		}
	}
	return f, req
}

func matchingMeta() *entity.ExtractedMetadata {
	vendor := "ABC Corp"
	currency := "USD"
	total := int64(50000)
	return &entity.ExtractedMetadata{
		Vendor:     &vendor,
		Currency:   &currency,
		TotalCents: &total,
		Confidence: 0.9,
	}
}

func TestSubmitReceipt_ValidAdvancesToValidated(t *testing.T) {
	f, req := newReceiptFixture(entity.StatusPOGenerated)
	f.extractor.meta = matchingMeta()

	report, err := f.svc.SubmitReceipt(context.Background(), req.ID, []byte("receipt"), "application/pdf")
	if err != nil {
		t.Fatalf("SubmitReceipt() failed: %v", err)
	}

	if !report.IsValid {
		t.Errorf("report invalid, discrepancies: %+v", report.Discrepancies)
	}
	if report.ReceiptID == 0 {
		t.Error("report should reference the persisted receipt")
	}

	stored, _ := f.requests.GetByID(context.Background(), req.ID)
	if stored.Status != entity.StatusValidated {
		t.Errorf("status = %s, want %s", stored.Status, entity.StatusValidated)
	}
}

func TestSubmitReceipt_InvalidStaysSubmitted(t *testing.T) {
	f, req := newReceiptFixture(entity.StatusPOGenerated)
	meta := matchingMeta()
	wrongTotal := int64(40000)
	meta.TotalCents = &wrongTotal
	f.extractor.meta = meta

	report, err := f.svc.SubmitReceipt(context.Background(), req.ID, []byte("receipt"), "application/pdf")
	if err != nil {
		t.Fatalf("SubmitReceipt() failed: %v", err)
	}

	if report.IsValid {
		t.Error("report should be invalid for a 20% amount mismatch")
	}
	if _, ok := report.Discrepancies["amount"]; !ok {
		t.Errorf("expected amount discrepancy, got %+v", report.Discrepancies)
	}

	stored, _ := f.requests.GetByID(context.Background(), req.ID)
	if stored.Status != entity.StatusReceiptSubmitted {
		t.Errorf("status = %s, want %s", stored.Status, entity.StatusReceiptSubmitted)
	}
}

func TestSubmitReceipt_UnreadableDocument(t *testing.T) {
	f, req := newReceiptFixture(entity.StatusPOGenerated)
	f.extractor.meta = &entity.ExtractedMetadata{Confidence: 0}

	report, err := f.svc.SubmitReceipt(context.Background(), req.ID, []byte("garbage"), "application/pdf")
	if err != nil {
		t.Fatalf("SubmitReceipt() failed: %v", err)
	}

	if report.IsValid {
		t.Error("unreadable document must produce an invalid report")
	}
	if report.Confidence != 0 {
		t.Errorf("confidence = %f, want 0", report.Confidence)
	}
	if len(report.Discrepancies) != 1 {
		t.Errorf("want single unreadable-document discrepancy, got %+v", report.Discrepancies)
	}
}

func TestSubmitReceipt_BeforePOGeneration(t *testing.T) {
	f, req := newReceiptFixture(entity.StatusPendingL1)

	_, err := f.svc.SubmitReceipt(context.Background(), req.ID, []byte("receipt"), "application/pdf")
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("SubmitReceipt() error = %v, want ErrInvalidState", err)
	}
	if len(f.reports.reports) != 0 {
		t.Error("no report should be persisted before PO generation")
	}
}

func TestSubmitReceipt_UnknownRequest(t *testing.T) {
	f, _ := newReceiptFixture(entity.StatusPOGenerated)

	_, err := f.svc.SubmitReceipt(context.Background(), "missing", []byte("receipt"), "application/pdf")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("SubmitReceipt() error = %v, want ErrNotFound", err)
	}
}

func TestSubmitReceipt_ExtractionFaultPropagates(t *testing.T) {
	f, req := newReceiptFixture(entity.StatusPOGenerated)
	f.extractor.err = extraction.ErrExtraction

	_, err := f.svc.SubmitReceipt(context.Background(), req.ID, []byte("receipt"), "application/pdf")
	if !errors.Is(err, extraction.ErrExtraction) {
		t.Errorf("SubmitReceipt() error = %v, want ErrExtraction", err)
	}
	if len(f.reports.reports) != 0 {
		t.Error("operational extraction faults must not persist a report")
	}
}

// Re-submission after validation re-runs the pipeline and appends a fresh
// report; earlier reports stay for audit.
func TestSubmitReceipt_ResubmissionAppendsReport(t *testing.T) {
	f, req := newReceiptFixture(entity.StatusPOGenerated)
	f.extractor.meta = matchingMeta()

	if _, err := f.svc.SubmitReceipt(context.Background(), req.ID, []byte("first"), "application/pdf"); err != nil {
		t.Fatalf("first SubmitReceipt() failed: %v", err)
	}

	meta := matchingMeta()
	wrongCurrency := "EUR"
	meta.Currency = &wrongCurrency
	f.extractor.meta = meta

	second, err := f.svc.SubmitReceipt(context.Background(), req.ID, []byte("second"), "application/pdf")
	if err != nil {
		t.Fatalf("second SubmitReceipt() failed: %v", err)
	}
	if second.IsValid {
		t.Error("second report should be invalid on currency mismatch")
	}

	if len(f.reports.reports) != 2 {
		t.Fatalf("reports = %d, want 2", len(f.reports.reports))
	}
	if len(f.receipts.receipts) != 2 {
		t.Fatalf("receipts = %d, want 2", len(f.receipts.receipts))
	}
	if !f.reports.reports[0].IsValid {
		t.Error("first report must remain valid after resubmission")
	}
}

// A request that leaves the receipt states between the status check and the
// guarded write keeps its new status; the report is still recorded for audit.
func TestSubmitReceipt_ConcurrentTransitionSkipsStatusWrite(t *testing.T) {
	f, req := newReceiptFixture(entity.StatusPOGenerated)
	f.extractor.meta = matchingMeta()
	f.extractor.onExtract = func() {
		f.requests.stored[req.ID].Status = entity.StatusRejected
	}

	report, err := f.svc.SubmitReceipt(context.Background(), req.ID, []byte("receipt"), "application/pdf")
	if err != nil {
		t.Fatalf("SubmitReceipt() failed: %v", err)
	}
	if report == nil {
		t.Fatal("report should still be produced")
	}

	stored, _ := f.requests.GetByID(context.Background(), req.ID)
	if stored.Status != entity.StatusRejected {
		t.Errorf("status = %s, the guarded write must not overwrite the concurrent transition", stored.Status)
	}
	if len(f.reports.reports) != 1 {
		t.Errorf("reports = %d, want 1 (audit trail keeps the report)", len(f.reports.reports))
	}
}

func TestSubmitReceipt_ReportTimestamp(t *testing.T) {
	f, req := newReceiptFixture(entity.StatusPOGenerated)
	f.extractor.meta = matchingMeta()

	before := time.Now().UTC()
	report, err := f.svc.SubmitReceipt(context.Background(), req.ID, []byte("receipt"), "application/pdf")
	if err != nil {
		t.Fatalf("SubmitReceipt() failed: %v", err)
	}
	if report.EvaluatedAt.Before(before) {
		t.Errorf("evaluated_at %v precedes submission time %v", report.EvaluatedAt, before)
	}
}
