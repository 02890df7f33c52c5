package entity

import "time"

// ExtractedMetadata holds the structured fields pulled out of an uploaded
// document. Missing fields stay nil; a document that could not be parsed at
// all carries Confidence 0 with every field nil, which is a degraded result
// rather than an error.
type ExtractedMetadata struct {
	Vendor     *string    `json:"vendor,omitempty"`
	TotalCents *int64     `json:"total_cents,omitempty"`
	Currency   *string    `json:"currency,omitempty"`
	Date       *time.Time `json:"date,omitempty"`
	Confidence float64    `json:"confidence"`
}

// IsEmpty reports whether extraction produced no usable fields.
func (m *ExtractedMetadata) IsEmpty() bool {
	return m.Vendor == nil && m.TotalCents == nil && m.Currency == nil && m.Date == nil
}

// Receipt is one uploaded receipt document for a request. A request may
// receive several; each submission produces a fresh ValidationReport.
type Receipt struct {
	ID            int64     `json:"id"`
	RequestID     string    `json:"request_id"`
	FilePath      string    `json:"file_path"`
	ExtractedMeta string    `json:"extracted_metadata"`
	UploadedAt    time.Time `json:"uploaded_at"`
}

// Discrepancy is a field-level mismatch between PO and receipt metadata.
type Discrepancy struct {
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// ValidationReport is the outcome of comparing one receipt against the PO.
// Reports are append-only: re-validation adds a new row, never overwrites.
type ValidationReport struct {
	ID            int64                  `json:"id"`
	ReceiptID     int64                  `json:"receipt_id"`
	RequestID     string                 `json:"request_id"`
	IsValid       bool                   `json:"is_valid"`
	Discrepancies map[string]Discrepancy `json:"discrepancies"`
	Confidence    float64                `json:"confidence"`
	EvaluatedAt   time.Time              `json:"evaluated_at"`
}
