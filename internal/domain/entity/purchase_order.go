package entity

import "time"

// POSnapshot is the canonical metadata captured when a purchase order is
// generated. It is the content that gets hashed; two requests with identical
// content produce identical hashes.
type POSnapshot struct {
	Vendor     string   `json:"vendor"`
	Currency   string   `json:"currency"`
	TotalCents int64    `json:"total_cents"`
	Items      []POItem `json:"items"`
}

// POItem is one snapshot line, in request insertion order.
type POItem struct {
	Description    string `json:"description"`
	Quantity       int64  `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

// PurchaseOrder is the immutable artifact produced on final approval.
// One-to-one with its request, created exactly once.
type PurchaseOrder struct {
	ID           int64      `json:"id"`
	RequestID    string     `json:"request_id"`
	PONumber     string     `json:"po_number"`
	ContentHash  string     `json:"content_hash"`
	Snapshot     POSnapshot `json:"snapshot"`
	ArtifactPath string     `json:"artifact_path,omitempty"`
	GeneratedAt  time.Time  `json:"generated_at"`
}
