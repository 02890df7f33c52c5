package entity

import "time"

// PurchaseRequest represents a staff-submitted purchase ask moving through
// the approval chain. Amounts are stored in cents to keep arithmetic exact.
type PurchaseRequest struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Currency       string     `json:"currency"`
	AmountCents    int64      `json:"amount_cents"`
	Status         string     `json:"status"`
	CurrentLevel   int        `json:"current_level"`
	RequiredLevels int        `json:"required_levels"`
	Version        int64      `json:"version"`
	CreatedBy      string     `json:"created_by"`
	ProformaPath   string     `json:"proforma_path,omitempty"`
	ProformaMeta   string     `json:"proforma_metadata,omitempty"`
	ApprovedAt     *time.Time `json:"approved_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// IsTerminal reports whether the request accepts no further approval decisions.
func (r *PurchaseRequest) IsTerminal() bool {
	switch r.Status {
	case StatusRejected, StatusPOGenerated, StatusReceiptSubmitted, StatusValidated:
		return true
	}
	return false
}

// Amount returns the request total in currency units for display purposes.
func (r *PurchaseRequest) Amount() float64 {
	return float64(r.AmountCents) / 100.0
}

// LineItem is a single priced line belonging to exactly one request.
type LineItem struct {
	ID             int64     `json:"id"`
	RequestID      string    `json:"request_id"`
	Description    string    `json:"description"`
	Quantity       int64     `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	CreatedAt      time.Time `json:"created_at"`
}

// TotalCents returns quantity × unit price for this line.
func (li *LineItem) TotalCents() int64 {
	return li.Quantity * li.UnitPriceCents
}

// SumLineItems computes the exact request total from its lines.
func SumLineItems(items []*LineItem) int64 {
	var total int64
	for _, li := range items {
		total += li.TotalCents()
	}
	return total
}
