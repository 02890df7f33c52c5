package entity

import "time"

// Approval records the decision taken at one approval level of a request.
// There is exactly one row per (request, level).
type Approval struct {
	ID         int64      `json:"id"`
	RequestID  string     `json:"request_id"`
	Level      int        `json:"level"`
	Decision   string     `json:"decision"`
	ApproverID string     `json:"approver_id,omitempty"`
	Comment    string     `json:"comment,omitempty"`
	DecidedAt  *time.Time `json:"decided_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
