package entity

// Status constants for PurchaseRequest
const (
	StatusPendingL1        = "PENDING_L1"
	StatusPendingL2        = "PENDING_L2"
	StatusRejected         = "REJECTED"
	StatusPOGenerated      = "PO_GENERATED"
	StatusReceiptSubmitted = "RECEIPT_SUBMITTED"
	StatusValidated        = "VALIDATED"
)

// Decision constants for Approval
const (
	DecisionPending  = "PENDING"
	DecisionApproved = "APPROVED"
	DecisionRejected = "REJECTED"
)

// Approver role constants, one per approval level
const (
	RoleApproverL1 = "APPROVER_L1"
	RoleApproverL2 = "APPROVER_L2"
)

// PendingStatusForLevel returns the request status awaiting a decision at the
// given level.
func PendingStatusForLevel(level int) string {
	if level >= 2 {
		return StatusPendingL2
	}
	return StatusPendingL1
}
