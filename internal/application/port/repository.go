package port

import (
	"context"

	"github.com/procure2pay/server/internal/domain/entity"
)

// RequestRepository defines persistence operations for PurchaseRequest.
// UpdateWithVersion is the only mutation path for workflow state: it performs
// a compare-and-swap on the stored version and reports whether the swap won.
type RequestRepository interface {
	Create(ctx context.Context, req *entity.PurchaseRequest) error
	GetByID(ctx context.Context, id string) (*entity.PurchaseRequest, error)
	List(ctx context.Context, status string, limit, offset int) ([]*entity.PurchaseRequest, error)

	// UpdateWithVersion persists the request iff the stored version still
	// equals expectedVersion, writing req.Version as the new version.
	// Returns (false, nil) when another writer got there first.
	UpdateWithVersion(ctx context.Context, req *entity.PurchaseRequest, expectedVersion int64) (bool, error)

	// UpdateStatusGuarded moves status only when the current status is one of
	// allowedFrom. Used by the receipt path, which tracks outside the
	// workflow version counter. Returns false when the guard did not match.
	UpdateStatusGuarded(ctx context.Context, id string, newStatus string, allowedFrom []string) (bool, error)
}

// LineItemRepository defines persistence operations for LineItem
type LineItemRepository interface {
	CreateBatch(ctx context.Context, items []*entity.LineItem) error
	GetByRequestID(ctx context.Context, requestID string) ([]*entity.LineItem, error)
}

// ApprovalRepository defines persistence operations for Approval.
// (request_id, level) is unique; Upsert records the decision for a level.
type ApprovalRepository interface {
	Create(ctx context.Context, approval *entity.Approval) error
	Upsert(ctx context.Context, approval *entity.Approval) error
	GetByRequestID(ctx context.Context, requestID string) ([]*entity.Approval, error)
	GetByRequestAndLevel(ctx context.Context, requestID string, level int) (*entity.Approval, error)
}

// PurchaseOrderRepository defines persistence operations for PurchaseOrder.
// A PO row is created exactly once per request.
type PurchaseOrderRepository interface {
	Create(ctx context.Context, po *entity.PurchaseOrder) error
	GetByRequestID(ctx context.Context, requestID string) (*entity.PurchaseOrder, error)
	SetArtifactPath(ctx context.Context, id int64, path string) error

	// ListMissingArtifacts returns orders whose workbook has not been
	// rendered yet, oldest first.
	ListMissingArtifacts(ctx context.Context, limit int) ([]*entity.PurchaseOrder, error)
}

// ReceiptRepository defines persistence operations for Receipt
type ReceiptRepository interface {
	Create(ctx context.Context, receipt *entity.Receipt) error
	GetByRequestID(ctx context.Context, requestID string) ([]*entity.Receipt, error)
}

// ValidationReportRepository defines persistence operations for
// ValidationReport. Reports are append-only for audit.
type ValidationReportRepository interface {
	Create(ctx context.Context, report *entity.ValidationReport) error
	GetByRequestID(ctx context.Context, requestID string) ([]*entity.ValidationReport, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
