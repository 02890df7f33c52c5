package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/procure2pay/server/internal/application/port"
	"github.com/procure2pay/server/internal/domain/entity"
	"github.com/procure2pay/server/internal/infrastructure/persistence/sqlite"
)

// ApprovalRepository implements port.ApprovalRepository
type ApprovalRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewApprovalRepository creates a new approval repository
func NewApprovalRepository(db *sql.DB, logger *zap.Logger) port.ApprovalRepository {
	return &ApprovalRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new approval row
func (r *ApprovalRepository) Create(ctx context.Context, approval *entity.Approval) error {
	query := `
		INSERT INTO approvals (request_id, level, decision, approver_id, comment, decided_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		approval.RequestID,
		approval.Level,
		approval.Decision,
		approval.ApproverID,
		approval.Comment,
		approval.DecidedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create approval", zap.String("request_id", approval.RequestID), zap.Error(err))
		return fmt.Errorf("failed to create approval: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	approval.ID = id
	return nil
}

// Upsert records the decision for a (request, level) pair. The unique index
// on (request_id, level) makes this replace the pending row in place.
func (r *ApprovalRepository) Upsert(ctx context.Context, approval *entity.Approval) error {
	query := `
		INSERT INTO approvals (request_id, level, decision, approver_id, comment, decided_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(request_id, level) DO UPDATE SET
			decision = excluded.decision,
			approver_id = excluded.approver_id,
			comment = excluded.comment,
			decided_at = excluded.decided_at
	`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		approval.RequestID,
		approval.Level,
		approval.Decision,
		approval.ApproverID,
		approval.Comment,
		approval.DecidedAt,
	)
	if err != nil {
		r.logger.Error("Failed to upsert approval",
			zap.String("request_id", approval.RequestID),
			zap.Int("level", approval.Level),
			zap.Error(err))
		return fmt.Errorf("failed to upsert approval: %w", err)
	}

	return nil
}

// GetByRequestID retrieves the approval trail of a request ordered by level
func (r *ApprovalRepository) GetByRequestID(ctx context.Context, requestID string) ([]*entity.Approval, error) {
	query := `
		SELECT id, request_id, level, decision, approver_id, comment, decided_at, created_at
		FROM approvals
		WHERE request_id = ?
		ORDER BY level
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, requestID)
	if err != nil {
		r.logger.Error("Failed to list approvals", zap.String("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to list approvals: %w", err)
	}
	defer rows.Close()

	var approvals []*entity.Approval
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval: %w", err)
		}
		approvals = append(approvals, a)
	}

	return approvals, rows.Err()
}

// GetByRequestAndLevel retrieves one approval row. Returns (nil, nil) when absent.
func (r *ApprovalRepository) GetByRequestAndLevel(ctx context.Context, requestID string, level int) (*entity.Approval, error) {
	query := `
		SELECT id, request_id, level, decision, approver_id, comment, decided_at, created_at
		FROM approvals
		WHERE request_id = ? AND level = ?
	`

	a, err := scanApproval(r.getExecutor(ctx).QueryRowContext(ctx, query, requestID, level))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get approval",
			zap.String("request_id", requestID),
			zap.Int("level", level),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get approval: %w", err)
	}

	return a, nil
}

func scanApproval(s scanner) (*entity.Approval, error) {
	var a entity.Approval
	var decidedAt sql.NullTime

	err := s.Scan(
		&a.ID,
		&a.RequestID,
		&a.Level,
		&a.Decision,
		&a.ApproverID,
		&a.Comment,
		&decidedAt,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if decidedAt.Valid {
		a.DecidedAt = &decidedAt.Time
	}

	return &a, nil
}

// getExecutor returns the ambient transaction when one is open, otherwise the
// connection pool
func (r *ApprovalRepository) getExecutor(ctx context.Context) executor {
	if tx := sqlite.ExtractTx(ctx); tx != nil {
		return tx
	}
	return r.db
}

// Verify interface compliance
var _ port.ApprovalRepository = (*ApprovalRepository)(nil)
