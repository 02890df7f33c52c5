package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/procure2pay/server/internal/application/port"
	"github.com/procure2pay/server/internal/domain/entity"
	"github.com/procure2pay/server/internal/infrastructure/persistence/sqlite"
)

// RequestRepository implements port.RequestRepository
type RequestRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(db *sql.DB, logger *zap.Logger) port.RequestRepository {
	return &RequestRepository{
		db:     db,
		logger: logger,
	}
}

const requestColumns = `
	id, title, description, currency, amount_cents, status,
	current_level, required_levels, version, created_by,
	proforma_path, proforma_metadata, approved_at, created_at, updated_at
`

// Create inserts a new purchase request
func (r *RequestRepository) Create(ctx context.Context, req *entity.PurchaseRequest) error {
	query := `
		INSERT INTO purchase_requests (
			id, title, description, currency, amount_cents, status,
			current_level, required_levels, version, created_by,
			proforma_path, proforma_metadata, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		req.ID,
		req.Title,
		req.Description,
		req.Currency,
		req.AmountCents,
		req.Status,
		req.CurrentLevel,
		req.RequiredLevels,
		req.Version,
		req.CreatedBy,
		req.ProformaPath,
		req.ProformaMeta,
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create request", zap.Error(err))
		return fmt.Errorf("failed to create request: %w", err)
	}

	return nil
}

// GetByID retrieves a purchase request by ID. Returns (nil, nil) when absent.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*entity.PurchaseRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM purchase_requests WHERE id = ?`

	req, err := scanRequest(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get request by ID", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get request: %w", err)
	}

	return req, nil
}

// List retrieves purchase requests with pagination, newest first.
func (r *RequestRepository) List(ctx context.Context, status string, limit, offset int) ([]*entity.PurchaseRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM purchase_requests`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list requests", zap.Error(err))
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	var requests []*entity.PurchaseRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, req)
	}

	return requests, rows.Err()
}

// UpdateWithVersion performs the optimistic-concurrency commit: the row is
// written only if its stored version still equals expectedVersion. The
// version predicate in the WHERE clause is what makes concurrent deciders
// safe; exactly one of them matches the row.
func (r *RequestRepository) UpdateWithVersion(ctx context.Context, req *entity.PurchaseRequest, expectedVersion int64) (bool, error) {
	query := `
		UPDATE purchase_requests
		SET status = ?, current_level = ?, version = ?,
			approved_at = ?, updated_at = ?
		WHERE id = ? AND version = ?
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		req.Status,
		req.CurrentLevel,
		req.Version,
		req.ApprovedAt,
		req.UpdatedAt,
		req.ID,
		expectedVersion,
	)
	if err != nil {
		r.logger.Error("Failed to update request", zap.String("id", req.ID), zap.Error(err))
		return false, fmt.Errorf("failed to update request: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return affected == 1, nil
}

// UpdateStatusGuarded moves status only when the current status is one of
// allowedFrom. The receipt path uses this; it never touches the version.
func (r *RequestRepository) UpdateStatusGuarded(ctx context.Context, id string, newStatus string, allowedFrom []string) (bool, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(allowedFrom)), ",")
	query := fmt.Sprintf(`
		UPDATE purchase_requests
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status IN (%s)
	`, placeholders)

	args := []interface{}{newStatus, id}
	for _, from := range allowedFrom {
		args = append(args, from)
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update request status", zap.String("id", id), zap.Error(err))
		return false, fmt.Errorf("failed to update request status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return affected == 1, nil
}

// scanner covers *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRequest(s scanner) (*entity.PurchaseRequest, error) {
	var req entity.PurchaseRequest
	var approvedAt sql.NullTime

	err := s.Scan(
		&req.ID,
		&req.Title,
		&req.Description,
		&req.Currency,
		&req.AmountCents,
		&req.Status,
		&req.CurrentLevel,
		&req.RequiredLevels,
		&req.Version,
		&req.CreatedBy,
		&req.ProformaPath,
		&req.ProformaMeta,
		&approvedAt,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if approvedAt.Valid {
		req.ApprovedAt = &approvedAt.Time
	}

	return &req, nil
}

// getExecutor returns the ambient transaction when one is open, otherwise the
// connection pool
func (r *RequestRepository) getExecutor(ctx context.Context) executor {
	if tx := sqlite.ExtractTx(ctx); tx != nil {
		return tx
	}
	return r.db
}

// executor interface covers both *sql.DB and *sql.Tx
type executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Verify interface compliance
var _ port.RequestRepository = (*RequestRepository)(nil)
