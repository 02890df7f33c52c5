package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/procure2pay/server/internal/application/port"
	"github.com/procure2pay/server/internal/domain/entity"
	"github.com/procure2pay/server/internal/infrastructure/persistence/sqlite"
)

// PurchaseOrderRepository implements port.PurchaseOrderRepository
type PurchaseOrderRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPurchaseOrderRepository creates a new purchase order repository
func NewPurchaseOrderRepository(db *sql.DB, logger *zap.Logger) port.PurchaseOrderRepository {
	return &PurchaseOrderRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts the purchase order of a request. The unique index on
// request_id enforces the one-PO-per-request invariant at the schema level.
func (r *PurchaseOrderRepository) Create(ctx context.Context, po *entity.PurchaseOrder) error {
	snapshot, err := json.Marshal(po.Snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	query := `
		INSERT INTO purchase_orders (request_id, po_number, content_hash, snapshot, artifact_path, generated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		po.RequestID,
		po.PONumber,
		po.ContentHash,
		string(snapshot),
		po.ArtifactPath,
		po.GeneratedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create purchase order", zap.String("request_id", po.RequestID), zap.Error(err))
		return fmt.Errorf("failed to create purchase order: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	po.ID = id
	return nil
}

// GetByRequestID retrieves the purchase order of a request. Returns (nil, nil) when absent.
func (r *PurchaseOrderRepository) GetByRequestID(ctx context.Context, requestID string) (*entity.PurchaseOrder, error) {
	query := `
		SELECT id, request_id, po_number, content_hash, snapshot, artifact_path, generated_at
		FROM purchase_orders
		WHERE request_id = ?
	`

	var po entity.PurchaseOrder
	var snapshot string

	err := r.getExecutor(ctx).QueryRowContext(ctx, query, requestID).Scan(
		&po.ID,
		&po.RequestID,
		&po.PONumber,
		&po.ContentHash,
		&snapshot,
		&po.ArtifactPath,
		&po.GeneratedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get purchase order", zap.String("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to get purchase order: %w", err)
	}

	if err := json.Unmarshal([]byte(snapshot), &po.Snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	return &po, nil
}

// ListMissingArtifacts returns orders without a rendered workbook, oldest first
func (r *PurchaseOrderRepository) ListMissingArtifacts(ctx context.Context, limit int) ([]*entity.PurchaseOrder, error) {
	query := `
		SELECT id, request_id, po_number, content_hash, snapshot, artifact_path, generated_at
		FROM purchase_orders
		WHERE artifact_path = ''
		ORDER BY id
		LIMIT ?
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, limit)
	if err != nil {
		r.logger.Error("Failed to list orders missing artifacts", zap.Error(err))
		return nil, fmt.Errorf("failed to list orders missing artifacts: %w", err)
	}
	defer rows.Close()

	var orders []*entity.PurchaseOrder
	for rows.Next() {
		var po entity.PurchaseOrder
		var snapshot string

		if err := rows.Scan(
			&po.ID,
			&po.RequestID,
			&po.PONumber,
			&po.ContentHash,
			&snapshot,
			&po.ArtifactPath,
			&po.GeneratedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan purchase order: %w", err)
		}

		if err := json.Unmarshal([]byte(snapshot), &po.Snapshot); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot: %w", err)
		}

		orders = append(orders, &po)
	}

	return orders, rows.Err()
}

// SetArtifactPath records where the rendered workbook landed
func (r *PurchaseOrderRepository) SetArtifactPath(ctx context.Context, id int64, path string) error {
	query := `UPDATE purchase_orders SET artifact_path = ? WHERE id = ?`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query, path, id)
	if err != nil {
		r.logger.Error("Failed to set artifact path", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to set artifact path: %w", err)
	}

	return nil
}

// getExecutor returns the ambient transaction when one is open, otherwise the
// connection pool
func (r *PurchaseOrderRepository) getExecutor(ctx context.Context) executor {
	if tx := sqlite.ExtractTx(ctx); tx != nil {
		return tx
	}
	return r.db
}

// Verify interface compliance
var _ port.PurchaseOrderRepository = (*PurchaseOrderRepository)(nil)
