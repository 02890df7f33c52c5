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

// LineItemRepository implements port.LineItemRepository
type LineItemRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewLineItemRepository creates a new line item repository
func NewLineItemRepository(db *sql.DB, logger *zap.Logger) port.LineItemRepository {
	return &LineItemRepository{
		db:     db,
		logger: logger,
	}
}

// CreateBatch inserts all line items of a request
func (r *LineItemRepository) CreateBatch(ctx context.Context, items []*entity.LineItem) error {
	query := `
		INSERT INTO line_items (request_id, description, quantity, unit_price_cents)
		VALUES (?, ?, ?, ?)
	`

	exec := r.getExecutor(ctx)
	for _, li := range items {
		result, err := exec.ExecContext(ctx, query,
			li.RequestID,
			li.Description,
			li.Quantity,
			li.UnitPriceCents,
		)
		if err != nil {
			r.logger.Error("Failed to create line item", zap.String("request_id", li.RequestID), zap.Error(err))
			return fmt.Errorf("failed to create line item: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		li.ID = id
	}

	return nil
}

// GetByRequestID retrieves all line items of a request in insertion order
func (r *LineItemRepository) GetByRequestID(ctx context.Context, requestID string) ([]*entity.LineItem, error) {
	query := `
		SELECT id, request_id, description, quantity, unit_price_cents, created_at
		FROM line_items
		WHERE request_id = ?
		ORDER BY id
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, requestID)
	if err != nil {
		r.logger.Error("Failed to list line items", zap.String("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to list line items: %w", err)
	}
	defer rows.Close()

	var items []*entity.LineItem
	for rows.Next() {
		var li entity.LineItem
		if err := rows.Scan(
			&li.ID,
			&li.RequestID,
			&li.Description,
			&li.Quantity,
			&li.UnitPriceCents,
			&li.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan line item: %w", err)
		}
		items = append(items, &li)
	}

	return items, rows.Err()
}

// getExecutor returns the ambient transaction when one is open, otherwise the
// connection pool
func (r *LineItemRepository) getExecutor(ctx context.Context) executor {
	if tx := sqlite.ExtractTx(ctx); tx != nil {
		return tx
	}
	return r.db
}

// Verify interface compliance
var _ port.LineItemRepository = (*LineItemRepository)(nil)
