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

// ReceiptRepository implements port.ReceiptRepository
type ReceiptRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReceiptRepository creates a new receipt repository
func NewReceiptRepository(db *sql.DB, logger *zap.Logger) port.ReceiptRepository {
	return &ReceiptRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts an uploaded receipt
func (r *ReceiptRepository) Create(ctx context.Context, receipt *entity.Receipt) error {
	query := `
		INSERT INTO receipts (request_id, file_path, extracted_metadata, uploaded_at)
		VALUES (?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		receipt.RequestID,
		receipt.FilePath,
		receipt.ExtractedMeta,
		receipt.UploadedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create receipt", zap.String("request_id", receipt.RequestID), zap.Error(err))
		return fmt.Errorf("failed to create receipt: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	receipt.ID = id
	return nil
}

// GetByRequestID retrieves all receipts of a request, oldest first
func (r *ReceiptRepository) GetByRequestID(ctx context.Context, requestID string) ([]*entity.Receipt, error) {
	query := `
		SELECT id, request_id, file_path, extracted_metadata, uploaded_at
		FROM receipts
		WHERE request_id = ?
		ORDER BY id
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, requestID)
	if err != nil {
		r.logger.Error("Failed to list receipts", zap.String("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}
	defer rows.Close()

	var receipts []*entity.Receipt
	for rows.Next() {
		var rec entity.Receipt
		if err := rows.Scan(
			&rec.ID,
			&rec.RequestID,
			&rec.FilePath,
			&rec.ExtractedMeta,
			&rec.UploadedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan receipt: %w", err)
		}
		receipts = append(receipts, &rec)
	}

	return receipts, rows.Err()
}

// getExecutor returns the ambient transaction when one is open, otherwise the
// connection pool
func (r *ReceiptRepository) getExecutor(ctx context.Context) executor {
	if tx := sqlite.ExtractTx(ctx); tx != nil {
		return tx
	}
	return r.db
}

// Verify interface compliance
var _ port.ReceiptRepository = (*ReceiptRepository)(nil)
