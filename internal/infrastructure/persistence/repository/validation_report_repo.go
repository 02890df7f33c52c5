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

// ValidationReportRepository implements port.ValidationReportRepository
type ValidationReportRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewValidationReportRepository creates a new validation report repository
func NewValidationReportRepository(db *sql.DB, logger *zap.Logger) port.ValidationReportRepository {
	return &ValidationReportRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a validation report. Reports are never updated or deleted.
func (r *ValidationReportRepository) Create(ctx context.Context, report *entity.ValidationReport) error {
	discrepancies, err := json.Marshal(report.Discrepancies)
	if err != nil {
		return fmt.Errorf("failed to encode discrepancies: %w", err)
	}

	query := `
		INSERT INTO validation_reports (receipt_id, request_id, is_valid, discrepancies, confidence, evaluated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		report.ReceiptID,
		report.RequestID,
		report.IsValid,
		string(discrepancies),
		report.Confidence,
		report.EvaluatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create validation report", zap.String("request_id", report.RequestID), zap.Error(err))
		return fmt.Errorf("failed to create validation report: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	report.ID = id
	return nil
}

// GetByRequestID retrieves the full validation history of a request, oldest first
func (r *ValidationReportRepository) GetByRequestID(ctx context.Context, requestID string) ([]*entity.ValidationReport, error) {
	query := `
		SELECT id, receipt_id, request_id, is_valid, discrepancies, confidence, evaluated_at
		FROM validation_reports
		WHERE request_id = ?
		ORDER BY id
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, requestID)
	if err != nil {
		r.logger.Error("Failed to list validation reports", zap.String("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to list validation reports: %w", err)
	}
	defer rows.Close()

	var reports []*entity.ValidationReport
	for rows.Next() {
		var report entity.ValidationReport
		var discrepancies string

		if err := rows.Scan(
			&report.ID,
			&report.ReceiptID,
			&report.RequestID,
			&report.IsValid,
			&discrepancies,
			&report.Confidence,
			&report.EvaluatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan validation report: %w", err)
		}

		if err := json.Unmarshal([]byte(discrepancies), &report.Discrepancies); err != nil {
			return nil, fmt.Errorf("failed to decode discrepancies: %w", err)
		}

		reports = append(reports, &report)
	}

	return reports, rows.Err()
}

// getExecutor returns the ambient transaction when one is open, otherwise the
// connection pool
func (r *ValidationReportRepository) getExecutor(ctx context.Context) executor {
	if tx := sqlite.ExtractTx(ctx); tx != nil {
		return tx
	}
	return r.db
}

// Verify interface compliance
var _ port.ValidationReportRepository = (*ValidationReportRepository)(nil)
