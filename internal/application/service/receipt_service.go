package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/procure2pay/server/internal/application/port"
	"github.com/procure2pay/server/internal/domain/entity"
	"github.com/procure2pay/server/internal/validation"
)

// ReceiptService reconciles submitted receipts against the generated PO.
// Extraction and validation are slow, externally-bound work and run entirely
// outside any open transaction.
type ReceiptService struct {
	requests port.RequestRepository
	orders   port.PurchaseOrderRepository
	receipts port.ReceiptRepository
	reports  port.ValidationReportRepository

	txManager port.TransactionManager
	extractor port.DocumentExtractor
	engine    *validation.Engine
	storage   port.FileStorage
	logger    *zap.Logger
}

// NewReceiptService creates a new receipt reconciliation service
func NewReceiptService(
	requests port.RequestRepository,
	orders port.PurchaseOrderRepository,
	receipts port.ReceiptRepository,
	reports port.ValidationReportRepository,
	txManager port.TransactionManager,
	extractor port.DocumentExtractor,
	engine *validation.Engine,
	storage port.FileStorage,
	logger *zap.Logger,
) *ReceiptService {
	return &ReceiptService{
		requests:  requests,
		orders:    orders,
		receipts:  receipts,
		reports:   reports,
		txManager: txManager,
		extractor: extractor,
		engine:    engine,
		storage:   storage,
		logger:    logger,
	}
}

// receiptStatuses are the request states that accept a receipt submission.
var receiptStatuses = []string{
	entity.StatusPOGenerated,
	entity.StatusReceiptSubmitted,
	entity.StatusValidated,
}

// SubmitReceipt extracts the uploaded document, validates it against the PO
// snapshot and appends a fresh ValidationReport. Re-submission re-validates;
// prior reports are retained for audit. The workflow version counter is not
// touched: receipt state tracks through guarded status writes.
func (s *ReceiptService) SubmitReceipt(ctx context.Context, requestID string, data []byte, mimeType string) (*entity.ValidationReport, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load request: %w", err)
	}
	if req == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, requestID)
	}

	if !statusAllowsReceipt(req.Status) {
		return nil, fmt.Errorf("%w: receipts are accepted only after PO generation (status %s)", ErrInvalidState, req.Status)
	}

	po, err := s.orders.GetByRequestID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load purchase order: %w", err)
	}
	if po == nil {
		return nil, fmt.Errorf("%w: request %s has no purchase order", ErrInvalidState, requestID)
	}

	// Extraction happens before any transaction opens. Operational failures
	// (timeout, upstream outage) surface to the caller; an unreadable
	// document comes back degraded and still yields an (invalid) report.
	meta, err := s.extractor.Extract(ctx, data, mimeType)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	report := s.engine.Validate(po, meta, now)

	encodedMeta, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to encode extracted metadata: %w", err)
	}

	receipt := &entity.Receipt{
		RequestID:     requestID,
		ExtractedMeta: string(encodedMeta),
		UploadedAt:    now,
	}

	if s.storage != nil {
		path := fmt.Sprintf("receipts/%s/%d%s", requestID, now.UnixNano(), extensionFor(mimeType))
		if err := s.storage.Save(ctx, path, data); err != nil {
			s.logger.Warn("Failed to store receipt document", zap.Error(err))
		} else {
			receipt.FilePath = path
		}
	}

	err = s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.receipts.Create(ctx, receipt); err != nil {
			return err
		}

		report.ReceiptID = receipt.ID
		if err := s.reports.Create(ctx, report); err != nil {
			return err
		}

		moved, err := s.requests.UpdateStatusGuarded(ctx, requestID, entity.StatusReceiptSubmitted, receiptStatuses)
		if err != nil {
			return err
		}
		if !moved {
			// The request left the receipt states between the status check
			// and this write. The report is still recorded for audit.
			s.logger.Warn("Receipt status write skipped, request state changed concurrently",
				zap.String("request_id", requestID))
			return nil
		}
		if report.IsValid {
			moved, err := s.requests.UpdateStatusGuarded(ctx, requestID, entity.StatusValidated, []string{entity.StatusReceiptSubmitted})
			if err != nil {
				return err
			}
			if !moved {
				s.logger.Warn("Validated status write skipped, request state changed concurrently",
					zap.String("request_id", requestID))
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to persist receipt validation",
			zap.String("request_id", requestID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to persist receipt validation: %w", err)
	}

	s.logger.Info("Receipt processed",
		zap.String("request_id", requestID),
		zap.Bool("is_valid", report.IsValid),
		zap.Float64("confidence", report.Confidence))

	return report, nil
}

// GetReports returns the full validation history for a request.
func (s *ReceiptService) GetReports(ctx context.Context, requestID string) ([]*entity.ValidationReport, error) {
	return s.reports.GetByRequestID(ctx, requestID)
}

func statusAllowsReceipt(status string) bool {
	for _, allowed := range receiptStatuses {
		if status == allowed {
			return true
		}
	}
	return false
}
