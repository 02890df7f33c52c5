package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/procure2pay/server/internal/application/port"
	"github.com/procure2pay/server/internal/approval"
	"github.com/procure2pay/server/internal/domain/entity"
	"github.com/procure2pay/server/internal/domain/workflow"
	"github.com/procure2pay/server/internal/purchaseorder"
	"github.com/procure2pay/server/pkg/utils"
)

// LineItemInput is one priced line in a creation request.
type LineItemInput struct {
	Description    string `json:"description"`
	Quantity       int64  `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

// CreateRequestInput carries everything needed to open a purchase request.
type CreateRequestInput struct {
	Title       string
	Description string
	Currency    string
	CreatedBy   string
	LineItems   []LineItemInput

	// Optional proforma document; extraction failures degrade, never block.
	Proforma     []byte
	ProformaMime string
}

// RequestService owns the purchase request state machine: creation, approval
// decisions with optimistic concurrency, and the atomic final-approval + PO
// generation step.
type RequestService struct {
	requests  port.RequestRepository
	lineItems port.LineItemRepository
	approvals port.ApprovalRepository
	orders    port.PurchaseOrderRepository
	txManager port.TransactionManager

	resolver  *approval.ThresholdResolver
	generator *purchaseorder.Generator
	extractor port.DocumentExtractor
	renderer  port.ArtifactRenderer
	storage   port.FileStorage
	logger    *zap.Logger
}

// NewRequestService wires the workflow engine. extractor, renderer and
// storage may be nil in reduced deployments; the corresponding steps are
// skipped.
func NewRequestService(
	requests port.RequestRepository,
	lineItems port.LineItemRepository,
	approvals port.ApprovalRepository,
	orders port.PurchaseOrderRepository,
	txManager port.TransactionManager,
	resolver *approval.ThresholdResolver,
	generator *purchaseorder.Generator,
	extractor port.DocumentExtractor,
	renderer port.ArtifactRenderer,
	storage port.FileStorage,
	logger *zap.Logger,
) *RequestService {
	return &RequestService{
		requests:  requests,
		lineItems: lineItems,
		approvals: approvals,
		orders:    orders,
		txManager: txManager,
		resolver:  resolver,
		generator: generator,
		extractor: extractor,
		renderer:  renderer,
		storage:   storage,
		logger:    logger,
	}
}

// CreateRequest validates input, computes the amount and required approval
// levels, and persists the request at PENDING_L1 version 0. Nothing is
// persisted on malformed input.
func (s *RequestService) CreateRequest(ctx context.Context, input CreateRequestInput) (*entity.PurchaseRequest, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	req := &entity.PurchaseRequest{
		ID:           uuid.NewString(),
		Title:        utils.SanitizeString(strings.TrimSpace(input.Title)),
		Description:  utils.SanitizeString(strings.TrimSpace(input.Description)),
		Currency:     strings.ToUpper(input.Currency),
		Status:       entity.StatusPendingL1,
		CurrentLevel: 1,
		Version:      0,
		CreatedBy:    input.CreatedBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	items := make([]*entity.LineItem, 0, len(input.LineItems))
	for _, li := range input.LineItems {
		items = append(items, &entity.LineItem{
			RequestID:      req.ID,
			Description:    strings.TrimSpace(li.Description),
			Quantity:       li.Quantity,
			UnitPriceCents: li.UnitPriceCents,
		})
	}

	req.AmountCents = entity.SumLineItems(items)
	req.RequiredLevels = s.resolver.Resolve(req.AmountCents)

	// Proforma extraction runs before the transaction; a degraded result is
	// stored as-is and never fails creation.
	if len(input.Proforma) > 0 && s.extractor != nil {
		s.attachProforma(ctx, req, input.Proforma, input.ProformaMime)
	}

	err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.requests.Create(ctx, req); err != nil {
			return err
		}
		if err := s.lineItems.CreateBatch(ctx, items); err != nil {
			return err
		}
		return s.approvals.Create(ctx, &entity.Approval{
			RequestID: req.ID,
			Level:     1,
			Decision:  entity.DecisionPending,
		})
	})
	if err != nil {
		s.logger.Error("Failed to create request", zap.Error(err))
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	s.logger.Info("Purchase request created",
		zap.String("request_id", req.ID),
		zap.Int64("amount_cents", req.AmountCents),
		zap.Int("required_levels", req.RequiredLevels))

	return req, nil
}

// Decide records an approval decision at the given level under optimistic
// concurrency. Exactly one concurrent caller observing the same prior version
// commits; the rest get ErrConflict. Final approval generates the purchase
// order inside the same transaction, so transition and PO creation succeed or
// fail together.
func (s *RequestService) Decide(ctx context.Context, requestID string, level int, actorRole, actorID, decision, comment string, expectedVersion int64) (*entity.PurchaseRequest, error) {
	trigger, err := decisionTrigger(decision)
	if err != nil {
		return nil, err
	}

	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load request: %w", err)
	}
	if req == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, requestID)
	}

	if req.IsTerminal() {
		return nil, fmt.Errorf("%w: request %s is terminal (%s)", ErrInvalidState, requestID, req.Status)
	}
	if level != req.CurrentLevel {
		return nil, fmt.Errorf("%w: decision for level %d but request is at level %d", ErrInvalidState, level, req.CurrentLevel)
	}
	if actorRole != approval.RequiredRole(level) {
		return nil, fmt.Errorf("%w: role %s cannot decide level %d", ErrPermission, actorRole, level)
	}
	if req.Version != expectedVersion {
		return nil, fmt.Errorf("%w: expected version %d, stored %d", ErrConflict, expectedVersion, req.Version)
	}

	machine := workflow.BuildRequestMachine(workflow.State(req.Status), req.RequiredLevels)
	if err := machine.Fire(ctx, trigger); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	now := time.Now().UTC()
	updated := *req
	updated.Status = machine.State().String()
	updated.Version = req.Version + 1
	updated.UpdatedAt = now

	finalApproval := trigger == workflow.TriggerApprove && updated.Status == entity.StatusPOGenerated
	advancing := trigger == workflow.TriggerApprove && !finalApproval
	if advancing {
		updated.CurrentLevel = req.CurrentLevel + 1
	}
	if finalApproval {
		updated.ApprovedAt = &now
	}

	var po *entity.PurchaseOrder
	err = s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		committed, err := s.requests.UpdateWithVersion(ctx, &updated, expectedVersion)
		if err != nil {
			return err
		}
		if !committed {
			return fmt.Errorf("%w: request %s changed concurrently", ErrConflict, requestID)
		}

		if err := s.approvals.Upsert(ctx, &entity.Approval{
			RequestID:  requestID,
			Level:      level,
			Decision:   decisionRecord(trigger),
			ApproverID: actorID,
			Comment:    comment,
			DecidedAt:  &now,
		}); err != nil {
			return err
		}

		if advancing {
			if err := s.approvals.Create(ctx, &entity.Approval{
				RequestID: requestID,
				Level:     updated.CurrentLevel,
				Decision:  entity.DecisionPending,
			}); err != nil {
				return err
			}
		}

		if finalApproval {
			po, err = s.generatePurchaseOrder(ctx, &updated, now)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Decision recorded",
		zap.String("request_id", requestID),
		zap.Int("level", level),
		zap.String("decision", decision),
		zap.String("status", updated.Status),
		zap.Int64("version", updated.Version))

	// Artifact rendering stays outside the commit: the snapshot and hash are
	// the PO of record, the workbook is best-effort.
	if po != nil {
		s.renderArtifact(ctx, po)
	}

	return &updated, nil
}

// GetRequest loads a request or ErrNotFound.
func (s *RequestService) GetRequest(ctx context.Context, requestID string) (*entity.PurchaseRequest, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load request: %w", err)
	}
	if req == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, requestID)
	}
	return req, nil
}

// ListRequests returns requests, optionally filtered by status.
func (s *RequestService) ListRequests(ctx context.Context, status string, limit, offset int) ([]*entity.PurchaseRequest, error) {
	return s.requests.List(ctx, status, limit, offset)
}

// GetApprovals returns the approval trail for a request.
func (s *RequestService) GetApprovals(ctx context.Context, requestID string) ([]*entity.Approval, error) {
	return s.approvals.GetByRequestID(ctx, requestID)
}

func (s *RequestService) generatePurchaseOrder(ctx context.Context, req *entity.PurchaseRequest, now time.Time) (*entity.PurchaseOrder, error) {
	existing, err := s.orders.GetByRequestID(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		// Created exactly once; a retried commit must not duplicate it.
		return nil, fmt.Errorf("purchase order already exists for request %s", req.ID)
	}

	items, err := s.lineItems.GetByRequestID(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	po, err := s.generator.Generate(req, items, s.proformaMetadata(req), now)
	if err != nil {
		return nil, fmt.Errorf("failed to generate purchase order: %w", err)
	}

	if err := s.orders.Create(ctx, po); err != nil {
		return nil, err
	}
	return po, nil
}

func (s *RequestService) proformaMetadata(req *entity.PurchaseRequest) *entity.ExtractedMetadata {
	if req.ProformaMeta == "" {
		return nil
	}
	var meta entity.ExtractedMetadata
	if err := json.Unmarshal([]byte(req.ProformaMeta), &meta); err != nil {
		s.logger.Warn("Failed to parse stored proforma metadata",
			zap.String("request_id", req.ID),
			zap.Error(err))
		return nil
	}
	return &meta
}

func (s *RequestService) attachProforma(ctx context.Context, req *entity.PurchaseRequest, data []byte, mime string) {
	meta, err := s.extractor.Extract(ctx, data, mime)
	if err != nil {
		s.logger.Warn("Proforma extraction failed, continuing without metadata",
			zap.String("request_id", req.ID),
			zap.Error(err))
		return
	}

	encoded, err := json.Marshal(meta)
	if err != nil {
		return
	}
	req.ProformaMeta = string(encoded)

	if s.storage != nil {
		path := fmt.Sprintf("proformas/%s%s", req.ID, extensionFor(mime))
		if err := s.storage.Save(ctx, path, data); err != nil {
			s.logger.Warn("Failed to store proforma document", zap.Error(err))
			return
		}
		req.ProformaPath = path
	}
}

func (s *RequestService) renderArtifact(ctx context.Context, po *entity.PurchaseOrder) {
	if s.renderer == nil || s.storage == nil {
		return
	}

	data, err := s.renderer.Render(po)
	if err != nil {
		s.logger.Error("Failed to render purchase order artifact",
			zap.String("po_number", po.PONumber),
			zap.Error(err))
		return
	}

	path := fmt.Sprintf("purchase_orders/%s.xlsx", po.PONumber)
	if err := s.storage.Save(ctx, path, data); err != nil {
		s.logger.Error("Failed to store purchase order artifact", zap.Error(err))
		return
	}

	if err := s.orders.SetArtifactPath(ctx, po.ID, path); err != nil {
		s.logger.Error("Failed to record artifact path", zap.Error(err))
		return
	}
	po.ArtifactPath = path
}

func validateCreateInput(input CreateRequestInput) error {
	if strings.TrimSpace(input.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if err := utils.ValidateCurrency(strings.TrimSpace(input.Currency)); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if len(input.LineItems) == 0 {
		return fmt.Errorf("%w: at least one line item is required", ErrValidation)
	}
	for i, li := range input.LineItems {
		if strings.TrimSpace(li.Description) == "" {
			return fmt.Errorf("%w: line item %d is missing a description", ErrValidation, i)
		}
		if li.Quantity < 1 {
			return fmt.Errorf("%w: line item %d quantity must be at least 1", ErrValidation, i)
		}
		if li.UnitPriceCents < 0 {
			return fmt.Errorf("%w: line item %d unit price cannot be negative", ErrValidation, i)
		}
	}
	return nil
}

func decisionTrigger(decision string) (workflow.Trigger, error) {
	switch strings.ToUpper(decision) {
	case "APPROVE":
		return workflow.TriggerApprove, nil
	case "REJECT":
		return workflow.TriggerReject, nil
	default:
		return "", fmt.Errorf("%w: decision must be APPROVE or REJECT", ErrValidation)
	}
}

func decisionRecord(trigger workflow.Trigger) string {
	if trigger == workflow.TriggerApprove {
		return entity.DecisionApproved
	}
	return entity.DecisionRejected
}

func extensionFor(mime string) string {
	switch mime {
	case "application/pdf":
		return ".pdf"
	case "text/plain":
		return ".txt"
	default:
		return ""
	}
}
