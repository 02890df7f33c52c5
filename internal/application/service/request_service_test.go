package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/procure2pay/server/internal/approval"
	"github.com/procure2pay/server/internal/domain/entity"
	"github.com/procure2pay/server/internal/purchaseorder"
)

// Mock repositories

type mockRequestRepo struct {
	mu       sync.Mutex
	stored   map[string]*entity.PurchaseRequest
	createFn func(ctx context.Context, req *entity.PurchaseRequest) error
}

func newMockRequestRepo() *mockRequestRepo {
	return &mockRequestRepo{stored: make(map[string]*entity.PurchaseRequest)}
}

func (m *mockRequestRepo) Create(ctx context.Context, req *entity.PurchaseRequest) error {
	if m.createFn != nil {
		return m.createFn(ctx, req)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *req
	m.stored[req.ID] = &copied
	return nil
}

func (m *mockRequestRepo) GetByID(ctx context.Context, id string) (*entity.PurchaseRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.stored[id]
	if !ok {
		return nil, nil
	}
	copied := *req
	return &copied, nil
}

func (m *mockRequestRepo) List(ctx context.Context, status string, limit, offset int) ([]*entity.PurchaseRequest, error) {
	return nil, nil
}

// UpdateWithVersion mirrors the SQL compare-and-swap: the write wins only if
// the stored version still matches.
func (m *mockRequestRepo) UpdateWithVersion(ctx context.Context, req *entity.PurchaseRequest, expectedVersion int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.stored[req.ID]
	if !ok || current.Version != expectedVersion {
		return false, nil
	}
	copied := *req
	m.stored[req.ID] = &copied
	return true, nil
}

func (m *mockRequestRepo) UpdateStatusGuarded(ctx context.Context, id string, newStatus string, allowedFrom []string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.stored[id]
	if !ok {
		return false, nil
	}
	for _, from := range allowedFrom {
		if current.Status == from {
			current.Status = newStatus
			return true, nil
		}
	}
	return false, nil
}

type mockLineItemRepo struct {
	items map[string][]*entity.LineItem
}

func newMockLineItemRepo() *mockLineItemRepo {
	return &mockLineItemRepo{items: make(map[string][]*entity.LineItem)}
}

func (m *mockLineItemRepo) CreateBatch(ctx context.Context, items []*entity.LineItem) error {
	for _, li := range items {
		m.items[li.RequestID] = append(m.items[li.RequestID], li)
	}
	return nil
}

func (m *mockLineItemRepo) GetByRequestID(ctx context.Context, requestID string) ([]*entity.LineItem, error) {
	return m.items[requestID], nil
}

type mockApprovalRepo struct {
	mu      sync.Mutex
	records []*entity.Approval
}

func (m *mockApprovalRepo) Create(ctx context.Context, a *entity.Approval) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, a)
	return nil
}

func (m *mockApprovalRepo) Upsert(ctx context.Context, a *entity.Approval) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.records {
		if existing.RequestID == a.RequestID && existing.Level == a.Level {
			m.records[i] = a
			return nil
		}
	}
	m.records = append(m.records, a)
	return nil
}

func (m *mockApprovalRepo) GetByRequestID(ctx context.Context, requestID string) ([]*entity.Approval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Approval
	for _, a := range m.records {
		if a.RequestID == requestID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockApprovalRepo) GetByRequestAndLevel(ctx context.Context, requestID string, level int) (*entity.Approval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.records {
		if a.RequestID == requestID && a.Level == level {
			return a, nil
		}
	}
	return nil, nil
}

type mockPORepo struct {
	mu     sync.Mutex
	orders map[string]*entity.PurchaseOrder
}

func newMockPORepo() *mockPORepo {
	return &mockPORepo{orders: make(map[string]*entity.PurchaseOrder)}
}

func (m *mockPORepo) Create(ctx context.Context, po *entity.PurchaseOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	po.ID = int64(len(m.orders) + 1)
	m.orders[po.RequestID] = po
	return nil
}

func (m *mockPORepo) GetByRequestID(ctx context.Context, requestID string) (*entity.PurchaseOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[requestID], nil
}

func (m *mockPORepo) SetArtifactPath(ctx context.Context, id int64, path string) error {
	return nil
}

func (m *mockPORepo) ListMissingArtifacts(ctx context.Context, limit int) ([]*entity.PurchaseOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.PurchaseOrder
	for _, po := range m.orders {
		if po.ArtifactPath == "" {
			out = append(out, po)
		}
	}
	return out, nil
}

type mockTxManager struct{}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fixture struct {
	requests  *mockRequestRepo
	lineItems *mockLineItemRepo
	approvals *mockApprovalRepo
	orders    *mockPORepo
	svc       *RequestService
}

func newFixture() *fixture {
	f := &fixture{
		requests:  newMockRequestRepo(),
		lineItems: newMockLineItemRepo(),
		approvals: &mockApprovalRepo{},
		orders:    newMockPORepo(),
	}
	f.svc = NewRequestService(
		f.requests,
		f.lineItems,
		f.approvals,
		f.orders,
		&mockTxManager{},
		approval.NewThresholdResolver(approval.DefaultThresholdCents),
		purchaseorder.NewGenerator(zap.NewNop()),
		nil, // extractor
		nil, // renderer
		nil, // storage
		zap.NewNop(),
	)
	return f
}

func validInput() CreateRequestInput {
	return CreateRequestInput{
		Title:     "Workstation refresh",
		Currency:  "USD",
		CreatedBy: "user-1",
		LineItems: []LineItemInput{
			{Description: "Laptop", Quantity: 10, UnitPriceCents: 400000},
			{Description: "Dock", Quantity: 10, UnitPriceCents: 100000},
		},
	}
}

func TestCreateRequest(t *testing.T) {
	f := newFixture()

	req, err := f.svc.CreateRequest(context.Background(), validInput())
	if err != nil {
		t.Fatalf("CreateRequest() failed: %v", err)
	}

	if req.AmountCents != 5000000 {
		t.Errorf("amount = %d, want 5000000", req.AmountCents)
	}
	if req.Status != entity.StatusPendingL1 {
		t.Errorf("status = %s, want %s", req.Status, entity.StatusPendingL1)
	}
	if req.Version != 0 {
		t.Errorf("version = %d, want 0", req.Version)
	}
	if req.CurrentLevel != 1 {
		t.Errorf("current_level = %d, want 1", req.CurrentLevel)
	}
	if req.RequiredLevels != 2 {
		t.Errorf("required_levels = %d, want 2 for 50000.00", req.RequiredLevels)
	}

	approvals, _ := f.approvals.GetByRequestID(context.Background(), req.ID)
	if len(approvals) != 1 || approvals[0].Decision != entity.DecisionPending {
		t.Errorf("expected one pending level-1 approval, got %+v", approvals)
	}
}

func TestCreateRequest_SmallAmountNeedsOneLevel(t *testing.T) {
	f := newFixture()

	input := validInput()
	input.LineItems = []LineItemInput{{Description: "Cable", Quantity: 1, UnitPriceCents: 99900}}

	req, err := f.svc.CreateRequest(context.Background(), input)
	if err != nil {
		t.Fatalf("CreateRequest() failed: %v", err)
	}
	if req.RequiredLevels != 1 {
		t.Errorf("required_levels = %d, want 1 for 999.00", req.RequiredLevels)
	}
}

func TestCreateRequest_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateRequestInput)
	}{
		{"missing title", func(in *CreateRequestInput) { in.Title = "  " }},
		{"bad currency", func(in *CreateRequestInput) { in.Currency = "DOLLARS" }},
		{"no line items", func(in *CreateRequestInput) { in.LineItems = nil }},
		{"zero quantity", func(in *CreateRequestInput) { in.LineItems[0].Quantity = 0 }},
		{"negative price", func(in *CreateRequestInput) { in.LineItems[0].UnitPriceCents = -1 }},
		{"item without description", func(in *CreateRequestInput) { in.LineItems[0].Description = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			input := validInput()
			tt.mutate(&input)

			_, err := f.svc.CreateRequest(context.Background(), input)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("CreateRequest() error = %v, want ErrValidation", err)
			}
			if len(f.requests.stored) != 0 {
				t.Error("nothing should be persisted on validation failure")
			}
		})
	}
}

func createApproved(t *testing.T, f *fixture, levels int) *entity.PurchaseRequest {
	t.Helper()
	input := validInput()
	if levels == 1 {
		input.LineItems = []LineItemInput{{Description: "Cable", Quantity: 1, UnitPriceCents: 50000}}
	}
	req, err := f.svc.CreateRequest(context.Background(), input)
	if err != nil {
		t.Fatalf("CreateRequest() failed: %v", err)
	}
	return req
}

func TestDecide_ApproveAdvancesLevel(t *testing.T) {
	f := newFixture()
	req := createApproved(t, f, 2)

	updated, err := f.svc.Decide(context.Background(), req.ID, 1, entity.RoleApproverL1, "alice", "APPROVE", "ok", 0)
	if err != nil {
		t.Fatalf("Decide() failed: %v", err)
	}

	if updated.Status != entity.StatusPendingL2 {
		t.Errorf("status = %s, want %s", updated.Status, entity.StatusPendingL2)
	}
	if updated.CurrentLevel != 2 {
		t.Errorf("current_level = %d, want 2", updated.CurrentLevel)
	}
	if updated.Version != 1 {
		t.Errorf("version = %d, want 1", updated.Version)
	}

	// Level 1 recorded APPROVED, level 2 pending.
	l1, _ := f.approvals.GetByRequestAndLevel(context.Background(), req.ID, 1)
	if l1 == nil || l1.Decision != entity.DecisionApproved {
		t.Errorf("level 1 approval = %+v, want APPROVED", l1)
	}
	l2, _ := f.approvals.GetByRequestAndLevel(context.Background(), req.ID, 2)
	if l2 == nil || l2.Decision != entity.DecisionPending {
		t.Errorf("level 2 approval = %+v, want PENDING", l2)
	}
}

func TestDecide_FinalApprovalGeneratesPO(t *testing.T) {
	f := newFixture()
	req := createApproved(t, f, 2)

	if _, err := f.svc.Decide(context.Background(), req.ID, 1, entity.RoleApproverL1, "alice", "APPROVE", "", 0); err != nil {
		t.Fatalf("level 1 Decide() failed: %v", err)
	}
	updated, err := f.svc.Decide(context.Background(), req.ID, 2, entity.RoleApproverL2, "bob", "APPROVE", "", 1)
	if err != nil {
		t.Fatalf("level 2 Decide() failed: %v", err)
	}

	if updated.Status != entity.StatusPOGenerated {
		t.Errorf("status = %s, want %s", updated.Status, entity.StatusPOGenerated)
	}
	if updated.Version != 2 {
		t.Errorf("version = %d, want 2", updated.Version)
	}

	po, _ := f.orders.GetByRequestID(context.Background(), req.ID)
	if po == nil {
		t.Fatal("purchase order should exist after final approval")
	}
	if po.Snapshot.TotalCents != req.AmountCents {
		t.Errorf("po total = %d, want %d", po.Snapshot.TotalCents, req.AmountCents)
	}
}

func TestDecide_SingleLevelApprovalGeneratesPO(t *testing.T) {
	f := newFixture()
	req := createApproved(t, f, 1)

	updated, err := f.svc.Decide(context.Background(), req.ID, 1, entity.RoleApproverL1, "alice", "APPROVE", "", 0)
	if err != nil {
		t.Fatalf("Decide() failed: %v", err)
	}
	if updated.Status != entity.StatusPOGenerated {
		t.Errorf("status = %s, want %s", updated.Status, entity.StatusPOGenerated)
	}
}

func TestDecide_RejectIsTerminal(t *testing.T) {
	f := newFixture()
	req := createApproved(t, f, 2)

	updated, err := f.svc.Decide(context.Background(), req.ID, 1, entity.RoleApproverL1, "alice", "REJECT", "over budget", 0)
	if err != nil {
		t.Fatalf("Decide() failed: %v", err)
	}
	if updated.Status != entity.StatusRejected {
		t.Errorf("status = %s, want %s", updated.Status, entity.StatusRejected)
	}

	_, err = f.svc.Decide(context.Background(), req.ID, 1, entity.RoleApproverL1, "alice", "APPROVE", "", 1)
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("Decide() on rejected request error = %v, want ErrInvalidState", err)
	}
}

func TestDecide_WrongLevel(t *testing.T) {
	f := newFixture()
	req := createApproved(t, f, 2)

	_, err := f.svc.Decide(context.Background(), req.ID, 2, entity.RoleApproverL2, "bob", "APPROVE", "", 0)
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("Decide() error = %v, want ErrInvalidState", err)
	}
}

func TestDecide_WrongRole(t *testing.T) {
	f := newFixture()
	req := createApproved(t, f, 2)

	_, err := f.svc.Decide(context.Background(), req.ID, 1, entity.RoleApproverL2, "bob", "APPROVE", "", 0)
	if !errors.Is(err, ErrPermission) {
		t.Errorf("Decide() error = %v, want ErrPermission", err)
	}

	// The request must be unchanged.
	stored, _ := f.requests.GetByID(context.Background(), req.ID)
	if stored.Version != 0 || stored.Status != entity.StatusPendingL1 {
		t.Errorf("request mutated on permission failure: %+v", stored)
	}
}

func TestDecide_StaleVersion(t *testing.T) {
	f := newFixture()
	req := createApproved(t, f, 2)

	_, err := f.svc.Decide(context.Background(), req.ID, 1, entity.RoleApproverL1, "alice", "APPROVE", "", 7)
	if !errors.Is(err, ErrConflict) {
		t.Errorf("Decide() error = %v, want ErrConflict", err)
	}

	stored, _ := f.requests.GetByID(context.Background(), req.ID)
	if stored.Version != 0 {
		t.Errorf("version changed on conflict: %d", stored.Version)
	}
}

func TestDecide_UnknownRequest(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Decide(context.Background(), "missing", 1, entity.RoleApproverL1, "alice", "APPROVE", "", 0)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Decide() error = %v, want ErrNotFound", err)
	}
}

func TestDecide_InvalidDecisionValue(t *testing.T) {
	f := newFixture()
	req := createApproved(t, f, 2)

	_, err := f.svc.Decide(context.Background(), req.ID, 1, entity.RoleApproverL1, "alice", "MAYBE", "", 0)
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Decide() error = %v, want ErrValidation", err)
	}
}

// Two callers race on the same prior version: exactly one commits, the other
// deterministically receives ErrConflict.
func TestDecide_ConcurrentCallersOneWins(t *testing.T) {
	f := newFixture()
	req := createApproved(t, f, 2)

	var wg sync.WaitGroup
	results := make(chan error, 2)

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Decide(context.Background(), req.ID, 1, entity.RoleApproverL1, "alice", "APPROVE", "", 0)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, conflicts int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrConflict), errors.Is(err, ErrInvalidState):
			// The loser sees a conflict at the CAS, or an invalid state if it
			// re-read after the winner already advanced the level.
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	if successes != 1 || conflicts != 1 {
		t.Errorf("successes = %d, conflicts = %d; want exactly one of each", successes, conflicts)
	}

	stored, _ := f.requests.GetByID(context.Background(), req.ID)
	if stored.Version != 1 {
		t.Errorf("version = %d, want 1 after single committed transition", stored.Version)
	}
}
