package purchaseorder

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/procure2pay/server/internal/domain/entity"
)

// FallbackVendor is used when no proforma extraction supplied a vendor name.
const FallbackVendor = "Unknown Vendor"

// Generator compiles an approved request into an immutable purchase order:
// a metadata snapshot plus a deterministic content hash. Regenerating from
// identical request content always yields the identical hash, which guards
// against duplicate PO creation on retried commits.
type Generator struct {
	logger *zap.Logger
}

// NewGenerator creates a new purchase order generator
func NewGenerator(logger *zap.Logger) *Generator {
	return &Generator{logger: logger}
}

// Generate builds the PO for an approved request. Vendor and currency come
// from the proforma extraction when present, otherwise from the request
// itself. Line items keep their insertion order.
func (g *Generator) Generate(req *entity.PurchaseRequest, items []*entity.LineItem, proforma *entity.ExtractedMetadata, generatedAt time.Time) (*entity.PurchaseOrder, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("request %s has no line items", req.ID)
	}

	snapshot := buildSnapshot(req, items, proforma)

	hash, err := contentHash(req.ID, snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to hash snapshot: %w", err)
	}

	po := &entity.PurchaseOrder{
		RequestID:   req.ID,
		PONumber:    poNumber(req.ID, hash),
		ContentHash: hash,
		Snapshot:    snapshot,
		GeneratedAt: generatedAt,
	}

	g.logger.Info("Purchase order generated",
		zap.String("request_id", req.ID),
		zap.String("po_number", po.PONumber),
		zap.String("content_hash", hash[:12]))

	return po, nil
}

func buildSnapshot(req *entity.PurchaseRequest, items []*entity.LineItem, proforma *entity.ExtractedMetadata) entity.POSnapshot {
	vendor := FallbackVendor
	currency := req.Currency
	total := req.AmountCents

	if proforma != nil {
		if proforma.Vendor != nil {
			vendor = *proforma.Vendor
		}
		if proforma.Currency != nil {
			currency = *proforma.Currency
		}
		if proforma.TotalCents != nil && *proforma.TotalCents > 0 {
			total = *proforma.TotalCents
		}
	}

	snapshot := entity.POSnapshot{
		Vendor:     vendor,
		Currency:   currency,
		TotalCents: total,
		Items:      make([]entity.POItem, 0, len(items)),
	}
	for _, li := range items {
		snapshot.Items = append(snapshot.Items, entity.POItem{
			Description:    li.Description,
			Quantity:       li.Quantity,
			UnitPriceCents: li.UnitPriceCents,
		})
	}
	return snapshot
}

// contentHash hashes the canonical JSON encoding of the snapshot together
// with the request id. Struct field order is fixed, so the encoding is stable
// for identical content.
func contentHash(requestID string, snapshot entity.POSnapshot) (string, error) {
	canonical, err := json.Marshal(snapshot)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(append([]byte(requestID+"|"), canonical...))
	return hex.EncodeToString(sum[:]), nil
}

// poNumber derives the display identifier from (request id, content hash),
// keeping it stable across regeneration.
func poNumber(requestID, hash string) string {
	short := requestID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("PO-%s-%s", short, hash[:12])
}
