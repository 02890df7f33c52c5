package port

import (
	"context"

	"github.com/procure2pay/server/internal/domain/entity"
)

// DocumentExtractor is the external extraction capability. The core consumes
// this contract and never implements parsing itself; degraded results come
// back as confidence-0 metadata rather than errors.
type DocumentExtractor interface {
	Extract(ctx context.Context, data []byte, mimeType string) (*entity.ExtractedMetadata, error)
}

// ArtifactRenderer produces the binary rendering of a purchase order.
type ArtifactRenderer interface {
	Render(po *entity.PurchaseOrder) ([]byte, error)
}

// FileStorage defines file storage operations for uploads and artifacts
type FileStorage interface {
	Save(ctx context.Context, path string, content []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) bool
}
