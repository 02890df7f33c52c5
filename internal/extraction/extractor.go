package extraction

import (
	"context"
	"errors"

	"github.com/procure2pay/server/internal/domain/entity"
)

// ErrExtraction marks operational extraction failures: timeouts, I/O errors,
// upstream API outages. An unparseable document is not an error; it yields a
// confidence-0 result instead.
var ErrExtraction = errors.New("document extraction failed")

// Extractor turns raw document bytes into structured metadata. Implementations
// must never panic across this boundary and must treat missing fields as nil,
// propagating reduced confidence rather than failing the caller.
type Extractor interface {
	Extract(ctx context.Context, data []byte, mimeType string) (*entity.ExtractedMetadata, error)
}

// TextReader pulls plain text out of a document so downstream extractors can
// work on it.
type TextReader interface {
	Text(data []byte, mimeType string) (string, error)
}

// Unreadable returns the degraded result for a document that produced no
// usable text: every field nil, confidence zero.
func Unreadable() *entity.ExtractedMetadata {
	return &entity.ExtractedMetadata{Confidence: 0}
}
