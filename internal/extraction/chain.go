package extraction

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/procure2pay/server/internal/domain/entity"
)

// structuredExtractor is the AI stage of the chain; optional.
type structuredExtractor interface {
	ExtractFromText(ctx context.Context, text string) (*entity.ExtractedMetadata, error)
}

// ChainExtractor composes text reading, AI extraction and the regex fallback
// into the DocumentExtractor contract. Each stage degrades confidence instead
// of failing the caller; only operational faults (context deadline, cancelled
// call) surface as ErrExtraction.
type ChainExtractor struct {
	reader TextReader
	ai     structuredExtractor
	regex  *RegexExtractor
	logger *zap.Logger
}

// NewChainExtractor creates the extraction chain. ai may be nil when no API
// key is configured; the chain then goes straight to pattern matching.
func NewChainExtractor(reader TextReader, ai structuredExtractor, logger *zap.Logger) *ChainExtractor {
	return &ChainExtractor{
		reader: reader,
		ai:     ai,
		regex:  NewRegexExtractor(),
		logger: logger,
	}
}

// Extract implements Extractor.
func (c *ChainExtractor) Extract(ctx context.Context, data []byte, mimeType string) (*entity.ExtractedMetadata, error) {
	text, err := c.reader.Text(data, mimeType)
	if err != nil {
		c.logger.Warn("Text extraction produced no content", zap.Error(err))
		return Unreadable(), nil
	}
	if text == "" {
		return Unreadable(), nil
	}

	if c.ai != nil {
		meta, err := c.ai.ExtractFromText(ctx, text)
		if err == nil {
			return meta, nil
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return nil, err
		}
		c.logger.Warn("AI extraction failed, falling back to patterns", zap.Error(err))
	}

	return c.regex.ExtractFromText(text), nil
}

var _ Extractor = (*ChainExtractor)(nil)
