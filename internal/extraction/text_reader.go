package extraction

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

// FitzTextReader extracts page text from PDF bytes using mupdf. Plain-text
// uploads are decoded directly.
type FitzTextReader struct {
	logger *zap.Logger
}

// NewFitzTextReader creates a new PDF text reader
func NewFitzTextReader(logger *zap.Logger) *FitzTextReader {
	return &FitzTextReader{logger: logger}
}

// Text returns the concatenated page text of the document. A document that
// cannot be opened or decoded returns empty text, not an error: callers treat
// that as a degraded-data result.
func (r *FitzTextReader) Text(data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", nil
	}

	switch {
	case mimeType == "application/pdf" || hasPDFHeader(data):
		return r.pdfText(data)
	case strings.HasPrefix(mimeType, "text/"), utf8.Valid(data):
		return string(data), nil
	default:
		r.logger.Warn("Unsupported document type for text extraction",
			zap.String("mime_type", mimeType))
		return "", nil
	}
}

func (r *FitzTextReader) pdfText(data []byte) (string, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		r.logger.Error("Failed to open PDF", zap.Error(err))
		// Some uploads are plain text with a misleading mime type.
		if utf8.Valid(data) {
			return string(data), nil
		}
		return "", nil
	}
	defer doc.Close()

	var chunks []string
	for page := 0; page < doc.NumPage(); page++ {
		text, err := doc.Text(page)
		if err != nil {
			r.logger.Warn("Failed to extract page text",
				zap.Int("page", page),
				zap.Error(err))
			continue
		}
		chunks = append(chunks, text)
	}

	if len(chunks) == 0 {
		return "", fmt.Errorf("no text extracted from %d pages", doc.NumPage())
	}

	return strings.Join(chunks, "\n"), nil
}

func hasPDFHeader(data []byte) bool {
	return len(data) >= 5 && string(data[:5]) == "%PDF-"
}
