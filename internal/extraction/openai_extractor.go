package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/procure2pay/server/internal/domain/entity"
)

// OpenAIExtractor extracts structured document metadata from text using a
// JSON-mode chat completion.
type OpenAIExtractor struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	logger      *zap.Logger
}

// NewOpenAIExtractor creates a new AI-backed extractor. timeout bounds each
// completion call so a stuck upstream cannot block a receipt submission.
func NewOpenAIExtractor(apiKey, model string, temperature float32, maxTokens int, timeout time.Duration, logger *zap.Logger) *OpenAIExtractor {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIExtractor{
		client:      openai.NewClient(apiKey),
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		timeout:     timeout,
		logger:      logger,
	}
}

// aiResult mirrors the JSON shape the model is instructed to return.
type aiResult struct {
	Vendor      string  `json:"vendor"`
	Currency    string  `json:"currency"`
	TotalAmount float64 `json:"total_amount"`
	Date        string  `json:"date"`
	Confidence  float64 `json:"confidence"`
}

// ExtractFromText asks the model for vendor, currency, total amount, date and
// a self-reported confidence. API failures are wrapped as ErrExtraction.
func (e *OpenAIExtractor) ExtractFromText(ctx context.Context, text string) (*entity.ExtractedMetadata, error) {
	if strings.TrimSpace(text) == "" {
		return Unreadable(), nil
	}

	// Keep the prompt within token limits.
	if len(text) > 4000 {
		text = text[:4000]
	}

	prompt := fmt.Sprintf(`Extract the following from this procurement document: vendor name, currency (3-letter code), total amount (number), document date (YYYY-MM-DD), and your confidence in the extraction (0.0-1.0).
Respond as JSON: {"vendor": "string", "currency": "string", "total_amount": number, "date": "string", "confidence": number}
Use empty string or 0 for fields that are not present.

Document text:
%s`, text)

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model:       e.model,
		Temperature: e.temperature,
		MaxTokens:   e.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are an expert at extracting structured data from procurement documents. Respond only with valid JSON.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		e.logger.Error("OpenAI extraction call failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty completion response", ErrExtraction)
	}

	var result aiResult
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &result); err != nil {
		e.logger.Error("Failed to parse extraction result",
			zap.Error(err),
			zap.String("content", resp.Choices[0].Message.Content))
		return nil, fmt.Errorf("%w: malformed completion: %v", ErrExtraction, err)
	}

	return result.toMetadata(), nil
}

func (r *aiResult) toMetadata() *entity.ExtractedMetadata {
	meta := &entity.ExtractedMetadata{}

	if vendor := strings.TrimSpace(r.Vendor); vendor != "" {
		meta.Vendor = &vendor
	}
	if currency := strings.ToUpper(strings.TrimSpace(r.Currency)); len(currency) == 3 {
		meta.Currency = &currency
	}
	if r.TotalAmount > 0 {
		cents := FloatToCents(r.TotalAmount)
		meta.TotalCents = &cents
	}
	if r.Date != "" {
		if date, err := time.Parse("2006-01-02", r.Date); err == nil {
			meta.Date = &date
		}
	}

	if meta.IsEmpty() {
		return Unreadable()
	}

	meta.Confidence = r.Confidence
	if meta.Confidence <= 0 || meta.Confidence > 1 {
		meta.Confidence = 0.85
	}
	return meta
}
