package receipt

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"

	"welth/internal/core"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
	DefaultModel   = "gemini-1.5-flash"

	scanTimeout       = 60 * time.Second
	defaultConcurrent = 3
)

const prompt = `Analyze this receipt image and extract the following in JSON:
{
  "amount": number,
  "date": "ISO string",
  "description": "string",
  "merchantName": "string",
  "category": "string"
}
If not a receipt, return {}.`

// OpenAIScanner reads receipts through any OpenAI-compatible chat completion
// endpoint that accepts image input.
type OpenAIScanner struct {
	client *openai.Client
	model  string
	sem    chan struct{}
}

type Options struct {
	APIKey  string
	BaseURL string
	Model   string
	// MaxConcurrent bounds in-flight model calls.
	MaxConcurrent int
}

func NewOpenAIScanner(opts Options) *OpenAIScanner {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = defaultConcurrent
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	cfg.BaseURL = strings.TrimSuffix(opts.BaseURL, "/")
	return &OpenAIScanner{
		client: openai.NewClientWithConfig(cfg),
		model:  opts.Model,
		sem:    make(chan struct{}, opts.MaxConcurrent),
	}
}

func (s *OpenAIScanner) Scan(ctx context.Context, image []byte, mimeType string) (*ScannedReceipt, error) {
	if len(image) == 0 {
		return nil, ErrEmptyImage
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	ctx, cancel := context.WithTimeout(ctx, scanTimeout)
	defer cancel()

	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: prompt},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURL}},
			},
		}},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		slog.ErrorContext(ctx, "Receipt model call failed", "model", s.model, "error", err)
		return nil, fmt.Errorf("%w: %v", core.ErrReceiptUnreadable, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: model returned no choices", core.ErrReceiptUnreadable)
	}

	receipt, err := parseReceipt(resp.Choices[0].Message.Content)
	if err != nil {
		slog.WarnContext(ctx, "Receipt model output unusable", "model", s.model, "error", err)
		return nil, err
	}
	return receipt, nil
}

var fenceRe = regexp.MustCompile("```(?:json)?\\n?")

// parseReceipt decodes the model's reply. A reply that is not a JSON object,
// or is the empty object, means the image was not a readable receipt.
func parseReceipt(content string) (*ScannedReceipt, error) {
	cleaned := strings.TrimSpace(fenceRe.ReplaceAllString(content, ""))

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrReceiptUnreadable, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: not a receipt", core.ErrReceiptUnreadable)
	}

	return &ScannedReceipt{
		Amount:       parseAmount(fields["amount"]),
		Date:         parseDate(fields["date"]),
		Description:  stringField(fields["description"]),
		MerchantName: stringField(fields["merchantName"]),
		Category:     stringField(fields["category"]),
	}, nil
}

func stringField(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// parseAmount accepts a JSON number or a numeric string.
func parseAmount(raw json.RawMessage) decimal.Decimal {
	text := strings.TrimSpace(string(raw))
	if s := stringField(raw); s != "" {
		text = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero
	}
	return d.Abs().Round(core.MoneyScale)
}

func parseDate(raw json.RawMessage) time.Time {
	s := stringField(raw)
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
