// Package extraction turns a free-text expense message into a structured
// draft using the Gemini API through the google.golang.org/genai SDK.
package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/genai"

	"github.com/bahmanfallahi/jibjib/internal/model"
	"github.com/bahmanfallahi/jibjib/internal/money"
)

var (
	// ErrUnavailable covers transport failures, API errors and payloads
	// that cannot be decoded. The user is asked to try again.
	ErrUnavailable = errors.New("extraction service unavailable")
	// ErrInconclusive means the reply had no usable positive amount. The
	// user is asked to restate the expense.
	ErrInconclusive = errors.New("no amount found in message")
)

const (
	DefaultModel   = "gemini-1.5-flash"
	defaultTimeout = 15 * time.Second
)

// Extractor is what the bot needs from an extraction backend.
type Extractor interface {
	Extract(ctx context.Context, text string) (*model.ExpenseDraft, error)
}

// Options configures a Client. BaseURL and HTTPClient are optional; a nil
// HTTPClient gets a 15s timeout.
type Options struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// Client calls Gemini. It makes exactly one request per Extract; there are
// no retries.
type Client struct {
	genai *genai.Client
	model string
}

var _ Extractor = (*Client)(nil)

func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("extraction API key is required")
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      opts.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  opts.HTTPClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: opts.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Client{genai: client, model: opts.Model}, nil
}

// extracted is the JSON the prompt asks the model for. Amount is kept raw
// because models answer with either a number or a string.
type extracted struct {
	Amount   json.RawMessage `json:"amount"`
	Category string          `json:"category"`
	Note     string          `json:"note"`
}

func buildPrompt(text string) string {
	names := make([]string, len(model.Categories))
	for i, c := range model.Categories {
		names[i] = string(c)
	}
	return fmt.Sprintf(
		`Extract from %q into JSON: {"amount": number, "category": "string", "note": "string"}. `+
			`Categories: %s. Example: "۳۲۰۰۰ قهوه" -> {"amount": 32000, "category": "غذا", "note": "قهوه"}. Only JSON.`,
		text, strings.Join(names, ", "))
}

// Extract asks the model for {amount, category, note}. Unknown categories
// become "other".
func (c *Client) Extract(ctx context.Context, text string) (*model.ExpenseDraft, error) {
	reply, err := c.generate(ctx, buildPrompt(text))
	if err != nil {
		return nil, err
	}
	return parseReply(reply)
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.genai.Models.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("%w: empty candidates", ErrUnavailable)
	}

	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p == nil || p.Thought {
			continue
		}
		sb.WriteString(p.Text)
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: empty reply", ErrUnavailable)
	}
	return sb.String(), nil
}

// parseReply decodes the model's text. JSON mode normally returns bare JSON,
// but markdown code fences are still tolerated.
func parseReply(reply string) (*model.ExpenseDraft, error) {
	clean := strings.TrimSpace(reply)
	clean = strings.ReplaceAll(clean, "```json", "")
	clean = strings.ReplaceAll(clean, "```", "")
	clean = strings.TrimSpace(clean)

	var e extracted
	if err := json.Unmarshal([]byte(clean), &e); err != nil {
		return nil, fmt.Errorf("%w: reply is not JSON: %v", ErrUnavailable, err)
	}

	amount, ok := parseAmount(e.Amount)
	if !ok {
		return nil, ErrInconclusive
	}
	return &model.ExpenseDraft{
		Amount:   amount,
		Category: model.NormalizeCategory(e.Category),
		Note:     strings.TrimSpace(e.Note),
	}, nil
}

func parseAmount(raw json.RawMessage) (decimal.Decimal, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Zero, false
	}

	var (
		amount decimal.Decimal
		err    error
	)
	if raw[0] == '"' {
		var s string
		if err = json.Unmarshal(raw, &s); err == nil {
			amount, err = money.Parse(s)
		}
	} else {
		amount, err = decimal.NewFromString(string(raw))
	}
	if err != nil || !amount.IsPositive() {
		return decimal.Zero, false
	}
	return amount, true
}
