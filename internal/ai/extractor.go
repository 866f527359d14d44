// Package ai extracts structured coupon fields from free text through the
// Gemini API.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/couponmaster/couponbot/core/logger"
	"github.com/couponmaster/couponbot/internal/domain"
)

// Extraction is the structured result of analyzing free text.
type Extraction struct {
	Company     string
	Code        string
	Cost        float64
	Value       float64
	Expiration  *time.Time
	Description string
	Source      string
	OneTime     bool
}

// Empty reports whether the extraction carries nothing usable.
func (e *Extraction) Empty() bool {
	return e == nil || (e.Company == "" && e.Code == "" && e.Value == 0)
}

// Extractor calls Gemini with a bounded timeout per request.
type Extractor struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewExtractor builds the Gemini-backed extractor.
func NewExtractor(ctx context.Context, apiKey, model string, timeout time.Duration) (*Extractor, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("ai: api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("ai: client init: %w", err)
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Extractor{client: client, model: model, timeout: timeout}, nil
}

type extractionPayload struct {
	Company     string  `json:"company"`
	Code        string  `json:"code"`
	Cost        float64 `json:"cost"`
	Value       float64 `json:"value"`
	Expiration  string  `json:"expiration"`
	Description string  `json:"description"`
	Source      string  `json:"source"`
	OneTime     bool    `json:"one_time"`
}

// Extract analyzes text and returns the fields it mentions. A nil result
// with nil error means the model found nothing coupon-like. Known company
// names are passed as hints; a name that is not clearly one of them comes
// back verbatim for downstream disambiguation.
func (e *Extractor) Extract(ctx context.Context, text string, knownCompanies []string) (*Extraction, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	contents := []*genai.Content{
		genai.NewContentFromText(buildPrompt(text, knownCompanies), genai.RoleUser),
	}
	resp, err := e.client.Models.GenerateContent(ctx, e.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		logger.SVCAI.LogAttrs(ctx, slog.LevelError, "ai.extract.failed",
			slog.String("event", "ai.extract"),
			slog.String("status", "fail"),
			slog.Duration("duration", logger.Took(start)),
			slog.String("err", err.Error()),
		)
		return nil, &domain.ExternalServiceError{Service: "ai.extract", Err: err}
	}

	raw := strings.TrimSpace(resp.Text())
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var payload extractionPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		logger.SVCAI.LogAttrs(ctx, slog.LevelError, "ai.extract.bad_payload",
			slog.String("event", "ai.extract"),
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return nil, &domain.ExternalServiceError{Service: "ai.extract", Err: fmt.Errorf("decode response: %w", err)}
	}

	out := &Extraction{
		Company:     strings.TrimSpace(payload.Company),
		Code:        strings.TrimSpace(payload.Code),
		Cost:        payload.Cost,
		Value:       payload.Value,
		Description: strings.TrimSpace(payload.Description),
		Source:      strings.TrimSpace(payload.Source),
		OneTime:     payload.OneTime,
	}
	if exp := strings.TrimSpace(payload.Expiration); exp != "" && !strings.EqualFold(exp, "none") {
		if t, perr := time.Parse("2006-01-02", exp); perr == nil {
			out.Expiration = &t
		}
	}
	if out.Empty() {
		logger.SVCAI.LogAttrs(ctx, slog.LevelInfo, "ai.extract.empty",
			slog.String("event", "ai.extract"),
			slog.String("status", "skip"),
			slog.Duration("duration", logger.Took(start)),
		)
		return nil, nil
	}

	logger.SVCAI.LogAttrs(ctx, slog.LevelInfo, "ai.extract.ok",
		slog.String("event", "ai.extract"),
		slog.String("status", "ok"),
		slog.String("company", out.Company),
		slog.Duration("duration", logger.Took(start)),
	)
	return out, nil
}

func buildPrompt(text string, knownCompanies []string) string {
	var b strings.Builder
	b.WriteString("Extract coupon details from the user text below. Respond with a single JSON object, no prose:\n")
	b.WriteString(`{"company":"","code":"","cost":0,"value":0,"expiration":"YYYY-MM-DD or none","description":"","source":"","one_time":false}` + "\n")
	b.WriteString("Rules: cost is what was paid for the coupon, value is what it is worth. ")
	b.WriteString("Use an empty string or 0 for anything the text does not mention.\n")
	if len(knownCompanies) > 0 {
		b.WriteString("Known companies: ")
		b.WriteString(strings.Join(knownCompanies, ", "))
		b.WriteString(". If the company clearly matches one of them use that exact spelling, otherwise return the name exactly as written.\n")
	}
	b.WriteString("User text:\n")
	b.WriteString(text)
	return b.String()
}
