package textgen

import (
	"bytes"
	"canvas-editor/config"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Placeholder is returned when neither the model nor the quote service
// could be reached.
const Placeholder = "Lorem ipsum dolor sit amet, consectetur adipiscing elit. Sed do eiusmod tempor incididunt ut labore et dolore magna aliqua. Ut enim ad minim veniam, quis nostrud exercitation ullamco laboris nisi ut aliquip ex ea commodo consequat."

// NoOutput is returned when the model answered without any text.
const NoOutput = "Generated text not available"

const maxTokens = 256

type Source string

const (
	SourceModel       Source = "model"
	SourceQuote       Source = "quote"
	SourcePlaceholder Source = "placeholder"
)

// Result always carries usable text. Notice is set when a fallback was used
// because something failed.
type Result struct {
	Text   string `json:"text"`
	Source Source `json:"source"`
	Notice string `json:"notice,omitempty"`
}

type Generator struct {
	cfg    config.TextGenConfig
	client *http.Client
}

func NewGenerator(cfg config.TextGenConfig, client *http.Client) *Generator {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Generator{cfg: cfg, client: client}
}

type statusError struct{ code int }

func (e statusError) Error() string { return fmt.Sprintf("unexpected status %d", e.code) }

// Generate asks the model for text. A rejected request falls back to a quote;
// an unreachable service falls back to Placeholder.
func (g *Generator) Generate(ctx context.Context, prompt string) Result {
	log := logrus.WithField("prompt_length", len(prompt))

	text, err := g.complete(ctx, prompt)
	if err == nil {
		if strings.TrimSpace(text) == "" {
			text = NoOutput
		}
		return Result{Text: text, Source: SourceModel}
	}

	var se statusError
	if !errors.As(err, &se) {
		log.WithError(err).Warn("Text generation failed")
		return Result{Text: Placeholder, Source: SourcePlaceholder, Notice: "Failed to generate text. Using fallback..."}
	}

	log.WithField("status", se.code).Info("Text generation rejected, using a quote")
	quote, err := g.quote(ctx)
	if err != nil {
		log.WithError(err).Warn("Quote fallback failed")
		return Result{Text: Placeholder, Source: SourcePlaceholder, Notice: "Failed to generate text. Using fallback..."}
	}
	return Result{Text: quote, Source: SourceQuote}
}

func (g *Generator) complete(ctx context.Context, prompt string) (string, error) {
	limit := maxTokens
	body, err := json.Marshal(ChatCompletionRequest{
		Model:     g.cfg.Model,
		Messages:  []ChatMessage{{Role: "user", Content: prompt}},
		MaxTokens: &limit,
	})
	if err != nil {
		return "", err
	}

	url := strings.TrimRight(g.cfg.BaseURL, "/") + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", statusError{code: resp.StatusCode}
	}

	var out ChatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding completion: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", nil
	}
	return out.Choices[0].Message.Content, nil
}

func (g *Generator) quote(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.QuoteURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", statusError{code: resp.StatusCode}
	}

	var q struct {
		Content string `json:"content"`
		Author  string `json:"author"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&q); err != nil {
		return "", fmt.Errorf("decoding quote: %w", err)
	}
	if q.Content == "" {
		return "", errors.New("quote has no content")
	}
	return fmt.Sprintf("\"%s\" - %s", q.Content, q.Author), nil
}
