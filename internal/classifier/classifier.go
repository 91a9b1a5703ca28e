// Package classifier asks a generative model whether a text message
// describes an emergency.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.0-flash"

var ErrNotConfigured = errors.New("classifier not configured")

// Generator produces a free-text completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Classifier struct {
	gen    Generator
	logger *slog.Logger
}

// New returns a Classifier. A nil generator makes every call fail with ErrNotConfigured.
func New(gen Generator, logger *slog.Logger) *Classifier {
	return &Classifier{gen: gen, logger: logger.With("component", "classifier")}
}

// Prompt builds the fixed yes/no question sent to the model.
func Prompt(text string) string {
	return fmt.Sprintf("Is this message an emergency? Reply only with true or false:\n\"%s\"", text)
}

// IsAffirmative reports whether a model reply contains "true", ignoring case.
func IsAffirmative(reply string) bool {
	return strings.Contains(strings.ToLower(reply), "true")
}

// IsEmergency classifies text. Upstream failures are returned as errors and
// never as a negative verdict.
func (c *Classifier) IsEmergency(ctx context.Context, text string) (bool, error) {
	if c.gen == nil {
		return false, ErrNotConfigured
	}
	reply, err := c.gen.Generate(ctx, Prompt(text))
	if err != nil {
		return false, fmt.Errorf("generate verdict: %w", err)
	}
	verdict := IsAffirmative(reply)
	c.logger.Debug("classified message", "reply", strings.TrimSpace(reply), "emergency", verdict)
	return verdict, nil
}

// GeminiGenerator calls the Gemini API through the genai SDK.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}
