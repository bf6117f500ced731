package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"FinanceCollector/internal/config"
	"FinanceCollector/internal/ports"
)

const defaultModel = "gemini-2.0-flash"

// GeminiClient implements ports.TextGenerator backed by the Gemini API.
type GeminiClient struct {
	client       *genai.Client
	model        string
	systemPrompt string
	temperature  float32
}

var _ ports.TextGenerator = (*GeminiClient)(nil)

// NewGeminiClient builds a client from configuration.
func NewGeminiClient(ctx context.Context, cfg config.GeminiConfig, httpClient *http.Client) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini client misconfigured: missing api key")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	return &GeminiClient{
		client:       client,
		model:        model,
		systemPrompt: strings.TrimSpace(cfg.SystemPrompt),
		temperature:  cfg.Temperature,
	}, nil
}

// Generate sends prompt and returns the model's text. Throttling errors keep
// their genai.APIError in the chain so callers can classify them.
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.temperature),
	}
	if c.systemPrompt != "" {
		genCfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: c.systemPrompt}},
		}
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), genCfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", fmt.Errorf("gemini returned an empty response")
	}
	return text, nil
}
