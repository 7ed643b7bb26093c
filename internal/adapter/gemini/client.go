// Package gemini is a completion provider backed by the Google Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/Strob0t/CodeAssist/internal/resilience"
)

const defaultModel = "gemini-2.5-flash"

// ErrNoText is returned when the response carries no text.
var ErrNoText = errors.New("gemini response has no text content")

// Config configures a Client.
type Config struct {
	APIKey      string
	Model       string
	System      string
	Temperature float64
	MaxTokens   int
	BaseURL     string // optional override, used by tests
}

// Client implements completion.Completer.
type Client struct {
	client  *genai.Client
	model   string
	config  *genai.GenerateContentConfig
	breaker *resilience.Breaker
}

// New creates a client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	gc, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	return &Client{
		client: gc,
		model:  model,
		config: buildConfig(cfg),
	}, nil
}

func buildConfig(cfg Config) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if cfg.MaxTokens > 0 {
		config.MaxOutputTokens = int32(cfg.MaxTokens) //nolint:gosec // bounded by config validation
	}
	if cfg.Temperature > 0 {
		temp := float32(cfg.Temperature)
		config.Temperature = &temp
	}
	if cfg.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: cfg.System}},
		}
	}
	return config
}

// SetBreaker attaches a circuit breaker to all outgoing calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Complete sends prompt as a single user turn and returns the reply text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	var out string
	call := func() error {
		resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), c.config)
		if err != nil {
			return fmt.Errorf("gemini generate: %w", err)
		}
		out = resp.Text()
		if out == "" {
			return ErrNoText
		}
		return nil
	}

	if c.breaker != nil {
		if err := c.breaker.Execute(call); err != nil {
			return "", err
		}
		return out, nil
	}
	if err := call(); err != nil {
		return "", err
	}
	return out, nil
}
