// Package anthropic is a completion provider backed by the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/Strob0t/CodeAssist/internal/resilience"
)

const defaultMaxTokens = 4096

// ErrNoText is returned when the response carries no text blocks.
var ErrNoText = errors.New("anthropic response has no text content")

// Config configures a Client.
type Config struct {
	APIKey    string
	Model     string
	System    string
	MaxTokens int
	BaseURL   string // optional override, used by tests and gateways
}

// Client implements completion.Completer.
type Client struct {
	inner     anthropic.Client
	model     anthropic.Model
	system    string
	maxTokens int64
	breaker   *resilience.Breaker
}

// New creates a client. The SDK's own retries are disabled; the circuit
// breaker is the only retry policy.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: api key is required")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := anthropic.Model(cfg.Model)
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_20250514
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &Client{
		inner:     anthropic.NewClient(opts...),
		model:     model,
		system:    cfg.System,
		maxTokens: int64(maxTokens),
	}, nil
}

// SetBreaker attaches a circuit breaker to all outgoing calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return string(c.model)
}

// Complete sends prompt as a single user turn and concatenates the text blocks
// of the reply.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if c.system != "" {
		params.System = []anthropic.TextBlockParam{{Text: c.system}}
	}

	var out string
	call := func() error {
		resp, err := c.inner.Messages.New(ctx, params)
		if err != nil {
			return fmt.Errorf("anthropic messages: %w", err)
		}
		var b strings.Builder
		for _, block := range resp.Content {
			if v, ok := block.AsAny().(anthropic.TextBlock); ok {
				b.WriteString(v.Text)
			}
		}
		if b.Len() == 0 {
			return ErrNoText
		}
		out = b.String()
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
