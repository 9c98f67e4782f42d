// Package llm provides the chat-completion collaborator used by the editor.
// Providers are intentionally thin: one blocking call, text in, text out.
// All protocol interpretation of the response happens in the schema layer.
package llm

import (
	"context"
	"errors"
	"strings"
)

var ErrMissingAPIKey = errors.New("missing api key")

// Provider kinds understood by NewClient.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderMock      = "mock"
)

const defaultMaxOutputTokens = 8192

type Message struct {
	Role    string `json:"role"` // "system" | "user" | "assistant"
	Content string `json:"content"`
}

type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int64     `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
}

// ChatResult mirrors the collaborator contract: either Content is set and
// Success is true, or Error describes a provider-side failure. Transport
// errors come back as Go errors instead.
type ChatResult struct {
	Success bool   `json:"success"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

type Client interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResult, error)
}

// ClientOptions configures NewClient.
type ClientOptions struct {
	Provider string
	APIKey   string
	BaseURL  string
}

func NewClient(opts ClientOptions) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Provider)) {
	case ProviderAnthropic:
		if strings.TrimSpace(opts.APIKey) == "" {
			return nil, ErrMissingAPIKey
		}
		return newAnthropicClient(opts.APIKey, opts.BaseURL), nil
	case ProviderOpenAI:
		if strings.TrimSpace(opts.APIKey) == "" {
			return nil, ErrMissingAPIKey
		}
		return newOpenAIClient(opts.APIKey, opts.BaseURL), nil
	case ProviderMock:
		return NewMockClient(), nil
	default:
		return nil, errors.New("unknown provider " + opts.Provider)
	}
}

// collectSystem joins system messages into one prompt and returns the rest.
func collectSystem(messages []Message) (string, []Message) {
	var system []string
	rest := make([]Message, 0, len(messages))
	for _, m := range messages {
		if strings.EqualFold(strings.TrimSpace(m.Role), "system") {
			if s := strings.TrimSpace(m.Content); s != "" {
				system = append(system, s)
			}
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}
