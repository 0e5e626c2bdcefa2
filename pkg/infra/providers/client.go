package providers

import (
	"context"
)

type Config struct {
	Credentials Credentials `json:"credentials"`
	Model       string      `json:"model"`
	MaxTokens   int         `json:"max_tokens,omitempty"`
	Temperature float64     `json:"temperature,omitempty"`
}

type Credentials struct {
	ApiKey string `json:"api_key"`
}

// Client is the single outbound surface to an LLM provider: one
// user-role message in, one string completion out. No multi-turn state,
// no tool calling.
type Client interface {
	Ask(ctx context.Context, config *Config, prompt string) (*CompletionResponse, error)
}
