package factory

import (
	"fmt"

	"github.com/diagramforge/sentry/pkg/infra/providers"
	"github.com/diagramforge/sentry/pkg/infra/providers/anthropic"
	"github.com/diagramforge/sentry/pkg/infra/providers/openai"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

type ProviderLocator interface {
	Get(name string) (providers.Client, error)
}

type providerLocator struct {
	clients map[string]providers.Client
}

func NewProviderLocator() ProviderLocator {
	return &providerLocator{
		clients: map[string]providers.Client{
			ProviderOpenAI:    openai.NewOpenaiClient(),
			ProviderAnthropic: anthropic.NewAnthropicClient(),
		},
	}
}

func (l *providerLocator) Get(name string) (providers.Client, error) {
	client, ok := l.clients[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
	return client, nil
}
