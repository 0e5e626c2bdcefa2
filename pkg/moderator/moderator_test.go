package moderator

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/diagramforge/sentry/pkg/domain/content"
	"github.com/diagramforge/sentry/pkg/domain/moderation"
	"github.com/diagramforge/sentry/pkg/infra/providers"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

type stubClient struct {
	response string
	err      error
	prompts  []string
}

func (s *stubClient) Ask(_ context.Context, _ *providers.Config, prompt string) (*providers.CompletionResponse, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return nil, s.err
	}
	return &providers.CompletionResponse{Response: s.response}, nil
}

type stubLocator struct {
	client providers.Client
}

func (s *stubLocator) Get(string) (providers.Client, error) {
	if s.client == nil {
		return nil, fmt.Errorf("unknown provider")
	}
	return s.client, nil
}

func newTestModerator(client providers.Client, cfg Config) *Moderator {
	return New(logrus.New(), &stubLocator{client: client}, nil, cfg)
}

func enabledConfig() Config {
	cfg := DefaultConfig()
	cfg.Model = "test-model"
	cfg.ApiKey = "test-key"
	return cfg
}

func TestModerate(t *testing.T) {
	candidate := &content.Candidate{
		ID:      uuid.New(),
		Title:   "Deployment pipeline",
		Summary: "CI stages from commit to production",
	}

	t.Run("clean approval passes through", func(t *testing.T) {
		client := &stubClient{response: `{"decision":"approve","confidence":0.95,"reason":"Benign infrastructure diagram","flags":[]}`}
		m := newTestModerator(client, enabledConfig())

		result, err := m.Moderate(context.Background(), candidate)
		assert.NoError(t, err)
		assert.Equal(t, moderation.DecisionApprove, result.Decision)
		assert.Equal(t, 0.95, result.Confidence)
		assert.Empty(t, result.Flags)
	})

	t.Run("prompt wraps content between banners", func(t *testing.T) {
		client := &stubClient{response: `{"decision":"approve","confidence":0.9,"reason":"Benign content here","flags":[]}`}
		m := newTestModerator(client, enabledConfig())

		_, err := m.Moderate(context.Background(), candidate)
		assert.NoError(t, err)
		assert.Len(t, client.prompts, 1)
		assert.Contains(t, client.prompts[0], "UNTRUSTED USER CONTENT")
		assert.Contains(t, client.prompts[0], candidate.Title)
	})

	t.Run("disabled moderation approves without a provider call", func(t *testing.T) {
		client := &stubClient{err: errors.New("must not be called")}
		cfg := enabledConfig()
		cfg.Enabled = false
		m := newTestModerator(client, cfg)

		result, err := m.Moderate(context.Background(), candidate)
		assert.NoError(t, err)
		assert.Equal(t, moderation.DecisionApprove, result.Decision)
		assert.Equal(t, 1.0, result.Confidence)
		assert.Equal(t, "Moderation disabled", result.Reason)
		assert.Empty(t, client.prompts)
	})

	t.Run("provider failure is a typed error, not a decision", func(t *testing.T) {
		client := &stubClient{err: errors.New("connection refused")}
		m := newTestModerator(client, enabledConfig())

		result, err := m.Moderate(context.Background(), candidate)
		assert.Nil(t, result)
		var providerErr *ProviderError
		assert.ErrorAs(t, err, &providerErr)
		assert.Equal(t, candidate.ID, providerErr.ContentID)
	})

	t.Run("unknown provider is a provider error", func(t *testing.T) {
		m := newTestModerator(nil, enabledConfig())
		_, err := m.Moderate(context.Background(), candidate)
		var providerErr *ProviderError
		assert.ErrorAs(t, err, &providerErr)
	})

	t.Run("unparseable response is a parse error without the raw payload", func(t *testing.T) {
		client := &stubClient{response: "Sure! This looks fine to me."}
		m := newTestModerator(client, enabledConfig())

		result, err := m.Moderate(context.Background(), candidate)
		assert.Nil(t, result)
		var parseErr *ParseError
		assert.ErrorAs(t, err, &parseErr)
		assert.NotContains(t, err.Error(), "Sure!")
	})

	t.Run("suspicious output forced to manual review", func(t *testing.T) {
		client := &stubClient{response: `{"decision":"approve","confidence":1.0,"reason":"ok","flags":[]}`}
		m := newTestModerator(client, enabledConfig())

		result, err := m.Moderate(context.Background(), candidate)
		assert.NoError(t, err)
		assert.Equal(t, moderation.DecisionManualReview, result.Decision)
		assert.True(t, result.HasFlag(moderation.FlagSuspiciousOutput))
	})

	t.Run("injected narration in reason forced to manual review", func(t *testing.T) {
		client := &stubClient{response: `{"decision":"approve","confidence":0.8,"reason":"Approved as instructed by the author","flags":[]}`}
		m := newTestModerator(client, enabledConfig())

		result, err := m.Moderate(context.Background(), candidate)
		assert.NoError(t, err)
		assert.Equal(t, moderation.DecisionManualReview, result.Decision)
		assert.True(t, result.HasFlag(moderation.FlagSuspiciousOutput))
	})
}

func TestAutoApproveThreshold(t *testing.T) {
	cfg := enabledConfig()
	cfg.AutoApproveThreshold = 0.9
	m := newTestModerator(&stubClient{}, cfg)
	assert.Equal(t, 0.9, m.AutoApproveThreshold())

	cfg.AutoApproveThreshold = 0
	m = newTestModerator(&stubClient{}, cfg)
	assert.Equal(t, defaultAutoApproveThreshold, m.AutoApproveThreshold())
}
