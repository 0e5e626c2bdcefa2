// Package moderator runs the LLM policy check on candidate content and
// validates the model's own output for signs it was manipulated. A
// successfully injected moderation response can never result in silent
// approval: any suspicion forces the decision to manual_review.
package moderator

import (
	"context"
	"errors"
	"fmt"

	"github.com/diagramforge/sentry/pkg/domain/content"
	"github.com/diagramforge/sentry/pkg/domain/moderation"
	"github.com/diagramforge/sentry/pkg/infra/httpx"
	"github.com/diagramforge/sentry/pkg/infra/providers"
	"github.com/diagramforge/sentry/pkg/infra/providers/factory"
	"github.com/sirupsen/logrus"
)

const (
	defaultAutoApproveThreshold = 0.8
	defaultMaxTokens            = 512
)

type Config struct {
	Enabled  bool   `mapstructure:"enabled"`
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
	ApiKey   string `mapstructure:"api_key"`
	// MaxTokens bounds the completion; the reply is a small JSON object.
	MaxTokens int `mapstructure:"max_tokens"`
	// AutoApproveThreshold is advisory metadata for callers wanting to
	// distinguish confident approvals from borderline ones. The
	// moderator never uses it to alter a decision.
	AutoApproveThreshold float64 `mapstructure:"auto_approve_threshold"`
}

func DefaultConfig() Config {
	return Config{
		Enabled:              true,
		Provider:             factory.ProviderOpenAI,
		MaxTokens:            defaultMaxTokens,
		AutoApproveThreshold: defaultAutoApproveThreshold,
	}
}

type Moderator struct {
	logger  *logrus.Logger
	locator factory.ProviderLocator
	breaker httpx.CircuitBreaker
	cfg     Config
}

func New(
	logger *logrus.Logger,
	locator factory.ProviderLocator,
	breaker httpx.CircuitBreaker,
	cfg Config,
) *Moderator {
	if cfg.AutoApproveThreshold <= 0 {
		cfg.AutoApproveThreshold = defaultAutoApproveThreshold
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	return &Moderator{
		logger:  logger,
		locator: locator,
		breaker: breaker,
		cfg:     cfg,
	}
}

// AutoApproveThreshold exposes the advisory threshold for callers.
func (m *Moderator) AutoApproveThreshold() float64 {
	return m.cfg.AutoApproveThreshold
}

// Moderate runs the policy check on the candidate. It returns either a
// Result or one of the typed errors (*ProviderError, *ParseError);
// errors are never a decision and must leave the content unmoderated.
func (m *Moderator) Moderate(ctx context.Context, c *content.Candidate) (*moderation.Result, error) {
	raw, err := m.callProvider(ctx, c)
	if err != nil {
		if errors.Is(err, ErrDisabled) {
			return &moderation.Result{
				Decision:   moderation.DecisionApprove,
				Confidence: 1.0,
				Reason:     "Moderation disabled",
				Flags:      []string{},
			}, nil
		}
		m.logger.WithFields(logrus.Fields{
			"content_id": c.ID,
		}).WithError(err).Error("moderation provider call failed")
		return nil, &ProviderError{ContentID: c.ID, Err: err}
	}

	result, err := parseResponse(raw)
	if err != nil {
		// raw payload stays in the server log only; the error handed
		// upstream must not echo it.
		m.logger.WithFields(logrus.Fields{
			"content_id":   c.ID,
			"raw_response": raw,
		}).WithError(err).Error("failed to parse moderation response")
		return nil, &ParseError{ContentID: c.ID, Err: err}
	}

	if suspicions := validateResult(result, c); len(suspicions) > 0 {
		m.logger.WithFields(logrus.Fields{
			"content_id":        c.ID,
			"original_decision": result.Decision,
			"suspicions":        suspicions,
		}).Warn("suspicious moderation output, forcing manual review")

		result.Decision = moderation.DecisionManualReview
		if !result.HasFlag(moderation.FlagSuspiciousOutput) {
			result.Flags = append(result.Flags, moderation.FlagSuspiciousOutput)
		}
	}

	return result, nil
}

func (m *Moderator) callProvider(ctx context.Context, c *content.Candidate) (string, error) {
	if !m.cfg.Enabled {
		return "", ErrDisabled
	}

	client, err := m.locator.Get(m.cfg.Provider)
	if err != nil {
		return "", err
	}

	prompt := buildPrompt(c)

	var resp *providers.CompletionResponse
	call := func() error {
		var askErr error
		resp, askErr = client.Ask(ctx, &providers.Config{
			Credentials: providers.Credentials{ApiKey: m.cfg.ApiKey},
			Model:       m.cfg.Model,
			MaxTokens:   m.cfg.MaxTokens,
		}, prompt)
		return askErr
	}

	if m.breaker != nil {
		err = m.breaker.Execute(call)
	} else {
		err = call()
	}
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", fmt.Errorf("provider returned nil response")
	}
	return resp.Response, nil
}
