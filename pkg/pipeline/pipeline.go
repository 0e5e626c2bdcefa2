// Package pipeline wires the safety stages together: sanitize, detect,
// rate-limit, moderate, persist. Stages run strictly in sequence for a
// single content item; different items may run concurrently with no
// interaction.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/diagramforge/sentry/pkg/detector"
	"github.com/diagramforge/sentry/pkg/domain/content"
	"github.com/diagramforge/sentry/pkg/domain/moderation"
	"github.com/diagramforge/sentry/pkg/infra/metrics"
	"github.com/diagramforge/sentry/pkg/moderator"
	"github.com/diagramforge/sentry/pkg/ratelimiter"
	"github.com/diagramforge/sentry/pkg/sanitizer"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const defaultCallTimeout = 30 * time.Second

// Submission is one candidate plus the identity of whoever submitted
// it. UserID empty means unauthenticated; the IP gate applies instead.
type Submission struct {
	Content *content.Candidate
	UserID  string
	IP      string
}

// Outcome distinguishes a decision from a rate-limit denial. Provider
// and parse failures are returned as errors, never as outcomes: on
// error the content stays unmoderated.
type Outcome struct {
	Result      *moderation.Result
	Entry       *moderation.LogEntry
	RateLimited bool
	RetryAfter  time.Duration
}

type Config struct {
	// CallTimeout bounds the LLM call. A timeout is a provider error,
	// not a decision.
	CallTimeout time.Duration
}

type Pipeline struct {
	sanitizer *sanitizer.Sanitizer
	detector  *detector.Detector
	limiter   *ratelimiter.RateLimiter
	moderator *moderator.Moderator
	recorder  moderation.Recorder
	metrics   *metrics.Metrics
	logger    *logrus.Logger
	timeout   time.Duration
}

func New(
	s *sanitizer.Sanitizer,
	d *detector.Detector,
	l *ratelimiter.RateLimiter,
	m *moderator.Moderator,
	recorder moderation.Recorder,
	mx *metrics.Metrics,
	logger *logrus.Logger,
	cfg Config,
) *Pipeline {
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &Pipeline{
		sanitizer: s,
		detector:  d,
		limiter:   l,
		moderator: m,
		recorder:  recorder,
		metrics:   mx,
		logger:    logger,
		timeout:   timeout,
	}
}

// Submit runs the full pipeline on one candidate and persists the
// decision. The returned Outcome carries the effective result and the
// audit entry that was written.
func (p *Pipeline) Submit(ctx context.Context, sub Submission) (*Outcome, error) {
	if sub.Content == nil {
		return nil, fmt.Errorf("submission content is required")
	}

	candidate := p.sanitize(sub.Content)

	// The detector runs before the gate so every scan is logged and
	// counted, but the gate decides first: a submission that trips the
	// detector still spends a slot, otherwise an attacker could iterate
	// injection payloads without ever being throttled.
	scan := p.detector.ScanContent(candidate)

	if outcome, denied, err := p.applyRateLimit(ctx, sub); denied || err != nil {
		return outcome, err
	}

	if outcome, done, err := p.applyDetectorPolicy(ctx, candidate, scan); done {
		return outcome, err
	}

	// The provider call finishes even if the submitter hangs up:
	// abandoning it mid-flight could strand content between "moderation
	// requested" and "decision recorded". The explicit deadline is the
	// only cancellation that applies.
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	result, err := p.moderator.Moderate(callCtx, candidate)
	if err != nil {
		if p.metrics != nil {
			p.metrics.ProviderFailures.Inc()
		}
		return nil, err
	}

	if result.HasFlag(moderation.FlagSuspiciousOutput) && p.metrics != nil {
		p.metrics.SuspiciousOutput.Inc()
	}

	return p.record(callCtx, candidate, result)
}

// AdminReview applies a human decision. Unlike AI transitions it may
// also reverse a previous approve/reject; every reversal appends its
// own log entry.
func (p *Pipeline) AdminReview(
	ctx context.Context,
	contentID uuid.UUID,
	adminID uuid.UUID,
	approve bool,
	reason string,
	previous content.Status,
) (*moderation.LogEntry, error) {
	action := moderation.ActionAdminReject
	next := content.StatusRejected
	if approve {
		action = moderation.ActionAdminApprove
		next = content.StatusApproved
	}

	entry, err := moderation.NewAdminEntry(contentID, adminID, action, previous, next, reason)
	if err != nil {
		return nil, err
	}
	if err := p.recorder.RecordDecision(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (p *Pipeline) sanitize(c *content.Candidate) *content.Candidate {
	sanitized := *c
	sanitized.Title = p.sanitizer.SanitizeText(c.Title)
	sanitized.Summary = p.sanitizer.SanitizeText(c.Summary)
	sanitized.SourceText = p.sanitizer.SanitizeText(c.SourceText)
	return &sanitized
}

// applyDetectorPolicy applies the configured policy to a completed
// scan. reject and flag_for_review short-circuit without spending an
// LLM call; log_only lets the submission continue.
func (p *Pipeline) applyDetectorPolicy(ctx context.Context, c *content.Candidate, scan detector.Result) (*Outcome, bool, error) {
	if !scan.Suspicious {
		return nil, false, nil
	}

	reason := fmt.Sprintf("Prompt injection patterns detected: %v", scan.Reasons)

	switch p.detector.Policy() {
	case detector.PolicyLogOnly:
		return nil, false, nil
	case detector.PolicyReject:
		result := &moderation.Result{
			Decision:   moderation.DecisionReject,
			Confidence: 1.0,
			Reason:     reason,
			Flags:      scan.Categories,
		}
		outcome, err := p.record(ctx, c, result)
		return outcome, true, err
	default: // flag_for_review
		result := &moderation.Result{
			Decision:   moderation.DecisionManualReview,
			Confidence: 1.0,
			Reason:     reason,
			Flags:      scan.Categories,
		}
		outcome, err := p.record(ctx, c, result)
		return outcome, true, err
	}
}

func (p *Pipeline) applyRateLimit(ctx context.Context, sub Submission) (*Outcome, bool, error) {
	var decision ratelimiter.Decision
	var err error
	if sub.UserID != "" {
		decision, err = p.limiter.CheckModerationSubmission(ctx, sub.UserID)
	} else {
		decision, err = p.limiter.CheckIPLimit(ctx, sub.IP)
	}
	if err != nil {
		return nil, false, err
	}
	if decision.Allowed {
		return nil, false, nil
	}

	if p.metrics != nil {
		p.metrics.RateLimitDenials.WithLabelValues(string(decision.Operation)).Inc()
	}
	return &Outcome{
		RateLimited: true,
		RetryAfter:  decision.RetryAfter,
	}, true, nil
}

func (p *Pipeline) record(ctx context.Context, c *content.Candidate, result *moderation.Result) (*Outcome, error) {
	action, next := transitionFor(result.Decision)

	entry, err := moderation.NewAIEntry(
		c.ID,
		action,
		content.StatusPending,
		next,
		result.Reason,
		result.Confidence,
		result.Flags,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build log entry: %w", err)
	}

	if err := p.recorder.RecordDecision(ctx, entry); err != nil {
		return nil, err
	}

	if p.metrics != nil {
		p.metrics.Decisions.WithLabelValues(string(result.Decision)).Inc()
	}

	return &Outcome{Result: result, Entry: entry}, nil
}

func transitionFor(d moderation.Decision) (moderation.Action, content.Status) {
	switch d {
	case moderation.DecisionApprove:
		return moderation.ActionAIApprove, content.StatusApproved
	case moderation.DecisionReject:
		return moderation.ActionAIReject, content.StatusRejected
	default:
		return moderation.ActionAIManualReview, content.StatusManualReview
	}
}
