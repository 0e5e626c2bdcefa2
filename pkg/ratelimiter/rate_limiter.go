// Package ratelimiter bounds how often a user or IP may submit content
// or moderation requests. It is a yes/no gate independent of the
// decision pipeline; a denial is an outcome, not an error.
package ratelimiter

import (
	"context"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
)

type Operation string

const (
	OperationContentCreation      Operation = "content_creation"
	OperationContentCreationDaily Operation = "content_creation_daily"
	OperationIPSubmission         Operation = "ip_submission"
	OperationModerationSubmission Operation = "moderation_submission"
)

type Scope string

const (
	ScopeUser Scope = "user"
	ScopeIP   Scope = "ip"
)

// Window is one limit over one duration. Durations use
// time.ParseDuration syntax in config ("60s", "24h").
type Window struct {
	Limit  int    `mapstructure:"limit"`
	Window string `mapstructure:"window"`
}

type Config struct {
	ContentCreation      Window `mapstructure:"content_creation"`
	ContentCreationDaily Window `mapstructure:"content_creation_daily"`
	IPSubmission         Window `mapstructure:"ip_submission"`
	ModerationSubmission Window `mapstructure:"moderation_submission"`
}

func DefaultConfig() Config {
	return Config{
		ContentCreation:      Window{Limit: 10, Window: "60s"},
		ContentCreationDaily: Window{Limit: 100, Window: "24h"},
		IPSubmission:         Window{Limit: 5, Window: "60s"},
		ModerationSubmission: Window{Limit: 5, Window: "60s"},
	}
}

// ParseConfig decodes a settings map (e.g. the rate_limits section of
// the yaml config) over the defaults.
func ParseConfig(settings map[string]interface{}) (Config, error) {
	cfg := DefaultConfig()
	if len(settings) == 0 {
		return cfg, nil
	}
	if err := mapstructure.Decode(settings, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode rate limit settings: %w", err)
	}
	return cfg, nil
}

type limit struct {
	operation Operation
	scope     Scope
	window    time.Duration
	count     int
}

// Decision is the outcome of a gate check.
type Decision struct {
	Allowed    bool
	Operation  Operation
	Remaining  int
	RetryAfter time.Duration
}

// Quota is the non-consuming view for UI display.
type Quota struct {
	Remaining      int `json:"remaining"`
	RemainingDaily int `json:"remaining_daily"`
}

type RateLimiter struct {
	store  CounterStore
	logger *logrus.Logger

	contentShort limit
	contentDaily limit
	ipShort      limit
	moderation   limit
}

func New(store CounterStore, logger *logrus.Logger, cfg Config) (*RateLimiter, error) {
	contentShort, err := parseLimit(OperationContentCreation, ScopeUser, cfg.ContentCreation)
	if err != nil {
		return nil, err
	}
	contentDaily, err := parseLimit(OperationContentCreationDaily, ScopeUser, cfg.ContentCreationDaily)
	if err != nil {
		return nil, err
	}
	ipShort, err := parseLimit(OperationIPSubmission, ScopeIP, cfg.IPSubmission)
	if err != nil {
		return nil, err
	}
	moderation, err := parseLimit(OperationModerationSubmission, ScopeUser, cfg.ModerationSubmission)
	if err != nil {
		return nil, err
	}
	return &RateLimiter{
		store:        store,
		logger:       logger,
		contentShort: contentShort,
		contentDaily: contentDaily,
		ipShort:      ipShort,
		moderation:   moderation,
	}, nil
}

func parseLimit(op Operation, scope Scope, w Window) (limit, error) {
	if w.Limit <= 0 {
		return limit{}, fmt.Errorf("rate limit for %s requires a positive limit", op)
	}
	window, err := time.ParseDuration(w.Window)
	if err != nil {
		return limit{}, fmt.Errorf("invalid window for %s: %w", op, err)
	}
	return limit{operation: op, scope: scope, window: window, count: w.Limit}, nil
}

func counterKey(l limit, identifier string) string {
	return fmt.Sprintf("ratelimit:%s:%s:%s", l.operation, l.scope, identifier)
}

// CheckContentCreation enforces the short and the daily window for the
// same user; both must allow.
func (r *RateLimiter) CheckContentCreation(ctx context.Context, userID string) (Decision, error) {
	d, err := r.check(ctx, r.contentShort, userID)
	if err != nil || !d.Allowed {
		return d, err
	}
	return r.check(ctx, r.contentDaily, userID)
}

// CheckIPLimit gates unauthenticated submitters. IP limiting is coarse,
// so the window is deliberately tight.
func (r *RateLimiter) CheckIPLimit(ctx context.Context, ip string) (Decision, error) {
	return r.check(ctx, r.ipShort, ip)
}

// CheckModerationSubmission stops rapid edit-resubmit loops probing the
// moderator for a payload that slips through.
func (r *RateLimiter) CheckModerationSubmission(ctx context.Context, userID string) (Decision, error) {
	return r.check(ctx, r.moderation, userID)
}

// GetRemainingQuota exposes the content-creation counters without
// consuming a slot.
func (r *RateLimiter) GetRemainingQuota(ctx context.Context, userID string) (Quota, error) {
	short, err := r.store.Count(ctx, counterKey(r.contentShort, userID), r.contentShort.window)
	if err != nil {
		return Quota{}, err
	}
	daily, err := r.store.Count(ctx, counterKey(r.contentDaily, userID), r.contentDaily.window)
	if err != nil {
		return Quota{}, err
	}
	return Quota{
		Remaining:      remaining(r.contentShort.count, short),
		RemainingDaily: remaining(r.contentDaily.count, daily),
	}, nil
}

func remaining(limit int, used int64) int {
	left := limit - int(used)
	if left < 0 {
		return 0
	}
	return left
}

func (r *RateLimiter) check(ctx context.Context, l limit, identifier string) (Decision, error) {
	allowed, left, err := r.store.Hit(ctx, counterKey(l, identifier), l.window, l.count)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit check failed for %s: %w", l.operation, err)
	}
	if !allowed {
		r.logger.WithFields(logrus.Fields{
			"operation":  l.operation,
			"scope":      l.scope,
			"identifier": identifier,
			"limit":      l.count,
			"window":     l.window.String(),
		}).Warn("rate limit exceeded")
	}
	return Decision{
		Allowed:    allowed,
		Operation:  l.operation,
		Remaining:  left,
		RetryAfter: l.window,
	}, nil
}
