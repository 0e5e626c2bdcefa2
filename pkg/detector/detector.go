// Package detector pattern-matches sanitized text for known
// prompt-injection phrasings. It only produces a signal; what to do
// with a suspicious submission is the caller's policy.
package detector

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/diagramforge/sentry/pkg/domain/content"
	"github.com/diagramforge/sentry/pkg/infra/metrics"
	"github.com/sirupsen/logrus"
)

type Policy string

const (
	PolicyFlagForReview Policy = "flag_for_review"
	PolicyReject        Policy = "reject"
	PolicyLogOnly       Policy = "log_only"
)

func (p Policy) Valid() bool {
	switch p {
	case PolicyFlagForReview, PolicyReject, PolicyLogOnly:
		return true
	}
	return false
}

type Category string

const (
	CategoryInstructionOverride Category = "instruction_override"
	CategoryOutputManipulation  Category = "output_manipulation"
	CategoryRoleManipulation    Category = "role_manipulation"
	CategoryExtraction          Category = "extraction"
)

// categoryReasons maps a category to the reason string reported to the
// caller. Reasons are de-duplicated per category, not per pattern.
var categoryReasons = map[Category]string{
	CategoryInstructionOverride: "instruction override attempt",
	CategoryOutputManipulation:  "output manipulation attempt",
	CategoryRoleManipulation:    "role manipulation attempt",
	CategoryExtraction:          "prompt extraction attempt",
}

type rule struct {
	pattern  *regexp.Regexp
	category Category
}

// injectionRules is data, not control flow: adding a category or a
// phrasing is a table change.
var injectionRules = []rule{
	{regexp.MustCompile(`(?i)ignore\s+(all\s+)?previous\s+instructions`), CategoryInstructionOverride},
	{regexp.MustCompile(`(?i)disregard\s+the\s+above`), CategoryInstructionOverride},
	{regexp.MustCompile(`(?i)forget\s+(all\s+)?your\s+instructions`), CategoryInstructionOverride},
	{regexp.MustCompile(`(?i)new\s+instructions?\s*:`), CategoryInstructionOverride},

	{regexp.MustCompile(`(?i)output\s+json`), CategoryOutputManipulation},
	{regexp.MustCompile(`(?i)respond\s+with\s*\{`), CategoryOutputManipulation},
	{regexp.MustCompile(`(?i)\{\s*"decision"\s*:\s*"approve"`), CategoryOutputManipulation},

	{regexp.MustCompile(`(?i)\byou\s+are\s+now\s+an?\b`), CategoryRoleManipulation},
	{regexp.MustCompile(`(?i)\bact\s+as\b`), CategoryRoleManipulation},
	{regexp.MustCompile(`(?i)\bpretend\s+to\s+be\b`), CategoryRoleManipulation},
	{regexp.MustCompile(`(?i)\bfrom\s+now\s+on\s+you\b`), CategoryRoleManipulation},

	{regexp.MustCompile(`(?i)reveal\s+your\s+prompt`), CategoryExtraction},
	{regexp.MustCompile(`(?i)show\s+your\s+system\s+instructions`), CategoryExtraction},
	{regexp.MustCompile(`(?i)what\s+are\s+your\s+instructions`), CategoryExtraction},
}

const previewLength = 100

type Config struct {
	Enabled bool   `mapstructure:"enabled"`
	Policy  Policy `mapstructure:"policy"`
}

func DefaultConfig() Config {
	return Config{Enabled: true, Policy: PolicyFlagForReview}
}

// Result carries the human-readable reasons plus the bare category
// labels, suitable as flag tags on a decision.
type Result struct {
	Suspicious bool     `json:"suspicious"`
	Reasons    []string `json:"reasons,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

type Detector struct {
	logger  *logrus.Logger
	metrics *metrics.Metrics
	cfg     Config
}

func New(logger *logrus.Logger, m *metrics.Metrics, cfg Config) *Detector {
	if !cfg.Policy.Valid() {
		cfg.Policy = PolicyFlagForReview
	}
	return &Detector{logger: logger, metrics: m, cfg: cfg}
}

func (d *Detector) Policy() Policy {
	return d.cfg.Policy
}

func (d *Detector) Enabled() bool {
	return d.cfg.Enabled
}

// Scan matches the text against every rule and collects one reason per
// tripped category. A clean text trips nothing.
func (d *Detector) Scan(text string) Result {
	if !d.cfg.Enabled || text == "" {
		return Result{}
	}

	seen := make(map[Category]bool)
	var reasons []string
	var categories []string
	for _, r := range injectionRules {
		if seen[r.category] {
			continue
		}
		if r.pattern.MatchString(text) {
			seen[r.category] = true
			reasons = append(reasons, categoryReasons[r.category])
			categories = append(categories, string(r.category))
			if d.metrics != nil {
				d.metrics.DetectorHits.WithLabelValues(string(r.category)).Inc()
			}
		}
	}

	if len(reasons) == 0 {
		return Result{}
	}

	d.logger.WithFields(logrus.Fields{
		"reasons": reasons,
		"preview": preview(text),
	}).Warn("possible prompt injection detected")

	return Result{Suspicious: true, Reasons: reasons, Categories: categories}
}

// ScanContent runs Scan independently over title, summary and source.
// The aggregate is suspicious if any field is, with reasons annotated
// by field. A clean verdict requires every field clean.
func (d *Detector) ScanContent(c *content.Candidate) Result {
	if !d.cfg.Enabled || c == nil {
		return Result{}
	}

	fields := []struct {
		name string
		text string
	}{
		{"title", c.Title},
		{"summary", c.Summary},
		{"source_text", c.SourceText},
	}

	var reasons []string
	var categories []string
	seen := make(map[string]bool)
	for _, f := range fields {
		res := d.Scan(f.text)
		for _, reason := range res.Reasons {
			reasons = append(reasons, fmt.Sprintf("%s (in %s)", reason, f.name))
		}
		for _, category := range res.Categories {
			if !seen[category] {
				seen[category] = true
				categories = append(categories, category)
			}
		}
	}

	if len(reasons) == 0 {
		return Result{}
	}
	return Result{Suspicious: true, Reasons: reasons, Categories: categories}
}

// preview truncates on a rune boundary so a multi-byte character split
// at the cutoff never puts invalid UTF-8 into the log.
func preview(text string) string {
	if len(text) <= previewLength {
		return text
	}
	cut := previewLength
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
