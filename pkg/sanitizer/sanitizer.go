// Package sanitizer strips HTML and URLs from free-text fields before
// any other component sees them. It is deterministic and does not call
// out to anything.
package sanitizer

import (
	"regexp"

	"github.com/sirupsen/logrus"
)

const urlPlaceholder = "[link removed]"

var (
	// script/style elements are removed pair-wise, inner text included.
	// A generic tag stripper that keeps the inner text would leak the
	// payload downstream, so these run first.
	scriptPattern = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)
	stylePattern  = regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style\s*>`)
	tagPattern    = regexp.MustCompile(`<[^>]*>`)
	urlPattern    = regexp.MustCompile(`https?://[^\s"']+`)
)

type Config struct {
	Enabled   bool `mapstructure:"enabled"`
	StripURLs bool `mapstructure:"strip_urls"`
}

func DefaultConfig() Config {
	return Config{Enabled: true, StripURLs: true}
}

type Sanitizer struct {
	logger *logrus.Logger
	cfg    Config
}

func New(logger *logrus.Logger, cfg Config) *Sanitizer {
	return &Sanitizer{logger: logger, cfg: cfg}
}

// StripHTML removes script and style elements with their contents, then
// any remaining tags. Disabled sanitizers pass text through unchanged.
func (s *Sanitizer) StripHTML(text string) string {
	if !s.cfg.Enabled || text == "" {
		return text
	}
	text = scriptPattern.ReplaceAllString(text, "")
	text = stylePattern.ReplaceAllString(text, "")
	return tagPattern.ReplaceAllString(text, "")
}

// StripURLs replaces every http(s) token with a fixed placeholder and
// returns the removed URLs for telemetry. The placeholder never
// re-matches, so the operation is idempotent.
func (s *Sanitizer) StripURLs(text string) (string, []string) {
	if !s.cfg.Enabled || !s.cfg.StripURLs || text == "" {
		return text, nil
	}
	removed := urlPattern.FindAllString(text, -1)
	if len(removed) == 0 {
		return text, nil
	}
	stripped := urlPattern.ReplaceAllString(text, urlPlaceholder)
	s.logger.WithFields(logrus.Fields{
		"removed_urls": len(removed),
	}).Debug("stripped urls from text")
	return stripped, removed
}

// SanitizeText composes StripHTML and StripURLs. With strip_urls off it
// degrades to HTML stripping only.
func (s *Sanitizer) SanitizeText(text string) string {
	if !s.cfg.Enabled || text == "" {
		return text
	}
	text = s.StripHTML(text)
	text, _ = s.StripURLs(text)
	return text
}
