package moderator

import (
	"strings"

	"github.com/diagramforge/sentry/pkg/domain/content"
	"github.com/diagramforge/sentry/pkg/domain/moderation"
)

const (
	overconfidentThreshold = 0.99
	minReasonLength        = 10
	parrotLength           = 21
)

// instruction-narration and override phrasings in the reason text are
// signatures of a moderator that followed injected commands instead of
// applying policy.
var instructionPhrases = []string{
	"as instructed",
	"following your instructions",
	"as requested",
	"per your instructions",
}

var overridePhrases = []string{
	"ignoring the previous",
	"ignoring the above",
	"ignoring the system",
	"overriding the instructions",
	"disregarding the",
}

// validateResult runs four independent heuristics over a structurally
// valid result and collects every suspicion reason. The moderator
// itself consumes untrusted text, so its output gets the same
// adversarial treatment as the input.
func validateResult(result *moderation.Result, c *content.Candidate) []string {
	var reasons []string

	if result.Decision == moderation.DecisionApprove &&
		result.Confidence >= overconfidentThreshold &&
		len(result.Reason) <= minReasonLength {
		reasons = append(reasons, "approval with near-certain confidence and minimal explanation")
	}

	if parrotsContent(result.Reason, c.Title) || parrotsContent(result.Reason, c.Summary) {
		reasons = append(reasons, "reason echoes submitted content verbatim")
	}

	reasonLower := strings.ToLower(result.Reason)
	for _, phrase := range instructionPhrases {
		if strings.Contains(reasonLower, phrase) {
			reasons = append(reasons, "reason narrates instruction following")
			break
		}
	}

	for _, phrase := range overridePhrases {
		if strings.Contains(reasonLower, phrase) {
			reasons = append(reasons, "reason contains override language")
			break
		}
	}

	return reasons
}

// parrotsContent reports whether reason contains a verbatim run of
// source longer than 20 characters.
func parrotsContent(reason, source string) bool {
	if len(source) < parrotLength || reason == "" {
		return false
	}
	for i := 0; i+parrotLength <= len(source); i++ {
		if strings.Contains(reason, source[i:i+parrotLength]) {
			return true
		}
	}
	return false
}
