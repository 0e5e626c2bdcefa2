package moderator

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/diagramforge/sentry/pkg/domain/moderation"
)

const defaultConfidence = 0.5

// rawResult mirrors the JSON contract with confidence left untyped, so
// that numeric strings and garbage values can be coerced defensively
// instead of failing the decode.
type rawResult struct {
	Decision   string      `json:"decision"`
	Confidence interface{} `json:"confidence"`
	Reason     string      `json:"reason"`
	Flags      []string    `json:"flags"`
}

// parseResponse turns the raw completion into a Result. The decision
// field is a closed enum: anything else is a parse error, never a
// silent coercion.
func parseResponse(raw string) (*moderation.Result, error) {
	cleaned := stripCodeFence(raw)

	var parsed rawResult
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	decision := moderation.Decision(parsed.Decision)
	if !decision.Valid() {
		return nil, fmt.Errorf("invalid decision value: %q", parsed.Decision)
	}

	flags := parsed.Flags
	if flags == nil {
		flags = []string{}
	}

	return &moderation.Result{
		Decision:   decision,
		Confidence: parseConfidence(parsed.Confidence),
		Reason:     parsed.Reason,
		Flags:      flags,
	}, nil
}

// stripCodeFence unwraps a ```json ... ``` (or bare ```) wrapper some
// models insist on adding.
func stripCodeFence(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// parseConfidence coerces whatever the model returned into [0, 1].
// Numbers and numeric strings are clamped; everything else falls back
// to 0.5.
func parseConfidence(v interface{}) float64 {
	switch c := v.(type) {
	case float64:
		return clampConfidence(c)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
		if err != nil {
			return defaultConfidence
		}
		return clampConfidence(parsed)
	default:
		return defaultConfidence
	}
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
