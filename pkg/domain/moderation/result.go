package moderation

type Decision string

const (
	DecisionApprove      Decision = "approve"
	DecisionReject       Decision = "reject"
	DecisionManualReview Decision = "manual_review"
)

func (d Decision) Valid() bool {
	switch d {
	case DecisionApprove, DecisionReject, DecisionManualReview:
		return true
	}
	return false
}

// FlagSuspiciousOutput marks a result whose decision was forced to
// manual_review because the moderating model's own output looked
// manipulated.
const FlagSuspiciousOutput = "suspicious_output"

// Result is the value object the pipeline hands back to callers.
// Confidence is always clamped into [0, 1] no matter what the provider
// returned.
type Result struct {
	Decision   Decision `json:"decision"`
	Confidence float64  `json:"confidence"`
	Reason     string   `json:"reason"`
	Flags      []string `json:"flags"`
}

func (r *Result) HasFlag(flag string) bool {
	for _, f := range r.Flags {
		if f == flag {
			return true
		}
	}
	return false
}
