package service

import (
	"time"

	"github.com/openadmit/admissions-api/internal/models"
)

// PriorityHint biases the computed score for leads staff want surfaced.
type PriorityHint string

// Known priority hints.
const (
	HintNone    PriorityHint = "NONE"
	HintHigh    PriorityHint = "HIGH"
	HintSibling PriorityHint = "SIBLING"
)

// Priority labels derived from the stored score. "Sibling" is a historical
// label name for the middle band; it does not test sibling status.
const (
	LabelHigh     = "High"
	LabelSibling  = "Sibling"
	LabelStandard = "Standard"
)

// ScoreInputs carries every signal the scorer reads. The scorer is pure and
// performs no I/O.
type ScoreInputs struct {
	BaseScore      *int
	Hint           PriorityHint
	AvailableSpots int
	Status         models.WaitlistStatus
	NextFollowUp   *time.Time
	Now            time.Time
}

// ComputePriorityScore applies the additive scoring formula and clamps the
// result to [0, 100]. defaultBase is used when the lead carries no score.
func ComputePriorityScore(in ScoreInputs, defaultBase int) int {
	score := defaultBase
	if in.BaseScore != nil {
		score = *in.BaseScore
	}

	switch in.Hint {
	case HintHigh:
		score += 20
	case HintSibling:
		score += 10
	}

	if in.AvailableSpots > 0 && in.Status == models.WaitlistStatusWaitlisted {
		score += 10
	}

	if in.NextFollowUp != nil && in.NextFollowUp.Before(in.Now) {
		score += 5
	}

	return clampScore(score)
}

// PriorityLabel buckets a stored score into its display label.
func PriorityLabel(score int) string {
	switch {
	case score >= 80:
		return LabelHigh
	case score >= 50:
		return LabelSibling
	default:
		return LabelStandard
	}
}

// ToUIScore converts a stored 0-100 score to the 1-10 staff-facing scale.
func ToUIScore(score int) int {
	return (clampScore(score) + 5) / 10
}

// FromUIScore converts the 1-10 staff-facing scale back to storage scale.
// Round-trips exactly for stored scores that are multiples of 10.
func FromUIScore(ui int) int {
	return clampScore(ui * 10)
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
