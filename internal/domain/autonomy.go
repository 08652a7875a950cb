package domain

import "fmt"

type AutonomyLevel string

const (
	AutonomyLow    AutonomyLevel = "low"
	AutonomyMedium AutonomyLevel = "medium"
	AutonomyHigh   AutonomyLevel = "high"
)

const (
	AutonomyMediumThreshold = 0.4
	AutonomyHighThreshold   = 0.7

	// UnresolvedStrength stands in for beliefs that resolve to nothing
	// when aggregating across several of them.
	UnresolvedStrength = 0.3
)

// ComputeAutonomy classifies a resolved strength. Both boundaries are
// inclusive upward: exactly 0.7 is high, exactly 0.4 is medium.
func ComputeAutonomy(strength float64) AutonomyLevel {
	switch {
	case strength >= AutonomyHighThreshold:
		return AutonomyHigh
	case strength >= AutonomyMediumThreshold:
		return AutonomyMedium
	default:
		return AutonomyLow
	}
}

type AutonomyBehavior struct {
	Level                AutonomyLevel
	RequiresConfirmation bool
	FlagForReview        bool
}

var AutonomyBehaviors = map[AutonomyLevel]AutonomyBehavior{
	AutonomyLow: {
		Level:                AutonomyLow,
		RequiresConfirmation: true,
		FlagForReview:        true,
	},
	AutonomyMedium: {
		Level:                AutonomyMedium,
		RequiresConfirmation: false,
		FlagForReview:        true,
	},
	AutonomyHigh: {
		Level:                AutonomyHigh,
		RequiresConfirmation: false,
		FlagForReview:        false,
	},
}

func GetAutonomyBehavior(l AutonomyLevel) AutonomyBehavior {
	if b, ok := AutonomyBehaviors[l]; ok {
		return b
	}
	return AutonomyBehaviors[AutonomyLow]
}

func ValidAutonomyLevel(l string) bool {
	switch AutonomyLevel(l) {
	case AutonomyLow, AutonomyMedium, AutonomyHigh:
		return true
	}
	return false
}

const (
	// InvalidationDropThreshold: revisions smaller than this never need review.
	InvalidationDropThreshold = 0.1

	// MoralViolationLimit: moral failures at or beyond this count mark the
	// belief distrusted permanently.
	MoralViolationLimit = 2
)

// InvalidationThresholds: a belief held at or above its category threshold
// cannot take a large downward revision without human confirmation.
var InvalidationThresholds = map[Category]float64{
	CategoryMoral:      0.95,
	CategoryCompetence: 0.75,
	CategoryTechnical:  0.70,
	CategoryPreference: 0.60,
	CategoryIdentity:   1.0,
}

// GetInvalidationThreshold honors a per-belief override when one is set.
func GetInvalidationThreshold(b *Belief) float64 {
	if b.InvalidationThreshold > 0 {
		return b.InvalidationThreshold
	}
	if t, ok := InvalidationThresholds[b.Category]; ok {
		return t
	}
	return 1.0
}

// InvalidationDecision is the outcome of checking a proposed downward
// revision. A blocked decision means nothing was mutated.
type InvalidationDecision struct {
	BeliefID  string  `json:"belief_id"`
	Allowed   bool    `json:"allowed"`
	Current   float64 `json:"current_strength"`
	Proposed  float64 `json:"proposed_strength"`
	Threshold float64 `json:"threshold"`
	Reason    string  `json:"reason,omitempty"`
}

// CheckInvalidation decides whether moving a belief from current to proposed
// may happen unattended. Small drops and any upward move always pass; a drop
// of at least InvalidationDropThreshold on a belief held at or above its
// threshold is blocked for human confirmation.
func CheckInvalidation(b *Belief, current, proposed float64) InvalidationDecision {
	d := InvalidationDecision{
		BeliefID:  b.ID,
		Allowed:   true,
		Current:   current,
		Proposed:  proposed,
		Threshold: GetInvalidationThreshold(b),
	}
	drop := current - proposed
	if drop < InvalidationDropThreshold {
		return d
	}
	if current >= d.Threshold {
		d.Allowed = false
		d.Reason = fmt.Sprintf(
			"%s belief held at %.2f would drop by %.2f; revisions this large require human confirmation",
			b.Category, current, drop)
	}
	return d
}

// ActivatedBelief is one entry in a ranked activation result.
type ActivatedBelief struct {
	Belief   *Belief       `json:"belief"`
	Strength float64       `json:"strength"`
	Level    AutonomyLevel `json:"autonomy"`
}
