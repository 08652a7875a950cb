package domain

import (
	"time"

	"github.com/google/uuid"
)

// UpdateRequest carries one action outcome into the learning pipeline.
type UpdateRequest struct {
	BeliefID           string  `json:"belief_id"`
	ContextKey         string  `json:"context_key"`
	Outcome            Outcome `json:"outcome"`
	Difficulty         int     `json:"difficulty,omitempty"`
	IsEndMemory        bool    `json:"is_end_memory,omitempty"`
	EmotionalIntensity float64 `json:"emotional_intensity,omitempty"`
}

// StrengthUpdateEvent is the immutable audit record of one applied update.
// Every input to the delta is captured so the update can be replayed or
// explained after the fact.
type StrengthUpdateEvent struct {
	ID         uuid.UUID `json:"id"`
	TenantID   uuid.UUID `json:"tenant_id"`
	BeliefID   string    `json:"belief_id"`
	ContextKey string    `json:"context_key"`
	Outcome    Outcome   `json:"outcome"`
	Signal     float64   `json:"signal"`

	OldStrength float64 `json:"old_strength"`
	NewStrength float64 `json:"new_strength"`
	Delta       float64 `json:"delta"`

	CategoryMultiplier   float64 `json:"category_multiplier"`
	PeakEndMultiplier    float64 `json:"peak_end_multiplier"`
	DifficultyMultiplier float64 `json:"difficulty_multiplier"`
	LearningRate         float64 `json:"learning_rate"`

	CascadedCount int       `json:"cascaded_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// UpdateResult is what an update attempt produced. Exactly one of Event or
// Invalidation is set: a blocked invalidation check means no mutation
// happened and the decision explains why.
type UpdateResult struct {
	Event        *StrengthUpdateEvent  `json:"event,omitempty"`
	Invalidation *InvalidationDecision `json:"invalidation,omitempty"`
	Affected     []string              `json:"affected,omitempty"`
}

// Blocked reports whether the update was held for human confirmation.
func (r *UpdateResult) Blocked() bool {
	return r != nil && r.Invalidation != nil && !r.Invalidation.Allowed
}
