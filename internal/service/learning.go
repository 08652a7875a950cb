package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doxalabs/doxa/internal/domain"
	"github.com/doxalabs/doxa/internal/graph"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrBeliefNotFound    = errors.New("belief not found")
	ErrInvalidOutcome    = errors.New("invalid outcome")
	ErrInvalidContextKey = errors.New("invalid context key")
)

const (
	// ChallengeDifficulty rates an explicit dispute as a maximally hard
	// signal; combined with end-memory weighting it roughly halves a
	// mid-strength belief over repeated challenges.
	ChallengeDifficulty = 5
)

// LearningService applies action outcomes to belief strengths: one EMA step
// on the governing context state, mirrored to the belief, cascaded through
// the support graph, and recorded as an immutable event.
type LearningService struct {
	eventStore domain.EventStore
	logger     *zap.Logger
}

func NewLearningService(logger *zap.Logger) *LearningService {
	return &LearningService{logger: logger}
}

// SetEventStore wires the audit sink. Without one, events are still
// returned to callers but not persisted.
func (s *LearningService) SetEventStore(store domain.EventStore) {
	s.eventStore = store
}

// Update applies one outcome to one belief in one context. The caller holds
// the tenant's graph for the duration.
//
// A large downward revision on a strongly held belief is not applied:
// the result carries the blocking decision and the graph is untouched.
func (s *LearningService) Update(ctx context.Context, g *graph.Graph, req domain.UpdateRequest) (*domain.UpdateResult, error) {
	if !domain.ValidOutcome(string(req.Outcome)) {
		return nil, fmt.Errorf("%q: %w", req.Outcome, ErrInvalidOutcome)
	}
	if !domain.ValidContextKey(req.ContextKey) {
		return nil, fmt.Errorf("%q: %w", req.ContextKey, ErrInvalidContextKey)
	}
	if req.Difficulty == 0 {
		req.Difficulty = domain.DefaultDifficulty
	}

	b, ok := g.Get(req.BeliefID)
	if !ok {
		return nil, fmt.Errorf("%s: %w", req.BeliefID, ErrBeliefNotFound)
	}

	state, err := g.GetOrCreateState(req.BeliefID, req.ContextKey)
	if err != nil {
		return nil, err
	}

	signal := req.Outcome.Signal()
	catMult := domain.GetCategoryMultiplier(b.Category, signal)
	peakMult := 1.0
	if req.IsEndMemory || req.EmotionalIntensity >= domain.PeakIntensityThreshold {
		peakMult = domain.PeakEndMultiplier
	}
	diffMult := domain.GetDifficultyMultiplier(req.Difficulty)

	delta := signal * catMult * peakMult * diffMult * domain.LearningRate
	oldStrength := state.Strength
	newStrength := clampStrength(oldStrength + delta)

	if decision := domain.CheckInvalidation(b, oldStrength, newStrength); !decision.Allowed {
		s.logger.Info("strength update held for confirmation",
			zap.String("belief_id", b.ID),
			zap.String("context_key", req.ContextKey),
			zap.Float64("current", decision.Current),
			zap.Float64("proposed", decision.Proposed))
		return &domain.UpdateResult{Invalidation: &decision}, nil
	}

	now := time.Now().UTC()
	state.Strength = newStrength
	state.LastUpdated = now
	state.LastOutcome = req.Outcome
	switch {
	case signal > 0:
		state.SuccessCount++
		b.SuccessCount++
	case signal < 0:
		state.FailureCount++
		b.FailureCount++
	}

	if req.EmotionalIntensity > b.PeakIntensity {
		b.PeakIntensity = req.EmotionalIntensity
	}
	if req.IsEndMemory {
		b.EndMemoryInfluenced = true
	}

	if b.Category == domain.CategoryMoral && signal < 0 {
		b.MoralViolationCount++
		if b.MoralViolationCount >= domain.MoralViolationLimit && !b.IsDistrusted {
			b.IsDistrusted = true
			s.logger.Warn("moral circuit breaker tripped",
				zap.String("belief_id", b.ID),
				zap.Int("violations", b.MoralViolationCount))
		}
	}

	// The belief mirrors its most recently updated context, and the change
	// propagates through outgoing support edges from there.
	var affected []string
	if newStrength != oldStrength {
		oldTop := b.Strength
		b.Strength = newStrength
		b.UpdatedAt = now
		affected = g.Cascade(b.ID, oldTop, newStrength, nil)
	}

	event := &domain.StrengthUpdateEvent{
		ID:                   uuid.New(),
		TenantID:             g.TenantID,
		BeliefID:             b.ID,
		ContextKey:           req.ContextKey,
		Outcome:              req.Outcome,
		Signal:               signal,
		OldStrength:          oldStrength,
		NewStrength:          newStrength,
		Delta:                delta,
		CategoryMultiplier:   catMult,
		PeakEndMultiplier:    peakMult,
		DifficultyMultiplier: diffMult,
		LearningRate:         domain.LearningRate,
		CascadedCount:        len(affected),
		CreatedAt:            now,
	}
	if s.eventStore != nil {
		if err := s.eventStore.Create(ctx, event); err != nil {
			s.logger.Warn("failed to persist strength update event",
				zap.String("belief_id", b.ID),
				zap.Error(err))
		}
	}

	s.logger.Debug("belief strength updated",
		zap.String("belief_id", b.ID),
		zap.String("context_key", req.ContextKey),
		zap.String("outcome", string(req.Outcome)),
		zap.Float64("old_strength", oldStrength),
		zap.Float64("new_strength", newStrength),
		zap.Int("cascaded", len(affected)))

	return &domain.UpdateResult{Event: event, Affected: affected}, nil
}

// Challenge disputes a belief: the proposed target is half its current
// strength, gated by the same invalidation check as any other revision.
// When the gate passes, the dispute lands as a hard correction in the
// belief's default context and the belief is flagged disputed.
func (s *LearningService) Challenge(ctx context.Context, g *graph.Graph, beliefID string) (*domain.UpdateResult, error) {
	b, ok := g.Get(beliefID)
	if !ok {
		return nil, fmt.Errorf("%s: %w", beliefID, ErrBeliefNotFound)
	}

	proposed := b.Strength / 2
	if decision := domain.CheckInvalidation(b, b.Strength, proposed); !decision.Allowed {
		s.logger.Info("challenge held for confirmation",
			zap.String("belief_id", b.ID),
			zap.Float64("current", decision.Current))
		return &domain.UpdateResult{Invalidation: &decision}, nil
	}

	contextKey := b.DefaultContext
	if contextKey == "" {
		contextKey = domain.ContextWildcard
	}

	res, err := s.Update(ctx, g, domain.UpdateRequest{
		BeliefID:    beliefID,
		ContextKey:  contextKey,
		Outcome:     domain.OutcomeCorrection,
		Difficulty:  ChallengeDifficulty,
		IsEndMemory: true,
	})
	if err != nil {
		return nil, err
	}
	if !res.Blocked() {
		b.IsDisputed = true
	}
	return res, nil
}

func clampStrength(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
