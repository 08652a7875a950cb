package graph

import (
	"fmt"
	"strings"
	"time"

	"github.com/doxalabs/doxa/internal/domain"
)

// ContextLadder expands a key into its backoff sequence: the key itself,
// then trailing dimensions replaced right-to-left with the wildcard one at
// a time, ending at the all-wildcard key. "A|B|C" yields
// ["A|B|C", "A|B|*", "A|*|*", "*|*|*"].
func ContextLadder(key string) []string {
	segs := strings.Split(key, domain.ContextSeparator)
	ladder := []string{key}
	for i := len(segs) - 1; i >= 0; i-- {
		segs[i] = domain.ContextWildcard
		next := strings.Join(segs, domain.ContextSeparator)
		if next != ladder[len(ladder)-1] {
			ladder = append(ladder, next)
		}
	}
	return ladder
}

// Resolve finds the context state governing contextKey, walking the backoff
// ladder from most to least specific. A belief with no context states holds
// uniformly: its base strength is returned as a synthesized state that is
// not stored. A belief with states but no ladder match resolves to nothing.
func (g *Graph) Resolve(beliefID, contextKey string) (*domain.ContextState, bool) {
	b, ok := g.beliefs[beliefID]
	if !ok {
		return nil, false
	}
	if len(b.ContextStates) == 0 {
		return &domain.ContextState{
			Strength:    b.Strength,
			LastUpdated: b.UpdatedAt,
			LastOutcome: domain.OutcomeNone,
		}, true
	}
	for _, key := range ContextLadder(contextKey) {
		if state, ok := b.ContextStates[key]; ok {
			return state, true
		}
	}
	return nil, false
}

// GetOrCreateState materializes the exact contextKey for a belief, seeding
// it from whatever the ladder currently resolves to. When nothing resolves
// the new state starts at the default strength.
func (g *Graph) GetOrCreateState(beliefID, contextKey string) (*domain.ContextState, error) {
	b, ok := g.beliefs[beliefID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", beliefID, ErrBeliefNotFound)
	}
	if state, ok := b.ContextStates[contextKey]; ok {
		return state, nil
	}

	seed := domain.DefaultStrength
	if resolved, ok := g.Resolve(beliefID, contextKey); ok {
		seed = resolved.Strength
	}
	state := &domain.ContextState{
		Strength:    seed,
		LastUpdated: time.Now().UTC(),
		LastOutcome: domain.OutcomeNone,
	}
	b.ContextStates[contextKey] = state
	return state, nil
}
