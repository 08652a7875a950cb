package service

import (
	"fmt"
	"sort"

	"github.com/doxalabs/doxa/internal/domain"
	"github.com/doxalabs/doxa/internal/graph"
	"go.uber.org/zap"
)

// AutonomyService decides how much latitude the agent has before acting:
// per-belief levels, aggregate classification over a belief set, the
// invalidation gate, and context activation for prompt assembly.
type AutonomyService struct {
	logger *zap.Logger
}

func NewAutonomyService(logger *zap.Logger) *AutonomyService {
	return &AutonomyService{logger: logger}
}

// Level classifies a single belief in a context. Unknown and distrusted
// beliefs never rise above low.
func (s *AutonomyService) Level(g *graph.Graph, beliefID, contextKey string) domain.AutonomyLevel {
	b, ok := g.Get(beliefID)
	if !ok || b.IsDistrusted {
		return domain.AutonomyLow
	}
	return domain.ComputeAutonomy(s.resolveStrength(g, b, contextKey))
}

// Aggregate classifies a set of beliefs by their mean resolved strength.
// Beliefs that are missing, distrusted, or unresolved in the context all
// contribute UnresolvedStrength. An empty set yields (low, 0).
func (s *AutonomyService) Aggregate(g *graph.Graph, beliefIDs []string, contextKey string) (domain.AutonomyLevel, float64) {
	if len(beliefIDs) == 0 {
		return domain.AutonomyLow, 0
	}
	var sum float64
	for _, id := range beliefIDs {
		b, ok := g.Get(id)
		if !ok || b.IsDistrusted {
			sum += domain.UnresolvedStrength
			continue
		}
		sum += s.resolveStrength(g, b, contextKey)
	}
	mean := sum / float64(len(beliefIDs))
	return domain.ComputeAutonomy(mean), mean
}

// CheckInvalidation reports whether dropping the belief to proposed would
// cross the invalidation gate, without applying anything.
func (s *AutonomyService) CheckInvalidation(g *graph.Graph, beliefID string, proposed float64) (domain.InvalidationDecision, error) {
	b, ok := g.Get(beliefID)
	if !ok {
		return domain.InvalidationDecision{}, fmt.Errorf("%s: %w", beliefID, ErrBeliefNotFound)
	}
	return domain.CheckInvalidation(b, b.Strength, proposed), nil
}

// Activate returns the non-distrusted beliefs whose resolved strength in
// contextKey reaches minStrength, strongest first. A limit of zero or less
// means no cap.
func (s *AutonomyService) Activate(g *graph.Graph, contextKey string, minStrength float64, limit int) []domain.ActivatedBelief {
	activated := make([]domain.ActivatedBelief, 0)
	for _, b := range g.List() {
		if b.IsDistrusted {
			continue
		}
		strength := s.resolveStrength(g, b, contextKey)
		if strength < minStrength {
			continue
		}
		activated = append(activated, domain.ActivatedBelief{
			Belief:   b,
			Strength: strength,
			Level:    domain.ComputeAutonomy(strength),
		})
	}
	// List is id-sorted, so equal strengths keep ascending id order.
	sort.SliceStable(activated, func(i, j int) bool {
		return activated[i].Strength > activated[j].Strength
	})
	if limit > 0 && len(activated) > limit {
		activated = activated[:limit]
	}
	s.logger.Debug("context activation",
		zap.String("context_key", contextKey),
		zap.Int("activated", len(activated)))
	return activated
}

func (s *AutonomyService) resolveStrength(g *graph.Graph, b *domain.Belief, contextKey string) float64 {
	if state, ok := g.Resolve(b.ID, contextKey); ok {
		return state.Strength
	}
	return domain.UnresolvedStrength
}
