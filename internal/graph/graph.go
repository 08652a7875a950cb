// Package graph holds one tenant's belief graph in memory: the belief
// records, the weighted support edges between them, and the algorithms that
// read and propagate strength. A Graph is not safe for concurrent use; the
// manager in internal/service serializes access per tenant.
package graph

import (
	"errors"
	"fmt"
	"sort"

	"github.com/doxalabs/doxa/internal/domain"
	"github.com/google/uuid"
)

var (
	ErrBeliefNotFound = errors.New("belief not found")
	ErrInvalidWeight  = errors.New("support weight outside [0,1]")
	ErrSelfSupport    = errors.New("belief cannot support itself")
)

type Graph struct {
	TenantID uuid.UUID

	beliefs map[string]*domain.Belief
	edges   []*domain.SupportEdge
	out     map[string][]*domain.SupportEdge
}

func New(tenantID uuid.UUID) *Graph {
	return &Graph{
		TenantID: tenantID,
		beliefs:  make(map[string]*domain.Belief),
		out:      make(map[string][]*domain.SupportEdge),
	}
}

// Load rebuilds a graph from persisted belief records. Edge records are
// reconstructed from each belief's SupportedBy list and weight map, so the
// store only ever persists beliefs.
func Load(tenantID uuid.UUID, beliefs []*domain.Belief) *Graph {
	g := New(tenantID)
	for _, b := range beliefs {
		g.Add(b)
	}
	for _, b := range g.sortedBeliefs() {
		for _, supID := range b.SupportedBy {
			if _, ok := g.beliefs[supID]; !ok {
				continue
			}
			g.addEdge(supID, b.ID, b.SupportWeights[supID])
		}
	}
	return g
}

// Add inserts or replaces a belief and normalizes its collections.
func (g *Graph) Add(b *domain.Belief) {
	b.Normalize()
	if b.TenantID == uuid.Nil {
		b.TenantID = g.TenantID
	}
	g.beliefs[b.ID] = b
}

func (g *Graph) Get(id string) (*domain.Belief, bool) {
	b, ok := g.beliefs[id]
	return b, ok
}

func (g *Graph) Len() int {
	return len(g.beliefs)
}

// List returns all beliefs ordered by id.
func (g *Graph) List() []*domain.Belief {
	return g.sortedBeliefs()
}

func (g *Graph) ListByCategory(c domain.Category) []*domain.Belief {
	var out []*domain.Belief
	for _, b := range g.sortedBeliefs() {
		if b.Category == c {
			out = append(out, b)
		}
	}
	return out
}

// Edges returns the edge list ordered by (from, to).
func (g *Graph) Edges() []*domain.SupportEdge {
	edges := make([]*domain.SupportEdge, len(g.edges))
	copy(edges, g.edges)
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	return edges
}

// AddSupport links supporter -> supported with the given weight. Both
// beliefs must already be in the graph. Re-adding an existing edge
// overwrites its weight.
func (g *Graph) AddSupport(supporterID, supportedID string, weight float64) error {
	if weight < 0 || weight > 1 {
		return fmt.Errorf("%s -> %s: %w", supporterID, supportedID, ErrInvalidWeight)
	}
	if supporterID == supportedID {
		return fmt.Errorf("%s: %w", supporterID, ErrSelfSupport)
	}
	supporter, ok := g.beliefs[supporterID]
	if !ok {
		return fmt.Errorf("supporter %s: %w", supporterID, ErrBeliefNotFound)
	}
	supported, ok := g.beliefs[supportedID]
	if !ok {
		return fmt.Errorf("supported %s: %w", supportedID, ErrBeliefNotFound)
	}

	if _, exists := supported.SupportWeights[supporterID]; exists {
		supported.SupportWeights[supporterID] = weight
		for _, e := range g.out[supporterID] {
			if e.To == supportedID {
				e.Weight = weight
			}
		}
		return nil
	}

	supporter.Supports = append(supporter.Supports, supportedID)
	supported.SupportedBy = append(supported.SupportedBy, supporterID)
	supported.SupportWeights[supporterID] = weight
	g.addEdge(supporterID, supportedID, weight)
	return nil
}

func (g *Graph) addEdge(from, to string, weight float64) {
	e := &domain.SupportEdge{
		From:     from,
		To:       to,
		Weight:   weight,
		Relation: domain.RelationSupports,
	}
	g.edges = append(g.edges, e)
	g.out[from] = append(g.out[from], e)
}

func (g *Graph) sortedBeliefs() []*domain.Belief {
	out := make([]*domain.Belief, 0, len(g.beliefs))
	for _, b := range g.beliefs {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
