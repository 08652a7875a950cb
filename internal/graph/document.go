package graph

import (
	"fmt"

	"github.com/doxalabs/doxa/internal/domain"
	"github.com/google/uuid"
)

// Node is the display view of one belief inside a Document.
type Node struct {
	ID        string          `json:"id"`
	Statement string          `json:"statement"`
	Category  domain.Category `json:"category"`
	Strength  float64         `json:"strength"`
}

// Document is the serialized form of a graph: a render view (nodes plus
// edges) and the full belief map, which is the part the graph is rebuilt
// from. Node and edge lists are sorted so encoding is deterministic.
type Document struct {
	TenantID uuid.UUID                 `json:"tenant_id,omitempty"`
	Nodes    []Node                    `json:"nodes"`
	Edges    []*domain.SupportEdge     `json:"edges"`
	Beliefs  map[string]*domain.Belief `json:"beliefs"`
}

// Snapshot captures the graph as a Document. The document shares belief
// records with the live graph; serialize it before releasing the tenant.
func (g *Graph) Snapshot() *Document {
	doc := &Document{
		TenantID: g.TenantID,
		Beliefs:  make(map[string]*domain.Belief, len(g.beliefs)),
	}
	for _, b := range g.sortedBeliefs() {
		doc.Nodes = append(doc.Nodes, Node{
			ID:        b.ID,
			Statement: b.Statement,
			Category:  b.Category,
			Strength:  b.Strength,
		})
		doc.Beliefs[b.ID] = b
	}
	doc.Edges = g.Edges()
	return doc
}

// FromDocument validates every belief record and rebuilds the graph.
// Topology comes from the belief map; the node and edge lists are derived
// views and are not consulted.
func FromDocument(doc *Document) (*Graph, error) {
	if doc == nil {
		return nil, fmt.Errorf("nil document")
	}
	beliefs := make([]*domain.Belief, 0, len(doc.Beliefs))
	for id, b := range doc.Beliefs {
		if b == nil {
			return nil, fmt.Errorf("belief %s: nil record", id)
		}
		if b.ID == "" {
			b.ID = id
		}
		if b.ID != id {
			return nil, fmt.Errorf("belief %s: record id %s does not match key", id, b.ID)
		}
		b.Normalize()
		if err := b.Validate(); err != nil {
			return nil, err
		}
		beliefs = append(beliefs, b)
	}
	return Load(doc.TenantID, beliefs), nil
}
