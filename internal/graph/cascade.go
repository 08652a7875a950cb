package graph

import "time"

// Cascade propagates a strength change through outgoing support edges.
// Each dependent with intrinsic strength i and incoming weight w moves by
// (new-old)*w*(1-i), then the change recurses from the dependent's own
// old/new pair. The visited set guarantees each belief is processed at most
// once, which also terminates cycles. Returns affected ids in propagation
// order.
func (g *Graph) Cascade(beliefID string, oldStrength, newStrength float64, visited map[string]bool) []string {
	if visited == nil {
		visited = make(map[string]bool)
	}
	visited[beliefID] = true

	var affected []string
	for _, edge := range g.out[beliefID] {
		dep, ok := g.beliefs[edge.To]
		if !ok || visited[edge.To] {
			continue
		}
		intrinsic := dep.Strength
		delta := (newStrength - oldStrength) * edge.Weight * (1 - intrinsic)
		next := clamp(intrinsic + delta)
		dep.Strength = next
		dep.UpdatedAt = time.Now().UTC()
		affected = append(affected, edge.To)
		affected = append(affected, g.Cascade(edge.To, intrinsic, next, visited)...)
	}
	return affected
}

// EffectiveStrength computes how strongly a belief holds given its
// supporters, without mutating anything: intrinsic plus each supporter's
// effective strength scaled by edge weight and the remaining headroom
// (1 - intrinsic), clamped to [0,1]. A supporter on the current recursion
// path contributes its intrinsic strength, which breaks cycles.
//
// This is a separate read model from Cascade. The two agree on direction
// but not numerically after long chains; callers that need the incremental
// view use Cascade, callers that need the derived view use this.
func (g *Graph) EffectiveStrength(beliefID string) float64 {
	memo := make(map[string]float64)
	inProgress := make(map[string]bool)
	return g.effective(beliefID, memo, inProgress)
}

func (g *Graph) effective(id string, memo map[string]float64, inProgress map[string]bool) float64 {
	b, ok := g.beliefs[id]
	if !ok {
		return 0
	}
	if v, ok := memo[id]; ok {
		return v
	}
	if inProgress[id] {
		return b.Strength
	}
	inProgress[id] = true

	eff := b.Strength
	for _, supID := range b.SupportedBy {
		w := b.SupportWeights[supID]
		eff += g.effective(supID, memo, inProgress) * w * (1 - b.Strength)
	}
	eff = clamp(eff)

	delete(inProgress, id)
	memo[id] = eff
	return eff
}
