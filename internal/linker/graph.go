package linker

import (
	"sort"

	"github.com/vkoven/membrain/internal/types"
)

const (
	// incomingDiscount applies when a traversal hop follows an edge
	// against its direction
	incomingDiscount = 0.7

	// DefaultTraverseDepth bounds multi-hop traversal
	DefaultTraverseDepth = 3
)

// Edge is one directed connection in the link graph
type Edge struct {
	FromID       string
	ToID         string
	Relationship types.LinkRelationship
	Weight       float64
}

// Node holds the outgoing and incoming edges of one memory
type Node struct {
	ID       string
	Outgoing []Edge
	Incoming []Edge
}

// Graph is the adjacency map over a memory snapshot. Edges whose
// target is missing from the snapshot are kept; traversal just never
// lands on them.
type Graph struct {
	Nodes map[string]*Node
}

// BuildLinkGraph materializes the adjacency map for a snapshot,
// weight fixed per relationship.
func BuildLinkGraph(memories []*types.Memory) *Graph {
	g := &Graph{Nodes: make(map[string]*Node, len(memories))}
	node := func(id string) *Node {
		n, ok := g.Nodes[id]
		if !ok {
			n = &Node{ID: id}
			g.Nodes[id] = n
		}
		return n
	}
	for _, m := range memories {
		node(m.ID)
		for _, l := range m.Links {
			e := Edge{
				FromID:       m.ID,
				ToID:         l.TargetID,
				Relationship: l.Relationship,
				Weight:       types.LinkWeight(l.Relationship),
			}
			node(m.ID).Outgoing = append(node(m.ID).Outgoing, e)
			node(l.TargetID).Incoming = append(node(l.TargetID).Incoming, e)
		}
	}
	return g
}

// Connected is one traversal result: a memory reachable from the
// seed with the weight of its best path.
type Connected struct {
	Memory     *types.Memory
	PathWeight float64
	Hops       int
}

// TraverseLinks walks the link graph outward from a seed memory,
// following edges in both directions up to depth hops. Path weight is
// the product of edge weights along the path, with incoming edges
// discounted; only the best path per target survives. The seed itself
// is not returned. Dangling targets are skipped.
func TraverseLinks(memoryID string, memories []*types.Memory, depth int) []Connected {
	if depth <= 0 {
		depth = DefaultTraverseDepth
	}
	index := types.ByID(memories)
	if _, ok := index[memoryID]; !ok {
		return nil
	}
	graph := BuildLinkGraph(memories)

	best := map[string]Connected{}
	current := []hopState{{id: memoryID, weight: 1.0}}
	visitedAt := map[string]float64{memoryID: 1.0}

	for hop := 1; hop <= depth && len(current) > 0; hop++ {
		var next []hopState
		for _, f := range current {
			n, ok := graph.Nodes[f.id]
			if !ok {
				continue
			}
			for _, e := range n.Outgoing {
				w := f.weight * e.Weight
				next = visit(next, best, visitedAt, index, e.ToID, w, hop, memoryID)
			}
			for _, e := range n.Incoming {
				w := f.weight * e.Weight * incomingDiscount
				next = visit(next, best, visitedAt, index, e.FromID, w, hop, memoryID)
			}
		}
		current = next
	}

	out := make([]Connected, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PathWeight > out[j].PathWeight
	})
	return out
}

type hopState struct {
	id     string
	weight float64
}

// visit records a reached node if this path beats the best known one,
// and queues it for further expansion.
func visit(next []hopState, best map[string]Connected, visitedAt map[string]float64,
	index map[string]*types.Memory, id string, weight float64, hop int, seed string) []hopState {
	if id == seed || weight <= 0 {
		return next
	}
	if prev, ok := visitedAt[id]; ok && prev >= weight {
		return next
	}
	visitedAt[id] = weight
	if m, ok := index[id]; ok {
		best[id] = Connected{Memory: m, PathWeight: weight, Hops: hop}
	}
	return append(next, hopState{id: id, weight: weight})
}
