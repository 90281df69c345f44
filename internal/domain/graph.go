package domain

import (
	"sort"
	"time"
)

// Edge is a validated similarity relationship between two markets. The pair is
// unordered for traversal, but the edge carries a fixed orientation derived at
// build time: the market with the earlier end date is the leader, ties broken
// by lexicographically smaller id.
type Edge struct {
	LeaderID   string
	FollowerID string
	Similarity float64 // dot product of unit vectors, in [-1, 1]
	DaysApart  int     // absolute day difference between end dates
}

// PairKey returns the canonical unordered key for a market pair.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "::" + b
}

// Key returns the edge's canonical pair key.
func (e Edge) Key() string { return PairKey(e.LeaderID, e.FollowerID) }

// Other returns the endpoint opposite to id, or "" if id is not an endpoint.
func (e Edge) Other(id string) string {
	switch id {
	case e.LeaderID:
		return e.FollowerID
	case e.FollowerID:
		return e.LeaderID
	}
	return ""
}

// EventGraph is the similarity graph over markets. Nodes are market ids and
// edges are related pairs passing the similarity and date-window filters.
// It is built once per build invocation and read-only afterwards.
type EventGraph struct {
	BuiltAt time.Time

	edges    map[string]Edge     // pair key -> edge
	adjacent map[string][]string // market id -> pair keys, insertion order
}

// NewEventGraph returns an empty graph.
func NewEventGraph() *EventGraph {
	return &EventGraph{
		edges:    make(map[string]Edge),
		adjacent: make(map[string][]string),
	}
}

// AddEdge materializes an edge. Adding the same unordered pair twice is a
// no-op, so visiting a pair from both endpoints never duplicates it.
func (g *EventGraph) AddEdge(e Edge) bool {
	key := e.Key()
	if _, ok := g.edges[key]; ok {
		return false
	}
	g.edges[key] = e
	g.adjacent[e.LeaderID] = append(g.adjacent[e.LeaderID], key)
	g.adjacent[e.FollowerID] = append(g.adjacent[e.FollowerID], key)
	return true
}

// EdgesOf returns all edges touching the given market, ordered by pair key so
// traversal order is deterministic.
func (g *EventGraph) EdgesOf(id string) []Edge {
	keys := g.adjacent[id]
	if len(keys) == 0 {
		return nil
	}
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	out := make([]Edge, 0, len(sorted))
	for _, k := range sorted {
		out = append(out, g.edges[k])
	}
	return out
}

// Leading returns the edges where the given market is in the leader role,
// ordered by follower id.
func (g *EventGraph) Leading(id string) []Edge {
	var out []Edge
	for _, e := range g.EdgesOf(id) {
		if e.LeaderID == id {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FollowerID < out[j].FollowerID })
	return out
}

// Edges returns every edge in the graph ordered by pair key.
func (g *EventGraph) Edges() []Edge {
	keys := make([]string, 0, len(g.edges))
	for k := range g.edges {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Edge, 0, len(keys))
	for _, k := range keys {
		out = append(out, g.edges[k])
	}
	return out
}

// EdgeCount returns the number of edges.
func (g *EventGraph) EdgeCount() int { return len(g.edges) }

// NodeCount returns the number of markets touched by at least one edge.
func (g *EventGraph) NodeCount() int { return len(g.adjacent) }

// GraphStats summarizes the graph for logging and persistence.
type GraphStats struct {
	TotalEdges      int
	UniqueLeaders   int
	UniqueFollowers int
	AvgSimilarity   float64
}

// Stats computes summary statistics over the graph.
func (g *EventGraph) Stats() GraphStats {
	stats := GraphStats{TotalEdges: len(g.edges)}
	if len(g.edges) == 0 {
		return stats
	}
	leaders := make(map[string]struct{})
	followers := make(map[string]struct{})
	var sum float64
	for _, e := range g.Edges() {
		leaders[e.LeaderID] = struct{}{}
		followers[e.FollowerID] = struct{}{}
		sum += e.Similarity
	}
	stats.UniqueLeaders = len(leaders)
	stats.UniqueFollowers = len(followers)
	stats.AvgSimilarity = sum / float64(len(g.edges))
	return stats
}
