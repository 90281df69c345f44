package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPairKeyIsUnordered(t *testing.T) {
	assert.Equal(t, "a::b", PairKey("a", "b"))
	assert.Equal(t, "a::b", PairKey("b", "a"))
}

func TestAddEdgeDeduplicatesPairs(t *testing.T) {
	g := NewEventGraph()

	added := g.AddEdge(Edge{LeaderID: "a", FollowerID: "b", Similarity: 0.7})
	assert.True(t, added)

	// Same unordered pair, visited from the other endpoint.
	added = g.AddEdge(Edge{LeaderID: "b", FollowerID: "a", Similarity: 0.7})
	assert.False(t, added)

	assert.Equal(t, 1, g.EdgeCount())
	assert.Equal(t, 2, g.NodeCount())
}

func TestLeadingReturnsOnlyLeaderEdges(t *testing.T) {
	g := NewEventGraph()
	g.AddEdge(Edge{LeaderID: "a", FollowerID: "c", Similarity: 0.5})
	g.AddEdge(Edge{LeaderID: "a", FollowerID: "b", Similarity: 0.8})
	g.AddEdge(Edge{LeaderID: "x", FollowerID: "a", Similarity: 0.4})

	leading := g.Leading("a")
	require.Len(t, leading, 2)
	// Ordered by follower id.
	assert.Equal(t, "b", leading[0].FollowerID)
	assert.Equal(t, "c", leading[1].FollowerID)

	assert.Empty(t, g.Leading("b"))
}

func TestEdgesOfIsDeterministic(t *testing.T) {
	g := NewEventGraph()
	g.AddEdge(Edge{LeaderID: "m", FollowerID: "z"})
	g.AddEdge(Edge{LeaderID: "a", FollowerID: "m"})
	g.AddEdge(Edge{LeaderID: "m", FollowerID: "b"})

	edges := g.EdgesOf("m")
	require.Len(t, edges, 3)
	// Ordered by pair key: a::m, b::m, m::z.
	assert.Equal(t, "a", edges[0].LeaderID)
	assert.Equal(t, "b", edges[1].FollowerID)
	assert.Equal(t, "z", edges[2].FollowerID)
}

func TestGraphStats(t *testing.T) {
	g := NewEventGraph()
	assert.Zero(t, g.Stats().TotalEdges)

	g.AddEdge(Edge{LeaderID: "a", FollowerID: "b", Similarity: 0.4})
	g.AddEdge(Edge{LeaderID: "a", FollowerID: "c", Similarity: 0.8})

	stats := g.Stats()
	assert.Equal(t, 2, stats.TotalEdges)
	assert.Equal(t, 1, stats.UniqueLeaders)
	assert.Equal(t, 2, stats.UniqueFollowers)
	assert.InDelta(t, 0.6, stats.AvgSimilarity, 1e-12)
}

func TestSignalDedupKey(t *testing.T) {
	sig := Signal{LeaderID: "L", FollowerID: "F"}
	assert.Equal(t, "L::F", sig.DedupKey())

	set := NewEmittedSetFrom([]string{"L::F"})
	assert.True(t, set.Contains("L::F"))
	assert.False(t, set.Contains("F::L"))
	set.Mark("F::L")
	assert.Equal(t, 2, set.Len())
}

func TestResolutionStateClone(t *testing.T) {
	s := NewResolutionState()
	s.Known["a"] = ResolutionYes

	c := s.Clone()
	c.Known["b"] = ResolutionNo

	assert.True(t, s.ResolvedBefore("a"))
	assert.False(t, s.ResolvedBefore("b"))
	assert.True(t, c.ResolvedBefore("b"))
	assert.False(t, s.ResolvedBefore("missing"))
}
