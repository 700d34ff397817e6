// Package graph is the Market Graph (spec.md §4.4): a directed multigraph
// with assets as vertices and each market's BUY/SELL legs as two parallel
// directed edges. It is built once from the registry and read by the
// path enumerator on every scan.
package graph

import (
	"arbscan/internal/models"
	"arbscan/internal/registry"
)

// Graph is an adjacency-list directed multigraph over assets.
type Graph struct {
	adjacency map[models.Asset][]models.Edge
	vertices  map[models.Asset]struct{}
}

// Build constructs a graph from every market currently in the registry,
// adding both the BUY and SELL edge for each (spec.md §4.4 "two edges per
// market"). Invalid markets cannot reach the registry (Register rejects
// them), so Build never needs to skip one.
func Build(reg *registry.Registry) *Graph {
	g := &Graph{
		adjacency: make(map[models.Asset][]models.Edge),
		vertices:  make(map[models.Asset]struct{}),
	}
	for _, m := range reg.All() {
		buy, sell := models.NewEdges(m)
		g.addEdge(buy)
		g.addEdge(sell)
	}
	return g
}

func (g *Graph) addEdge(e models.Edge) {
	g.adjacency[e.From] = append(g.adjacency[e.From], e)
	g.vertices[e.From] = struct{}{}
	g.vertices[e.To] = struct{}{}
}

// Neighbors returns the outgoing edges from an asset. The returned slice
// is shared internally and must not be mutated by callers.
func (g *Graph) Neighbors(a models.Asset) []models.Edge {
	return g.adjacency[a]
}

// Vertices returns every asset with at least one incident edge.
func (g *Graph) Vertices() []models.Asset {
	out := make([]models.Asset, 0, len(g.vertices))
	for v := range g.vertices {
		out = append(out, v)
	}
	return out
}

// EdgeCount returns the total number of directed edges in the graph.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, edges := range g.adjacency {
		n += len(edges)
	}
	return n
}
