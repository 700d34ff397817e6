// Package paths is the Path Enumerator (spec.md §4.5): an iterative,
// stack-based depth-first search over the market graph that yields every
// well-formed cycle between min_length and max_length edges, starting
// and ending at one of the configured start assets.
package paths

import (
	"sync"

	"arbscan/internal/graph"
	"arbscan/internal/models"
)

// Options configures one enumeration pass (spec.md §6 "paths config").
type Options struct {
	MinLength            int
	MaxLength            int
	StartAssets          []models.Asset
	AllowRevisitNodes    bool
	AllowSameMarketTwice bool
	AllowCrossExchange   bool
}

// frame is one stack entry of the explicit DFS. Frames are pooled since
// the enumerator runs once per tick and allocates one frame per edge
// visited — at several hundred edges and several ticks per second this
// is a hot enough path to matter (grounded on the pool pattern the
// teacher uses for its per-check scratch objects).
type frame struct {
	asset models.Asset
	edges []models.Edge // remaining candidate edges at this depth
}

var framePool = sync.Pool{
	New: func() interface{} {
		return &frame{}
	},
}

func acquireFrame(asset models.Asset, edges []models.Edge) *frame {
	f := framePool.Get().(*frame)
	f.asset = asset
	f.edges = edges
	return f
}

func releaseFrame(f *frame) {
	f.asset = ""
	f.edges = nil
	framePool.Put(f)
}

// Enumerate walks g from every start asset and calls yield for each
// well-formed cycle found. yield returning false stops enumeration early
// (mirrors the standard library's iterator convention).
func Enumerate(g *graph.Graph, opts Options, yield func(models.Cycle) bool) {
	seen := make(map[string]struct{})

	for _, start := range opts.StartAssets {
		if !enumerateFrom(g, start, opts, seen, yield) {
			return
		}
	}
}

type stackEntry struct {
	f     *frame
	path  []models.Edge
	nodes map[models.Asset]int // asset -> count of visits on current path
}

func enumerateFrom(g *graph.Graph, start models.Asset, opts Options, seen map[string]struct{}, yield func(models.Cycle) bool) bool {
	path := make([]models.Edge, 0, opts.MaxLength)
	nodes := map[models.Asset]int{start: 1}
	root := acquireFrame(start, g.Neighbors(start))
	stack := []stackEntry{{f: root, path: path, nodes: nodes}}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]

		if len(top.f.edges) == 0 {
			releaseFrame(top.f)
			stack = stack[:len(stack)-1]
			continue
		}

		edge := top.f.edges[0]
		top.f.edges = top.f.edges[1:]

		if !edgeAllowed(edge, top.path, top.nodes, opts) {
			continue
		}

		newPath := make([]models.Edge, len(top.path)+1)
		copy(newPath, top.path)
		newPath[len(newPath)-1] = edge

		closesAtStart := edge.To.Equal(start)
		if closesAtStart && len(newPath) >= opts.MinLength {
			cycle := models.Cycle{Edges: newPath}
			key := cycle.CanonicalKey()
			if _, dup := seen[key]; !dup {
				seen[key] = struct{}{}
				if !yield(cycle) {
					releaseRemaining(stack)
					return false
				}
			}
		}

		if len(newPath) < opts.MaxLength {
			newNodes := make(map[models.Asset]int, len(top.nodes)+1)
			for k, v := range top.nodes {
				newNodes[k] = v
			}
			newNodes[edge.To]++
			child := acquireFrame(edge.To, g.Neighbors(edge.To))
			stack = append(stack, stackEntry{f: child, path: newPath, nodes: newNodes})
		}
	}

	return true
}

func releaseRemaining(stack []stackEntry) {
	for _, s := range stack {
		releaseFrame(s.f)
	}
}

// edgeAllowed applies the four pruning rules of spec.md §4.5:
// no revisiting a node mid-walk (unless allowed), no using the same
// market twice in one cycle (unless allowed), no crossing exchanges
// (unless allowed), and never immediately reversing the edge just taken.
func edgeAllowed(edge models.Edge, path []models.Edge, nodes map[models.Asset]int, opts Options) bool {
	if len(path) > 0 {
		last := path[len(path)-1]
		if last.Market == edge.Market && last.Side != edge.Side {
			return false // immediate reversal of the same leg
		}
		if !opts.AllowCrossExchange && last.Market.ExchangeID != edge.Market.ExchangeID {
			return false
		}
	}
	if !opts.AllowSameMarketTwice {
		for _, e := range path {
			if e.Market == edge.Market {
				return false
			}
		}
	}
	if !opts.AllowRevisitNodes {
		if nodes[edge.To] > 0 && !edge.To.Equal(path0From(path, edge)) {
			// revisiting any node other than closing back to the start is disallowed
			return false
		}
	}
	return true
}

// path0From reports the asset the very first edge departed from, i.e.
// the cycle's root — the one node a closing edge is allowed to revisit.
func path0From(path []models.Edge, candidate models.Edge) models.Asset {
	if len(path) == 0 {
		return candidate.From
	}
	return path[0].From
}
