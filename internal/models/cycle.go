package models

import "strings"

// Cycle is an ordered sequence of edges forming a closed directed walk
// through the market graph (spec.md §3 "Cycle").
type Cycle struct {
	Edges []Edge
}

// Len returns the number of legs in the cycle.
func (c Cycle) Len() int { return len(c.Edges) }

// Root returns the asset the cycle starts and ends at.
func (c Cycle) Root() Asset {
	if len(c.Edges) == 0 {
		return ""
	}
	return c.Edges[0].From
}

// CanonicalKey is the deduplication key used by the enumerator: the
// edge-id sequence after rotating to start at the edge whose From asset
// sorts lexicographically smallest, of any asset kind (spec.md §4.5
// "Canonicalization"). Two enumerations of the same physical cycle rooted
// at different start assets rotate to the same starting edge and therefore
// produce the same key. Only the key is rotated; the Cycle itself keeps
// its original edge order.
func (c Cycle) CanonicalKey() string {
	rotated := c.rotated()
	ids := make([]string, len(rotated))
	for i, e := range rotated {
		ids[i] = e.ID()
	}
	return strings.Join(ids, ">")
}

// rotated returns the edges reordered to start at the lexicographically
// smallest From asset present in the cycle, ties broken by position.
func (c Cycle) rotated() []Edge {
	if len(c.Edges) == 0 {
		return c.Edges
	}
	minIdx := 0
	for i, e := range c.Edges {
		if e.From < c.Edges[minIdx].From {
			minIdx = i
		}
	}
	if minIdx == 0 {
		return c.Edges
	}
	out := make([]Edge, len(c.Edges))
	copy(out, c.Edges[minIdx:])
	copy(out[len(c.Edges)-minIdx:], c.Edges[:minIdx])
	return out
}

// WellFormed checks that each edge's target feeds the next edge's source
// and that the walk closes (spec.md §8 property 2).
func (c Cycle) WellFormed() bool {
	if len(c.Edges) == 0 {
		return false
	}
	for i := 0; i < len(c.Edges); i++ {
		next := c.Edges[(i+1)%len(c.Edges)]
		if !c.Edges[i].To.Equal(next.From) {
			return false
		}
	}
	return true
}
