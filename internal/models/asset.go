// Package models holds the plain data types shared across the scanner's
// core: assets, markets, the graph's directed edges, order-book snapshots,
// cycles and the records produced when a cycle is evaluated.
package models

import "strings"

// Asset is a symbolic currency identifier (e.g. "BTC"). Equality is by
// normalized identifier.
type Asset string

// NormalizeAsset upper-cases and trims an asset identifier so that "btc",
// "Btc" and "BTC" all refer to the same vertex in the market graph.
func NormalizeAsset(s string) Asset {
	return Asset(strings.ToUpper(strings.TrimSpace(s)))
}

// Equal reports whether two assets are the same after normalization.
func (a Asset) Equal(b Asset) bool {
	return NormalizeAsset(string(a)) == NormalizeAsset(string(b))
}

func (a Asset) String() string { return string(a) }
