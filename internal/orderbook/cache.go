// Package orderbook is the Order-Book Cache (spec.md §4.2): a sharded,
// lock-light store of the latest known snapshot for every (exchange,
// symbol) pair the registry tracks. Ingress adapters write; the
// evaluator and metadata consumers read. Readers never block writers of
// a different symbol and never hold a lock across a read.
package orderbook

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"arbscan/internal/models"
)

const defaultShards = 32

// InvariantKind names the specific internal invariant a Cache detected
// being violated (spec.md §7 "internal invariant violations").
type InvariantKind string

const (
	InvariantCrossedBook InvariantKind = "crossed_book"
	InvariantNegativeQty InvariantKind = "negative_qty"
)

// InvariantError describes a cache-detected bug rather than normal
// control flow: a book crossed after apply, a delta carrying a negative
// quantity, or (by the same path) any other post-apply state the cache
// considers impossible. The affected (exchange, symbol) is quarantined
// permanently stale and the violation is raised via
// Cache.OnInvariantViolation.
type InvariantError struct {
	Kind       InvariantKind
	ExchangeID string
	Symbol     string
	SequenceNo uint64
}

func (e InvariantError) Error() string {
	return fmt.Sprintf("orderbook invariant violated: %s %s/%s seq=%d", e.Kind, e.ExchangeID, e.Symbol, e.SequenceNo)
}

// fnv-1a, inlined to avoid an allocation on every cache lookup (same
// trick the teacher's price tracker uses to shard by symbol).
const (
	fnvOffset32 = uint32(2166136261)
	fnvPrime32  = uint32(16777619)
)

func fnvHash(s string) uint32 {
	h := fnvOffset32
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime32
	}
	return h
}

// entry holds the current snapshot for one (exchange, symbol) behind an
// atomic pointer: ingress publishes a whole new *models.Snapshot on every
// update, readers load it without taking any lock at all.
type entry struct {
	snapshot    atomic.Pointer[models.Snapshot]
	quarantined atomic.Bool
}

type shard struct {
	mu      sync.RWMutex // guards only the entries map itself, not its contents
	entries map[models.Key]*entry
}

// Cache is the sharded order-book store.
type Cache struct {
	shards    []*shard
	numShards uint32

	// OnInvariantViolation, if set, is called synchronously whenever Put
	// or ApplyDelta detects an internal invariant violation and
	// quarantines the affected symbol. Configure it once at startup,
	// before any feed begins writing.
	OnInvariantViolation func(InvariantError)
}

// New returns a Cache with the given shard count (0 selects a default).
func New(numShards int) *Cache {
	if numShards <= 0 {
		numShards = defaultShards
	}
	c := &Cache{
		shards:    make([]*shard, numShards),
		numShards: uint32(numShards),
	}
	for i := range c.shards {
		c.shards[i] = &shard{entries: make(map[models.Key]*entry)}
	}
	return c
}

func (c *Cache) shardFor(key models.Key) *shard {
	return c.shards[fnvHash(key.ExchangeID+"|"+key.Symbol)%c.numShards]
}

func (c *Cache) entryFor(key models.Key) *entry {
	sh := c.shardFor(key)

	sh.mu.RLock()
	e, ok := sh.entries[key]
	sh.mu.RUnlock()
	if ok {
		return e
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if e, ok = sh.entries[key]; ok {
		return e
	}
	e = &entry{}
	sh.entries[key] = e
	return e
}

// Put replaces the snapshot for (exchange, symbol). Snapshots are
// immutable once published: callers must not mutate a *models.Snapshot
// after passing it here (spec.md §5 "immutable, replace don't mutate").
// A snapshot that is crossed on arrival quarantines the symbol.
func (c *Cache) Put(snap *models.Snapshot) {
	key := models.Key{ExchangeID: snap.ExchangeID, Symbol: snap.Symbol}
	e := c.entryFor(key)
	e.snapshot.Store(snap)
	if snap.Crossed() {
		c.quarantine(e, InvariantError{
			Kind:       InvariantCrossedBook,
			ExchangeID: snap.ExchangeID,
			Symbol:     snap.Symbol,
			SequenceNo: snap.SequenceNo,
		})
	}
}

// quarantine marks e permanently stale and, if configured, raises the
// violation to the host. Quarantine never clears on its own: only an
// operator action outside this package lifts it.
func (c *Cache) quarantine(e *entry, err InvariantError) {
	e.quarantined.Store(true)
	if c.OnInvariantViolation != nil {
		c.OnInvariantViolation(err)
	}
}

// Quarantined reports whether (exchange, symbol) has been permanently
// marked stale by a detected internal invariant violation.
func (c *Cache) Quarantined(key models.Key) bool {
	sh := c.shardFor(key)
	sh.mu.RLock()
	e, ok := sh.entries[key]
	sh.mu.RUnlock()
	if !ok {
		return false
	}
	return e.quarantined.Load()
}

// Get returns the latest snapshot for (exchange, symbol), or nil if none
// has ever been published.
func (c *Cache) Get(key models.Key) *models.Snapshot {
	sh := c.shardFor(key)
	sh.mu.RLock()
	e, ok := sh.entries[key]
	sh.mu.RUnlock()
	if !ok {
		return nil
	}
	return e.snapshot.Load()
}

// Fresh returns the snapshot for (exchange, symbol) only if it exists, is
// not quarantined, and is not older than maxAge, matching the staleness
// gate of spec.md §4.6 ("stale_rejected if snapshot age exceeds
// staleness_bound_ms").
func (c *Cache) Fresh(key models.Key, now time.Time, maxAge time.Duration) (*models.Snapshot, bool) {
	if c.Quarantined(key) {
		return nil, false
	}
	snap := c.Get(key)
	if snap == nil {
		return nil, false
	}
	if snap.Age(now) > maxAge {
		return nil, false
	}
	return snap, true
}

// ApplyDelta merges one incremental update into the cached snapshot for
// its (exchange, symbol), producing and publishing a new snapshot. It
// returns false (without publishing) if the delta's sequence number is
// not exactly one greater than the cached snapshot's — the gap signals
// the caller must request a fresh full snapshot (spec.md §4.2 "Sequence
// gap detection"). A negative quantity quarantines the symbol without
// publishing; a post-apply crossed book is published and then quarantined,
// and the call reports applied=true.
func (c *Cache) ApplyDelta(delta models.Delta) (applied bool, gapDetected bool) {
	key := models.Key{ExchangeID: delta.ExchangeID, Symbol: delta.Symbol}
	e := c.entryFor(key)

	if delta.Qty.IsNegative() {
		c.quarantine(e, InvariantError{
			Kind:       InvariantNegativeQty,
			ExchangeID: delta.ExchangeID,
			Symbol:     delta.Symbol,
			SequenceNo: delta.SequenceNo,
		})
		return false, false
	}

	for {
		cur := e.snapshot.Load()
		if cur == nil {
			return false, true // no baseline snapshot yet; caller must resync
		}
		if delta.SequenceNo <= cur.SequenceNo {
			return false, false // stale/duplicate delta, not a gap
		}
		if delta.SequenceNo != cur.SequenceNo+1 {
			return false, true
		}

		next := applyDeltaTo(cur, delta)
		if e.snapshot.CompareAndSwap(cur, next) {
			if next.Crossed() {
				c.quarantine(e, InvariantError{
					Kind:       InvariantCrossedBook,
					ExchangeID: delta.ExchangeID,
					Symbol:     delta.Symbol,
					SequenceNo: delta.SequenceNo,
				})
			}
			return true, false
		}
		// lost the race with a concurrent writer; retry against the new value
	}
}

func applyDeltaTo(cur *models.Snapshot, delta models.Delta) *models.Snapshot {
	next := &models.Snapshot{
		ExchangeID: cur.ExchangeID,
		Symbol:     cur.Symbol,
		SequenceNo: delta.SequenceNo,
		UpdatedAt:  delta.Timestamp,
	}
	switch delta.Side {
	case models.DeltaBid:
		next.Bids = mergeLevel(cur.Bids, delta.Price, delta.Qty, true)
		next.Asks = cur.Asks
	case models.DeltaAsk:
		next.Asks = mergeLevel(cur.Asks, delta.Price, delta.Qty, false)
		next.Bids = cur.Bids
	default:
		next.Bids, next.Asks = cur.Bids, cur.Asks
	}
	return next
}

// mergeLevel inserts, updates or removes one price level, keeping the
// slice sorted (descending for bids, ascending for asks). Qty == 0
// removes the level.
func mergeLevel(levels []models.PriceLevel, price, qty decimal.Decimal, descending bool) []models.PriceLevel {
	out := make([]models.PriceLevel, 0, len(levels)+1)
	inserted := false
	for _, lv := range levels {
		if lv.Price.Equal(price) {
			if !qty.IsZero() {
				out = append(out, models.PriceLevel{Price: price, Qty: qty})
				inserted = true
			}
			continue
		}
		if !inserted {
			before := lv.Price.LessThan(price)
			if descending {
				before = lv.Price.GreaterThan(price)
			}
			if !before && !qty.IsZero() {
				out = append(out, models.PriceLevel{Price: price, Qty: qty})
				inserted = true
			}
		}
		out = append(out, lv)
	}
	if !inserted && !qty.IsZero() {
		out = append(out, models.PriceLevel{Price: price, Qty: qty})
	}
	return out
}
