// Package scanner is the Scanner (spec.md §4.7): the periodic driver
// that enumerates cycles from the market graph, fans them out to a
// bounded pool of evaluator workers, and emits qualifying opportunities
// to the configured sinks. Grounded on the teacher's Engine: worker-pool
// fan-out bounded by a semaphore, atomic tick/skip counters instead of
// nested locks, and a pooled scratch slice of records per tick.
package scanner

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"arbscan/internal/evaluator"
	"arbscan/internal/graph"
	"arbscan/internal/metrics"
	"arbscan/internal/models"
	"arbscan/internal/paths"
	"arbscan/pkg/utils"
)

// Sink receives qualifying opportunities. Implementations must not block
// the caller for long; a slow sink should buffer or drop internally
// (spec.md §6 "outbound interface").
type Sink interface {
	Emit(ctx context.Context, rec models.EvaluationRecord)
}

// Options configures one Scanner (spec.md §6 "execution").
type Options struct {
	TickInterval       time.Duration
	MaxConcurrentPaths int
	InputNotional      decimal.Decimal
	PathOptions        paths.Options
}

// Scanner ties the graph, evaluator and sinks together into a periodic
// scan loop.
type Scanner struct {
	graph     *graph.Graph
	evaluator *evaluator.Evaluator
	sinks     []Sink
	opts      Options
	logger    *utils.Logger

	tickCount  atomic.Int64
	skipCount  atomic.Int64
	busy       atomic.Bool
}

// New returns a Scanner ready to Run.
func New(g *graph.Graph, ev *evaluator.Evaluator, sinks []Sink, opts Options, logger *utils.Logger) *Scanner {
	if logger == nil {
		logger = utils.L()
	}
	return &Scanner{graph: g, evaluator: ev, sinks: sinks, opts: opts, logger: logger.WithComponent("scanner")}
}

// recordPool recycles the scratch slice each tick collects qualifying
// records into, cutting one allocation per tick (grounded on the
// teacher's priceUpdatePool/notificationPool shape).
var recordPool = sync.Pool{
	New: func() interface{} {
		s := make([]models.EvaluationRecord, 0, 64)
		return &s
	},
}

// Run drives the scan loop until ctx is cancelled. Each tick that finds
// the previous tick still draining is skipped, not queued (spec.md §5
// "skip-if-busy"): this scanner is a sampler, not a work queue. Run
// returns after the tick in flight at cancellation has finished.
func (s *Scanner) Run(ctx context.Context) {
	ticker := time.NewTicker(s.opts.TickInterval)
	defer ticker.Stop()

	var inFlight sync.WaitGroup
	defer inFlight.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			inFlight.Add(1)
			go func() {
				defer inFlight.Done()
				s.tick(ctx)
			}()
		}
	}
}

func (s *Scanner) tick(ctx context.Context) {
	if !s.busy.CompareAndSwap(false, true) {
		s.skipCount.Add(1)
		metrics.ScanTicksSkippedTotal.Inc()
		return
	}
	defer s.busy.Store(false)

	start := time.Now()
	n := s.tickCount.Add(1)

	recordsPtr := recordPool.Get().(*[]models.EvaluationRecord)
	records := (*recordsPtr)[:0]
	defer func() {
		recordPool.Put(recordsPtr)
	}()

	sem := make(chan struct{}, s.opts.MaxConcurrentPaths)
	var mu sync.Mutex
	var wg sync.WaitGroup

	paths.Enumerate(s.graph, s.opts.PathOptions, func(cycle models.Cycle) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(c models.Cycle) {
			defer wg.Done()
			defer func() { <-sem }()

			rec := s.evaluator.Evaluate(c, c.Root(), s.opts.InputNotional, start)
			outcome := "qualified"
			if rec.Rejected {
				outcome = "rejected"
				metrics.EvaluatorRejectionsTotal.WithLabelValues(string(rec.RejectionReason)).Inc()
			}
			metrics.CyclesEvaluatedTotal.WithLabelValues(outcome).Inc()

			if rec.Qualifies() {
				mu.Lock()
				records = append(records, rec)
				mu.Unlock()
			}
		}(cycle)
		return true
	})

	wg.Wait()

	sort.Slice(records, func(i, j int) bool {
		return records[i].RiskAdjustedReturn.GreaterThan(records[j].RiskAdjustedReturn)
	})

	for _, rec := range records {
		s.emit(ctx, rec)
	}

	metrics.ScanTickDuration.Observe(float64(time.Since(start).Milliseconds()))
	s.logger.Debug("scan tick complete",
		utils.Int64("tick", n),
		utils.Int("qualifying", len(records)),
	)
}

func (s *Scanner) emit(ctx context.Context, rec models.EvaluationRecord) {
	metrics.OpportunitiesEmittedTotal.Inc()
	for _, sink := range s.sinks {
		sink.Emit(ctx, rec)
	}
}

// TickCount returns the number of ticks executed so far.
func (s *Scanner) TickCount() int64 { return s.tickCount.Load() }

// SkipCount returns the number of ticks skipped due to the prior tick
// still being in flight.
func (s *Scanner) SkipCount() int64 { return s.skipCount.Load() }
