// Package sink holds the outbound destinations for qualifying evaluation
// records (spec.md §6 "Outbound — opportunity records"): a Postgres audit
// log, a read-only WebSocket broadcast, and a fan-out that composes any
// number of sinks behind the scanner's Sink interface without blocking it.
package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"arbscan/internal/models"
	"arbscan/pkg/utils"
)

// PostgresSink is a historical audit log of emitted opportunities —
// storage of what the scanner already decided, not trade execution or
// fund reconciliation. Adapted from stats_repository.go's
// Insert/Recent/Count shape.
type PostgresSink struct {
	db     *sql.DB
	logger *utils.Logger

	queue chan models.EvaluationRecord
	done  chan struct{}
}

// NewPostgresSink opens no connection itself (callers pass an already
// configured *sql.DB, typically via sql.Open("postgres", dsn)) and starts
// a background writer so Emit never blocks the scanner on a slow insert.
func NewPostgresSink(db *sql.DB, queueSize int, logger *utils.Logger) *PostgresSink {
	if logger == nil {
		logger = utils.L()
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	s := &PostgresSink{
		db:     db,
		logger: logger.WithComponent("postgres_sink"),
		queue:  make(chan models.EvaluationRecord, queueSize),
		done:   make(chan struct{}),
	}
	go s.writeLoop()
	return s
}

// Emit implements scanner.Sink. A full queue drops the oldest queued
// record rather than blocking the caller.
func (s *PostgresSink) Emit(ctx context.Context, rec models.EvaluationRecord) {
	select {
	case s.queue <- rec:
	default:
		select {
		case <-s.queue:
		default:
		}
		select {
		case s.queue <- rec:
		default:
		}
	}
}

func (s *PostgresSink) writeLoop() {
	for {
		select {
		case rec := <-s.queue:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.Insert(ctx, rec); err != nil {
				s.logger.Warn("insert failed", utils.Err(err))
			}
			cancel()
		case <-s.done:
			return
		}
	}
}

// Close stops the background writer. Queued records still in flight are
// dropped.
func (s *PostgresSink) Close() {
	close(s.done)
}

// Insert writes one evaluation record synchronously.
func (s *PostgresSink) Insert(ctx context.Context, rec models.EvaluationRecord) error {
	legs, err := json.Marshal(rec.Legs)
	if err != nil {
		return fmt.Errorf("marshal legs: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO opportunities
			(cycle_key, input_asset, input_qty, output_qty, gross_return, fee_adjusted_return, risk_adjusted_return, legs, emitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.Cycle.CanonicalKey(),
		string(rec.InputAsset),
		rec.InputQty.String(),
		rec.OutputQty.String(),
		rec.GrossReturn.String(),
		rec.FeeAdjustedReturn.String(),
		rec.RiskAdjustedReturn.String(),
		legs,
		rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert opportunity: %w", err)
	}
	return nil
}

// opportunityRow is one row as read back from Recent.
type opportunityRow struct {
	CycleKey           string
	InputAsset         string
	RiskAdjustedReturn string
	EmittedAt          time.Time
}

// Recent returns the most recently inserted opportunities, newest first.
func (s *PostgresSink) Recent(ctx context.Context, limit int) ([]opportunityRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT cycle_key, input_asset, risk_adjusted_return, emitted_at
		 FROM opportunities ORDER BY emitted_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent opportunities: %w", err)
	}
	defer rows.Close()

	var out []opportunityRow
	for rows.Next() {
		var r opportunityRow
		if err := rows.Scan(&r.CycleKey, &r.InputAsset, &r.RiskAdjustedReturn, &r.EmittedAt); err != nil {
			return nil, fmt.Errorf("scan opportunity row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Count returns the total number of opportunities ever recorded.
func (s *PostgresSink) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM opportunities`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count opportunities: %w", err)
	}
	return n, nil
}
