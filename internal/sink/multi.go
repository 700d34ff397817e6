package sink

import (
	"context"

	"arbscan/internal/models"
)

// MultiSink fans one evaluation record out to any configured number of
// sinks. Each sink's Emit is expected to be non-blocking on its own
// (PostgresSink and BroadcastSink both queue internally); MultiSink adds
// no further buffering of its own.
type MultiSink struct {
	sinks []Emitter
}

// Emitter is the scanner.Sink contract, restated here to avoid an import
// cycle between internal/scanner and internal/sink.
type Emitter interface {
	Emit(ctx context.Context, rec models.EvaluationRecord)
}

// NewMultiSink returns a sink that fans out to every given sink in order.
func NewMultiSink(sinks ...Emitter) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Emit implements Emitter.
func (m *MultiSink) Emit(ctx context.Context, rec models.EvaluationRecord) {
	for _, s := range m.sinks {
		s.Emit(ctx, rec)
	}
}
