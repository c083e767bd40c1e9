// Package events carries per-stage progress from provider checks and the orchestrator to
// whatever reports it (logs, metrics), so neither has to know about output formats.
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/UnknownOlympus/pincheck/internal/models"
)

// Stage names a step of a serviceability check.
type Stage string

const (
	StageSession  Stage = "session"
	StageLocation Stage = "location"
	StageInput    Stage = "input"
	StageSelect   Stage = "select"
	StageConfirm  Stage = "confirm"
	StageClassify Stage = "classify"
	StageAddress  Stage = "address"
	StageCheck    Stage = "check"
	StagePincode  Stage = "pincode"
)

// Outcome describes how a stage ended.
type Outcome string

const (
	OutcomeStarted  Outcome = "started"
	OutcomeOK       Outcome = "ok"
	OutcomeRetry    Outcome = "retry"
	OutcomeFallback Outcome = "fallback"
	OutcomeNoMatch  Outcome = "no_match"
	OutcomeFailed   Outcome = "failed"
	OutcomeDone     Outcome = "done"
)

// Event is one progress report.
type Event struct {
	RunID    string
	Pincode  string
	Provider string
	Stage    Stage
	Outcome  Outcome
	Status   models.Status // Status is set on StageCheck events.
	Address  string
	Err      error
	Duration time.Duration
}

// Sink receives events. Implementations must not block for long; checks are sequential.
type Sink interface {
	Emit(ctx context.Context, ev Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev Event)

// Emit calls f.
func (f SinkFunc) Emit(ctx context.Context, ev Event) {
	f(ctx, ev)
}

// Discard drops every event.
var Discard Sink = SinkFunc(func(context.Context, Event) {})

type multi []Sink

func (m multi) Emit(ctx context.Context, ev Event) {
	for _, s := range m {
		s.Emit(ctx, ev)
	}
}

// Multi fans events out to every non-nil sink in order.
func Multi(sinks ...Sink) Sink {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// WithRunID stamps runID on every event that does not carry one yet.
func WithRunID(sink Sink, runID string) Sink {
	return SinkFunc(func(ctx context.Context, ev Event) {
		if ev.RunID == "" {
			ev.RunID = runID
		}
		sink.Emit(ctx, ev)
	})
}

// LogSink writes events through slog.
type LogSink struct {
	log *slog.Logger
}

// NewLogSink creates a sink logging to log.
func NewLogSink(log *slog.Logger) *LogSink {
	return &LogSink{log: log}
}

// Emit logs ev; failures at warn level, completed checks at info, the rest at debug.
func (s *LogSink) Emit(ctx context.Context, ev Event) {
	attrs := []any{"run", ev.RunID, "pincode", ev.Pincode, "stage", string(ev.Stage), "outcome", string(ev.Outcome)}
	if ev.Provider != "" {
		attrs = append(attrs, "provider", ev.Provider)
	}
	if ev.Status != "" {
		attrs = append(attrs, "status", string(ev.Status))
	}
	if ev.Address != "" {
		attrs = append(attrs, "address", ev.Address)
	}
	if ev.Duration > 0 {
		attrs = append(attrs, "duration", ev.Duration)
	}
	if ev.Err != nil {
		attrs = append(attrs, "error", ev.Err)
	}

	switch {
	case ev.Outcome == OutcomeFailed:
		s.log.WarnContext(ctx, "Check stage failed", attrs...)
	case ev.Stage == StageCheck && ev.Outcome == OutcomeDone:
		s.log.InfoContext(ctx, "Provider check finished", attrs...)
	case ev.Stage == StagePincode:
		s.log.InfoContext(ctx, "Pincode "+string(ev.Outcome), attrs...)
	default:
		s.log.DebugContext(ctx, "Check stage", attrs...)
	}
}
