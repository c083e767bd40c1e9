package events_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/UnknownOlympus/pincheck/internal/events"
	"github.com/UnknownOlympus/pincheck/internal/models"
	"github.com/stretchr/testify/assert"
)

type recorder struct {
	events []events.Event
}

func (r *recorder) Emit(_ context.Context, ev events.Event) {
	r.events = append(r.events, ev)
}

func TestMultiAndRunID(t *testing.T) {
	first, second := &recorder{}, &recorder{}
	sink := events.WithRunID(events.Multi(first, nil, second), "run-1")

	sink.Emit(t.Context(), events.Event{Pincode: "562110", Stage: events.StageInput, Outcome: events.OutcomeOK})
	sink.Emit(t.Context(), events.Event{RunID: "keep", Stage: events.StageCheck})

	assert.Len(t, first.events, 2)
	assert.Len(t, second.events, 2)
	assert.Equal(t, "run-1", first.events[0].RunID)
	assert.Equal(t, "keep", second.events[1].RunID)
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	sink := events.NewLogSink(logger)
	ctx := t.Context()

	sink.Emit(ctx, events.Event{Pincode: "562110", Provider: "blinkit", Stage: events.StageSelect, Outcome: events.OutcomeOK})
	assert.Empty(t, buf.String(), "debug events are below info")

	sink.Emit(ctx, events.Event{
		Pincode:  "562110",
		Provider: "blinkit",
		Stage:    events.StageCheck,
		Outcome:  events.OutcomeDone,
		Status:   models.StatusServiceable,
	})
	assert.Contains(t, buf.String(), "Provider check finished")
	assert.Contains(t, buf.String(), "status=Serviceable")

	buf.Reset()
	sink.Emit(ctx, events.Event{Pincode: "562110", Stage: events.StageConfirm, Outcome: events.OutcomeFailed, Err: assert.AnError})
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), assert.AnError.Error())
}

func TestDiscard(t *testing.T) {
	assert.NotPanics(t, func() {
		events.Discard.Emit(t.Context(), events.Event{})
	})
}
