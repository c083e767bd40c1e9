package provider

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/UnknownOlympus/pincheck/internal/automation"
	"github.com/UnknownOlympus/pincheck/internal/events"
	"github.com/UnknownOlympus/pincheck/internal/models"
)

// Adapter checks one pincode against one provider. Check never fails outward: every
// problem is reported as models.StatusError.
type Adapter interface {
	Name() string
	Check(ctx context.Context, record models.PincodeRecord) models.CheckOutcome
}

// FlowAdapter runs the shared four-stage check against the surface described by its profile.
type FlowAdapter struct {
	name     string
	profile  Profile
	launcher automation.Launcher
	events   events.Sink
	log      *slog.Logger
}

// NewFlowAdapter creates an adapter named name. Every Check opens its own session from launcher.
func NewFlowAdapter(
	name string,
	profile Profile,
	launcher automation.Launcher,
	sink events.Sink,
	log *slog.Logger,
) *FlowAdapter {
	if sink == nil {
		sink = events.Discard
	}
	if log == nil {
		log = slog.Default()
	}
	return &FlowAdapter{name: name, profile: profile, launcher: launcher, events: sink, log: log}
}

// Name returns the provider name used as the result column header.
func (a *FlowAdapter) Name() string {
	return a.name
}

// Profile returns the effective profile.
func (a *FlowAdapter) Profile() Profile {
	return a.profile
}

// Check runs the flow in a fresh session and always releases it.
func (a *FlowAdapter) Check(ctx context.Context, record models.PincodeRecord) (outcome models.CheckOutcome) {
	started := time.Now()
	run := &checkRun{adapter: a, pincode: record.Value}

	defer func() {
		if rec := recover(); rec != nil {
			outcome = run.fail(ctx, events.StageCheck, fmt.Errorf("panic during check: %v", rec))
		}
		a.events.Emit(ctx, events.Event{
			Pincode:  record.Value,
			Provider: a.name,
			Stage:    events.StageCheck,
			Outcome:  events.OutcomeDone,
			Status:   outcome.Status,
			Address:  outcome.Address,
			Duration: time.Since(started),
		})
	}()

	sess, err := a.launcher.Open(ctx)
	if err != nil {
		return run.fail(ctx, events.StageSession, err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			a.log.WarnContext(ctx, "Failed to close automation session",
				"provider", a.name, "pincode", record.Value, "error", cerr)
		}
	}()

	run.session = sess
	return run.execute(ctx)
}
