package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/UnknownOlympus/pincheck/internal/automation"
	"github.com/UnknownOlympus/pincheck/internal/events"
	"github.com/UnknownOlympus/pincheck/internal/geocoding"
	"github.com/UnknownOlympus/pincheck/internal/models"
	"github.com/UnknownOlympus/pincheck/internal/provider"
)

// CheckService runs every configured provider adapter over every valid pincode,
// strictly one check at a time, and merges the outcomes per pincode.
type CheckService struct {
	log          *slog.Logger       // Logger for run-level messages
	adapters     []provider.Adapter // Adapters in configured (column) order
	resolver     geocoding.Provider // Resolver is the optional address fallback, may be nil
	events       events.Sink        // Events receives per-pincode and per-check progress
	pincodeDelay time.Duration      // Pause between two pincodes
}

// NewCheckService creates a CheckService. resolver may be nil to disable the address fallback.
func NewCheckService(
	log *slog.Logger,
	adapters []provider.Adapter,
	resolver geocoding.Provider,
	sink events.Sink,
	pincodeDelay time.Duration,
) *CheckService {
	if sink == nil {
		sink = events.Discard
	}
	if log == nil {
		log = slog.Default()
	}
	return &CheckService{
		log:          log,
		adapters:     adapters,
		resolver:     resolver,
		events:       sink,
		pincodeDelay: pincodeDelay,
	}
}

// Providers returns the adapter names in column order.
func (cs *CheckService) Providers() []string {
	names := make([]string, 0, len(cs.adapters))
	for _, a := range cs.adapters {
		names = append(names, a.Name())
	}
	return names
}

// Run checks records in order and returns one result per record processed. When ctx is
// cancelled the run stops before the next pincode and the results completed so far are
// returned.
func (cs *CheckService) Run(ctx context.Context, records []models.PincodeRecord) []models.ServiceabilityResult {
	results := make([]models.ServiceabilityResult, 0, len(records))
	providers := cs.Providers()

	cs.log.InfoContext(ctx, "Check run started", "pincodes", len(records), "providers", providers)

	for idx, record := range records {
		if ctx.Err() != nil {
			cs.log.WarnContext(ctx, "Check run interrupted", "completed", len(results), "remaining", len(records)-idx)
			return results
		}

		results = append(results, cs.checkPincode(ctx, record, providers))

		if idx < len(records)-1 {
			if err := automation.Sleep(ctx, cs.pincodeDelay); err != nil {
				cs.log.WarnContext(ctx, "Check run interrupted", "completed", len(results), "remaining", len(records)-idx-1)
				return results
			}
		}
	}

	cs.log.InfoContext(ctx, "Check run finished", "pincodes", len(results))
	return results
}

// checkPincode runs every adapter for one pincode and merges their addresses.
func (cs *CheckService) checkPincode(
	ctx context.Context,
	record models.PincodeRecord,
	providers []string,
) models.ServiceabilityResult {
	started := time.Now()
	cs.events.Emit(ctx, events.Event{Pincode: record.Value, Stage: events.StagePincode, Outcome: events.OutcomeStarted})

	result := models.NewServiceabilityResult(record, providers)
	candidates := make([]string, 0, len(cs.adapters))

	for _, adapter := range cs.adapters {
		cs.events.Emit(ctx, events.Event{
			Pincode:  record.Value,
			Provider: adapter.Name(),
			Stage:    events.StageCheck,
			Outcome:  events.OutcomeStarted,
		})

		outcome := adapter.Check(ctx, record)
		result.Statuses[adapter.Name()] = outcome.Status
		candidates = append(candidates, outcome.Address)
	}

	result.Address = models.MergeAddress(candidates)
	if result.Address == "" && cs.resolver != nil {
		result.Address = cs.resolveAddress(ctx, record)
	}

	cs.events.Emit(ctx, events.Event{
		Pincode:  record.Value,
		Stage:    events.StagePincode,
		Outcome:  events.OutcomeDone,
		Address:  result.Address,
		Duration: time.Since(started),
	})
	return result
}

// resolveAddress asks the geocoder for the pincode locality; failures leave the address empty.
func (cs *CheckService) resolveAddress(ctx context.Context, record models.PincodeRecord) string {
	address, err := cs.resolver.ResolveAddress(ctx, record.Value)
	if err != nil {
		cs.events.Emit(ctx, events.Event{
			Pincode: record.Value,
			Stage:   events.StageAddress,
			Outcome: events.OutcomeFailed,
			Err:     err,
		})
		return ""
	}

	cs.events.Emit(ctx, events.Event{
		Pincode: record.Value,
		Stage:   events.StageAddress,
		Outcome: events.OutcomeFallback,
		Address: address,
	})
	return address
}
