package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/UnknownOlympus/pincheck/internal/automation"
	"github.com/UnknownOlympus/pincheck/internal/events"
	"github.com/UnknownOlympus/pincheck/internal/models"
)

// checkRun is the state of one Check call.
type checkRun struct {
	adapter *FlowAdapter
	session automation.Session
	pincode string
}

func (r *checkRun) execute(ctx context.Context) models.CheckOutcome {
	p := r.adapter.profile

	if err := r.session.Navigate(ctx, p.URL); err != nil {
		return r.fail(ctx, events.StageSession, err)
	}
	if err := r.activateLocation(ctx); err != nil {
		return r.fail(ctx, events.StageLocation, err)
	}
	r.emit(ctx, events.StageLocation, events.OutcomeOK, nil)

	if err := r.enterPincode(ctx); err != nil {
		return r.fail(ctx, events.StageInput, err)
	}
	r.emit(ctx, events.StageInput, events.OutcomeOK, nil)

	suggestion, found, err := r.selectSuggestion(ctx)
	if err != nil {
		return r.fail(ctx, events.StageSelect, err)
	}
	if !found {
		r.emit(ctx, events.StageSelect, events.OutcomeNoMatch, nil)
		return models.CheckOutcome{Status: models.StatusNoMatch}
	}
	r.emit(ctx, events.StageSelect, events.OutcomeOK, nil)

	if err = r.confirm(ctx); err != nil {
		return r.fail(ctx, events.StageConfirm, err)
	}

	source, err := r.session.Source(ctx)
	if err != nil {
		return r.fail(ctx, events.StageClassify, err)
	}
	status, err := Classify(source, p.NotServiceable, p.Serviceable, p.undetermined())
	if err != nil {
		return r.fail(ctx, events.StageClassify, err)
	}
	r.emit(ctx, events.StageClassify, events.OutcomeOK, nil)

	// A chosen suggestion names the location whatever the page then says about it.
	if p.AddressFromSuggestion && suggestion != "" {
		return models.CheckOutcome{Status: status, Address: suggestion}
	}
	if status != models.StatusServiceable {
		return models.CheckOutcome{Status: status}
	}
	return models.CheckOutcome{Status: status, Address: r.address(ctx)}
}

// activateLocation opens the location picker, retrying transient click failures.
func (r *checkRun) activateLocation(ctx context.Context) error {
	p := r.adapter.profile
	if p.LocationControl.IsZero() {
		return nil
	}

	attempt := 0
	return automation.Retry(ctx, p.Retry, func() error {
		attempt++
		el, err := r.session.Find(ctx, p.LocationControl, p.Timeouts.Element)
		if err != nil {
			return err
		}
		if err = el.Click(ctx); err != nil && automation.Recoverable(err) {
			r.emit(ctx, events.StageLocation, events.OutcomeRetry, fmt.Errorf("attempt %d: %w", attempt, err))
		}
		return err
	})
}

func (r *checkRun) enterPincode(ctx context.Context) error {
	p := r.adapter.profile

	err := r.withRelookup(ctx, events.StageInput, p.Input, func(el automation.Element) error {
		if p.ClickInput {
			if err := el.Click(ctx); err != nil {
				return err
			}
		}
		if err := el.Clear(ctx); err != nil {
			return err
		}
		if err := el.Type(ctx, r.pincode); err != nil {
			return err
		}
		if p.SubmitWithEnter {
			return el.Submit(ctx)
		}
		return nil
	})
	if err != nil {
		return err
	}

	return automation.Sleep(ctx, p.Settle.AfterInput)
}

// selectSuggestion picks the configured suggestion. found is false when the provider
// offered no usable suggestion for the pincode.
func (r *checkRun) selectSuggestion(ctx context.Context) (string, bool, error) {
	p := r.adapter.profile

	items, err := r.session.FindAll(ctx, p.Suggestions, p.Timeouts.Suggestions)
	if errors.Is(err, automation.ErrTimeout) || errors.Is(err, automation.ErrElementNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if len(items) <= p.SuggestionIndex {
		return "", false, nil
	}

	item := items[p.SuggestionIndex]
	var text string
	if p.AddressFromSuggestion {
		// An unreadable suggestion still gets selected; the address falls back later.
		text, _ = item.Text(ctx)
	}

	err = r.click(ctx, events.StageSelect, item)
	if errors.Is(err, automation.ErrStaleElement) {
		r.emit(ctx, events.StageSelect, events.OutcomeRetry, err)
		items, err = r.session.Probe(ctx, p.Suggestions)
		if err != nil {
			return "", false, err
		}
		if len(items) <= p.SuggestionIndex {
			return "", false, fmt.Errorf("suggestion list changed while selecting: %w", automation.ErrStaleElement)
		}
		err = r.click(ctx, events.StageSelect, items[p.SuggestionIndex])
	}
	if err != nil {
		return "", false, err
	}

	if err = automation.Sleep(ctx, p.Settle.AfterSelect); err != nil {
		return "", false, err
	}
	return text, true, nil
}

func (r *checkRun) confirm(ctx context.Context) error {
	p := r.adapter.profile
	if p.Confirm.IsZero() {
		return nil
	}

	err := r.withRelookup(ctx, events.StageConfirm, p.Confirm, func(el automation.Element) error {
		return r.click(ctx, events.StageConfirm, el)
	})
	if err != nil {
		return err
	}
	r.emit(ctx, events.StageConfirm, events.OutcomeOK, nil)

	return automation.Sleep(ctx, p.Settle.AfterConfirm)
}

// address reads the confirmed address of a serviceable location. Failures degrade to
// models.AddressUnknown instead of failing the check.
func (r *checkRun) address(ctx context.Context) string {
	p := r.adapter.profile
	if p.Address.IsZero() {
		return models.AddressUnknown
	}

	el, err := r.session.Find(ctx, p.Address, p.Timeouts.Element)
	if err != nil {
		r.emit(ctx, events.StageAddress, events.OutcomeFallback, err)
		return models.AddressUnknown
	}
	text, err := el.Text(ctx)
	if err != nil || text == "" {
		r.emit(ctx, events.StageAddress, events.OutcomeFallback, err)
		return models.AddressUnknown
	}

	r.emit(ctx, events.StageAddress, events.OutcomeOK, nil)
	return text
}

// click clicks el, falling back to a forced click when something covers it.
func (r *checkRun) click(ctx context.Context, stage events.Stage, el automation.Element) error {
	err := el.Click(ctx)
	if errors.Is(err, automation.ErrClickIntercepted) || errors.Is(err, automation.ErrNotInteractable) {
		r.emit(ctx, stage, events.OutcomeFallback, err)
		return el.ForceClick(ctx)
	}
	return err
}

// withRelookup finds sel and runs act on it. A stale reference triggers exactly one
// fresh lookup and second attempt.
func (r *checkRun) withRelookup(
	ctx context.Context,
	stage events.Stage,
	sel automation.Selector,
	act func(automation.Element) error,
) error {
	timeout := r.adapter.profile.Timeouts.Element

	el, err := r.session.Find(ctx, sel, timeout)
	if err != nil {
		return err
	}
	err = act(el)
	if !errors.Is(err, automation.ErrStaleElement) {
		return err
	}

	r.emit(ctx, stage, events.OutcomeRetry, err)
	if el, err = r.session.Find(ctx, sel, timeout); err != nil {
		return err
	}
	return act(el)
}

func (r *checkRun) fail(ctx context.Context, stage events.Stage, err error) models.CheckOutcome {
	r.emit(ctx, stage, events.OutcomeFailed, err)
	return models.CheckOutcome{Status: models.StatusError}
}

func (r *checkRun) emit(ctx context.Context, stage events.Stage, outcome events.Outcome, err error) {
	r.adapter.events.Emit(ctx, events.Event{
		Pincode:  r.pincode,
		Provider: r.adapter.name,
		Stage:    stage,
		Outcome:  outcome,
		Err:      err,
	})
}
