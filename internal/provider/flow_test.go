package provider_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/UnknownOlympus/pincheck/internal/automation"
	"github.com/UnknownOlympus/pincheck/internal/events"
	"github.com/UnknownOlympus/pincheck/internal/models"
	"github.com/UnknownOlympus/pincheck/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	serviceablePage    = `<html><body><div data-testid="delivery-time">10 mins</div></body></html>`
	comingSoonPage     = `<html><body><h3>Coming Soon</h3><div data-testid="delivery-time"></div></body></html>`
	markerlessPage     = `<html><body><div>Welcome</div></body></html>`
	instamartReadyPage = `<html><body><div data-testid="navbar_container__2337995"></div></body></html>`
)

var record = models.PincodeRecord{Value: "562110"}

func quickProfile(t *testing.T, pt provider.ProviderType) provider.Profile {
	t.Helper()
	p, err := provider.DefaultProfile(pt)
	require.NoError(t, err)
	p.Settle = provider.Settle{}
	p.Retry.Delay = 0
	return p
}

func zeptoSession(p provider.Profile, source string) *fakeSession {
	sess := newFakeSession().
		add(p.LocationControl, &fakeElement{name: "location"}).
		add(p.Input, &fakeElement{name: "input"}).
		add(p.Suggestions, &fakeElement{name: "first"}, &fakeElement{name: "second"}).
		add(p.Confirm, &fakeElement{name: "confirm"}).
		add(p.Address, &fakeElement{name: "address", text: "Koramangala, Bengaluru"})
	sess.source = source
	return sess
}

func runCheck(p provider.Profile, launcher *fakeLauncher) (models.CheckOutcome, *eventLog) {
	log := &eventLog{}
	adapter := provider.NewFlowAdapter("Zepto", p, launcher, log, slog.New(slog.DiscardHandler))
	return adapter.Check(context.Background(), record), log
}

func TestFlowAdapter_Check(t *testing.T) {
	t.Run("serviceable with address", func(t *testing.T) {
		p := quickProfile(t, provider.ProviderTypeZeptoWeb)
		sess := zeptoSession(p, serviceablePage)

		outcome, log := runCheck(p, &fakeLauncher{session: sess})

		assert.Equal(t, models.CheckOutcome{Status: models.StatusServiceable, Address: "Koramangala, Bengaluru"}, outcome)
		assert.Equal(t, 1, sess.closed)
		assert.Equal(t, []string{
			"navigate:https://www.zeptonow.com",
			"find:" + p.LocationControl.Value,
			"click:location",
			"find:" + p.Input.Value,
			"clear:input",
			"type:input:562110",
			"findall:" + p.Suggestions.Value,
			"probe:" + p.Suggestions.Value,
			"click:first",
			"find:" + p.Confirm.Value,
			"click:confirm",
			"source",
			"find:" + p.Address.Value,
			"text:address",
		}, sess.Calls())
		assert.True(t, log.has(events.StageCheck, events.OutcomeDone))
	})

	t.Run("not serviceable marker wins and carries no address", func(t *testing.T) {
		p := quickProfile(t, provider.ProviderTypeZeptoWeb)
		sess := zeptoSession(p, comingSoonPage)

		outcome, _ := runCheck(p, &fakeLauncher{session: sess})

		assert.Equal(t, models.CheckOutcome{Status: models.StatusNotServiceable}, outcome)
		assert.NotContains(t, sess.Calls(), "text:address")
	})

	t.Run("no marker is unknown", func(t *testing.T) {
		p := quickProfile(t, provider.ProviderTypeZeptoWeb)

		outcome, _ := runCheck(p, &fakeLauncher{session: zeptoSession(p, markerlessPage)})

		assert.Equal(t, models.CheckOutcome{Status: models.StatusUnknown}, outcome)
	})

	t.Run("empty suggestion list short-circuits", func(t *testing.T) {
		p := quickProfile(t, provider.ProviderTypeZeptoWeb)
		sess := newFakeSession().
			add(p.LocationControl, &fakeElement{name: "location"}).
			add(p.Input, &fakeElement{name: "input"}).
			add(p.Confirm, &fakeElement{name: "confirm"})
		sess.source = serviceablePage

		outcome, log := runCheck(p, &fakeLauncher{session: sess})

		assert.Equal(t, models.CheckOutcome{Status: models.StatusNoMatch}, outcome)
		assert.NotContains(t, sess.Calls(), "find:"+p.Confirm.Value)
		assert.NotContains(t, sess.Calls(), "source")
		assert.True(t, log.has(events.StageSelect, events.OutcomeNoMatch))
		assert.Equal(t, 1, sess.closed)
	})

	t.Run("intercepted location click is retried", func(t *testing.T) {
		p := quickProfile(t, provider.ProviderTypeZeptoWeb)
		sess := zeptoSession(p, serviceablePage)
		sess.elements[p.LocationControl.Value][0].clickErrs = []error{automation.ErrClickIntercepted}

		outcome, log := runCheck(p, &fakeLauncher{session: sess})

		assert.Equal(t, models.StatusServiceable, outcome.Status)
		assert.True(t, log.has(events.StageLocation, events.OutcomeRetry))
	})

	t.Run("exhausted location retries is an error", func(t *testing.T) {
		p := quickProfile(t, provider.ProviderTypeZeptoWeb)
		sess := zeptoSession(p, serviceablePage)
		sess.elements[p.LocationControl.Value][0].clickErrs = []error{
			automation.ErrClickIntercepted,
			automation.ErrClickIntercepted,
		}

		outcome, log := runCheck(p, &fakeLauncher{session: sess})

		assert.Equal(t, models.CheckOutcome{Status: models.StatusError}, outcome)
		assert.True(t, log.has(events.StageLocation, events.OutcomeFailed))
		assert.NotContains(t, sess.Calls(), "find:"+p.Input.Value)
		assert.Equal(t, 1, sess.closed)
	})

	t.Run("missing input is an error", func(t *testing.T) {
		p := quickProfile(t, provider.ProviderTypeZeptoWeb)
		sess := zeptoSession(p, serviceablePage)
		delete(sess.elements, p.Input.Value)

		outcome, log := runCheck(p, &fakeLauncher{session: sess})

		assert.Equal(t, models.StatusError, outcome.Status)
		assert.True(t, log.has(events.StageInput, events.OutcomeFailed))
	})

	t.Run("covered suggestion falls back to forced click", func(t *testing.T) {
		p := quickProfile(t, provider.ProviderTypeZeptoWeb)
		sess := zeptoSession(p, serviceablePage)
		sess.elements[p.Suggestions.Value][0].clickErrs = []error{automation.ErrClickIntercepted}

		outcome, log := runCheck(p, &fakeLauncher{session: sess})

		assert.Equal(t, models.StatusServiceable, outcome.Status)
		assert.Contains(t, sess.Calls(), "force:first")
		assert.True(t, log.has(events.StageSelect, events.OutcomeFallback))
	})

	t.Run("stale suggestion is looked up again once", func(t *testing.T) {
		p := quickProfile(t, provider.ProviderTypeZeptoWeb)
		sess := zeptoSession(p, serviceablePage)
		sess.elements[p.Suggestions.Value][0].clickErrs = []error{automation.ErrStaleElement}

		outcome, _ := runCheck(p, &fakeLauncher{session: sess})

		assert.Equal(t, models.StatusServiceable, outcome.Status)
		clicks := 0
		for _, call := range sess.Calls() {
			if call == "click:first" {
				clicks++
			}
		}
		assert.Equal(t, 2, clicks)
	})

	t.Run("second stale suggestion is an error", func(t *testing.T) {
		p := quickProfile(t, provider.ProviderTypeZeptoWeb)
		sess := zeptoSession(p, serviceablePage)
		sess.elements[p.Suggestions.Value][0].clickErrs = []error{
			automation.ErrStaleElement,
			automation.ErrStaleElement,
		}

		outcome, log := runCheck(p, &fakeLauncher{session: sess})

		assert.Equal(t, models.CheckOutcome{Status: models.StatusError}, outcome)
		assert.True(t, log.has(events.StageSelect, events.OutcomeFailed))
	})

	t.Run("stale confirm button is looked up again", func(t *testing.T) {
		p := quickProfile(t, provider.ProviderTypeZeptoWeb)
		sess := zeptoSession(p, serviceablePage)
		sess.elements[p.Confirm.Value][0].clickErrs = []error{automation.ErrStaleElement}

		outcome, log := runCheck(p, &fakeLauncher{session: sess})

		assert.Equal(t, models.StatusServiceable, outcome.Status)
		assert.True(t, log.has(events.StageConfirm, events.OutcomeRetry))
	})

	t.Run("unreadable address becomes sentinel", func(t *testing.T) {
		p := quickProfile(t, provider.ProviderTypeZeptoWeb)
		sess := zeptoSession(p, serviceablePage)
		sess.elements[p.Address.Value][0].text = ""

		outcome, log := runCheck(p, &fakeLauncher{session: sess})

		assert.Equal(t, models.CheckOutcome{Status: models.StatusServiceable, Address: models.AddressUnknown}, outcome)
		assert.True(t, log.has(events.StageAddress, events.OutcomeFallback))
	})

	t.Run("missing address element becomes sentinel", func(t *testing.T) {
		p := quickProfile(t, provider.ProviderTypeZeptoWeb)
		sess := zeptoSession(p, serviceablePage)
		delete(sess.elements, p.Address.Value)

		outcome, _ := runCheck(p, &fakeLauncher{session: sess})

		assert.Equal(t, models.AddressUnknown, outcome.Address)
	})

	t.Run("snapshot failure is an error", func(t *testing.T) {
		p := quickProfile(t, provider.ProviderTypeZeptoWeb)
		sess := zeptoSession(p, serviceablePage)
		sess.sourceErr = errors.New("target closed")

		outcome, log := runCheck(p, &fakeLauncher{session: sess})

		assert.Equal(t, models.CheckOutcome{Status: models.StatusError}, outcome)
		assert.True(t, log.has(events.StageClassify, events.OutcomeFailed))
	})

	t.Run("navigation failure is an error", func(t *testing.T) {
		p := quickProfile(t, provider.ProviderTypeZeptoWeb)
		sess := zeptoSession(p, serviceablePage)
		sess.navErr = errors.New("net::ERR_NAME_NOT_RESOLVED")

		outcome, _ := runCheck(p, &fakeLauncher{session: sess})

		assert.Equal(t, models.StatusError, outcome.Status)
		assert.Equal(t, 1, sess.closed)
	})

	t.Run("session open failure is an error", func(t *testing.T) {
		p := quickProfile(t, provider.ProviderTypeZeptoWeb)

		outcome, log := runCheck(p, &fakeLauncher{openErr: automation.ErrBackend})

		assert.Equal(t, models.CheckOutcome{Status: models.StatusError}, outcome)
		assert.True(t, log.has(events.StageSession, events.OutcomeFailed))
	})

	t.Run("panic is contained and session closed", func(t *testing.T) {
		p := quickProfile(t, provider.ProviderTypeZeptoWeb)
		sess := zeptoSession(p, serviceablePage)
		sess.elements[p.LocationControl.Value][0].panicOn = "click"

		var outcome models.CheckOutcome
		require.NotPanics(t, func() {
			outcome, _ = runCheck(p, &fakeLauncher{session: sess})
		})

		assert.Equal(t, models.StatusError, outcome.Status)
		assert.Equal(t, 1, sess.closed)
	})
}

func TestFlowAdapter_Profiles(t *testing.T) {
	t.Run("instamart submits and takes the suggestion as address", func(t *testing.T) {
		p := quickProfile(t, provider.ProviderTypeInstamart)
		sess := newFakeSession().
			add(p.Input, &fakeElement{name: "input"}).
			add(p.Suggestions, &fakeElement{name: "suggestion", text: "Indiranagar, Bengaluru, Karnataka"})
		sess.source = instamartReadyPage

		outcome, _ := runCheck(p, &fakeLauncher{session: sess})

		assert.Equal(t, models.CheckOutcome{
			Status:  models.StatusServiceable,
			Address: "Indiranagar, Bengaluru, Karnataka",
		}, outcome)
		assert.Contains(t, sess.Calls(), "submit:input")
		assert.Equal(t, "navigate:https://www.swiggy.com/", sess.Calls()[0])
	})

	t.Run("instamart without markers is unconfirmed", func(t *testing.T) {
		p := quickProfile(t, provider.ProviderTypeInstamart)
		sess := newFakeSession().
			add(p.Input, &fakeElement{name: "input"}).
			add(p.Suggestions, &fakeElement{name: "suggestion", text: "Fort, Mumbai"})
		sess.source = markerlessPage

		outcome, _ := runCheck(p, &fakeLauncher{session: sess})

		assert.Equal(t, models.CheckOutcome{Status: models.StatusUnconfirmed, Address: "Fort, Mumbai"}, outcome)
	})

	t.Run("instamart keeps the suggestion when not serviceable", func(t *testing.T) {
		p := quickProfile(t, provider.ProviderTypeInstamart)
		sess := newFakeSession().
			add(p.Input, &fakeElement{name: "input"}).
			add(p.Suggestions, &fakeElement{name: "suggestion", text: "Leh, Ladakh"})
		sess.source = `<html><body><div class="brPPUG">Location Unserviceable</div></body></html>`

		outcome, _ := runCheck(p, &fakeLauncher{session: sess})

		assert.Equal(t, models.CheckOutcome{Status: models.StatusNotServiceable, Address: "Leh, Ladakh"}, outcome)
	})

	t.Run("zepto app skips the header row", func(t *testing.T) {
		p := quickProfile(t, provider.ProviderTypeZeptoApp)
		sess := newFakeSession().
			add(p.LocationControl, &fakeElement{name: "location"}).
			add(p.Input, &fakeElement{name: "input"}).
			add(p.Suggestions, &fakeElement{name: "header"}, &fakeElement{name: "real"}).
			add(p.Confirm, &fakeElement{name: "confirm"})
		sess.source = `<hierarchy><android.view.View resource-id="00000000-0000-0003-ffff-ffff00000515"/></hierarchy>`

		outcome, _ := runCheck(p, &fakeLauncher{session: sess})

		assert.Equal(t, models.CheckOutcome{Status: models.StatusServiceable, Address: models.AddressUnknown}, outcome)
		assert.Contains(t, sess.Calls(), "click:input")
		assert.Contains(t, sess.Calls(), "click:real")
		assert.NotContains(t, sess.Calls(), "click:header")
		assert.Equal(t, "navigate:", sess.Calls()[0])
	})

	t.Run("zepto app with only the header row is no match", func(t *testing.T) {
		p := quickProfile(t, provider.ProviderTypeZeptoApp)
		sess := newFakeSession().
			add(p.LocationControl, &fakeElement{name: "location"}).
			add(p.Input, &fakeElement{name: "input"}).
			add(p.Suggestions, &fakeElement{name: "header"})

		outcome, _ := runCheck(p, &fakeLauncher{session: sess})

		assert.Equal(t, models.CheckOutcome{Status: models.StatusNoMatch}, outcome)
	})

	t.Run("blinkit reads the location bar", func(t *testing.T) {
		p := quickProfile(t, provider.ProviderTypeBlinkit)
		sess := newFakeSession().
			add(p.Input, &fakeElement{name: "input"}).
			add(p.Suggestions, &fakeElement{name: "suggestion"}).
			add(p.Address, &fakeElement{name: "bar", text: "Fort, Mumbai, Maharashtra"})
		sess.source = `<html><body><div class="LocationBar__Subtitle-sc-x8ezho-10">Fort</div></body></html>`

		outcome, _ := runCheck(p, &fakeLauncher{session: sess})

		assert.Equal(t, models.CheckOutcome{Status: models.StatusServiceable, Address: "Fort, Mumbai, Maharashtra"}, outcome)
		assert.NotContains(t, sess.Calls(), "find:"+p.LocationControl.Value)
	})
}

func TestNewFlowAdapter_NilLoggerAndSink(t *testing.T) {
	p := quickProfile(t, provider.ProviderTypeZeptoWeb)
	sess := zeptoSession(p, serviceablePage)
	sess.closeErr = errors.New("session already gone")

	adapter := provider.NewFlowAdapter("Zepto", p, &fakeLauncher{session: sess}, nil, nil)

	var outcome models.CheckOutcome
	require.NotPanics(t, func() {
		outcome = adapter.Check(context.Background(), record)
	})
	assert.Equal(t, models.StatusServiceable, outcome.Status)
	assert.Equal(t, 1, sess.closed)
}
