package provider_test

import (
	"context"
	"sync"
	"time"

	"github.com/UnknownOlympus/pincheck/internal/automation"
	"github.com/UnknownOlympus/pincheck/internal/events"
)

// fakeElement scripts the responses of one UI element.
type fakeElement struct {
	name      string
	text      string
	textErr   error
	clickErrs []error // clickErrs are returned by successive Click calls.
	forceErr  error
	panicOn   string
	session   *fakeSession
}

func (e *fakeElement) Click(context.Context) error {
	e.session.record("click:" + e.name)
	if e.panicOn == "click" {
		panic("element exploded")
	}
	if len(e.clickErrs) == 0 {
		return nil
	}
	err := e.clickErrs[0]
	e.clickErrs = e.clickErrs[1:]
	return err
}

func (e *fakeElement) ForceClick(context.Context) error {
	e.session.record("force:" + e.name)
	return e.forceErr
}

func (e *fakeElement) Clear(context.Context) error {
	e.session.record("clear:" + e.name)
	return nil
}

func (e *fakeElement) Type(_ context.Context, text string) error {
	e.session.record("type:" + e.name + ":" + text)
	return nil
}

func (e *fakeElement) Submit(context.Context) error {
	e.session.record("submit:" + e.name)
	return nil
}

func (e *fakeElement) Text(context.Context) (string, error) {
	e.session.record("text:" + e.name)
	return e.text, e.textErr
}

// fakeSession serves elements keyed by selector value and records every call.
type fakeSession struct {
	mu        sync.Mutex
	elements  map[string][]*fakeElement
	source    string
	sourceErr error
	navErr    error
	closeErr  error
	calls     []string
	closed    int
}

func newFakeSession() *fakeSession {
	return &fakeSession{elements: map[string][]*fakeElement{}}
}

func (s *fakeSession) add(sel automation.Selector, els ...*fakeElement) *fakeSession {
	for _, el := range els {
		el.session = s
	}
	s.elements[sel.Value] = append(s.elements[sel.Value], els...)
	return s
}

func (s *fakeSession) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

func (s *fakeSession) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *fakeSession) Navigate(_ context.Context, url string) error {
	s.record("navigate:" + url)
	return s.navErr
}

func (s *fakeSession) Find(_ context.Context, sel automation.Selector, _ time.Duration) (automation.Element, error) {
	s.record("find:" + sel.Value)
	els := s.elements[sel.Value]
	if len(els) == 0 {
		return nil, automation.ErrTimeout
	}
	return els[0], nil
}

func (s *fakeSession) FindAll(
	ctx context.Context,
	sel automation.Selector,
	_ time.Duration,
) ([]automation.Element, error) {
	s.record("findall:" + sel.Value)
	els, _ := s.Probe(ctx, sel)
	if len(els) == 0 {
		return nil, automation.ErrTimeout
	}
	return els, nil
}

func (s *fakeSession) Probe(_ context.Context, sel automation.Selector) ([]automation.Element, error) {
	s.record("probe:" + sel.Value)
	out := make([]automation.Element, 0, len(s.elements[sel.Value]))
	for _, el := range s.elements[sel.Value] {
		out = append(out, el)
	}
	return out, nil
}

func (s *fakeSession) Source(context.Context) (string, error) {
	s.record("source")
	return s.source, s.sourceErr
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return s.closeErr
}

type fakeLauncher struct {
	session *fakeSession
	openErr error
	opened  int
}

func (l *fakeLauncher) Ping(context.Context) error { return nil }

func (l *fakeLauncher) Open(context.Context) (automation.Session, error) {
	if l.openErr != nil {
		return nil, l.openErr
	}
	l.opened++
	return l.session, nil
}

func (l *fakeLauncher) Shutdown() error { return nil }

// eventLog collects emitted events.
type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) Emit(_ context.Context, ev events.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) has(stage events.Stage, outcome events.Outcome) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ev := range l.events {
		if ev.Stage == stage && ev.Outcome == outcome {
			return true
		}
	}
	return false
}
