// Package automation describes the UI automation capability the provider checks are written
// against. Concrete backends live in the rodriver (Chrome DevTools) and appium (WebDriver)
// subpackages.
package automation

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Strategy names how a Selector value is interpreted.
type Strategy string

const (
	ByCSS             Strategy = "css"
	ByXPath           Strategy = "xpath"
	ByID              Strategy = "id"
	ByClass           Strategy = "class"
	ByAccessibilityID Strategy = "accessibility_id"
)

// Selector locates UI elements on a page or app screen.
type Selector struct {
	By    Strategy `mapstructure:"by"`
	Value string   `mapstructure:"value"`
}

// CSS is shorthand for a CSS selector.
func CSS(value string) Selector { return Selector{By: ByCSS, Value: value} }

// ID is shorthand for an element id (resource id on Android).
func ID(value string) Selector { return Selector{By: ByID, Value: value} }

// Class is shorthand for a class name selector.
func Class(value string) Selector { return Selector{By: ByClass, Value: value} }

// AccessibilityID is shorthand for an accessibility id (content-desc / aria-label).
func AccessibilityID(value string) Selector { return Selector{By: ByAccessibilityID, Value: value} }

// IsZero reports whether the selector is unset.
func (s Selector) IsZero() bool {
	return s.Value == ""
}

func (s Selector) String() string {
	by := s.By
	if by == "" {
		by = ByCSS
	}
	return fmt.Sprintf("%s=%s", by, s.Value)
}

// Errors reported by backends. Implementations wrap their native errors with these so
// callers can decide on recovery with errors.Is.
var (
	ErrElementNotFound  = errors.New("element not found")
	ErrTimeout          = errors.New("timed out waiting for element")
	ErrClickIntercepted = errors.New("click intercepted by another element")
	ErrNotInteractable  = errors.New("element not interactable")
	ErrStaleElement     = errors.New("stale element reference")
	ErrBackend          = errors.New("automation backend unavailable")
	ErrUnsupported      = errors.New("selector strategy not supported")
)

// Element is a handle to a located UI element.
type Element interface {
	Click(ctx context.Context) error
	// ForceClick dispatches a click through script, bypassing overlays.
	ForceClick(ctx context.Context) error
	Clear(ctx context.Context) error
	Type(ctx context.Context, text string) error
	// Submit presses Enter inside the element.
	Submit(ctx context.Context) error
	Text(ctx context.Context) (string, error)
}

// Session is one exclusive automation session (a browser context or an app session).
type Session interface {
	// Navigate loads url. Sessions that start on their own surface treat an empty url as a no-op.
	Navigate(ctx context.Context, url string) error
	// Find waits up to timeout for the first element matching sel.
	Find(ctx context.Context, sel Selector, timeout time.Duration) (Element, error)
	// FindAll waits up to timeout for at least one element matching sel and returns all of them.
	FindAll(ctx context.Context, sel Selector, timeout time.Duration) ([]Element, error)
	// Probe returns the elements currently matching sel without waiting.
	Probe(ctx context.Context, sel Selector) ([]Element, error)
	// Source returns a snapshot of the current page source (HTML for browsers, XML for apps).
	Source(ctx context.Context) (string, error)
	// Close releases the session. It is safe to call more than once.
	Close() error
}

// Launcher opens sessions against one automation backend.
type Launcher interface {
	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
	// Open starts a fresh, isolated session.
	Open(ctx context.Context) (Session, error)
	// Shutdown releases whatever the launcher itself holds.
	Shutdown() error
}

// Recoverable reports whether err is a transient interaction failure worth retrying.
func Recoverable(err error) bool {
	return errors.Is(err, ErrClickIntercepted) ||
		errors.Is(err, ErrNotInteractable) ||
		errors.Is(err, ErrStaleElement)
}
