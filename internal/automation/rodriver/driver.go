// Package rodriver implements the automation capability on top of Chrome DevTools via go-rod.
// One browser is connected per run; every session is an incognito context inside it, so
// cookies and local storage never leak between checks.
package rodriver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/UnknownOlympus/pincheck/internal/automation"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Config holds browser settings.
type Config struct {
	ControlURL        string        // ControlURL is a DevTools websocket URL of an already running browser.
	Bin               string        // Bin is the Chrome binary; empty lets the launcher find or fetch one.
	Headless          bool          // Headless runs a locally launched browser without a window.
	ViewportWidth     int           // ViewportWidth of every page.
	ViewportHeight    int           // ViewportHeight of every page.
	NavigationTimeout time.Duration // NavigationTimeout bounds page loads.
}

const (
	defaultViewportWidth     = 1920
	defaultViewportHeight    = 1080
	defaultNavigationTimeout = 30 * time.Second
)

func (c Config) viewport() (int, int) {
	width, height := c.ViewportWidth, c.ViewportHeight
	if width == 0 {
		width = defaultViewportWidth
	}
	if height == 0 {
		height = defaultViewportHeight
	}
	return width, height
}

func (c Config) navigationTimeout() time.Duration {
	if c.NavigationTimeout == 0 {
		return defaultNavigationTimeout
	}
	return c.NavigationTimeout
}

// Launcher owns the connection to Chrome.
type Launcher struct {
	cfg Config
	log *slog.Logger

	mu      sync.Mutex
	browser *rod.Browser
	local   *launcher.Launcher
}

// NewLauncher creates a launcher; the browser is started or connected lazily.
func NewLauncher(cfg Config, log *slog.Logger) *Launcher {
	return &Launcher{cfg: cfg, log: log}
}

func (l *Launcher) connect(ctx context.Context) (*rod.Browser, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.browser != nil {
		return l.browser, nil
	}

	controlURL := l.cfg.ControlURL
	if controlURL != "" && !strings.HasPrefix(controlURL, "ws") {
		// host:port of a DevTools endpoint; ask it for the websocket URL.
		resolved, err := launcher.ResolveURL(controlURL)
		if err != nil {
			return nil, fmt.Errorf("%w: resolve %s: %w", automation.ErrBackend, controlURL, err)
		}
		controlURL = resolved
	}
	if controlURL == "" {
		local := launcher.New().Headless(l.cfg.Headless)
		if l.cfg.Bin != "" {
			local = local.Bin(l.cfg.Bin)
		}
		url, err := local.Launch()
		if err != nil {
			return nil, fmt.Errorf("%w: launch chrome: %w", automation.ErrBackend, err)
		}
		l.local = local
		controlURL = url
		l.log.DebugContext(ctx, "Launched local Chrome", "control_url", controlURL)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		if l.local != nil {
			l.local.Cleanup()
			l.local = nil
		}
		return nil, fmt.Errorf("%w: connect to chrome: %w", automation.ErrBackend, err)
	}
	l.browser = browser

	return browser, nil
}

// Ping connects if needed and asks the browser for its version.
func (l *Launcher) Ping(ctx context.Context) error {
	browser, err := l.connect(ctx)
	if err != nil {
		return err
	}
	if _, err = browser.Context(ctx).Version(); err != nil {
		return fmt.Errorf("%w: %w", automation.ErrBackend, err)
	}
	return nil
}

// Open creates an incognito context with a single page.
func (l *Launcher) Open(ctx context.Context) (automation.Session, error) {
	browser, err := l.connect(ctx)
	if err != nil {
		return nil, err
	}

	incognito, err := browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("%w: incognito context: %w", automation.ErrBackend, err)
	}

	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = incognito.Close()
		return nil, fmt.Errorf("%w: create page: %w", automation.ErrBackend, err)
	}

	width, height := l.cfg.viewport()
	if err = (proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		l.log.WarnContext(ctx, "Failed to set viewport", "error", err)
	}

	return &session{
		browser:    incognito,
		page:       page,
		navTimeout: l.cfg.navigationTimeout(),
	}, nil
}

// Shutdown closes the browser and removes a locally launched process.
func (l *Launcher) Shutdown() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var err error
	if l.browser != nil {
		// A remote browser is shared with other tools; only the connection is ours.
		if l.local != nil {
			err = l.browser.Close()
		}
		l.browser = nil
	}
	if l.local != nil {
		l.local.Cleanup()
		l.local = nil
	}
	return err
}

type session struct {
	browser    *rod.Browser
	page       *rod.Page
	navTimeout time.Duration
	closeOnce  sync.Once
	closeErr   error
}

func (s *session) Navigate(ctx context.Context, url string) error {
	if url == "" {
		return nil
	}
	page := s.page.Context(ctx).Timeout(s.navTimeout)
	defer page.CancelTimeout()

	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, translate(err))
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait load %s: %w", url, translate(err))
	}
	return nil
}

func (s *session) Find(ctx context.Context, sel automation.Selector, timeout time.Duration) (automation.Element, error) {
	page := s.page.Context(ctx).Timeout(timeout)
	defer page.CancelTimeout()

	var (
		el  *rod.Element
		err error
	)
	switch sel.By {
	case automation.ByXPath:
		el, err = page.ElementX(sel.Value)
	default:
		css, cerr := cssFor(sel)
		if cerr != nil {
			return nil, cerr
		}
		el, err = page.Element(css)
	}
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", sel, translate(err))
	}

	return &element{el: el}, nil
}

func (s *session) FindAll(
	ctx context.Context,
	sel automation.Selector,
	timeout time.Duration,
) ([]automation.Element, error) {
	// Element blocks until the first match appears; the full list is read right after.
	if _, err := s.Find(ctx, sel, timeout); err != nil {
		return nil, err
	}
	return s.Probe(ctx, sel)
}

func (s *session) Probe(ctx context.Context, sel automation.Selector) ([]automation.Element, error) {
	page := s.page.Context(ctx)

	var (
		found rod.Elements
		err   error
	)
	switch sel.By {
	case automation.ByXPath:
		found, err = page.ElementsX(sel.Value)
	default:
		css, cerr := cssFor(sel)
		if cerr != nil {
			return nil, cerr
		}
		found, err = page.Elements(css)
	}
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", sel, translate(err))
	}

	elements := make([]automation.Element, 0, len(found))
	for _, el := range found {
		elements = append(elements, &element{el: el})
	}
	return elements, nil
}

func (s *session) Source(ctx context.Context) (string, error) {
	html, err := s.page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("page source: %w", translate(err))
	}
	return html, nil
}

func (s *session) Close() error {
	s.closeOnce.Do(func() {
		_ = s.page.Close()
		s.closeErr = s.browser.Close()
	})
	return s.closeErr
}

type element struct {
	el *rod.Element
}

// Click presses the left button over the element. A covered element fails with
// ErrClickIntercepted instead of waiting for the overlay to go away.
func (e *element) Click(ctx context.Context) error {
	el := e.el.Context(ctx)
	if err := el.ScrollIntoView(); err != nil {
		return fmt.Errorf("click: %w", translate(err))
	}
	pt, err := el.Interactable()
	if err != nil {
		return fmt.Errorf("click: %w", translate(err))
	}

	mouse := el.Page().Context(ctx).Mouse
	if err = mouse.MoveTo(*pt); err != nil {
		return fmt.Errorf("click: %w", translate(err))
	}
	if err = mouse.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click: %w", translate(err))
	}
	return nil
}

func (e *element) ForceClick(ctx context.Context) error {
	if _, err := e.el.Context(ctx).Eval(`() => this.click()`); err != nil {
		return fmt.Errorf("force click: %w", translate(err))
	}
	return nil
}

func (e *element) Clear(ctx context.Context) error {
	el := e.el.Context(ctx)
	if err := el.SelectAllText(); err != nil {
		return fmt.Errorf("select text: %w", translate(err))
	}
	if err := el.Input(""); err != nil {
		return fmt.Errorf("clear: %w", translate(err))
	}
	return nil
}

func (e *element) Type(ctx context.Context, text string) error {
	if err := e.el.Context(ctx).Input(text); err != nil {
		return fmt.Errorf("type: %w", translate(err))
	}
	return nil
}

func (e *element) Submit(ctx context.Context) error {
	if err := e.el.Context(ctx).Type(input.Enter); err != nil {
		return fmt.Errorf("submit: %w", translate(err))
	}
	return nil
}

func (e *element) Text(ctx context.Context) (string, error) {
	text, err := e.el.Context(ctx).Text()
	if err != nil {
		return "", fmt.Errorf("text: %w", translate(err))
	}
	return strings.TrimSpace(text), nil
}

// cssFor turns non-XPath selectors into CSS.
func cssFor(sel automation.Selector) (string, error) {
	switch sel.By {
	case automation.ByCSS, "":
		return sel.Value, nil
	case automation.ByID:
		return "[id=" + strconv.Quote(sel.Value) + "]", nil
	case automation.ByClass:
		return "." + sel.Value, nil
	case automation.ByAccessibilityID:
		return "[aria-label=" + strconv.Quote(sel.Value) + "]", nil
	default:
		return "", fmt.Errorf("%w: %q", automation.ErrUnsupported, sel.By)
	}
}

// translate maps rod and CDP failures onto the automation error set.
func translate(err error) error {
	var (
		covered     *rod.CoveredError
		notInteract *rod.NotInteractableError
		invisible   *rod.InvisibleShapeError
		noPointer   *rod.NoPointerEventsError
		notFound    *rod.ElementNotFoundError
		objNotFound *rod.ObjectNotFoundError
		protocolErr *cdp.Error
	)

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", automation.ErrTimeout, err)
	case errors.As(err, &covered):
		return fmt.Errorf("%w: %w", automation.ErrClickIntercepted, err)
	case errors.As(err, &notInteract), errors.As(err, &invisible), errors.As(err, &noPointer):
		return fmt.Errorf("%w: %w", automation.ErrNotInteractable, err)
	case errors.As(err, &notFound):
		return fmt.Errorf("%w: %w", automation.ErrElementNotFound, err)
	case errors.As(err, &objNotFound):
		return fmt.Errorf("%w: %w", automation.ErrStaleElement, err)
	case errors.As(err, &protocolErr) && isDetached(protocolErr.Message):
		return fmt.Errorf("%w: %w", automation.ErrStaleElement, err)
	default:
		return err
	}
}

func isDetached(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "detached") || strings.Contains(msg, "could not find node")
}
