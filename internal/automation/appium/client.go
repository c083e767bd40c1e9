// Package appium implements the automation capability over the W3C WebDriver protocol
// spoken by an Appium server, for provider checks that drive a mobile app.
package appium

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/UnknownOlympus/pincheck/internal/automation"
	"github.com/go-resty/resty/v2"
)

// elementKey is the W3C web element identifier; legacyElementKey is the JSONWP one.
const (
	elementKey       = "element-6066-11e4-a07c-4813d2c3e4b5"
	legacyElementKey = "ELEMENT"
	enterKey         = "\ue007"
)

const (
	defaultPollInterval   = 500 * time.Millisecond
	defaultCommandTimeout = 60 * time.Second
)

// Config holds the Appium endpoint and desired capabilities.
type Config struct {
	URL            string         // URL of the Appium server, e.g. http://127.0.0.1:4723.
	Capabilities   map[string]any // Capabilities requested for every session.
	PollInterval   time.Duration  // PollInterval between element lookups while waiting.
	CommandTimeout time.Duration  // CommandTimeout bounds a single HTTP command.
}

// Launcher opens WebDriver sessions on an Appium server.
type Launcher struct {
	client       *resty.Client
	capabilities map[string]any
	pollInterval time.Duration
	log          *slog.Logger
}

// NewLauncher creates a launcher for cfg.
func NewLauncher(cfg Config, log *slog.Logger) *Launcher {
	timeout := cfg.CommandTimeout
	if timeout == 0 {
		timeout = defaultCommandTimeout
	}
	interval := cfg.PollInterval
	if interval == 0 {
		interval = defaultPollInterval
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Launcher{
		client:       client,
		capabilities: w3cCapabilities(cfg.Capabilities),
		pollInterval: interval,
		log:          log,
	}
}

// w3cCapabilities adds the appium: vendor prefix to non-standard capability names.
func w3cCapabilities(caps map[string]any) map[string]any {
	standard := map[string]bool{
		"platformName":        true,
		"browserName":         true,
		"browserVersion":      true,
		"acceptInsecureCerts": true,
		"pageLoadStrategy":    true,
		"proxy":               true,
		"timeouts":            true,
	}

	out := make(map[string]any, len(caps))
	for key, val := range caps {
		if !standard[key] && !strings.Contains(key, ":") {
			key = "appium:" + key
		}
		out[key] = val
	}
	return out
}

type envelope struct {
	Value json.RawMessage `json:"value"`
}

type wireError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type statusValue struct {
	Ready   bool   `json:"ready"`
	Message string `json:"message"`
}

type newSessionValue struct {
	SessionID string `json:"sessionId"`
}

// call executes one WebDriver command and decodes its value into out when out is non-nil.
func call(ctx context.Context, client *resty.Client, method, path string, body, out any) error {
	var env envelope
	req := client.R().SetContext(ctx).SetResult(&env).SetError(&env)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %s %s: %w", automation.ErrBackend, method, path, err)
	}

	if resp.IsError() {
		var werr wireError
		_ = json.Unmarshal(env.Value, &werr)
		return wireToError(resp.StatusCode(), werr)
	}

	if out != nil && len(env.Value) > 0 {
		if err = json.Unmarshal(env.Value, out); err != nil {
			return fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return nil
}

func wireToError(status int, werr wireError) error {
	detail := fmt.Sprintf("%s (status %d): %s", werr.Error, status, werr.Message)
	switch werr.Error {
	case "no such element":
		return fmt.Errorf("%w: %s", automation.ErrElementNotFound, detail)
	case "stale element reference":
		return fmt.Errorf("%w: %s", automation.ErrStaleElement, detail)
	case "element click intercepted":
		return fmt.Errorf("%w: %s", automation.ErrClickIntercepted, detail)
	case "element not interactable":
		return fmt.Errorf("%w: %s", automation.ErrNotInteractable, detail)
	case "timeout":
		return fmt.Errorf("%w: %s", automation.ErrTimeout, detail)
	case "invalid session id", "session not created":
		return fmt.Errorf("%w: %s", automation.ErrBackend, detail)
	default:
		return fmt.Errorf("webdriver error %s", detail)
	}
}

// Ping checks the server /status endpoint.
func (l *Launcher) Ping(ctx context.Context) error {
	var status statusValue
	if err := call(ctx, l.client, http.MethodGet, "/status", nil, &status); err != nil {
		return err
	}
	if !status.Ready {
		return fmt.Errorf("%w: server not ready: %s", automation.ErrBackend, status.Message)
	}
	return nil
}

// Open creates a new WebDriver session with the configured capabilities.
func (l *Launcher) Open(ctx context.Context) (automation.Session, error) {
	body := map[string]any{
		"capabilities": map[string]any{
			"alwaysMatch": l.capabilities,
		},
	}

	var created newSessionValue
	if err := call(ctx, l.client, http.MethodPost, "/session", body, &created); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if created.SessionID == "" {
		return nil, fmt.Errorf("%w: empty session id", automation.ErrBackend)
	}
	l.log.DebugContext(ctx, "Appium session created", "session", created.SessionID)

	return &session{
		client:       l.client,
		id:           created.SessionID,
		pollInterval: l.pollInterval,
	}, nil
}

// Shutdown is a no-op; sessions are deleted individually.
func (l *Launcher) Shutdown() error {
	return nil
}

type session struct {
	client       *resty.Client
	id           string
	pollInterval time.Duration
	closeOnce    sync.Once
	closeErr     error
}

func (s *session) path(parts ...string) string {
	return "/session/" + s.id + "/" + strings.Join(parts, "/")
}

func (s *session) Navigate(ctx context.Context, url string) error {
	if url == "" {
		return nil
	}
	return call(ctx, s.client, http.MethodPost, s.path("url"), map[string]string{"url": url}, nil)
}

func locator(sel automation.Selector) (map[string]string, error) {
	var using string
	switch sel.By {
	case automation.ByCSS, "":
		using = "css selector"
	case automation.ByXPath:
		using = "xpath"
	case automation.ByID:
		using = "id"
	case automation.ByClass:
		using = "class name"
	case automation.ByAccessibilityID:
		using = "accessibility id"
	default:
		return nil, fmt.Errorf("%w: %q", automation.ErrUnsupported, sel.By)
	}
	return map[string]string{"using": using, "value": sel.Value}, nil
}

func (s *session) Find(ctx context.Context, sel automation.Selector, timeout time.Duration) (automation.Element, error) {
	body, err := locator(sel)
	if err != nil {
		return nil, err
	}

	var found automation.Element
	err = automation.Poll(ctx, timeout, s.pollInterval, func() (bool, error) {
		var ref map[string]string
		cerr := call(ctx, s.client, http.MethodPost, s.path("element"), body, &ref)
		if errors.Is(cerr, automation.ErrElementNotFound) {
			return false, nil
		}
		if cerr != nil {
			return false, cerr
		}
		found = s.element(ref)
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", sel, err)
	}
	return found, nil
}

func (s *session) FindAll(
	ctx context.Context,
	sel automation.Selector,
	timeout time.Duration,
) ([]automation.Element, error) {
	var found []automation.Element
	err := automation.Poll(ctx, timeout, s.pollInterval, func() (bool, error) {
		elements, perr := s.Probe(ctx, sel)
		if perr != nil {
			return false, perr
		}
		found = elements
		return len(elements) > 0, nil
	})
	if err != nil {
		return nil, fmt.Errorf("find all %s: %w", sel, err)
	}
	return found, nil
}

func (s *session) Probe(ctx context.Context, sel automation.Selector) ([]automation.Element, error) {
	body, err := locator(sel)
	if err != nil {
		return nil, err
	}

	var refs []map[string]string
	if err = call(ctx, s.client, http.MethodPost, s.path("elements"), body, &refs); err != nil {
		return nil, fmt.Errorf("probe %s: %w", sel, err)
	}

	elements := make([]automation.Element, 0, len(refs))
	for _, ref := range refs {
		elements = append(elements, s.element(ref))
	}
	return elements, nil
}

func (s *session) Source(ctx context.Context) (string, error) {
	var source string
	if err := call(ctx, s.client, http.MethodGet, s.path("source"), nil, &source); err != nil {
		return "", fmt.Errorf("page source: %w", err)
	}
	return source, nil
}

func (s *session) Close() error {
	s.closeOnce.Do(func() {
		// Deletion must happen even when the check's context is already cancelled.
		s.closeErr = call(context.Background(), s.client, http.MethodDelete, "/session/"+s.id, nil, nil)
	})
	return s.closeErr
}

func (s *session) element(ref map[string]string) *element {
	id := ref[elementKey]
	if id == "" {
		id = ref[legacyElementKey]
	}
	return &element{session: s, id: id}
}

type element struct {
	session *session
	id      string
}

func (e *element) path(action string) string {
	return e.session.path("element", e.id, action)
}

func (e *element) Click(ctx context.Context) error {
	return call(ctx, e.session.client, http.MethodPost, e.path("click"), struct{}{}, nil)
}

func (e *element) ForceClick(ctx context.Context) error {
	body := map[string]any{
		"script": "mobile: clickGesture",
		"args":   []map[string]string{{"elementId": e.id}},
	}
	return call(ctx, e.session.client, http.MethodPost, e.session.path("execute", "sync"), body, nil)
}

func (e *element) Clear(ctx context.Context) error {
	return call(ctx, e.session.client, http.MethodPost, e.path("clear"), struct{}{}, nil)
}

func (e *element) Type(ctx context.Context, text string) error {
	body := map[string]any{"text": text, "value": strings.Split(text, "")}
	return call(ctx, e.session.client, http.MethodPost, e.path("value"), body, nil)
}

func (e *element) Submit(ctx context.Context) error {
	return e.Type(ctx, enterKey)
}

func (e *element) Text(ctx context.Context) (string, error) {
	var text string
	if err := call(ctx, e.session.client, http.MethodGet, e.path("text"), nil, &text); err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
