package provider

import (
	"errors"
	"fmt"
	"log/slog"

	"dario.cat/mergo"
	"github.com/UnknownOlympus/pincheck/internal/automation"
	"github.com/UnknownOlympus/pincheck/internal/events"
)

// ProviderType identifies a supported provider surface.
type ProviderType string

const (
	// ProviderTypeZeptoWeb is the Zepto website driven through a browser.
	ProviderTypeZeptoWeb ProviderType = "zepto_web"
	// ProviderTypeZeptoApp is the Zepto Android app driven through Appium.
	ProviderTypeZeptoApp ProviderType = "zepto_app"
	// ProviderTypeBlinkit is the Blinkit website.
	ProviderTypeBlinkit ProviderType = "blinkit"
	// ProviderTypeInstamart is the Swiggy Instamart website.
	ProviderTypeInstamart ProviderType = "instamart"
)

// Backend is the automation backend a provider type needs.
type Backend string

const (
	BackendBrowser Backend = "browser"
	BackendApp     Backend = "app"
)

// ErrUnknownProvider is returned for provider types without a built-in profile.
var ErrUnknownProvider = errors.New("unknown provider")

// Types lists the supported provider types in their default order.
func Types() []ProviderType {
	return []ProviderType{ProviderTypeZeptoWeb, ProviderTypeZeptoApp, ProviderTypeBlinkit, ProviderTypeInstamart}
}

// Backend returns the backend the provider type is driven through.
func (t ProviderType) Backend() Backend {
	if t == ProviderTypeZeptoApp {
		return BackendApp
	}
	return BackendBrowser
}

// DisplayName is the column header used in the results file.
func (t ProviderType) DisplayName() string {
	switch t {
	case ProviderTypeZeptoWeb:
		return "Zepto"
	case ProviderTypeZeptoApp:
		return "Zepto App"
	case ProviderTypeBlinkit:
		return "Blinkit"
	case ProviderTypeInstamart:
		return "Instamart"
	default:
		return string(t)
	}
}

// Launchers holds one launcher per backend. Only the backends actually used need to be set.
type Launchers struct {
	Browser automation.Launcher
	App     automation.Launcher
}

// For returns the launcher serving backend, or nil.
func (l Launchers) For(backend Backend) automation.Launcher {
	if backend == BackendApp {
		return l.App
	}
	return l.Browser
}

// ProviderConfig holds everything needed to build one adapter.
type ProviderConfig struct {
	Type      ProviderType
	Override  Profile // Override fields that are set replace the built-in profile's.
	Launchers Launchers
	Events    events.Sink
	Logger    *slog.Logger
}

// NewAdapter builds the adapter for config.Type from its built-in profile merged with
// config.Override.
func NewAdapter(config ProviderConfig) (Adapter, error) {
	profile, err := ResolveProfile(config.Type, config.Override)
	if err != nil {
		return nil, err
	}

	launcher := config.Launchers.For(config.Type.Backend())
	if launcher == nil {
		return nil, fmt.Errorf("no %s launcher configured for provider %s", config.Type.Backend(), config.Type)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return NewFlowAdapter(config.Type.DisplayName(), profile, launcher, config.Events, logger), nil
}

// ResolveProfile merges override over the built-in profile of t and validates the result.
func ResolveProfile(t ProviderType, override Profile) (Profile, error) {
	profile, err := DefaultProfile(t)
	if err != nil {
		return Profile{}, err
	}

	if err = mergo.Merge(&profile, override, mergo.WithOverride); err != nil {
		return Profile{}, fmt.Errorf("failed to apply overrides for provider %s: %w", t, err)
	}
	if err = profile.Validate(); err != nil {
		return Profile{}, fmt.Errorf("provider %s: %w", t, err)
	}

	return profile, nil
}
