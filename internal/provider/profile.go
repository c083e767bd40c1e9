package provider

import (
	"errors"
	"fmt"
	"time"

	"github.com/UnknownOlympus/pincheck/internal/automation"
	"github.com/UnknownOlympus/pincheck/internal/models"
	"github.com/andybalholm/cascadia"
)

// Timeouts bound the waits of a check.
type Timeouts struct {
	Element     time.Duration `mapstructure:"element"`     // Element bounds waits for controls and inputs.
	Suggestions time.Duration `mapstructure:"suggestions"` // Suggestions bounds the wait for the address list.
}

// Settle holds the fixed delays that let the UI finish asynchronous updates.
type Settle struct {
	AfterInput   time.Duration `mapstructure:"after_input"`
	AfterSelect  time.Duration `mapstructure:"after_select"`
	AfterConfirm time.Duration `mapstructure:"after_confirm"`
}

// Profile is the selector table and timing of one provider surface. Optional selectors
// left empty skip their stage.
type Profile struct {
	URL             string              `mapstructure:"url"`
	LocationControl automation.Selector `mapstructure:"location_control"`
	Input           automation.Selector `mapstructure:"input"`
	ClickInput      bool                `mapstructure:"click_input"`
	SubmitWithEnter bool                `mapstructure:"submit_with_enter"`
	Suggestions     automation.Selector `mapstructure:"suggestions"`
	// SuggestionIndex is the position of the first real suggestion in the list.
	SuggestionIndex       int                 `mapstructure:"suggestion_index"`
	AddressFromSuggestion bool                `mapstructure:"address_from_suggestion"`
	Confirm               automation.Selector `mapstructure:"confirm"`
	// NotServiceable and Serviceable are CSS selectors matched against the page source.
	NotServiceable []string            `mapstructure:"not_serviceable"`
	Serviceable    []string            `mapstructure:"serviceable"`
	Address        automation.Selector `mapstructure:"address"`
	// Undetermined is reported when neither marker is present.
	Undetermined models.Status          `mapstructure:"undetermined"`
	Timeouts     Timeouts               `mapstructure:"timeouts"`
	Settle       Settle                 `mapstructure:"settle"`
	Retry        automation.RetryPolicy `mapstructure:"retry"`
}

// ErrInvalidProfile is returned by Validate.
var ErrInvalidProfile = errors.New("invalid provider profile")

// Validate checks that the mandatory selectors are present and that every marker compiles.
func (p Profile) Validate() error {
	if p.Input.IsZero() {
		return fmt.Errorf("%w: input selector is required", ErrInvalidProfile)
	}
	if p.Suggestions.IsZero() {
		return fmt.Errorf("%w: suggestions selector is required", ErrInvalidProfile)
	}
	if len(p.NotServiceable) == 0 && len(p.Serviceable) == 0 {
		return fmt.Errorf("%w: at least one serviceability marker is required", ErrInvalidProfile)
	}
	if p.SuggestionIndex < 0 {
		return fmt.Errorf("%w: suggestion index must not be negative", ErrInvalidProfile)
	}
	if p.Undetermined != "" && !p.Undetermined.Valid() {
		return fmt.Errorf("%w: unknown undetermined status %q", ErrInvalidProfile, p.Undetermined)
	}

	for _, marker := range append(append([]string{}, p.NotServiceable...), p.Serviceable...) {
		if _, err := cascadia.ParseGroup(marker); err != nil {
			return fmt.Errorf("%w: marker %q: %w", ErrInvalidProfile, marker, err)
		}
	}

	return nil
}

func (p Profile) undetermined() models.Status {
	if p.Undetermined == "" {
		return models.StatusUnknown
	}
	return p.Undetermined
}
