package provider

import (
	"fmt"
	"time"

	"github.com/UnknownOlympus/pincheck/internal/automation"
	"github.com/UnknownOlympus/pincheck/internal/models"
)

var defaultRetry = automation.RetryPolicy{Attempts: 2, Delay: time.Second}

// DefaultProfile returns the built-in profile of t.
func DefaultProfile(t ProviderType) (Profile, error) {
	switch t {
	case ProviderTypeZeptoWeb:
		return zeptoWebProfile(), nil
	case ProviderTypeZeptoApp:
		return zeptoAppProfile(), nil
	case ProviderTypeBlinkit:
		return blinkitProfile(), nil
	case ProviderTypeInstamart:
		return instamartProfile(), nil
	default:
		return Profile{}, fmt.Errorf("%w: %s", ErrUnknownProvider, t)
	}
}

func zeptoWebProfile() Profile {
	return Profile{
		URL:             "https://www.zeptonow.com",
		LocationControl: automation.CSS(`button[aria-label="Select Location"]`),
		Input:           automation.CSS(`input[type="text"]`),
		Suggestions:     automation.CSS(`[data-testid="address-search-item"]`),
		Confirm:         automation.CSS(`[data-testid="location-confirm-btn"]`),
		NotServiceable:  []string{`*:containsOwn("Coming Soon")`},
		Serviceable:     []string{`[data-testid="delivery-time"]`},
		Address:         automation.CSS(`[data-testid="user-address"]`),
		Undetermined:    models.StatusUnknown,
		Timeouts:        Timeouts{Element: 15 * time.Second, Suggestions: 15 * time.Second},
		Settle:          Settle{AfterInput: 2 * time.Second, AfterConfirm: 3 * time.Second},
		Retry:           defaultRetry,
	}
}

// zeptoAppProfile targets the Android app. Its suggestion list carries a header row at index 0.
func zeptoAppProfile() Profile {
	return Profile{
		LocationControl: automation.ID("com.zeptoconsumerapp:id/select-your-location-manually"),
		Input:           automation.ID("com.zeptoconsumerapp:id/search-new-address-test-input"),
		ClickInput:      true,
		Suggestions:     automation.Class("android.view.ViewGroup"),
		SuggestionIndex: 1,
		Confirm:         automation.AccessibilityID("Confirm & Continue"),
		NotServiceable:  []string{`[resource-id="00000000-0000-0003-ffff-ffff000003b2"]`},
		Serviceable:     []string{`[resource-id="00000000-0000-0003-ffff-ffff00000515"]`},
		Undetermined:    models.StatusUnknown,
		Timeouts:        Timeouts{Element: 15 * time.Second, Suggestions: 15 * time.Second},
		Settle:          Settle{AfterInput: 2 * time.Second, AfterConfirm: 4 * time.Second},
		Retry:           defaultRetry,
	}
}

func blinkitProfile() Profile {
	return Profile{
		URL:            "https://www.blinkit.com",
		Input:          automation.Class("LocationSearchBox__InputSelect-sc-1k8u6a6-0"),
		Suggestions:    automation.Class("LocationSearchList__LocationListContainer-sc-93rfr7-0"),
		NotServiceable: []string{".non-serviceable-step"},
		Serviceable:    []string{".LocationBar__Subtitle-sc-x8ezho-10"},
		Address:        automation.Class("LocationBar__Subtitle-sc-x8ezho-10"),
		Undetermined:   models.StatusUnknown,
		Timeouts:       Timeouts{Element: 10 * time.Second, Suggestions: 10 * time.Second},
		Settle:         Settle{AfterInput: 2 * time.Second, AfterSelect: 2 * time.Second},
		Retry:          defaultRetry,
	}
}

// instamartProfile has no confirm step, so a page without markers is only Unconfirmed.
func instamartProfile() Profile {
	return Profile{
		URL:                   "https://www.swiggy.com/",
		Input:                 automation.ID("location"),
		SubmitWithEnter:       true,
		Suggestions:           automation.Class("_2BgUI"),
		AddressFromSuggestion: true,
		NotServiceable: []string{
			`.brPPUG:contains("Location Unserviceable")`,
			`.ewYGxs:contains("services here")`,
		},
		Serviceable:  []string{`div[data-testid="navbar_container__2337995"]`},
		Undetermined: models.StatusUnconfirmed,
		Timeouts:     Timeouts{Element: 15 * time.Second, Suggestions: 15 * time.Second},
		Settle:       Settle{AfterSelect: 5 * time.Second},
		Retry:        defaultRetry,
	}
}
