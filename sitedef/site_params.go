// Package sitedef describes the storefront under test: where things are, what they are called,
// and what the site is expected to say. None of this is logic of the harness; it is data about an
// external system, and it is kept in one place so it can be checked against the real site.
package sitedef

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

const (
	DefaultBaseURL = "https://4f.com.pl"
	DefaultDomain  = "4f.com.pl"
)

// Site holds the contract data for one storefront.
type Site struct {
	BaseURL string
	Domain  string

	LoginPath   string
	AccountPath string

	ConsentDialogSelector string
	ConsentAcceptSelector string

	EmailInputSelector    string
	PasswordInputSelector string
	LoginButtonSelector   string
	LoginErrorSelector    string

	InvalidCredentialsMessage string
	LockoutMessage            string

	// LockoutThreshold is the number of failed logins after which the site locks the account
	// temporarily and reports LockoutMessage instead of InvalidCredentialsMessage.
	LockoutThreshold int

	Timeouts Timeouts
}

// DefaultSite returns the contract data for the production storefront.
func DefaultSite() Site {
	return Site{
		BaseURL:                   DefaultBaseURL,
		Domain:                    DefaultDomain,
		LoginPath:                 "/customer/account/login",
		AccountPath:               "/customer/account",
		ConsentDialogSelector:     `#CybotCookiebotDialog[style*="display: flex"]`,
		ConsentAcceptSelector:     "#CybotCookiebotDialogBodyLevelButtonLevelOptinAllowAll",
		EmailInputSelector:        `input[name="email"]`,
		PasswordInputSelector:     `input[name="password"]`,
		LoginButtonSelector:       `button[type="submit"]:has-text("Zaloguj")`,
		LoginErrorSelector:        ".errorMessage-errorMessage-4tj",
		InvalidCredentialsMessage: "Podany e-mail lub hasło są niepoprawne",
		LockoutMessage:            "Konto zostało czasowo zablokowane z powodu wielokrotnego nieprawidłowego logowania",
		LockoutThreshold:          20,
	}
}

// WithBaseURL returns a copy of the site served from another base URL. The cookie domain follows
// the URL's host, so that cookies seeded for the site reach the pages the browser visits.
func (s Site) WithBaseURL(baseURL string) (Site, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return s, fmt.Errorf("invalid site URL %q: %w", baseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return s, fmt.Errorf("invalid site URL %q: must be an absolute http or https URL", baseURL)
	}
	s.BaseURL = strings.TrimSuffix(baseURL, "/")
	s.Domain = u.Hostname()
	return s, nil
}

// URL returns the absolute URL of a path on the site.
func (s Site) URL(path string) string {
	return s.BaseURL + path
}

// Timeouts can be overridden field by field from a JSON file; any field that is not defined falls
// back to its default.
type Timeouts struct {
	NavigationMS    ldvalue.OptionalInt `json:"navigationMs,omitempty"`
	ConsentDialogMS ldvalue.OptionalInt `json:"consentDialogMs,omitempty"`
	ConsentClickMS  ldvalue.OptionalInt `json:"consentClickMs,omitempty"`
	LoginRedirectMS ldvalue.OptionalInt `json:"loginRedirectMs,omitempty"`
	AccountCheckMS  ldvalue.OptionalInt `json:"accountCheckMs,omitempty"`
	ActionMS        ldvalue.OptionalInt `json:"actionMs,omitempty"`
	PopupCheckMS    ldvalue.OptionalInt `json:"popupCheckMs,omitempty"`
	ExpectationMS   ldvalue.OptionalInt `json:"expectationMs,omitempty"`
	VisibilityMS    ldvalue.OptionalInt `json:"visibilityMs,omitempty"`
	RetryIntervalMS ldvalue.OptionalInt `json:"retryIntervalMs,omitempty"`
}

func ms(value ldvalue.OptionalInt, defaultMS int) time.Duration {
	return time.Duration(value.OrElse(defaultMS)) * time.Millisecond
}

// Navigation bounds a full page navigation.
func (t Timeouts) Navigation() time.Duration { return ms(t.NavigationMS, 60000) }

// ConsentDialog bounds the wait for the cookie-consent dialog, which often never appears.
func (t Timeouts) ConsentDialog() time.Duration { return ms(t.ConsentDialogMS, 10000) }

func (t Timeouts) ConsentClick() time.Duration { return ms(t.ConsentClickMS, 5000) }

// LoginRedirect bounds the wait for the post-login redirect to the account page.
func (t Timeouts) LoginRedirect() time.Duration { return ms(t.LoginRedirectMS, 15000) }

// AccountCheck bounds navigation to the account page when verifying a restored session.
func (t Timeouts) AccountCheck() time.Duration { return ms(t.AccountCheckMS, 30000) }

// Action bounds a single click or fill.
func (t Timeouts) Action() time.Duration { return ms(t.ActionMS, 5000) }

// PopupCheck bounds the visibility check for each popup rule in an on-demand sweep.
func (t Timeouts) PopupCheck() time.Duration { return ms(t.PopupCheckMS, 500) }

// Expectation bounds waits in assertions, such as waiting for an error message to show up.
func (t Timeouts) Expectation() time.Duration { return ms(t.ExpectationMS, 15000) }

// Visibility bounds a check of whether something is on the page right now.
func (t Timeouts) Visibility() time.Duration { return ms(t.VisibilityMS, 1000) }

// RetryInterval is the pause between navigation attempts.
func (t Timeouts) RetryInterval() time.Duration { return ms(t.RetryIntervalMS, 1000) }

// LoadTimeouts reads timeout overrides from a JSON file.
func LoadTimeouts(path string) (Timeouts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Timeouts{}, err
	}
	var t Timeouts
	if err := json.Unmarshal(data, &t); err != nil {
		return Timeouts{}, fmt.Errorf("malformed timeouts file %s: %w", path, err)
	}
	return t, nil
}
