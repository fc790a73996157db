// Package storefront has page objects for the parts of the storefront that the suite exercises.
//
// Every page object is built on Base, which knows how to navigate, take screenshots, and use the
// account menu and cart controls that appear in the header of every page.
package storefront

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/launchdarkly/storefront-e2e/browser"
	"github.com/launchdarkly/storefront-e2e/framework"
	"github.com/launchdarkly/storefront-e2e/sitedef"
)

// Selectors for the header controls that every page has.
const (
	CartCounterSelector        = `button[aria-label="Mini Cart"] .itemsCount-root-b6q span, .counter-number`
	MiniCartButtonSelector     = `role=button[name="Mini Cart"]`
	MiniCartCloseSelector      = ".miniCart-closeButton-D17"
	AccountMenuSelector        = `role=button[name="Moje Konto"]`
	LogoutButtonSelector       = `role=button[name="Wyloguj się"]`
	LogoutConfirmationSelector = "text=Wylogowałeś się i zostaniesz"
)

const (
	miniCartItemsSelector   = ".minicart-items"
	miniCartBodySelector    = ".minicart-items-wrapper, .miniCart-body-Aqj"
	miniCartProductSelector = ".product-item-name, .miniCart-name-Aqj"

	navigationAttempts = 3
)

var (
	firstNumber        = regexp.MustCompile(`\d+`)
	unsafeFileNameChar = regexp.MustCompile(`[^A-Za-z0-9_-]+`)
)

// Base holds what every page object needs. Page objects embed it by value.
type Base struct {
	Page       browser.Page
	Site       sitedef.Site
	ResultsDir string
	Logger     framework.Logger
}

func NewBase(page browser.Page, site sitedef.Site, resultsDir string, logger framework.Logger) Base {
	if logger == nil {
		logger = framework.NullLogger()
	}
	return Base{Page: page, Site: site, ResultsDir: resultsDir, Logger: logger}
}

// Goto navigates to a path on the site. Navigation is retried, with a fixed pause, up to three
// attempts in all; nothing else in the harness retries automatically.
func (b Base) Goto(path string) error {
	opts := browser.GotoOptions{WaitUntil: browser.WaitUntilDOMContentLoaded, Timeout: b.Site.Timeouts.Navigation()}
	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(b.Site.Timeouts.RetryInterval()), navigationAttempts-1)
	attempt := 0
	return backoff.RetryNotify(
		func() error {
			attempt++
			return b.Page.Goto(path, opts)
		},
		policy,
		func(err error, _ time.Duration) {
			b.Logger.Printf("Navigation attempt %d of %d to %s failed: %s", attempt, navigationAttempts, path, err)
		},
	)
}

// WaitForURL waits for the page to arrive at a path on the site.
func (b Base) WaitForURL(path string) error {
	return b.Page.WaitForURL(b.Site.URL(path), b.Site.Timeouts.LoginRedirect())
}

func (b Base) URL() string {
	return b.Page.URL()
}

// Screenshot saves a screenshot as <name>.png in the results directory. Characters that don't
// belong in a file name are replaced with underscores.
func (b Base) Screenshot(name string) error {
	if err := os.MkdirAll(b.ResultsDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(b.ResultsDir, unsafeFileNameChar.ReplaceAllString(name, "_")+".png")
	if err := b.Page.Screenshot(path); err != nil {
		return fmt.Errorf("could not save screenshot %s: %w", path, err)
	}
	b.Logger.Printf("Saved screenshot %s", path)
	return nil
}

func (b Base) OpenAccountMenu() error {
	return b.Page.Locator(AccountMenuSelector).Click(b.Site.Timeouts.Action())
}

func (b Base) ClickLogout() error {
	return b.Page.Locator(LogoutButtonSelector).Click(b.Site.Timeouts.Action())
}

// WaitForCartUpdate waits for the cart counter in the header to show up, which it does once the
// cart has anything in it.
func (b Base) WaitForCartUpdate() error {
	return b.Page.Locator(CartCounterSelector).WaitFor(browser.StateVisible, b.Site.Timeouts.Expectation())
}

// CartCount reads the number of items shown on the cart icon. Some layouts have no separate
// counter, in which case the number is taken from the mini cart button's label.
func (b Base) CartCount() (int, error) {
	t := b.Site.Timeouts
	counter := b.Page.Locator(CartCounterSelector)
	if err := counter.WaitFor(browser.StateVisible, t.Visibility()); err == nil {
		text, err := counter.TextContent(t.Action())
		if err != nil {
			return 0, err
		}
		return parseCount(text)
	}
	button := b.Page.Locator(MiniCartButtonSelector)
	if err := button.WaitFor(browser.StateVisible, t.Visibility()); err != nil {
		return 0, fmt.Errorf("neither the cart counter nor the mini cart button is visible: %w", err)
	}
	text, err := button.TextContent(t.Action())
	if err != nil {
		return 0, err
	}
	if m := firstNumber.FindString(text); m != "" {
		return strconv.Atoi(m)
	}
	return 0, nil
}

func parseCount(text string) (int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("cart counter shows %q, not a number", text)
	}
	return n, nil
}

// OpenMiniCart opens the mini cart and waits for its contents, in whichever layout the site uses.
func (b Base) OpenMiniCart() error {
	t := b.Site.Timeouts
	if err := b.Page.Locator(MiniCartButtonSelector).Click(t.Action()); err != nil {
		return err
	}
	if err := b.Page.Locator(miniCartItemsSelector).WaitFor(browser.StateVisible, t.Action()); err == nil {
		return nil
	}
	return b.Page.Locator(miniCartBodySelector).WaitFor(browser.StateVisible, t.Action())
}

// CloseMiniCart closes the mini cart if it is open.
func (b Base) CloseMiniCart() error {
	t := b.Site.Timeouts
	closeButton := b.Page.Locator(MiniCartCloseSelector)
	if visible, _ := closeButton.IsVisible(t.Visibility()); !visible {
		return nil
	}
	return closeButton.Click(t.Action())
}

func (b Base) MiniCartProductName() (string, error) {
	loc := b.Page.Locator(miniCartProductSelector)
	if err := loc.WaitFor(browser.StateVisible, b.Site.Timeouts.Action()); err != nil {
		return "", err
	}
	return loc.TextContent(b.Site.Timeouts.Action())
}
