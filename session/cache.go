// Package session logs in to the storefront at most once per worker and hands the resulting
// session to test cases that need an authenticated page.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/launchdarkly/storefront-e2e/browser"
	"github.com/launchdarkly/storefront-e2e/framework"
	"github.com/launchdarkly/storefront-e2e/sitedef"
)

const (
	EmailEnvVar    = "USER_EMAIL"
	PasswordEnvVar = "USER_PASSWORD"
)

type Credentials struct {
	Email    string
	Password string
}

// CredentialsFromEnv reads the test account's credentials from the environment. It returns false
// if either variable is unset or empty.
func CredentialsFromEnv() (Credentials, bool) {
	c := Credentials{Email: os.Getenv(EmailEnvVar), Password: os.Getenv(PasswordEnvVar)}
	return c, c.Valid()
}

func (c Credentials) Valid() bool {
	return c.Email != "" && c.Password != ""
}

// Cache runs the login flow the first time a session is asked for, and remembers the outcome for
// the rest of the worker's life, whether it succeeded or not. Each worker has its own Cache.
type Cache struct {
	driver browser.Driver
	creds  Credentials
	site   sitedef.Site
	logger framework.Logger

	lock      sync.Mutex
	attempted bool
	attempts  int
	state     browser.SessionState
}

func NewCache(driver browser.Driver, creds Credentials, site sitedef.Site, logger framework.Logger) *Cache {
	if logger == nil {
		logger = framework.NullLogger()
	}
	return &Cache{driver: driver, creds: creds, site: site, logger: logger}
}

// Get returns the worker's session state, logging in first if that hasn't been tried yet. It
// returns false if there are no credentials or the login did not succeed; callers then proceed
// unauthenticated. Concurrent callers wait for a login that is in progress rather than starting
// another one.
//
// The context is checked between the steps of the login flow. A login that is interrupted by the
// context is not remembered, so a later call with a live context tries again.
func (c *Cache) Get(ctx context.Context) (browser.SessionState, bool) {
	if !c.creds.Valid() {
		c.logger.Printf("No credentials configured; not logging in")
		return nil, false
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.attempted {
		return c.state, c.state != nil
	}
	if err := ctx.Err(); err != nil {
		c.logger.Printf("Not logging in: %s", err)
		return nil, false
	}
	c.attempted = true
	c.attempts++
	c.logger.Printf("Logging in as %s", c.creds.Email)
	state, err := c.login(ctx)
	if err != nil {
		if errors.Is(err, ctx.Err()) {
			c.attempted = false
		}
		c.logger.Printf("Login failed, continuing without a session: %s", err)
		return nil, false
	}
	c.logger.Printf("Login succeeded")
	c.state = state
	return state, true
}

// Attempts returns how many times the login flow has run.
func (c *Cache) Attempts() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.attempts
}

func (c *Cache) login(ctx context.Context) (state browser.SessionState, err error) {
	t := c.site.Timeouts
	bctx, err := c.driver.NewContext(browser.ContextOptions{BaseURL: c.site.BaseURL, DefaultTimeout: t.Navigation()})
	if err != nil {
		return nil, err
	}
	page, err := bctx.NewPage()
	if err != nil {
		if closeErr := bctx.Close(); closeErr != nil {
			c.logger.Printf("Could not close login context: %s", closeErr)
		}
		return nil, err
	}
	defer func() {
		if closeErr := page.Close(); closeErr != nil {
			c.logger.Printf("Could not close login page: %s", closeErr)
		}
		if closeErr := bctx.Close(); closeErr != nil {
			c.logger.Printf("Could not close login context: %s", closeErr)
		}
	}()

	nav := browser.GotoOptions{WaitUntil: browser.WaitUntilDOMContentLoaded, Timeout: t.Navigation()}
	if err := page.Goto("/", nav); err != nil {
		return nil, err
	}
	c.acceptConsent(page)

	if err := interrupted(ctx, "opening the login page"); err != nil {
		return nil, err
	}
	if err := page.Goto(c.site.LoginPath, nav); err != nil {
		return nil, err
	}
	if err := page.Locator(c.site.EmailInputSelector).Fill(c.creds.Email, t.Action()); err != nil {
		return nil, fmt.Errorf("could not enter email: %w", err)
	}
	if err := page.Locator(c.site.PasswordInputSelector).Fill(c.creds.Password, t.Action()); err != nil {
		return nil, fmt.Errorf("could not enter password: %w", err)
	}
	if err := interrupted(ctx, "submitting the login form"); err != nil {
		return nil, err
	}
	if err := page.Locator(c.site.LoginButtonSelector).Click(t.Action()); err != nil {
		return nil, fmt.Errorf("could not submit login form: %w", err)
	}
	if err := page.WaitForURL(c.site.URL(c.site.AccountPath), t.LoginRedirect()); err != nil {
		return nil, fmt.Errorf("login did not reach the account page: %w", err)
	}
	if err := interrupted(ctx, "saving the session"); err != nil {
		return nil, err
	}
	return bctx.StorageState()
}

func interrupted(ctx context.Context, step string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("login interrupted before %s: %w", step, err)
	}
	return nil
}

// acceptConsent dismisses the cookie-consent dialog if it shows up. The dialog often doesn't, so
// nothing here can fail the login.
func (c *Cache) acceptConsent(page browser.Page) {
	t := c.site.Timeouts
	if err := page.Locator(c.site.ConsentDialogSelector).WaitFor(browser.StateVisible, t.ConsentDialog()); err != nil {
		c.logger.Printf("Cookie consent dialog did not appear: %s", err)
		return
	}
	accept := page.Locator(c.site.ConsentAcceptSelector)
	if visible, _ := accept.IsVisible(t.ConsentClick()); !visible {
		return
	}
	if err := accept.Click(t.ConsentClick()); err != nil {
		c.logger.Printf("Could not accept cookie consent: %s", err)
		return
	}
	_ = page.Locator(c.site.ConsentDialogSelector).WaitFor(browser.StateHidden, t.ConsentClick())
}
