package storefronttests

import (
	"context"
	"fmt"

	"github.com/stretchr/testify/require"

	"github.com/launchdarkly/storefront-e2e/browser"
	"github.com/launchdarkly/storefront-e2e/fixture"
	"github.com/launchdarkly/storefront-e2e/framework"
	"github.com/launchdarkly/storefront-e2e/popups"
	"github.com/launchdarkly/storefront-e2e/session"
	"github.com/launchdarkly/storefront-e2e/sitedef"
	"github.com/launchdarkly/storefront-e2e/storefront"
)

// Config is everything the suite needs to know about its environment.
type Config struct {
	// Launch starts a browser. It is called once by each worker. If the returned driver is an
	// io.Closer, it is closed when the worker finishes.
	Launch func() (browser.Driver, error)

	// Context bounds work done on behalf of a whole worker, such as logging in. If nil, that work
	// is not cancelled.
	Context context.Context

	Site        sitedef.Site
	Policy      popups.Policy
	Credentials session.Credentials
	ResultsDir  string
}

func (c Config) context() context.Context {
	if c.Context == nil {
		return context.Background()
	}
	return c.Context
}

type environment struct {
	config  Config
	process *fixture.Process
}

// T represents a test or subtest in the storefront test suite.
//
// It implements the same basic functionality as Go's testing.T, but in an environment that is outside
// of the Go test runner, with the extra features provided by our lower-level framework package.
//
// Every T has its own fixture scope. The accessor methods create fixtures on first use; whatever was
// created is torn down, in reverse order, when the test finishes, before its result is recorded. If
// a fixture can't be created, the test fails and exits immediately; other tests are unaffected.
//
// To make test assertions, you can use the assert and require packages, passing the *T as if it were
// a *testing.T.
type T struct {
	context  *framework.Context
	env      *environment
	fixtures *fixture.Case
}

func newTestScope(c *framework.Context, env *environment) *T {
	t := &T{
		context:  c,
		env:      env,
		fixtures: env.process.NewCase(c.ID().String(), c.DebugLogger()),
	}
	c.Defer(func() {
		if err := t.fixtures.Close(); err != nil {
			t.Errorf("fixture teardown failed: %s", err)
		}
	})
	return t
}

// Errorf is called by assertions to log a test failure. It does not cause an immediate exit.
func (t *T) Errorf(format string, args ...interface{}) {
	t.context.Errorf(format, args...)
}

// FailNow is called by assertions when a test should fail and immediately exit. The methods in
// the require package call FailNow.
func (t *T) FailNow() {
	t.context.FailNow()
}

// Run runs a subtest. This is equivalent to the Run method of testing.T.
//
// The specified function receives a new T instance, with its own fixtures.
func (t *T) Run(name string, action func(*T)) {
	t.context.Run(name, func(c *framework.Context) {
		action(newTestScope(c, t.env))
	})
}

// Debug logs some debug output for the test. The output will be passed to the test logger at
// the end of the test.
func (t *T) Debug(format string, args ...interface{}) {
	t.context.Debug(format, args...)
}

// Site returns the contract data of the site under test.
func (t *T) Site() sitedef.Site {
	return t.env.config.Site
}

// Credentials returns the test account's credentials, which may be empty.
func (t *T) Credentials() session.Credentials {
	return t.env.config.Credentials
}

// RequireCredentials skips this test if no test account is configured.
func (t *T) RequireCredentials() {
	if !t.env.config.Credentials.Valid() {
		t.context.SkipWithReason(fmt.Sprintf("%s and %s are not set", session.EmailEnvVar, session.PasswordEnvVar))
	}
}

func requireFixture[V any](t *T, name string) V {
	v, err := fixture.Get[V](t.fixtures, name)
	require.NoError(t, err, "fixture %q is unavailable", name)
	return v
}

// BrowserContext returns a fresh browsing context for this test.
func (t *T) BrowserContext() browser.Context {
	return requireFixture[browser.Context](t, FixtureBrowserContext)
}

// PopupSuppressedPage returns this test's page, with popup suppression installed.
func (t *T) PopupSuppressedPage() *popups.Page {
	return requireFixture[*popups.Page](t, FixturePopupSuppressedPage)
}

// SessionState returns the worker's login session, or nil if there is none.
func (t *T) SessionState() browser.SessionState {
	return requireFixture[browser.SessionState](t, FixtureSessionState)
}

// AuthenticatedPage returns a page carrying the worker's login session if there is one, or else
// the page returned by PopupSuppressedPage.
func (t *T) AuthenticatedPage() *session.Bound {
	return requireFixture[*session.Bound](t, FixtureAuthenticatedPage)
}

func (t *T) LoginPage() *storefront.LoginPage {
	return requireFixture[*storefront.LoginPage](t, FixtureLoginPage)
}

// AccountPage returns the account page object, on the page returned by AuthenticatedPage.
func (t *T) AccountPage() *storefront.AccountPage {
	return requireFixture[*storefront.AccountPage](t, FixtureAccountPage)
}

func (t *T) ProductPage() *storefront.ProductPage {
	return requireFixture[*storefront.ProductPage](t, FixtureProductPage)
}

func (t *T) CartPage() *storefront.CartPage {
	return requireFixture[*storefront.CartPage](t, FixtureCartPage)
}
