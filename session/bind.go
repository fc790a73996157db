package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/launchdarkly/storefront-e2e/browser"
	"github.com/launchdarkly/storefront-e2e/framework"
	"github.com/launchdarkly/storefront-e2e/popups"
	"github.com/launchdarkly/storefront-e2e/sitedef"
)

// Bound is the page a test case uses when it wants to be logged in.
type Bound struct {
	page          *popups.Page
	context       browser.Context
	authenticated bool
}

// Bind returns a page that carries the given session. If there is no session, it returns the base
// page as is, unauthenticated, and creates nothing. Otherwise it restores the session into a new
// context, opens a page there with the same popup policy, and goes to the account page to check
// that the session is still valid. An expired session is logged as a warning; the page is
// returned anyway.
func Bind(
	driver browser.Driver,
	base *popups.Page,
	state browser.SessionState,
	site sitedef.Site,
	policy popups.Policy,
	logger framework.Logger,
) (*Bound, error) {
	if logger == nil {
		logger = framework.NullLogger()
	}
	if len(state) == 0 {
		logger.Printf("No session available; using an unauthenticated page")
		return &Bound{page: base}, nil
	}

	bctx, err := driver.NewContext(browser.ContextOptions{
		BaseURL:        site.BaseURL,
		StorageState:   state,
		DefaultTimeout: site.Timeouts.Navigation(),
	})
	if err != nil {
		return nil, fmt.Errorf("could not restore session: %w", err)
	}
	b := &Bound{context: bctx, authenticated: true}
	raw, err := bctx.NewPage()
	if err != nil {
		return nil, errors.Join(err, bctx.Close())
	}
	if b.page, err = popups.Wrap(raw, policy, logger); err != nil {
		return nil, errors.Join(err, raw.Close(), bctx.Close())
	}
	err = b.page.Goto(site.AccountPath, browser.GotoOptions{
		WaitUntil: browser.WaitUntilDOMContentLoaded,
		Timeout:   site.Timeouts.AccountCheck(),
	})
	if err != nil {
		return nil, errors.Join(err, b.Close())
	}
	if url := b.page.URL(); !strings.Contains(url, site.AccountPath) || strings.Contains(url, site.LoginPath) {
		logger.Printf("WARNING: session may have expired; expected the account page but ended up at %s", url)
	} else {
		logger.Printf("Session restored; on the account page")
	}
	return b, nil
}

func (b *Bound) Page() *popups.Page {
	return b.page
}

// Authenticated returns true if the page was created from a session. It does not guarantee that
// the site still honors the session.
func (b *Bound) Authenticated() bool {
	return b.authenticated
}

// Close closes the page and context that Bind created, if any. The base page is never closed here.
func (b *Bound) Close() error {
	if b.context == nil {
		return nil
	}
	b.page.Detach()
	return errors.Join(b.page.Close(), b.context.Close())
}
