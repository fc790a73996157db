package storefronttests

import (
	"io"

	"github.com/launchdarkly/storefront-e2e/browser"
	"github.com/launchdarkly/storefront-e2e/fixture"
	"github.com/launchdarkly/storefront-e2e/popups"
	"github.com/launchdarkly/storefront-e2e/session"
	"github.com/launchdarkly/storefront-e2e/storefront"
)

// Fixture names.
const (
	FixtureBrowser             = "browser"
	FixtureBrowserContext      = "browserContext"
	FixturePage                = "page"
	FixturePopupSuppressedPage = "popupSuppressedPage"
	FixtureSessionState        = "sessionState"
	FixtureAuthenticatedPage   = "authenticatedPage"
	FixtureLoginPage           = "loginPage"
	FixtureAccountPage         = "accountPage"
	FixtureProductPage         = "productPage"
	FixtureCartPage            = "cartPage"
)

// NewFixtures builds the fixture graph for a configuration. The graph is layered: browser
// resources, then popup suppression, then authentication, then page objects. Each layer only
// adds to the ones below it.
func NewFixtures(cfg Config) (*fixture.Set, error) {
	browserLayer, err := fixture.New(
		fixture.Descriptor{
			Name:  FixtureBrowser,
			Scope: fixture.ScopeProcess,
			Produce: func(deps *fixture.Deps, use func(interface{})) error {
				driver, err := cfg.Launch()
				if err != nil {
					return err
				}
				use(driver)
				if closer, ok := driver.(io.Closer); ok {
					return closer.Close()
				}
				return nil
			},
		},
		fixture.Descriptor{
			Name: FixtureBrowserContext,
			Deps: []string{FixtureBrowser},
			Produce: func(deps *fixture.Deps, use func(interface{})) error {
				bctx, err := fixture.Value[browser.Driver](deps, FixtureBrowser).NewContext(browser.ContextOptions{
					BaseURL:        cfg.Site.BaseURL,
					DefaultTimeout: cfg.Site.Timeouts.Navigation(),
				})
				if err != nil {
					return err
				}
				use(bctx)
				return bctx.Close()
			},
		},
		fixture.Descriptor{
			Name: FixturePage,
			Deps: []string{FixtureBrowserContext},
			Produce: func(deps *fixture.Deps, use func(interface{})) error {
				page, err := fixture.Value[browser.Context](deps, FixtureBrowserContext).NewPage()
				if err != nil {
					return err
				}
				use(page)
				return page.Close()
			},
		},
	)
	if err != nil {
		return nil, err
	}

	popupLayer, err := fixture.Extend(browserLayer,
		fixture.Descriptor{
			Name: FixturePopupSuppressedPage,
			Deps: []string{FixturePage},
			Produce: func(deps *fixture.Deps, use func(interface{})) error {
				page, err := popups.Wrap(fixture.Value[browser.Page](deps, FixturePage), cfg.Policy, deps.Logger())
				if err != nil {
					return err
				}
				use(page)
				page.Detach()
				return nil
			},
		},
	)
	if err != nil {
		return nil, err
	}

	authLayer, err := fixture.Extend(popupLayer,
		fixture.Descriptor{
			Name:  FixtureSessionState,
			Scope: fixture.ScopeProcess,
			Deps:  []string{FixtureBrowser},
			Produce: func(deps *fixture.Deps, use func(interface{})) error {
				cache := session.NewCache(fixture.Value[browser.Driver](deps, FixtureBrowser), cfg.Credentials,
					cfg.Site, deps.Logger())
				state, _ := cache.Get(cfg.context())
				use(state)
				return nil
			},
		},
		fixture.Descriptor{
			Name: FixtureAuthenticatedPage,
			Deps: []string{FixtureBrowser, FixturePopupSuppressedPage, FixtureSessionState},
			Produce: func(deps *fixture.Deps, use func(interface{})) error {
				bound, err := session.Bind(
					fixture.Value[browser.Driver](deps, FixtureBrowser),
					fixture.Value[*popups.Page](deps, FixturePopupSuppressedPage),
					fixture.Value[browser.SessionState](deps, FixtureSessionState),
					cfg.Site,
					cfg.Policy,
					deps.Logger(),
				)
				if err != nil {
					return err
				}
				use(bound)
				return bound.Close()
			},
		},
	)
	if err != nil {
		return nil, err
	}

	suppressedPage := func(deps *fixture.Deps) browser.Page {
		return fixture.Value[*popups.Page](deps, FixturePopupSuppressedPage)
	}
	authenticatedPage := func(deps *fixture.Deps) browser.Page {
		return fixture.Value[*session.Bound](deps, FixtureAuthenticatedPage).Page()
	}
	pageObject := func(
		name, pageFixture string,
		pageOf func(*fixture.Deps) browser.Page,
		build func(storefront.Base) interface{},
	) fixture.Descriptor {
		return fixture.Descriptor{
			Name: name,
			Deps: []string{pageFixture},
			Produce: func(deps *fixture.Deps, use func(interface{})) error {
				use(build(storefront.NewBase(pageOf(deps), cfg.Site, cfg.ResultsDir, deps.Logger())))
				return nil
			},
		}
	}
	return fixture.Extend(authLayer,
		pageObject(FixtureLoginPage, FixturePopupSuppressedPage, suppressedPage, func(b storefront.Base) interface{} {
			return storefront.NewLoginPage(b)
		}),
		pageObject(FixtureAccountPage, FixtureAuthenticatedPage, authenticatedPage, func(b storefront.Base) interface{} {
			return storefront.NewAccountPage(b)
		}),
		pageObject(FixtureProductPage, FixturePopupSuppressedPage, suppressedPage, func(b storefront.Base) interface{} {
			return storefront.NewProductPage(b)
		}),
		pageObject(FixtureCartPage, FixturePopupSuppressedPage, suppressedPage, func(b storefront.Base) interface{} {
			return storefront.NewCartPage(b)
		}),
	)
}
