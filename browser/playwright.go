package browser

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
)

type LaunchOptions struct {
	Headless bool

	// Install downloads the Chromium build that Playwright needs, if it is not already present.
	Install bool
}

// PlaywrightDriver is a Driver backed by a Chromium instance controlled through Playwright.
type PlaywrightDriver struct {
	pw      *playwright.Playwright
	browser playwright.Browser
}

// Launch starts Playwright and a Chromium browser.
func Launch(opts LaunchOptions) (*PlaywrightDriver, error) {
	if opts.Install {
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
			return nil, fmt.Errorf("could not install playwright: %w", err)
		}
	}
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("could not start playwright: %w", err)
	}
	b, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("could not launch browser (headless=%v): %w", opts.Headless, err)
	}
	return &PlaywrightDriver{pw: pw, browser: b}, nil
}

func (d *PlaywrightDriver) NewContext(opts ContextOptions) (Context, error) {
	options := playwright.BrowserNewContextOptions{}
	if opts.BaseURL != "" {
		options.BaseURL = playwright.String(opts.BaseURL)
	}
	if len(opts.StorageState) != 0 {
		var state playwright.OptionalStorageState
		if err := json.Unmarshal(opts.StorageState, &state); err != nil {
			return nil, fmt.Errorf("malformed session state: %w", err)
		}
		options.StorageState = &state
	}
	ctx, err := d.browser.NewContext(options)
	if err != nil {
		return nil, fmt.Errorf("could not create browser context: %w", err)
	}
	if opts.DefaultTimeout > 0 {
		ctx.SetDefaultTimeout(millis(opts.DefaultTimeout))
		ctx.SetDefaultNavigationTimeout(millis(opts.DefaultTimeout))
	}
	return &pwContext{ctx: ctx}, nil
}

// Close shuts down the browser and then Playwright itself.
func (d *PlaywrightDriver) Close() error {
	return errors.Join(d.browser.Close(), d.pw.Stop())
}

type pwContext struct {
	ctx playwright.BrowserContext
}

func (c *pwContext) NewPage() (Page, error) {
	p, err := c.ctx.NewPage()
	if err != nil {
		return nil, fmt.Errorf("could not create page: %w", err)
	}
	return &pwPage{page: p, owner: c}, nil
}

func (c *pwContext) AddCookies(cookies []Cookie) error {
	optional := make([]playwright.OptionalCookie, 0, len(cookies))
	for _, ck := range cookies {
		optional = append(optional, playwright.OptionalCookie{
			Name:   ck.Name,
			Value:  ck.Value,
			Domain: playwright.String(ck.Domain),
			Path:   playwright.String(ck.Path),
		})
	}
	return translateError(c.ctx.AddCookies(optional))
}

func (c *pwContext) StorageState() (SessionState, error) {
	state, err := c.ctx.StorageState()
	if err != nil {
		return nil, translateError(err)
	}
	data, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	return SessionState(data), nil
}

func (c *pwContext) Close() error {
	return translateError(c.ctx.Close())
}

type pwPage struct {
	page  playwright.Page
	owner *pwContext
}

func (p *pwPage) Context() Context { return p.owner }

func (p *pwPage) Goto(url string, opts GotoOptions) error {
	options := playwright.PageGotoOptions{}
	if opts.WaitUntil != "" {
		waitUntil := playwright.WaitUntilState(opts.WaitUntil)
		options.WaitUntil = &waitUntil
	}
	if opts.Timeout > 0 {
		options.Timeout = playwright.Float(millis(opts.Timeout))
	}
	if _, err := p.page.Goto(url, options); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, translateError(err))
	}
	return nil
}

func (p *pwPage) URL() string { return p.page.URL() }

func (p *pwPage) WaitForURL(url string, timeout time.Duration) error {
	return translateError(p.page.WaitForURL(url, playwright.PageWaitForURLOptions{
		Timeout: playwright.Float(millis(timeout)),
	}))
}

func (p *pwPage) Locator(selector string) Locator {
	return pwLocator{loc: p.page.Locator(selector).First()}
}

func (p *pwPage) Route(pattern string, handler func(Route)) error {
	return translateError(p.page.Route(pattern, func(r playwright.Route) {
		handler(pwRoute{route: r})
	}))
}

func (p *pwPage) AddInitScript(script string) error {
	return translateError(p.page.AddInitScript(playwright.Script{Content: playwright.String(script)}))
}

// OnLoad runs the handler on its own goroutine, because calling back into Playwright from inside an
// event callback would block the event dispatcher.
func (p *pwPage) OnLoad(handler func()) {
	p.page.OnLoad(func(playwright.Page) {
		go handler()
	})
}

func (p *pwPage) Screenshot(path string) error {
	_, err := p.page.Screenshot(playwright.PageScreenshotOptions{Path: playwright.String(path)})
	return translateError(err)
}

func (p *pwPage) Close() error {
	return translateError(p.page.Close())
}

type pwLocator struct {
	loc playwright.Locator
}

func (l pwLocator) Click(timeout time.Duration) error {
	return translateError(l.loc.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(millis(timeout))}))
}

func (l pwLocator) Fill(value string, timeout time.Duration) error {
	return translateError(l.loc.Fill(value, playwright.LocatorFillOptions{Timeout: playwright.Float(millis(timeout))}))
}

// IsVisible checks visibility by waiting up to the timeout for the element to become visible;
// Playwright's own IsVisible returns immediately and ignores its timeout option.
func (l pwLocator) IsVisible(timeout time.Duration) (bool, error) {
	err := l.WaitFor(StateVisible, timeout)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrTimeout) {
		return false, nil
	}
	return false, err
}

func (l pwLocator) TextContent(timeout time.Duration) (string, error) {
	s, err := l.loc.TextContent(playwright.LocatorTextContentOptions{Timeout: playwright.Float(millis(timeout))})
	return s, translateError(err)
}

func (l pwLocator) WaitFor(state ElementState, timeout time.Duration) error {
	var s *playwright.WaitForSelectorState
	switch state {
	case StateHidden:
		s = playwright.WaitForSelectorStateHidden
	case StateAttached:
		s = playwright.WaitForSelectorStateAttached
	default:
		s = playwright.WaitForSelectorStateVisible
	}
	return translateError(l.loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   s,
		Timeout: playwright.Float(millis(timeout)),
	}))
}

type pwRoute struct {
	route playwright.Route
}

func (r pwRoute) URL() string     { return r.route.Request().URL() }
func (r pwRoute) Abort() error    { return r.route.Abort() }
func (r pwRoute) Continue() error { return r.route.Continue() }

func millis(d time.Duration) float64 {
	return float64(d / time.Millisecond)
}

func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: %s", ErrTimeout, err)
	}
	return err
}
