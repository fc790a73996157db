// Package browsertest provides an in-memory browser.Driver for exercising fixtures and page
// objects without launching a browser.
//
// Pages don't render anything. A test decides which selectors are visible on a page, what text
// they contain, where navigation ends up, and what clicking an element does.
package browsertest

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/launchdarkly/storefront-e2e/browser"
)

// Driver is a fake browser.Driver. Its exported hooks may be set before the driver is used.
type Driver struct {
	BaseURL string

	// Redirect maps the path a page navigates to onto the path it ends up on. If nil, pages end up
	// where they asked to go.
	Redirect func(c *Context, path string) string

	// GotoError, if it returns non-nil for a path, makes navigation to that path fail.
	GotoError func(path string) error

	// OnNewPage is called for every page before it is returned from Context.NewPage.
	OnNewPage func(p *Page)

	// OnClick is called when a visible element is clicked.
	OnClick func(p *Page, selector string) error

	// NewContextError, if set, is returned by NewContext.
	NewContextError error

	lock     sync.Mutex
	contexts []*Context
}

type savedState struct {
	Cookies []browser.Cookie  `json:"cookies"`
	Storage map[string]string `json:"storage"`
}

func NewDriver(baseURL string) *Driver {
	return &Driver{BaseURL: strings.TrimSuffix(baseURL, "/")}
}

func (d *Driver) NewContext(opts browser.ContextOptions) (browser.Context, error) {
	if d.NewContextError != nil {
		return nil, d.NewContextError
	}
	c := &Context{driver: d, Options: opts, Storage: make(map[string]string)}
	if len(opts.StorageState) != 0 {
		var saved savedState
		if err := json.Unmarshal(opts.StorageState, &saved); err != nil {
			return nil, fmt.Errorf("malformed session state: %w", err)
		}
		c.Cookies = saved.Cookies
		for k, v := range saved.Storage {
			c.Storage[k] = v
		}
		c.Restored = true
	}
	d.lock.Lock()
	d.contexts = append(d.contexts, c)
	d.lock.Unlock()
	return c, nil
}

// Contexts returns every context created so far, in creation order.
func (d *Driver) Contexts() []*Context {
	d.lock.Lock()
	defer d.lock.Unlock()
	return append([]*Context(nil), d.contexts...)
}

func (d *Driver) absolute(url string) string {
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return url
	}
	return d.BaseURL + "/" + strings.TrimPrefix(url, "/")
}

func (d *Driver) path(url string) string {
	return "/" + strings.TrimPrefix(strings.TrimPrefix(url, d.BaseURL), "/")
}

// Context is a fake browser.Context.
type Context struct {
	Options  browser.ContextOptions
	Cookies  []browser.Cookie
	Storage  map[string]string
	Restored bool

	driver *Driver
	lock   sync.Mutex
	pages  []*Page
	closed bool
}

func (c *Context) NewPage() (browser.Page, error) {
	c.lock.Lock()
	if c.closed {
		c.lock.Unlock()
		return nil, fmt.Errorf("context is closed")
	}
	p := &Page{
		context: c,
		visible: make(map[string]bool),
		texts:   make(map[string]string),
		filled:  make(map[string]string),
	}
	c.pages = append(c.pages, p)
	c.lock.Unlock()
	if c.driver.OnNewPage != nil {
		c.driver.OnNewPage(p)
	}
	return p, nil
}

func (c *Context) AddCookies(cookies []browser.Cookie) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.Cookies = append(c.Cookies, cookies...)
	return nil
}

func (c *Context) StorageState() (browser.SessionState, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	data, err := json.Marshal(savedState{Cookies: c.Cookies, Storage: c.Storage})
	return browser.SessionState(data), err
}

// SetStorage simulates the site writing to the context's storage, for instance on login.
func (c *Context) SetStorage(key, value string) {
	c.lock.Lock()
	c.Storage[key] = value
	c.lock.Unlock()
}

func (c *Context) Close() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.closed {
		return fmt.Errorf("context was already closed")
	}
	for _, p := range c.pages {
		if !p.IsClosed() {
			return fmt.Errorf("context closed while a page was still open at %s", p.URL())
		}
	}
	c.closed = true
	return nil
}

func (c *Context) IsClosed() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.closed
}

// Pages returns every page opened in this context.
func (c *Context) Pages() []*Page {
	c.lock.Lock()
	defer c.lock.Unlock()
	return append([]*Page(nil), c.pages...)
}

// Page is a fake browser.Page.
type Page struct {
	context *Context

	lock        sync.Mutex
	url         string
	visible     map[string]bool
	texts       map[string]string
	filled      map[string]string
	checkErrors map[string]error
	clicks      []string
	visits      []string
	routes      []string
	scripts     []string
	onLoad      []func()
	screenshots []string
	closed      bool
}

func (p *Page) Context() browser.Context { return p.context }

func (p *Page) Goto(url string, opts browser.GotoOptions) error {
	d := p.context.driver
	path := d.path(d.absolute(url))
	if d.GotoError != nil {
		if err := d.GotoError(path); err != nil {
			return fmt.Errorf("navigation to %s failed: %w", url, err)
		}
	}
	if d.Redirect != nil {
		path = d.Redirect(p.context, path)
	}
	p.SetURL(path)
	return nil
}

// SetURL simulates the page arriving at a path, including running its load handlers.
func (p *Page) SetURL(path string) {
	p.lock.Lock()
	p.url = p.context.driver.absolute(path)
	p.visits = append(p.visits, p.url)
	handlers := append([]func(){}, p.onLoad...)
	p.lock.Unlock()
	for _, h := range handlers {
		h()
	}
}

func (p *Page) URL() string {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.url
}

func (p *Page) WaitForURL(url string, timeout time.Duration) error {
	want := p.context.driver.absolute(url)
	if got := p.URL(); got != want {
		return fmt.Errorf("%w: waiting for %s, page is at %s", browser.ErrTimeout, want, got)
	}
	return nil
}

func (p *Page) Locator(selector string) browser.Locator {
	return &Locator{page: p, selector: selector}
}

func (p *Page) Route(pattern string, handler func(browser.Route)) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.routes = append(p.routes, pattern)
	return nil
}

func (p *Page) AddInitScript(script string) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.scripts = append(p.scripts, script)
	return nil
}

func (p *Page) OnLoad(handler func()) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.onLoad = append(p.onLoad, handler)
}

func (p *Page) Screenshot(path string) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.screenshots = append(p.screenshots, path)
	return nil
}

func (p *Page) Close() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.closed {
		return fmt.Errorf("page was already closed")
	}
	p.closed = true
	return nil
}

func (p *Page) IsClosed() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.closed
}

// Show makes elements matching the selector visible, optionally with some text content.
func (p *Page) Show(selector string, text ...string) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.visible[selector] = true
	if len(text) > 0 {
		p.texts[selector] = strings.Join(text, "")
	}
}

func (p *Page) Hide(selector string) {
	p.lock.Lock()
	defer p.lock.Unlock()
	delete(p.visible, selector)
}

// FailChecks makes every visibility check for the selector fail with err.
func (p *Page) FailChecks(selector string, err error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.checkErrors == nil {
		p.checkErrors = make(map[string]error)
	}
	p.checkErrors[selector] = err
}

func (p *Page) Filled(selector string) string {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.filled[selector]
}

func (p *Page) Clicks() []string {
	p.lock.Lock()
	defer p.lock.Unlock()
	return append([]string(nil), p.clicks...)
}

func (p *Page) Visits() []string {
	p.lock.Lock()
	defer p.lock.Unlock()
	return append([]string(nil), p.visits...)
}

func (p *Page) Routes() []string {
	p.lock.Lock()
	defer p.lock.Unlock()
	return append([]string(nil), p.routes...)
}

func (p *Page) Scripts() []string {
	p.lock.Lock()
	defer p.lock.Unlock()
	return append([]string(nil), p.scripts...)
}

func (p *Page) Screenshots() []string {
	p.lock.Lock()
	defer p.lock.Unlock()
	return append([]string(nil), p.screenshots...)
}

func (p *Page) isVisible(selector string) (bool, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.closed {
		return false, fmt.Errorf("page is closed")
	}
	if err := p.checkErrors[selector]; err != nil {
		return false, err
	}
	return p.visible[selector], nil
}

// Locator is a fake browser.Locator. Waits never sleep: an element that is not already in the
// desired state times out immediately.
type Locator struct {
	page     *Page
	selector string
}

func (l *Locator) Click(timeout time.Duration) error {
	visible, err := l.page.isVisible(l.selector)
	if err != nil {
		return err
	}
	if !visible {
		return l.timeout("click")
	}
	l.page.lock.Lock()
	l.page.clicks = append(l.page.clicks, l.selector)
	l.page.lock.Unlock()
	if onClick := l.page.context.driver.OnClick; onClick != nil {
		return onClick(l.page, l.selector)
	}
	return nil
}

func (l *Locator) Fill(value string, timeout time.Duration) error {
	visible, err := l.page.isVisible(l.selector)
	if err != nil {
		return err
	}
	if !visible {
		return l.timeout("fill")
	}
	l.page.lock.Lock()
	l.page.filled[l.selector] = value
	l.page.lock.Unlock()
	return nil
}

func (l *Locator) IsVisible(timeout time.Duration) (bool, error) {
	return l.page.isVisible(l.selector)
}

func (l *Locator) TextContent(timeout time.Duration) (string, error) {
	visible, err := l.page.isVisible(l.selector)
	if err != nil {
		return "", err
	}
	if !visible {
		return "", l.timeout("read text of")
	}
	l.page.lock.Lock()
	defer l.page.lock.Unlock()
	return l.page.texts[l.selector], nil
}

func (l *Locator) WaitFor(state browser.ElementState, timeout time.Duration) error {
	visible, err := l.page.isVisible(l.selector)
	if err != nil {
		return err
	}
	if (state == browser.StateHidden) != visible {
		return nil
	}
	return l.timeout("wait for " + string(state))
}

func (l *Locator) timeout(action string) error {
	return fmt.Errorf("%w: could not %s %q", browser.ErrTimeout, action, l.selector)
}
