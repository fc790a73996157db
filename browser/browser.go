// Package browser defines the browser automation capabilities that the harness depends on, and
// implements them with Playwright.
//
// Everything above this package talks to the interfaces here rather than to Playwright directly,
// so that fixtures and page objects can be exercised without a real browser (see browsertest).
package browser

import (
	"errors"
	"time"
)

// ErrTimeout is wrapped by any error caused by a bounded wait running out of time.
var ErrTimeout = errors.New("timed out")

// WaitUntil is the navigation milestone that Goto waits for.
type WaitUntil string

const (
	WaitUntilDOMContentLoaded WaitUntil = "domcontentloaded"
	WaitUntilLoad             WaitUntil = "load"
	WaitUntilNetworkIdle      WaitUntil = "networkidle"
)

// ElementState is the state that Locator.WaitFor waits for.
type ElementState string

const (
	StateVisible  ElementState = "visible"
	StateHidden   ElementState = "hidden"
	StateAttached ElementState = "attached"
)

// SessionState is the serialized cookie and storage state of a browsing context. It is opaque to
// everything except the Driver that produced it, and is never modified after creation.
type SessionState []byte

// Cookie is a cookie to add to a browsing context before navigation.
type Cookie struct {
	Name   string
	Value  string
	Domain string
	Path   string
}

type ContextOptions struct {
	// BaseURL is prepended to relative URLs passed to Page.Goto and Page.WaitForURL.
	BaseURL string

	// StorageState restores a context from a previously captured SessionState.
	StorageState SessionState

	// DefaultTimeout bounds every operation that is not given an explicit timeout.
	DefaultTimeout time.Duration
}

type GotoOptions struct {
	WaitUntil WaitUntil
	Timeout   time.Duration
}

// Driver creates isolated browsing contexts.
type Driver interface {
	NewContext(opts ContextOptions) (Context, error)
}

// Context is an isolated browsing session with its own cookies and storage.
type Context interface {
	NewPage() (Page, error)
	AddCookies(cookies []Cookie) error
	StorageState() (SessionState, error)
	Close() error
}

// Page is a single tab within a Context. A Page is owned by one test case at a time.
type Page interface {
	Context() Context
	Goto(url string, opts GotoOptions) error
	URL() string
	WaitForURL(url string, timeout time.Duration) error
	Locator(selector string) Locator
	Route(pattern string, handler func(Route)) error
	AddInitScript(script string) error
	OnLoad(handler func())
	Screenshot(path string) error
	Close() error
}

// Locator finds elements on a page lazily, each time it is used.
type Locator interface {
	Click(timeout time.Duration) error
	Fill(value string, timeout time.Duration) error
	IsVisible(timeout time.Duration) (bool, error)
	TextContent(timeout time.Duration) (string, error)
	WaitFor(state ElementState, timeout time.Duration) error
}

// Route is an intercepted network request.
type Route interface {
	URL() string
	Abort() error
	Continue() error
}
