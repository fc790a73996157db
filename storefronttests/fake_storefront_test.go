package storefronttests

import (
	"strconv"
	"sync"

	"github.com/launchdarkly/storefront-e2e/browser/browsertest"
	"github.com/launchdarkly/storefront-e2e/sitedef"
	"github.com/launchdarkly/storefront-e2e/storefront"
)

var testAccount = struct{ email, password string }{"shopper@example.com", "correct horse"}

// fakeStorefront is an in-memory imitation of the storefront's behavior, as far as the suite
// observes it. Failed logins are counted per email across all browsers, the way the real site
// counts them; carts belong to a browsing context.
type fakeStorefront struct {
	site    sitedef.Site
	product Product

	lock     sync.Mutex
	failures map[string]int
	carts    map[*browsertest.Context]int
	drivers  []*browsertest.Driver
}

func newFakeStorefront(site sitedef.Site) *fakeStorefront {
	return &fakeStorefront{
		site:     site,
		product:  products.TrainingShorts,
		failures: make(map[string]int),
		carts:    make(map[*browsertest.Context]int),
	}
}

// newDriver is a Config.Launch function.
func (f *fakeStorefront) newDriver() *browsertest.Driver {
	d := browsertest.NewDriver(f.site.BaseURL)
	d.OnNewPage = f.render
	d.OnClick = f.click
	d.Redirect = func(c *browsertest.Context, path string) string {
		if path == f.site.AccountPath && c.Storage["customer"] == "" {
			return f.site.LoginPath
		}
		return path
	}
	f.lock.Lock()
	f.drivers = append(f.drivers, d)
	f.lock.Unlock()
	return d
}

func (f *fakeStorefront) launched() []*browsertest.Driver {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]*browsertest.Driver(nil), f.drivers...)
}

func (f *fakeStorefront) render(p *browsertest.Page) {
	for _, selector := range []string{
		f.site.EmailInputSelector,
		f.site.PasswordInputSelector,
		f.site.LoginButtonSelector,
		storefront.AccountMenuSelector,
		storefront.AddToCartSelector,
		storefront.SizeButtonSelector(f.product.Size),
	} {
		p.Show(selector)
	}
	p.Show(storefront.MiniCartButtonSelector, "Mini Cart")
	p.Show("h1.product-name", f.product.Name)
}

func (f *fakeStorefront) click(p *browsertest.Page, selector string) error {
	c := p.Context().(*browsertest.Context)
	switch selector {
	case f.site.LoginButtonSelector:
		email, password := p.Filled(f.site.EmailInputSelector), p.Filled(f.site.PasswordInputSelector)
		if email == testAccount.email && password == testAccount.password {
			c.SetStorage("customer", email)
			p.Hide(f.site.LoginErrorSelector)
			p.SetURL(f.site.AccountPath)
			return nil
		}
		f.lock.Lock()
		f.failures[email]++
		failures := f.failures[email]
		f.lock.Unlock()
		message := f.site.InvalidCredentialsMessage
		if failures >= f.site.LockoutThreshold {
			message = f.site.LockoutMessage
		}
		p.Show(f.site.LoginErrorSelector, message)

	case storefront.AccountMenuSelector:
		p.Show(storefront.LogoutButtonSelector)

	case storefront.LogoutButtonSelector:
		c.SetStorage("customer", "")
		p.Show(storefront.LogoutConfirmationSelector)

	case storefront.AddToCartSelector:
		f.lock.Lock()
		f.carts[c]++
		count := f.carts[c]
		f.lock.Unlock()
		totals := map[int]string{1: f.product.Price, 2: f.product.PriceForTwo}
		p.Hide(storefront.CartContentsSelector(count - 1))
		p.Hide(storefront.CartTotalSelector(totals[count-1]))
		p.Show(storefront.CartCounterSelector, strconv.Itoa(count))
		p.Show(storefront.CartContentsSelector(count))
		p.Show(storefront.CartTotalSelector(totals[count]))
		p.Show(storefront.MiniCartCloseSelector)
		p.Show(storefront.MiniCartEntrySelector(f.product.Name))

	case storefront.MiniCartCloseSelector:
		p.Hide(storefront.MiniCartCloseSelector)

	case storefront.MiniCartEntrySelector(f.product.Name):
		p.SetURL(f.product.Path)
	}
	return nil
}
