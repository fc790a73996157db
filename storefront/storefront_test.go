package storefront

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

	"github.com/launchdarkly/storefront-e2e/browser"
	"github.com/launchdarkly/storefront-e2e/browser/browsertest"
	"github.com/launchdarkly/storefront-e2e/sitedef"
)

func testSite() sitedef.Site {
	site := sitedef.DefaultSite()
	site.BaseURL = "https://shop.test"
	site.Domain = "shop.test"
	site.Timeouts.RetryIntervalMS = ldvalue.NewOptionalInt(1)
	return site
}

func newBase(t *testing.T) (*browsertest.Driver, *browsertest.Page, Base) {
	site := testSite()
	d := browsertest.NewDriver(site.BaseURL)
	c, err := d.NewContext(browser.ContextOptions{})
	require.NoError(t, err)
	page, err := c.NewPage()
	require.NoError(t, err)
	return d, page.(*browsertest.Page), NewBase(page, site, t.TempDir(), nil)
}

func TestGotoRetriesUpToThreeAttempts(t *testing.T) {
	t.Run("succeeds on the last attempt", func(t *testing.T) {
		d, page, b := newBase(t)
		calls := 0
		d.GotoError = func(string) error {
			calls++
			if calls < 3 {
				return browser.ErrTimeout
			}
			return nil
		}
		require.NoError(t, b.Goto("/customer/account/login"))
		assert.Equal(t, 3, calls)
		assert.Equal(t, "https://shop.test/customer/account/login", page.URL())
	})

	t.Run("gives up after three", func(t *testing.T) {
		d, page, b := newBase(t)
		calls := 0
		d.GotoError = func(string) error {
			calls++
			return browser.ErrTimeout
		}
		err := b.Goto("/")
		assert.ErrorIs(t, err, browser.ErrTimeout)
		assert.Equal(t, 3, calls)
		assert.Empty(t, page.Visits())
	})
}

func TestScreenshotGoesToResultsDirectory(t *testing.T) {
	_, page, b := newBase(t)
	require.NoError(t, b.Screenshot("login-error-someone@example.com"))
	require.NoError(t, NewProductPage(b).Screenshot("added"))
	assert.Equal(t, []string{
		filepath.Join(b.ResultsDir, "login-error-someone_example_com.png"),
		filepath.Join(b.ResultsDir, "product-added.png"),
	}, page.Screenshots())
}

func TestCartCount(t *testing.T) {
	t.Run("from counter", func(t *testing.T) {
		_, page, b := newBase(t)
		page.Show(CartCounterSelector, " 2 ")
		n, err := b.CartCount()
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("from mini cart button", func(t *testing.T) {
		_, page, b := newBase(t)
		page.Show(MiniCartButtonSelector, "Mini Cart 3 items")
		n, err := b.CartCount()
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("button without a number", func(t *testing.T) {
		_, page, b := newBase(t)
		page.Show(MiniCartButtonSelector, "Mini Cart")
		n, err := b.CartCount()
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("nothing visible", func(t *testing.T) {
		_, _, b := newBase(t)
		_, err := b.CartCount()
		assert.ErrorIs(t, err, browser.ErrTimeout)
	})

	t.Run("counter is not a number", func(t *testing.T) {
		_, page, b := newBase(t)
		page.Show(CartCounterSelector, "many")
		_, err := b.CartCount()
		assert.Error(t, err)
	})
}

func TestLogin(t *testing.T) {
	_, page, b := newBase(t)
	site := b.Site
	page.Show(site.EmailInputSelector)
	page.Show(site.PasswordInputSelector)
	page.Show(site.LoginButtonSelector)

	lp := NewLoginPage(b)
	require.NoError(t, lp.Login("who@example.com", "secret"))
	assert.Equal(t, []string{"https://shop.test/customer/account/login"}, page.Visits())
	assert.Equal(t, "who@example.com", page.Filled(site.EmailInputSelector))
	assert.Equal(t, "secret", page.Filled(site.PasswordInputSelector))
	assert.Equal(t, []string{site.LoginButtonSelector}, page.Clicks())

	assert.False(t, lp.HasErrorMessage())
	page.Show(site.LoginErrorSelector, "  "+site.InvalidCredentialsMessage+"\n")
	assert.True(t, lp.HasErrorMessage())
	msg, err := lp.ErrorMessage()
	require.NoError(t, err)
	assert.Equal(t, site.InvalidCredentialsMessage, msg)
}

func TestLoginFormMissing(t *testing.T) {
	_, _, b := newBase(t)
	err := NewLoginPage(b).FillForm("who@example.com", "secret")
	assert.ErrorIs(t, err, browser.ErrTimeout)
	assert.Contains(t, err.Error(), "could not enter email")
}

func TestExpectedLoginError(t *testing.T) {
	site := sitedef.DefaultSite()
	assert.Equal(t, site.InvalidCredentialsMessage, ExpectedLoginError(1, site))
	assert.Equal(t, site.InvalidCredentialsMessage, ExpectedLoginError(site.LockoutThreshold-1, site))
	assert.Equal(t, site.LockoutMessage, ExpectedLoginError(site.LockoutThreshold, site))
}

func TestAccountPage(t *testing.T) {
	d, page, b := newBase(t)
	d.OnClick = func(p *browsertest.Page, selector string) error {
		switch selector {
		case AccountMenuSelector:
			p.Show(LogoutButtonSelector)
		case LogoutButtonSelector:
			p.Show(LogoutConfirmationSelector)
		}
		return nil
	}
	page.Show(AccountMenuSelector)
	ap := NewAccountPage(b)

	require.NoError(t, ap.Navigate())
	assert.True(t, ap.IsOnAccountPage())
	assert.True(t, ap.IsLoggedIn())
	require.NoError(t, ap.Logout())

	require.NoError(t, ap.NavigateToOrders())
	assert.False(t, ap.IsOnAccountPage())

	page.SetURL(b.Site.LoginPath)
	assert.False(t, ap.IsLoggedIn())
}

func TestLogoutFailsWithoutAccountMenu(t *testing.T) {
	_, _, b := newBase(t)
	err := NewAccountPage(b).Logout()
	assert.ErrorContains(t, err, "could not open account menu")
}

func TestProductAndCart(t *testing.T) {
	d, page, b := newBase(t)
	d.OnClick = func(p *browsertest.Page, selector string) error {
		if selector == AddToCartSelector {
			p.Show(CartContentsSelector(1))
			p.Show(CartTotalSelector("149,99 PLN"))
		}
		return nil
	}
	page.Show("h1.product-name", "Spodenki treningowe")
	page.Show(SizeButtonSelector("L"))
	page.Show(AddToCartSelector)

	pp := NewProductPage(b)
	require.NoError(t, pp.Navigate("/spodenki-treningowe"))
	name, err := pp.Name()
	require.NoError(t, err)
	assert.Equal(t, "Spodenki treningowe", name)
	require.NoError(t, pp.SelectSize("L"))
	require.NoError(t, pp.AddToCart())

	cp := NewCartPage(b)
	assert.NoError(t, cp.WaitForItemCount(1))
	assert.NoError(t, cp.WaitForTotal("149,99 PLN"))
	assert.ErrorIs(t, cp.WaitForTotal("299,98 PLN"), browser.ErrTimeout)
}

func TestSizeSelectorIsExact(t *testing.T) {
	assert.Equal(t, `role=button[name="L" s]`, SizeButtonSelector("L"))
}

func TestMiniCart(t *testing.T) {
	d, page, b := newBase(t)
	d.OnClick = func(p *browsertest.Page, selector string) error {
		switch selector {
		case MiniCartButtonSelector:
			p.Show(miniCartBodySelector)
			p.Show(miniCartProductSelector, "Spodenki treningowe")
			p.Show(MiniCartCloseSelector)
		case MiniCartCloseSelector:
			p.Hide(miniCartBodySelector)
			p.Hide(MiniCartCloseSelector)
		}
		return nil
	}
	page.Show(MiniCartButtonSelector)

	require.NoError(t, b.OpenMiniCart())
	name, err := b.MiniCartProductName()
	require.NoError(t, err)
	assert.Equal(t, "Spodenki treningowe", name)
	require.NoError(t, b.CloseMiniCart())
	require.NoError(t, b.CloseMiniCart())
	assert.Equal(t, []string{MiniCartButtonSelector, MiniCartCloseSelector}, page.Clicks())
}
