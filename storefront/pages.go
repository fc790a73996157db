package storefront

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/launchdarkly/storefront-e2e/browser"
	"github.com/launchdarkly/storefront-e2e/sitedef"
)

type LoginPage struct {
	Base
}

func NewLoginPage(b Base) *LoginPage {
	return &LoginPage{Base: b}
}

func (p *LoginPage) Navigate() error {
	return p.Goto(p.Site.LoginPath)
}

func (p *LoginPage) FillForm(email, password string) error {
	t := p.Site.Timeouts
	if err := p.Page.Locator(p.Site.EmailInputSelector).Fill(email, t.Action()); err != nil {
		return fmt.Errorf("could not enter email: %w", err)
	}
	if err := p.Page.Locator(p.Site.PasswordInputSelector).Fill(password, t.Action()); err != nil {
		return fmt.Errorf("could not enter password: %w", err)
	}
	return nil
}

func (p *LoginPage) Submit() error {
	return p.Page.Locator(p.Site.LoginButtonSelector).Click(p.Site.Timeouts.Action())
}

// Login goes to the login page, fills in the form and submits it. It does not wait for the
// outcome.
func (p *LoginPage) Login(email, password string) error {
	if err := p.Navigate(); err != nil {
		return err
	}
	if err := p.FillForm(email, password); err != nil {
		return err
	}
	return p.Submit()
}

// HasErrorMessage returns true if the login error message is showing.
func (p *LoginPage) HasErrorMessage() bool {
	visible, _ := p.Page.Locator(p.Site.LoginErrorSelector).IsVisible(p.Site.Timeouts.Visibility())
	return visible
}

// ErrorMessage waits for the login error message to appear and returns its text.
func (p *LoginPage) ErrorMessage() (string, error) {
	t := p.Site.Timeouts
	loc := p.Page.Locator(p.Site.LoginErrorSelector)
	if err := loc.WaitFor(browser.StateVisible, t.Expectation()); err != nil {
		return "", fmt.Errorf("no login error message appeared: %w", err)
	}
	text, err := loc.TextContent(t.Action())
	return strings.TrimSpace(text), err
}

// WaitForAccountPage waits for the redirect that follows a successful login.
func (p *LoginPage) WaitForAccountPage() error {
	return p.WaitForURL(p.Site.AccountPath)
}

// ExpectedLoginError returns the error message the site shows after the given number of
// consecutive failed logins with the same credentials, counting from 1.
func ExpectedLoginError(attempt int, site sitedef.Site) string {
	if attempt >= site.LockoutThreshold {
		return site.LockoutMessage
	}
	return site.InvalidCredentialsMessage
}

type AccountPage struct {
	Base
}

func NewAccountPage(b Base) *AccountPage {
	return &AccountPage{Base: b}
}

func (p *AccountPage) Navigate() error {
	return p.Goto(p.Site.AccountPath)
}

func (p *AccountPage) NavigateToOrders() error {
	return p.Goto(p.Site.AccountPath + "/orders")
}

// Logout uses the account menu to log out and waits for the confirmation.
func (p *AccountPage) Logout() error {
	if err := p.OpenAccountMenu(); err != nil {
		return fmt.Errorf("could not open account menu: %w", err)
	}
	if err := p.ClickLogout(); err != nil {
		return fmt.Errorf("could not click logout: %w", err)
	}
	return p.WaitForLogoutConfirmation()
}

func (p *AccountPage) WaitForLogoutConfirmation() error {
	return p.Page.Locator(LogoutConfirmationSelector).WaitFor(browser.StateVisible, p.Site.Timeouts.Expectation())
}

// IsLoggedIn returns false if the site has sent the page to the login form.
func (p *AccountPage) IsLoggedIn() bool {
	return !strings.Contains(p.URL(), p.Site.LoginPath)
}

// IsOnAccountPage returns true if the page is at the account page itself, not one of its
// subpages.
func (p *AccountPage) IsOnAccountPage() bool {
	pattern := `^https?://[^/]+` + regexp.QuoteMeta(p.Site.AccountPath) + `/?$`
	return regexp.MustCompile(pattern).MatchString(p.URL())
}

func (p *AccountPage) Screenshot(name string) error {
	return p.Base.Screenshot("account-" + name)
}

var productPageMarkers = []string{
	"h1.product-name",
	".product-info-main",
	".product.media",
	".product-options-wrapper",
}

type ProductPage struct {
	Base
}

func NewProductPage(b Base) *ProductPage {
	return &ProductPage{Base: b}
}

// Navigate goes to a product and waits briefly for any of the product page's main sections to
// render. The sections vary between product types, so none of them is required.
func (p *ProductPage) Navigate(productPath string) error {
	if err := p.Goto(productPath); err != nil {
		return err
	}
	for _, selector := range productPageMarkers {
		if visible, _ := p.Page.Locator(selector).IsVisible(p.Site.Timeouts.Visibility()); visible {
			return nil
		}
	}
	p.Logger.Printf("None of the product page sections appeared at %s", p.URL())
	return nil
}

func (p *ProductPage) Name() (string, error) {
	text, err := p.Page.Locator("h1.product-name").TextContent(p.Site.Timeouts.Action())
	return strings.TrimSpace(text), err
}

func (p *ProductPage) Price() (string, error) {
	text, err := p.Page.Locator(".price-box .price").TextContent(p.Site.Timeouts.Action())
	return strings.TrimSpace(text), err
}

func (p *ProductPage) SelectSize(size string) error {
	return p.Page.Locator(SizeButtonSelector(size)).Click(p.Site.Timeouts.Action())
}

func (p *ProductPage) AddToCart() error {
	return p.Page.Locator(AddToCartSelector).Click(p.Site.Timeouts.Action())
}

func (p *ProductPage) Screenshot(name string) error {
	return p.Base.Screenshot("product-" + name)
}

const AddToCartSelector = `role=button[name="Dodaj do koszyka"]`

// SizeButtonSelector matches the button for exactly this size, so that "L" doesn't match "XL".
func SizeButtonSelector(size string) string {
	return fmt.Sprintf(`role=button[name=%q s]`, size)
}

type CartPage struct {
	Base
}

func NewCartPage(b Base) *CartPage {
	return &CartPage{Base: b}
}

// CartContentsSelector matches the mini cart heading when it shows this many items.
func CartContentsSelector(count int) string {
	return fmt.Sprintf("text=Zawartość koszyka (%d)", count)
}

// CartTotalSelector matches the mini cart total line when it shows this amount.
func CartTotalSelector(total string) string {
	return "text=Razem" + total
}

// WaitForItemCount waits for the mini cart to show the given number of items.
func (p *CartPage) WaitForItemCount(count int) error {
	return p.Page.Locator(CartContentsSelector(count)).WaitFor(browser.StateVisible, p.Site.Timeouts.Expectation())
}

// WaitForTotal waits for the mini cart total to show the given amount, such as "149,99 PLN".
func (p *CartPage) WaitForTotal(total string) error {
	return p.Page.Locator(CartTotalSelector(total)).WaitFor(browser.StateVisible, p.Site.Timeouts.Expectation())
}

func (p *CartPage) Total() (string, error) {
	text, err := p.Page.Locator("text=Razem").TextContent(p.Site.Timeouts.Action())
	return strings.TrimSpace(text), err
}

// OpenProduct clicks the entry for a product in the mini cart, which takes the page to it.
func (p *CartPage) OpenProduct(productName string) error {
	return p.Page.Locator(MiniCartEntrySelector(productName)).Click(p.Site.Timeouts.Action())
}

// MiniCartEntrySelector matches the button inside the mini cart entry for a product.
func MiniCartEntrySelector(productName string) string {
	return fmt.Sprintf(`li:has-text(%q) >> role=button`, productName)
}

func (p *CartPage) Screenshot(name string) error {
	return p.Base.Screenshot("mini-cart-" + name)
}
