package storefronttests

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchdarkly/storefront-e2e/storefront"
)

// randomEmail returns an address that no account has, so that failed logins don't lock out
// anything real and each run starts with a clean failure count.
func randomEmail() string {
	return fmt.Sprintf("qa-%s@example.com", uuid.NewString()[:12])
}

func DoLoginTests(t *T) {
	t.Run("invalid credentials show an error", func(t *T) {
		loginPage := t.LoginPage()
		require.NoError(t, loginPage.Navigate())

		email := randomEmail()
		require.NoError(t, loginPage.FillForm(email, "21e12e12e12e12"))
		require.NoError(t, loginPage.Submit())

		message, err := loginPage.ErrorMessage()
		require.NoError(t, err)
		assert.Contains(t, message, storefront.ExpectedLoginError(1, t.Site()))
		assert.NoError(t, loginPage.Screenshot("login-error-"+email))
	})

	t.Run("repeated invalid logins lock the account", func(t *T) {
		loginPage := t.LoginPage()
		email, password := randomEmail(), "incorrect-password123"
		attempts := t.Site().LockoutThreshold

		for attempt := 1; attempt <= attempts; attempt++ {
			t.Debug("Attempt %d of %d", attempt, attempts)
			require.NoError(t, loginPage.Navigate())
			require.NoError(t, loginPage.FillForm(email, password))
			require.NoError(t, loginPage.Submit())
			if !loginPage.HasErrorMessage() {
				t.Debug("No error message yet after attempt %d", attempt)
			}
		}

		message, err := loginPage.ErrorMessage()
		require.NoError(t, err)
		t.Debug("Final error message: %s", message)
		assert.Contains(t, message, storefront.ExpectedLoginError(attempts, t.Site()))
		assert.NoError(t, loginPage.Screenshot("login-account-lockout"))
	})

	t.Run("valid credentials lead to the account page", func(t *T) {
		t.RequireCredentials()
		loginPage := t.LoginPage()
		creds := t.Credentials()

		require.NoError(t, loginPage.Login(creds.Email, creds.Password))
		require.NoError(t, loginPage.WaitForAccountPage())
		assert.False(t, loginPage.HasErrorMessage())
		assert.NoError(t, loginPage.Screenshot("login-successful"))
	})

	t.Run("logout shows a confirmation", func(t *T) {
		t.RequireCredentials()
		accountPage := t.AccountPage()
		if !t.AuthenticatedPage().Authenticated() {
			t.Debug("No worker session; logging in on this page")
			creds := t.Credentials()
			loginPage := storefront.NewLoginPage(accountPage.Base)
			require.NoError(t, loginPage.Login(creds.Email, creds.Password))
			require.NoError(t, loginPage.WaitForAccountPage())
		}

		require.NoError(t, accountPage.Logout())
		assert.NoError(t, accountPage.Screenshot("logout"))
	})
}
