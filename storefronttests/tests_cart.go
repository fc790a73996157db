package storefronttests

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func DoCartTests(t *T) {
	t.Run("adding a product increments the cart counter", func(t *T) {
		product := products.TrainingShorts
		productPage := t.ProductPage()
		require.NoError(t, productPage.Navigate(product.Path))
		t.PopupSuppressedPage().DismissPopups()

		initialCount, err := productPage.CartCount()
		if err != nil {
			t.Debug("Could not read the cart counter, assuming an empty cart: %s", err)
			initialCount = 0
		}

		require.NoError(t, productPage.SelectSize(product.Size))
		require.NoError(t, productPage.AddToCart())
		require.NoError(t, productPage.WaitForCartUpdate())
		require.NoError(t, productPage.CloseMiniCart())

		count, err := productPage.CartCount()
		require.NoError(t, err)
		assert.Greater(t, count, initialCount)
		assert.NoError(t, productPage.Screenshot("cart-icon-updated"))
	})

	t.Run("cart total reflects the quantity", func(t *T) {
		product := products.TrainingShorts
		productPage, cartPage := t.ProductPage(), t.CartPage()
		require.NoError(t, productPage.Navigate(product.Path))
		t.PopupSuppressedPage().DismissPopups()

		require.NoError(t, productPage.SelectSize(product.Size))
		require.NoError(t, productPage.AddToCart())
		require.NoError(t, cartPage.WaitForItemCount(1))
		require.NoError(t, cartPage.WaitForTotal(product.Price))

		require.NoError(t, cartPage.OpenProduct(product.Name))
		require.NoError(t, productPage.SelectSize(product.Size))
		require.NoError(t, productPage.AddToCart())
		require.NoError(t, cartPage.WaitForTotal(product.PriceForTwo))
		assert.NoError(t, cartPage.Screenshot("two-products"))
	})
}
