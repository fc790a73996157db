package framework

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func id(path ...string) TestID {
	return TestID{Path: path}
}

func TestRunPatternsMatchPerLevel(t *testing.T) {
	var f RegexFilters
	require.NoError(t, f.MustMatch.Set("login/lock"))

	assert.True(t, f.AsFilter(id("login")))
	assert.True(t, f.AsFilter(id("login", "repeated invalid logins lock the account")))
	assert.False(t, f.AsFilter(id("login", "valid credentials lead to the account page")))
	assert.False(t, f.AsFilter(id("cart")))
}

func TestSkipPatternsMatchFullID(t *testing.T) {
	var f RegexFilters
	require.NoError(t, f.MustNotMatch.Set("cart/.*total"))

	assert.True(t, f.AsFilter(id("cart")))
	assert.True(t, f.AsFilter(id("cart", "adding a product")))
	assert.False(t, f.AsFilter(id("cart", "cart total reflects the quantity")))
}

func TestNoPatternsMatchEverything(t *testing.T) {
	var f RegexFilters
	assert.True(t, f.AsFilter(id("anything", "at all")))
}

func TestInvalidPattern(t *testing.T) {
	var r RegexList
	assert.Error(t, r.Set("("))
	assert.False(t, r.IsDefined())
}

func TestRegexListDescription(t *testing.T) {
	var r RegexList
	require.NoError(t, r.Set("a"))
	require.NoError(t, r.Set("b/c"))
	assert.Equal(t, `"a" or "b/c"`, r.String())
	assert.Equal(t, []string{"a", "b/c"}, r.Patterns())
}
