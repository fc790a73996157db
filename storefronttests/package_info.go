// Package storefronttests contains the storefront end-to-end tests and their supporting API.
//
// Everything a test needs from the browser comes from fixtures, which are declared in layers in
// fixtures.go and requested through accessors on T. Infrastructure that is not specific to the
// storefront, such as test contexts, results, filtering, and workers, is in the lower-level
// framework package.
package storefronttests
