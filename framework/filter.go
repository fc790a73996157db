package framework

import (
	"fmt"
	"regexp"
	"strings"
)

// Filter is a function that can determine whether to run a specific test or not.
type Filter func(TestID) bool

type RegexFilters struct {
	MustMatch    RegexList
	MustNotMatch RegexList
}

// AsFilter selects tests the same way "go test -run" does: each -run pattern is split on "/" and
// each element must match the test name at that depth, so a group runs whenever its own name is
// compatible with a pattern. The -skip patterns are matched against the full slash-separated ID.
func (r RegexFilters) AsFilter(id TestID) bool {
	return (!r.MustMatch.IsDefined() || r.MustMatch.AnyMatchPath(id.Path)) &&
		!r.MustNotMatch.AnyMatch(id.String())
}

type RegexList struct {
	patterns []*regexp.Regexp
	elements [][]*regexp.Regexp
}

func (r RegexList) String() string {
	var ss []string
	for _, p := range r.patterns {
		ss = append(ss, `"`+p.String()+`"`)
	}
	return strings.Join(ss, " or ")
}

// Set is called by the command line parser
func (r *RegexList) Set(value string) error {
	rx, err := regexp.Compile(value)
	if err != nil {
		return fmt.Errorf("invalid regex: %w", err)
	}
	var elements []*regexp.Regexp
	for _, part := range strings.Split(value, "/") {
		ex, err := regexp.Compile(part)
		if err != nil {
			return fmt.Errorf("invalid regex: %w", err)
		}
		elements = append(elements, ex)
	}
	r.patterns = append(r.patterns, rx)
	r.elements = append(r.elements, elements)
	return nil
}

func (r RegexList) IsDefined() bool {
	return len(r.patterns) != 0
}

func (r RegexList) AnyMatch(s string) bool {
	for _, p := range r.patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

// AnyMatchPath returns true if, for any of the patterns, every "/"-separated element of the
// pattern matches the path component at the same depth. Components deeper than the pattern are
// not constrained.
func (r RegexList) AnyMatchPath(path []string) bool {
	for _, elements := range r.elements {
		matched := true
		for i, name := range path {
			if i >= len(elements) {
				break
			}
			if !elements[i].MatchString(name) {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

// Patterns returns the source text of each pattern, in the order they were added.
func (r RegexList) Patterns() []string {
	ret := make([]string, 0, len(r.patterns))
	for _, p := range r.patterns {
		ret = append(ret, p.String())
	}
	return ret
}

func PrintFilterDescription(filters RegexFilters, hasCredentials bool) {
	if filters.MustMatch.IsDefined() || filters.MustNotMatch.IsDefined() {
		fmt.Println("Some tests will be skipped based on the filter criteria for this test run:")
		if filters.MustMatch.IsDefined() {
			fmt.Printf("  skip any not matching %s\n", filters.MustMatch)
		}
		if filters.MustNotMatch.IsDefined() {
			fmt.Println("  skip any matching", filters.MustNotMatch)
		}
		fmt.Println()
	}

	if !hasCredentials {
		fmt.Println("Login credentials are not configured, so tests that need an authenticated session")
		fmt.Println("will be skipped or will run against an anonymous page.")
		fmt.Println()
	}
}
