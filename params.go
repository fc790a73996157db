package main

import (
	"flag"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/alessio/shellescape"
	"github.com/samber/lo"

	"github.com/launchdarkly/storefront-e2e/framework"
	"github.com/launchdarkly/storefront-e2e/sitedef"
)

const defaultResultsDir = "test-results"

type commandParams struct {
	siteURL      string
	filters      framework.RegexFilters
	workers      int
	resultsDir   string
	timeoutsFile string
	headed       bool
	install      bool
	debug        bool
	debugAll     bool
}

func (c *commandParams) Read(args []string) bool {
	fs := flag.NewFlagSet("", flag.ExitOnError)
	fs.StringVar(&c.siteURL, "url", sitedef.DefaultBaseURL, "base URL of the storefront under test")
	fs.Var(&c.filters.MustMatch, "run", "regex pattern(s) to select tests to run")
	fs.Var(&c.filters.MustNotMatch, "skip", "regex pattern(s) to select tests not to run")
	fs.IntVar(&c.workers, "workers", 1, "number of workers, each with its own browser and login session")
	fs.StringVar(&c.resultsDir, "results-dir", defaultResultsDir, "directory for screenshots")
	fs.StringVar(&c.timeoutsFile, "timeouts", "", "JSON file overriding the default timeouts")
	fs.BoolVar(&c.headed, "headed", false, "show the browser window instead of running headless")
	fs.BoolVar(&c.install, "install", false, "install the browser that Playwright needs before running")
	fs.BoolVar(&c.debug, "debug", false, "enable debug logging for failed tests")
	fs.BoolVar(&c.debugAll, "debug-all", false, "enable debug logging for all tests")

	if err := fs.Parse(args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		fs.Usage()
		return false
	}
	if c.workers < 1 {
		fmt.Fprintln(os.Stderr, "-workers must be at least 1")
		fs.Usage()
		return false
	}
	c.siteURL = strings.TrimSuffix(c.siteURL, "/")
	if _, err := sitedef.DefaultSite().WithBaseURL(c.siteURL); err != nil {
		fmt.Fprintln(os.Stderr, err)
		fs.Usage()
		return false
	}
	return true
}

// site returns the contract data of the storefront selected by -url, with any -timeouts overrides.
func (c *commandParams) site() (sitedef.Site, error) {
	site, err := sitedef.DefaultSite().WithBaseURL(c.siteURL)
	if err != nil {
		return site, err
	}
	if c.timeoutsFile != "" {
		timeouts, err := sitedef.LoadTimeouts(c.timeoutsFile)
		if err != nil {
			return site, fmt.Errorf("invalid timeouts: %w", err)
		}
		site.Timeouts = timeouts
	}
	return site, nil
}

// rerunCommand returns a command line that runs only the specified tests again, with the same
// settings as this run.
func (c *commandParams) rerunCommand(program string, ids []framework.TestID) string {
	var cmd commandBuilder
	cmd.add(program, "-url", c.siteURL)
	for _, id := range ids {
		cmd.add("-run", exactTestPattern(id))
	}
	for _, p := range c.filters.MustNotMatch.Patterns() {
		cmd.add("-skip", p)
	}
	if c.workers != 1 {
		cmd.add("-workers", strconv.Itoa(c.workers))
	}
	if c.resultsDir != defaultResultsDir {
		cmd.add("-results-dir", c.resultsDir)
	}
	if c.timeoutsFile != "" {
		cmd.add("-timeouts", c.timeoutsFile)
	}
	if c.headed {
		cmd.add("-headed")
	}
	if c.debugAll {
		cmd.add("-debug-all")
	} else {
		cmd.add("-debug")
	}
	return cmd.String()
}

// exactTestPattern returns a -run pattern that matches one test and the groups containing it.
func exactTestPattern(id framework.TestID) string {
	return strings.Join(lo.Map(id.Path, func(name string, _ int) string {
		return "^" + regexp.QuoteMeta(name) + "$"
	}), "/")
}

type commandBuilder []string

func (b *commandBuilder) add(args ...string) {
	for _, a := range args {
		*b = append(*b, shellescape.Quote(a))
	}
}

func (b commandBuilder) String() string {
	return strings.Join(b, " ")
}
