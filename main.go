package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/launchdarkly/storefront-e2e/browser"
	"github.com/launchdarkly/storefront-e2e/framework"
	"github.com/launchdarkly/storefront-e2e/popups"
	"github.com/launchdarkly/storefront-e2e/session"
	"github.com/launchdarkly/storefront-e2e/storefronttests"
)

const siteQueryTimeout = time.Second * 30

func main() {
	var params commandParams
	if !params.Read(os.Args) {
		os.Exit(1)
	}

	mainDebugLogger := framework.NullLogger()
	if params.debugAll {
		mainDebugLogger = log.New(os.Stdout, "", log.LstdFlags)
	}

	site, err := params.site()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Site error: %s\n", err)
		os.Exit(1)
	}
	creds, hasCreds := session.CredentialsFromEnv()

	harness, err := framework.NewTestHarness(
		site.BaseURL,
		params.workers,
		siteQueryTimeout,
		mainDebugLogger,
		os.Stdout,
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Site error: %s\n", err)
		os.Exit(1)
	}

	// an interrupt stops a login that is in progress
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	suite, err := storefronttests.NewSuite(storefronttests.Config{
		Context: ctx,
		Launch: func() (browser.Driver, error) {
			d, err := browser.Launch(browser.LaunchOptions{Headless: !params.headed, Install: params.install})
			if err != nil {
				return nil, err
			}
			return d, nil
		},
		Site:        site,
		Policy:      popups.DefaultPolicy(site),
		Credentials: creds,
		ResultsDir:  params.resultsDir,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Test suite error: %s\n", err)
		os.Exit(1)
	}

	fmt.Println()
	framework.PrintFilterDescription(params.filters, hasCreds)

	fmt.Printf("Running test suite with %d worker(s)\n", harness.Workers())

	testLogger := &ConsoleTestLogger{
		DebugOutputOnFailure: params.debug || params.debugAll,
		DebugOutputOnSuccess: params.debugAll,
	}

	results := suite.Run(harness, params.filters.AsFilter, testLogger)

	fmt.Println()
	framework.PrintResults(results)
	if !results.OK() {
		var failed []framework.TestID
		for _, f := range results.Failures {
			if len(f.TestID.Path) > 0 { // worker-level failures have no test to rerun
				failed = append(failed, f.TestID)
			}
		}
		fmt.Println()
		fmt.Println("To run the failed tests again:")
		fmt.Println("  " + params.rerunCommand(filepath.Base(os.Args[0]), failed))
		os.Exit(1)
	}
}
