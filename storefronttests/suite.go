package storefronttests

import (
	"github.com/launchdarkly/storefront-e2e/fixture"
	"github.com/launchdarkly/storefront-e2e/framework"
)

type testGroup struct {
	name   string
	action func(*T)
}

var allGroups = []testGroup{
	{"login", DoLoginTests},
	{"cart", DoCartTests},
}

// Suite is the storefront test suite, ready to run.
type Suite struct {
	config   Config
	fixtures *fixture.Set
}

// NewSuite checks the fixture graph for the configuration. Any problem with the graph is reported
// here, before a browser is launched.
func NewSuite(config Config) (*Suite, error) {
	fixtures, err := NewFixtures(config)
	if err != nil {
		return nil, err
	}
	return &Suite{config: config, fixtures: fixtures}, nil
}

// Run runs the suite on the harness's workers. The top-level test groups are dealt out among the
// workers; each worker has its own browser and its own login session.
func (s *Suite) Run(
	harness *framework.TestHarness,
	filter framework.Filter,
	testLogger framework.TestLogger,
) framework.Results {
	return harness.RunWorkers(filter, testLogger, func(w *framework.Worker, c *framework.Context) {
		process := s.fixtures.NewProcess(w.ID, w.Logger)
		c.Defer(func() {
			if err := process.Close(); err != nil {
				c.Errorf("worker %d teardown failed: %s", w.Index, err)
			}
		})
		t := newTestScope(c, &environment{config: s.config, process: process})

		for i, g := range allGroups {
			if w.Owns(i) {
				t.Run(g.name, g.action)
			}
		}
	})
}
