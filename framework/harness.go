package framework

import (
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

const siteQueryInterval = time.Millisecond * 500

// TestHarness runs a test suite against a site, distributing it across one or more workers.
type TestHarness struct {
	siteBaseURL string
	workers     int
	logger      Logger
}

// Worker is one isolated executor of tests. A worker runs its tests sequentially; anything that is
// scoped to a worker (a browser, a login session) belongs to exactly one Worker and is never
// shared with another.
type Worker struct {
	Index  int
	Count  int
	ID     string
	Logger Logger
}

// WorkerAction runs the share of the test suite that is assigned to a worker.
type WorkerAction func(w *Worker, c *Context)

// NewTestHarness creates a TestHarness and verifies that the site under test is responding, by
// querying its base URL until it answers or the timeout elapses. A zero timeout skips the check.
func NewTestHarness(
	siteBaseURL string,
	workers int,
	siteQueryTimeout time.Duration,
	debugLogger Logger,
	startupOutput io.Writer,
) (*TestHarness, error) {
	if debugLogger == nil {
		debugLogger = NullLogger()
	}
	if workers < 1 {
		workers = 1
	}
	if siteQueryTimeout > 0 {
		if err := querySite(siteBaseURL, siteQueryTimeout, startupOutput); err != nil {
			return nil, err
		}
	}
	return &TestHarness{
		siteBaseURL: siteBaseURL,
		workers:     workers,
		logger:      debugLogger,
	}, nil
}

func querySite(url string, timeout time.Duration, output io.Writer) error {
	fmt.Fprintf(output, "Connecting to site at %s", url)

	client := &http.Client{Timeout: timeout}
	deadline := time.Now().Add(timeout)
	for {
		fmt.Fprintf(output, ".")
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			fmt.Fprintln(output)
			if resp.StatusCode >= 500 {
				return fmt.Errorf("site returned status code %d", resp.StatusCode)
			}
			return nil
		}
		if !time.Now().Before(deadline) {
			fmt.Fprintln(output)
			return fmt.Errorf("timed out, result of last query was: %w", err)
		}
		time.Sleep(siteQueryInterval)
	}
}

func (h *TestHarness) SiteBaseURL() string {
	return h.siteBaseURL
}

func (h *TestHarness) Workers() int {
	return h.workers
}

// RunWorkers starts every worker concurrently and waits for all of them. Each worker gets its own
// root Context; the test logger is shared, so calls to it are serialized.
func (h *TestHarness) RunWorkers(filter Filter, testLogger TestLogger, action WorkerAction) Results {
	testLogger = SynchronizedTestLogger(testLogger)
	results := make([]Results, h.workers)
	var wg sync.WaitGroup
	for i := 0; i < h.workers; i++ {
		w := &Worker{
			Index:  i,
			Count:  h.workers,
			ID:     uuid.NewString(),
			Logger: PrefixedLogger(h.logger, fmt.Sprintf("[worker %d] ", i)),
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = Run(filter, testLogger, func(c *Context) {
				action(w, c)
			})
		}(i)
	}
	wg.Wait()
	return Merge(results...)
}

// Owns returns true if the top-level test group with the specified index is assigned to this
// worker. Groups are dealt out round-robin.
func (w *Worker) Owns(groupIndex int) bool {
	return groupIndex%w.Count == w.Index
}
