// Package framework contains the low-level implementation of test harness infrastructure
// that can be reused for different kinds of tests.
//
// The general model is:
//
// 1. There is a general notion of a test context which is similar to Go's *testing.T,
// allowing pieces of test logic to be associated with a test identifier and to accumulate
// success/failure results. A context can schedule teardown work with Defer; deferred work
// always runs, in reverse order, before the result of the test is recorded.
//
// 2. Tests are executed by workers. Each worker runs its share of the tests sequentially and owns
// its own long-lived resources; parallelism only exists across workers, which share nothing.
//
// 3. Before anything runs, the harness can verify that the site under test is reachable.
//
// The domain-specific code that knows what is being tested is responsible for the test API built
// on top of the test context, and for deciding which resources a worker owns.
package framework
