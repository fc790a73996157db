package fixture

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchdarkly/storefront-e2e/framework"
)

type eventLog struct {
	lock   sync.Mutex
	events []string
}

func (l *eventLog) add(format string, args ...interface{}) {
	l.lock.Lock()
	l.events = append(l.events, fmt.Sprintf(format, args...))
	l.lock.Unlock()
}

func (l *eventLog) get() []string {
	l.lock.Lock()
	defer l.lock.Unlock()
	return append([]string(nil), l.events...)
}

// tracked returns a producer that records its setup and teardown and yields its own name.
func tracked(log *eventLog, name string) Producer {
	return func(deps *Deps, use func(interface{})) error {
		log.add("setup %s", name)
		use(name)
		log.add("teardown %s", name)
		return nil
	}
}

func failing(err error) Producer {
	return func(*Deps, func(interface{})) error { return err }
}

func desc(name string, scope Scope, produce Producer, deps ...string) Descriptor {
	return Descriptor{Name: name, Scope: scope, Produce: produce, Deps: deps}
}

func TestNewRejectsInvalidGraphs(t *testing.T) {
	noop := tracked(&eventLog{}, "x")
	for _, p := range []struct {
		name    string
		descs   []Descriptor
		wantErr error
	}{
		{"empty name", []Descriptor{desc("", ScopeCase, noop)}, ErrInvalidDescriptor},
		{"nil producer", []Descriptor{desc("a", ScopeCase, nil)}, ErrInvalidDescriptor},
		{"duplicate", []Descriptor{desc("a", ScopeCase, noop), desc("a", ScopeCase, noop)}, ErrDuplicateFixture},
		{"unknown dependency", []Descriptor{desc("a", ScopeCase, noop, "b")}, ErrUnknownFixture},
		{"repeated dependency", []Descriptor{desc("a", ScopeCase, noop, "b", "b"), desc("b", ScopeCase, noop)}, ErrInvalidDescriptor},
		{"self cycle", []Descriptor{desc("a", ScopeCase, noop, "a")}, ErrDependencyCycle},
		{"process depends on case", []Descriptor{
			desc("a", ScopeProcess, noop, "b"),
			desc("b", ScopeCase, noop),
		}, ErrScopeMismatch},
	} {
		t.Run(p.name, func(t *testing.T) {
			_, err := New(p.descs...)
			assert.ErrorIs(t, err, p.wantErr)
		})
	}
}

func TestCycleErrorNamesThePath(t *testing.T) {
	noop := tracked(&eventLog{}, "x")
	_, err := New(
		desc("a", ScopeCase, noop, "b"),
		desc("b", ScopeCase, noop, "c"),
		desc("c", ScopeCase, noop, "a"),
	)
	require.ErrorIs(t, err, ErrDependencyCycle)
	assert.Contains(t, err.Error(), "a -> b -> c -> a")
}

func TestExtend(t *testing.T) {
	log := &eventLog{}
	base, err := New(desc("a", ScopeCase, tracked(log, "a")))
	require.NoError(t, err)

	t.Run("adds to base without changing it", func(t *testing.T) {
		ext, err := Extend(base, desc("b", ScopeCase, tracked(log, "b"), "a"))
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, ext.Names())
		assert.Equal(t, []string{"a"}, base.Names())
	})

	t.Run("rejects silent shadowing", func(t *testing.T) {
		_, err := Extend(base, desc("a", ScopeCase, tracked(log, "a2")))
		assert.ErrorIs(t, err, ErrDuplicateFixture)
	})

	t.Run("allows explicit override", func(t *testing.T) {
		override := desc("a", ScopeCase, tracked(log, "a2"))
		override.Override = true
		ext, err := Extend(base, override)
		require.NoError(t, err)
		v, err := ext.NewProcess("p", nil).NewCase("c", nil).Resolve("a")
		require.NoError(t, err)
		assert.Equal(t, "a2", v)
	})

	t.Run("rejects override of nothing", func(t *testing.T) {
		override := desc("z", ScopeCase, tracked(log, "z"))
		override.Override = true
		_, err := Extend(base, override)
		assert.ErrorIs(t, err, ErrUnknownFixture)
	})

	t.Run("validates override against the whole graph", func(t *testing.T) {
		withDep, err := Extend(base, desc("b", ScopeCase, tracked(log, "b"), "a"))
		require.NoError(t, err)
		override := desc("a", ScopeCase, tracked(log, "a2"), "b")
		override.Override = true
		_, err = Extend(withDep, override)
		assert.ErrorIs(t, err, ErrDependencyCycle)
	})
}

func TestCaseResolvesDependenciesOnceAndTearsDownInReverse(t *testing.T) {
	log := &eventLog{}
	set, err := New(
		desc("a", ScopeCase, tracked(log, "a")),
		desc("b", ScopeCase, tracked(log, "b"), "a"),
		Descriptor{Name: "c", Deps: []string{"a", "b"}, Produce: func(deps *Deps, use func(interface{})) error {
			use(Value[string](deps, "a") + Value[string](deps, "b"))
			log.add("teardown c")
			return nil
		}},
	)
	require.NoError(t, err)

	c := set.NewProcess("p", nil).NewCase("case1", nil)
	v, err := Get[string](c, "c")
	require.NoError(t, err)
	assert.Equal(t, "ab", v)

	again, err := Get[string](c, "b")
	require.NoError(t, err)
	assert.Equal(t, "b", again)

	require.NoError(t, c.Close())
	assert.Equal(t, []string{"setup a", "setup b", "teardown c", "teardown b", "teardown a"}, log.get())
}

func TestProcessFixtureIsSharedAcrossCases(t *testing.T) {
	log := &eventLog{}
	set, err := New(
		desc("shared", ScopeProcess, tracked(log, "shared")),
		desc("local", ScopeCase, tracked(log, "local"), "shared"),
	)
	require.NoError(t, err)

	p := set.NewProcess("p", nil)
	for i := 0; i < 3; i++ {
		c := p.NewCase(fmt.Sprintf("case%d", i), nil)
		_, err := c.Resolve("local")
		require.NoError(t, err)
		require.NoError(t, c.Close())
	}
	require.NoError(t, p.Close())

	assert.Equal(t, []string{
		"setup shared",
		"setup local", "teardown local",
		"setup local", "teardown local",
		"setup local", "teardown local",
		"teardown shared",
	}, log.get())
}

func TestProcessFixtureIsAcquiredOnceUnderConcurrency(t *testing.T) {
	log := &eventLog{}
	set, err := New(desc("shared", ScopeProcess, tracked(log, "shared")))
	require.NoError(t, err)
	p := set.NewProcess("p", nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := p.NewCase(fmt.Sprintf("case%d", i), nil).Resolve("shared")
			assert.NoError(t, err)
			assert.Equal(t, "shared", v)
		}(i)
	}
	wg.Wait()
	require.NoError(t, p.Close())
	assert.Equal(t, []string{"setup shared", "teardown shared"}, log.get())
}

func TestFailedProducerTearsDownWhatWasAcquired(t *testing.T) {
	log := &eventLog{}
	boom := errors.New("boom")
	dependentRan := false
	set, err := New(
		desc("a", ScopeCase, tracked(log, "a")),
		desc("b", ScopeCase, failing(boom), "a"),
		Descriptor{Name: "c", Deps: []string{"b"}, Produce: func(deps *Deps, use func(interface{})) error {
			dependentRan = true
			use("c")
			return nil
		}},
	)
	require.NoError(t, err)

	c := set.NewProcess("p", nil).NewCase("case", nil)
	_, err = c.Resolve("c")
	require.ErrorIs(t, err, boom)
	var pe *ProducerError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "b", pe.Fixture)
	assert.False(t, pe.Teardown)
	assert.False(t, dependentRan)

	require.NoError(t, c.Close())
	assert.Equal(t, []string{"setup a", "teardown a"}, log.get())
}

func TestFailedProcessFixtureIsNotRetried(t *testing.T) {
	attempts := 0
	set, err := New(Descriptor{Name: "login", Scope: ScopeProcess, Produce: func(*Deps, func(interface{})) error {
		attempts++
		return errors.New("no")
	}})
	require.NoError(t, err)

	p := set.NewProcess("p", nil)
	for i := 0; i < 3; i++ {
		_, err := p.NewCase("case", nil).Resolve("login")
		assert.Error(t, err)
	}
	assert.Equal(t, 1, attempts)
	assert.NoError(t, p.Close())
}

func TestProducerProtocolViolations(t *testing.T) {
	t.Run("use not called", func(t *testing.T) {
		set, err := New(desc("a", ScopeCase, func(*Deps, func(interface{})) error { return nil }))
		require.NoError(t, err)
		_, err = set.NewProcess("p", nil).NewCase("c", nil).Resolve("a")
		assert.ErrorIs(t, err, ErrUseNotCalled)
	})

	t.Run("use called twice", func(t *testing.T) {
		secondUseReturned := false
		set, err := New(desc("a", ScopeCase, func(_ *Deps, use func(interface{})) error {
			use(1)
			use(2)
			secondUseReturned = true
			return nil
		}))
		require.NoError(t, err)
		c := set.NewProcess("p", nil).NewCase("c", nil)
		v, err := c.Resolve("a")
		require.NoError(t, err)
		assert.Equal(t, 1, v)

		err = c.Close()
		assert.ErrorIs(t, err, ErrUseCalledTwice)
		assert.False(t, secondUseReturned)
	})

	t.Run("panic", func(t *testing.T) {
		set, err := New(desc("a", ScopeCase, func(*Deps, func(interface{})) error { panic("oops") }))
		require.NoError(t, err)
		_, err = set.NewProcess("p", nil).NewCase("c", nil).Resolve("a")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "oops")
		assert.Contains(t, err.Error(), "goroutine")
	})

	t.Run("undeclared dependency", func(t *testing.T) {
		set, err := New(
			desc("a", ScopeCase, tracked(&eventLog{}, "a")),
			desc("b", ScopeCase, func(deps *Deps, use func(interface{})) error {
				use(Value[string](deps, "a"))
				return nil
			}),
		)
		require.NoError(t, err)
		_, err = set.NewProcess("p", nil).NewCase("c", nil).Resolve("b")
		assert.ErrorContains(t, err, "did not declare")
	})
}

func TestCaseCloseRunsEveryTeardownAndJoinsErrors(t *testing.T) {
	log := &eventLog{}
	failingTeardown := func(name string) Producer {
		return func(_ *Deps, use func(interface{})) error {
			use(name)
			log.add("teardown %s", name)
			return fmt.Errorf("%s teardown failed", name)
		}
	}
	set, err := New(
		desc("a", ScopeCase, failingTeardown("a")),
		desc("b", ScopeCase, tracked(log, "b"), "a"),
		desc("c", ScopeCase, failingTeardown("c"), "b"),
	)
	require.NoError(t, err)

	c := set.NewProcess("p", nil).NewCase("case", nil)
	_, err = c.Resolve("c")
	require.NoError(t, err)

	err = c.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a teardown failed")
	assert.Contains(t, err.Error(), "c teardown failed")
	var pe *ProducerError
	require.True(t, errors.As(err, &pe))
	assert.True(t, pe.Teardown)
	assert.Equal(t, []string{"setup b", "teardown c", "teardown b", "teardown a"}, log.get())
}

func TestClosedCaseRejectsResolve(t *testing.T) {
	set, err := New(desc("a", ScopeCase, tracked(&eventLog{}, "a")))
	require.NoError(t, err)
	c := set.NewProcess("p", nil).NewCase("case", nil)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err = c.Resolve("a")
	assert.ErrorIs(t, err, ErrScopeClosed)
}

func TestGetReportsTypeMismatch(t *testing.T) {
	set, err := New(desc("a", ScopeCase, tracked(&eventLog{}, "a")))
	require.NoError(t, err)
	c := set.NewProcess("p", nil).NewCase("case", nil)
	defer c.Close()

	_, err = Get[int](c, "a")
	assert.ErrorContains(t, err, "not int")

	_, err = Get[string](c, "missing")
	assert.ErrorIs(t, err, ErrUnknownFixture)
}

func TestProducersLogToTheirScope(t *testing.T) {
	processLog, caseLog := &framework.CapturingLogger{}, &framework.CapturingLogger{}
	logTo := func(name string) Producer {
		return func(deps *Deps, use func(interface{})) error {
			deps.Logger().Printf("producing %s", name)
			use(name)
			return nil
		}
	}
	set, err := New(
		desc("shared", ScopeProcess, logTo("shared")),
		desc("local", ScopeCase, logTo("local"), "shared"),
	)
	require.NoError(t, err)
	p := set.NewProcess("p", processLog)
	c := p.NewCase("case", caseLog)
	_, err = c.Resolve("local")
	require.NoError(t, err)

	contains := func(out framework.CapturedOutput, msg string) bool {
		for _, m := range out {
			if m.Message == msg {
				return true
			}
		}
		return false
	}
	assert.True(t, contains(processLog.Output(), "producing shared"))
	assert.False(t, contains(processLog.Output(), "producing local"))
	assert.True(t, contains(caseLog.Output(), "producing local"))
	require.NoError(t, c.Close())
	require.NoError(t, p.Close())
}
