package fixture

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/launchdarkly/storefront-e2e/framework"
)

// ErrScopeClosed is returned when resolving a fixture in a scope that has already been closed.
var ErrScopeClosed = errors.New("fixture scope is closed")

type processEntry struct {
	ready chan struct{}
	inst  *instance
	err   error
}

// Process holds the process-scoped fixture instances of one worker. It is safe for concurrent use.
type Process struct {
	set    *Set
	id     string
	logger framework.Logger

	lock     sync.Mutex
	entries  map[string]*processEntry
	acquired []*instance
	closed   bool
}

// NewProcess creates an empty process scope. Nothing is produced until a case asks for it.
func (s *Set) NewProcess(id string, logger framework.Logger) *Process {
	if logger == nil {
		logger = framework.NullLogger()
	}
	return &Process{
		set:     s,
		id:      id,
		logger:  logger,
		entries: make(map[string]*processEntry),
	}
}

func (p *Process) ID() string {
	return p.id
}

func (p *Process) resolve(name string) (interface{}, error) {
	d, ok := p.set.descriptors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFixture, name)
	}
	p.lock.Lock()
	if p.closed {
		p.lock.Unlock()
		return nil, ErrScopeClosed
	}
	if e, ok := p.entries[name]; ok {
		p.lock.Unlock()
		<-e.ready
		if e.err != nil {
			return nil, e.err
		}
		return e.inst.value, nil
	}
	e := &processEntry{ready: make(chan struct{})}
	p.entries[name] = e
	p.lock.Unlock()

	defer close(e.ready)
	deps, err := resolveDeps(d, p.resolve, p.logger)
	if err == nil {
		p.logger.Printf("Acquiring process fixture %q", name)
		e.inst, err = acquire(name, d.Produce, deps)
	}
	if err != nil {
		// a failed process fixture is not retried by later cases
		e.err = err
		p.logger.Printf("Process fixture %q unavailable: %s", name, err)
		return nil, err
	}
	p.lock.Lock()
	p.acquired = append(p.acquired, e.inst)
	p.lock.Unlock()
	return e.inst.value, nil
}

func resolveDeps(d Descriptor, resolve func(string) (interface{}, error), logger framework.Logger) (*Deps, error) {
	deps := &Deps{owner: d.Name, values: make(map[string]interface{}, len(d.Deps)), logger: logger}
	for _, dep := range d.Deps {
		v, err := resolve(dep)
		if err != nil {
			return nil, fmt.Errorf("fixture %q needs %q: %w", d.Name, dep, err)
		}
		deps.values[dep] = v
	}
	return deps, nil
}

// Close tears down every process-scoped instance, most recently acquired first. It must not be
// called while any Case created from this Process is still open.
func (p *Process) Close() error {
	p.lock.Lock()
	if p.closed {
		p.lock.Unlock()
		return nil
	}
	p.closed = true
	acquired := p.acquired
	p.acquired = nil
	p.lock.Unlock()

	return teardownAll(acquired, p.logger)
}

// Case holds the case-scoped fixture instances of one test case. A Case belongs to the goroutine
// running its test and is not safe for concurrent use.
type Case struct {
	process  *Process
	id       string
	logger   framework.Logger
	values   map[string]*instance
	failures map[string]error
	acquired []*instance
	closed   bool
}

// NewCase creates an empty case scope that shares this Process's process-scoped instances.
// Case-scoped producers log to the given logger, which is typically the test's debug logger.
func (p *Process) NewCase(id string, logger framework.Logger) *Case {
	if logger == nil {
		logger = framework.NullLogger()
	}
	return &Case{
		process:  p,
		id:       id,
		logger:   logger,
		values:   make(map[string]*instance),
		failures: make(map[string]error),
	}
}

func (c *Case) ID() string {
	return c.id
}

// Resolve returns the value of the named fixture, producing it and its dependencies first if they
// don't exist yet in this case (or, for process-scoped fixtures, in the process).
func (c *Case) Resolve(name string) (interface{}, error) {
	if c.closed {
		return nil, ErrScopeClosed
	}
	d, ok := c.process.set.descriptors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFixture, name)
	}
	if d.Scope == ScopeProcess {
		return c.process.resolve(name)
	}
	if inst, ok := c.values[name]; ok {
		return inst.value, nil
	}
	if err, ok := c.failures[name]; ok {
		return nil, err
	}
	deps, err := resolveDeps(d, c.Resolve, c.logger)
	if err == nil {
		c.logger.Printf("Acquiring fixture %q", name)
		var inst *instance
		if inst, err = acquire(name, d.Produce, deps); err == nil {
			c.values[name] = inst
			c.acquired = append(c.acquired, inst)
			return inst.value, nil
		}
	}
	c.failures[name] = err
	return nil, err
}

// Close tears down every case-scoped instance in strict reverse order of acquisition. All
// teardowns run even if some fail; their errors are joined.
func (c *Case) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	acquired := c.acquired
	c.acquired = nil
	return teardownAll(acquired, c.logger)
}

func teardownAll(acquired []*instance, logger framework.Logger) error {
	var errs []error
	for i := len(acquired) - 1; i >= 0; i-- {
		inst := acquired[i]
		logger.Printf("Releasing fixture %q", inst.name)
		if err := inst.teardown(); err != nil {
			logger.Printf("%s", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Deps gives a producer the values of the fixtures it declared as dependencies.
type Deps struct {
	owner  string
	values map[string]interface{}
	logger framework.Logger
}

// Logger returns the logger of the scope the fixture is being created in.
func (d *Deps) Logger() framework.Logger {
	return d.logger
}

// Get returns the value of a declared dependency.
func (d *Deps) Get(name string) (interface{}, error) {
	v, ok := d.values[name]
	if !ok {
		return nil, fmt.Errorf("fixture %q did not declare a dependency on %q", d.owner, name)
	}
	return v, nil
}

// Value returns the value of a declared dependency as a T. It panics if the dependency was not
// declared or has a different type; inside a producer, that panic becomes the producer's error.
func Value[T any](d *Deps, name string) T {
	v, err := d.Get(name)
	if err != nil {
		panic(err)
	}
	t, err := convert[T](name, v)
	if err != nil {
		panic(err)
	}
	return t
}

// Get resolves a fixture in a case and returns it as a T.
func Get[T any](c *Case, name string) (T, error) {
	v, err := c.Resolve(name)
	if err != nil {
		var zero T
		return zero, err
	}
	return convert[T](name, v)
}

func convert[T any](name string, v interface{}) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("fixture %q has type %T, not %s", name, v, reflect.TypeOf((*T)(nil)).Elem())
	}
	return t, nil
}
