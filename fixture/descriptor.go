package fixture

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// Scope determines how long a fixture instance lives and who shares it.
type Scope int

const (
	// ScopeCase instances are created for one test case and torn down when it ends.
	ScopeCase Scope = iota

	// ScopeProcess instances are created at most once per worker and shared by all of its test
	// cases. They are torn down when the worker shuts down.
	ScopeProcess
)

func (s Scope) String() string {
	switch s {
	case ScopeCase:
		return "case"
	case ScopeProcess:
		return "process"
	default:
		return fmt.Sprintf("Scope(%d)", int(s))
	}
}

// Producer creates a fixture value. It must call use exactly once with the value; use blocks
// until the owning scope is closed, and anything the producer does after that is teardown.
// Returning an error before calling use means the fixture could not be created. Returning an error
// after calling use means teardown failed.
type Producer func(deps *Deps, use func(value interface{})) error

// Descriptor declares a fixture.
type Descriptor struct {
	Name    string
	Scope   Scope
	Deps    []string
	Produce Producer

	// Override must be set to replace a descriptor of the same name in the Set being extended.
	Override bool
}

var (
	ErrInvalidDescriptor = errors.New("invalid fixture descriptor")
	ErrDuplicateFixture  = errors.New("duplicate fixture")
	ErrUnknownFixture    = errors.New("unknown fixture")
	ErrDependencyCycle   = errors.New("fixture dependency cycle")
	ErrScopeMismatch     = errors.New("process-scoped fixture depends on case-scoped fixture")
)

// Set is a validated, immutable collection of descriptors.
type Set struct {
	descriptors map[string]Descriptor
	names       []string
}

// New validates the descriptors and returns them as a Set.
func New(descs ...Descriptor) (*Set, error) {
	return Extend(nil, descs...)
}

// Extend returns a new Set with the descriptors of base plus descs. The base Set is unchanged.
// A descriptor may replace one from base only if it sets Override.
func Extend(base *Set, descs ...Descriptor) (*Set, error) {
	s := &Set{descriptors: make(map[string]Descriptor)}
	if base != nil {
		for _, name := range base.names {
			s.descriptors[name] = base.descriptors[name]
		}
		s.names = append(s.names, base.names...)
	}
	added := make(map[string]bool)
	for _, d := range descs {
		if d.Name == "" {
			return nil, fmt.Errorf("%w: descriptor has no name", ErrInvalidDescriptor)
		}
		if d.Produce == nil {
			return nil, fmt.Errorf("%w: fixture %q has no producer", ErrInvalidDescriptor, d.Name)
		}
		if added[d.Name] {
			return nil, fmt.Errorf("%w: %q is declared twice", ErrDuplicateFixture, d.Name)
		}
		_, exists := s.descriptors[d.Name]
		switch {
		case exists && !d.Override:
			return nil, fmt.Errorf("%w: %q is already defined; set Override to replace it", ErrDuplicateFixture, d.Name)
		case !exists && d.Override:
			return nil, fmt.Errorf("%w: %q overrides a fixture that does not exist", ErrUnknownFixture, d.Name)
		case !exists:
			s.names = append(s.names, d.Name)
		}
		d.Deps = append([]string(nil), d.Deps...)
		s.descriptors[d.Name] = d
		added[d.Name] = true
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Set) validate() error {
	for _, name := range s.names {
		d := s.descriptors[name]
		if dups := lo.FindDuplicates(d.Deps); len(dups) > 0 {
			return fmt.Errorf("%w: fixture %q lists dependency %q more than once", ErrInvalidDescriptor, name, dups[0])
		}
		for _, dep := range d.Deps {
			target, ok := s.descriptors[dep]
			if !ok {
				return fmt.Errorf("%w: fixture %q depends on %q", ErrUnknownFixture, name, dep)
			}
			if d.Scope == ScopeProcess && target.Scope == ScopeCase {
				return fmt.Errorf("%w: %q depends on %q", ErrScopeMismatch, name, dep)
			}
		}
	}
	const (
		unvisited = iota
		visiting
		visited
	)
	state := make(map[string]int)
	var path []string
	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case visited:
			return nil
		case visiting:
			start := lo.IndexOf(path, name)
			cycle := append(append([]string(nil), path[start:]...), name)
			return fmt.Errorf("%w: %s", ErrDependencyCycle, strings.Join(cycle, " -> "))
		}
		state[name] = visiting
		path = append(path, name)
		for _, dep := range s.descriptors[name].Deps {
			if err := visit(dep); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		state[name] = visited
		return nil
	}
	for _, name := range s.names {
		if err := visit(name); err != nil {
			return err
		}
	}
	return nil
}

// Names returns the names of all fixtures in the Set, in the order they were first declared.
func (s *Set) Names() []string {
	return append([]string(nil), s.names...)
}

// Descriptor returns the descriptor with the given name.
func (s *Set) Descriptor(name string) (Descriptor, bool) {
	d, ok := s.descriptors[name]
	return d, ok
}
