package fixture

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
)

var (
	// ErrUseCalledTwice is reported when a producer calls use more than once.
	ErrUseCalledTwice = errors.New("producer called use more than once")

	// ErrUseNotCalled is reported when a producer returns without error but never called use.
	ErrUseNotCalled = errors.New("producer returned without calling use")
)

// ProducerError is returned when a fixture could not be created, or could not be torn down.
type ProducerError struct {
	Fixture  string
	Teardown bool
	Err      error
}

func (e *ProducerError) Error() string {
	if e.Teardown {
		return fmt.Sprintf("teardown of fixture %q failed: %s", e.Fixture, e.Err)
	}
	return fmt.Sprintf("fixture %q failed: %s", e.Fixture, e.Err)
}

func (e *ProducerError) Unwrap() error {
	return e.Err
}

type useCalledTwice struct{}

// instance is a live fixture value whose producer is suspended inside use.
type instance struct {
	name    string
	value   interface{}
	release chan struct{}
	done    chan error
}

// acquire starts the producer on its own goroutine and waits until it either hands over a value
// or finishes without one.
func acquire(name string, produce Producer, deps *Deps) (*instance, error) {
	inst := &instance{
		name:    name,
		release: make(chan struct{}),
		done:    make(chan error, 1),
	}
	values := make(chan interface{}, 1)
	var used int32
	use := func(value interface{}) {
		if !atomic.CompareAndSwapInt32(&used, 0, 1) {
			panic(useCalledTwice{})
		}
		values <- value
		<-inst.release
	}
	go func() {
		inst.done <- runProducer(produce, deps, use)
	}()

	select {
	case v := <-values:
		inst.value = v
		return inst, nil
	case err := <-inst.done:
		if err == nil {
			err = ErrUseNotCalled
		}
		return nil, &ProducerError{Fixture: name, Err: err}
	}
}

func runProducer(produce Producer, deps *Deps, use func(interface{})) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(useCalledTwice); ok {
				err = ErrUseCalledTwice
				return
			}
			err = fmt.Errorf("panic in producer: %v\n%s", r, debug.Stack())
		}
	}()
	return produce(deps, use)
}

// teardown resumes the producer and waits for it to finish.
func (i *instance) teardown() error {
	close(i.release)
	if err := <-i.done; err != nil {
		return &ProducerError{Fixture: i.name, Teardown: true, Err: err}
	}
	return nil
}
