package attention

import (
	"fmt"
	"sync/atomic"
)

// Observer receives every sample. A returned error or a panic is logged and
// suppressed; it never stops the loop or unregisters the observer.
type Observer func(Sample) error

// ObserverError wraps a failure raised inside an observer.
type ObserverError struct {
	ID  int
	Err error
}

func (e *ObserverError) Error() string {
	return fmt.Sprintf("observer %d: %v", e.ID, e.Err)
}

func (e *ObserverError) Unwrap() error {
	return e.Err
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	id        int
	fn        Observer
	sim       *Simulator
	cancelled atomic.Bool
}

// Subscribe registers fn for every subsequent sample.
func (s *Simulator) Subscribe(fn Observer) *Subscription {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()

	s.nextID++
	sub := &Subscription{id: s.nextID, fn: fn, sim: s}
	s.observers = append(s.observers, sub)
	return sub
}

// ID returns the registration number of the subscription.
func (sub *Subscription) ID() int {
	return sub.id
}

// Unsubscribe removes the observer. Safe to call more than once and from
// inside the observer itself.
func (sub *Subscription) Unsubscribe() {
	if sub.cancelled.Swap(true) {
		return
	}
	s := sub.sim
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	for i, o := range s.observers {
		if o == sub {
			s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
			return
		}
	}
}

func (sub *Subscription) notify(sample Sample) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ObserverError{ID: sub.id, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if e := sub.fn(sample); e != nil {
		return &ObserverError{ID: sub.id, Err: e}
	}
	return nil
}
