package capture

import (
	"context"
	"fmt"
	"sync"
)

// FakeSource is a test double that hands out in-memory handles.
type FakeSource struct {
	mu sync.Mutex

	// AcquireError, if set, is wrapped in *Error and returned by Acquire.
	AcquireError error

	// ReleaseError, if set, is returned by Release (the handle is still freed).
	ReleaseError error

	// Acquired and Released count successful calls.
	Acquired int
	Released int

	// LastOptions holds the options passed to the most recent Acquire.
	LastOptions Options

	held *fakeHandle
	seq  int
}

type fakeHandle struct {
	id string
}

func (h *fakeHandle) ID() string { return h.id }

// NewFakeSource creates a FakeSource with no scripted failures.
func NewFakeSource() *FakeSource {
	return &FakeSource{}
}

// Acquire returns a new handle. Only one handle may be held at a time.
func (f *FakeSource) Acquire(_ context.Context, opts Options) (Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.LastOptions = opts
	if f.AcquireError != nil {
		return nil, &Error{Source: f.Name(), Op: "acquire", Err: f.AcquireError}
	}
	if f.held != nil {
		return nil, &Error{Source: f.Name(), Op: "acquire", Err: ErrBusy}
	}

	f.seq++
	f.held = &fakeHandle{id: fmt.Sprintf("fake-%d", f.seq)}
	f.Acquired++
	return f.held, nil
}

// Release frees the held handle.
func (f *FakeSource) Release(h Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.held == nil || h == nil || h.ID() != f.held.id {
		return &Error{Source: f.Name(), Op: "release", Err: fmt.Errorf("unknown handle")}
	}
	f.held = nil
	f.Released++
	return f.ReleaseError
}

// Held reports whether a handle is currently outstanding.
func (f *FakeSource) Held() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.held != nil
}

// Name returns "fake".
func (f *FakeSource) Name() string { return "fake" }
