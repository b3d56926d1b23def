//go:build !linux

package capture

import "context"

// GPIOSource is not available on non-Linux platforms.
type GPIOSource struct{}

// NewGPIOSource returns a source whose Acquire always fails.
func NewGPIOSource() *GPIOSource {
	return &GPIOSource{}
}

// Name returns "gpio".
func (s *GPIOSource) Name() string { return "gpio" }

// Acquire returns ErrUnavailable on non-Linux platforms.
func (s *GPIOSource) Acquire(context.Context, Options) (Handle, error) {
	return nil, &Error{Source: s.Name(), Op: "acquire", Err: ErrUnavailable}
}

// Release is a no-op on non-Linux platforms.
func (s *GPIOSource) Release(Handle) error {
	return nil
}
