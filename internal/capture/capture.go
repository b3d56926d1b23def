// Package capture provides capture resources (camera, presence sensor) with
// hardware abstraction. The simulator never reads frames; it only owns a
// Handle between start and stop.
// The fake implementation allows testing without hardware.
package capture

import (
	"context"
	"errors"
	"fmt"
)

// Source acquires and releases capture resources.
type Source interface {
	// Acquire opens the underlying resource. Failures are returned as *Error.
	Acquire(ctx context.Context, opts Options) (Handle, error)

	// Release closes a handle previously returned by Acquire.
	Release(h Handle) error

	// Name identifies the source in logs and status output.
	Name() string
}

// Handle is an opaque token for an acquired resource.
type Handle interface {
	ID() string
}

// Options configures a capture acquisition.
type Options struct {
	Device int    `yaml:"device"` // camera index or GPIO line offset
	Chip   string `yaml:"chip"`   // gpiochip name (GPIO only)
	Width  int    `yaml:"width"`  // requested frame width (camera only)
	Height int    `yaml:"height"` // requested frame height (camera only)
}

// Default device settings.
const (
	DefaultChip        = "gpiochip0"
	DefaultPresencePin = 17
)

// Sentinel causes wrapped by Error.
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrUnavailable      = errors.New("capture device unavailable")
	ErrBusy             = errors.New("capture device already in use")
	ErrNoSource         = errors.New("no capture source configured")
)

// Error reports a failed capture operation.
type Error struct {
	Source string
	Op     string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("capture %s: %s: %v", e.Source, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns the source for kind: "none", "gpio" or "camera".
// "none" returns a nil Source, which the simulator treats as no capture.
func New(kind string) (Source, error) {
	switch kind {
	case "", "none":
		return nil, nil
	case "gpio":
		return NewGPIOSource(), nil
	case "camera":
		return NewCameraSource(), nil
	default:
		return nil, fmt.Errorf("unknown capture source %q", kind)
	}
}
