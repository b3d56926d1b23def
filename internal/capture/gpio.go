//go:build linux

package capture

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

// GPIOSource holds a presence-sensor input line (seat switch, PIR) for the
// lifetime of a tracking session using the Linux GPIO character device.
type GPIOSource struct {
	mu   sync.Mutex
	held *gpioHandle
}

type gpioHandle struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
	id   string
}

func (h *gpioHandle) ID() string { return h.id }

// NewGPIOSource creates a GPIO capture source.
func NewGPIOSource() *GPIOSource {
	return &GPIOSource{}
}

// Name returns "gpio".
func (s *GPIOSource) Name() string { return "gpio" }

// Acquire requests the configured line as an input with pull-down.
func (s *GPIOSource) Acquire(_ context.Context, opts Options) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.held != nil {
		return nil, &Error{Source: s.Name(), Op: "acquire", Err: ErrBusy}
	}

	chipName := opts.Chip
	if chipName == "" {
		chipName = DefaultChip
	}
	pin := opts.Device
	if pin == 0 {
		pin = DefaultPresencePin
	}

	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer("attention-sensor"))
	if err != nil {
		return nil, &Error{Source: s.Name(), Op: "open chip " + chipName, Err: classify(err)}
	}

	// Pull-down matches Pi boot defaults for the line.
	line, err := chip.RequestLine(pin, gpiocdev.AsInput, gpiocdev.WithPullDown)
	if err != nil {
		chip.Close()
		return nil, &Error{Source: s.Name(), Op: fmt.Sprintf("request pin %d", pin), Err: classify(err)}
	}

	s.held = &gpioHandle{
		chip: chip,
		line: line,
		id:   fmt.Sprintf("%s:%d", chipName, pin),
	}
	return s.held, nil
}

// Release reconfigures the line to input with pull-down and closes it.
func (s *GPIOSource) Release(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	gh, ok := h.(*gpioHandle)
	if !ok || gh != s.held {
		return &Error{Source: s.Name(), Op: "release", Err: errors.New("unknown handle")}
	}
	s.held = nil

	var errs []error
	if gh.line != nil {
		if err := gh.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure line: %w", err))
		}
		if err := gh.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line: %w", err))
		}
	}
	if gh.chip != nil {
		if err := gh.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	return errors.Join(errs...)
}

// classify maps OS errors onto the package sentinels.
func classify(err error) error {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	default:
		return err
	}
}
