//go:build gocv

package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// CameraSource opens a local video device through OpenCV. Frames are never
// read; the device is only held so no other process can grab it mid-session.
type CameraSource struct {
	mu   sync.Mutex
	held *cameraHandle
}

type cameraHandle struct {
	vc *gocv.VideoCapture
	id string
}

func (h *cameraHandle) ID() string { return h.id }

// NewCameraSource creates a camera capture source.
func NewCameraSource() *CameraSource {
	return &CameraSource{}
}

// Name returns "camera".
func (s *CameraSource) Name() string { return "camera" }

// Acquire opens the camera at opts.Device.
func (s *CameraSource) Acquire(_ context.Context, opts Options) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.held != nil {
		return nil, &Error{Source: s.Name(), Op: "acquire", Err: ErrBusy}
	}

	vc, err := gocv.OpenVideoCapture(opts.Device)
	if err != nil {
		return nil, &Error{Source: s.Name(), Op: fmt.Sprintf("open device %d", opts.Device), Err: fmt.Errorf("%w: %v", ErrUnavailable, err)}
	}
	if !vc.IsOpened() {
		vc.Close()
		// OpenCV does not distinguish a denied device from a missing one.
		return nil, &Error{Source: s.Name(), Op: fmt.Sprintf("open device %d", opts.Device), Err: ErrPermissionDenied}
	}
	if opts.Width > 0 && opts.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(opts.Width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(opts.Height))
	}

	s.held = &cameraHandle{vc: vc, id: fmt.Sprintf("video%d", opts.Device)}
	return s.held, nil
}

// Release closes the camera.
func (s *CameraSource) Release(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := h.(*cameraHandle)
	if !ok || ch != s.held {
		return &Error{Source: s.Name(), Op: "release", Err: errors.New("unknown handle")}
	}
	s.held = nil
	if err := ch.vc.Close(); err != nil {
		return &Error{Source: s.Name(), Op: "release", Err: err}
	}
	return nil
}
