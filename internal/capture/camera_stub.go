//go:build !gocv

package capture

import "context"

// CameraSource is only available when built with the gocv tag.
type CameraSource struct{}

// NewCameraSource returns a source whose Acquire always fails.
func NewCameraSource() *CameraSource {
	return &CameraSource{}
}

// Name returns "camera".
func (s *CameraSource) Name() string { return "camera" }

// Acquire returns ErrUnavailable without the gocv build tag.
func (s *CameraSource) Acquire(context.Context, Options) (Handle, error) {
	return nil, &Error{Source: s.Name(), Op: "acquire", Err: ErrUnavailable}
}

// Release is a no-op without the gocv build tag.
func (s *CameraSource) Release(Handle) error {
	return nil
}
