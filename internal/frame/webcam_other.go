//go:build !linux

package frame

import (
	"context"
	"errors"
)

// ErrWebcamUnsupported is returned on platforms without V4L2.
var ErrWebcamUnsupported = errors.New("frame: webcam capture requires linux")

// WebcamSource is unavailable on this platform.
type WebcamSource struct{}

// OpenWebcam always fails on this platform.
func OpenWebcam(string, int, int) (*WebcamSource, error) {
	return nil, ErrWebcamUnsupported
}

func (s *WebcamSource) Next(context.Context) (Frame, error) { return nil, ErrWebcamUnsupported }

func (s *WebcamSource) SetTorch(bool) error { return ErrWebcamUnsupported }

func (s *WebcamSource) Close() error { return nil }
