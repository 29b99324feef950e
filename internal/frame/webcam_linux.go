//go:build linux

package frame

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"

	"github.com/blackjack/webcam"
	"github.com/pkg/errors"
)

const (
	fourccMJPEG webcam.PixelFormat = 'M' | 'J'<<8 | 'P'<<16 | 'G'<<24
	fourccYUYV  webcam.PixelFormat = 'Y' | 'U'<<8 | 'Y'<<16 | 'V'<<24
)

// waitTimeoutSeconds bounds a single WaitForFrame call so Next notices
// context cancellation.
const waitTimeoutSeconds = 1

// WebcamSource reads frames from a V4L2 device.
type WebcamSource struct {
	cam      *webcam.Webcam
	format   webcam.PixelFormat
	width    int
	height   int
	inflight chan struct{}
}

// OpenWebcam opens device and starts streaming at the requested size,
// preferring MJPEG over YUYV.
func OpenWebcam(device string, width, height int) (*WebcamSource, error) {
	cam, err := webcam.Open(device)
	if err != nil {
		return nil, errors.Wrap(err, "Can not open device")
	}

	supported := cam.GetSupportedFormats()
	var chosen webcam.PixelFormat
	for _, f := range []webcam.PixelFormat{fourccMJPEG, fourccYUYV} {
		if _, ok := supported[f]; ok {
			chosen = f
			break
		}
	}
	if chosen == 0 {
		_ = cam.Close()
		return nil, errors.Errorf("device %s supports neither MJPEG nor YUYV", device)
	}

	f, w, h, err := cam.SetImageFormat(chosen, uint32(width), uint32(height)) //nolint:gosec // sizes come from config
	if err != nil {
		_ = cam.Close()
		return nil, errors.Wrap(err, "Can not set image format")
	}
	if err := cam.StartStreaming(); err != nil {
		_ = cam.Close()
		return nil, errors.Wrap(err, "Can not start streaming")
	}
	slog.Info("Webcam streaming", "device", device, "format", supported[f], "width", w, "height", h)

	return &WebcamSource{
		cam:      cam,
		format:   f,
		width:    int(w),
		height:   int(h),
		inflight: make(chan struct{}, 1),
	}, nil
}

// Next waits for the previous frame to be released and for the device to
// deliver a new one.
func (s *WebcamSource) Next(ctx context.Context) (Frame, error) {
	select {
	case s.inflight <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	img, err := s.read(ctx)
	if err != nil {
		<-s.inflight
		return nil, err
	}
	return NewImageFrame(img, func() { <-s.inflight }), nil
}

func (s *WebcamSource) read(ctx context.Context) (image.Image, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		err := s.cam.WaitForFrame(waitTimeoutSeconds)
		switch err.(type) {
		case nil:
		case *webcam.Timeout:
			continue
		default:
			return nil, errors.Wrap(err, "Frame wait failed")
		}

		buf, err := s.cam.ReadFrame()
		if err != nil {
			return nil, errors.Wrap(err, "Read frame failed")
		}
		if len(buf) == 0 {
			continue
		}

		switch s.format {
		case fourccMJPEG:
			img, err := jpeg.Decode(bytes.NewReader(buf))
			if err != nil {
				slog.Debug("Dropping corrupt MJPEG frame", "error", err)
				continue
			}
			return img, nil
		default:
			return yuyvToYCbCr(buf, s.width, s.height)
		}
	}
}

// SetTorch is not supported by V4L2 capture devices.
func (s *WebcamSource) SetTorch(on bool) error {
	return fmt.Errorf("frame: torch not supported by webcam source (requested %t)", on)
}

// Close stops streaming and closes the device.
func (s *WebcamSource) Close() error {
	if err := s.cam.StopStreaming(); err != nil {
		slog.Warn("Failed to stop streaming", "error", err)
	}
	return s.cam.Close()
}
