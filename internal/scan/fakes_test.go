package scan

import (
	"context"
	"errors"
	"image"
	"io"
	"sync"

	"github.com/MeKo-Tech/barscan/internal/barcode"
	"github.com/MeKo-Tech/barscan/internal/frame"
)

// fakeEngine records calls and returns whatever decodeFn says.
type fakeEngine struct {
	mu           sync.Mutex
	opts         barcode.Options
	configures   int
	decodes      int
	lastBounds   image.Rectangle
	optsAtDecode []barcode.Options
	decodeFn     func(ctx context.Context, img image.Image) (*barcode.Result, error)
}

func (e *fakeEngine) Configure(opts barcode.Options) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.configures++
	e.opts = opts
}

func (e *fakeEngine) Options() barcode.Options {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opts
}

func (e *fakeEngine) Decode(ctx context.Context, img image.Image) (*barcode.Result, error) {
	e.mu.Lock()
	e.decodes++
	e.lastBounds = img.Bounds()
	e.optsAtDecode = append(e.optsAtDecode, e.opts)
	fn := e.decodeFn
	e.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(ctx, img)
}

func (e *fakeEngine) counts() (configures, decodes int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.configures, e.decodes
}

func textResult(text string) *barcode.Result {
	return &barcode.Result{
		Format:      barcode.FormatQRCode,
		ContentType: barcode.ContentText,
		Text:        text,
		Bytes:       []byte(text),
	}
}

func newFrame(w, h int) *frame.ImageFrame {
	return frame.NewImageFrame(image.NewGray(image.Rect(0, 0, w, h)), nil)
}

// sliceSource hands out pre-built frames, then io.EOF (or err).
type sliceSource struct {
	frames []*frame.ImageFrame
	err    error
	next   int
	torch  []bool
}

func (s *sliceSource) Next(context.Context) (frame.Frame, error) {
	if s.next >= len(s.frames) {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	f := s.frames[s.next]
	s.next++
	return f, nil
}

func (s *sliceSource) Close() error { return nil }

func (s *sliceSource) SetTorch(on bool) error {
	s.torch = append(s.torch, on)
	if !on {
		return errors.New("cannot switch off")
	}
	return nil
}

// blockingSink holds every Save until release is closed.
type blockingSink struct {
	mu      sync.Mutex
	calls   int
	names   []string
	bounds  []image.Rectangle
	release chan struct{}
	err     error
}

func newBlockingSink() *blockingSink {
	return &blockingSink{release: make(chan struct{})}
}

func (s *blockingSink) Save(ctx context.Context, name string, img image.Image) error {
	s.mu.Lock()
	s.calls++
	s.names = append(s.names, name)
	s.bounds = append(s.bounds, img.Bounds())
	s.mu.Unlock()
	select {
	case <-s.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.err
}

func (s *blockingSink) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recordingNotifier struct {
	mu     sync.Mutex
	saved  []string
	failed []string
	errs   []error
}

func (n *recordingNotifier) Saved(name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.saved = append(n.saved, name)
}

func (n *recordingNotifier) Failed(name string, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, name)
	n.errs = append(n.errs, err)
}
