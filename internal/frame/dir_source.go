package frame

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/barscan/internal/utils"
)

// DirSource replays the image files of a directory as frames.
type DirSource struct {
	paths    []string
	loop     bool
	interval time.Duration
	next     int
	last     time.Time
	inflight chan struct{}
	closed   chan struct{}
}

// DirOption configures a DirSource.
type DirOption func(*DirSource)

// WithLoop restarts from the first file after the last one.
func WithLoop(loop bool) DirOption {
	return func(s *DirSource) { s.loop = loop }
}

// WithInterval spaces frames at least d apart.
func WithInterval(d time.Duration) DirOption {
	return func(s *DirSource) { s.interval = d }
}

// NewDirSource lists the supported images in dir (lexical order).
func NewDirSource(dir string, opts ...DirOption) (*DirSource, error) {
	paths, err := utils.ListImages(dir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("frame: no images in %s", dir)
	}
	return NewFileSource(paths, opts...), nil
}

// NewFileSource replays the given image files in order.
func NewFileSource(paths []string, opts ...DirOption) *DirSource {
	s := &DirSource{
		paths:    paths,
		inflight: make(chan struct{}, 1),
		closed:   make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Len returns the number of files in one pass.
func (s *DirSource) Len() int { return len(s.paths) }

// Next blocks until the previous frame is released, then loads the next
// file. Files that fail to decode are logged and skipped.
func (s *DirSource) Next(ctx context.Context) (Frame, error) {
	select {
	case <-s.closed:
		return nil, io.EOF
	default:
	}

	select {
	case s.inflight <- struct{}{}:
	case <-s.closed:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := s.wait(ctx); err != nil {
		<-s.inflight
		return nil, err
	}

	for skipped := 0; skipped < len(s.paths); skipped++ {
		if s.next >= len(s.paths) {
			if !s.loop {
				break
			}
			s.next = 0
		}
		path := s.paths[s.next]
		s.next++

		img, _, err := utils.LoadImage(path)
		if err != nil {
			slog.Warn("Skipping unreadable frame", "path", path, "error", err)
			continue
		}
		s.last = time.Now()
		return NewImageFrame(img, func() { <-s.inflight }), nil
	}

	<-s.inflight
	if s.next >= len(s.paths) && !s.loop {
		return nil, io.EOF
	}
	return nil, errors.New("frame: no decodable images")
}

func (s *DirSource) wait(ctx context.Context) error {
	if s.interval <= 0 || s.last.IsZero() {
		return nil
	}
	d := time.Until(s.last.Add(s.interval))
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close makes pending and future Next calls return io.EOF.
func (s *DirSource) Close() error {
	select {
	case <-s.closed:
	default:
		close(s.closed)
	}
	return nil
}
