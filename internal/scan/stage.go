package scan

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/barscan/internal/barcode"
	"github.com/MeKo-Tech/barscan/internal/frame"
	"github.com/MeKo-Tech/barscan/internal/snapshot"
)

// DefaultSaveTimeout bounds a single frame dump.
const DefaultSaveTimeout = 30 * time.Second

var errNoSink = errors.New("no snapshot sink configured")

// Stage is the per-frame decode step. ProcessFrame calls are serialized.
type Stage struct {
	mu          sync.Mutex
	engine      barcode.Engine
	session     *Session
	sink        snapshot.Sink
	notifier    snapshot.Notifier
	logger      *slog.Logger
	now         func() time.Time
	saveTimeout time.Duration
	saves       sync.WaitGroup
}

// StageOption configures a Stage.
type StageOption func(*Stage)

// WithSnapshotSink sets where frame dumps go and who hears about them.
// A nil notifier logs through the stage logger.
func WithSnapshotSink(sink snapshot.Sink, notifier snapshot.Notifier) StageOption {
	return func(s *Stage) {
		s.sink = sink
		s.notifier = notifier
	}
}

// WithLogger sets the stage logger.
func WithLogger(l *slog.Logger) StageOption {
	return func(s *Stage) { s.logger = l }
}

// WithClock overrides the clock used for dump names.
func WithClock(now func() time.Time) StageOption {
	return func(s *Stage) { s.now = now }
}

// WithSaveTimeout bounds each dump.
func WithSaveTimeout(d time.Duration) StageOption {
	return func(s *Stage) { s.saveTimeout = d }
}

// NewStage wires engine and session into a stage.
func NewStage(engine barcode.Engine, session *Session, opts ...StageOption) *Stage {
	s := &Stage{
		engine:      engine,
		session:     session,
		logger:      slog.Default(),
		now:         time.Now,
		saveTimeout: DefaultSaveTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	if s.notifier == nil {
		s.notifier = snapshot.LogNotifier{Logger: s.logger}
	}
	return s
}

// Session returns the session the stage reads.
func (s *Stage) Session() *Session { return s.session }

// ProcessFrame converts one frame into an Outcome. The frame is released
// before ProcessFrame returns, whatever the outcome.
func (s *Stage) ProcessFrame(ctx context.Context, f frame.Frame) (out Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	defer func() {
		if err := f.Release(); err != nil {
			s.logger.Error("Frame release failed", "error", err)
		}
		framesTotal.WithLabelValues(out.Kind.String()).Inc()
	}()

	s.syncOptions()

	if s.session.Paused() {
		return Outcome{Kind: OutcomeSkipped}
	}

	var saveName string
	if s.session.TakeSaveRequest() {
		saveName = s.dispatchSave(f)
	}

	crop := CropRegion(f.Width(), f.Height(), s.session.CropEnabled())
	f.SetCrop(crop)

	start := time.Now()
	res, err := s.decode(ctx, f.Image())
	decodeDuration.Observe(time.Since(start).Seconds())

	out = s.classify(ctx, res, err, crop.Min)
	out.SaveName = saveName
	return out
}

// syncOptions reconfigures the engine only when the snapshot changed.
func (s *Stage) syncOptions() {
	opts := s.session.Options()
	if opts.Equal(s.engine.Options()) {
		return
	}
	s.engine.Configure(opts)
	engineReconfigurations.Inc()
	s.logger.Debug("Engine reconfigured", "options", opts.String())
}

// decode calls the engine, turning a panic into an error.
func (s *Stage) decode(ctx context.Context, img image.Image) (res *barcode.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			if e, ok := r.(error); ok {
				err = e
			} else {
				err = fmt.Errorf("%v", r)
			}
		}
	}()
	return s.engine.Decode(ctx, img)
}

func (s *Stage) classify(ctx context.Context, res *barcode.Result, err error, offset image.Point) Outcome {
	switch {
	case errors.Is(err, barcode.ErrNoSymbol):
		return Outcome{Kind: OutcomeNoSymbol}
	case err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return Outcome{Kind: OutcomeSkipped}
	case err != nil:
		display := failureDisplay(err)
		s.logger.Warn("Decode failed", "error", display)
		return Outcome{Kind: OutcomeFailure, Display: display, Err: err}
	case res == nil:
		return Outcome{Kind: OutcomeNoSymbol}
	}

	display := FormatDisplay(res)
	if display == "" {
		return Outcome{Kind: OutcomeNoSymbol}
	}
	out := Outcome{Kind: OutcomeSuccess, Display: display, Result: res}
	if res.Position != nil {
		pos := res.Position.Translate(offset)
		out.Position = &pos
	}
	return out
}

// dispatchSave copies the full frame and hands it to the sink in the
// background. It returns the dump name, or "" if nothing was dispatched.
func (s *Stage) dispatchSave(f frame.Frame) string {
	name := snapshot.Name(s.now())
	if s.sink == nil {
		snapshotsTotal.WithLabelValues("failed").Inc()
		s.notifier.Failed(name, errNoSink)
		return ""
	}

	img := imaging.Clone(f.Full())
	sink, notifier, timeout := s.sink, s.notifier, s.saveTimeout

	s.saves.Add(1)
	go func() {
		defer s.saves.Done()
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := saveSafely(ctx, sink, name, img); err != nil {
			snapshotsTotal.WithLabelValues("failed").Inc()
			notifier.Failed(name, err)
			return
		}
		snapshotsTotal.WithLabelValues("saved").Inc()
		notifier.Saved(name)
	}()
	return name
}

func saveSafely(ctx context.Context, sink snapshot.Sink, name string, img image.Image) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("snapshot sink panic: %v", r)
		}
	}()
	return sink.Save(ctx, name, img)
}

// WaitSaves blocks until every dispatched dump has finished.
func (s *Stage) WaitSaves() { s.saves.Wait() }
