package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/MeKo-Tech/barscan/internal/frame"
	"github.com/MeKo-Tech/barscan/internal/results"
)

// DefaultResultBuffer is the display channel capacity used when none is given.
const DefaultResultBuffer = 64

// Runner feeds frames from a source through a stage.
type Runner struct {
	source frame.Source
	stage  *Stage
	log    *results.Log
	logger *slog.Logger

	// procMu serializes decode and append so log order is processing order
	// across Run and Submit.
	procMu sync.Mutex

	mu      sync.Mutex
	out     chan results.Entry
	closed  bool
	dropped atomic.Int64

	torchOn bool
}

// NewRunner creates a runner. buffer <= 0 selects DefaultResultBuffer.
// source may be nil when frames only arrive through Submit.
func NewRunner(source frame.Source, stage *Stage, log *results.Log, buffer int) *Runner {
	if buffer <= 0 {
		buffer = DefaultResultBuffer
	}
	return &Runner{
		source: source,
		stage:  stage,
		log:    log,
		logger: stage.logger,
		out:    make(chan results.Entry, buffer),
	}
}

// Results delivers appended entries in order. When the consumer lags, the
// oldest undelivered entries are dropped; the log keeps everything. The
// channel stays open after Run returns so Submit results still arrive; it
// is closed by Close.
func (r *Runner) Results() <-chan results.Entry { return r.out }

// Log returns the result log.
func (r *Runner) Log() *results.Log { return r.log }

// Stage returns the decode stage.
func (r *Runner) Stage() *Stage { return r.stage }

// Dropped returns how many entries were dropped from the results channel.
func (r *Runner) Dropped() int64 { return r.dropped.Load() }

// Run processes frames until the source is exhausted or ctx is cancelled.
// Both are a normal stop; other source errors are returned.
func (r *Runner) Run(ctx context.Context) error {
	if r.source == nil {
		return errors.New("scan: runner has no frame source")
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		r.applyTorch()

		f, err := r.source.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("next frame: %w", err)
		}
		r.process(ctx, f)
	}
}

// Submit processes a single frame outside the source loop. It may be called
// concurrently with Run and after Run has returned.
func (r *Runner) Submit(ctx context.Context, f frame.Frame) Outcome {
	return r.process(ctx, f)
}

// Close closes the results channel. Later results are still appended to the
// log but no longer published.
func (r *Runner) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		close(r.out)
	}
}

func (r *Runner) process(ctx context.Context, f frame.Frame) Outcome {
	r.procMu.Lock()
	defer r.procMu.Unlock()
	out := r.stage.ProcessFrame(ctx, f)
	r.record(out)
	return out
}

func (r *Runner) record(out Outcome) {
	if out.Display == "" {
		return
	}
	entry, ok := r.log.Append(out.Display, out.Points())
	if !ok {
		return
	}
	r.publish(entry)
}

func (r *Runner) publish(e results.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	for {
		select {
		case r.out <- e:
			return
		default:
		}
		select {
		case <-r.out:
			r.dropped.Add(1)
			resultsDropped.Inc()
		default:
		}
	}
}

// applyTorch forwards the session's torch flag to sources that support it.
func (r *Runner) applyTorch() {
	t, ok := r.source.(frame.Torch)
	if !ok {
		return
	}
	want := r.stage.session.TorchEnabled()
	if want == r.torchOn {
		return
	}
	r.torchOn = want
	if err := t.SetTorch(want); err != nil {
		r.logger.Warn("Torch change failed", "torch", want, "error", err)
	}
}
