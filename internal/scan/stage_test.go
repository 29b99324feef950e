package scan

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/barscan/internal/barcode"
	"github.com/MeKo-Tech/barscan/internal/frame"
)

func TestCropRegion(t *testing.T) {
	tests := []struct {
		name    string
		w, h    int
		enabled bool
		want    image.Rectangle
	}{
		{"landscape", 640, 480, true, image.Rect(160, 80, 480, 400)},
		{"portrait", 480, 640, true, image.Rect(80, 160, 400, 480)},
		{"square odd", 100, 100, true, image.Rect(17, 17, 83, 83)},
		{"floor of side", 10, 7, true, image.Rect(3, 1, 7, 5)},
		{"tiny", 1, 1, true, image.Rect(0, 0, 0, 0)},
		{"disabled", 640, 480, false, image.Rect(0, 0, 640, 480)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CropRegion(tt.w, tt.h, tt.enabled)
			assert.Equal(t, tt.want, got)
			if tt.enabled {
				assert.Equal(t, got.Dx(), got.Dy(), "region must be square")
				assert.Equal(t, min(tt.w, tt.h)*2/3, got.Dx())
			}
		})
	}
}

func TestFormatDisplay(t *testing.T) {
	tests := []struct {
		name string
		res  *barcode.Result
		want string
	}{
		{"text", textResult("hello"), "QR_CODE (TEXT): hello"},
		{
			"binary as hex",
			&barcode.Result{Format: barcode.FormatQRCode, ContentType: barcode.ContentBinary, Text: "\nÿ", Bytes: []byte{0x0a, 0xff}},
			"QR_CODE (BINARY): 0aff",
		},
		{
			"gs1 keeps text",
			&barcode.Result{Format: barcode.FormatCode128, ContentType: barcode.ContentGS1, Text: "0104012345678901"},
			"CODE_128 (GS1): 0104012345678901",
		},
		{"empty text", textResult(""), ""},
		{"empty binary", &barcode.Result{Format: barcode.FormatQRCode, ContentType: barcode.ContentBinary}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDisplay(tt.res))
		})
	}
}

func TestProcessFrame_ReleasesExactlyOnce(t *testing.T) {
	step := 0
	engine := &fakeEngine{decodeFn: func(context.Context, image.Image) (*barcode.Result, error) {
		step++
		switch step % 5 {
		case 0:
			return nil, errors.New("bad buffer")
		case 1:
			return textResult("ok"), nil
		case 2:
			return nil, nil
		case 3:
			return textResult(""), nil
		default:
			panic("engine fault")
		}
	}}
	session := NewSession(barcode.DefaultOptions())
	stage := NewStage(engine, session)

	var frames []*frame.ImageFrame
	for i := range 20 {
		session.SetPaused(i%4 == 3)
		session.SetCropEnabled(i%2 == 0)
		f := newFrame(64, 48)
		frames = append(frames, f)
		stage.ProcessFrame(context.Background(), f)
	}

	for i, f := range frames {
		assert.Equal(t, 1, f.Releases(), "frame %d", i)
	}
}

func TestProcessFrame_PauseShortCircuits(t *testing.T) {
	engine := &fakeEngine{decodeFn: func(context.Context, image.Image) (*barcode.Result, error) {
		return textResult("should not happen"), nil
	}}
	session := NewSession(barcode.DefaultOptions())
	session.SetPaused(true)
	session.RequestSave()
	sink := newBlockingSink()
	close(sink.release)
	stage := NewStage(engine, session, WithSnapshotSink(sink, &recordingNotifier{}))

	f := newFrame(32, 32)
	out := stage.ProcessFrame(context.Background(), f)

	assert.Equal(t, OutcomeSkipped, out.Kind)
	assert.Empty(t, out.Display)
	assert.Equal(t, 1, f.Releases())
	_, decodes := engine.counts()
	assert.Zero(t, decodes)
	assert.True(t, session.SaveRequested(), "a pending save waits for an unpaused frame")
	assert.Zero(t, sink.callCount())

	session.SetPaused(false)
	out = stage.ProcessFrame(context.Background(), newFrame(32, 32))
	stage.WaitSaves()
	assert.Equal(t, OutcomeSuccess, out.Kind)
	assert.Equal(t, 1, sink.callCount())
}

func TestProcessFrame_CropAppliedBeforeDecode(t *testing.T) {
	engine := &fakeEngine{}
	session := NewSession(barcode.DefaultOptions())
	stage := NewStage(engine, session)

	stage.ProcessFrame(context.Background(), newFrame(640, 480))
	assert.Equal(t, image.Rect(0, 0, 640, 480), engine.lastBounds)

	session.SetCropEnabled(true)
	f := newFrame(640, 480)
	stage.ProcessFrame(context.Background(), f)
	assert.Equal(t, image.Rect(160, 80, 480, 400), engine.lastBounds)
	assert.Equal(t, image.Rect(160, 80, 480, 400), f.Crop())
}

func TestProcessFrame_PositionInFrameCoordinates(t *testing.T) {
	engine := &fakeEngine{decodeFn: func(context.Context, image.Image) (*barcode.Result, error) {
		r := textResult("pos")
		r.Position = &barcode.Position{
			TopLeft:     barcode.Point{X: 10, Y: 10},
			TopRight:    barcode.Point{X: 50, Y: 10},
			BottomRight: barcode.Point{X: 50, Y: 50},
			BottomLeft:  barcode.Point{X: 10, Y: 50},
		}
		return r, nil
	}}
	session := NewSession(barcode.DefaultOptions())
	session.SetCropEnabled(true)
	stage := NewStage(engine, session)

	out := stage.ProcessFrame(context.Background(), newFrame(640, 480))
	require.Equal(t, OutcomeSuccess, out.Kind)
	require.NotNil(t, out.Position)
	assert.Equal(t, []barcode.Point{{X: 170, Y: 90}, {X: 210, Y: 90}, {X: 210, Y: 130}, {X: 170, Y: 130}}, out.Points())
	assert.Equal(t, barcode.Point{X: 10, Y: 10}, out.Result.Position.TopLeft, "engine result is left untouched")
}

func TestProcessFrame_ConfigChangeDetection(t *testing.T) {
	engine := &fakeEngine{}
	session := NewSession(barcode.DefaultOptions())
	stage := NewStage(engine, session)

	stage.ProcessFrame(context.Background(), newFrame(8, 8))
	stage.ProcessFrame(context.Background(), newFrame(8, 8))
	configures, _ := engine.counts()
	assert.Zero(t, configures, "unchanged options must not reconfigure")

	harder := session.Options().WithTryHarder(true)
	session.SetOptions(harder)
	stage.ProcessFrame(context.Background(), newFrame(8, 8))
	configures, _ = engine.counts()
	assert.Equal(t, 1, configures)
	assert.True(t, engine.optsAtDecode[2].TryHarder, "engine is reconfigured before the decode")

	// Equal but distinct snapshot: no reconfiguration.
	session.SetOptions(barcode.DefaultOptions().WithTryHarder(true))
	stage.ProcessFrame(context.Background(), newFrame(8, 8))
	configures, _ = engine.counts()
	assert.Equal(t, 1, configures)
}

func TestProcessFrame_ConfigSyncedWhilePaused(t *testing.T) {
	engine := &fakeEngine{}
	session := NewSession(barcode.DefaultOptions().WithFormats(barcode.FormatEAN13))
	session.SetPaused(true)
	stage := NewStage(engine, session)

	stage.ProcessFrame(context.Background(), newFrame(8, 8))
	configures, decodes := engine.counts()
	assert.Equal(t, 1, configures)
	assert.Zero(t, decodes)
}

func TestProcessFrame_ErrorContainment(t *testing.T) {
	tests := []struct {
		name    string
		decode  func(context.Context, image.Image) (*barcode.Result, error)
		display string
	}{
		{"error message", func(context.Context, image.Image) (*barcode.Result, error) {
			return nil, errors.New("bad buffer")
		}, "bad buffer"},
		{"empty message", func(context.Context, image.Image) (*barcode.Result, error) {
			return nil, errors.New("")
		}, "Error"},
		{"panic with error", func(context.Context, image.Image) (*barcode.Result, error) {
			panic(errors.New("bad buffer"))
		}, "bad buffer"},
		{"panic with value", func(context.Context, image.Image) (*barcode.Result, error) {
			panic("index out of range")
		}, "index out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &fakeEngine{decodeFn: tt.decode}
			stage := NewStage(engine, NewSession(barcode.DefaultOptions()))

			f := newFrame(16, 16)
			out := stage.ProcessFrame(context.Background(), f)
			assert.Equal(t, OutcomeFailure, out.Kind)
			assert.Equal(t, tt.display, out.Display)
			assert.Nil(t, out.Position)
			require.Error(t, out.Err)
			assert.Equal(t, 1, f.Releases())

			engine.decodeFn = func(context.Context, image.Image) (*barcode.Result, error) {
				return textResult("next"), nil
			}
			out = stage.ProcessFrame(context.Background(), newFrame(16, 16))
			assert.Equal(t, OutcomeSuccess, out.Kind, "stage keeps working after a failure")
		})
	}
}

func TestProcessFrame_NoSymbol(t *testing.T) {
	for name, fn := range map[string]func(context.Context, image.Image) (*barcode.Result, error){
		"nil result": func(context.Context, image.Image) (*barcode.Result, error) { return nil, nil },
		"sentinel":   func(context.Context, image.Image) (*barcode.Result, error) { return nil, barcode.ErrNoSymbol },
		"wrapped": func(context.Context, image.Image) (*barcode.Result, error) {
			return nil, errors.Join(errors.New("reader"), barcode.ErrNoSymbol)
		},
		"empty text": func(context.Context, image.Image) (*barcode.Result, error) { return textResult(""), nil },
	} {
		t.Run(name, func(t *testing.T) {
			stage := NewStage(&fakeEngine{decodeFn: fn}, NewSession(barcode.DefaultOptions()))
			out := stage.ProcessFrame(context.Background(), newFrame(4, 4))
			assert.Equal(t, OutcomeNoSymbol, out.Kind)
			assert.Empty(t, out.Display)
			assert.Nil(t, out.Result)
		})
	}
}

func TestProcessFrame_CancelledContextIsSkipped(t *testing.T) {
	engine := &fakeEngine{decodeFn: func(ctx context.Context, _ image.Image) (*barcode.Result, error) {
		return nil, ctx.Err()
	}}
	stage := NewStage(engine, NewSession(barcode.DefaultOptions()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := newFrame(4, 4)
	out := stage.ProcessFrame(ctx, f)
	assert.Equal(t, OutcomeSkipped, out.Kind)
	assert.Equal(t, 1, f.Releases())
}

func TestProcessFrame_SaveOnce(t *testing.T) {
	sink := newBlockingSink()
	notifier := &recordingNotifier{}
	session := NewSession(barcode.DefaultOptions())
	session.SetCropEnabled(true)
	now := time.UnixMilli(1700000000000)
	stage := NewStage(&fakeEngine{}, session, WithSnapshotSink(sink, notifier), WithClock(func() time.Time { return now }))

	session.RequestSave()
	first := newFrame(120, 90)
	out := stage.ProcessFrame(context.Background(), first)
	assert.Equal(t, "1700000000000_barscan.jpg", out.SaveName)
	assert.False(t, session.SaveRequested(), "request is cleared by the stage")
	assert.Equal(t, 1, first.Releases(), "release does not wait for the write")

	// Next frame arrives while the write is still blocked.
	out = stage.ProcessFrame(context.Background(), newFrame(120, 90))
	assert.Empty(t, out.SaveName)

	close(sink.release)
	stage.WaitSaves()
	assert.Equal(t, 1, sink.callCount())
	assert.Equal(t, []image.Rectangle{image.Rect(0, 0, 120, 90)}, sink.bounds, "dump holds the full frame")
	assert.Equal(t, []string{"1700000000000_barscan.jpg"}, notifier.saved)
	assert.Empty(t, notifier.failed)
}

func TestProcessFrame_SaveFailureDoesNotAffectDecode(t *testing.T) {
	sink := newBlockingSink()
	sink.err = errors.New("disk full")
	close(sink.release)
	notifier := &recordingNotifier{}
	engine := &fakeEngine{decodeFn: func(context.Context, image.Image) (*barcode.Result, error) {
		return textResult("still decoded"), nil
	}}
	session := NewSession(barcode.DefaultOptions())
	stage := NewStage(engine, session, WithSnapshotSink(sink, notifier))

	session.RequestSave()
	out := stage.ProcessFrame(context.Background(), newFrame(10, 10))
	stage.WaitSaves()

	assert.Equal(t, OutcomeSuccess, out.Kind)
	assert.Equal(t, "QR_CODE (TEXT): still decoded", out.Display)
	require.Len(t, notifier.errs, 1)
	assert.EqualError(t, notifier.errs[0], "disk full")
}

func TestProcessFrame_SaveWithoutSink(t *testing.T) {
	notifier := &recordingNotifier{}
	session := NewSession(barcode.DefaultOptions())
	stage := NewStage(&fakeEngine{}, session, WithSnapshotSink(nil, notifier))

	session.RequestSave()
	out := stage.ProcessFrame(context.Background(), newFrame(10, 10))
	assert.Empty(t, out.SaveName)
	assert.Len(t, notifier.failed, 1)
	assert.False(t, session.SaveRequested())
}

func TestSession_TakeSaveRequestSingleWinner(t *testing.T) {
	s := NewSession(barcode.DefaultOptions())
	s.RequestSave()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.TakeSaveRequest() {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestSession_Options(t *testing.T) {
	s := NewSession(barcode.DefaultOptions())
	before := s.Options()

	got := s.UpdateOptions(func(o barcode.Options) barcode.Options { return o.WithTryRotate(true) })
	assert.True(t, got.TryRotate)
	assert.True(t, s.Options().TryRotate)
	assert.False(t, before.TryRotate, "earlier snapshots are not mutated")

	s.SetPaused(true)
	s.SetTorchEnabled(true)
	state := s.State()
	assert.True(t, state.Paused)
	assert.True(t, state.Torch)
	assert.False(t, state.CropEnabled)
	assert.Contains(t, state.Options, "try_rotate=true")
}

func TestOutcomeKindString(t *testing.T) {
	assert.Equal(t, "skipped", OutcomeSkipped.String())
	assert.Equal(t, "no_symbol", OutcomeNoSymbol.String())
	assert.Equal(t, "success", OutcomeSuccess.String())
	assert.Equal(t, "failure", OutcomeFailure.String())
	assert.Equal(t, "unknown", OutcomeKind(9).String())
}
