package cmd

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/MeKo-Tech/barscan/internal/barcode"
	"github.com/MeKo-Tech/barscan/internal/config"
	"github.com/MeKo-Tech/barscan/internal/frame"
	"github.com/MeKo-Tech/barscan/internal/results"
	"github.com/MeKo-Tech/barscan/internal/scan"
	"github.com/MeKo-Tech/barscan/internal/snapshot"
)

// newEngine returns a ZXing engine configured from the reader section.
func newEngine(cfg *config.Config) (*barcode.ZXingEngine, barcode.Options, error) {
	opts, err := cfg.ToReaderOptions()
	if err != nil {
		return nil, barcode.Options{}, err
	}
	engine := barcode.NewZXingEngine()
	engine.Configure(opts)
	return engine, opts, nil
}

// newSnapshotSink returns the configured sink, or nil for "none".
func newSnapshotSink(cfg *config.Config) (snapshot.Sink, error) {
	s := cfg.Snapshot
	switch s.Sink {
	case config.SinkNone:
		return nil, nil
	case config.SinkFile:
		sink, err := snapshot.NewFileSink(s.Dir)
		if err != nil {
			return nil, err
		}
		return sink, nil
	case config.SinkAzure:
		var (
			sink *snapshot.AzureSink
			err  error
		)
		if s.Azure.ConnectionString != "" {
			sink, err = snapshot.NewAzureSinkFromConnectionString(s.Azure.ConnectionString, s.Azure.Container, s.Azure.Prefix)
		} else {
			sink, err = snapshot.NewAzureSink(s.Azure.AccountName, s.Azure.AccountKey, s.Azure.Container, s.Azure.Prefix)
		}
		if err != nil {
			return nil, err
		}
		return sink, nil
	default:
		return nil, fmt.Errorf("unknown snapshot sink: %s", s.Sink)
	}
}

// newNotifier logs every dump and rings the terminal bell on failures when
// enabled.
func newNotifier(cfg *config.Config, bell io.Writer) snapshot.Notifier {
	ns := snapshot.Notifiers{snapshot.LogNotifier{Logger: slog.Default()}}
	if cfg.Snapshot.Bell && bell != nil {
		ns = append(ns, snapshot.BellNotifier{W: bell})
	}
	return ns
}

// newSource opens the configured frame source.
func newSource(cfg *config.Config) (frame.Source, error) {
	switch cfg.Source.Type {
	case config.SourceDir:
		src, err := frame.NewDirSource(cfg.Source.Dir,
			frame.WithLoop(cfg.Source.Loop),
			frame.WithInterval(cfg.SourceInterval()))
		if err != nil {
			return nil, err
		}
		return src, nil
	case config.SourceWebcam:
		src, err := frame.OpenWebcam(cfg.Source.Device, cfg.Source.Width, cfg.Source.Height)
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unknown source type: %s", cfg.Source.Type)
	}
}

// newRunner wires engine, session, stage and result log around source.
// bell receives the failure tone; nil disables it.
func newRunner(cfg *config.Config, source frame.Source, bell io.Writer) (*scan.Runner, error) {
	engine, opts, err := newEngine(cfg)
	if err != nil {
		return nil, err
	}

	sink, err := newSnapshotSink(cfg)
	if err != nil {
		return nil, fmt.Errorf("snapshot sink: %w", err)
	}

	session := scan.NewSession(opts)
	session.SetCropEnabled(cfg.Scan.Crop)
	session.SetPaused(cfg.Scan.Paused)
	session.SetTorchEnabled(cfg.Scan.Torch)

	stage := scan.NewStage(engine, session,
		scan.WithSnapshotSink(sink, newNotifier(cfg, bell)),
		scan.WithSaveTimeout(cfg.SaveTimeout()),
		scan.WithLogger(slog.Default()))

	return scan.NewRunner(source, stage, results.NewLog(), cfg.Scan.ResultBuffer), nil
}
