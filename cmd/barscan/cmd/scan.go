package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/barscan/internal/config"
	"github.com/MeKo-Tech/barscan/internal/results"
	"github.com/MeKo-Tech/barscan/internal/scan"
)

// scanCmd represents the scan command.
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan barcodes live from a webcam or an image directory",
	Long: `Feed frames from a V4L2 webcam or a directory of images through the
decoder and print each result as it is found.

Controls (with --interactive, one command per line on stdin):
  s  dump the next frame        p  pause / resume
  c  toggle the center crop     t  toggle the torch
  q  quit

On Unix, SIGUSR1 dumps the next frame and SIGUSR2 toggles pause.

Examples:
  barscan scan
  barscan scan --device /dev/video2 --width 640 --height 480
  barscan scan --dir ./frames --crop=false --format json
  barscan scan --dir ./frames --save-first --snapshot-dir ./dumps`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}

		format := cfg.Output.Format
		if cmd.Flags().Changed("format") {
			format, _ = cmd.Flags().GetString("format")
		}
		if !results.ValidFormat(format) {
			return fmt.Errorf("invalid output format: %s (must be one of: text, json, yaml, csv)", format)
		}
		outputFile := cfg.Output.File
		if cmd.Flags().Changed("output") {
			outputFile, _ = cmd.Flags().GetString("output")
		}
		saveFirst, _ := cmd.Flags().GetBool("save-first")
		interactive, _ := cmd.Flags().GetBool("interactive")

		source, err := newSource(cfg)
		if err != nil {
			return fmt.Errorf("failed to open frame source: %w", err)
		}
		defer func() { _ = source.Close() }()

		runner, err := newRunner(cfg, source, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		session := runner.Stage().Session()
		if saveFirst {
			session.RequestSave()
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go watchControlSignals(ctx, session)
		if interactive {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), controlHelp)
			go runControls(ctx, cmd.InOrStdin(), session, cmd.ErrOrStderr(), stop)
		}

		slog.Info("Scanning",
			"source", cfg.Source.Type,
			"crop", session.CropEnabled(),
			"paused", session.Paused(),
			"options", session.Options().String())

		printed := make(chan struct{})
		go func() {
			defer close(printed)
			printEntries(cmd.OutOrStdout(), runner.Results(), format)
		}()

		runErr := runner.Run(ctx)
		runner.Close()
		<-printed
		runner.Stage().WaitSaves()

		log := runner.Log()
		slog.Info("Scan finished",
			"results", log.Len(),
			"distinct", log.Distinct(),
			"dropped", runner.Dropped())

		if outputFile != "" {
			if err := writeEntries(outputFile, log.Entries(), format); err != nil {
				return err
			}
		}
		return runErr
	},
}

// printEntries writes entries live until in is closed. json prints one
// object per line; the other formats print the display string.
func printEntries(w io.Writer, in <-chan results.Entry, format string) {
	enc := json.NewEncoder(w)
	for e := range in {
		if format == results.FormatJSON {
			if err := enc.Encode(e); err != nil {
				slog.Error("Failed to encode result", "error", err)
			}
			continue
		}
		_, _ = fmt.Fprintln(w, e.Text)
	}
}

// writeEntries renders the full log into path.
func writeEntries(path string, entries []results.Entry, format string) error {
	out, err := results.FormatEntries(entries, format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}
	if err := os.WriteFile(path, []byte(out), 0o600); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

func watchControlSignals(ctx context.Context, session *scan.Session) {
	sigs := controlSignals()
	if len(sigs) == 0 {
		return
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)
	defer signal.Stop(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-ch:
			handleControlSignal(sig, session)
		}
	}
}

func init() {
	rootCmd.AddCommand(scanCmd)

	defaults := config.DefaultConfig()
	f := scanCmd.Flags()
	f.String("source", defaults.Source.Type, "frame source: webcam or dir")
	f.String("device", defaults.Source.Device, "V4L2 device path")
	f.Int("width", defaults.Source.Width, "requested webcam frame width")
	f.Int("height", defaults.Source.Height, "requested webcam frame height")
	f.String("dir", "", "replay images from this directory (implies --source dir)")
	f.Bool("loop", false, "restart the directory from the first image when done")
	f.Int("interval", 0, "minimum milliseconds between directory frames")
	f.Bool("crop", defaults.Scan.Crop, "decode only the centered square of each frame")
	f.Bool("paused", false, "start paused")
	f.Bool("torch", false, "request the torch on start")
	f.String("snapshot-sink", defaults.Snapshot.Sink, "where frame dumps go: none, file or azure")
	f.String("snapshot-dir", defaults.Snapshot.Dir, "directory for the file snapshot sink")
	f.Bool("bell", defaults.Snapshot.Bell, "ring the terminal bell when a frame dump fails")
	f.Bool("save-first", false, "dump the first processed frame")
	f.BoolP("interactive", "i", false, "read control commands from stdin")
	f.StringP("format", "f", defaults.Output.Format, "output format (text, json); yaml and csv apply to --output")
	f.StringP("output", "o", "", "also write all results to this file when done")

	bindFlags(f.Lookup, []flagBinding{
		{"source.type", "source"},
		{"source.device", "device"},
		{"source.width", "width"},
		{"source.height", "height"},
		{"source.dir", "dir"},
		{"source.loop", "loop"},
		{"source.interval_ms", "interval"},
		{"scan.crop", "crop"},
		{"scan.paused", "paused"},
		{"scan.torch", "torch"},
		{"snapshot.sink", "snapshot-sink"},
		{"snapshot.dir", "snapshot-dir"},
		{"snapshot.bell", "bell"},
	})

	// --dir alone selects the directory source.
	scanCmd.PreRun = func(cmd *cobra.Command, args []string) {
		if cmd.Flags().Changed("dir") && !cmd.Flags().Changed("source") {
			GetConfigLoader().Set("source.type", config.SourceDir)
		}
	}
}
