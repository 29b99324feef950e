package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/barscan/internal/frame"
	"github.com/MeKo-Tech/barscan/internal/server"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for barcode scanning",
	Long: `Start an HTTP server that decodes uploaded images and exposes the
scan session.

The server provides the following endpoints:
  POST /scan/image   - Decode an uploaded image (multipart field "image")
  GET  /results      - Result log (format=json|text|yaml|csv)
  GET  /options      - Current reader options
  PUT  /options      - Replace reader options
  GET  /session      - Session flags
  POST /session      - Change paused, crop, torch or request a frame dump
  GET  /ws           - WebSocket stream of results
  GET  /health       - Health check endpoint
  GET  /metrics      - Prometheus metrics

With --live the configured frame source is scanned in the background and
its results show up in the same log and stream.

Examples:
  barscan serve
  barscan serve --port 8080
  barscan serve --host 0.0.0.0 --live --config barscan.yaml`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := GetConfig()
		if err != nil {
			return err
		}

		host := cfg.Server.Host
		if cmd.Flags().Changed("host") {
			host, _ = cmd.Flags().GetString("host")
		}

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port, _ = cmd.Flags().GetInt("port")
		}

		corsOrigin := cfg.Server.CORSOrigin
		if cmd.Flags().Changed("cors-origin") {
			corsOrigin, _ = cmd.Flags().GetString("cors-origin")
		}

		maxUploadSize := cfg.Server.MaxUploadMB
		if cmd.Flags().Changed("max-upload-size") {
			maxUploadSize, _ = cmd.Flags().GetInt("max-upload-size")
		}

		timeout := cfg.Server.TimeoutSec
		if cmd.Flags().Changed("timeout") {
			timeout, _ = cmd.Flags().GetInt("timeout")
		}

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if cmd.Flags().Changed("shutdown-timeout") {
			shutdownTimeout, _ = cmd.Flags().GetInt("shutdown-timeout")
		}

		live := cfg.Server.LiveSource
		if cmd.Flags().Changed("live") {
			live, _ = cmd.Flags().GetBool("live")
		}

		if port < 1 || port > 65535 {
			return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", port)
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
		defer cancel()

		var source frame.Source
		if live {
			source, err = newSource(cfg)
			if err != nil {
				return fmt.Errorf("failed to open frame source: %w", err)
			}
			defer func() { _ = source.Close() }()
		}

		runner, err := newRunner(cfg, source, nil)
		if err != nil {
			return err
		}

		scanServer := server.NewServer(server.Config{
			Host:        host,
			Port:        port,
			CORSOrigin:  corsOrigin,
			MaxUploadMB: int64(maxUploadSize),
			TimeoutSec:  timeout,
		}, runner)
		defer func() { _ = scanServer.Close() }()

		mux := http.NewServeMux()
		scanServer.SetupRoutes(mux)

		httpServer := &http.Server{
			Addr:              fmt.Sprintf("%s:%d", host, port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       time.Duration(timeout) * time.Second,
		}

		go scanServer.Run(ctx)

		if live {
			go func() {
				if err := runner.Run(ctx); err != nil {
					slog.Error("Live source stopped", "error", err)
				}
				slog.Info("Live source finished")
			}()
		}

		go func() {
			slog.Info("Starting barcode server", "host", host, "port", port, "live", live)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Server error", "error", err)
				cancel()
			}
		}()

		if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
			slog.Warn("Failed to notify systemd", "error", err)
		} else if ok {
			slog.Debug("Notified systemd readiness")
		}

		<-ctx.Done()
		slog.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", shutdownTimeout))
		_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(shutdownTimeout)*time.Second)
		defer shutdownCancel()

		slog.Info("Shutting down HTTP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		} else {
			slog.Info("HTTP server shutdown completed")
		}

		if err := scanServer.Close(); err != nil {
			slog.Error("Server cleanup error", "error", err)
		}
		runner.Close()
		runner.Stage().WaitSaves()

		slog.Info("Graceful shutdown completed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-upload-size", 20, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 30, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	serveCmd.Flags().Bool("live", false, "scan the configured frame source in the background")
}
