//go:build !windows

package cmd

import (
	"log/slog"
	"os"
	"syscall"

	"github.com/MeKo-Tech/barscan/internal/scan"
)

// controlSignals lists the signals that drive the session from outside:
// SIGUSR1 requests a frame dump, SIGUSR2 toggles pause.
func controlSignals() []os.Signal {
	return []os.Signal{syscall.SIGUSR1, syscall.SIGUSR2}
}

func handleControlSignal(sig os.Signal, session *scan.Session) {
	switch sig {
	case syscall.SIGUSR1:
		session.RequestSave()
		slog.Info("Frame dump requested", "signal", sig.String())
	case syscall.SIGUSR2:
		paused := !session.Paused()
		session.SetPaused(paused)
		slog.Info("Pause toggled", "signal", sig.String(), "paused", paused)
	}
}
