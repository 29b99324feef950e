//go:build windows

package cmd

import (
	"os"

	"github.com/MeKo-Tech/barscan/internal/scan"
)

func controlSignals() []os.Signal { return nil }

func handleControlSignal(os.Signal, *scan.Session) {}
