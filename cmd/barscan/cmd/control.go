package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/MeKo-Tech/barscan/internal/scan"
)

const controlHelp = "commands: s=save frame  p=pause/resume  c=crop on/off  t=torch on/off  q=quit"

// applyControl executes one keyboard command against the session. It
// returns false when the command asks to quit.
func applyControl(line string, session *scan.Session, out io.Writer) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "":
	case "s", "save":
		session.RequestSave()
		_, _ = fmt.Fprintln(out, "save requested")
	case "p", "pause":
		paused := !session.Paused()
		session.SetPaused(paused)
		_, _ = fmt.Fprintf(out, "paused: %t\n", paused)
	case "c", "crop":
		crop := !session.CropEnabled()
		session.SetCropEnabled(crop)
		_, _ = fmt.Fprintf(out, "crop: %t\n", crop)
	case "t", "torch":
		torch := !session.TorchEnabled()
		session.SetTorchEnabled(torch)
		_, _ = fmt.Fprintf(out, "torch: %t\n", torch)
	case "q", "quit", "exit":
		return false
	default:
		_, _ = fmt.Fprintln(out, controlHelp)
	}
	return true
}

// runControls reads commands from in until EOF, quit, or ctx is done.
// quit is called when the user asks to stop.
func runControls(ctx context.Context, in io.Reader, session *scan.Session, out io.Writer, quit func()) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if !applyControl(line, session, out) {
				quit()
				return
			}
		}
	}
}
