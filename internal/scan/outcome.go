package scan

import (
	"encoding/hex"
	"fmt"

	"github.com/MeKo-Tech/barscan/internal/barcode"
)

// OutcomeKind tags the result of processing one frame.
type OutcomeKind int

const (
	// OutcomeSkipped means the frame was not decoded (paused or shutting down).
	OutcomeSkipped OutcomeKind = iota
	// OutcomeNoSymbol means the engine found nothing.
	OutcomeNoSymbol
	// OutcomeSuccess carries a decoded symbol.
	OutcomeSuccess
	// OutcomeFailure means the engine failed on this frame.
	OutcomeFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeNoSymbol:
		return "no_symbol"
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Outcome is the tagged result of Stage.ProcessFrame. Display is set for
// Success and Failure only; Result and Position only for Success.
type Outcome struct {
	Kind    OutcomeKind
	Display string
	Result  *barcode.Result
	// Position is in frame coordinates.
	Position *barcode.Position
	Err      error
	// SaveName is the dump name when this frame triggered a save.
	SaveName string
}

// Points returns the corner points, or nil when there is no geometry.
func (o Outcome) Points() []barcode.Point {
	if o.Position == nil {
		return nil
	}
	return o.Position.Points()
}

// FormatDisplay renders a decoded result as "<format> (<content>): <payload>".
// It returns "" when the payload is empty.
func FormatDisplay(r *barcode.Result) string {
	p := payload(r)
	if p == "" {
		return ""
	}
	return fmt.Sprintf("%s (%s): %s", r.Format, r.ContentType, p)
}

// payload is the text, or the lowercase hex of the bytes for binary content.
func payload(r *barcode.Result) string {
	if r.ContentType == barcode.ContentBinary {
		return hex.EncodeToString(r.Bytes)
	}
	return r.Text
}

func failureDisplay(err error) string {
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "Error"
}
