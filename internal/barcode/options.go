package barcode

import (
	"fmt"
	"strings"
)

// Options is the reader configuration snapshot. It is a comparable value:
// the With* methods return modified copies, so two snapshots can be
// compared with == to detect a configuration change.
type Options struct {
	// Formats constrains the set of symbologies to search. Empty means all.
	Formats FormatSet

	// TryHarder enables a more exhaustive search (slower but more robust).
	TryHarder bool

	// TryRotate also searches the image rotated by 90 degrees.
	TryRotate bool

	// TryInvert also searches the inverted image (light symbols on dark).
	TryInvert bool

	// TryDownscale also searches a half-size copy of large images.
	TryDownscale bool
}

// DefaultOptions returns the reader defaults: all formats, no extra effort.
func DefaultOptions() Options { return Options{} }

// Equal reports whether both snapshots configure the engine identically.
func (o Options) Equal(other Options) bool { return o == other }

// WithFormats returns a copy restricted to the given formats.
func (o Options) WithFormats(formats ...Format) Options {
	o.Formats = NewFormatSet(formats...)
	return o
}

// WithTryHarder returns a copy with TryHarder set to v.
func (o Options) WithTryHarder(v bool) Options {
	o.TryHarder = v
	return o
}

// WithTryRotate returns a copy with TryRotate set to v.
func (o Options) WithTryRotate(v bool) Options {
	o.TryRotate = v
	return o
}

// WithTryInvert returns a copy with TryInvert set to v.
func (o Options) WithTryInvert(v bool) Options {
	o.TryInvert = v
	return o
}

// WithTryDownscale returns a copy with TryDownscale set to v.
func (o Options) WithTryDownscale(v bool) Options {
	o.TryDownscale = v
	return o
}

func (o Options) String() string {
	return fmt.Sprintf("formats=%s try_harder=%t try_rotate=%t try_invert=%t try_downscale=%t",
		o.Formats, o.TryHarder, o.TryRotate, o.TryInvert, o.TryDownscale)
}

// ParseFormats maps format names to a FormatSet. Unknown names are an error.
func ParseFormats(names []string) (FormatSet, error) {
	var formats []Format
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		f, ok := ParseFormat(n)
		if !ok {
			return 0, fmt.Errorf("unknown barcode format: %q", n)
		}
		formats = append(formats, f)
	}
	return NewFormatSet(formats...), nil
}
