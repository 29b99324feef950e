package barcode

import (
	"context"
	"errors"
	"image"
	"strings"
)

// ErrNoSymbol reports that the engine found no readable symbol. It is a
// normal outcome, not a failure.
var ErrNoSymbol = errors.New("barcode: no symbol found")

// Format represents a barcode symbology.
type Format int

const (
	FormatUnknown Format = iota
	FormatAztec
	FormatCodabar
	FormatCode39
	FormatCode93
	FormatCode128
	FormatDataMatrix
	FormatEAN8
	FormatEAN13
	FormatITF
	FormatPDF417
	FormatQRCode
	FormatUPCA
	FormatUPCE
)

var formatNames = map[Format]string{
	FormatUnknown:    "UNKNOWN",
	FormatAztec:      "AZTEC",
	FormatCodabar:    "CODABAR",
	FormatCode39:     "CODE_39",
	FormatCode93:     "CODE_93",
	FormatCode128:    "CODE_128",
	FormatDataMatrix: "DATA_MATRIX",
	FormatEAN8:       "EAN_8",
	FormatEAN13:      "EAN_13",
	FormatITF:        "ITF",
	FormatPDF417:     "PDF_417",
	FormatQRCode:     "QR_CODE",
	FormatUPCA:       "UPC_A",
	FormatUPCE:       "UPC_E",
}

// AllFormats lists every symbology the engine can be asked for.
var AllFormats = []Format{
	FormatAztec, FormatCodabar, FormatCode39, FormatCode93, FormatCode128,
	FormatDataMatrix, FormatEAN8, FormatEAN13, FormatITF, FormatPDF417,
	FormatQRCode, FormatUPCA, FormatUPCE,
}

func (f Format) String() string {
	if s, ok := formatNames[f]; ok {
		return s
	}
	return formatNames[FormatUnknown]
}

// ParseFormat maps a user supplied name ("qr", "ean-13", "CODE_128", ...)
// to a Format.
func ParseFormat(s string) (Format, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "", "_", "", " ", "").Replace(key)
	switch key {
	case "qr", "qrcode":
		return FormatQRCode, true
	case "datamatrix":
		return FormatDataMatrix, true
	case "aztec":
		return FormatAztec, true
	case "pdf417":
		return FormatPDF417, true
	case "code128":
		return FormatCode128, true
	case "code39":
		return FormatCode39, true
	case "code93":
		return FormatCode93, true
	case "ean8":
		return FormatEAN8, true
	case "ean13":
		return FormatEAN13, true
	case "upca":
		return FormatUPCA, true
	case "upce":
		return FormatUPCE, true
	case "itf", "interleaved2of5", "i2/5":
		return FormatITF, true
	case "codabar":
		return FormatCodabar, true
	default:
		return FormatUnknown, false
	}
}

// FormatSet is a set of symbologies. The zero value means "all formats".
type FormatSet uint32

// NewFormatSet builds a set from the given formats, ignoring FormatUnknown.
func NewFormatSet(formats ...Format) FormatSet {
	var s FormatSet
	for _, f := range formats {
		if f == FormatUnknown {
			continue
		}
		s |= 1 << uint(f)
	}
	return s
}

// Contains reports whether f is in the set. An empty set contains every format.
func (s FormatSet) Contains(f Format) bool {
	if s == 0 {
		return f != FormatUnknown
	}
	return s&(1<<uint(f)) != 0
}

// Empty reports whether the set is the "all formats" set.
func (s FormatSet) Empty() bool { return s == 0 }

// Formats lists the members of the set in declaration order. An empty set
// returns nil.
func (s FormatSet) Formats() []Format {
	if s == 0 {
		return nil
	}
	var out []Format
	for _, f := range AllFormats {
		if s.Contains(f) {
			out = append(out, f)
		}
	}
	return out
}

func (s FormatSet) String() string {
	fs := s.Formats()
	if len(fs) == 0 {
		return "ALL"
	}
	names := make([]string, len(fs))
	for i, f := range fs {
		names[i] = f.String()
	}
	return strings.Join(names, ",")
}

// ContentType classifies a decoded payload.
type ContentType int

const (
	ContentText ContentType = iota
	ContentBinary
	ContentMixed
	ContentGS1
	ContentISO15434
	ContentUnknownECI
)

func (c ContentType) String() string {
	switch c {
	case ContentText:
		return "TEXT"
	case ContentBinary:
		return "BINARY"
	case ContentMixed:
		return "MIXED"
	case ContentGS1:
		return "GS1"
	case ContentISO15434:
		return "ISO15434"
	case ContentUnknownECI:
		return "UNKNOWN_ECI"
	default:
		return "UNKNOWN"
	}
}

// Point is an integer point in image coordinates.
type Point struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// Add returns p translated by d.
func (p Point) Add(d image.Point) Point { return Point{X: p.X + d.X, Y: p.Y + d.Y} }

// Position holds the four corners of a symbol.
type Position struct {
	TopLeft     Point `json:"top_left" yaml:"top_left"`
	TopRight    Point `json:"top_right" yaml:"top_right"`
	BottomRight Point `json:"bottom_right" yaml:"bottom_right"`
	BottomLeft  Point `json:"bottom_left" yaml:"bottom_left"`
}

// Points returns the corners in top-left, top-right, bottom-right,
// bottom-left order.
func (p Position) Points() []Point {
	return []Point{p.TopLeft, p.TopRight, p.BottomRight, p.BottomLeft}
}

// Translate returns the position shifted by d.
func (p Position) Translate(d image.Point) Position {
	return Position{
		TopLeft:     p.TopLeft.Add(d),
		TopRight:    p.TopRight.Add(d),
		BottomRight: p.BottomRight.Add(d),
		BottomLeft:  p.BottomLeft.Add(d),
	}
}

// Result represents one decoded symbol. Results are created per decode and
// never reused.
type Result struct {
	Format      Format
	ContentType ContentType
	Text        string
	Bytes       []byte
	// Position is nil when the engine reports no geometry.
	Position *Position
}

// Engine is the decoding capability consumed by the scan stage.
//
// Decode returns (nil, nil) or ErrNoSymbol when nothing was found; any other
// error is an engine failure.
type Engine interface {
	Configure(opts Options)
	Options() Options
	Decode(ctx context.Context, img image.Image) (*Result, error)
}
