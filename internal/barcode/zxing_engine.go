package barcode

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"sort"
	"sync"

	"github.com/disintegration/imaging"
	gozxing "github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/aztec"
	"github.com/makiuchi-d/gozxing/datamatrix"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// downscaleMinSide is the shorter-side size below which TryDownscale is skipped.
const downscaleMinSide = 480

// readerFactories lists the gozxing readers per format, in the order they are tried.
var readerFactories = []struct {
	format Format
	create func() gozxing.Reader
}{
	{FormatQRCode, func() gozxing.Reader { return qrcode.NewQRCodeReader() }},
	{FormatDataMatrix, func() gozxing.Reader { return datamatrix.NewDataMatrixReader() }},
	{FormatAztec, func() gozxing.Reader { return aztec.NewAztecReader() }},
	{FormatCode128, func() gozxing.Reader { return oned.NewCode128Reader() }},
	{FormatCode39, func() gozxing.Reader { return oned.NewCode39Reader() }},
	{FormatCode93, func() gozxing.Reader { return oned.NewCode93Reader() }},
	{FormatEAN13, func() gozxing.Reader { return oned.NewEAN13Reader() }},
	{FormatEAN8, func() gozxing.Reader { return oned.NewEAN8Reader() }},
	{FormatUPCA, func() gozxing.Reader { return oned.NewUPCAReader() }},
	{FormatUPCE, func() gozxing.Reader { return oned.NewUPCEReader() }},
	{FormatITF, func() gozxing.Reader { return oned.NewITFReader() }},
	{FormatCodabar, func() gozxing.Reader { return oned.NewCodaBarReader() }},
}

type zxingReader struct {
	format Format
	reader gozxing.Reader
}

// ZXingEngine decodes symbols with gozxing. It is safe for concurrent use,
// although the scan stage only ever calls it from one goroutine.
type ZXingEngine struct {
	mu      sync.Mutex
	opts    Options
	readers []zxingReader
	hints   map[gozxing.DecodeHintType]interface{}
}

// NewZXingEngine returns an engine configured with DefaultOptions.
func NewZXingEngine() *ZXingEngine {
	e := &ZXingEngine{}
	e.configure(DefaultOptions())
	return e
}

// Configure replaces the held options snapshot and rebuilds the reader set.
func (e *ZXingEngine) Configure(opts Options) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.configure(opts)
}

func (e *ZXingEngine) configure(opts Options) {
	e.opts = opts
	e.readers = e.readers[:0]
	for _, rf := range readerFactories {
		if opts.Formats.Contains(rf.format) {
			e.readers = append(e.readers, zxingReader{format: rf.format, reader: rf.create()})
		}
	}
	if len(e.readers) == 0 {
		slog.Warn("No decoder available for requested formats", "formats", opts.Formats.String())
	}

	e.hints = make(map[gozxing.DecodeHintType]interface{})
	if opts.TryHarder {
		e.hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}
}

// Options returns the currently held snapshot.
func (e *ZXingEngine) Options() Options {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opts
}

// attempt is one image variant to search, with the mapping from its
// coordinates back to the caller's image.
type attempt struct {
	name    string
	img     image.Image
	mapBack func(x, y float64) (float64, float64)
}

func identity(x, y float64) (float64, float64) { return x, y }

// Decode searches img for one symbol. It returns (nil, nil) when nothing is
// found. Positions are reported relative to img.Bounds().Min.
func (e *ZXingEngine) Decode(ctx context.Context, img image.Image) (*Result, error) {
	if img == nil {
		return nil, errors.New("barcode: nil image")
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("barcode: empty image bounds %v", b)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, a := range e.attempts(normalizeOrigin(img)) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := e.decodeImage(a)
		if err != nil {
			return nil, err
		}
		if res != nil {
			slog.Debug("Symbol decoded", "format", res.Format.String(), "attempt", a.name)
			return res, nil
		}
	}
	return nil, nil
}

// attempts expands the image into the variants selected by the options.
func (e *ZXingEngine) attempts(img image.Image) []attempt {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	out := []attempt{{name: "plain", img: img, mapBack: identity}}

	if e.opts.TryInvert {
		out = append(out, attempt{name: "inverted", img: imaging.Invert(img), mapBack: identity})
	}
	if e.opts.TryRotate {
		// Rotate90 is counter-clockwise: rotated (x, y) == original (w-1-y, x).
		out = append(out, attempt{
			name: "rotated",
			img:  imaging.Rotate90(img),
			mapBack: func(x, y float64) (float64, float64) {
				return float64(w-1) - y, x
			},
		})
	}
	if e.opts.TryDownscale && min(w, h) >= downscaleMinSide {
		small := imaging.Resize(img, w/2, 0, imaging.Box)
		sx := float64(w) / float64(small.Bounds().Dx())
		sy := float64(h) / float64(small.Bounds().Dy())
		out = append(out, attempt{
			name: "downscaled",
			img:  small,
			mapBack: func(x, y float64) (float64, float64) {
				return x * sx, y * sy
			},
		})
	}
	return out
}

// decodeImage runs every enabled reader over one variant. Reader exceptions
// (not found, checksum, format) mean "no symbol"; anything else is a failure.
func (e *ZXingEngine) decodeImage(a attempt) (*Result, error) {
	source := gozxing.NewLuminanceSourceFromImage(a.img)
	bitmap, err := gozxing.NewBinaryBitmap(gozxing.NewHybridBinarizer(source))
	if err != nil {
		return nil, fmt.Errorf("barcode: prepare bitmap: %w", err)
	}

	for _, zr := range e.readers {
		r, err := zr.reader.Decode(bitmap, e.hints)
		zr.reader.Reset()
		if err != nil {
			var readerErr gozxing.ReaderException
			if errors.As(err, &readerErr) {
				continue
			}
			return nil, fmt.Errorf("barcode: %s reader: %w", zr.format, err)
		}
		if r != nil {
			return convertResult(r, a.mapBack), nil
		}
	}
	return nil, nil
}

func convertResult(r *gozxing.Result, mapBack func(x, y float64) (float64, float64)) *Result {
	md := r.GetResultMetadata()
	var segments [][]byte
	if v, ok := md[gozxing.ResultMetadataType_BYTE_SEGMENTS].([][]byte); ok {
		segments = v
	}
	symbologyID, _ := md[gozxing.ResultMetadataType_SYMBOLOGY_IDENTIFIER].(string)

	text := r.GetText()
	res := &Result{
		Format:      formatFromZXing(r.GetBarcodeFormat()),
		ContentType: classifyContent(text, segments, symbologyID),
		Text:        text,
		Bytes:       payloadBytes(text, segments),
	}

	pts := r.GetResultPoints()
	mapped := make([]Point, 0, len(pts))
	for _, p := range pts {
		if p == nil {
			continue
		}
		x, y := mapBack(p.GetX(), p.GetY())
		mapped = append(mapped, Point{X: int(x + 0.5), Y: int(y + 0.5)})
	}
	res.Position = positionFromPoints(mapped)
	return res
}

// positionFromPoints turns reader points into four corners. Three points are
// QR finder patterns (bottom-left, top-left, top-right); two points are the
// ends of a linear symbol's scan line.
func positionFromPoints(pts []Point) *Position {
	switch {
	case len(pts) == 2:
		left, right := pts[0], pts[1]
		if right.X < left.X {
			left, right = right, left
		}
		return &Position{TopLeft: left, TopRight: right, BottomRight: right, BottomLeft: left}
	case len(pts) == 3:
		fourth := Point{X: pts[0].X + pts[2].X - pts[1].X, Y: pts[0].Y + pts[2].Y - pts[1].Y}
		return orderCorners([]Point{pts[0], pts[1], pts[2], fourth})
	case len(pts) >= 4:
		return orderCorners(pts[:4])
	default:
		return nil
	}
}

// orderCorners assigns corners by the usual sum/difference heuristic.
func orderCorners(pts []Point) *Position {
	bySum := append([]Point(nil), pts...)
	sort.SliceStable(bySum, func(i, j int) bool { return bySum[i].X+bySum[i].Y < bySum[j].X+bySum[j].Y })
	byDiff := append([]Point(nil), pts...)
	sort.SliceStable(byDiff, func(i, j int) bool { return byDiff[i].Y-byDiff[i].X < byDiff[j].Y-byDiff[j].X })
	return &Position{
		TopLeft:     bySum[0],
		BottomRight: bySum[len(bySum)-1],
		TopRight:    byDiff[0],
		BottomLeft:  byDiff[len(byDiff)-1],
	}
}

func formatFromZXing(bf gozxing.BarcodeFormat) Format {
	switch bf {
	case gozxing.BarcodeFormat_QR_CODE:
		return FormatQRCode
	case gozxing.BarcodeFormat_DATA_MATRIX:
		return FormatDataMatrix
	case gozxing.BarcodeFormat_AZTEC:
		return FormatAztec
	case gozxing.BarcodeFormat_PDF_417:
		return FormatPDF417
	case gozxing.BarcodeFormat_CODE_128:
		return FormatCode128
	case gozxing.BarcodeFormat_CODE_39:
		return FormatCode39
	case gozxing.BarcodeFormat_CODE_93:
		return FormatCode93
	case gozxing.BarcodeFormat_EAN_8:
		return FormatEAN8
	case gozxing.BarcodeFormat_EAN_13:
		return FormatEAN13
	case gozxing.BarcodeFormat_UPC_A:
		return FormatUPCA
	case gozxing.BarcodeFormat_UPC_E:
		return FormatUPCE
	case gozxing.BarcodeFormat_ITF:
		return FormatITF
	case gozxing.BarcodeFormat_CODABAR:
		return FormatCodabar
	default:
		return FormatUnknown
	}
}

// originImage presents an image whose bounds start at (0,0). Sub-images of
// a frame keep their parent's coordinates, the readers expect a zero origin.
type originImage struct {
	image.Image
	off image.Point
}

func (o originImage) Bounds() image.Rectangle { return o.Image.Bounds().Sub(o.off) }

func (o originImage) At(x, y int) color.Color { return o.Image.At(x+o.off.X, y+o.off.Y) }

func normalizeOrigin(img image.Image) image.Image {
	origin := img.Bounds().Min
	if origin == (image.Point{}) {
		return img
	}
	return originImage{Image: img, off: origin}
}
