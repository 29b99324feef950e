package barcode

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
		ok   bool
	}{
		{"qr", FormatQRCode, true},
		{"QR_CODE", FormatQRCode, true},
		{" qrcode ", FormatQRCode, true},
		{"ean-13", FormatEAN13, true},
		{"EAN_8", FormatEAN8, true},
		{"code128", FormatCode128, true},
		{"Code-39", FormatCode39, true},
		{"data_matrix", FormatDataMatrix, true},
		{"upc-a", FormatUPCA, true},
		{"i2/5", FormatITF, true},
		{"codabar", FormatCodabar, true},
		{"maxicode", FormatUnknown, false},
		{"", FormatUnknown, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseFormat(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatString(t *testing.T) {
	assert.Equal(t, "QR_CODE", FormatQRCode.String())
	assert.Equal(t, "EAN_13", FormatEAN13.String())
	assert.Equal(t, "UNKNOWN", Format(99).String())
}

func TestFormatSet(t *testing.T) {
	var all FormatSet
	assert.True(t, all.Empty())
	assert.True(t, all.Contains(FormatQRCode))
	assert.False(t, all.Contains(FormatUnknown))
	assert.Nil(t, all.Formats())
	assert.Equal(t, "ALL", all.String())

	s := NewFormatSet(FormatQRCode, FormatEAN13, FormatUnknown)
	assert.False(t, s.Empty())
	assert.True(t, s.Contains(FormatQRCode))
	assert.True(t, s.Contains(FormatEAN13))
	assert.False(t, s.Contains(FormatCode128))
	assert.Equal(t, []Format{FormatEAN13, FormatQRCode}, s.Formats())
	assert.Equal(t, "EAN_13,QR_CODE", s.String())
}

func TestParseFormats(t *testing.T) {
	s, err := ParseFormats([]string{"qr", "", "code128"})
	require.NoError(t, err)
	assert.Equal(t, NewFormatSet(FormatQRCode, FormatCode128), s)

	s, err = ParseFormats(nil)
	require.NoError(t, err)
	assert.True(t, s.Empty())

	_, err = ParseFormats([]string{"qr", "bogus"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogus")
}

func TestOptionsAreValues(t *testing.T) {
	base := DefaultOptions()
	harder := base.WithTryHarder(true)

	assert.False(t, base.TryHarder, "With* must not mutate the receiver")
	assert.True(t, harder.TryHarder)
	assert.False(t, base.Equal(harder))
	assert.True(t, harder.Equal(base.WithTryHarder(true)))

	qr := base.WithFormats(FormatQRCode)
	assert.True(t, base.Formats.Empty())
	assert.Equal(t, NewFormatSet(FormatQRCode), qr.Formats)

	full := base.WithTryRotate(true).WithTryInvert(true).WithTryDownscale(true)
	assert.True(t, full.TryRotate)
	assert.True(t, full.TryInvert)
	assert.True(t, full.TryDownscale)
	assert.Contains(t, full.String(), "try_downscale=true")
}

func TestContentTypeString(t *testing.T) {
	assert.Equal(t, "TEXT", ContentText.String())
	assert.Equal(t, "BINARY", ContentBinary.String())
	assert.Equal(t, "GS1", ContentGS1.String())
	assert.Equal(t, "ISO15434", ContentISO15434.String())
	assert.Equal(t, "UNKNOWN_ECI", ContentUnknownECI.String())
	assert.Equal(t, "UNKNOWN", ContentType(42).String())
}

func TestPositionTranslate(t *testing.T) {
	p := Position{
		TopLeft:     Point{1, 2},
		TopRight:    Point{11, 2},
		BottomRight: Point{11, 12},
		BottomLeft:  Point{1, 12},
	}
	moved := p.Translate(image.Pt(100, 50))
	assert.Equal(t, []Point{{101, 52}, {111, 52}, {111, 62}, {101, 62}}, moved.Points())
}
