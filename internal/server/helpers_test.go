package server

import (
	"bytes"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/barscan/internal/barcode"
	"github.com/MeKo-Tech/barscan/internal/results"
	"github.com/MeKo-Tech/barscan/internal/scan"
)

// newTestServer wires a server to a real ZXing-backed runner without a
// frame source.
func newTestServer(t *testing.T) (*Server, *scan.Runner) {
	t.Helper()

	session := scan.NewSession(barcode.DefaultOptions())
	stage := scan.NewStage(barcode.NewZXingEngine(), session)
	runner := scan.NewRunner(nil, stage, results.NewLog(), 8)

	srv := NewServer(Config{CORSOrigin: "*", MaxUploadMB: 1, TimeoutSec: 5}, runner)
	t.Cleanup(func() { _ = srv.Close() })
	return srv, runner
}

// encodeImageToPNG encodes an image to PNG bytes.
func encodeImageToPNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// createMultipartFormRequest creates a multipart form request with an image.
func createMultipartFormRequest(
	t *testing.T,
	imageData []byte,
	filename string,
	extraFields map[string]string,
) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("image", filename)
	require.NoError(t, err)
	_, err = part.Write(imageData)
	require.NoError(t, err)

	for key, value := range extraFields {
		require.NoError(t, writer.WriteField(key, value))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/scan/image", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}
