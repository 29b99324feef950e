package scan

import (
	"context"
	"testing"

	"github.com/MeKo-Tech/barscan/internal/barcode"
	"github.com/MeKo-Tech/barscan/internal/frame"
	"github.com/MeKo-Tech/barscan/internal/testutil"
)

func benchmarkProcessFrame(b *testing.B, crop bool) {
	img := testutil.CenteredFrame(testutil.HDSize, testutil.QRCodeImage(b, "bench", 240))
	session := NewSession(barcode.DefaultOptions())
	session.SetCropEnabled(crop)
	stage := NewStage(barcode.NewZXingEngine(), session)
	ctx := context.Background()

	b.ResetTimer()
	for range b.N {
		out := stage.ProcessFrame(ctx, frame.NewImageFrame(img, nil))
		if out.Kind != OutcomeSuccess {
			b.Fatalf("unexpected outcome %s", out.Kind)
		}
	}
}

func BenchmarkProcessFrame_FullFrame(b *testing.B) { benchmarkProcessFrame(b, false) }

func BenchmarkProcessFrame_Cropped(b *testing.B) { benchmarkProcessFrame(b, true) }
