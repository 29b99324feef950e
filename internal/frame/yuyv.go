package frame

import (
	"fmt"
	"image"
)

// yuyvToYCbCr converts a packed YUYV 4:2:2 buffer into an image.YCbCr.
func yuyvToYCbCr(buf []byte, width, height int) (*image.YCbCr, error) {
	if width <= 0 || height <= 0 || width%2 != 0 {
		return nil, fmt.Errorf("frame: invalid YUYV size %dx%d", width, height)
	}
	if len(buf) < width*height*2 {
		return nil, fmt.Errorf("frame: short YUYV buffer: %d bytes for %dx%d", len(buf), width, height)
	}

	img := image.NewYCbCr(image.Rect(0, 0, width, height), image.YCbCrSubsampleRatio422)
	for y := range height {
		row := buf[y*width*2 : (y+1)*width*2]
		for x := 0; x < width; x += 2 {
			i := x * 2
			img.Y[y*img.YStride+x] = row[i]
			img.Y[y*img.YStride+x+1] = row[i+2]
			c := y*img.CStride + x/2
			img.Cb[c] = row[i+1]
			img.Cr[c] = row[i+3]
		}
	}
	return img, nil
}
