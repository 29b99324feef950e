package scan

import "image"

// CropRegion returns the region of interest for a w x h frame: a centered
// square with side floor(min(w,h)*2/3) when enabled, else the whole frame.
func CropRegion(w, h int, enabled bool) image.Rectangle {
	if !enabled {
		return image.Rect(0, 0, w, h)
	}
	side := min(w, h) * 2 / 3
	x := (w - side) / 2
	y := (h - side) / 2
	return image.Rect(x, y, x+side, y+side)
}
