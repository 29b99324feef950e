// Package barcode defines the reader configuration, result types and the
// decoding engine used by the scan stage.
//
// The engine is backed by github.com/makiuchi-d/gozxing. Engines hold a
// single Options snapshot; callers replace it with Configure and never
// mutate it in place.
//
// Example:
//
//	eng := barcode.NewZXingEngine()
//	eng.Configure(barcode.DefaultOptions().WithFormats(barcode.FormatQRCode))
//	res, err := eng.Decode(ctx, img)
package barcode
