// Package scan turns frames into barcode results.
//
// A Stage processes one frame at a time: it syncs the engine with the
// session's reader options, honours pause, dispatches a pending frame dump,
// crops to the region of interest, decodes and classifies the outcome. The
// frame is released exactly once on every path.
//
// A Runner drives a frame.Source through a Stage, appends results to a
// results.Log in processing order and publishes them on a bounded channel
// for display consumers. The channel is closed by Runner.Close.
//
//	session := scan.NewSession(barcode.DefaultOptions())
//	stage := scan.NewStage(barcode.NewZXingEngine(), session)
//	runner := scan.NewRunner(source, stage, results.NewLog(), 16)
//	go func() {
//		_ = runner.Run(ctx)
//		runner.Close()
//	}()
//	for e := range runner.Results() {
//		fmt.Println(e.Text)
//	}
package scan
