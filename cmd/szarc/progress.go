// cmd/szarc/progress.go

package main

import (
	"github.com/vbauerster/mpb/v8"

	"github.com/tmreyno/7z-ffi-sdk/pkg/szstream"
)

// cliProgress builds the terminal progress bar lazily, on the first
// sample, because extraction only learns the job total from the stream
// header. The returned done func must be called after the run with its
// error: a completed bar is flushed, an aborted one is torn down.
func cliProgress(quiet bool) (szstream.ProgressFunc, func(err error)) {
	if quiet {
		return nil, func(error) {}
	}

	var cb szstream.ProgressFunc
	var container *mpb.Progress

	fn := func(s szstream.Sample) {
		if cb == nil {
			cb, container = szstream.ProgressBarCallback(s.Total)
		}
		cb(s)
	}
	done := func(err error) {
		if container == nil {
			return
		}
		if err == nil {
			container.Wait()
		} else {
			container.Shutdown()
		}
	}
	return fn, done
}
