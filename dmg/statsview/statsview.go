//go:build statsview

package statsview

import (
	"log/slog"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
)

// Launch starts the stats server in its own goroutine and returns a function
// that stops it.
func Launch(address string) (stop func()) {
	if address == "" {
		address = DefaultAddress
	}

	viewer.SetConfiguration(viewer.WithAddr(address))
	mgr := statsview.New()
	go mgr.Start()

	slog.Info("Stats server available", "url", "http://"+address+path)
	return mgr.Stop
}

// Available reports whether this build can launch the stats server.
func Available() bool {
	return true
}
