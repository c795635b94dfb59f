//go:build !statsview

package statsview

import "log/slog"

// Launch only logs that the server is missing from this build.
func Launch(address string) (stop func()) {
	slog.Warn("Stats server not available - build with -tags statsview to enable")
	return func() {}
}

// Available reports whether this build can launch the stats server.
func Available() bool {
	return false
}
