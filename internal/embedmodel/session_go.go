//go:build !ORT

package embedmodel

import "github.com/knights-analytics/hugot"

// newHugotSession creates a pure-Go ONNX Runtime session (no cgo, no
// platform-specific shared library). This is the default build.
func newHugotSession() (*hugot.Session, error) {
	return hugot.NewGoSession()
}
