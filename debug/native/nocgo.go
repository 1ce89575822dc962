//go:build !cgo

package native

import (
	"errors"

	"github.com/xhd2015/dlv-connect/debug/common"
)

const CgoBackendName = "cgo"

// CgoAvailable reports whether the cgo backend is compiled in
const CgoAvailable = false

// ErrCgoUnavailable is returned when the cgo backend is requested in a build without cgo
var ErrCgoUnavailable = errors.New("cgo backend is not available in this build")

// NewCgoBackend fails in builds without cgo
func NewCgoBackend() (common.NativeBackend, error) {
	return nil, ErrCgoUnavailable
}
