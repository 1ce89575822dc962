package debug

import (
	"fmt"

	"github.com/xhd2015/dlv-connect/debug/common"
	"github.com/xhd2015/dlv-connect/debug/native"
)

// NewBackend creates a native backend based on the backend type.
// An empty type picks cgo when it is compiled in, memory otherwise.
func NewBackend(backendType string) (common.NativeBackend, error) {
	switch backendType {
	case "":
		if native.CgoAvailable {
			return NewBackend(native.CgoBackendName)
		}
		return native.NewMemoryBackend(), nil
	case native.CgoBackendName:
		backend, err := native.NewCgoBackend()
		if err != nil {
			return nil, err
		}
		return backend, nil
	case native.MemoryBackendName:
		return native.NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", backendType)
	}
}
