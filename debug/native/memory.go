package native

import (
	"sync/atomic"

	"github.com/xhd2015/dlv-connect/debug/common"
)

const MemoryBackendName = "memory"

// MemoryBackend keeps connect options in a Go-side arena.
// It reads the locator like a C constructor does, up to the first NUL,
// and copies it before returning.
type MemoryBackend struct {
	table       handleTable[[]byte]
	constructed atomic.Int64
	released    atomic.Int64
	lastInput   atomic.Pointer[[]byte]
}

var _ common.NativeBackend = (*MemoryBackend)(nil)

// NewMemoryBackend creates an empty memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// Name returns the backend name
func (m *MemoryBackend) Name() string {
	return MemoryBackendName
}

// ConstructConnectOptions copies the locator into a new options value
func (m *MemoryBackend) ConstructConnectOptions(locator []byte) (common.NativeHandle, error) {
	m.constructed.Add(1)

	input := append([]byte(nil), locator...)
	m.lastInput.Store(&input)

	n, err := cstringLen(locator)
	if err != nil {
		return 0, err
	}
	url := make([]byte, n)
	copy(url, locator[:n])
	return m.table.put(url), nil
}

// ConnectOptionsURL returns the stored locator
func (m *MemoryBackend) ConnectOptionsURL(h common.NativeHandle) ([]byte, error) {
	url, err := m.table.get(h)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), url...), nil
}

// ReleaseConnectOptions drops the options value
func (m *MemoryBackend) ReleaseConnectOptions(h common.NativeHandle) error {
	if _, err := m.table.take(h); err != nil {
		return err
	}
	m.released.Add(1)
	return nil
}

// Live returns the number of options values not yet released
func (m *MemoryBackend) Live() int {
	return m.table.len()
}

// Constructed returns the number of constructor calls, failed ones included
func (m *MemoryBackend) Constructed() int64 {
	return m.constructed.Load()
}

// Released returns the number of successful releases
func (m *MemoryBackend) Released() int64 {
	return m.released.Load()
}

// LastInput returns a copy of the bytes passed to the last constructor call,
// or nil if the constructor was never called
func (m *MemoryBackend) LastInput() []byte {
	p := m.lastInput.Load()
	if p == nil {
		return nil
	}
	return append([]byte(nil), (*p)...)
}
