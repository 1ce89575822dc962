// Package native holds the backends that own native connect options values.
//
// Values live outside the Go heap's ownership model: callers get an opaque
// common.NativeHandle and must release it exactly once.
package native

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/xhd2015/dlv-connect/debug/common"
)

var (
	// ErrUnknownHandle is returned for handles that were never issued or are already released
	ErrUnknownHandle = errors.New("unknown native handle")

	errNotTerminated = errors.New("locator is not NUL-terminated")
)

// handleTable maps issued handles to backend values. Handles start at 1 and
// are never reused, so a stale handle cannot alias a newer value.
type handleTable[T any] struct {
	mu     sync.Mutex
	last   uintptr
	values map[common.NativeHandle]T
}

func (t *handleTable[T]) put(v T) common.NativeHandle {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.values == nil {
		t.values = make(map[common.NativeHandle]T)
	}
	t.last++
	h := common.NativeHandle(t.last)
	t.values[h] = v
	return h
}

func (t *handleTable[T]) get(h common.NativeHandle) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.values[h]
	if !ok {
		return v, fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	return v, nil
}

func (t *handleTable[T]) take(h common.NativeHandle) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.values[h]
	if !ok {
		return v, fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	delete(t.values, h)
	return v, nil
}

func (t *handleTable[T]) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.values)
}

// cstringLen returns the length of a NUL-terminated buffer, excluding the NUL
func cstringLen(locator []byte) (int, error) {
	n := bytes.IndexByte(locator, 0)
	if n < 0 {
		return 0, errNotTerminated
	}
	return n, nil
}
