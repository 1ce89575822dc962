package connect

import (
	"runtime"
	"sync"

	"github.com/go-logr/logr"

	"github.com/xhd2015/dlv-connect/debug/common"
)

// ConnectionOptions exclusively owns one native connect options value.
//
// The native value is released exactly once: by Close, or by a finalizer
// when the last reference is dropped without Close. The value is immutable;
// the backend offers no validity check, so a live ConnectionOptions only
// means the native constructor returned. The locator has not been checked
// for reachability or even scheme support.
type ConnectionOptions struct {
	backend   common.NativeBackend
	handle    common.NativeHandle
	bridge    Bridge
	locator   string
	onRelease func()
	log       logr.Logger

	mu       sync.Mutex
	released bool
	consumed bool
}

func newConnectionOptions(backend common.NativeBackend, h common.NativeHandle, bridge Bridge, locator string, onRelease func(), log logr.Logger) *ConnectionOptions {
	o := &ConnectionOptions{
		backend:   backend,
		handle:    h,
		bridge:    bridge,
		locator:   locator,
		onRelease: onRelease,
		log:       log,
	}
	runtime.SetFinalizer(o, (*ConnectionOptions).finalize)
	return o
}

// Backend returns the name of the owning native backend
func (o *ConnectionOptions) Backend() string {
	return o.backend.Name()
}

// Locator returns the text the options were created from
func (o *ConnectionOptions) Locator() string {
	return o.locator
}

// URL reads the locator back from the native value
func (o *ConnectionOptions) URL() (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.released {
		return "", ErrClosed
	}
	return o.urlLocked()
}

func (o *ConnectionOptions) urlLocked() (string, error) {
	raw, err := o.backend.ConnectOptionsURL(o.handle)
	if err != nil {
		return "", err
	}
	return o.bridge.Text(raw)
}

// Consumed reports whether the options were handed off
func (o *ConnectionOptions) Consumed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.consumed
}

// Use hands the live native value to session-establishment code. It runs fn
// at most once per ConnectionOptions; later calls fail with ErrConsumed.
// The value cannot be released while fn runs, and fn must not call methods
// on o.
func (o *ConnectionOptions) Use(fn func(backend common.NativeBackend, h common.NativeHandle) error) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.released {
		return ErrClosed
	}
	if o.consumed {
		return ErrConsumed
	}
	o.consumed = true
	return fn(o.backend, o.handle)
}

// Consume is Use for callers that only need the stored locator
func (o *ConnectionOptions) Consume() (string, error) {
	var url string
	err := o.Use(func(common.NativeBackend, common.NativeHandle) error {
		var err error
		url, err = o.urlLocked()
		return err
	})
	return url, err
}

// Close releases the native value. Calling Close again is a no-op.
func (o *ConnectionOptions) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.released {
		return nil
	}
	runtime.SetFinalizer(o, nil)
	return o.releaseLocked()
}

func (o *ConnectionOptions) releaseLocked() error {
	o.released = true
	err := o.backend.ReleaseConnectOptions(o.handle)
	if err != nil {
		o.log.Error(err, "Failed to release native connect options", "backend", o.backend.Name(), "handle", uint64(o.handle))
		return err
	}
	if o.onRelease != nil {
		o.onRelease()
	}
	o.log.V(1).Info("Released native connect options", "backend", o.backend.Name(), "handle", uint64(o.handle))
	return nil
}

func (o *ConnectionOptions) finalize() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.released {
		return
	}
	o.log.V(1).Info("Connect options were not closed, releasing from finalizer", "locator", o.locator)
	_ = o.releaseLocked()
}
