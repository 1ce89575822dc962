package common

// NativeHandle identifies a connect-options value owned by a native backend.
// The zero handle is never a live value.
type NativeHandle uintptr

// NativeBackend is the connect-options surface of the native debugging backend.
//
// Implementations must copy or consume the locator synchronously: the slice
// passed to ConstructConnectOptions is not valid after the call returns.
// A backend signals construction failure either by returning an error or by
// panicking; callers treat both the same way.
type NativeBackend interface {
	// Name returns the backend name used in logs and metrics
	Name() string

	// ConstructConnectOptions builds a native options value from a
	// NUL-terminated narrow-character locator
	ConstructConnectOptions(locator []byte) (NativeHandle, error)

	// ConnectOptionsURL returns the narrow-character locator stored in a
	// live options value, without the terminating NUL
	ConnectOptionsURL(h NativeHandle) ([]byte, error)

	// ReleaseConnectOptions frees a live options value. It must be called
	// exactly once per handle.
	ReleaseConnectOptions(h NativeHandle) error
}

// OptionsInfo describes connect options tracked by an OptionsManager
type OptionsInfo struct {
	ID       string
	URL      string
	Backend  string
	Consumed bool
}
