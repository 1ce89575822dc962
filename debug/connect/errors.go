package connect

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned when the locator is absent.
	ErrInvalidArgument = errors.New("invalid argument: locator is absent")

	// ErrEncoding is matched by every *EncodingError.
	ErrEncoding = errors.New("locator is not representable in the native encoding")

	// ErrNativeConstruction is matched by every *NativeConstructionError.
	ErrNativeConstruction = errors.New("native connect options construction failed")

	// ErrClosed is returned when connect options are used after release.
	ErrClosed = errors.New("connect options are released")

	// ErrConsumed is returned when connect options are handed off a second time.
	ErrConsumed = errors.New("connect options were already consumed")
)

// EncodingError reports a locator that cannot be bridged to native bytes.
type EncodingError struct {
	// Encoding is the name of the target narrow encoding
	Encoding string
	// Offset is the byte offset of the offending input in the locator
	Offset int
	// Rune is the offending rune, utf8.RuneError for malformed input
	Rune rune
	// Reason is a short description of what went wrong
	Reason string
	Err    error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("locator not representable as %s: %s (rune %U at byte %d)", e.Encoding, e.Reason, e.Rune, e.Offset)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

func (e *EncodingError) Is(target error) bool {
	return target == ErrEncoding
}

// NativeConstructionError reports a failed native constructor call.
// Locator carries the original text for diagnostics.
type NativeConstructionError struct {
	Locator string
	Backend string
	Err     error
}

func (e *NativeConstructionError) Error() string {
	return fmt.Sprintf("%s backend failed to construct connect options for %q: %v", e.Backend, e.Locator, e.Err)
}

func (e *NativeConstructionError) Unwrap() error {
	return e.Err
}

func (e *NativeConstructionError) Is(target error) bool {
	return target == ErrNativeConstruction
}

// IsConstructionError returns true if err means no connect options are available.
func IsConstructionError(err error) bool {
	return errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrEncoding) ||
		errors.Is(err, ErrNativeConstruction)
}
