package connect

import (
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/go-logr/logr"

	"github.com/xhd2015/dlv-connect/debug/common"
	"github.com/xhd2015/dlv-connect/telemetry"
)

var errNullHandle = errors.New("constructor returned a null handle")

// Factory turns connection locators into ConnectionOptions owned by a native
// backend. It keeps no state between calls and is safe for concurrent use;
// whether the backend's constructor tolerates concurrent calls is up to the
// backend.
type Factory struct {
	backend common.NativeBackend
	bridge  Bridge
	log     logr.Logger
	metrics telemetry.Collector
}

// Option configures a Factory
type Option func(*Factory)

// WithBridge sets the string bridge. The default is DefaultBridge().
func WithBridge(b Bridge) Option {
	return func(f *Factory) {
		f.bridge = b
	}
}

// WithLogger sets the logger
func WithLogger(log logr.Logger) Option {
	return func(f *Factory) {
		f.log = log
	}
}

// WithCollector sets the telemetry collector
func WithCollector(c telemetry.Collector) Option {
	return func(f *Factory) {
		if c != nil {
			f.metrics = c
		}
	}
}

// NewFactory creates a factory for the given backend
func NewFactory(backend common.NativeBackend, opts ...Option) *Factory {
	f := &Factory{
		backend: backend,
		bridge:  DefaultBridge(),
		log:     logr.Discard(),
		metrics: telemetry.Noop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Backend returns the native backend the factory constructs with
func (f *Factory) Backend() common.NativeBackend {
	return f.backend
}

// Bridge returns the string bridge
func (f *Factory) Bridge() Bridge {
	return f.bridge
}

// ForBridge returns a copy of the factory that bridges with b
func (f *Factory) ForBridge(b Bridge) *Factory {
	c := *f
	c.bridge = b
	return &c
}

// CreateConnectionOptions creates connect options for a present locator
func (f *Factory) CreateConnectionOptions(locator string) (*ConnectionOptions, error) {
	return f.Create(&locator)
}

// Create bridges the locator, runs the native constructor and wraps the
// resulting value.
//
// A nil locator fails with ErrInvalidArgument and text that cannot be bridged
// fails with *EncodingError; in both cases the backend is not called. A
// failed native call, including a panic inside the backend, yields
// *NativeConstructionError. Nothing is retried: the same input always gives
// the same outcome.
func (f *Factory) Create(locator *string) (*ConnectionOptions, error) {
	backendName := f.backend.Name()

	buf, err := f.bridge.Bytes(locator)
	if err != nil {
		outcome := telemetry.OutcomeEncodingError
		if errors.Is(err, ErrInvalidArgument) {
			outcome = telemetry.OutcomeInvalidArgument
		}
		f.metrics.IncConstructed(backendName, outcome)
		f.log.V(1).Info("Connect options locator rejected", "backend", backendName, "encoding", f.bridge.EncodingName(), "error", err.Error())
		return nil, err
	}

	h, err := f.construct(buf)
	if err != nil {
		f.metrics.IncConstructed(backendName, telemetry.OutcomeNativeError)
		nerr := &NativeConstructionError{
			Locator: *locator,
			Backend: backendName,
			Err:     err,
		}
		f.log.Error(nerr, "Native connect options construction failed", "backend", backendName)
		return nil, nerr
	}

	f.metrics.IncConstructed(backendName, telemetry.OutcomeOK)
	f.log.V(1).Info("Constructed native connect options", "backend", backendName, "handle", uint64(h), "locator", *locator)

	onRelease := func() {
		f.metrics.IncReleased(backendName)
	}
	return newConnectionOptions(f.backend, h, f.bridge, *locator, onRelease, f.log), nil
}

// construct calls the backend and turns a panic into an error
func (f *Factory) construct(buf []byte) (h common.NativeHandle, err error) {
	defer func() {
		if r := recover(); r != nil {
			h = 0
			err = makeFaultError(r)
			f.log.V(1).Info("Recovered native constructor fault", "stack", string(debug.Stack()))
		}
	}()

	h, err = f.backend.ConstructConnectOptions(buf)
	if err != nil {
		return 0, err
	}
	if h == 0 {
		return 0, errNullHandle
	}
	return h, nil
}

func makeFaultError(panicVal any) error {
	if err, ok := panicVal.(error); ok {
		return fmt.Errorf("native fault: %w", err)
	}
	return fmt.Errorf("native fault: %v", panicVal)
}
