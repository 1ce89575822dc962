package connect

import (
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/xhd2015/dlv-connect/debug/common"
	"github.com/xhd2015/dlv-connect/debug/native"
	"github.com/xhd2015/dlv-connect/telemetry"
)

// faultyBackend wraps a memory backend and fails construction on demand
type faultyBackend struct {
	*native.MemoryBackend
	panicVal any
	err      error
	zero     bool
}

func (b *faultyBackend) ConstructConnectOptions(locator []byte) (common.NativeHandle, error) {
	if b.panicVal != nil {
		panic(b.panicVal)
	}
	if b.err != nil {
		return 0, b.err
	}
	if b.zero {
		return 0, nil
	}
	return b.MemoryBackend.ConstructConnectOptions(locator)
}

type countingCollector struct {
	mu          sync.Mutex
	constructed map[string]int
	released    int
}

func (c *countingCollector) IncConstructed(_ string, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.constructed == nil {
		c.constructed = make(map[string]int)
	}
	c.constructed[outcome]++
}

func (c *countingCollector) IncReleased(string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released++
}

func newTestFactory(t *testing.T, backend common.NativeBackend, opts ...Option) *Factory {
	opts = append([]Option{WithBridge(NewBridge("UTF-8", nil)), WithLogger(testr.New(t))}, opts...)
	return NewFactory(backend, opts...)
}

func TestCreateConnectionOptions(t *testing.T) {
	backend := native.NewMemoryBackend()
	metrics := &countingCollector{}
	f := newTestFactory(t, backend, WithCollector(metrics))

	opts, err := f.CreateConnectionOptions("connect://10.0.0.5:4242")
	require.NoError(t, err)
	require.NotNil(t, opts)
	assert.NotZero(t, opts.handle)

	assert.Equal(t, []byte("connect://10.0.0.5:4242\x00"), backend.LastInput())
	assert.Len(t, backend.LastInput(), 24)

	url, err := opts.URL()
	require.NoError(t, err)
	assert.Equal(t, "connect://10.0.0.5:4242", url)
	assert.Equal(t, "connect://10.0.0.5:4242", opts.Locator())
	assert.Equal(t, native.MemoryBackendName, opts.Backend())
	assert.Equal(t, 1, backend.Live())

	require.NoError(t, opts.Close())
	require.NoError(t, opts.Close())
	assert.Equal(t, 0, backend.Live())
	assert.EqualValues(t, 1, backend.Released())
	assert.Equal(t, 1, metrics.constructed[telemetry.OutcomeOK])
	assert.Equal(t, 1, metrics.released)
}

func TestCreateAbsentLocator(t *testing.T) {
	backend := native.NewMemoryBackend()
	metrics := &countingCollector{}
	f := newTestFactory(t, backend, WithCollector(metrics))

	opts, err := f.Create(nil)
	require.ErrorIs(t, err, ErrInvalidArgument)
	assert.Nil(t, opts)
	assert.Zero(t, backend.Constructed())
	assert.Nil(t, backend.LastInput())
	assert.Equal(t, 1, metrics.constructed[telemetry.OutcomeInvalidArgument])
}

func TestCreateEmptyLocator(t *testing.T) {
	backend := native.NewMemoryBackend()
	f := newTestFactory(t, backend)

	opts, err := f.CreateConnectionOptions("")
	require.NoError(t, err)
	defer opts.Close()

	assert.Equal(t, []byte{0}, backend.LastInput())
	url, err := opts.URL()
	require.NoError(t, err)
	assert.Empty(t, url)
}

func TestCreateEmbeddedNULMakesNoNativeCall(t *testing.T) {
	backend := native.NewMemoryBackend()
	metrics := &countingCollector{}
	f := newTestFactory(t, backend, WithCollector(metrics))

	opts, err := f.CreateConnectionOptions("connect://host\x00:1")
	require.ErrorIs(t, err, ErrEncoding)
	assert.Nil(t, opts)
	assert.Zero(t, backend.Constructed())
	assert.Equal(t, 1, metrics.constructed[telemetry.OutcomeEncodingError])
}

func TestCreateUnrepresentableRuneMakesNoNativeCall(t *testing.T) {
	backend := native.NewMemoryBackend()
	f := newTestFactory(t, backend, WithBridge(NewBridge("windows-1252", charmap.Windows1252)))

	_, err := f.CreateConnectionOptions("connect://✓:1")
	require.ErrorIs(t, err, ErrEncoding)
	assert.Zero(t, backend.Constructed())
}

func TestCreateTranscodesToNativeEncoding(t *testing.T) {
	backend := native.NewMemoryBackend()
	f := newTestFactory(t, backend, WithBridge(NewBridge("windows-1252", charmap.Windows1252)))

	opts, err := f.CreateConnectionOptions("connect://café:1")
	require.NoError(t, err)
	defer opts.Close()

	assert.Equal(t, []byte("connect://caf\xe9:1\x00"), backend.LastInput())

	url, err := opts.URL()
	require.NoError(t, err)
	assert.Equal(t, "connect://café:1", url)
}

func TestCreateTwiceGivesIndependentOptions(t *testing.T) {
	backend := native.NewMemoryBackend()
	f := newTestFactory(t, backend)

	first, err := f.CreateConnectionOptions("connect://localhost:1234")
	require.NoError(t, err)
	second, err := f.CreateConnectionOptions("connect://localhost:1234")
	require.NoError(t, err)

	require.NotEqual(t, first.handle, second.handle)
	assert.Equal(t, 2, backend.Live())

	require.NoError(t, first.Close())
	url, err := second.URL()
	require.NoError(t, err)
	assert.Equal(t, "connect://localhost:1234", url)

	require.NoError(t, second.Close())
	assert.Equal(t, 0, backend.Live())
	assert.EqualValues(t, 2, backend.Released())
}

func TestCreateNativeFault(t *testing.T) {
	backend := &faultyBackend{MemoryBackend: native.NewMemoryBackend(), panicVal: "SIGSEGV in constructor"}
	metrics := &countingCollector{}
	f := newTestFactory(t, backend, WithCollector(metrics))

	opts, err := f.CreateConnectionOptions("connect://10.0.0.5:4242")
	require.ErrorIs(t, err, ErrNativeConstruction)
	assert.Nil(t, opts)

	var nerr *NativeConstructionError
	require.True(t, errors.As(err, &nerr))
	assert.Equal(t, "connect://10.0.0.5:4242", nerr.Locator)
	assert.Equal(t, native.MemoryBackendName, nerr.Backend)
	assert.Contains(t, err.Error(), "SIGSEGV in constructor")
	assert.Equal(t, 0, backend.Live())
	assert.Equal(t, 1, metrics.constructed[telemetry.OutcomeNativeError])
}

func TestCreateNativeFaultWithErrorValue(t *testing.T) {
	cause := errors.New("bad alloc")
	backend := &faultyBackend{MemoryBackend: native.NewMemoryBackend(), panicVal: cause}
	f := newTestFactory(t, backend)

	_, err := f.CreateConnectionOptions("connect://x:1")
	require.ErrorIs(t, err, ErrNativeConstruction)
	require.ErrorIs(t, err, cause)
}

func TestCreateNativeError(t *testing.T) {
	cause := errors.New("out of memory")
	backend := &faultyBackend{MemoryBackend: native.NewMemoryBackend(), err: cause}
	f := newTestFactory(t, backend)

	_, err := f.CreateConnectionOptions("connect://x:1")
	require.ErrorIs(t, err, cause)
	require.True(t, IsConstructionError(err))
}

func TestCreateNullHandle(t *testing.T) {
	backend := &faultyBackend{MemoryBackend: native.NewMemoryBackend(), zero: true}
	f := newTestFactory(t, backend)

	opts, err := f.CreateConnectionOptions("connect://x:1")
	require.ErrorIs(t, err, errNullHandle)
	require.ErrorIs(t, err, ErrNativeConstruction)
	assert.Nil(t, opts)
}

func TestCreateConcurrently(t *testing.T) {
	backend := native.NewMemoryBackend()
	f := newTestFactory(t, backend)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			opts, err := f.CreateConnectionOptions("connect://127.0.0.1:4242")
			if !assert.NoError(t, err) {
				return
			}
			assert.NoError(t, opts.Close())
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, backend.Live())
	assert.EqualValues(t, 50, backend.Released())
}

func TestUnclosedOptionsAreReleasedByFinalizer(t *testing.T) {
	backend := native.NewMemoryBackend()
	f := NewFactory(backend, WithBridge(NewBridge("UTF-8", nil)))

	func() {
		_, err := f.CreateConnectionOptions("connect://127.0.0.1:4242")
		require.NoError(t, err)
	}()
	require.Equal(t, 1, backend.Live())

	require.Eventually(t, func() bool {
		runtime.GC()
		return backend.Live() == 0
	}, 5*time.Second, 10*time.Millisecond)
	assert.EqualValues(t, 1, backend.Released())
}

func TestForBridgeKeepsBackend(t *testing.T) {
	backend := native.NewMemoryBackend()
	f := newTestFactory(t, backend)

	latin := f.ForBridge(NewBridge("windows-1252", charmap.Windows1252))
	assert.Same(t, f.Backend(), latin.Backend())
	assert.Equal(t, "windows-1252", latin.Bridge().EncodingName())
	assert.Equal(t, "UTF-8", f.Bridge().EncodingName())
}
