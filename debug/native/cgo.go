//go:build cgo

package native

/*
#include <stdlib.h>
#include <string.h>

typedef struct {
	char *url;
} dlv_connect_options;

static dlv_connect_options *dlv_connect_options_create(const char *url) {
	dlv_connect_options *opts = malloc(sizeof(dlv_connect_options));
	if (opts == NULL) {
		return NULL;
	}
	size_t n = strlen(url);
	opts->url = malloc(n + 1);
	if (opts->url == NULL) {
		free(opts);
		return NULL;
	}
	memcpy(opts->url, url, n + 1);
	return opts;
}

static void dlv_connect_options_destroy(dlv_connect_options *opts) {
	if (opts == NULL) {
		return;
	}
	free(opts->url);
	free(opts);
}
*/
import "C"

import (
	"errors"
	"unsafe"

	"github.com/xhd2015/dlv-connect/debug/common"
)

const CgoBackendName = "cgo"

// CgoAvailable reports whether the cgo backend is compiled in
const CgoAvailable = true

var errNativeAllocation = errors.New("native allocation failed")

// CgoBackend allocates connect options on the C heap
type CgoBackend struct {
	table handleTable[unsafe.Pointer]
}

var _ common.NativeBackend = (*CgoBackend)(nil)

// NewCgoBackend creates a cgo backend
func NewCgoBackend() (*CgoBackend, error) {
	return &CgoBackend{}, nil
}

// Name returns the backend name
func (b *CgoBackend) Name() string {
	return CgoBackendName
}

// ConstructConnectOptions copies the locator into a C buffer and builds the
// options value from it. The C buffer is freed before returning.
func (b *CgoBackend) ConstructConnectOptions(locator []byte) (common.NativeHandle, error) {
	if _, err := cstringLen(locator); err != nil {
		return 0, err
	}

	cstr := C.CBytes(locator)
	defer C.free(cstr)

	opts := C.dlv_connect_options_create((*C.char)(cstr))
	if opts == nil {
		return 0, errNativeAllocation
	}
	return b.table.put(unsafe.Pointer(opts)), nil
}

// ConnectOptionsURL copies the locator out of the C value
func (b *CgoBackend) ConnectOptionsURL(h common.NativeHandle) ([]byte, error) {
	p, err := b.table.get(h)
	if err != nil {
		return nil, err
	}
	opts := (*C.dlv_connect_options)(p)
	return []byte(C.GoString(opts.url)), nil
}

// ReleaseConnectOptions frees the C value
func (b *CgoBackend) ReleaseConnectOptions(h common.NativeHandle) error {
	p, err := b.table.take(h)
	if err != nil {
		return err
	}
	C.dlv_connect_options_destroy((*C.dlv_connect_options)(p))
	return nil
}

// Live returns the number of C values not yet freed
func (b *CgoBackend) Live() int {
	return b.table.len()
}
