//go:build windows

package connect

import (
	"golang.org/x/sys/windows"
	"golang.org/x/text/encoding"
)

func nulTerminate(s string) ([]byte, error) {
	return windows.ByteSliceFromString(s)
}

// nativeEncoding returns the ANSI code page, which is what narrow native
// strings use on Windows.
func nativeEncoding() (string, encoding.Encoding) {
	return codePageEncoding(windows.GetACP())
}
