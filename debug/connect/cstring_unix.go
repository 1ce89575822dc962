//go:build unix

package connect

import (
	"os"

	"golang.org/x/sys/unix"
	"golang.org/x/text/encoding"
)

func nulTerminate(s string) ([]byte, error) {
	return unix.ByteSliceFromString(s)
}

func nativeEncoding() (string, encoding.Encoding) {
	for _, key := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		if v := os.Getenv(key); v != "" {
			return localeEncoding(v)
		}
	}
	return localeEncoding("")
}
