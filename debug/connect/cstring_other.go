//go:build !unix && !windows

package connect

import (
	"errors"
	"strings"

	"golang.org/x/text/encoding"
)

var errEmbeddedNUL = errors.New("string contains NUL byte")

func nulTerminate(s string) ([]byte, error) {
	if strings.IndexByte(s, 0) >= 0 {
		return nil, errEmbeddedNUL
	}
	buf := make([]byte, len(s)+1)
	copy(buf, s)
	return buf, nil
}

func nativeEncoding() (string, encoding.Encoding) {
	return localeEncoding("")
}
