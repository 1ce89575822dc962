package connect

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
)

const defaultEncodingName = "UTF-8"

// Bridge transcodes Go text into the NUL-terminated narrow-character bytes
// a native backend expects. Characters the target encoding cannot represent
// are rejected, never substituted.
type Bridge struct {
	name string
	enc  encoding.Encoding
}

// NewBridge creates a bridge for the given narrow encoding.
// A nil encoding means UTF-8.
func NewBridge(name string, enc encoding.Encoding) Bridge {
	if enc == nil {
		return Bridge{name: defaultEncodingName, enc: unicode.UTF8}
	}
	return Bridge{name: name, enc: enc}
}

// DefaultBridge returns a bridge for the platform's native narrow encoding
func DefaultBridge() Bridge {
	name, enc := nativeEncoding()
	return NewBridge(name, enc)
}

// BridgeByName returns a bridge for an IANA-registered encoding name
func BridgeByName(name string) (Bridge, error) {
	canonical, enc, err := EncodingByName(name)
	if err != nil {
		return Bridge{}, err
	}
	return NewBridge(canonical, enc), nil
}

// EncodingName returns the name of the target encoding
func (b Bridge) EncodingName() string {
	if b.enc == nil {
		return defaultEncodingName
	}
	return b.name
}

// Bytes bridges text into a contiguous byte sequence terminated by a single
// NUL. A nil text is a programmer error and yields ErrInvalidArgument.
func (b Bridge) Bytes(text *string) ([]byte, error) {
	if text == nil {
		return nil, ErrInvalidArgument
	}
	s := *text

	if !utf8.ValidString(s) {
		return nil, &EncodingError{
			Encoding: b.EncodingName(),
			Offset:   invalidUTF8Offset(s),
			Rune:     utf8.RuneError,
			Reason:   "malformed UTF-8",
		}
	}

	encoded := s
	if !b.isUTF8() {
		out, err := b.enc.NewEncoder().String(s)
		if err != nil {
			return nil, b.unsupportedRune(s, err)
		}
		encoded = out
	}

	buf, err := nulTerminate(encoded)
	if err != nil {
		return nil, &EncodingError{
			Encoding: b.EncodingName(),
			Offset:   strings.IndexByte(s, 0),
			Rune:     0,
			Reason:   "embedded NUL",
			Err:      err,
		}
	}
	return buf, nil
}

// Text decodes narrow-character bytes produced by the native side
func (b Bridge) Text(raw []byte) (string, error) {
	if b.isUTF8() {
		if !utf8.Valid(raw) {
			return "", &EncodingError{
				Encoding: b.EncodingName(),
				Offset:   invalidUTF8Offset(string(raw)),
				Rune:     utf8.RuneError,
				Reason:   "malformed UTF-8 from native side",
			}
		}
		return string(raw), nil
	}
	out, err := b.enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", b.EncodingName(), err)
	}
	return string(out), nil
}

func (b Bridge) isUTF8() bool {
	return b.enc == nil || b.enc == unicode.UTF8
}

// unsupportedRune locates the first rune the encoder refuses
func (b Bridge) unsupportedRune(s string, cause error) error {
	for off, r := range s {
		if _, err := b.enc.NewEncoder().String(string(r)); err != nil {
			return &EncodingError{
				Encoding: b.EncodingName(),
				Offset:   off,
				Rune:     r,
				Reason:   "rune not supported",
				Err:      cause,
			}
		}
	}
	return &EncodingError{
		Encoding: b.EncodingName(),
		Offset:   -1,
		Rune:     utf8.RuneError,
		Reason:   cause.Error(),
		Err:      cause,
	}
}

func invalidUTF8Offset(s string) int {
	for off := 0; off < len(s); {
		r, size := utf8.DecodeRuneInString(s[off:])
		if r == utf8.RuneError && size <= 1 {
			return off
		}
		off += size
	}
	return -1
}

// EncodingByName looks up an IANA-registered narrow encoding.
// Encodings that do not map ASCII to itself (UTF-16, UTF-32) are refused
// because they cannot be NUL-terminated with a single byte.
func EncodingByName(name string) (string, encoding.Encoding, error) {
	if isUTF8Name(name) {
		return defaultEncodingName, unicode.UTF8, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return "", nil, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	if enc == nil {
		return "", nil, fmt.Errorf("unsupported encoding %q", name)
	}
	if out, err := enc.NewEncoder().String("A\x00z"); err != nil || out != "A\x00z" {
		return "", nil, fmt.Errorf("encoding %q is not a narrow ASCII-compatible encoding", name)
	}
	canonical, err := ianaindex.IANA.Name(enc)
	if err != nil {
		canonical = name
	}
	return canonical, enc, nil
}

func isUTF8Name(name string) bool {
	return strings.EqualFold(strings.ReplaceAll(name, "-", ""), "utf8")
}

// localeEncoding extracts the charset from a POSIX locale such as
// "de_DE.ISO-8859-1@euro". Locales without a known charset use UTF-8.
func localeEncoding(locale string) (string, encoding.Encoding) {
	dot := strings.IndexByte(locale, '.')
	if dot < 0 {
		return defaultEncodingName, unicode.UTF8
	}
	charset := locale[dot+1:]
	if at := strings.IndexByte(charset, '@'); at >= 0 {
		charset = charset[:at]
	}
	name, enc, err := EncodingByName(charset)
	if err != nil {
		return defaultEncodingName, unicode.UTF8
	}
	return name, enc
}

// codePageEncoding maps a Windows ANSI code page to its encoding.
// Unknown code pages use UTF-8.
func codePageEncoding(cp uint32) (string, encoding.Encoding) {
	switch cp {
	case 437:
		return "IBM437", charmap.CodePage437
	case 850:
		return "IBM850", charmap.CodePage850
	case 866:
		return "IBM866", charmap.CodePage866
	case 874:
		return "windows-874", charmap.Windows874
	case 932:
		return "Shift_JIS", japanese.ShiftJIS
	case 936:
		return "GBK", simplifiedchinese.GBK
	case 949:
		return "EUC-KR", korean.EUCKR
	case 950:
		return "Big5", traditionalchinese.Big5
	case 1250:
		return "windows-1250", charmap.Windows1250
	case 1251:
		return "windows-1251", charmap.Windows1251
	case 1252:
		return "windows-1252", charmap.Windows1252
	case 1253:
		return "windows-1253", charmap.Windows1253
	case 1254:
		return "windows-1254", charmap.Windows1254
	case 1255:
		return "windows-1255", charmap.Windows1255
	case 1256:
		return "windows-1256", charmap.Windows1256
	case 1257:
		return "windows-1257", charmap.Windows1257
	case 1258:
		return "windows-1258", charmap.Windows1258
	default:
		return defaultEncodingName, unicode.UTF8
	}
}
