package provider

import (
	"errors"
	"fmt"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrReleased is returned when a WideString is used after Release.
var ErrReleased = errors.New("wide string already released")

var utf16LE = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// WideString is a NUL-terminated UTF-16LE copy of a string, the encoding
// providers receive file names in.
type WideString struct {
	buf []byte
}

// NewWideString encodes s. The buffer is sized for the worst case, two bytes
// per input byte plus the terminator, so the conversion never truncates.
func NewWideString(s string) (*WideString, error) {
	buf := make([]byte, 2*len(s)+2)

	n, _, err := utf16LE.NewEncoder().Transform(buf[:len(buf)-2], []byte(s), true)
	if err != nil {
		if errors.Is(err, transform.ErrShortDst) {
			return nil, fmt.Errorf("wide string buffer of %d bytes too small for %q", len(buf), s)
		}
		return nil, fmt.Errorf("encode %q: %w", s, err)
	}

	return &WideString{buf: buf[:n+2]}, nil
}

// Bytes returns the encoded units including the terminator.
func (w *WideString) Bytes() []byte {
	if w == nil {
		return nil
	}
	return w.buf
}

// Len returns the number of UTF-16 code units, excluding the terminator.
func (w *WideString) Len() int {
	if w == nil || len(w.buf) < 2 {
		return 0
	}
	return len(w.buf)/2 - 1
}

// String decodes the wide string back to UTF-8.
func (w *WideString) String() (string, error) {
	if w == nil || w.buf == nil {
		return "", ErrReleased
	}
	out, err := utf16LE.NewDecoder().Bytes(w.buf[:len(w.buf)-2])
	if err != nil {
		return "", fmt.Errorf("decode wide string: %w", err)
	}
	return string(out), nil
}

// Released reports whether Release has been called.
func (w *WideString) Released() bool {
	return w == nil || w.buf == nil
}

// Release clears and drops the buffer. It is safe to call more than once.
func (w *WideString) Release() {
	if w == nil {
		return
	}
	clear(w.buf)
	w.buf = nil
}
