package csv

// reader.go holds the io.Reader wrappers applied to a fetched body before
// parsing:
//
//   - bomSkippingReader drops a leading UTF-8 BOM (0xEF 0xBB 0xBF)
//   - utf8Sanitizer replaces invalid UTF-8 bytes with '?'
//   - CountingReader records how many bytes were consumed
//
// WrapForStreaming applies all three in that order.

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type bomSkippingReader struct {
	br      *bufio.Reader
	checked bool
}

// NewBOMSkippingReader returns a reader that skips a UTF-8 BOM at the start
// of r, if there is one.
func NewBOMSkippingReader(r io.Reader) io.Reader {
	return &bomSkippingReader{br: bufio.NewReader(r)}
}

func (r *bomSkippingReader) Read(p []byte) (int, error) {
	if !r.checked {
		r.checked = true
		if head, err := r.br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
			if _, err := r.br.Discard(len(utf8BOM)); err != nil {
				return 0, err
			}
		}
	}
	return r.br.Read(p)
}

type utf8Sanitizer struct {
	r     io.Reader
	chunk []byte
	in    []byte // undecoded input, may end in a partial rune
	out   []byte // sanitized bytes not yet returned
	err   error
}

// NewStreamingUTF8Sanitizer returns a reader that replaces every invalid
// UTF-8 byte in r with '?'. A multi-byte rune split across reads of r is
// held back until it is complete.
func NewStreamingUTF8Sanitizer(r io.Reader) io.Reader {
	return &utf8Sanitizer{r: r, chunk: make([]byte, 4096)}
}

func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for len(s.out) == 0 && s.err == nil {
		n, err := s.r.Read(s.chunk)
		s.in = append(s.in, s.chunk[:n]...)
		s.err = err
		s.drain(err != nil)
	}
	if len(s.out) > 0 {
		n := copy(p, s.out)
		s.out = s.out[n:]
		return n, nil
	}
	return 0, s.err
}

// drain moves decodable input to out. Unless final, a trailing partial rune
// stays in s.in for the next read.
func (s *utf8Sanitizer) drain(final bool) {
	i := 0
	for i < len(s.in) {
		c := s.in[i]
		if c < utf8.RuneSelf {
			s.out = append(s.out, c)
			i++
			continue
		}
		if !final && !utf8.FullRune(s.in[i:]) {
			break
		}
		r, size := utf8.DecodeRune(s.in[i:])
		if r == utf8.RuneError && size == 1 {
			s.out = append(s.out, '?')
		} else {
			s.out = append(s.out, s.in[i:i+size]...)
		}
		i += size
	}
	s.in = append(s.in[:0], s.in[i:]...)
}

// CountingReader tracks the number of bytes read through it.
type CountingReader struct {
	reader    io.Reader
	BytesRead int64
}

// NewCountingReader wraps r.
func NewCountingReader(r io.Reader) *CountingReader {
	return &CountingReader{reader: r}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	return n, err
}

// WrapForStreaming strips a BOM, sanitizes UTF-8 and counts the bytes that
// reach the caller. The BOM must be removed before sanitizing, otherwise its
// bytes would survive as a valid U+FEFF rune at the start of the first field.
func WrapForStreaming(r io.Reader) *CountingReader {
	return NewCountingReader(NewStreamingUTF8Sanitizer(NewBOMSkippingReader(r)))
}
