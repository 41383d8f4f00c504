package hwp

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/text/encoding/unicode"
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// reader is a bounds checked little endian cursor over record payload.
type reader struct {
	b   []byte
	pos int
	err error
}

func (r *reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if n < 0 || len(r.b)-r.pos < n {
		r.err = fmt.Errorf("%w: need %d bytes at %d, have %d", ErrMalformedRecord, n, r.pos, len(r.b)-r.pos)
		return false
	}
	return true
}

func (r *reader) left() int {
	return len(r.b) - r.pos
}

func (r *reader) u8() uint8 {
	if !r.need(1) {
		return 0
	}
	v := r.b[r.pos]
	r.pos++
	return v
}

func (r *reader) u16() uint16 {
	if !r.need(2) {
		return 0
	}
	v := binary.LittleEndian.Uint16(r.b[r.pos:])
	r.pos += 2
	return v
}

func (r *reader) u32() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(r.b[r.pos:])
	r.pos += 4
	return v
}

func (r *reader) bytes(n int) []byte {
	if !r.need(n) {
		return nil
	}
	v := r.b[r.pos : r.pos+n]
	r.pos += n
	return v
}

// wstring reads WORD length followed by that many UTF-16LE code units.
func (r *reader) wstring() string {
	n := int(r.u16())
	raw := r.bytes(n * 2)
	if r.err != nil {
		return ""
	}
	s, err := utf16le.NewDecoder().Bytes(raw)
	if err != nil {
		r.err = fmt.Errorf("%w: bad string: %v", ErrMalformedRecord, err)
		return ""
	}
	return string(s)
}

func appendWString(dst []byte, s string) []byte {
	raw, err := utf16le.NewEncoder().Bytes([]byte(s))
	if err != nil {
		// invalid UTF-8 is replaced by encoder, never happens
		raw = nil
	}
	dst = binary.LittleEndian.AppendUint16(dst, uint16(len(raw)/2))
	return append(dst, raw...)
}
