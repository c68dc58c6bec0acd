// Package bytebuf implements the bounded byte-window cursor the trace
// codec is built on: little-endian fixed-width integers, NUL-terminated
// strings, and the CTF-style variable-length integer ("vint") encoding,
// all writing into or reading from a pre-sized []byte window.
//
// No third-party binary-codec library in the retrieved examples covers
// this exact overflow/underflow-signaling, bit-exact vint shape, so this
// package is built directly on encoding/binary.
package bytebuf

import (
	"encoding/binary"

	"github.com/getsentry/memtrace/internal/errorutil"
)

// Buffer is the triple (bytes, pos, posEnd) of spec section 4.1: a
// cursor that advances pos on every put/get and signals Overflow or
// Underflow, carrying the position at which the violation occurred,
// instead of growing or silently truncating.
type Buffer struct {
	b      []byte
	pos    int
	posEnd int
}

// New wraps b as a buffer whose window is the whole of b.
func New(b []byte) *Buffer {
	return &Buffer{b: b, pos: 0, posEnd: len(b)}
}

// Slice returns a new Buffer over the next n bytes of b, advancing b's
// cursor past them. It is how the packet framer carves a packet's
// content out of the stream it is embedded in.
func (b *Buffer) Slice(n int) (*Buffer, error) {
	if b.pos+n > b.posEnd {
		return nil, errorutil.Underflow{Pos: b.pos}
	}
	sub := &Buffer{b: b.b[b.pos : b.pos+n], pos: 0, posEnd: n}
	b.pos += n
	return sub, nil
}

// Pos returns the current cursor position.
func (b *Buffer) Pos() int { return b.pos }

// Len returns the size of the window.
func (b *Buffer) Len() int { return b.posEnd }

// Remaining returns the number of bytes left before Overflow/Underflow.
func (b *Buffer) Remaining() int { return b.posEnd - b.pos }

// Bytes returns the bytes written so far (everything before pos).
func (b *Buffer) Bytes() []byte { return b.b[:b.pos] }

// Rest returns the bytes not yet consumed (everything from pos on).
func (b *Buffer) Rest() []byte { return b.b[b.pos:b.posEnd] }

// Reset rewinds the cursor to the start of the window, for re-reading
// or for the writer's header back-patch.
func (b *Buffer) Reset() { b.pos = 0 }

// Seek moves the cursor to an absolute position already written, for
// the writer's header back-patch. It does not check pos against
// posEnd in either direction past previously written content.
func (b *Buffer) Seek(pos int) { b.pos = pos }

func (b *Buffer) checkPut(n int) error {
	if b.pos+n > b.posEnd {
		return errorutil.Overflow{Pos: b.pos}
	}
	return nil
}

func (b *Buffer) checkGet(n int) error {
	if b.pos+n > b.posEnd {
		return errorutil.Underflow{Pos: b.pos}
	}
	return nil
}

// PutU8 writes a single byte.
func (b *Buffer) PutU8(v uint8) error {
	if err := b.checkPut(1); err != nil {
		return err
	}
	b.b[b.pos] = v
	b.pos++
	return nil
}

// GetU8 reads a single byte.
func (b *Buffer) GetU8() (uint8, error) {
	if err := b.checkGet(1); err != nil {
		return 0, err
	}
	v := b.b[b.pos]
	b.pos++
	return v, nil
}

// PutU16 writes a little-endian uint16.
func (b *Buffer) PutU16(v uint16) error {
	if err := b.checkPut(2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(b.b[b.pos:], v)
	b.pos += 2
	return nil
}

// GetU16 reads a little-endian uint16.
func (b *Buffer) GetU16() (uint16, error) {
	if err := b.checkGet(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(b.b[b.pos:])
	b.pos += 2
	return v, nil
}

// PutU32 writes a little-endian uint32.
func (b *Buffer) PutU32(v uint32) error {
	if err := b.checkPut(4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b.b[b.pos:], v)
	b.pos += 4
	return nil
}

// GetU32 reads a little-endian uint32.
func (b *Buffer) GetU32() (uint32, error) {
	if err := b.checkGet(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(b.b[b.pos:])
	b.pos += 4
	return v, nil
}

// PutU64 writes a little-endian uint64.
func (b *Buffer) PutU64(v uint64) error {
	if err := b.checkPut(8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(b.b[b.pos:], v)
	b.pos += 8
	return nil
}

// GetU64 reads a little-endian uint64.
func (b *Buffer) GetU64() (uint64, error) {
	if err := b.checkGet(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(b.b[b.pos:])
	b.pos += 8
	return v, nil
}

// PutU48 writes the low 48 bits of v as 6 little-endian bytes, the
// packed width of a location_record (spec section 6).
func (b *Buffer) PutU48(v uint64) error {
	if err := b.checkPut(6); err != nil {
		return err
	}
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	copy(b.b[b.pos:b.pos+6], tmp[:6])
	b.pos += 6
	return nil
}

// GetU48 reads 6 little-endian bytes as the low 48 bits of a uint64.
func (b *Buffer) GetU48() (uint64, error) {
	if err := b.checkGet(6); err != nil {
		return 0, err
	}
	var tmp [8]byte
	copy(tmp[:6], b.b[b.pos:b.pos+6])
	v := binary.LittleEndian.Uint64(tmp[:])
	b.pos += 6
	return v, nil
}

// PutBytes writes raw bytes verbatim.
func (b *Buffer) PutBytes(v []byte) error {
	if err := b.checkPut(len(v)); err != nil {
		return err
	}
	copy(b.b[b.pos:], v)
	b.pos += len(v)
	return nil
}

// GetBytes reads n raw bytes verbatim.
func (b *Buffer) GetBytes(n int) ([]byte, error) {
	if err := b.checkGet(n); err != nil {
		return nil, err
	}
	v := b.b[b.pos : b.pos+n]
	b.pos += n
	return v, nil
}

// PutString writes s followed by a NUL terminator.
func (b *Buffer) PutString(s string) error {
	if err := b.checkPut(len(s) + 1); err != nil {
		return err
	}
	copy(b.b[b.pos:], s)
	b.b[b.pos+len(s)] = 0
	b.pos += len(s) + 1
	return nil
}

// GetString reads a NUL-terminated string.
func (b *Buffer) GetString() (string, error) {
	start := b.pos
	for p := b.pos; p < b.posEnd; p++ {
		if b.b[p] == 0 {
			s := string(b.b[start:p])
			b.pos = p + 1
			return s, nil
		}
	}
	return "", errorutil.Underflow{Pos: b.pos}
}

// Vint tag bytes, spec section 4.1 and section 6.
const (
	vintTag16 = 253
	vintTag32 = 254
	vintTag64 = 255
)

// PutVint writes v using the CTF-style variable-length integer: a tag
// byte carrying the value in-band for v in [0,252], otherwise a tag of
// 253/254/255 followed by the smallest-fitting u16/u32/u64.
func (b *Buffer) PutVint(v uint64) error {
	switch {
	case v <= 252:
		return b.PutU8(uint8(v))
	case v < 1<<16:
		if err := b.PutU8(vintTag16); err != nil {
			return err
		}
		return b.PutU16(uint16(v))
	case v < 1<<32:
		if err := b.PutU8(vintTag32); err != nil {
			return err
		}
		return b.PutU32(uint32(v))
	default:
		if err := b.PutU8(vintTag64); err != nil {
			return err
		}
		return b.PutU64(v)
	}
}

// GetVint reads a vint written by PutVint.
func (b *Buffer) GetVint() (uint64, error) {
	tag, err := b.GetU8()
	if err != nil {
		return 0, err
	}
	switch tag {
	case vintTag16:
		v, err := b.GetU16()
		return uint64(v), err
	case vintTag32:
		v, err := b.GetU32()
		return uint64(v), err
	case vintTag64:
		return b.GetU64()
	default:
		return uint64(tag), nil
	}
}

// CheckFormat returns a BadFormat error carrying msg if ok is false,
// the standard way codec invariant checks are spelled across this
// package family.
func CheckFormat(ok bool, format string, args ...interface{}) error {
	if ok {
		return nil
	}
	return errorutil.Errorf(format, args...)
}
