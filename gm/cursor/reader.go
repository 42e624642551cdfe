// Package cursor implements the chunk-scoped positional reader and writer
// that all data.win decoding and encoding goes through. Reads and writes are
// bounds-checked against the currently active chunk window and are
// endianness-aware; little-endian is the default, big-endian occurs on some
// console builds.
package cursor

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"
)

// A Reader is a positional reader over an immutable byte buffer. The active
// chunk window [ChunkStart, ChunkEnd) bounds every read; the invariant
// ChunkStart <= Pos <= ChunkEnd holds after every successful operation.
type Reader struct {
	data []byte

	// Pos is the current read position within the data buffer.
	Pos uint32

	// ChunkStart and ChunkEnd delimit the currently active chunk. They
	// default to the whole buffer until the chunk directory narrows them.
	ChunkStart uint32
	ChunkEnd   uint32

	order binary.ByteOrder
	big   bool
}

// NewReader returns a reader over data with the chunk window spanning the
// entire buffer. Buffers past 4 GiB cannot be addressed by the format.
func NewReader(data []byte) (*Reader, error) {
	if len(data) > math.MaxUint32 {
		return nil, fmt.Errorf("data length %d out of u32 bounds", len(data))
	}
	return &Reader{
		data:     data,
		ChunkEnd: uint32(len(data)),
		order:    binary.LittleEndian,
	}, nil
}

// SetBigEndian switches all multi-byte reads to big-endian.
func (r *Reader) SetBigEndian() {
	r.order = binary.BigEndian
	r.big = true
}

// BigEndian reports whether the reader is in big-endian mode.
func (r *Reader) BigEndian() bool { return r.big }

// Size returns the byte length of the whole data buffer.
func (r *Reader) Size() uint32 { return uint32(len(r.data)) }

// SetChunk activates the chunk window [start, end) and leaves Pos at start.
func (r *Reader) SetChunk(start, end uint32) {
	r.ChunkStart, r.ChunkEnd = start, end
	r.Pos = start
}

// ChunkLen returns the length of the currently active chunk.
func (r *Reader) ChunkLen() uint32 { return r.ChunkEnd - r.ChunkStart }

// Bytes reads n bytes, returning a slice borrowed from the underlying
// buffer. Callers must copy if they retain it across mutations.
func (r *Reader) Bytes(n uint32) ([]byte, error) {
	start := r.Pos
	end := start + n
	if end < start { // overflow
		return nil, &BoundsError{Pos: start, Requested: n, ChunkStart: r.ChunkStart, ChunkEnd: r.ChunkEnd}
	}
	if start < r.ChunkStart || end > r.ChunkEnd {
		return nil, &BoundsError{Pos: start, Requested: n, ChunkStart: r.ChunkStart, ChunkEnd: r.ChunkEnd}
	}
	r.Pos = end
	return r.data[start:end], nil
}

func (r *Reader) U8() (uint8, error) {
	b, err := r.Bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) I8() (int8, error) {
	v, err := r.U8()
	return int8(v), err
}

func (r *Reader) U16() (uint16, error) {
	b, err := r.Bytes(2)
	if err != nil {
		return 0, err
	}
	return r.order.Uint16(b), nil
}

func (r *Reader) I16() (int16, error) {
	v, err := r.U16()
	return int16(v), err
}

// U24 assembles three bytes into the low bits of a 32-bit value.
func (r *Reader) U24() (uint32, error) {
	b, err := r.Bytes(3)
	if err != nil {
		return 0, err
	}
	if r.big {
		return uint32(b[2]) | uint32(b[1])<<8 | uint32(b[0])<<16, nil
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16, nil
}

func (r *Reader) U32() (uint32, error) {
	b, err := r.Bytes(4)
	if err != nil {
		return 0, err
	}
	return r.order.Uint32(b), nil
}

func (r *Reader) I32() (int32, error) {
	v, err := r.U32()
	return int32(v), err
}

func (r *Reader) U64() (uint64, error) {
	b, err := r.Bytes(8)
	if err != nil {
		return 0, err
	}
	return r.order.Uint64(b), nil
}

func (r *Reader) I64() (int64, error) {
	v, err := r.U64()
	return int64(v), err
}

func (r *Reader) F32() (float32, error) {
	v, err := r.U32()
	return math.Float32frombits(v), err
}

func (r *Reader) F64() (float64, error) {
	v, err := r.U64()
	return math.Float64frombits(v), err
}

// Bool32 reads a 32-bit integer and accepts exactly 0 or 1.
func (r *Reader) Bool32() (bool, error) {
	pos := r.Pos
	v, err := r.U32()
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, &Bool32Error{Pos: pos, Value: v}
}

// StringUTF8 reads n bytes and validates them as UTF-8.
func (r *Reader) StringUTF8(n uint32) (string, error) {
	pos := r.Pos
	b, err := r.Bytes(n)
	if err != nil {
		return "", fmt.Errorf("reading literal string with length %d: %w", n, err)
	}
	if !utf8.Valid(b) {
		return "", &StringError{Pos: pos, Length: n}
	}
	return string(b), nil
}

// Align reads bytes until Pos is a multiple of k, requiring every skipped
// byte to be zero.
func (r *Reader) Align(k uint32) error {
	for r.Pos%k != 0 {
		pos := r.Pos
		b, err := r.U8()
		if err != nil {
			return fmt.Errorf("aligning reader to %d: %w", k, err)
		}
		if b != 0 {
			return &PaddingError{Pos: pos, Value: b}
		}
	}
	return nil
}

// AssertPos checks that the reader sits exactly at the position a pointer
// named name announced. A zero expected position is a null pointer.
func (r *Reader) AssertPos(expected uint32, name string) error {
	if r.Pos != expected {
		return &PointerError{Name: name, Expected: expected, Actual: r.Pos}
	}
	return nil
}

// SetRelPos jumps to ChunkStart + offset, checking overflow and the upper
// chunk bound.
func (r *Reader) SetRelPos(offset uint32) error {
	pos := r.ChunkStart + offset
	if pos < r.ChunkStart {
		return fmt.Errorf("relative position %d would overflow from start position %d", offset, r.ChunkStart)
	}
	if pos > r.ChunkEnd {
		return fmt.Errorf("position %d (start %d + relative %d) exceeds chunk end position %d",
			pos, r.ChunkStart, offset, r.ChunkEnd)
	}
	r.Pos = pos
	return nil
}
