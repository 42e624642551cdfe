package cursor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderPrimitives(t *testing.T) {
	r, err := NewReader([]byte{
		0x01, 0x02, 0x03, 0x04, // u32 LE
		0xFF,       // u8
		0x34, 0x12, // u16 LE
		0xAA, 0xBB, 0xCC, // u24 LE
		0x01, 0x00, 0x00, 0x00, // bool32 true
	})
	require.NoError(t, err)

	v32, err := r.U32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x04030201), v32)

	v8, err := r.U8()
	require.NoError(t, err)
	assert.Equal(t, uint8(0xFF), v8)

	v16, err := r.U16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), v16)

	v24, err := r.U24()
	require.NoError(t, err)
	assert.Equal(t, uint32(0xCCBBAA), v24)

	b, err := r.Bool32()
	require.NoError(t, err)
	assert.True(t, b)
	assert.Equal(t, uint32(14), r.Pos)
}

func TestReaderBool32Invalid(t *testing.T) {
	r, err := NewReader([]byte{0x02, 0x00, 0x00, 0x00})
	require.NoError(t, err)

	_, err = r.Bool32()
	var berr *Bool32Error
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, uint32(2), berr.Value)
	assert.Equal(t, uint32(0), berr.Pos)
}

func TestReaderChunkBounds(t *testing.T) {
	r, err := NewReader(make([]byte, 32))
	require.NoError(t, err)
	r.SetChunk(8, 16)

	_, err = r.Bytes(8)
	require.NoError(t, err)

	// one byte past the chunk end
	_, err = r.Bytes(1)
	var berr *BoundsError
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, uint32(16), berr.ChunkEnd)

	// position unchanged after the failed read
	assert.Equal(t, uint32(16), r.Pos)

	// below the chunk start
	r.Pos = 4
	_, err = r.Bytes(2)
	require.ErrorAs(t, err, &berr)
}

func TestReaderAlign(t *testing.T) {
	r, err := NewReader([]byte{0xAB, 0x00, 0x00, 0x00, 0x01})
	require.NoError(t, err)
	r.Pos = 1

	require.NoError(t, r.Align(4))
	assert.Equal(t, uint32(4), r.Pos)

	// already aligned: no movement
	require.NoError(t, r.Align(4))
	assert.Equal(t, uint32(4), r.Pos)

	r2, err := NewReader([]byte{0x00, 0x07, 0x00, 0x00})
	require.NoError(t, err)
	r2.Pos = 1
	err = r2.Align(4)
	var perr *PaddingError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, byte(0x07), perr.Value)
	assert.Equal(t, uint32(1), perr.Pos)
}

func TestReaderAssertPos(t *testing.T) {
	r, err := NewReader(make([]byte, 8))
	require.NoError(t, err)
	r.Pos = 4

	require.NoError(t, r.AssertPos(4, "Code"))

	err = r.AssertPos(8, "Code")
	var perr *PointerError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Error(), "misaligned")

	err = r.AssertPos(0, "Code")
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Error(), "null pointers are not supported")
}

func TestReaderSetRelPos(t *testing.T) {
	r, err := NewReader(make([]byte, 32))
	require.NoError(t, err)
	r.SetChunk(8, 24)

	require.NoError(t, r.SetRelPos(4))
	assert.Equal(t, uint32(12), r.Pos)

	assert.Error(t, r.SetRelPos(17))
}

func TestReaderStringUTF8(t *testing.T) {
	r, err := NewReader([]byte("hello\xff\xfe"))
	require.NoError(t, err)

	s, err := r.StringUTF8(5)
	require.NoError(t, err)
	assert.Equal(t, "hello", s)

	_, err = r.StringUTF8(2)
	var serr *StringError
	require.ErrorAs(t, err, &serr)
}

func TestReaderBigEndian(t *testing.T) {
	r, err := NewReader([]byte{0x01, 0x02, 0x03, 0x04, 0xAA, 0xBB, 0xCC})
	require.NoError(t, err)
	r.SetBigEndian()

	v, err := r.U32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x01020304), v)

	v24, err := r.U24()
	require.NoError(t, err)
	assert.Equal(t, uint32(0xAABBCC), v24)
}

func TestWriterMirrorsReader(t *testing.T) {
	w := NewWriter()
	w.U32(0xDEADBEEF)
	w.U16(0x1234)
	w.U24(0xCCBBAA)
	w.Bool32(true)
	w.F64(1.5)
	w.Align(16)

	r, err := NewReader(w.Bytes())
	require.NoError(t, err)

	u32, _ := r.U32()
	assert.Equal(t, uint32(0xDEADBEEF), u32)
	u16, _ := r.U16()
	assert.Equal(t, uint16(0x1234), u16)
	u24, _ := r.U24()
	assert.Equal(t, uint32(0xCCBBAA), u24)
	b, _ := r.Bool32()
	assert.True(t, b)
	f, _ := r.F64()
	assert.Equal(t, 1.5, f)
	require.NoError(t, r.Align(16))
	assert.Equal(t, r.Size(), r.Pos)
}

func TestWriterPointers(t *testing.T) {
	type handle struct{ i int }

	w := NewWriter()
	w.WritePointer(handle{1})
	w.WritePointer(handle{1}) // two placeholders, same target
	w.U32(0)

	require.NoError(t, w.ResolvePointer(handle{1}))
	assert.Equal(t, 0, w.Unresolved())

	// both placeholders point at position 12
	r, err := NewReader(w.Bytes())
	require.NoError(t, err)
	p1, _ := r.U32()
	p2, _ := r.U32()
	assert.Equal(t, uint32(12), p1)
	assert.Equal(t, uint32(12), p2)

	// resolving before writing emits the final value directly
	w2 := NewWriter()
	require.NoError(t, w2.ResolvePointer(handle{7}))
	w2.U32(0xFFFFFFFF)
	w2.WritePointer(handle{7})
	r2, err := NewReader(w2.Bytes())
	require.NoError(t, err)
	r2.Pos = 4
	p, _ := r2.U32()
	assert.Equal(t, uint32(0), p)
	assert.Equal(t, 0, w2.Unresolved())
}

func TestWriterOverwrite(t *testing.T) {
	w := NewWriter()
	w.U32(0)
	w.U32(0xFFFFFFFF)
	require.NoError(t, w.OverwriteU32(42, 0))
	assert.Error(t, w.OverwriteU32(1, 6))

	r, err := NewReader(w.Bytes())
	require.NoError(t, err)
	v, _ := r.U32()
	assert.Equal(t, uint32(42), v)
}

func TestNewReaderAcceptsNil(t *testing.T) {
	// not practical to allocate 4 GiB in a unit test; only check that a
	// valid buffer passes
	_, err := NewReader(nil)
	assert.NoError(t, err)
	assert.False(t, errors.Is(err, errors.ErrUnsupported))
}
