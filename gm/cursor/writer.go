package cursor

import (
	"encoding/binary"
	"fmt"
	"math"
)

// A Handle keys pointer placeholders to the element they will point at.
// Handles are arbitrary comparable values; callers pick a scheme that makes
// each target unique (typically a kind string plus an index).
type Handle any

// A Writer is a positional writer over a growable buffer. It mirrors the
// Reader's primitives and adds pointer placeholders and back-patching, which
// the serializers use for pointer lists and length fields.
type Writer struct {
	buf []byte
	// binary.LittleEndian and binary.BigEndian implement both interfaces;
	// appends and overwrites must agree on the order.
	order binary.ByteOrder
	app   binary.AppendByteOrder
	big   bool

	placeholders map[Handle][]uint32
	resolved     map[Handle]uint32
}

const placeholderWord = 0xDEADC0DE

func NewWriter() *Writer {
	return &Writer{
		order:        binary.LittleEndian,
		app:          binary.LittleEndian,
		placeholders: make(map[Handle][]uint32),
		resolved:     make(map[Handle]uint32),
	}
}

// SetBigEndian switches all multi-byte writes to big-endian.
func (w *Writer) SetBigEndian() {
	w.order = binary.BigEndian
	w.app = binary.BigEndian
	w.big = true
}

// Len returns the current length of the output buffer, which is also the
// position the next write lands at.
func (w *Writer) Len() uint32 { return uint32(len(w.buf)) }

// Bytes returns the accumulated output buffer.
func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) WriteBytes(b []byte) { w.buf = append(w.buf, b...) }

func (w *Writer) U8(v uint8)  { w.buf = append(w.buf, v) }
func (w *Writer) I8(v int8)   { w.U8(uint8(v)) }
func (w *Writer) U16(v uint16) {
	w.buf = w.app.AppendUint16(w.buf, v)
}
func (w *Writer) I16(v int16) { w.U16(uint16(v)) }
func (w *Writer) U32(v uint32) {
	w.buf = w.app.AppendUint32(w.buf, v)
}
func (w *Writer) I32(v int32) { w.U32(uint32(v)) }
func (w *Writer) U64(v uint64) {
	w.buf = w.app.AppendUint64(w.buf, v)
}
func (w *Writer) I64(v int64)   { w.U64(uint64(v)) }
func (w *Writer) F32(v float32) { w.U32(math.Float32bits(v)) }
func (w *Writer) F64(v float64) { w.U64(math.Float64bits(v)) }

// U24 writes the low 24 bits of v as three bytes.
func (w *Writer) U24(v uint32) {
	if w.big {
		w.buf = append(w.buf, byte(v>>16), byte(v>>8), byte(v))
		return
	}
	w.buf = append(w.buf, byte(v), byte(v>>8), byte(v>>16))
}

func (w *Writer) Bool32(v bool) {
	if v {
		w.U32(1)
	} else {
		w.U32(0)
	}
}

// Align appends zero bytes until Len is a multiple of k.
func (w *Writer) Align(k uint32) {
	for w.Len()%k != 0 {
		w.U8(0)
	}
}

// OverwriteU32 back-patches a previously written 32-bit slot.
func (w *Writer) OverwriteU32(v uint32, pos uint32) error {
	if pos+4 > w.Len() {
		return fmt.Errorf("overwrite at position %d past end of buffer (len %d)", pos, w.Len())
	}
	w.order.PutUint32(w.buf[pos:pos+4], v)
	return nil
}

// OverwriteI32 back-patches a previously written signed 32-bit slot.
func (w *Writer) OverwriteI32(v int32, pos uint32) error {
	return w.OverwriteU32(uint32(v), pos)
}

// WritePointer emits a four-byte placeholder that will later point at the
// position where ResolvePointer(handle) is called. If the handle is already
// resolved the final value is written immediately.
func (w *Writer) WritePointer(handle Handle) {
	if pos, ok := w.resolved[handle]; ok {
		w.U32(pos)
		return
	}
	w.placeholders[handle] = append(w.placeholders[handle], w.Len())
	w.U32(placeholderWord)
}

// ResolvePointer records the current position as the target of handle and
// back-patches every placeholder previously written for it.
func (w *Writer) ResolvePointer(handle Handle) error {
	pos := w.Len()
	w.resolved[handle] = pos
	for _, p := range w.placeholders[handle] {
		if err := w.OverwriteU32(pos, p); err != nil {
			return err
		}
	}
	delete(w.placeholders, handle)
	return nil
}

// Unresolved returns the number of placeholders still waiting for a target.
// A nonzero count after serialization means a dangling pointer.
func (w *Writer) Unresolved() int {
	n := 0
	for _, ps := range w.placeholders {
		n += len(ps)
	}
	return n
}
