// Package bintest builds synthetic data.win buffers for tests: a FORM
// container assembler plus payload helpers for the chunks the core decodes.
// Offsets are absolute, so chunks must be added in file order.
package bintest

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/kylelemons/godebug/diff"
)

// A FileBuilder assembles a FORM container from chunk payloads.
type FileBuilder struct {
	chunks []chunkData
}

type chunkData struct {
	tag     string
	payload []byte
}

// Next returns the absolute file offset the next chunk's payload will start
// at: 8 bytes of FORM header plus every chunk so far with its 8-byte header.
func (b *FileBuilder) Next() uint32 {
	pos := uint32(8)
	for _, c := range b.chunks {
		pos += 8 + uint32(len(c.payload))
	}
	return pos + 8
}

// Add appends a chunk. The tag must be four bytes.
func (b *FileBuilder) Add(tag string, payload []byte) {
	if len(tag) != 4 {
		panic(fmt.Sprintf("chunk tag must be 4 bytes, got %q", tag))
	}
	b.chunks = append(b.chunks, chunkData{tag: tag, payload: payload})
}

// Bytes returns the assembled file.
func (b *FileBuilder) Bytes() []byte {
	var total uint32
	for _, c := range b.chunks {
		total += 8 + uint32(len(c.payload))
	}
	out := make([]byte, 0, 8+total)
	out = append(out, "FORM"...)
	out = binary.LittleEndian.AppendUint32(out, total)
	for _, c := range b.chunks {
		out = append(out, c.tag...)
		out = binary.LittleEndian.AppendUint32(out, uint32(len(c.payload)))
		out = append(out, c.payload...)
	}
	return out
}

// A Buf is a little-endian payload assembler.
type Buf struct {
	B []byte
}

func (b *Buf) U8(v uint8)     { b.B = append(b.B, v) }
func (b *Buf) U16(v uint16)   { b.B = binary.LittleEndian.AppendUint16(b.B, v) }
func (b *Buf) I16(v int16)    { b.U16(uint16(v)) }
func (b *Buf) U32(v uint32)   { b.B = binary.LittleEndian.AppendUint32(b.B, v) }
func (b *Buf) I32(v int32)    { b.U32(uint32(v)) }
func (b *Buf) U64(v uint64)   { b.B = binary.LittleEndian.AppendUint64(b.B, v) }
func (b *Buf) Raw(v ...byte)  { b.B = append(b.B, v...) }
func (b *Buf) Str(s string)   { b.B = append(b.B, s...) }
func (b *Buf) Len() uint32    { return uint32(len(b.B)) }

// Strings builds a STRG payload at absolute offset base and returns it with
// the absolute character-data position of each string, which is what string
// references elsewhere in the file point at.
func Strings(base uint32, strs ...string) (payload []byte, charPos []uint32) {
	var b Buf
	b.U32(uint32(len(strs)))
	// Pointer list, then entries: count + pointers precede the first entry.
	entry := base + 4 + 4*uint32(len(strs))
	charPos = make([]uint32, len(strs))
	for i, s := range strs {
		b.U32(entry)
		charPos[i] = entry + 4
		entry += 4 + uint32(len(s)) + 1
	}
	for _, s := range strs {
		b.U32(uint32(len(s)))
		b.Str(s)
		b.U8(0)
	}
	return b.B, charPos
}

// Gen8 carries the fields a test cares about; everything else gets a fixed
// plausible default.
type Gen8 struct {
	Bytecode                     uint8
	Major, Minor, Release, Build uint32

	// Absolute char positions of the four string references.
	FileName, Config, Name, DisplayName uint32

	RoomOrder []uint32
	Tail      []byte
}

// Payload builds a GEN8 payload.
func (g Gen8) Payload() []byte {
	var b Buf
	b.U8(1) // debugger disabled
	b.U8(g.Bytecode)
	b.U16(0)
	b.U32(g.FileName)
	b.U32(g.Config)
	b.U32(9000) // last object id
	b.U32(10000000)
	b.U32(1337) // game id
	b.Raw(make([]byte, 16)...)
	b.U32(g.Name)
	b.U32(g.Major)
	b.U32(g.Minor)
	b.U32(g.Release)
	b.U32(g.Build)
	b.U32(1024)
	b.U32(768)
	b.U32(0x00000880) // info flags
	b.U32(0xDEADBEEF) // license crc32
	b.Raw(make([]byte, 16)...)
	b.U64(1700000000) // timestamp
	b.U32(g.DisplayName)
	b.U64(0)
	b.U64(0)
	b.U32(0) // steam appid
	if g.Bytecode >= 14 {
		b.U32(6502) // debugger port
	}
	b.U32(uint32(len(g.RoomOrder)))
	for _, id := range g.RoomOrder {
		b.U32(id)
	}
	b.Raw(g.Tail...)
	return b.B
}

// DiffBytes fails the test with a hex diff when got and want differ.
func DiffBytes(t *testing.T, got, want []byte) {
	t.Helper()
	if string(got) == string(want) {
		return
	}
	t.Errorf("byte buffers differ (got %d bytes, want %d):\n%s",
		len(got), len(want), diff.Diff(hexdump(got), hexdump(want)))
}

func hexdump(b []byte) string {
	var out []byte
	for i := 0; i < len(b); i += 16 {
		end := i + 16
		if end > len(b) {
			end = len(b)
		}
		out = append(out, fmt.Sprintf("%08x ", i)...)
		for _, v := range b[i:end] {
			out = append(out, fmt.Sprintf(" %02x", v)...)
		}
		out = append(out, '\n')
	}
	return string(out)
}
