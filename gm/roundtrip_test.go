package gm_test

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmcore/gmdata/gm"
	"github.com/gmcore/gmdata/gm/img"
	"github.com/gmcore/gmdata/internal/bintest"
)

func TestRoundTripYYCAbsentCode(t *testing.T) {
	var fb bintest.FileBuilder

	strg, chars := bintest.Strings(fb.Next(), "data.win", "Default", "testgame", "Test Game")
	fb.Add("STRG", strg)
	fb.Add("GEN8", bintest.Gen8{
		Bytecode: 17,
		Major:    2, Minor: 3,
		FileName: chars[0], Config: chars[1], Name: chars[2], DisplayName: chars[3],
	}.Payload())

	buf := fb.Bytes()
	data, err := gm.Parse(buf)
	require.NoError(t, err)
	assert.True(t, data.YYC)
	assert.Empty(t, data.Codes)
	assert.Equal(t, uint8(17), data.BytecodeVersion)

	out, err := data.Write()
	require.NoError(t, err)
	bintest.DiffBytes(t, out, buf)
}

func TestRoundTripYYCEmptyChunks(t *testing.T) {
	var fb bintest.FileBuilder

	strg, chars := bintest.Strings(fb.Next(), "data.win", "Default", "testgame", "Test Game")
	fb.Add("STRG", strg)
	fb.Add("GEN8", bintest.Gen8{
		Bytecode: 16,
		Major:    2, Minor: 2,
		FileName: chars[0], Config: chars[1], Name: chars[2], DisplayName: chars[3],
	}.Payload())
	fb.Add("CODE", nil)
	fb.Add("VARI", nil)
	fb.Add("FUNC", nil)

	buf := fb.Bytes()
	data, err := gm.Parse(buf)
	require.NoError(t, err)
	assert.True(t, data.YYC)

	ok, offset, err := data.RoundTrips()
	require.NoError(t, err)
	assert.True(t, ok, "first difference at offset %d", offset)
}

func TestEmptyCodeAfterBytecode16Rejected(t *testing.T) {
	var fb bintest.FileBuilder
	strg, chars := bintest.Strings(fb.Next(), "data.win", "Default", "g", "G")
	fb.Add("STRG", strg)
	fb.Add("GEN8", bintest.Gen8{
		Bytecode: 17,
		Major:    2, Minor: 3,
		FileName: chars[0], Config: chars[1], Name: chars[2], DisplayName: chars[3],
	}.Payload())
	fb.Add("CODE", nil)
	fb.Add("VARI", nil)
	fb.Add("FUNC", nil)

	_, err := gm.Parse(fb.Bytes())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty but existent CODE chunk")
}

// codeFile builds a bytecode-15 file with one parent code entry, one child
// entry sharing its stream, a variable referenced at three sites and one
// function call. It returns the buffer and the absolute stream start.
func codeFile(t *testing.T) ([]byte, uint32) {
	t.Helper()
	var fb bintest.FileBuilder

	strg, chars := bintest.Strings(fb.Next(),
		"a_var", "some_func", "gml_Script_main", "gml_Script_child",
		"data.win", "Default", "testgame", "Test Game")
	fb.Add("STRG", strg)
	fb.Add("GEN8", bintest.Gen8{
		Bytecode: 15,
		Major:    2,
		FileName: chars[4], Config: chars[5], Name: chars[6], DisplayName: chars[7],
	}.Payload())

	// CODE: count, pointers, instruction stream, then the two entries.
	codeStart := fb.Next()
	stream := codeStart + 4 + 2*4
	entry0 := stream + 36
	entry1 := entry0 + 20

	var cb bintest.Buf
	cb.U32(2)
	cb.U32(entry0)
	cb.U32(entry1)

	kind := uint32(0xA0) << 24
	// 0: push self.a_var
	cb.Raw(0xFF, 0xFF, 0x05, 0xC0)
	cb.U32(8 | kind)
	// 8: push self.a_var
	cb.Raw(0xFF, 0xFF, 0x05, 0xC0)
	cb.U32(8 | kind)
	// 16: pop self.a_var (var, var)
	cb.Raw(0xFF, 0xFF, 0x55, 0x45)
	cb.U32(0 | kind) // name id of a_var
	// 24: call some_func 0
	cb.Raw(0x00, 0x00, 0x02, 0xD9)
	cb.U32(1) // name id of some_func
	// 32: exit
	cb.Raw(0x00, 0x00, 0x02, 0x9D)

	// parent entry
	cb.U32(chars[2])
	cb.U32(36)
	cb.U16(0) // locals
	cb.U16(0) // args
	cb.I32(int32(stream) - int32(cb.Len()+codeStart))
	cb.U32(0)
	// child entry, sharing the parent's stream at offset 24
	cb.U32(chars[3])
	cb.U32(36)
	cb.U16(0)
	cb.U16(1) // one argument
	cb.I32(int32(stream) - int32(cb.Len()+codeStart))
	cb.U32(24)
	fb.Add("CODE", cb.B)

	// VARI: header + one variable with a three-site occurrence chain.
	var vb bintest.Buf
	vb.U32(1)
	vb.U32(1)
	vb.U32(0)
	vb.U32(chars[0])
	vb.I32(-1) // instance type
	vb.I32(0)  // var id
	vb.U32(3)
	vb.I32(int32(stream))
	fb.Add("VARI", vb.B)

	// FUNC: one function with one occurrence, plus one code-locals entry.
	var fbuf bintest.Buf
	fbuf.U32(1)
	fbuf.U32(chars[1])
	fbuf.U32(1)
	fbuf.I32(int32(stream + 24))
	fbuf.U32(1) // code locals count
	fbuf.U32(0) // locals in entry
	fbuf.U32(chars[2])
	fb.Add("FUNC", fbuf.B)

	return fb.Bytes(), stream
}

func TestRoundTripCode(t *testing.T) {
	buf, stream := codeFile(t)

	data, err := gm.Parse(buf)
	require.NoError(t, err)
	require.False(t, data.YYC)
	require.Len(t, data.Codes, 2)
	require.Len(t, data.Variables, 1)
	require.Len(t, data.Functions, 1)

	parent := data.Codes[0]
	require.Len(t, parent.Instructions, 5)
	require.NotNil(t, parent.B15)
	assert.False(t, parent.B15.HasParent)

	// the child shares the parent's stream and decodes no instructions
	child := data.Codes[1]
	require.NotNil(t, child.B15)
	assert.True(t, child.B15.HasParent)
	assert.Equal(t, uint32(0), child.B15.Parent.Index)
	assert.Empty(t, child.Instructions)
	assert.Equal(t, uint32(24), child.B15.Offset)
	assert.Equal(t, uint16(1), child.B15.ArgumentsCount)

	// decoded shapes
	push, ok := parent.Instructions[0].(gm.Push)
	require.True(t, ok)
	v, ok := push.Value.(gm.VariableValue)
	require.True(t, ok)
	assert.Equal(t, gm.VarKindNormal, v.Operand.Kind)
	assert.Equal(t, gm.InstSelf, v.Operand.Instance.Kind)
	assert.Equal(t, uint32(0), v.Operand.Variable.Index)

	call, ok := parent.Instructions[3].(gm.Call)
	require.True(t, ok)
	assert.Equal(t, uint32(0), call.Function.Index)

	// occurrence lists hold the instruction-stream byte offsets
	assert.Equal(t, []uint32{stream, stream + 8, stream + 16}, data.Variables[0].Occurrences)
	assert.Equal(t, []uint32{stream + 24}, data.Functions[0].Occurrences)

	// byte-identical re-encoding
	out, err := data.Write()
	require.NoError(t, err)
	bintest.DiffBytes(t, out, buf)

	// occurrence-chain consistency: re-decoding the output yields the same
	// occurrence lists
	data2, err := gm.Parse(out)
	require.NoError(t, err)
	assert.Equal(t, data.Variables[0].Occurrences, data2.Variables[0].Occurrences)
	assert.Equal(t, data.Functions[0].Occurrences, data2.Functions[0].Occurrences)

	// the three link words on the wire: two relative forward offsets, then
	// the name string id, all carrying the kind bits of their own site
	link := func(pos uint32) uint32 { return binary.LittleEndian.Uint32(out[pos : pos+4]) }
	kind := uint32(0xA0) << 24
	assert.Equal(t, uint32(8)|kind, link(stream+4))
	assert.Equal(t, uint32(8)|kind, link(stream+12))
	assert.Equal(t, uint32(0)|kind, link(stream+20))
}

func TestModifyInstruction(t *testing.T) {
	buf, _ := codeFile(t)
	data, err := gm.Parse(buf)
	require.NoError(t, err)

	// swap the final exit for a couple of extra instructions
	parent := &data.Codes[0]
	parent.Instructions = append(parent.Instructions[:4],
		gm.PushImmediate{Value: 41},
		gm.Push{Value: gm.Int32Value(1)},
		gm.Binary{Op: gm.OpAdd, Right: gm.TypeInt32, Left: gm.TypeInt32},
		gm.PopDiscard{Type: gm.TypeInt32},
		gm.Exit{},
	)

	out, err := data.Write()
	require.NoError(t, err)
	assert.NotEqual(t, buf, out)

	data2, err := gm.Parse(out)
	require.NoError(t, err)
	require.Len(t, data2.Codes[0].Instructions, 9)
	assert.Equal(t, gm.PushImmediate{Value: 41}, data2.Codes[0].Instructions[4])

	// chains were re-stitched: same occurrence structure, new positions
	require.Len(t, data2.Variables[0].Occurrences, 3)
	require.Len(t, data2.Functions[0].Occurrences, 1)

	// and the modified aggregate round-trips against its own output
	ok, offset, err := data2.RoundTrips()
	require.NoError(t, err)
	assert.True(t, ok, "first difference at offset %d", offset)
}

// textureFile builds a version-2.0 file carrying a PNG page, a raw QOI page
// and a BZip2-wrapped QOI page, plus one TPAG item.
func textureFile(t *testing.T) []byte {
	t.Helper()
	var fb bintest.FileBuilder

	strg, chars := bintest.Strings(fb.Next(), "data.win", "Default", "g", "G")
	fb.Add("STRG", strg)
	fb.Add("GEN8", bintest.Gen8{
		Bytecode: 17,
		Major:    2,
		FileName: chars[0], Config: chars[1], Name: chars[2], DisplayName: chars[3],
	}.Payload())

	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := range src.Pix {
		src.Pix[i] = uint8(i * 7)
	}
	var pngBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, src))
	qoiData := img.EncodeQoi(src)

	qoiSolid := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := 0; i < len(qoiSolid.Pix); i += 4 {
		qoiSolid.Pix[i+0] = 200
		qoiSolid.Pix[i+3] = 255
	}
	bz, err := img.Recompress(img.Decoded{Pixels: qoiSolid})
	require.NoError(t, err)

	txtrStart := fb.Next()
	var tb bintest.Buf
	tb.U32(3)
	// pointer list and entries: 3 pointers + 3 entries of 8 bytes
	entryBase := txtrStart + 4 + 3*4
	tb.U32(entryBase)
	tb.U32(entryBase + 8)
	tb.U32(entryBase + 16)

	// blob positions must be 128-aligned absolute offsets
	blobsStart := entryBase + 3*8
	align := func(pos uint32) uint32 { return (pos + 127) &^ 127 }
	blob0 := align(blobsStart)
	blob1 := align(blob0 + uint32(pngBuf.Len()))
	blob2 := align(blob1 + uint32(len(qoiData)))

	tb.U32(0) // scaled
	tb.U32(blob0)
	tb.U32(0)
	tb.U32(blob1)
	tb.U32(0)
	tb.U32(blob2)

	pad := func(upto uint32) {
		for tb.Len()+txtrStart < upto {
			tb.U8(0)
		}
	}
	pad(blob0)
	tb.Raw(pngBuf.Bytes()...)
	pad(blob1)
	tb.Raw(qoiData...)
	pad(blob2)
	tb.Raw('2', 'z', 'o', 'q')
	tb.U16(bz.Header.Width)
	tb.U16(bz.Header.Height)
	tb.Raw(bz.Data...)
	for (txtrStart+tb.Len())%4 != 0 {
		tb.U8(0)
	}
	fb.Add("TXTR", tb.B)

	tpagStart := fb.Next()
	var pb bintest.Buf
	pb.U32(1)
	pb.U32(tpagStart + 8)
	for _, v := range []uint16{0, 0, 4, 4, 0, 0, 4, 4, 4, 4, 0} {
		pb.U16(v)
	}
	fb.Add("TPAG", pb.B)

	return fb.Bytes()
}

func TestRoundTripTextures(t *testing.T) {
	buf := textureFile(t)

	data, err := gm.Parse(buf)
	require.NoError(t, err)
	require.Len(t, data.TexturePages, 3)
	require.Len(t, data.PageItems, 1)

	_, isPNG := data.TexturePages[0].Image.(img.PNG)
	assert.True(t, isPNG)
	_, isQoi := data.TexturePages[1].Image.(img.Qoi)
	assert.True(t, isQoi)
	bq, isBz2 := data.TexturePages[2].Image.(img.Bz2Qoi)
	require.True(t, isBz2)
	assert.Equal(t, uint16(8), bq.Header.Width)
	assert.False(t, bq.Header.HasSize) // version 2.0 has no uncompressed size

	item := data.PageItems[0]
	assert.Equal(t, uint16(4), item.SourceWidth)
	page, err := data.ResolveTexturePage(item.TexturePage)
	require.NoError(t, err)
	assert.NotNil(t, page.Image)

	ok, offset, err := data.RoundTrips()
	require.NoError(t, err)
	assert.True(t, ok, "first difference at offset %d", offset)
}

func TestRefIntegrity(t *testing.T) {
	buf, _ := codeFile(t)
	data, err := gm.Parse(buf)
	require.NoError(t, err)

	for i := range data.Codes {
		_, err := data.ResolveString(data.Codes[i].Name)
		assert.NoError(t, err)
	}
	for i := range data.Variables {
		_, err := data.ResolveString(data.Variables[i].Name)
		assert.NoError(t, err)
	}
	for i := range data.Functions {
		_, err := data.ResolveString(data.Functions[i].Name)
		assert.NoError(t, err)
	}

	_, err = data.ResolveVariable(gm.MakeRef[gm.Variable](99))
	var derr *gm.DanglingRefError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, uint32(99), derr.Index)
	assert.Equal(t, 1, derr.Len)
}

func TestMissingVariChunk(t *testing.T) {
	var fb bintest.FileBuilder
	strg, chars := bintest.Strings(fb.Next(), "data.win", "Default", "g", "G")
	fb.Add("STRG", strg)
	fb.Add("GEN8", bintest.Gen8{
		Bytecode: 15,
		Major:    2,
		FileName: chars[0], Config: chars[1], Name: chars[2], DisplayName: chars[3],
	}.Payload())
	var cb bintest.Buf
	cb.U32(0)
	fb.Add("CODE", cb.B)

	_, err := gm.Parse(fb.Bytes())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing chunk VARI")
}

func TestUnsupportedBytecode(t *testing.T) {
	var fb bintest.FileBuilder
	strg, chars := bintest.Strings(fb.Next(), "data.win", "Default", "g", "G")
	fb.Add("STRG", strg)
	fb.Add("GEN8", bintest.Gen8{
		Bytecode: 13,
		Major:    1,
		FileName: chars[0], Config: chars[1], Name: chars[2], DisplayName: chars[3],
	}.Payload())

	_, err := gm.Parse(fb.Bytes())
	require.Error(t, err)
	var berr *gm.UnsupportedBytecodeError
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, uint8(13), berr.Got)
}
