package img

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmcore/gmdata/gm/cursor"
	"github.com/gmcore/gmdata/gm/version"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	src := rgba(4, 4, func(x, y int) color.RGBA {
		return color.RGBA{R: uint8(60 * x), G: uint8(60 * y), B: 128, A: 255}
	})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))
	return buf.Bytes()
}

func TestReadPNGPassThrough(t *testing.T) {
	data := pngBytes(t)
	buf := append(append([]byte(nil), data...), make([]byte, 64)...)

	r, err := cursor.NewReader(buf)
	require.NoError(t, err)

	im, err := Read(r, uint32(len(buf)), nil, version.New(2, 0, 0, 0))
	require.NoError(t, err)
	p, ok := im.(PNG)
	require.True(t, ok)
	assert.Equal(t, data, p.Data)

	// verbatim re-emission
	w := cursor.NewWriter()
	require.NoError(t, Write(w, p, version.New(2, 0, 0, 0)))
	assert.Equal(t, data, w.Bytes())

	// block size cross-check
	r2, _ := cursor.NewReader(buf)
	size := uint32(len(data))
	_, err = Read(r2, uint32(len(buf)), &size, version.New(2022, 3, 0, 0))
	require.NoError(t, err)

	r3, _ := cursor.NewReader(buf)
	bad := size + 1
	_, err = Read(r3, uint32(len(buf)), &bad, version.New(2022, 3, 0, 0))
	var lerr *LengthMismatchError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, size, lerr.Actual)
}

func TestReadQoiPassThrough(t *testing.T) {
	src := rgba(5, 3, func(x, y int) color.RGBA {
		return color.RGBA{R: uint8(x), G: uint8(y), B: 7, A: 255}
	})
	data := EncodeQoi(src)
	buf := append(append([]byte(nil), data...), make([]byte, 32)...)

	r, err := cursor.NewReader(buf)
	require.NoError(t, err)
	im, err := Read(r, uint32(len(buf)), nil, version.New(2, 0, 0, 0))
	require.NoError(t, err)

	q, ok := im.(Qoi)
	require.True(t, ok)
	assert.Equal(t, data, q.Data)

	px, err := Pixels(q)
	require.NoError(t, err)
	assert.Equal(t, src.Pix, px.Pix)
}

func TestReadBz2Qoi(t *testing.T) {
	src := rgba(6, 4, func(x, y int) color.RGBA {
		return color.RGBA{R: uint8(40 * x), G: uint8(60 * y), B: 0, A: 255}
	})
	qoi := EncodeQoi(src)
	compressed, err := bz2Compress(qoi)
	require.NoError(t, err)

	var b bytes.Buffer
	b.WriteString("2zoq")
	b.Write([]byte{6, 0, 4, 0}) // width, height u16 LE
	b.Write([]byte{byte(len(qoi)), 0, 0, 0})
	b.Write(compressed)
	b.Write(make([]byte, 128))

	r, err := cursor.NewReader(b.Bytes())
	require.NoError(t, err)
	im, err := Read(r, uint32(b.Len()), nil, version.New(2022, 5, 0, 0))
	require.NoError(t, err)

	bq, ok := im.(Bz2Qoi)
	require.True(t, ok)
	assert.Equal(t, uint16(6), bq.Header.Width)
	assert.Equal(t, uint16(4), bq.Header.Height)
	assert.True(t, bq.Header.HasSize)
	assert.Equal(t, uint32(len(qoi)), bq.Header.UncompressedSize)
	assert.Equal(t, compressed, bq.Data)

	px, err := Pixels(bq)
	require.NoError(t, err)
	assert.Equal(t, src.Pix, px.Pix)

	// re-emission rebuilds the wrapper header
	w := cursor.NewWriter()
	require.NoError(t, Write(w, bq, version.New(2022, 5, 0, 0)))
	assert.Equal(t, b.Bytes()[:12+len(compressed)], w.Bytes())

	// pre-2022.5 header has no uncompressed size
	var b2 bytes.Buffer
	b2.WriteString("2zoq")
	b2.Write([]byte{6, 0, 4, 0})
	b2.Write(compressed)
	b2.Write(make([]byte, 128))
	r2, err := cursor.NewReader(b2.Bytes())
	require.NoError(t, err)
	im2, err := Read(r2, uint32(b2.Len()), nil, version.New(2022, 4, 0, 0))
	require.NoError(t, err)
	assert.False(t, im2.(Bz2Qoi).Header.HasSize)
	assert.Equal(t, compressed, im2.(Bz2Qoi).Data)
}

func TestReadInvalidHeader(t *testing.T) {
	buf := bytes.Repeat([]byte{0x42}, 128)
	r, err := cursor.NewReader(buf)
	require.NoError(t, err)

	_, err = Read(r, uint32(len(buf)), nil, version.New(2, 0, 0, 0))
	var herr *HeaderError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, [8]byte{0x42, 0x42, 0x42, 0x42, 0x42, 0x42, 0x42, 0x42}, herr.Bytes)
}

func TestReadAlignsTo128(t *testing.T) {
	data := pngBytes(t)
	buf := make([]byte, 128+len(data))
	copy(buf[128:], data)

	r, err := cursor.NewReader(buf)
	require.NoError(t, err)
	r.Pos = 1 // mid-padding, must skip zeros up to 128

	im, err := Read(r, uint32(len(buf)), nil, version.New(2, 0, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, data, im.(PNG).Data)
}

func TestDecodedReEncodesToPNG(t *testing.T) {
	src := rgba(3, 3, func(x, y int) color.RGBA {
		return color.RGBA{R: 1, G: 2, B: 3, A: 255}
	})
	w := cursor.NewWriter()
	require.NoError(t, Write(w, Decoded{Pixels: src}, version.New(2, 0, 0, 0)))

	decoded, err := png.Decode(bytes.NewReader(w.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 3), decoded.Bounds())
}

func TestRecompress(t *testing.T) {
	src := rgba(7, 5, func(x, y int) color.RGBA {
		return color.RGBA{R: uint8(x * 33), G: uint8(y * 44), B: 9, A: 255}
	})
	bq, err := Recompress(Decoded{Pixels: src})
	require.NoError(t, err)
	assert.Equal(t, uint16(7), bq.Header.Width)
	assert.Equal(t, uint16(5), bq.Header.Height)
	assert.True(t, bq.Header.HasSize)

	px, err := Pixels(bq)
	require.NoError(t, err)
	assert.Equal(t, src.Pix, px.Pix)
}

func TestDeferredRejected(t *testing.T) {
	w := cursor.NewWriter()
	err := Write(w, Deferred{Pos: 640}, version.New(2, 0, 0, 0))
	assert.ErrorContains(t, err, "never deserialized")

	_, err = Pixels(Deferred{Pos: 640})
	assert.ErrorContains(t, err, "never deserialized")
}
