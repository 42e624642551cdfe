package img

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmcore/gmdata/gm/cursor"
)

func TestBz2CompressDecompress(t *testing.T) {
	data := bytes.Repeat([]byte("gmdata bzip2 round trip "), 64)
	compressed, err := bz2Compress(data)
	require.NoError(t, err)

	out, err := bz2Decompress(compressed)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestFindBz2StreamEnd(t *testing.T) {
	payload := bytes.Repeat([]byte("stream boundary discovery"), 40)
	compressed, err := bz2Compress(payload)
	require.NoError(t, err)

	// stream at offset 32, zero padding behind it up to maxEnd
	buf := make([]byte, 32+len(compressed)+300)
	copy(buf[32:], compressed)

	r, err := cursor.NewReader(buf)
	require.NoError(t, err)
	r.Pos = 32

	end, err := findBz2StreamEnd(r, uint32(len(buf)))
	require.NoError(t, err)
	assert.Equal(t, uint32(32+len(compressed)), end)

	// the located stream decompresses back to the payload
	out, err := bz2Decompress(buf[32:end])
	require.NoError(t, err)
	assert.Equal(t, payload, out)
}

func TestFindBz2StreamEndTightWindow(t *testing.T) {
	// maxEnd exactly at the stream end: the backward window walk must not
	// step before the stream start
	payload := []byte("short")
	compressed, err := bz2Compress(payload)
	require.NoError(t, err)

	buf := make([]byte, 8+len(compressed))
	copy(buf[8:], compressed)

	r, err := cursor.NewReader(buf)
	require.NoError(t, err)
	r.Pos = 8

	end, err := findBz2StreamEnd(r, uint32(len(buf)))
	require.NoError(t, err)
	assert.Equal(t, uint32(len(buf)), end)
}

// placeFooterAtBit writes the 6-byte footer magic into buf so that its
// first (most significant) bit lands at bit index startBit (7 = MSB) of
// buf[startByte], mirroring how BZip2 bit-packs its stream.
func placeFooterAtBit(buf []byte, startByte, startBit int) {
	bit := startByte*8 + (7 - startBit)
	for i := 0; i < len(bz2FooterMagic)*8; i++ {
		magicBit := bz2FooterMagic[i/8]&(1<<(7-i%8)) != 0
		if magicBit {
			buf[bit/8] |= 1 << (7 - bit%8)
		}
		bit++
	}
}

func TestFindBz2FooterBitLevel(t *testing.T) {
	// byte-aligned footer: footer occupies bytes 6..11 of the window; the
	// stream end is the match position + 10 bytes with no padding byte
	buf := make([]byte, 64)
	placeFooterAtBit(buf, 48+6, 7)
	// trailing nonzero so the backward scan stops at the window end
	buf[63] = 0x01

	r, err := cursor.NewReader(buf)
	require.NoError(t, err)
	end, err := findBz2Footer(r, 64)
	require.NoError(t, err)
	assert.Equal(t, uint32(48+6+10), end)

	// footer starting mid-byte: one extra byte of bit padding
	buf = make([]byte, 64)
	placeFooterAtBit(buf, 48+6, 3)
	buf[63] = 0x01

	r, err = cursor.NewReader(buf)
	require.NoError(t, err)
	end, err = findBz2Footer(r, 64)
	require.NoError(t, err)
	assert.Equal(t, uint32(48+6+10+1), end)
}

func TestFindBz2FooterNotFound(t *testing.T) {
	buf := make([]byte, 32)
	for i := range buf {
		buf[i] = 0xAA
	}
	r, err := cursor.NewReader(buf)
	require.NoError(t, err)

	_, err = findBz2Footer(r, 32)
	assert.ErrorIs(t, err, ErrFooterNotFound)
}
