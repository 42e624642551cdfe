package img

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rgba(w, h int, fill func(x, y int) color.RGBA) *image.RGBA {
	im := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			im.SetRGBA(x, y, fill(x, y))
		}
	}
	return im
}

func roundTripPixels(t *testing.T, src *image.RGBA) {
	t.Helper()
	encoded := EncodeQoi(src)
	decoded, err := DecodeQoi(encoded)
	require.NoError(t, err)
	assert.Equal(t, src.Bounds(), decoded.Bounds())
	assert.Equal(t, src.Pix, decoded.Pix)

	// encoder and decoder are exact inverses, so re-encoding the decoded
	// pixels reproduces the same bytes
	assert.Equal(t, encoded, EncodeQoi(decoded))
}

func TestQoiHeader(t *testing.T) {
	src := rgba(3, 2, func(x, y int) color.RGBA {
		return color.RGBA{R: uint8(x), G: uint8(y), B: 0, A: 255}
	})
	encoded := EncodeQoi(src)
	assert.Equal(t, byte('f'), encoded[0])
	assert.Equal(t, byte('i'), encoded[1])
	assert.Equal(t, byte('o'), encoded[2])
	assert.Equal(t, byte('q'), encoded[3])
	assert.Equal(t, byte(3), encoded[4]) // width u16 LE
	assert.Equal(t, byte(0), encoded[5])
	assert.Equal(t, byte(2), encoded[6]) // height u16 LE
	assert.Equal(t, byte(0), encoded[7])
}

func TestQoiRoundTripSolid(t *testing.T) {
	// long run of a single color exercises RUN_8 and RUN_16
	roundTripPixels(t, rgba(64, 64, func(x, y int) color.RGBA {
		return color.RGBA{R: 10, G: 20, B: 30, A: 255}
	}))
}

func TestQoiRoundTripSmallDiffs(t *testing.T) {
	// small positive deltas exercise DIFF_8 and DIFF_16
	roundTripPixels(t, rgba(16, 16, func(x, y int) color.RGBA {
		v := uint8(16*y + x)
		return color.RGBA{R: v, G: v / 2, B: v / 4, A: 255}
	}))
}

func TestQoiRoundTripAlpha(t *testing.T) {
	// alpha deltas exercise DIFF_24 and COLOR
	roundTripPixels(t, rgba(8, 8, func(x, y int) color.RGBA {
		return color.RGBA{R: uint8(x * 30), G: uint8(y * 30), B: uint8(x * y), A: uint8(255 - 8*x*y/2)}
	}))
}

func TestQoiRoundTripRepeats(t *testing.T) {
	// alternating colors exercise the rolling INDEX
	a := color.RGBA{R: 200, G: 100, B: 50, A: 255}
	b := color.RGBA{R: 5, G: 250, B: 128, A: 255}
	roundTripPixels(t, rgba(17, 9, func(x, y int) color.RGBA {
		if (x+y)%2 == 0 {
			return a
		}
		return b
	}))
}

func TestQoiRoundTripRandomish(t *testing.T) {
	// deterministic pseudo-noise hits every opcode family
	state := uint32(0x12345678)
	next := func() uint8 {
		state = state*1664525 + 1013904223
		return uint8(state >> 24)
	}
	roundTripPixels(t, rgba(31, 13, func(x, y int) color.RGBA {
		return color.RGBA{R: next(), G: next(), B: next(), A: next() | 1}
	}))
}

func TestQoiDecodeErrors(t *testing.T) {
	_, err := DecodeQoi([]byte("fioq"))
	assert.ErrorContains(t, err, "invalid QOI header")

	_, err = DecodeQoi([]byte("xxxx\x01\x00\x01\x00\x00\x00\x00\x00"))
	assert.ErrorContains(t, err, "invalid little-endian QOIF image magic")

	// declared length larger than the payload
	_, err = DecodeQoi([]byte("fioq\x01\x00\x01\x00\xFF\x00\x00\x00"))
	assert.ErrorContains(t, err, "invalid QOI data length")
}

func TestQoiDecodeRun(t *testing.T) {
	// COLOR with all channels, then RUN_8 of 3 more pixels
	payload := []byte{
		qoiColor | 0x0F, 9, 8, 7, 6,
		qoiRun8 | 2,
	}
	data := append([]byte("fioq\x04\x00\x01\x00"), byte(len(payload)), 0, 0, 0)
	data = append(data, payload...)

	decoded, err := DecodeQoi(data)
	require.NoError(t, err)
	want := []uint8{9, 8, 7, 6}
	for i := 0; i < 4; i++ {
		assert.Equal(t, want, []uint8(decoded.Pix[i*4:i*4+4]))
	}
}
