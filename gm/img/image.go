// Package img identifies, parses, and re-emits texture page payloads: raw
// PNG, the little-endian QOIF variant, and BZip2-wrapped QOI. Stored
// payloads round-trip verbatim; images decoded to pixels re-encode to PNG.
package img

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/gmcore/gmdata/gm/cursor"
	"github.com/gmcore/gmdata/gm/version"
)

var (
	magicPNG    = [8]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	magicBz2Qoi = [4]byte{'2', 'z', 'o', 'q'}
	magicQoi    = [4]byte{'f', 'i', 'o', 'q'}
)

// A HeaderError reports a texture payload whose first bytes match no known
// image format.
type HeaderError struct {
	Bytes [8]byte
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("invalid image header [% X]", e.Bytes[:])
}

// A LengthMismatchError reports disagreement between the texture block size
// recorded in the TXTR entry and the payload length actually parsed.
type LengthMismatchError struct {
	Expected, Actual uint32
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("texture page entry specified texture block size %d; actually read image with length %d",
		e.Expected, e.Actual)
}

// Bz2QoiHeader is the 8-byte (12 from 2022.5 on) header in front of a
// BZip2-wrapped QOI payload.
type Bz2QoiHeader struct {
	Width, Height uint16

	// UncompressedSize of the wrapped QOI stream; present from 2022.5.
	UncompressedSize uint32
	HasSize          bool
}

// An Image is one texture page payload. Exactly one of the concrete types
// below implements it.
type Image interface {
	isImage()
}

// PNG is a verbatim PNG payload.
type PNG struct {
	Data []byte
}

// Qoi is a verbatim little-endian QOIF payload, header included.
type Qoi struct {
	Data []byte
}

// Bz2Qoi is a BZip2-compressed QOI payload. Data holds the raw BZip2 stream
// without the wrapper header.
type Bz2Qoi struct {
	Data   []byte
	Header Bz2QoiHeader
}

// Decoded is a pixel buffer produced by decoding one of the stored formats
// or supplied by the caller. It re-encodes to PNG on write.
type Decoded struct {
	Pixels *image.RGBA
}

// Deferred marks a payload whose chunk-directory position is known but whose
// bytes have not been parsed yet. It exists only between the TXTR entry pass
// and the payload pass.
type Deferred struct {
	Pos uint32
}

func (PNG) isImage()      {}
func (Qoi) isImage()      {}
func (Bz2Qoi) isImage()   {}
func (Decoded) isImage()  {}
func (Deferred) isImage() {}

// Read parses one texture payload at the reader's position. Payloads are
// aligned to 128 bytes; maxEnd is the first position the payload cannot
// reach (the next texture's start, or the chunk end). blockSize, when
// non-nil, is the chunk-level texture block size to cross-check against.
func Read(r *cursor.Reader, maxEnd uint32, blockSize *uint32, ver version.Version) (Image, error) {
	if err := r.Align(0x80); err != nil {
		return nil, err
	}
	var header [8]byte
	hb, err := r.Bytes(8)
	if err != nil {
		return nil, fmt.Errorf("reading image header: %w", err)
	}
	copy(header[:], hb)

	var (
		img    Image
		length uint32
	)
	switch {
	case header == magicPNG:
		img, length, err = readPNG(r)
	case [4]byte(header[:4]) == magicBz2Qoi:
		img, length, err = readBz2Qoi(r, header, maxEnd, ver)
	case [4]byte(header[:4]) == magicQoi:
		img, length, err = readQoi(r)
	default:
		return nil, &HeaderError{Bytes: header}
	}
	if err != nil {
		return nil, err
	}

	if blockSize != nil && *blockSize != length {
		return nil, &LengthMismatchError{Expected: *blockSize, Actual: length}
	}
	return img, nil
}

// readPNG walks PNG chunks until IEND and captures the whole payload
// verbatim. The reader is positioned just past the 8-byte magic.
func readPNG(r *cursor.Reader) (Image, uint32, error) {
	start := r.Pos - 8
	for {
		lb, err := r.Bytes(4)
		if err != nil {
			return nil, 0, fmt.Errorf("reading PNG chunk length: %w", err)
		}
		// PNG chunk lengths are big-endian regardless of file endianness.
		length := uint32(lb[0])<<24 | uint32(lb[1])<<16 | uint32(lb[2])<<8 | uint32(lb[3])
		tb, err := r.Bytes(4)
		if err != nil {
			return nil, 0, fmt.Errorf("reading PNG chunk type: %w", err)
		}
		isEnd := bytes.Equal(tb, []byte("IEND"))
		if _, err := r.Bytes(length + 4); err != nil {
			return nil, 0, fmt.Errorf("skipping PNG chunk payload: %w", err)
		}
		if isEnd {
			break
		}
	}

	length := r.Pos - start
	r.Pos = start
	data, err := r.Bytes(length)
	if err != nil {
		return nil, 0, fmt.Errorf("reading PNG image data: %w", err)
	}
	return PNG{Data: append([]byte(nil), data...)}, length, nil
}

// readBz2Qoi parses a BZip2-wrapped QOI payload. The stream carries no
// length prefix, so its end is located by the footer scan in bz2.go.
func readBz2Qoi(r *cursor.Reader, header [8]byte, maxEnd uint32, ver version.Version) (Image, uint32, error) {
	start := r.Pos - 8
	headerSize := uint32(8)
	var h Bz2QoiHeader
	if ver.AtLeast(version.V(2022, 5)) {
		size, err := r.U32()
		if err != nil {
			return nil, 0, fmt.Errorf("reading BZip2 QOI uncompressed size: %w", err)
		}
		h.UncompressedSize = size
		h.HasSize = true
		headerSize = 12
	}

	streamEnd, err := findBz2StreamEnd(r, maxEnd)
	if err != nil {
		return nil, 0, err
	}
	streamLen := streamEnd - start - headerSize

	r.Pos = start + headerSize
	data, err := r.Bytes(streamLen)
	if err != nil {
		return nil, 0, fmt.Errorf("reading BZip2 stream of BZip2 QOI image: %w", err)
	}

	if r.BigEndian() {
		h.Width = uint16(header[4])<<8 | uint16(header[5])
		h.Height = uint16(header[6])<<8 | uint16(header[7])
	} else {
		h.Width = uint16(header[4]) | uint16(header[5])<<8
		h.Height = uint16(header[6]) | uint16(header[7])<<8
	}
	return Bz2Qoi{Data: append([]byte(nil), data...), Header: h}, streamLen + headerSize, nil
}

// readQoi parses a raw QOI payload: the 12-byte header carries the data
// length at bytes 8..12.
func readQoi(r *cursor.Reader) (Image, uint32, error) {
	start := r.Pos - 8
	length, err := r.U32()
	if err != nil {
		return nil, 0, fmt.Errorf("reading QOI data length: %w", err)
	}
	r.Pos = start
	data, err := r.Bytes(length + 12)
	if err != nil {
		return nil, 0, fmt.Errorf("reading QOI image data: %w", err)
	}
	return Qoi{Data: append([]byte(nil), data...)}, length + 12, nil
}

// Write re-emits an image as its stored representation. Decoded pixel
// buffers become PNG. The Bz2Qoi header is rebuilt from its fields, with
// the uncompressed size gated on 2022.5.
func Write(w *cursor.Writer, img Image, ver version.Version) error {
	switch img := img.(type) {
	case PNG:
		w.WriteBytes(img.Data)
	case Qoi:
		w.WriteBytes(img.Data)
	case Bz2Qoi:
		w.WriteBytes(magicBz2Qoi[:])
		w.U16(img.Header.Width)
		w.U16(img.Header.Height)
		if ver.AtLeast(version.V(2022, 5)) {
			w.U32(img.Header.UncompressedSize)
		}
		w.WriteBytes(img.Data)
	case Decoded:
		var buf bytes.Buffer
		if err := png.Encode(&buf, img.Pixels); err != nil {
			return fmt.Errorf("encoding PNG image data: %w", err)
		}
		w.WriteBytes(buf.Bytes())
	case Deferred:
		return fmt.Errorf("image at position %d was never deserialized", img.Pos)
	default:
		return fmt.Errorf("unsupported image representation %T", img)
	}
	return nil
}

// Pixels decodes any stored representation to an RGBA pixel buffer.
func Pixels(im Image) (*image.RGBA, error) {
	switch im := im.(type) {
	case Decoded:
		return im.Pixels, nil
	case PNG:
		src, err := png.Decode(bytes.NewReader(im.Data))
		if err != nil {
			return nil, fmt.Errorf("decoding PNG: %w", err)
		}
		return toRGBA(src), nil
	case Qoi:
		return DecodeQoi(im.Data)
	case Bz2Qoi:
		qoi, err := bz2Decompress(im.Data)
		if err != nil {
			return nil, err
		}
		return DecodeQoi(qoi)
	case Deferred:
		return nil, fmt.Errorf("image at position %d was never deserialized", im.Pos)
	}
	return nil, fmt.Errorf("unsupported image representation %T", im)
}

// Recompress converts a decoded pixel buffer into a BZip2-wrapped QOI
// payload, rebuilding the wrapper header from the actual dimensions.
func Recompress(d Decoded) (Bz2Qoi, error) {
	qoi := EncodeQoi(d.Pixels)
	compressed, err := bz2Compress(qoi)
	if err != nil {
		return Bz2Qoi{}, err
	}
	bounds := d.Pixels.Bounds()
	return Bz2Qoi{
		Data: compressed,
		Header: Bz2QoiHeader{
			Width:            uint16(bounds.Dx()),
			Height:           uint16(bounds.Dy()),
			UncompressedSize: uint32(len(qoi)),
			HasSize:          true,
		},
	}, nil
}

func toRGBA(src image.Image) *image.RGBA {
	if rgba, ok := src.(*image.RGBA); ok {
		return rgba
	}
	bounds := src.Bounds()
	dst := image.NewRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			dst.Set(x, y, src.At(x, y))
		}
	}
	return dst
}
