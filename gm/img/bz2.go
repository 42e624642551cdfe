package img

import (
	"bytes"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"

	dbzip2 "github.com/dsnet/compress/bzip2"

	"github.com/gmcore/gmdata/gm/cursor"
)

// ErrFooterNotFound reports that the bit-level scan could not locate the
// BZip2 footer magic near the end of the candidate stream.
var ErrFooterNotFound = errors.New("failed to find BZip2 footer magic")

// bz2FooterMagic is the six-byte end-of-stream marker. BZip2 is bit-packed,
// so the footer is generally not byte-aligned in the stream.
var bz2FooterMagic = [6]byte{0x17, 0x72, 0x45, 0x38, 0x50, 0x90}

// findBz2StreamEnd locates the end of the BZip2 stream beginning at the
// reader's position. The stream carries no length, so the scan walks
// backward from maxEnd in 256-byte windows to the last nonzero byte, then
// hands over to the bit-level footer search.
func findBz2StreamEnd(r *cursor.Reader, maxEnd uint32) (uint32, error) {
	const window = 256

	streamStart := r.Pos
	chunkStart := streamStart
	if maxEnd > window && maxEnd-window > streamStart {
		chunkStart = maxEnd - window
	}
	chunkSize := maxEnd - chunkStart

	for {
		r.Pos = chunkStart
		data, err := r.Bytes(chunkSize)
		if err != nil {
			return 0, fmt.Errorf("reading BZip2 stream chunk: %w", err)
		}

		// Last nonzero byte in this window.
		pos := int64(chunkSize) - 1
		for pos >= 0 && data[pos] == 0 {
			pos--
		}
		if pos >= 0 {
			return findBz2Footer(r, chunkStart+uint32(pos)+1)
		}

		if chunkStart <= streamStart {
			return 0, errors.New("failed to find nonzero data while trying to find end of bz2 stream")
		}
		if chunkStart < streamStart+window {
			chunkStart = streamStart
		} else {
			chunkStart -= window
		}
	}
}

// findBz2Footer performs the bit-level search for the footer magic in the
// sixteen bytes preceding endDataPos. The magic is compared MSB-first within
// each source byte and LSB-first across the footer bytes. On a match, the
// end of stream is the match position plus ten bytes, plus one more when
// the footer started mid-byte: the final byte's unused bits are padding.
func findBz2Footer(r *cursor.Reader, endDataPos uint32) (uint32, error) {
	const bufLen = 16

	if endDataPos < bufLen {
		return 0, errors.New("start position out of bounds while searching for end of BZip2 stream")
	}
	startPos := endDataPos - bufLen
	r.Pos = startPos
	data, err := r.Bytes(bufLen)
	if err != nil {
		return 0, fmt.Errorf("reading BZip2 stream data: %w", err)
	}

	searchStartPos := int64(bufLen) - 1
	searchStartBit := uint8(0)

	for searchStartPos >= 0 {
		found := false
		bitPos := searchStartBit
		searchPos := searchStartPos
		magicBitPos := 0
		magicPos := len(bz2FooterMagic) - 1

		for searchPos >= 0 {
			currentBit := data[searchPos]&(1<<bitPos) != 0
			magicBit := bz2FooterMagic[magicPos]&(1<<magicBitPos) != 0
			if currentBit != magicBit {
				break
			}

			magicBitPos++
			if magicBitPos >= 8 {
				magicBitPos = 0
				magicPos--
			}
			if magicPos < 0 {
				found = true
				break
			}

			bitPos++
			if bitPos >= 8 {
				bitPos = 0
				searchPos--
			}
		}

		if found {
			const footerByteLength = 10
			end := uint32(searchPos) + footerByteLength
			if bitPos != 7 {
				// Footer started partway through a byte, so it also ends
				// partway through the last byte; the remaining bits of that
				// byte are padding.
				end++
			}
			return startPos + end, nil
		}

		searchStartBit++
		if searchStartBit >= 8 {
			searchStartBit = 0
			searchStartPos--
		}
	}

	return 0, ErrFooterNotFound
}

// bz2Decompress inflates a raw BZip2 stream.
func bz2Decompress(data []byte) ([]byte, error) {
	out, err := io.ReadAll(bzip2.NewReader(bytes.NewReader(data)))
	if err != nil {
		return nil, fmt.Errorf("decoding BZip2 stream: %w", err)
	}
	return out, nil
}

// bz2Compress deflates data into a BZip2 stream.
func bz2Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := dbzip2.NewWriter(&buf, &dbzip2.WriterConfig{Level: dbzip2.BestSpeed})
	if err != nil {
		return nil, fmt.Errorf("creating BZip2 writer: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("encoding BZip2 stream: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("closing BZip2 stream: %w", err)
	}
	return buf.Bytes(), nil
}
