// Package chunk decodes the FORM envelope of a data.win file into a
// directory of chunk byte ranges and drives tag-level concerns: known tags,
// the last-chunk rule, and inter-chunk padding inference.
package chunk

import (
	"fmt"

	"github.com/gmcore/gmdata/gm/cursor"
)

// A Tag is a four-byte ASCII chunk identifier.
type Tag [4]byte

func MakeTag(s string) Tag {
	if len(s) != 4 {
		panic(fmt.Sprintf("chunk tag must be 4 bytes, got %q", s))
	}
	return Tag{s[0], s[1], s[2], s[3]}
}

func (t Tag) String() string { return string(t[:]) }

// Tags whose decode logic the core owns, plus the tags the version scanner
// inspects for presence.
var (
	FORM = MakeTag("FORM")
	GEN8 = MakeTag("GEN8")
	STRG = MakeTag("STRG")
	VARI = MakeTag("VARI")
	FUNC = MakeTag("FUNC")
	CODE = MakeTag("CODE")
	TXTR = MakeTag("TXTR")
	TPAG = MakeTag("TPAG")
	SEQN = MakeTag("SEQN")
	FEDS = MakeTag("FEDS")
	FEAT = MakeTag("FEAT")
	PSEM = MakeTag("PSEM")
	UILR = MakeTag("UILR")
)

// A Range is the inclusive-exclusive byte span [Start, End) of a chunk
// payload in absolute file offsets.
type Range struct {
	Start, End uint32
}

func (r Range) Len() uint32 { return r.End - r.Start }

// A MissingChunkError reports a prerequisite chunk that is absent when a
// dependent chunk is reached.
type MissingChunkError struct {
	Tag Tag
}

func (e *MissingChunkError) Error() string {
	return fmt.Sprintf("missing chunk %s", e.Tag)
}

// A Directory maps chunk tags to payload ranges. Unknown tags are retained
// so a file containing chunks from a newer GameMaker release still
// round-trips verbatim.
type Directory struct {
	ranges map[Tag]Range
	order  []Tag

	// Last is the final chunk in file order. It is exempt from inter-chunk
	// padding on write.
	Last Tag

	// Padding is the inferred inter-chunk padding width: 16 by default,
	// lowered to 4 or 1 on the first non-last chunk end that disproves it.
	Padding uint32
}

// ParseForm decodes FORM + totalLength + {tag, length, payload}* from r,
// which must be positioned at the start of the buffer. On return the
// reader's endianness is set for the rest of the decode: a total length that
// only matches the file size when byte-swapped flips the reader to
// big-endian.
func ParseForm(r *cursor.Reader) (*Directory, error) {
	var magic Tag
	b, err := r.Bytes(4)
	if err != nil {
		return nil, fmt.Errorf("reading FORM magic: %w", err)
	}
	copy(magic[:], b)
	if magic != FORM {
		return nil, fmt.Errorf("expected FORM magic, got %q", magic)
	}

	total, err := r.U32()
	if err != nil {
		return nil, fmt.Errorf("reading FORM total length: %w", err)
	}
	if 8+total != r.Size() {
		swapped := total<<24 | (total&0xFF00)<<8 | (total>>8)&0xFF00 | total>>24
		if 8+swapped != r.Size() {
			return nil, fmt.Errorf("FORM total length %d does not match file size %d", total, r.Size())
		}
		r.SetBigEndian()
		total = swapped
	}

	d := &Directory{
		ranges:  make(map[Tag]Range),
		Padding: 16,
	}

	end := 8 + total
	for r.Pos < end {
		var tag Tag
		b, err := r.Bytes(4)
		if err != nil {
			return nil, fmt.Errorf("reading chunk tag at position %d: %w", r.Pos, err)
		}
		copy(tag[:], b)
		length, err := r.U32()
		if err != nil {
			return nil, fmt.Errorf("reading %s chunk length: %w", tag, err)
		}
		start := r.Pos
		if start+length > end || start+length < start {
			return nil, fmt.Errorf("chunk %s with length %d at position %d exceeds FORM end %d", tag, length, start, end)
		}
		if _, dup := d.ranges[tag]; dup {
			return nil, fmt.Errorf("duplicate chunk %s at position %d", tag, start)
		}
		d.ranges[tag] = Range{Start: start, End: start + length}
		d.order = append(d.order, tag)
		d.Last = tag
		r.Pos = start + length
	}

	// Infer padding from non-last chunk boundaries: the serializer pads each
	// chunk so its successor starts aligned, so any unaligned boundary
	// disproves the current width.
	for _, tag := range d.order {
		if tag == d.Last {
			break
		}
		for d.Padding > 1 && d.ranges[tag].End%d.Padding != 0 {
			if d.Padding == 16 {
				d.Padding = 4
			} else {
				d.Padding = 1
			}
		}
	}

	return d, nil
}

// Get returns the payload range of tag.
func (d *Directory) Get(tag Tag) (Range, bool) {
	rng, ok := d.ranges[tag]
	return rng, ok
}

// Require returns the payload range of tag or a MissingChunkError.
func (d *Directory) Require(tag Tag) (Range, error) {
	rng, ok := d.ranges[tag]
	if !ok {
		return Range{}, &MissingChunkError{Tag: tag}
	}
	return rng, nil
}

// Has reports whether tag is present.
func (d *Directory) Has(tag Tag) bool {
	_, ok := d.ranges[tag]
	return ok
}

// Order returns the chunk tags in file order.
func (d *Directory) Order() []Tag { return d.order }
