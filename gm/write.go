package gm

import (
	"bytes"
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/gmcore/gmdata/gm/chunk"
	"github.com/gmcore/gmdata/gm/cursor"
)

// Pointer-placeholder handles. Each kind of target gets its own type so
// handles never collide across pools.
type (
	strEntryHandle uint32 // STRG pointer-list target: the length field
	strCharsHandle uint32 // string references: the character data
	codeHandle     uint32
	texPageHandle  uint32
	texDataHandle  uint32
	pageItemHandle uint32
)

// An UnknownChunkOrderError reports a chunk layout the encoder cannot
// serialize, such as VARI or FUNC preceding CODE.
type UnknownChunkOrderError struct {
	Tag chunk.Tag
}

func (e *UnknownChunkOrderError) Error() string {
	return fmt.Sprintf("chunk %s appears before the chunk its serialization depends on", e.Tag)
}

type builder struct {
	w *cursor.Writer
	d *Data

	// Per-symbol occurrence sites accumulated while serializing CODE, where
	// each appended site back-patches the previous site's chain link. The
	// VARI/FUNC serializers then read them for each symbol's count and
	// first position.
	varOcc  [][]occSite
	funcOcc [][]uint32
}

// Write re-encodes the aggregate to bytes. Chunks are emitted in the
// original file order; chunks outside the core's scope are reproduced
// verbatim. For an unmodified aggregate the output is byte-identical to the
// parsed input.
func (d *Data) Write() ([]byte, error) {
	if d.dir == nil {
		return nil, fmt.Errorf("data was not produced by Parse: no chunk directory")
	}

	w := cursor.NewWriter()
	if d.BigEndian {
		w.SetBigEndian()
	}
	b := &builder{
		w:       w,
		d:       d,
		varOcc:  make([][]occSite, len(d.Variables)),
		funcOcc: make([][]uint32, len(d.Functions)),
	}

	// CODE must serialize before VARI and FUNC so the occurrence vectors
	// are complete; the standard chunk order guarantees it.
	if d.dir.Has(chunkCODE) && !d.YYC {
		order := d.dir.Order()
		codeIdx := slices.Index(order, chunkCODE)
		for _, tag := range []chunk.Tag{chunkVARI, chunkFUNC} {
			if i := slices.Index(order, tag); i >= 0 && i < codeIdx {
				return nil, &UnknownChunkOrderError{Tag: tag}
			}
		}
	}

	w.WriteBytes([]byte(chunk.FORM.String()))
	totalPos := w.Len()
	w.U32(0)

	for _, tag := range d.dir.Order() {
		w.WriteBytes(tag[:])
		lengthPos := w.Len()
		w.U32(0)
		start := w.Len()

		var err error
		switch tag {
		case chunkGEN8:
			err = b.writeGeneral()
		case chunkSTRG:
			err = b.writeStrings()
		case chunkVARI:
			if !d.YYC {
				err = b.writeVariables()
			}
		case chunkFUNC:
			if !d.YYC {
				err = b.writeFunctions()
			}
		case chunkCODE:
			if !d.YYC {
				err = b.writeCodes()
			}
		case chunkTXTR:
			err = b.writeTextures()
		case chunkTPAG:
			err = b.writePageItems()
		default:
			rng, _ := d.dir.Get(tag)
			w.WriteBytes(d.raw[rng.Start:rng.End])
		}
		if err != nil {
			return nil, fmt.Errorf("serializing chunk %s: %w", tag, err)
		}

		// Observed trailing padding first, then the inter-chunk width for
		// anything the caller grew or shrank. The last chunk is not padded.
		for i := uint32(0); i < d.tailPad[tag]; i++ {
			w.U8(0)
		}
		if tag != d.dir.Last {
			w.Align(d.dir.Padding)
		}
		if err := w.OverwriteU32(w.Len()-start, lengthPos); err != nil {
			return nil, err
		}
	}

	if err := w.OverwriteU32(w.Len()-8, totalPos); err != nil {
		return nil, err
	}
	if n := w.Unresolved(); n != 0 {
		return nil, fmt.Errorf("%d pointer placeholders left unresolved after serialization", n)
	}
	return w.Bytes(), nil
}

// RoundTrips reports whether re-encoding the aggregate reproduces the
// buffer it was parsed from, returning the first differing offset if not.
func (d *Data) RoundTrips() (bool, int, error) {
	out, err := d.Write()
	if err != nil {
		return false, 0, err
	}
	if bytes.Equal(out, d.raw) {
		return true, 0, nil
	}
	n := len(out)
	if len(d.raw) < n {
		n = len(d.raw)
	}
	for i := 0; i < n; i++ {
		if out[i] != d.raw[i] {
			return false, i, nil
		}
	}
	return false, n, nil
}
