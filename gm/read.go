package gm

import (
	"fmt"

	"github.com/dolthub/swiss"

	"github.com/gmcore/gmdata/gm/chunk"
	"github.com/gmcore/gmdata/gm/cursor"
	"github.com/gmcore/gmdata/gm/version"
)

// Chunk tags the core decodes, aliased locally to keep call sites short.
var (
	chunkGEN8 = chunk.GEN8
	chunkSTRG = chunk.STRG
	chunkVARI = chunk.VARI
	chunkFUNC = chunk.FUNC
	chunkCODE = chunk.CODE
	chunkTXTR = chunk.TXTR
	chunkTPAG = chunk.TPAG
)

type decoder struct {
	r    *cursor.Reader
	dir  *chunk.Directory
	data *Data

	stringsByPos *swiss.Map[uint32, Ref[string]]
	varOcc       *swiss.Map[uint32, Ref[Variable]]
	funcOcc      *swiss.Map[uint32, Ref[Function]]
	itemOcc      *swiss.Map[uint32, Ref[PageItem]]
}

// Parse decodes a data.win buffer into a Data aggregate. Chunks are visited
// in dependency order: STRG first, then GEN8, the version scanner, VARI and
// FUNC before CODE, and TXTR before TPAG.
func Parse(buf []byte) (*Data, error) {
	r, err := cursor.NewReader(buf)
	if err != nil {
		return nil, err
	}
	dir, err := chunk.ParseForm(r)
	if err != nil {
		return nil, fmt.Errorf("parsing FORM envelope: %w", err)
	}

	data := &Data{
		dir:     dir,
		raw:     buf,
		tailPad: make(map[chunk.Tag]uint32),
	}
	data.BigEndian = r.BigEndian()

	dec := &decoder{
		r:            r,
		dir:          dir,
		data:         data,
		stringsByPos: swiss.NewMap[uint32, Ref[string]](64),
		varOcc:       swiss.NewMap[uint32, Ref[Variable]](64),
		funcOcc:      swiss.NewMap[uint32, Ref[Function]](64),
		itemOcc:      swiss.NewMap[uint32, Ref[PageItem]](64),
	}

	if err := dec.strings(); err != nil {
		return nil, fmt.Errorf("parsing chunk STRG: %w", err)
	}
	if err := dec.general(); err != nil {
		return nil, fmt.Errorf("parsing chunk GEN8: %w", err)
	}
	if data.BytecodeVersion < 14 || data.BytecodeVersion > 17 {
		return nil, &UnsupportedBytecodeError{Got: data.BytecodeVersion}
	}
	if m := data.General.RawVersion.Major; m != 1 && m != 2 && m < 2022 {
		return nil, &UnsupportedVersionError{Got: data.General.RawVersion.String()}
	}

	if err := dec.scanVersion(); err != nil {
		return nil, err
	}

	yyc, err := dec.checkYYC()
	if err != nil {
		return nil, err
	}
	data.YYC = yyc
	if !yyc {
		if err := dec.variables(); err != nil {
			return nil, fmt.Errorf("parsing chunk VARI: %w", err)
		}
		if err := dec.functions(); err != nil {
			return nil, fmt.Errorf("parsing chunk FUNC: %w", err)
		}
		if err := dec.codes(); err != nil {
			return nil, fmt.Errorf("parsing chunk CODE: %w", err)
		}
	}

	if dir.Has(chunkTXTR) {
		if err := dec.textures(); err != nil {
			return nil, fmt.Errorf("parsing chunk TXTR: %w", err)
		}
	}
	if dir.Has(chunkTPAG) {
		if !dir.Has(chunkTXTR) {
			return nil, &chunk.MissingChunkError{Tag: chunkTXTR}
		}
		if err := dec.pageItems(); err != nil {
			return nil, fmt.Errorf("parsing chunk TPAG: %w", err)
		}
	}

	return data, nil
}

// enter activates tag's chunk window, failing with MissingChunk when the
// prerequisite is absent.
func (dec *decoder) enter(tag chunk.Tag) error {
	rng, err := dec.dir.Require(tag)
	if err != nil {
		return err
	}
	dec.r.SetChunk(rng.Start, rng.End)
	return nil
}

// finish consumes trailing zero padding of the active chunk and remembers
// its width for re-emission.
func (dec *decoder) finish(tag chunk.Tag) error {
	r := dec.r
	rest := r.ChunkEnd - r.Pos
	for r.Pos < r.ChunkEnd {
		pos := r.Pos
		v, err := r.U8()
		if err != nil {
			return err
		}
		if v != 0 {
			return fmt.Errorf("chunk %s has %d unparsed trailing bytes: nonzero byte 0x%02X at position %d",
				tag, rest, v, pos)
		}
	}
	dec.data.tailPad[tag] = rest
	return nil
}

// checkYYC reports YoYo-Compiler output: an absent CODE chunk in any
// version, or empty CODE/VARI/FUNC chunks below bytecode 17.
func (dec *decoder) checkYYC() (bool, error) {
	code, ok := dec.dir.Get(chunkCODE)
	if !ok {
		return true, nil
	}
	vari, ok := dec.dir.Get(chunkVARI)
	if !ok {
		return false, &chunk.MissingChunkError{Tag: chunkVARI}
	}
	fn, ok := dec.dir.Get(chunkFUNC)
	if !ok {
		return false, &chunk.MissingChunkError{Tag: chunkFUNC}
	}

	if code.Len() > 0 {
		return false, nil
	}
	if dec.data.BytecodeVersion > 16 {
		return false, fmt.Errorf("empty but existent CODE chunk in bytecode version %d", dec.data.BytecodeVersion)
	}
	if vari.Len() > 0 {
		return false, fmt.Errorf("chunk CODE is empty but VARI is not")
	}
	if fn.Len() > 0 {
		return false, fmt.Errorf("chunk CODE and VARI are empty but FUNC is not")
	}
	return true, nil
}

// scanVersion raises the detected version from chunk evidence. Raises are
// monotone: the scanner can only move the version forward from the GEN8
// stub, never backward.
func (dec *decoder) scanVersion() error {
	d := dec.data

	byPresence := []struct {
		tag chunk.Tag
		req version.Req
	}{
		{chunk.SEQN, version.V(2, 3)},
		{chunk.FEDS, version.V(2, 3, 6)},
		{chunk.FEAT, version.V(2022, 8)},
		{chunk.PSEM, version.V(2023, 2)},
		{chunk.UILR, version.V(2024, 13)},
	}
	for _, p := range byPresence {
		if dec.dir.Has(p.tag) {
			d.Version.Raise(p.req)
		}
	}

	// TXTR entry stride pins down the 2.0.6 / 2022.3 / 2022.9 field
	// additions when at least two entries exist.
	rng, ok := dec.dir.Get(chunkTXTR)
	if !ok {
		return nil
	}
	r := dec.r
	r.SetChunk(rng.Start, rng.End)
	count, err := r.U32()
	if err != nil {
		return fmt.Errorf("scanning chunk TXTR: %w", err)
	}
	if count < 2 {
		return nil
	}
	first, err := r.U32()
	if err != nil {
		return fmt.Errorf("scanning chunk TXTR: %w", err)
	}
	second, err := r.U32()
	if err != nil {
		return fmt.Errorf("scanning chunk TXTR: %w", err)
	}
	switch second - first {
	case 12:
		d.Version.Raise(version.V(2, 0, 6))
	case 16:
		d.Version.Raise(version.V(2022, 3))
	case 28:
		d.Version.Raise(version.V(2022, 9))
	}
	return nil
}

