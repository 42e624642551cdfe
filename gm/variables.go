package gm

import (
	"fmt"
)

// VARI declares every variable with the absolute offset of its first
// occurrence in the instruction stream. The decoder walks the occurrence
// chain up front so the instruction pass can consume link words opaquely
// against a position → ref map; it never walks the chain again.

const (
	// occurrenceOffsetMask masks the link-word field holding either the
	// relative forward offset or, at the last occurrence, the name string
	// index. The high five bits carry the variable kind.
	occurrenceOffsetMask = 0x07FFFFFF
)

func (dec *decoder) variables() error {
	if err := dec.enter(chunkVARI); err != nil {
		return err
	}
	r := dec.r
	b15 := dec.data.BytecodeVersion >= 15

	var err error
	if b15 {
		if dec.data.VarCount1, err = r.U32(); err != nil {
			return fmt.Errorf("reading VARI header: %w", err)
		}
		if dec.data.VarCount2, err = r.U32(); err != nil {
			return fmt.Errorf("reading VARI header: %w", err)
		}
		if dec.data.MaxLocalVarCount, err = r.U32(); err != nil {
			return fmt.Errorf("reading VARI header: %w", err)
		}
	}

	entrySize := uint32(12)
	if b15 {
		entrySize = 20
	}

	type pending struct {
		count uint32
		first int32
	}
	var chains []pending

	for r.Pos+entrySize <= r.ChunkEnd {
		var v Variable
		if v.Name, err = dec.gmString(); err != nil {
			return fmt.Errorf("reading variable #%d name: %w", len(dec.data.Variables), err)
		}
		if b15 {
			var b VariableB15
			if b.InstanceType, err = r.I32(); err != nil {
				return err
			}
			if b.VarID, err = r.I32(); err != nil {
				return err
			}
			v.B15 = &b
		}
		count, err := r.U32()
		if err != nil {
			return err
		}
		first, err := r.I32()
		if err != nil {
			return err
		}
		chains = append(chains, pending{count: count, first: first})
		dec.data.Variables = append(dec.data.Variables, v)
	}
	if err := dec.finish(chunkVARI); err != nil {
		return err
	}

	// Chain walk: link words live inside CODE, so widen the window there.
	code, err := dec.dir.Require(chunkCODE)
	if err != nil {
		return err
	}
	r.SetChunk(code.Start, code.End)
	for i, p := range chains {
		if p.count == 0 {
			continue
		}
		ref := MakeRef[Variable](uint32(i))
		v := &dec.data.Variables[i]
		pos := uint32(p.first)
		for n := uint32(0); n < p.count; n++ {
			dec.varOcc.Put(pos+4, ref)
			v.Occurrences = append(v.Occurrences, pos)
			r.Pos = pos + 4
			link, err := r.U32()
			if err != nil {
				return fmt.Errorf("walking occurrence chain of variable #%d at position %d: %w", i, pos, err)
			}
			pos += link & occurrenceOffsetMask
		}
	}
	return nil
}

func (b *builder) writeVariables() error {
	w := b.w
	d := b.d
	if d.BytecodeVersion >= 15 {
		w.U32(d.VarCount1)
		w.U32(d.VarCount2)
		w.U32(d.MaxLocalVarCount)
	}
	for i := range d.Variables {
		v := &d.Variables[i]
		if err := b.writeStringRef(v.Name); err != nil {
			return fmt.Errorf("writing variable #%d name: %w", i, err)
		}
		if d.BytecodeVersion >= 15 {
			if v.B15 == nil {
				return fmt.Errorf("variable #%d has no bytecode 15 data in bytecode version %d", i, d.BytecodeVersion)
			}
			w.I32(v.B15.InstanceType)
			w.I32(v.B15.VarID)
		}
		occ := b.varOcc[i]
		w.U32(uint32(len(occ)))
		if len(occ) == 0 {
			w.I32(-1)
		} else {
			w.I32(int32(occ[0].pos))
		}
	}
	return nil
}

// occSite is one emitted variable occurrence: the instruction start
// position and the kind bits of that site.
type occSite struct {
	pos  uint32
	kind VariableKind
}

// writeVariableOccurrence emits the 32-bit link word of a variable
// occurrence and, when this is not the symbol's first occurrence, goes back
// and overwrites the previous occurrence's link with the relative forward
// offset. The kind bits written at an intermediate link are those of the
// older site.
func (b *builder) writeVariableOccurrence(ref Ref[Variable], instrPos uint32, kind VariableKind) error {
	if int(ref.Index) >= len(b.varOcc) {
		return &DanglingRefError{Kind: "variable", Index: ref.Index, Len: len(b.varOcc)}
	}
	v := &b.d.Variables[ref.Index]

	if occ := b.varOcc[ref.Index]; len(occ) > 0 {
		prev := occ[len(occ)-1]
		delta := int32(instrPos) - int32(prev.pos)
		full := delta&occurrenceOffsetMask | int32(uint32(prev.kind)&0xF8)<<24
		if err := b.w.OverwriteI32(full, prev.pos+4); err != nil {
			return err
		}
	}

	// Name string index: correct as-is for the last occurrence, otherwise
	// overwritten by the next one.
	b.w.U32(v.Name.Index&occurrenceOffsetMask | (uint32(kind)&0xF8)<<24)
	b.varOcc[ref.Index] = append(b.varOcc[ref.Index], occSite{pos: instrPos, kind: kind})
	return nil
}
