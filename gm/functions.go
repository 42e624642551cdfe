package gm

import (
	"fmt"
)

// FUNC declares functions the same way VARI declares variables, without the
// kind bits in the link words. From bytecode 15 on, the chunk also carries
// the per-script locals section.

func (dec *decoder) functions() error {
	if err := dec.enter(chunkFUNC); err != nil {
		return err
	}
	r := dec.r
	b15 := dec.data.BytecodeVersion >= 15

	type pending struct {
		count uint32
		first int32
	}
	var chains []pending

	readEntry := func() error {
		var fn Function
		var err error
		if fn.Name, err = dec.gmString(); err != nil {
			return fmt.Errorf("reading function #%d name: %w", len(dec.data.Functions), err)
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
		dec.data.Functions = append(dec.data.Functions, fn)
		return nil
	}

	if b15 {
		count, err := r.U32()
		if err != nil {
			return fmt.Errorf("reading function count: %w", err)
		}
		for i := uint32(0); i < count; i++ {
			if err := readEntry(); err != nil {
				return err
			}
		}
		if err := dec.codeLocals(); err != nil {
			return err
		}
	} else {
		for r.Pos+12 <= r.ChunkEnd {
			if err := readEntry(); err != nil {
				return err
			}
		}
	}
	if err := dec.finish(chunkFUNC); err != nil {
		return err
	}

	code, err := dec.dir.Require(chunkCODE)
	if err != nil {
		return err
	}
	r.SetChunk(code.Start, code.End)
	for i, p := range chains {
		if p.count == 0 {
			continue
		}
		ref := MakeRef[Function](uint32(i))
		fn := &dec.data.Functions[i]
		pos := uint32(p.first)
		for n := uint32(0); n < p.count; n++ {
			dec.funcOcc.Put(pos+4, ref)
			fn.Occurrences = append(fn.Occurrences, pos)
			r.Pos = pos + 4
			link, err := r.U32()
			if err != nil {
				return fmt.Errorf("walking occurrence chain of function #%d at position %d: %w", i, pos, err)
			}
			pos += link & occurrenceOffsetMask
		}
	}
	return nil
}

func (dec *decoder) codeLocals() error {
	r := dec.r
	count, err := r.U32()
	if err != nil {
		return fmt.Errorf("reading code locals count: %w", err)
	}
	dec.data.CodeLocals = make([]CodeLocals, 0, count)
	for i := uint32(0); i < count; i++ {
		var cl CodeLocals
		localsCount, err := r.U32()
		if err != nil {
			return err
		}
		if cl.Name, err = dec.gmString(); err != nil {
			return fmt.Errorf("reading code locals #%d name: %w", i, err)
		}
		cl.Locals = make([]CodeLocal, localsCount)
		for j := range cl.Locals {
			if cl.Locals[j].Index, err = r.U32(); err != nil {
				return err
			}
			if cl.Locals[j].Name, err = dec.gmString(); err != nil {
				return fmt.Errorf("reading local #%d of code locals #%d: %w", j, i, err)
			}
		}
		dec.data.CodeLocals = append(dec.data.CodeLocals, cl)
	}
	return nil
}

func (b *builder) writeFunctions() error {
	w := b.w
	d := b.d
	b15 := d.BytecodeVersion >= 15

	if b15 {
		w.U32(uint32(len(d.Functions)))
	}
	for i := range d.Functions {
		fn := &d.Functions[i]
		if err := b.writeStringRef(fn.Name); err != nil {
			return fmt.Errorf("writing function #%d name: %w", i, err)
		}
		occ := b.funcOcc[i]
		w.U32(uint32(len(occ)))
		if len(occ) == 0 {
			w.I32(-1)
		} else {
			w.I32(int32(occ[0]))
		}
	}

	if b15 {
		w.U32(uint32(len(d.CodeLocals)))
		for i := range d.CodeLocals {
			cl := &d.CodeLocals[i]
			w.U32(uint32(len(cl.Locals)))
			if err := b.writeStringRef(cl.Name); err != nil {
				return fmt.Errorf("writing code locals #%d name: %w", i, err)
			}
			for j := range cl.Locals {
				w.U32(cl.Locals[j].Index)
				if err := b.writeStringRef(cl.Locals[j].Name); err != nil {
					return fmt.Errorf("writing local #%d of code locals #%d: %w", j, i, err)
				}
			}
		}
	}
	return nil
}

// writeFunctionOccurrence mirrors writeVariableOccurrence without kind bits.
func (b *builder) writeFunctionOccurrence(ref Ref[Function], instrPos uint32) error {
	if int(ref.Index) >= len(b.funcOcc) {
		return &DanglingRefError{Kind: "function", Index: ref.Index, Len: len(b.funcOcc)}
	}
	fn := &b.d.Functions[ref.Index]

	if occ := b.funcOcc[ref.Index]; len(occ) > 0 {
		prev := occ[len(occ)-1]
		delta := int32(instrPos) - int32(prev)
		if err := b.w.OverwriteI32(delta&occurrenceOffsetMask, prev+4); err != nil {
			return err
		}
	}

	b.w.U32(fn.Name.Index & occurrenceOffsetMask)
	b.funcOcc[ref.Index] = append(b.funcOcc[ref.Index], instrPos)
	return nil
}
