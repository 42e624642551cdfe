package gm

import (
	"fmt"
)

// STRG is a pointer list of length-prefixed, NUL-terminated UTF-8 strings.
// The pointer list targets the length field; references elsewhere in the
// file point four bytes further, at the character data, so the decoder
// publishes a char-position → ref map for every later chunk.

func (dec *decoder) strings() error {
	if err := dec.enter(chunkSTRG); err != nil {
		return err
	}
	r := dec.r

	count, err := r.U32()
	if err != nil {
		return fmt.Errorf("reading string count: %w", err)
	}
	pointers := make([]uint32, count)
	for i := range pointers {
		if pointers[i], err = r.U32(); err != nil {
			return fmt.Errorf("reading string pointer #%d: %w", i, err)
		}
	}

	dec.data.Strings = make([]string, 0, count)
	for i, ptr := range pointers {
		if err := r.AssertPos(ptr, "String"); err != nil {
			return err
		}
		length, err := r.U32()
		if err != nil {
			return fmt.Errorf("reading string #%d length: %w", i, err)
		}
		s, err := r.StringUTF8(length)
		if err != nil {
			return fmt.Errorf("parsing string #%d at position %d: %w", i, ptr, err)
		}
		nul, err := r.U8()
		if err != nil {
			return fmt.Errorf("reading string #%d terminator: %w", i, err)
		}
		if nul != 0 {
			return fmt.Errorf("string #%d at position %d is not NUL-terminated (got 0x%02X)", i, ptr, nul)
		}
		dec.stringsByPos.Put(ptr+4, MakeRef[string](uint32(i)))
		dec.data.Strings = append(dec.data.Strings, s)
	}

	return dec.finish(chunkSTRG)
}

// gmString reads a 32-bit absolute pointer to character data and resolves
// it against the string table decoded from STRG.
func (dec *decoder) gmString() (Ref[string], error) {
	pos := dec.r.Pos
	ptr, err := dec.r.U32()
	if err != nil {
		return Ref[string]{}, err
	}
	ref, ok := dec.stringsByPos.Get(ptr)
	if !ok {
		return Ref[string]{}, fmt.Errorf("string pointer %d at position %d does not target a string entry", ptr, pos)
	}
	return ref, nil
}

func (b *builder) writeStrings() error {
	w := b.w
	w.U32(uint32(len(b.d.Strings)))
	for i := range b.d.Strings {
		w.WritePointer(strEntryHandle(i))
	}
	for i, s := range b.d.Strings {
		if err := w.ResolvePointer(strEntryHandle(i)); err != nil {
			return err
		}
		w.U32(uint32(len(s)))
		if err := w.ResolvePointer(strCharsHandle(i)); err != nil {
			return err
		}
		w.WriteBytes([]byte(s))
		w.U8(0)
	}
	return nil
}

// writeStringRef emits an absolute pointer to a string's character data.
func (b *builder) writeStringRef(r Ref[string]) error {
	if int(r.Index) >= len(b.d.Strings) {
		return &DanglingRefError{Kind: "string", Index: r.Index, Len: len(b.d.Strings)}
	}
	b.w.WritePointer(strCharsHandle(r.Index))
	return nil
}
