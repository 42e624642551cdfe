package gm

import (
	"fmt"
)

// TPAG is a pointer list of texture page items: rectangles on a texture
// page. Later chunks reference items by pointer, so the decoder publishes a
// position → ref map the way VARI/FUNC do for symbols.

func (dec *decoder) pageItems() error {
	if err := dec.enter(chunkTPAG); err != nil {
		return err
	}
	r := dec.r
	d := dec.data

	count, err := r.U32()
	if err != nil {
		return fmt.Errorf("reading texture page item count: %w", err)
	}
	pointers := make([]uint32, count)
	for i := range pointers {
		if pointers[i], err = r.U32(); err != nil {
			return fmt.Errorf("reading texture page item pointer #%d: %w", i, err)
		}
	}

	d.PageItems = make([]PageItem, 0, count)
	for i, ptr := range pointers {
		if err := r.AssertPos(ptr, "Texture page item"); err != nil {
			return err
		}
		var item PageItem
		fields := []*uint16{
			&item.SourceX, &item.SourceY, &item.SourceWidth, &item.SourceHeight,
			&item.TargetX, &item.TargetY, &item.TargetWidth, &item.TargetHeight,
			&item.BoundingWidth, &item.BoundingHeight,
		}
		for _, f := range fields {
			if *f, err = r.U16(); err != nil {
				return fmt.Errorf("parsing texture page item #%d at position %d: %w", i, ptr, err)
			}
		}
		pageID, err := r.U16()
		if err != nil {
			return fmt.Errorf("parsing texture page item #%d at position %d: %w", i, ptr, err)
		}
		if int(pageID) >= len(d.TexturePages) {
			return &DanglingRefError{Kind: "texture page", Index: uint32(pageID), Len: len(d.TexturePages)}
		}
		item.TexturePage = MakeRef[TexturePage](uint32(pageID))

		dec.itemOcc.Put(ptr, MakeRef[PageItem](uint32(i)))
		d.PageItems = append(d.PageItems, item)
	}
	d.itemsByPos = dec.itemOcc
	return dec.finish(chunkTPAG)
}

// PageItemAt resolves an absolute TPAG pointer, for decoders of chunks
// outside the core that reference texture page items.
func (d *Data) PageItemAt(pos uint32) (Ref[PageItem], bool) {
	if d.itemsByPos == nil {
		return Ref[PageItem]{}, false
	}
	return d.itemsByPos.Get(pos)
}

func (b *builder) writePageItems() error {
	w := b.w
	d := b.d

	w.U32(uint32(len(d.PageItems)))
	for i := range d.PageItems {
		w.WritePointer(pageItemHandle(i))
	}
	for i := range d.PageItems {
		item := &d.PageItems[i]
		if err := w.ResolvePointer(pageItemHandle(i)); err != nil {
			return err
		}
		if int(item.TexturePage.Index) >= len(d.TexturePages) {
			return &DanglingRefError{Kind: "texture page", Index: item.TexturePage.Index, Len: len(d.TexturePages)}
		}
		for _, v := range []uint16{
			item.SourceX, item.SourceY, item.SourceWidth, item.SourceHeight,
			item.TargetX, item.TargetY, item.TargetWidth, item.TargetHeight,
			item.BoundingWidth, item.BoundingHeight, uint16(item.TexturePage.Index),
		} {
			w.U16(v)
		}
	}
	return nil
}
