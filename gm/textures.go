package gm

import (
	"fmt"

	"github.com/gmcore/gmdata/gm/img"
	"github.com/gmcore/gmdata/gm/version"
)

// TXTR is a pointer list of texture page entries followed by the image
// payloads, 128-byte aligned. Payloads decode lazily: the entry pass
// records their positions, then a second pass parses each blob with the
// next blob's start (or the chunk end) bounding it.

func (dec *decoder) textures() error {
	if err := dec.enter(chunkTXTR); err != nil {
		return err
	}
	r := dec.r
	d := dec.data

	count, err := r.U32()
	if err != nil {
		return fmt.Errorf("reading texture page count: %w", err)
	}
	pointers := make([]uint32, count)
	for i := range pointers {
		if pointers[i], err = r.U32(); err != nil {
			return fmt.Errorf("reading texture page pointer #%d: %w", i, err)
		}
	}

	d.TexturePages = make([]TexturePage, 0, count)
	for i, ptr := range pointers {
		if err := r.AssertPos(ptr, "Texture page"); err != nil {
			return err
		}
		page, err := dec.texturePage()
		if err != nil {
			return fmt.Errorf("parsing texture page #%d at position %d: %w", i, ptr, err)
		}
		d.TexturePages = append(d.TexturePages, page)
	}

	// Payload pass.
	for i := range d.TexturePages {
		page := &d.TexturePages[i]
		deferred, ok := page.Image.(img.Deferred)
		if !ok {
			continue // external texture
		}

		maxEnd := r.ChunkEnd
		for _, later := range d.TexturePages[i+1:] {
			if next, ok := later.Image.(img.Deferred); ok {
				maxEnd = next.Pos
				break
			}
		}

		r.Pos = deferred.Pos
		var blockSize *uint32
		if page.HasBlockSize {
			blockSize = &page.BlockSize
		}
		image, err := img.Read(r, maxEnd, blockSize, d.Version)
		if err != nil {
			return fmt.Errorf("parsing texture page #%d image at position %d: %w", i, deferred.Pos, err)
		}
		page.Image = image
	}

	if err := r.Align(4); err != nil {
		return err
	}
	return dec.finish(chunkTXTR)
}

func (dec *decoder) texturePage() (TexturePage, error) {
	r := dec.r
	d := dec.data
	var page TexturePage
	var err error

	if page.Scaled, err = r.U32(); err != nil {
		return page, err
	}
	if d.Version.AtLeast(version.V(2, 0, 6)) {
		if page.GeneratedMips, err = r.U32(); err != nil {
			return page, err
		}
		page.HasGeneratedMips = true
	}
	if d.Version.AtLeast(version.V(2022, 3)) {
		if page.BlockSize, err = r.U32(); err != nil {
			return page, err
		}
		page.HasBlockSize = true
	}
	if d.Version.AtLeast(version.V(2022, 9)) {
		var t TexturePage2022_9
		if t.TextureWidth, err = r.U32(); err != nil {
			return page, err
		}
		if t.TextureHeight, err = r.U32(); err != nil {
			return page, err
		}
		if t.IndexInGroup, err = r.U32(); err != nil {
			return page, err
		}
		page.Data2022_9 = &t
	}

	dataPos, err := r.U32()
	if err != nil {
		return page, err
	}
	if dataPos != 0 {
		page.Image = img.Deferred{Pos: dataPos}
	}
	return page, nil
}

func (b *builder) writeTextures() error {
	w := b.w
	d := b.d

	w.U32(uint32(len(d.TexturePages)))
	for i := range d.TexturePages {
		w.WritePointer(texPageHandle(i))
	}

	blockSizePos := make([]uint32, len(d.TexturePages))
	for i := range d.TexturePages {
		page := &d.TexturePages[i]
		if err := w.ResolvePointer(texPageHandle(i)); err != nil {
			return err
		}
		w.U32(page.Scaled)
		if d.Version.AtLeast(version.V(2, 0, 6)) {
			if !page.HasGeneratedMips {
				return fmt.Errorf("texture page #%d: generated mipmap levels not set in 2.0.6+", i)
			}
			w.U32(page.GeneratedMips)
		}
		if d.Version.AtLeast(version.V(2022, 3)) {
			if !page.HasBlockSize {
				return fmt.Errorf("texture page #%d: texture block size not set in 2022.3+", i)
			}
			blockSizePos[i] = w.Len()
			w.U32(page.BlockSize)
		}
		if d.Version.AtLeast(version.V(2022, 9)) {
			t := page.Data2022_9
			if t == nil {
				return fmt.Errorf("texture page #%d: 2022.9 data not set in 2022.9+", i)
			}
			w.U32(t.TextureWidth)
			w.U32(t.TextureHeight)
			w.U32(t.IndexInGroup)
		}
		if page.Image != nil {
			w.WritePointer(texDataHandle(i))
		} else {
			w.U32(0) // external texture
		}
	}

	for i := range d.TexturePages {
		page := &d.TexturePages[i]
		if page.Image == nil {
			continue
		}
		w.Align(0x80)
		if err := w.ResolvePointer(texDataHandle(i)); err != nil {
			return err
		}
		start := w.Len()
		if err := img.Write(w, page.Image, d.Version); err != nil {
			return fmt.Errorf("serializing texture page #%d image: %w", i, err)
		}
		if d.Version.AtLeast(version.V(2022, 3)) {
			if err := w.OverwriteU32(w.Len()-start, blockSizePos[i]); err != nil {
				return err
			}
		}
	}

	w.Align(4)
	return nil
}
