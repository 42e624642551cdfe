// Package gm reads, represents, modifies, and writes back GameMaker
// data.win archives across bytecode versions 14 through 17. The aggregate
// Data owns every decoded resource; cross-references are typed indices into
// sibling vectors, so nothing dangles while the aggregate is alive.
package gm

import (
	"fmt"

	"github.com/dolthub/swiss"
	"github.com/google/uuid"

	"github.com/gmcore/gmdata/gm/chunk"
	"github.com/gmcore/gmdata/gm/img"
	"github.com/gmcore/gmdata/gm/version"
)

// Room is a resource the core does not decode; refs to it are bare indices
// into the ROOM chunk handled outside the core.
type Room struct{}

// A Variable declared by the VARI chunk. Occurrences is the list of
// instruction-stream byte offsets referencing it, derived from the chain
// walk on read and re-synthesized on write.
type Variable struct {
	Name Ref[string]

	// B15 carries the bytecode-15+ metadata fields.
	B15 *VariableB15

	Occurrences []uint32
}

type VariableB15 struct {
	InstanceType int32
	VarID        int32
}

// A Function declared by the FUNC chunk.
type Function struct {
	Name        Ref[string]
	Occurrences []uint32
}

// CodeLocals is one entry of the FUNC chunk's locals section (bytecode 15+).
type CodeLocals struct {
	Name   Ref[string]
	Locals []CodeLocal
}

type CodeLocal struct {
	Index uint32
	Name  Ref[string]
}

// CodeB15 is the bytecode-15+ metadata of a code entry.
type CodeB15 struct {
	LocalsCount    uint16
	ArgumentsCount uint16

	// WeirdLocalFlag aliases the high bit of the argument count; its
	// semantics are undocumented and it round-trips verbatim.
	WeirdLocalFlag bool

	// Offset in bytes from the start of the entry's instruction stream.
	Offset uint32

	// Parent is set on child entries, whose instruction stream is a slice
	// of the parent's. Child entries carry no instructions of their own.
	Parent    Ref[Code]
	HasParent bool
}

// A Code entry: a named instruction sequence plus optional b15 metadata.
type Code struct {
	Name         Ref[string]
	Instructions []Instruction
	B15          *CodeB15
}

// A TexturePage is one TXTR entry.
type TexturePage struct {
	Scaled uint32

	// GeneratedMips is present from 2.0.6.
	GeneratedMips    uint32
	HasGeneratedMips bool

	// BlockSize is the byte length of the attached texture, present in
	// every entry from 2022.3. On write it is recomputed for entries that
	// carry an image and kept as read for external textures.
	BlockSize    uint32
	HasBlockSize bool

	// Data2022_9 is present from 2022.9.
	Data2022_9    *TexturePage2022_9
	Image         img.Image // nil for external textures
}

type TexturePage2022_9 struct {
	TextureWidth, TextureHeight, IndexInGroup uint32
}

// A PageItem is one TPAG entry: a rectangle on a texture page.
type PageItem struct {
	SourceX, SourceY, SourceWidth, SourceHeight     uint16
	TargetX, TargetY, TargetWidth, TargetHeight     uint16
	BoundingWidth, BoundingHeight                   uint16
	TexturePage                                     Ref[TexturePage]
}

// GeneralInfo is the decoded GEN8 chunk. The random-UID block the IDE
// appends for GMS2 builds round-trips verbatim in Tail.
type GeneralInfo struct {
	DebuggerDisabled bool
	BytecodeVersion  uint8
	Unknown          uint16
	FileName         Ref[string]
	Config           Ref[string]
	LastObjectID     uint32
	LastTileID       uint32
	GameID           uint32
	DirectPlayGUID   uuid.UUID
	Name             Ref[string]

	// RawVersion is the version vector as stored in GEN8. The detected
	// version lives on Data.Version and may be higher; RawVersion is what
	// gets written back.
	RawVersion version.Version

	DefaultWindowWidth  uint32
	DefaultWindowHeight uint32
	InfoFlags           uint32
	LicenseCRC32        uint32
	LicenseMD5          [16]byte
	Timestamp           int64
	DisplayName         Ref[string]
	ActiveTargets       uint64
	FunctionClassifications uint64
	SteamAppID          int32

	// DebuggerPort is present from bytecode 14.
	DebuggerPort    uint32
	HasDebuggerPort bool

	RoomOrder []Ref[Room]

	// Tail holds everything after the room order verbatim.
	Tail []byte
}

// Data is the root aggregate owning every decoded resource of one file.
type Data struct {
	// Version is the detected GameMaker version: the GEN8 stub, monotone-
	// raised by the version scanner from chunk evidence.
	Version version.Version

	BytecodeVersion uint8
	BigEndian       bool

	// YYC reports YoYo-Compiler output: bytecode chunks empty or absent
	// because code was compiled natively. Not an error; CODE/VARI/FUNC
	// decode is skipped entirely.
	YYC bool

	General      *GeneralInfo
	Strings      []string
	Variables    []Variable
	Functions    []Function
	CodeLocals   []CodeLocals
	Codes        []Code
	TexturePages []TexturePage
	PageItems    []PageItem

	// VarCount1, VarCount2 and MaxLocalVarCount are the three VARI header
	// words of bytecode 15+.
	VarCount1, VarCount2, MaxLocalVarCount uint32

	// Directory and raw buffer of the decoded file, kept for verbatim
	// re-emission of chunks outside the core's scope.
	dir *chunk.Directory
	raw []byte

	// Trailing zero padding observed inside handled chunks, by tag.
	tailPad map[chunk.Tag]uint32

	// Texture page items by absolute TPAG pointer, for chunks outside the
	// core that reference items by position.
	itemsByPos *swiss.Map[uint32, Ref[PageItem]]
}

// Directory exposes the decoded chunk directory.
func (d *Data) Directory() *chunk.Directory { return d.dir }

// ResolveString returns the string referenced by r.
func (d *Data) ResolveString(r Ref[string]) (string, error) {
	s, err := resolve(d.Strings, r, "string")
	if err != nil {
		return "", err
	}
	return *s, nil
}

// ResolveVariable returns the variable referenced by r.
func (d *Data) ResolveVariable(r Ref[Variable]) (*Variable, error) {
	return resolve(d.Variables, r, "variable")
}

// ResolveFunction returns the function referenced by r.
func (d *Data) ResolveFunction(r Ref[Function]) (*Function, error) {
	return resolve(d.Functions, r, "function")
}

// ResolveCode returns the code entry referenced by r.
func (d *Data) ResolveCode(r Ref[Code]) (*Code, error) {
	return resolve(d.Codes, r, "code")
}

// ResolveTexturePage returns the texture page referenced by r.
func (d *Data) ResolveTexturePage(r Ref[TexturePage]) (*TexturePage, error) {
	return resolve(d.TexturePages, r, "texture page")
}

// ResolvePageItem returns the texture page item referenced by r.
func (d *Data) ResolvePageItem(r Ref[PageItem]) (*PageItem, error) {
	return resolve(d.PageItems, r, "texture page item")
}

// MakeString appends a string to the table and returns its ref.
func (d *Data) MakeString(s string) Ref[string] {
	return makeIn(&d.Strings, s)
}

// CodeByName returns the code entry with the given name.
func (d *Data) CodeByName(name string) (*Code, error) {
	for i := range d.Codes {
		s, err := d.ResolveString(d.Codes[i].Name)
		if err != nil {
			return nil, err
		}
		if s == name {
			return &d.Codes[i], nil
		}
	}
	return nil, fmt.Errorf("could not find code entry with name %q", name)
}
