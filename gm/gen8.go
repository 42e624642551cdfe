package gm

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/gmcore/gmdata/gm/version"
)

// GEN8 supplies the bytecode version and the version vector that gates
// every later format variation. The leading fields decode individually; the
// GMS2 random-UID block and anything a newer release appends round-trip
// verbatim in Tail.

func (dec *decoder) general() error {
	if err := dec.enter(chunkGEN8); err != nil {
		return err
	}
	r := dec.r
	g := &GeneralInfo{}

	flag, err := r.U8()
	if err != nil {
		return fmt.Errorf("reading debugger flag: %w", err)
	}
	switch flag {
	case 0:
		g.DebuggerDisabled = false
	case 1:
		g.DebuggerDisabled = true
	default:
		return fmt.Errorf("invalid u8 bool %d while reading general info debugger flag", flag)
	}

	if g.BytecodeVersion, err = r.U8(); err != nil {
		return err
	}
	if g.Unknown, err = r.U16(); err != nil {
		return err
	}
	if g.FileName, err = dec.gmString(); err != nil {
		return fmt.Errorf("reading game file name: %w", err)
	}
	if g.Config, err = dec.gmString(); err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	if g.LastObjectID, err = r.U32(); err != nil {
		return err
	}
	if g.LastTileID, err = r.U32(); err != nil {
		return err
	}
	if g.GameID, err = r.U32(); err != nil {
		return err
	}

	guid, err := r.Bytes(16)
	if err != nil {
		return fmt.Errorf("reading DirectPlay GUID: %w", err)
	}
	g.DirectPlayGUID = guidFromLE(guid)

	if g.Name, err = dec.gmString(); err != nil {
		return fmt.Errorf("reading game name: %w", err)
	}

	var ver [4]uint32
	for i := range ver {
		if ver[i], err = r.U32(); err != nil {
			return fmt.Errorf("reading version component #%d: %w", i, err)
		}
	}
	g.RawVersion = version.Version{Major: ver[0], Minor: ver[1], Release: ver[2], Build: ver[3]}
	if g.RawVersion.Major >= 2022 {
		g.RawVersion.Branch = version.PostLTS
	}

	if g.DefaultWindowWidth, err = r.U32(); err != nil {
		return err
	}
	if g.DefaultWindowHeight, err = r.U32(); err != nil {
		return err
	}
	if g.InfoFlags, err = r.U32(); err != nil {
		return err
	}
	if g.LicenseCRC32, err = r.U32(); err != nil {
		return err
	}
	md5, err := r.Bytes(16)
	if err != nil {
		return fmt.Errorf("reading license MD5: %w", err)
	}
	copy(g.LicenseMD5[:], md5)

	if g.Timestamp, err = r.I64(); err != nil {
		return err
	}
	if g.DisplayName, err = dec.gmString(); err != nil {
		return fmt.Errorf("reading display name: %w", err)
	}
	if g.ActiveTargets, err = r.U64(); err != nil {
		return err
	}
	if g.FunctionClassifications, err = r.U64(); err != nil {
		return err
	}
	if g.SteamAppID, err = r.I32(); err != nil {
		return err
	}
	if g.BytecodeVersion >= 14 {
		if g.DebuggerPort, err = r.U32(); err != nil {
			return err
		}
		g.HasDebuggerPort = true
	}

	roomCount, err := r.U32()
	if err != nil {
		return fmt.Errorf("reading room order count: %w", err)
	}
	g.RoomOrder = make([]Ref[Room], roomCount)
	for i := range g.RoomOrder {
		id, err := r.U32()
		if err != nil {
			return fmt.Errorf("reading room order entry #%d: %w", i, err)
		}
		g.RoomOrder[i] = MakeRef[Room](id)
	}

	// Random-UID block and any newer fields.
	if rest := r.ChunkEnd - r.Pos; rest > 0 {
		tail, err := r.Bytes(rest)
		if err != nil {
			return err
		}
		g.Tail = append([]byte(nil), tail...)
	}

	dec.data.General = g
	dec.data.BytecodeVersion = g.BytecodeVersion
	dec.data.Version = g.RawVersion
	return nil
}

func (b *builder) writeGeneral() error {
	w := b.w
	g := b.d.General
	if g == nil {
		return fmt.Errorf("general info not set")
	}

	if g.DebuggerDisabled {
		w.U8(1)
	} else {
		w.U8(0)
	}
	w.U8(g.BytecodeVersion)
	w.U16(g.Unknown)
	if err := b.writeStringRef(g.FileName); err != nil {
		return err
	}
	if err := b.writeStringRef(g.Config); err != nil {
		return err
	}
	w.U32(g.LastObjectID)
	w.U32(g.LastTileID)
	w.U32(g.GameID)
	w.WriteBytes(guidToLE(g.DirectPlayGUID))
	if err := b.writeStringRef(g.Name); err != nil {
		return err
	}
	w.U32(g.RawVersion.Major)
	w.U32(g.RawVersion.Minor)
	w.U32(g.RawVersion.Release)
	w.U32(g.RawVersion.Build)
	w.U32(g.DefaultWindowWidth)
	w.U32(g.DefaultWindowHeight)
	w.U32(g.InfoFlags)
	w.U32(g.LicenseCRC32)
	w.WriteBytes(g.LicenseMD5[:])
	w.I64(g.Timestamp)
	if err := b.writeStringRef(g.DisplayName); err != nil {
		return err
	}
	w.U64(g.ActiveTargets)
	w.U64(g.FunctionClassifications)
	w.I32(g.SteamAppID)
	if g.HasDebuggerPort {
		w.U32(g.DebuggerPort)
	}
	w.U32(uint32(len(g.RoomOrder)))
	for _, room := range g.RoomOrder {
		w.U32(room.Index)
	}
	w.WriteBytes(g.Tail)
	return nil
}

// guidFromLE interprets 16 bytes in the Microsoft mixed-endian GUID layout.
func guidFromLE(b []byte) uuid.UUID {
	var u uuid.UUID
	u[0], u[1], u[2], u[3] = b[3], b[2], b[1], b[0]
	u[4], u[5] = b[5], b[4]
	u[6], u[7] = b[7], b[6]
	copy(u[8:], b[8:16])
	return u
}

func guidToLE(u uuid.UUID) []byte {
	b := make([]byte, 16)
	b[0], b[1], b[2], b[3] = u[3], u[2], u[1], u[0]
	b[4], b[5] = u[5], u[4]
	b[6], b[7] = u[7], u[6]
	copy(b[8:], u[8:16])
	return b
}
