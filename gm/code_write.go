package gm

import (
	"fmt"
)

func (b *builder) writeCodes() error {
	w := b.w
	codes := b.d.Codes
	w.U32(uint32(len(codes)))
	for i := range codes {
		w.WritePointer(codeHandle(i))
	}

	if b.d.BytecodeVersion <= 14 {
		// Instructions are written immediately after each entry header.
		for i := range codes {
			code := &codes[i]
			if err := w.ResolvePointer(codeHandle(i)); err != nil {
				return err
			}
			if err := b.writeStringRef(code.Name); err != nil {
				return err
			}
			lengthPos := w.Len()
			w.U32(placeholder32)
			start := w.Len()
			for n, ins := range code.Instructions {
				if err := b.instruction(ins); err != nil {
					return fmt.Errorf("serializing instruction #%d of code entry #%d: %w", n, i, err)
				}
			}
			if err := w.OverwriteU32(w.Len()-start, lengthPos); err != nil {
				return err
			}
		}
		return nil
	}

	// Bytecode 15+: instruction streams first, then the metadata list.
	type streamRange struct {
		start, end uint32
	}
	ranges := make([]streamRange, 0, len(codes))
	for i := range codes {
		code := &codes[i]
		if code.B15 == nil {
			return fmt.Errorf("code entry #%d has no bytecode 15 data in bytecode version %d", i, b.d.BytecodeVersion)
		}
		if code.B15.HasParent {
			// Child entries write no instruction bytes and share the
			// previous entry's stream range.
			if len(ranges) == 0 {
				name, _ := b.d.ResolveString(code.Name)
				return &ChildBeforeParentError{Name: name}
			}
			ranges = append(ranges, ranges[len(ranges)-1])
			continue
		}

		start := w.Len()
		for n, ins := range code.Instructions {
			if err := b.instruction(ins); err != nil {
				return fmt.Errorf("serializing instruction #%d of code entry #%d: %w", n, i, err)
			}
		}
		ranges = append(ranges, streamRange{start: start, end: w.Len()})
	}

	for i := range codes {
		code := &codes[i]
		if err := w.ResolvePointer(codeHandle(i)); err != nil {
			return err
		}
		if err := b.writeStringRef(code.Name); err != nil {
			return err
		}
		rng := ranges[i]
		w.U32(rng.end - rng.start)
		info := code.B15
		w.U16(info.LocalsCount)
		args := info.ArgumentsCount
		if info.WeirdLocalFlag {
			args |= 0x8000
		}
		w.U16(args)
		w.I32(int32(rng.start) - int32(w.Len()))
		w.U32(info.Offset)
	}
	return nil
}

const placeholder32 = 0xDEADC0DE

// instruction encodes one instruction, appending to the output buffer and
// back-patching occurrence links of earlier sites as needed.
func (b *builder) instruction(ins Instruction) error {
	w := b.w
	old := b.d.BytecodeVersion < 15

	// word assembles b0, b1, b2 and the opcode into the leading 32-bit word.
	word := func(b0, b1, b2 uint8, op Opcode) uint32 {
		opByte := uint8(op)
		if old {
			opByte = opcodeNewToOld(opByte)
		}
		return uint32(b0) | uint32(b1)<<8 | uint32(b2)<<16 | uint32(opByte)<<24
	}
	word16 := func(v uint16, b2 uint8, op Opcode) uint32 {
		return word(uint8(v), uint8(v>>8), b2, op)
	}

	switch ins := ins.(type) {
	case Binary:
		w.U32(word(0, 0, uint8(ins.Right)|uint8(ins.Left)<<4, ins.Op))

	case Unary:
		w.U32(word(0, 0, uint8(ins.Type), ins.Op))

	case Compare:
		types := uint8(ins.Right) | uint8(ins.Left)<<4
		if old {
			// Bytecode 14 spreads comparisons over opcodes 0x10 + kind.
			w.U32(uint32(types)<<16 | uint32(0x10+uint8(ins.Comparison))<<24)
		} else {
			w.U32(word(0, uint8(ins.Comparison), types, OpCompare))
		}

	case Pop:
		instrPos := w.Len()
		raw := rawInstanceType(ins.Dest.Instance)
		w.U32(word16(uint16(raw), uint8(ins.Type1)|uint8(ins.Type2)<<4, OpPop))
		if err := b.writeVariableOccurrence(ins.Dest.Variable, instrPos, ins.Dest.Kind); err != nil {
			return err
		}

	case PopSwap:
		raw := int16(5)
		if ins.IsArray {
			raw = 6
		}
		w.U32(word16(uint16(raw), uint8(TypeInt16)|uint8(TypeVariable)<<4, OpPop))

	case Duplicate:
		w.U32(word(ins.Size, 0, uint8(ins.Type), OpDuplicate))

	case DuplicateSwap:
		w.U32(word(ins.Size1, ins.Size2<<3|0x80, uint8(ins.Type), OpDuplicate))

	case Return:
		w.U32(word(0, 0, uint8(TypeVariable), OpReturn))

	case Exit:
		w.U32(word(0, 0, uint8(TypeInt32), OpExit))

	case PopDiscard:
		w.U32(word(0, 0, uint8(ins.Type), OpPopDiscard))

	case Branch:
		value := uint32(ins.Offset) & 0x00FF_FFFF
		if !old && value&0x80_0000 != 0 {
			// Negative offsets store their sign at bit 22 in bytecode 15+.
			value &^= 0x80_0000
			value |= 0x40_0000
		}
		w.U32(word(uint8(value), uint8(value>>8), uint8(value>>16), ins.Op))

	case PopEnvExit:
		w.U32(word(0x00, 0x00, 0xF0, OpPopEnv))

	case Push:
		if err := b.writePush(OpPush, ins.Value); err != nil {
			return err
		}

	case PushVar:
		instrPos := w.Len()
		raw := rawInstanceType(ins.Variable.Instance)
		w.U32(word16(uint16(raw), uint8(TypeVariable), ins.Op))
		if err := b.writeVariableOccurrence(ins.Variable.Variable, instrPos, ins.Variable.Kind); err != nil {
			return err
		}

	case PushImmediate:
		w.U32(word16(uint16(ins.Value), uint8(TypeInt16), OpPushImmediate))

	case Call:
		instrPos := w.Len()
		w.U32(word16(ins.Args, uint8(TypeInt32), OpCall))
		if err := b.writeFunctionOccurrence(ins.Function, instrPos); err != nil {
			return err
		}

	case CallVariable:
		w.U32(word16(ins.Args, uint8(TypeVariable), OpCallVariable))

	case Extended:
		w.U32(word16(uint16(ins.Kind), uint8(TypeInt16), OpExtended))

	case PushReference:
		instrPos := w.Len()
		pushRefKind := ExtPushReference
		w.U32(word16(uint16(pushRefKind), uint8(TypeInt32), OpExtended))
		if err := b.writeAssetReference(ins.Asset, instrPos); err != nil {
			return err
		}

	default:
		return fmt.Errorf("unsupported instruction variant %T", ins)
	}
	return nil
}

func (b *builder) writePush(op Opcode, value CodeValue) error {
	w := b.w
	instrPos := w.Len()

	var raw int16
	switch v := value.(type) {
	case Int16Value:
		raw = int16(v)
	case VariableValue:
		raw = rawInstanceType(v.Operand.Instance)
	}
	opByte := uint8(op)
	if b.d.BytecodeVersion < 15 {
		opByte = opcodeNewToOld(opByte)
	}
	w.U32(uint32(uint16(raw)) | uint32(uint8(value.Type()))<<16 | uint32(opByte)<<24)

	switch v := value.(type) {
	case Int16Value:
		// Already packed inside the instruction word.
	case Int32Value:
		w.I32(int32(v))
	case Int64Value:
		w.I64(int64(v))
	case DoubleValue:
		w.F64(float64(v))
	case BooleanValue:
		w.Bool32(bool(v))
	case StringValue:
		if int(v.String.Index) >= len(b.d.Strings) {
			return &StringIndexError{Index: v.String.Index, Len: len(b.d.Strings)}
		}
		w.U32(v.String.Index)
	case VariableValue:
		if err := b.writeVariableOccurrence(v.Operand.Variable, instrPos, v.Operand.Kind); err != nil {
			return err
		}
	case FunctionValue:
		if err := b.writeFunctionOccurrence(v.Function, instrPos); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported push value variant %T", v)
	}
	return nil
}

func (b *builder) writeAssetReference(asset AssetReference, instrPos uint32) error {
	switch asset.Kind {
	case AssetFunction:
		return b.writeFunctionOccurrence(asset.Function, instrPos)
	case AssetRoomInstance:
		b.w.U32(uint32(asset.Kind)<<24 | uint32(asset.InstanceID)&0xFF_FFFF)
	case AssetObject, AssetSprite, AssetSound, AssetRoom, AssetBackground, AssetPath,
		AssetScript, AssetFont, AssetTimeline, AssetShader, AssetSequence,
		AssetAnimCurve, AssetParticleSystem:
		b.w.U32(uint32(asset.Kind)<<24 | asset.Index&0xFF_FFFF)
	default:
		return fmt.Errorf("invalid asset kind %d", uint8(asset.Kind))
	}
	return nil
}
