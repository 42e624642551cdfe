package gm

import (
	"fmt"
)

// CODE is a pointer list of named code entries. Below bytecode 15 each
// entry's instruction bytes follow its header; from bytecode 15 on the
// instruction streams are stored before the metadata list and entries point
// into them, which is what makes child entries (shared streams) possible.

func (dec *decoder) codes() error {
	if err := dec.enter(chunkCODE); err != nil {
		return err
	}
	r := dec.r

	if r.ChunkLen() == 0 {
		return nil
	}

	count, err := r.U32()
	if err != nil {
		return fmt.Errorf("reading code entry count: %w", err)
	}
	pointers := make([]uint32, count)
	for i := range pointers {
		if pointers[i], err = r.U32(); err != nil {
			return fmt.Errorf("reading code entry pointer #%d: %w", i, err)
		}
	}
	if len(pointers) == 0 {
		return dec.finish(chunkCODE)
	}

	r.Pos = pointers[0]
	b15 := dec.data.BytecodeVersion >= 15
	type streamRange struct {
		start, end uint32
	}
	ranges := make([]streamRange, 0, count)
	dec.data.Codes = make([]Code, 0, count)
	lastPos := r.Pos

	for i, ptr := range pointers {
		if err := r.AssertPos(ptr, "Code"); err != nil {
			return err
		}
		var code Code
		if code.Name, err = dec.gmString(); err != nil {
			return fmt.Errorf("reading code entry #%d name: %w", i, err)
		}
		length, err := r.U32()
		if err != nil {
			return fmt.Errorf("reading code entry #%d length: %w", i, err)
		}

		var rng streamRange
		if !b15 {
			// Instructions are placed immediately after the entry header.
			rng.start = r.Pos
			r.Pos += length
			rng.end = r.Pos
		} else {
			var b CodeB15
			locals, err := r.U16()
			if err != nil {
				return err
			}
			argsRaw, err := r.U16()
			if err != nil {
				return err
			}
			b.LocalsCount = locals
			b.ArgumentsCount = argsRaw & 0x7FFF
			b.WeirdLocalFlag = argsRaw&0x8000 != 0

			startOffset, err := r.I32()
			if err != nil {
				return err
			}
			rng.start = uint32(startOffset + int32(r.Pos) - 4)

			if b.Offset, err = r.U32(); err != nil {
				return err
			}
			rng.end = rng.start + length
			code.B15 = &b
		}

		dec.data.Codes = append(dec.data.Codes, code)
		ranges = append(ranges, rng)
		lastPos = r.Pos
	}

	codesByPos := make(map[uint32]Ref[Code], count)
	for i, rng := range ranges {
		code := &dec.data.Codes[i]
		length := rng.end - rng.start

		// A known stream start means this entry is a child of the entry
		// already rooted there: its instructions are not re-decoded.
		if length > 0 && code.B15 != nil {
			if parent, ok := codesByPos[rng.start]; ok {
				code.B15.Parent = parent
				code.B15.HasParent = true
				continue
			}
		}

		r.Pos = rng.start
		if length > 0 {
			codesByPos[rng.start] = MakeRef[Code](uint32(i))
		}

		for r.Pos < rng.end {
			n := len(code.Instructions)
			ins, err := dec.instruction()
			if err != nil {
				name, _ := dec.data.ResolveString(code.Name)
				return fmt.Errorf("parsing code entry %q at position %d: parsing instruction #%d: %w",
					name, rng.start, n, err)
			}
			code.Instructions = append(code.Instructions, ins)
		}
	}

	// Has to be the chunk end, since instruction streams are stored
	// separately in bytecode 15+.
	r.Pos = lastPos
	return dec.finish(chunkCODE)
}

// instruction decodes one instruction. The decode is atomic: on error the
// cursor is restored to the instruction boundary it started at.
func (dec *decoder) instruction() (Instruction, error) {
	start := dec.r.Pos
	ins, err := dec.decodeInstruction()
	if err != nil {
		dec.r.Pos = start
		return nil, fmt.Errorf("at position %d: %w", start, err)
	}
	return ins, nil
}

func (dec *decoder) decodeInstruction() (Instruction, error) {
	r := dec.r
	word, err := r.U32()
	if err != nil {
		return nil, err
	}
	opcode := uint8(word >> 24)
	b := [3]uint8{uint8(word), uint8(word >> 8), uint8(word >> 16)}

	if dec.data.BytecodeVersion < 15 {
		if opcode >= 0x10 && opcode <= 0x16 {
			// Preserve the comparison kind for pre-bytecode-15.
			if err := assertZero("instruction byte #1", b[1]); err != nil {
				return nil, err
			}
			b[1] = opcode - 0x10
		}
		opcode = opcodeOldToNew(opcode)
	}

	op := Opcode(opcode)
	switch op {
	case OpConvert, OpMultiply, OpDivide, OpRemainder, OpModulus, OpAdd,
		OpSubtract, OpAnd, OpOr, OpXor, OpShiftLeft, OpShiftRight:
		right, left, err := parseDoubleType(b)
		if err != nil {
			return nil, fmt.Errorf("parsing %s instruction: %w", op, err)
		}
		return Binary{Op: op, Right: right, Left: left}, nil

	case OpNegate, OpNot:
		t, err := parseSingleType(b)
		if err != nil {
			return nil, fmt.Errorf("parsing %s instruction: %w", op, err)
		}
		return Unary{Op: op, Type: t}, nil

	case OpCompare:
		if err := assertZero("instruction byte #0", b[0]); err != nil {
			return nil, fmt.Errorf("parsing comparison instruction: %w", err)
		}
		kind, err := comparisonFrom(b[1])
		if err != nil {
			return nil, fmt.Errorf("parsing comparison instruction: %w", err)
		}
		right, err := dataTypeFrom(b[2] & 0xF)
		if err != nil {
			return nil, fmt.Errorf("parsing comparison instruction: %w", err)
		}
		left, err := dataTypeFrom(b[2] >> 4)
		if err != nil {
			return nil, fmt.Errorf("parsing comparison instruction: %w", err)
		}
		return Compare{Comparison: kind, Right: right, Left: left}, nil

	case OpPop:
		ins, err := dec.parsePop(b)
		if err != nil {
			return nil, fmt.Errorf("parsing pop instruction: %w", err)
		}
		return ins, nil

	case OpDuplicate:
		ins, err := parseDuplicate(b)
		if err != nil {
			return nil, fmt.Errorf("parsing duplicate instruction: %w", err)
		}
		return ins, nil

	case OpReturn:
		t, err := parseSingleType(b)
		if err != nil {
			return nil, fmt.Errorf("parsing return instruction: %w", err)
		}
		if t != TypeVariable {
			return nil, fmt.Errorf("parsing return instruction: expected data type %s, got %s", TypeVariable, t)
		}
		return Return{}, nil

	case OpExit:
		t, err := parseSingleType(b)
		if err != nil {
			return nil, fmt.Errorf("parsing exit instruction: %w", err)
		}
		if t != TypeInt32 {
			return nil, fmt.Errorf("parsing exit instruction: expected data type %s, got %s", TypeInt32, t)
		}
		return Exit{}, nil

	case OpPopDiscard:
		t, err := parseSingleType(b)
		if err != nil {
			return nil, fmt.Errorf("parsing pop-discard instruction: %w", err)
		}
		return PopDiscard{Type: t}, nil

	case OpBranch, OpBranchIf, OpBranchUnless, OpPushEnv:
		return Branch{Op: op, Offset: dec.parseBranch(b)}, nil

	case OpPopEnv:
		if b == [3]uint8{0x00, 0x00, 0xF0} {
			return PopEnvExit{}, nil
		}
		return Branch{Op: op, Offset: dec.parseBranch(b)}, nil

	case OpPush:
		value, err := dec.parsePushValue(b)
		if err != nil {
			return nil, fmt.Errorf("parsing push instruction: %w", err)
		}
		return Push{Value: value}, nil

	case OpPushLocal, OpPushGlobal, OpPushBuiltin:
		operand, err := dec.parsePushVar(b)
		if err != nil {
			return nil, fmt.Errorf("parsing %s instruction: %w", op, err)
		}
		return PushVar{Op: op, Variable: operand}, nil

	case OpPushImmediate:
		t, err := parseSingleTypeWithPayload(b)
		if err != nil {
			return nil, fmt.Errorf("parsing push-immediate instruction: %w", err)
		}
		if t != TypeInt16 {
			return nil, fmt.Errorf("parsing push-immediate instruction: expected data type %s, got %s", TypeInt16, t)
		}
		return PushImmediate{Value: int16(uint16(b[0]) | uint16(b[1])<<8)}, nil

	case OpCall:
		ins, err := dec.parseCall(b)
		if err != nil {
			return nil, fmt.Errorf("parsing call instruction: %w", err)
		}
		return ins, nil

	case OpCallVariable:
		t, err := parseSingleTypeWithPayload(b)
		if err != nil {
			return nil, fmt.Errorf("parsing call-variable instruction: %w", err)
		}
		if t != TypeVariable {
			return nil, fmt.Errorf("parsing call-variable instruction: expected data type %s, got %s", TypeVariable, t)
		}
		return CallVariable{Args: uint16(b[0]) | uint16(b[1])<<8}, nil

	case OpExtended:
		ins, err := dec.parseExtended(b)
		if err != nil {
			return nil, fmt.Errorf("parsing extended instruction: %w", err)
		}
		return ins, nil
	}
	return nil, &InvalidOpcodeError{Byte: opcode}
}

func assertZero(name string, v uint8) error {
	if v != 0 {
		return fmt.Errorf("%s: expected 0, got %d", name, v)
	}
	return nil
}

// parseSingleType decodes b for the zero-payload single-typed opcodes:
// b0 and b1 must be zero, the high nibble of b2 must be zero.
func parseSingleType(b [3]uint8) (DataType, error) {
	if err := assertZero("instruction byte #0", b[0]); err != nil {
		return 0, err
	}
	if err := assertZero("instruction byte #1", b[1]); err != nil {
		return 0, err
	}
	return parseSingleTypeWithPayload(b)
}

// parseSingleTypeWithPayload decodes only the data-type byte, for opcodes
// whose b0:b1 carry a payload (argument count, immediate).
func parseSingleTypeWithPayload(b [3]uint8) (DataType, error) {
	t, err := dataTypeFrom(b[2] & 0xF)
	if err != nil {
		return 0, err
	}
	if err := assertZero("instruction data type 2 (in byte #2)", b[2]>>4); err != nil {
		return 0, err
	}
	return t, nil
}

func parseDoubleType(b [3]uint8) (right, left DataType, err error) {
	if err := assertZero("instruction byte #0", b[0]); err != nil {
		return 0, 0, err
	}
	if err := assertZero("instruction byte #1", b[1]); err != nil {
		return 0, 0, err
	}
	if right, err = dataTypeFrom(b[2] & 0xF); err != nil {
		return 0, 0, err
	}
	if left, err = dataTypeFrom(b[2] >> 4); err != nil {
		return 0, 0, err
	}
	return right, left, nil
}

func (dec *decoder) parsePop(b [3]uint8) (Instruction, error) {
	raw := int16(uint16(b[0]) | uint16(b[1])<<8)
	type1, err := dataTypeFrom(b[2] & 0xF)
	if err != nil {
		return nil, err
	}
	type2, err := dataTypeFrom(b[2] >> 4)
	if err != nil {
		return nil, err
	}

	if type1 == TypeInt16 {
		// Pop-swap, not a pop.
		if type2 != TypeVariable {
			return nil, fmt.Errorf("expected data type %s, got %s", TypeVariable, type2)
		}
		switch raw {
		case 5:
			return PopSwap{IsArray: false}, nil
		case 6:
			return PopSwap{IsArray: true}, nil
		}
		return nil, fmt.Errorf("expected 5 or 6 for instance type of pop-swap instruction, got %d", raw)
	}

	operand, err := dec.readVariable(raw)
	if err != nil {
		return nil, err
	}
	return Pop{Dest: operand, Type1: type1, Type2: type2}, nil
}

func parseDuplicate(b [3]uint8) (Instruction, error) {
	size := b[0]
	size2 := b[1]
	t, err := dataTypeFrom(b[2] & 0xF)
	if err != nil {
		return nil, err
	}
	if err := assertZero("instruction data type 2 (in byte #2)", b[2]>>4); err != nil {
		return nil, err
	}
	if size2 == 0 {
		return Duplicate{Type: t, Size: size}, nil
	}
	return DuplicateSwap{Type: t, Size1: size, Size2: (size2 & 0x7F) >> 3}, nil
}

// parseBranch decodes the 23-bit signed jump offset: for bytecode above 14
// a set bit 22 also sets bit 23, then bit 23 sign-extends to 32 bits.
func (dec *decoder) parseBranch(b [3]uint8) int32 {
	value := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
	if dec.data.BytecodeVersion > 14 && value&0x40_0000 != 0 {
		value |= 0x80_0000
	}
	if value&0x80_0000 != 0 {
		value |= 0xFF00_0000
	}
	return int32(value)
}

func (dec *decoder) parsePushValue(b [3]uint8) (CodeValue, error) {
	int16v := int16(uint16(b[0]) | uint16(b[1])<<8)
	t, err := parseSingleTypeWithPayload(b)
	if err != nil {
		return nil, err
	}

	r := dec.r
	switch t {
	case TypeInt16:
		return Int16Value(int16v), nil
	case TypeInt32:
		if ref, ok := dec.funcOcc.Get(r.Pos); ok {
			r.Pos += 4 // skip next occurrence offset
			return FunctionValue{Function: ref}, nil
		}
		if _, ok := dec.varOcc.Get(r.Pos); ok {
			return nil, fmt.Errorf("found implicit Int32 variable reference at %d", r.Pos)
		}
		v, err := r.I32()
		if err != nil {
			return nil, err
		}
		return Int32Value(v), nil
	case TypeInt64:
		v, err := r.I64()
		if err != nil {
			return nil, err
		}
		return Int64Value(v), nil
	case TypeDouble:
		v, err := r.F64()
		if err != nil {
			return nil, err
		}
		return DoubleValue(v), nil
	case TypeBoolean:
		v, err := r.Bool32()
		if err != nil {
			return nil, err
		}
		return BooleanValue(v), nil
	case TypeString:
		index, err := r.U32()
		if err != nil {
			return nil, err
		}
		if int(index) >= len(dec.data.Strings) {
			return nil, &StringIndexError{Index: index, Len: len(dec.data.Strings)}
		}
		return StringValue{String: MakeRef[string](index)}, nil
	case TypeVariable:
		operand, err := dec.readVariable(int16v)
		if err != nil {
			return nil, err
		}
		return VariableValue{Operand: operand}, nil
	}
	return nil, &InvalidDataTypeError{Byte: uint8(t)}
}

func (dec *decoder) parsePushVar(b [3]uint8) (VariableOperand, error) {
	raw := int16(uint16(b[0]) | uint16(b[1])<<8)
	t, err := parseSingleTypeWithPayload(b)
	if err != nil {
		return VariableOperand{}, err
	}
	if t != TypeVariable {
		return VariableOperand{}, fmt.Errorf("expected data type %s, got %s", TypeVariable, t)
	}
	return dec.readVariable(raw)
}

func (dec *decoder) parseCall(b [3]uint8) (Instruction, error) {
	args := uint16(b[0]) | uint16(b[1])<<8
	t, err := parseSingleTypeWithPayload(b)
	if err != nil {
		return nil, err
	}
	if t != TypeInt32 {
		return nil, fmt.Errorf("expected data type %s, got %s", TypeInt32, t)
	}

	r := dec.r
	ref, ok := dec.funcOcc.Get(r.Pos)
	if !ok {
		return nil, &OccurrenceMissError{Pos: r.Pos, Kind: "function", Len: dec.funcOcc.Count()}
	}
	r.Pos += 4 // skip next occurrence offset
	return Call{Function: ref, Args: args}, nil
}

func (dec *decoder) parseExtended(b [3]uint8) (Instruction, error) {
	kind := ExtendedKind(int16(uint16(b[0]) | uint16(b[1])<<8))
	t, err := parseSingleTypeWithPayload(b)
	if err != nil {
		return nil, err
	}

	switch {
	case t == TypeInt16:
		switch kind {
		case ExtCheckIndex, ExtPushArrayFinal, ExtPopArrayFinal, ExtPushArrayContainer,
			ExtSetArrayOwner, ExtHasStaticInit, ExtSetStaticInit, ExtSaveArrayRef,
			ExtRestoreArrayRef, ExtIsNullish:
			return Extended{Kind: kind}, nil
		}
	case t == TypeInt32 && kind == ExtPushReference:
		asset, err := dec.readAssetReference()
		if err != nil {
			return nil, fmt.Errorf("parsing push-reference extended instruction: %w", err)
		}
		return PushReference{Asset: asset}, nil
	}
	return nil, fmt.Errorf("invalid extended instruction with data type %s and kind %d", t, int16(kind))
}

func (dec *decoder) readAssetReference() (AssetReference, error) {
	r := dec.r
	if ref, ok := dec.funcOcc.Get(r.Pos); ok {
		r.Pos += 4 // consume next occurrence offset
		return AssetReference{Kind: AssetFunction, Function: ref}, nil
	}

	raw, err := r.U32()
	if err != nil {
		return AssetReference{}, err
	}
	index := raw & 0xFF_FFFF
	kind := AssetKind(raw >> 24)
	switch kind {
	case AssetObject, AssetSprite, AssetSound, AssetRoom, AssetBackground, AssetPath,
		AssetScript, AssetFont, AssetTimeline, AssetShader, AssetSequence,
		AssetAnimCurve, AssetParticleSystem:
		return AssetReference{Kind: kind, Index: index}, nil
	case AssetRoomInstance:
		return AssetReference{Kind: kind, InstanceID: int32(index)}, nil
	}
	return AssetReference{}, fmt.Errorf("invalid asset type %d", uint8(kind))
}

// readVariable decodes the 32-bit variable reference word that follows the
// instruction word. The high five bits carry the variable kind; the ref
// comes from the occurrence map at the word's position.
func (dec *decoder) readVariable(raw int16) (VariableOperand, error) {
	r := dec.r
	occPos := r.Pos
	word, err := r.U32()
	if err != nil {
		return VariableOperand{}, err
	}
	kind, err := variableKindFrom(uint8(word>>24) & 0xF8)
	if err != nil {
		return VariableOperand{}, err
	}

	var instance InstanceType
	if kind == VarKindInstance {
		instance = InstanceType{Kind: InstRoomInstance, RoomID: raw}
	} else if instance, err = instanceTypeFrom(raw); err != nil {
		return VariableOperand{}, err
	}

	ref, ok := dec.varOcc.Get(occPos)
	if !ok {
		return VariableOperand{}, &OccurrenceMissError{Pos: occPos, Kind: "variable", Len: dec.varOcc.Count()}
	}
	return VariableOperand{Variable: ref, Kind: kind, Instance: instance}, nil
}
