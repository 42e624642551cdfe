package gm

import "fmt"

// An Opcode is the high byte of an instruction word, in the modern
// (bytecode 15+) numbering. Bytecode 14 files use a historical numbering
// that is remapped on read and restored on write.
type Opcode uint8

const (
	OpConvert     Opcode = 0x07
	OpMultiply    Opcode = 0x08
	OpDivide      Opcode = 0x09
	OpRemainder   Opcode = 0x0A
	OpModulus     Opcode = 0x0B
	OpAdd         Opcode = 0x0C
	OpSubtract    Opcode = 0x0D
	OpAnd         Opcode = 0x0E
	OpOr          Opcode = 0x0F
	OpXor         Opcode = 0x10
	OpNegate      Opcode = 0x11
	OpNot         Opcode = 0x12
	OpShiftLeft   Opcode = 0x13
	OpShiftRight  Opcode = 0x14
	OpCompare     Opcode = 0x15
	OpPop         Opcode = 0x45
	OpDuplicate   Opcode = 0x86
	OpReturn      Opcode = 0x9C
	OpExit        Opcode = 0x9D
	OpPopDiscard  Opcode = 0x9E
	OpBranch      Opcode = 0xB6
	OpBranchIf    Opcode = 0xB7
	OpBranchUnless Opcode = 0xB8
	OpPushEnv     Opcode = 0xBA
	OpPopEnv      Opcode = 0xBB
	OpPush        Opcode = 0xC0
	OpPushLocal   Opcode = 0xC1
	OpPushGlobal  Opcode = 0xC2
	OpPushBuiltin Opcode = 0xC3
	OpPushImmediate Opcode = 0x84
	OpCall        Opcode = 0xD9
	OpCallVariable Opcode = 0x99
	OpExtended    Opcode = 0xFF
)

var opcodeNames = map[Opcode]string{
	OpConvert:       "conv",
	OpMultiply:      "mul",
	OpDivide:        "div",
	OpRemainder:     "rem",
	OpModulus:       "mod",
	OpAdd:           "add",
	OpSubtract:      "sub",
	OpAnd:           "and",
	OpOr:            "or",
	OpXor:           "xor",
	OpNegate:        "neg",
	OpNot:           "not",
	OpShiftLeft:     "shl",
	OpShiftRight:    "shr",
	OpCompare:       "cmp",
	OpPop:           "pop",
	OpDuplicate:     "dup",
	OpReturn:        "ret",
	OpExit:          "exit",
	OpPopDiscard:    "popz",
	OpBranch:        "b",
	OpBranchIf:      "bt",
	OpBranchUnless:  "bf",
	OpPushEnv:       "pushenv",
	OpPopEnv:        "popenv",
	OpPush:          "push",
	OpPushLocal:     "pushloc",
	OpPushGlobal:    "pushglb",
	OpPushBuiltin:   "pushbltn",
	OpPushImmediate: "pushi",
	OpCall:          "call",
	OpCallVariable:  "callv",
	OpExtended:      "break",
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("illegal op (0x%02X)", uint8(op))
}

// opcodeOldToNew translates a bytecode-14 opcode to the modern numbering.
// Comparison opcodes 0x11..0x16 all collapse onto OpCompare; the caller
// recovers the comparison kind from the original byte first.
func opcodeOldToNew(op uint8) uint8 {
	switch op {
	case 0x03:
		return 0x07
	case 0x04:
		return 0x08
	case 0x05:
		return 0x09
	case 0x06:
		return 0x0A
	case 0x07:
		return 0x0B
	case 0x08:
		return 0x0C
	case 0x09:
		return 0x0D
	case 0x0A:
		return 0x0E
	case 0x0B:
		return 0x0F
	case 0x0C:
		return 0x10
	case 0x0D:
		return 0x11
	case 0x0E:
		return 0x12
	case 0x0F:
		return 0x13
	case 0x10:
		return 0x14
	case 0x11, 0x12, 0x13, 0x14, 0x16:
		return 0x15
	case 0x41:
		return 0x45
	case 0x82:
		return 0x86
	case 0xB7:
		return 0xB6
	case 0xB8:
		return 0xB7
	case 0xB9:
		return 0xB8
	case 0xBB:
		return 0xBA
	case 0x9D:
		return 0x9C
	case 0x9E:
		return 0x9D
	case 0x9F:
		return 0x9E
	case 0xBC:
		return 0xBB
	case 0xDA:
		return 0xD9
	default:
		return op
	}
}

// opcodeNewToOld is the inverse of opcodeOldToNew. OpCompare has no single
// old opcode; the comparison encoder writes 0x10 + kind itself.
func opcodeNewToOld(op uint8) uint8 {
	switch op {
	case 0x07:
		return 0x03
	case 0x08:
		return 0x04
	case 0x09:
		return 0x05
	case 0x0A:
		return 0x06
	case 0x0B:
		return 0x07
	case 0x0C:
		return 0x08
	case 0x0D:
		return 0x09
	case 0x0E:
		return 0x0A
	case 0x0F:
		return 0x0B
	case 0x10:
		return 0x0C
	case 0x11:
		return 0x0D
	case 0x12:
		return 0x0E
	case 0x13:
		return 0x0F
	case 0x14:
		return 0x10
	case 0x15:
		return 0 // handled by the comparison encoder
	case 0x45:
		return 0x41
	case 0x84:
		return 0xC0
	case 0x86:
		return 0x82
	case 0x9C:
		return 0x9D
	case 0x9D:
		return 0x9E
	case 0x9E:
		return 0x9F
	case 0xB6:
		return 0xB7
	case 0xB7:
		return 0xB8
	case 0xB8:
		return 0xB9
	case 0xBA:
		return 0xBB
	case 0xBB:
		return 0xBC
	case 0xD9:
		return 0xDA
	case 0xC1, 0xC2, 0xC3:
		return 0xC0
	default:
		return op
	}
}

// A DataType is the low-nibble instruction type code.
type DataType uint8

const (
	TypeDouble   DataType = 0
	TypeInt32    DataType = 2
	TypeInt64    DataType = 3
	TypeBoolean  DataType = 4
	TypeVariable DataType = 5
	TypeString   DataType = 6
	TypeInt16    DataType = 15
)

func dataTypeFrom(b uint8) (DataType, error) {
	switch DataType(b) {
	case TypeDouble, TypeInt32, TypeInt64, TypeBoolean, TypeVariable, TypeString, TypeInt16:
		return DataType(b), nil
	}
	return 0, &InvalidDataTypeError{Byte: b}
}

var dataTypeNames = map[DataType]string{
	TypeDouble:   "double",
	TypeInt32:    "int32",
	TypeInt64:    "int64",
	TypeBoolean:  "bool",
	TypeVariable: "var",
	TypeString:   "string",
	TypeInt16:    "int16",
}

func (t DataType) String() string {
	if name, ok := dataTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("illegal type (%d)", uint8(t))
}

// A ComparisonKind is the b1 field of a comparison instruction.
type ComparisonKind uint8

const (
	CmpLT ComparisonKind = 1
	CmpLE ComparisonKind = 2
	CmpEQ ComparisonKind = 3
	CmpNE ComparisonKind = 4
	CmpGE ComparisonKind = 5
	CmpGT ComparisonKind = 6
)

func comparisonFrom(b uint8) (ComparisonKind, error) {
	if b < 1 || b > 6 {
		return 0, &InvalidComparisonError{Byte: b}
	}
	return ComparisonKind(b), nil
}

var comparisonNames = [...]string{CmpLT: "lt", CmpLE: "le", CmpEQ: "eq", CmpNE: "ne", CmpGE: "ge", CmpGT: "gt"}

func (c ComparisonKind) String() string {
	if int(c) < len(comparisonNames) && comparisonNames[c] != "" {
		return comparisonNames[c]
	}
	return fmt.Sprintf("illegal comparison (%d)", uint8(c))
}

// A VariableKind is the high five bits of a variable reference word, read
// through the 0xF8 mask on its top byte. The six codes below are the valid
// ones.
type VariableKind uint8

const (
	VarKindArray       VariableKind = 0x00
	VarKindArrayPushAF VariableKind = 0x10
	VarKindStackTop    VariableKind = 0x80
	VarKindArrayPopAF  VariableKind = 0x90
	VarKindNormal      VariableKind = 0xA0
	VarKindInstance    VariableKind = 0xE0
)

func variableKindFrom(b uint8) (VariableKind, error) {
	switch VariableKind(b) {
	case VarKindArray, VarKindArrayPushAF, VarKindStackTop, VarKindArrayPopAF, VarKindNormal, VarKindInstance:
		return VariableKind(b), nil
	}
	return 0, &InvalidVariableKindError{Byte: b}
}

var variableKindNames = map[VariableKind]string{
	VarKindArray:       "array",
	VarKindArrayPushAF: "arraypushaf",
	VarKindStackTop:    "stacktop",
	VarKindArrayPopAF:  "arraypopaf",
	VarKindNormal:      "normal",
	VarKindInstance:    "instance",
}

func (k VariableKind) String() string {
	if name, ok := variableKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("illegal variable kind (0x%02X)", uint8(k))
}

// An ExtendedKind is the signed-16 selector of the extended ("break")
// instruction family.
type ExtendedKind int16

const (
	ExtCheckIndex     ExtendedKind = -1
	ExtPushArrayFinal ExtendedKind = -2
	ExtPopArrayFinal  ExtendedKind = -3
	ExtPushArrayContainer ExtendedKind = -4
	ExtSetArrayOwner  ExtendedKind = -5
	ExtHasStaticInit  ExtendedKind = -6
	ExtSetStaticInit  ExtendedKind = -7
	ExtSaveArrayRef   ExtendedKind = -8
	ExtRestoreArrayRef ExtendedKind = -9
	ExtIsNullish      ExtendedKind = -10
	ExtPushReference  ExtendedKind = -11
)

var extendedNames = map[ExtendedKind]string{
	ExtCheckIndex:         "chkindex",
	ExtPushArrayFinal:     "pushaf",
	ExtPopArrayFinal:      "popaf",
	ExtPushArrayContainer: "pushac",
	ExtSetArrayOwner:      "setowner",
	ExtHasStaticInit:      "isstaticok",
	ExtSetStaticInit:      "setstatic",
	ExtSaveArrayRef:       "savearef",
	ExtRestoreArrayRef:    "restorearef",
	ExtIsNullish:          "isnullish",
	ExtPushReference:      "pushref",
}

func (k ExtendedKind) String() string {
	if name, ok := extendedNames[k]; ok {
		return name
	}
	return fmt.Sprintf("illegal extended kind (%d)", int16(k))
}
