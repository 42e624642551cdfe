package gm

// An InstanceKind classifies the signed-16 instance field of a variable
// reference.
type InstanceKind int8

const (
	InstUndefined InstanceKind = iota
	InstSelf                   // optionally carries a game object reference
	InstRoomInstance           // carries a room instance ID (Instance variable kind)
	InstOther
	InstAll
	InstNone
	InstGlobal
	InstBuiltin
	InstLocal
	InstStackTop
	InstArgument
	InstStatic
)

var instanceKindNames = [...]string{
	InstUndefined:    "undefined",
	InstSelf:         "self",
	InstRoomInstance: "roominstance",
	InstOther:        "other",
	InstAll:          "all",
	InstNone:         "none",
	InstGlobal:       "global",
	InstBuiltin:      "builtin",
	InstLocal:        "local",
	InstStackTop:     "stacktop",
	InstArgument:     "argument",
	InstStatic:       "static",
}

func (k InstanceKind) String() string {
	if int(k) < len(instanceKindNames) {
		return instanceKindNames[k]
	}
	return "illegal instance kind"
}

// GameObject is a resource the core does not decode; refs to it are bare
// indices into the OBJT chunk handled outside the core.
type GameObject struct{}

// An InstanceType is the decoded signed-16 instance field.
type InstanceType struct {
	Kind InstanceKind

	// Object is the referenced game object when Kind is InstSelf and
	// HasObject is set (positive raw values).
	Object    Ref[GameObject]
	HasObject bool

	// RoomID is the room instance ID when Kind is InstRoomInstance.
	RoomID int16
}

// instanceTypeFrom decodes the raw signed-16 instance field for every
// variable kind except Instance.
func instanceTypeFrom(raw int16) (InstanceType, error) {
	switch raw {
	case 0:
		return InstanceType{Kind: InstUndefined}, nil
	case -1:
		return InstanceType{Kind: InstSelf}, nil
	case -2:
		return InstanceType{Kind: InstOther}, nil
	case -3:
		return InstanceType{Kind: InstAll}, nil
	case -4:
		return InstanceType{Kind: InstNone}, nil
	case -5:
		return InstanceType{Kind: InstGlobal}, nil
	case -6:
		return InstanceType{Kind: InstBuiltin}, nil
	case -7:
		return InstanceType{Kind: InstLocal}, nil
	case -9:
		return InstanceType{Kind: InstStackTop}, nil
	case -15:
		return InstanceType{Kind: InstArgument}, nil
	case -16:
		return InstanceType{Kind: InstStatic}, nil
	}
	if raw > 0 {
		return InstanceType{Kind: InstSelf, Object: MakeRef[GameObject](uint32(raw)), HasObject: true}, nil
	}
	return InstanceType{}, &InvalidInstanceTypeError{Value: raw}
}

// rawInstanceType is the encode-side inverse of instanceTypeFrom.
func rawInstanceType(t InstanceType) int16 {
	switch t.Kind {
	case InstUndefined:
		return 0
	case InstSelf:
		if t.HasObject {
			return int16(t.Object.Index)
		}
		return -1
	case InstRoomInstance:
		return t.RoomID
	case InstOther:
		return -2
	case InstAll:
		return -3
	case InstNone:
		return -4
	case InstGlobal:
		return -5
	case InstBuiltin:
		return -6
	case InstLocal:
		return -7
	case InstStackTop:
		return -9
	case InstArgument:
		return -15
	case InstStatic:
		return -16
	}
	return 0
}

// A VariableOperand is a decoded variable reference inside an instruction.
type VariableOperand struct {
	Variable Ref[Variable]
	Kind     VariableKind
	Instance InstanceType

	// IsInt32 marks a variable operand observed in an Int32 slot. The
	// trigger condition is not fully understood; the flag round-trips
	// verbatim.
	IsInt32 bool
}

// A CodeValue is the operand of a Push instruction. Exactly one of the
// concrete types below implements it.
type CodeValue interface {
	isCodeValue()
	// Type returns the data-type nibble the value occupies.
	Type() DataType
}

type Int16Value int16
type Int32Value int32
type Int64Value int64
type DoubleValue float64
type BooleanValue bool

// StringValue references the string table.
type StringValue struct {
	String Ref[string]
}

// VariableValue is a variable operand in a Variable slot.
type VariableValue struct {
	Operand VariableOperand
}

// FunctionValue is a function occurrence in an Int32 slot.
type FunctionValue struct {
	Function Ref[Function]
}

func (Int16Value) isCodeValue()    {}
func (Int32Value) isCodeValue()    {}
func (Int64Value) isCodeValue()    {}
func (DoubleValue) isCodeValue()   {}
func (BooleanValue) isCodeValue()  {}
func (StringValue) isCodeValue()   {}
func (VariableValue) isCodeValue() {}
func (FunctionValue) isCodeValue() {}

func (Int16Value) Type() DataType   { return TypeInt16 }
func (Int32Value) Type() DataType   { return TypeInt32 }
func (Int64Value) Type() DataType   { return TypeInt64 }
func (DoubleValue) Type() DataType  { return TypeDouble }
func (BooleanValue) Type() DataType { return TypeBoolean }
func (StringValue) Type() DataType  { return TypeString }
func (v VariableValue) Type() DataType {
	if v.Operand.IsInt32 {
		return TypeInt32
	}
	return TypeVariable
}
func (FunctionValue) Type() DataType { return TypeInt32 }

// An AssetKind keys a push-asset-reference operand.
type AssetKind uint8

const (
	AssetObject AssetKind = iota
	AssetSprite
	AssetSound
	AssetRoom
	AssetBackground
	AssetPath
	AssetScript
	AssetFont
	AssetTimeline
	AssetShader
	AssetSequence
	AssetAnimCurve
	AssetParticleSystem
	AssetRoomInstance // signed 32-bit room instance ID

	// AssetFunction is not a GameMaker asset kind: it marks a reference
	// written as a function occurrence link instead of a packed word.
	AssetFunction AssetKind = 0xFF
)

var assetKindNames = map[AssetKind]string{
	AssetObject:         "object",
	AssetSprite:         "sprite",
	AssetSound:          "sound",
	AssetRoom:           "room",
	AssetBackground:     "background",
	AssetPath:           "path",
	AssetScript:         "script",
	AssetFont:           "font",
	AssetTimeline:       "timeline",
	AssetShader:         "shader",
	AssetSequence:       "sequence",
	AssetAnimCurve:      "animcurve",
	AssetParticleSystem: "particlesystem",
	AssetRoomInstance:   "roominstance",
	AssetFunction:       "function",
}

func (k AssetKind) String() string {
	if name, ok := assetKindNames[k]; ok {
		return name
	}
	return "illegal asset kind"
}

// An AssetReference is the operand of a push-asset-reference instruction.
// Index is packed into the low 24 bits for ordinary kinds; RoomInstance
// stores a signed 32-bit ID; Function is a function occurrence.
type AssetReference struct {
	Kind       AssetKind
	Index      uint32
	InstanceID int32
	Function   Ref[Function]
}

// An Instruction is one decoded VM instruction. Exactly one of the concrete
// types below implements it; the encoder dispatches by variant.
type Instruction interface {
	isInstruction()
}

// Binary covers the double-typed two-operand opcodes: Convert, Multiply,
// Divide, Remainder, Modulus, Add, Subtract, And, Or, Xor, ShiftLeft,
// ShiftRight. Right is the low nibble (top of stack), Left the high nibble.
type Binary struct {
	Op          Opcode
	Right, Left DataType
}

// Unary covers Negate and Not.
type Unary struct {
	Op   Opcode
	Type DataType
}

type Compare struct {
	Comparison  ComparisonKind
	Right, Left DataType
}

type Pop struct {
	Dest         VariableOperand
	Type1, Type2 DataType
}

// PopSwap is the Pop opcode with an Int16 type1: a stack reorder, not a
// store. The raw instance field distinguishes the stack (5) and array (6)
// variants.
type PopSwap struct {
	IsArray bool
}

type Duplicate struct {
	Type DataType
	Size uint8
}

type DuplicateSwap struct {
	Type         DataType
	Size1, Size2 uint8
}

type Return struct{}
type Exit struct{}

type PopDiscard struct {
	Type DataType
}

// Branch covers the five jump opcodes: OpBranch, OpBranchIf,
// OpBranchUnless, OpPushEnv, OpPopEnv. Offset is in instruction words,
// measured from the start of the jump instruction itself.
type Branch struct {
	Op     Opcode
	Offset int32
}

// PopEnvExit is the PopEnv opcode with the magic 0xF00000 payload.
type PopEnvExit struct{}

type Push struct {
	Value CodeValue
}

// PushVar covers PushLocal, PushGlobal and PushBuiltin, which always carry
// a variable operand.
type PushVar struct {
	Op       Opcode
	Variable VariableOperand
}

type PushImmediate struct {
	Value int16
}

type Call struct {
	Function Ref[Function]
	Args     uint16
}

type CallVariable struct {
	Args uint16
}

// Extended covers the zero-operand extended family selected by a negative
// Int16 kind.
type Extended struct {
	Kind ExtendedKind
}

// PushReference is the extended push-asset-reference form.
type PushReference struct {
	Asset AssetReference
}

func (Binary) isInstruction()        {}
func (Unary) isInstruction()         {}
func (Compare) isInstruction()       {}
func (Pop) isInstruction()           {}
func (PopSwap) isInstruction()       {}
func (Duplicate) isInstruction()     {}
func (DuplicateSwap) isInstruction() {}
func (Return) isInstruction()        {}
func (Exit) isInstruction()          {}
func (PopDiscard) isInstruction()    {}
func (Branch) isInstruction()        {}
func (PopEnvExit) isInstruction()    {}
func (Push) isInstruction()          {}
func (PushVar) isInstruction()       {}
func (PushImmediate) isInstruction() {}
func (Call) isInstruction()         {}
func (CallVariable) isInstruction()  {}
func (Extended) isInstruction()      {}
func (PushReference) isInstruction() {}
