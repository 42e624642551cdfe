package gm

import "fmt"

// A DanglingRefError reports a Ref whose index is outside its pool.
type DanglingRefError struct {
	Kind  string
	Index uint32
	Len   int
}

func (e *DanglingRefError) Error() string {
	return fmt.Sprintf("dangling %s reference: index %d out of range for pool of length %d", e.Kind, e.Index, e.Len)
}

// An UnsupportedBytecodeError reports a bytecode version outside 14..17.
type UnsupportedBytecodeError struct {
	Got uint8
}

func (e *UnsupportedBytecodeError) Error() string {
	return fmt.Sprintf("unsupported bytecode version %d", e.Got)
}

// An UnsupportedVersionError reports a GameMaker major version other than
// 1, 2 or a year-numbered release from 2022 on.
type UnsupportedVersionError struct {
	Got string
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("unsupported GameMaker version %s", e.Got)
}

type InvalidOpcodeError struct {
	Byte uint8
}

func (e *InvalidOpcodeError) Error() string {
	return fmt.Sprintf("invalid instruction opcode %d (0x%02X)", e.Byte, e.Byte)
}

type InvalidDataTypeError struct {
	Byte uint8
}

func (e *InvalidDataTypeError) Error() string {
	return fmt.Sprintf("invalid data type %d (0x%X)", e.Byte, e.Byte)
}

type InvalidComparisonError struct {
	Byte uint8
}

func (e *InvalidComparisonError) Error() string {
	return fmt.Sprintf("invalid comparison kind %d", e.Byte)
}

type InvalidVariableKindError struct {
	Byte uint8
}

func (e *InvalidVariableKindError) Error() string {
	return fmt.Sprintf("invalid variable kind 0x%02X", e.Byte)
}

type InvalidInstanceTypeError struct {
	Value int16
}

func (e *InvalidInstanceTypeError) Error() string {
	return fmt.Sprintf("invalid instance type %d (0x%04X)", e.Value, uint16(e.Value))
}

// An OccurrenceMissError reports an instruction operand position that the
// VARI/FUNC occurrence maps do not name.
type OccurrenceMissError struct {
	Pos  uint32
	Kind string // "variable" or "function"
	Len  int
}

func (e *OccurrenceMissError) Error() string {
	return fmt.Sprintf("could not find any %s with absolute occurrence position %d in map with length %d",
		e.Kind, e.Pos, e.Len)
}

// A StringIndexError reports a push-string operand whose index is outside
// the string table.
type StringIndexError struct {
	Index uint32
	Len   int
}

func (e *StringIndexError) Error() string {
	return fmt.Sprintf("string ID is out of range: %d >= %d", e.Index, e.Len)
}

// A ChildBeforeParentError reports a child code entry serialized before any
// root entry whose stream it could share.
type ChildBeforeParentError struct {
	Name string
}

func (e *ChildBeforeParentError) Error() string {
	return fmt.Sprintf("code entry %q is a child entry with no preceding root entry", e.Name)
}
