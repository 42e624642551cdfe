// Package asm implements a human-readable/writable form of decoded code
// entries. This is mostly to support inspecting and testing the bytecode
// codec without shipping whole data.win files around. A disassembler is
// also implemented.
//
// The assembly format looks like this (indentation and spacing is
// arbitrary, one instruction per line):
//
//	code: scr_attack                   # required, one per entry
//		push int16 5
//		push var normal self hp          # kind, instance, variable name
//		add var int16
//		pop var var normal self hp
//		call scr_hit 1
//		b -3                             # branch offsets in instruction words
//		exit
//
// Instance operands are one of: undefined, self, other, all, none, global,
// builtin, local, stacktop, argument, static, obj:<id>, room:<id>.
package asm

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gmcore/gmdata/gm"
)

// Asm loads a code entry's instructions from their assembler textual
// format, resolving names against (and appending to) the data aggregate.
func Asm(data *gm.Data, b []byte) (*gm.Code, error) {
	a := asm{s: bufio.NewScanner(bytes.NewReader(b)), data: data}

	fields := a.next()
	if a.err == nil && (len(fields) < 2 || !strings.EqualFold(fields[0], "code:")) {
		a.err = errors.New("expected code section")
	}
	if a.err != nil {
		return nil, a.err
	}
	code := &gm.Code{Name: a.internString(fields[1])}

	for fields = a.next(); a.err == nil && len(fields) > 0; fields = a.next() {
		ins := a.instruction(fields)
		if a.err != nil {
			break
		}
		code.Instructions = append(code.Instructions, ins)
	}
	return code, a.err
}

type asm struct {
	s       *bufio.Scanner
	rawLine string
	data    *gm.Data
	err     error
}

func (a *asm) instruction(fields []string) gm.Instruction {
	op := strings.ToLower(fields[0])
	switch op {
	case "conv", "mul", "div", "rem", "mod", "add", "sub", "and", "or", "xor", "shl", "shr":
		if !a.arity(fields, 3) {
			return nil
		}
		return gm.Binary{Op: binaryOps[op], Left: a.dataType(fields[1]), Right: a.dataType(fields[2])}
	case "neg", "not":
		if !a.arity(fields, 2) {
			return nil
		}
		o := gm.OpNegate
		if op == "not" {
			o = gm.OpNot
		}
		return gm.Unary{Op: o, Type: a.dataType(fields[1])}
	case "cmp":
		if !a.arity(fields, 4) {
			return nil
		}
		return gm.Compare{Comparison: a.comparison(fields[1]), Left: a.dataType(fields[2]), Right: a.dataType(fields[3])}
	case "pop":
		if !a.arity(fields, 6) {
			return nil
		}
		return gm.Pop{
			Type1: a.dataType(fields[1]),
			Type2: a.dataType(fields[2]),
			Dest:  a.variable(fields[3], fields[4], fields[5]),
		}
	case "popswap":
		if !a.arity(fields, 2) {
			return nil
		}
		switch fields[1] {
		case "stack":
			return gm.PopSwap{}
		case "array":
			return gm.PopSwap{IsArray: true}
		}
		a.err = fmt.Errorf("invalid popswap variant: %s", fields[1])
		return nil
	case "dup":
		if !a.arity(fields, 3) {
			return nil
		}
		return gm.Duplicate{Type: a.dataType(fields[1]), Size: uint8(a.uint(fields[2]))}
	case "dupswap":
		if !a.arity(fields, 4) {
			return nil
		}
		return gm.DuplicateSwap{Type: a.dataType(fields[1]), Size1: uint8(a.uint(fields[2])), Size2: uint8(a.uint(fields[3]))}
	case "ret":
		return gm.Return{}
	case "exit":
		return gm.Exit{}
	case "popz":
		if !a.arity(fields, 2) {
			return nil
		}
		return gm.PopDiscard{Type: a.dataType(fields[1])}
	case "b", "bt", "bf", "pushenv", "popenv":
		if !a.arity(fields, 2) {
			return nil
		}
		return gm.Branch{Op: branchOps[op], Offset: int32(a.int(fields[1]))}
	case "popenvexit":
		return gm.PopEnvExit{}
	case "push":
		return gm.Push{Value: a.codeValue(fields[1:])}
	case "pushloc", "pushglb", "pushbltn":
		if !a.arity(fields, 4) {
			return nil
		}
		return gm.PushVar{Op: pushOps[op], Variable: a.variable(fields[1], fields[2], fields[3])}
	case "pushi":
		if !a.arity(fields, 2) {
			return nil
		}
		return gm.PushImmediate{Value: int16(a.int(fields[1]))}
	case "call":
		if !a.arity(fields, 3) {
			return nil
		}
		return gm.Call{Function: a.function(fields[1]), Args: uint16(a.uint(fields[2]))}
	case "callv":
		if !a.arity(fields, 2) {
			return nil
		}
		return gm.CallVariable{Args: uint16(a.uint(fields[1]))}
	case "chkindex", "pushaf", "popaf", "pushac", "setowner", "isstaticok",
		"setstatic", "savearef", "restorearef", "isnullish":
		return gm.Extended{Kind: extendedKinds[op]}
	case "pushref":
		return a.pushRef(fields[1:])
	}
	a.err = fmt.Errorf("invalid opcode: %s", fields[0])
	return nil
}

func (a *asm) pushRef(fields []string) gm.Instruction {
	if a.err != nil {
		return nil
	}
	if len(fields) != 2 {
		a.err = fmt.Errorf("expected asset kind and value for pushref, got %d fields", len(fields))
		return nil
	}
	if fields[0] == "func" {
		return gm.PushReference{Asset: gm.AssetReference{Kind: gm.AssetFunction, Function: a.function(fields[1])}}
	}
	for kind, name := range assetKindNames {
		if name == fields[0] {
			if kind == gm.AssetRoomInstance {
				return gm.PushReference{Asset: gm.AssetReference{Kind: kind, InstanceID: int32(a.int(fields[1]))}}
			}
			return gm.PushReference{Asset: gm.AssetReference{Kind: kind, Index: uint32(a.uint(fields[1]))}}
		}
	}
	a.err = fmt.Errorf("invalid asset kind: %s", fields[0])
	return nil
}

func (a *asm) codeValue(fields []string) gm.CodeValue {
	if a.err != nil {
		return nil
	}
	if len(fields) < 2 {
		a.err = fmt.Errorf("expected type and value for push, got %d fields", len(fields))
		return nil
	}
	switch fields[0] {
	case "int16":
		return gm.Int16Value(a.int(fields[1]))
	case "int32":
		return gm.Int32Value(a.int(fields[1]))
	case "int64":
		return gm.Int64Value(a.int(fields[1]))
	case "double":
		f, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			a.err = fmt.Errorf("invalid float: %s: %w", fields[1], err)
			return nil
		}
		return gm.DoubleValue(f)
	case "bool":
		switch fields[1] {
		case "true":
			return gm.BooleanValue(true)
		case "false":
			return gm.BooleanValue(false)
		}
		a.err = fmt.Errorf("invalid boolean: %s", fields[1])
		return nil
	case "string":
		// The quoted value may contain whitespace; take it from the raw line.
		idx := strings.Index(a.rawLine, `"`)
		if idx < 0 {
			a.err = fmt.Errorf("expected quoted string value: %s", a.rawLine)
			return nil
		}
		qs, err := strconv.QuotedPrefix(a.rawLine[idx:])
		if err != nil {
			a.err = fmt.Errorf("invalid string: %q: %w", a.rawLine[idx:], err)
			return nil
		}
		s, err := strconv.Unquote(qs)
		if err != nil {
			a.err = fmt.Errorf("invalid string: %q: %w", qs, err)
			return nil
		}
		return gm.StringValue{String: a.internString(s)}
	case "var":
		if len(fields) != 4 {
			a.err = fmt.Errorf("expected kind, instance and name for push var, got %d fields", len(fields))
			return nil
		}
		return gm.VariableValue{Operand: a.variable(fields[1], fields[2], fields[3])}
	case "func":
		return gm.FunctionValue{Function: a.function(fields[1])}
	}
	a.err = fmt.Errorf("invalid push value type: %s", fields[0])
	return nil
}

func (a *asm) variable(kind, instance, name string) gm.VariableOperand {
	if a.err != nil {
		return gm.VariableOperand{}
	}
	var op gm.VariableOperand
	op.Kind = a.variableKind(kind)
	op.Instance = a.instanceType(instance)

	for i := range a.data.Variables {
		s, err := a.data.ResolveString(a.data.Variables[i].Name)
		if err == nil && s == name {
			op.Variable = gm.MakeRef[gm.Variable](uint32(i))
			return op
		}
	}
	a.data.Variables = append(a.data.Variables, gm.Variable{Name: a.internString(name)})
	op.Variable = gm.MakeRef[gm.Variable](uint32(len(a.data.Variables) - 1))
	return op
}

func (a *asm) function(name string) gm.Ref[gm.Function] {
	if a.err != nil {
		return gm.Ref[gm.Function]{}
	}
	for i := range a.data.Functions {
		s, err := a.data.ResolveString(a.data.Functions[i].Name)
		if err == nil && s == name {
			return gm.MakeRef[gm.Function](uint32(i))
		}
	}
	a.data.Functions = append(a.data.Functions, gm.Function{Name: a.internString(name)})
	return gm.MakeRef[gm.Function](uint32(len(a.data.Functions) - 1))
}

func (a *asm) internString(s string) gm.Ref[string] {
	for i, have := range a.data.Strings {
		if have == s {
			return gm.MakeRef[string](uint32(i))
		}
	}
	return a.data.MakeString(s)
}

func (a *asm) instanceType(s string) gm.InstanceType {
	if a.err != nil {
		return gm.InstanceType{}
	}
	if id, ok := strings.CutPrefix(s, "obj:"); ok {
		return gm.InstanceType{Kind: gm.InstSelf, Object: gm.MakeRef[gm.GameObject](uint32(a.uint(id))), HasObject: true}
	}
	if id, ok := strings.CutPrefix(s, "room:"); ok {
		return gm.InstanceType{Kind: gm.InstRoomInstance, RoomID: int16(a.int(id))}
	}
	for kind, name := range instanceKindNames {
		if name == s {
			return gm.InstanceType{Kind: kind}
		}
	}
	a.err = fmt.Errorf("invalid instance type: %s", s)
	return gm.InstanceType{}
}

func (a *asm) variableKind(s string) gm.VariableKind {
	if a.err != nil {
		return 0
	}
	for kind, name := range variableKindNames {
		if name == s {
			return kind
		}
	}
	a.err = fmt.Errorf("invalid variable kind: %s", s)
	return 0
}

func (a *asm) dataType(s string) gm.DataType {
	if a.err != nil {
		return 0
	}
	for t, name := range dataTypeNames {
		if name == s {
			return t
		}
	}
	a.err = fmt.Errorf("invalid data type: %s", s)
	return 0
}

func (a *asm) comparison(s string) gm.ComparisonKind {
	if a.err != nil {
		return 0
	}
	for k, name := range comparisonNames {
		if name == s {
			return k
		}
	}
	a.err = fmt.Errorf("invalid comparison kind: %s", s)
	return 0
}

func (a *asm) arity(fields []string, n int) bool {
	if a.err != nil {
		return false
	}
	if len(fields) != n {
		a.err = fmt.Errorf("expected %d operands for opcode %s, got %d fields", n-1, fields[0], len(fields))
		return false
	}
	return true
}

func (a *asm) int(s string) int64 {
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		a.err = fmt.Errorf("invalid integer: %s: %w", s, err)
	}
	return i
}

func (a *asm) uint(s string) uint64 {
	u, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		a.err = fmt.Errorf("invalid unsigned integer: %s: %w", s, err)
	}
	return u
}

// returns the fields for the next non-empty, non-comment-only line.
func (a *asm) next() []string {
	a.rawLine = ""
	if a.err != nil {
		return nil
	}
	for a.s.Scan() {
		line := a.s.Text()
		fields := strings.Fields(line)
		if len(fields) != 0 && !strings.HasPrefix(fields[0], "#") {
			// strip comments to make rest of parsing simpler
			for i, fld := range fields {
				if strings.HasPrefix(fld, "#") {
					fields = fields[:i]
					break
				}
			}
			a.rawLine = line
			return fields
		}
	}
	a.err = a.s.Err()
	return nil
}
