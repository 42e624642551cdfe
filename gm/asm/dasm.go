package asm

import (
	"bytes"
	"fmt"

	"github.com/gmcore/gmdata/gm"
)

// Dasm writes a code entry's instructions to their assembler textual
// format. Asm(Dasm(code)) reproduces the same instruction sequence.
func Dasm(data *gm.Data, code *gm.Code) ([]byte, error) {
	d := dasm{data: data, buf: new(bytes.Buffer)}

	name, err := data.ResolveString(code.Name)
	if err != nil {
		return nil, err
	}
	d.writef("code: %s\n", name)
	if code.B15 != nil && code.B15.HasParent {
		parent, err := data.ResolveCode(code.B15.Parent)
		if err != nil {
			return nil, err
		}
		pname, err := data.ResolveString(parent.Name)
		if err != nil {
			return nil, err
		}
		d.writef("\t# child of %s at offset %d\n", pname, code.B15.Offset)
	}

	for i, ins := range code.Instructions {
		d.instruction(ins)
		if d.err != nil {
			return nil, fmt.Errorf("disassembling instruction #%d: %w", i, d.err)
		}
	}
	return d.buf.Bytes(), d.err
}

type dasm struct {
	data *gm.Data
	buf  *bytes.Buffer
	err  error
}

func (d *dasm) instruction(ins gm.Instruction) {
	switch ins := ins.(type) {
	case gm.Binary:
		d.writef("\t%s %s %s\n", binaryNames[ins.Op], dataTypeNames[ins.Left], dataTypeNames[ins.Right])
	case gm.Unary:
		name := "neg"
		if ins.Op == gm.OpNot {
			name = "not"
		}
		d.writef("\t%s %s\n", name, dataTypeNames[ins.Type])
	case gm.Compare:
		d.writef("\tcmp %s %s %s\n", comparisonNames[ins.Comparison], dataTypeNames[ins.Left], dataTypeNames[ins.Right])
	case gm.Pop:
		d.writef("\tpop %s %s %s\n", dataTypeNames[ins.Type1], dataTypeNames[ins.Type2], d.variable(ins.Dest))
	case gm.PopSwap:
		if ins.IsArray {
			d.write("\tpopswap array\n")
		} else {
			d.write("\tpopswap stack\n")
		}
	case gm.Duplicate:
		d.writef("\tdup %s %d\n", dataTypeNames[ins.Type], ins.Size)
	case gm.DuplicateSwap:
		d.writef("\tdupswap %s %d %d\n", dataTypeNames[ins.Type], ins.Size1, ins.Size2)
	case gm.Return:
		d.write("\tret\n")
	case gm.Exit:
		d.write("\texit\n")
	case gm.PopDiscard:
		d.writef("\tpopz %s\n", dataTypeNames[ins.Type])
	case gm.Branch:
		d.writef("\t%s %d\n", branchNames[ins.Op], ins.Offset)
	case gm.PopEnvExit:
		d.write("\tpopenvexit\n")
	case gm.Push:
		d.writef("\tpush %s\n", d.codeValue(ins.Value))
	case gm.PushVar:
		d.writef("\t%s %s\n", pushNames[ins.Op], d.variable(ins.Variable))
	case gm.PushImmediate:
		d.writef("\tpushi %d\n", ins.Value)
	case gm.Call:
		d.writef("\tcall %s %d\n", d.function(ins.Function), ins.Args)
	case gm.CallVariable:
		d.writef("\tcallv %d\n", ins.Args)
	case gm.Extended:
		d.writef("\t%s\n", ins.Kind)
	case gm.PushReference:
		d.writef("\tpushref %s\n", d.asset(ins.Asset))
	default:
		d.err = fmt.Errorf("unsupported instruction variant %T", ins)
	}
}

func (d *dasm) codeValue(v gm.CodeValue) string {
	switch v := v.(type) {
	case gm.Int16Value:
		return fmt.Sprintf("int16 %d", int16(v))
	case gm.Int32Value:
		return fmt.Sprintf("int32 %d", int32(v))
	case gm.Int64Value:
		return fmt.Sprintf("int64 %d", int64(v))
	case gm.DoubleValue:
		return fmt.Sprintf("double %g", float64(v))
	case gm.BooleanValue:
		return fmt.Sprintf("bool %t", bool(v))
	case gm.StringValue:
		s, err := d.data.ResolveString(v.String)
		if err != nil {
			d.err = err
			return ""
		}
		return fmt.Sprintf("string %q", s)
	case gm.VariableValue:
		return "var " + d.variable(v.Operand)
	case gm.FunctionValue:
		return "func " + d.function(v.Function)
	}
	d.err = fmt.Errorf("unsupported push value variant %T", v)
	return ""
}

func (d *dasm) variable(op gm.VariableOperand) string {
	v, err := d.data.ResolveVariable(op.Variable)
	if err != nil {
		d.err = err
		return ""
	}
	name, err := d.data.ResolveString(v.Name)
	if err != nil {
		d.err = err
		return ""
	}
	return fmt.Sprintf("%s %s %s", variableKindNames[op.Kind], d.instance(op.Instance), name)
}

func (d *dasm) instance(t gm.InstanceType) string {
	switch {
	case t.Kind == gm.InstSelf && t.HasObject:
		return fmt.Sprintf("obj:%d", t.Object.Index)
	case t.Kind == gm.InstRoomInstance:
		return fmt.Sprintf("room:%d", t.RoomID)
	}
	return instanceKindNames[t.Kind]
}

func (d *dasm) function(ref gm.Ref[gm.Function]) string {
	fn, err := d.data.ResolveFunction(ref)
	if err != nil {
		d.err = err
		return ""
	}
	name, err := d.data.ResolveString(fn.Name)
	if err != nil {
		d.err = err
		return ""
	}
	return name
}

func (d *dasm) asset(a gm.AssetReference) string {
	switch a.Kind {
	case gm.AssetFunction:
		return "func " + d.function(a.Function)
	case gm.AssetRoomInstance:
		return fmt.Sprintf("roominstance %d", a.InstanceID)
	}
	return fmt.Sprintf("%s %d", assetKindNames[a.Kind], a.Index)
}

func (d *dasm) writef(s string, args ...any) {
	d.write(fmt.Sprintf(s, args...))
}

func (d *dasm) write(s string) {
	if d.err != nil {
		return
	}
	_, d.err = d.buf.WriteString(s)
}
