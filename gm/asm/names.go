package asm

import "github.com/gmcore/gmdata/gm"

var binaryOps = map[string]gm.Opcode{
	"conv": gm.OpConvert,
	"mul":  gm.OpMultiply,
	"div":  gm.OpDivide,
	"rem":  gm.OpRemainder,
	"mod":  gm.OpModulus,
	"add":  gm.OpAdd,
	"sub":  gm.OpSubtract,
	"and":  gm.OpAnd,
	"or":   gm.OpOr,
	"xor":  gm.OpXor,
	"shl":  gm.OpShiftLeft,
	"shr":  gm.OpShiftRight,
}

var binaryNames = func() map[gm.Opcode]string {
	m := make(map[gm.Opcode]string, len(binaryOps))
	for name, op := range binaryOps {
		m[op] = name
	}
	return m
}()

var branchOps = map[string]gm.Opcode{
	"b":       gm.OpBranch,
	"bt":      gm.OpBranchIf,
	"bf":      gm.OpBranchUnless,
	"pushenv": gm.OpPushEnv,
	"popenv":  gm.OpPopEnv,
}

var branchNames = func() map[gm.Opcode]string {
	m := make(map[gm.Opcode]string, len(branchOps))
	for name, op := range branchOps {
		m[op] = name
	}
	return m
}()

var pushOps = map[string]gm.Opcode{
	"pushloc":  gm.OpPushLocal,
	"pushglb":  gm.OpPushGlobal,
	"pushbltn": gm.OpPushBuiltin,
}

var pushNames = func() map[gm.Opcode]string {
	m := make(map[gm.Opcode]string, len(pushOps))
	for name, op := range pushOps {
		m[op] = name
	}
	return m
}()

var extendedKinds = map[string]gm.ExtendedKind{
	"chkindex":    gm.ExtCheckIndex,
	"pushaf":      gm.ExtPushArrayFinal,
	"popaf":       gm.ExtPopArrayFinal,
	"pushac":      gm.ExtPushArrayContainer,
	"setowner":    gm.ExtSetArrayOwner,
	"isstaticok":  gm.ExtHasStaticInit,
	"setstatic":   gm.ExtSetStaticInit,
	"savearef":    gm.ExtSaveArrayRef,
	"restorearef": gm.ExtRestoreArrayRef,
	"isnullish":   gm.ExtIsNullish,
}

var dataTypeNames = map[gm.DataType]string{
	gm.TypeDouble:   "double",
	gm.TypeInt32:    "int32",
	gm.TypeInt64:    "int64",
	gm.TypeBoolean:  "bool",
	gm.TypeVariable: "var",
	gm.TypeString:   "string",
	gm.TypeInt16:    "int16",
}

var comparisonNames = map[gm.ComparisonKind]string{
	gm.CmpLT: "lt",
	gm.CmpLE: "le",
	gm.CmpEQ: "eq",
	gm.CmpNE: "ne",
	gm.CmpGE: "ge",
	gm.CmpGT: "gt",
}

var variableKindNames = map[gm.VariableKind]string{
	gm.VarKindArray:       "array",
	gm.VarKindArrayPushAF: "arraypushaf",
	gm.VarKindStackTop:    "stacktop",
	gm.VarKindArrayPopAF:  "arraypopaf",
	gm.VarKindNormal:      "normal",
	gm.VarKindInstance:    "instance",
}

var instanceKindNames = map[gm.InstanceKind]string{
	gm.InstUndefined: "undefined",
	gm.InstSelf:      "self",
	gm.InstOther:     "other",
	gm.InstAll:       "all",
	gm.InstNone:      "none",
	gm.InstGlobal:    "global",
	gm.InstBuiltin:   "builtin",
	gm.InstLocal:     "local",
	gm.InstStackTop:  "stacktop",
	gm.InstArgument:  "argument",
	gm.InstStatic:    "static",
}

var assetKindNames = map[gm.AssetKind]string{
	gm.AssetObject:         "object",
	gm.AssetSprite:         "sprite",
	gm.AssetSound:          "sound",
	gm.AssetRoom:           "room",
	gm.AssetBackground:     "background",
	gm.AssetPath:           "path",
	gm.AssetScript:         "script",
	gm.AssetFont:           "font",
	gm.AssetTimeline:       "timeline",
	gm.AssetShader:         "shader",
	gm.AssetSequence:       "sequence",
	gm.AssetAnimCurve:      "animcurve",
	gm.AssetParticleSystem: "particlesystem",
	gm.AssetRoomInstance:   "roominstance",
}
