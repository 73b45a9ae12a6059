package atomir

import (
	"fmt"
	"strings"
)

// String renders m as a debug-only textual dump. No CLI flag prints it. It is not assembly and
// not meant to be parsed back.
func (m *Module) String() string {
	sb := strings.Builder{}
	for _, g := range m.Globals {
		fmt.Fprintf(&sb, "global %s %s\n", g.Typ, g.Name)
	}
	for _, f := range m.Functions {
		sb.WriteString(f.String())
	}
	return sb.String()
}

// String renders f as a debug-only textual dump of its blocks and instructions.
func (f *Function) String() string {
	sb := strings.Builder{}
	fmt.Fprintf(&sb, "func %s(%d params) {\n", f.Name, len(f.Params))
	for _, b := range f.Blocks {
		fmt.Fprintf(&sb, "%s:\n", b.Name)
		for _, inst := range b.Insts {
			fmt.Fprintf(&sb, "  %s\n", inst.String())
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}

// String renders inst as a one-line debug dump naming its opcode.
func (inst *Instruction) String() string {
	switch inst.Op {
	case OpAlloc:
		return fmt.Sprintf("alloc %s", inst.Result.Typ)
	case OpStore:
		return "store"
	case OpLoad:
		return "load"
	case OpGetElementPtr:
		return "getelementptr"
	case OpBitCast:
		return "bitcast"
	case OpCall:
		return fmt.Sprintf("call %s", inst.FuncName)
	case OpRet:
		return "ret"
	case OpBinary:
		return "binary"
	case OpItoF:
		return "itof"
	case OpFtoI:
		return "ftoi"
	case OpJump:
		return fmt.Sprintf("jump %s", inst.Target.Name)
	case OpCondJump:
		return "condjump"
	default:
		return "?"
	}
}
