package mir

import (
	"strings"

	"atomc/src/util/xtoa"
)

// ---------------------
// ----- Constants -----
// ---------------------

// mnemonic gives the assembler text for every Op. Load/Store/Binary ops that have both a
// register and immediate form (e.g. add/addi) are kept as distinct Op values so the mnemonic
// table stays a flat lookup instead of a conditional.
var mnemonic = map[Op]string{
	OpLw: "lw", OpLd: "ld", OpFlw: "flw", OpFld: "fld",
	OpSw: "sw", OpSd: "sd", OpFsw: "fsw", OpFsd: "fsd",
	OpLi: "li", OpLui: "lui", OpLa: "la",
	OpMv: "mv", OpFmvS: "fmv.s", OpFmvWX: "fmv.w.x",
	OpSeqz: "seqz", OpSnez: "snez",
	OpFcvtSW: "fcvt.s.w", OpFcvtWS: "fcvt.w.s",
	OpAdd: "add", OpSub: "sub", OpAddi: "addi", OpAddw: "addw", OpAddiw: "addiw", OpSubw: "subw",
	OpMulw: "mulw", OpDivw: "divw", OpRemw: "remw",
	OpSlt: "slt", OpSlti: "slti", OpXor: "xor", OpXori: "xori", OpSlli: "slli", OpMul: "mul",
	OpFaddS: "fadd.s", OpFsubS: "fsub.s", OpFmulS: "fmul.s", OpFdivS: "fdiv.s",
	OpFsltS: "fslt.s", OpFsleS: "fsle.s", OpFseqS: "fseq.s",
	OpBeq: "beq", OpBne: "bne", OpBlt: "blt", OpBge: "bge",
}

// ---------------------
// ----- Functions -----
// ---------------------

// String renders inst as a single line of AT&T-style RISC-V assembly text (no leading tab, no
// trailing newline -- callers format the surrounding block).
func (inst *Instruction) String() string {
	m := mnemonic[inst.Op]
	switch inst.Kind {
	case KindLoad:
		return m + " " + inst.Dst.String() + ", " + xtoa.ItoA(inst.Imm) + "(" + inst.Base.String() + ")"
	case KindStore:
		return m + " " + inst.Src1.String() + ", " + xtoa.ItoA(inst.Imm) + "(" + inst.Base.String() + ")"
	case KindImm:
		switch inst.Op {
		case OpLa:
			return "la " + inst.Dst.String() + ", " + inst.Label
		default:
			return m + " " + inst.Dst.String() + ", " + xtoa.ItoA(inst.Imm)
		}
	case KindUnary:
		return m + " " + inst.Dst.String() + ", " + inst.Base.String()
	case KindBinary:
		if inst.HasImm {
			return m + " " + inst.Dst.String() + ", " + inst.Src1.String() + ", " + xtoa.ItoA(inst.Imm)
		}
		return m + " " + inst.Dst.String() + ", " + inst.Src1.String() + ", " + inst.Src2.String()
	case KindJump:
		return "j " + inst.Target.Label()
	case KindCondJump:
		return m + " " + inst.Src1.String() + ", " + inst.Src2.String() + ", " + inst.Target.Label()
	case KindCall:
		return "call " + inst.Label
	case KindRet:
		return "ret"
	}
	return "<invalid instruction>"
}

// String renders b as a labelled sequence of tab-indented instruction lines.
func (b *Block) String() string {
	sb := strings.Builder{}
	sb.WriteString(b.label)
	sb.WriteString(":\n")
	for _, inst := range b.insts {
		sb.WriteString("\t")
		sb.WriteString(inst.String())
		sb.WriteString("\n")
	}
	return sb.String()
}

// String renders the whole function: the .globl and .type directives, the labelled blocks, and
// the trailing .size directive.
func (f *Function) String() string {
	sb := strings.Builder{}
	sb.WriteString("\t.globl\t")
	sb.WriteString(f.Name)
	sb.WriteString("\n")
	sb.WriteString("\t.type\t")
	sb.WriteString(f.Name)
	sb.WriteString(", @function\n")
	sb.WriteString(f.Name)
	sb.WriteString(":\n")
	for _, b := range f.Blocks {
		sb.WriteString(b.String())
	}
	sb.WriteString("\t.size\t")
	sb.WriteString(f.Name)
	sb.WriteString(", .-")
	sb.WriteString(f.Name)
	sb.WriteString("\n")
	return sb.String()
}
