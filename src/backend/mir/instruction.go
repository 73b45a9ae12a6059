// Package mir implements the machine-level intermediate representation produced by the
// instruction selector and mutated in place by the register allocator: a per-function list of
// basic blocks holding typed RISC-V machine instructions.
//
// Every Instruction is a single tagged variant (Kind selects the shape, Op selects the specific
// mnemonic within that shape) rather than a class hierarchy, per the design notes: one struct,
// one String method that dispatches on the tag, instead of a virtual toString/getClassId pair.
package mir

import "atomc/src/backend/regfile"

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Kind selects the shape of an Instruction: which fields are meaningful.
type Kind int

// Op identifies the specific mnemonic within a Kind.
type Op int

// Instruction is a single RISC-V machine instruction prior to, or after, register allocation.
//
// Invariant: every virtual Dst is the result of exactly one Instruction (SSA at the machine
// level, before the allocator runs), with one exception: the int-to-float lowering of an FSEQ.S
// flag defines its result once in each of its two arms, which then rejoin. The allocator only
// ever substitutes Dst/Base/Src1/Src2 in place, it never introduces a second definition of the
// same virtual register.
type Instruction struct {
	Kind Kind
	Op   Op

	Dst  *regfile.Register // Destination register, nil if this instruction has no result.
	Base *regfile.Register // Address base for Load/Store, or the register operand of a unary op.
	Src1 *regfile.Register // First operand of Binary, or the stored value of Store.
	Src2 *regfile.Register // Second operand of Binary, when the op takes a register rhs.

	Imm    int  // Signed immediate: load/store offset, I-type immediate, LUI hi20, shift amount.
	HasImm bool // True if Imm (not Src2) supplies the rhs of a Binary, or supplies the value of Imm ops.

	Label string // Global/function symbol or float-literal label referenced by La/Call.

	Target *Block // Branch target for Jump/CondJump.

	CallUses []*regfile.Register // Argument registers read by a Call, recorded for the allocator.
}

// ---------------------
// ----- Constants -----
// ---------------------

const (
	KindLoad Kind = iota
	KindStore
	KindImm
	KindUnary
	KindBinary
	KindJump
	KindCondJump
	KindCall
	KindRet
)

const (
	// Load/Store sub-ops. The doubleword float forms exist solely for saving and restoring
	// callee-saved float registers in the prologue/epilogue.
	OpLw Op = iota
	OpLd
	OpFlw
	OpFld
	OpSw
	OpSd
	OpFsw
	OpFsd

	// Imm sub-ops: Li loads a constant, Lui loads the high 20 bits, La loads a symbol address.
	OpLi
	OpLui
	OpLa

	// Unary sub-ops.
	OpMv
	OpFmvS
	OpFmvWX
	OpSeqz
	OpSnez
	OpFcvtSW
	OpFcvtWS

	// Binary sub-ops (integer).
	OpAdd   // register-register pointer/word add, used for address arithmetic.
	OpSub   // register-register pointer-width sub; no lowering emits it.
	OpAddi  // register-immediate add, used for address arithmetic and the SUB-by-negative-imm pattern.
	OpAddw  // 32-bit register-register add.
	OpAddiw // 32-bit register-immediate add.
	OpSubw  // 32-bit register-register sub.
	OpMulw
	OpDivw
	OpRemw
	OpSlt
	OpSlti
	OpXor
	OpXori
	OpSlli
	OpMul // pointer-sized multiply, used by GEP stride materialization.

	// Binary sub-ops (float).
	OpFaddS
	OpFsubS
	OpFmulS
	OpFdivS
	OpFsltS
	OpFsleS
	OpFseqS

	// CondJump sub-ops.
	OpBeq
	OpBne
	OpBlt
	OpBge
)

// ---------------------
// ----- Functions -----
// ---------------------

// NewLoad returns a load instruction `op dst, imm(base)`.
func NewLoad(op Op, dst, base *regfile.Register, imm int) *Instruction {
	return &Instruction{Kind: KindLoad, Op: op, Dst: dst, Base: base, Imm: imm}
}

// NewStore returns a store instruction `op src1, imm(base)`.
func NewStore(op Op, src1, base *regfile.Register, imm int) *Instruction {
	return &Instruction{Kind: KindStore, Op: op, Src1: src1, Base: base, Imm: imm}
}

// NewLi returns an `li dst, imm` instruction.
func NewLi(dst *regfile.Register, imm int) *Instruction {
	return &Instruction{Kind: KindImm, Op: OpLi, Dst: dst, Imm: imm, HasImm: true}
}

// NewLui returns a `lui dst, imm` instruction.
func NewLui(dst *regfile.Register, imm int) *Instruction {
	return &Instruction{Kind: KindImm, Op: OpLui, Dst: dst, Imm: imm, HasImm: true}
}

// NewLa returns a `la dst, label` instruction.
func NewLa(dst *regfile.Register, label string) *Instruction {
	return &Instruction{Kind: KindImm, Op: OpLa, Dst: dst, Label: label}
}

// NewUnary returns a register-to-register unary instruction `op dst, src`.
func NewUnary(op Op, dst, src *regfile.Register) *Instruction {
	return &Instruction{Kind: KindUnary, Op: op, Dst: dst, Base: src}
}

// NewBinaryReg returns a register-register binary instruction `op dst, src1, src2`.
func NewBinaryReg(op Op, dst, src1, src2 *regfile.Register) *Instruction {
	return &Instruction{Kind: KindBinary, Op: op, Dst: dst, Src1: src1, Src2: src2}
}

// NewBinaryImm returns a register-immediate binary instruction `op dst, src1, imm`.
func NewBinaryImm(op Op, dst, src1 *regfile.Register, imm int) *Instruction {
	return &Instruction{Kind: KindBinary, Op: op, Dst: dst, Src1: src1, Imm: imm, HasImm: true}
}

// NewJump returns an unconditional jump to target.
func NewJump(target *Block) *Instruction {
	return &Instruction{Kind: KindJump, Target: target}
}

// NewCondJump returns a conditional branch `op src1, src2, target`.
func NewCondJump(op Op, src1, src2 *regfile.Register, target *Block) *Instruction {
	return &Instruction{Kind: KindCondJump, Op: op, Src1: src1, Src2: src2, Target: target}
}

// NewCall returns a call instruction to the symbol name. A call never defines a register
// directly -- the ABI places a result in a0/fa0, and the selector follows up with an explicit
// Unary Mv/FmvS into a fresh virtual register.
func NewCall(name string) *Instruction {
	return &Instruction{Kind: KindCall, Label: name}
}

// NewRet returns the function return instruction.
func NewRet() *Instruction {
	return &Instruction{Kind: KindRet}
}

// Defs returns the register defined by this instruction, or nil.
func (i *Instruction) Defs() *regfile.Register {
	return i.Dst
}

// Uses returns every register instruction i reads from, in a stable but otherwise unspecified
// order. Used by liveness analysis in the register allocator.
func (i *Instruction) Uses() []*regfile.Register {
	var uses []*regfile.Register
	switch i.Kind {
	case KindLoad:
		uses = append(uses, i.Base)
	case KindStore:
		uses = append(uses, i.Src1, i.Base)
	case KindUnary:
		if i.Base != nil {
			uses = append(uses, i.Base)
		}
	case KindBinary:
		if i.Src1 != nil {
			uses = append(uses, i.Src1)
		}
		if !i.HasImm && i.Src2 != nil {
			uses = append(uses, i.Src2)
		}
	case KindCondJump:
		uses = append(uses, i.Src1, i.Src2)
	case KindCall:
		uses = append(uses, i.CallUses...)
	case KindRet:
	}
	out := uses[:0]
	for _, r := range uses {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}
