package selector

import (
	"atomc/src/atomir"
	"atomc/src/backend/mir"
	"atomc/src/backend/regfile"
)

// lowerCondJump lowers a conditional branch using a two-hop pattern that works around RISC-V's
// limited conditional-branch displacement: RV64 B-type encodings
// reach only +-4KiB, far short of what a large function's basic block layout needs, while J-type
// jumps reach +-1MiB. Rather than risk an out-of-range relocation, every CondJump becomes:
//
//	<block>:
//	    <cond> lhs, rhs, .bridgeN   ; branch-if-true, always within range of the next block
//	    j      falseTarget          ; branch-if-false
//	.bridgeN:
//	    j      trueTarget
//
// The bridge block is pure overhead when the true target happens to be close, but it is never
// wrong, and it is what makes every branch in the function uniformly short-range.
func (s *Selector) lowerCondJump(inst *atomir.Instruction) {
	trueBlk := s.blocks[inst.Target]
	falseBlk := s.blocks[inst.FalseTarget]
	bridge := mir.NewBlock()

	if inst.IsFloat {
		s.lowerFloatCondJump(inst, bridge)
	} else {
		s.lowerIntCondJump(inst, bridge)
	}
	s.emit(mir.NewJump(falseBlk))

	s.curFn.AddBlock(bridge)
	bridge.Add(mir.NewJump(trueBlk))
}

// lowerIntCondJump emits the branch-if-true half for an integer comparison. RV64 only has native
// beq/bne/blt/bge; gt and le are synthesized by swapping operands onto blt/bge.
func (s *Selector) lowerIntCondJump(inst *atomir.Instruction, bridge *mir.Block) {
	a := s.reg(inst.Operand1)
	b := s.reg(inst.Operand2)
	var op mir.Op
	lhs, rhs := a, b
	switch inst.CondOp {
	case atomir.Jeq:
		op = mir.OpBeq
	case atomir.Jne:
		op = mir.OpBne
	case atomir.Jlt:
		op = mir.OpBlt
	case atomir.Jgt:
		op, lhs, rhs = mir.OpBlt, b, a
	case atomir.Jle:
		op, lhs, rhs = mir.OpBge, b, a
	case atomir.Jge:
		op = mir.OpBge
	}
	s.emit(mir.NewCondJump(op, lhs, rhs, bridge))
}

// lowerFloatCondJump emits the branch-if-true half for a float comparison. RV64GC has no
// floating point branch instructions: the comparison is computed into an integer 0/1 result with
// FSEQ.S/FSLT.S/FSLE.S, then that result is tested with BEQ/BNE against x0.
func (s *Selector) lowerFloatCondJump(inst *atomir.Instruction, bridge *mir.Block) {
	a := s.reg(inst.Operand1)
	b := s.reg(inst.Operand2)
	cmp := s.file.NewVirtual(regfile.Int)

	var fop mir.Op
	lhs, rhs := a, b
	branchOnZero := false
	switch inst.CondOp {
	case atomir.Jeq:
		fop = mir.OpFseqS
	case atomir.Jne:
		fop, branchOnZero = mir.OpFseqS, true
	case atomir.Jlt:
		fop = mir.OpFsltS
	case atomir.Jgt:
		fop, lhs, rhs = mir.OpFsltS, b, a
	case atomir.Jle:
		fop = mir.OpFsleS
	case atomir.Jge:
		// b <= a, i.e. a >= b.
		fop, lhs, rhs = mir.OpFsleS, b, a
	}
	s.emit(mir.NewBinaryReg(fop, cmp, lhs, rhs))

	branchOp := mir.OpBne
	if branchOnZero {
		branchOp = mir.OpBeq
	}
	s.emit(mir.NewCondJump(branchOp, cmp, s.file.Zero, bridge))
}
