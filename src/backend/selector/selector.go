// Package selector implements the instruction selector: the backend stage that rewrites one
// AtomIR function into an equivalent mir.Function over the RV64GC instruction set, resolving
// every AtomIR value to a fresh virtual register or a stack-frame offset as it goes.
//
// The selector never assigns physical registers (that is the register allocator's job, package
// regalloc) and never decides the final frame size (the frame finalizer owns that, once the
// allocator has reported which callee-saved registers survived). It does decide which AtomIR
// values live in the stack frame at all -- an `alloc` always gets a slot, everything else always
// gets a virtual register -- and it performs every "obviously a codegen decision" rewrite:
// constant materialization, out-of-range immediate splitting, call-argument staging and the
// branch-range workaround, all described in the data model this package implements.
package selector

import (
	"atomc/src/atomir"
	"atomc/src/backend/mir"
	"atomc/src/backend/regfile"
	"atomc/src/util"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Selector holds the state threaded through the selection of a single function. A fresh
// Selector is used per function per pass; the Pool and File are shared across the whole module.
type Selector struct {
	file *regfile.File
	pool *FloatPool

	curFn    *mir.Function
	curBlock *mir.Block
	retBlock *mir.Block

	blocks      map[*atomir.Block]*mir.Block
	vregs       map[*atomir.Local]*regfile.Register // Values living directly in a register.
	slots       map[*atomir.Local]int               // Allocs, addressed off s0.
	stackParams map[*atomir.Local]bool              // Surplus parameters left on the caller stack.

	frameSize int // Running total of frame bytes handed out so far, growing downward.
}

// ---------------------
// ----- Functions -----
// ---------------------

// New returns a selector sharing physical register file f and float literal pool p across every
// function of a module.
func New(f *regfile.File, p *FloatPool) *Selector {
	return &Selector{file: f, pool: p}
}

// SelectFunction lowers fn to its machine-level equivalent. The caller passes reserved, the byte
// count already spoken for at the top of the frame -- the saved s0, the saved ra when fn makes
// calls, and one doubleword per callee-saved register the previous allocation pass used -- so
// that local slots land below the save area. Because the save area can grow between passes of
// the fixed-point loop, selection is re-run from scratch each pass: rebuilding the function is
// cheaper, and far less error prone, than trying to shift slot offsets inside an existing
// mir.Function.
func (s *Selector) SelectFunction(fn *atomir.Function, reserved int) *mir.Function {
	s.curFn = mir.NewFunction(fn.Name)
	s.curFn.HasCall = fn.HasFunctionCall
	s.blocks = make(map[*atomir.Block]*mir.Block, len(fn.Blocks))
	s.vregs = make(map[*atomir.Local]*regfile.Register)
	s.slots = make(map[*atomir.Local]int)
	s.stackParams = make(map[*atomir.Local]bool)
	s.frameSize = reserved
	s.retBlock = mir.NewNamedBlock(util.RetLabel(fn.Name))

	for _, b := range fn.Blocks {
		s.blocks[b] = mir.NewBlock()
	}

	s.stageParams(fn)

	for _, b := range fn.Blocks {
		s.curBlock = s.blocks[b]
		s.curFn.AddBlock(s.curBlock)
		for _, inst := range b.Insts {
			s.lower(inst)
		}
	}

	s.retBlock.Add(mir.NewRet())
	s.curFn.AddBlock(s.retBlock)
	s.curFn.FrameOffset = -s.frameSize
	return s.curFn
}

// emit appends inst to the block currently being selected.
func (s *Selector) emit(inst *mir.Instruction) {
	s.curBlock.Add(inst)
}

// bankOf maps an AtomIR type to the register bank that holds its values. Pointers travel in the
// integer bank.
func bankOf(t *atomir.Type) regfile.Bank {
	if t.IsFloatType() {
		return regfile.Float
	}
	return regfile.Int
}

// newSlot hands out a fresh stack-frame slot of the given size, naturally aligned, and returns
// its offset from s0 (always negative -- locals never sit above the frame pointer).
func (s *Selector) newSlot(size int) int {
	align := 4
	if size > 4 {
		align = 8
	}
	if rem := s.frameSize % align; rem != 0 {
		s.frameSize += align - rem
	}
	s.frameSize += size
	return -s.frameSize
}

// addrOfOffset reduces base+offset to a base register and a 12-bit residual. When offset does
// not fit an I-type immediate it splits it into hi20/lo12, materializes base+hi20<<12 via
// LUI+ADD, and returns the new base with the reduced offset. All address arithmetic in this
// package routes through here.
func (s *Selector) addrOfOffset(base *regfile.Register, offset int) (addr *regfile.Register, lo12 int) {
	if mir.InRange(offset) {
		return base, offset
	}
	hi20, lo := mir.SplitImmediate(offset)
	hi := s.file.NewVirtual(regfile.Int)
	s.emit(mir.NewLui(hi, hi20))
	tmp := s.file.NewVirtual(regfile.Int)
	s.emit(mir.NewBinaryReg(mir.OpAdd, tmp, hi, base))
	return tmp, lo
}

// addr resolves an AtomIR pointer-typed value to the register holding its address and the
// residual 12-bit offset to fold into the memory instruction that uses it.
func (s *Selector) addr(v atomir.Value) (base *regfile.Register, offset int) {
	switch vv := v.(type) {
	case *atomir.GlobalRef:
		r := s.file.NewVirtual(regfile.Int)
		s.emit(mir.NewLa(r, vv.Name))
		return r, 0
	case *atomir.Local:
		if off, ok := s.slots[vv]; ok {
			return s.addrOfOffset(s.file.S0, off)
		}
		if r, ok := s.vregs[vv]; ok {
			return r, 0
		}
		panic("selector: pointer value used before definition")
	default:
		panic("selector: constant used where an address was required")
	}
}

// reg resolves any AtomIR value to the register holding it, materializing constants on every
// use. An alloc used as a value is a pointer: its frame address is computed into a register. A
// global used as a value likewise resolves to its address -- reading its contents is always an
// explicit load instruction upstream.
func (s *Selector) reg(v atomir.Value) *regfile.Register {
	switch vv := v.(type) {
	case *atomir.ConstantInt:
		return s.loadConstInt(int(vv.V))
	case *atomir.ConstantFloat:
		return s.loadConstFloat(vv.V)
	case *atomir.GlobalRef:
		r := s.file.NewVirtual(regfile.Int)
		s.emit(mir.NewLa(r, vv.Name))
		return r
	case *atomir.Local:
		if off, ok := s.slots[vv]; ok {
			base, lo := s.addrOfOffset(s.file.S0, off)
			r := s.file.NewVirtual(regfile.Int)
			s.emit(mir.NewBinaryImm(mir.OpAddi, r, base, lo))
			return r
		}
		if r, ok := s.vregs[vv]; ok {
			return r
		}
		panic("selector: value used before definition")
	default:
		panic("selector: unknown atomir.Value implementation")
	}
}

// loadConstInt materializes an integer literal into a fresh register.
func (s *Selector) loadConstInt(v int) *regfile.Register {
	r := s.file.NewVirtual(regfile.Int)
	s.emit(mir.NewLi(r, v))
	return r
}

// loadConstFloat materializes a float literal by interning its bit pattern in the module's
// literal pool and loading it back through the pool label.
func (s *Selector) loadConstFloat(v float32) *regfile.Register {
	lbl := s.pool.Intern(v)
	addrReg := s.file.NewVirtual(regfile.Int)
	s.emit(mir.NewLa(addrReg, lbl))
	r := s.file.NewVirtual(regfile.Float)
	s.emit(mir.NewLoad(mir.OpFlw, r, addrReg, 0))
	return r
}

// load emits the load instruction appropriate to t and returns its destination register.
func (s *Selector) load(t *atomir.Type, base *regfile.Register, offset int) *regfile.Register {
	op, bank := loadOp(t)
	dst := s.file.NewVirtual(bank)
	s.emit(mir.NewLoad(op, dst, base, offset))
	return dst
}

// loadOp and storeOp pick the mnemonic and register bank for a value of type t: 32-bit words for
// int/float, 64-bit doublewords for pointers (RV64 pointers are 8 bytes).
func loadOp(t *atomir.Type) (mir.Op, regfile.Bank) {
	switch {
	case t.IsFloatType():
		return mir.OpFlw, regfile.Float
	case t.IsPointerType():
		return mir.OpLd, regfile.Int
	default:
		return mir.OpLw, regfile.Int
	}
}

func storeOp(t *atomir.Type) mir.Op {
	switch {
	case t.IsFloatType():
		return mir.OpFsw
	case t.IsPointerType():
		return mir.OpSd
	default:
		return mir.OpSw
	}
}
