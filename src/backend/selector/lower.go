package selector

import (
	"atomc/src/atomir"
	"atomc/src/backend/mir"
	"atomc/src/backend/regfile"
)

// stageParams binds every parameter of fn to its arrival location: the first 8 of each bank to
// a0-a7/fa0-fa7, the rest to the caller's outgoing-argument area. Register parameters stay bound
// to the fixed argument register itself -- the AtomIR builder always copies a parameter into its
// own stack slot before anything can clobber the register, so no extra move is needed here.
// Surplus parameters get no register at all; they are recorded so that the store copying them
// into their slot can be elided (the caller already placed them exactly where the slot will be).
func (s *Selector) stageParams(fn *atomir.Function) {
	intIdx, floatIdx := 0, 0
	for _, p := range fn.Params {
		if bankOf(p.Val.Typ) == regfile.Int {
			if intIdx < regfile.NumArg {
				s.vregs[p.Val] = s.file.IntArg[intIdx]
				intIdx++
			} else {
				s.stackParams[p.Val] = true
			}
			continue
		}
		if floatIdx < regfile.NumArg {
			s.vregs[p.Val] = s.file.FloatArg[floatIdx]
			floatIdx++
		} else {
			s.stackParams[p.Val] = true
		}
	}
}

// lower dispatches a single AtomIR instruction to its selection routine, in the order the
// opcodes are declared.
func (s *Selector) lower(inst *atomir.Instruction) {
	switch inst.Op {
	case atomir.OpAlloc:
		s.lowerAlloc(inst)
	case atomir.OpStore:
		s.lowerStore(inst)
	case atomir.OpLoad:
		s.lowerLoad(inst)
	case atomir.OpGetElementPtr:
		s.lowerGEP(inst)
	case atomir.OpBitCast:
		s.lowerBitCast(inst)
	case atomir.OpCall:
		s.lowerCall(inst)
	case atomir.OpRet:
		s.lowerRet(inst)
	case atomir.OpBinary:
		s.lowerBinary(inst)
	case atomir.OpItoF:
		s.lowerItoF(inst)
	case atomir.OpFtoI:
		s.lowerFtoI(inst)
	case atomir.OpJump:
		s.emit(mir.NewJump(s.blocks[inst.Target]))
	case atomir.OpCondJump:
		s.lowerCondJump(inst)
	default:
		panic("selector: unhandled atomir opcode")
	}
}

// lowerAlloc reserves the stack slot for a local variable. It never emits an instruction: the
// slot only becomes real once the frame finalizer fixes the function's total frame size.
//
// An alloc standing in for a surplus parameter (the 9th and later of its bank) does not consume
// frame space at all: the caller already stored the value in its own outgoing-argument area,
// which sits directly above our saved registers once the frame is set up, so the slot maps to a
// positive offset from s0 given by the parameter's arrival position among all stack-passed
// parameters.
func (s *Selector) lowerAlloc(inst *atomir.Instruction) {
	if inst.AllocForParam {
		intOver, floatOver := 0, 0
		if inst.AllocIntOrder > regfile.NumArg {
			intOver = inst.AllocIntOrder - regfile.NumArg
		}
		if inst.AllocFloatOrder > regfile.NumArg {
			floatOver = inst.AllocFloatOrder - regfile.NumArg
		}
		if bankOf(inst.Result.Typ) == regfile.Int && intOver > 0 {
			s.slots[inst.Result] = (intOver + floatOver - 1) * 8
			return
		}
		if bankOf(inst.Result.Typ) == regfile.Float && floatOver > 0 {
			s.slots[inst.Result] = (intOver + floatOver - 1) * 8
			return
		}
	}
	s.slots[inst.Result] = s.newSlot(inst.Result.Typ.ByteLen())
}

// lowerStore lowers `store Value, Dest`. The store that copies a surplus parameter into its own
// slot is elided: the slot is the caller's stack word the value already occupies.
func (s *Selector) lowerStore(inst *atomir.Instruction) {
	if l, ok := inst.Value.(*atomir.Local); ok && s.stackParams[l] {
		return
	}
	val := s.reg(inst.Value)
	base, off := s.addr(inst.Dest)
	s.emit(mir.NewStore(storeOp(inst.Value.Type()), val, base, off))
}

// lowerLoad lowers `Result = load Ptr`.
func (s *Selector) lowerLoad(inst *atomir.Instruction) {
	base, off := s.addr(inst.Ptr)
	s.vregs[inst.Result] = s.load(inst.Result.Typ, base, off)
}

// lowerBitCast lowers a pointer reinterpretation. RV64 never changes a pointer's bit pattern
// when its pointee type changes, so a register operand is simply aliased; a stack slot has its
// frame address materialized, since the result must be a first-class pointer value.
func (s *Selector) lowerBitCast(inst *atomir.Instruction) {
	s.vregs[inst.Result] = s.reg(inst.Ptr)
}

// lowerGEP lowers pointer arithmetic. A single-index form advances a pointer by index*stride
// where the stride is the pointee's full byte length; the two-index form steps into an
// aggregate, so the stride is the aggregate's element length. Either way the index is folded at
// compile time when constant, shifted when the stride is a power of two, and multiplied out
// otherwise.
func (s *Selector) lowerGEP(inst *atomir.Instruction) {
	ptr := s.reg(inst.Ptr)

	baseTy := inst.Ptr.Type()
	if baseTy.IsPointerType() {
		baseTy = baseTy.Elem
	}

	var idx atomir.Value
	var stride int
	if len(inst.Indexes) == 1 {
		idx = inst.Indexes[0]
		stride = baseTy.ByteLen()
	} else {
		// The leading index steps over whole aggregates; the builder always emits zero for it,
		// but a nonzero constant folds in the same way as any other constant index.
		if ci, ok := inst.Indexes[0].(*atomir.ConstantInt); !ok || ci.V != 0 {
			lead := s.gepOffset(inst.Indexes[0], baseTy.ByteLen())
			next := s.file.NewVirtual(regfile.Int)
			s.emit(mir.NewBinaryReg(mir.OpAdd, next, ptr, lead))
			ptr = next
		}
		idx = inst.Indexes[1]
		stride = baseTy.Elem.ByteLen()
	}

	offsetReg := s.gepOffset(idx, stride)
	dst := s.file.NewVirtual(regfile.Int)
	s.emit(mir.NewBinaryReg(mir.OpAdd, dst, ptr, offsetReg))
	s.vregs[inst.Result] = dst
}

// gepOffset materializes index*stride into a register: a single LI for a constant index, an
// SLLI for a power-of-two stride, and LI+MUL in the general case.
func (s *Selector) gepOffset(idx atomir.Value, stride int) *regfile.Register {
	if ci, ok := idx.(*atomir.ConstantInt); ok {
		return s.loadConstInt(int(ci.V) * stride)
	}
	idxReg := s.reg(idx)
	if sh := log2(stride); sh >= 0 {
		dst := s.file.NewVirtual(regfile.Int)
		s.emit(mir.NewBinaryImm(mir.OpSlli, dst, idxReg, sh))
		return dst
	}
	strideReg := s.loadConstInt(stride)
	dst := s.file.NewVirtual(regfile.Int)
	s.emit(mir.NewBinaryReg(mir.OpMul, dst, idxReg, strideReg))
	return dst
}

// log2 returns the shift amount for a positive power of two, or -1.
func log2(n int) int {
	if n <= 0 || n&(n-1) != 0 {
		return -1
	}
	sh := 0
	for n > 1 {
		n >>= 1
		sh++
	}
	return sh
}

// lowerCall stages inst's arguments into a0-a7/fa0-fa7, spilling any surplus to the outgoing
// argument area at the bottom of this function's own frame, issues the call, and -- for a
// non-void call -- copies the ABI return register into a fresh virtual register.
func (s *Selector) lowerCall(inst *atomir.Instruction) {
	s.curFn.HasCall = true
	intIdx, floatIdx := 0, 0
	stackOffset := 0
	var uses []*regfile.Register
	for _, arg := range inst.Params {
		bank := bankOf(arg.Type())
		if ci, ok := arg.(*atomir.ConstantInt); ok && intIdx < regfile.NumArg {
			// A literal integer argument loads straight into its argument register; going
			// through a fresh virtual register first would only add a move.
			phys := s.file.IntArg[intIdx]
			s.emit(mir.NewLi(phys, int(ci.V)))
			uses = append(uses, phys)
			intIdx++
			continue
		}
		argReg := s.reg(arg)
		if bank == regfile.Int && intIdx < regfile.NumArg {
			phys := s.file.IntArg[intIdx]
			s.emit(mir.NewUnary(mir.OpMv, phys, argReg))
			uses = append(uses, phys)
			intIdx++
			continue
		}
		if bank == regfile.Float && floatIdx < regfile.NumArg {
			phys := s.file.FloatArg[floatIdx]
			s.emit(mir.NewUnary(mir.OpFmvS, phys, argReg))
			uses = append(uses, phys)
			floatIdx++
			continue
		}
		op := mir.OpSw
		if bank == regfile.Float {
			op = mir.OpFsw
		} else if arg.Type().IsPointerType() {
			op = mir.OpSd
		}
		s.spillCallArg(op, argReg, stackOffset)
		stackOffset += 8
	}
	if stackOffset > s.curFn.MaxOutgoingArgBytes {
		s.curFn.MaxOutgoingArgBytes = stackOffset
	}
	call := mir.NewCall(inst.FuncName)
	call.CallUses = uses
	s.emit(call)

	if inst.Result != nil {
		bank := bankOf(inst.Result.Typ)
		dst := s.file.NewVirtual(bank)
		if bank == regfile.Float {
			s.emit(mir.NewUnary(mir.OpFmvS, dst, s.file.FloatArg[0]))
		} else {
			s.emit(mir.NewUnary(mir.OpMv, dst, s.file.IntArg[0]))
		}
		s.vregs[inst.Result] = dst
	}
}

// spillCallArg stores a surplus call argument to sp+offset. The store (and, past the 12-bit
// range, its LUI+ADD address setup) is inserted immediately after the instruction that produced
// argReg -- not appended at the block tail -- so that evaluating a later argument cannot clobber
// argReg before it has been saved.
func (s *Selector) spillCallArg(op mir.Op, argReg *regfile.Register, offset int) {
	var seq []*mir.Instruction
	base := s.file.Sp
	if !mir.InRange(offset) {
		hi20, lo := mir.SplitImmediate(offset)
		lui := mir.NewLui(s.file.NewVirtual(regfile.Int), hi20)
		add := mir.NewBinaryReg(mir.OpAdd, s.file.NewVirtual(regfile.Int), s.file.Sp, lui.Dst)
		seq = append(seq, lui, add)
		base = add.Dst
		offset = lo
	}
	seq = append(seq, mir.NewStore(op, argReg, base, offset))

	idx := s.curBlock.IndexOfDef(argReg)
	for _, in := range seq {
		if idx < 0 {
			s.curBlock.Add(in)
			continue
		}
		idx++
		s.curBlock.InsertAfter(idx-1, in)
	}
}

// lowerRet stages the return value into a0/fa0, if any, and jumps to the function's single
// return block, which the frame finalizer later fills with the epilogue.
func (s *Selector) lowerRet(inst *atomir.Instruction) {
	if inst.RetValue != nil {
		if ci, ok := inst.RetValue.(*atomir.ConstantInt); ok {
			s.emit(mir.NewLi(s.file.IntArg[0], int(ci.V)))
		} else if bankOf(inst.RetValue.Type()) == regfile.Float {
			s.emit(mir.NewUnary(mir.OpFmvS, s.file.FloatArg[0], s.reg(inst.RetValue)))
		} else {
			s.emit(mir.NewUnary(mir.OpMv, s.file.IntArg[0], s.reg(inst.RetValue)))
		}
	}
	s.emit(mir.NewJump(s.retBlock))
}

// lowerBinary lowers an integer or float binary operator to its RV64GC equivalent.
func (s *Selector) lowerBinary(inst *atomir.Instruction) {
	if inst.IsFloat {
		s.vregs[inst.Result] = s.lowerFloatBinary(inst.BinOp, inst.Operand1, inst.Operand2)
		return
	}
	s.vregs[inst.Result] = s.lowerIntBinary(inst.BinOp, inst.Operand1, inst.Operand2)
}

// lowerItoF lowers an int-to-float conversion. The general case is a single FCVT.S.W. When the
// integer source is the 0/1 result of an FSEQ.S earlier in this same block, the conversion is
// instead lowered as control flow: branch on the flag, materialize 1.0f on one arm and 0.0f
// (FMV.W.X from x0) on the other, and rejoin.
func (s *Selector) lowerItoF(inst *atomir.Instruction) {
	src := s.reg(inst.Operand1)

	if s.definedByFseq(src) {
		oneBlk := mir.NewBlock()
		zeroBlk := mir.NewBlock()
		afterBlk := mir.NewBlock()
		s.curFn.AddBlock(oneBlk)
		s.curFn.AddBlock(zeroBlk)
		s.curFn.AddBlock(afterBlk)

		s.emit(mir.NewCondJump(mir.OpBeq, src, s.file.Zero, zeroBlk))
		s.emit(mir.NewJump(oneBlk))

		s.curBlock = oneBlk
		dst := s.loadConstFloat(1)
		s.emit(mir.NewJump(afterBlk))

		s.curBlock = zeroBlk
		s.emit(mir.NewUnary(mir.OpFmvWX, dst, s.file.Zero))
		s.emit(mir.NewJump(afterBlk))

		s.curBlock = afterBlk
		s.vregs[inst.Result] = dst
		return
	}

	dst := s.file.NewVirtual(regfile.Float)
	s.emit(mir.NewUnary(mir.OpFcvtSW, dst, src))
	s.vregs[inst.Result] = dst
}

// definedByFseq reports whether src was produced by an FSEQ.S in the block currently being
// selected.
func (s *Selector) definedByFseq(src *regfile.Register) bool {
	for _, in := range s.curBlock.Instructions() {
		if in.Dst == src && in.Kind == mir.KindBinary && in.Op == mir.OpFseqS {
			return true
		}
	}
	return false
}

// lowerFtoI lowers a float-to-int conversion.
func (s *Selector) lowerFtoI(inst *atomir.Instruction) {
	src := s.reg(inst.Operand1)
	dst := s.file.NewVirtual(regfile.Int)
	s.emit(mir.NewUnary(mir.OpFcvtWS, dst, src))
	s.vregs[inst.Result] = dst
}
