package selector

import (
	"atomc/src/atomir"
	"atomc/src/backend/mir"
	"atomc/src/backend/regfile"
)

// lowerIntBinary lowers a 32-bit integer binary operation, choosing the immediate form whenever
// one operand is a literal that fits the 12-bit signed range and a register form otherwise.
//
// The comparison family all normalizes onto SLT/SLTI:
//
//	a <  b            slt a, b
//	a <= b            slt b, a ; xori ,1       (register operands)
//	a >  b            slt b, a
//	a >= b            slt a, b ; xori ,1       (register operands)
//
// With a literal on either side the off-by-one identities `a <= c  ==  a < c+1` and
// `c <= b  ==  c-1 < b` fold the inversion away entirely. Equality and inequality are the
// difference of the operands (XOR, or ADDI of the negated literal) tested with SEQZ/SNEZ.
func (s *Selector) lowerIntBinary(op atomir.BinOp, o1, o2 atomir.Value) *regfile.Register {
	var src1, src2 *regfile.Register
	imm := 0
	needXor := false

	if c, ok := o1.(*atomir.ConstantInt); ok {
		imm = int(c.V)
		switch op {
		case atomir.Sub, atomir.Mul, atomir.Div, atomir.Mod, atomir.Lt:
			src1 = s.loadConstInt(imm)
			src2 = s.reg(o2)
		case atomir.Le:
			src1 = s.loadConstInt(imm - 1)
			src2 = s.reg(o2)
		case atomir.Gt:
			src1 = s.reg(o2)
		case atomir.Ge:
			imm++
			src1 = s.reg(o2)
		case atomir.Eq, atomir.Ne:
			imm = -imm
			src1 = s.reg(o2)
		default:
			src1 = s.reg(o2)
		}
	} else if c, ok := o2.(*atomir.ConstantInt); ok {
		imm = int(c.V)
		switch op {
		case atomir.Sub:
			imm = -imm
			src1 = s.reg(o1)
		case atomir.Mul, atomir.Div, atomir.Mod:
			src1 = s.reg(o1)
			src2 = s.loadConstInt(imm)
		case atomir.Le:
			imm++
			src1 = s.reg(o1)
		case atomir.Gt:
			src1 = s.loadConstInt(imm)
			src2 = s.reg(o1)
		case atomir.Ge:
			src1 = s.loadConstInt(imm - 1)
			src2 = s.reg(o1)
		case atomir.Eq, atomir.Ne:
			imm = -imm
			src1 = s.reg(o1)
		default:
			src1 = s.reg(o1)
		}
	} else {
		switch op {
		case atomir.Le:
			needXor = true
			src1 = s.reg(o2)
			src2 = s.reg(o1)
		case atomir.Gt:
			src1 = s.reg(o2)
			src2 = s.reg(o1)
		case atomir.Ge:
			needXor = true
			src1 = s.reg(o1)
			src2 = s.reg(o2)
		default:
			src1 = s.reg(o1)
			src2 = s.reg(o2)
		}
	}

	dst := s.file.NewVirtual(regfile.Int)
	switch op {
	case atomir.Add:
		if src2 != nil {
			s.emit(mir.NewBinaryReg(mir.OpAddw, dst, src1, src2))
		} else {
			src1, imm = s.addrOfOffset(src1, imm)
			s.emit(mir.NewBinaryImm(mir.OpAddiw, dst, src1, imm))
		}
	case atomir.Sub:
		if src2 != nil {
			s.emit(mir.NewBinaryReg(mir.OpSubw, dst, src1, src2))
		} else {
			src1, imm = s.addrOfOffset(src1, imm)
			s.emit(mir.NewBinaryImm(mir.OpAddiw, dst, src1, imm))
		}
	case atomir.Mul:
		s.emit(mir.NewBinaryReg(mir.OpMulw, dst, src1, src2))
	case atomir.Div:
		s.emit(mir.NewBinaryReg(mir.OpDivw, dst, src1, src2))
	case atomir.Mod:
		s.emit(mir.NewBinaryReg(mir.OpRemw, dst, src1, src2))
	case atomir.Lt, atomir.Le, atomir.Gt, atomir.Ge:
		if src2 != nil {
			s.emit(mir.NewBinaryReg(mir.OpSlt, dst, src1, src2))
		} else if mir.InRange(imm) {
			s.emit(mir.NewBinaryImm(mir.OpSlti, dst, src1, imm))
		} else {
			src2 = s.loadConstInt(imm)
			s.emit(mir.NewBinaryReg(mir.OpSlt, dst, src1, src2))
		}
	case atomir.Eq, atomir.Ne:
		if src2 != nil {
			s.emit(mir.NewBinaryReg(mir.OpXor, dst, src1, src2))
		} else {
			src1, imm = s.addrOfOffset(src1, imm)
			s.emit(mir.NewBinaryImm(mir.OpAddi, dst, src1, imm))
		}
	default:
		panic("selector: unhandled integer binary op")
	}

	if needXor {
		inv := s.file.NewVirtual(regfile.Int)
		s.emit(mir.NewBinaryImm(mir.OpXori, inv, dst, 1))
		dst = inv
	}
	switch op {
	case atomir.Eq:
		set := s.file.NewVirtual(regfile.Int)
		s.emit(mir.NewUnary(mir.OpSeqz, set, dst))
		dst = set
	case atomir.Ne:
		set := s.file.NewVirtual(regfile.Int)
		s.emit(mir.NewUnary(mir.OpSnez, set, dst))
		dst = set
	}
	return dst
}

// lowerFloatBinary lowers a single-precision float binary operation. There are no immediate
// forms and no inverted set instructions in the F extension, so `>` and `>=` swap operands onto
// FSLT.S/FSLE.S, and `!=` inverts FSEQ.S with a trailing SEQZ. The relational operators produce
// their 0/1 result in an integer register.
func (s *Selector) lowerFloatBinary(op atomir.BinOp, o1, o2 atomir.Value) *regfile.Register {
	src1 := s.reg(o1)
	src2 := s.reg(o2)

	switch op {
	case atomir.Add, atomir.Sub, atomir.Mul, atomir.Div:
		dst := s.file.NewVirtual(regfile.Float)
		var fop mir.Op
		switch op {
		case atomir.Add:
			fop = mir.OpFaddS
		case atomir.Sub:
			fop = mir.OpFsubS
		case atomir.Mul:
			fop = mir.OpFmulS
		default:
			fop = mir.OpFdivS
		}
		s.emit(mir.NewBinaryReg(fop, dst, src1, src2))
		return dst
	}

	dst := s.file.NewVirtual(regfile.Int)
	switch op {
	case atomir.Lt:
		s.emit(mir.NewBinaryReg(mir.OpFsltS, dst, src1, src2))
	case atomir.Le:
		s.emit(mir.NewBinaryReg(mir.OpFsleS, dst, src1, src2))
	case atomir.Gt:
		s.emit(mir.NewBinaryReg(mir.OpFsltS, dst, src2, src1))
	case atomir.Ge:
		s.emit(mir.NewBinaryReg(mir.OpFsleS, dst, src2, src1))
	case atomir.Eq:
		s.emit(mir.NewBinaryReg(mir.OpFseqS, dst, src1, src2))
	case atomir.Ne:
		s.emit(mir.NewBinaryReg(mir.OpFseqS, dst, src1, src2))
		inv := s.file.NewVirtual(regfile.Int)
		s.emit(mir.NewUnary(mir.OpSeqz, inv, dst))
		dst = inv
	default:
		panic("selector: unhandled float binary op")
	}
	return dst
}
