// Package llvmpath provides the alternate emission path: instead of running the RISC-V backend,
// an AtomIR module is lowered into LLVM IR through the system LLVM runtime's C API bindings and
// rendered as textual IR. The path is intentionally shallower than the native backend -- it
// exists so the same frontend output can be cross-checked against LLVM's own code generation,
// not to replace the selector/allocator pipeline this compiler is actually about.
package llvmpath

import (
	"fmt"
)

import (
	"tinygo.org/x/go-llvm"
)

import (
	"atomc/src/atomir"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// emitter carries the LLVM handles threaded through one module's emission.
type emitter struct {
	m llvm.Module
	b llvm.Builder

	globals map[string]llvm.Value
	funcs   map[string]llvm.Value

	// Per-function state.
	vals       map[*atomir.Local]llvm.Value
	blocks     map[*atomir.Block]llvm.BasicBlock
	fn         llvm.Value
	terminated bool // True once the block being emitted has seen its terminator.
}

// ---------------------
// ----- Functions -----
// ---------------------

// Emit lowers mod to LLVM IR and returns it as text.
func Emit(mod *atomir.Module) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("llvm emission failed: %v", r)
		}
	}()

	ctx := llvm.NewContext()
	e := &emitter{
		m:       ctx.NewModule("atomc"),
		b:       ctx.NewBuilder(),
		globals: make(map[string]llvm.Value),
		funcs:   make(map[string]llvm.Value),
	}

	for _, g := range mod.Globals {
		e.emitGlobal(g)
	}
	// Declare every function before emitting any body, so forward calls between functions of
	// this module resolve without a separate fixup pass.
	for _, fn := range mod.Functions {
		e.declareFunction(fn)
	}
	for _, fn := range mod.Functions {
		e.emitFunction(fn)
	}

	return e.m.String(), nil
}

// llvmType maps an AtomIR type onto its LLVM equivalent.
func llvmType(t *atomir.Type) llvm.Type {
	switch t.Kind {
	case atomir.Int32:
		return llvm.Int32Type()
	case atomir.Float32:
		return llvm.FloatType()
	case atomir.Void:
		return llvm.VoidType()
	case atomir.Pointer:
		return llvm.PointerType(llvmType(t.Elem), 0)
	case atomir.Array:
		return llvm.ArrayType(llvmType(t.Elem), t.Len)
	default:
		panic("llvmpath: unknown atomir type")
	}
}

// emitGlobal declares one module-level variable and attaches its initializer.
func (e *emitter) emitGlobal(g *atomir.GlobalVariable) {
	typ := llvmType(g.Typ)
	gv := llvm.AddGlobal(e.m, typ, g.Name)

	if !g.Typ.IsArrayType() {
		gv.SetInitializer(constScalar(g.Typ, g.ScalarInit))
		e.globals[g.Name] = gv
		return
	}

	if len(g.ArrayInit) == 1 && len(g.ArrayInit[0].Elements) == 0 {
		gv.SetInitializer(llvm.ConstNull(typ))
		e.globals[g.Name] = gv
		return
	}
	elemTy := llvmType(g.Typ.Elem)
	var elems []llvm.Value
	for _, run := range g.ArrayInit {
		if len(run.Elements) == 0 {
			for i := 0; i < run.Count; i++ {
				elems = append(elems, llvm.ConstNull(elemTy))
			}
			continue
		}
		for i := 0; i < run.Count; i++ {
			for _, el := range run.Elements {
				elems = append(elems, constScalar(g.Typ.Elem, el))
			}
		}
	}
	gv.SetInitializer(llvm.ConstArray(elemTy, elems))
	e.globals[g.Name] = gv
}

// constScalar renders one scalar initializer constant; nil means zero.
func constScalar(t *atomir.Type, v atomir.Value) llvm.Value {
	switch vv := v.(type) {
	case *atomir.ConstantInt:
		return llvm.ConstInt(llvm.Int32Type(), uint64(uint32(vv.V)), true)
	case *atomir.ConstantFloat:
		return llvm.ConstFloat(llvm.FloatType(), float64(vv.V))
	default:
		return llvm.ConstNull(llvmType(t))
	}
}

// declareFunction adds fn's prototype to the module.
func (e *emitter) declareFunction(fn *atomir.Function) {
	params := make([]llvm.Type, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = llvmType(p.Val.Typ)
	}
	ret := llvm.VoidType()
	if rt := returnType(fn); rt != nil {
		ret = llvmType(rt)
	}
	ftyp := llvm.FunctionType(ret, params, false)
	e.funcs[fn.Name] = llvm.AddFunction(e.m, fn.Name, ftyp)
}

// returnType infers fn's return type from its return instructions; a function whose every
// return is bare is void.
func returnType(fn *atomir.Function) *atomir.Type {
	for _, b := range fn.Blocks {
		for _, inst := range b.Insts {
			if inst.Op == atomir.OpRet && inst.RetValue != nil {
				return inst.RetValue.Type()
			}
		}
	}
	return nil
}

// emitFunction lowers one function body.
func (e *emitter) emitFunction(fn *atomir.Function) {
	e.fn = e.funcs[fn.Name]
	e.vals = make(map[*atomir.Local]llvm.Value)
	e.blocks = make(map[*atomir.Block]llvm.BasicBlock)

	for i, p := range fn.Params {
		e.vals[p.Val] = e.fn.Param(i)
	}
	for _, b := range fn.Blocks {
		e.blocks[b] = llvm.AddBasicBlock(e.fn, "")
	}

	for _, b := range fn.Blocks {
		e.b.SetInsertPointAtEnd(e.blocks[b])
		e.terminated = false
		for _, inst := range b.Insts {
			e.emitInst(inst)
		}
		// A void function whose source ends without `return` leaves its last block
		// unterminated; LLVM requires the explicit form.
		if !e.terminated {
			e.b.CreateRetVoid()
		}
	}
}

// emitInst lowers a single AtomIR instruction.
func (e *emitter) emitInst(inst *atomir.Instruction) {
	switch inst.Op {
	case atomir.OpAlloc:
		e.vals[inst.Result] = e.b.CreateAlloca(llvmType(inst.Result.Typ), inst.Result.Name)
	case atomir.OpStore:
		e.b.CreateStore(e.value(inst.Value), e.value(inst.Dest))
	case atomir.OpLoad:
		e.vals[inst.Result] = e.b.CreateLoad(e.value(inst.Ptr), "")
	case atomir.OpGetElementPtr:
		indices := make([]llvm.Value, len(inst.Indexes))
		for i, idx := range inst.Indexes {
			indices[i] = e.value(idx)
		}
		e.vals[inst.Result] = e.b.CreateGEP(e.value(inst.Ptr), indices, "")
	case atomir.OpBitCast:
		e.vals[inst.Result] = e.b.CreateBitCast(e.value(inst.Ptr), llvmType(inst.Result.Typ), "")
	case atomir.OpCall:
		e.emitCall(inst)
	case atomir.OpRet:
		if inst.RetValue != nil {
			e.b.CreateRet(e.value(inst.RetValue))
		} else {
			e.b.CreateRetVoid()
		}
		e.terminated = true
	case atomir.OpBinary:
		e.vals[inst.Result] = e.emitBinary(inst)
	case atomir.OpItoF:
		e.vals[inst.Result] = e.b.CreateSIToFP(e.value(inst.Operand1), llvm.FloatType(), "")
	case atomir.OpFtoI:
		e.vals[inst.Result] = e.b.CreateFPToSI(e.value(inst.Operand1), llvm.Int32Type(), "")
	case atomir.OpJump:
		e.b.CreateBr(e.blocks[inst.Target])
		e.terminated = true
	case atomir.OpCondJump:
		cond := e.condValue(inst)
		e.b.CreateCondBr(cond, e.blocks[inst.Target], e.blocks[inst.FalseTarget])
		e.terminated = true
	default:
		panic("llvmpath: unhandled atomir opcode")
	}
}

// emitCall lowers a call, declaring an external runtime function from its first call site's
// shape when the callee is not part of this module.
func (e *emitter) emitCall(inst *atomir.Instruction) {
	callee, ok := e.funcs[inst.FuncName]
	if !ok {
		params := make([]llvm.Type, len(inst.Params))
		for i, a := range inst.Params {
			params[i] = llvmType(a.Type())
		}
		ret := llvm.VoidType()
		if inst.Result != nil {
			ret = llvmType(inst.Result.Typ)
		}
		callee = llvm.AddFunction(e.m, inst.FuncName, llvm.FunctionType(ret, params, false))
		e.funcs[inst.FuncName] = callee
	}
	args := make([]llvm.Value, len(inst.Params))
	for i, a := range inst.Params {
		args[i] = e.value(a)
	}
	res := e.b.CreateCall(callee, args, "")
	if inst.Result != nil {
		e.vals[inst.Result] = res
	}
}

// emitBinary lowers an arithmetic or comparison operator. Comparisons produce i1 in LLVM and a
// plain 0/1 int in AtomIR, so they are zero-extended back to i32 on the spot.
func (e *emitter) emitBinary(inst *atomir.Instruction) llvm.Value {
	op1 := e.value(inst.Operand1)
	op2 := e.value(inst.Operand2)

	if inst.IsFloat {
		switch inst.BinOp {
		case atomir.Add:
			return e.b.CreateFAdd(op1, op2, "")
		case atomir.Sub:
			return e.b.CreateFSub(op1, op2, "")
		case atomir.Mul:
			return e.b.CreateFMul(op1, op2, "")
		case atomir.Div:
			return e.b.CreateFDiv(op1, op2, "")
		}
		pred := map[atomir.BinOp]llvm.FloatPredicate{
			atomir.Lt: llvm.FloatOLT, atomir.Le: llvm.FloatOLE,
			atomir.Gt: llvm.FloatOGT, atomir.Ge: llvm.FloatOGE,
			atomir.Eq: llvm.FloatOEQ, atomir.Ne: llvm.FloatONE,
		}[inst.BinOp]
		cmp := e.b.CreateFCmp(pred, op1, op2, "")
		return e.b.CreateZExt(cmp, llvm.Int32Type(), "")
	}

	switch inst.BinOp {
	case atomir.Add:
		return e.b.CreateAdd(op1, op2, "")
	case atomir.Sub:
		return e.b.CreateSub(op1, op2, "")
	case atomir.Mul:
		return e.b.CreateMul(op1, op2, "")
	case atomir.Div:
		return e.b.CreateSDiv(op1, op2, "")
	case atomir.Mod:
		return e.b.CreateSRem(op1, op2, "")
	}
	pred := map[atomir.BinOp]llvm.IntPredicate{
		atomir.Lt: llvm.IntSLT, atomir.Le: llvm.IntSLE,
		atomir.Gt: llvm.IntSGT, atomir.Ge: llvm.IntSGE,
		atomir.Eq: llvm.IntEQ, atomir.Ne: llvm.IntNE,
	}[inst.BinOp]
	cmp := e.b.CreateICmp(pred, op1, op2, "")
	return e.b.CreateZExt(cmp, llvm.Int32Type(), "")
}

// condValue builds the i1 condition of a conditional branch.
func (e *emitter) condValue(inst *atomir.Instruction) llvm.Value {
	op1 := e.value(inst.Operand1)
	op2 := e.value(inst.Operand2)
	if inst.IsFloat {
		pred := map[atomir.CondOp]llvm.FloatPredicate{
			atomir.Jeq: llvm.FloatOEQ, atomir.Jne: llvm.FloatONE,
			atomir.Jlt: llvm.FloatOLT, atomir.Jle: llvm.FloatOLE,
			atomir.Jgt: llvm.FloatOGT, atomir.Jge: llvm.FloatOGE,
		}[inst.CondOp]
		return e.b.CreateFCmp(pred, op1, op2, "")
	}
	pred := map[atomir.CondOp]llvm.IntPredicate{
		atomir.Jeq: llvm.IntEQ, atomir.Jne: llvm.IntNE,
		atomir.Jlt: llvm.IntSLT, atomir.Jle: llvm.IntSLE,
		atomir.Jgt: llvm.IntSGT, atomir.Jge: llvm.IntSGE,
	}[inst.CondOp]
	return e.b.CreateICmp(pred, op1, op2, "")
}

// value resolves any AtomIR operand to its LLVM value. Allocs and globals resolve to their
// address, matching AtomIR's own pointer semantics for them.
func (e *emitter) value(v atomir.Value) llvm.Value {
	switch vv := v.(type) {
	case *atomir.ConstantInt:
		return llvm.ConstInt(llvm.Int32Type(), uint64(uint32(vv.V)), true)
	case *atomir.ConstantFloat:
		return llvm.ConstFloat(llvm.FloatType(), float64(vv.V))
	case *atomir.GlobalRef:
		return e.globals[vv.Name]
	case *atomir.Local:
		if val, ok := e.vals[vv]; ok {
			return val
		}
		panic(fmt.Sprintf("llvmpath: value %q used before definition", vv.Name))
	default:
		panic("llvmpath: unknown atomir.Value implementation")
	}
}
