package selector

import (
	"strings"
	"testing"

	"atomc/src/atomir"
	"atomc/src/backend/mir"
	"atomc/src/backend/regfile"
)

// newTestSelector returns a selector with a fresh register file and pool.
func newTestSelector() (*Selector, *FloatPool) {
	pool := NewFloatPool()
	return New(regfile.New(), pool), pool
}

// fnText renders every block of f for substring assertions.
func fnText(f *mir.Function) string {
	sb := strings.Builder{}
	for _, b := range f.Blocks {
		sb.WriteString(b.String())
	}
	return sb.String()
}

// intFn builds a function named name from a single entry block of instructions.
func intFn(name string, params []*atomir.Local, insts ...*atomir.Instruction) *atomir.Function {
	fn := atomir.NewFunction(name)
	for _, p := range params {
		fn.AddParam(p)
	}
	b := atomir.NewBlock("entry")
	for _, inst := range insts {
		b.Add(inst)
	}
	fn.AddBlock(b)
	return fn
}

// paramAllocs mimics the builder's prologue for a list of parameters: one alloc-for-param plus
// one store per parameter, in declaration order.
func paramAllocs(params []*atomir.Local) (insts []*atomir.Instruction, slots []*atomir.Local) {
	intN, floatN := 0, 0
	for _, p := range params {
		if p.Typ.IsFloatType() {
			floatN++
		} else {
			intN++
		}
		slot := atomir.NewLocal(p.Name+".addr", p.Typ)
		slots = append(slots, slot)
		insts = append(insts,
			&atomir.Instruction{Op: atomir.OpAlloc, Result: slot, AllocForParam: true, AllocIntOrder: intN, AllocFloatOrder: floatN},
			&atomir.Instruction{Op: atomir.OpStore, Value: p, Dest: slot})
	}
	return insts, slots
}

// TestSurplusParamsStayOnCallerStack checks that only the first eight integer parameters get an
// initial store: the ninth and tenth arrive on the caller's stack and their copy is elided.
func TestSurplusParamsStayOnCallerStack(t *testing.T) {
	var params []*atomir.Local
	for i := 0; i < 10; i++ {
		params = append(params, atomir.NewLocal("p", atomir.Int32Ty))
	}
	insts, _ := paramAllocs(params)
	insts = append(insts, &atomir.Instruction{Op: atomir.OpRet})
	fn := intFn("many", params, insts...)

	s, _ := newTestSelector()
	mf := s.SelectFunction(fn, 8)

	stores := 0
	for _, inst := range mf.Blocks[0].Instructions() {
		if inst.Kind == mir.KindStore {
			stores++
		}
	}
	if stores != 8 {
		t.Errorf("got %d parameter stores, want 8", stores)
	}
	for i := 0; i < 8; i++ {
		want := "sw a" + string(rune('0'+i)) + ","
		if !strings.Contains(fnText(mf), want) {
			t.Errorf("missing store of parameter register a%d", i)
		}
	}
}

// TestSurplusParamSlotOffsets checks the positive s0-relative offsets of stack-arriving
// parameters: the ninth integer parameter sits at s0+0, the tenth at s0+8.
func TestSurplusParamSlotOffsets(t *testing.T) {
	var params []*atomir.Local
	for i := 0; i < 10; i++ {
		params = append(params, atomir.NewLocal("p", atomir.Int32Ty))
	}
	insts, slots := paramAllocs(params)
	// Load the two stack parameters back so their slots show up in the emitted text.
	l9 := atomir.NewLocal("l9", atomir.Int32Ty)
	l10 := atomir.NewLocal("l10", atomir.Int32Ty)
	insts = append(insts,
		&atomir.Instruction{Op: atomir.OpLoad, Result: l9, Ptr: slots[8]},
		&atomir.Instruction{Op: atomir.OpLoad, Result: l10, Ptr: slots[9]},
		&atomir.Instruction{Op: atomir.OpRet})
	fn := intFn("many", params, insts...)

	s, _ := newTestSelector()
	mf := s.SelectFunction(fn, 8)

	text := fnText(mf)
	if !strings.Contains(text, "lw %vreg") {
		t.Fatalf("expected loads of stack parameters, got:\n%s", text)
	}
	if !strings.Contains(text, ", 0(s0)") || !strings.Contains(text, ", 8(s0)") {
		t.Errorf("stack parameters not at s0+0/s0+8:\n%s", text)
	}
}

// TestGEPDynamicIndexShifts checks that a non-constant index over 4-byte elements is scaled with
// a single SLLI by 2 rather than a multiply.
func TestGEPDynamicIndexShifts(t *testing.T) {
	p := atomir.NewLocal("i", atomir.Int32Ty)
	insts, slots := paramAllocs([]*atomir.Local{p})

	arr := atomir.NewLocal("a", atomir.ArrayOf(atomir.Int32Ty, 1024))
	idx := atomir.NewLocal("idx", atomir.Int32Ty)
	gep := atomir.NewLocal("gep", atomir.PointerTo(atomir.Int32Ty))
	insts = append(insts,
		&atomir.Instruction{Op: atomir.OpAlloc, Result: arr},
		&atomir.Instruction{Op: atomir.OpLoad, Result: idx, Ptr: slots[0]},
		&atomir.Instruction{Op: atomir.OpGetElementPtr, Result: gep, Ptr: arr,
			Indexes: []atomir.Value{&atomir.ConstantInt{V: 0}, idx}},
		&atomir.Instruction{Op: atomir.OpStore, Value: &atomir.ConstantInt{V: 1}, Dest: gep},
		&atomir.Instruction{Op: atomir.OpRet})
	fn := intFn("arr", []*atomir.Local{p}, insts...)

	s, _ := newTestSelector()
	mf := s.SelectFunction(fn, 8)

	text := fnText(mf)
	if !strings.Contains(text, "slli ") || !strings.Contains(text, ", 2\n") {
		t.Errorf("expected slli by 2 for 4-byte stride:\n%s", text)
	}
	if strings.Contains(text, "mul ") {
		t.Errorf("unexpected multiply for power-of-two stride:\n%s", text)
	}
	if mf.FrameOffset != -(8 + 4 + 4 + 4096) {
		t.Errorf("frame offset = %d, want %d", mf.FrameOffset, -(8 + 4 + 4 + 4096))
	}
}

// TestGEPConstantIndexFolds checks that a constant index is folded into a single LI of the byte
// offset at compile time.
func TestGEPConstantIndexFolds(t *testing.T) {
	arr := atomir.NewLocal("a", atomir.ArrayOf(atomir.Int32Ty, 16))
	gep := atomir.NewLocal("gep", atomir.PointerTo(atomir.Int32Ty))
	fn := intFn("cidx", nil,
		&atomir.Instruction{Op: atomir.OpAlloc, Result: arr},
		&atomir.Instruction{Op: atomir.OpGetElementPtr, Result: gep, Ptr: arr,
			Indexes: []atomir.Value{&atomir.ConstantInt{V: 0}, &atomir.ConstantInt{V: 5}}},
		&atomir.Instruction{Op: atomir.OpStore, Value: &atomir.ConstantInt{V: 7}, Dest: gep},
		&atomir.Instruction{Op: atomir.OpRet})

	s, _ := newTestSelector()
	mf := s.SelectFunction(fn, 8)

	if !strings.Contains(fnText(mf), "li %vreg") || !strings.Contains(fnText(mf), ", 20\n") {
		t.Errorf("expected li of folded byte offset 20:\n%s", fnText(mf))
	}
}

// TestTwoHopBranch checks the branch-range workaround: a conditional branch targets a bridge
// block holding a single jump to the true target, followed by an unconditional jump to the
// false target.
func TestTwoHopBranch(t *testing.T) {
	a := atomir.NewLocal("a", atomir.Int32Ty)
	sa := atomir.NewLocal("sa", atomir.Int32Ty)
	thenB := atomir.NewBlock("then")
	elseB := atomir.NewBlock("else")

	fn := atomir.NewFunction("cj")
	entry := atomir.NewBlock("entry")
	entry.Add(&atomir.Instruction{Op: atomir.OpAlloc, Result: a})
	entry.Add(&atomir.Instruction{Op: atomir.OpStore, Value: &atomir.ConstantInt{V: 3}, Dest: a})
	entry.Add(&atomir.Instruction{Op: atomir.OpLoad, Result: sa, Ptr: a})
	entry.Add(&atomir.Instruction{Op: atomir.OpCondJump, CondOp: atomir.Jlt,
		Operand1: sa, Operand2: &atomir.ConstantInt{V: 10}, Target: thenB, FalseTarget: elseB})
	thenB.Add(&atomir.Instruction{Op: atomir.OpRet})
	elseB.Add(&atomir.Instruction{Op: atomir.OpRet})
	fn.AddBlock(entry)
	fn.AddBlock(thenB)
	fn.AddBlock(elseB)

	s, _ := newTestSelector()
	mf := s.SelectFunction(fn, 8)

	var bridge *mir.Block
	for _, b := range mf.Blocks {
		insts := b.Instructions()
		if len(insts) == 1 && insts[0].Kind == mir.KindJump && insts[0].Target == s.blocks[thenB] {
			bridge = b
		}
	}
	if bridge == nil {
		t.Fatalf("no bridge block found:\n%s", fnText(mf))
	}

	entryInsts := mf.Blocks[0].Instructions()
	var cond, next *mir.Instruction
	for i, inst := range entryInsts {
		if inst.Kind == mir.KindCondJump {
			cond = inst
			next = entryInsts[i+1]
			break
		}
	}
	if cond == nil || cond.Target != bridge {
		t.Fatalf("conditional branch does not target the bridge block:\n%s", fnText(mf))
	}
	if next == nil || next.Kind != mir.KindJump {
		t.Errorf("conditional branch is not followed by the false-target jump:\n%s", fnText(mf))
	}
}

// TestFloatCondJumpComparesAgainstZero checks that a float condition computes its 0/1 result
// with a float set instruction and branches on it against the hardwired zero register.
func TestFloatCondJumpComparesAgainstZero(t *testing.T) {
	f := atomir.NewLocal("f", atomir.Float32Ty)
	sf := atomir.NewLocal("sf", atomir.Float32Ty)
	thenB := atomir.NewBlock("then")
	elseB := atomir.NewBlock("else")

	fn := atomir.NewFunction("fc")
	entry := atomir.NewBlock("entry")
	entry.Add(&atomir.Instruction{Op: atomir.OpAlloc, Result: f})
	entry.Add(&atomir.Instruction{Op: atomir.OpStore, Value: &atomir.ConstantFloat{V: 2}, Dest: f})
	entry.Add(&atomir.Instruction{Op: atomir.OpLoad, Result: sf, Ptr: f})
	entry.Add(&atomir.Instruction{Op: atomir.OpCondJump, IsFloat: true, CondOp: atomir.Jlt,
		Operand1: sf, Operand2: &atomir.ConstantFloat{V: 1}, Target: thenB, FalseTarget: elseB})
	thenB.Add(&atomir.Instruction{Op: atomir.OpRet})
	elseB.Add(&atomir.Instruction{Op: atomir.OpRet})
	fn.AddBlock(entry)
	fn.AddBlock(thenB)
	fn.AddBlock(elseB)

	s, pool := newTestSelector()
	mf := s.SelectFunction(fn, 8)

	text := fnText(mf)
	if !strings.Contains(text, "fslt.s ") {
		t.Errorf("expected fslt.s for float less-than:\n%s", text)
	}
	if !strings.Contains(text, "bne %vreg") || !strings.Contains(text, ", zero, ") {
		t.Errorf("expected bne against zero:\n%s", text)
	}
	if len(pool.Entries()) != 2 {
		t.Errorf("pool has %d entries, want 2 (the 2.0 and 1.0 literals)", len(pool.Entries()))
	}
}

// TestFloatPoolInterns checks that two uses of the same literal share one label and that
// distinct literals get distinct labels.
func TestFloatPoolInterns(t *testing.T) {
	pool := NewFloatPool()
	a := pool.Intern(0.5)
	b := pool.Intern(0.5)
	c := pool.Intern(1.5)
	if a != b {
		t.Errorf("same literal interned twice: %s vs %s", a, b)
	}
	if a == c {
		t.Errorf("distinct literals share label %s", a)
	}
	if n := len(pool.Entries()); n != 2 {
		t.Errorf("pool has %d entries, want 2", n)
	}
}

// TestSurplusCallArgSpilledAfterProducer checks that the ninth argument of a call is stored to
// sp+0 immediately after the instruction producing it, and that the outgoing-argument footprint
// is recorded.
func TestSurplusCallArgSpilledAfterProducer(t *testing.T) {
	var args []atomir.Value
	for i := 0; i < 9; i++ {
		args = append(args, &atomir.ConstantInt{V: int32(i)})
	}
	fn := intFn("caller", nil,
		&atomir.Instruction{Op: atomir.OpCall, FuncName: "sink", Params: args},
		&atomir.Instruction{Op: atomir.OpRet})
	fn.HasFunctionCall = true

	s, _ := newTestSelector()
	mf := s.SelectFunction(fn, 16)

	if mf.MaxOutgoingArgBytes != 8 {
		t.Errorf("MaxOutgoingArgBytes = %d, want 8", mf.MaxOutgoingArgBytes)
	}
	insts := mf.Blocks[0].Instructions()
	found := false
	for i, inst := range insts {
		if inst.Kind == mir.KindStore && inst.Base != nil && inst.Base.Name() == "sp" && inst.Imm == 0 {
			if i == 0 || insts[i-1].Dst != inst.Src1 {
				t.Errorf("spill store not directly after its producer")
			}
			found = true
		}
	}
	if !found {
		t.Fatalf("no spill store to 0(sp) found:\n%s", fnText(mf))
	}
	if !mf.HasCall {
		t.Errorf("HasCall not set")
	}
}

// TestItoFAfterFseqSplitsControlFlow checks the conversion-of-a-comparison pattern: the integer
// 0/1 produced by FSEQ.S is turned into 1.0f/0.0f by branching, not by FCVT.S.W.
func TestItoFAfterFseqSplitsControlFlow(t *testing.T) {
	f := atomir.NewLocal("f", atomir.Float32Ty)
	sf := atomir.NewLocal("sf", atomir.Float32Ty)
	eq := atomir.NewLocal("eq", atomir.Int32Ty)
	conv := atomir.NewLocal("conv", atomir.Float32Ty)

	fn := intFn("itof", nil,
		&atomir.Instruction{Op: atomir.OpAlloc, Result: f},
		&atomir.Instruction{Op: atomir.OpStore, Value: &atomir.ConstantFloat{V: 2}, Dest: f},
		&atomir.Instruction{Op: atomir.OpLoad, Result: sf, Ptr: f},
		&atomir.Instruction{Op: atomir.OpBinary, Result: eq, BinOp: atomir.Eq, IsFloat: true,
			Operand1: sf, Operand2: &atomir.ConstantFloat{V: 2}},
		&atomir.Instruction{Op: atomir.OpItoF, Result: conv, Operand1: eq},
		&atomir.Instruction{Op: atomir.OpRet, RetValue: conv})

	s, _ := newTestSelector()
	mf := s.SelectFunction(fn, 8)

	text := fnText(mf)
	if strings.Contains(text, "fcvt.s.w") {
		t.Errorf("conversion of a comparison result must not use fcvt.s.w:\n%s", text)
	}
	if !strings.Contains(text, "fmv.w.x ") {
		t.Errorf("expected fmv.w.x materializing 0.0f:\n%s", text)
	}
	// Entry, one/zero/after from the split, plus the return block.
	if len(mf.Blocks) < 5 {
		t.Errorf("expected the split to add blocks, got %d", len(mf.Blocks))
	}
}

// TestReturnConstantLoadsArgRegisterDirectly checks that `return 0` materializes the literal
// straight into a0.
func TestReturnConstantLoadsArgRegisterDirectly(t *testing.T) {
	fn := intFn("main", nil,
		&atomir.Instruction{Op: atomir.OpRet, RetValue: &atomir.ConstantInt{V: 0}})

	s, _ := newTestSelector()
	mf := s.SelectFunction(fn, 8)

	if !strings.Contains(fnText(mf), "li a0, 0\n") {
		t.Errorf("expected li a0, 0:\n%s", fnText(mf))
	}
}

// TestImmediateBinaryForms checks that a literal operand picks the immediate instruction form
// when it fits: addiw for addition, slti for comparison.
func TestImmediateBinaryForms(t *testing.T) {
	a := atomir.NewLocal("a", atomir.Int32Ty)
	sa := atomir.NewLocal("sa", atomir.Int32Ty)
	sum := atomir.NewLocal("sum", atomir.Int32Ty)
	cmp := atomir.NewLocal("cmp", atomir.Int32Ty)

	fn := intFn("imm", nil,
		&atomir.Instruction{Op: atomir.OpAlloc, Result: a},
		&atomir.Instruction{Op: atomir.OpStore, Value: &atomir.ConstantInt{V: 3}, Dest: a},
		&atomir.Instruction{Op: atomir.OpLoad, Result: sa, Ptr: a},
		&atomir.Instruction{Op: atomir.OpBinary, Result: sum, BinOp: atomir.Add,
			Operand1: sa, Operand2: &atomir.ConstantInt{V: 41}},
		&atomir.Instruction{Op: atomir.OpBinary, Result: cmp, BinOp: atomir.Lt,
			Operand1: sa, Operand2: &atomir.ConstantInt{V: 100}},
		&atomir.Instruction{Op: atomir.OpRet, RetValue: sum})

	s, _ := newTestSelector()
	mf := s.SelectFunction(fn, 8)

	text := fnText(mf)
	if !strings.Contains(text, "addiw ") || !strings.Contains(text, ", 41\n") {
		t.Errorf("expected addiw with immediate 41:\n%s", text)
	}
	if !strings.Contains(text, "slti ") || !strings.Contains(text, ", 100\n") {
		t.Errorf("expected slti with immediate 100:\n%s", text)
	}
}

// TestOutOfRangeStoreSplitsOffset checks that a frame slot past the 12-bit range is addressed
// through LUI+ADD with a reduced low offset.
func TestOutOfRangeStoreSplitsOffset(t *testing.T) {
	big := atomir.NewLocal("big", atomir.ArrayOf(atomir.Int32Ty, 2560)) // 10240 bytes.
	b := atomir.NewLocal("b", atomir.Int32Ty)

	fn := intFn("deep", nil,
		&atomir.Instruction{Op: atomir.OpAlloc, Result: big},
		&atomir.Instruction{Op: atomir.OpAlloc, Result: b},
		&atomir.Instruction{Op: atomir.OpStore, Value: &atomir.ConstantInt{V: 1}, Dest: b},
		&atomir.Instruction{Op: atomir.OpRet})

	s, _ := newTestSelector()
	mf := s.SelectFunction(fn, 8)

	text := fnText(mf)
	if !strings.Contains(text, "lui ") {
		t.Fatalf("expected lui for out-of-range frame offset:\n%s", text)
	}
	for _, blk := range mf.Blocks {
		for _, inst := range blk.Instructions() {
			if (inst.Kind == mir.KindStore || inst.Kind == mir.KindLoad) && !mir.InRange(inst.Imm) {
				t.Errorf("memory access with out-of-range offset %d", inst.Imm)
			}
		}
	}
}
