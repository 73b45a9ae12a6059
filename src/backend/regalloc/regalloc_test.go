package regalloc

import (
	"strings"
	"testing"

	"atomc/src/backend/mir"
	"atomc/src/backend/regfile"
)

// buildFn wraps blocks into a function whose last block is the return block, the shape the
// selector always produces.
func buildFn(name string, blocks ...*mir.Block) *mir.Function {
	f := mir.NewFunction(name)
	for _, b := range blocks {
		f.AddBlock(b)
	}
	return f
}

// TestAllocateBindsAllVirtuals checks that every virtual register of a straight-line block ends
// up bound to a physical register and that interfering registers get distinct names.
func TestAllocateBindsAllVirtuals(t *testing.T) {
	file := regfile.New()
	b := mir.NewBlock()
	ret := mir.NewNamedBlock(".f_ret")

	v1 := file.NewVirtual(regfile.Int)
	v2 := file.NewVirtual(regfile.Int)
	v3 := file.NewVirtual(regfile.Int)
	b.Add(mir.NewLi(v1, 1))
	b.Add(mir.NewLi(v2, 2))
	b.Add(mir.NewBinaryReg(mir.OpAddw, v3, v1, v2))
	b.Add(mir.NewUnary(mir.OpMv, file.IntArg[0], v3))
	b.Add(mir.NewJump(ret))
	ret.Add(mir.NewRet())

	f := buildFn("f", b, ret)
	New(file).Allocate(f)

	for _, v := range []*regfile.Register{v1, v2, v3} {
		if !v.Bound() {
			t.Errorf("virtual register %d left unbound", v.Id())
		}
	}
	if v1.Name() == v2.Name() {
		t.Errorf("interfering registers share %s", v1.Name())
	}
	if len(f.UsedSaved()) != 0 {
		t.Errorf("straight-line code should not touch callee-saved registers")
	}
}

// TestValueLiveAcrossCallGetsCalleeSaved checks that a register whose value must survive a call
// is never coloured caller-saved, and that the callee-saved set is reported.
func TestValueLiveAcrossCallGetsCalleeSaved(t *testing.T) {
	file := regfile.New()
	b := mir.NewBlock()
	ret := mir.NewNamedBlock(".g_ret")

	v1 := file.NewVirtual(regfile.Int)
	b.Add(mir.NewLi(v1, 7))
	call := mir.NewCall("ext")
	b.Add(call)
	// v1 used after the call: it is live across it.
	b.Add(mir.NewUnary(mir.OpMv, file.IntArg[0], v1))
	b.Add(mir.NewJump(ret))
	ret.Add(mir.NewRet())

	f := buildFn("g", b, ret)
	f.HasCall = true
	New(file).Allocate(f)

	if !v1.Bound() {
		t.Fatalf("v1 left unbound")
	}
	if v1.Class() != regfile.ClassSaved {
		t.Errorf("call-crossing value bound to %s (class %d), want a callee-saved register", v1.Name(), v1.Class())
	}
	saved := f.UsedSaved()
	if len(saved) != 1 || saved[0].Name() != v1.Name() {
		t.Errorf("callee-saved set not reported: %v", saved)
	}
}

// TestSpillUnderPressure builds more simultaneously live registers than the two banks' pools can
// hold and checks that the allocator falls back to memory, rewriting with the reserved scratch
// registers rather than leaving anything unbound.
func TestSpillUnderPressure(t *testing.T) {
	file := regfile.New()
	b := mir.NewBlock()
	ret := mir.NewNamedBlock(".h_ret")

	// 40 registers all live at once: defined up front, all consumed at the bottom.
	const n = 40
	vs := make([]*regfile.Register, n)
	for i := range vs {
		vs[i] = file.NewVirtual(regfile.Int)
		b.Add(mir.NewLi(vs[i], i))
	}
	acc := file.NewVirtual(regfile.Int)
	b.Add(mir.NewBinaryReg(mir.OpAddw, acc, vs[0], vs[1]))
	for i := 2; i < n; i++ {
		next := file.NewVirtual(regfile.Int)
		b.Add(mir.NewBinaryReg(mir.OpAddw, next, acc, vs[i]))
		acc = next
	}
	b.Add(mir.NewUnary(mir.OpMv, file.IntArg[0], acc))
	b.Add(mir.NewJump(ret))
	ret.Add(mir.NewRet())

	f := buildFn("h", b, ret)
	f.FrameOffset = -8
	New(file).Allocate(f)

	if f.SpillBytes == 0 {
		t.Fatalf("expected spills with %d simultaneously live registers", n)
	}
	text := strings.Builder{}
	for _, blk := range f.Blocks {
		text.WriteString(blk.String())
	}
	if strings.Contains(text.String(), "%vreg") {
		t.Errorf("unbound virtual register survives allocation:\n%s", text.String())
	}
}

// TestLivenessAcrossBlocks checks that a value defined in one block and used in a later one is
// seen as live-out of the defining block.
func TestLivenessAcrossBlocks(t *testing.T) {
	file := regfile.New()
	b1 := mir.NewBlock()
	b2 := mir.NewBlock()

	v := file.NewVirtual(regfile.Int)
	b1.Add(mir.NewLi(v, 1))
	b1.Add(mir.NewJump(b2))
	b2.Add(mir.NewUnary(mir.OpMv, file.IntArg[0], v))
	b2.Add(mir.NewRet())

	f := buildFn("lv", b1, b2)
	lv := computeLiveness(f)
	if !lv.liveOut[b1].has(v) {
		t.Errorf("value used in successor not live-out of its defining block")
	}
	if !lv.liveIn[b2].has(v) {
		t.Errorf("value not live-in to its using block")
	}
}
