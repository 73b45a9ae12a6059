package regalloc

import (
	"strings"
	"testing"

	"atomc/src/backend/mir"
	"atomc/src/backend/regfile"
)

// frameText renders f for substring assertions.
func frameText(f *mir.Function) string {
	sb := strings.Builder{}
	for _, b := range f.Blocks {
		sb.WriteString(b.String())
	}
	return sb.String()
}

// leafFn returns a minimal two-block function with the given selector-reported frame offset.
func leafFn(offset int, hasCall bool) *mir.Function {
	f := mir.NewFunction("t")
	f.FrameOffset = offset
	f.HasCall = hasCall
	f.AddBlock(mir.NewBlock())
	ret := mir.NewNamedBlock(".t_ret")
	ret.Add(mir.NewRet())
	f.AddBlock(ret)
	return f
}

// TestSmallFrameShape checks the single-ADDI prologue: sp drop, s0 save at the frame top, frame
// pointer re-established at the old sp, and the mirrored epilogue.
func TestSmallFrameShape(t *testing.T) {
	file := regfile.New()
	f := leafFn(-8, false)
	FinalizeFrame(f, file)

	text := frameText(f)
	for _, want := range []string{
		"addi sp, sp, -16\n",
		"sd s0, 8(sp)\n",
		"addi s0, sp, 16\n",
		"ld s0, 8(sp)\n",
		"addi sp, sp, 16\n",
		"ret\n",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in:\n%s", want, text)
		}
	}
	if strings.Contains(text, "sd ra") {
		t.Errorf("leaf function must not save ra:\n%s", text)
	}
}

// TestFrameSavesRaOnlyWithCalls checks invariant: ra is saved if and only if the function makes
// at least one call.
func TestFrameSavesRaOnlyWithCalls(t *testing.T) {
	file := regfile.New()
	f := leafFn(-16, true)
	FinalizeFrame(f, file)

	text := frameText(f)
	if !strings.Contains(text, "sd ra, 8(sp)\n") || !strings.Contains(text, "ld ra, 8(sp)\n") {
		t.Errorf("calling function must save and restore ra at the frame top:\n%s", text)
	}
	if !strings.Contains(text, "sd s0, 0(sp)\n") {
		t.Errorf("s0 must sit 8 bytes under ra:\n%s", text)
	}
}

// TestFrameSizeMultipleOf16 checks rounding across a range of raw frame sizes.
func TestFrameSizeMultipleOf16(t *testing.T) {
	file := regfile.New()
	for _, off := range []int{-4, -8, -12, -20, -100, -2040} {
		f := leafFn(off, false)
		FinalizeFrame(f, file)
		first := f.Blocks[0].Instructions()[0]
		if first.Op != mir.OpAddi || first.Imm >= 0 || (-first.Imm)%16 != 0 {
			t.Errorf("offset %d: first prologue instruction %q does not drop sp by a multiple of 16", off, first.String())
		}
	}
}

// TestCalleeSavedSpillArea checks that every register the allocator reported is saved below s0
// in the prologue and restored in the epilogue, 8 bytes apart.
func TestCalleeSavedSpillArea(t *testing.T) {
	file := regfile.New()
	f := leafFn(-32, true) // 16 reserved + two 8-byte save slots, as the selector would reserve.
	f.MarkSaved(file.IntSaved[0])
	f.MarkSaved(file.IntSaved[1])
	FinalizeFrame(f, file)

	text := frameText(f)
	for _, want := range []string{
		"sd ra, 24(sp)\n",
		"sd s0, 16(sp)\n",
		"sd s1, 8(sp)\n",
		"sd s2, 0(sp)\n",
		"ld s1, 8(sp)\n",
		"ld s2, 0(sp)\n",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in:\n%s", want, text)
		}
	}
}

// TestLargeFrameShape checks the two-step adjustment of a frame past the 12-bit immediate range:
// the fixed 2032 bump with saves at 2024 downward, the remainder through t0, and an epilogue
// that undoes both steps in reverse.
func TestLargeFrameShape(t *testing.T) {
	file := regfile.New()
	f := leafFn(-4112, true) // e.g. a 4 KiB local array plus the reserved save area.
	FinalizeFrame(f, file)

	text := frameText(f)
	for _, want := range []string{
		"addi sp, sp, -2032\n",
		"sd ra, 2024(sp)\n",
		"sd s0, 2016(sp)\n",
		"addi s0, sp, 2032\n",
		"li t0, -2080\n",
		"add sp, sp, t0\n",
		"li t0, 2080\n",
		"ld ra, 2024(sp)\n",
		"ld s0, 2016(sp)\n",
		"addi sp, sp, 2032\n",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in:\n%s", want, text)
		}
	}
	for _, b := range f.Blocks {
		for _, inst := range b.Instructions() {
			if (inst.Kind == mir.KindLoad || inst.Kind == mir.KindStore) && !mir.InRange(inst.Imm) {
				t.Errorf("prologue/epilogue access with out-of-range offset %d", inst.Imm)
			}
		}
	}
}

// TestFloatCalleeSavedUsesDoublewordForms checks that fs registers are saved with fsd/fld.
func TestFloatCalleeSavedUsesDoublewordForms(t *testing.T) {
	file := regfile.New()
	f := leafFn(-16, false)
	f.MarkSaved(file.FloatSaved[0])
	FinalizeFrame(f, file)

	text := frameText(f)
	if !strings.Contains(text, "fsd fs0, ") || !strings.Contains(text, "fld fs0, ") {
		t.Errorf("float callee-saved register not saved with fsd/fld:\n%s", text)
	}
}
