package mir

import "testing"

// TestInRange checks the boundaries of the 12-bit signed immediate domain.
func TestInRange(t *testing.T) {
	for _, tc := range []struct {
		imm  int
		want bool
	}{
		{0, true},
		{2047, true},
		{-2048, true},
		{2048, false},
		{-2049, false},
		{10000, false},
	} {
		if got := InRange(tc.imm); got != tc.want {
			t.Errorf("InRange(%d) = %v, want %v", tc.imm, got, tc.want)
		}
	}
}

// TestSplitImmediate checks that hi20/lo12 recombine to the original offset and that lo12 always
// lands inside the encodable immediate range, including the adjustment cases where the raw low
// 12 bits would sign-extend negatively.
func TestSplitImmediate(t *testing.T) {
	for _, offset := range []int{2048, 4095, 4096, 4097, 10240, 20000, -2049, -4096, -10244, 1 << 20, (1 << 20) + 2047} {
		hi20, lo12 := SplitImmediate(offset)
		if lo12 < ImmMin || lo12 > ImmMax {
			t.Errorf("SplitImmediate(%d): lo12 %d out of range", offset, lo12)
		}
		if hi20 < 0 || hi20 > 0xfffff {
			t.Errorf("SplitImmediate(%d): hi20 %d not encodable by lui", offset, hi20)
		}
		// Recombine the way the hardware does: lui materializes hi20<<12 sign-extended from
		// bit 31, then the low part is added on.
		if got := int(int32(uint32(hi20)<<12)) + lo12; got != offset {
			t.Errorf("SplitImmediate(%d): recombined to %d", offset, got)
		}
	}
}

// TestSplitImmediateAdjustment pins the case where the low 12 bits exceed 2047: the high part
// absorbs one extra unit and the low part wraps negative.
func TestSplitImmediateAdjustment(t *testing.T) {
	hi20, lo12 := SplitImmediate(4095) // 0xFFF
	if hi20 != 1 || lo12 != -1 {
		t.Errorf("SplitImmediate(4095) = (%d, %d), want (1, -1)", hi20, lo12)
	}
}
