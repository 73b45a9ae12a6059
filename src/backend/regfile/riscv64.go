// RISC-V has a downward growing stack that is always 16-bytes aligned.

package regfile

import "fmt"

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// File owns the fixed physical registers of RV64GC and the counters needed to hand out fresh
// virtual registers during instruction selection.
type File struct {
	Zero *Register // x0, hardwired zero.
	Ra   *Register // x1, return address.
	Sp   *Register // x2, stack pointer.
	S0   *Register // x8, frame pointer.

	IntArg     [NumArg]*Register        // a0-a7.
	FloatArg   [NumArg]*Register        // fa0-fa7.
	IntTemp    [NumIntTemp]*Register    // t0-t6.
	FloatTemp  [NumFloatTemp]*Register  // ft0-ft11.
	IntSaved   [NumIntSaved]*Register   // s1-s11 (s0 tracked separately above).
	FloatSaved [NumFloatSaved]*Register // fs0-fs11.

	next int // Next virtual register identity to hand out.
}

// ---------------------
// ----- Functions -----
// ---------------------

// New builds the fixed RV64GC register file described in the data model: ra, sp, s0, zero,
// a0-a7/fa0-fa7, t0-t6/ft0-ft11, s1-s11/fs0-fs11.
func New() *File {
	f := &File{}
	id := 0
	fixed := func(bank Bank, class Class, name string) *Register {
		id++
		return &Register{id: id, bank: bank, fixed: true, name: name, class: class}
	}

	f.Zero = fixed(Int, ClassReserved, "zero")
	f.Ra = fixed(Int, ClassReserved, "ra")
	f.Sp = fixed(Int, ClassReserved, "sp")
	f.S0 = fixed(Int, ClassReserved, "s0")

	for i := 0; i < NumArg; i++ {
		f.IntArg[i] = fixed(Int, ClassArg, fmt.Sprintf("a%d", i))
		f.FloatArg[i] = fixed(Float, ClassArg, fmt.Sprintf("fa%d", i))
	}
	for i := 0; i < NumIntTemp; i++ {
		f.IntTemp[i] = fixed(Int, ClassTemp, fmt.Sprintf("t%d", i))
	}
	for i := 0; i < NumFloatTemp; i++ {
		f.FloatTemp[i] = fixed(Float, ClassTemp, fmt.Sprintf("ft%d", i))
	}
	for i := 0; i < NumIntSaved; i++ {
		f.IntSaved[i] = fixed(Int, ClassSaved, fmt.Sprintf("s%d", i+1))
	}
	for i := 0; i < NumFloatSaved; i++ {
		f.FloatSaved[i] = fixed(Float, ClassSaved, fmt.Sprintf("fs%d", i))
	}
	f.next = id
	return f
}

// NewVirtual returns a fresh, unbound virtual register of the given bank. Every machine
// instruction destination created by the selector comes from this call, guaranteeing the
// single-static-assignment invariant at the machine level prior to allocation.
func (f *File) NewVirtual(bank Bank) *Register {
	f.next++
	return &Register{id: f.next, bank: bank}
}

// CalleeSaved returns every callee-saved physical register the allocator is allowed to draw
// spill-free values from, integer bank first, then float.
func (f *File) CalleeSaved() []*Register {
	res := make([]*Register, 0, NumIntSaved+NumFloatSaved)
	for _, r := range f.IntSaved {
		res = append(res, r)
	}
	for _, r := range f.FloatSaved {
		res = append(res, r)
	}
	return res
}

// CallerSaved returns every caller-saved temp register (not argument registers) the allocator
// prefers to draw from before spilling into callee-saved registers.
func (f *File) CallerSaved() []*Register {
	res := make([]*Register, 0, NumIntTemp+NumFloatTemp)
	for _, r := range f.IntTemp {
		res = append(res, r)
	}
	for _, r := range f.FloatTemp {
		res = append(res, r)
	}
	return res
}
