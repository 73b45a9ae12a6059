package mir

import (
	"atomc/src/backend/regfile"
	"atomc/src/util"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Block is an ordered sequence of machine instructions with a monotonically assigned label.
type Block struct {
	label string
	insts []*Instruction
}

// Function is the machine-level representation of a single AtomIR function: its basic blocks,
// the selector-computed frame offset, and the bookkeeping the allocator/frame finalizer need.
type Function struct {
	Name string

	Blocks []*Block // Entry block first, then body blocks, then the single return block.

	FrameOffset int  // Negative, growing downward from s0. Set by the selector; spill slots go below it.
	HasCall     bool // True if this function issues at least one CALL.

	MaxOutgoingArgBytes int // Largest outgoing-argument stack footprint observed across all calls.
	SpillBytes          int // Stack bytes handed out to the register allocator's spill slots this pass.

	usedSaved map[*regfile.Register]bool // Callee-saved physical registers actually used this pass.
}

// AllocSpillSlot hands out size bytes of frame space below the locals the selector already
// placed, for a register the allocator could not find a colour for, and returns its offset from
// s0. Called once per spilled virtual register per allocation pass.
func (f *Function) AllocSpillSlot(size int) int {
	align := 4
	if size > 4 {
		align = 8
	}
	if rem := (f.FrameOffset*-1 + f.SpillBytes) % align; rem != 0 {
		f.SpillBytes += align - rem
	}
	f.SpillBytes += size
	return f.FrameOffset - f.SpillBytes
}

// ---------------------
// ----- Functions -----
// ---------------------

var blockSeq int

// NewBlock returns a fresh basic block with a unique, monotonically assigned label.
func NewBlock() *Block {
	blockSeq++
	return &Block{label: util.BlockLabel(blockSeq)}
}

// ResetBlockLabels restarts block numbering. The codegen driver calls it once per module so that
// compiling the same module twice yields byte-identical assembly.
func ResetBlockLabels() {
	blockSeq = 0
}

// NewNamedBlock returns a basic block with an explicit label, used for the function entry block
// and the single return block (".<funcname>_ret").
func NewNamedBlock(label string) *Block {
	return &Block{label: label}
}

// Label returns the assembler label of b.
func (b *Block) Label() string { return b.label }

// Instructions returns the ordered instruction list of b.
func (b *Block) Instructions() []*Instruction { return b.insts }

// Add appends inst to the end of b.
func (b *Block) Add(inst *Instruction) {
	b.insts = append(b.insts, inst)
}

// InsertAfter inserts inst immediately after the instruction at index idx. Used by call-argument
// staging, which must insert a spill store right after the instruction that produced the
// argument value and before any later instruction -- never at the tail of the block.
func (b *Block) InsertAfter(idx int, inst *Instruction) {
	b.insts = append(b.insts, nil)
	copy(b.insts[idx+2:], b.insts[idx+1:])
	b.insts[idx+1] = inst
}

// SetInstructions replaces b's instruction list wholesale. Used by the register allocator's
// spill rewrite pass, which must splice load/store pairs around every spilled operand rather
// than insert relative to a single index.
func (b *Block) SetInstructions(insts []*Instruction) {
	b.insts = insts
}

// IndexOfDef returns the index of the instruction defining reg, or -1 if none is found in b.
func (b *Block) IndexOfDef(reg *regfile.Register) int {
	for idx, inst := range b.insts {
		if inst.Dst == reg {
			return idx
		}
	}
	return -1
}

// NewFunction returns an empty machine-level Function named name.
func NewFunction(name string) *Function {
	return &Function{Name: name, usedSaved: make(map[*regfile.Register]bool)}
}

// AddBlock appends b to the function's block list.
func (f *Function) AddBlock(b *Block) {
	f.Blocks = append(f.Blocks, b)
}

// MarkSaved records that the callee-saved physical register reg was bound to some virtual
// register during this allocation pass, and so must be preserved across the function body.
func (f *Function) MarkSaved(reg *regfile.Register) {
	f.usedSaved[reg] = true
}

// UsedSaved returns the callee-saved registers this pass actually bound to a value, sorted by
// register id for deterministic iteration (required by the byte-identical-output invariant).
func (f *Function) UsedSaved() []*regfile.Register {
	out := make([]*regfile.Register, 0, len(f.usedSaved))
	for r := range f.usedSaved {
		out = append(out, r)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].Id() > out[j].Id(); j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// ResetSavedSet clears the used-callee-saved bookkeeping in preparation for the next fixed-point
// iteration. It does not affect FrameOffset or MaxOutgoingArgBytes, which are recomputed by the
// selector on every iteration from scratch.
func (f *Function) ResetSavedSet() {
	f.usedSaved = make(map[*regfile.Register]bool)
}

// SavedSetEqual reports whether the callee-saved sets of f and other contain exactly the same
// physical registers, used by the driver to detect fixed-point convergence.
func (f *Function) SavedSetEqual(other map[*regfile.Register]bool) bool {
	if len(f.usedSaved) != len(other) {
		return false
	}
	for r := range f.usedSaved {
		if !other[r] {
			return false
		}
	}
	return true
}

// SavedSetSnapshot returns a copy of the current used-callee-saved-register set.
func (f *Function) SavedSetSnapshot() map[*regfile.Register]bool {
	out := make(map[*regfile.Register]bool, len(f.usedSaved))
	for r := range f.usedSaved {
		out[r] = true
	}
	return out
}
