package regalloc

import (
	"atomc/src/backend/mir"
	"atomc/src/backend/regfile"
)

// spillOps returns the load/store opcodes appropriate for a spilled register's bank. Integer
// registers spill as full doublewords: the bank carries pointers as well as 32-bit values, and
// a truncating sw would corrupt an address.
func spillOps(bank regfile.Bank) (load, store mir.Op) {
	if bank == regfile.Float {
		return mir.OpFlw, mir.OpFsw
	}
	return mir.OpLd, mir.OpSd
}

// spillSlotBytes is the frame space one spilled register takes.
func spillSlotBytes(bank regfile.Bank) int {
	if bank == regfile.Float {
		return 4
	}
	return 8
}

// rewriteSpills gives every register in spilled a stack slot and rewrites every block of f so
// that each use is preceded by a reload into a scratch register and each def is followed by a
// store from it, binding the spilled register itself to the scratch register's name for the
// span of that single instruction. r1 and r2 are the two scratch registers reserved for this
// bank; an instruction with two distinct spilled uses needs both at once (e.g. `add t, x, y`
// where both x and y spilled).
// TODO: spill slot offsets are emitted as-is without the LUI+ADD splitting the selector applies
// elsewhere; a function with enough spilled registers to push a slot past the 12-bit immediate
// range would need the same treatment.
func rewriteSpills(f *mir.Function, spilled []*regfile.Register, s0, r1, r2 *regfile.Register) {
	slot := make(map[*regfile.Register]int, len(spilled))
	for _, r := range spilled {
		slot[r] = f.AllocSpillSlot(spillSlotBytes(r.Bank()))
	}
	isSpilled := func(r *regfile.Register) bool {
		_, ok := slot[r]
		return ok
	}

	for _, b := range f.Blocks {
		var out []*mir.Instruction
		for _, inst := range b.Instructions() {
			scratchIdx := 0
			nextScratch := func() *regfile.Register {
				scratchIdx++
				if scratchIdx == 1 {
					return r1
				}
				return r2
			}

			replaced := map[*regfile.Register]*regfile.Register{}
			for _, u := range inst.Uses() {
				if !isSpilled(u) || replaced[u] != nil {
					continue
				}
				scratch := nextScratch()
				load, _ := spillOps(u.Bank())
				out = append(out, mir.NewLoad(load, scratch, s0, slot[u]))
				replaced[u] = scratch
			}
			rewriteOperands(inst, replaced)

			out = append(out, inst)

			if d := inst.Defs(); d != nil && isSpilled(d) {
				scratch := replaced[d]
				if scratch == nil {
					scratch = nextScratch()
					inst.Dst = scratch
				}
				_, store := spillOps(d.Bank())
				out = append(out, mir.NewStore(store, scratch, s0, slot[d]))
			}
		}
		b.SetInstructions(out)
	}
}

// rewriteOperands substitutes every register operand of inst found in replaced with its scratch
// stand-in, in place.
func rewriteOperands(inst *mir.Instruction, replaced map[*regfile.Register]*regfile.Register) {
	if r, ok := replaced[inst.Base]; ok {
		inst.Base = r
	}
	if r, ok := replaced[inst.Src1]; ok {
		inst.Src1 = r
	}
	if r, ok := replaced[inst.Src2]; ok {
		inst.Src2 = r
	}
	for i, u := range inst.CallUses {
		if r, ok := replaced[u]; ok {
			inst.CallUses[i] = r
		}
	}
}
