package regalloc

import (
	"atomc/src/backend/mir"
	"atomc/src/backend/regfile"
)

// largeFrameBump is the fixed first-step stack adjustment used once a frame no longer fits in a
// single ADDI. 2032 rather than 2048: -2048 encodes but +2048 does not, and the epilogue needs
// to add the same constant back.
const largeFrameBump = 2032

// FinalizeFrame computes f's total stack frame size -- locals and spill slots (which already sit
// below the save area the selector reserved), plus the outgoing-argument area at the bottom --
// rounds it to the next multiple of 16, then fills the entry block's prologue and the return
// block's epilogue. It must run after the fixed-point loop has settled: the save offsets it
// emits assume the selector's reserved area matches the callee-saved set the final allocation
// pass reported.
func FinalizeFrame(f *mir.Function, file *regfile.File) {
	saved := f.UsedSaved()

	size := -f.FrameOffset + f.SpillBytes + f.MaxOutgoingArgBytes
	if rem := size % 16; rem != 0 {
		size += 16 - rem
	}

	entry := f.Blocks[0]
	ret := f.Blocks[len(f.Blocks)-1]

	// The small form needs both `addi sp, sp, -size` and `addi s0, sp, size` to encode, so the
	// boundary is the positive immediate limit: a 2048-byte frame already takes the large form.
	if mir.InRange(size) {
		smallFrame(entry, ret, size, saved, f.HasCall, file)
	} else {
		largeFrame(entry, ret, size, saved, f.HasCall, file)
	}
}

// smallFrame emits the single-ADDI prologue and its mirror epilogue: drop sp by the whole frame,
// save ra (only when the body calls) and s0 at the top, each used callee-saved register 8 bytes
// below the previous, and point s0 at the old sp so locals keep their selection-time offsets.
func smallFrame(entry, ret *mir.Block, size int, saved []*regfile.Register, hasCall bool, file *regfile.File) {
	var pro, epi []*mir.Instruction

	pro = append(pro, mir.NewBinaryImm(mir.OpAddi, file.Sp, file.Sp, -size))

	off := size - 8
	if hasCall {
		pro = append(pro, mir.NewStore(mir.OpSd, file.Ra, file.Sp, off))
		epi = append(epi, mir.NewLoad(mir.OpLd, file.Ra, file.Sp, off))
		off -= 8
	}
	pro = append(pro, mir.NewStore(mir.OpSd, file.S0, file.Sp, off))
	epi = append(epi, mir.NewLoad(mir.OpLd, file.S0, file.Sp, off))
	for _, r := range saved {
		off -= 8
		pro = append(pro, mir.NewStore(saveOp(r), r, file.Sp, off))
		epi = append(epi, mir.NewLoad(restoreOp(r), r, file.Sp, off))
	}

	pro = append(pro, mir.NewBinaryImm(mir.OpAddi, file.S0, file.Sp, size))
	epi = append(epi, mir.NewBinaryImm(mir.OpAddi, file.Sp, file.Sp, size))

	entry.SetInstructions(append(pro, entry.Instructions()...))
	ret.SetInstructions(append(epi, ret.Instructions()...))
}

// largeFrame splits the stack adjustment in two: a fixed 2032-byte ADDI bump, under which ra/s0
// and the callee-saved registers are stored at offsets 2024, 2016, ... (always encodable), then
// the negated remainder materialized into t0 and added to sp. t0 is free here: no user value is live
// across the prologue/epilogue boundary. The epilogue mirrors the same two steps in reverse.
func largeFrame(entry, ret *mir.Block, size int, saved []*regfile.Register, hasCall bool, file *regfile.File) {
	var pro, epi []*mir.Instruction
	t0 := file.IntTemp[0]

	pro = append(pro, mir.NewBinaryImm(mir.OpAddi, file.Sp, file.Sp, -largeFrameBump))
	epi = append(epi,
		mir.NewLi(t0, size-largeFrameBump),
		mir.NewBinaryReg(mir.OpAdd, file.Sp, file.Sp, t0))

	off := largeFrameBump - 8
	if hasCall {
		pro = append(pro, mir.NewStore(mir.OpSd, file.Ra, file.Sp, off))
		epi = append(epi, mir.NewLoad(mir.OpLd, file.Ra, file.Sp, off))
		off -= 8
	}
	pro = append(pro, mir.NewStore(mir.OpSd, file.S0, file.Sp, off))
	epi = append(epi, mir.NewLoad(mir.OpLd, file.S0, file.Sp, off))
	for _, r := range saved {
		off -= 8
		pro = append(pro, mir.NewStore(saveOp(r), r, file.Sp, off))
		epi = append(epi, mir.NewLoad(restoreOp(r), r, file.Sp, off))
	}

	pro = append(pro,
		mir.NewBinaryImm(mir.OpAddi, file.S0, file.Sp, largeFrameBump),
		mir.NewLi(t0, -(size-largeFrameBump)),
		mir.NewBinaryReg(mir.OpAdd, file.Sp, file.Sp, t0))
	epi = append(epi, mir.NewBinaryImm(mir.OpAddi, file.Sp, file.Sp, largeFrameBump))

	entry.SetInstructions(append(pro, entry.Instructions()...))
	ret.SetInstructions(append(epi, ret.Instructions()...))
}

// saveOp and restoreOp pick the doubleword store/load mnemonic for a callee-saved register's
// bank. Float callee-saved registers are saved with the double-precision forms so the full
// 64-bit register state survives, even though every value this compiler puts in them is single
// precision.
func saveOp(r *regfile.Register) mir.Op {
	if r.Bank() == regfile.Float {
		return mir.OpFsd
	}
	return mir.OpSd
}

func restoreOp(r *regfile.Register) mir.Op {
	if r.Bank() == regfile.Float {
		return mir.OpFld
	}
	return mir.OpLd
}
