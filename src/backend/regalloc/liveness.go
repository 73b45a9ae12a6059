package regalloc

import "atomc/src/backend/mir"

// successors returns every block a branch instruction in b can transfer control to. Every block
// the selector emits ends in an explicit terminator -- a lone Jump, or a CondJump immediately
// followed by a Jump to the false target -- so there is never an implicit fallthrough edge to
// reason about.
func successors(b *mir.Block) []*mir.Block {
	var out []*mir.Block
	for _, inst := range b.Instructions() {
		if inst.Kind == mir.KindJump || inst.Kind == mir.KindCondJump {
			out = append(out, inst.Target)
		}
	}
	return out
}

// liveness holds the live-in and live-out virtual/physical register sets computed for one
// function, keyed by block.
type liveness struct {
	liveIn  map[*mir.Block]regset
	liveOut map[*mir.Block]regset
}

// computeLiveness runs the standard backward dataflow fixed point: liveOut(b) = union of
// liveIn(successors), liveIn(b) = uses(b) U (liveOut(b) - defs(b)), iterated to a fixed point.
func computeLiveness(f *mir.Function) *liveness {
	lv := &liveness{liveIn: make(map[*mir.Block]regset), liveOut: make(map[*mir.Block]regset)}
	for _, b := range f.Blocks {
		lv.liveIn[b] = newRegset()
		lv.liveOut[b] = newRegset()
	}

	changed := true
	for changed {
		changed = false
		for i := len(f.Blocks) - 1; i >= 0; i-- {
			b := f.Blocks[i]
			out := newRegset()
			for _, succ := range successors(b) {
				out.unionInto(lv.liveIn[succ])
			}
			in := out.clone()
			for j := len(b.Instructions()) - 1; j >= 0; j-- {
				inst := b.Instructions()[j]
				if d := inst.Defs(); d != nil {
					in.remove(d)
				}
				for _, u := range inst.Uses() {
					in.add(u)
				}
			}
			if !in.equal(lv.liveIn[b]) {
				lv.liveIn[b] = in
				changed = true
			}
			if !out.equal(lv.liveOut[b]) {
				lv.liveOut[b] = out
				changed = true
			}
		}
	}
	return lv
}
