// Package regalloc implements the register allocator and stack-frame finalizer: the backend
// stage that assigns a physical register (or, failing that, a stack slot) to every virtual
// register the instruction selector created, then computes the function's final frame size and
// synthesizes its prologue and epilogue.
//
// The allocator is a classic Chaitin-style graph colourer: build an interference graph from
// liveness, repeatedly simplify away low-degree nodes onto a stack, optimistically spill a
// high-degree node when none remain, then pop the stack assigning colours. The whole pipeline is
// single-threaded: functions are allocated one at a time, sequentially, from codegen's
// fixed-point loop.
package regalloc

import (
	"atomc/src/backend/mir"
	"atomc/src/backend/regfile"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// node is one register-interference-graph vertex: a virtual register, its neighbours, and
// whether it is still present in the graph being simplified.
type node struct {
	reg        *regfile.Register
	neighbours regset
	enabled    bool
	spill      bool // True once this node has been optimistically pushed as a spill candidate.
	crossCall  bool // True if this register is live across at least one call site.
}

// Allocator assigns physical registers to one function's virtual registers at a time, against a
// shared physical register file.
type Allocator struct {
	file *regfile.File
}

// ---------------------
// ----- Constants -----
// ---------------------

// retry bounds how many times the simplify loop looks for a fresh low-degree node before giving
// up and choosing a spill candidate by degree instead: a cheap escape hatch so a pathological
// graph can't spin forever.
const retry = 128

// ---------------------
// ----- Functions -----
// ---------------------

// New returns an allocator drawing physical registers from file.
func New(file *regfile.File) *Allocator {
	return &Allocator{file: file}
}

// Allocate assigns a physical register to every virtual register mentioned in f, rewriting each
// Instruction's register operands in place and spilling to stack slots when colouring fails. It
// must be called once per fixed-point iteration in the codegen driver: spilling into a
// previously untouched callee-saved register changes the save area, which shifts every local's
// offset on the next pass.
func (a *Allocator) Allocate(f *mir.Function) {
	f.ResetSavedSet()
	a.allocateBank(f, regfile.Int)
	a.allocateBank(f, regfile.Float)
}

// scratch returns the two physical registers of bank reserved exclusively for the spill-rewrite
// pass and withheld from the colourer: a spilled value only ever occupies one of these for the
// few instructions spanning its reload or its store, so two are always enough even when a single
// instruction reads two distinct spilled operands.
func (a *Allocator) scratch(bank regfile.Bank) (r1, r2 *regfile.Register) {
	if bank == regfile.Int {
		return a.file.IntTemp[len(a.file.IntTemp)-2], a.file.IntTemp[len(a.file.IntTemp)-1]
	}
	return a.file.FloatTemp[len(a.file.FloatTemp)-2], a.file.FloatTemp[len(a.file.FloatTemp)-1]
}

// colorableCallerSaved returns the caller-saved registers of bank the colourer is allowed to
// hand out, i.e. every caller-saved temporary of that bank except the two reserved as spill
// scratch. Argument registers are never handed out: the selector stages values through them in
// fixed form and a colour there would be clobbered by the very next call sequence.
func (a *Allocator) colorableCallerSaved(bank regfile.Bank) []*regfile.Register {
	full := bankFilter(a.file.CallerSaved(), bank)
	return full[:len(full)-2]
}

// allocateBank runs the full colour-or-spill pipeline for one register bank.
func (a *Allocator) allocateBank(f *mir.Function, bank regfile.Bank) {
	colors := a.colorableCallerSaved(bank)
	saved := bankFilter(a.file.CalleeSaved(), bank)

	graph, nodes := buildGraph(f, bank)
	if len(nodes) == 0 {
		return
	}

	order := simplify(graph, nodes, len(colors)+len(saved))
	spilled := assign(f, graph, order, colors, saved)
	if len(spilled) > 0 {
		r1, r2 := a.scratch(bank)
		rewriteSpills(f, spilled, a.file.S0, r1, r2)
	}
}

// bankFilter returns the subset of regs belonging to bank, preserving order.
func bankFilter(regs []*regfile.Register, bank regfile.Bank) []*regfile.Register {
	out := make([]*regfile.Register, 0, len(regs))
	for _, r := range regs {
		if r.Bank() == bank {
			out = append(out, r)
		}
	}
	return out
}

// buildGraph constructs the interference graph for every virtual register of the given bank
// defined in f: two virtual registers interfere when one is defined while the other is live. A
// register live at a call instruction survives the callee clobbering every caller-saved
// register, so such nodes are additionally marked crossCall and later restricted to the
// callee-saved pool. Alongside the graph it returns the nodes ordered by register identity --
// every later stage iterates that slice, never the map, so allocation is deterministic and
// recompiling a module yields byte-identical assembly.
func buildGraph(f *mir.Function, bank regfile.Bank) (map[*regfile.Register]*node, []*node) {
	lv := computeLiveness(f)
	graph := make(map[*regfile.Register]*node)

	nodeFor := func(r *regfile.Register) *node {
		if r.Fixed() || r.Bank() != bank {
			return nil
		}
		n, ok := graph[r]
		if !ok {
			n = &node{reg: r, neighbours: newRegset(), enabled: true}
			graph[r] = n
		}
		return n
	}

	for _, b := range f.Blocks {
		live := lv.liveOut[b].clone()
		insts := b.Instructions()
		for i := len(insts) - 1; i >= 0; i-- {
			inst := insts[i]
			if inst.Kind == mir.KindCall {
				for r := range live {
					if n := nodeFor(r); n != nil {
						n.crossCall = true
					}
				}
			}
			if d := inst.Defs(); d != nil {
				live.remove(d)
				if dn := nodeFor(d); dn != nil {
					for other := range live {
						if on := nodeFor(other); on != nil {
							dn.neighbours.add(other)
							on.neighbours.add(d)
						}
					}
				}
			}
			for _, u := range inst.Uses() {
				live.add(u)
				nodeFor(u)
			}
		}
	}
	nodes := make([]*node, 0, len(graph))
	for _, n := range graph {
		nodes = append(nodes, n)
	}
	for i := 1; i < len(nodes); i++ {
		for j := i; j > 0 && nodes[j-1].reg.Id() > nodes[j].reg.Id(); j-- {
			nodes[j-1], nodes[j] = nodes[j], nodes[j-1]
		}
	}
	return graph, nodes
}

// simplify repeatedly removes from the graph the first enabled node, in register-id order, whose
// degree is below k, appending it to the returned order (so the first entry is the first one
// removed, and the last entry is the first to be coloured). When no such node remains, the
// highest-degree node is removed anyway, marked as an optimistic spill candidate -- it may still
// receive a colour once its higher-degree neighbours are gone.
func simplify(graph map[*regfile.Register]*node, nodes []*node, k int) []*node {
	remaining := len(nodes)
	var order []*node

	for remaining > 0 {
		picked := pickLowDegree(graph, nodes, k)
		if picked == nil {
			picked = pickHighestDegree(graph, nodes)
			picked.spill = true
		}
		picked.enabled = false
		order = append(order, picked)
		remaining--
	}
	return order
}

func enabledDegree(n *node, graph map[*regfile.Register]*node) int {
	d := 0
	for neigh := range n.neighbours {
		if other, ok := graph[neigh]; ok && other.enabled {
			d++
		}
	}
	return d
}

func pickLowDegree(graph map[*regfile.Register]*node, nodes []*node, k int) *node {
	tries := 0
	for _, n := range nodes {
		if !n.enabled {
			continue
		}
		tries++
		if tries > retry {
			break
		}
		if enabledDegree(n, graph) < k {
			return n
		}
	}
	return nil
}

func pickHighestDegree(graph map[*regfile.Register]*node, nodes []*node) *node {
	var best *node
	bestDeg := -1
	for _, n := range nodes {
		if !n.enabled {
			continue
		}
		if d := enabledDegree(n, graph); d > bestDeg {
			best, bestDeg = n, d
		}
	}
	return best
}

// assign walks order back-to-front (so nodes are coloured in reverse simplification order,
// meaning the graph a node saw when it was removed is exactly the set of already-coloured
// neighbours it must avoid), binding the first non-conflicting caller-saved temporary, falling
// back to a callee-saved register, and finally to a stack slot when no physical register
// remains. A node whose value lives across a call skips the caller-saved pool entirely -- the
// callee is free to clobber every register in it.
func assign(f *mir.Function, graph map[*regfile.Register]*node, order []*node, callerSaved, calleeSaved []*regfile.Register) []*regfile.Register {
	colorOf := make(map[*regfile.Register]*regfile.Register)
	var spilled []*regfile.Register

	for i := len(order) - 1; i >= 0; i-- {
		n := order[i]
		used := newRegset()
		for neigh := range n.neighbours {
			if c, ok := colorOf[neigh]; ok {
				used.add(c)
			}
		}

		var chosen *regfile.Register
		if !n.crossCall {
			for _, phys := range callerSaved {
				if !used.has(phys) {
					chosen = phys
					break
				}
			}
		}
		if chosen == nil {
			for _, phys := range calleeSaved {
				if !used.has(phys) {
					chosen = phys
					f.MarkSaved(phys)
					break
				}
			}
		}
		if chosen == nil {
			spilled = append(spilled, n.reg)
			continue
		}
		colorOf[n.reg] = chosen
		n.reg.Bind(chosen)
	}

	return spilled
}
