package selector

import (
	"math"

	"atomc/src/util"
)

// FloatPool interns 32-bit float literal bit patterns to stable `.LC<n>` labels, so that two
// occurrences of the same constant (e.g. `0.5` appearing twice in a function) share one
// `.sdata` entry instead of emitting a duplicate. Labels are handed out in first-use order.
type FloatPool struct {
	labelOf map[uint32]string
	order   []uint32
}

// NewFloatPool returns an empty literal pool.
func NewFloatPool() *FloatPool {
	return &FloatPool{labelOf: make(map[uint32]string)}
}

// Intern returns the `.LC<n>` label for v, minting a fresh one on first use.
func (p *FloatPool) Intern(v float32) string {
	bits := math.Float32bits(v)
	if lbl, ok := p.labelOf[bits]; ok {
		return lbl
	}
	lbl := util.FloatLabel(len(p.order))
	p.labelOf[bits] = lbl
	p.order = append(p.order, bits)
	return lbl
}

// Entries returns the pool's (label, bit pattern) pairs in intern order, for the codegen
// driver's `.sdata` emission pass.
func (p *FloatPool) Entries() []FloatPoolEntry {
	out := make([]FloatPoolEntry, len(p.order))
	for i, bits := range p.order {
		out[i] = FloatPoolEntry{Label: p.labelOf[bits], Bits: bits}
	}
	return out
}

// FloatPoolEntry is one literal pool slot ready for `.word` emission.
type FloatPoolEntry struct {
	Label string
	Bits  uint32
}
