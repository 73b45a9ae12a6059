package atomir

// Block is an ordered sequence of AtomIR instructions. Unlike mir.Block, AtomIR blocks carry no
// assembler label -- the backend mints its own machine-level labels for them during selection.
type Block struct {
	Name  string // Debug-only name assigned by the builder, e.g. "entry", "if.then3".
	Insts []*Instruction
}

// NewBlock returns an empty AtomIR basic block named name.
func NewBlock(name string) *Block {
	return &Block{Name: name}
}

// Add appends inst to the end of b.
func (b *Block) Add(inst *Instruction) {
	b.Insts = append(b.Insts, inst)
}
