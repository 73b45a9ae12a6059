package atomir

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Value is anything the backend can read an operand from: a constant, a reference to a global
// symbol, or a local SSA value produced by some earlier instruction (including a function
// parameter, which is a Local that the selector binds to its argument register rather than the
// result of any instruction).
type Value interface {
	Type() *Type
	IsConst() bool
	IsGlobal() bool
}

// ConstantInt is a literal 32-bit integer operand.
type ConstantInt struct {
	V int32
}

// ConstantFloat is a literal 32-bit float operand.
type ConstantFloat struct {
	V float32
}

// GlobalRef is a reference, by name, to a module-level GlobalVariable.
type GlobalRef struct {
	Name string
	Typ  *Type
}

// Local is a value produced within a function: the result of an instruction, or a parameter.
// Local is used as a map key by the selector's value-to-register map, so equality is pointer
// identity, matching AtomIR's SSA-value semantics.
type Local struct {
	Name string // Debug-only name, e.g. "%3" or a source identifier; never used for lookup.
	Typ  *Type
}

// ---------------------
// ----- Functions -----
// ---------------------

func (c *ConstantInt) Type() *Type    { return Int32Ty }
func (c *ConstantInt) IsConst() bool  { return true }
func (c *ConstantInt) IsGlobal() bool { return false }

func (c *ConstantFloat) Type() *Type    { return Float32Ty }
func (c *ConstantFloat) IsConst() bool  { return true }
func (c *ConstantFloat) IsGlobal() bool { return false }

func (g *GlobalRef) Type() *Type    { return g.Typ }
func (g *GlobalRef) IsConst() bool  { return false }
func (g *GlobalRef) IsGlobal() bool { return true }

func (l *Local) Type() *Type    { return l.Typ }
func (l *Local) IsConst() bool  { return false }
func (l *Local) IsGlobal() bool { return false }

// NewLocal returns a fresh named Local of type t. Every instruction result and every function
// parameter is constructed through this call.
func NewLocal(name string, t *Type) *Local {
	return &Local{Name: name, Typ: t}
}
