package atomir

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// ArrayRun is one run of a global array initializer: Count repetitions of the literal values in
// Elements, or -- when Elements is empty -- Count zeroed elements. The run-length encoding lets
// a large zero-initialized array (the common case for `int a[1024];`) collapse to a single run
// instead of 1024 Elements.
type ArrayRun struct {
	Count    int
	Elements []Value
}

// GlobalVariable is a module-level variable: either a scalar with a single initializer Value, or
// an array with a run-length-encoded initializer.
type GlobalVariable struct {
	Name       string
	Typ        *Type
	ScalarInit Value      // Set when Typ is scalar.
	ArrayInit  []ArrayRun // Set when Typ is an array.
}

// Param is a single function parameter: its type and the Local the rest of the function body
// refers to it by.
type Param struct {
	Val *Local
}

// Function is an AtomIR function: its parameter list, in declaration order, and its basic
// blocks, in layout order (the first block is the entry block).
type Function struct {
	Name          string
	Params        []*Param
	Blocks        []*Block
	HasFunctionCall bool
}

// Module is a whole compilation unit: its global variables, in declaration order, followed by
// its functions, in declaration order.
type Module struct {
	Globals   []*GlobalVariable
	Functions []*Function
}

// ---------------------
// ----- Functions -----
// ---------------------

// NewModule returns an empty Module.
func NewModule() *Module {
	return &Module{}
}

// AddGlobal appends g to the module's global variable list.
func (m *Module) AddGlobal(g *GlobalVariable) {
	m.Globals = append(m.Globals, g)
}

// AddFunction appends f to the module's function list.
func (m *Module) AddFunction(f *Function) {
	m.Functions = append(m.Functions, f)
}

// NewFunction returns an empty AtomIR function named name.
func NewFunction(name string) *Function {
	return &Function{Name: name}
}

// AddBlock appends b to f's block list.
func (f *Function) AddBlock(b *Block) {
	f.Blocks = append(f.Blocks, b)
}

// AddParam appends a parameter bound to Local val.
func (f *Function) AddParam(val *Local) {
	f.Params = append(f.Params, &Param{Val: val})
}
