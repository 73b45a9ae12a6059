package atomir

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Opcode identifies the AtomIR instruction subkinds enumerated in the backend's collaborator
// contract: alloc, getelementptr, bitcast, load, store, call, ret, binary arithmetic, the two
// scalar conversions, and the two kinds of control transfer.
type Opcode int

// BinOp identifies an integer or floating point binary operation.
type BinOp int

// CondOp identifies the relational operator a CondJump branches on.
type CondOp int

// Instruction is a single AtomIR instruction. Like mir.Instruction, it is a tagged variant: Op
// selects which fields are meaningful, rather than a type-switch over a class hierarchy.
type Instruction struct {
	Op     Opcode
	Result *Local // Defined value, nil for Store/Ret/Jump/CondJump.

	// Alloc.
	AllocForParam   bool // True if this alloc merely reserves the arrival slot of a surplus parameter.
	AllocIntOrder   int  // This parameter's position among integer-bank parameters, 1-based; 0 if not a param.
	AllocFloatOrder int  // Likewise for the float bank.

	// Store: store Value into *Dest. Load/BitCast/GEP: Ptr is the pointer operand.
	Value Value
	Dest  Value
	Ptr   Value

	// GetElementPtr.
	Indexes []Value

	// BitCast: carried purely as Ptr above (BitCast is a single-operand instruction).

	// Call.
	FuncName string
	Params   []Value

	// Ret.
	RetValue Value // nil for a void return.

	// Binary / unary arithmetic.
	BinOp   BinOp
	IsFloat bool
	Operand1 Value
	Operand2 Value

	// Jump / CondJump.
	Target    *Block // Jump target, or CondJump true-target.
	FalseTarget *Block // CondJump false-target.
	CondOp    CondOp
}

// ---------------------
// ----- Constants -----
// ---------------------

const (
	OpAlloc Opcode = iota
	OpStore
	OpLoad
	OpGetElementPtr
	OpBitCast
	OpCall
	OpRet
	OpBinary
	OpItoF
	OpFtoI
	OpJump
	OpCondJump
)

const (
	Add BinOp = iota
	Sub
	Mul
	Div
	Mod
	Lt
	Le
	Gt
	Ge
	Eq
	Ne
)

const (
	Jeq CondOp = iota
	Jne
	Jlt
	Jle
	Jgt
	Jge
)

