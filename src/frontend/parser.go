// Package frontend turns Sy source text into an atomir.Module. It is deliberately the lightest
// stage of this repository: a Rob-Pike-style concurrent lexer (lexer.go/lexerStates.go) feeding
// a small recursive-descent parser that builds AtomIR directly as it recognizes each grammar
// rule, with no separate AST or semantic-analysis pass in between. The compiler's real subject
// is the selector/regalloc/codegen pipeline downstream of AtomIR, so the frontend is scoped to
// parsing Sy and emitting the contract the backend actually consumes, and no further.
package frontend

import (
	"fmt"
	"strconv"

	"atomc/src/atomir"
	"atomc/src/util"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// parser holds the state of a single recursive-descent parse: the token lookahead, the module
// being built, and the scope stack used to resolve identifiers to AtomIR values.
type parser struct {
	l       *lexer
	tok     item
	pe      *util.Perror
	mod     *atomir.Module
	globals map[string]atomir.Value
	scopes  util.Stack
	fn      *atomir.Function
	block   *atomir.Block
	retTyp  *atomir.Type
	funcRet map[string]*atomir.Type
	tmp     int
}

// ---------------------
// ----- Functions -----
// ---------------------

// Parse lexes and parses src, returning the AtomIR module it describes.
//
// Sy permits a function to be called before its own definition appears (there is no separate
// prototype syntax), so this runs a lightweight first pass -- scanFuncSignatures, its own
// independent lexer over the same source -- to learn every function's return type before the real
// recursive-descent pass builds AtomIR. Everything else about Sy resolves single-pass.
func Parse(src string) (*atomir.Module, error) {
	sigs, err := scanFuncSignatures(src)
	if err != nil {
		return nil, err
	}
	// The runtime library is linked in, not parsed, so its return types are seeded here. A
	// source-level definition of the same name wins: scanFuncSignatures already filled it in.
	for name, t := range runtimeSigs {
		if _, ok := sigs[name]; !ok {
			sigs[name] = t
		}
	}

	l := newLexer(src, lexGlobal)
	go l.run()

	p := &parser{l: l, pe: util.NewPerror(0), mod: atomir.NewModule(), globals: make(map[string]atomir.Value), funcRet: sigs}
	p.advance()
	for p.tok.typ != itemEOF {
		if p.tok.typ == itemError {
			p.pe.Append(fmt.Errorf("lexical error: %s", p.tok.val))
			break
		}
		p.topLevel()
	}
	defer p.pe.Stop()
	if p.pe.Len() > 0 {
		return nil, <-p.pe.Errors()
	}
	return p.mod, nil
}

func (p *parser) advance() {
	p.tok = p.l.nextItem()
}

func (p *parser) errorf(format string, args ...interface{}) {
	p.pe.Append(fmt.Errorf("line %d:%d: %s", p.tok.line, p.tok.pos, fmt.Sprintf(format, args...)))
}

func (p *parser) expect(typ itemType, what string) item {
	if p.tok.typ != typ {
		p.errorf("expected %s, got %q", what, p.tok.val)
	}
	t := p.tok
	p.advance()
	return t
}

// pushScope/popScope/declareLocal/resolve implement simple lexical scoping over block statements
// as a stack of name tables; Sy has no nested functions or closures, so block nesting is all the
// structure this needs.
func (p *parser) pushScope() { p.scopes.Push(make(map[string]*atomir.Local)) }
func (p *parser) popScope()  { p.scopes.Pop() }

func (p *parser) declareLocal(name string, l *atomir.Local) {
	p.scopes.Peek().(map[string]*atomir.Local)[name] = l
}

func (p *parser) resolve(name string) atomir.Value {
	for i := 1; i <= p.scopes.Size(); i++ {
		if l, ok := p.scopes.Get(i).(map[string]*atomir.Local)[name]; ok {
			return l
		}
	}
	if v, ok := p.globals[name]; ok {
		return v
	}
	return nil
}

// newTemp returns a fresh debug-named Local of type t, used for every instruction result this
// parser synthesizes.
func (p *parser) newTemp(t *atomir.Type) *atomir.Local {
	p.tmp++
	return atomir.NewLocal(fmt.Sprintf("%%t%d", p.tmp), t)
}

// emit appends inst to the block currently being parsed.
func (p *parser) emit(inst *atomir.Instruction) {
	p.block.Add(inst)
}

// parseType consumes one of the three Sy scalar type keywords.
func (p *parser) parseType() *atomir.Type {
	switch p.tok.typ {
	case KwInt:
		p.advance()
		return atomir.Int32Ty
	case KwFloat:
		p.advance()
		return atomir.Float32Ty
	case KwVoid:
		p.advance()
		return atomir.VoidTy
	default:
		p.errorf("expected a type, got %q", p.tok.val)
		p.advance()
		return atomir.Int32Ty
	}
}

// ------------------------
// ----- Top level -----
// ------------------------

// topLevel parses one globalDecl or funcDecl, distinguishing them by whether an identifier is
// followed by '(' once the type and name have been consumed.
func (p *parser) topLevel() {
	typ := p.parseType()
	name := p.expect(IDENTIFIER, "an identifier").val

	if p.tok.typ == itemType('(') {
		p.funcDecl(typ, name)
		return
	}
	p.globalDecl(typ, name)
}

// globalDecl parses the remainder of a global variable declaration, past its type and name.
func (p *parser) globalDecl(typ *atomir.Type, name string) {
	var dims []int
	for p.tok.typ == itemType('[') {
		p.advance()
		n := p.expect(INTEGER, "an array length").val
		dims = append(dims, atoiOrZero(n))
		p.expect(itemType(']'), "']'")
	}
	for i := len(dims) - 1; i >= 0; i-- {
		typ = atomir.ArrayOf(typ, dims[i])
	}

	g := &atomir.GlobalVariable{Name: name, Typ: typ}
	if p.tok.typ == ASSIGN {
		p.advance()
		if typ.IsArrayType() {
			g.ArrayInit = p.arrayInitializer(typ)
		} else {
			g.ScalarInit = p.constInitializer()
		}
	} else if typ.IsArrayType() {
		g.ArrayInit = []atomir.ArrayRun{{Count: typ.Len}}
	}
	p.expect(itemType(';'), "';'")

	p.globals[name] = &atomir.GlobalRef{Name: name, Typ: typ}
	p.mod.AddGlobal(g)
}

// constInitializer parses a single scalar constant initializer: Sy global initializers are
// literal (optionally negated), never expressions.
func (p *parser) constInitializer() atomir.Value {
	neg := false
	if p.tok.typ == itemType('-') {
		neg = true
		p.advance()
	}
	switch p.tok.typ {
	case INTEGER:
		v := int32(atoiOrZero(p.tok.val))
		p.advance()
		if neg {
			v = -v
		}
		return &atomir.ConstantInt{V: v}
	case FLOAT:
		v := float32(atofOrZero(p.tok.val))
		p.advance()
		if neg {
			v = -v
		}
		return &atomir.ConstantFloat{V: v}
	default:
		p.errorf("expected a constant initializer, got %q", p.tok.val)
		p.advance()
		return &atomir.ConstantInt{V: 0}
	}
}

// arrayInitializer parses a brace-delimited list of constant elements for a global array, folding
// the listed elements into a single run, followed by a zero run when fewer than typ.Len are given.
func (p *parser) arrayInitializer(typ *atomir.Type) []atomir.ArrayRun {
	p.expect(itemType('{'), "'{'")
	var elems []atomir.Value
	for p.tok.typ != itemType('}') {
		elems = append(elems, p.constInitializer())
		if p.tok.typ == itemType(',') {
			p.advance()
			continue
		}
		break
	}
	p.expect(itemType('}'), "'}'")
	run := atomir.ArrayRun{Elements: elems, Count: 1}
	if len(elems) < typ.Len {
		pad := atomir.ArrayRun{Count: typ.Len - len(elems)}
		return []atomir.ArrayRun{run, pad}
	}
	return []atomir.ArrayRun{run}
}

// funcDecl parses the remainder of a function definition, past its return type and name.
func (p *parser) funcDecl(retTyp *atomir.Type, name string) {
	p.expect(itemType('('), "'('")
	fn := atomir.NewFunction(name)
	p.pushScope()

	var paramNames []string
	if p.tok.typ != itemType(')') {
		for {
			pt := p.parseType()
			pname := p.expect(IDENTIFIER, "a parameter name").val
			for p.tok.typ == itemType('[') {
				p.advance()
				p.expect(itemType(']'), "']'")
				pt = atomir.PointerTo(pt)
			}
			fn.AddParam(atomir.NewLocal(pname, pt))
			paramNames = append(paramNames, pname)
			if p.tok.typ == itemType(',') {
				p.advance()
				continue
			}
			break
		}
	}
	p.expect(itemType(')'), "')'")

	p.fn = fn
	p.block = atomir.NewBlock("entry")
	fn.AddBlock(p.block)
	p.retTyp = retTyp

	// Every parameter gets its own stack slot and an initial store copying the incoming value
	// into it; the parameter name resolves to the slot from here on. The alloc carries the
	// parameter's position in each register bank so the backend can tell the ninth-and-later
	// ones, which arrive on the caller's stack instead of in a register.
	intOrder, floatOrder := 0, 0
	for i, prm := range fn.Params {
		if prm.Val.Typ.IsFloatType() {
			floatOrder++
		} else {
			intOrder++
		}
		slot := atomir.NewLocal(paramNames[i]+".addr", prm.Val.Typ)
		p.emit(&atomir.Instruction{
			Op:              atomir.OpAlloc,
			Result:          slot,
			AllocForParam:   true,
			AllocIntOrder:   intOrder,
			AllocFloatOrder: floatOrder,
		})
		p.emit(&atomir.Instruction{Op: atomir.OpStore, Value: prm.Val, Dest: slot})
		p.declareLocal(paramNames[i], slot)
	}

	p.stmtBlock()

	if !p.blockTerminated() {
		p.emitRet(nil)
	}

	p.popScope()
	p.fn = nil
	p.mod.AddFunction(fn)
}

// newBlock appends a freshly named block to the current function and returns it; it does not
// switch the parser's current block.
func (p *parser) newBlock(name string) *atomir.Block {
	b := atomir.NewBlock(name)
	p.fn.AddBlock(b)
	return b
}

// blockTerminated reports whether the current block already ends in a Ret/Jump/CondJump, so
// funcDecl can avoid appending an unreachable implicit return after an explicit one.
func (p *parser) blockTerminated() bool {
	if len(p.block.Insts) == 0 {
		return false
	}
	switch p.block.Insts[len(p.block.Insts)-1].Op {
	case atomir.OpRet, atomir.OpJump, atomir.OpCondJump:
		return true
	default:
		return false
	}
}

// emitRet appends a return instruction, coercing v to the function's declared return type when
// necessary (an int literal returned from a float function, or vice versa).
func (p *parser) emitRet(v atomir.Value) {
	if v != nil {
		v = p.coerce(v, p.retTyp)
	}
	p.emit(&atomir.Instruction{Op: atomir.OpRet, RetValue: v})
}

// -----------------------
// ----- Statements -----
// -----------------------

func (p *parser) stmtBlock() {
	p.expect(itemType('{'), "'{'")
	for p.tok.typ != itemType('}') && p.tok.typ != itemEOF {
		p.stmt()
	}
	p.expect(itemType('}'), "'}'")
}

func (p *parser) stmt() {
	switch p.tok.typ {
	case itemType('{'):
		p.pushScope()
		p.stmtBlock()
		p.popScope()
	case KwIf:
		p.ifStmt()
	case KwWhile:
		p.whileStmt()
	case KwReturn:
		p.returnStmt()
	case KwInt, KwFloat, KwVoid:
		p.declStmt()
	case itemType(';'):
		p.advance()
	default:
		p.expr()
		p.expect(itemType(';'), "';'")
	}
}

// ifStmt lowers `if (cond) then else?` into the standard diamond of blocks: a condjump out of the
// current block, a then-block, an (optional) else-block, and a join block that both sides jump
// into.
func (p *parser) ifStmt() {
	p.advance()
	p.expect(itemType('('), "'('")
	lhs, rhs, op, isFloat := p.condExpr()
	p.expect(itemType(')'), "')'")

	thenBlk := p.newBlock("if.then")
	joinBlk := p.newBlock("if.join")
	elseTarget := joinBlk

	p.emit(&atomir.Instruction{Op: atomir.OpCondJump, Target: thenBlk, FalseTarget: joinBlk,
		CondOp: op, Operand1: lhs, Operand2: rhs, IsFloat: isFloat})

	p.block = thenBlk
	p.stmt()
	if !p.blockTerminated() {
		p.emit(&atomir.Instruction{Op: atomir.OpJump, Target: joinBlk})
	}

	if p.tok.typ == KwElse {
		p.advance()
		elseBlk := atomir.NewBlock("if.else")
		// Splice elseBlk in just before joinBlk so block layout order stays readable; re-point
		// the condjump's false target at it.
		p.insertBlockBefore(elseBlk, joinBlk)
		elseTarget = elseBlk

		p.block = elseBlk
		p.stmt()
		if !p.blockTerminated() {
			p.emit(&atomir.Instruction{Op: atomir.OpJump, Target: joinBlk})
		}
	}

	// Patch the original condjump's false target now that we know whether there's an else block.
	for _, inst := range p.findCondJumpsTo(joinBlk, thenBlk) {
		inst.FalseTarget = elseTarget
	}

	p.block = joinBlk
}

// findCondJumpsTo returns every CondJump instruction in the current function whose Target is
// trueTarget and whose FalseTarget is currently joinBlk, used by ifStmt to retarget the
// false-branch once an else clause turns out to exist.
func (p *parser) findCondJumpsTo(joinBlk, trueTarget *atomir.Block) []*atomir.Instruction {
	var out []*atomir.Instruction
	for _, b := range p.fn.Blocks {
		for _, inst := range b.Insts {
			if inst.Op == atomir.OpCondJump && inst.Target == trueTarget && inst.FalseTarget == joinBlk {
				out = append(out, inst)
			}
		}
	}
	return out
}

// insertBlockBefore splices b into the function's block list immediately before target, keeping
// emitted assembly roughly in source order even though blocks are addressed by pointer, not index.
func (p *parser) insertBlockBefore(b, target *atomir.Block) {
	idx := len(p.fn.Blocks)
	for i, bb := range p.fn.Blocks {
		if bb == target {
			idx = i
			break
		}
	}
	p.fn.Blocks = append(p.fn.Blocks, nil)
	copy(p.fn.Blocks[idx+1:], p.fn.Blocks[idx:])
	p.fn.Blocks[idx] = b
}

// whileStmt lowers `while (cond) body` into a header block (re-evaluated each iteration), a body
// block, and an exit block.
func (p *parser) whileStmt() {
	p.advance()
	header := p.newBlock("while.header")
	p.emit(&atomir.Instruction{Op: atomir.OpJump, Target: header})

	p.block = header
	p.expect(itemType('('), "'('")
	lhs, rhs, op, isFloat := p.condExpr()
	p.expect(itemType(')'), "')'")

	body := p.newBlock("while.body")
	exit := p.newBlock("while.exit")
	p.emit(&atomir.Instruction{Op: atomir.OpCondJump, Target: body, FalseTarget: exit,
		CondOp: op, Operand1: lhs, Operand2: rhs, IsFloat: isFloat})

	p.block = body
	p.stmt()
	if !p.blockTerminated() {
		p.emit(&atomir.Instruction{Op: atomir.OpJump, Target: header})
	}

	p.block = exit
}

func (p *parser) returnStmt() {
	p.advance()
	if p.tok.typ == itemType(';') {
		p.advance()
		p.emitRet(nil)
		return
	}
	v := p.expr()
	p.expect(itemType(';'), "';'")
	p.emitRet(v)
}

// declStmt parses a local variable declaration, allocating its stack slot and, if present,
// lowering its initializer as an ordinary store.
func (p *parser) declStmt() {
	typ := p.parseType()
	name := p.expect(IDENTIFIER, "an identifier").val

	var dims []int
	for p.tok.typ == itemType('[') {
		p.advance()
		n := p.expect(INTEGER, "an array length").val
		dims = append(dims, atoiOrZero(n))
		p.expect(itemType(']'), "']'")
	}
	for i := len(dims) - 1; i >= 0; i-- {
		typ = atomir.ArrayOf(typ, dims[i])
	}

	local := atomir.NewLocal(name, typ)
	p.emit(&atomir.Instruction{Op: atomir.OpAlloc, Result: local})
	p.declareLocal(name, local)

	if p.tok.typ == ASSIGN {
		p.advance()
		v := p.expr()
		v = p.coerce(v, typ)
		p.emit(&atomir.Instruction{Op: atomir.OpStore, Value: v, Dest: local})
	}
	p.expect(itemType(';'), "';'")
}

// ------------------------
// ----- Expressions -----
// ------------------------

// condExpr parses a boolean expression used as an if/while condition. A condition whose whole
// shape is one comparison -- by far the common case -- folds straight into the branch: the
// comparison instruction the expression grammar just emitted is popped again and its operands
// and operator become the conditional jump's own (`a || b` ends in its `!= 0` test, so it folds
// too). Anything else (`a && b`, `f()`, a bare variable) keeps its computed value and branches on
// it being nonzero, matching C's
// nonzero-is-true semantics.
func (p *parser) condExpr() (lhs, rhs atomir.Value, op atomir.CondOp, isFloat bool) {
	v := p.expr()
	if l, ok := v.(*atomir.Local); ok && len(p.block.Insts) > 0 {
		last := p.block.Insts[len(p.block.Insts)-1]
		if last.Op == atomir.OpBinary && last.Result == l {
			if cop, relational := condOpFor(last.BinOp); relational {
				p.block.Insts = p.block.Insts[:len(p.block.Insts)-1]
				return last.Operand1, last.Operand2, cop, last.IsFloat
			}
		}
	}
	return v, zeroLike(v), atomir.Jne, v.Type().IsFloatType()
}

// condOpFor maps a comparison BinOp onto its conditional-jump operator.
func condOpFor(op atomir.BinOp) (atomir.CondOp, bool) {
	switch op {
	case atomir.Lt:
		return atomir.Jlt, true
	case atomir.Le:
		return atomir.Jle, true
	case atomir.Gt:
		return atomir.Jgt, true
	case atomir.Ge:
		return atomir.Jge, true
	case atomir.Eq:
		return atomir.Jeq, true
	case atomir.Ne:
		return atomir.Jne, true
	default:
		return 0, false
	}
}

// coerce converts v to target's type when they differ (int literal/expr assigned to a float slot
// or vice versa), via an explicit ItoF/FtoI instruction. Pointer and array types are never
// coerced.
func (p *parser) coerce(v atomir.Value, target *atomir.Type) atomir.Value {
	vt := v.Type()
	if target.IsIntType() && vt.IsFloatType() {
		res := p.newTemp(atomir.Int32Ty)
		p.emit(&atomir.Instruction{Op: atomir.OpFtoI, Result: res, Operand1: v})
		return res
	}
	if target.IsFloatType() && vt.IsIntType() {
		res := p.newTemp(atomir.Float32Ty)
		p.emit(&atomir.Instruction{Op: atomir.OpItoF, Result: res, Operand1: v})
		return res
	}
	return v
}

// zeroLike returns the zero constant of the same bank (int or float) as v, used to synthesize
// unary negation and boolean coercion.
func zeroLike(v atomir.Value) atomir.Value {
	if v.Type().IsFloatType() {
		return &atomir.ConstantFloat{V: 0}
	}
	return &atomir.ConstantInt{V: 0}
}

// binaryOp emits a single OpBinary instruction for op over a and b, coercing a mixed int/float
// pair to float first -- Sy, like C, promotes an int operand to float rather than rejecting the
// mix. Relational and equality operators always yield a plain int 0/1, matching the selector's
// Slt/Xor/Seqz-style synthesis of them in lowerIntBinary/lowerFloatBinary.
func (p *parser) binaryOp(op atomir.BinOp, a, b atomir.Value) atomir.Value {
	isFloat := a.Type().IsFloatType() || b.Type().IsFloatType()
	if isFloat {
		a = p.coerce(a, atomir.Float32Ty)
		b = p.coerce(b, atomir.Float32Ty)
	}
	resTyp := atomir.Int32Ty
	if isFloat {
		switch op {
		case atomir.Add, atomir.Sub, atomir.Mul, atomir.Div:
			resTyp = atomir.Float32Ty
		}
	}
	res := p.newTemp(resTyp)
	p.emit(&atomir.Instruction{Op: atomir.OpBinary, Result: res, BinOp: op, Operand1: a, Operand2: b, IsFloat: isFloat})
	return res
}

// toBool normalizes v to a plain 0/1 int via `v != 0`, used by the logical && and || identities
// below.
func (p *parser) toBool(v atomir.Value) atomir.Value {
	return p.binaryOp(atomir.Ne, v, zeroLike(v))
}

// expr is the entry point for a full Sy expression.
func (p *parser) expr() atomir.Value {
	return p.logicOr()
}

// assignment exists only to name the grammar rule; the actual `IDENT = ...` recognition happens
// in primary, the one place an lvalue can appear, since RV64 and AtomIR both treat assignment as
// an ordinary store rather than a distinct expression form.
func (p *parser) assignment() atomir.Value {
	return p.logicOr()
}

// logicOr and logicAnd implement Sy's `||`/`&&` as eager arithmetic identities over 0/1 ints --
// Mul for AND, Add-then-nonzero for OR -- rather than as short-circuiting control flow. AtomIR's
// BinOp set (Add/Sub/Mul/Div/Mod plus the six comparisons) has no boolean connective opcode, and
// nothing in this backend's collaborator contract calls for one, so both operands are always
// evaluated; a Sy program that relies on short-circuit evaluation to guard a call with side
// effects would observe both calls run. Recorded as an open decision in DESIGN.md.
func (p *parser) logicOr() atomir.Value {
	v := p.logicAnd()
	for p.tok.typ == OR {
		p.advance()
		rhs := p.logicAnd()
		sum := p.binaryOp(atomir.Add, p.toBool(v), p.toBool(rhs))
		v = p.toBool(sum)
	}
	return v
}

func (p *parser) logicAnd() atomir.Value {
	v := p.equality()
	for p.tok.typ == AND {
		p.advance()
		rhs := p.equality()
		v = p.binaryOp(atomir.Mul, p.toBool(v), p.toBool(rhs))
	}
	return v
}

func (p *parser) equality() atomir.Value {
	v := p.relational()
	for p.tok.typ == EQ || p.tok.typ == NE {
		op := atomir.Eq
		if p.tok.typ == NE {
			op = atomir.Ne
		}
		p.advance()
		rhs := p.relational()
		v = p.binaryOp(op, v, rhs)
	}
	return v
}

func (p *parser) relational() atomir.Value {
	v := p.additive()
	for {
		var op atomir.BinOp
		switch p.tok.typ {
		case itemType('<'):
			op = atomir.Lt
		case LE:
			op = atomir.Le
		case itemType('>'):
			op = atomir.Gt
		case GE:
			op = atomir.Ge
		default:
			return v
		}
		p.advance()
		rhs := p.additive()
		v = p.binaryOp(op, v, rhs)
	}
}

func (p *parser) additive() atomir.Value {
	v := p.term()
	for {
		var op atomir.BinOp
		switch p.tok.typ {
		case itemType('+'):
			op = atomir.Add
		case itemType('-'):
			op = atomir.Sub
		default:
			return v
		}
		p.advance()
		rhs := p.term()
		v = p.binaryOp(op, v, rhs)
	}
}

func (p *parser) term() atomir.Value {
	v := p.unary()
	for {
		var op atomir.BinOp
		switch p.tok.typ {
		case itemType('*'):
			op = atomir.Mul
		case itemType('/'):
			op = atomir.Div
		case itemType('%'):
			op = atomir.Mod
		default:
			return v
		}
		p.advance()
		rhs := p.unary()
		v = p.binaryOp(op, v, rhs)
	}
}

// unary handles the two Sy prefix operators. Neither has a direct AtomIR opcode: negation becomes
// `0 - x`, logical not becomes `x == 0`.
func (p *parser) unary() atomir.Value {
	switch p.tok.typ {
	case itemType('-'):
		p.advance()
		v := p.unary()
		return p.binaryOp(atomir.Sub, zeroLike(v), v)
	case itemType('!'):
		p.advance()
		v := p.unary()
		return p.binaryOp(atomir.Eq, v, zeroLike(v))
	default:
		return p.primary()
	}
}

// indexChain consumes zero or more `[expr]` suffixes following an lvalue's base value, emitting
// one GetElementPtr per subscript: the two-index `[0, i]` form when the level being stepped into
// is an array (the zero selects the aggregate itself), the single-index form when it is a
// pointer. It returns the address at the end of the chain (base itself when there was no index)
// and the type a load through that address would produce.
func (p *parser) indexChain(base atomir.Value) (ptr atomir.Value, elemTyp *atomir.Type, indexed bool) {
	ptr = base
	elemTyp = base.Type()
	for p.tok.typ == itemType('[') {
		p.advance()
		idx := p.expr()
		p.expect(itemType(']'), "']'")

		var indexes []atomir.Value
		if elemTyp.IsArrayType() {
			indexes = []atomir.Value{&atomir.ConstantInt{V: 0}, idx}
		} else {
			indexes = []atomir.Value{idx}
		}
		if elemTyp.IsArrayType() || elemTyp.IsPointerType() {
			elemTyp = elemTyp.BaseType()
		}
		result := p.newTemp(atomir.PointerTo(elemTyp))
		p.emit(&atomir.Instruction{Op: atomir.OpGetElementPtr, Result: result, Ptr: ptr, Indexes: indexes})
		ptr = result
		indexed = true
	}
	return ptr, elemTyp, indexed
}

// call parses the argument list of a function call already identified by name (the identifier and
// the opening '(' that triggered this have already been consumed up to, but not including, '(').
func (p *parser) call(name string) atomir.Value {
	p.expect(itemType('('), "'('")
	var args []atomir.Value
	if p.tok.typ != itemType(')') {
		for {
			args = append(args, p.expr())
			if p.tok.typ == itemType(',') {
				p.advance()
				continue
			}
			break
		}
	}
	p.expect(itemType(')'), "')'")

	// An array argument decays to a pointer to its first row; the bitcast makes the frame (or
	// global) address a first-class value the call staging can move.
	for i, a := range args {
		if a.Type().IsArrayType() {
			decayed := p.newTemp(atomir.PointerTo(a.Type().Elem))
			p.emit(&atomir.Instruction{Op: atomir.OpBitCast, Result: decayed, Ptr: a})
			args[i] = decayed
		}
	}

	p.fn.HasFunctionCall = true
	retTyp, ok := p.funcRet[name]
	if !ok {
		retTyp = atomir.Int32Ty
	}
	inst := &atomir.Instruction{Op: atomir.OpCall, FuncName: name, Params: args}
	if retTyp.Kind != atomir.Void {
		inst.Result = p.newTemp(retTyp)
	}
	p.emit(inst)
	if inst.Result != nil {
		return inst.Result
	}
	return &atomir.ConstantInt{V: 0}
}

// primary parses a literal, a parenthesized expression, a function call, or an identifier-rooted
// lvalue -- and, for the lvalue case, recognizes and lowers an assignment right here rather than
// in a separate grammar production, since '=' can only ever follow an lvalue's index chain.
func (p *parser) primary() atomir.Value {
	switch p.tok.typ {
	case INTEGER:
		v := int32(atoiOrZero(p.tok.val))
		p.advance()
		return &atomir.ConstantInt{V: v}
	case FLOAT:
		v := float32(atofOrZero(p.tok.val))
		p.advance()
		return &atomir.ConstantFloat{V: v}
	case itemType('('):
		p.advance()
		v := p.expr()
		p.expect(itemType(')'), "')'")
		return v
	case IDENTIFIER:
		name := p.tok.val
		p.advance()
		if p.tok.typ == itemType('(') {
			return p.call(name)
		}
		base := p.resolve(name)
		if base == nil {
			p.errorf("undefined identifier %q", name)
			base = &atomir.ConstantInt{V: 0}
		}
		// A pointer-typed slot (an array parameter) holds a pointer, not storage: fetch the
		// pointer value before indexing through it or passing it along.
		if _, isSlot := base.(*atomir.Local); isSlot && base.Type().IsPointerType() {
			tmp := p.newTemp(base.Type())
			p.emit(&atomir.Instruction{Op: atomir.OpLoad, Result: tmp, Ptr: base})
			base = tmp
		}
		ptr, elemTyp, indexed := p.indexChain(base)
		if p.tok.typ == ASSIGN {
			p.advance()
			rhs := p.assignment()
			rhs = p.coerce(rhs, elemTyp)
			p.emit(&atomir.Instruction{Op: atomir.OpStore, Value: rhs, Dest: ptr})
			return rhs
		}
		if indexed {
			if elemTyp.IsArrayType() {
				// A partial subscript of a multi-dimensional array is a pointer to the
				// remaining rows, not something that can be loaded.
				return ptr
			}
			res := p.newTemp(elemTyp)
			p.emit(&atomir.Instruction{Op: atomir.OpLoad, Result: res, Ptr: ptr})
			return res
		}
		if elemTyp.IsIntType() || elemTyp.IsFloatType() {
			res := p.newTemp(elemTyp)
			p.emit(&atomir.Instruction{Op: atomir.OpLoad, Result: res, Ptr: ptr})
			return res
		}
		return base
	default:
		p.errorf("unexpected token %q in expression", p.tok.val)
		p.advance()
		return &atomir.ConstantInt{V: 0}
	}
}

// ----------------------------------
// ----- Function signature scan -----
// ----------------------------------

// scanFuncSignatures runs a second, independent lexer over src purely to learn every top-level
// function's return type ahead of the real parse, so a forward call to a function defined later
// in the file resolves to the right result type (and, in particular, so the parser knows whether
// to allocate a result Local for the call at all).
func scanFuncSignatures(src string) (map[string]*atomir.Type, error) {
	l := newLexer(src, lexGlobal)
	go l.run()

	sigs := make(map[string]*atomir.Type)
	depth := 0
	var pendingTyp *atomir.Type
	pendingName := ""
	havePending := false

	for {
		it := l.nextItem()
		if it.typ == itemEOF {
			break
		}
		if it.typ == itemError {
			return nil, fmt.Errorf("lexical error: %s", it.val)
		}
		if depth > 0 {
			switch it.typ {
			case itemType('{'):
				depth++
			case itemType('}'):
				depth--
			}
			continue
		}
		switch it.typ {
		case KwInt, KwFloat, KwVoid:
			pendingTyp = typeFromKeyword(it.typ)
			havePending = true
			pendingName = ""
		case IDENTIFIER:
			if havePending && pendingName == "" {
				pendingName = it.val
			}
		case itemType('('):
			if havePending && pendingName != "" {
				sigs[pendingName] = pendingTyp
			}
		case itemType('{'):
			depth++
		case itemType(';'):
			havePending = false
			pendingName = ""
		}
	}
	return sigs, nil
}

// typeFromKeyword maps a KwInt/KwFloat/KwVoid token to its atomir.Type, independent of any parser
// instance -- scanFuncSignatures runs before one exists.
func typeFromKeyword(t itemType) *atomir.Type {
	switch t {
	case KwFloat:
		return atomir.Float32Ty
	case KwVoid:
		return atomir.VoidTy
	default:
		return atomir.Int32Ty
	}
}

// runtimeSigs names the I/O runtime functions a Sy program may call without declaring, and their
// return types.
var runtimeSigs = map[string]*atomir.Type{
	"getint":    atomir.Int32Ty,
	"getch":     atomir.Int32Ty,
	"getarray":  atomir.Int32Ty,
	"getfloat":  atomir.Float32Ty,
	"getfarray": atomir.Int32Ty,
	"putint":    atomir.VoidTy,
	"putch":     atomir.VoidTy,
	"putarray":  atomir.VoidTy,
	"putfloat":  atomir.VoidTy,
	"putfarray": atomir.VoidTy,
	"starttime": atomir.VoidTy,
	"stoptime":  atomir.VoidTy,
}

// atoiOrZero and atofOrZero parse integer and float literals the lexer has already validated as
// well-formed digit sequences; a parse failure here would mean a lexer bug, not malformed input,
// so both simply fall back to zero rather than threading a second error path through every
// literal in the grammar.
func atoiOrZero(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func atofOrZero(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
