// Package codegen drives the backend core end to end: it runs the instruction selector and
// register allocator to a fixed point for every function in a module, finalizes each function's
// stack frame, and renders the whole module -- globals, function bodies, and the interned float
// literal pool -- as RISC-V assembly text.
package codegen

import (
	"math"
	"strings"

	"atomc/src/atomir"
	"atomc/src/backend/mir"
	"atomc/src/backend/regalloc"
	"atomc/src/backend/regfile"
	"atomc/src/backend/selector"
	"atomc/src/util/xtoa"
)

// maxFixedPointIterations bounds the selector/allocator re-run loop. Convergence is expected
// within two to four iterations: a function settles as soon as the set of callee-saved registers
// it uses stops changing between passes. The cap only guards against a pathological input that
// never converges.
const maxFixedPointIterations = 16

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Driver owns the physical register file and float literal pool shared across every function of
// a module being compiled.
type Driver struct {
	file *regfile.File
	pool *selector.FloatPool
}

// ---------------------
// ----- Functions -----
// ---------------------

// New returns a Driver ready to compile a module.
func New() *Driver {
	mir.ResetBlockLabels()
	return &Driver{file: regfile.New(), pool: selector.NewFloatPool()}
}

// Compile renders m as a complete RISC-V assembly file: globals in `.data`, function bodies in
// `.text`, and any interned float literals in a `.sdata` section marked writable -- `"aw"` is
// load-bearing, not cosmetic: without it the literals land in a segment the linked runtime
// relocates out of reach, and loads through the pool labels read garbage.
func (d *Driver) Compile(m *atomir.Module) string {
	sb := strings.Builder{}

	if len(m.Globals) > 0 {
		sb.WriteString("\t.data\n")
	}
	for _, g := range m.Globals {
		sb.WriteString(emitGlobal(g))
	}

	if len(m.Functions) > 0 {
		sb.WriteString("\t.text\n")
	}
	for _, fn := range m.Functions {
		mf := d.compileFunction(fn)
		sb.WriteString(mf.String())
	}

	if entries := d.pool.Entries(); len(entries) > 0 {
		sb.WriteString("\t.section\t.sdata,\"aw\",@progbits\n")
		sb.WriteString("\t.p2align\t2\n")
		for _, e := range entries {
			sb.WriteString(e.Label)
			sb.WriteString(":\n")
			sb.WriteString("\t.word\t" + xtoa.ItoA(int(e.Bits)) + "\n")
		}
	}
	return sb.String()
}

// compileFunction runs the selector and allocator to a fixed point. Each pass re-selects the
// function from scratch with a save-area reservation sized to the previous pass's callee-saved
// set, so local slot offsets always agree with the save area the frame finalizer will emit; the
// loop stops as soon as two consecutive passes agree on which callee-saved registers were used,
// since that set is the only thing a later pass could change its mind about.
func (d *Driver) compileFunction(fn *atomir.Function) *mir.Function {
	var mf *mir.Function
	var prevSaved map[*regfile.Register]bool

	alloc := regalloc.New(d.file)
	for iter := 0; iter < maxFixedPointIterations; iter++ {
		reserved := 8
		if fn.HasFunctionCall {
			reserved = 16
		}
		reserved += 8 * len(prevSaved)

		sel := selector.New(d.file, d.pool)
		mf = sel.SelectFunction(fn, reserved)
		alloc.Allocate(mf)

		cur := mf.SavedSetSnapshot()
		if prevSaved != nil && mf.SavedSetEqual(prevSaved) {
			break
		}
		prevSaved = cur
	}

	regalloc.FinalizeFrame(mf, d.file)
	return mf
}

// emitGlobal renders one module-level variable's storage directives and initializer.
func emitGlobal(g *atomir.GlobalVariable) string {
	sb := strings.Builder{}
	sb.WriteString("\t.type\t" + g.Name + ", @object\n")
	sb.WriteString("\t.globl\t" + g.Name + "\n")
	sb.WriteString("\t.p2align\t2\n")
	sb.WriteString(g.Name + ":\n")

	if g.Typ.IsArrayType() {
		elemSize := scalarElem(g.Typ).ByteLen()
		for _, run := range g.ArrayInit {
			if len(run.Elements) == 0 {
				sb.WriteString("\t.zero\t" + xtoa.ItoA(run.Count*elemSize) + "\n")
				continue
			}
			for i := 0; i < run.Count; i++ {
				for _, el := range run.Elements {
					sb.WriteString(emitScalarInit(el))
				}
			}
		}
	} else {
		sb.WriteString(emitScalarInit(g.ScalarInit))
	}

	sb.WriteString("\t.size\t" + g.Name + ", " + xtoa.ItoA(g.Typ.ByteLen()) + "\n")
	return sb.String()
}

// scalarElem returns the scalar element type at the bottom of a (possibly nested) array type.
func scalarElem(t *atomir.Type) *atomir.Type {
	for t.IsArrayType() {
		t = t.Elem
	}
	return t
}

// emitScalarInit renders a single 4-byte initializer word. A nil value (an uninitialized scalar
// global) emits a zero word rather than omitting storage.
func emitScalarInit(v atomir.Value) string {
	switch vv := v.(type) {
	case *atomir.ConstantInt:
		return "\t.word\t" + xtoa.ItoA(int(uint32(vv.V))) + "\n"
	case *atomir.ConstantFloat:
		return "\t.word\t" + xtoa.ItoA(int(math.Float32bits(vv.V))) + "\n"
	default:
		return "\t.zero\t4\n"
	}
}
