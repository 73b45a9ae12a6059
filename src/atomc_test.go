package main

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"

	"atomc/src/backend/codegen"
	"atomc/src/frontend"
	"atomc/src/util"
)

// -----------------------------
// ----- Test fixtures ---------
// -----------------------------

// sortSrc exercises most of the language in one program: globals, arrays, nested loops,
// comparisons, calls and recursion.
const sortSrc = `
int a[16];

void swap(int i, int j) {
    int t;
    t = a[i];
    a[i] = a[j];
    a[j] = t;
}

int partition(int lo, int hi) {
    int p;
    int i;
    int j;
    p = a[hi];
    i = lo - 1;
    j = lo;
    while (j < hi) {
        if (a[j] < p) {
            i = i + 1;
            swap(i, j);
        }
        j = j + 1;
    }
    swap(i + 1, hi);
    return i + 1;
}

void qsort(int lo, int hi) {
    int p;
    if (lo < hi) {
        p = partition(lo, hi);
        qsort(lo, p - 1);
        qsort(p + 1, hi);
    }
    return;
}

int main() {
    int i;
    i = 0;
    while (i < 16) {
        a[i] = 16 - i;
        i = i + 1;
    }
    qsort(0, 15);
    return a[0];
}
`

// floatSrc exercises the float pipeline: literals, conversions, comparisons and mixed
// arithmetic.
const floatSrc = `
float half(float x) {
    return x / 2.0;
}

int main() {
    float f;
    int n;
    f = half(3.0);
    if (f < 1.0) {
        return 1;
    }
    n = f + 0.5;
    return n;
}
`

// ----------------------
// ----- Functions ------
// ----------------------

// compileString runs the full frontend+backend pipeline in process.
func compileString(t *testing.T, src string) string {
	t.Helper()
	mod, err := frontend.Parse(src)
	if err != nil {
		t.Fatalf("parse: %s", err)
	}
	return codegen.New().Compile(mod)
}

// TestCompileSortProgram compiles the quicksort fixture and checks the module-wide invariants a
// linker and the ABI care about: every function labelled and sized, every branch target defined,
// every memory operand encodable, and every stack adjustment 16-byte aligned.
func TestCompileSortProgram(t *testing.T) {
	asm := compileString(t, sortSrc)

	for _, fn := range []string{"swap", "partition", "qsort", "main"} {
		if !strings.Contains(asm, "\t.globl\t"+fn+"\n") || !strings.Contains(asm, fn+":\n") {
			t.Errorf("function %s not emitted", fn)
		}
		if !strings.Contains(asm, "\t.size\t"+fn+", .-"+fn+"\n") {
			t.Errorf("function %s has no size directive", fn)
		}
	}

	labels := map[string]bool{}
	for _, line := range strings.Split(asm, "\n") {
		if strings.HasSuffix(line, ":") && !strings.HasPrefix(line, "\t") {
			labels[strings.TrimSuffix(line, ":")] = true
		}
	}
	branchRe := regexp.MustCompile(`(?m)\t(?:j|beq|bne|blt|bge)\s.*?(\.\S+)$`)
	for _, m := range branchRe.FindAllStringSubmatch(asm, -1) {
		if !labels[m[1]] {
			t.Errorf("branch target %q has no label", m[1])
		}
	}

	offRe := regexp.MustCompile(`(-?\d+)\(\w+\)`)
	for _, m := range offRe.FindAllStringSubmatch(asm, -1) {
		if off, _ := strconv.Atoi(m[1]); off < -2048 || off > 2047 {
			t.Errorf("memory operand %s out of immediate range", m[0])
		}
	}

	dropRe := regexp.MustCompile(`addi sp, sp, (-\d+)\n`)
	for _, m := range dropRe.FindAllStringSubmatch(asm, -1) {
		n, _ := strconv.Atoi(m[1])
		if n != -2032 && (-n)%16 != 0 {
			t.Errorf("sp adjustment %d not 16-byte aligned", n)
		}
	}

	// qsort calls itself and partition: it must save and restore ra.
	qsort := asm[strings.Index(asm, "qsort:"):]
	qsort = qsort[:strings.Index(qsort, ".size")]
	if !strings.Contains(qsort, "sd ra, ") || !strings.Contains(qsort, "ld ra, ") {
		t.Errorf("qsort does not preserve ra")
	}
}

// TestCompileFloatProgram compiles the float fixture and checks the literal pool and conversion
// instructions.
func TestCompileFloatProgram(t *testing.T) {
	asm := compileString(t, floatSrc)

	if !strings.Contains(asm, "\t.section\t.sdata,\"aw\",@progbits\n") {
		t.Fatalf("float literals missing their writable .sdata section:\n%s", asm)
	}
	for _, want := range []string{"fdiv.s ", "fslt.s ", "fcvt.w.s ", "fadd.s ", ".LC0:"} {
		if !strings.Contains(asm, want) {
			t.Errorf("missing %q in float program:\n%s", want, asm)
		}
	}
	// 2.0 appears once in the source but is interned per bit pattern: each .LC label is unique.
	lcRe := regexp.MustCompile(`(?m)^(\.LC\d+):$`)
	seen := map[string]bool{}
	for _, m := range lcRe.FindAllStringSubmatch(asm, -1) {
		if seen[m[1]] {
			t.Errorf("duplicate pool label %s", m[1])
		}
		seen[m[1]] = true
	}
}

// TestCompilerWritesOutputFile drives the compiler the way main does: options, the output
// listener, and a source file on disk.
func TestCompilerWritesOutputFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "atomc-test")
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = os.RemoveAll(dir)
	}()

	srcPath := filepath.Join(dir, "ret0.sy")
	if err := ioutil.WriteFile(srcPath, []byte("int main() { return 0; }\n"), 0644); err != nil {
		t.Fatal(err)
	}
	outPath := filepath.Join(dir, "ret0.s")
	f, err := os.OpenFile(outPath, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}

	wg := sync.WaitGroup{}
	util.ListenWrite(f, &wg)
	opt := util.Options{Src: srcPath, Out: outPath}
	if err := run(opt); err != nil {
		t.Fatalf("run: %s", err)
	}
	wg.Wait()
	util.Close()
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	out, err := ioutil.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "\t.globl\tmain\n") || !strings.Contains(string(out), "li a0, 0\n") {
		t.Errorf("output file does not hold the compiled module:\n%s", out)
	}
}

// BenchmarkCompileSort measures the full pipeline on the quicksort fixture.
func BenchmarkCompileSort(b *testing.B) {
	for i := 0; i < b.N; i++ {
		mod, err := frontend.Parse(sortSrc)
		if err != nil {
			b.Fatal(err)
		}
		codegen.New().Compile(mod)
	}
}
