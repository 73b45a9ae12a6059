package main

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"atomc/src/backend/codegen"
	"atomc/src/frontend"
	"atomc/src/llvmpath"
	"atomc/src/util"
)

// run begins reading source code and executes compiler stages. Behaviour is defined by the
// util.Options structure.
func run(opt util.Options) error {
	// Read source code.
	src, err := util.ReadSource(opt)
	if err != nil {
		return fmt.Errorf("could not read source code: %s", err)
	}

	// If -ts flag was passed: output token stream and exit.
	if opt.TokenStream {
		if err := frontend.TokenStream(src); err != nil {
			return fmt.Errorf("syntax error: %s", err)
		}
		return nil
	}

	// Lex and parse source code into an AtomIR module.
	mod, err := frontend.Parse(src)
	if err != nil {
		return fmt.Errorf("parse error: %s", err)
	}

	// Gen LLVM IR and exit, if flag is passed.
	if opt.EmitLLVM {
		out, err := llvmpath.Emit(mod)
		if err != nil {
			return fmt.Errorf("error reported by LLVM: %s", err)
		}
		wr := util.NewWriter()
		wr.WriteString(out)
		wr.Close()
		return nil
	}

	// Generate RISC-V assembly.
	out := codegen.New().Compile(mod)
	wr := util.NewWriter()
	wr.WriteString(out)
	wr.Close()

	if opt.Run || opt.Check {
		return runOutput(opt, out)
	}
	return nil
}

// runOutput assembles, links and executes the generated RISC-V assembly under a userspace
// emulator, then -- in -check mode -- diffs the program's stdout against the reference file.
// A missing cross toolchain or emulator is a hard error, never a silent skip.
func runOutput(opt util.Options, asm string) error {
	cc, err := lookFirst("riscv64-linux-gnu-gcc", "riscv64-unknown-linux-gnu-gcc", "riscv64-unknown-elf-gcc")
	if err != nil {
		return err
	}
	emu, err := lookFirst("qemu-riscv64", "qemu-riscv64-static")
	if err != nil {
		return err
	}

	dir, err := ioutil.TempDir("", "atomc")
	if err != nil {
		return err
	}
	defer func() {
		_ = os.RemoveAll(dir)
	}()

	asmPath := filepath.Join(dir, "out.s")
	if err := ioutil.WriteFile(asmPath, []byte(asm), 0644); err != nil {
		return err
	}
	binPath := filepath.Join(dir, "out")

	ccArgs := []string{"-static", "-o", binPath, asmPath}
	if len(opt.OtherSrc) > 0 {
		ccArgs = append(ccArgs, opt.OtherSrc)
	}
	if msg, err := exec.Command(cc, ccArgs...).CombinedOutput(); err != nil {
		return fmt.Errorf("assemble/link failed: %s\n%s", err, msg)
	}

	cmd := exec.Command(emu, binPath)
	if len(opt.RunInput) > 0 {
		f, err := os.Open(opt.RunInput)
		if err != nil {
			return err
		}
		defer func() {
			_ = f.Close()
		}()
		cmd.Stdin = f
	}
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = os.Stderr
	runErr := cmd.Run()
	code := 0
	if ee, ok := runErr.(*exec.ExitError); ok {
		code = ee.ExitCode()
	} else if runErr != nil {
		return runErr
	}
	if opt.Verbose {
		fmt.Fprintf(os.Stderr, "program exited with code %d\n", code)
	}

	if !opt.Check {
		fmt.Print(stdout.String())
		return nil
	}
	want, err := ioutil.ReadFile(opt.CompareFile)
	if err != nil {
		return err
	}
	got := strings.TrimRight(stdout.String(), " \t\n")
	exp := strings.TrimRight(string(want), " \t\n")
	if got != exp {
		return fmt.Errorf("output mismatch:\n--- got ---\n%s\n--- want ---\n%s", got, exp)
	}
	return nil
}

// lookFirst returns the first of names found on PATH.
func lookFirst(names ...string) (string, error) {
	for _, n := range names {
		if p, err := exec.LookPath(n); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("none of %s found on PATH", strings.Join(names, ", "))
}

func main() {
	// Parse command line arguments.
	opt, err := util.ParseArgs()
	if err != nil {
		fmt.Printf("Command line argument error: %s\n", err)
		os.Exit(1)
	}

	// Initiate output writer.
	wg := sync.WaitGroup{}
	if len(opt.Out) > 0 {
		// Attempt to open output file. Create new file if necessary.
		f, err := os.OpenFile(opt.Out, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		defer func(f *os.File) {
			if err := f.Close(); err != nil {
				fmt.Println(err)
			}
		}(f)
		util.ListenWrite(f, &wg)
	} else {
		// Write results to stdout.
		util.ListenWrite(nil, &wg)
	}

	if err := run(opt); err != nil {
		fmt.Printf("Error: %s\n", err)
		wg.Wait()
		util.Close()
		os.Exit(1)
	}

	// Wait for code generation output to drain before releasing the listener.
	wg.Wait()
	util.Close()
}
