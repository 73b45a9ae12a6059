package util

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Options holds the parsed command line configuration of a single compiler run.
type Options struct {
	Src         string // Path to source file.
	Out         string // Path to output file. Empty writes assembly to stdout.
	EmitLLVM    bool   // Set true to emit LLVM IR through the alternate path instead of RISC-V assembly.
	OtherSrc    string // Path to an auxiliary C or assembly file linked into the -R build.
	Run         bool   // Set true to assemble, link and run the output after compiling.
	RunInput    string // Path to a file fed to the compiled program's stdin under -R.
	Check       bool   // Set true to diff the -R run's stdout against CompareFile.
	CompareFile string // Path to the reference output used by -check.
	TokenStream bool   // Set true if the compiler should output the token stream and exit.
	Verbose     bool   // Set true to report the -R run's exit code on stderr.
}

// ---------------------
// ----- Constants -----
// ---------------------

const appVersion = "atomc compiler 1.0"

// ---------------------
// ----- functions -----
// ---------------------

// ParseArgs parses command line arguments. The source file path is the last positional
// argument; everything before it is flags.
func ParseArgs() (Options, error) {
	opt := Options{}
	if len(os.Args) < 2 {
		return opt, fmt.Errorf("expected a source file argument")
	}
	args := os.Args[1:]
	for i1 := 0; i1 < len(args)-1; i1++ {
		switch args[i1] {
		case "-h", "--h", "-help", "--help":
			// Help and usage.
			printHelp()
			os.Exit(0)
		case "-emit-llvm":
			opt.EmitLLVM = true
		case "-R":
			opt.Run = true
		case "-check":
			opt.Check = true
		case "-o", "-other-src", "-R-input", "-compare-file":
			if i1+1 >= len(args) {
				return opt, fmt.Errorf("got flag %s but no argument", args[i1])
			}
			if strings.HasPrefix(args[i1+1], "-") {
				return opt, fmt.Errorf("expected a path after %s, got new flag %s", args[i1], args[i1+1])
			}
			switch args[i1] {
			case "-o":
				opt.Out = args[i1+1]
			case "-other-src":
				opt.OtherSrc = args[i1+1]
			case "-R-input":
				opt.RunInput = args[i1+1]
			case "-compare-file":
				opt.CompareFile = args[i1+1]
			}
			i1++
		case "-ts":
			// Output token stream.
			opt.TokenStream = true
		case "-v", "--v", "-version", "--version":
			// Application version.
			fmt.Println(appVersion)
			os.Exit(0)
		case "-vb":
			// Verbose mode.
			opt.Verbose = true
		default:
			return opt, fmt.Errorf("unexpected flag: %s", args[i1])
		}
	}
	opt.Src = args[len(args)-1]
	if strings.HasPrefix(opt.Src, "-") {
		return opt, fmt.Errorf("expected a source file as the last argument, got flag %s", opt.Src)
	}
	if opt.Check && len(opt.CompareFile) == 0 {
		return opt, fmt.Errorf("-check requires -compare-file")
	}
	return opt, nil
}

// printHelp prints a helpful usage message to stdout.
func printHelp() {
	w := tabwriter.NewWriter(os.Stdout, 6, 1, 1, ' ', 0)
	_, _ = fmt.Fprintln(w, "usage: atomc [flags] <source file>")
	_, _ = fmt.Fprintln(w, "-h, -help\tPrints this help message and exits the application.")
	_, _ = fmt.Fprintln(w, "--h, --help")
	_, _ = fmt.Fprintln(w, "-emit-llvm\tEmit LLVM IR instead of RISC-V assembly.")
	_, _ = fmt.Fprintln(w, "-o\tPath and name of the output file. Defaults to stdout.")
	_, _ = fmt.Fprintln(w, "-other-src\tAuxiliary C or assembly file linked into the -R build.")
	_, _ = fmt.Fprintln(w, "-R\tAssemble, link and run the compiled output.")
	_, _ = fmt.Fprintln(w, "-R-input\tFile fed to the program's stdin during a -R run.")
	_, _ = fmt.Fprintln(w, "-check\tDiff the -R run's stdout against -compare-file.")
	_, _ = fmt.Fprintln(w, "-compare-file\tReference output used by -check.")
	_, _ = fmt.Fprintln(w, "-ts\tOutput the tokens of the source code and exit.")
	_, _ = fmt.Fprintln(w, "-v, -version\tPrints application version and exits the application.")
	_, _ = fmt.Fprintln(w, "--v, --version")
	_, _ = fmt.Fprintln(w, "-vb\tVerbose mode: report the -R run's exit code on stderr.")
	_ = w.Flush()
}
