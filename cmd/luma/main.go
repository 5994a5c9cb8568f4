package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"

	"github.com/luma-lang/luma/internal/config"
	"github.com/luma-lang/luma/internal/parser"
	"github.com/luma-lang/luma/internal/vm"
)

// Exit codes: 1 means the program faulted at runtime, 2 means it never
// got to run (usage, parse or compile errors).
const (
	exitOK    = 0
	exitFault = 1
	exitUsage = 2
)

const usageText = `Usage: luma <command> [flags] <file>

Commands:
  run      compile and run a script or bundle
  check    parse and compile without running
  disasm   print the compiled bytecode
  build    bundle a script and its imports into one file

Run 'luma <command> -h' for the command's flags.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(exitUsage)
	}

	switch os.Args[1] {
	case "run":
		os.Exit(cmdRun(os.Args[2:]))
	case "check":
		os.Exit(cmdCheck(os.Args[2:]))
	case "disasm":
		os.Exit(cmdDisasm(os.Args[2:]))
	case "build":
		os.Exit(cmdBuild(os.Args[2:]))
	case "help", "-h", "--help":
		fmt.Print(usageText)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usageText)
		os.Exit(exitUsage)
	}
}

// newLogger builds the host logger. Styled output only goes to real
// terminals.
func newLogger(verbose bool, level string) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: false,
		Prefix:          "luma",
	})

	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		logger.SetColorProfile(termenv.ANSI256)
	} else {
		logger.SetColorProfile(termenv.Ascii)
	}

	if verbose {
		logger.SetLevel(log.DebugLevel)
		return logger
	}
	if lvl, err := log.ParseLevel(level); err == nil {
		logger.SetLevel(lvl)
	} else {
		logger.SetLevel(log.WarnLevel)
	}
	return logger
}

// loadConfig loads the file named by -config, or discovers the nearest
// luma.yaml above the script. A named file that is missing or malformed
// is an error; discovery failures fall back to the defaults.
func loadConfig(explicit, scriptPath string) (*config.Config, error) {
	if explicit != "" {
		return config.LoadExplicit(explicit)
	}
	cfg, err := config.Discover(filepath.Dir(scriptPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %s\n", err)
		return config.Default(), nil
	}
	return cfg, nil
}

func cmdRun(args []string) int {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	verbose := fs.Bool("verbose", false, "enable debug logging")
	trace := fs.Bool("trace", false, "print every executed instruction to stderr")
	configPath := fs.String("config", "", "configuration file (default: nearest luma.yaml)")
	fs.Parse(args)

	path, ok := singlePath(fs, "run")
	if !ok {
		return exitUsage
	}
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		return exitUsage
	}

	cfg, err := loadConfig(*configPath, path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		return exitUsage
	}
	opts := vm.Options{
		SearchPaths: cfg.SearchPaths,
		Logger:      newLogger(*verbose, cfg.LogLevel),
	}
	if *trace {
		opts.Trace = os.Stderr
	}
	machine := vm.New(opts)

	var result vm.Value
	if vm.IsBundle(data) {
		bundle, err := vm.DeserializeBundle(data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s\n", err)
			return exitUsage
		}
		result, err = machine.RunBundle(bundle)
		if err != nil {
			return reportRunError(err)
		}
	} else {
		abs, _ := filepath.Abs(path)
		result, err = machine.Interpret(string(data), abs)
		if err != nil {
			return reportRunError(err)
		}
	}

	if result.Type != vm.ValueNull {
		fmt.Println(result.Inspect())
	}
	return exitOK
}

// reportRunError prints the error and maps runtime faults and compile
// errors onto their exit codes.
func reportRunError(err error) int {
	fmt.Fprintf(os.Stderr, "%s\n", err)
	var fault *vm.RuntimeError
	if errors.As(err, &fault) {
		return exitFault
	}
	return exitUsage
}

func cmdCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	fs.Parse(args)

	path, ok := singlePath(fs, "check")
	if !ok {
		return exitUsage
	}
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		return exitUsage
	}

	abs, _ := filepath.Abs(path)
	program, diags := parser.Parse(string(data), abs)
	if len(diags) > 0 {
		for _, d := range diags {
			fmt.Fprintf(os.Stderr, "%s\n", d)
		}
		return exitUsage
	}
	if _, err := vm.Compile(program); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		return exitUsage
	}
	return exitOK
}

func cmdDisasm(args []string) int {
	fs := flag.NewFlagSet("disasm", flag.ExitOnError)
	fs.Parse(args)

	path, ok := singlePath(fs, "disasm")
	if !ok {
		return exitUsage
	}
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		return exitUsage
	}

	if vm.IsBundle(data) {
		bundle, err := vm.DeserializeBundle(data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s\n", err)
			return exitUsage
		}
		fmt.Print(vm.Disassemble(bundle.Main, bundle.SourceFile))
		paths := make([]string, 0, len(bundle.Modules))
		for p := range bundle.Modules {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		for _, p := range paths {
			fmt.Println()
			fmt.Print(vm.Disassemble(bundle.Modules[p], p))
		}
		return exitOK
	}

	abs, _ := filepath.Abs(path)
	program, diags := parser.Parse(string(data), abs)
	if len(diags) > 0 {
		for _, d := range diags {
			fmt.Fprintf(os.Stderr, "%s\n", d)
		}
		return exitUsage
	}
	chunk, err := vm.Compile(program)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		return exitUsage
	}
	fmt.Print(vm.Disassemble(chunk, abs))
	return exitOK
}

func cmdBuild(args []string) int {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	output := fs.String("o", "", "output path (default: source with a .lumb extension)")
	configPath := fs.String("config", "", "configuration file (default: nearest luma.yaml)")
	fs.Parse(args)

	path, ok := singlePath(fs, "build")
	if !ok {
		return exitUsage
	}

	cfg, err := loadConfig(*configPath, path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		return exitUsage
	}
	bundle, err := vm.CompileBundle(path, cfg.SearchPaths)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		return exitUsage
	}
	data, err := bundle.Serialize()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		return exitUsage
	}

	out := *output
	if out == "" {
		out = strings.TrimSuffix(path, filepath.Ext(path)) + ".lumb"
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		return exitUsage
	}
	fmt.Printf("bundled %s -> %s (%d bytes, %d modules)\n", path, out, len(data), len(bundle.Modules))
	return exitOK
}

func singlePath(fs *flag.FlagSet, cmd string) (string, bool) {
	if fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: luma %s [flags] <file>\n", cmd)
		return "", false
	}
	return fs.Arg(0), true
}
