// cmd/bf/main.go
package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unsafe"

	"bf/internal/backend/amd64"
	"bf/internal/build"
	"bf/internal/cache"
	"bf/internal/codegen"
	"bf/internal/errors"
	"bf/internal/formatter"
	"bf/internal/irdump"
	"bf/internal/jit"
	"bf/internal/optimizer"
	"bf/internal/parser"
	"bf/internal/repl"
	"bf/internal/reporting"
	"bf/internal/runtime"
	"bf/internal/streamserver"
)

const version = "1.0.0"

var buildDate = time.Now().Format("2006-01-02")

var commandAliases = map[string]string{
	"r": "run",
	"i": "repl",
	"b": "build",
	"f": "fmt",
	"s": "serve",
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		showUsage()
		return
	}

	cmd := args[0]
	if alias, ok := commandAliases[cmd]; ok {
		cmd = alias
	}

	if cmd == "--help" || cmd == "-h" || cmd == "help" {
		showUsage()
		return
	}
	if cmd == "--version" || cmd == "-v" || cmd == "version" {
		fmt.Printf("bf %s (%s)\n", version, buildDate)
		return
	}

	rest := args[1:]

	var err error
	switch cmd {
	case "run":
		err = runCommand(rest)
	case "build":
		err = buildCommand(rest)
	case "fmt":
		err = fmtCommand(rest)
	case "repl":
		repl.Start()
	case "serve":
		err = serveCommand(rest)
	default:
		fmt.Fprintf(os.Stderr, "bf: unknown command %q\n", cmd)
		showUsage()
		os.Exit(1)
	}

	if err != nil {
		reportError(err)
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`bf - a Brainfuck JIT compiler

Usage:
  bf run [file]     parse, optimize, JIT-compile, and execute a program
  bf build <file>   compile and JIT-finalize without executing
  bf fmt <file>     canonicalize a program's source
  bf repl           interactive prompt over a persistent tape
  bf serve [addr]   stream a program's output over a WebSocket
  bf --version
  bf --help`)
}

func reportError(err error) {
	if bfErr, ok := err.(*errors.BFError); ok {
		fmt.Fprint(os.Stderr, bfErr.Error())
		return
	}
	fmt.Fprintln(os.Stderr, err)
}

// readSourceOrPrompt reads the named file, or prompts for a filename on
// stdin when none is given, matching the reference implementation's
// interactive "Filename to load:" behavior.
func readSourceOrPrompt(args []string) (string, string, error) {
	var path string
	if len(args) > 0 {
		path = args[0]
	} else {
		fmt.Print("Filename to load: ")
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", "", err
		}
		path = trimNewline(line)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	return string(data), path, nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

// compileOps runs parse -> optimize against source, recording
// diagnostics along the way. Split out from compile so buildCommand can
// skip straight to finalizeOps on a cache hit.
func compileOps(source string, rec *reporting.Record) ([]optimizer.OpInstr, error) {
	rec.SourceBytes = len(source)

	rec.Begin(reporting.StageParse)
	instrs, err := parser.New(source).Parse()
	rec.End(reporting.StageParse)
	if err != nil {
		return nil, err
	}
	var countNodes func([]parser.Instr) int
	countNodes = func(instrs []parser.Instr) int {
		n := len(instrs)
		for _, in := range instrs {
			n += countNodes(in.Body)
		}
		return n
	}
	rec.InstructionCount = countNodes(instrs)

	rec.Begin(reporting.StageOptimize)
	ops := optimizer.Optimize(instrs)
	rec.End(reporting.StageOptimize)
	rec.OptimizedCount = optimizer.WalkLen(ops)
	rec.MaxLoopDepth = reporting.LoopDepth(ops)

	return ops, nil
}

// finalizeOps runs codegen -> JIT-finalize against tape, recording
// diagnostics along the way. tape must outlive the returned Module: its
// starting cell's address is baked into the compiled code.
func finalizeOps(ops []optimizer.OpInstr, tape *runtime.Tape, rec *reporting.Record) (*jit.Module, error) {
	rec.Begin(reporting.StageCodegen)
	module := codegen.Translate(ops)
	code, tapeImmAt := amd64.Assemble(module.Func)
	rec.End(reporting.StageCodegen)

	rec.Begin(reporting.StageJIT)
	compiled, err := jit.Finalize(code, tapeImmAt, uintptr(unsafe.Pointer(tape.StartPointer())))
	rec.End(reporting.StageJIT)
	if err != nil {
		dumpIR(module)
		return nil, err
	}

	return compiled, nil
}

// compile runs the full parse -> optimize -> codegen -> JIT-finalize
// pipeline against tape, recording diagnostics along the way.
func compile(source string, tape *runtime.Tape, rec *reporting.Record) (*jit.Module, []optimizer.OpInstr, error) {
	ops, err := compileOps(source, rec)
	if err != nil {
		return nil, nil, err
	}
	compiled, err := finalizeOps(ops, tape, rec)
	if err != nil {
		return nil, nil, err
	}
	return compiled, ops, nil
}

// dumpIR writes the in-progress backend IR to a file named "dis" on a
// CodegenError, the side channel spec's JIT driver calls for.
func dumpIR(module *codegen.Module) {
	text := irdump.Render(module.Func)
	os.WriteFile("dis", []byte(text), 0644)
}

func runCommand(args []string) error {
	source, path, err := readSourceOrPrompt(args)
	if err != nil {
		return err
	}

	manifest, err := build.Load(filepath.Dir(path))
	if err != nil {
		return err
	}

	rec := reporting.New()
	rec.TapeCells = manifest.TapeCells
	tape := runtime.NewTape(manifest.TapeCells, manifest.TapeOffset)

	compiled, _, err := compile(source, tape, rec)
	if err != nil {
		return err
	}

	rec.Begin(reporting.StageRun)
	result := runtime.Run(compiled, tape)
	rec.End(reporting.StageRun)

	fmt.Println(rec.Summary())
	fmt.Printf("result: %d\n", result)
	return nil
}

func buildCommand(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: bf build <file>")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	manifest, err := build.Load(filepath.Dir(args[0]))
	if err != nil {
		return err
	}
	tape := runtime.NewTape(manifest.TapeCells, manifest.TapeOffset)

	rec := reporting.New()
	source := string(data)
	digest := cache.Digest(source)

	var c *cache.Cache
	if manifest.CacheDir != "" {
		if opened, err := cache.Open(manifest.CacheDir + "/bf-cache.sqlite"); err == nil {
			c = opened
			defer c.Close()
		}
	}

	var ops []optimizer.OpInstr
	if c != nil {
		if cached, hit, err := c.Lookup(digest); err == nil && hit {
			ops = cached
			rec.SourceBytes = len(source)
			rec.OptimizedCount = optimizer.WalkLen(ops)
			rec.MaxLoopDepth = reporting.LoopDepth(ops)
		}
	}
	if ops == nil {
		ops, err = compileOps(source, rec)
		if err != nil {
			return err
		}
	}

	if _, err := finalizeOps(ops, tape, rec); err != nil {
		return err
	}

	if c != nil {
		c.Store(digest, ops, formatter.Format(ops))
	}

	fmt.Println(rec.Summary())
	return nil
}

func fmtCommand(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: bf fmt <file>")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	instrs, err := parser.NewWithFile(string(data), args[0]).Parse()
	if err != nil {
		return err
	}
	ops := optimizer.Optimize(instrs)
	fmt.Println(formatter.Format(ops))
	return nil
}

func serveCommand(args []string) error {
	addr := ":8085"
	if len(args) > 0 {
		addr = args[0]
	}
	fmt.Printf("bf serve: listening on %s (ws endpoint: /ws)\n", addr)
	return streamserver.Serve(addr)
}
