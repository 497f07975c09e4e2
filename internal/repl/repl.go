// Package repl is an interactive Brainfuck prompt: each line is parsed,
// optimized, and JIT'd independently, and each starts its pointer back
// at the tape's starting cell, but the tape's contents are never reset
// between lines, so a cell an earlier line wrote to is still set when a
// later line reads it.
package repl

import (
	"bufio"
	"fmt"
	"os"
	"unsafe"

	"bf/internal/backend/amd64"
	"bf/internal/build"
	"bf/internal/codegen"
	"bf/internal/errors"
	"bf/internal/jit"
	"bf/internal/optimizer"
	"bf/internal/parser"
	"bf/internal/runtime"
)

// Start runs the REPL loop against stdin/stdout until "exit" or EOF.
func Start() {
	fmt.Println("bf REPL | type 'exit' to quit")
	scanner := bufio.NewScanner(os.Stdin)

	tape := runtime.NewTape(build.DefaultTapeCells, build.DefaultTapeOffset)

	for {
		fmt.Print(">>> ")
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if line == "exit" {
			break
		}

		result, err := evalLine(line, tape)
		if err != nil {
			if bfErr, ok := err.(*errors.BFError); ok {
				fmt.Print(bfErr.Error())
			} else {
				fmt.Println(err)
			}
			continue
		}
		fmt.Printf("=> %d\n", result)
	}
}

func evalLine(line string, tape *runtime.Tape) (result int64, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
			} else {
				err = fmt.Errorf("repl: %v", r)
			}
		}
	}()

	instrs, perr := parser.New(line).Parse()
	if perr != nil {
		return 0, perr
	}

	ops := optimizer.Optimize(instrs)
	module := codegen.Translate(ops)
	code, tapeImmAt := amd64.Assemble(module.Func)

	compiled, jerr := jit.Finalize(code, tapeImmAt, uintptr(unsafe.Pointer(tape.StartPointer())))
	if jerr != nil {
		return 0, jerr
	}

	return runtime.Run(compiled, tape), nil
}
