// internal/errors/errors.go
package errors

import (
	"fmt"
	"strings"
)

// ErrorType represents the category of a compilation or host error.
type ErrorType string

const (
	UnmatchedOpen  ErrorType = "UnmatchedOpen"
	UnmatchedClose ErrorType = "UnmatchedClose"
	HostUnsupported ErrorType = "HostUnsupported"
	CodegenError   ErrorType = "CodegenError"
)

// SourceLocation represents a location in source code.
type SourceLocation struct {
	File   string
	Line   int
	Column int
}

// BFError is an error with source location information. Every value the
// pipeline produces is fatal: the parser and internal/jit return it, and
// cmd/bf passes it up to main, which prints it and exits.
type BFError struct {
	Type     ErrorType
	Message  string
	Location SourceLocation
	Source   string // the source line where the error occurred
}

// Error implements the error interface.
func (e *BFError) Error() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s: %s\n", e.Type, e.Message))

	if e.Location.File != "" || e.Location.Line > 0 {
		sb.WriteString(fmt.Sprintf("  at %s:%d:%d\n",
			e.Location.File, e.Location.Line, e.Location.Column))

		if e.Source != "" {
			prefix := fmt.Sprintf("  %d | ", e.Location.Line)
			sb.WriteString(fmt.Sprintf("\n%s%s\n", prefix, e.Source))
			sb.WriteString(strings.Repeat(" ", len(prefix)))
			if e.Location.Column > 0 {
				sb.WriteString(strings.Repeat(" ", e.Location.Column-1))
			}
			sb.WriteString("^\n")
		}
	}

	return sb.String()
}

// NewUnmatchedOpen reports a `[` with no matching `]` before end of input.
func NewUnmatchedOpen(file string, line, column int) *BFError {
	return &BFError{
		Type:     UnmatchedOpen,
		Message:  "source ended while inside an open loop",
		Location: SourceLocation{File: file, Line: line, Column: column},
	}
}

// NewUnmatchedClose reports a `]` with no open `[` at the top level.
func NewUnmatchedClose(file string, line, column int) *BFError {
	return &BFError{
		Type:     UnmatchedClose,
		Message:  "unmatched ']' with no open loop",
		Location: SourceLocation{File: file, Line: line, Column: column},
	}
}

// NewHostUnsupported reports that the JIT backend cannot target the host ISA.
func NewHostUnsupported(message string) *BFError {
	return &BFError{Type: HostUnsupported, Message: message}
}

// NewCodegenError reports that the backend refused to compile the generated IR.
func NewCodegenError(message string) *BFError {
	return &BFError{Type: CodegenError, Message: message}
}

// WithSource attaches the offending source line for caret-pointer display.
func (e *BFError) WithSource(source string) *BFError {
	e.Source = source
	return e
}
