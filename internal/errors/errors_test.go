package errors

import (
	"strings"
	"testing"
)

func TestErrorIncludesTypeAndMessage(t *testing.T) {
	err := NewUnmatchedClose("prog.bf", 3, 5)
	msg := err.Error()
	if !strings.Contains(msg, string(UnmatchedClose)) {
		t.Errorf("expected %q to contain %q", msg, UnmatchedClose)
	}
	if !strings.Contains(msg, "prog.bf:3:5") {
		t.Errorf("expected %q to contain the source location", msg)
	}
}

func TestErrorWithoutLocationOmitsAtLine(t *testing.T) {
	err := NewHostUnsupported("linux/amd64 only")
	msg := err.Error()
	if strings.Contains(msg, "at ") {
		t.Errorf("expected %q to omit a location line when none was set", msg)
	}
}

func TestWithSourceAddsCaretLine(t *testing.T) {
	err := NewUnmatchedOpen("prog.bf", 2, 4).WithSource("++[+")
	msg := err.Error()
	if !strings.Contains(msg, "++[+") {
		t.Errorf("expected %q to contain the offending source line", msg)
	}
	if !strings.Contains(msg, "^") {
		t.Errorf("expected %q to contain a caret", msg)
	}
}

func TestCodegenErrorType(t *testing.T) {
	err := NewCodegenError("backend refused the generated IR")
	if err.Type != CodegenError {
		t.Errorf("Type = %v, want %v", err.Type, CodegenError)
	}
}
