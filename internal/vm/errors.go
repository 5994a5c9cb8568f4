package vm

import "fmt"

// CompileErrorKind discriminates compile-time failures.
type CompileErrorKind string

const (
	ErrUnsupported      CompileErrorKind = "unsupported construct"
	ErrNamedArgOrder    CompileErrorKind = "positional argument after named"
	ErrDuplicateNamed   CompileErrorKind = "duplicate named argument"
	ErrUnknownNamed     CompileErrorKind = "unknown named argument"
	ErrMissingArgument  CompileErrorKind = "missing argument"
	ErrArity            CompileErrorKind = "arity mismatch"
	ErrAwaitUnsupported CompileErrorKind = "await not supported"
	ErrBadJump          CompileErrorKind = "jump too large"
	ErrBadLoopLevel     CompileErrorKind = "invalid loop level"
	ErrTooManyLocals    CompileErrorKind = "too many locals"
	ErrBadAssignment    CompileErrorKind = "invalid assignment target"
)

// CompileError is a structured compile-time failure. The compiler returns
// it as a value; it never aborts the process.
type CompileError struct {
	Kind    CompileErrorKind
	Message string
	File    string
	Line    int
	Column  int
}

func (e *CompileError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s:%d:%d: compile error: %s", e.File, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("%d:%d: compile error: %s", e.Line, e.Column, e.Message)
}

// FaultKind discriminates runtime faults.
type FaultKind string

const (
	FaultUndefinedVariable FaultKind = "undefined variable"
	FaultArity             FaultKind = "wrong arity"
	FaultType              FaultKind = "type error"
	FaultIndex             FaultKind = "index error"
	FaultMatch             FaultKind = "non-exhaustive match"
	FaultCircularImport    FaultKind = "circular import"
	FaultImport            FaultKind = "import error"
	FaultIO                FaultKind = "io error"
	FaultPanic             FaultKind = "panic"
)

// RuntimeError aborts the current top-level execution and propagates to
// the host. Faults are never retried or recovered inside the VM.
type RuntimeError struct {
	Kind    FaultKind
	Message string
	File    string
	Line    int
	Column  int
}

func (e *RuntimeError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s:%d:%d: runtime error: %s", e.File, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("runtime error: %s", e.Message)
}
