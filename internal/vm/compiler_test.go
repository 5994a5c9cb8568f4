package vm

import (
	"errors"
	"strings"
	"testing"

	"github.com/luma-lang/luma/internal/parser"
)

func compileSource(t *testing.T, source string) (*Chunk, error) {
	t.Helper()
	program, diags := parser.Parse(source, "test.luma")
	if len(diags) > 0 {
		t.Fatalf("parse error: %v", diags[0])
	}
	return Compile(program)
}

func wantCompileError(t *testing.T, source string, kind CompileErrorKind) *CompileError {
	t.Helper()
	_, err := compileSource(t, source)
	if err == nil {
		t.Fatalf("expected compile error %q, got none", kind)
	}
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CompileError, got %T: %v", err, err)
	}
	if ce.Kind != kind {
		t.Fatalf("expected error kind %q, got %q (%s)", kind, ce.Kind, ce.Message)
	}
	return ce
}

func TestNamedArgumentErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		kind   CompileErrorKind
	}{
		{
			"positional after named",
			`let f = fn(a, b) do a end
f(a = 1, 2)`,
			ErrNamedArgOrder,
		},
		{
			"duplicate named",
			`let f = fn(a, b) do a end
f(a = 1, a = 2, b = 3)`,
			ErrDuplicateNamed,
		},
		{
			"named clashes with positional",
			`let f = fn(a, b) do a end
f(1, a = 2)`,
			ErrDuplicateNamed,
		},
		{
			"unknown named",
			`let f = fn(a, b) do a end
f(1, c = 2)`,
			ErrUnknownNamed,
		},
		{
			"missing argument",
			`let f = fn(a, b) do a end
f(1)`,
			ErrMissingArgument,
		},
		{
			"too many positionals",
			`let f = fn(a) do a end
f(1, 2)`,
			ErrArity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wantCompileError(t, tt.source, tt.kind)
		})
	}
}

func TestNamedArgumentsRequireKnownSignature(t *testing.T) {
	// g is a plain variable here, so the compiler has no parameter list
	// to reorder against.
	ce := wantCompileError(t, `var g = null
g(a = 1)`, ErrUnsupported)
	if !strings.Contains(ce.Message, "by name") {
		t.Fatalf("unexpected message: %s", ce.Message)
	}
}

func TestDefaultsDoNotRequireArguments(t *testing.T) {
	_, err := compileSource(t, `let f = fn(a, b = 2) do a + b end
f(1)`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAwaitIsACompileError(t *testing.T) {
	ce := wantCompileError(t, `let x = await f()`, ErrAwaitUnsupported)
	if ce.Message != "await is not yet supported" {
		t.Fatalf("unexpected message: %q", ce.Message)
	}
}

func TestBreakOutsideLoop(t *testing.T) {
	wantCompileError(t, `break`, ErrBadLoopLevel)
	wantCompileError(t, `continue`, ErrBadLoopLevel)
}

func TestBreakLevelExceedsNesting(t *testing.T) {
	ce := wantCompileError(t, `while true do break 2 end`, ErrBadLoopLevel)
	if !strings.Contains(ce.Message, "exceeds loop nesting depth") {
		t.Fatalf("unexpected message: %s", ce.Message)
	}
}

func TestCompileErrorCarriesPosition(t *testing.T) {
	ce := wantCompileError(t, "let x = 1\nbreak", ErrBadLoopLevel)
	if ce.File != "test.luma" || ce.Line != 2 {
		t.Fatalf("expected test.luma:2, got %s:%d", ce.File, ce.Line)
	}
}

func TestSignatureScoping(t *testing.T) {
	// The inner fn literal can reorder against a signature declared in
	// an enclosing function.
	_, err := compileSource(t, `let outer = fn() do
	let helper = fn(a, b) do a - b end
	let inner = fn() do helper(b = 1, a = 3) end
	inner()
end
outer()`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDisassembleProgram(t *testing.T) {
	chunk, err := compileSource(t, `let f = fn(a) do a + 1 end
f(2)`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := Disassemble(chunk, "<script>")

	for _, want := range []string{
		"== <script> ==",
		"CLOSURE",
		"CALL",
		"HALT",
		"== f ==",
		"ADD",
		"RETURN",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("disassembly missing %q:\n%s", want, text)
		}
	}
}

func TestDisassembleJumpTargets(t *testing.T) {
	chunk, err := compileSource(t, `if true do 1 else do 2 end`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := Disassemble(chunk, "<script>")
	if !strings.Contains(text, "JUMP_IF_FALSE") || !strings.Contains(text, "->") {
		t.Fatalf("expected resolved jump targets:\n%s", text)
	}
}
