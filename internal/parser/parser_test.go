package parser

import (
	"testing"

	"github.com/luma-lang/luma/internal/ast"
)

func parseProgram(t *testing.T, source string) *ast.Program {
	t.Helper()
	program, diags := Parse(source, "test.luma")
	if len(diags) > 0 {
		t.Fatalf("unexpected diagnostics: %v", diags[0])
	}
	return program
}

func parseFail(t *testing.T, source string) *Diagnostic {
	t.Helper()
	_, diags := Parse(source, "test.luma")
	if len(diags) == 0 {
		t.Fatal("expected a diagnostic, got none")
	}
	return diags[0]
}

func singleStatement(t *testing.T, source string) ast.Statement {
	t.Helper()
	program := parseProgram(t, source)
	if len(program.Statements) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(program.Statements))
	}
	return program.Statements[0]
}

func TestVarDecl(t *testing.T) {
	decl, ok := singleStatement(t, `let x = 1`).(*ast.VarDecl)
	if !ok {
		t.Fatal("expected *ast.VarDecl")
	}
	if decl.Name != "x" || decl.Mutable {
		t.Fatalf("let parsed as %q mutable=%v", decl.Name, decl.Mutable)
	}

	decl = singleStatement(t, `var y = 2`).(*ast.VarDecl)
	if decl.Name != "y" || !decl.Mutable {
		t.Fatalf("var parsed as %q mutable=%v", decl.Name, decl.Mutable)
	}
}

func TestDestructuringVarDecl(t *testing.T) {
	decl, ok := singleStatement(t, `let [a, _, ...rest] = xs`).(*ast.DestructuringVarDecl)
	if !ok {
		t.Fatal("expected *ast.DestructuringVarDecl")
	}
	list, ok := decl.Pattern.(*ast.ListPattern)
	if !ok {
		t.Fatal("expected list pattern")
	}
	if len(list.Elements) != 2 || !list.HasRest || list.Rest != "rest" {
		t.Fatalf("unexpected list pattern: %+v", list)
	}
	if _, ok := list.Elements[1].(*ast.WildcardPattern); !ok {
		t.Fatal("expected wildcard element")
	}

	decl = singleStatement(t, `let { x: a, y } = p`).(*ast.DestructuringVarDecl)
	table, ok := decl.Pattern.(*ast.TablePattern)
	if !ok {
		t.Fatal("expected table pattern")
	}
	if len(table.Fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(table.Fields))
	}
	if table.Fields[0].Key != "x" || table.Fields[0].Binding != "a" {
		t.Fatalf("renamed field parsed as %+v", table.Fields[0])
	}
	if table.Fields[1].Key != "y" || table.Fields[1].Binding != "y" {
		t.Fatalf("shorthand field parsed as %+v", table.Fields[1])
	}
}

func TestOperatorPrecedence(t *testing.T) {
	stmt := singleStatement(t, `1 + 2 * 3`).(*ast.ExpressionStatement)
	add := stmt.Expression.(*ast.BinaryExpression)
	if add.Operator != "+" {
		t.Fatalf("expected + at the root, got %q", add.Operator)
	}
	mul, ok := add.Right.(*ast.BinaryExpression)
	if !ok || mul.Operator != "*" {
		t.Fatalf("expected * on the right, got %T", add.Right)
	}

	stmt = singleStatement(t, `(1 + 2) * 3`).(*ast.ExpressionStatement)
	root := stmt.Expression.(*ast.BinaryExpression)
	if root.Operator != "*" {
		t.Fatalf("grouping ignored, root is %q", root.Operator)
	}

	// Logic binds looser than comparison.
	stmt = singleStatement(t, `a < b and c`).(*ast.ExpressionStatement)
	logical := stmt.Expression.(*ast.LogicalExpression)
	if logical.Operator != "and" {
		t.Fatalf("expected and at the root, got %q", logical.Operator)
	}
	if lt, ok := logical.Left.(*ast.BinaryExpression); !ok || lt.Operator != "<" {
		t.Fatalf("expected < on the left, got %T", logical.Left)
	}
}

func TestAssignmentTargets(t *testing.T) {
	assign := singleStatement(t, `x = 1`).(*ast.Assignment)
	if _, ok := assign.Target.(*ast.Identifier); !ok {
		t.Fatalf("expected identifier target, got %T", assign.Target)
	}

	assign = singleStatement(t, `t.field = 1`).(*ast.Assignment)
	if _, ok := assign.Target.(*ast.MemberAccess); !ok {
		t.Fatalf("expected member target, got %T", assign.Target)
	}

	assign = singleStatement(t, `xs[0] = 1`).(*ast.Assignment)
	if _, ok := assign.Target.(*ast.IndexExpression); !ok {
		t.Fatalf("expected index target, got %T", assign.Target)
	}
}

func TestInvalidAssignmentTarget(t *testing.T) {
	d := parseFail(t, `1 = 2`)
	if d.Message != "invalid assignment target" {
		t.Fatalf("unexpected message: %s", d.Message)
	}
}

func TestFunctionLiteral(t *testing.T) {
	decl := singleStatement(t, `let f = fn(a, b = 2) do a + b end`).(*ast.VarDecl)
	fn, ok := decl.Value.(*ast.FunctionLiteral)
	if !ok {
		t.Fatalf("expected function literal, got %T", decl.Value)
	}
	if len(fn.Params) != 2 {
		t.Fatalf("expected 2 params, got %d", len(fn.Params))
	}
	if fn.Params[0].Name != "a" || fn.Params[0].Default != nil {
		t.Fatalf("unexpected first param: %+v", fn.Params[0])
	}
	if fn.Params[1].Name != "b" || fn.Params[1].Default == nil {
		t.Fatalf("expected defaulted second param: %+v", fn.Params[1])
	}
	if len(fn.Body) != 1 {
		t.Fatalf("expected 1 body statement, got %d", len(fn.Body))
	}
}

func TestCallArguments(t *testing.T) {
	stmt := singleStatement(t, `f(1, x = 2, y = g(3))`).(*ast.ExpressionStatement)
	call := stmt.Expression.(*ast.CallExpression)
	if len(call.Arguments) != 3 {
		t.Fatalf("expected 3 arguments, got %d", len(call.Arguments))
	}
	if call.Arguments[0].Name != "" {
		t.Fatalf("first argument should be positional, got name %q", call.Arguments[0].Name)
	}
	if call.Arguments[1].Name != "x" || call.Arguments[2].Name != "y" {
		t.Fatalf("named arguments parsed as %q, %q", call.Arguments[1].Name, call.Arguments[2].Name)
	}
	if _, ok := call.Arguments[2].Value.(*ast.CallExpression); !ok {
		t.Fatalf("nested call lost: %T", call.Arguments[2].Value)
	}
}

func TestIfStatementChain(t *testing.T) {
	stmt := singleStatement(t, `if a do 1 else if b do 2 else do 3 end`).(*ast.IfStatement)
	if len(stmt.ElifBlocks) != 1 {
		t.Fatalf("expected 1 elif block, got %d", len(stmt.ElifBlocks))
	}
	if !stmt.HasElse {
		t.Fatal("else block lost")
	}
}

func TestIfExpression(t *testing.T) {
	decl := singleStatement(t, `let x = if c do 1 else do 2 end`).(*ast.VarDecl)
	if _, ok := decl.Value.(*ast.IfExpression); !ok {
		t.Fatalf("expected if expression, got %T", decl.Value)
	}
}

func TestLoops(t *testing.T) {
	while := singleStatement(t, `while x > 0 do x = x - 1 end`).(*ast.WhileStatement)
	if len(while.Body) != 1 {
		t.Fatalf("expected 1 body statement, got %d", len(while.Body))
	}

	doWhile := singleStatement(t, `do f() while ready() end`).(*ast.DoWhileStatement)
	if doWhile.Condition == nil {
		t.Fatal("do-while lost its condition")
	}

	forIn := singleStatement(t, `for [k, v] in pairs do k end`).(*ast.ForStatement)
	if _, ok := forIn.Pattern.(*ast.ListPattern); !ok {
		t.Fatalf("expected list pattern binding, got %T", forIn.Pattern)
	}
}

func TestBreakContinueLevels(t *testing.T) {
	program := parseProgram(t, `
while true do
	break 2
	continue
end
`)
	while := program.Statements[0].(*ast.WhileStatement)
	brk := while.Body[0].(*ast.BreakStatement)
	if brk.Level != 2 {
		t.Fatalf("expected break level 2, got %d", brk.Level)
	}
	cont := while.Body[1].(*ast.ContinueStatement)
	if cont.Level != 1 {
		t.Fatalf("expected default continue level 1, got %d", cont.Level)
	}
}

func TestMatchStatement(t *testing.T) {
	stmt := singleStatement(t, `
match shape do
	{ kind: k } do k end
	[x, ...rest] do x end
	"none" do null end
	_ do panic("?") end
end
`).(*ast.MatchStatement)
	if len(stmt.Arms) != 4 {
		t.Fatalf("expected 4 arms, got %d", len(stmt.Arms))
	}
	if _, ok := stmt.Arms[0].Pattern.(*ast.TablePattern); !ok {
		t.Fatalf("arm 0: %T", stmt.Arms[0].Pattern)
	}
	if _, ok := stmt.Arms[1].Pattern.(*ast.ListPattern); !ok {
		t.Fatalf("arm 1: %T", stmt.Arms[1].Pattern)
	}
	if _, ok := stmt.Arms[2].Pattern.(*ast.LiteralPattern); !ok {
		t.Fatalf("arm 2: %T", stmt.Arms[2].Pattern)
	}
	if _, ok := stmt.Arms[3].Pattern.(*ast.WildcardPattern); !ok {
		t.Fatalf("arm 3: %T", stmt.Arms[3].Pattern)
	}
}

func TestMatchExpression(t *testing.T) {
	decl := singleStatement(t, `let r = match x do 1 do "one" end end`).(*ast.VarDecl)
	if _, ok := decl.Value.(*ast.MatchExpression); !ok {
		t.Fatalf("expected match expression, got %T", decl.Value)
	}
}

func TestBracketOnNewLineStartsStatement(t *testing.T) {
	program := parseProgram(t, "let get = fn() do n end\n[get, 2]")
	if len(program.Statements) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(program.Statements))
	}
	stmt := program.Statements[1].(*ast.ExpressionStatement)
	if _, ok := stmt.Expression.(*ast.ListLiteral); !ok {
		t.Fatalf("expected list literal, got %T", stmt.Expression)
	}

	// Same line still indexes.
	assign := singleStatement(t, `xs[0] = 1`).(*ast.Assignment)
	if _, ok := assign.Target.(*ast.IndexExpression); !ok {
		t.Fatalf("expected index target, got %T", assign.Target)
	}

	// A '(' on a new line is a grouped expression, not a call.
	program = parseProgram(t, "let f = fn() do 1 end\n(1 + 2)")
	if len(program.Statements) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(program.Statements))
	}
}

func TestImportExpression(t *testing.T) {
	decl := singleStatement(t, `let m = import("lib/math")`).(*ast.VarDecl)
	imp, ok := decl.Value.(*ast.ImportExpression)
	if !ok {
		t.Fatalf("expected import expression, got %T", decl.Value)
	}
	path, ok := imp.Path.(*ast.StringLiteral)
	if !ok || path.Value != "lib/math" {
		t.Fatalf("unexpected import path: %#v", imp.Path)
	}
}

func TestRestMustBeLast(t *testing.T) {
	d := parseFail(t, `let [...rest, a] = xs`)
	if d.Message != "rest binding must be the last pattern element" {
		t.Fatalf("unexpected message: %s", d.Message)
	}
}

func TestUnclosedBlock(t *testing.T) {
	d := parseFail(t, `while true do f()`)
	if d.Line == 0 {
		t.Fatalf("diagnostic missing position: %v", d)
	}
}

func TestDiagnosticPositions(t *testing.T) {
	d := parseFail(t, "let x = 1\nlet = 2")
	if d.File != "test.luma" || d.Line != 2 {
		t.Fatalf("expected test.luma:2, got %s:%d", d.File, d.Line)
	}
}
