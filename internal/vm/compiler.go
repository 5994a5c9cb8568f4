package vm

import (
	"fmt"

	"github.com/luma-lang/luma/internal/ast"
	"github.com/luma-lang/luma/internal/token"
)

// Local represents a local variable during compilation
type Local struct {
	Name        string
	Depth       int  // Scope depth where this local was declared
	Slot        int  // Stack slot relative to frame.base
	IsCaptured  bool // True if captured by a nested function
	Predeclared bool // Slot allocated ahead of its declaration for recursion
}

// Upvalue represents a captured variable from an enclosing scope
type Upvalue struct {
	Index   int  // Index of the local slot / upvalue in the enclosing function
	IsLocal bool // True if it captures a local, false if it captures another upvalue
}

// FunctionType distinguishes top-level code from functions
type FunctionType int

const (
	TYPE_SCRIPT FunctionType = iota
	TYPE_FUNCTION
)

// LoopContext tracks one loop under construction. Break and continue sites
// register their jump offsets here and are patched when the loop's exit
// and continue targets become known.
type LoopContext struct {
	continueTarget int   // Offset continue jumps to, -1 until known
	continueJumps  []int // Pending continue jumps (target not yet emitted)
	breakJumps     []int // Pending break jumps to the loop exit
	scopeDepth     int   // Scope depth when the loop started
	localCount     int   // Local count when the loop started
	entryDepth     int   // Stack depth when the loop started
}

// signature is the compile-time view of a statically-known callee, used
// for named-argument reordering and call-site default filling.
type signature struct {
	params []ast.Param
}

// Compiler lowers one syntax-tree unit to a Chunk. Nested function
// literals get their own Compiler linked through enclosing.
type Compiler struct {
	function *CompiledFunction
	funcType FunctionType
	file     string

	locals     []Local
	scopeDepth int

	// stackDepth is the compile-time operand stack height of the
	// current frame, updated by every emission.
	stackDepth int

	upvalues []Upvalue

	enclosing *Compiler

	loopStack []*LoopContext

	// Function signatures visible in the current scope chain, innermost
	// last. Global signatures live on the root compiler's first entry.
	sigScopes []map[string]*signature
}

// NewCompiler creates a compiler for top-level code.
func NewCompiler(file string) *Compiler {
	return &Compiler{
		function: &CompiledFunction{
			Chunk: NewChunk(file),
			Name:  "<script>",
		},
		funcType:  TYPE_SCRIPT,
		file:      file,
		sigScopes: []map[string]*signature{make(map[string]*signature)},
	}
}

func newFunctionCompiler(enclosing *Compiler, name string) *Compiler {
	return &Compiler{
		function: &CompiledFunction{
			Chunk: NewChunk(enclosing.file),
			Name:  name,
		},
		funcType:  TYPE_FUNCTION,
		file:      enclosing.file,
		enclosing: enclosing,
		sigScopes: []map[string]*signature{make(map[string]*signature)},
	}
}

// Compile is the package-level entry point: syntax tree in, chunk or
// structured compile error out.
func Compile(program *ast.Program) (*Chunk, error) {
	c := NewCompiler(program.File)
	return c.Compile(program)
}

// Compile lowers a program to its chunk. The chunk ends with OP_HALT and
// leaves the program's final value on top of the stack.
func (c *Compiler) Compile(program *ast.Program) (*Chunk, error) {
	if err := c.compileProgram(program); err != nil {
		return nil, err
	}
	endTok := token.Token{}
	if n := len(program.Statements); n > 0 {
		endTok = program.Statements[n-1].GetToken()
	}
	c.emitOp(endTok, OP_HALT)
	return c.function.Chunk, nil
}

func (c *Compiler) compileProgram(program *ast.Program) error {
	// First pass: predeclare every top-level binding as a Null global so
	// forward and mutually-recursive references resolve.
	for _, stmt := range program.Statements {
		vd, ok := stmt.(*ast.VarDecl)
		if !ok {
			continue
		}
		c.emitOp(vd.Token, OP_NULL)
		c.emitOpU16(vd.Token, OP_DEFINE_GLOBAL, c.nameConstant(vd.Name))
		if fn, ok := vd.Value.(*ast.FunctionLiteral); ok {
			c.declareSignature(vd.Name, fn)
		}
	}

	return c.compileStatementsLeaveLast(program.Statements, statementsTok(program.Statements))
}

func statementsTok(stmts []ast.Statement) token.Token {
	if len(stmts) > 0 {
		return stmts[0].GetToken()
	}
	return token.Token{}
}

// compileStatementsLeaveLast compiles a statement list so that exactly one
// value, the last statement's result, remains on the stack. An empty list
// leaves Null.
func (c *Compiler) compileStatementsLeaveLast(stmts []ast.Statement, tok token.Token) error {
	if len(stmts) == 0 {
		c.emitOp(tok, OP_NULL)
		return nil
	}
	for i, stmt := range stmts {
		if err := c.compileStatement(stmt); err != nil {
			return err
		}
		if i < len(stmts)-1 {
			c.emitOp(stmt.GetToken(), OP_POP)
		}
	}
	return nil
}

// compileStatementsDiscard compiles a statement list and discards every
// result, leaving the stack balanced. Used for loop bodies.
func (c *Compiler) compileStatementsDiscard(stmts []ast.Statement) error {
	for _, stmt := range stmts {
		if err := c.compileStatement(stmt); err != nil {
			return err
		}
		c.emitOp(stmt.GetToken(), OP_POP)
	}
	return nil
}

// Every statement leaves exactly one result value on the stack; callers
// pop it or keep it as the enclosing block's value.
func (c *Compiler) compileStatement(stmt ast.Statement) error {
	switch node := stmt.(type) {
	case *ast.VarDecl:
		return c.compileVarDecl(node)
	case *ast.DestructuringVarDecl:
		return c.compileDestructuringVarDecl(node)
	case *ast.Assignment:
		return c.compileAssignment(node)
	case *ast.ReturnStatement:
		return c.compileReturnStatement(node)
	case *ast.IfStatement:
		return c.compileIfStatement(node)
	case *ast.WhileStatement:
		return c.compileWhileLoop(node)
	case *ast.DoWhileStatement:
		return c.compileDoWhileLoop(node)
	case *ast.ForStatement:
		return c.compileForInLoop(node)
	case *ast.BreakStatement:
		return c.compileBreakStatement(node)
	case *ast.ContinueStatement:
		return c.compileContinueStatement(node)
	case *ast.MatchStatement:
		return c.compileMatch(node.Token, node.Subject, node.Arms)
	case *ast.ExpressionStatement:
		return c.compileExpression(node.Expression)
	default:
		return c.errorf(stmt.GetToken(), ErrUnsupported, "cannot compile statement %T", stmt)
	}
}

func (c *Compiler) compileVarDecl(node *ast.VarDecl) error {
	if fn, ok := node.Value.(*ast.FunctionLiteral); ok {
		c.declareSignature(node.Name, fn)
	}

	if c.scopeDepth == 0 && c.funcType == TYPE_SCRIPT {
		if err := c.compileNamedValue(node.Value, node.Name); err != nil {
			return err
		}
		c.emitOpU16(node.Token, OP_SET_GLOBAL, c.nameConstant(node.Name))
		c.emitOp(node.Token, OP_NULL)
		return nil
	}

	// A function-literal local may already be predeclared for recursion;
	// assign into its slot instead of allocating a new one.
	if slot, ok := c.resolvePredeclared(node.Name); ok {
		if err := c.compileNamedValue(node.Value, node.Name); err != nil {
			return err
		}
		c.emitOpU16(node.Token, OP_SET_LOCAL, slot)
		c.emitOp(node.Token, OP_NULL)
		return nil
	}

	if err := c.compileNamedValue(node.Value, node.Name); err != nil {
		return err
	}
	if err := c.addLocal(node.Token, node.Name); err != nil {
		return err
	}
	c.emitOp(node.Token, OP_NULL)
	return nil
}

// compileNamedValue compiles a declaration initializer, giving function
// literals the binding's name for stack traces and disassembly.
func (c *Compiler) compileNamedValue(expr ast.Expression, name string) error {
	if fn, ok := expr.(*ast.FunctionLiteral); ok {
		return c.compileFunctionLiteral(fn, name)
	}
	return c.compileExpression(expr)
}

func (c *Compiler) compileAssignment(node *ast.Assignment) error {
	switch target := node.Target.(type) {
	case *ast.Identifier:
		if err := c.compileExpression(node.Value); err != nil {
			return err
		}
		if slot, ok := c.resolveLocal(target.Value); ok {
			c.emitOpU16(node.Token, OP_SET_LOCAL, slot)
		} else if idx, ok := c.resolveUpvalue(target.Value); ok {
			c.emitOpU16(node.Token, OP_SET_UPVALUE, idx)
		} else {
			c.emitOpU16(node.Token, OP_SET_GLOBAL, c.nameConstant(target.Value))
		}

	case *ast.MemberAccess:
		if err := c.compileExpression(target.Object); err != nil {
			return err
		}
		if err := c.compileExpression(node.Value); err != nil {
			return err
		}
		c.emitOpU16(node.Token, OP_SET_PROP, c.nameConstant(target.Member))

	case *ast.IndexExpression:
		if err := c.compileExpression(target.Object); err != nil {
			return err
		}
		if err := c.compileExpression(target.Index); err != nil {
			return err
		}
		if err := c.compileExpression(node.Value); err != nil {
			return err
		}
		c.emitOp(node.Token, OP_SET_INDEX)

	default:
		return c.errorf(node.Token, ErrBadAssignment, "invalid assignment target %T", node.Target)
	}

	c.emitOp(node.Token, OP_NULL)
	return nil
}

func (c *Compiler) compileReturnStatement(node *ast.ReturnStatement) error {
	if node.Value != nil {
		if err := c.compileExpression(node.Value); err != nil {
			return err
		}
	} else {
		c.emitOp(node.Token, OP_NULL)
	}
	c.emitOp(node.Token, OP_RETURN)
	// Anything after a return is unreachable; account for the value the
	// statement would have left so later bookkeeping stays aligned.
	c.stackDepth++
	return nil
}

func (c *Compiler) compileIfStatement(node *ast.IfStatement) error {
	// Build condition/block pairs: the if itself plus else-if links.
	conds := []ast.Expression{node.Condition}
	blocks := [][]ast.Statement{node.ThenBlock}
	for _, elif := range node.ElifBlocks {
		conds = append(conds, elif.Condition)
		blocks = append(blocks, elif.Block)
	}
	return c.compileIfChain(node.Token, conds, blocks, node.ElseBlock, node.HasElse)
}

// compileIfChain lowers an if/else-if/else chain in value position. Every
// branch leaves one value; a missing else contributes Null. Each branch
// records its end jump in a local patch list resolved once the chain's
// exit address is known.
func (c *Compiler) compileIfChain(tok token.Token, conds []ast.Expression, blocks [][]ast.Statement, elseBlock []ast.Statement, hasElse bool) error {
	var endJumps []int

	for i := range conds {
		if err := c.compileExpression(conds[i]); err != nil {
			return err
		}
		skip := c.emitJump(tok, OP_JUMP_IF_FALSE)
		baseDepth := c.stackDepth

		if err := c.compileScopedBlock(tok, blocks[i]); err != nil {
			return err
		}
		endJumps = append(endJumps, c.emitJump(tok, OP_JUMP))

		if err := c.patchJump(tok, skip); err != nil {
			return err
		}
		// The next branch starts from the test's depth, not the depth
		// after the taken branch's value.
		c.stackDepth = baseDepth
	}

	if hasElse {
		if err := c.compileScopedBlock(tok, elseBlock); err != nil {
			return err
		}
	} else {
		c.emitOp(tok, OP_NULL)
	}

	for _, j := range endJumps {
		if err := c.patchJump(tok, j); err != nil {
			return err
		}
	}
	return nil
}

// compileScopedBlock compiles a statement list in its own scope, leaving
// the block's result value on the stack.
func (c *Compiler) compileScopedBlock(tok token.Token, stmts []ast.Statement) error {
	c.beginScope()
	c.predeclareFunctionLocals(stmts)
	if err := c.compileStatementsLeaveLast(stmts, tok); err != nil {
		return err
	}
	c.endScopePreserve(tok)
	return nil
}

// predeclareFunctionLocals allocates a null-initialized slot for every
// function-literal binding in the statement list, so that self- and
// mutually-recursive local functions resolve to the slot instead of
// falling back to an undefined global.
func (c *Compiler) predeclareFunctionLocals(stmts []ast.Statement) {
	for _, stmt := range stmts {
		vd, ok := stmt.(*ast.VarDecl)
		if !ok {
			continue
		}
		fn, ok := vd.Value.(*ast.FunctionLiteral)
		if !ok {
			continue
		}
		if c.predeclaredInScope(vd.Name) {
			continue
		}
		c.emitOp(vd.Token, OP_NULL)
		// addLocal only fails on slot exhaustion, which the enclosing
		// declaration will also hit and report.
		_ = c.addLocal(vd.Token, vd.Name)
		c.locals[len(c.locals)-1].Predeclared = true
		c.declareSignature(vd.Name, fn)
	}
}

func (c *Compiler) compileExpression(expr ast.Expression) error {
	switch node := expr.(type) {
	case *ast.NumberLiteral:
		c.emitConstant(node.Token, NumberVal(node.Value))
	case *ast.StringLiteral:
		c.emitConstant(node.Token, StringVal(node.Value))
	case *ast.BooleanLiteral:
		if node.Value {
			c.emitOp(node.Token, OP_TRUE)
		} else {
			c.emitOp(node.Token, OP_FALSE)
		}
	case *ast.NullLiteral:
		c.emitOp(node.Token, OP_NULL)
	case *ast.Identifier:
		return c.compileIdentifier(node)
	case *ast.ListLiteral:
		return c.compileListLiteral(node)
	case *ast.TableLiteral:
		return c.compileTableLiteral(node)
	case *ast.FunctionLiteral:
		return c.compileFunctionLiteral(node, "<anonymous>")
	case *ast.BinaryExpression:
		return c.compileBinaryExpression(node)
	case *ast.LogicalExpression:
		return c.compileLogicalExpression(node)
	case *ast.UnaryExpression:
		return c.compileUnaryExpression(node)
	case *ast.CallExpression:
		return c.compileCallExpression(node)
	case *ast.MemberAccess:
		if err := c.compileExpression(node.Object); err != nil {
			return err
		}
		c.emitOpU16(node.Token, OP_GET_PROP, c.nameConstant(node.Member))
	case *ast.IndexExpression:
		if err := c.compileExpression(node.Object); err != nil {
			return err
		}
		if err := c.compileExpression(node.Index); err != nil {
			return err
		}
		c.emitOp(node.Token, OP_GET_INDEX)
	case *ast.IfExpression:
		return c.compileIfChain(node.Token,
			[]ast.Expression{node.Condition},
			[][]ast.Statement{node.ThenBlock},
			node.ElseBlock, node.HasElse)
	case *ast.BlockExpression:
		return c.compileScopedBlock(node.Token, node.Body)
	case *ast.MatchExpression:
		return c.compileMatch(node.Token, node.Subject, node.Arms)
	case *ast.ImportExpression:
		if err := c.compileExpression(node.Path); err != nil {
			return err
		}
		c.emitOp(node.Token, OP_IMPORT)
	case *ast.AwaitExpression:
		return c.errorf(node.Token, ErrAwaitUnsupported, "await is not yet supported")
	default:
		return c.errorf(expr.GetToken(), ErrUnsupported, "cannot compile expression %T", expr)
	}
	return nil
}

func (c *Compiler) compileIdentifier(node *ast.Identifier) error {
	if slot, ok := c.resolveLocal(node.Value); ok {
		c.emitOpU16(node.Token, OP_GET_LOCAL, slot)
		return nil
	}
	if idx, ok := c.resolveUpvalue(node.Value); ok {
		c.emitOpU16(node.Token, OP_GET_UPVALUE, idx)
		return nil
	}
	c.emitOpU16(node.Token, OP_GET_GLOBAL, c.nameConstant(node.Value))
	return nil
}

func (c *Compiler) compileListLiteral(node *ast.ListLiteral) error {
	for _, elem := range node.Elements {
		if err := c.compileExpression(elem); err != nil {
			return err
		}
	}
	c.emitOpU16(node.Token, OP_BUILD_LIST, len(node.Elements))
	return nil
}

func (c *Compiler) compileTableLiteral(node *ast.TableLiteral) error {
	for _, field := range node.Fields {
		c.emitConstant(node.Token, StringVal(field.Key))
		if err := c.compileExpression(field.Value); err != nil {
			return err
		}
	}
	c.emitOpU16(node.Token, OP_BUILD_TABLE, len(node.Fields))
	return nil
}

func (c *Compiler) compileBinaryExpression(node *ast.BinaryExpression) error {
	if err := c.compileExpression(node.Left); err != nil {
		return err
	}
	if err := c.compileExpression(node.Right); err != nil {
		return err
	}

	switch node.Operator {
	case "+":
		c.emitOp(node.Token, OP_ADD)
	case "-":
		c.emitOp(node.Token, OP_SUB)
	case "*":
		c.emitOp(node.Token, OP_MUL)
	case "/":
		c.emitOp(node.Token, OP_DIV)
	case "%":
		c.emitOp(node.Token, OP_MOD)
	case "==":
		c.emitOp(node.Token, OP_EQ)
	case "!=":
		c.emitOp(node.Token, OP_NE)
	case "<":
		c.emitOp(node.Token, OP_LT)
	case "<=":
		c.emitOp(node.Token, OP_LE)
	case ">":
		c.emitOp(node.Token, OP_GT)
	case ">=":
		c.emitOp(node.Token, OP_GE)
	default:
		return c.errorf(node.Token, ErrUnsupported, "unknown binary operator %q", node.Operator)
	}
	return nil
}

// compileLogicalExpression lowers and/or to short-circuit jumps. The
// duplicate-then-test sequence costs one extra stack slot; the language
// accepts that over a dedicated opcode.
func (c *Compiler) compileLogicalExpression(node *ast.LogicalExpression) error {
	if err := c.compileExpression(node.Left); err != nil {
		return err
	}

	switch node.Operator {
	case "and":
		c.emitOp(node.Token, OP_DUP)
		end := c.emitJump(node.Token, OP_JUMP_IF_FALSE)
		c.emitOp(node.Token, OP_POP)
		if err := c.compileExpression(node.Right); err != nil {
			return err
		}
		return c.patchJump(node.Token, end)

	case "or":
		c.emitOp(node.Token, OP_DUP)
		rhs := c.emitJump(node.Token, OP_JUMP_IF_FALSE)
		end := c.emitJump(node.Token, OP_JUMP)
		if err := c.patchJump(node.Token, rhs); err != nil {
			return err
		}
		c.emitOp(node.Token, OP_POP)
		if err := c.compileExpression(node.Right); err != nil {
			return err
		}
		return c.patchJump(node.Token, end)

	default:
		return c.errorf(node.Token, ErrUnsupported, "unknown logical operator %q", node.Operator)
	}
}

func (c *Compiler) compileUnaryExpression(node *ast.UnaryExpression) error {
	if err := c.compileExpression(node.Operand); err != nil {
		return err
	}
	switch node.Operator {
	case "-":
		c.emitOp(node.Token, OP_NEG)
	case "not":
		c.emitOp(node.Token, OP_NOT)
	default:
		return c.errorf(node.Token, ErrUnsupported, "unknown unary operator %q", node.Operator)
	}
	return nil
}

func (c *Compiler) compileFunctionLiteral(node *ast.FunctionLiteral, name string) error {
	fc := newFunctionCompiler(c, name)
	fc.function.Arity = len(node.Params)
	for _, p := range node.Params {
		fc.function.Params = append(fc.function.Params, p.Name)
	}

	// Parameters occupy the first local slots of the new frame.
	fc.scopeDepth = 1
	for _, p := range node.Params {
		fc.stackDepth++
		if err := fc.addLocal(node.Token, p.Name); err != nil {
			return err
		}
	}

	fc.predeclareFunctionLocals(node.Body)
	if err := fc.compileStatementsLeaveLast(node.Body, node.Token); err != nil {
		return err
	}
	fc.emitOp(node.Token, OP_RETURN)

	fc.function.LocalCount = len(fc.locals)
	fc.function.UpvalueCount = len(fc.upvalues)
	for _, uv := range fc.upvalues {
		fc.function.Upvalues = append(fc.function.Upvalues, UpvalueDescriptor{
			Index:   uv.Index,
			IsLocal: uv.IsLocal,
		})
	}

	idx := c.function.Chunk.AddConstant(FunctionVal(fc.function))
	c.emitOpU16(node.Token, OP_CLOSURE, idx)
	for _, uv := range fc.upvalues {
		if uv.IsLocal {
			c.emitByte(node.Token, 1)
		} else {
			c.emitByte(node.Token, 0)
		}
		c.emitU16(node.Token, uv.Index)
	}
	return nil
}

func (c *Compiler) errorf(tok token.Token, kind CompileErrorKind, format string, args ...interface{}) error {
	return &CompileError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		File:    c.file,
		Line:    tok.Line,
		Column:  tok.Column,
	}
}
