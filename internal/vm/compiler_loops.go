package vm

import (
	"github.com/luma-lang/luma/internal/ast"
	"github.com/luma-lang/luma/internal/token"
)

// Hidden loop locals use names with a space so user identifiers can
// never collide with them.
const (
	forIterLocal  = "for iter"
	forIndexLocal = "for idx"
	forLenLocal   = "for len"
)

func (c *Compiler) pushLoop(continueTarget int) *LoopContext {
	ctx := &LoopContext{
		continueTarget: continueTarget,
		scopeDepth:     c.scopeDepth,
		localCount:     len(c.locals),
		entryDepth:     c.stackDepth,
	}
	c.loopStack = append(c.loopStack, ctx)
	return ctx
}

func (c *Compiler) popLoop() {
	c.loopStack = c.loopStack[:len(c.loopStack)-1]
}

// compileWhileLoop lowers a while loop. Its condition doubles as the
// continue target; break jumps collect on the loop context and are
// patched at the exit. The statement's value is Null.
func (c *Compiler) compileWhileLoop(node *ast.WhileStatement) error {
	loopStart := c.function.Chunk.Len()
	ctx := c.pushLoop(loopStart)

	if err := c.compileExpression(node.Condition); err != nil {
		return err
	}
	exit := c.emitJump(node.Token, OP_JUMP_IF_FALSE)

	if err := c.compileLoopBody(node.Token, node.Body); err != nil {
		return err
	}
	if err := c.emitLoop(node.Token, loopStart); err != nil {
		return err
	}

	if err := c.patchJump(node.Token, exit); err != nil {
		return err
	}
	if err := c.patchBreaks(node.Token, ctx); err != nil {
		return err
	}
	c.popLoop()

	c.emitOp(node.Token, OP_NULL)
	return nil
}

// compileDoWhileLoop lowers a do-while loop: the body always runs once
// before the first condition check. Continue jumps forward to the
// condition, so they stay pending until it is emitted.
func (c *Compiler) compileDoWhileLoop(node *ast.DoWhileStatement) error {
	loopStart := c.function.Chunk.Len()
	ctx := c.pushLoop(-1)

	if err := c.compileLoopBody(node.Token, node.Body); err != nil {
		return err
	}

	if err := c.patchContinues(node.Token, ctx); err != nil {
		return err
	}
	if err := c.compileExpression(node.Condition); err != nil {
		return err
	}
	exit := c.emitJump(node.Token, OP_JUMP_IF_FALSE)
	if err := c.emitLoop(node.Token, loopStart); err != nil {
		return err
	}

	if err := c.patchJump(node.Token, exit); err != nil {
		return err
	}
	if err := c.patchBreaks(node.Token, ctx); err != nil {
		return err
	}
	c.popLoop()

	c.emitOp(node.Token, OP_NULL)
	return nil
}

// compileForInLoop lowers for-in over a list to an index-based while:
// three hidden locals hold the list, the running index, and the cached
// length, and each iteration binds the pattern to list[index]. Continue
// jumps forward to the increment step.
func (c *Compiler) compileForInLoop(node *ast.ForStatement) error {
	tok := node.Token

	c.beginScope()

	if err := c.compileExpression(node.Iterable); err != nil {
		return err
	}
	if err := c.addLocal(tok, forIterLocal); err != nil {
		return err
	}
	iterSlot, _ := c.resolveLocal(forIterLocal)

	c.emitConstant(tok, NumberVal(0))
	if err := c.addLocal(tok, forIndexLocal); err != nil {
		return err
	}
	idxSlot, _ := c.resolveLocal(forIndexLocal)

	c.emitOpU16(tok, OP_GET_LOCAL, iterSlot)
	c.emitOp(tok, OP_GET_LEN)
	if err := c.addLocal(tok, forLenLocal); err != nil {
		return err
	}
	lenSlot, _ := c.resolveLocal(forLenLocal)

	loopStart := c.function.Chunk.Len()
	ctx := c.pushLoop(-1)

	c.emitOpU16(tok, OP_GET_LOCAL, idxSlot)
	c.emitOpU16(tok, OP_GET_LOCAL, lenSlot)
	c.emitOp(tok, OP_LT)
	exit := c.emitJump(tok, OP_JUMP_IF_FALSE)

	c.beginScope()
	c.emitOpU16(tok, OP_GET_LOCAL, iterSlot)
	c.emitOpU16(tok, OP_GET_LOCAL, idxSlot)
	c.emitOp(tok, OP_GET_INDEX)
	if err := c.compilePatternBinding(tok, node.Pattern); err != nil {
		return err
	}
	c.predeclareFunctionLocals(node.Body)
	if err := c.compileStatementsDiscard(node.Body); err != nil {
		return err
	}
	c.endScopeDiscard(tok)

	if err := c.patchContinues(tok, ctx); err != nil {
		return err
	}
	c.emitOpU16(tok, OP_GET_LOCAL, idxSlot)
	c.emitConstant(tok, NumberVal(1))
	c.emitOp(tok, OP_ADD)
	c.emitOpU16(tok, OP_SET_LOCAL, idxSlot)
	if err := c.emitLoop(tok, loopStart); err != nil {
		return err
	}

	if err := c.patchJump(tok, exit); err != nil {
		return err
	}
	if err := c.patchBreaks(tok, ctx); err != nil {
		return err
	}
	c.popLoop()

	c.endScopeDiscard(tok)
	c.emitOp(tok, OP_NULL)
	return nil
}

// compileLoopBody compiles a loop body in its own scope, discarding
// every statement result so the stack is balanced across iterations.
func (c *Compiler) compileLoopBody(tok token.Token, body []ast.Statement) error {
	c.beginScope()
	c.predeclareFunctionLocals(body)
	if err := c.compileStatementsDiscard(body); err != nil {
		return err
	}
	c.endScopeDiscard(tok)
	return nil
}

// compileBreakStatement emits a break out of the Level-th enclosing
// loop, popping every local declared since that loop started.
func (c *Compiler) compileBreakStatement(node *ast.BreakStatement) error {
	ctx, err := c.loopAtLevel(node.Token, node.Level, "break")
	if err != nil {
		return err
	}
	baseDepth := c.stackDepth
	c.emitLoopCleanup(node.Token, ctx)
	ctx.breakJumps = append(ctx.breakJumps, c.emitJump(node.Token, OP_JUMP))

	// Unreachable, but keeps the statement's stack shape uniform for
	// the code after the jump.
	c.stackDepth = baseDepth
	c.emitOp(node.Token, OP_NULL)
	return nil
}

func (c *Compiler) compileContinueStatement(node *ast.ContinueStatement) error {
	ctx, err := c.loopAtLevel(node.Token, node.Level, "continue")
	if err != nil {
		return err
	}
	baseDepth := c.stackDepth
	c.emitLoopCleanup(node.Token, ctx)
	if ctx.continueTarget >= 0 {
		if err := c.emitLoop(node.Token, ctx.continueTarget); err != nil {
			return err
		}
	} else {
		ctx.continueJumps = append(ctx.continueJumps, c.emitJump(node.Token, OP_JUMP))
	}

	c.stackDepth = baseDepth
	c.emitOp(node.Token, OP_NULL)
	return nil
}

func (c *Compiler) loopAtLevel(tok token.Token, level int, what string) (*LoopContext, error) {
	if len(c.loopStack) == 0 {
		return nil, c.errorf(tok, ErrBadLoopLevel, "%s outside of a loop", what)
	}
	if level < 1 || level > len(c.loopStack) {
		return nil, c.errorf(tok, ErrBadLoopLevel,
			"%s level %d exceeds loop nesting depth %d", what, level, len(c.loopStack))
	}
	return c.loopStack[len(c.loopStack)-level], nil
}

// emitLoopCleanup pops everything pushed since the target loop
// started: locals declared inside it and any operand temporaries
// live below the jump site. Compile-time bookkeeping is left alone:
// locals stay in scope for code after the jump.
func (c *Compiler) emitLoopCleanup(tok token.Token, ctx *LoopContext) {
	if n := c.stackDepth - ctx.entryDepth; n > 0 {
		c.emitOpU16(tok, OP_POP_N, n)
	}
}

func (c *Compiler) patchBreaks(tok token.Token, ctx *LoopContext) error {
	for _, j := range ctx.breakJumps {
		if err := c.patchJump(tok, j); err != nil {
			return err
		}
	}
	ctx.breakJumps = nil
	return nil
}

func (c *Compiler) patchContinues(tok token.Token, ctx *LoopContext) error {
	for _, j := range ctx.continueJumps {
		if err := c.patchJump(tok, j); err != nil {
			return err
		}
	}
	ctx.continueJumps = nil
	return nil
}
