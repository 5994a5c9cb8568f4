package vm

import (
	"github.com/luma-lang/luma/internal/ast"
	"github.com/luma-lang/luma/internal/token"
)

const (
	matchSubjectLocal = "match subject"
	destructureLocal  = "destructure tmp"
)

// List-length test modes for OP_CHECK_LIST_LEN.
const (
	listLenExact byte = 0
	listLenMin   byte = 1
)

func (c *Compiler) compileDestructuringVarDecl(node *ast.DestructuringVarDecl) error {
	if err := c.compileExpression(node.Value); err != nil {
		return err
	}
	if c.scopeDepth == 0 && c.funcType == TYPE_SCRIPT {
		if err := c.bindGlobalPattern(node.Token, node.Pattern); err != nil {
			return err
		}
	} else {
		if err := c.compilePatternBinding(node.Token, node.Pattern); err != nil {
			return err
		}
	}
	c.emitOp(node.Token, OP_NULL)
	return nil
}

// compilePatternBinding consumes the value on top of the stack, binding
// pattern names as new locals in the current scope. Bindings are
// irrefutable: out-of-range list elements and missing table fields bind
// Null.
func (c *Compiler) compilePatternBinding(tok token.Token, pat ast.Pattern) error {
	switch p := pat.(type) {
	case *ast.IdentPattern:
		return c.addLocal(tok, p.Name)

	case *ast.WildcardPattern:
		c.emitOp(tok, OP_POP)
		return nil

	case *ast.LiteralPattern:
		c.emitOp(tok, OP_POP)
		return nil

	case *ast.ListPattern:
		if err := c.addLocal(tok, destructureLocal); err != nil {
			return err
		}
		slot := c.locals[len(c.locals)-1].Slot
		for i, elem := range p.Elements {
			c.emitOpU16(tok, OP_GET_LOCAL, slot)
			c.emitConstant(tok, NumberVal(float64(i)))
			c.emitOp(tok, OP_GET_INDEX)
			if err := c.compilePatternBinding(tok, elem); err != nil {
				return err
			}
		}
		if p.HasRest {
			c.emitOpU16(tok, OP_GET_LOCAL, slot)
			c.emitOpU16(tok, OP_SLICE_LIST, len(p.Elements))
			if err := c.addLocal(tok, p.Rest); err != nil {
				return err
			}
		}
		return nil

	case *ast.TablePattern:
		if err := c.addLocal(tok, destructureLocal); err != nil {
			return err
		}
		slot := c.locals[len(c.locals)-1].Slot
		for _, field := range p.Fields {
			c.emitOpU16(tok, OP_GET_LOCAL, slot)
			c.emitOpU16(tok, OP_GET_PROP, c.nameConstant(field.Key))
			if err := c.addLocal(tok, field.Binding); err != nil {
				return err
			}
		}
		return nil

	default:
		return c.errorf(tok, ErrUnsupported, "cannot compile pattern %T", pat)
	}
}

// bindGlobalPattern is the top-level counterpart of
// compilePatternBinding: it defines globals instead of locals, working
// off stack copies of the subject so no slot is allocated.
func (c *Compiler) bindGlobalPattern(tok token.Token, pat ast.Pattern) error {
	switch p := pat.(type) {
	case *ast.IdentPattern:
		c.emitOpU16(tok, OP_DEFINE_GLOBAL, c.nameConstant(p.Name))
		return nil

	case *ast.WildcardPattern, *ast.LiteralPattern:
		c.emitOp(tok, OP_POP)
		return nil

	case *ast.ListPattern:
		for i, elem := range p.Elements {
			c.emitOp(tok, OP_DUP)
			c.emitConstant(tok, NumberVal(float64(i)))
			c.emitOp(tok, OP_GET_INDEX)
			if err := c.bindGlobalPattern(tok, elem); err != nil {
				return err
			}
		}
		if p.HasRest {
			c.emitOp(tok, OP_DUP)
			c.emitOpU16(tok, OP_SLICE_LIST, len(p.Elements))
			c.emitOpU16(tok, OP_DEFINE_GLOBAL, c.nameConstant(p.Rest))
		}
		c.emitOp(tok, OP_POP)
		return nil

	case *ast.TablePattern:
		for _, field := range p.Fields {
			c.emitOp(tok, OP_DUP)
			c.emitOpU16(tok, OP_GET_PROP, c.nameConstant(field.Key))
			c.emitOpU16(tok, OP_DEFINE_GLOBAL, c.nameConstant(field.Binding))
		}
		c.emitOp(tok, OP_POP)
		return nil

	default:
		return c.errorf(tok, ErrUnsupported, "cannot compile pattern %T", pat)
	}
}

// compileMatch lowers a match to a chain of arm tests against a hidden
// subject local. Each arm carries its own end-jump patch list entry; a
// fallen-through chain raises a non-exhaustive match fault. The match's
// value is the taken arm's block value.
func (c *Compiler) compileMatch(tok token.Token, subject ast.Expression, arms []ast.MatchArm) error {
	c.beginScope()

	if err := c.compileExpression(subject); err != nil {
		return err
	}
	if err := c.addLocal(tok, matchSubjectLocal); err != nil {
		return err
	}
	subjSlot := c.locals[len(c.locals)-1].Slot

	var endJumps []int
	for _, arm := range arms {
		c.emitOpU16(tok, OP_GET_LOCAL, subjSlot)
		if err := c.compilePatternTest(tok, arm.Pattern); err != nil {
			return err
		}
		nextArm := c.emitJump(tok, OP_JUMP_IF_FALSE)
		baseDepth := c.stackDepth

		c.beginScope()
		c.emitOpU16(tok, OP_GET_LOCAL, subjSlot)
		if err := c.compilePatternBinding(tok, arm.Pattern); err != nil {
			return err
		}
		c.predeclareFunctionLocals(arm.Block)
		if err := c.compileStatementsLeaveLast(arm.Block, tok); err != nil {
			return err
		}
		c.endScopePreserve(tok)

		endJumps = append(endJumps, c.emitJump(tok, OP_JUMP))
		if err := c.patchJump(tok, nextArm); err != nil {
			return err
		}
		c.stackDepth = baseDepth
	}

	c.emitOp(tok, OP_MATCH_FAIL)
	// Arms jump past the fault with their value on the stack.
	c.stackDepth++

	for _, j := range endJumps {
		if err := c.patchJump(tok, j); err != nil {
			return err
		}
	}
	c.endScopePreserve(tok)
	return nil
}

// compilePatternTest consumes the value on top of the stack and leaves
// a boolean saying whether the pattern matches it. Tests use the
// non-faulting CHECK opcodes so a mismatched shape or type moves on to
// the next arm instead of raising a fault.
func (c *Compiler) compilePatternTest(tok token.Token, pat ast.Pattern) error {
	switch p := pat.(type) {
	case *ast.IdentPattern, *ast.WildcardPattern:
		c.emitOp(tok, OP_POP)
		c.emitOp(tok, OP_TRUE)
		return nil

	case *ast.LiteralPattern:
		if err := c.compileExpression(p.Value); err != nil {
			return err
		}
		c.emitOp(tok, OP_CHECK_EQ)
		return nil

	case *ast.ListPattern:
		var failJumps []int

		c.emitOp(tok, OP_DUP)
		c.emitOp(tok, OP_CHECK_LIST_LEN)
		if p.HasRest {
			c.emitByte(tok, listLenMin)
		} else {
			c.emitByte(tok, listLenExact)
		}
		c.emitU16(tok, len(p.Elements))
		failJumps = append(failJumps, c.emitJump(tok, OP_JUMP_IF_FALSE))

		for i, elem := range p.Elements {
			if isTrivialPattern(elem) {
				continue
			}
			c.emitOp(tok, OP_DUP)
			c.emitConstant(tok, NumberVal(float64(i)))
			c.emitOp(tok, OP_GET_INDEX)
			if err := c.compilePatternTest(tok, elem); err != nil {
				return err
			}
			failJumps = append(failJumps, c.emitJump(tok, OP_JUMP_IF_FALSE))
		}

		return c.finishShapeTest(tok, failJumps)

	case *ast.TablePattern:
		var failJumps []int
		for _, field := range p.Fields {
			c.emitOp(tok, OP_DUP)
			c.emitOpU16(tok, OP_CHECK_FIELD, c.nameConstant(field.Key))
			failJumps = append(failJumps, c.emitJump(tok, OP_JUMP_IF_FALSE))
		}
		return c.finishShapeTest(tok, failJumps)

	default:
		return c.errorf(tok, ErrUnsupported, "cannot compile pattern %T", pat)
	}
}

// finishShapeTest caps a fail-fast test chain: the fall-through path
// replaces the subject copy with true, fail jumps land on the path that
// replaces it with false.
func (c *Compiler) finishShapeTest(tok token.Token, failJumps []int) error {
	c.emitOp(tok, OP_POP)
	c.emitOp(tok, OP_TRUE)
	end := c.emitJump(tok, OP_JUMP)

	for _, j := range failJumps {
		if err := c.patchJump(tok, j); err != nil {
			return err
		}
	}
	c.emitOp(tok, OP_POP)
	c.emitOp(tok, OP_FALSE)

	return c.patchJump(tok, end)
}

// isTrivialPattern reports whether a pattern matches any value, making
// its element test redundant.
func isTrivialPattern(pat ast.Pattern) bool {
	switch pat.(type) {
	case *ast.IdentPattern, *ast.WildcardPattern:
		return true
	}
	return false
}
