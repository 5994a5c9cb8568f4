package vm

import (
	"github.com/luma-lang/luma/internal/ast"
	"github.com/luma-lang/luma/internal/token"
)

const maxLocals = 65535

// stackEffects is the net operand-stack effect of each opcode whose
// effect does not depend on its operand. The compiler tracks the stack
// depth at every emission point so local slots always name the value's
// real runtime position, even under operand-position blocks.
var stackEffects = map[Opcode]int{
	OP_CONST: 1, OP_POP: -1, OP_DUP: 1,
	OP_ADD: -1, OP_SUB: -1, OP_MUL: -1, OP_DIV: -1, OP_MOD: -1, OP_NEG: 0,
	OP_EQ: -1, OP_NE: -1, OP_LT: -1, OP_LE: -1, OP_GT: -1, OP_GE: -1,
	OP_NOT: 0,
	OP_GET_LOCAL: 1, OP_SET_LOCAL: -1,
	OP_GET_GLOBAL: 1, OP_SET_GLOBAL: -1, OP_DEFINE_GLOBAL: -1,
	OP_JUMP: 0, OP_JUMP_IF_FALSE: -1, OP_LOOP: 0,
	OP_RETURN: -1, OP_CLOSURE: 1,
	OP_GET_UPVALUE: 1, OP_SET_UPVALUE: -1,
	OP_GET_INDEX: -1, OP_SET_INDEX: -3,
	OP_GET_PROP: 0, OP_SET_PROP: -2,
	OP_GET_LEN: 0, OP_SLICE_LIST: 0,
	OP_NULL: 1, OP_TRUE: 1, OP_FALSE: 1,
	OP_IMPORT: 0, OP_MATCH_FAIL: 0, OP_HALT: -1,
	OP_CHECK_EQ: -1, OP_CHECK_FIELD: 0, OP_CHECK_LIST_LEN: 0,
}

// --- Bytecode emission ---

func (c *Compiler) emitByte(tok token.Token, b byte) {
	c.function.Chunk.Write(b, tok.Line, tok.Column)
}

func (c *Compiler) emitOp(tok token.Token, op Opcode) {
	c.stackDepth += stackEffects[op]
	c.emitByte(tok, byte(op))
}

func (c *Compiler) emitU16(tok token.Token, v int) {
	c.emitByte(tok, byte((v>>8)&0xFF))
	c.emitByte(tok, byte(v&0xFF))
}

func (c *Compiler) emitOpU16(tok token.Token, op Opcode, operand int) {
	// Operand-dependent stack effects; the rest come from stackEffects.
	switch op {
	case OP_POP_N, OP_POP_N_PRESERVE, OP_CALL:
		c.stackDepth -= operand
	case OP_BUILD_LIST:
		c.stackDepth += 1 - operand
	case OP_BUILD_TABLE:
		c.stackDepth += 1 - 2*operand
	}
	c.emitOp(tok, op)
	c.emitU16(tok, operand)
}

func (c *Compiler) emitConstant(tok token.Token, v Value) {
	c.emitOpU16(tok, OP_CONST, c.function.Chunk.AddConstant(v))
}

// nameConstant interns an identifier in the constant pool and returns
// its index.
func (c *Compiler) nameConstant(name string) int {
	return c.function.Chunk.AddConstant(StringVal(name))
}

// --- Jumps ---

// emitJump writes a jump with a placeholder operand and returns the
// operand's offset for later patching.
func (c *Compiler) emitJump(tok token.Token, op Opcode) int {
	c.emitOp(tok, op)
	c.emitByte(tok, 0xFF)
	c.emitByte(tok, 0xFF)
	return c.function.Chunk.Len() - 2
}

// patchJump backfills a forward jump so it lands on the next
// instruction to be emitted.
func (c *Compiler) patchJump(tok token.Token, operand int) error {
	jump := c.function.Chunk.Len() - operand - 2
	if jump > 0xFFFF {
		return c.errorf(tok, ErrBadJump, "jump distance %d exceeds bytecode limit", jump)
	}
	c.function.Chunk.Code[operand] = byte((jump >> 8) & 0xFF)
	c.function.Chunk.Code[operand+1] = byte(jump & 0xFF)
	return nil
}

// emitLoop writes a backward jump to loopStart.
func (c *Compiler) emitLoop(tok token.Token, loopStart int) error {
	c.emitOp(tok, OP_LOOP)
	offset := c.function.Chunk.Len() - loopStart + 2
	if offset > 0xFFFF {
		return c.errorf(tok, ErrBadJump, "loop body of %d bytes exceeds bytecode limit", offset)
	}
	c.emitU16(tok, offset)
	return nil
}

// --- Scopes and locals ---

func (c *Compiler) beginScope() {
	c.scopeDepth++
	c.sigScopes = append(c.sigScopes, make(map[string]*signature))
}

// endScopePreserve closes the current scope, popping its locals while
// keeping the value on top of the stack as the scope's result.
func (c *Compiler) endScopePreserve(tok token.Token) {
	n := c.dropScopeLocals()
	if n > 0 {
		c.emitOpU16(tok, OP_POP_N_PRESERVE, n)
	}
}

// endScopeDiscard closes the current scope with no result value sitting
// above its locals.
func (c *Compiler) endScopeDiscard(tok token.Token) {
	n := c.dropScopeLocals()
	if n > 0 {
		c.emitOpU16(tok, OP_POP_N, n)
	}
}

func (c *Compiler) dropScopeLocals() int {
	n := 0
	for len(c.locals) > 0 && c.locals[len(c.locals)-1].Depth == c.scopeDepth {
		c.locals = c.locals[:len(c.locals)-1]
		n++
	}
	c.scopeDepth--
	c.sigScopes = c.sigScopes[:len(c.sigScopes)-1]
	return n
}

// addLocal registers the value currently on top of the stack as a named
// local in the current scope. Its slot is the value's actual stack
// position, which can sit above unnamed temporaries.
func (c *Compiler) addLocal(tok token.Token, name string) error {
	if len(c.locals) >= maxLocals {
		return c.errorf(tok, ErrTooManyLocals, "too many local variables in function")
	}
	c.locals = append(c.locals, Local{
		Name:  name,
		Depth: c.scopeDepth,
		Slot:  c.stackDepth - 1,
	})
	return nil
}

func (c *Compiler) resolveLocal(name string) (int, bool) {
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].Name == name {
			return c.locals[i].Slot, true
		}
	}
	return 0, false
}

// resolvePredeclared finds a slot reserved ahead of time in the current
// scope and consumes it, so a later redeclaration shadows normally.
func (c *Compiler) resolvePredeclared(name string) (int, bool) {
	for i := len(c.locals) - 1; i >= 0; i-- {
		l := &c.locals[i]
		if l.Depth < c.scopeDepth {
			break
		}
		if l.Predeclared && l.Name == name {
			l.Predeclared = false
			return l.Slot, true
		}
	}
	return 0, false
}

// predeclaredInScope reports whether name already has a reserved slot
// in the current scope, without consuming the reservation.
func (c *Compiler) predeclaredInScope(name string) bool {
	for i := len(c.locals) - 1; i >= 0; i-- {
		l := &c.locals[i]
		if l.Depth < c.scopeDepth {
			break
		}
		if l.Predeclared && l.Name == name {
			return true
		}
	}
	return false
}

// resolveUpvalue walks the enclosing compiler chain looking for name.
// A hit in the immediate enclosing function captures that local; a hit
// further out is threaded through as an upvalue-of-an-upvalue.
func (c *Compiler) resolveUpvalue(name string) (int, bool) {
	if c.enclosing == nil {
		return 0, false
	}
	if slot, ok := c.enclosing.resolveLocal(name); ok {
		c.enclosing.markCaptured(slot)
		return c.addUpvalue(slot, true), true
	}
	if idx, ok := c.enclosing.resolveUpvalue(name); ok {
		return c.addUpvalue(idx, false), true
	}
	return 0, false
}

func (c *Compiler) markCaptured(slot int) {
	for i := range c.locals {
		if c.locals[i].Slot == slot {
			c.locals[i].IsCaptured = true
			return
		}
	}
}

func (c *Compiler) addUpvalue(index int, isLocal bool) int {
	for i, uv := range c.upvalues {
		if uv.Index == index && uv.IsLocal == isLocal {
			return i
		}
	}
	c.upvalues = append(c.upvalues, Upvalue{Index: index, IsLocal: isLocal})
	return len(c.upvalues) - 1
}

// --- Function signatures ---

// declareSignature records a statically-known function binding so call
// sites can reorder named arguments and fill parameter defaults.
func (c *Compiler) declareSignature(name string, fn *ast.FunctionLiteral) {
	c.sigScopes[len(c.sigScopes)-1][name] = &signature{params: fn.Params}
}

// resolveSignature walks scope chains innermost-out, crossing function
// boundaries, for a signature bound to name. Only direct identifier
// callees resolve; anything reached through a member, index, or call
// result is unknown at compile time.
func (c *Compiler) resolveSignature(name string) (*signature, bool) {
	for cc := c; cc != nil; cc = cc.enclosing {
		for i := len(cc.sigScopes) - 1; i >= 0; i-- {
			if sig, ok := cc.sigScopes[i][name]; ok {
				return sig, true
			}
		}
	}
	return nil, false
}
