package vm

import (
	"github.com/luma-lang/luma/internal/ast"
)

// compileCallExpression lowers a call. When the callee is a plain
// identifier bound to a known function literal, named arguments are
// reordered into parameter order and missing parameters are filled from
// their declared defaults, all at the call site. Calls through member
// access, indexing, or computed values take positional arguments only.
func (c *Compiler) compileCallExpression(node *ast.CallExpression) error {
	var sig *signature
	if ident, ok := node.Callee.(*ast.Identifier); ok {
		if s, found := c.resolveSignature(ident.Value); found {
			sig = s
		}
	}

	// Positional arguments must all come before named ones, and no
	// parameter may be supplied twice.
	sawNamed := false
	named := make(map[string]bool)
	for _, arg := range node.Arguments {
		if arg.Name == "" {
			if sawNamed {
				return c.errorf(arg.Token, ErrNamedArgOrder,
					"positional argument after named argument")
			}
			continue
		}
		sawNamed = true
		if named[arg.Name] {
			return c.errorf(arg.Token, ErrDuplicateNamed,
				"duplicate argument %q", arg.Name)
		}
		named[arg.Name] = true
	}

	if sig == nil {
		if sawNamed {
			return c.errorf(node.Token, ErrUnsupported,
				"named arguments require calling a function by name")
		}
		if err := c.compileExpression(node.Callee); err != nil {
			return err
		}
		for _, arg := range node.Arguments {
			if err := c.compileExpression(arg.Value); err != nil {
				return err
			}
		}
		c.emitOpU16(node.Token, OP_CALL, len(node.Arguments))
		return nil
	}

	final, err := c.bindArguments(node, sig)
	if err != nil {
		return err
	}

	if err := c.compileExpression(node.Callee); err != nil {
		return err
	}
	for _, expr := range final {
		if err := c.compileExpression(expr); err != nil {
			return err
		}
	}
	c.emitOpU16(node.Token, OP_CALL, len(final))
	return nil
}

// bindArguments maps a call's arguments onto the callee's parameter
// list: positionals in order, named by parameter name, defaults for the
// rest. The result is one expression per parameter, in parameter order.
func (c *Compiler) bindArguments(node *ast.CallExpression, sig *signature) ([]ast.Expression, error) {
	params := sig.params
	final := make([]ast.Expression, len(params))

	pos := 0
	for _, arg := range node.Arguments {
		if arg.Name != "" {
			continue
		}
		if pos >= len(params) {
			return nil, c.errorf(node.Token, ErrArity,
				"too many arguments: expected %d, got %d", len(params), len(node.Arguments))
		}
		final[pos] = arg.Value
		pos++
	}

	paramIndex := func(name string) int {
		for i, p := range params {
			if p.Name == name {
				return i
			}
		}
		return -1
	}

	for _, arg := range node.Arguments {
		if arg.Name == "" {
			continue
		}
		i := paramIndex(arg.Name)
		if i < 0 {
			return nil, c.errorf(arg.Token, ErrUnknownNamed,
				"unknown argument %q", arg.Name)
		}
		if final[i] != nil {
			return nil, c.errorf(arg.Token, ErrDuplicateNamed,
				"argument %q already supplied positionally", arg.Name)
		}
		final[i] = arg.Value
	}

	for i, p := range params {
		if final[i] != nil {
			continue
		}
		if p.Default == nil {
			return nil, c.errorf(node.Token, ErrMissingArgument,
				"missing argument %q", p.Name)
		}
		final[i] = p.Default
	}

	return final, nil
}
