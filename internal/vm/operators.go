package vm

// Operator methods a table (or its type table) can define to overload
// the corresponding operators. != has no method: it is always derived
// by negating eq.
var opMethodNames = map[Opcode]string{
	OP_ADD: "add",
	OP_SUB: "sub",
	OP_MUL: "mul",
	OP_DIV: "div",
	OP_MOD: "mod",
	OP_NEG: "neg",
	OP_EQ:  "eq",
	OP_LT:  "lt",
	OP_LE:  "le",
	OP_GT:  "gt",
	OP_GE:  "ge",
}

var opSymbols = map[Opcode]string{
	OP_ADD: "+",
	OP_SUB: "-",
	OP_MUL: "*",
	OP_DIV: "/",
	OP_MOD: "%",
	OP_NEG: "-",
	OP_EQ:  "==",
	OP_NE:  "!=",
	OP_LT:  "<",
	OP_LE:  "<=",
	OP_GT:  ">",
	OP_GE:  ">=",
}

// operatorMethod looks an operator method up on a table value: first on
// the instance itself, then on its type table. Non-callable fields do
// not count as methods.
func operatorMethod(v Value, name string) (Value, bool) {
	if v.Type != ValueTable {
		return NullVal(), false
	}
	t := v.AsTable()
	if m, ok := t.Fields[name]; ok && m.IsCallable() {
		return m, true
	}
	if meta := t.TypeMeta(); meta != nil {
		if m, ok := meta.Fields[name]; ok && m.IsCallable() {
			return m, true
		}
	}
	return NullVal(), false
}

// dispatchOperator tries an overloaded binary operator. Resolution is
// driven by the left operand only: its own method, then its type
// table's. The method always receives the operands in source order.
// The middle return reports whether a method was found at all.
func (vm *VM) dispatchOperator(op Opcode, a, b Value) (Value, bool, error) {
	name, ok := opMethodNames[op]
	if !ok {
		return NullVal(), false, nil
	}

	m, found := operatorMethod(a, name)
	if !found {
		return NullVal(), false, nil
	}

	result, err := vm.callAndRun(m, []Value{a, b})
	return result, true, err
}
