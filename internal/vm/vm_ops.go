package vm

import (
	"math"
	"unicode/utf8"
)

// binaryArith handles + - * / %. Numbers use IEEE semantics, so
// division by zero yields an infinity rather than a fault. + also
// concatenates strings. Tables defer to their operator methods.
func (vm *VM) binaryArith(op Opcode) error {
	b := vm.pop()
	a := vm.pop()

	if a.Type == ValueNumber && b.Type == ValueNumber {
		x, y := a.AsNumber(), b.AsNumber()
		var r float64
		switch op {
		case OP_ADD:
			r = x + y
		case OP_SUB:
			r = x - y
		case OP_MUL:
			r = x * y
		case OP_DIV:
			r = x / y
		case OP_MOD:
			r = math.Mod(x, y)
		}
		vm.push(NumberVal(r))
		return nil
	}

	if op == OP_ADD && a.Type == ValueString && b.Type == ValueString {
		vm.push(StringVal(a.AsString() + b.AsString()))
		return nil
	}

	if result, ok, err := vm.dispatchOperator(op, a, b); ok {
		if err != nil {
			return err
		}
		vm.push(result)
		return nil
	}

	return vm.runtimeError(FaultType,
		"unsupported operand types for %s: %s and %s",
		opSymbols[op], a.TypeName(), b.TypeName())
}

// equalityOp handles == and !=. != is always the negation of ==, so a
// table's eq method backs both. Null compares equal only to null;
// otherwise values of different types with no eq method are a type
// fault, never a silent false.
func (vm *VM) equalityOp(op Opcode) error {
	b := vm.pop()
	a := vm.pop()

	eq, err := vm.valuesEqual(a, b)
	if err != nil {
		return err
	}
	if op == OP_NE {
		eq = !eq
	}
	vm.push(BoolVal(eq))
	return nil
}

func (vm *VM) valuesEqual(a, b Value) (bool, error) {
	if a.Type == ValueNull || b.Type == ValueNull {
		return a.Type == ValueNull && b.Type == ValueNull, nil
	}

	if result, ok, err := vm.dispatchOperator(OP_EQ, a, b); ok {
		if err != nil {
			return false, err
		}
		return result.Truthy(), nil
	}

	if a.Type == b.Type {
		return a.Equals(b), nil
	}
	return false, vm.runtimeError(FaultType,
		"cannot compare %s with %s", a.TypeName(), b.TypeName())
}

// comparisonOp handles < <= > >= for numbers and tables with ordering
// methods. Everything else, strings included, is a type error.
func (vm *VM) comparisonOp(op Opcode) error {
	b := vm.pop()
	a := vm.pop()

	if a.Type == ValueNumber && b.Type == ValueNumber {
		x, y := a.AsNumber(), b.AsNumber()
		vm.push(BoolVal(compareOrdered(op, x < y, x <= y, x > y, x >= y)))
		return nil
	}

	if result, ok, err := vm.dispatchOperator(op, a, b); ok {
		if err != nil {
			return err
		}
		vm.push(result)
		return nil
	}

	return vm.runtimeError(FaultType,
		"unsupported operand types for %s: %s and %s",
		opSymbols[op], a.TypeName(), b.TypeName())
}

func compareOrdered(op Opcode, lt, le, gt, ge bool) bool {
	switch op {
	case OP_LT:
		return lt
	case OP_LE:
		return le
	case OP_GT:
		return gt
	default:
		return ge
	}
}

func (vm *VM) negateOp() error {
	a := vm.pop()
	if a.Type == ValueNumber {
		vm.push(NumberVal(-a.AsNumber()))
		return nil
	}
	if m, ok := operatorMethod(a, "neg"); ok {
		result, err := vm.callAndRun(m, []Value{a})
		if err != nil {
			return err
		}
		vm.push(result)
		return nil
	}
	return vm.runtimeError(FaultType, "cannot negate a %s value", a.TypeName())
}

// getIndexOp reads list[i] or table[key]. A list index out of range
// reads as Null; a missing table key reads as Null.
func (vm *VM) getIndexOp() error {
	idx := vm.pop()
	obj := vm.pop()

	switch obj.Type {
	case ValueList:
		if idx.Type != ValueNumber {
			return vm.runtimeError(FaultType,
				"list index must be a number, got %s", idx.TypeName())
		}
		elements := obj.AsList().Elements
		i, exact := intIndex(idx.AsNumber())
		if !exact || i < 0 || i >= len(elements) {
			vm.push(NullVal())
			return nil
		}
		vm.push(elements[i])
		return nil

	case ValueTable:
		if idx.Type != ValueString {
			return vm.runtimeError(FaultType,
				"table key must be a string, got %s", idx.TypeName())
		}
		vm.push(obj.AsTable().Get(idx.AsString()))
		return nil

	default:
		return vm.runtimeError(FaultType, "cannot index a %s value", obj.TypeName())
	}
}

// setIndexOp writes list[i] = v or table[key] = v. Writing exactly one
// past the end of a list appends; any index beyond that is a fault.
func (vm *VM) setIndexOp() error {
	val := vm.pop()
	idx := vm.pop()
	obj := vm.pop()

	switch obj.Type {
	case ValueList:
		if idx.Type != ValueNumber {
			return vm.runtimeError(FaultType,
				"list index must be a number, got %s", idx.TypeName())
		}
		list := obj.AsList()
		i, exact := intIndex(idx.AsNumber())
		if !exact || i < 0 || i > len(list.Elements) {
			return vm.runtimeError(FaultIndex,
				"list index %s out of range for length %d", idx.Inspect(), len(list.Elements))
		}
		if i == len(list.Elements) {
			list.Elements = append(list.Elements, val)
		} else {
			list.Elements[i] = val
		}
		return nil

	case ValueTable:
		if idx.Type != ValueString {
			return vm.runtimeError(FaultType,
				"table key must be a string, got %s", idx.TypeName())
		}
		obj.AsTable().Fields[idx.AsString()] = val
		return nil

	default:
		return vm.runtimeError(FaultType, "cannot index a %s value", obj.TypeName())
	}
}

func (vm *VM) getPropOp(name string) error {
	obj := vm.pop()
	if obj.Type != ValueTable {
		return vm.runtimeError(FaultType,
			"cannot read property %q of a %s value", name, obj.TypeName())
	}
	vm.push(obj.AsTable().Get(name))
	return nil
}

func (vm *VM) setPropOp(name string) error {
	val := vm.pop()
	obj := vm.pop()
	if obj.Type != ValueTable {
		return vm.runtimeError(FaultType,
			"cannot set property %q of a %s value", name, obj.TypeName())
	}
	obj.AsTable().Fields[name] = val
	return nil
}

func (vm *VM) getLenOp() error {
	v := vm.pop()
	switch v.Type {
	case ValueList:
		vm.push(NumberVal(float64(len(v.AsList().Elements))))
	case ValueString:
		vm.push(NumberVal(float64(utf8.RuneCountInString(v.AsString()))))
	case ValueTable:
		vm.push(NumberVal(float64(len(v.AsTable().Fields))))
	default:
		return vm.runtimeError(FaultType, "cannot get length of a %s value", v.TypeName())
	}
	return nil
}

// sliceListOp pushes a fresh list holding the elements from start on,
// empty when start is past the end.
func (vm *VM) sliceListOp(start int) error {
	v := vm.pop()
	if v.Type != ValueList {
		return vm.runtimeError(FaultType, "cannot slice a %s value", v.TypeName())
	}
	elements := v.AsList().Elements
	if start > len(elements) {
		start = len(elements)
	}
	rest := make([]Value, len(elements)-start)
	copy(rest, elements[start:])
	vm.push(ListVal(NewList(rest)))
	return nil
}

// intIndex converts a float index to int, reporting whether it was an
// exact integer.
func intIndex(f float64) (int, bool) {
	i := int(f)
	return i, float64(i) == f
}
