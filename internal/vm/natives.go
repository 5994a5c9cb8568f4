package vm

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode/utf8"
)

// defineNatives installs the built-in functions as globals on a fresh
// machine.
func (vm *VM) defineNatives() {
	natives := []*NativeFunction{
		{Name: "print", Variadic: true, Fn: nativePrint},
		{Name: "write", Variadic: true, Fn: nativeWrite},
		{Name: "typeof", Arity: 1, Fn: nativeTypeof},
		{Name: "len", Arity: 1, Fn: nativeLen},
		{Name: "cast", Arity: 2, Fn: nativeCast},
		{Name: "isInstanceOf", Arity: 2, Fn: nativeIsInstanceOf},
		{Name: "iter", Arity: 1, Fn: nativeIter},
		{Name: "readFile", Arity: 1, Fn: nativeReadFile},
		{Name: "writeFile", Arity: 2, Fn: nativeWriteFile},
		{Name: "fileExists", Arity: 1, Fn: nativeFileExists},
		{Name: "panic", Arity: 1, Fn: nativePanic},
	}
	for _, n := range natives {
		vm.globals[n.Name] = NativeVal(n)
	}
}

func nativePrint(vm *VM, args []Value) (Value, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.Inspect()
	}
	fmt.Fprintln(vm.out, strings.Join(parts, " "))
	return NullVal(), nil
}

func nativeWrite(vm *VM, args []Value) (Value, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.Inspect()
	}
	fmt.Fprint(vm.out, strings.Join(parts, " "))
	return NullVal(), nil
}

func nativeTypeof(vm *VM, args []Value) (Value, error) {
	return StringVal(args[0].TypeName()), nil
}

func nativeLen(vm *VM, args []Value) (Value, error) {
	switch v := args[0]; v.Type {
	case ValueList:
		return NumberVal(float64(len(v.AsList().Elements))), nil
	case ValueString:
		return NumberVal(float64(utf8.RuneCountInString(v.AsString()))), nil
	case ValueTable:
		return NumberVal(float64(len(v.AsTable().Fields))), nil
	default:
		return NullVal(), vm.runtimeError(FaultType,
			"cannot get length of a %s value", v.TypeName())
	}
}

// nativeCast builds a new instance of a type table from a value: the
// value's own fields, plus the type's plain data fields it does not
// override, plus a type link back to the type table. Methods and
// metadata fields of the type stay on the type and are reached through
// the link.
func nativeCast(vm *VM, args []Value) (Value, error) {
	typeVal, val := args[0], args[1]
	if typeVal.Type != ValueTable {
		return NullVal(), vm.runtimeError(FaultType,
			"cast expects a type table, got %s", typeVal.TypeName())
	}
	if val.Type != ValueTable {
		return NullVal(), vm.runtimeError(FaultType,
			"cast expects a table value, got %s", val.TypeName())
	}

	typeTable := typeVal.AsTable()
	instance := NewTable()
	for k, v := range typeTable.Fields {
		if strings.HasPrefix(k, "__") || v.IsCallable() {
			continue
		}
		instance.Fields[k] = v
	}
	for k, v := range val.AsTable().Fields {
		instance.Fields[k] = v
	}
	instance.Fields[TypeMetaKey] = typeVal
	return TableVal(instance), nil
}

// nativeIsInstanceOf tests whether a value was cast to exactly the
// given type table. The comparison is by table identity, not shape.
func nativeIsInstanceOf(vm *VM, args []Value) (Value, error) {
	val, typeVal := args[0], args[1]
	if val.Type != ValueTable || typeVal.Type != ValueTable {
		return BoolVal(false), nil
	}
	meta := val.AsTable().TypeMeta()
	return BoolVal(meta != nil && meta == typeVal.AsTable()), nil
}

// nativeIter turns a table into a list of [key, value] pairs, sorted by
// key so iteration order is stable.
func nativeIter(vm *VM, args []Value) (Value, error) {
	v := args[0]
	switch v.Type {
	case ValueTable:
		fields := v.AsTable().Fields
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]Value, len(keys))
		for i, k := range keys {
			pairs[i] = ListVal(NewList([]Value{StringVal(k), fields[k]}))
		}
		return ListVal(NewList(pairs)), nil
	case ValueList:
		return v, nil
	default:
		return NullVal(), vm.runtimeError(FaultType,
			"cannot iterate a %s value", v.TypeName())
	}
}

func nativeReadFile(vm *VM, args []Value) (Value, error) {
	if args[0].Type != ValueString {
		return NullVal(), vm.runtimeError(FaultType,
			"readFile expects a string path, got %s", args[0].TypeName())
	}
	data, err := os.ReadFile(args[0].AsString())
	if err != nil {
		return NullVal(), vm.runtimeError(FaultIO, "readFile: %v", err)
	}
	return StringVal(string(data)), nil
}

func nativeWriteFile(vm *VM, args []Value) (Value, error) {
	if args[0].Type != ValueString || args[1].Type != ValueString {
		return NullVal(), vm.runtimeError(FaultType,
			"writeFile expects a string path and string content")
	}
	if err := os.WriteFile(args[0].AsString(), []byte(args[1].AsString()), 0o644); err != nil {
		return NullVal(), vm.runtimeError(FaultIO, "writeFile: %v", err)
	}
	return NullVal(), nil
}

func nativeFileExists(vm *VM, args []Value) (Value, error) {
	if args[0].Type != ValueString {
		return BoolVal(false), nil
	}
	_, err := os.Stat(args[0].AsString())
	return BoolVal(err == nil), nil
}

func nativePanic(vm *VM, args []Value) (Value, error) {
	return NullVal(), vm.runtimeError(FaultPanic, "%s", args[0].Inspect())
}
