package vm

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// ValueType identifies the type of value stored in the Value struct
type ValueType uint8

const (
	ValueNull ValueType = iota
	ValueNumber
	ValueBool
	ValueString
	ValueList
	ValueTable
	ValueFunction
	ValueClosure
	ValueNative
)

// Value is a stack-allocated tagged union.
// Numbers, booleans, and null live entirely in Data; strings and reference
// values (lists, tables, functions, closures) are carried in Obj. Assigning
// a Value copies the struct, so reference types alias their backing object
// while primitives copy by value.
type Value struct {
	Type ValueType
	Data uint64      // float64 bits or bool (0/1)
	Obj  interface{} // string, *List, *Table, *CompiledFunction, *Closure, *NativeFunction
}

// Constructors

func NullVal() Value {
	return Value{Type: ValueNull}
}

func NumberVal(v float64) Value {
	return Value{Type: ValueNumber, Data: math.Float64bits(v)}
}

func BoolVal(v bool) Value {
	var data uint64
	if v {
		data = 1
	}
	return Value{Type: ValueBool, Data: data}
}

func StringVal(s string) Value {
	return Value{Type: ValueString, Obj: s}
}

func ListVal(l *List) Value {
	return Value{Type: ValueList, Obj: l}
}

func TableVal(t *Table) Value {
	return Value{Type: ValueTable, Obj: t}
}

func FunctionVal(fn *CompiledFunction) Value {
	return Value{Type: ValueFunction, Obj: fn}
}

func ClosureVal(cl *Closure) Value {
	return Value{Type: ValueClosure, Obj: cl}
}

func NativeVal(nf *NativeFunction) Value {
	return Value{Type: ValueNative, Obj: nf}
}

// Accessors

func (v Value) AsNumber() float64 {
	return math.Float64frombits(v.Data)
}

func (v Value) AsBool() bool {
	return v.Data != 0
}

func (v Value) AsString() string {
	return v.Obj.(string)
}

func (v Value) AsList() *List {
	return v.Obj.(*List)
}

func (v Value) AsTable() *Table {
	return v.Obj.(*Table)
}

func (v Value) AsFunction() *CompiledFunction {
	return v.Obj.(*CompiledFunction)
}

func (v Value) AsClosure() *Closure {
	return v.Obj.(*Closure)
}

func (v Value) AsNative() *NativeFunction {
	return v.Obj.(*NativeFunction)
}

func (v Value) IsNull() bool   { return v.Type == ValueNull }
func (v Value) IsNumber() bool { return v.Type == ValueNumber }
func (v Value) IsString() bool { return v.Type == ValueString }

// IsCallable reports whether OP_CALL can invoke the value.
func (v Value) IsCallable() bool {
	switch v.Type {
	case ValueFunction, ValueClosure, ValueNative:
		return true
	}
	return false
}

// Truthy is the condition test: everything except false and null is truthy.
func (v Value) Truthy() bool {
	switch v.Type {
	case ValueNull:
		return false
	case ValueBool:
		return v.AsBool()
	}
	return true
}

// TypeName returns the language-level type name.
func (v Value) TypeName() string {
	switch v.Type {
	case ValueNull:
		return "Null"
	case ValueNumber:
		return "Number"
	case ValueBool:
		return "Boolean"
	case ValueString:
		return "String"
	case ValueList:
		return "List"
	case ValueTable:
		return "Table"
	case ValueFunction, ValueClosure, ValueNative:
		return "Function"
	}
	return "Unknown"
}

// Equals implements language equality: primitives by value, lists and
// tables by identity first and element-wise comparison second, functions
// by identity.
func (v Value) Equals(other Value) bool {
	if v.Type != other.Type {
		return false
	}
	switch v.Type {
	case ValueNull:
		return true
	case ValueNumber:
		return v.AsNumber() == other.AsNumber()
	case ValueBool:
		return v.AsBool() == other.AsBool()
	case ValueString:
		return v.AsString() == other.AsString()
	case ValueList:
		a, b := v.AsList(), other.AsList()
		if a == b {
			return true
		}
		if len(a.Elements) != len(b.Elements) {
			return false
		}
		for i := range a.Elements {
			if !a.Elements[i].Equals(b.Elements[i]) {
				return false
			}
		}
		return true
	case ValueTable:
		a, b := v.AsTable(), other.AsTable()
		if a == b {
			return true
		}
		if len(a.Fields) != len(b.Fields) {
			return false
		}
		for k, av := range a.Fields {
			bv, ok := b.Fields[k]
			if !ok || !av.Equals(bv) {
				return false
			}
		}
		return true
	default:
		return v.Obj == other.Obj
	}
}

// StrictEquals compares primitives by value and everything else by
// identity. Used for constant-pool deduplication.
func (v Value) StrictEquals(other Value) bool {
	if v.Type != other.Type {
		return false
	}
	switch v.Type {
	case ValueNull:
		return true
	case ValueNumber:
		return v.Data == other.Data
	case ValueBool:
		return v.AsBool() == other.AsBool()
	case ValueString:
		return v.AsString() == other.AsString()
	default:
		return v.Obj == other.Obj
	}
}

// Inspect renders a value the way the language prints it: whole numbers
// without a decimal point, lists as [a, b], tables as {k: v}.
func (v Value) Inspect() string {
	switch v.Type {
	case ValueNull:
		return "null"
	case ValueNumber:
		return formatNumber(v.AsNumber())
	case ValueBool:
		if v.AsBool() {
			return "true"
		}
		return "false"
	case ValueString:
		return v.AsString()
	case ValueList:
		var sb strings.Builder
		sb.WriteByte('[')
		for i, elem := range v.AsList().Elements {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(elem.Inspect())
		}
		sb.WriteByte(']')
		return sb.String()
	case ValueTable:
		t := v.AsTable()
		keys := make([]string, 0, len(t.Fields))
		for k := range t.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var sb strings.Builder
		sb.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(k)
			sb.WriteString(": ")
			sb.WriteString(t.Fields[k].Inspect())
		}
		sb.WriteByte('}')
		return sb.String()
	case ValueFunction:
		return "<fn " + v.AsFunction().Name + ">"
	case ValueClosure:
		return "<fn " + v.AsClosure().Fn.Name + ">"
	case ValueNative:
		return "<native fn " + v.AsNative().Name + ">"
	}
	return "<unknown>"
}

func formatNumber(f float64) string {
	if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
