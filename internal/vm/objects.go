package vm

// List is the backing store for a list value. Bindings share the same
// *List, so mutation through one binding is visible through all of them.
type List struct {
	Elements []Value
}

func NewList(elements []Value) *List {
	return &List{Elements: elements}
}

// Table is the backing store for a table value: an unordered string-keyed
// map. The metadata attached by cast() lives in the ordinary "__type"
// field, which is how the operator dispatcher and isInstanceOf find it.
type Table struct {
	Fields map[string]Value
}

func NewTable() *Table {
	return &Table{Fields: make(map[string]Value)}
}

// Get returns the field value, or Null for a missing key.
func (t *Table) Get(key string) Value {
	if v, ok := t.Fields[key]; ok {
		return v
	}
	return NullVal()
}

// TypeMeta returns the table attached by cast() as type metadata, or nil.
func (t *Table) TypeMeta() *Table {
	if meta, ok := t.Fields[TypeMetaKey]; ok && meta.Type == ValueTable {
		return meta.AsTable()
	}
	return nil
}

// TypeMetaKey is the reserved field holding a table's type metadata.
const TypeMetaKey = "__type"

// UpvalueDescriptor records how one captured variable of a function is
// resolved at closure-creation time: from the enclosing frame's local slot
// when IsLocal, otherwise from the enclosing closure's cell at Index.
type UpvalueDescriptor struct {
	Index   int
	IsLocal bool
}

// CompiledFunction represents a function compiled to bytecode
type CompiledFunction struct {
	Arity        int      // Number of declared parameters
	Params       []string // Parameter names, in declaration order
	Chunk        *Chunk   // Bytecode
	Name         string   // Function name (for diagnostics)
	LocalCount   int      // Number of local slots (including params)
	UpvalueCount int      // Number of captured variables
	Upvalues     []UpvalueDescriptor
}

// Cell is the shared, mutably-aliased storage backing one captured local.
// Every closure capturing the variable and the defining frame hold the
// same *Cell, so writes through any holder are visible to all of them,
// including after the defining frame has returned.
type Cell struct {
	V Value
}

// Closure wraps a CompiledFunction with its captured cells.
type Closure struct {
	Fn    *CompiledFunction
	Cells []*Cell
}

// NativeFunction is a host function invoked through the standard calling
// convention: arguments already evaluated and in order, one Value or an
// error out.
type NativeFunction struct {
	Name     string
	Arity    int
	Variadic bool // when set, Arity is a minimum
	Fn       func(vm *VM, args []Value) (Value, error)
}
