package vm

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/luma-lang/luma/internal/parser"
)

// Bundle is a compiled program together with every statically reachable
// module, ready to run without source files.
type Bundle struct {
	// ID uniquely identifies one build of a bundle.
	ID string

	// SourceFile is the entry script's path, kept for error messages.
	SourceFile string

	// Main is the entry script's bytecode.
	Main *Chunk

	// Modules maps canonical absolute paths to precompiled modules.
	Modules map[string]*Chunk
}

// Wire format: magic, then a format version byte, then the CBOR body.
var bundleMagic = [4]byte{'L', 'U', 'M', 'B'}

const bundleVersion byte = 0x01

// CBOR-friendly mirror types. Chunk constants hold interface values the
// codec cannot roundtrip, so functions and values get explicit tagged
// encodings.
type wireBundle struct {
	ID         string                `cbor:"1,keyasint"`
	SourceFile string                `cbor:"2,keyasint"`
	Main       *wireChunk            `cbor:"3,keyasint"`
	Modules    map[string]*wireChunk `cbor:"4,keyasint"`
}

type wireChunk struct {
	Code      []byte         `cbor:"1,keyasint"`
	Constants []wireConstant `cbor:"2,keyasint"`
	Lines     []int          `cbor:"3,keyasint"`
	Columns   []int          `cbor:"4,keyasint"`
	File      string         `cbor:"5,keyasint"`
}

type wireConstant struct {
	Kind     ValueType     `cbor:"1,keyasint"`
	Number   float64       `cbor:"2,keyasint,omitempty"`
	Bool     bool          `cbor:"3,keyasint,omitempty"`
	String   string        `cbor:"4,keyasint,omitempty"`
	Function *wireFunction `cbor:"5,keyasint,omitempty"`
}

type wireFunction struct {
	Arity    int                 `cbor:"1,keyasint"`
	Params   []string            `cbor:"2,keyasint"`
	Name     string              `cbor:"3,keyasint"`
	Locals   int                 `cbor:"4,keyasint"`
	Upvalues []UpvalueDescriptor `cbor:"5,keyasint"`
	Chunk    *wireChunk          `cbor:"6,keyasint"`
}

// CompileBundle compiles an entry script and every module reachable
// through static imports into a runnable bundle.
func CompileBundle(entryPath string, searchPaths []string) (*Bundle, error) {
	entry, err := filepath.Abs(entryPath)
	if err != nil {
		return nil, err
	}

	main, err := compileFile(entry)
	if err != nil {
		return nil, err
	}

	bundle := &Bundle{
		ID:         uuid.NewString(),
		SourceFile: entry,
		Main:       main,
		Modules:    make(map[string]*Chunk),
	}

	queue := resolveStaticImports(main, searchPaths)
	for len(queue) > 0 {
		canon := queue[0]
		queue = queue[1:]
		if _, done := bundle.Modules[canon]; done {
			continue
		}
		chunk, err := compileFile(canon)
		if err != nil {
			return nil, fmt.Errorf("bundling %s: %w", canon, err)
		}
		bundle.Modules[canon] = chunk
		queue = append(queue, resolveStaticImports(chunk, searchPaths)...)
	}
	return bundle, nil
}

func compileFile(path string) (*Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	program, diags := parser.Parse(string(data), path)
	if len(diags) > 0 {
		return nil, diags[0]
	}
	return Compile(program)
}

// resolveStaticImports finds imports whose path is a string constant
// loaded immediately before the import instruction, which is how every
// literal import compiles. Computed import paths cannot be bundled and
// resolve at run time instead.
func resolveStaticImports(chunk *Chunk, searchPaths []string) []string {
	var out []string
	for _, raw := range staticImportPaths(chunk) {
		if canon, ok := resolveImportPath(chunk.File, raw, searchPaths, nil); ok {
			out = append(out, canon)
		}
	}
	return out
}

func staticImportPaths(chunk *Chunk) []string {
	var paths []string

	prevOp := OP_HALT
	prevOperand := 0
	for offset := 0; offset < len(chunk.Code); {
		op := Opcode(chunk.Code[offset])
		if op == OP_IMPORT && prevOp == OP_CONST {
			if c := chunk.Constants[prevOperand]; c.Type == ValueString {
				paths = append(paths, c.AsString())
			}
		}
		prevOp = op
		if op == OP_CONST {
			prevOperand = chunk.ReadU16(offset + 1)
		}
		offset += instructionWidth(chunk, offset)
	}

	for _, c := range chunk.Constants {
		if c.Type == ValueFunction {
			paths = append(paths, staticImportPaths(c.AsFunction().Chunk)...)
		}
	}
	return paths
}

// instructionWidth returns the byte length of the instruction at
// offset, including operands.
func instructionWidth(chunk *Chunk, offset int) int {
	switch op := Opcode(chunk.Code[offset]); op {
	case OP_CONST, OP_GET_GLOBAL, OP_SET_GLOBAL, OP_DEFINE_GLOBAL,
		OP_GET_PROP, OP_SET_PROP, OP_CHECK_FIELD,
		OP_GET_LOCAL, OP_SET_LOCAL, OP_GET_UPVALUE, OP_SET_UPVALUE,
		OP_POP_N, OP_POP_N_PRESERVE, OP_BUILD_LIST, OP_BUILD_TABLE,
		OP_CALL, OP_SLICE_LIST, OP_JUMP, OP_JUMP_IF_FALSE, OP_LOOP:
		return 3
	case OP_CHECK_LIST_LEN:
		return 4
	case OP_CLOSURE:
		fn := chunk.Constants[chunk.ReadU16(offset+1)].AsFunction()
		return 3 + 3*len(fn.Upvalues)
	default:
		return 1
	}
}

// Serialize encodes the bundle for writing to disk.
func (b *Bundle) Serialize() ([]byte, error) {
	wire := &wireBundle{
		ID:         b.ID,
		SourceFile: b.SourceFile,
		Main:       chunkToWire(b.Main),
		Modules:    make(map[string]*wireChunk, len(b.Modules)),
	}
	for path, chunk := range b.Modules {
		wire.Modules[path] = chunkToWire(chunk)
	}

	body, err := cbor.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("encode bundle: %w", err)
	}

	var buf bytes.Buffer
	buf.Write(bundleMagic[:])
	buf.WriteByte(bundleVersion)
	buf.Write(body)
	return buf.Bytes(), nil
}

// IsBundle reports whether data starts with the bundle magic, so
// callers can tell compiled bundles from source files.
func IsBundle(data []byte) bool {
	return len(data) >= len(bundleMagic) && bytes.Equal(data[:len(bundleMagic)], bundleMagic[:])
}

// DeserializeBundle decodes a bundle written by Serialize.
func DeserializeBundle(data []byte) (*Bundle, error) {
	if len(data) < len(bundleMagic)+1 || !bytes.Equal(data[:len(bundleMagic)], bundleMagic[:]) {
		return nil, fmt.Errorf("not a bundle: bad magic")
	}
	if v := data[len(bundleMagic)]; v != bundleVersion {
		return nil, fmt.Errorf("unsupported bundle version %d", v)
	}

	var wire wireBundle
	if err := cbor.Unmarshal(data[len(bundleMagic)+1:], &wire); err != nil {
		return nil, fmt.Errorf("decode bundle: %w", err)
	}

	b := &Bundle{
		ID:         wire.ID,
		SourceFile: wire.SourceFile,
		Main:       chunkFromWire(wire.Main),
		Modules:    make(map[string]*Chunk, len(wire.Modules)),
	}
	for path, wc := range wire.Modules {
		b.Modules[path] = chunkFromWire(wc)
	}
	return b, nil
}

// RunBundle seeds the module cache with the bundle's precompiled
// modules and runs its entry chunk.
func (vm *VM) RunBundle(b *Bundle) (Value, error) {
	for path, chunk := range b.Modules {
		vm.modules.preloaded[path] = chunk
	}
	return vm.RunChunk(b.Main)
}

func chunkToWire(chunk *Chunk) *wireChunk {
	wc := &wireChunk{
		Code:    chunk.Code,
		Lines:   chunk.Lines,
		Columns: chunk.Columns,
		File:    chunk.File,
	}
	for _, c := range chunk.Constants {
		wc.Constants = append(wc.Constants, constantToWire(c))
	}
	return wc
}

func constantToWire(v Value) wireConstant {
	w := wireConstant{Kind: v.Type}
	switch v.Type {
	case ValueNumber:
		w.Number = v.AsNumber()
	case ValueBool:
		w.Bool = v.AsBool()
	case ValueString:
		w.String = v.AsString()
	case ValueFunction:
		fn := v.AsFunction()
		w.Function = &wireFunction{
			Arity:    fn.Arity,
			Params:   fn.Params,
			Name:     fn.Name,
			Locals:   fn.LocalCount,
			Upvalues: fn.Upvalues,
			Chunk:    chunkToWire(fn.Chunk),
		}
	}
	return w
}

func chunkFromWire(wc *wireChunk) *Chunk {
	chunk := &Chunk{
		Code:    wc.Code,
		Lines:   wc.Lines,
		Columns: wc.Columns,
		File:    wc.File,
	}
	for _, w := range wc.Constants {
		chunk.Constants = append(chunk.Constants, constantFromWire(w))
	}
	return chunk
}

func constantFromWire(w wireConstant) Value {
	switch w.Kind {
	case ValueNumber:
		return NumberVal(w.Number)
	case ValueBool:
		return BoolVal(w.Bool)
	case ValueString:
		return StringVal(w.String)
	case ValueFunction:
		return FunctionVal(&CompiledFunction{
			Arity:        w.Function.Arity,
			Params:       w.Function.Params,
			Name:         w.Function.Name,
			LocalCount:   w.Function.Locals,
			UpvalueCount: len(w.Function.Upvalues),
			Upvalues:     w.Function.Upvalues,
			Chunk:        chunkFromWire(w.Function.Chunk),
		})
	default:
		return NullVal()
	}
}
