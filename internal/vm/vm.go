package vm

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/luma-lang/luma/internal/ast"
	"github.com/luma-lang/luma/internal/parser"
)

// Initial operand stack capacity; the stack grows on demand.
const initialStackSize = 2048

// Maximum call depth before a stack overflow fault.
const maxFrameCount = 4096

// CallFrame represents a single ongoing function call.
type CallFrame struct {
	closure *Closure
	chunk   *Chunk // Shortcut to closure.Fn.Chunk
	ip      int    // Instruction pointer within this frame's chunk
	base    int    // Where this frame's locals start in the stack

	// cells holds the shared cells lazily created when this frame's
	// locals are captured by nested closures, keyed by local slot.
	// All access to a captured slot goes through its cell.
	cells map[int]*Cell
}

// Options configures a VM.
type Options struct {
	// Out receives everything the program prints. Defaults to os.Stdout.
	Out io.Writer

	// SearchPaths are extra directories consulted when resolving
	// imports, after the importing file's own directory.
	SearchPaths []string

	// Logger receives VM diagnostics. Defaults to a discard logger.
	Logger *log.Logger

	// Trace, when non-nil, receives a per-instruction execution trace.
	Trace io.Writer
}

// VM executes Luma bytecode. It is single-threaded: one VM runs one
// program at a time, and imported modules run to completion on child
// machines before the importer resumes.
type VM struct {
	stack []Value
	sp    int // Next free stack slot

	frames     []CallFrame
	frameCount int
	frame      *CallFrame

	// opOffset is the chunk offset of the instruction being executed,
	// kept for fault positions.
	opOffset int

	globals map[string]Value

	out         io.Writer
	logger      *log.Logger
	searchPaths []string
	tracer      *Tracer

	modules *moduleCache
}

// New creates a VM with the native functions installed as globals.
func New(opts Options) *VM {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	vm := &VM{
		stack:       make([]Value, initialStackSize),
		frames:      make([]CallFrame, 64),
		globals:     make(map[string]Value),
		out:         opts.Out,
		logger:      opts.Logger,
		searchPaths: opts.SearchPaths,
		modules:     newModuleCache(),
	}
	if opts.Trace != nil {
		vm.tracer = NewTracer(opts.Trace)
	}
	vm.defineNatives()
	return vm
}

// Interpret lexes, compiles, and runs source. Compile-time problems
// come back as *parser.Diagnostic or *CompileError; runtime faults as
// *RuntimeError.
func (vm *VM) Interpret(source, file string) (Value, error) {
	program, diags := parser.Parse(source, file)
	if len(diags) > 0 {
		return NullVal(), diags[0]
	}
	return vm.RunProgram(program)
}

// RunProgram compiles a parsed program and runs it, returning the
// program's final value.
func (vm *VM) RunProgram(program *ast.Program) (Value, error) {
	chunk, err := Compile(program)
	if err != nil {
		return NullVal(), err
	}
	return vm.RunChunk(chunk)
}

// RunChunk executes a compiled chunk from the top.
func (vm *VM) RunChunk(chunk *Chunk) (Value, error) {
	fn := &CompiledFunction{Chunk: chunk, Name: "<script>"}
	closure := &Closure{Fn: fn}

	vm.sp = 0
	vm.frameCount = 1
	vm.frames[0] = CallFrame{closure: closure, chunk: chunk}
	vm.frame = &vm.frames[0]

	return vm.run(0)
}

// --- Stack ---

func (vm *VM) push(v Value) {
	if vm.sp >= len(vm.stack) {
		vm.stack = append(vm.stack, make([]Value, initialStackSize)...)
	}
	vm.stack[vm.sp] = v
	vm.sp++
}

func (vm *VM) pop() Value {
	vm.sp--
	return vm.stack[vm.sp]
}

func (vm *VM) peek(distance int) Value {
	return vm.stack[vm.sp-1-distance]
}

// --- Bytecode reading ---

func (vm *VM) readByte() byte {
	b := vm.frame.chunk.Code[vm.frame.ip]
	vm.frame.ip++
	return b
}

func (vm *VM) readU16() int {
	v := vm.frame.chunk.ReadU16(vm.frame.ip)
	vm.frame.ip += 2
	return v
}

func (vm *VM) readConstant() Value {
	return vm.frame.chunk.Constants[vm.readU16()]
}

// --- Faults ---

// runtimeError builds a fault positioned at the current instruction.
func (vm *VM) runtimeError(kind FaultKind, format string, args ...interface{}) *RuntimeError {
	line, column := vm.frame.chunk.Position(vm.opOffset)
	return &RuntimeError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		File:    vm.frame.chunk.File,
		Line:    line,
		Column:  column,
	}
}
