// Package vm implements the Luma bytecode compiler and virtual machine.
package vm

// Opcode represents a single VM instruction
type Opcode byte

const (
	// Stack manipulation
	OP_CONST          Opcode = iota // Push constant from pool
	OP_POP                          // Discard top of stack
	OP_DUP                          // Duplicate top of stack
	OP_POP_N                        // Pop N values
	OP_POP_N_PRESERVE               // Pop N values below the top: [..., a, b, r] -> [..., r]

	// Arithmetic
	OP_ADD // + (also string concatenation)
	OP_SUB // -
	OP_MUL // *
	OP_DIV // /
	OP_MOD // %
	OP_NEG // Unary minus

	// Comparison
	OP_EQ // ==
	OP_NE // !=
	OP_LT // <
	OP_LE // <=
	OP_GT // >
	OP_GE // >=

	// Logic
	OP_NOT // not

	// Variables
	OP_GET_LOCAL     // Get local variable by slot
	OP_SET_LOCAL     // Set local variable by slot
	OP_GET_GLOBAL    // Get global variable by name constant
	OP_SET_GLOBAL    // Set global variable by name constant
	OP_DEFINE_GLOBAL // Define global variable by name constant

	// Control flow
	OP_JUMP          // Unconditional forward jump
	OP_JUMP_IF_FALSE // Pop and jump if falsy
	OP_LOOP          // Unconditional backward jump

	// Functions
	OP_CALL    // Call function with N arguments
	OP_RETURN  // Return from function
	OP_CLOSURE // Create closure with capture descriptors

	// Upvalues
	OP_GET_UPVALUE // Get captured cell by index
	OP_SET_UPVALUE // Set captured cell by index

	// Collections
	OP_BUILD_LIST  // Create list from N stack values
	OP_BUILD_TABLE // Create table from N key/value pairs
	OP_GET_INDEX   // list[index] / table[key]
	OP_SET_INDEX   // list[index] = v / table[key] = v
	OP_GET_PROP    // table.member by name constant
	OP_SET_PROP    // table.member = v by name constant
	OP_GET_LEN     // Length of list or string
	OP_SLICE_LIST  // Rest of list from fixed start index

	// Literals
	OP_NULL  // Push null
	OP_TRUE  // Push true
	OP_FALSE // Push false

	// Modules
	OP_IMPORT // Load module named by top-of-stack string

	// Pattern tests. These never fault: mismatched shapes or types test
	// false so a match can move on to the next arm.
	OP_CHECK_EQ       // Pop candidate, test equality against top of stack
	OP_CHECK_FIELD    // Test that top of stack is a table with the named field
	OP_CHECK_LIST_LEN // Test that top of stack is a list of length >= / == N

	// Faults
	OP_MATCH_FAIL // Raise a non-exhaustive match fault

	// Halt
	OP_HALT // Stop execution, leaving the program result on top
)

// OpcodeNames maps opcodes to their string names (for the disassembler)
var OpcodeNames = map[Opcode]string{
	OP_CONST:          "CONST",
	OP_POP:            "POP",
	OP_POP_N:          "POP_N",
	OP_DUP:            "DUP",
	OP_POP_N_PRESERVE: "POP_N_PRESERVE",

	OP_ADD: "ADD",
	OP_SUB: "SUB",
	OP_MUL: "MUL",
	OP_DIV: "DIV",
	OP_MOD: "MOD",
	OP_NEG: "NEG",

	OP_EQ: "EQ",
	OP_NE: "NE",
	OP_LT: "LT",
	OP_LE: "LE",
	OP_GT: "GT",
	OP_GE: "GE",

	OP_NOT: "NOT",

	OP_GET_LOCAL:     "GET_LOCAL",
	OP_SET_LOCAL:     "SET_LOCAL",
	OP_GET_GLOBAL:    "GET_GLOBAL",
	OP_SET_GLOBAL:    "SET_GLOBAL",
	OP_DEFINE_GLOBAL: "DEFINE_GLOBAL",

	OP_JUMP:          "JUMP",
	OP_JUMP_IF_FALSE: "JUMP_IF_FALSE",
	OP_LOOP:          "LOOP",

	OP_CALL:    "CALL",
	OP_RETURN:  "RETURN",
	OP_CLOSURE: "CLOSURE",

	OP_GET_UPVALUE: "GET_UPVALUE",
	OP_SET_UPVALUE: "SET_UPVALUE",

	OP_BUILD_LIST:  "BUILD_LIST",
	OP_BUILD_TABLE: "BUILD_TABLE",
	OP_GET_INDEX:   "GET_INDEX",
	OP_SET_INDEX:   "SET_INDEX",
	OP_GET_PROP:    "GET_PROP",
	OP_SET_PROP:    "SET_PROP",
	OP_GET_LEN:     "GET_LEN",
	OP_SLICE_LIST:  "SLICE_LIST",

	OP_NULL:  "NULL",
	OP_TRUE:  "TRUE",
	OP_FALSE: "FALSE",

	OP_IMPORT: "IMPORT",

	OP_CHECK_EQ:       "CHECK_EQ",
	OP_CHECK_FIELD:    "CHECK_FIELD",
	OP_CHECK_LIST_LEN: "CHECK_LIST_LEN",

	OP_MATCH_FAIL: "MATCH_FAIL",

	OP_HALT: "HALT",
}

func (op Opcode) String() string {
	if name, ok := OpcodeNames[op]; ok {
		return name
	}
	return "UNKNOWN"
}
