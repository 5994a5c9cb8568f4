package vm

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of a chunk, followed by
// listings for every function nested in its constant pool.
func Disassemble(chunk *Chunk, name string) string {
	var sb strings.Builder
	disassembleChunk(&sb, chunk, name)
	return sb.String()
}

func disassembleChunk(sb *strings.Builder, chunk *Chunk, name string) {
	fmt.Fprintf(sb, "== %s ==\n", name)

	offset := 0
	for offset < len(chunk.Code) {
		offset = disassembleInstruction(sb, chunk, offset)
	}

	for _, c := range chunk.Constants {
		if c.Type == ValueFunction {
			fn := c.AsFunction()
			sb.WriteByte('\n')
			disassembleChunk(sb, fn.Chunk, fn.Name)
		}
	}
}

// DisassembleInstruction renders the instruction at offset and returns
// the offset of the next one.
func DisassembleInstruction(chunk *Chunk, offset int) (string, int) {
	var sb strings.Builder
	next := disassembleInstruction(&sb, chunk, offset)
	return strings.TrimSuffix(sb.String(), "\n"), next
}

func disassembleInstruction(sb *strings.Builder, chunk *Chunk, offset int) int {
	fmt.Fprintf(sb, "%04d ", offset)
	if offset > 0 && chunk.Lines[offset] == chunk.Lines[offset-1] {
		sb.WriteString("   | ")
	} else {
		fmt.Fprintf(sb, "%4d ", chunk.Lines[offset])
	}

	op := Opcode(chunk.Code[offset])
	switch op {
	case OP_CONST, OP_GET_GLOBAL, OP_SET_GLOBAL, OP_DEFINE_GLOBAL,
		OP_GET_PROP, OP_SET_PROP, OP_CHECK_FIELD:
		return constantInstruction(sb, op, chunk, offset)

	case OP_GET_LOCAL, OP_SET_LOCAL, OP_GET_UPVALUE, OP_SET_UPVALUE,
		OP_POP_N, OP_POP_N_PRESERVE, OP_BUILD_LIST, OP_BUILD_TABLE,
		OP_CALL, OP_SLICE_LIST:
		return operandInstruction(sb, op, chunk, offset)

	case OP_JUMP, OP_JUMP_IF_FALSE:
		return jumpInstruction(sb, op, 1, chunk, offset)

	case OP_LOOP:
		return jumpInstruction(sb, op, -1, chunk, offset)

	case OP_CHECK_LIST_LEN:
		mode := "=="
		if chunk.Code[offset+1] == listLenMin {
			mode = ">="
		}
		fmt.Fprintf(sb, "%-16s len %s %d\n", op, mode, chunk.ReadU16(offset+2))
		return offset + 4

	case OP_CLOSURE:
		return closureInstruction(sb, chunk, offset)

	default:
		fmt.Fprintf(sb, "%s\n", op)
		return offset + 1
	}
}

func constantInstruction(sb *strings.Builder, op Opcode, chunk *Chunk, offset int) int {
	idx := chunk.ReadU16(offset + 1)
	fmt.Fprintf(sb, "%-16s %4d  '%s'\n", op, idx, chunk.Constants[idx].Inspect())
	return offset + 3
}

func operandInstruction(sb *strings.Builder, op Opcode, chunk *Chunk, offset int) int {
	fmt.Fprintf(sb, "%-16s %4d\n", op, chunk.ReadU16(offset+1))
	return offset + 3
}

func jumpInstruction(sb *strings.Builder, op Opcode, sign int, chunk *Chunk, offset int) int {
	jump := chunk.ReadU16(offset + 1)
	fmt.Fprintf(sb, "%-16s %4d -> %d\n", op, offset, offset+3+sign*jump)
	return offset + 3
}

func closureInstruction(sb *strings.Builder, chunk *Chunk, offset int) int {
	idx := chunk.ReadU16(offset + 1)
	fn := chunk.Constants[idx].AsFunction()
	fmt.Fprintf(sb, "%-16s %4d  %s\n", OP_CLOSURE, idx, chunk.Constants[idx].Inspect())

	offset += 3
	for range fn.Upvalues {
		kind := "upvalue"
		if chunk.Code[offset] == 1 {
			kind = "local"
		}
		fmt.Fprintf(sb, "%04d    |  capture %s %d\n", offset, kind, chunk.ReadU16(offset+1))
		offset += 3
	}
	return offset
}
