package vm

// Chunk represents one compiled unit: a sequence of bytecode instructions
// plus its constant pool. Functions own their chunk; the top-level program
// owns the root chunk.
type Chunk struct {
	// Code is the bytecode instructions
	Code []byte

	// Constants pool - deduplicated literal values
	Constants []Value

	// Lines maps bytecode offset to source line number (for errors)
	Lines []int

	// Columns maps bytecode offset to source column number (for errors)
	Columns []int

	// File is the source file name
	File string
}

// NewChunk creates a new empty chunk
func NewChunk(file string) *Chunk {
	return &Chunk{
		Code:      make([]byte, 0, 256),
		Constants: make([]Value, 0, 16),
		Lines:     make([]int, 0, 256),
		Columns:   make([]int, 0, 256),
		File:      file,
	}
}

// Write adds a byte to the chunk with position info
func (c *Chunk) Write(b byte, line, col int) {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
	c.Columns = append(c.Columns, col)
}

// WriteOp writes an opcode to the chunk
func (c *Chunk) WriteOp(op Opcode, line, col int) {
	c.Write(byte(op), line, col)
}

// WriteU16 writes a 2-byte big-endian operand
func (c *Chunk) WriteU16(v int, line, col int) {
	c.Write(byte(v>>8), line, col)
	c.Write(byte(v), line, col)
}

// AddConstant adds a constant to the pool and returns its index. Literal
// numbers, strings, and booleans are deduplicated; reference values
// (compiled functions) always get a fresh slot.
func (c *Chunk) AddConstant(value Value) int {
	switch value.Type {
	case ValueNumber, ValueString, ValueBool, ValueNull:
		for i, existing := range c.Constants {
			if existing.Type == value.Type && existing.StrictEquals(value) {
				return i
			}
		}
	}
	c.Constants = append(c.Constants, value)
	return len(c.Constants) - 1
}

// ReadU16 reads a 2-byte big-endian operand at offset
func (c *Chunk) ReadU16(offset int) int {
	return int(c.Code[offset])<<8 | int(c.Code[offset+1])
}

// Len returns the number of bytes in the chunk
func (c *Chunk) Len() int {
	return len(c.Code)
}

// Position returns the source position recorded for a bytecode offset.
func (c *Chunk) Position(offset int) (line, col int) {
	if offset >= 0 && offset < len(c.Lines) {
		return c.Lines[offset], c.Columns[offset]
	}
	return 0, 0
}
