package vm

import (
	"fmt"
	"io"
	"strings"
)

// Tracer prints every executed instruction together with the operand
// stack, one line per step. It exists for debugging the machine and
// compiled programs; attach one with Options.Trace.
type Tracer struct {
	out io.Writer
}

func NewTracer(out io.Writer) *Tracer {
	return &Tracer{out: out}
}

// step renders the instruction the VM is about to execute.
func (t *Tracer) step(vm *VM) {
	line, _ := DisassembleInstruction(vm.frame.chunk, vm.frame.ip)

	var stack strings.Builder
	for i := 0; i < vm.sp; i++ {
		if i > 0 {
			stack.WriteByte(' ')
		}
		stack.WriteByte('[')
		stack.WriteString(vm.stack[i].Inspect())
		stack.WriteByte(']')
	}

	depth := strings.Repeat("  ", vm.frameCount-1)
	fmt.Fprintf(t.out, "%s%-40s %s\n", depth, line, stack.String())
}
