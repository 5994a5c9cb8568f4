package vm

// run is the fetch-decode-execute loop. It executes until the frame
// count drops to minFrameDepth via OP_RETURN, or OP_HALT fires, and
// returns the resulting value. Operator overloads and other re-entrant
// calls nest by running the loop again with a deeper floor.
func (vm *VM) run(minFrameDepth int) (Value, error) {
	for {
		vm.opOffset = vm.frame.ip
		if vm.tracer != nil {
			vm.tracer.step(vm)
		}
		op := Opcode(vm.readByte())

		switch op {
		case OP_CONST:
			vm.push(vm.readConstant())

		case OP_NULL:
			vm.push(NullVal())

		case OP_TRUE:
			vm.push(BoolVal(true))

		case OP_FALSE:
			vm.push(BoolVal(false))

		case OP_POP:
			vm.pop()

		case OP_DUP:
			vm.push(vm.peek(0))

		case OP_POP_N:
			n := vm.readU16()
			vm.dropCells(vm.sp-n, n)
			vm.sp -= n

		case OP_POP_N_PRESERVE:
			n := vm.readU16()
			result := vm.stack[vm.sp-1]
			vm.dropCells(vm.sp-1-n, n)
			vm.sp -= n
			vm.stack[vm.sp-1] = result

		case OP_ADD, OP_SUB, OP_MUL, OP_DIV, OP_MOD:
			if err := vm.binaryArith(op); err != nil {
				return NullVal(), err
			}

		case OP_EQ, OP_NE:
			if err := vm.equalityOp(op); err != nil {
				return NullVal(), err
			}

		case OP_LT, OP_LE, OP_GT, OP_GE:
			if err := vm.comparisonOp(op); err != nil {
				return NullVal(), err
			}

		case OP_NEG:
			if err := vm.negateOp(); err != nil {
				return NullVal(), err
			}

		case OP_NOT:
			vm.push(BoolVal(!vm.pop().Truthy()))

		case OP_GET_LOCAL:
			slot := vm.readU16()
			if cell, ok := vm.frame.cells[slot]; ok {
				vm.push(cell.V)
			} else {
				vm.push(vm.stack[vm.frame.base+slot])
			}

		case OP_SET_LOCAL:
			slot := vm.readU16()
			v := vm.pop()
			if cell, ok := vm.frame.cells[slot]; ok {
				cell.V = v
			} else {
				vm.stack[vm.frame.base+slot] = v
			}

		case OP_GET_UPVALUE:
			idx := vm.readU16()
			vm.push(vm.frame.closure.Cells[idx].V)

		case OP_SET_UPVALUE:
			idx := vm.readU16()
			vm.frame.closure.Cells[idx].V = vm.pop()

		case OP_DEFINE_GLOBAL:
			name := vm.readConstant().AsString()
			vm.globals[name] = vm.pop()

		case OP_GET_GLOBAL:
			name := vm.readConstant().AsString()
			v, ok := vm.globals[name]
			if !ok {
				return NullVal(), vm.runtimeError(FaultUndefinedVariable,
					"undefined variable %q", name)
			}
			vm.push(v)

		case OP_SET_GLOBAL:
			name := vm.readConstant().AsString()
			if _, ok := vm.globals[name]; !ok {
				return NullVal(), vm.runtimeError(FaultUndefinedVariable,
					"undefined variable %q", name)
			}
			vm.globals[name] = vm.pop()

		case OP_JUMP:
			offset := vm.readU16()
			vm.frame.ip += offset

		case OP_JUMP_IF_FALSE:
			offset := vm.readU16()
			if !vm.pop().Truthy() {
				vm.frame.ip += offset
			}

		case OP_LOOP:
			offset := vm.readU16()
			vm.frame.ip -= offset

		case OP_CALL:
			argc := vm.readU16()
			if err := vm.callValue(vm.peek(argc), argc); err != nil {
				return NullVal(), err
			}

		case OP_RETURN:
			result := vm.pop()
			closed := vm.frame
			vm.frameCount--
			if closed.base > 0 {
				vm.sp = closed.base - 1 // Also drops the callee
			} else {
				vm.sp = 0
			}
			// Restore the caller's frame even when this return hands
			// control back to a nested run(): the outer loop resumes
			// fetching from vm.frame.
			if vm.frameCount > 0 {
				vm.frame = &vm.frames[vm.frameCount-1]
			}
			if vm.frameCount == minFrameDepth {
				return result, nil
			}
			vm.push(result)

		case OP_CLOSURE:
			if err := vm.makeClosure(); err != nil {
				return NullVal(), err
			}

		case OP_BUILD_LIST:
			n := vm.readU16()
			elements := make([]Value, n)
			copy(elements, vm.stack[vm.sp-n:vm.sp])
			vm.sp -= n
			vm.push(ListVal(NewList(elements)))

		case OP_BUILD_TABLE:
			n := vm.readU16()
			table := NewTable()
			for i := 0; i < n; i++ {
				key := vm.stack[vm.sp-2*n+2*i]
				val := vm.stack[vm.sp-2*n+2*i+1]
				table.Fields[key.AsString()] = val
			}
			vm.sp -= 2 * n
			vm.push(TableVal(table))

		case OP_GET_INDEX:
			if err := vm.getIndexOp(); err != nil {
				return NullVal(), err
			}

		case OP_SET_INDEX:
			if err := vm.setIndexOp(); err != nil {
				return NullVal(), err
			}

		case OP_GET_PROP:
			name := vm.readConstant().AsString()
			if err := vm.getPropOp(name); err != nil {
				return NullVal(), err
			}

		case OP_SET_PROP:
			name := vm.readConstant().AsString()
			if err := vm.setPropOp(name); err != nil {
				return NullVal(), err
			}

		case OP_GET_LEN:
			if err := vm.getLenOp(); err != nil {
				return NullVal(), err
			}

		case OP_SLICE_LIST:
			start := vm.readU16()
			if err := vm.sliceListOp(start); err != nil {
				return NullVal(), err
			}

		case OP_CHECK_EQ:
			b := vm.pop()
			a := vm.pop()
			vm.push(BoolVal(a.Equals(b)))

		case OP_CHECK_FIELD:
			name := vm.readConstant().AsString()
			v := vm.pop()
			ok := false
			if v.Type == ValueTable {
				_, ok = v.AsTable().Fields[name]
			}
			vm.push(BoolVal(ok))

		case OP_CHECK_LIST_LEN:
			mode := vm.readByte()
			n := vm.readU16()
			v := vm.pop()
			ok := false
			if v.Type == ValueList {
				length := len(v.AsList().Elements)
				if mode == listLenMin {
					ok = length >= n
				} else {
					ok = length == n
				}
			}
			vm.push(BoolVal(ok))

		case OP_IMPORT:
			pathVal := vm.pop()
			if pathVal.Type != ValueString {
				return NullVal(), vm.runtimeError(FaultImport,
					"import path must be a string, got %s", pathVal.TypeName())
			}
			mod, err := vm.importModule(pathVal.AsString())
			if err != nil {
				return NullVal(), err
			}
			vm.push(mod)

		case OP_MATCH_FAIL:
			return NullVal(), vm.runtimeError(FaultMatch,
				"no match arm matched %s", vm.peek(0).Inspect())

		case OP_HALT:
			return vm.pop(), nil

		default:
			return NullVal(), vm.runtimeError(FaultPanic, "unknown opcode %d", op)
		}
	}
}

// dropCells removes the shared cells of locals being popped in the slot
// range [lowSp, lowSp+n) of the current frame, so reused stack slots
// never see a stale capture.
func (vm *VM) dropCells(lowSp, n int) {
	if len(vm.frame.cells) == 0 {
		return
	}
	for sp := lowSp; sp < lowSp+n; sp++ {
		delete(vm.frame.cells, sp-vm.frame.base)
	}
}

// makeClosure reads a function constant plus its capture descriptors
// and pushes a closure over the current frame's cells.
func (vm *VM) makeClosure() error {
	fn := vm.readConstant().AsFunction()
	closure := &Closure{Fn: fn}
	if n := len(fn.Upvalues); n > 0 {
		closure.Cells = make([]*Cell, n)
	}
	for i := range fn.Upvalues {
		isLocal := vm.readByte() == 1
		index := vm.readU16()
		if isLocal {
			closure.Cells[i] = vm.captureCell(index)
		} else {
			closure.Cells[i] = vm.frame.closure.Cells[index]
		}
	}
	vm.push(ClosureVal(closure))
	return nil
}

// captureCell returns the shared cell for a local slot of the current
// frame, creating it on first capture. Creation seeds the cell from the
// stack; afterwards the cell is the slot's only storage.
func (vm *VM) captureCell(slot int) *Cell {
	if vm.frame.cells == nil {
		vm.frame.cells = make(map[int]*Cell)
	}
	if cell, ok := vm.frame.cells[slot]; ok {
		return cell
	}
	cell := &Cell{V: vm.stack[vm.frame.base+slot]}
	vm.frame.cells[slot] = cell
	return cell
}
