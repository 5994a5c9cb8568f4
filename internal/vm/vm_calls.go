package vm

// callValue dispatches a call to any callable value. The callee sits on
// the stack just below its argc arguments. Closures get a new frame and
// return control to the run loop; natives execute immediately, leaving
// their result where the callee was.
func (vm *VM) callValue(callee Value, argc int) error {
	switch callee.Type {
	case ValueClosure:
		return vm.callClosure(callee.AsClosure(), argc)

	case ValueFunction:
		// Bare function constants only appear before OP_CLOSURE wraps
		// them, but calling one is harmless: it just has no captures.
		return vm.callClosure(&Closure{Fn: callee.AsFunction()}, argc)

	case ValueNative:
		return vm.callNative(callee.AsNative(), argc)

	default:
		return vm.runtimeError(FaultType, "cannot call a %s value", callee.TypeName())
	}
}

func (vm *VM) callClosure(closure *Closure, argc int) error {
	fn := closure.Fn
	if argc != fn.Arity {
		return vm.runtimeError(FaultArity,
			"%s expects %d arguments, got %d", fn.Name, fn.Arity, argc)
	}
	if vm.frameCount >= maxFrameCount {
		return vm.runtimeError(FaultPanic, "call stack overflow")
	}

	if vm.frameCount >= len(vm.frames) {
		vm.frames = append(vm.frames, make([]CallFrame, len(vm.frames))...)
	}
	vm.frames[vm.frameCount] = CallFrame{
		closure: closure,
		chunk:   fn.Chunk,
		base:    vm.sp - argc,
	}
	vm.frame = &vm.frames[vm.frameCount]
	vm.frameCount++
	return nil
}

func (vm *VM) callNative(native *NativeFunction, argc int) error {
	if !native.Variadic && argc != native.Arity {
		return vm.runtimeError(FaultArity,
			"%s expects %d arguments, got %d", native.Name, native.Arity, argc)
	}
	args := make([]Value, argc)
	copy(args, vm.stack[vm.sp-argc:vm.sp])
	vm.sp -= argc + 1 // Arguments plus the callee

	result, err := native.Fn(vm, args)
	if err != nil {
		return err
	}
	vm.push(result)
	return nil
}

// callAndRun invokes a callable synchronously and returns its result.
// Operator overloads and other VM-internal calls use this: a closure
// callee nests the run loop until its frame unwinds.
func (vm *VM) callAndRun(callee Value, args []Value) (Value, error) {
	vm.push(callee)
	for _, a := range args {
		vm.push(a)
	}

	depth := vm.frameCount
	if err := vm.callValue(callee, len(args)); err != nil {
		return NullVal(), err
	}
	if vm.frameCount == depth {
		return vm.pop(), nil
	}
	return vm.run(depth)
}
