package vm

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runVM(t *testing.T, source string) Value {
	t.Helper()
	machine := New(Options{Out: &bytes.Buffer{}})
	result, err := machine.Interpret(source, "test.luma")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return result
}

func runVMOutput(t *testing.T, source string) (Value, string) {
	t.Helper()
	var out bytes.Buffer
	machine := New(Options{Out: &out})
	result, err := machine.Interpret(source, "test.luma")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return result, out.String()
}

func runVMFault(t *testing.T, source string) *RuntimeError {
	t.Helper()
	machine := New(Options{Out: &bytes.Buffer{}})
	_, err := machine.Interpret(source, "test.luma")
	if err == nil {
		t.Fatalf("expected a runtime fault, got none")
	}
	var fault *RuntimeError
	if !errors.As(err, &fault) {
		t.Fatalf("expected a runtime fault, got %T: %v", err, err)
	}
	return fault
}

func wantNumber(t *testing.T, v Value, expected float64) {
	t.Helper()
	if v.Type != ValueNumber {
		t.Fatalf("expected number %v, got %s (%s)", expected, v.TypeName(), v.Inspect())
	}
	if v.AsNumber() != expected {
		t.Fatalf("expected %v, got %v", expected, v.AsNumber())
	}
}

func wantString(t *testing.T, v Value, expected string) {
	t.Helper()
	if v.Type != ValueString || v.AsString() != expected {
		t.Fatalf("expected %q, got %s", expected, v.Inspect())
	}
}

func wantBool(t *testing.T, v Value, expected bool) {
	t.Helper()
	if v.Type != ValueBool || v.AsBool() != expected {
		t.Fatalf("expected %v, got %s", expected, v.Inspect())
	}
}

func wantNull(t *testing.T, v Value) {
	t.Helper()
	if v.Type != ValueNull {
		t.Fatalf("expected null, got %s", v.Inspect())
	}
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		source   string
		expected float64
	}{
		{"1 + 2", 3},
		{"10 - 4", 6},
		{"3 * 4", 12},
		{"10 / 4", 2.5},
		{"10 % 3", 1},
		{"-(3 + 2)", -5},
		{"2 + 3 * 4", 14},
		{"(2 + 3) * 4", 20},
	}
	for _, tt := range tests {
		wantNumber(t, runVM(t, tt.source), tt.expected)
	}
}

func TestStringConcat(t *testing.T) {
	wantString(t, runVM(t, `"foo" + "bar"`), "foobar")
}

func TestComparisonsAndLogic(t *testing.T) {
	tests := []struct {
		source   string
		expected bool
	}{
		{"1 < 2", true},
		{"2 <= 2", true},
		{"3 > 4", false},
		{"1 == 1", true},
		{"1 != 2", true},
		{"not true", false},
		{"not null", true},
		{"null == null", true},
		{"null == 1", false},
		{"true and false", false},
		{"false or true", true},
	}
	for _, tt := range tests {
		wantBool(t, runVM(t, tt.source), tt.expected)
	}
}

func TestOrderingRequiresNumbers(t *testing.T) {
	// Ordering is numeric only; strings have no built-in ordering.
	fault := runVMFault(t, `"a" < "b"`)
	if fault.Kind != FaultType {
		t.Fatalf("expected type fault, got %s: %s", fault.Kind, fault.Message)
	}
}

func TestTruthiness(t *testing.T) {
	// Only false and null are falsy.
	wantNumber(t, runVM(t, `if 0 do 1 else do 2 end`), 1)
	wantNumber(t, runVM(t, `if "" do 1 else do 2 end`), 1)
	wantNumber(t, runVM(t, `if null do 1 else do 2 end`), 2)
	wantNumber(t, runVM(t, `if false do 1 else do 2 end`), 2)
}

func TestShortCircuitValues(t *testing.T) {
	// and/or yield the deciding operand, not a coerced boolean.
	wantNull(t, runVM(t, "null and 2"))
	wantNumber(t, runVM(t, "1 and 2"), 2)
	wantNumber(t, runVM(t, "1 or 2"), 1)
	wantNumber(t, runVM(t, "false or 2"), 2)
}

func TestWhileCountdown(t *testing.T) {
	result := runVM(t, `
var i = 3
while i > 0 do
	i = i - 1
end
i
`)
	wantNumber(t, result, 0)
}

func TestDoWhileRunsBodyFirst(t *testing.T) {
	result := runVM(t, `
var n = 0
do
	n = n + 1
while false end
n
`)
	wantNumber(t, result, 1)
}

func TestForInSum(t *testing.T) {
	result := runVM(t, `
var total = 0
for x in [1, 2, 3, 4] do
	total = total + x
end
total
`)
	wantNumber(t, result, 10)
}

func TestForInDestructuring(t *testing.T) {
	result := runVM(t, `
var keys = ""
for [k, v] in iter({ b: 2, a: 1 }) do
	keys = keys + k
end
keys
`)
	wantString(t, result, "ab")
}

func TestBreakAndContinue(t *testing.T) {
	result := runVM(t, `
var total = 0
for x in [1, 2, 3, 4, 5] do
	if x == 2 do continue end
	if x == 5 do break end
	total = total + x
end
total
`)
	wantNumber(t, result, 8)
}

func TestBreakDiscardsOperandTemporaries(t *testing.T) {
	// A break in operand position leaves a half-built expression on the
	// stack; the jump must drop it or every later local lands in the
	// wrong slot.
	result := runVM(t, `
let f = fn() do
	while true do
		let x = 1 + do break end
	end
	let y = 7
	y
end
f()
`)
	wantNumber(t, result, 7)
}

func TestBreakLevels(t *testing.T) {
	result := runVM(t, `
var hits = 0
for x in [1, 2, 3] do
	for y in [1, 2, 3] do
		if y == 2 do break 2 end
		hits = hits + 1
	end
end
hits
`)
	wantNumber(t, result, 1)
}

func TestContinueLevels(t *testing.T) {
	result := runVM(t, `
var hits = 0
for x in [1, 2] do
	for y in [1, 2, 3] do
		if y == 2 do continue 2 end
		hits = hits + 1
	end
	hits = hits + 100
end
hits
`)
	wantNumber(t, result, 2)
}

func TestBlockExpressionValue(t *testing.T) {
	result := runVM(t, `
let x = do
	let a = 2
	let b = 3
	a * b
end
x
`)
	wantNumber(t, result, 6)
}

func TestFunctionsAndRecursion(t *testing.T) {
	result := runVM(t, `
let fib = fn(n) do
	if n < 2 do
		n
	else do
		fib(n - 1) + fib(n - 2)
	end
end
fib(10)
`)
	wantNumber(t, result, 55)
}

func TestLocalFunctionRecursion(t *testing.T) {
	result := runVM(t, `
let run = fn() do
	let fact = fn(n) do
		if n <= 1 do 1 else do n * fact(n - 1) end
	end
	fact(5)
end
run()
`)
	wantNumber(t, result, 120)
}

func TestImplicitReturnNull(t *testing.T) {
	wantNull(t, runVM(t, `
let f = fn() do return end
f()
`))
}

func TestClosureCounter(t *testing.T) {
	result := runVM(t, `
let makeCounter = fn() do
	var count = 0
	fn() do
		count = count + 1
		count
	end
end
let counter = makeCounter()
counter()
counter()
`)
	wantNumber(t, result, 2)
}

func TestClosuresShareOneCell(t *testing.T) {
	result := runVM(t, `
let makePair = fn() do
	var n = 0
	let inc = fn() do n = n + 1 end
	let get = fn() do n end
	[inc, get]
end
let [inc, get] = makePair()
inc()
inc()
inc()
get()
`)
	wantNumber(t, result, 3)
}

func TestSlotReuseDoesNotLeakCells(t *testing.T) {
	// Each iteration declares a fresh captured local in the same slot;
	// every closure must see its own cell.
	result := runVM(t, `
var fns = []
for i in [10, 20, 30] do
	let v = i
	fns[len(fns)] = fn() do v end
end
fns[0]() + fns[1]() + fns[2]()
`)
	wantNumber(t, result, 60)
}

func TestListsShareByReference(t *testing.T) {
	result := runVM(t, `
let a = [1, 2]
let b = a
b[0] = 99
a[0]
`)
	wantNumber(t, result, 99)
}

func TestListOutOfBoundsReadsNull(t *testing.T) {
	wantNull(t, runVM(t, "[1, 2, 3][10]"))
	wantNull(t, runVM(t, "[1, 2, 3][-1]"))
}

func TestListAppendAtLength(t *testing.T) {
	result := runVM(t, `
let xs = [1, 2, 3]
xs[3] = 9
xs[3]
`)
	wantNumber(t, result, 9)

	fault := runVMFault(t, `
let xs = [1, 2, 3]
xs[5] = 9
`)
	if fault.Kind != FaultIndex {
		t.Fatalf("expected index fault, got %s: %s", fault.Kind, fault.Message)
	}
}

func TestTables(t *testing.T) {
	result := runVM(t, `
let t = { name: "luma", version: 1 }
t.version = t.version + 1
t["version"]
`)
	wantNumber(t, result, 2)

	wantNull(t, runVM(t, `{ a: 1 }.missing`))
}

func TestDestructuringDeclarations(t *testing.T) {
	result := runVM(t, `
let [first, _, ...rest] = [1, 2, 3, 4]
first + rest[0] + rest[1]
`)
	wantNumber(t, result, 8)

	result = runVM(t, `
let { x: a, y: b } = { x: 10, y: 32 }
a + b
`)
	wantNumber(t, result, 42)

	// Missing elements bind null.
	wantNull(t, runVM(t, `
let [a, b] = [1]
b
`))
}

func TestMatchLiterals(t *testing.T) {
	result := runVM(t, `
let describe = fn(n) do
	match n do
		0 do "zero" end
		1 do "one" end
		_ do "many" end
	end
end
describe(0) + " " + describe(1) + " " + describe(7)
`)
	wantString(t, result, "zero one many")
}

func TestMatchListPatterns(t *testing.T) {
	result := runVM(t, `
match [1, 2, 3] do
	[] do "empty" end
	[x] do "single" end
	[x, ...rest] do x + len(rest) end
end
`)
	wantNumber(t, result, 3)
}

func TestMatchTablePatterns(t *testing.T) {
	result := runVM(t, `
match { kind: "circle", r: 2 } do
	{ kind: k, r: radius } do k + ":" + typeof(radius) end
	_ do "unknown" end
end
`)
	wantString(t, result, "circle:Number")
}

func TestMatchIncompatibleArmSkips(t *testing.T) {
	// A literal arm of a different type must not fault the test.
	result := runVM(t, `
match "two" do
	1 do "number" end
	"two" do "string" end
end
`)
	wantString(t, result, "string")
}

func TestMatchNonExhaustiveFaults(t *testing.T) {
	fault := runVMFault(t, `
match 3 do
	1 do "one" end
	2 do "two" end
end
`)
	if fault.Kind != FaultMatch {
		t.Fatalf("expected match fault, got %s: %s", fault.Kind, fault.Message)
	}
}

func TestEqualityTypeFault(t *testing.T) {
	fault := runVMFault(t, `1 == "one"`)
	if fault.Kind != FaultType {
		t.Fatalf("expected type fault, got %s: %s", fault.Kind, fault.Message)
	}
}

func TestOperatorOverloads(t *testing.T) {
	source := `
let Vec = {
	add: fn(a, b) do cast(Vec, { x: a.x + b.x, y: a.y + b.y }) end,
	eq: fn(a, b) do a.x == b.x and a.y == b.y end
}
let v1 = cast(Vec, { x: 1, y: 2 })
let v2 = cast(Vec, { x: 3, y: 4 })
`
	result := runVM(t, source+`
let sum = v1 + v2
sum.x * 10 + sum.y
`)
	wantNumber(t, result, 46)

	wantBool(t, runVM(t, source+`v1 == cast(Vec, { x: 1, y: 2 })`), true)
	// != is always derived from eq.
	wantBool(t, runVM(t, source+`v1 != v2`), true)
}

func TestInstanceMethodBeatsTypeMethod(t *testing.T) {
	result := runVM(t, `
let T = { add: fn(a, b) do "type" end }
let v = cast(T, {})
v.add = fn(a, b) do "instance" end
v + 1
`)
	wantString(t, result, "instance")
}

func TestOverloadDispatchIsLeftOperandOnly(t *testing.T) {
	// Only the left operand's methods are consulted; a method on the
	// right never rescues an unsupported left operand.
	fault := runVMFault(t, `
let T = { add: fn(a, b) do 99 end }
let v = cast(T, {})
1 + v
`)
	if fault.Kind != FaultType {
		t.Fatalf("expected type fault, got %s: %s", fault.Kind, fault.Message)
	}
}

func TestUndefinedVariableFault(t *testing.T) {
	fault := runVMFault(t, "nope + 1")
	if fault.Kind != FaultUndefinedVariable {
		t.Fatalf("expected undefined-variable fault, got %s", fault.Kind)
	}
}

func TestArityFault(t *testing.T) {
	fault := runVMFault(t, `
let f = fn(a, b) do a + b end
let g = f
g(1)
`)
	if fault.Kind != FaultArity {
		t.Fatalf("expected arity fault, got %s: %s", fault.Kind, fault.Message)
	}
}

func TestCallNonCallableFault(t *testing.T) {
	fault := runVMFault(t, "let x = 5 x()")
	if fault.Kind != FaultType {
		t.Fatalf("expected type fault, got %s", fault.Kind)
	}
}

func TestNamedArguments(t *testing.T) {
	source := `
let describe = fn(name, greeting = "hello") do
	greeting + ", " + name
end
`
	// Order independence: named arguments bind by name.
	wantString(t, runVM(t, source+`describe(name = "a", greeting = "hi")`), "hi, a")
	wantString(t, runVM(t, source+`describe(greeting = "hi", name = "a")`), "hi, a")
	wantString(t, runVM(t, source+`describe("a")`), "hello, a")
	wantString(t, runVM(t, source+`describe("a", "yo")`), "yo, a")
	wantString(t, runVM(t, source+`describe(name = "a")`), "hello, a")
}

func TestPrintAndWrite(t *testing.T) {
	_, out := runVMOutput(t, `
print("a", 1 + 1)
write("x")
write("y")
`)
	if out != "a 2\nxy" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestTypeof(t *testing.T) {
	tests := []struct {
		source   string
		expected string
	}{
		{"typeof(1)", "Number"},
		{`typeof("s")`, "String"},
		{"typeof(true)", "Boolean"},
		{"typeof(null)", "Null"},
		{"typeof([])", "List"},
		{"typeof({})", "Table"},
		{"typeof(typeof)", "Function"},
	}
	for _, tt := range tests {
		wantString(t, runVM(t, tt.source), tt.expected)
	}
}

func TestCastAndIsInstanceOf(t *testing.T) {
	source := `
let Animal = { legs: 4, __doc: "meta", speak: fn(self) do "..." end }
let dog = cast(Animal, { name: "rex" })
`
	// Data fields of the type are inherited, methods and __ fields stay behind.
	wantNumber(t, runVM(t, source+"dog.legs"), 4)
	wantString(t, runVM(t, source+"dog.name"), "rex")
	wantNull(t, runVM(t, source+"dog.__doc"))
	wantBool(t, runVM(t, source+"isInstanceOf(dog, Animal)"), true)
	wantBool(t, runVM(t, source+"isInstanceOf(dog, { legs: 4 })"), false)
	wantBool(t, runVM(t, source+"isInstanceOf(5, Animal)"), false)
}

func TestLen(t *testing.T) {
	wantNumber(t, runVM(t, "len([1, 2, 3])"), 3)
	wantNumber(t, runVM(t, `len("héllo")`), 5)
	wantNumber(t, runVM(t, "len({ a: 1, b: 2 })"), 2)
}

func TestPanicNative(t *testing.T) {
	fault := runVMFault(t, `panic("boom")`)
	if fault.Kind != FaultPanic || fault.Message != "boom" {
		t.Fatalf("expected panic fault boom, got %s: %s", fault.Kind, fault.Message)
	}
}

func TestFaultPositions(t *testing.T) {
	fault := runVMFault(t, "let x = 1\nx()")
	if fault.File != "test.luma" || fault.Line != 2 {
		t.Fatalf("expected fault at test.luma:2, got %s:%d", fault.File, fault.Line)
	}
}

func writeModule(t *testing.T, dir, name, source string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestImportModule(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "math.luma", `
let square = fn(n) do n * n end
{ square: square }
`)
	main := writeModule(t, dir, "main.luma", `
let math = import("math")
math.square(6)
`)

	source, _ := os.ReadFile(main)
	machine := New(Options{Out: &bytes.Buffer{}})
	result, err := machine.Interpret(string(source), main)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantNumber(t, result, 36)
}

func TestImportRunsOnce(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "loud.luma", `
print("loading")
1
`)
	main := writeModule(t, dir, "main.luma", `
import("loud")
import("./loud.luma")
null
`)

	source, _ := os.ReadFile(main)
	var out bytes.Buffer
	machine := New(Options{Out: &out})
	if _, err := machine.Interpret(string(source), main); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := out.String(); got != "loading\n" {
		t.Fatalf("module ran more than once: %q", got)
	}
}

func TestCircularImportFault(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "a.luma", `import("b")`)
	writeModule(t, dir, "b.luma", `import("a")`)
	main := writeModule(t, dir, "main.luma", `import("a")`)

	source, _ := os.ReadFile(main)
	machine := New(Options{Out: &bytes.Buffer{}})
	_, err := machine.Interpret(string(source), main)

	var fault *RuntimeError
	if !errors.As(err, &fault) || fault.Kind != FaultCircularImport {
		t.Fatalf("expected circular-import fault, got %v", err)
	}
	if !strings.Contains(fault.Message, "a.luma -> b.luma -> a.luma") {
		t.Fatalf("unexpected cycle chain: %s", fault.Message)
	}
}

func TestImportMissingModuleFault(t *testing.T) {
	fault := runVMFault(t, `import("no_such_module")`)
	if fault.Kind != FaultImport {
		t.Fatalf("expected import fault, got %s", fault.Kind)
	}
}
