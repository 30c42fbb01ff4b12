package sema

import (
	"strings"
	"testing"

	"github.com/korlang-lang/korlang/internal/diag"
	"github.com/korlang-lang/korlang/internal/parser"
)

func mustAnalyze(t *testing.T, src string) *diag.Bag {
	t.Helper()
	prog, pbag := parser.Parse(src)
	if pbag.HasErrors() {
		t.Fatalf("parse errors for %q: %v", src, pbag.Errors())
	}
	a := New(Options{})
	return a.Analyze(prog)
}

func hasErrorContaining(bag *diag.Bag, sub string) bool {
	for _, d := range bag.Errors() {
		if strings.Contains(d.Message, sub) {
			return true
		}
	}
	return false
}

func TestArgumentCountMismatch(t *testing.T) {
	bag := mustAnalyze(t, `
fun add(a: Int, b: Int) -> Int { a + b }
fun main() -> Int { add(1) }
`)
	if !hasErrorContaining(bag, "argument count mismatch") {
		t.Fatalf("expected 'argument count mismatch' in errors: %v", bag.Errors())
	}
}

func TestNothingRefinementThenMismatch(t *testing.T) {
	bag := mustAnalyze(t, `
fun main() -> Unit {
	var x = null;
	x = 1;
	x = true;
}
`)
	if !bag.HasErrors() {
		t.Fatalf("expected a type mismatch after refining to Int then assigning Bool")
	}
}

func TestSealedMatchNotExhaustive(t *testing.T) {
	bag := mustAnalyze(t, `
sealed Shape {
	struct A { }
	struct B { }
}
fun f(s: Shape) -> Int {
	match s {
		A{} => 1,
	}
}
`)
	if !hasErrorContaining(bag, "not exhaustive") {
		t.Fatalf("expected 'not exhaustive' in errors: %v", bag.Errors())
	}
}

func TestNoGCArrayLiteralRejected(t *testing.T) {
	bag := mustAnalyze(t, `
@nogc fun f() -> Unit {
	let a = [1, 2, 3];
}
`)
	if !hasErrorContaining(bag, "allocation not allowed in @nogc") {
		t.Fatalf("expected an @nogc allocation error: %v", bag.Errors())
	}
}

func TestUseAfterMove(t *testing.T) {
	bag := mustAnalyze(t, `
fun foo(x: Int) -> Unit { }
fun main() -> Unit {
	let x = 1;
	foo(x);
	foo(x);
}
`)
	if !hasErrorContaining(bag, "use after move") {
		t.Fatalf("expected a use-after-move error: %v", bag.Errors())
	}
}

func TestInterfaceConformance(t *testing.T) {
	bag := mustAnalyze(t, `
interface Greeter {
	fun greet() -> String
}
struct Robot implements Greeter { }
`)
	if !hasErrorContaining(bag, "does not implement method") {
		t.Fatalf("expected a missing-method conformance error: %v", bag.Errors())
	}
}

func TestGenericConstraintViolation(t *testing.T) {
	// Korlang's grammar has no explicit call-site type-argument syntax
	// (see DESIGN.md) since `<`/`>` already bind as comparison operators,
	// so T is inferred positionally from the argument's type here.
	bag := mustAnalyze(t, `
fun sum<T: Numeric>(x: T) -> T { x }
fun main() -> Unit {
	sum("hi");
}
`)
	if !hasErrorContaining(bag, "does not satisfy constraint") {
		t.Fatalf("expected a constraint-violation error: %v", bag.Errors())
	}
}

func TestConstResolvesInFunctionBody(t *testing.T) {
	bag := mustAnalyze(t, `
const MaxRetries: Int = 3;
fun main() -> Int { MaxRetries + 1 }
`)
	if bag.HasErrors() {
		t.Fatalf("unexpected errors resolving a predeclared const: %v", bag.Errors())
	}
}

func TestConstWithoutAnnotationInfersFromValue(t *testing.T) {
	bag := mustAnalyze(t, `
const Greeting = "hi";
fun main() -> String { Greeting }
`)
	if bag.HasErrors() {
		t.Fatalf("unexpected errors: %v", bag.Errors())
	}
}

func TestAssignToConstIsRejected(t *testing.T) {
	bag := mustAnalyze(t, `
const MaxRetries: Int = 3;
fun main() -> Unit { MaxRetries = 4; }
`)
	if !hasErrorContaining(bag, "cannot assign to constant") {
		t.Fatalf("expected a 'cannot assign to constant' error: %v", bag.Errors())
	}
}

// TestManyConstsPredeclareConcurrently fans out enough top-level consts
// that predeclare's errgroup runs them on different goroutines, so a run
// under -race would catch an unsynchronized a.root write.
func TestManyConstsPredeclareConcurrently(t *testing.T) {
	var src strings.Builder
	for i := 0; i < 64; i++ {
		name := "C" + string(rune('A'+i%26)) + string(rune('0'+i/26))
		src.WriteString("const " + name + ": Int = 1;\n")
	}
	bag := mustAnalyze(t, src.String())
	if bag.HasErrors() {
		t.Fatalf("unexpected errors: %v", bag.Errors())
	}
}
