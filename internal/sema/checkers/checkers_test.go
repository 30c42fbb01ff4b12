package checkers

import (
	"testing"

	"github.com/korlang-lang/korlang/internal/ast"
	"github.com/korlang-lang/korlang/internal/diag"
	"github.com/korlang-lang/korlang/internal/parser"
)

func parseBody(t *testing.T, src string) *ast.Block {
	t.Helper()
	prog, bag := parser.Parse(src)
	if bag.HasErrors() {
		t.Fatalf("parse errors: %v", bag.Errors())
	}
	fd := prog.Items[0].(*ast.FunDecl)
	return fd.Body
}

func TestEscapeChecker(t *testing.T) {
	body := parseBody(t, "fun f(x: Int, y: Int) -> Int { foo(x); return y; }")
	c := NewEscapeChecker()
	c.Check(body)
	if !c.Escaping["x"] {
		t.Errorf("x should escape via call argument")
	}
	if !c.Escaping["y"] {
		t.Errorf("y should escape via return")
	}
}

func TestMoveCheckerDetectsUseAfterMove(t *testing.T) {
	body := parseBody(t, "fun f(x: Int) -> Unit { foo(x); foo(x); }")
	var bag diag.Bag
	c := NewMoveChecker(&bag)
	c.Check(body)
	if !bag.HasErrors() {
		t.Fatalf("expected a use-after-move error")
	}
}

func TestMoveCheckerClearsOnReassignment(t *testing.T) {
	body := parseBody(t, "fun f(x: Int) -> Unit { foo(x); x = 1; foo(x); }")
	var bag diag.Bag
	c := NewMoveChecker(&bag)
	c.Check(body)
	if bag.HasErrors() {
		t.Fatalf("reassignment should clear moved state: %v", bag.Errors())
	}
}

func TestLifetimeCheckerFlagsShortLivedAssignment(t *testing.T) {
	body := parseBody(t, `
fun f() -> Unit {
	let outer = 0;
	if outer > 0 {
		let inner = 1;
		outer = inner;
	}
}
`)
	var bag diag.Bag
	c := NewLifetimeChecker(&bag)
	c.Check(body)
	if !bag.HasErrors() {
		t.Fatalf("expected a lifetime violation assigning a nested binding outward")
	}
}

func TestCheckNoGCRejectsArrayLiteral(t *testing.T) {
	body := parseBody(t, "fun f() -> Unit { let a = [1, 2, 3]; }")
	var bag diag.Bag
	CheckNoGC(body, func(string) bool { return true }, &bag)
	if !bag.HasErrors() {
		t.Fatalf("expected an @nogc allocation error")
	}
}

func TestCheckNoGCRejectsNonNoGCCall(t *testing.T) {
	body := parseBody(t, "fun f() -> Unit { helper(); }")
	var bag diag.Bag
	CheckNoGC(body, func(string) bool { return false }, &bag)
	if !bag.HasErrors() {
		t.Fatalf("expected a call-to-non-@nogc error")
	}
}

func TestCheckNoGCAllowsNoGCCall(t *testing.T) {
	body := parseBody(t, "fun f() -> Unit { helper(); }")
	var bag diag.Bag
	CheckNoGC(body, func(string) bool { return true }, &bag)
	if bag.HasErrors() {
		t.Fatalf("unexpected errors: %v", bag.Errors())
	}
}
