package codegen

import (
	"testing"

	"github.com/korlang-lang/korlang/internal/ast"
	"github.com/korlang-lang/korlang/internal/llvmir"
	"github.com/korlang-lang/korlang/internal/parser"
)

func mustParse(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, bag := parser.Parse(src)
	if bag.HasErrors() {
		t.Fatalf("parse errors for %q: %v", src, bag.Errors())
	}
	return prog
}

func TestConstantFoldingOfReturnExpression(t *testing.T) {
	prog := mustParse(t, `fun main() -> Int { return 1 + 2; }`)
	mod, bag := New().Generate(prog)
	if bag.HasErrors() {
		t.Fatalf("unexpected codegen errors: %v", bag.Errors())
	}
	fn, ok := mod.Lookup("main")
	if !ok || len(fn.Blocks) != 1 {
		t.Fatalf("main not emitted: %#v", fn)
	}
	instrs := fn.Blocks[0].Instrs
	last := instrs[len(instrs)-1]
	if last.Op != "ret" || len(last.Operands) != 1 || last.Operands[0].ConstInt != 3 {
		t.Fatalf("expected a folded ret 3, got %#v", last)
	}
}

func TestConstantFoldingOfTailExpression(t *testing.T) {
	prog := mustParse(t, `fun f() -> Int { 1 + 2 * 3 }`)
	mod, bag := New().Generate(prog)
	if bag.HasErrors() {
		t.Fatalf("unexpected codegen errors: %v", bag.Errors())
	}
	fn, _ := mod.Lookup("f")
	instrs := fn.Blocks[0].Instrs
	last := instrs[len(instrs)-1]
	if last.Operands[0].ConstInt != 7 {
		t.Fatalf("expected tail fold to 7, got %#v", last)
	}
}

func TestImportLoweringDeclaresExternAndCalls(t *testing.T) {
	prog := mustParse(t, `
fun f() -> Unit {
	@import("sym");
}
`)
	mod, bag := New().Generate(prog)
	if bag.HasErrors() {
		t.Fatalf("unexpected codegen errors: %v", bag.Errors())
	}
	extern, ok := mod.Lookup("sym")
	if !ok || !extern.Extern || extern.Result != llvmir.Void {
		t.Fatalf("expected a void no-arg extern %q, got %#v", "sym", extern)
	}
	fn, _ := mod.Lookup("f")
	found := false
	for _, ins := range fn.Blocks[0].Instrs {
		if ins.Op == "call" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a call instruction to the extern, got %#v", fn.Blocks[0].Instrs)
	}
}

func TestZeroReturnWhenNothingFoldable(t *testing.T) {
	prog := mustParse(t, `fun g() -> Int { let x = 1; }`)
	mod, bag := New().Generate(prog)
	if bag.HasErrors() {
		t.Fatalf("unexpected codegen errors: %v", bag.Errors())
	}
	fn, _ := mod.Lookup("g")
	instrs := fn.Blocks[0].Instrs
	last := instrs[len(instrs)-1]
	if last.Op != "ret" || last.Operands[0].ConstInt != 0 {
		t.Fatalf("expected a zero-value ret, got %#v", last)
	}
}

func TestDeclarePassMapsTypes(t *testing.T) {
	prog := mustParse(t, `fun h(a: Int, b: Bool, c: String) -> Float { 1.5 }`)
	mod, _ := New().Generate(prog)
	fn, ok := mod.Lookup("h")
	if !ok {
		t.Fatalf("h not declared")
	}
	if fn.Result != llvmir.F64 {
		t.Fatalf("expected F64 result, got %v", fn.Result)
	}
}
