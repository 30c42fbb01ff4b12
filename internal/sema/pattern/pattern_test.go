package pattern

import (
	"testing"

	"github.com/korlang-lang/korlang/internal/ast"
	"github.com/korlang-lang/korlang/internal/diag"
	"github.com/korlang-lang/korlang/internal/types"
)

func noStructFields(string) ([]ast.Field, bool) { return nil, false }
func noVariantFields(string, string) ([]ast.Field, string, bool) { return nil, "", false }

func TestIdentPatternBinds(t *testing.T) {
	var bag diag.Bag
	pat := &ast.IdentPattern{Name: "x"}
	binds := Check(pat, types.Int(), noStructFields, noVariantFields, &bag)
	if bag.HasErrors() {
		t.Fatalf("unexpected errors: %v", bag.Errors())
	}
	if len(binds) != 1 || binds[0].Name != "x" || binds[0].Type.Cat != types.IntCat {
		t.Fatalf("binds = %#v", binds)
	}
}

func TestLiteralPatternMismatch(t *testing.T) {
	var bag diag.Bag
	pat := &ast.LiteralPattern{Lit: &ast.Literal{Kind: ast.LitString, Text: "x"}}
	Check(pat, types.Int(), noStructFields, noVariantFields, &bag)
	if !bag.HasErrors() {
		t.Fatalf("expected a type mismatch error")
	}
}

func TestTuplePatternBindsElementwise(t *testing.T) {
	var bag diag.Bag
	pat := &ast.TuplePattern{Elems: []ast.Pattern{
		&ast.IdentPattern{Name: "a"},
		&ast.IdentPattern{Name: "b"},
	}}
	expected := types.TupleOf(types.Int(), types.Bool())
	binds := Check(pat, expected, noStructFields, noVariantFields, &bag)
	if bag.HasErrors() {
		t.Fatalf("unexpected errors: %v", bag.Errors())
	}
	if len(binds) != 2 || binds[0].Type.Cat != types.IntCat || binds[1].Type.Cat != types.BoolCat {
		t.Fatalf("binds = %#v", binds)
	}
}

func TestExhaustivenessMissingVariant(t *testing.T) {
	var bag diag.Bag
	arms := []ast.MatchArm{
		{Pattern: &ast.VariantPattern{Variant: "A"}},
	}
	sealedChildren := func(name string) ([]string, bool) {
		if name == "Shape" {
			return []string{"A", "B"}, true
		}
		return nil, false
	}
	CheckExhaustiveness(types.Named("Shape"), arms, sealedChildren, diag.Span{}, &bag)
	if !bag.HasErrors() {
		t.Fatalf("expected a missing-variant error")
	}
}

func TestExhaustivenessWildcardCatchAll(t *testing.T) {
	var bag diag.Bag
	arms := []ast.MatchArm{
		{Pattern: &ast.VariantPattern{Variant: "A"}},
		{Pattern: &ast.WildcardPattern{}},
	}
	sealedChildren := func(name string) ([]string, bool) { return []string{"A", "B"}, true }
	CheckExhaustiveness(types.Named("Shape"), arms, sealedChildren, diag.Span{}, &bag)
	if bag.HasErrors() {
		t.Fatalf("wildcard arm should make the match exhaustive: %v", bag.Errors())
	}
}
