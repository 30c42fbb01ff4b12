// Package pattern implements spec §4.3.2's pattern checking together
// with sealed-type exhaustiveness. Per the "two different PatternChecker
// definitions" design note, this is the sole, exhaustiveness-aware
// implementation; no non-exhaustive variant exists in this repo.
package pattern

import (
	"github.com/korlang-lang/korlang/internal/ast"
	"github.com/korlang-lang/korlang/internal/diag"
	"github.com/korlang-lang/korlang/internal/types"
)

// Binding is a name a pattern introduces, reported back to the caller
// (internal/sema) so it can be inserted into the enclosing scope —
// this package has no notion of a scope stack of its own.
type Binding struct {
	Name string
	Type types.Type
}

// StructFields looks up the declared fields of a struct/view/resource
// type by name.
type StructFields func(typeName string) ([]ast.Field, bool)

// VariantFields looks up the declared fields of an enum variant, given
// the enum name (possibly "" to mean "infer from expected") and the
// variant name.
type VariantFields func(enumName, variant string) (fields []ast.Field, ownerEnum string, ok bool)

// Check unifies pat against expected, recording diagnostics in bag and
// returning every binding the pattern introduces.
func Check(pat ast.Pattern, expected types.Type, structFields StructFields, variantFields VariantFields, bag *diag.Bag) []Binding {
	switch p := pat.(type) {
	case *ast.WildcardPattern:
		return nil

	case *ast.IdentPattern:
		return []Binding{{Name: p.Name, Type: expected}}

	case *ast.LiteralPattern:
		lt := literalType(p.Lit.Kind)
		if !types.Unify(expected, lt) {
			bag.Add(diag.Errorf(p.Span(), "pattern type %s does not match scrutinee type %s", lt, expected))
		}
		return nil

	case *ast.TuplePattern:
		if expected.Cat != types.TupleCat || len(expected.Elems) != len(p.Elems) {
			bag.Add(diag.Errorf(p.Span(), "tuple pattern of arity %d does not match scrutinee type %s", len(p.Elems), expected))
			var out []Binding
			for _, el := range p.Elems {
				out = append(out, Check(el, types.Unknown(), structFields, variantFields, bag)...)
			}
			return out
		}
		var out []Binding
		for i, el := range p.Elems {
			out = append(out, Check(el, expected.Elems[i], structFields, variantFields, bag)...)
		}
		return out

	case *ast.StructPattern:
		fields, ok := structFields(p.Type)
		var out []Binding
		for _, fp := range p.Fields {
			ft := types.Any()
			if ok {
				if decl, found := findField(fields, fp.Name); found {
					ft = resolveFieldType(decl)
				}
			}
			out = append(out, Check(fp.Pattern, ft, structFields, variantFields, bag)...)
		}
		return out

	case *ast.VariantPattern:
		enumName := p.Enum
		if enumName == "" && expected.Cat == types.NamedCat {
			enumName = expected.Name
		}
		fields, _, ok := variantFields(enumName, p.Variant)
		var out []Binding
		for i, fp := range p.Fields {
			ft := types.Any()
			if ok && i < len(fields) {
				ft = resolveFieldType(fields[i])
			}
			out = append(out, Check(fp, ft, structFields, variantFields, bag)...)
		}
		return out

	case *ast.TypeTestPattern:
		narrowed := namedFromTypeRef(p.Type)
		return []Binding{{Name: p.Name, Type: narrowed}}

	default:
		return nil
	}
}

func literalType(k ast.LiteralKind) types.Type {
	switch k {
	case ast.LitInt:
		return types.Int()
	case ast.LitFloat:
		return types.Float()
	case ast.LitBool:
		return types.Bool()
	case ast.LitChar:
		return types.Char()
	case ast.LitString:
		return types.String()
	default:
		return types.Nothing()
	}
}

func findField(fields []ast.Field, name string) (ast.Field, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return ast.Field{}, false
}

// resolveFieldType does a shallow, name-based mapping from a field's
// syntactic TypeRef to a semantic Type; this package doesn't carry a
// generic-parameter context, so a generic parameter name resolves to a
// Named type of that name — sema re-derives precise types itself where
// it matters.
func resolveFieldType(f ast.Field) types.Type {
	return namedFromTypeRef(f.Type)
}

func namedFromTypeRef(t ast.TypeRef) types.Type {
	switch v := t.(type) {
	case *ast.NamedTypeRef:
		switch v.Name {
		case "Int":
			return types.Int()
		case "UInt":
			return types.UInt()
		case "Float":
			return types.Float()
		case "Bool":
			return types.Bool()
		case "Char":
			return types.Char()
		case "String":
			return types.String()
		case "Unit":
			return types.Unit()
		case "Any":
			return types.Any()
		default:
			gens := make([]types.Type, len(v.Generics))
			for i, g := range v.Generics {
				gens[i] = namedFromTypeRef(g)
			}
			return types.Named(v.Name, gens...)
		}
	case *ast.OptionalTypeRef:
		e := namedFromTypeRef(v.Elem)
		return types.Optional(e)
	case *ast.NonNullTypeRef:
		return namedFromTypeRef(v.Elem)
	case *ast.ArrayTypeRef:
		e := namedFromTypeRef(v.Elem)
		return types.ArrayOf(e)
	case *ast.TupleTypeRef:
		elems := make([]types.Type, len(v.Elems))
		for i, e := range v.Elems {
			elems[i] = namedFromTypeRef(e)
		}
		return types.TupleOf(elems...)
	case *ast.TensorTypeRef:
		e := namedFromTypeRef(v.Elem)
		return types.TensorOf(e, v.Dims)
	default:
		return types.Unknown()
	}
}

// SealedChildren looks up the declared child type names of a sealed
// type, given its name.
type SealedChildren func(sealedName string) ([]string, bool)

// CheckExhaustiveness implements the sealed-type exhaustiveness rule:
// every declared child of a sealed scrutinee type must be named by some
// arm's pattern, unless a catch-all (wildcard or bare identifier
// binding) arm is present.
func CheckExhaustiveness(scrutinee types.Type, arms []ast.MatchArm, sealedChildren SealedChildren, span diag.Span, bag *diag.Bag) {
	if scrutinee.Cat != types.NamedCat {
		return
	}
	children, ok := sealedChildren(scrutinee.Name)
	if !ok {
		return
	}
	seen := map[string]bool{}
	for _, arm := range arms {
		switch p := arm.Pattern.(type) {
		case *ast.WildcardPattern, *ast.IdentPattern:
			return // catch-all makes the match trivially exhaustive
		case *ast.VariantPattern:
			seen[p.Variant] = true
		case *ast.StructPattern:
			seen[p.Type] = true
		}
	}
	for _, child := range children {
		if !seen[child] {
			bag.Add(diag.Errorf(span, "match is not exhaustive: missing variant %q", child))
		}
	}
}
