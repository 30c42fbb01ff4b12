// Package sema implements Korlang's two-pass semantic analyzer:
// predeclaration followed by body checking, generic instantiation,
// interface conformance, and sealed-type enforcement. Bindings live in
// a lexical scope stack, and predeclaration fans out across an
// errgroup so independent top-level items are checked concurrently.
package sema

import (
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/korlang-lang/korlang/internal/ast"
	"github.com/korlang-lang/korlang/internal/diag"
	"github.com/korlang-lang/korlang/internal/sema/checkers"
	"github.com/korlang-lang/korlang/internal/sema/pattern"
	"github.com/korlang-lang/korlang/internal/types"
)

// FuncSig is a predeclared function or extension-method signature.
type FuncSig struct {
	Generics   []ast.GenericParam
	Params     []types.Type
	ParamNames []string
	Result     types.Type
	NoGC       bool
	Receiver   *types.Type // non-nil for extension methods
}

// Options configures an Analyzer, with every field falling back to an
// environment variable when left unset.
type Options struct {
	// Permissive downgrades unification to a no-op, overridable by
	// KORLANG_SEMA_PERMISSIVE=1 when left unset.
	Permissive *bool
}

// Analyzer walks a parsed Program and type-checks it. All mutable
// state below is protected by mu for the predeclaration fan-out.
type Analyzer struct {
	mu sync.RWMutex

	permissive bool

	structs    map[string]*ast.StructDecl
	enums      map[string]*ast.EnumDecl
	views      map[string]*ast.ViewDecl
	resources  map[string]*ast.ResourceDecl
	interfaces map[string]*ast.InterfaceDecl
	aliases    map[string]types.Type
	sealed     map[string][]string // sealed name -> child type names

	funcs      map[string]*FuncSig
	extensions map[string]map[string]*FuncSig // method name -> receiver type string -> sig

	root *scopes

	bagMu sync.Mutex
	bag   diag.Bag
}

// New builds an Analyzer, reading KORLANG_SEMA_PERMISSIVE from the
// environment when opts.Permissive is unset.
func New(opts Options) *Analyzer {
	permissive := os.Getenv("KORLANG_SEMA_PERMISSIVE") == "1"
	if opts.Permissive != nil {
		permissive = *opts.Permissive
	}
	return &Analyzer{
		permissive: permissive,
		structs:    map[string]*ast.StructDecl{},
		enums:      map[string]*ast.EnumDecl{},
		views:      map[string]*ast.ViewDecl{},
		resources:  map[string]*ast.ResourceDecl{},
		interfaces: map[string]*ast.InterfaceDecl{},
		aliases:    map[string]types.Type{},
		sealed:     map[string][]string{},
		funcs:      map[string]*FuncSig{},
		extensions: map[string]map[string]*FuncSig{},
		root:       newScopes(),
	}
}

func (a *Analyzer) addDiag(d diag.Diagnostic) {
	a.bagMu.Lock()
	a.bag.Add(d)
	a.bagMu.Unlock()
}

// Analyze runs the predeclaration pass, then body checking, returning
// the accumulated diagnostics.
func (a *Analyzer) Analyze(prog *ast.Program) *diag.Bag {
	a.predeclare(prog)
	a.checkBodies(prog)
	return &a.bag
}

// ---- pass 1: predeclaration ----

func (a *Analyzer) predeclare(prog *ast.Program) {
	var g errgroup.Group
	for _, item := range prog.Items {
		item := item
		g.Go(func() error {
			a.predeclareItem(item)
			return nil
		})
	}
	_ = g.Wait() // predeclareItem never returns an error; diagnostics go to a.bag
}

func (a *Analyzer) predeclareItem(item ast.Item) {
	switch v := item.(type) {
	case *ast.StructDecl:
		a.mu.Lock()
		a.structs[v.Name] = v
		a.mu.Unlock()
	case *ast.EnumDecl:
		a.mu.Lock()
		a.enums[v.Name] = v
		a.mu.Unlock()
	case *ast.ViewDecl:
		a.mu.Lock()
		a.views[v.Name] = v
		a.mu.Unlock()
	case *ast.ResourceDecl:
		a.mu.Lock()
		a.resources[v.Name] = v
		a.mu.Unlock()
	case *ast.InterfaceDecl:
		a.mu.Lock()
		a.interfaces[v.Name] = v
		a.mu.Unlock()
	case *ast.TypeAliasDecl:
		t := a.resolveTypeRef(v.Target, genericSet(v.Generics))
		a.mu.Lock()
		a.aliases[v.Name] = t
		a.mu.Unlock()
	case *ast.SealedDecl:
		var children []string
		for _, child := range v.Children {
			switch c := child.(type) {
			case *ast.StructDecl:
				children = append(children, c.Name)
				a.mu.Lock()
				a.structs[c.Name] = c
				a.mu.Unlock()
			case *ast.EnumDecl:
				children = append(children, c.Name)
				a.mu.Lock()
				a.enums[c.Name] = c
				a.mu.Unlock()
			}
		}
		a.mu.Lock()
		a.sealed[v.Name] = children
		a.mu.Unlock()
	case *ast.FunDecl:
		sig := a.buildSig(v)
		if v.Receiver != nil {
			recvT := a.resolveTypeRef(v.Receiver.Type, genericSet(v.Generics))
			sig.Receiver = &recvT
			a.mu.Lock()
			if a.extensions[v.Name] == nil {
				a.extensions[v.Name] = map[string]*FuncSig{}
			}
			a.extensions[v.Name][recvT.Name] = sig
			a.mu.Unlock()
		} else {
			a.mu.Lock()
			a.funcs[v.Name] = sig
			a.mu.Unlock()
		}
	case *ast.ConstDecl:
		c := &checker{a: a, scopes: newScopes(), generics: nil}
		var vt types.Type
		if v.Value != nil {
			vt = c.checkExpr(v.Value)
		} else {
			vt = types.Nothing()
		}
		declared := vt
		if v.Type != nil {
			declared = a.resolveTypeRef(v.Type, nil)
			c.unify(declared, vt, v.Span(), "const initializer")
		}
		a.mu.Lock()
		a.root.defineRoot(&Symbol{Name: v.Name, Type: declared})
		a.mu.Unlock()
	case *ast.StmtItem:
		// Top-level bare statements contribute no declarations; they
		// run in order during body checking.
	}
}

func (a *Analyzer) buildSig(fd *ast.FunDecl) *FuncSig {
	gs := genericSet(fd.Generics)
	params := make([]types.Type, len(fd.Params))
	names := make([]string, len(fd.Params))
	for i, p := range fd.Params {
		params[i] = a.resolveTypeRef(p.Type, gs)
		names[i] = p.Name
	}
	result := types.Unit()
	if fd.Return != nil {
		result = a.resolveTypeRef(fd.Return, gs)
	}
	return &FuncSig{Generics: fd.Generics, Params: params, ParamNames: names, Result: result, NoGC: fd.NoGC}
}

func genericSet(gs []ast.GenericParam) map[string]string {
	if len(gs) == 0 {
		return nil
	}
	m := make(map[string]string, len(gs))
	for _, g := range gs {
		m[g.Name] = g.Constraint
	}
	return m
}

// resolveTypeRef maps a syntactic TypeRef to a semantic Type. generics,
// if non-nil, names the generic parameters in scope for this
// declaration (param name -> constraint); an unqualified name found
// there resolves to a Parameter type instead of a Named type.
func (a *Analyzer) resolveTypeRef(t ast.TypeRef, generics map[string]string) types.Type {
	if t == nil {
		return types.Unit()
	}
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
		}
		if constraint, ok := generics[v.Name]; ok && len(v.Generics) == 0 {
			return types.Parameter(v.Name, constraint)
		}
		gens := make([]types.Type, len(v.Generics))
		for i, g := range v.Generics {
			gens[i] = a.resolveTypeRef(g, generics)
		}
		return types.Named(v.Name, gens...)
	case *ast.TupleTypeRef:
		elems := make([]types.Type, len(v.Elems))
		for i, e := range v.Elems {
			elems[i] = a.resolveTypeRef(e, generics)
		}
		return types.TupleOf(elems...)
	case *ast.ArrayTypeRef:
		return types.ArrayOf(a.resolveTypeRef(v.Elem, generics))
	case *ast.TensorTypeRef:
		return types.TensorOf(a.resolveTypeRef(v.Elem, generics), v.Dims)
	case *ast.OptionalTypeRef:
		return types.Optional(a.resolveTypeRef(v.Elem, generics))
	case *ast.NonNullTypeRef:
		return a.resolveTypeRef(v.Elem, generics)
	default:
		return types.Unknown()
	}
}

// lookupRoot looks up a predeclared top-level constant, the one binding
// every per-function scope stack starts without: funcs/structs/etc. are
// looked up in their own maps, but a const lives in the scope chain so
// it unifies and reassigns like any other symbol.
func (a *Analyzer) lookupRoot(name string) (*Symbol, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.root.lookup(name)
}

// fieldsOf returns the declared fields of a struct/view/resource type
// by name, for member access and pattern checking.
func (a *Analyzer) fieldsOf(name string) ([]ast.Field, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if s, ok := a.structs[name]; ok {
		return s.Fields, true
	}
	if v, ok := a.views[name]; ok {
		return v.Fields, true
	}
	if r, ok := a.resources[name]; ok {
		return r.Fields, true
	}
	return nil, false
}

func (a *Analyzer) variantFieldsOf(enumName, variant string) ([]ast.Field, string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	lookup := func(e *ast.EnumDecl) ([]ast.Field, string, bool) {
		for _, v := range e.Variants {
			if v.Name == variant {
				return v.Fields, e.Name, true
			}
		}
		return nil, "", false
	}
	if enumName != "" {
		if e, ok := a.enums[enumName]; ok {
			return lookup(e)
		}
		return nil, "", false
	}
	for _, e := range a.enums {
		if fields, owner, ok := lookup(e); ok {
			return fields, owner, true
		}
	}
	return nil, "", false
}

func (a *Analyzer) sealedChildren(name string) ([]string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	children, ok := a.sealed[name]
	return children, ok
}

func (a *Analyzer) isNoGCFunc(name string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if f, ok := a.funcs[name]; ok {
		return f.NoGC
	}
	return false
}

// ---- pass 2: body checking ----

func (a *Analyzer) checkBodies(prog *ast.Program) {
	var g errgroup.Group
	for _, item := range prog.Items {
		item := item
		g.Go(func() error {
			a.checkItem(item)
			return nil
		})
	}
	_ = g.Wait()
}

func (a *Analyzer) checkItem(item ast.Item) {
	switch v := item.(type) {
	case *ast.FunDecl:
		a.checkFunDecl(v)
	case *ast.StructDecl:
		a.checkImplements(v)
	case *ast.StmtItem:
		c := &checker{a: a, scopes: newScopes(), generics: nil}
		c.checkStmt(v.Stmt)
	}
}

func (a *Analyzer) checkImplements(sd *ast.StructDecl) {
	for _, ifaceName := range sd.Implements {
		a.mu.RLock()
		iface, ok := a.interfaces[ifaceName]
		a.mu.RUnlock()
		if !ok {
			continue
		}
		for _, m := range iface.Methods {
			a.mu.RLock()
			_, has := a.extensions[m.Name][sd.Name]
			a.mu.RUnlock()
			if !has {
				a.addDiag(diag.Errorf(sd.Span(), "struct %q does not implement method %q required by interface %q", sd.Name, m.Name, ifaceName))
			}
		}
	}
}

func (a *Analyzer) checkFunDecl(fd *ast.FunDecl) {
	gs := genericSet(fd.Generics)
	c := &checker{a: a, scopes: newScopes(), generics: gs, currentReturn: a.resolveTypeRef(fd.Return, gs)}

	c.scopes.push()
	if fd.Receiver != nil {
		c.scopes.define(&Symbol{Name: fd.Receiver.Name, Type: a.resolveTypeRef(fd.Receiver.Type, gs)})
	}
	for _, p := range fd.Params {
		c.scopes.define(&Symbol{Name: p.Name, Type: a.resolveTypeRef(p.Type, gs), Mutable: true})
	}
	c.checkBlock(fd.Body)
	c.scopes.pop()

	// Escape and move checks run over every function; borrow, lifetime,
	// and the @nogc discipline itself are wired only for @nogc-marked
	// functions (see DESIGN.md's resolution of the open question).
	esc := checkers.NewEscapeChecker()
	esc.Check(fd.Body)
	mv := checkers.NewMoveChecker(&a.bag)
	mv.Check(fd.Body)

	if fd.NoGC {
		bw := checkers.NewBorrowChecker(&a.bag)
		bw.Check(fd.Body)
		lt := checkers.NewLifetimeChecker(&a.bag)
		for _, p := range fd.Params {
			lt.BindParam(p.Name)
		}
		lt.Check(fd.Body)
		checkers.CheckNoGC(fd.Body, a.isNoGCFunc, &a.bag)
	}
}

// checker holds the per-function state for body checking: its own
// scope stack plus the generic-parameter context of its declaration.
type checker struct {
	a             *Analyzer
	scopes        *scopes
	generics      map[string]string
	currentReturn types.Type
}

func (c *checker) unify(expected, actual types.Type, span diag.Span, what string) {
	if c.a.permissive {
		return
	}
	if !types.Unify(expected, actual) {
		c.a.addDiag(diag.Errorf(span, "type mismatch in %s: expected %s, found %s", what, expected, actual))
	}
}

func (c *checker) checkBlock(b *ast.Block) types.Type {
	if b == nil {
		return types.Unit()
	}
	c.scopes.push()
	defer c.scopes.pop()
	for _, s := range b.Stmts {
		c.checkStmt(s)
	}
	if b.Tail != nil {
		return c.checkExpr(b.Tail)
	}
	return types.Unit()
}

func (c *checker) checkStmt(s ast.Stmt) types.Type {
	switch v := s.(type) {
	case *ast.VarStmt:
		var vt types.Type
		if v.Value != nil {
			vt = c.checkExpr(v.Value)
		} else {
			vt = types.Nothing()
		}
		declared := vt
		if v.Type != nil {
			declared = c.a.resolveTypeRef(v.Type, c.generics)
			c.unify(declared, vt, v.Span(), "let/var initializer")
		}
		if !c.scopes.define(&Symbol{Name: v.Name, Type: declared, Mutable: v.Mutable}) {
			c.a.addDiag(diag.Errorf(v.Span(), "redefinition of %q in the same scope", v.Name))
		}
		return types.Unit()
	case *ast.ExprStmt:
		c.checkExpr(v.Value)
		return types.Unit()
	case *ast.ReturnStmt:
		if v.Value != nil {
			rt := c.checkExpr(v.Value)
			c.unify(c.currentReturn, rt, v.Span(), "return")
		}
		return types.Unit()
	case *ast.BreakStmt, *ast.ContinueStmt:
		return types.Unit()
	case *ast.IfStmt:
		c.checkExpr(v.Cond)
		c.checkBlock(v.Then)
		switch e := v.Else.(type) {
		case *ast.Block:
			c.checkBlock(e)
		case *ast.IfStmt:
			c.checkStmt(e)
		}
		return types.Unit()
	case *ast.WhileStmt:
		c.checkExpr(v.Cond)
		c.checkBlock(v.Body)
		return types.Unit()
	case *ast.ForInStmt:
		ct := c.checkExpr(v.Collection)
		var elemT types.Type
		switch {
		case ct.Cat == types.ArrayCat:
			elemT = *ct.Elem
		case ct.Cat == types.AnyCat || ct.Cat == types.UnknownCat:
			elemT = types.Unknown()
		default:
			c.a.addDiag(diag.Errorf(v.Collection.Span(), "for-in requires an Array, found %s", ct))
			elemT = types.Unknown()
		}
		c.scopes.push()
		c.scopes.define(&Symbol{Name: v.Var, Type: elemT, Mutable: true})
		for _, st := range v.Body.Stmts {
			c.checkStmt(st)
		}
		if v.Body.Tail != nil {
			c.checkExpr(v.Body.Tail)
		}
		c.scopes.pop()
		return types.Unit()
	case *ast.MatchStmt:
		c.checkMatch(v.Match)
		return types.Unit()
	case *ast.BlockStmt:
		return c.checkBlock(v.Block)
	default:
		return types.Unit()
	}
}

func (c *checker) checkExpr(e ast.Expr) types.Type {
	switch v := e.(type) {
	case *ast.Literal:
		switch v.Kind {
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
	case *ast.InterpolatedString:
		for _, ex := range v.Exprs {
			c.checkExpr(ex)
		}
		return types.String()
	case *ast.Ident:
		if sym, ok := c.scopes.lookup(v.Name); ok {
			return sym.Type
		}
		if sym, ok := c.a.lookupRoot(v.Name); ok {
			return sym.Type
		}
		c.a.mu.RLock()
		_, isFunc := c.a.funcs[v.Name]
		c.a.mu.RUnlock()
		if isFunc {
			return types.Unknown()
		}
		c.a.addDiag(diag.Errorf(v.Span(), "undefined identifier %q", v.Name))
		return types.Unknown()
	case *ast.StructLit:
		return types.Named(v.Type)
	case *ast.ArrayLit:
		var elem types.Type = types.Unknown()
		for i, el := range v.Elems {
			t := c.checkExpr(el)
			if i == 0 {
				elem = t
			}
		}
		return types.ArrayOf(elem)
	case *ast.TensorLit:
		var elem types.Type = types.Unknown()
		for i, el := range v.Elems {
			t := c.checkExpr(el)
			if i == 0 {
				elem = t
			}
		}
		return types.TensorOf(elem, v.Shape)
	case *ast.Unary:
		t := c.checkExpr(v.Operand)
		if v.Op != ast.UnaryNot && !t.IsNumeric() && t.Cat != types.AnyCat && t.Cat != types.UnknownCat {
			c.a.addDiag(diag.Errorf(v.Span(), "unary operator requires a numeric operand, found %s", t))
		}
		return t
	case *ast.Binary:
		return c.checkBinary(v)
	case *ast.Assign:
		return c.checkAssign(v)
	case *ast.Call:
		return c.checkCall(v)
	case *ast.Member:
		return c.checkMember(v)
	case *ast.Index:
		return c.checkIndex(v)
	case *ast.If:
		c.checkExpr(v.Cond)
		thenT := c.checkBlock(v.Then)
		var elseT types.Type = types.Unit()
		switch el := v.Else.(type) {
		case *ast.Block:
			elseT = c.checkBlock(el)
		case *ast.If:
			elseT = c.checkExpr(el)
		}
		return types.Join(thenT, elseT)
	case *ast.Match:
		return c.checkMatch(v)
	case *ast.Block:
		return c.checkBlock(v)
	default:
		return types.Unknown()
	}
}

func (c *checker) checkBinary(b *ast.Binary) types.Type {
	lt := c.checkExpr(b.Left)
	rt := c.checkExpr(b.Right)
	switch b.Op {
	case ast.Lt, ast.Le, ast.Gt, ast.Ge, ast.Eq, ast.Ne, ast.And, ast.Or:
		return types.Bool()
	case ast.Add, ast.Sub, ast.Mul, ast.Div, ast.Mod,
		ast.TAdd, ast.TSub, ast.TMul, ast.TDiv, ast.MatMul:
		if lt.Cat == types.StringCat || rt.Cat == types.StringCat {
			return types.String()
		}
		if !numericish(lt) || !numericish(rt) {
			c.a.addDiag(diag.Errorf(b.Span(), "arithmetic operator requires numeric operands, found %s and %s", lt, rt))
			return types.Unknown()
		}
		if lt.Cat == types.FloatCat || rt.Cat == types.FloatCat {
			return types.Float()
		}
		return lt
	case ast.NullCoalesce:
		if lt.Cat == types.OptionalCat {
			return types.Join(*lt.Elem, rt)
		}
		return lt
	default:
		return lt
	}
}

func numericish(t types.Type) bool {
	return t.IsNumeric() || t.Cat == types.AnyCat || t.Cat == types.UnknownCat
}

func (c *checker) checkAssign(as *ast.Assign) types.Type {
	rt := c.checkExpr(as.Value)
	if id, ok := as.Target.(*ast.Ident); ok {
		if sym, ok := c.scopes.lookup(id.Name); ok {
			switch {
			case sym.Type.Cat == types.NothingCat:
				sym.Type = rt
			case sym.Type.Cat == types.OptionalCat:
				c.unify(sym.Type, rt, as.Span(), "assignment")
			default:
				c.unify(sym.Type, rt, as.Span(), "assignment")
			}
			return sym.Type
		}
		if sym, ok := c.a.lookupRoot(id.Name); ok {
			c.a.addDiag(diag.Errorf(id.Span(), "cannot assign to constant %q", id.Name))
			return sym.Type
		}
		c.a.addDiag(diag.Errorf(id.Span(), "undefined identifier %q", id.Name))
		return types.Unknown()
	}
	c.checkExpr(as.Target)
	return rt
}

func (c *checker) checkCall(call *ast.Call) types.Type {
	switch callee := call.Callee.(type) {
	case *ast.Member:
		recvT := c.checkExpr(callee.Receiver)
		sig := c.lookupExtension(callee.Name, recvT)
		if sig == nil {
			c.a.addDiag(diag.Errorf(call.Span(), "no method %q found for receiver type %s", callee.Name, recvT))
			for _, a := range call.Args {
				c.checkExpr(a)
			}
			return types.Unknown()
		}
		c.checkArgs(call, sig)
		return sig.Result
	case *ast.Ident:
		c.a.mu.RLock()
		sig, ok := c.a.funcs[callee.Name]
		c.a.mu.RUnlock()
		if !ok {
			for _, a := range call.Args {
				c.checkExpr(a)
			}
			c.a.addDiag(diag.Errorf(call.Span(), "call to undefined function %q", callee.Name))
			return types.Unknown()
		}
		if len(sig.Generics) > 0 {
			return c.checkGenericCall(call, sig)
		}
		c.checkArgs(call, sig)
		return sig.Result
	default:
		c.checkExpr(call.Callee)
		for _, a := range call.Args {
			c.checkExpr(a)
		}
		return types.Unknown()
	}
}

func (c *checker) checkArgs(call *ast.Call, sig *FuncSig) {
	if len(call.Args) != len(sig.Params) {
		c.a.addDiag(diag.Errorf(call.Span(), "argument count mismatch: expected %d, found %d", len(sig.Params), len(call.Args)))
		for _, a := range call.Args {
			c.checkExpr(a)
		}
		return
	}
	for i, a := range call.Args {
		at := c.checkExpr(a)
		c.unify(sig.Params[i], at, a.Span(), "call argument")
	}
}

func (c *checker) checkGenericCall(call *ast.Call, sig *FuncSig) types.Type {
	subst := map[string]types.Type{}
	for i, gp := range sig.Generics {
		if i >= len(call.GenericArgs) {
			break
		}
		argT := c.a.resolveTypeRef(call.GenericArgs[i], c.generics)
		if !types.SatisfiesConstraint(gp.Constraint, argT) {
			c.a.addDiag(diag.Errorf(call.Span(), "type argument %s does not satisfy constraint %q for parameter %q", argT, gp.Constraint, gp.Name))
		}
		subst[gp.Name] = argT
	}
	if len(call.Args) != len(sig.Params) {
		c.a.addDiag(diag.Errorf(call.Span(), "argument count mismatch: expected %d, found %d", len(sig.Params), len(call.Args)))
		for _, a := range call.Args {
			c.checkExpr(a)
		}
		return types.ApplySubst(sig.Result, subst)
	}
	for i, a := range call.Args {
		at := c.checkExpr(a)
		if p := sig.Params[i]; p.Cat == types.ParameterCat {
			if _, bound := subst[p.Name]; !bound {
				if at.Cat != types.UnknownCat && !types.SatisfiesConstraint(p.Constraint, at) {
					c.a.addDiag(diag.Errorf(a.Span(), "type argument %s does not satisfy constraint %q for parameter %q", at, p.Constraint, p.Name))
				}
				subst[p.Name] = at
			}
		}
		expected := types.ApplySubst(sig.Params[i], subst)
		c.unify(expected, at, a.Span(), "call argument")
	}
	return types.ApplySubst(sig.Result, subst)
}

func (c *checker) lookupExtension(method string, recv types.Type) *FuncSig {
	c.a.mu.RLock()
	defer c.a.mu.RUnlock()
	byRecv, ok := c.a.extensions[method]
	if !ok {
		return nil
	}
	if sig, ok := byRecv[recv.Name]; ok {
		return sig
	}
	return nil
}

func (c *checker) checkMember(m *ast.Member) types.Type {
	recvT := c.checkExpr(m.Receiver)
	if recvT.Cat == types.OptionalCat {
		c.a.addDiag(diag.Warnf(m.Span(), "member access on Optional(%s): continuing with the unwrapped type", recvT.Elem))
		recvT = *recvT.Elem
	}
	if recvT.Cat == types.NamedCat {
		if fields, ok := c.a.fieldsOf(recvT.Name); ok {
			for _, f := range fields {
				if f.Name == m.Name {
					return c.a.resolveTypeRef(f.Type, nil)
				}
			}
		}
		if sig := c.lookupExtension(m.Name, recvT); sig != nil {
			return sig.Result
		}
		c.a.addDiag(diag.Errorf(m.Span(), "type %s has no member %q", recvT, m.Name))
		return types.Unknown()
	}
	return types.Unknown()
}

func (c *checker) checkIndex(ix *ast.Index) types.Type {
	recvT := c.checkExpr(ix.Receiver)
	c.checkExpr(ix.Idx)
	switch {
	case recvT.Cat == types.ArrayCat:
		return *recvT.Elem
	case recvT.Cat == types.NamedCat && recvT.Name == "List":
		return types.Unknown()
	case recvT.Cat == types.AnyCat || recvT.Cat == types.UnknownCat:
		return types.Unknown()
	default:
		c.a.addDiag(diag.Errorf(ix.Span(), "type %s does not support indexing", recvT))
		return types.Unknown()
	}
}

func (c *checker) checkMatch(m *ast.Match) types.Type {
	scrutT := c.checkExpr(m.Scrutinee)
	var result types.Type
	for i, arm := range m.Arms {
		c.scopes.push()
		binds := pattern.Check(arm.Pattern, scrutT, c.a.fieldsOf, c.a.variantFieldsOf, &c.a.bag)
		for _, b := range binds {
			c.scopes.define(&Symbol{Name: b.Name, Type: b.Type})
		}
		if arm.Guard != nil {
			c.checkExpr(arm.Guard)
		}
		bt := c.checkExpr(arm.Body)
		c.scopes.pop()
		if i == 0 {
			result = bt
		} else {
			result = types.Join(result, bt)
		}
	}
	pattern.CheckExhaustiveness(scrutT, m.Arms, c.a.sealedChildren, m.Span(), &c.a.bag)
	if result.Cat == 0 && len(m.Arms) == 0 {
		return types.Unit()
	}
	return result
}
