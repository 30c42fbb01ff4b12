// Package checkers implements Korlang's escape, move, borrow, lifetime,
// and @nogc auxiliary analysis passes. Each pass is a small stateful
// visitor over a function body, threading a single mutable state
// struct through a tree walk.
package checkers

import (
	"github.com/korlang-lang/korlang/internal/ast"
	"github.com/korlang-lang/korlang/internal/diag"
)

// ---- Escape ----

// EscapeChecker marks locals that escape their declaring frame: they
// are returned, passed as a call argument, or placed into a collection
// literal. Codegen consults Escaping to decide stack vs. heap placement.
type EscapeChecker struct {
	Escaping map[string]bool
}

func NewEscapeChecker() *EscapeChecker {
	return &EscapeChecker{Escaping: map[string]bool{}}
}

func (c *EscapeChecker) Check(body *ast.Block) {
	c.walkBlock(body)
}

func (c *EscapeChecker) mark(e ast.Expr) {
	if id, ok := e.(*ast.Ident); ok {
		c.Escaping[id.Name] = true
	}
}

func (c *EscapeChecker) walkBlock(b *ast.Block) {
	if b == nil {
		return
	}
	for _, s := range b.Stmts {
		c.walkStmt(s)
	}
	if b.Tail != nil {
		c.walkExpr(b.Tail)
	}
}

func (c *EscapeChecker) walkStmt(s ast.Stmt) {
	switch v := s.(type) {
	case *ast.VarStmt:
		if v.Value != nil {
			c.walkExpr(v.Value)
		}
	case *ast.ExprStmt:
		c.walkExpr(v.Value)
	case *ast.ReturnStmt:
		if v.Value != nil {
			c.mark(v.Value)
			c.walkExpr(v.Value)
		}
	case *ast.IfStmt:
		c.walkExpr(v.Cond)
		c.walkBlock(v.Then)
		c.walkElse(v.Else)
	case *ast.WhileStmt:
		c.walkExpr(v.Cond)
		c.walkBlock(v.Body)
	case *ast.ForInStmt:
		c.walkExpr(v.Collection)
		c.walkBlock(v.Body)
	case *ast.MatchStmt:
		c.walkExpr(v.Match)
	case *ast.BlockStmt:
		c.walkBlock(v.Block)
	}
}

func (c *EscapeChecker) walkElse(n ast.Node) {
	switch v := n.(type) {
	case *ast.Block:
		c.walkBlock(v)
	case *ast.IfStmt:
		c.walkStmt(v)
	case *ast.If:
		c.walkExpr(v)
	}
}

func (c *EscapeChecker) walkExpr(e ast.Expr) {
	switch v := e.(type) {
	case *ast.Call:
		for _, a := range v.Args {
			c.mark(a)
			c.walkExpr(a)
		}
		c.walkExpr(v.Callee)
	case *ast.ArrayLit:
		for _, el := range v.Elems {
			c.mark(el)
			c.walkExpr(el)
		}
	case *ast.TensorLit:
		for _, el := range v.Elems {
			c.mark(el)
			c.walkExpr(el)
		}
	case *ast.StructLit:
		for _, f := range v.Fields {
			c.mark(f.Value)
			c.walkExpr(f.Value)
		}
	case *ast.Binary:
		c.walkExpr(v.Left)
		c.walkExpr(v.Right)
	case *ast.Unary:
		c.walkExpr(v.Operand)
	case *ast.Assign:
		c.walkExpr(v.Value)
	case *ast.Member:
		c.walkExpr(v.Receiver)
	case *ast.Index:
		c.walkExpr(v.Receiver)
		c.walkExpr(v.Idx)
	case *ast.If:
		c.walkExpr(v.Cond)
		c.walkBlock(v.Then)
		c.walkElse(v.Else)
	case *ast.Match:
		c.walkExpr(v.Scrutinee)
		for _, arm := range v.Arms {
			c.walkExpr(arm.Body)
		}
	case *ast.Block:
		c.walkBlock(v)
	case *ast.InterpolatedString:
		for _, ex := range v.Exprs {
			c.walkExpr(ex)
		}
	}
}

// ---- Move ----

// MoveChecker flags use-after-move: a call argument moves the
// identifier it names; any later read of a moved identifier is an
// error until it is reassigned.
type MoveChecker struct {
	Moved map[string]bool
	bag   *diag.Bag
}

func NewMoveChecker(bag *diag.Bag) *MoveChecker {
	return &MoveChecker{Moved: map[string]bool{}, bag: bag}
}

func (c *MoveChecker) Check(body *ast.Block) {
	c.walkBlock(body)
}

func (c *MoveChecker) use(e ast.Expr) {
	id, ok := e.(*ast.Ident)
	if !ok {
		return
	}
	if c.Moved[id.Name] {
		c.bag.Add(diag.Errorf(id.Span(), "use after move: %q", id.Name))
	}
}

func (c *MoveChecker) walkBlock(b *ast.Block) {
	if b == nil {
		return
	}
	for _, s := range b.Stmts {
		c.walkStmt(s)
	}
	if b.Tail != nil {
		c.walkExpr(b.Tail)
	}
}

func (c *MoveChecker) walkStmt(s ast.Stmt) {
	switch v := s.(type) {
	case *ast.VarStmt:
		if v.Value != nil {
			c.walkExpr(v.Value)
		}
		delete(c.Moved, v.Name)
	case *ast.ExprStmt:
		c.walkExpr(v.Value)
	case *ast.ReturnStmt:
		if v.Value != nil {
			c.walkExpr(v.Value)
		}
	case *ast.IfStmt:
		c.walkExpr(v.Cond)
		c.walkBlock(v.Then)
		if bl, ok := v.Else.(*ast.Block); ok {
			c.walkBlock(bl)
		} else if st, ok := v.Else.(*ast.IfStmt); ok {
			c.walkStmt(st)
		}
	case *ast.WhileStmt:
		c.walkExpr(v.Cond)
		c.walkBlock(v.Body)
	case *ast.ForInStmt:
		c.walkExpr(v.Collection)
		c.walkBlock(v.Body)
	case *ast.MatchStmt:
		c.walkExpr(v.Match)
	case *ast.BlockStmt:
		c.walkBlock(v.Block)
	}
}

func (c *MoveChecker) walkExpr(e ast.Expr) {
	switch v := e.(type) {
	case *ast.Ident:
		c.use(v)
	case *ast.Call:
		c.walkExpr(v.Callee)
		for _, a := range v.Args {
			c.use(a)
			c.walkExpr(a)
			if id, ok := a.(*ast.Ident); ok {
				c.Moved[id.Name] = true
			}
		}
	case *ast.Assign:
		c.walkExpr(v.Value)
		if id, ok := v.Target.(*ast.Ident); ok {
			delete(c.Moved, id.Name)
		}
	case *ast.Binary:
		c.walkExpr(v.Left)
		c.walkExpr(v.Right)
	case *ast.Unary:
		c.walkExpr(v.Operand)
	case *ast.Member:
		c.walkExpr(v.Receiver)
	case *ast.Index:
		c.walkExpr(v.Receiver)
		c.walkExpr(v.Idx)
	case *ast.ArrayLit:
		for _, el := range v.Elems {
			c.walkExpr(el)
		}
	case *ast.StructLit:
		for _, f := range v.Fields {
			c.walkExpr(f.Value)
		}
	case *ast.If:
		c.walkExpr(v.Cond)
		c.walkBlock(v.Then)
	case *ast.Match:
		c.walkExpr(v.Scrutinee)
		for _, arm := range v.Arms {
			c.walkExpr(arm.Body)
		}
	case *ast.Block:
		c.walkBlock(v)
	case *ast.InterpolatedString:
		for _, ex := range v.Exprs {
			c.walkExpr(ex)
		}
	}
}

// ---- Borrow ----

// BorrowState is the coarse per-local state the borrow pass tracks.
type BorrowState int

const (
	Owned BorrowState = iota
	Borrowed
	MutBorrowed
	BorrowMoved
)

// BorrowChecker is a coarser analog of MoveChecker: arguments transition
// a local to Borrowed rather than immediately Moved, and assignment
// marks it MutBorrowed. Borrowing a MutBorrowed local, or assigning to
// a Borrowed one, is flagged.
type BorrowChecker struct {
	State map[string]BorrowState
	bag   *diag.Bag
}

func NewBorrowChecker(bag *diag.Bag) *BorrowChecker {
	return &BorrowChecker{State: map[string]BorrowState{}, bag: bag}
}

func (c *BorrowChecker) Check(body *ast.Block) {
	c.walkBlock(body)
}

func (c *BorrowChecker) walkBlock(b *ast.Block) {
	if b == nil {
		return
	}
	for _, s := range b.Stmts {
		c.walkStmt(s)
	}
	if b.Tail != nil {
		c.walkExpr(b.Tail)
	}
}

func (c *BorrowChecker) walkStmt(s ast.Stmt) {
	switch v := s.(type) {
	case *ast.VarStmt:
		if v.Value != nil {
			c.walkExpr(v.Value)
		}
		c.State[v.Name] = Owned
	case *ast.ExprStmt:
		c.walkExpr(v.Value)
	case *ast.ReturnStmt:
		if v.Value != nil {
			c.walkExpr(v.Value)
		}
	case *ast.IfStmt:
		c.walkExpr(v.Cond)
		c.walkBlock(v.Then)
	case *ast.WhileStmt:
		c.walkExpr(v.Cond)
		c.walkBlock(v.Body)
	case *ast.ForInStmt:
		c.walkExpr(v.Collection)
		c.walkBlock(v.Body)
	case *ast.BlockStmt:
		c.walkBlock(v.Block)
	}
}

func (c *BorrowChecker) walkExpr(e ast.Expr) {
	switch v := e.(type) {
	case *ast.Call:
		for _, a := range v.Args {
			if id, ok := a.(*ast.Ident); ok {
				if c.State[id.Name] == MutBorrowed {
					c.bag.Add(diag.Errorf(id.Span(), "cannot borrow %q: already mutably borrowed", id.Name))
				}
				c.State[id.Name] = Borrowed
			}
			c.walkExpr(a)
		}
		c.walkExpr(v.Callee)
	case *ast.Assign:
		c.walkExpr(v.Value)
		if id, ok := v.Target.(*ast.Ident); ok {
			if c.State[id.Name] == Borrowed {
				c.bag.Add(diag.Errorf(id.Span(), "cannot mutate %q while borrowed", id.Name))
			}
			c.State[id.Name] = MutBorrowed
		}
	case *ast.Binary:
		c.walkExpr(v.Left)
		c.walkExpr(v.Right)
	case *ast.Unary:
		c.walkExpr(v.Operand)
	case *ast.Member:
		c.walkExpr(v.Receiver)
	case *ast.Index:
		c.walkExpr(v.Receiver)
		c.walkExpr(v.Idx)
	}
}

// ---- Lifetime ----

type LifetimeKind int

const (
	Static LifetimeKind = iota
	Param
	BlockScope
)

type Lifetime struct {
	Kind  LifetimeKind
	Depth int // only meaningful for BlockScope; 1 = the function body
}

// outlives reports whether a has a lifetime at least as long as b.
func outlives(a, b Lifetime) bool {
	rank := func(l Lifetime) (int, int) {
		switch l.Kind {
		case Static:
			return 0, 0
		case Param:
			return 1, 0
		default:
			return 2, l.Depth
		}
	}
	ac, ad := rank(a)
	bc, bd := rank(b)
	if ac != bc {
		return ac < bc
	}
	return ad <= bd
}

// LifetimeChecker tracks each local's lifetime class and flags
// assignments where the right-hand side cannot outlive the target.
type LifetimeChecker struct {
	bindings map[string]Lifetime
	depth    int
	bag      *diag.Bag
}

func NewLifetimeChecker(bag *diag.Bag) *LifetimeChecker {
	return &LifetimeChecker{bindings: map[string]Lifetime{}, bag: bag}
}

// BindParam registers a function parameter's lifetime before Check runs.
func (c *LifetimeChecker) BindParam(name string) {
	c.bindings[name] = Lifetime{Kind: Param}
}

func (c *LifetimeChecker) Check(body *ast.Block) {
	c.walkBlock(body)
}

func (c *LifetimeChecker) walkBlock(b *ast.Block) {
	if b == nil {
		return
	}
	c.depth++
	for _, s := range b.Stmts {
		c.walkStmt(s)
	}
	if b.Tail != nil {
		c.walkExpr(b.Tail)
	}
	c.depth--
}

func (c *LifetimeChecker) walkStmt(s ast.Stmt) {
	switch v := s.(type) {
	case *ast.VarStmt:
		if v.Value != nil {
			c.walkExpr(v.Value)
		}
		c.bindings[v.Name] = Lifetime{Kind: BlockScope, Depth: c.depth}
	case *ast.ExprStmt:
		c.walkExpr(v.Value)
	case *ast.ReturnStmt:
		if v.Value != nil {
			c.walkExpr(v.Value)
		}
	case *ast.IfStmt:
		c.walkExpr(v.Cond)
		c.walkBlock(v.Then)
	case *ast.WhileStmt:
		c.walkExpr(v.Cond)
		c.walkBlock(v.Body)
	case *ast.ForInStmt:
		c.walkExpr(v.Collection)
		c.walkBlock(v.Body)
	case *ast.BlockStmt:
		c.walkBlock(v.Block)
	}
}

func (c *LifetimeChecker) walkExpr(e ast.Expr) {
	switch v := e.(type) {
	case *ast.Assign:
		c.walkExpr(v.Value)
		target, ok := v.Target.(*ast.Ident)
		if !ok {
			return
		}
		targetLT, ok := c.bindings[target.Name]
		if !ok {
			return
		}
		if srcID, ok := v.Value.(*ast.Ident); ok {
			if srcLT, ok := c.bindings[srcID.Name]; ok && !outlives(srcLT, targetLT) {
				c.bag.Add(diag.Errorf(v.Span(), "%q does not live long enough to be assigned to %q", srcID.Name, target.Name))
			}
		}
	case *ast.Binary:
		c.walkExpr(v.Left)
		c.walkExpr(v.Right)
	case *ast.Call:
		for _, a := range v.Args {
			c.walkExpr(a)
		}
	}
}

// ---- @nogc ----

// CheckNoGC rejects any managed allocation or a call to a function not
// itself marked @nogc, per spec §4.3.1's @nogc row. isNoGC answers
// whether a named function carries the @nogc annotation.
func CheckNoGC(body *ast.Block, isNoGC func(name string) bool, bag *diag.Bag) {
	var walkExpr func(e ast.Expr)
	var walkBlock func(b *ast.Block)
	var walkStmt func(s ast.Stmt)

	reject := func(span diag.Span, what string) {
		bag.Add(diag.Errorf(span, "allocation not allowed in @nogc: %s", what))
	}

	walkExpr = func(e ast.Expr) {
		switch v := e.(type) {
		case *ast.ArrayLit:
			reject(v.Span(), "array literal")
			for _, el := range v.Elems {
				walkExpr(el)
			}
		case *ast.TensorLit:
			reject(v.Span(), "tensor literal")
			for _, el := range v.Elems {
				walkExpr(el)
			}
		case *ast.StructLit:
			reject(v.Span(), "struct literal")
			for _, f := range v.Fields {
				walkExpr(f.Value)
			}
		case *ast.InterpolatedString:
			reject(v.Span(), "string interpolation")
			for _, ex := range v.Exprs {
				walkExpr(ex)
			}
		case *ast.Literal:
			if v.Kind == ast.LitString {
				reject(v.Span(), "string literal")
			}
		case *ast.Call:
			walkExpr(v.Callee)
			if id, ok := v.Callee.(*ast.Ident); ok && !isNoGC(id.Name) {
				bag.Add(diag.Errorf(v.Span(), "call to non-@nogc function %q not allowed in @nogc", id.Name))
			}
			for _, a := range v.Args {
				walkExpr(a)
			}
		case *ast.Binary:
			walkExpr(v.Left)
			walkExpr(v.Right)
		case *ast.Unary:
			walkExpr(v.Operand)
		case *ast.Assign:
			walkExpr(v.Value)
		case *ast.Member:
			walkExpr(v.Receiver)
		case *ast.Index:
			walkExpr(v.Receiver)
			walkExpr(v.Idx)
		case *ast.If:
			walkExpr(v.Cond)
			walkBlock(v.Then)
		case *ast.Match:
			walkExpr(v.Scrutinee)
			for _, arm := range v.Arms {
				walkExpr(arm.Body)
			}
		case *ast.Block:
			walkBlock(v)
		}
	}
	walkStmt = func(s ast.Stmt) {
		switch v := s.(type) {
		case *ast.VarStmt:
			if v.Value != nil {
				walkExpr(v.Value)
			}
		case *ast.ExprStmt:
			walkExpr(v.Value)
		case *ast.ReturnStmt:
			if v.Value != nil {
				walkExpr(v.Value)
			}
		case *ast.IfStmt:
			walkExpr(v.Cond)
			walkBlock(v.Then)
		case *ast.WhileStmt:
			walkExpr(v.Cond)
			walkBlock(v.Body)
		case *ast.ForInStmt:
			walkExpr(v.Collection)
			walkBlock(v.Body)
		case *ast.MatchStmt:
			walkExpr(v.Match)
		case *ast.BlockStmt:
			walkBlock(v.Block)
		}
	}
	walkBlock = func(b *ast.Block) {
		if b == nil {
			return
		}
		for _, s := range b.Stmts {
			walkStmt(s)
		}
		if b.Tail != nil {
			walkExpr(b.Tail)
		}
	}
	walkBlock(body)
}
