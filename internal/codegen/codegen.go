// Package codegen lowers a checked Korlang AST into internal/llvmir in
// a two-pass declare/emit shape: declare every function's signature
// first, then emit each body, constant-folding wherever a subtree is
// homogeneous literals and leaving the rest as IR placeholders. The
// tree-walk dispatch over node kinds generalizes an interpreter's
// evaluator loop to emission instead of direct execution.
package codegen

import (
	"strconv"

	"github.com/korlang-lang/korlang/internal/ast"
	"github.com/korlang-lang/korlang/internal/diag"
	"github.com/korlang-lang/korlang/internal/llvmir"
)

func parseInt(s string) (int64, error)   { return strconv.ParseInt(s, 0, 64) }
func parseFloat(s string) (float64, error) { return strconv.ParseFloat(s, 64) }

// Generator holds the diagnostics accumulated across both passes. A
// Generator is single-use: construct one per Program via New.
type Generator struct {
	bag diag.Bag
}

func New() *Generator {
	return &Generator{}
}

// Generate runs the declare pass then the emit pass over prog, returning
// the built module and whatever diagnostics accumulated. An error during
// either pass is recorded in the diagnostic list rather than aborting —
// the rest of the module still gets a best-effort module back, per spec.
func (g *Generator) Generate(prog *ast.Program) (*llvmir.Module, *diag.Bag) {
	mod := llvmir.NewModule("korlang")

	var funs []*ast.FunDecl
	for _, item := range prog.Items {
		if fd, ok := item.(*ast.FunDecl); ok {
			funs = append(funs, fd)
			g.declare(mod, fd)
		}
	}
	for _, fd := range funs {
		g.emit(mod, fd)
	}
	return mod, &g.bag
}

// mapType applies spec's Declare-pass type mapping: Int/UInt -> i64,
// Float -> f64, Bool -> i1, Char -> i32, everything else -> opaque i8*.
// A nil TypeRef (Unit return) maps to void.
func mapType(tr ast.TypeRef) llvmir.Type {
	if tr == nil {
		return llvmir.Void
	}
	nt, ok := tr.(*ast.NamedTypeRef)
	if !ok {
		return llvmir.PtrI8
	}
	switch nt.Name {
	case "Int", "UInt":
		return llvmir.I64
	case "Float":
		return llvmir.F64
	case "Bool":
		return llvmir.I1
	case "Char":
		return llvmir.I32
	case "Unit":
		return llvmir.Void
	default:
		return llvmir.PtrI8
	}
}

func (g *Generator) declare(mod *llvmir.Module, fd *ast.FunDecl) *llvmir.Function {
	names := make([]string, len(fd.Params))
	types := make([]llvmir.Type, len(fd.Params))
	for i, p := range fd.Params {
		names[i] = p.Name
		types[i] = mapType(p.Type)
	}
	return mod.DeclareFunction(fd.Name, names, types, mapType(fd.Return))
}

func (g *Generator) emit(mod *llvmir.Module, fd *ast.FunDecl) {
	fn, ok := mod.Lookup(fd.Name)
	if !ok {
		g.bag.Add(diag.Errorf(fd.Span(), "codegen: %q was not declared", fd.Name))
		return
	}
	bb := fn.Entry()

	env := map[string]llvmir.Value{}
	for i, p := range fd.Params {
		env[p.Name] = llvmir.Value{Name: p.Name, Type: fn.ParamTypes[i]}
	}

	if fd.Body == nil {
		g.terminate(bb, fn.Result, nil)
		return
	}

	for _, s := range fd.Body.Stmts {
		g.emitStmt(mod, bb, env, s)
	}

	tail := terminalExpr(fd.Body)
	g.terminate(bb, fn.Result, emitTail(mod, &g.bag, bb, env, tail))
}

// terminalExpr finds the expression whose value the function returns:
// the block's tail expression, or the value of its last `return`
// statement if there is no tail.
func terminalExpr(b *ast.Block) ast.Expr {
	if b.Tail != nil {
		return b.Tail
	}
	for i := len(b.Stmts) - 1; i >= 0; i-- {
		if rs, ok := b.Stmts[i].(*ast.ReturnStmt); ok {
			return rs.Value
		}
	}
	return nil
}

// emitTail evaluates the terminal expression (constant-folding where
// possible) into the value the function returns, or nil if there is none.
func emitTail(mod *llvmir.Module, bag *diag.Bag, bb *llvmir.BasicBlock, env map[string]llvmir.Value, e ast.Expr) *llvmir.Value {
	if e == nil {
		return nil
	}
	v := emitExpr(mod, bag, bb, env, e)
	return &v
}

// terminate appends the function's return instruction: the computed
// value if emission produced one, else a zero of the result type (or
// void), matching "when nothing meaningful can be emitted, return a
// zero of the return type".
func (g *Generator) terminate(bb *llvmir.BasicBlock, result llvmir.Type, v *llvmir.Value) {
	if result == llvmir.Void {
		bb.RetVoid()
		return
	}
	if v != nil {
		bb.Ret(*v)
		return
	}
	bb.Ret(zeroOf(result))
}

func zeroOf(t llvmir.Type) llvmir.Value {
	switch t {
	case llvmir.F64:
		return llvmir.ConstFloat(0)
	case llvmir.I1:
		return llvmir.ConstBool(false)
	default:
		return llvmir.ConstInt(0)
	}
}

func (g *Generator) emitStmt(mod *llvmir.Module, bb *llvmir.BasicBlock, env map[string]llvmir.Value, s ast.Stmt) {
	switch v := s.(type) {
	case *ast.ExprStmt:
		if call, ok := v.Value.(*ast.Call); ok {
			emitCall(mod, &g.bag, bb, env, call)
			return
		}
		emitExpr(mod, &g.bag, bb, env, v.Value)
	case *ast.VarStmt:
		if v.Value != nil {
			env[v.Name] = emitExpr(mod, &g.bag, bb, env, v.Value)
		}
	case *ast.ReturnStmt:
		// Handled by terminalExpr/terminate at the function level; a
		// non-tail return mid-body still needs its side effects emitted.
		if v.Value != nil {
			emitExpr(mod, &g.bag, bb, env, v.Value)
		}
	default:
		// Control-flow statements (if/while/for/match) are not folded at
		// this layer: the emit pass here only covers top-level call
		// statements and the terminal return/tail expression.
	}
}

// emitCall lowers a call expression, special-casing @import("sym") and
// @bridge("sym") into an extern declaration plus a no-argument call.
func emitCall(mod *llvmir.Module, bag *diag.Bag, bb *llvmir.BasicBlock, env map[string]llvmir.Value, call *ast.Call) llvmir.Value {
	if callee, ok := call.Callee.(*ast.Ident); ok && (callee.Name == "@import" || callee.Name == "@bridge") {
		if len(call.Args) == 1 {
			if lit, ok := call.Args[0].(*ast.Literal); ok && lit.Kind == ast.LitString {
				fn := mod.DeclareExtern(lit.Text)
				bb.EmitVoid("call", llvmir.Value{Name: fn.Name, Type: llvmir.Void})
				return llvmir.Value{Type: llvmir.Void}
			}
		}
		bag.Add(diag.Errorf(call.Span(), "@import/@bridge requires a single string literal argument"))
		return llvmir.Value{Type: llvmir.Void}
	}

	name := "<indirect>"
	if id, ok := call.Callee.(*ast.Ident); ok {
		name = id.Name
	}
	args := make([]llvmir.Value, len(call.Args))
	for i, a := range call.Args {
		args[i] = emitExpr(mod, bag, bb, env, a)
	}
	result := llvmir.PtrI8
	if fn, ok := mod.Lookup(name); ok {
		result = fn.Result
	}
	if result == llvmir.Void {
		bb.EmitVoid("call "+name, args...)
		return llvmir.Value{Type: llvmir.Void}
	}
	return bb.Emit(result, "call "+name, args...)
}

// emitExpr evaluates e, folding homogeneous literal subtrees per spec's
// constant-folding rule and otherwise appending IR placeholder
// instructions to bb.
func emitExpr(mod *llvmir.Module, bag *diag.Bag, bb *llvmir.BasicBlock, env map[string]llvmir.Value, e ast.Expr) llvmir.Value {
	switch v := e.(type) {
	case *ast.Literal:
		return literalValue(v)
	case *ast.Ident:
		if val, ok := env[v.Name]; ok {
			return val
		}
		return llvmir.Value{Name: v.Name, Type: llvmir.PtrI8}
	case *ast.Unary:
		operand := emitExpr(mod, bag, bb, env, v.Operand)
		if folded, ok := foldUnary(v.Op, operand); ok {
			return folded
		}
		return bb.Emit(operand.Type, unaryOpName(v.Op), operand)
	case *ast.Binary:
		left := emitExpr(mod, bag, bb, env, v.Left)
		right := emitExpr(mod, bag, bb, env, v.Right)
		if folded, ok := foldBinary(v.Op, left, right); ok {
			return folded
		}
		return bb.Emit(resultTypeFor(v.Op, left.Type), binaryOpName(v.Op), left, right)
	case *ast.Call:
		return emitCall(mod, bag, bb, env, v)
	case *ast.Block:
		var last llvmir.Value
		for _, s := range v.Stmts {
			if es, ok := s.(*ast.ExprStmt); ok {
				last = emitExpr(mod, bag, bb, env, es.Value)
				continue
			}
		}
		if v.Tail != nil {
			last = emitExpr(mod, bag, bb, env, v.Tail)
		}
		return last
	default:
		// Anything else (struct/array/tensor literals, match, if-as-expr,
		// member/index) is left as an opaque placeholder register: full
		// lowering for those forms is out of scope for this IR layer.
		return bb.Emit(llvmir.PtrI8, "opaque")
	}
}

func literalValue(lit *ast.Literal) llvmir.Value {
	switch lit.Kind {
	case ast.LitInt:
		n, _ := parseInt(lit.Text)
		return llvmir.ConstInt(n)
	case ast.LitFloat:
		f, _ := parseFloat(lit.Text)
		return llvmir.ConstFloat(f)
	case ast.LitBool:
		return llvmir.ConstBool(lit.Text == "true")
	case ast.LitChar:
		if len(lit.Text) > 0 {
			return llvmir.Value{Type: llvmir.I32, IsConst: true, ConstInt: int64(lit.Text[0])}
		}
		return llvmir.Value{Type: llvmir.I32, IsConst: true}
	default:
		return llvmir.Value{Type: llvmir.PtrI8}
	}
}

func foldUnary(op ast.UnaryOp, v llvmir.Value) (llvmir.Value, bool) {
	if !v.IsConst {
		return llvmir.Value{}, false
	}
	switch op {
	case ast.UnaryNeg:
		switch v.Type {
		case llvmir.I64:
			return llvmir.ConstInt(-v.ConstInt), true
		case llvmir.F64:
			return llvmir.ConstFloat(-v.ConstFloat), true
		}
	case ast.UnaryPos:
		return v, true
	case ast.UnaryNot:
		if v.Type == llvmir.I1 {
			return llvmir.ConstBool(!v.ConstBool), true
		}
	}
	return llvmir.Value{}, false
}

// foldBinary evaluates op over a homogeneous literal pair (int/int,
// float/float, bool/bool), per spec's constant-folding rule. Integer
// wrap is whatever Go's int64 arithmetic does; an integer division or
// modulo by a zero literal is not folded (ok=false).
func foldBinary(op ast.BinaryOp, l, r llvmir.Value) (llvmir.Value, bool) {
	if !l.IsConst || !r.IsConst || l.Type != r.Type {
		return llvmir.Value{}, false
	}
	switch l.Type {
	case llvmir.I64:
		return foldIntBinary(op, l.ConstInt, r.ConstInt)
	case llvmir.F64:
		return foldFloatBinary(op, l.ConstFloat, r.ConstFloat)
	case llvmir.I1:
		return foldBoolBinary(op, l.ConstBool, r.ConstBool)
	default:
		return llvmir.Value{}, false
	}
}

func foldIntBinary(op ast.BinaryOp, l, r int64) (llvmir.Value, bool) {
	switch op {
	case ast.Add:
		return llvmir.ConstInt(l + r), true
	case ast.Sub:
		return llvmir.ConstInt(l - r), true
	case ast.Mul:
		return llvmir.ConstInt(l * r), true
	case ast.Div:
		if r == 0 {
			return llvmir.Value{}, false
		}
		return llvmir.ConstInt(l / r), true
	case ast.Mod:
		if r == 0 {
			return llvmir.Value{}, false
		}
		return llvmir.ConstInt(l % r), true
	case ast.Lt:
		return llvmir.ConstBool(l < r), true
	case ast.Le:
		return llvmir.ConstBool(l <= r), true
	case ast.Gt:
		return llvmir.ConstBool(l > r), true
	case ast.Ge:
		return llvmir.ConstBool(l >= r), true
	case ast.Eq:
		return llvmir.ConstBool(l == r), true
	case ast.Ne:
		return llvmir.ConstBool(l != r), true
	default:
		return llvmir.Value{}, false
	}
}

func foldFloatBinary(op ast.BinaryOp, l, r float64) (llvmir.Value, bool) {
	switch op {
	case ast.Add:
		return llvmir.ConstFloat(l + r), true
	case ast.Sub:
		return llvmir.ConstFloat(l - r), true
	case ast.Mul:
		return llvmir.ConstFloat(l * r), true
	case ast.Div:
		return llvmir.ConstFloat(l / r), true
	case ast.Lt:
		return llvmir.ConstBool(l < r), true
	case ast.Le:
		return llvmir.ConstBool(l <= r), true
	case ast.Gt:
		return llvmir.ConstBool(l > r), true
	case ast.Ge:
		return llvmir.ConstBool(l >= r), true
	case ast.Eq:
		return llvmir.ConstBool(l == r), true
	case ast.Ne:
		return llvmir.ConstBool(l != r), true
	default:
		return llvmir.Value{}, false
	}
}

func foldBoolBinary(op ast.BinaryOp, l, r bool) (llvmir.Value, bool) {
	switch op {
	case ast.And:
		return llvmir.ConstBool(l && r), true
	case ast.Or:
		return llvmir.ConstBool(l || r), true
	case ast.Eq:
		return llvmir.ConstBool(l == r), true
	case ast.Ne:
		return llvmir.ConstBool(l != r), true
	default:
		return llvmir.Value{}, false
	}
}

func resultTypeFor(op ast.BinaryOp, leftType llvmir.Type) llvmir.Type {
	switch op {
	case ast.Lt, ast.Le, ast.Gt, ast.Ge, ast.Eq, ast.Ne, ast.And, ast.Or:
		return llvmir.I1
	default:
		return leftType
	}
}

func unaryOpName(op ast.UnaryOp) string {
	switch op {
	case ast.UnaryNeg:
		return "neg"
	case ast.UnaryNot:
		return "not"
	default:
		return "pos"
	}
}

func binaryOpName(op ast.BinaryOp) string {
	switch op {
	case ast.Add:
		return "add"
	case ast.Sub:
		return "sub"
	case ast.Mul:
		return "mul"
	case ast.Div:
		return "div"
	case ast.Mod:
		return "rem"
	case ast.TAdd:
		return "tadd"
	case ast.TSub:
		return "tsub"
	case ast.TMul:
		return "tmul"
	case ast.TDiv:
		return "tdiv"
	case ast.MatMul:
		return "matmul"
	case ast.Lt:
		return "icmp.lt"
	case ast.Le:
		return "icmp.le"
	case ast.Gt:
		return "icmp.gt"
	case ast.Ge:
		return "icmp.ge"
	case ast.Eq:
		return "icmp.eq"
	case ast.Ne:
		return "icmp.ne"
	case ast.And:
		return "and"
	case ast.Or:
		return "or"
	default:
		return "op"
	}
}
