// Package ast defines the tagged trees the parser produces: items,
// statements, expressions, patterns, and type references. Every node
// carries the span that produced it, per the "every AST node's span has
// start.offset <= end.offset" invariant.
package ast

import "github.com/korlang-lang/korlang/internal/diag"

// Node is satisfied by every AST node.
type Node interface {
	Span() diag.Span
}

// base is embedded by every concrete node to supply Span() and keep the
// invariant construction in one place (NewSpan already orders endpoints).
type base struct {
	SpanInfo diag.Span
}

func (b base) Span() diag.Span { return b.SpanInfo }

// Program is the parser's top-level result: a flat list of items owned
// uniquely by the Program. Children are owned by their parents; nothing
// mutates the tree after parsing.
type Program struct {
	Items []Item
}

// ---- Items ----

type Item interface {
	Node
	itemNode()
}

type Param struct {
	Name string
	Type TypeRef
}

type GenericParam struct {
	Name       string
	Constraint string // "" if unconstrained
}

type FunDecl struct {
	base
	Name     string
	Generics []GenericParam
	Receiver *Param // non-nil for extension methods
	Params   []Param
	Return   TypeRef // nil means Unit
	NoGC     bool
	Body     *Block
}

func (*FunDecl) itemNode() {}

type Field struct {
	Name string
	Type TypeRef
}

type StructDecl struct {
	base
	Name       string
	Generics   []GenericParam
	Implements []string
	Fields     []Field
}

func (*StructDecl) itemNode() {}

type EnumVariant struct {
	Name   string
	Fields []Field // empty for a unit variant
}

type EnumDecl struct {
	base
	Name     string
	Generics []GenericParam
	Variants []EnumVariant
}

func (*EnumDecl) itemNode() {}

type TypeAliasDecl struct {
	base
	Name     string
	Generics []GenericParam
	Target   TypeRef
}

func (*TypeAliasDecl) itemNode() {}

type ViewDecl struct {
	base
	Name   string
	Fields []Field
}

func (*ViewDecl) itemNode() {}

type ResourceDecl struct {
	base
	Name   string
	Fields []Field
}

func (*ResourceDecl) itemNode() {}

type ConstDecl struct {
	base
	Name  string
	Type  TypeRef
	Value Expr
}

func (*ConstDecl) itemNode() {}

// StmtItem wraps a top-level statement so it can appear in Program.Items
// (the REPL and test harnesses feed bare statements through the same
// item list as declarations).
type StmtItem struct {
	base
	Stmt Stmt
}

func (*StmtItem) itemNode() {}

type InterfaceMethod struct {
	Name   string
	Params []Param
	Return TypeRef
}

type InterfaceDecl struct {
	base
	Name    string
	Methods []InterfaceMethod
}

func (*InterfaceDecl) itemNode() {}

// SealedDecl owns a closed set of child struct/enum items, used for
// match exhaustiveness.
type SealedDecl struct {
	base
	Name     string
	Children []Item // StructDecl or EnumDecl only
}

func (*SealedDecl) itemNode() {}

// ---- Expressions ----

type Expr interface {
	Node
	exprNode()
}

type LiteralKind int

const (
	LitInt LiteralKind = iota
	LitFloat
	LitBool
	LitChar
	LitString
	LitNull
)

type Literal struct {
	base
	Kind LiteralKind
	Text string
}

func (*Literal) exprNode() {}

type Ident struct {
	base
	Name string
}

func (*Ident) exprNode() {}

type FieldInit struct {
	Name  string
	Value Expr
}

type StructLit struct {
	base
	Type   string
	Fields []FieldInit
}

func (*StructLit) exprNode() {}

type UnaryOp int

const (
	UnaryNeg UnaryOp = iota
	UnaryPos
	UnaryNot
)

type Unary struct {
	base
	Op      UnaryOp
	Operand Expr
}

func (*Unary) exprNode() {}

type BinaryOp int

const (
	Add BinaryOp = iota
	Sub
	Mul
	Div
	Mod
	TAdd // .+
	TSub // .-
	TMul // .*
	TDiv // ./
	MatMul // @ (tensor/matrix product)
	Lt
	Le
	Gt
	Ge
	Eq
	Ne
	And
	Or
	NullCoalesce
	PipeInto // |>
	ArrowInto // -> used as an expression-level pipe target
)

type Binary struct {
	base
	Op    BinaryOp
	Left  Expr
	Right Expr
}

func (*Binary) exprNode() {}

type AssignOp int

const (
	AssignSet AssignOp = iota
	AssignAdd
	AssignSub
	AssignMul
	AssignDiv
	AssignMod
)

type Assign struct {
	base
	Op     AssignOp
	Target Expr
	Value  Expr
}

func (*Assign) exprNode() {}

type Call struct {
	base
	Callee Expr
	Args   []Expr
	// GenericArgs are explicit type arguments for a generic function call.
	// The parser has no call-site type-argument syntax and always leaves
	// this nil; sema infers type parameters from the call's arguments.
	GenericArgs []TypeRef
}

func (*Call) exprNode() {}

type Member struct {
	base
	Receiver Expr
	Name     string
}

func (*Member) exprNode() {}

type Index struct {
	base
	Receiver Expr
	Idx      Expr
}

func (*Index) exprNode() {}

type If struct {
	base
	Cond Expr
	Then *Block
	Else Node // *Block or *If, nil if no else branch
}

func (*If) exprNode() {}

type MatchArm struct {
	Pattern Pattern
	Guard   Expr // nil if unguarded
	Body    Expr
}

type Match struct {
	base
	Scrutinee Expr
	Arms      []MatchArm
}

func (*Match) exprNode() {}

// Block is both a statement container and an expression: its value is
// its tail expression's value, or Unit if it ends in a statement.
type Block struct {
	base
	Stmts []Stmt
	Tail  Expr // nil if the block has no tail expression
}

func (*Block) exprNode() {}

type ArrayLit struct {
	base
	Elems []Expr
}

func (*ArrayLit) exprNode() {}

// TensorLit is an array literal tagged with its declared shape, e.g.
// tensor literals written as nested array syntax with a Tensor[T] type
// annotation resolved by the analyzer.
type TensorLit struct {
	base
	Shape []int
	Elems []Expr
}

func (*TensorLit) exprNode() {}

// InterpolatedString alternates Strings[i] (a literal segment, possibly
// empty) and Exprs[i] (the following interpolated expression); len(Strings)
// == len(Exprs)+1.
type InterpolatedString struct {
	base
	Strings []string
	Exprs   []Expr
}

func (*InterpolatedString) exprNode() {}

// ---- Statements ----

type Stmt interface {
	Node
	stmtNode()
}

type VarStmt struct {
	base
	Name    string
	Mutable bool
	Type    TypeRef // nil if inferred
	Value   Expr    // nil if uninitialized
}

func (*VarStmt) stmtNode() {}

type ExprStmt struct {
	base
	Value Expr
}

func (*ExprStmt) stmtNode() {}

type ReturnStmt struct {
	base
	Value Expr // nil for bare `return`
}

func (*ReturnStmt) stmtNode() {}

type BreakStmt struct{ base }

func (*BreakStmt) stmtNode() {}

type ContinueStmt struct{ base }

func (*ContinueStmt) stmtNode() {}

type IfStmt struct {
	base
	Cond Expr
	Then *Block
	Else Node // *Block, *IfStmt, or nil
}

func (*IfStmt) stmtNode() {}

type WhileStmt struct {
	base
	Cond Expr
	Body *Block
}

func (*WhileStmt) stmtNode() {}

type ForInStmt struct {
	base
	Var        string
	Collection Expr
	Body       *Block
}

func (*ForInStmt) stmtNode() {}

type MatchStmt struct {
	base
	Match *Match
}

func (*MatchStmt) stmtNode() {}

// BlockStmt lets a bare block appear where a statement is expected.
type BlockStmt struct {
	base
	Block *Block
}

func (*BlockStmt) stmtNode() {}

// ---- Patterns ----

type Pattern interface {
	Node
	patternNode()
}

type IdentPattern struct {
	base
	Name string
}

func (*IdentPattern) patternNode() {}

type WildcardPattern struct{ base }

func (*WildcardPattern) patternNode() {}

type LiteralPattern struct {
	base
	Lit *Literal
}

func (*LiteralPattern) patternNode() {}

type TuplePattern struct {
	base
	Elems []Pattern
}

func (*TuplePattern) patternNode() {}

type VariantPattern struct {
	base
	Enum    string // "" if the enum name is inferred from the scrutinee type
	Variant string
	Fields  []Pattern
}

func (*VariantPattern) patternNode() {}

type FieldPattern struct {
	Name    string
	Pattern Pattern
}

type StructPattern struct {
	base
	Type   string
	Fields []FieldPattern
}

func (*StructPattern) patternNode() {}

// TypeTestPattern matches when the scrutinee's runtime type is Type,
// binding it to Name (e.g. `x as Int`).
type TypeTestPattern struct {
	base
	Name string
	Type TypeRef
}

func (*TypeTestPattern) patternNode() {}

// ---- Type references (syntactic) ----

type TypeRef interface {
	Node
	typeRefNode()
}

type NamedTypeRef struct {
	base
	Name     string
	Generics []TypeRef
}

func (*NamedTypeRef) typeRefNode() {}

type TupleTypeRef struct {
	base
	Elems []TypeRef
}

func (*TupleTypeRef) typeRefNode() {}

type ArrayTypeRef struct {
	base
	Elem TypeRef
}

func (*ArrayTypeRef) typeRefNode() {}

// TensorTypeRef is Tensor[T; dims...], e.g. Tensor[Float; 3, 4].
type TensorTypeRef struct {
	base
	Elem TypeRef
	Dims []int
}

func (*TensorTypeRef) typeRefNode() {}

// OptionalTypeRef is `T?`.
type OptionalTypeRef struct {
	base
	Elem TypeRef
}

func (*OptionalTypeRef) typeRefNode() {}

// NonNullTypeRef is `T!`.
type NonNullTypeRef struct {
	base
	Elem TypeRef
}

func (*NonNullTypeRef) typeRefNode() {}

// NewSpan is a small helper re-exported so parser code building nodes
// doesn't need two imports for the common case of combining two spans.
func NewSpan(start, end diag.Span) diag.Span {
	return diag.NewSpan(start.Start, end.End)
}
