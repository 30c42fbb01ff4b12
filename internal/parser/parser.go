// Package parser is a hand-written recursive-descent parser producing an
// ast.Program. Expression parsing uses Pratt precedence climbing; item and
// statement parsing dispatch on keyword lookahead.
package parser

import (
	"strconv"

	"github.com/korlang-lang/korlang/internal/ast"
	"github.com/korlang-lang/korlang/internal/diag"
	"github.com/korlang-lang/korlang/internal/lexer"
)

// Parser holds the token stream and accumulates diagnostics; it never
// panics on malformed input; Parse always returns (possibly partial
// Program, Bag).
type Parser struct {
	toks []lexer.Token
	pos  int
	bag  diag.Bag
}

// Parse tokenizes and parses src in one step, the common entry point.
func Parse(src string) (*ast.Program, *diag.Bag) {
	toks, lexBag := lexer.New(src).Tokenize()
	p := &Parser{toks: toks}
	p.bag.Merge(lexBag)
	prog := p.parseProgram()
	return prog, &p.bag
}

// New builds a Parser directly over an already-lexed token stream.
func New(toks []lexer.Token) *Parser {
	return &Parser{toks: toks}
}

func (p *Parser) Parse() (*ast.Program, *diag.Bag) {
	prog := p.parseProgram()
	return prog, &p.bag
}

// ---- token stream helpers ----

func (p *Parser) cur() lexer.Token {
	if p.pos >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos]
}

func (p *Parser) at(kind lexer.TokenKind) bool { return p.cur().Kind == kind }

func (p *Parser) atKeyword(text string) bool {
	return p.cur().Kind == lexer.Keyword && p.cur().Text == text
}

func (p *Parser) advance() lexer.Token {
	tok := p.cur()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return tok
}

func (p *Parser) expect(kind lexer.TokenKind) (lexer.Token, bool) {
	if p.at(kind) {
		return p.advance(), true
	}
	p.bag.Add(diag.Errorf(p.cur().Span, "expected %s, found %s", kind, p.cur()))
	return lexer.Token{}, false
}

func (p *Parser) expectKeyword(text string) bool {
	if p.atKeyword(text) {
		p.advance()
		return true
	}
	p.bag.Add(diag.Errorf(p.cur().Span, "expected keyword %q, found %s", text, p.cur()))
	return false
}

// synchronize recovers from a parse error by advancing to the next `;`,
// `}`, or item-start keyword, per spec §4.2.
func (p *Parser) synchronize() {
	for !p.at(lexer.EOF) {
		if p.at(lexer.Semi) {
			p.advance()
			return
		}
		if p.at(lexer.RBrace) {
			return
		}
		if p.at(lexer.Keyword) && isItemStart(p.cur().Text) {
			return
		}
		p.advance()
	}
}

func isItemStart(kw string) bool {
	switch kw {
	case "fun", "struct", "enum", "type", "view", "resource", "interface",
		"sealed", "let", "var", "const", "@nogc":
		return true
	default:
		return false
	}
}

// ---- program & items ----

func (p *Parser) parseProgram() *ast.Program {
	prog := &ast.Program{}
	for !p.at(lexer.EOF) {
		before := p.pos
		item := p.parseItem()
		if item != nil {
			prog.Items = append(prog.Items, item)
		}
		if p.pos == before {
			// Guard against an accidental infinite loop on unexpected input.
			p.bag.Add(diag.Errorf(p.cur().Span, "unexpected token %s", p.cur()))
			p.advance()
		}
	}
	return prog
}

func (p *Parser) parseItem() ast.Item {
	start := p.cur().Span
	noGC := false
	if p.atKeyword("@nogc") {
		noGC = true
		p.advance()
	}

	switch {
	case p.atKeyword("fun"):
		return p.parseFunDecl(start, noGC)
	case p.atKeyword("struct"):
		return p.parseStructDecl(start)
	case p.atKeyword("enum"):
		return p.parseEnumDecl(start)
	case p.atKeyword("type"):
		return p.parseTypeAliasDecl(start)
	case p.atKeyword("view"):
		return p.parseViewDecl(start)
	case p.atKeyword("resource"):
		return p.parseResourceDecl(start)
	case p.atKeyword("interface"):
		return p.parseInterfaceDecl(start)
	case p.atKeyword("sealed"):
		return p.parseSealedDecl(start)
	case p.atKeyword("const"):
		return p.parseConstDecl(start)
	case p.atKeyword("let") || p.atKeyword("var"):
		stmt := p.parseVarStmt()
		return &ast.StmtItem{astBase(start, stmt.Span()), stmt}
	default:
		stmt := p.parseStmt()
		if stmt == nil {
			p.bag.Add(diag.Errorf(p.cur().Span, "expected an item, found %s", p.cur()))
			p.synchronize()
			return nil
		}
		return &ast.StmtItem{astBase(start, stmt.Span()), stmt}
	}
}

func (p *Parser) parseGenerics() []ast.GenericParam {
	if !p.at(lexer.Lt) {
		return nil
	}
	p.advance()
	var params []ast.GenericParam
	for !p.at(lexer.Gt) && !p.at(lexer.EOF) {
		name, _ := p.expect(lexer.Identifier)
		constraint := ""
		if p.at(lexer.Colon) {
			p.advance()
			c, _ := p.expect(lexer.Identifier)
			constraint = c.Text
		}
		params = append(params, ast.GenericParam{Name: name.Text, Constraint: constraint})
		if p.at(lexer.Comma) {
			p.advance()
			continue
		}
		break
	}
	p.expect(lexer.Gt)
	return params
}

func (p *Parser) parseParamList() []ast.Param {
	p.expect(lexer.LParen)
	var params []ast.Param
	for !p.at(lexer.RParen) && !p.at(lexer.EOF) {
		name, _ := p.expect(lexer.Identifier)
		p.expect(lexer.Colon)
		ty := p.parseTypeRef()
		params = append(params, ast.Param{Name: name.Text, Type: ty})
		if p.at(lexer.Comma) {
			p.advance()
			continue
		}
		break
	}
	p.expect(lexer.RParen)
	return params
}

func (p *Parser) parseFunDecl(start diag.Span, noGC bool) *ast.FunDecl {
	p.expectKeyword("fun")
	var recv *ast.Param
	// Extension syntax: fun (r: Receiver) name(...) -> T { ... }
	if p.at(lexer.LParen) {
		p.advance()
		name, _ := p.expect(lexer.Identifier)
		p.expect(lexer.Colon)
		ty := p.parseTypeRef()
		p.expect(lexer.RParen)
		recv = &ast.Param{Name: name.Text, Type: ty}
	}
	nameTok, _ := p.expect(lexer.Identifier)
	generics := p.parseGenerics()
	params := p.parseParamList()
	var ret ast.TypeRef
	if p.at(lexer.Arrow) {
		p.advance()
		ret = p.parseTypeRef()
	}
	body := p.parseBlock()
	end := body.Span()
	return &ast.FunDecl{astBase(start, end), nameTok.Text, generics, recv, params, ret, noGC, body}
}

func (p *Parser) parseFieldList() []ast.Field {
	p.expect(lexer.LBrace)
	var fields []ast.Field
	for !p.at(lexer.RBrace) && !p.at(lexer.EOF) {
		name, _ := p.expect(lexer.Identifier)
		p.expect(lexer.Colon)
		ty := p.parseTypeRef()
		fields = append(fields, ast.Field{Name: name.Text, Type: ty})
		if p.at(lexer.Comma) || p.at(lexer.Semi) {
			p.advance()
			continue
		}
		break
	}
	p.expect(lexer.RBrace)
	return fields
}

func (p *Parser) parseStructDecl(start diag.Span) *ast.StructDecl {
	p.expectKeyword("struct")
	name, _ := p.expect(lexer.Identifier)
	generics := p.parseGenerics()
	var implements []string
	if p.atKeyword("implements") {
		p.advance()
		for {
			id, _ := p.expect(lexer.Identifier)
			implements = append(implements, id.Text)
			if p.at(lexer.Comma) {
				p.advance()
				continue
			}
			break
		}
	}
	fields := p.parseFieldList()
	end := p.prevSpan()
	return &ast.StructDecl{astBase(start, end), name.Text, generics, implements, fields}
}

func (p *Parser) parseEnumDecl(start diag.Span) *ast.EnumDecl {
	p.expectKeyword("enum")
	name, _ := p.expect(lexer.Identifier)
	generics := p.parseGenerics()
	p.expect(lexer.LBrace)
	var variants []ast.EnumVariant
	for !p.at(lexer.RBrace) && !p.at(lexer.EOF) {
		vname, _ := p.expect(lexer.Identifier)
		var fields []ast.Field
		if p.at(lexer.LParen) {
			p.advance()
			for !p.at(lexer.RParen) && !p.at(lexer.EOF) {
				var fname string
				// Tuple-style variant fields may omit names; synthesize "_N".
				if p.at(lexer.Identifier) && p.peekKindAt(1) == lexer.Colon {
					n := p.advance()
					p.advance()
					fname = n.Text
				} else {
					fname = "_" + strconv.Itoa(len(fields))
				}
				ty := p.parseTypeRef()
				fields = append(fields, ast.Field{Name: fname, Type: ty})
				if p.at(lexer.Comma) {
					p.advance()
					continue
				}
				break
			}
			p.expect(lexer.RParen)
		}
		variants = append(variants, ast.EnumVariant{Name: vname.Text, Fields: fields})
		if p.at(lexer.Comma) {
			p.advance()
			continue
		}
		break
	}
	p.expect(lexer.RBrace)
	end := p.prevSpan()
	return &ast.EnumDecl{astBase(start, end), name.Text, generics, variants}
}

func (p *Parser) parseTypeAliasDecl(start diag.Span) *ast.TypeAliasDecl {
	p.expectKeyword("type")
	name, _ := p.expect(lexer.Identifier)
	generics := p.parseGenerics()
	p.expect(lexer.Eq)
	target := p.parseTypeRef()
	end := target.Span()
	if p.at(lexer.Semi) {
		p.advance()
	}
	return &ast.TypeAliasDecl{astBase(start, end), name.Text, generics, target}
}

// parseConstDecl parses a top-level `const NAME [: Type] = expr` item.
func (p *Parser) parseConstDecl(start diag.Span) *ast.ConstDecl {
	p.expectKeyword("const")
	name, _ := p.expect(lexer.Identifier)
	var ty ast.TypeRef
	if p.at(lexer.Colon) {
		p.advance()
		ty = p.parseTypeRef()
	}
	p.expect(lexer.Eq)
	val := p.parseExpr()
	end := p.prevSpan()
	if val != nil {
		end = val.Span()
	}
	p.consumeOptSemi()
	return &ast.ConstDecl{astBase(start, end), name.Text, ty, val}
}

func (p *Parser) parseViewDecl(start diag.Span) *ast.ViewDecl {
	p.expectKeyword("view")
	name, _ := p.expect(lexer.Identifier)
	fields := p.parseFieldList()
	end := p.prevSpan()
	return &ast.ViewDecl{astBase(start, end), name.Text, fields}
}

func (p *Parser) parseResourceDecl(start diag.Span) *ast.ResourceDecl {
	p.expectKeyword("resource")
	name, _ := p.expect(lexer.Identifier)
	fields := p.parseFieldList()
	end := p.prevSpan()
	return &ast.ResourceDecl{astBase(start, end), name.Text, fields}
}

func (p *Parser) parseInterfaceDecl(start diag.Span) *ast.InterfaceDecl {
	p.expectKeyword("interface")
	name, _ := p.expect(lexer.Identifier)
	p.expect(lexer.LBrace)
	var methods []ast.InterfaceMethod
	for !p.at(lexer.RBrace) && !p.at(lexer.EOF) {
		p.expectKeyword("fun")
		mname, _ := p.expect(lexer.Identifier)
		params := p.parseParamList()
		var ret ast.TypeRef
		if p.at(lexer.Arrow) {
			p.advance()
			ret = p.parseTypeRef()
		}
		methods = append(methods, ast.InterfaceMethod{Name: mname.Text, Params: params, Return: ret})
		if p.at(lexer.Semi) {
			p.advance()
		}
	}
	p.expect(lexer.RBrace)
	end := p.prevSpan()
	return &ast.InterfaceDecl{astBase(start, end), name.Text, methods}
}

func (p *Parser) parseSealedDecl(start diag.Span) *ast.SealedDecl {
	p.expectKeyword("sealed")
	name, _ := p.expect(lexer.Identifier)
	p.expect(lexer.LBrace)
	var children []ast.Item
	for !p.at(lexer.RBrace) && !p.at(lexer.EOF) {
		cstart := p.cur().Span
		switch {
		case p.atKeyword("struct"):
			children = append(children, p.parseStructDecl(cstart))
		case p.atKeyword("enum"):
			children = append(children, p.parseEnumDecl(cstart))
		default:
			p.bag.Add(diag.Errorf(p.cur().Span, "sealed may only contain struct and enum items, found %s", p.cur()))
			p.synchronize()
		}
	}
	p.expect(lexer.RBrace)
	end := p.prevSpan()
	return &ast.SealedDecl{astBase(start, end), name.Text, children}
}

// ---- statements ----

func (p *Parser) parseStmt() ast.Stmt {
	start := p.cur().Span
	switch {
	case p.atKeyword("let") || p.atKeyword("var"):
		return p.parseVarStmt()
	case p.atKeyword("return"):
		p.advance()
		var val ast.Expr
		if !p.at(lexer.Semi) && !p.at(lexer.RBrace) {
			val = p.parseExpr()
		}
		end := p.prevSpan()
		if val != nil {
			end = val.Span()
		}
		p.consumeOptSemi()
		return &ast.ReturnStmt{astBase(start, end), val}
	case p.atKeyword("break"):
		p.advance()
		p.consumeOptSemi()
		return &ast.BreakStmt{astBase(start, start)}
	case p.atKeyword("continue"):
		p.advance()
		p.consumeOptSemi()
		return &ast.ContinueStmt{astBase(start, start)}
	case p.atKeyword("if"):
		return p.parseIfStmt(start)
	case p.atKeyword("while"):
		return p.parseWhileStmt(start)
	case p.atKeyword("for"):
		return p.parseForInStmt(start)
	case p.atKeyword("match"):
		m := p.parseMatchExpr(start)
		return &ast.MatchStmt{astBase(start, m.Span()), m}
	case p.at(lexer.LBrace):
		b := p.parseBlock()
		return &ast.BlockStmt{astBase(start, b.Span()), b}
	default:
		e := p.parseExpr()
		if e == nil {
			return nil
		}
		end := e.Span()
		p.consumeOptSemi()
		return &ast.ExprStmt{astBase(start, end), e}
	}
}

func (p *Parser) consumeOptSemi() {
	if p.at(lexer.Semi) {
		p.advance()
	}
}

func (p *Parser) parseVarStmt() *ast.VarStmt {
	start := p.cur().Span
	mutable := p.atKeyword("var")
	p.advance() // 'let' or 'var'
	name, _ := p.expect(lexer.Identifier)
	var ty ast.TypeRef
	if p.at(lexer.Colon) {
		p.advance()
		ty = p.parseTypeRef()
	}
	var val ast.Expr
	end := name.Span
	if p.at(lexer.Eq) {
		p.advance()
		val = p.parseExpr()
		if val != nil {
			end = val.Span()
		}
	}
	p.consumeOptSemi()
	return &ast.VarStmt{astBase(start, end), name.Text, mutable, ty, val}
}

func (p *Parser) parseIfStmt(start diag.Span) *ast.IfStmt {
	p.expectKeyword("if")
	cond := p.parseExpr()
	then := p.parseBlock()
	var els ast.Node
	end := then.Span()
	if p.atKeyword("else") {
		p.advance()
		if p.atKeyword("if") {
			elseStart := p.cur().Span
			s := p.parseIfStmt(elseStart)
			els = s
			end = s.Span()
		} else {
			b := p.parseBlock()
			els = b
			end = b.Span()
		}
	}
	return &ast.IfStmt{astBase(start, end), cond, then, els}
}

func (p *Parser) parseWhileStmt(start diag.Span) *ast.WhileStmt {
	p.expectKeyword("while")
	cond := p.parseExpr()
	body := p.parseBlock()
	return &ast.WhileStmt{astBase(start, body.Span()), cond, body}
}

func (p *Parser) parseForInStmt(start diag.Span) *ast.ForInStmt {
	p.expectKeyword("for")
	name, _ := p.expect(lexer.Identifier)
	p.expectKeyword("in")
	coll := p.parseExpr()
	body := p.parseBlock()
	return &ast.ForInStmt{astBase(start, body.Span()), name.Text, coll, body}
}

func (p *Parser) parseBlock() *ast.Block {
	start := p.cur().Span
	p.expect(lexer.LBrace)
	var stmts []ast.Stmt
	var tail ast.Expr
	for !p.at(lexer.RBrace) && !p.at(lexer.EOF) {
		if isStmtLeadingKeyword(p.cur()) || p.at(lexer.LBrace) {
			before := p.pos
			s := p.parseStmt()
			if ms, ok := s.(*ast.MatchStmt); ok && p.at(lexer.RBrace) {
				tail = ms.Match
				break
			}
			if s != nil {
				stmts = append(stmts, s)
			}
			if p.pos == before {
				p.advance()
			}
			continue
		}
		before := p.pos
		e := p.parseExpr()
		if e == nil {
			if p.pos == before {
				p.advance()
			}
			continue
		}
		if p.at(lexer.Semi) {
			p.advance()
			stmts = append(stmts, &ast.ExprStmt{astBase(e.Span(), e.Span()), e})
			continue
		}
		// No trailing semicolon: this is the block's tail expression,
		// unless more statements still follow (a parse error we recover
		// from at the synchronize point below).
		if p.at(lexer.RBrace) {
			tail = e
			break
		}
		stmts = append(stmts, &ast.ExprStmt{astBase(e.Span(), e.Span()), e})
	}
	endTok, _ := p.expect(lexer.RBrace)
	end := diag.NewSpan(endTok.Span.Start, endTok.Span.End)
	return &ast.Block{astBase(start, diag.Span{Start: start.Start, End: end.End}), stmts, tail}
}

func isStmtLeadingKeyword(tok lexer.Token) bool {
	if tok.Kind != lexer.Keyword {
		return false
	}
	switch tok.Text {
	case "let", "var", "return", "break", "continue", "if", "while", "for", "match":
		return true
	default:
		return false
	}
}

// ---- patterns ----

func (p *Parser) parsePattern() ast.Pattern {
	start := p.cur().Span
	switch {
	case p.at(lexer.Identifier) && p.cur().Text == "_":
		p.advance()
		return &ast.WildcardPattern{astBase(start, start)}
	case p.at(lexer.IntLiteral) || p.at(lexer.FloatLiteral) || p.at(lexer.StringLiteral) ||
		p.at(lexer.CharLiteral) || p.at(lexer.BoolLiteral) || p.at(lexer.NullLiteral):
		lit := p.parseLiteralToken()
		return &ast.LiteralPattern{astBase(start, lit.Span()), lit}
	case p.at(lexer.LParen):
		p.advance()
		var elems []ast.Pattern
		for !p.at(lexer.RParen) && !p.at(lexer.EOF) {
			elems = append(elems, p.parsePattern())
			if p.at(lexer.Comma) {
				p.advance()
				continue
			}
			break
		}
		endTok, _ := p.expect(lexer.RParen)
		return &ast.TuplePattern{astBase(start, endTok.Span), elems}
	case p.at(lexer.Identifier):
		name := p.advance()
		// Enum.Variant(...) or Variant(...) or Struct{...} or a bare bind.
		if p.at(lexer.Dot) {
			p.advance()
			variant, _ := p.expect(lexer.Identifier)
			fields := p.parseVariantPatternFields()
			end := p.prevSpan()
			return &ast.VariantPattern{astBase(start, end), name.Text, variant.Text, fields}
		}
		if p.at(lexer.LParen) {
			fields := p.parseVariantPatternFields()
			end := p.prevSpan()
			return &ast.VariantPattern{astBase(start, end), "", name.Text, fields}
		}
		if p.at(lexer.LBrace) {
			sfields := p.parseStructPatternFields()
			end := p.prevSpan()
			return &ast.StructPattern{astBase(start, end), name.Text, sfields}
		}
		if p.atKeyword("as") {
			p.advance()
			ty := p.parseTypeRef()
			return &ast.TypeTestPattern{astBase(start, ty.Span()), name.Text, ty}
		}
		return &ast.IdentPattern{astBase(start, name.Span), name.Text}
	default:
		p.bag.Add(diag.Errorf(p.cur().Span, "expected a pattern, found %s", p.cur()))
		tok := p.advance()
		return &ast.WildcardPattern{astBase(tok.Span, tok.Span)}
	}
}

func (p *Parser) parseVariantPatternFields() []ast.Pattern {
	if !p.at(lexer.LParen) {
		return nil
	}
	p.advance()
	var fields []ast.Pattern
	for !p.at(lexer.RParen) && !p.at(lexer.EOF) {
		fields = append(fields, p.parsePattern())
		if p.at(lexer.Comma) {
			p.advance()
			continue
		}
		break
	}
	p.expect(lexer.RParen)
	return fields
}

func (p *Parser) parseStructPatternFields() []ast.FieldPattern {
	p.expect(lexer.LBrace)
	var fields []ast.FieldPattern
	for !p.at(lexer.RBrace) && !p.at(lexer.EOF) {
		name, _ := p.expect(lexer.Identifier)
		var pat ast.Pattern
		if p.at(lexer.Colon) {
			p.advance()
			pat = p.parsePattern()
		} else {
			pat = &ast.IdentPattern{astBase(name.Span, name.Span), name.Text}
		}
		fields = append(fields, ast.FieldPattern{Name: name.Text, Pattern: pat})
		if p.at(lexer.Comma) {
			p.advance()
			continue
		}
		break
	}
	p.expect(lexer.RBrace)
	return fields
}

func (p *Parser) parseLiteralToken() *ast.Literal {
	tok := p.advance()
	var kind ast.LiteralKind
	switch tok.Kind {
	case lexer.IntLiteral:
		kind = ast.LitInt
	case lexer.FloatLiteral:
		kind = ast.LitFloat
	case lexer.StringLiteral:
		kind = ast.LitString
	case lexer.CharLiteral:
		kind = ast.LitChar
	case lexer.BoolLiteral:
		kind = ast.LitBool
	case lexer.NullLiteral:
		kind = ast.LitNull
	}
	return &ast.Literal{astBase(tok.Span, tok.Span), kind, tok.Text}
}

// ---- type references ----

func (p *Parser) parseTypeRef() ast.TypeRef {
	start := p.cur().Span
	var base ast.TypeRef
	switch {
	case p.at(lexer.LParen):
		p.advance()
		var elems []ast.TypeRef
		for !p.at(lexer.RParen) && !p.at(lexer.EOF) {
			elems = append(elems, p.parseTypeRef())
			if p.at(lexer.Comma) {
				p.advance()
				continue
			}
			break
		}
		endTok, _ := p.expect(lexer.RParen)
		base = &ast.TupleTypeRef{astBase(start, endTok.Span), elems}
	case p.at(lexer.LBracket):
		p.advance()
		elem := p.parseTypeRef()
		endTok, _ := p.expect(lexer.RBracket)
		base = &ast.ArrayTypeRef{astBase(start, endTok.Span), elem}
	case p.at(lexer.Identifier):
		name := p.advance()
		if name.Text == "Tensor" && p.at(lexer.LBracket) {
			p.advance()
			elem := p.parseTypeRef()
			var dims []int
			if p.at(lexer.Semi) {
				p.advance()
				for !p.at(lexer.RBracket) && !p.at(lexer.EOF) {
					n, _ := p.expect(lexer.IntLiteral)
					v, _ := strconv.Atoi(n.Text)
					dims = append(dims, v)
					if p.at(lexer.Comma) {
						p.advance()
						continue
					}
					break
				}
			}
			endTok, _ := p.expect(lexer.RBracket)
			base = &ast.TensorTypeRef{astBase(start, endTok.Span), elem, dims}
		} else {
			var generics []ast.TypeRef
			if p.at(lexer.LBracket) {
				p.advance()
				for !p.at(lexer.RBracket) && !p.at(lexer.EOF) {
					generics = append(generics, p.parseTypeRef())
					if p.at(lexer.Comma) {
						p.advance()
						continue
					}
					break
				}
				p.expect(lexer.RBracket)
			}
			end := name.Span
			if len(generics) > 0 {
				end = generics[len(generics)-1].Span()
			}
			base = &ast.NamedTypeRef{astBase(start, end), name.Text, generics}
		}
	default:
		p.bag.Add(diag.Errorf(p.cur().Span, "expected a type, found %s", p.cur()))
		tok := p.advance()
		base = &ast.NamedTypeRef{astBase(tok.Span, tok.Span), "Unknown", nil}
	}

	for {
		if p.at(lexer.Question) {
			tok := p.advance()
			base = &ast.OptionalTypeRef{astBase(base.Span(), tok.Span), base}
			continue
		}
		if p.at(lexer.Not) {
			tok := p.advance()
			base = &ast.NonNullTypeRef{astBase(base.Span(), tok.Span), base}
			continue
		}
		break
	}
	return base
}

// ---- expressions: Pratt parser ----

// bindingPower returns (left, right) binding power for an infix/postfix
// operator token, and ok=false if tok does not start an infix operator.
func bindingPower(tok lexer.Token) (left, right int, ok bool) {
	switch tok.Kind {
	case lexer.Star, lexer.Slash, lexer.Percent, lexer.DotStar, lexer.DotSlash, lexer.At:
		return 60, 61, true
	case lexer.Plus, lexer.Minus, lexer.DotPlus, lexer.DotMinus:
		return 50, 51, true
	case lexer.Lt, lexer.LtEq, lexer.Gt, lexer.GtEq:
		return 40, 41, true
	case lexer.EqEq, lexer.NotEq:
		return 35, 36, true
	case lexer.AndAnd:
		return 30, 31, true
	case lexer.OrOr:
		return 25, 26, true
	case lexer.NullCoalesce:
		return 20, 20, true
	case lexer.Pipe, lexer.Arrow:
		return 15, 16, true
	case lexer.Eq, lexer.PlusEq, lexer.MinusEq, lexer.StarEq, lexer.SlashEq, lexer.PercentEq:
		return 10, 10, true
	default:
		return 0, 0, false
	}
}

func (p *Parser) parseExpr() ast.Expr {
	return p.parsePratt(0)
}

func (p *Parser) parsePratt(minBp int) ast.Expr {
	left := p.parsePrefix()
	if left == nil {
		return nil
	}
	left = p.parsePostfix(left)

	for {
		tok := p.cur()
		lbp, rbp, ok := bindingPower(tok)
		if !ok || lbp < minBp {
			break
		}
		p.advance()
		if isAssignOp(tok.Kind) {
			right := p.parsePratt(rbp)
			if right == nil {
				return left
			}
			left = &ast.Assign{astBase(left.Span(), right.Span()), assignOpFor(tok.Kind), left, right}
			continue
		}
		right := p.parsePratt(rbp + 1)
		if right == nil {
			return left
		}
		left = &ast.Binary{astBase(left.Span(), right.Span()), binaryOpFor(tok.Kind), left, right}
	}
	return left
}

func isAssignOp(k lexer.TokenKind) bool {
	switch k {
	case lexer.Eq, lexer.PlusEq, lexer.MinusEq, lexer.StarEq, lexer.SlashEq, lexer.PercentEq:
		return true
	default:
		return false
	}
}

func assignOpFor(k lexer.TokenKind) ast.AssignOp {
	switch k {
	case lexer.PlusEq:
		return ast.AssignAdd
	case lexer.MinusEq:
		return ast.AssignSub
	case lexer.StarEq:
		return ast.AssignMul
	case lexer.SlashEq:
		return ast.AssignDiv
	case lexer.PercentEq:
		return ast.AssignMod
	default:
		return ast.AssignSet
	}
}

func binaryOpFor(k lexer.TokenKind) ast.BinaryOp {
	switch k {
	case lexer.Plus:
		return ast.Add
	case lexer.Minus:
		return ast.Sub
	case lexer.Star:
		return ast.Mul
	case lexer.Slash:
		return ast.Div
	case lexer.Percent:
		return ast.Mod
	case lexer.DotPlus:
		return ast.TAdd
	case lexer.DotMinus:
		return ast.TSub
	case lexer.DotStar:
		return ast.TMul
	case lexer.DotSlash:
		return ast.TDiv
	case lexer.At:
		return ast.MatMul
	case lexer.Lt:
		return ast.Lt
	case lexer.LtEq:
		return ast.Le
	case lexer.Gt:
		return ast.Gt
	case lexer.GtEq:
		return ast.Ge
	case lexer.EqEq:
		return ast.Eq
	case lexer.NotEq:
		return ast.Ne
	case lexer.AndAnd:
		return ast.And
	case lexer.OrOr:
		return ast.Or
	case lexer.NullCoalesce:
		return ast.NullCoalesce
	case lexer.Pipe:
		return ast.PipeInto
	case lexer.Arrow:
		return ast.ArrowInto
	default:
		return ast.Add
	}
}

func (p *Parser) parsePrefix() ast.Expr {
	start := p.cur().Span
	switch {
	case p.at(lexer.Minus):
		p.advance()
		operand := p.parsePratt(70)
		if operand == nil {
			return nil
		}
		return &ast.Unary{astBase(start, operand.Span()), ast.UnaryNeg, operand}
	case p.at(lexer.Plus):
		p.advance()
		operand := p.parsePratt(70)
		if operand == nil {
			return nil
		}
		return &ast.Unary{astBase(start, operand.Span()), ast.UnaryPos, operand}
	case p.at(lexer.Not):
		p.advance()
		operand := p.parsePratt(70)
		if operand == nil {
			return nil
		}
		return &ast.Unary{astBase(start, operand.Span()), ast.UnaryNot, operand}
	case p.at(lexer.IntLiteral), p.at(lexer.FloatLiteral), p.at(lexer.CharLiteral), p.at(lexer.BoolLiteral), p.at(lexer.NullLiteral):
		return p.parseLiteralToken()
	case p.at(lexer.StringLiteral):
		return p.parseStringOrInterpolated()
	case p.atKeyword("in"), p.at(lexer.Identifier):
		return p.parseIdentOrStructLit()
	case p.atKeyword("@import"), p.atKeyword("@bridge"):
		tok := p.advance()
		return &ast.Ident{astBase(tok.Span, tok.Span), tok.Text}
	case p.at(lexer.LParen):
		p.advance()
		e := p.parsePratt(0)
		endTok, _ := p.expect(lexer.RParen)
		_ = endTok
		return e
	case p.at(lexer.LBracket):
		return p.parseArrayLit(start)
	case p.atKeyword("if"):
		return p.parseIfExpr(start)
	case p.atKeyword("match"):
		return p.parseMatchExpr(start)
	case p.at(lexer.LBrace):
		return p.parseBlock()
	default:
		p.bag.Add(diag.Errorf(p.cur().Span, "unexpected token %s in expression", p.cur()))
		return nil
	}
}

// parseStringOrInterpolated consumes a StringLiteral token, and if it is
// immediately followed by InterpStart/InterpEnd pairs, keeps consuming
// the alternating segment/expr/segment/... sequence into one
// InterpolatedString node.
func (p *Parser) parseStringOrInterpolated() ast.Expr {
	start := p.cur().Span
	first := p.advance()
	if !p.at(lexer.InterpStart) {
		return &ast.Literal{astBase(first.Span, first.Span), ast.LitString, first.Text}
	}
	strs := []string{first.Text}
	var exprs []ast.Expr
	for p.at(lexer.InterpStart) {
		p.advance()
		e := p.parsePratt(0)
		exprs = append(exprs, e)
		p.expect(lexer.InterpEnd)
		if p.at(lexer.StringLiteral) {
			seg := p.advance()
			strs = append(strs, seg.Text)
		} else {
			strs = append(strs, "")
		}
	}
	end := p.prevSpan()
	return &ast.InterpolatedString{astBase(start, end), strs, exprs}
}

func (p *Parser) parseArrayLit(start diag.Span) ast.Expr {
	p.advance()
	var elems []ast.Expr
	for !p.at(lexer.RBracket) && !p.at(lexer.EOF) {
		elems = append(elems, p.parsePratt(0))
		if p.at(lexer.Comma) {
			p.advance()
			continue
		}
		break
	}
	endTok, _ := p.expect(lexer.RBracket)
	return &ast.ArrayLit{astBase(start, endTok.Span), elems}
}

func (p *Parser) parseIdentOrStructLit() ast.Expr {
	name := p.advance()
	if p.at(lexer.LBrace) && looksLikeStructLit(p) {
		p.advance()
		var fields []ast.FieldInit
		for !p.at(lexer.RBrace) && !p.at(lexer.EOF) {
			fname, _ := p.expect(lexer.Identifier)
			p.expect(lexer.Colon)
			val := p.parsePratt(0)
			fields = append(fields, ast.FieldInit{Name: fname.Text, Value: val})
			if p.at(lexer.Comma) {
				p.advance()
				continue
			}
			break
		}
		endTok, _ := p.expect(lexer.RBrace)
		return &ast.StructLit{astBase(name.Span, endTok.Span), name.Text, fields}
	}
	return &ast.Ident{astBase(name.Span, name.Span), name.Text}
}

// looksLikeStructLit disambiguates `Ident { ... }` (a struct literal) from
// an identifier immediately followed by a block (e.g. `if cond { ... }`'s
// condition or a for-in collection). Heuristic: the next token after `{`
// is an identifier followed by `:`.
func looksLikeStructLit(p *Parser) bool {
	if p.toks[p.pos].Kind != lexer.LBrace {
		return false
	}
	i := p.pos + 1
	if i >= len(p.toks) {
		return false
	}
	if p.toks[i].Kind == lexer.RBrace {
		return true
	}
	if p.toks[i].Kind != lexer.Identifier {
		return false
	}
	i++
	return i < len(p.toks) && p.toks[i].Kind == lexer.Colon
}

func (p *Parser) parseIfExpr(start diag.Span) ast.Expr {
	p.advance()
	cond := p.parsePratt(0)
	then := p.parseBlock()
	var els ast.Node
	end := then.Span()
	if p.atKeyword("else") {
		p.advance()
		if p.atKeyword("if") {
			elseStart := p.cur().Span
			e := p.parseIfExpr(elseStart)
			els = e
			end = e.Span()
		} else {
			b := p.parseBlock()
			els = b
			end = b.Span()
		}
	}
	return &ast.If{astBase(start, end), cond, then, els}
}

func (p *Parser) parseMatchExpr(start diag.Span) *ast.Match {
	p.expectKeyword("match")
	scrut := p.parsePratt(0)
	p.expect(lexer.LBrace)
	var arms []ast.MatchArm
	for !p.at(lexer.RBrace) && !p.at(lexer.EOF) {
		pat := p.parsePattern()
		var guard ast.Expr
		if p.atKeyword("if") {
			p.advance()
			guard = p.parsePratt(0)
		}
		p.expect(lexer.FatArrow)
		body := p.parsePratt(0)
		arms = append(arms, ast.MatchArm{Pattern: pat, Guard: guard, Body: body})
		if p.at(lexer.Comma) {
			p.advance()
		}
	}
	endTok, _ := p.expect(lexer.RBrace)
	return &ast.Match{astBase(start, endTok.Span), scrut, arms}
}

// parsePostfix applies call/member/index/try suffixes until none match.
// `?` is parsed but treated as a no-op pass-through by design (spec §4.2).
func (p *Parser) parsePostfix(e ast.Expr) ast.Expr {
	for {
		switch {
		case p.at(lexer.LParen):
			p.advance()
			var args []ast.Expr
			for !p.at(lexer.RParen) && !p.at(lexer.EOF) {
				args = append(args, p.parsePratt(0))
				if p.at(lexer.Comma) {
					p.advance()
					continue
				}
				break
			}
			endTok, _ := p.expect(lexer.RParen)
			e = &ast.Call{astBase(e.Span(), endTok.Span), e, args, nil}
		case p.at(lexer.Dot):
			p.advance()
			name, _ := p.expect(lexer.Identifier)
			e = &ast.Member{astBase(e.Span(), name.Span), e, name.Text}
		case p.at(lexer.LBracket):
			p.advance()
			idx := p.parsePratt(0)
			endTok, _ := p.expect(lexer.RBracket)
			e = &ast.Index{astBase(e.Span(), endTok.Span), e, idx}
		case p.at(lexer.Question):
			// `try` suffix: pass-through; the expression and its span are
			// left unchanged, so the span does not cover the `?` token.
			tok := p.advance()
			e = reSpan(e, tok.Span)
		default:
			return e
		}
	}
}

// reSpan returns e unchanged, used only for the `?` try-suffix no-op;
// extra is ignored, so e's span does not grow to include it.
func reSpan(e ast.Expr, extra diag.Span) ast.Expr {
	return e
}

func (p *Parser) prevSpan() diag.Span {
	idx := p.pos - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(p.toks) {
		idx = len(p.toks) - 1
	}
	return p.toks[idx].Span
}

func (p *Parser) peekKindAt(n int) lexer.TokenKind {
	idx := p.pos + n
	if idx >= len(p.toks) {
		return lexer.EOF
	}
	return p.toks[idx].Kind
}

// astBase builds the value assigned positionally into every ast node's
// embedded base field. base is unexported, but an anonymous struct with
// the same underlying shape is assignable to it positionally from any
// package, so every node literal in this file is built without keys.
func astBase(start, end diag.Span) struct{ SpanInfo diag.Span } {
	return struct{ SpanInfo diag.Span }{diag.NewSpan(start.Start, end.End)}
}
