package syntax

import (
	"fmt"
	"unicode/utf8"
)

// Parse parses one source file into a concrete syntax tree rooted at a
// Program node.
func Parse(file, src string) (prog *Node, err error) {
	toks, err := Tokenize(file, src)
	if err != nil {
		return nil, err
	}

	p := &parser{toks: toks}
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			prog, err = nil, b.err
		}
	}()
	return p.program(), nil
}

// bailout unwinds the parser on the first syntax error.
type bailout struct {
	err *Error
}

type parser struct {
	toks []Token
	i    int
}

func (p *parser) peek() Token {
	return p.toks[p.i]
}

func (p *parser) peekN(n int) Token {
	if p.i+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.i+n]
}

func (p *parser) next() Token {
	tok := p.toks[p.i]
	if tok.Kind != EOF {
		p.i++
	}
	return tok
}

func (p *parser) at(text string) bool {
	return p.peek().Is(text)
}

// atSameLine reports whether the next token is text and continues the
// current line. Operators and call brackets only bind on the same line.
func (p *parser) atSameLine(text string) bool {
	return p.at(text) && !p.peek().NewLine
}

// posOf keeps only the position of an introducing token.
func posOf(tok Token) Token {
	return Token{Pos: tok.Pos}
}

func (p *parser) errorf(tok Token, format string, args ...any) {
	panic(bailout{err: &Error{Pos: tok.Pos, Message: fmt.Sprintf(format, args...)}})
}

func (p *parser) expect(text string) Token {
	tok := p.next()
	if !tok.Is(text) {
		p.errorf(tok, "expected %q, found %s", text, tok)
	}
	return tok
}

func (p *parser) expectIdent() Token {
	tok := p.next()
	if tok.Kind != Ident {
		p.errorf(tok, "expected identifier, found %s", tok)
	}
	return tok
}

func (p *parser) program() *Node {
	prog := &Node{Rule: RuleProgram, Tok: posOf(p.peek())}
	for p.at("import") {
		prog.Kids = append(prog.Kids, p.importDecl())
	}
	for p.peek().Kind != EOF {
		prog.Kids = append(prog.Kids, p.topLevelDecl())
	}
	return prog
}

func (p *parser) importDecl() *Node {
	n := &Node{Rule: RuleImportDecl, Tok: posOf(p.expect("import"))}
	if p.at("(") {
		p.next()
		for !p.at(")") {
			n.Kids = append(n.Kids, p.importSpec())
		}
		p.next()
		return n
	}
	n.Kids = append(n.Kids, p.importSpec())
	return n
}

func (p *parser) importSpec() *Node {
	var alias *Node
	if p.peek().Kind == Ident {
		tok := p.next()
		alias = &Node{Rule: RuleNamespace, Tok: tok}
	}
	path := p.next()
	if path.Kind != String {
		p.errorf(path, "expected import path string, found %s", path)
	}
	return &Node{Rule: RuleImportSpec, Tok: path, Kids: []*Node{alias}}
}

func (p *parser) topLevelDecl() *Node {
	tok := p.peek()
	switch {
	case tok.Is("func"):
		p.next()
		name := p.expectIdent()
		sig := p.signature()
		return &Node{Rule: RuleFunctionDecl, Tok: name, Kids: []*Node{sig, p.block()}}
	case tok.Is("graph"):
		p.next()
		name := p.expectIdent()
		return &Node{Rule: RuleGraphDecl, Tok: name, Kids: []*Node{p.block()}}
	case tok.Is("let"), tok.Is("tref"):
		return p.binding(RuleLetDecl)
	case tok.Is("var"):
		return p.binding(RuleVarDecl)
	}
	p.errorf(tok, "expected declaration, found %s", tok)
	return nil
}

func (p *parser) signature() *Node {
	sig := &Node{Rule: RuleSignature, Tok: posOf(p.peek()), Kids: []*Node{nil, nil}}
	if p.atSameLine("[") {
		sig.Kids[0] = p.attrParams()
	}
	if p.atSameLine("(") {
		sig.Kids[1] = p.inputParams()
	}
	return sig
}

func (p *parser) attrParams() *Node {
	n := &Node{Rule: RuleAttrParams, Tok: posOf(p.expect("["))}
	for !p.at("]") {
		tok := p.expectIdent()
		n.Kids = append(n.Kids, &Node{Rule: RuleParam, Tok: tok, Kids: []*Node{nil}})
		if !p.at("]") {
			p.expect(",")
		}
	}
	p.next()
	return n
}

func (p *parser) inputParams() *Node {
	n := &Node{Rule: RuleInputParams, Tok: posOf(p.expect("("))}
	for !p.at(")") {
		tok := p.expectIdent()
		n.Kids = append(n.Kids, &Node{Rule: RuleParam, Tok: tok, Kids: []*Node{p.kind()}})
		if !p.at(")") {
			p.expect(",")
		}
	}
	p.next()
	return n
}

// kind parses an optional "[scalar] [type] [<shape>]" annotation on the
// current line. It returns nil when there is none.
func (p *parser) kind() *Node {
	var typ, shape *Node
	start := p.peek()
loop:
	for !p.peek().NewLine {
		tok := p.peek()
		switch {
		case tok.Is("scalar") && shape == nil:
			p.next()
			shape = &Node{Rule: RuleShape, Tok: posOf(tok)}
		case tok.Kind == Ident && typ == nil:
			p.next()
			typ = &Node{Rule: RuleType, Tok: tok}
		case tok.Is("<") && shape == nil:
			shape = p.shape()
		default:
			break loop
		}
	}
	if typ == nil && shape == nil {
		return nil
	}
	return &Node{Rule: RuleKind, Tok: posOf(start), Kids: []*Node{typ, shape}}
}

func (p *parser) shape() *Node {
	n := &Node{Rule: RuleShape, Tok: posOf(p.expect("<"))}
	for !p.at(">") {
		tok := p.next()
		if tok.Kind != Number && !tok.Is("?") {
			p.errorf(tok, "expected dimension, found %s", tok)
		}
		n.Kids = append(n.Kids, &Node{Rule: RuleDim, Tok: tok})
		if !p.at(">") {
			p.expect(",")
		}
	}
	p.next()
	return n
}

// scanShape returns the index just past a well-formed shape starting at j,
// or -1.
func (p *parser) scanShape(j int) int {
	if j >= len(p.toks) || !p.toks[j].Is("<") {
		return -1
	}
	for j++; j < len(p.toks); j++ {
		tok := p.toks[j]
		switch {
		case tok.Is(">"):
			return j + 1
		case tok.Kind == Number, tok.Is("?"), tok.Is(","):
		default:
			return -1
		}
	}
	return -1
}

// isAssignment looks ahead for "name [kind] =" on the current line.
func (p *parser) isAssignment() bool {
	if p.peek().Kind != Ident {
		return false
	}
	j := p.i + 1
	for j < len(p.toks) && !p.toks[j].NewLine {
		tok := p.toks[j]
		switch {
		case tok.Is("="):
			return true
		case tok.Kind == Ident, tok.Is("scalar"):
			j++
		case tok.Is("<"):
			if j = p.scanShape(j); j < 0 {
				return false
			}
		default:
			return false
		}
	}
	return false
}

func (p *parser) block() *Node {
	n := &Node{Rule: RuleBlock, Tok: posOf(p.expect("{"))}
	for !p.at("}") {
		if p.peek().Kind == EOF {
			p.errorf(p.peek(), "expected \"}\", found end of input")
		}
		n.Kids = append(n.Kids, p.statement())
	}
	p.next()
	return n
}

func (p *parser) statement() *Node {
	tok := p.peek()
	switch {
	case tok.Is("<-"), tok.Is("emit"):
		p.next()
		name := p.expectIdent()
		kind := p.kind()
		var value *Node
		if p.atSameLine("=") {
			p.next()
			value = p.expression()
		}
		return &Node{Rule: RuleOutputDecl, Tok: name, Kids: []*Node{kind, value}}
	case tok.Is("let"), tok.Is("tref"):
		return p.binding(RuleLetDecl)
	case tok.Is("var"):
		return p.binding(RuleVarDecl)
	case tok.Is("@@"):
		p.next()
		return &Node{Rule: RuleAttrDecl, Tok: p.expectIdent()}
	case tok.Kind == Ident && p.peekN(1).Is(":="):
		name := p.next()
		p.next()
		return &Node{Rule: RuleVarUpdate, Tok: name, Kids: []*Node{p.expression()}}
	case p.isAssignment():
		return p.assignment(p.expression)
	}
	return p.expression()
}

// binding parses "let|var name [kind] = value".
func (p *parser) binding(rule Rule) *Node {
	p.next()
	name := p.expectIdent()
	kind := p.kind()
	p.expect("=")
	return &Node{Rule: rule, Tok: name, Kids: []*Node{kind, p.expression()}}
}

func (p *parser) assignment(value func() *Node) *Node {
	name := p.expectIdent()
	kind := p.kind()
	p.expect("=")
	return &Node{Rule: RuleAssignment, Tok: name, Kids: []*Node{kind, value()}}
}

func (p *parser) expression() *Node {
	e := p.pipeline()
	if p.atSameLine("--") {
		p.next()
		name := p.expectIdent()
		return &Node{Rule: RuleNamed, Tok: name, Kids: []*Node{e}}
	}
	return e
}

func (p *parser) pipeline() *Node {
	first := p.compare()
	if !p.atSameLine(";") {
		return first
	}
	n := &Node{Rule: RulePipeline, Tok: posOf(p.peek()), Kids: []*Node{first}}
	for p.atSameLine(";") {
		p.next()
		n.Kids = append(n.Kids, p.compare())
	}
	return n
}

func (p *parser) binary(operand func() *Node, ops ...string) *Node {
	left := operand()
	for {
		matched := false
		for _, op := range ops {
			if p.atSameLine(op) {
				tok := p.next()
				left = &Node{Rule: RuleBinary, Tok: tok, Kids: []*Node{left, operand()}}
				matched = true
				break
			}
		}
		if !matched {
			return left
		}
	}
}

func (p *parser) compare() *Node {
	return p.binary(p.sum, "<=", "<", "==", "!=", ">=", ">")
}

func (p *parser) sum() *Node {
	return p.binary(p.product, "+", "-")
}

func (p *parser) product() *Node {
	return p.binary(p.postfix, "*", "/", "%")
}

func (p *parser) postfix() *Node {
	e := p.primary()
	for p.tightIndex(p.i - 1) {
		p.next()
		idx := p.next()
		e = &Node{Rule: RuleIndex, Tok: idx, Kids: []*Node{e}}
	}
	return e
}

func adjacent(a, b Token) bool {
	return a.Pos.Line == b.Pos.Line && b.Pos.Col == a.Pos.Col+utf8.RuneCountInString(a.Text)
}

// tightIndex reports whether toks[j], ":" and an index are written with no
// space between them, as in out:x. Spaced "name: value" is a keyword
// argument.
func (p *parser) tightIndex(j int) bool {
	if j < 0 || j+2 >= len(p.toks) {
		return false
	}
	target, colon, idx := p.toks[j], p.toks[j+1], p.toks[j+2]
	return colon.Is(":") && (idx.Kind == Ident || idx.Kind == Number) &&
		adjacent(target, colon) && adjacent(colon, idx)
}

// negativeNumber reports whether the next tokens are "-" directly followed by
// a number, which lexes as a single negative literal in operand position.
func (p *parser) negativeNumber() bool {
	minus, num := p.peek(), p.peekN(1)
	return minus.Is("-") && num.Kind == Number && !num.NewLine &&
		num.Pos.Line == minus.Pos.Line && num.Pos.Col == minus.Pos.Col+1
}

func (p *parser) number() *Node {
	if p.negativeNumber() {
		minus := p.next()
		num := p.next()
		minus.Kind = Number
		minus.Text = "-" + num.Text
		return &Node{Rule: RuleNumber, Tok: minus}
	}
	tok := p.next()
	if tok.Kind != Number {
		p.errorf(tok, "expected number, found %s", tok)
	}
	return &Node{Rule: RuleNumber, Tok: tok}
}

func (p *parser) primary() *Node {
	tok := p.peek()
	switch {
	case tok.Kind == Number || p.negativeNumber():
		return &Node{Rule: RuleTensorLiteral, Tok: posOf(tok), Kids: []*Node{p.number()}}
	case tok.Is("["):
		return &Node{Rule: RuleTensorLiteral, Tok: posOf(tok), Kids: []*Node{p.tensorArray()}}
	case tok.Kind == String:
		p.next()
		return &Node{Rule: RuleString, Tok: tok}
	case tok.Is("true"), tok.Is("false"):
		p.next()
		return &Node{Rule: RuleBool, Tok: tok}
	case tok.Is("{"):
		return p.listLiteral()
	case tok.Is("^"):
		p.next()
		return &Node{Rule: RuleAbove, Tok: tok}
	case tok.Is("here"):
		p.next()
		return &Node{Rule: RuleHere, Tok: tok}
	case tok.Is("("):
		p.next()
		e := p.expression()
		p.expect(")")
		return e
	case tok.Is("func"):
		p.next()
		sig := p.signature()
		return &Node{Rule: RuleFuncLiteral, Tok: posOf(tok), Kids: []*Node{sig, p.block()}}
	case tok.Is("if"):
		return p.ifExpr()
	case tok.Is("for"), tok.Is("rec"):
		return p.forExpr()
	case tok.Is("after"):
		p.next()
		leaves := p.expectIdent()
		if leaves.Text != "__leaves" {
			p.errorf(leaves, "expected __leaves, found %s", leaves)
		}
		return &Node{Rule: RuleAfter, Tok: posOf(tok), Kids: []*Node{p.block()}}
	case tok.Kind == Ident:
		return p.reference()
	}
	p.errorf(tok, "expected expression, found %s", tok)
	return nil
}

func (p *parser) tensorArray() *Node {
	n := &Node{Rule: RuleTensorArray, Tok: posOf(p.expect("["))}
	for !p.at("]") {
		if p.at("[") {
			n.Kids = append(n.Kids, p.tensorArray())
		} else {
			n.Kids = append(n.Kids, p.number())
		}
		if !p.at("]") {
			p.expect(",")
		}
	}
	p.next()
	return n
}

func (p *parser) listLiteral() *Node {
	n := &Node{Rule: RuleListLiteral, Tok: posOf(p.expect("{"))}
	for !p.at("}") {
		n.Kids = append(n.Kids, p.expression())
		if !p.at("}") {
			p.expect(",")
		}
	}
	p.next()
	return n
}

func (p *parser) ifExpr() *Node {
	tok := p.expect("if")
	pred := p.expression()
	p.expect("{")
	then := p.expression()
	p.expect("}")
	p.expect("else")
	p.expect("{")
	els := p.expression()
	p.expect("}")
	return &Node{Rule: RuleIf, Tok: posOf(tok), Kids: []*Node{pred, then, els}}
}

func (p *parser) forExpr() *Node {
	tok := p.next()
	inits := &Node{Rule: RuleInitializers, Tok: posOf(p.peek())}
	for p.isAssignment() {
		inits.Kids = append(inits.Kids, p.assignment(p.compare))
		p.expect(";")
	}
	cond := p.compare()
	return &Node{Rule: RuleFor, Tok: posOf(tok), Kids: []*Node{inits, cond, p.block()}}
}

func (p *parser) reference() *Node {
	name := p.expectIdent()
	var ns *Node
	if p.atSameLine(".") && p.peekN(1).Kind == Ident {
		ns = &Node{Rule: RuleNamespace, Tok: name}
		p.next()
		name = p.next()
	}

	var attrs *Node
	if p.atSameLine("[") {
		attrs = p.attrBlock()
	}

	if !p.atSameLine("(") {
		return &Node{Rule: RuleReference, Tok: name, Kids: []*Node{ns, attrs}}
	}

	if p.peekN(1).Kind == Ident && p.peekN(2).Is(":") && !p.tightIndex(p.i+1) {
		return &Node{Rule: RuleApplyKeywords, Tok: name, Kids: []*Node{ns, attrs, p.kwArgs()}}
	}
	return &Node{Rule: RuleApply, Tok: name, Kids: []*Node{ns, attrs, p.args()}}
}

func (p *parser) args() *Node {
	n := &Node{Rule: RuleArgs, Tok: posOf(p.expect("("))}
	for !p.at(")") {
		n.Kids = append(n.Kids, p.expression())
		if !p.at(")") {
			p.expect(",")
		}
	}
	p.next()
	return n
}

func (p *parser) kwArgs() *Node {
	n := &Node{Rule: RuleKwArgs, Tok: posOf(p.expect("("))}
	for !p.at(")") {
		name := p.expectIdent()
		p.expect(":")
		n.Kids = append(n.Kids, &Node{Rule: RuleKwArg, Tok: name, Kids: []*Node{p.expression()}})
		if !p.at(")") {
			p.expect(",")
		}
	}
	p.next()
	return n
}

func (p *parser) attrBlock() *Node {
	n := &Node{Rule: RuleAttrBlock, Tok: posOf(p.expect("["))}
	for !p.at("]") {
		if p.at("...") {
			n.Kids = append(n.Kids, &Node{Rule: RuleEllipsis, Tok: p.next()})
		} else {
			name := p.expectIdent()
			p.expect(":")
			n.Kids = append(n.Kids, &Node{Rule: RuleAttrEntry, Tok: name, Kids: []*Node{p.attrValue()}})
		}
		if !p.at("]") {
			p.expect(",")
		}
	}
	p.next()
	return n
}

func (p *parser) attrValue() *Node {
	tok := p.peek()
	switch {
	case tok.Kind == Number || p.negativeNumber():
		return p.number()
	case tok.Kind == String:
		p.next()
		return &Node{Rule: RuleString, Tok: tok}
	case tok.Is("true"), tok.Is("false"):
		p.next()
		return &Node{Rule: RuleBool, Tok: tok}
	case tok.Is("<"):
		return p.shape()
	case tok.Is("["):
		n := &Node{Rule: RuleAttrList, Tok: posOf(p.next())}
		for !p.at("]") {
			n.Kids = append(n.Kids, p.attrValue())
			if !p.at("]") {
				p.expect(",")
			}
		}
		p.next()
		return n
	case tok.Kind == Ident:
		name := p.next()
		var ns *Node
		if p.atSameLine(".") && p.peekN(1).Kind == Ident {
			ns = &Node{Rule: RuleNamespace, Tok: name}
			p.next()
			name = p.next()
		}
		var attrs *Node
		if p.atSameLine("[") {
			attrs = p.attrBlock()
		}
		return &Node{Rule: RuleAttrReference, Tok: name, Kids: []*Node{ns, attrs}}
	}
	p.errorf(tok, "expected attribute value, found %s", tok)
	return nil
}
