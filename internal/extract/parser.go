package extract

import (
	"strings"

	"github.com/roach88/kotars/internal/ir"
	"github.com/roach88/kotars/internal/typemap"
)

// Marker attributes that select a declaration for binding.
const (
	AttrClass      = "jni_class"
	AttrDataClass  = "jni_data_class"
	AttrInterface  = "jni_interface"
	AttrStructImpl = "jni_struct_impl"

	// MacroInit declares the host package: jni_init!("dev.example").
	MacroInit = "jni_init"
)

var markerTargets = map[string]string{
	AttrClass:      "struct",
	AttrDataClass:  "struct",
	AttrInterface:  "trait",
	AttrStructImpl: "impl",
}

type attribute struct {
	name string
	tok  Token
}

type parser struct {
	tokens []Token
	pos    int
	eof    Token
}

func newParser(tokens []Token) *parser {
	eof := Token{Kind: Punct}
	if n := len(tokens); n > 0 {
		eof.Line = tokens[n-1].Line
		eof.Col = tokens[n-1].Col + len(tokens[n-1].Value)
	}
	return &parser{tokens: tokens, eof: eof}
}

func (p *parser) atEnd() bool {
	return p.pos >= len(p.tokens)
}

func (p *parser) peek() Token {
	return p.peekAt(0)
}

func (p *parser) peekAt(n int) Token {
	if p.pos+n < len(p.tokens) {
		return p.tokens[p.pos+n]
	}
	return p.eof
}

func (p *parser) next() Token {
	tok := p.peek()
	if !p.atEnd() {
		p.pos++
	}
	return tok
}

func (p *parser) accept(kind Kind, value string) bool {
	if p.peek().is(kind, value) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expect(kind Kind, value string) (Token, error) {
	tok := p.peek()
	if !tok.is(kind, value) {
		return tok, errorAt(tok, CodeSyntax, "expected %q, found %s", value, describe(tok, p.atEnd()))
	}
	p.pos++
	return tok, nil
}

func (p *parser) expectIdent() (Token, error) {
	tok := p.peek()
	if tok.Kind != Ident || p.atEnd() {
		return tok, errorAt(tok, CodeSyntax, "expected identifier, found %s", describe(tok, p.atEnd()))
	}
	p.pos++
	return tok, nil
}

func describe(tok Token, eof bool) string {
	if eof {
		return "end of input"
	}
	return tok.Kind.String() + " " + `"` + tok.Value + `"`
}

// attributes consumes outer attributes and returns their names (last path
// segment). Inner attributes (#![...]) are skipped.
func (p *parser) attributes() ([]attribute, error) {
	var attrs []attribute
	for p.peek().is(Punct, "#") {
		hash := p.next()
		inner := p.accept(Punct, "!")
		if _, err := p.expect(Punct, "["); err != nil {
			return nil, err
		}
		var name string
		depth := 1
		for depth > 0 {
			if p.atEnd() {
				return nil, errorAt(hash, CodeSyntax, "unterminated attribute")
			}
			tok := p.next()
			switch {
			case tok.is(Punct, "[") || tok.is(Punct, "(") || tok.is(Punct, "{"):
				depth++
			case tok.is(Punct, "]") || tok.is(Punct, ")") || tok.is(Punct, "}"):
				depth--
			case depth == 1 && tok.Kind == Ident && (name == "" || p.tokens[p.pos-2].is(Punct, "::")):
				name = tok.Value
			}
		}
		if !inner {
			attrs = append(attrs, attribute{name: name, tok: hash})
		}
	}
	return attrs, nil
}

// visibility consumes pub, pub(crate), pub(in path) and reports whether the
// item is unrestricted pub.
func (p *parser) visibility() bool {
	if !p.accept(Ident, "pub") {
		return false
	}
	if p.peek().is(Punct, "(") {
		p.skipBalanced()
		return false
	}
	return true
}

// skipBalanced consumes one bracketed group starting at the current token.
func (p *parser) skipBalanced() {
	depth := 0
	for !p.atEnd() {
		tok := p.next()
		switch {
		case isOpen(tok):
			depth++
		case isClose(tok):
			depth--
		}
		if depth <= 0 {
			return
		}
	}
}

// skipItem consumes an uninteresting item: up to a ';' at depth zero or
// through the first top-level brace group.
func (p *parser) skipItem() {
	depth := 0
	for !p.atEnd() {
		tok := p.peek()
		if depth == 0 && tok.is(Punct, "{") {
			p.skipBalanced()
			p.accept(Punct, ";")
			return
		}
		p.next()
		switch {
		case isOpen(tok):
			depth++
		case isClose(tok):
			depth--
		case depth == 0 && tok.is(Punct, ";"):
			return
		}
	}
}

func isOpen(tok Token) bool {
	return tok.Kind == Punct && (tok.Value == "(" || tok.Value == "[" || tok.Value == "{")
}

func isClose(tok Token) bool {
	return tok.Kind == Punct && (tok.Value == ")" || tok.Value == "]" || tok.Value == "}")
}

// typeTokens collects a type up to one of stops at nesting depth zero.
// Angle brackets count as nesting.
func (p *parser) typeTokens(stops ...string) ([]Token, error) {
	start := p.peek()
	var toks []Token
	depth := 0
	for {
		if p.atEnd() {
			return nil, errorAt(start, CodeSyntax, "unterminated type")
		}
		tok := p.peek()
		if depth == 0 && tok.Kind != String {
			for _, s := range stops {
				if tok.Value == s {
					if len(toks) == 0 {
						return nil, errorAt(tok, CodeSyntax, "expected type, found %s", describe(tok, false))
					}
					return toks, nil
				}
			}
		}
		switch {
		case isOpen(tok) || tok.is(Punct, "<"):
			depth++
		case isClose(tok) || tok.is(Punct, ">"):
			depth--
			if depth < 0 {
				return nil, errorAt(tok, CodeSyntax, "unbalanced %q in type", tok.Value)
			}
		}
		toks = append(toks, p.next())
	}
}

// nativeType is a type as written, split into its reference prefix and
// the wire type of the referent.
type nativeType struct {
	borrow ir.Borrow
	wire   ir.WireType
	text   string
}

// resolveType spells toks with single spaces and maps the result. A
// leading & or &mut becomes the borrow; str and [u8] are the borrowed
// forms of String and Vec<u8>; Self names owner.
func resolveType(toks []Token, owner string) nativeType {
	var nt nativeType
	if len(toks) > 0 && toks[0].is(Punct, "&") {
		nt.borrow = ir.BorrowShared
		toks = toks[1:]
		if len(toks) > 0 && toks[0].Kind == Lifetime {
			toks = toks[1:]
		}
		if len(toks) > 0 && toks[0].is(Ident, "mut") {
			nt.borrow = ir.BorrowMutable
			toks = toks[1:]
		}
	}

	words := make([]string, len(toks))
	for i, tok := range toks {
		words[i] = tok.Value
		if tok.is(Ident, "Self") && owner != "" {
			words[i] = owner
		}
	}
	nt.text = strings.Join(words, " ")

	switch {
	case nt.text == "( )":
		nt.wire = ir.Void
	case nt.borrow != ir.BorrowNone && nt.text == "str":
		nt.wire = ir.Utf8String
	case nt.borrow != ir.BorrowNone && nt.text == "[ u8 ]":
		nt.wire = ir.ByteBuffer
	default:
		nt.wire = typemap.Parse(nt.text)
	}
	return nt
}
