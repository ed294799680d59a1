package extract

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/kotars/internal/ir"
)

// File is the binding surface declared by one native source file.
type File struct {
	Path        string
	Package     string
	HasPackage  bool
	Classes     []ir.Struct
	DataClasses []ir.Struct
	Interfaces  []ir.Interface
	Functions   []ir.Function
}

// Bundle returns the file's declarations as an IR bundle.
func (f *File) Bundle() *ir.Bundle {
	return &ir.Bundle{
		Package:     f.Package,
		Functions:   f.Functions,
		Classes:     f.Classes,
		DataClasses: f.DataClasses,
		Interfaces:  f.Interfaces,
	}
}

// ExtractFile reads every marked declaration in src. path is only used in
// error positions.
func ExtractFile(path string, src []byte) (*File, error) {
	tokens, err := Tokenize(string(src))
	if err != nil {
		return nil, withFile(err, path)
	}

	x := &extractor{p: newParser(tokens), file: &File{Path: path}, seen: make(map[string]Token)}
	if err := x.items(""); err != nil {
		return nil, withFile(err, path)
	}

	f := x.file
	Logger().Debug("extracted declarations",
		zap.String("path", path),
		zap.String("package", f.Package),
		zap.Int("classes", len(f.Classes)),
		zap.Int("data_classes", len(f.DataClasses)),
		zap.Int("interfaces", len(f.Interfaces)),
		zap.Int("functions", len(f.Functions)))
	return f, nil
}

// ExtractStruct reads the first struct declaration in src, marked or not.
func ExtractStruct(src string) (ir.Struct, error) {
	p, err := parserFor(src)
	if err != nil {
		return ir.Struct{}, err
	}
	if err := p.seek("struct"); err != nil {
		return ir.Struct{}, err
	}
	s, _, err := p.structDecl()
	return s, err
}

// ExtractInterface reads the first trait declaration in src.
func ExtractInterface(src string) (ir.Interface, error) {
	p, err := parserFor(src)
	if err != nil {
		return ir.Interface{}, err
	}
	if err := p.seek("trait"); err != nil {
		return ir.Interface{}, err
	}
	iface, _, err := p.traitDecl()
	return iface, err
}

// ExtractImpl reads every inherent impl block in src and returns the
// methods of those implemented for owner, in declaration order.
func ExtractImpl(src, owner string) ([]ir.Function, error) {
	p, err := parserFor(src)
	if err != nil {
		return nil, err
	}
	var fns []ir.Function
	for {
		if err := p.seek("impl"); err != nil {
			if p.atEnd() {
				return fns, nil
			}
			return nil, err
		}
		target, methods, _, err := p.implDecl()
		if err != nil {
			return nil, err
		}
		if target == owner {
			fns = append(fns, methods...)
		}
	}
}

// Merge combines files declaring one binding surface. Entity names must
// be unique across files and at most one package may be declared.
func Merge(files ...*File) (*File, error) {
	out := &File{}
	owners := make(map[string]string)
	fns := make(map[string]string)
	claim := func(name, path string) error {
		if prev, ok := owners[name]; ok {
			return &Error{Code: CodeDuplicate, Item: name, File: path, Message: "already declared in " + prev}
		}
		owners[name] = path
		return nil
	}

	for _, f := range files {
		if f.HasPackage {
			if out.HasPackage && out.Package != f.Package {
				return nil, &Error{Code: CodeDuplicate, File: f.Path,
					Message: fmt.Sprintf("package %q conflicts with %q", f.Package, out.Package)}
			}
			out.Package, out.HasPackage = f.Package, true
		}
		for _, s := range f.Classes {
			if err := claim(s.Name, f.Path); err != nil {
				return nil, err
			}
			out.Classes = append(out.Classes, s)
		}
		for _, s := range f.DataClasses {
			if err := claim(s.Name, f.Path); err != nil {
				return nil, err
			}
			out.DataClasses = append(out.DataClasses, s)
		}
		for _, i := range f.Interfaces {
			if err := claim(i.Name, f.Path); err != nil {
				return nil, err
			}
			out.Interfaces = append(out.Interfaces, i)
		}
		for _, fn := range f.Functions {
			key := fn.Owner + "::" + fn.Name
			if prev, ok := fns[key]; ok {
				return nil, &Error{Code: CodeDuplicate, Item: key, File: f.Path, Message: "already declared in " + prev}
			}
			fns[key] = f.Path
			out.Functions = append(out.Functions, fn)
		}
	}
	if len(files) == 1 {
		out.Path = files[0].Path
	}
	return out, nil
}

func parserFor(src string) (*parser, error) {
	tokens, err := Tokenize(src)
	if err != nil {
		return nil, err
	}
	return newParser(tokens), nil
}

func withFile(err error, path string) error {
	var e *Error
	if errors.As(err, &e) && e.File == "" {
		e.File = path
	}
	return err
}

// seek advances to the next item introduced by keyword at any nesting.
// The keyword must start an item, so "impl Trait" in a type position is
// passed over.
func (p *parser) seek(keyword string) error {
	for !p.atEnd() {
		if p.peek().is(Ident, keyword) && p.itemStart() {
			return nil
		}
		p.next()
	}
	return errorAt(p.eof, CodeSyntax, "no %s declaration found", keyword)
}

func (p *parser) itemStart() bool {
	if p.pos == 0 {
		return true
	}
	prev := p.tokens[p.pos-1]
	switch {
	case prev.Kind == Punct:
		return prev.Value == "}" || prev.Value == ";" || prev.Value == "]" || prev.Value == "{" || prev.Value == ")"
	case prev.Kind == Ident:
		return prev.Value == "pub" || prev.Value == "unsafe"
	}
	return false
}

type extractor struct {
	p    *parser
	file *File
	seen map[string]Token
}

// items reads items until close (a closing brace) or end of input.
func (x *extractor) items(close string) error {
	p := x.p
	for !p.atEnd() {
		if close != "" && p.peek().is(Punct, close) {
			p.next()
			return nil
		}

		attrs, err := p.attributes()
		if err != nil {
			return err
		}
		marker, markerTok := "", Token{}
		for _, a := range attrs {
			if _, ok := markerTargets[a.name]; ok {
				if marker != "" {
					return errorAt(a.tok, CodeBadTarget, "both #[%s] and #[%s] on one item", marker, a.name)
				}
				marker, markerTok = a.name, a.tok
			}
		}

		if p.peek().is(Ident, MacroInit) && p.peekAt(1).is(Punct, "!") {
			if marker != "" {
				return errorAt(markerTok, CodeBadTarget, "#[%s] cannot mark a macro invocation", marker)
			}
			if err := x.packageDecl(); err != nil {
				return err
			}
			continue
		}

		p.visibility()
		p.accept(Ident, "unsafe")
		kw := p.peek()

		if marker != "" && !kw.is(Ident, markerTargets[marker]) {
			return errorAt(markerTok, CodeBadTarget, "#[%s] must mark a %s, found %s",
				marker, markerTargets[marker], describe(kw, p.atEnd()))
		}

		switch {
		case marker == AttrClass || marker == AttrDataClass:
			s, tok, err := p.structDecl()
			if err != nil {
				return err
			}
			if err := x.declare(s.Name, tok); err != nil {
				return err
			}
			if marker == AttrClass {
				x.file.Classes = append(x.file.Classes, s)
			} else {
				x.file.DataClasses = append(x.file.DataClasses, s)
			}

		case marker == AttrInterface:
			iface, tok, err := p.traitDecl()
			if err != nil {
				return err
			}
			if err := x.declare(iface.Name, tok); err != nil {
				return err
			}
			x.file.Interfaces = append(x.file.Interfaces, iface)

		case marker == AttrStructImpl:
			_, methods, toks, err := p.implDecl()
			if err != nil {
				return err
			}
			for i, fn := range methods {
				if err := x.declare(fn.Owner+"::"+fn.Name, toks[i]); err != nil {
					return err
				}
			}
			x.file.Functions = append(x.file.Functions, methods...)

		case kw.is(Ident, "mod") && p.peekAt(2).is(Punct, "{"):
			p.next()
			p.next()
			p.next()
			if err := x.items("}"); err != nil {
				return err
			}

		default:
			p.skipItem()
		}
	}
	if close != "" {
		return errorAt(p.eof, CodeSyntax, "expected %q, found end of input", close)
	}
	return nil
}

func (x *extractor) declare(name string, tok Token) error {
	if prev, ok := x.seen[name]; ok {
		e := errorAt(tok, CodeDuplicate, "already declared at line %d", prev.Line)
		e.Item = name
		return e
	}
	x.seen[name] = tok
	return nil
}

func (x *extractor) packageDecl() error {
	p := x.p
	start := p.next()
	p.next()
	open := p.next()
	closing := map[string]string{"(": ")", "{": "}", "[": "]"}[open.Value]
	if open.Kind != Punct || closing == "" {
		return errorAt(open, CodeSyntax, "expected %s!(\"package\")", MacroInit)
	}
	lit := p.next()
	if lit.Kind != String {
		return errorAt(lit, CodeSyntax, "%s! takes one string literal", MacroInit)
	}
	if _, err := p.expect(Punct, closing); err != nil {
		return err
	}
	p.accept(Punct, ";")

	if x.file.HasPackage {
		return errorAt(start, CodeDuplicate, "%s! invoked more than once", MacroInit)
	}
	x.file.Package, x.file.HasPackage = lit.Value, true
	return nil
}

// structDecl parses "struct Name { ... }", "struct Name(...);" or
// "struct Name;" at the struct keyword.
func (p *parser) structDecl() (ir.Struct, Token, error) {
	if _, err := p.expect(Ident, "struct"); err != nil {
		return ir.Struct{}, Token{}, err
	}
	nameTok, err := p.expectIdent()
	if err != nil {
		return ir.Struct{}, nameTok, err
	}
	s := ir.Struct{Name: nameTok.Value, Fields: []ir.Field{}}
	if err := p.noGenerics(s.Name); err != nil {
		return s, nameTok, err
	}

	switch {
	case p.accept(Punct, ";"):
		return s, nameTok, nil

	case p.accept(Punct, "{"):
		for !p.accept(Punct, "}") {
			if _, err := p.attributes(); err != nil {
				return s, nameTok, err
			}
			public := p.visibility()
			fieldTok, err := p.expectIdent()
			if err != nil {
				return s, nameTok, err
			}
			if _, err := p.expect(Punct, ":"); err != nil {
				return s, nameTok, err
			}
			f, err := p.field(s.Name, public, "}")
			if err != nil {
				return s, nameTok, err
			}
			f.Name = ir.StringPtr(fieldTok.Value)
			s.Fields = append(s.Fields, f)
			if !p.accept(Punct, ",") && !p.peek().is(Punct, "}") {
				return s, nameTok, errorAt(p.peek(), CodeSyntax, "expected \",\" or \"}\" after field %s", fieldTok.Value)
			}
		}
		return s, nameTok, nil

	case p.accept(Punct, "("):
		for !p.accept(Punct, ")") {
			if _, err := p.attributes(); err != nil {
				return s, nameTok, err
			}
			public := p.visibility()
			f, err := p.field(s.Name, public, ")")
			if err != nil {
				return s, nameTok, err
			}
			s.Fields = append(s.Fields, f)
			if !p.accept(Punct, ",") && !p.peek().is(Punct, ")") {
				return s, nameTok, errorAt(p.peek(), CodeSyntax, "expected \",\" or \")\" in tuple struct %s", s.Name)
			}
		}
		if p.peek().is(Ident, "where") {
			return s, nameTok, errorAt(p.peek(), CodeGeneric, "where clauses are not supported")
		}
		_, err := p.expect(Punct, ";")
		return s, nameTok, err
	}
	return s, nameTok, errorAt(p.peek(), CodeSyntax, "expected struct body, found %s", describe(p.peek(), p.atEnd()))
}

func (p *parser) field(owner string, public bool, close string) (ir.Field, error) {
	start := p.peek()
	toks, err := p.typeTokens(",", close)
	if err != nil {
		return ir.Field{}, err
	}
	nt := resolveType(toks, owner)
	if nt.borrow != ir.BorrowNone {
		e := errorAt(start, CodeBadParameter, "reference fields are not supported")
		e.Item = owner
		return ir.Field{}, e
	}
	return ir.Field{IsPublic: public, Type: nt.wire}, nil
}

// traitDecl parses a trait at the trait keyword. Every method must take
// &self or &mut self.
func (p *parser) traitDecl() (ir.Interface, Token, error) {
	if _, err := p.expect(Ident, "trait"); err != nil {
		return ir.Interface{}, Token{}, err
	}
	nameTok, err := p.expectIdent()
	if err != nil {
		return ir.Interface{}, nameTok, err
	}
	iface := ir.Interface{Name: nameTok.Value, Functions: []ir.Function{}}
	if err := p.noGenerics(iface.Name); err != nil {
		return iface, nameTok, err
	}
	// supertraits
	for !p.atEnd() && !p.peek().is(Punct, "{") {
		if p.peek().is(Ident, "where") {
			return iface, nameTok, errorAt(p.peek(), CodeGeneric, "where clauses are not supported")
		}
		p.next()
	}
	if _, err := p.expect(Punct, "{"); err != nil {
		return iface, nameTok, err
	}

	for !p.accept(Punct, "}") {
		if p.atEnd() {
			return iface, nameTok, errorAt(p.eof, CodeSyntax, "unterminated trait %s", iface.Name)
		}
		if _, err := p.attributes(); err != nil {
			return iface, nameTok, err
		}
		if !p.peek().is(Ident, "fn") {
			p.skipItem()
			continue
		}
		fn, fnTok, err := p.fnDecl(iface.Name)
		if err != nil {
			return iface, nameTok, err
		}
		recv, ok := fn.Receiver()
		switch {
		case !ok:
			e := errorAt(fnTok, CodeMissingReceiver, "interface method %s must take &self", fn.Name)
			e.Item = iface.Name
			return iface, nameTok, e
		case recv.Consuming:
			e := errorAt(fnTok, CodeValueReceiver,
				"interface method %s takes self by value; the host could destroy an object the native side still uses", fn.Name)
			e.Item = iface.Name
			return iface, nameTok, e
		}
		iface.Functions = append(iface.Functions, fn)
	}
	return iface, nameTok, nil
}

// implDecl parses an inherent impl block at the impl keyword.
func (p *parser) implDecl() (string, []ir.Function, []Token, error) {
	implTok, err := p.expect(Ident, "impl")
	if err != nil {
		return "", nil, nil, err
	}
	if p.peek().is(Punct, "<") {
		return "", nil, nil, errorAt(p.peek(), CodeGeneric, "generic impl blocks are not supported")
	}

	var target Token
	for {
		target, err = p.expectIdent()
		if err != nil {
			return "", nil, nil, err
		}
		if !p.accept(Punct, "::") {
			break
		}
	}
	if err := p.noGenerics(target.Value); err != nil {
		return "", nil, nil, err
	}
	if p.peek().is(Ident, "for") {
		return "", nil, nil, errorAt(implTok, CodeTraitImpl, "trait impl for %s cannot be bound; mark an inherent impl", describeFor(p))
	}
	if p.peek().is(Ident, "where") {
		return "", nil, nil, errorAt(p.peek(), CodeGeneric, "where clauses are not supported")
	}
	if _, err := p.expect(Punct, "{"); err != nil {
		return "", nil, nil, err
	}

	owner := target.Value
	var fns []ir.Function
	var toks []Token
	for !p.accept(Punct, "}") {
		if p.atEnd() {
			return "", nil, nil, errorAt(p.eof, CodeSyntax, "unterminated impl %s", owner)
		}
		if _, err := p.attributes(); err != nil {
			return "", nil, nil, err
		}
		p.visibility()
		for _, q := range []string{"const", "async", "unsafe", "extern"} {
			if p.peek().is(Ident, q) && p.peekAt(1).Kind != Punct {
				p.next()
			}
		}
		if !p.peek().is(Ident, "fn") {
			p.skipItem()
			continue
		}
		fn, tok, err := p.fnDecl(owner)
		if err != nil {
			return "", nil, nil, err
		}
		fns = append(fns, fn)
		toks = append(toks, tok)
	}
	return owner, fns, toks, nil
}

func describeFor(p *parser) string {
	if t := p.peekAt(1); t.Kind == Ident {
		return t.Value
	}
	return "type"
}

func (p *parser) noGenerics(name string) error {
	if p.peek().is(Punct, "<") {
		e := errorAt(p.peek(), CodeGeneric, "generic parameters are not supported")
		e.Item = name
		return e
	}
	return nil
}

// fnDecl parses a method signature and skips its body if present.
func (p *parser) fnDecl(owner string) (ir.Function, Token, error) {
	if _, err := p.expect(Ident, "fn"); err != nil {
		return ir.Function{}, Token{}, err
	}
	nameTok, err := p.expectIdent()
	if err != nil {
		return ir.Function{}, nameTok, err
	}
	fn := ir.Function{Owner: owner, Name: nameTok.Value, Parameters: []ir.Parameter{}}
	item := owner + "::" + fn.Name
	if err := p.noGenerics(item); err != nil {
		return fn, nameTok, err
	}
	if _, err := p.expect(Punct, "("); err != nil {
		return fn, nameTok, err
	}

	for !p.accept(Punct, ")") {
		if _, err := p.attributes(); err != nil {
			return fn, nameTok, err
		}
		start := p.peek()
		param, err := p.param(owner)
		if err != nil {
			if e, ok := err.(*Error); ok && e.Item == "" {
				e.Item = item
			}
			return fn, nameTok, err
		}
		if _, isRecv := param.(ir.Receiver); isRecv && len(fn.Parameters) > 0 {
			e := errorAt(start, CodeBadParameter, "self must be the first parameter")
			e.Item = item
			return fn, nameTok, e
		}
		fn.Parameters = append(fn.Parameters, param)
		if !p.accept(Punct, ",") && !p.peek().is(Punct, ")") {
			return fn, nameTok, errorAt(p.peek(), CodeSyntax, "expected \",\" or \")\" in parameters of %s", item)
		}
	}

	if p.accept(Punct, "->") {
		start := p.peek()
		toks, err := p.typeTokens("{", ";", "where")
		if err != nil {
			return fn, nameTok, err
		}
		nt := resolveType(toks, owner)
		if nt.borrow != ir.BorrowNone {
			e := errorAt(start, CodeReturnsReference, "returning a reference is not supported")
			e.Item = item
			return fn, nameTok, e
		}
		if nt.wire != ir.Void {
			fn.ReturnType = nt.wire
		}
	}

	if p.peek().is(Ident, "where") {
		e := errorAt(p.peek(), CodeGeneric, "where clauses are not supported")
		e.Item = item
		return fn, nameTok, e
	}
	switch {
	case p.accept(Punct, ";"):
	case p.peek().is(Punct, "{"):
		p.skipBalanced()
	default:
		return fn, nameTok, errorAt(p.peek(), CodeSyntax, "expected body or \";\" after %s, found %s", item, describe(p.peek(), p.atEnd()))
	}
	return fn, nameTok, nil
}

// param parses one parameter: a self form or "pattern: Type".
func (p *parser) param(owner string) (ir.Parameter, error) {
	start := p.peek()

	// &self, &'a self, &mut self, &'a mut self
	if start.is(Punct, "&") {
		n := 1
		if p.peekAt(n).Kind == Lifetime {
			n++
		}
		mutable := false
		if p.peekAt(n).is(Ident, "mut") {
			mutable = true
			n++
		}
		if p.peekAt(n).is(Ident, "self") {
			p.pos += n + 1
			return ir.Receiver{Mutable: mutable}, nil
		}
	}

	// self, mut self, self: Type
	selfAt := 0
	if start.is(Ident, "mut") && p.peekAt(1).is(Ident, "self") {
		selfAt = 1
	}
	if p.peekAt(selfAt).is(Ident, "self") {
		p.pos += selfAt + 1
		if !p.accept(Punct, ":") {
			return ir.Receiver{Consuming: true}, nil
		}
		toks, err := p.typeTokens(",", ")")
		if err != nil {
			return nil, err
		}
		nt := resolveType(toks, "Self")
		if nt.text != "Self" {
			return nil, errorAt(start, CodeBadParameter, "self of type %s is not supported", nt.text)
		}
		if nt.borrow == ir.BorrowNone {
			return ir.Receiver{Consuming: true}, nil
		}
		return ir.Receiver{Mutable: nt.borrow == ir.BorrowMutable}, nil
	}

	p.accept(Ident, "mut")
	nameTok, err := p.expectIdent()
	if err != nil {
		return nil, errorAt(start, CodeBadParameter, "parameter patterns are not supported")
	}
	if _, err := p.expect(Punct, ":"); err != nil {
		return nil, err
	}
	toks, err := p.typeTokens(",", ")")
	if err != nil {
		return nil, err
	}
	nt := resolveType(toks, owner)
	if nt.wire == ir.Void {
		return nil, errorAt(nameTok, CodeBadParameter, "parameter %s has unit type", nameTok.Value)
	}
	return ir.Named{Name: nameTok.Value, Type: nt.wire, Borrow: nt.borrow}, nil
}
