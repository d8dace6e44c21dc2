package shape

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dadrian/netbin"
)

// Limits on declared sizes.
const (
	maxVariants = 256
	maxArrayLen = netbin.MaxLen
)

// SyntaxError reports a malformed shape document.
type SyntaxError struct {
	Line, Col int
	Msg       string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("shape: %d:%d: %s", e.Line, e.Col, e.Msg)
}

var (
	ErrUndefined = errors.New("shape: undefined type")
	ErrCycle     = errors.New("shape: type is an alias of itself")
	ErrNoRoot    = errors.New("shape: schema has no root expression")
)

// Schema is a set of named shapes plus an optional root shape.
type Schema struct {
	Root  *Shape
	types map[string]*Shape
	order []string
}

// Parse reads a document of `type Name = expr;` declarations followed
// by an optional root expression.
func Parse(src []byte) (*Schema, error) {
	s := &Schema{types: map[string]*Shape{}}
	p := &parser{lx: newLexer(src)}
	p.lx.next()
	for p.lx.cur.kind == tokType {
		name, sh, err := p.parseDecl()
		if err != nil {
			return nil, err
		}
		if _, dup := s.types[name]; dup {
			return nil, p.errorf("duplicate type %s", name)
		}
		s.types[name] = sh
		s.order = append(s.order, name)
	}
	if p.lx.cur.kind != tokEOF {
		root, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.lx.cur.kind == tokSemi {
			p.lx.next()
		}
		s.Root = root
	}
	if p.lx.cur.kind != tokEOF {
		return nil, p.unexpected("end of input")
	}
	if err := s.resolve(); err != nil {
		return nil, err
	}
	return s, nil
}

// ParseType parses a single shape expression with no declarations.
func ParseType(expr string) (*Shape, error) {
	return (&Schema{}).ParseType(expr)
}

// ParseType parses a shape expression that may reference the schema's
// declared types.
func (s *Schema) ParseType(expr string) (*Shape, error) {
	p := &parser{lx: newLexer([]byte(expr))}
	p.lx.next()
	sh, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.lx.cur.kind != tokEOF {
		return nil, p.unexpected("end of input")
	}
	if err := s.link(sh, map[*Shape]bool{}); err != nil {
		return nil, err
	}
	return s.follow(sh)
}

// Define declares name as expr. Names already declared cannot be
// redefined, since other shapes may already point at them.
func (s *Schema) Define(name, expr string) error {
	if !validName(name) {
		return fmt.Errorf("shape: invalid type name %q", name)
	}
	if _, dup := s.types[name]; dup {
		return fmt.Errorf("shape: type %s already defined", name)
	}
	p := &parser{lx: newLexer([]byte(expr))}
	p.lx.next()
	sh, err := p.parseExpr()
	if err != nil {
		return fmt.Errorf("type %s: %w", name, err)
	}
	if p.lx.cur.kind != tokEOF {
		return fmt.Errorf("type %s: %w", name, p.unexpected("end of input"))
	}
	if s.types == nil {
		s.types = map[string]*Shape{}
	}
	s.types[name] = sh
	s.order = append(s.order, name)
	if err := s.resolve(); err != nil {
		delete(s.types, name)
		s.order = s.order[:len(s.order)-1]
		return err
	}
	return nil
}

// Lookup returns the declared shape called name.
func (s *Schema) Lookup(name string) (*Shape, bool) {
	sh, ok := s.types[name]
	return sh, ok
}

// Names returns the declared type names in declaration order.
func (s *Schema) Names() []string { return append([]string(nil), s.order...) }

// Pick returns the shape called name, or the root shape when name is
// empty.
func (s *Schema) Pick(name string) (*Shape, error) {
	if name == "" {
		if s.Root == nil {
			return nil, ErrNoRoot
		}
		return s.Root, nil
	}
	if sh, ok := s.types[name]; ok {
		return sh, nil
	}
	if !strings.ContainsAny(name, "<({") && !isPrimitiveName(name) {
		return nil, fmt.Errorf("%w %s", ErrUndefined, name)
	}
	return s.ParseType(name)
}

// String renders the schema back into the declaration language.
func (s *Schema) String() string {
	var b strings.Builder
	for _, name := range s.order {
		fmt.Fprintf(&b, "type %s = %s;\n", name, s.types[name].Expr())
	}
	if s.Root != nil {
		b.WriteString(s.Root.String())
		b.WriteString("\n")
	}
	return b.String()
}

func isPrimitiveName(name string) bool {
	_, ok := primitives[name]
	return ok || name == "uuid"
}

func validName(name string) bool {
	if name == "" || reserved(name) {
		return false
	}
	for i, r := range name {
		if i == 0 && !isIdentStart(r) || !isIdentPart(r) {
			return false
		}
	}
	return true
}

// resolve replaces every reference with the declared shape it names and
// sets the Name of declared shapes.
func (s *Schema) resolve() error {
	for _, name := range s.order {
		if sh := s.types[name]; sh.ref == "" && sh.Name == "" {
			sh.Name = name
		}
	}
	for _, name := range s.order {
		sh, err := s.follow(s.types[name])
		if err != nil {
			return fmt.Errorf("type %s: %w", name, err)
		}
		s.types[name] = sh
	}
	seen := map[*Shape]bool{}
	for _, name := range s.order {
		if err := s.link(s.types[name], seen); err != nil {
			return fmt.Errorf("type %s: %w", name, err)
		}
	}
	if s.Root != nil {
		if err := s.link(s.Root, seen); err != nil {
			return err
		}
		root, err := s.follow(s.Root)
		if err != nil {
			return err
		}
		s.Root = root
	}
	return nil
}

// follow chases a chain of bare references (type A = B;) to a concrete
// shape.
func (s *Schema) follow(sh *Shape) (*Shape, error) {
	visited := map[string]bool{}
	for sh.ref != "" {
		if visited[sh.ref] {
			return nil, fmt.Errorf("%w: %s", ErrCycle, sh.ref)
		}
		visited[sh.ref] = true
		next, ok := s.types[sh.ref]
		if !ok {
			return nil, fmt.Errorf("%w %s", ErrUndefined, sh.ref)
		}
		sh = next
	}
	return sh, nil
}

// link rewrites the children of sh that are references.
func (s *Schema) link(sh *Shape, seen map[*Shape]bool) error {
	if sh == nil || seen[sh] {
		return nil
	}
	seen[sh] = true
	fix := func(p **Shape) error {
		if *p == nil {
			return nil
		}
		t, err := s.follow(*p)
		if err != nil {
			return err
		}
		*p = t
		return s.link(t, seen)
	}
	if err := fix(&sh.Elem); err != nil {
		return err
	}
	if err := fix(&sh.Key); err != nil {
		return err
	}
	for i := range sh.Fields {
		if err := fix(&sh.Fields[i].Shape); err != nil {
			return err
		}
	}
	for i := range sh.Variants {
		if err := fix(&sh.Variants[i].Shape); err != nil {
			return err
		}
	}
	return nil
}

type parser struct{ lx *lexer }

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Line: p.lx.cur.line, Col: p.lx.cur.col, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) unexpected(want string) error {
	return p.errorf("expected %s, got %s", want, p.lx.cur)
}

func (p *parser) expect(k tokKind) error {
	if p.lx.cur.kind != k {
		return p.unexpected(k.String())
	}
	p.lx.next()
	return nil
}

// ident accepts the keyword 'type' too, so it can name a field.
func (p *parser) ident() (string, error) {
	if p.lx.cur.kind != tokIdent && p.lx.cur.kind != tokType {
		return "", p.unexpected("identifier")
	}
	name := p.lx.cur.lit
	p.lx.next()
	return name, nil
}

// parseDecl parses `type Name = expr;`.
func (p *parser) parseDecl() (string, *Shape, error) {
	p.lx.next()
	name, err := p.ident()
	if err != nil {
		return "", nil, err
	}
	if reserved(name) {
		return "", nil, p.errorf("%s is a built-in type", name)
	}
	if err := p.expect(tokEq); err != nil {
		return "", nil, err
	}
	sh, err := p.parseExpr()
	if err != nil {
		return "", nil, err
	}
	if err := p.expect(tokSemi); err != nil {
		return "", nil, err
	}
	return name, sh, nil
}

func (p *parser) parseExpr() (*Shape, error) {
	if p.lx.cur.kind != tokIdent {
		return nil, p.unexpected("type")
	}
	word := p.lx.cur.lit
	if k, ok := primitives[word]; ok {
		p.lx.next()
		return Prim(k), nil
	}
	switch word {
	case "uuid":
		p.lx.next()
		return UUID(), nil
	case "option", "seq":
		p.lx.next()
		elem, err := p.angle(1)
		if err != nil {
			return nil, err
		}
		k := netbin.KindSeq
		if word == "option" {
			k = netbin.KindOption
		}
		return &Shape{Kind: k, Elem: elem[0]}, nil
	case "map":
		p.lx.next()
		kv, err := p.angle(2)
		if err != nil {
			return nil, err
		}
		return &Shape{Kind: netbin.KindMap, Key: kv[0], Elem: kv[1]}, nil
	case "array":
		p.lx.next()
		return p.parseArray()
	case "tuple":
		p.lx.next()
		elems, err := p.parenList()
		if err != nil {
			return nil, err
		}
		return tuple(elems), nil
	case "record":
		p.lx.next()
		fields, err := p.parseFields()
		if err != nil {
			return nil, err
		}
		return &Shape{Kind: netbin.KindRecord, Fields: fields}, nil
	case "union":
		p.lx.next()
		return p.parseUnion()
	}
	p.lx.next()
	return &Shape{ref: word}, nil
}

// angle parses `<T, ...>` with exactly n types.
func (p *parser) angle(n int) ([]*Shape, error) {
	if err := p.expect(tokLt); err != nil {
		return nil, err
	}
	var out []*Shape
	for i := 0; i < n; i++ {
		if i > 0 {
			if err := p.expect(tokComma); err != nil {
				return nil, err
			}
		}
		sh, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		out = append(out, sh)
	}
	return out, p.expect(tokGt)
}

func (p *parser) parseArray() (*Shape, error) {
	if err := p.expect(tokLt); err != nil {
		return nil, err
	}
	elem, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expect(tokComma); err != nil {
		return nil, err
	}
	if p.lx.cur.kind != tokInt {
		return nil, p.unexpected("array length")
	}
	n, err := strconv.Atoi(strings.ReplaceAll(p.lx.cur.lit, "_", ""))
	if err != nil || n > maxArrayLen {
		return nil, p.errorf("array length %s out of range 0..%d", p.lx.cur.lit, maxArrayLen)
	}
	p.lx.next()
	if err := p.expect(tokGt); err != nil {
		return nil, err
	}
	return &Shape{Kind: netbin.KindTuple, Elem: elem, Len: n}, nil
}

// parenList parses `(T, ...)`, allowing an empty list and a trailing comma.
func (p *parser) parenList() ([]*Shape, error) {
	if err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	var out []*Shape
	for p.lx.cur.kind != tokRParen {
		sh, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		out = append(out, sh)
		if p.lx.cur.kind != tokComma {
			break
		}
		p.lx.next()
	}
	return out, p.expect(tokRParen)
}

func tuple(elems []*Shape) *Shape {
	fields := make([]Field, len(elems))
	for i, e := range elems {
		fields[i] = Field{Shape: e}
	}
	return &Shape{Kind: netbin.KindTuple, Fields: fields}
}

// parseFields parses `{ name: T, ... }`.
func (p *parser) parseFields() ([]Field, error) {
	if err := p.expect(tokLBrace); err != nil {
		return nil, err
	}
	var fields []Field
	seen := map[string]bool{}
	for p.lx.cur.kind != tokRBrace {
		name, err := p.ident()
		if err != nil {
			return nil, err
		}
		if seen[name] {
			return nil, p.errorf("duplicate field %s", name)
		}
		seen[name] = true
		if err := p.expect(tokColon); err != nil {
			return nil, err
		}
		sh, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		fields = append(fields, Field{Name: name, Shape: sh})
		if p.lx.cur.kind != tokComma {
			break
		}
		p.lx.next()
	}
	return fields, p.expect(tokRBrace)
}

// parseUnion parses `{ Unit, Newtype(T), Tuple(T, U), Struct { a: T } }`.
func (p *parser) parseUnion() (*Shape, error) {
	if err := p.expect(tokLBrace); err != nil {
		return nil, err
	}
	u := &Shape{Kind: netbin.KindUnion}
	seen := map[string]bool{}
	for p.lx.cur.kind != tokRBrace {
		name, err := p.ident()
		if err != nil {
			return nil, err
		}
		if seen[name] {
			return nil, p.errorf("duplicate variant %s", name)
		}
		seen[name] = true
		v := Variant{Name: name}
		switch p.lx.cur.kind {
		case tokLParen:
			elems, err := p.parenList()
			if err != nil {
				return nil, err
			}
			if len(elems) == 1 {
				v.Shape = elems[0]
			} else {
				v.Shape = tuple(elems)
			}
		case tokLBrace:
			fields, err := p.parseFields()
			if err != nil {
				return nil, err
			}
			v.Shape = &Shape{Kind: netbin.KindRecord, Fields: fields}
		}
		u.Variants = append(u.Variants, v)
		if p.lx.cur.kind != tokComma {
			break
		}
		p.lx.next()
	}
	if len(u.Variants) == 0 {
		return nil, p.errorf("union needs at least one variant")
	}
	if len(u.Variants) > maxVariants {
		return nil, p.errorf("union has %d variants, at most %d fit the tag", len(u.Variants), maxVariants)
	}
	return u, p.expect(tokRBrace)
}
