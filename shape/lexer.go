package shape

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

type tokKind int

const (
	tokEOF tokKind = iota
	tokIdent
	tokInt
	tokType
	tokIllegal
	// symbols
	tokEq     // =
	tokColon  // :
	tokSemi   // ;
	tokComma  // ,
	tokLBrace // {
	tokRBrace // }
	tokLParen // (
	tokRParen // )
	tokLt     // <
	tokGt     // >
)

var tokNames = [...]string{
	tokEOF:     "end of input",
	tokIdent:   "identifier",
	tokInt:     "integer",
	tokType:    "'type'",
	tokIllegal: "illegal token",
	tokEq:      "'='",
	tokColon:   "':'",
	tokSemi:    "';'",
	tokComma:   "','",
	tokLBrace:  "'{'",
	tokRBrace:  "'}'",
	tokLParen:  "'('",
	tokRParen:  "')'",
	tokLt:      "'<'",
	tokGt:      "'>'",
}

func (k tokKind) String() string { return tokNames[k] }

type token struct {
	kind tokKind
	lit  string
	line int
	col  int
}

func (t token) String() string {
	switch t.kind {
	case tokIdent, tokInt:
		return fmt.Sprintf("%s %q", t.kind, t.lit)
	case tokIllegal:
		return t.lit
	}
	return t.kind.String()
}

type lexer struct {
	src  []byte
	off  int
	line int
	bol  int // offset of the first byte of the current line
	cur  token
}

func newLexer(src []byte) *lexer { return &lexer{src: src, line: 1} }

var symbols = map[byte]tokKind{
	'=': tokEq,
	':': tokColon,
	';': tokSemi,
	',': tokComma,
	'{': tokLBrace,
	'}': tokRBrace,
	'(': tokLParen,
	')': tokRParen,
	'<': tokLt,
	'>': tokGt,
}

func (lx *lexer) next() {
	lx.skipSpaceAndComments()
	pos := token{line: lx.line, col: lx.off - lx.bol + 1}
	if lx.off >= len(lx.src) {
		pos.kind = tokEOF
		lx.cur = pos
		return
	}
	r, size := utf8.DecodeRune(lx.src[lx.off:])
	switch {
	case isIdentStart(r):
		start := lx.off
		lx.off += size
		for lx.off < len(lx.src) {
			r, size := utf8.DecodeRune(lx.src[lx.off:])
			if !isIdentPart(r) {
				break
			}
			lx.off += size
		}
		pos.lit = string(lx.src[start:lx.off])
		pos.kind = tokIdent
		if pos.lit == "type" {
			pos.kind = tokType
		}
	case isDigit(r):
		start := lx.off
		for lx.off < len(lx.src) && (isDigit(rune(lx.src[lx.off])) || lx.src[lx.off] == '_') {
			lx.off++
		}
		pos.lit = string(lx.src[start:lx.off])
		pos.kind = tokInt
	default:
		lx.off += size
		if k, ok := symbols[byte(r)]; ok && size == 1 {
			pos.kind = k
			pos.lit = string(r)
		} else {
			pos.kind = tokIllegal
			pos.lit = fmt.Sprintf("unexpected character %q", r)
		}
	}
	lx.cur = pos
}

func (lx *lexer) skipSpaceAndComments() {
	for lx.off < len(lx.src) {
		b := lx.src[lx.off]
		switch {
		case b == '\n':
			lx.off++
			lx.line++
			lx.bol = lx.off
		case b == ' ' || b == '\t' || b == '\r':
			lx.off++
		// line comments: # or //
		case b == '#' || lx.at("//"):
			for lx.off < len(lx.src) && lx.src[lx.off] != '\n' {
				lx.off++
			}
		case lx.at("/*"):
			lx.off += 2
			for lx.off < len(lx.src) && !lx.at("*/") {
				if lx.src[lx.off] == '\n' {
					lx.line++
					lx.bol = lx.off + 1
				}
				lx.off++
			}
			lx.off = min(lx.off+2, len(lx.src))
		default:
			return
		}
	}
}

func (lx *lexer) at(s string) bool {
	return lx.off+len(s) <= len(lx.src) && string(lx.src[lx.off:lx.off+len(s)]) == s
}

func isIdentStart(r rune) bool { return r == '_' || unicode.IsLetter(r) }
func isIdentPart(r rune) bool  { return isIdentStart(r) || unicode.IsDigit(r) }
func isDigit(r rune) bool      { return '0' <= r && r <= '9' }
