package parse

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/HGData/basex/internal/ir"
)

const eof = -1

// tokenKind is the kind of a lexeme.
type tokenKind int

const (
	tokEOF tokenKind = iota
	tokName
	tokVar
	tokInt
	tokDec
	tokStr
	tokPunct
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of query"
	case tokName:
		return "name"
	case tokVar:
		return "variable"
	case tokInt:
		return "integer"
	case tokDec:
		return "decimal"
	case tokStr:
		return "string"
	default:
		return "symbol"
	}
}

// token is a lexeme: its kind, its byte offset and its text. For strings
// the text is the unescaped value; for variables it is the name without
// the dollar sign.
type token struct {
	kind tokenKind
	pos  int
	text string
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return t.kind.String()
	case tokVar:
		return "$" + t.text
	case tokStr:
		return ir.Literal(ir.Str(t.text))
	}
	return fmt.Sprintf("%q", t.text)
}

// puncts lists the symbols, longest first.
var puncts = []string{
	":=", "!=", "<=", ">=", "</", "/>",
	"(", ")", "[", "]", "{", "}", ",", ";", "=", "<", ">", "+", "-", "*", "/", ".", "?",
}

// lexer scans a query into tokens.
type lexer struct {
	input  string
	pos    int // current position in the input
	start  int // start position of this token
	width  int // width of last rune read from input
	tokens []token
}

func lex(input string) ([]token, error) {
	l := &lexer{input: input}
	for {
		if err := l.skip(); err != nil {
			return nil, err
		}
		l.start = l.pos
		r := l.peek()
		var err error
		switch {
		case r == eof:
			l.tokens = append(l.tokens, token{kind: tokEOF, pos: l.pos})
			return l.tokens, nil
		case r == '$':
			l.next()
			if !isNameStart(l.peek()) {
				return nil, l.errorf("expected variable name after $")
			}
			l.start = l.pos
			l.name()
			l.emit(tokVar)
		case isNameStart(r):
			l.name()
			l.emit(tokName)
		case r >= '0' && r <= '9':
			l.number()
		case r == '.' && l.digitAfterDot():
			l.number()
		case r == '"' || r == '\'':
			err = l.string(r)
		default:
			err = l.punct()
		}
		if err != nil {
			return nil, err
		}
	}
}

// next returns the next rune in the input.
func (l *lexer) next() rune {
	if l.pos >= len(l.input) {
		l.width = 0
		return eof
	}
	r, w := utf8.DecodeRuneInString(l.input[l.pos:])
	l.width = w
	l.pos += w
	return r
}

// peek returns but does not consume the next rune in the input.
func (l *lexer) peek() rune {
	r := l.next()
	l.backup()
	return r
}

// backup steps back one rune. Can only be called once per call of next.
func (l *lexer) backup() {
	l.pos -= l.width
}

func (l *lexer) emit(k tokenKind) {
	l.tokens = append(l.tokens, token{kind: k, pos: l.start, text: l.input[l.start:l.pos]})
	l.start = l.pos
}

func (l *lexer) errorf(format string, args ...any) error {
	return ir.StaticErrorf(ir.ErrCodeSyntax, "offset %d: %s", l.start, fmt.Sprintf(format, args...))
}

// skip consumes whitespace and (: comments :), which may nest.
func (l *lexer) skip() error {
	for {
		switch {
		case unicode.IsSpace(l.peek()):
			l.next()
		case strings.HasPrefix(l.input[l.pos:], "(:"):
			l.start = l.pos
			depth := 0
			for {
				switch {
				case strings.HasPrefix(l.input[l.pos:], "(:"):
					depth++
					l.pos += 2
				case strings.HasPrefix(l.input[l.pos:], ":)"):
					depth--
					l.pos += 2
				case l.next() == eof:
					return l.errorf("unterminated comment")
				}
				if depth == 0 {
					break
				}
			}
		default:
			return nil
		}
	}
}

func isNameStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isNameChar(r rune) bool {
	return isNameStart(r) || r == '-' || r == '.' || unicode.IsDigit(r)
}

// name scans a name, which may carry one prefix ("xs:integer").
func (l *lexer) name() {
	for isNameChar(l.peek()) {
		l.next()
	}
	if l.peek() != ':' {
		return
	}
	l.next()
	if !isNameStart(l.peek()) {
		l.backup()
		return
	}
	for isNameChar(l.peek()) {
		l.next()
	}
}

func (l *lexer) digitAfterDot() bool {
	rest := l.input[l.pos:]
	return len(rest) > 1 && rest[1] >= '0' && rest[1] <= '9'
}

func (l *lexer) number() {
	kind := tokInt
	for {
		r := l.next()
		switch {
		case r >= '0' && r <= '9':
		case r == '.' && kind == tokInt:
			kind = tokDec
		default:
			l.backup()
			l.emit(kind)
			return
		}
	}
}

// string scans a literal delimited by quote; a doubled quote stands for
// itself.
func (l *lexer) string(quote rune) error {
	l.next()
	var b strings.Builder
	for {
		r := l.next()
		switch {
		case r == eof:
			return l.errorf("unterminated string literal")
		case r == quote && l.peek() == quote:
			l.next()
			b.WriteRune(quote)
		case r == quote:
			l.tokens = append(l.tokens, token{kind: tokStr, pos: l.start, text: b.String()})
			l.start = l.pos
			return nil
		default:
			b.WriteRune(r)
		}
	}
}

func (l *lexer) punct() error {
	for _, p := range puncts {
		if strings.HasPrefix(l.input[l.pos:], p) {
			l.pos += len(p)
			l.emit(tokPunct)
			return nil
		}
	}
	return l.errorf("unexpected character %q", l.peek())
}
