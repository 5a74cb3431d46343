package toolcall

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
)

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenLBracket
	tokenRBracket
	tokenLParen
	tokenRParen
	tokenComma
	tokenEquals
	tokenIdent
	tokenString
)

func (k tokenKind) String() string {
	switch k {
	case tokenEOF:
		return "end of input"
	case tokenLBracket:
		return "'['"
	case tokenRBracket:
		return "']'"
	case tokenLParen:
		return "'('"
	case tokenRParen:
		return "')'"
	case tokenComma:
		return "','"
	case tokenEquals:
		return "'='"
	case tokenIdent:
		return "identifier"
	case tokenString:
		return "string"
	}
	return "unknown token"
}

type token struct {
	kind tokenKind
	text string
	pos  int
}

type lexer struct {
	input string
	pos   int
}

func newLexer(input string) *lexer {
	return &lexer{input: input}
}

func (l *lexer) scan() (token, error) {
	l.skipSpace()
	start := l.pos

	if l.pos >= len(l.input) {
		return token{kind: tokenEOF, pos: start}, nil
	}

	switch c := l.input[l.pos]; c {
	case '[':
		l.pos++
		return token{kind: tokenLBracket, pos: start}, nil
	case ']':
		l.pos++
		return token{kind: tokenRBracket, pos: start}, nil
	case '(':
		l.pos++
		return token{kind: tokenLParen, pos: start}, nil
	case ')':
		l.pos++
		return token{kind: tokenRParen, pos: start}, nil
	case ',':
		l.pos++
		return token{kind: tokenComma, pos: start}, nil
	case '=':
		l.pos++
		return token{kind: tokenEquals, pos: start}, nil
	case '"':
		return l.scanString()
	}

	if l.isIdentRune(l.peekRune()) {
		return l.scanIdent()
	}
	return token{}, errors.Newf("unexpected character %q at offset %d", l.input[l.pos], start)
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.input) {
		r, size := utf8.DecodeRuneInString(l.input[l.pos:])
		if !unicode.IsSpace(r) {
			return
		}
		l.pos += size
	}
}

func (l *lexer) peekRune() rune {
	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	return r
}

// isIdentRune accepts identifier characters plus the characters of bare
// numeric values, so unquoted values like 3.14 or -2 scan as one token.
func (l *lexer) isIdentRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) ||
		r == '_' || r == '.' || r == '-' || r == '+'
}

func (l *lexer) scanIdent() (token, error) {
	start := l.pos
	for l.pos < len(l.input) {
		r, size := utf8.DecodeRuneInString(l.input[l.pos:])
		if !l.isIdentRune(r) {
			break
		}
		l.pos += size
	}
	return token{kind: tokenIdent, text: l.input[start:l.pos], pos: start}, nil
}

func (l *lexer) scanString() (token, error) {
	start := l.pos
	l.pos++ // opening quote

	var buf strings.Builder
	for l.pos < len(l.input) {
		r, size := utf8.DecodeRuneInString(l.input[l.pos:])
		switch r {
		case '"':
			l.pos += size
			return token{kind: tokenString, text: buf.String(), pos: start}, nil
		case '\\':
			l.pos += size
			if l.pos >= len(l.input) {
				return token{}, errors.Newf("unterminated escape at offset %d", l.pos)
			}
			esc, escSize := utf8.DecodeRuneInString(l.input[l.pos:])
			l.pos += escSize
			switch esc {
			case 'n':
				buf.WriteByte('\n')
			case 't':
				buf.WriteByte('\t')
			default:
				// \" and \\ pass the escaped character through verbatim
				buf.WriteRune(esc)
			}
		default:
			l.pos += size
			buf.WriteRune(r)
		}
	}
	return token{}, errors.Newf("unterminated string at offset %d", start)
}
