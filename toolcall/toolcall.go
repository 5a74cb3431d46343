// Package toolcall parses the tool-invocation convention produced by the
// model: a bracketed, comma-separated list of calls, each an identifier with
// a parenthesized key="value" parameter list, e.g.
//
//	[echo_tool(text="hi"), reverse_tool(text="hello", mode="fast")]
//
// A hand-written tokenizer and a small recursive-descent parser implement
// the grammar
//
//	CALLLIST := '[' CALL (',' CALL)* ']'
//	CALL     := IDENT '(' (PARAM (',' PARAM)*)? ')'
//	PARAM    := IDENT '=' VALUE
//	VALUE    := STRING | BAREWORD
//
// so a comma separating parameters is never confused with a comma separating
// calls. Unquoted and numeric-looking values are accepted as a relaxation.
package toolcall

import (
	"github.com/cockroachdb/errors"
)

// Request is a single parsed tool invocation, consumed by the tool registry.
type Request struct {
	// Name is the tool identifier.
	Name string
	// Args maps parameter names to their string values.
	Args map[string]string
}

// IsCallList reports whether text, as a whole, is a call list.
// Anything that does not match the grammar end to end, prose and partial
// fragments included, is a non-tool answer.
func IsCallList(text string) bool {
	calls, err := Parse(text)
	return err == nil && len(calls) > 0
}

// Parse decomposes a call list into requests, in source order.
func Parse(text string) ([]Request, error) {
	p := &parser{lex: newLexer(text)}
	return p.parseCallList()
}

type parser struct {
	lex *lexer
	tok token
}

func (p *parser) next() error {
	tok, err := p.lex.scan()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) expect(kind tokenKind) error {
	if p.tok.kind != kind {
		return errors.Newf("expected %s, got %s at offset %d", kind, p.tok.kind, p.tok.pos)
	}
	return p.next()
}

func (p *parser) parseCallList() ([]Request, error) {
	if err := p.next(); err != nil {
		return nil, err
	}
	if err := p.expect(tokenLBracket); err != nil {
		return nil, err
	}

	var calls []Request
	for {
		call, err := p.parseCall()
		if err != nil {
			return nil, err
		}
		calls = append(calls, call)

		if p.tok.kind != tokenComma {
			break
		}
		if err := p.next(); err != nil {
			return nil, err
		}
	}

	if err := p.expect(tokenRBracket); err != nil {
		return nil, err
	}
	if p.tok.kind != tokenEOF {
		return nil, errors.Newf("unexpected trailing input at offset %d", p.tok.pos)
	}
	return calls, nil
}

func (p *parser) parseCall() (Request, error) {
	call := Request{
		Args: map[string]string{},
	}

	if p.tok.kind != tokenIdent {
		return call, errors.Newf("expected tool name, got %s at offset %d", p.tok.kind, p.tok.pos)
	}
	call.Name = p.tok.text
	if err := p.next(); err != nil {
		return call, err
	}

	if err := p.expect(tokenLParen); err != nil {
		return call, err
	}

	if p.tok.kind != tokenRParen {
		for {
			key, value, err := p.parseParam()
			if err != nil {
				return call, err
			}
			call.Args[key] = value

			if p.tok.kind != tokenComma {
				break
			}
			if err := p.next(); err != nil {
				return call, err
			}
		}
	}

	if err := p.expect(tokenRParen); err != nil {
		return call, err
	}
	return call, nil
}

func (p *parser) parseParam() (string, string, error) {
	if p.tok.kind != tokenIdent {
		return "", "", errors.Newf("expected parameter name, got %s at offset %d", p.tok.kind, p.tok.pos)
	}
	key := p.tok.text
	if err := p.next(); err != nil {
		return "", "", err
	}

	if err := p.expect(tokenEquals); err != nil {
		return "", "", err
	}

	if p.tok.kind != tokenString && p.tok.kind != tokenIdent {
		return "", "", errors.Newf("expected parameter value, got %s at offset %d", p.tok.kind, p.tok.pos)
	}
	value := p.tok.text
	if err := p.next(); err != nil {
		return "", "", err
	}
	return key, value, nil
}
