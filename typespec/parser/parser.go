// Copyright 2024 The TabuLua-sub005 Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package parser is a PEG-style recursive-descent parser for the type-spec
// grammar: TypeSpec, Union, Base, List, KV, Name, SelfRef.
package parser

import (
	"fmt"
	"strings"

	"github.com/skunkiferous/TabuLua-sub005/typespec/ast"
)

type tokKind int

const (
	tEOF tokKind = iota
	tIdent
	tDot
	tPipe
	tLBrace
	tRBrace
	tComma
	tColon
)

type token struct {
	kind tokKind
	lit  string
}

type lexer struct {
	src string
	pos int // byte offset of the next unread rune
	tok token
}

func newLexer(src string) *lexer {
	l := &lexer{src: src}
	l.advance()
	return l
}

// skipTrivia discards whitespace and "#...EOL" comments.
func (l *lexer) skipTrivia() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			l.pos++
		case c == '#':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		default:
			return
		}
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentCont(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func (l *lexer) advance() {
	l.skipTrivia()
	if l.pos >= len(l.src) {
		l.tok = token{kind: tEOF}
		return
	}
	c := l.src[l.pos]
	switch c {
	case '{':
		l.pos++
		l.tok = token{kind: tLBrace, lit: "{"}
		return
	case '}':
		l.pos++
		l.tok = token{kind: tRBrace, lit: "}"}
		return
	case '|':
		l.pos++
		l.tok = token{kind: tPipe, lit: "|"}
		return
	case ',':
		l.pos++
		l.tok = token{kind: tComma, lit: ","}
		return
	case ':':
		l.pos++
		l.tok = token{kind: tColon, lit: ":"}
		return
	case '.':
		l.pos++
		l.tok = token{kind: tDot, lit: "."}
		return
	}
	if isIdentStart(c) {
		start := l.pos
		l.pos++
		for l.pos < len(l.src) && isIdentCont(l.src[l.pos]) {
			l.pos++
		}
		l.tok = token{kind: tIdent, lit: l.src[start:l.pos]}
		return
	}
	// Unknown byte: surface it as a 1-byte "identifier" so the parser can
	// report a clean Parse diagnostic instead of looping.
	l.tok = token{kind: tIdent, lit: string(c)}
	l.pos++
}

// restOffset returns the byte offset in src at which the *current* token
// begins, i.e. everything already consumed by previous tokens is before it.
func (l *lexer) restOffset() int {
	return l.pos - len(l.tok.lit)
}

// Parser holds parse state for one type-spec string.
type Parser struct {
	lex *lexer
	err error
}

// ParseFull parses src as a complete TypeSpec; it fails if any non-trivia
// input remains afterwards.
func ParseFull(src string) (ast.Node, error) {
	p := &Parser{lex: newLexer(src)}
	n := p.parseUnion()
	if p.err != nil {
		return nil, p.err
	}
	if p.lex.tok.kind != tEOF {
		return nil, fmt.Errorf("parse: unexpected trailing input %q", p.lex.tok.lit)
	}
	return n, nil
}

// ParsePartial parses a single TypeSpec embedded in a larger string and
// returns the unconsumed remainder.
func ParsePartial(src string) (node ast.Node, rest string, err error) {
	p := &Parser{lex: newLexer(src)}
	n := p.parseUnion()
	if p.err != nil {
		return nil, src, p.err
	}
	off := p.lex.restOffset()
	return n, src[off:], nil
}

func (p *Parser) fail(format string, args ...interface{}) {
	if p.err == nil {
		p.err = fmt.Errorf("parse: "+format, args...)
	}
}

func (p *Parser) expect(k tokKind, what string) {
	if p.err != nil {
		return
	}
	if p.lex.tok.kind != k {
		p.fail("expected %s, got %q", what, p.lex.tok.lit)
		return
	}
	p.lex.advance()
}

// parseUnion implements: Union := Base ('|' Base)*
func (p *Parser) parseUnion() ast.Node {
	if p.err != nil {
		return nil
	}
	first := p.parseBase()
	members := []ast.Node{first}
	for p.err == nil && p.lex.tok.kind == tPipe {
		p.lex.advance()
		members = append(members, p.parseBase())
	}
	if len(members) == 1 {
		return first
	}
	return &ast.Union{Members: members}
}

// parseBase implements: Base := Name | EmptyTable | Braced, plus the
// SelfRef production ('self' '.' Identifier) wherever a Base may occur; it is
// the caller's responsibility (the schema builder) to reject a top-level
// SelfRef.
func (p *Parser) parseBase() ast.Node {
	if p.err != nil {
		return nil
	}
	if p.lex.tok.kind == tLBrace {
		return p.parseBraced()
	}
	return p.parseNameOrSelfRef()
}

func (p *Parser) parseNameOrSelfRef() ast.Node {
	isIdent := func() bool {
		return p.lex.tok.kind == tIdent && isIdentStart(p.lex.tok.lit[0])
	}
	if !isIdent() {
		p.fail("expected identifier, got %q", p.lex.tok.lit)
		return nil
	}
	first := p.lex.tok.lit
	p.lex.advance()

	if first == "self" && p.lex.tok.kind == tDot {
		p.lex.advance()
		if !isIdent() {
			p.fail("expected identifier after 'self.'")
			return nil
		}
		target := p.lex.tok.lit
		p.lex.advance()
		return &ast.SelfRef{Target: target}
	}

	segs := []string{first}
	for p.lex.tok.kind == tDot {
		p.lex.advance()
		if !isIdent() {
			p.fail("expected identifier after '.'")
			return nil
		}
		segs = append(segs, p.lex.tok.lit)
		p.lex.advance()
	}
	return &ast.Name{Value: strings.Join(segs, ".")}
}

type kvPair struct{ key, val ast.Node }

// parseBraced implements EmptyTable and the List/KV ambiguity resolution:
// a single KV pair is a Map; two or more KV pairs make a Record; a single
// Union is an Array; two or more Unions make a Tuple.
func (p *Parser) parseBraced() ast.Node {
	p.expect(tLBrace, "'{'")
	if p.err != nil {
		return nil
	}
	if p.lex.tok.kind == tRBrace {
		p.lex.advance()
		return &ast.Table{}
	}

	first := p.parseUnion()
	if p.err != nil {
		return nil
	}

	if p.lex.tok.kind == tColon {
		p.lex.advance()
		firstVal := p.parseUnion()
		pairs := []kvPair{{first, firstVal}}
		for p.err == nil && p.lex.tok.kind == tComma {
			p.lex.advance()
			k := p.parseUnion()
			p.expect(tColon, "':'")
			v := p.parseUnion()
			pairs = append(pairs, kvPair{k, v})
		}
		p.expect(tRBrace, "'}'")
		if p.err != nil {
			return nil
		}
		if len(pairs) == 1 {
			return &ast.Map{Key: pairs[0].key, Value: pairs[0].val}
		}
		fields := make([]ast.Field, len(pairs))
		for i, kv := range pairs {
			name, ok := kv.key.(*ast.Name)
			if !ok || strings.Contains(name.Value, ".") {
				p.fail("record field key must be a plain identifier")
				return nil
			}
			fields[i] = ast.Field{Name: name.Value, Type: kv.val}
		}
		return &ast.Record{Fields: fields}
	}

	elems := []ast.Node{first}
	for p.err == nil && p.lex.tok.kind == tComma {
		p.lex.advance()
		elems = append(elems, p.parseUnion())
	}
	p.expect(tRBrace, "'}'")
	if p.err != nil {
		return nil
	}
	if len(elems) == 1 {
		return &ast.Array{Elem: elems[0]}
	}
	return &ast.Tuple{Elems: elems}
}
