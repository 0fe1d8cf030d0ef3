// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wast

import "fmt"

type Pos struct {
	Line, Column int
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

type TokenKind int

const (
	EOF TokenKind = iota
	LPAREN
	RPAREN
	KEYWORD
	NAME
	NUMBER
	STRING
)

func (k TokenKind) String() string {
	switch k {
	case EOF:
		return "EOF"
	case LPAREN:
		return "'('"
	case RPAREN:
		return "')'"
	case KEYWORD:
		return "keyword"
	case NAME:
		return "name"
	case NUMBER:
		return "number"
	case STRING:
		return "string"
	default:
		return fmt.Sprintf("<token %d>", int(k))
	}
}

// Token is a lexical token. Text is the token's source text, except for strings, whose Text is the
// decoded contents.
type Token struct {
	Kind TokenKind
	Pos  Pos
	Text string
}

func (t *Token) String() string {
	switch t.Kind {
	case EOF, LPAREN, RPAREN:
		return t.Kind.String()
	default:
		return fmt.Sprintf("<%v %q>", t.Kind, t.Text)
	}
}
