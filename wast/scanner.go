// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wast

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// lookahead is a buffered rune and the error, if any, that came with it. A failed read yields a zero rune.
// invalid marks a byte that does not begin a valid UTF-8 sequence.
type lookahead struct {
	r       rune
	invalid bool
	err     error
}

// Scanner splits WebAssembly text into tokens. Comments and whitespace are discarded.
type Scanner struct {
	r *bufio.Reader

	ahead [2]lookahead
	n     int

	line, column int
	start        Pos

	text strings.Builder
}

func NewScanner(r io.Reader) *Scanner {
	return &Scanner{r: bufio.NewReader(r), line: 1}
}

// Pos returns the position of the next rune.
func (s *Scanner) Pos() Pos {
	return Pos{Line: s.line, Column: s.column}
}

func (s *Scanner) fill(n int) {
	for ; s.n < n; s.n++ {
		r, size, err := s.r.ReadRune()
		s.ahead[s.n] = lookahead{r: r, invalid: r == utf8.RuneError && size == 1, err: err}
	}
}

func (s *Scanner) peek() rune {
	s.fill(1)
	return s.ahead[0].r
}

func (s *Scanner) peek2() (rune, rune) {
	s.fill(2)
	return s.ahead[0].r, s.ahead[1].r
}

// atEnd reports whether the input is exhausted or unreadable.
func (s *Scanner) atEnd() bool {
	s.fill(1)
	return s.ahead[0].r == 0 && s.ahead[0].err != nil
}

func (s *Scanner) skip() {
	if s.n == 0 {
		panic("expected a buffered rune")
	}
	if s.ahead[0].r == '\n' {
		s.line, s.column = s.line+1, 0
	} else {
		s.column++
	}
	s.ahead[0], s.ahead[1] = s.ahead[1], lookahead{}
	s.n--
}

func (s *Scanner) next() rune {
	r := s.peek()
	s.skip()
	return r
}

func (s *Scanner) errorf(format string, args ...interface{}) error {
	return &SyntaxError{Pos: s.start, Msg: fmt.Sprintf(format, args...)}
}

var simpleEscapes = map[rune]byte{
	'n':  '\n',
	'r':  '\r',
	't':  '\t',
	'\\': '\\',
	'\'': '\'',
	'"':  '"',
}

func (s *Scanner) scanString() (TokenKind, error) {
	s.skip()

	for {
		if s.atEnd() {
			return EOF, s.errorf("unterminated string")
		}
		if s.ahead[0].invalid {
			return EOF, s.errorf("malformed UTF-8 encoding in string")
		}
		switch c := s.next(); c {
		case '"':
			return STRING, nil
		case '\n':
			return EOF, s.errorf("newline in string")
		case '\\':
			if err := s.scanEscape(); err != nil {
				return EOF, err
			}
		default:
			s.text.WriteRune(c)
		}
	}
}

// scanEscape decodes the escape sequence that follows a backslash. \hh escapes produce raw bytes, so
// strings may hold arbitrary binary data.
func (s *Scanner) scanEscape() error {
	c := s.next()
	if b, ok := simpleEscapes[c]; ok {
		s.text.WriteByte(b)
		return nil
	}

	if c == 'u' {
		if s.next() != '{' {
			return s.errorf("malformed unicode escape")
		}
		var v rune
		digits := 0
		for ; s.peek() != '}'; digits++ {
			d, ok := hexValue(s.next())
			if !ok {
				return s.errorf("malformed unicode escape")
			}
			if v = v<<4 | rune(d); v > utf8.MaxRune {
				return s.errorf("unicode escape out of range")
			}
		}
		s.skip()
		if digits == 0 {
			return s.errorf("malformed unicode escape")
		}
		if v >= 0xd800 && v < 0xe000 {
			return s.errorf("unicode escape is a surrogate")
		}
		s.text.WriteRune(v)
		return nil
	}

	hi, okHi := hexValue(c)
	lo, okLo := hexValue(s.next())
	if !okHi || !okLo {
		return s.errorf("unknown escape sequence '\\%c'", c)
	}
	s.text.WriteByte(byte(hi<<4 | lo))
	return nil
}

func endsAtom(r rune) bool {
	return r == 0 || isSpace(r) || strings.ContainsRune(`()";`, r)
}

func (s *Scanner) scanAtom() TokenKind {
	for !endsAtom(s.peek()) {
		s.text.WriteRune(s.next())
	}
	return classifyAtom(s.text.String())
}

func classifyAtom(text string) TokenKind {
	if text[0] == '$' {
		return NAME
	}

	digits := strings.TrimLeft(text[:1], "+-") + text[1:]
	switch {
	case digits == "":
		return KEYWORD
	case isDigit(rune(digits[0])), digits == "inf", digits == "nan", strings.HasPrefix(digits, "nan:0x"):
		return NUMBER
	default:
		return KEYWORD
	}
}

// skipLineComment consumes through the end of the line.
func (s *Scanner) skipLineComment() {
	for !s.atEnd() {
		if s.next() == '\n' {
			return
		}
	}
}

// skipBlockComment consumes a possibly nested (; ... ;) comment.
func (s *Scanner) skipBlockComment() error {
	s.skip()
	s.skip()

	for depth := 1; depth > 0; {
		switch m, n := s.peek2(); {
		case m == '(' && n == ';':
			s.skip()
			s.skip()
			depth++
		case m == ';' && n == ')':
			s.skip()
			s.skip()
			depth--
		case s.atEnd():
			return s.errorf("unterminated block comment")
		default:
			s.skip()
		}
	}
	return nil
}

func (s *Scanner) scan() (TokenKind, error) {
	s.text.Reset()

	for {
		s.start = s.Pos()

		m, n := s.peek2()
		switch {
		case m == '(' && n == ';':
			if err := s.skipBlockComment(); err != nil {
				return EOF, err
			}
		case m == ';':
			s.skipLineComment()
		case isSpace(m):
			s.skip()
		case m == '(':
			s.skip()
			return LPAREN, nil
		case m == ')':
			s.skip()
			return RPAREN, nil
		case m == '"':
			return s.scanString()
		case m == 0:
			switch err := s.ahead[0].err; err {
			case nil:
				return EOF, s.errorf("unexpected NUL character")
			case io.EOF:
				return EOF, nil
			default:
				return EOF, err
			}
		case m == utf8.RuneError:
			return EOF, errors.New("malformed UTF-8 encoding")
		default:
			return s.scanAtom(), nil
		}
	}
}

// Scan returns the next token. At the end of the input it returns a token of kind EOF.
func (s *Scanner) Scan() (*Token, error) {
	kind, err := s.scan()
	if err != nil {
		return nil, err
	}
	return &Token{Kind: kind, Pos: s.start, Text: s.text.String()}, nil
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\r' || r == '\n'
}

func isDigit(r rune) bool {
	return '0' <= r && r <= '9'
}

func hexValue(r rune) (uint64, bool) {
	switch {
	case isDigit(r):
		return uint64(r - '0'), true
	case 'a' <= r && r <= 'f':
		return uint64(r-'a') + 10, true
	case 'A' <= r && r <= 'F':
		return uint64(r-'A') + 10, true
	}
	return 0, false
}
