package wast

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scanAll(t *testing.T, text string) []*Token {
	s := NewScanner(strings.NewReader(text))

	var toks []*Token
	for {
		tok, err := s.Scan()
		require.NoError(t, err)
		toks = append(toks, tok)
		if tok.Kind == EOF {
			return toks
		}
	}
}

func TestScanner(t *testing.T) {
	toks := scanAll(t, "(module $m ;; comment\n"+
		" (func (; block (; nested ;) ;) \"a\\tb\\41\\u{263a}\" 0x10 -1.5 nan:0x1 -inf i32.add offset=4))")

	type kindText struct {
		kind TokenKind
		text string
	}
	var actual []kindText
	for _, tok := range toks {
		actual = append(actual, kindText{tok.Kind, tok.Text})
	}

	assert.Equal(t, []kindText{
		{LPAREN, ""},
		{KEYWORD, "module"},
		{NAME, "$m"},
		{LPAREN, ""},
		{KEYWORD, "func"},
		{STRING, "a\tbA☺"},
		{NUMBER, "0x10"},
		{NUMBER, "-1.5"},
		{NUMBER, "nan:0x1"},
		{NUMBER, "-inf"},
		{KEYWORD, "i32.add"},
		{KEYWORD, "offset=4"},
		{RPAREN, ""},
		{RPAREN, ""},
		{EOF, ""},
	}, actual)

	assert.Equal(t, Pos{Line: 1, Column: 8}, toks[2].Pos)
	assert.Equal(t, Pos{Line: 2, Column: 1}, toks[3].Pos)
	assert.Equal(t, "2:1", toks[3].Pos.String())
}

func TestScannerAtoms(t *testing.T) {
	cases := []struct {
		text string
		kind TokenKind
	}{
		{"42", NUMBER},
		{"+7", NUMBER},
		{"inf", NUMBER},
		{"nan", NUMBER},
		{"-", KEYWORD},
		{"funcref", KEYWORD},
		{"$a.b", NAME},
	}
	for _, c := range cases {
		toks := scanAll(t, c.text)
		require.Len(t, toks, 2, c.text)
		assert.Equal(t, c.kind, toks[0].Kind, c.text)
		assert.Equal(t, c.text, toks[0].Text)
	}
}

func TestScannerStrings(t *testing.T) {
	cases := map[string]string{
		`"\u{10ffff}"`:   "\U0010ffff",
		`"\u{e000}"`:     "\ue000",
		`"\u{0041}"`:     "A",
		`"héllo ☺"`:      "héllo ☺",
		`"\ff\00"`:       "\xff\x00",
		`"\u{00000041}"`: "A",
	}
	for text, expected := range cases {
		toks := scanAll(t, text)
		require.Len(t, toks, 2, text)
		assert.Equal(t, STRING, toks[0].Kind, text)
		assert.Equal(t, expected, toks[0].Text, text)
	}
}

func TestScannerErrors(t *testing.T) {
	cases := map[string]string{
		"unterminated string":  `"abc`,
		"newline in string":    "\"a\nb\"",
		"bad escape":           `"\q"`,
		"bad unicode escape":   `"\u{zz}"`,
		"empty unicode escape": `"\u{}"`,
		"unicode out of range": `"\u{110000}"`,
		"unicode overflow":     `"\u{100000000041}"`,
		"unicode surrogate":    `"\u{d800}"`,
		"invalid utf-8":        "\"a\xffb\"",
		"unterminated comment": "(; (; ;)",
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			s := NewScanner(strings.NewReader(text))
			var err error
			for err == nil {
				var tok *Token
				tok, err = s.Scan()
				if err == nil && tok.Kind == EOF {
					break
				}
			}

			var se *SyntaxError
			require.True(t, errors.As(err, &se), "%v", err)
			assert.Equal(t, Pos{Line: 1, Column: 0}, se.Pos)
		})
	}
}
