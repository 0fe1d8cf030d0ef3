package wast

import (
	"fmt"
	"io"
)

// Item is an element of a list: either a *Token or a *Node.
type Item interface {
	Position() Pos
}

func (t *Token) Position() Pos {
	return t.Pos
}

// Node is a parenthesized list. If the list begins with a keyword, that keyword is the node's Name and
// is not repeated in Items.
type Node struct {
	Pos   Pos
	Name  string
	Items []Item
}

func (n *Node) Position() Pos {
	return n.Pos
}

type parser struct {
	s   *Scanner
	tok *Token
}

func (p *parser) scan() {
	tok, err := p.s.Scan()
	if err != nil {
		panic(err)
	}
	p.tok = tok
}

func (p *parser) errorf(s string, args ...interface{}) error {
	return &SyntaxError{Pos: p.tok.Pos, Msg: fmt.Sprintf(s, args...)}
}

func (p *parser) expect(kind TokenKind) *Token {
	if p.tok.Kind != kind {
		panic(p.errorf("expected %v, got %v", kind, p.tok))
	}
	tok := p.tok
	p.scan()
	return tok
}

func (p *parser) parseNode() *Node {
	n := &Node{Pos: p.expect(LPAREN).Pos}
	if p.tok.Kind == KEYWORD {
		n.Name = p.tok.Text
		p.scan()
	}

	for p.tok.Kind != RPAREN {
		switch p.tok.Kind {
		case EOF:
			panic(p.errorf("unclosed list opened at %v", n.Pos))
		case LPAREN:
			n.Items = append(n.Items, p.parseNode())
		default:
			n.Items = append(n.Items, p.tok)
			p.scan()
		}
	}
	p.scan()
	return n
}

// Parse reads a sequence of s-expressions. Every top-level item must be a list.
func Parse(r io.Reader) (nodes []*Node, err error) {
	defer func() {
		if v := recover(); v != nil {
			e, ok := v.(error)
			if !ok {
				panic(v)
			}
			nodes, err = nil, e
		}
	}()

	p := parser{s: NewScanner(r)}
	p.scan()
	for p.tok.Kind != EOF {
		nodes = append(nodes, p.parseNode())
	}
	return nodes, nil
}
