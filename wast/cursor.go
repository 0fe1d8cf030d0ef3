package wast

import (
	"fmt"

	"github.com/pgavlin/wasmir/wasm"
)

// cursor walks the items of a list. The expect* and end methods panic with a *SyntaxError.
type cursor struct {
	list  *Node
	items []Item
	i     int
}

func newCursor(n *Node) *cursor {
	return &cursor{list: n, items: n.Items}
}

func errorf(it Item, format string, args ...interface{}) error {
	return &SyntaxError{Pos: it.Position(), Msg: fmt.Sprintf(format, args...)}
}

func (c *cursor) done() bool {
	return c.i >= len(c.items)
}

func (c *cursor) peek() Item {
	if c.done() {
		return nil
	}
	return c.items[c.i]
}

func (c *cursor) next() Item {
	it := c.peek()
	if it == nil {
		panic(errorf(c.list, "unexpected end of %s", c.describe()))
	}
	c.i++
	return it
}

func (c *cursor) describe() string {
	if c.list.Name == "" {
		return "list"
	}
	return c.list.Name
}

// token consumes the next item if it is a token of the given kind.
func (c *cursor) token(kind TokenKind) (*Token, bool) {
	if tok, ok := c.peek().(*Token); ok && tok.Kind == kind {
		c.i++
		return tok, true
	}
	return nil, false
}

func (c *cursor) expectToken(kind TokenKind) *Token {
	it := c.next()
	tok, ok := it.(*Token)
	if !ok || tok.Kind != kind {
		panic(errorf(it, "expected %v in %s", kind, c.describe()))
	}
	return tok
}

// keyword consumes the next item if it is the given keyword.
func (c *cursor) keyword(word string) bool {
	if tok, ok := c.peek().(*Token); ok && tok.Kind == KEYWORD && tok.Text == word {
		c.i++
		return true
	}
	return false
}

// name consumes an optional $name.
func (c *cursor) name() string {
	if tok, ok := c.token(NAME); ok {
		return tok.Text
	}
	return ""
}

// index consumes the next item if it is a numeric or symbolic index.
func (c *cursor) index() (*Token, bool) {
	if tok, ok := c.peek().(*Token); ok && (tok.Kind == NUMBER || tok.Kind == NAME) {
		c.i++
		return tok, true
	}
	return nil, false
}

func (c *cursor) expectIndex() *Token {
	tok, ok := c.index()
	if !ok {
		panic(errorf(c.at(), "expected an index in %s", c.describe()))
	}
	return tok
}

func (c *cursor) expectString() string {
	return c.expectToken(STRING).Text
}

func (c *cursor) expectU32() uint32 {
	tok := c.expectToken(NUMBER)
	v, err := parseU32(tok.Text)
	if err != nil {
		panic(errorf(tok, "%v", err))
	}
	return v
}

// peekNode returns the next item if it is a list with the given name.
func (c *cursor) peekNode(name string) (*Node, bool) {
	if n, ok := c.peek().(*Node); ok && n.Name == name {
		return n, true
	}
	return nil, false
}

// node consumes the next item if it is a list with the given name.
func (c *cursor) node(name string) (*Node, bool) {
	n, ok := c.peekNode(name)
	if ok {
		c.i++
	}
	return n, ok
}

func (c *cursor) valueType() wasm.ValueType {
	tok := c.expectToken(KEYWORD)
	t, ok := wasm.ParseValueType(tok.Text)
	if !ok {
		panic(errorf(tok, "unknown value type %s", tok.Text))
	}
	return t
}

// at returns the current item, or the list itself if the cursor is exhausted.
func (c *cursor) at() Item {
	if it := c.peek(); it != nil {
		return it
	}
	return c.list
}

// end fails if any items remain.
func (c *cursor) end() {
	if it := c.peek(); it != nil {
		panic(errorf(it, "unexpected %v in %s", describeItem(it), c.describe()))
	}
}

func describeItem(it Item) string {
	switch it := it.(type) {
	case *Token:
		return it.String()
	case *Node:
		if it.Name != "" {
			return fmt.Sprintf("(%s ...)", it.Name)
		}
		return "list"
	default:
		return "item"
	}
}
