// Package wkt reads OGC Well-Known Text (WKT 1) CRS definitions.
package wkt

import (
	"strings"

	"github.com/pspoerri/crstransform/internal/crs"
)

// node is one bracketed keyword group, e.g. SPHEROID["Bessel",6377397.155,299.15].
type node struct {
	keyword string // upper-cased
	offset  int
	args    []arg
}

// arg is a positional argument: a literal or a nested node.
type arg struct {
	tok  token
	node *node
}

// children returns the nested nodes with the given keyword in declaration
// order. Sibling blocks may appear in any order.
func (n *node) children(keyword string) []*node {
	var out []*node
	for _, a := range n.args {
		if a.node != nil && a.node.keyword == keyword {
			out = append(out, a.node)
		}
	}
	return out
}

// child returns the first nested node with one of the keywords.
func (n *node) child(keywords ...string) *node {
	for _, a := range n.args {
		if a.node == nil {
			continue
		}
		for _, k := range keywords {
			if a.node.keyword == k {
				return a.node
			}
		}
	}
	return nil
}

// literals returns the non-node arguments.
func (n *node) literals() []token {
	var out []token
	for _, a := range n.args {
		if a.node == nil {
			out = append(out, a.tok)
		}
	}
	return out
}

// parser is a recursive-descent parser with one stack frame per bracket
// group.
type parser struct {
	lex  lexer
	tok  token
	peek bool
}

func (p *parser) next() (token, error) {
	if p.peek {
		p.peek = false
		return p.tok, nil
	}
	t, err := p.lex.next()
	if err != nil {
		return token{}, err
	}
	p.tok = t
	return t, nil
}

func (p *parser) unread() { p.peek = true }

func (p *parser) expect(kind tokenKind) (token, error) {
	t, err := p.next()
	if err != nil {
		return token{}, err
	}
	if t.kind != kind {
		return token{}, malformed(p.lex.src, t.offset, "expected "+kind.String()+", found "+t.kind.String())
	}
	return t, nil
}

// parseTree parses exactly one top-level keyword group.
func parseTree(src string) (*node, error) {
	p := &parser{lex: lexer{src: src}}
	n, err := p.parseNode()
	if err != nil {
		return nil, err
	}
	t, err := p.next()
	if err != nil {
		return nil, err
	}
	if t.kind != tokEOF {
		return nil, malformed(src, t.offset, "trailing content after definition")
	}
	return n, nil
}

func (p *parser) parseNode() (*node, error) {
	kw, err := p.expect(tokWord)
	if err != nil {
		return nil, err
	}
	open, err := p.expect(tokOpen)
	if err != nil {
		return nil, err
	}
	n := &node{keyword: strings.ToUpper(kw.text), offset: kw.offset}

	for {
		t, err := p.next()
		if err != nil {
			return nil, err
		}
		switch t.kind {
		case tokWord:
			// A word followed by a bracket is a nested group, otherwise a
			// bare enumeration value such as NORTH.
			la, err := p.lex.next()
			if err != nil {
				return nil, err
			}
			if la.kind == tokOpen {
				p.lex.pos = la.offset
				p.unread()
				child, err := p.parseNode()
				if err != nil {
					return nil, err
				}
				n.args = append(n.args, arg{node: child})
			} else {
				p.lex.pos = la.offset
				n.args = append(n.args, arg{tok: t})
			}
		case tokString, tokNumber:
			n.args = append(n.args, arg{tok: t})
		case tokEOF:
			return nil, malformed(p.lex.src, open.offset, "unbalanced brackets: "+n.keyword+" is never closed")
		default:
			return nil, malformed(p.lex.src, t.offset, "unexpected "+t.kind.String()+" in "+n.keyword)
		}

		sep, err := p.next()
		if err != nil {
			return nil, err
		}
		switch sep.kind {
		case tokComma:
			continue
		case tokClose:
			if (open.text == "[") != (sep.text == "]") {
				return nil, malformed(p.lex.src, sep.offset, "mismatched brackets in "+n.keyword)
			}
			return n, nil
		case tokEOF:
			return nil, malformed(p.lex.src, open.offset, "unbalanced brackets: "+n.keyword+" is never closed")
		default:
			return nil, malformed(p.lex.src, sep.offset, "expected comma or closing bracket in "+n.keyword)
		}
	}
}

func malformed(src string, offset int, reason string) error {
	end := offset + 40
	if end > len(src) {
		end = len(src)
	}
	start := offset
	if start > len(src) {
		start = len(src)
	}
	return &crs.MalformedDefinitionError{Fragment: src[start:end], Offset: offset, Reason: reason}
}
