package wkt

import (
	"strconv"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokString
	tokNumber
	tokOpen
	tokClose
	tokComma
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokWord:
		return "keyword"
	case tokString:
		return "quoted string"
	case tokNumber:
		return "number"
	case tokOpen:
		return "opening bracket"
	case tokClose:
		return "closing bracket"
	case tokComma:
		return "comma"
	}
	return "token"
}

type token struct {
	kind   tokenKind
	text   string
	num    float64
	offset int
}

// lexer splits WKT text into tokens. Both square and round brackets are
// accepted, as in the OGC grammar.
type lexer struct {
	src string
	pos int
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) && unicode.IsSpace(rune(l.src[l.pos])) {
		l.pos++
	}
	start := l.pos
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, offset: start}, nil
	}

	c := l.src[l.pos]
	switch {
	case c == '[' || c == '(':
		l.pos++
		return token{kind: tokOpen, text: string(c), offset: start}, nil
	case c == ']' || c == ')':
		l.pos++
		return token{kind: tokClose, text: string(c), offset: start}, nil
	case c == ',':
		l.pos++
		return token{kind: tokComma, text: ",", offset: start}, nil
	case c == '"':
		l.pos++
		var b strings.Builder
		for l.pos < len(l.src) {
			ch := l.src[l.pos]
			if ch == '"' {
				// A doubled quote is an escaped quote.
				if l.pos+1 < len(l.src) && l.src[l.pos+1] == '"' {
					b.WriteByte('"')
					l.pos += 2
					continue
				}
				l.pos++
				return token{kind: tokString, text: b.String(), offset: start}, nil
			}
			b.WriteByte(ch)
			l.pos++
		}
		return token{}, malformed(l.src, start, "unterminated quoted string")
	case c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9'):
		for l.pos < len(l.src) && strings.IndexByte("+-.0123456789eE", l.src[l.pos]) >= 0 {
			l.pos++
		}
		text := l.src[start:l.pos]
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return token{}, malformed(l.src, start, "invalid number "+strconv.Quote(text))
		}
		return token{kind: tokNumber, text: text, num: v, offset: start}, nil
	case c == '_' || unicode.IsLetter(rune(c)):
		for l.pos < len(l.src) {
			ch := rune(l.src[l.pos])
			if ch != '_' && !unicode.IsLetter(ch) && !unicode.IsDigit(ch) {
				break
			}
			l.pos++
		}
		return token{kind: tokWord, text: l.src[start:l.pos], offset: start}, nil
	}
	return token{}, malformed(l.src, start, "unexpected character "+strconv.QuoteRune(rune(c)))
}
