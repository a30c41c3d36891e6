package pdfread

import (
	"bytes"
	"strconv"
)

type tokenKind int

const (
	tokOperator tokenKind = iota
	tokNumber
	tokName
	tokString
	tokDelim
)

type token struct {
	kind  tokenKind
	text  string
	num   float64
	isNum bool
}

// contentScanner tokenizes a PDF content stream just far enough to track
// graphics-state and XObject operators. String and dictionary payloads are
// consumed but not interpreted.
type contentScanner struct {
	data []byte
	pos  int
}

func newContentScanner(data []byte) *contentScanner {
	return &contentScanner{data: data}
}

func isWhitespace(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (s *contentScanner) skipWhitespace() {
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		if isWhitespace(c) {
			s.pos++
			continue
		}
		if c == '%' {
			for s.pos < len(s.data) && s.data[s.pos] != '\n' && s.data[s.pos] != '\r' {
				s.pos++
			}
			continue
		}
		return
	}
}

func (s *contentScanner) next() (token, bool) {
	s.skipWhitespace()
	if s.pos >= len(s.data) {
		return token{}, false
	}
	c := s.data[s.pos]
	switch {
	case c == '(':
		s.skipLiteralString()
		return token{kind: tokString}, true
	case c == '<':
		if s.pos+1 < len(s.data) && s.data[s.pos+1] == '<' {
			s.pos += 2
			return token{kind: tokDelim, text: "<<"}, true
		}
		s.skipHexString()
		return token{kind: tokString}, true
	case c == '>':
		if s.pos+1 < len(s.data) && s.data[s.pos+1] == '>' {
			s.pos += 2
			return token{kind: tokDelim, text: ">>"}, true
		}
		s.pos++
		return token{kind: tokDelim, text: ">"}, true
	case c == '[' || c == ']' || c == '{' || c == '}':
		s.pos++
		return token{kind: tokDelim, text: string(c)}, true
	case c == '/':
		s.pos++
		start := s.pos
		for s.pos < len(s.data) && !isWhitespace(s.data[s.pos]) && !isDelimiter(s.data[s.pos]) {
			s.pos++
		}
		return token{kind: tokName, text: string(s.data[start:s.pos])}, true
	}

	start := s.pos
	for s.pos < len(s.data) && !isWhitespace(s.data[s.pos]) && !isDelimiter(s.data[s.pos]) {
		s.pos++
	}
	text := string(s.data[start:s.pos])
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return token{kind: tokNumber, text: text, num: f, isNum: true}, true
	}
	return token{kind: tokOperator, text: text}, true
}

// skipLiteralString consumes a (...) string honoring nesting and escapes.
func (s *contentScanner) skipLiteralString() {
	depth := 0
	for s.pos < len(s.data) {
		switch s.data[s.pos] {
		case '\\':
			s.pos++ // skip escaped byte
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				s.pos++
				return
			}
		}
		s.pos++
	}
}

func (s *contentScanner) skipHexString() {
	for s.pos < len(s.data) && s.data[s.pos] != '>' {
		s.pos++
	}
	if s.pos < len(s.data) {
		s.pos++
	}
}

// skipInlineImage consumes the inline image dictionary and binary payload
// following a BI operator and returns the declared pixel dimensions, if any.
// The scanner is left positioned after the closing EI.
func (s *contentScanner) skipInlineImage() (width, height int) {
	// Key/value pairs until the ID operator.
	var pendingKey string
	for {
		tok, ok := s.next()
		if !ok {
			return width, height
		}
		if tok.kind == tokOperator && tok.text == "ID" {
			break
		}
		if tok.kind == tokName {
			pendingKey = tok.text
			continue
		}
		if tok.isNum {
			switch pendingKey {
			case "W", "Width":
				width = int(tok.num)
			case "H", "Height":
				height = int(tok.num)
			}
		}
		pendingKey = ""
	}
	// One whitespace byte separates ID from the payload.
	if s.pos < len(s.data) && isWhitespace(s.data[s.pos]) {
		s.pos++
	}
	// Scan for EI delimited by whitespace on both sides.
	for s.pos < len(s.data) {
		idx := bytes.Index(s.data[s.pos:], []byte("EI"))
		if idx < 0 {
			s.pos = len(s.data)
			return width, height
		}
		at := s.pos + idx
		beforeOK := at == 0 || isWhitespace(s.data[at-1])
		afterOK := at+2 >= len(s.data) || isWhitespace(s.data[at+2])
		if beforeOK && afterOK {
			s.pos = at + 2
			return width, height
		}
		s.pos = at + 2
	}
	return width, height
}
