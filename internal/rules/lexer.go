package rules

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEnd tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokDot
	tokImply // => or ⇒
	tokOp    // == != < <= > >=
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// operators longest first, so "<=" wins over "<"
var operators = []struct {
	text string
	kind tokenKind
}{
	{"=>", tokImply},
	{"⇒", tokImply},
	{"==", tokOp},
	{"!=", tokOp},
	{"<=", tokOp},
	{">=", tokOp},
	{"<", tokOp},
	{">", tokOp},
	{".", tokDot},
}

// tokenize splits a rule into tokens, ending with a tokEnd token
func tokenize(input string) ([]token, error) {
	var toks []token
	pos := 0
	for {
		for pos < len(input) && unicode.IsSpace(rune(input[pos])) {
			pos++
		}
		if pos >= len(input) {
			return append(toks, token{kind: tokEnd, pos: pos}), nil
		}

		tok, n, err := scan(input, pos)
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		pos += n
	}
}

// scan reads one token at pos and returns it with its byte length
func scan(input string, pos int) (token, int, error) {
	rest := input[pos:]
	for _, op := range operators {
		if strings.HasPrefix(rest, op.text) {
			return token{kind: op.kind, text: op.text, pos: pos}, len(op.text), nil
		}
	}

	ch := rest[0]
	switch {
	case ch == '"':
		end := strings.IndexByte(rest[1:], '"')
		if end < 0 {
			return token{}, 0, fmt.Errorf("unterminated string literal at position %d", pos)
		}
		return token{kind: tokString, text: rest[1 : end+1], pos: pos}, end + 2, nil

	case isDigit(ch) || ch == '-':
		n := numberLength(rest)
		text := rest[:n]
		if _, err := strconv.ParseFloat(text, 64); err != nil {
			return token{}, 0, fmt.Errorf("invalid number '%s' at position %d", text, pos)
		}
		return token{kind: tokNumber, text: text, pos: pos}, n, nil

	case isIdentStart(ch):
		n := 1
		for n < len(rest) && isIdentChar(rest[n]) {
			n++
		}
		return token{kind: tokIdent, text: rest[:n], pos: pos}, n, nil
	}

	return token{}, 0, fmt.Errorf("unexpected character '%c' at position %d", ch, pos)
}

// numberLength measures an optionally signed decimal with an optional exponent.
// Malformed runs such as 1.2.3 are consumed whole so the caller can reject them.
func numberLength(s string) int {
	n := 0
	if s[0] == '-' {
		n++
	}
	for n < len(s) {
		ch := s[n]
		switch {
		case isDigit(ch) || ch == '.' || ch == 'e' || ch == 'E':
		case (ch == '+' || ch == '-') && (s[n-1] == 'e' || s[n-1] == 'E'):
		default:
			return n
		}
		n++
	}
	return n
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isIdentChar(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch) || ch == '-'
}
