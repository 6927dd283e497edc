package parser

import (
	"fmt"
	"strconv"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokPow // **
	tokCaret
	tokLParen
	tokRParen
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokNumber:
		return "number"
	case tokIdent:
		return "unit"
	case tokPlus:
		return "'+'"
	case tokMinus:
		return "'-'"
	case tokStar:
		return "'*'"
	case tokSlash:
		return "'/'"
	case tokPow:
		return "'**'"
	case tokCaret:
		return "'^'"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	}
	return "token"
}

type token struct {
	kind tokenKind
	text string
	num  float64
	pos  int
	// space is set when whitespace precedes the token.
	space bool
}

func lex(input string) ([]token, error) {
	var toks []token
	space := false
	for i := 0; i < len(input); {
		r, size := utf8.DecodeRuneInString(input[i:])
		switch {
		case unicode.IsSpace(r):
			space = true
			i += size
			continue
		case r == '_' || unicode.IsLetter(r):
			start := i
			for i < len(input) {
				r, size := utf8.DecodeRuneInString(input[i:])
				if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
					break
				}
				i += size
			}
			toks = append(toks, token{kind: tokIdent, text: input[start:i], pos: start, space: space})
		case r == '.' || (r >= '0' && r <= '9'):
			start := i
			end, err := scanNumber(input, i)
			if err != nil {
				return nil, err
			}
			text := input[start:end]
			v, perr := strconv.ParseFloat(text, 64)
			if perr != nil {
				return nil, &ParseError{Input: input, Pos: start, Msg: fmt.Sprintf("invalid number %q", text)}
			}
			toks = append(toks, token{kind: tokNumber, text: text, num: v, pos: start, space: space})
			i = end
		default:
			kind := tokEOF
			width := 1
			switch r {
			case '+':
				kind = tokPlus
			case '-':
				kind = tokMinus
			case '*':
				kind = tokStar
				if i+1 < len(input) && input[i+1] == '*' {
					kind, width = tokPow, 2
				}
			case '/':
				kind = tokSlash
			case '^':
				kind = tokCaret
			case '(':
				kind = tokLParen
			case ')':
				kind = tokRParen
			default:
				return nil, &ParseError{Input: input, Pos: i, Msg: fmt.Sprintf("unexpected character %q", r)}
			}
			toks = append(toks, token{kind: kind, text: input[i : i+width], pos: i, space: space})
			i += width
		}
		space = false
	}
	toks = append(toks, token{kind: tokEOF, pos: len(input), space: space})
	return toks, nil
}

// scanNumber accepts digits with an optional fraction and exponent, as
// in "12", "5.", ".0254" and "1.158e+05".
func scanNumber(input string, i int) (int, error) {
	start := i
	digits := 0
	for i < len(input) && isDigit(input[i]) {
		i++
		digits++
	}
	if i < len(input) && input[i] == '.' {
		i++
		for i < len(input) && isDigit(input[i]) {
			i++
			digits++
		}
	}
	if digits == 0 {
		return 0, &ParseError{Input: input, Pos: start, Msg: "invalid number"}
	}
	if i < len(input) && (input[i] == 'e' || input[i] == 'E') {
		j := i + 1
		if j < len(input) && (input[j] == '+' || input[j] == '-') {
			j++
		}
		if j < len(input) && isDigit(input[j]) {
			for j < len(input) && isDigit(input[j]) {
				j++
			}
			i = j
		}
	}
	return i, nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
