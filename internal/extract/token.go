package extract

import (
	"fmt"
	"unicode"
)

// Kind classifies a token of native source.
type Kind int

const (
	Ident Kind = iota
	Punct
	String
	Number
	Lifetime
	Char
)

func (k Kind) String() string {
	switch k {
	case Ident:
		return "identifier"
	case Punct:
		return "punctuation"
	case String:
		return "string"
	case Number:
		return "number"
	case Lifetime:
		return "lifetime"
	case Char:
		return "char"
	}
	return "unknown"
}

// Token is one lexical token with its 1-based position.
type Token struct {
	Value string
	Kind  Kind
	Line  int
	Col   int
}

func (t Token) is(kind Kind, value string) bool {
	return t.Kind == kind && t.Value == value
}

// multi-character punctuation kept as one token; '<' and '>' are always
// single so generic nesting can be counted.
var multiPunct = []string{"::", "->", "=>"}

// Tokenize splits native source into tokens, dropping whitespace and
// comments (doc comments included).
func Tokenize(input string) ([]Token, error) {
	var tokens []Token
	runes := []rune(input)
	line, col := 1, 1

	advance := func(n int) {
		for k := 0; k < n && len(runes) > 0; k++ {
			if runes[0] == '\n' {
				line++
				col = 1
			} else {
				col++
			}
			runes = runes[1:]
		}
	}
	peekAt := func(k int) rune {
		if k < len(runes) {
			return runes[k]
		}
		return 0
	}

	for len(runes) > 0 {
		r := runes[0]
		startLine, startCol := line, col

		if unicode.IsSpace(r) {
			advance(1)
			continue
		}

		// Line comment
		if r == '/' && peekAt(1) == '/' {
			for len(runes) > 0 && runes[0] != '\n' {
				advance(1)
			}
			continue
		}

		// Block comment, nested
		if r == '/' && peekAt(1) == '*' {
			depth := 0
			for len(runes) > 0 {
				if runes[0] == '/' && peekAt(1) == '*' {
					depth++
					advance(2)
					continue
				}
				if runes[0] == '*' && peekAt(1) == '/' {
					depth--
					advance(2)
					if depth == 0 {
						break
					}
					continue
				}
				advance(1)
			}
			if depth != 0 {
				return nil, &Error{Code: CodeSyntax, Message: "unterminated block comment", Line: startLine, Col: startCol}
			}
			continue
		}

		// Raw string r"..." / r#"..."#
		if r == 'r' && (peekAt(1) == '"' || (peekAt(1) == '#' && (peekAt(2) == '"' || peekAt(2) == '#'))) {
			hashes := 0
			for peekAt(1+hashes) == '#' {
				hashes++
			}
			advance(2 + hashes)
			var value []rune
			closed := false
			for len(runes) > 0 {
				if runes[0] == '"' {
					n := 0
					for n < hashes && peekAt(1+n) == '#' {
						n++
					}
					if n == hashes {
						advance(1 + hashes)
						closed = true
						break
					}
				}
				value = append(value, runes[0])
				advance(1)
			}
			if !closed {
				return nil, &Error{Code: CodeSyntax, Message: "unterminated raw string", Line: startLine, Col: startCol}
			}
			tokens = append(tokens, Token{string(value), String, startLine, startCol})
			continue
		}

		// String literal, escapes resolved
		if r == '"' {
			advance(1)
			value, err := readQuoted(&runes, advance, '"')
			if err != nil {
				return nil, &Error{Code: CodeSyntax, Message: err.Error(), Line: startLine, Col: startCol}
			}
			tokens = append(tokens, Token{value, String, startLine, startCol})
			continue
		}

		// Lifetime or char literal
		if r == '\'' {
			if isIdentStart(peekAt(1)) && peekAt(2) != '\'' {
				advance(1)
				var name []rune
				for len(runes) > 0 && isIdentContinue(runes[0]) {
					name = append(name, runes[0])
					advance(1)
				}
				tokens = append(tokens, Token{"'" + string(name), Lifetime, startLine, startCol})
				continue
			}
			advance(1)
			value, err := readQuoted(&runes, advance, '\'')
			if err != nil {
				return nil, &Error{Code: CodeSyntax, Message: err.Error(), Line: startLine, Col: startCol}
			}
			tokens = append(tokens, Token{value, Char, startLine, startCol})
			continue
		}

		if unicode.IsDigit(r) {
			var num []rune
			for len(runes) > 0 && (isIdentContinue(runes[0]) || (runes[0] == '.' && unicode.IsDigit(peekAt(1)))) {
				num = append(num, runes[0])
				advance(1)
			}
			tokens = append(tokens, Token{string(num), Number, startLine, startCol})
			continue
		}

		if isIdentStart(r) {
			var name []rune
			for len(runes) > 0 && isIdentContinue(runes[0]) {
				name = append(name, runes[0])
				advance(1)
			}
			tokens = append(tokens, Token{string(name), Ident, startLine, startCol})
			continue
		}

		matched := false
		for _, p := range multiPunct {
			pr := []rune(p)
			if len(runes) >= len(pr) && string(runes[:len(pr)]) == p {
				tokens = append(tokens, Token{p, Punct, startLine, startCol})
				advance(len(pr))
				matched = true
				break
			}
		}
		if matched {
			continue
		}

		tokens = append(tokens, Token{string(r), Punct, startLine, startCol})
		advance(1)
	}

	return tokens, nil
}

func readQuoted(runes *[]rune, advance func(int), quote rune) (string, error) {
	var out []rune
	for len(*runes) > 0 {
		c := (*runes)[0]
		if c == quote {
			advance(1)
			return string(out), nil
		}
		if c == '\\' && len(*runes) > 1 {
			next := (*runes)[1]
			switch next {
			case 'n':
				out = append(out, '\n')
			case 't':
				out = append(out, '\t')
			case 'r':
				out = append(out, '\r')
			case '0':
				out = append(out, 0)
			case '\n':
				// line continuation: skip the newline and leading whitespace
				advance(2)
				for len(*runes) > 0 && unicode.IsSpace((*runes)[0]) {
					advance(1)
				}
				continue
			default:
				out = append(out, next)
			}
			advance(2)
			continue
		}
		out = append(out, c)
		advance(1)
	}
	return "", fmt.Errorf("unterminated %c literal", quote)
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentContinue(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
