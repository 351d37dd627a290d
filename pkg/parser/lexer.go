package parser

import "strings"

type tokKind int

const (
	tEOF tokKind = iota
	tWord
	tQuoted
	tVar
	tSysVar
	tNumber
	tString
	tPunct
)

type token struct {
	kind  tokKind
	text  string
	upper string
	off   int
	line  int
}

func (t token) isWord(kw string) bool { return t.kind == tWord && t.upper == kw }

func (t token) isPunct(p string) bool { return t.kind == tPunct && t.text == p }

// isName reports whether t can start or continue a qualified name.
func (t token) isName() bool { return t.kind == tWord || t.kind == tQuoted }

// lex splits masked T-SQL into tokens. It never fails: anything it does not
// recognize becomes a one-byte punctuation token.
func lex(src string) []token {
	var toks []token
	line := 1
	n := len(src)

	emit := func(kind tokKind, start, end int) {
		text := src[start:end]
		toks = append(toks, token{
			kind:  kind,
			text:  text,
			upper: strings.ToUpper(text),
			off:   start,
			line:  line,
		})
	}

	for i := 0; i < n; {
		c := src[i]
		switch {
		case c == '\n':
			line++
			i++
		case c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v':
			i++
		case (c == 'N' || c == 'n') && i+1 < n && src[i+1] == '\'':
			end := scanString(src, i+1)
			emit(tString, i, end)
			line += strings.Count(src[i:end], "\n")
			i = end
		case c == '\'':
			end := scanString(src, i)
			emit(tString, i, end)
			line += strings.Count(src[i:end], "\n")
			i = end
		case c == '[':
			end := scanDelimited(src, i, ']')
			emit(tQuoted, i, end)
			i = end
		case c == '"':
			end := scanDelimited(src, i, '"')
			emit(tQuoted, i, end)
			i = end
		case c == '@' && i+1 < n && src[i+1] == '@':
			end := scanWord(src, i+2)
			emit(tSysVar, i, end)
			i = end
		case c == '@':
			end := scanWord(src, i+1)
			emit(tVar, i, end)
			i = end
		case isDigit(c) || (c == '.' && i+1 < n && isDigit(src[i+1])):
			end := scanNumber(src, i)
			emit(tNumber, i, end)
			i = end
		case isWordStart(c):
			end := scanWord(src, i)
			emit(tWord, i, end)
			i = end
		default:
			end := i + 1
			if i+1 < n && isCompoundOp(c, src[i+1]) {
				end = i + 2
			}
			emit(tPunct, i, end)
			i = end
		}
	}
	toks = append(toks, token{kind: tEOF, off: n, line: line})
	return toks
}

func scanString(src string, quote int) int {
	for i := quote + 1; i < len(src); i++ {
		if src[i] == '\'' {
			if i+1 < len(src) && src[i+1] == '\'' {
				i++
				continue
			}
			return i + 1
		}
	}
	return len(src)
}

func scanDelimited(src string, start int, closer byte) int {
	for i := start + 1; i < len(src); i++ {
		if src[i] == closer {
			if i+1 < len(src) && src[i+1] == closer {
				i++
				continue
			}
			return i + 1
		}
		if src[i] == '\n' {
			return i
		}
	}
	return len(src)
}

func scanWord(src string, i int) int {
	for i < len(src) && isWordPart(src[i]) {
		i++
	}
	return i
}

func scanNumber(src string, i int) int {
	if src[i] == '0' && i+1 < len(src) && (src[i+1] == 'x' || src[i+1] == 'X') {
		i += 2
		for i < len(src) && isHex(src[i]) {
			i++
		}
		return i
	}
	for i < len(src) && (isDigit(src[i]) || src[i] == '.') {
		i++
	}
	if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
		j := i + 1
		if j < len(src) && (src[j] == '+' || src[j] == '-') {
			j++
		}
		if j < len(src) && isDigit(src[j]) {
			i = j
			for i < len(src) && isDigit(src[i]) {
				i++
			}
		}
	}
	return i
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHex(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isWordStart(c byte) bool {
	return c == '_' || c == '#' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isWordPart(c byte) bool {
	return isWordStart(c) || isDigit(c) || c == '$' || c == '@'
}

func isCompoundOp(a, b byte) bool {
	switch string([]byte{a, b}) {
	case "<=", ">=", "<>", "!=", "!<", "!>", "+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "::":
		return true
	}
	return false
}
