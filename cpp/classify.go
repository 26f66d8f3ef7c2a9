package cpp

import (
	"strings"
	"unicode"
)

var punctuators = map[string]struct{}{
	"[": {}, "]": {}, "(": {}, ")": {}, "{": {}, "}": {}, ".": {}, "->": {},
	"++": {}, "--": {}, "&": {}, "*": {}, "+": {}, "-": {}, "~": {}, "!": {},
	"/": {}, "%": {}, "<<": {}, ">>": {}, "<": {}, ">": {}, "<=": {}, ">=": {},
	"==": {}, "!=": {}, "^": {}, "|": {}, "&&": {}, "||": {}, "?": {}, ":": {},
	";": {}, "...": {}, "=": {}, "*=": {}, "/=": {}, "%=": {}, "+=": {}, "-=": {},
	"<<=": {}, ">>=": {}, "&=": {}, "^=": {}, "|=": {}, ",": {}, "#": {}, "##": {},
	"<:": {}, ":>": {}, "<%": {}, "%>": {}, "%:": {}, "%:%:": {},
}

func IsPunctuator(s string) bool {
	_, ok := punctuators[s]
	return ok
}

func IsComment(s string) bool {
	return (len(s) >= 4 && strings.HasPrefix(s, "/*") && strings.HasSuffix(s, "*/")) || strings.HasPrefix(s, "//")
}

func isBlank(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || IsComment(s)
}

// Classify turns one raw token of a macro definition into a Token. Names in
// params become MACRO_ARG tokens referring to their index.
func Classify(raw string, params []string) Token {
	for i, p := range params {
		if raw == p && p != "..." {
			return Arg(i)
		}
	}
	return classify(raw)
}

func classify(raw string) Token {
	if raw == "__VA_ARGS__" {
		return Token{Kind: VAR_ARGS, Val: raw}
	}
	if id, ok := ParseIdent(raw); ok {
		return Ident(id)
	}
	if lit, ok := ParseLit(raw); ok {
		return Token{Kind: LITERAL, Val: raw, Lit: lit}
	}
	if IsPunctuator(raw) {
		return Punct(raw)
	}
	if IsComment(raw) {
		return Token{Kind: COMMENT, Val: raw}
	}
	return Token{Kind: PLAIN, Val: raw}
}

// reclassify is used for the result of a paste, which may not name a
// parameter, a comment or punctuation.
func reclassify(s string) Token {
	if id, ok := ParseIdent(s); ok {
		return Ident(id)
	}
	if lit, ok := ParseLit(s); ok {
		return Token{Kind: LITERAL, Val: s, Lit: lit}
	}
	return Token{Kind: PLAIN, Val: s}
}

func classifyAll(raw []string, params []string) []Token {
	ret := make([]Token, 0, len(raw))
	for _, r := range raw {
		ret = append(ret, Classify(r, params))
	}
	return ret
}

func isValidIdentTail(b rune) bool {
	return isValidIdentStart(b) || isNumeric(b) || b == '$' ||
		unicode.In(b, unicode.Mn, unicode.Mc, unicode.Nd, unicode.Pc)
}

func isValidIdentStart(b rune) bool {
	return b == '_' || isAlpha(b) || (b > unicode.MaxASCII && unicode.In(b, unicode.L, unicode.Nl))
}

func isAlpha(b rune) bool {
	if b >= 'a' && b <= 'z' {
		return true
	}
	if b >= 'A' && b <= 'Z' {
		return true
	}
	return false
}

func isWhiteSpace(b rune) bool {
	return b == ' ' || b == '\r' || b == '\n' || b == '\t' || b == '\f' || b == '\v'
}

func isNumeric(b rune) bool {
	return b >= '0' && b <= '9'
}

func isHexDigit(b rune) bool {
	return isNumeric(b) || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}
