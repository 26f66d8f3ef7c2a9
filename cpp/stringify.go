package cpp

import "strings"

type stringifyAction int

const (
	stringifyAppend stringifyAction = iota
	// Keep the token and a preceding #.
	stringifyKeep
	stringifySkip
)

func stringifyActionOf(t Token, nested bool) stringifyAction {
	switch t.Kind {
	case MACRO_ARG:
		return stringifyKeep
	case VAR_ARGS:
		if nested {
			return stringifyKeep
		}
	case IDENT:
		if nested && (t.Val == "__LINE__" || t.Val == "__FILE__") {
			return stringifyKeep
		}
	case COMMENT, PLACEMARKER:
		return stringifySkip
	}
	return stringifyAppend
}

func noSpaceBefore(s string) bool {
	switch s {
	case ")", "]", "}", ".", ",", "(":
		return true
	}
	return false
}

func noSpaceAfter(s string) bool {
	switch s {
	case "(", "[", "{", ".":
		return true
	}
	return false
}

func stringLiteral(s string) Token {
	return Token{
		Kind: LITERAL,
		Val:  stringEscape(s),
		Lit:  StringLit{Enc: Ordinary, Bytes: []byte(s)},
	}
}

// stringify implements the # operator on the raw tokens of an argument.
// Inside a nested expansion parameters, __VA_ARGS__, __LINE__ and __FILE__
// are kept as # tok so that the outer expansion can stringify them.
func stringify(toks []Token, nested bool) []Token {
	var ret []Token
	var b strings.Builder
	pending := false
	spaceBeforeNext := false
	flush := func() {
		if pending {
			ret = append(ret, stringLiteral(b.String()))
			b.Reset()
			pending = false
			spaceBeforeNext = false
		}
	}
	for _, t := range toks {
		var s string
		switch stringifyActionOf(t, nested) {
		case stringifyKeep:
			flush()
			t.Painted = false
			ret = append(ret, Punct("#"), t)
			continue
		case stringifySkip:
			continue
		}
		s = t.Val
		pending = true
		if spaceBeforeNext && !noSpaceBefore(s) {
			b.WriteByte(' ')
		}
		spaceBeforeNext = !noSpaceAfter(s)
		b.WriteString(s)
	}
	flush()
	if len(ret) == 0 {
		return []Token{stringLiteral("")}
	}
	return ret
}
