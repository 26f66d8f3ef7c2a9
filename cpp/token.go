package cpp

import (
	"fmt"
)

// The list of token kinds.
const (
	ERROR TokenKind = iota
	EOF
	// Lexer only.
	FUNCLIKE_DEFINE // Occurs after ident before paren #define ident(
	DIRECTIVE       // #define #include etc
	END_DIRECTIVE   // New line at the end of a directive
	HEADER          // <stdio.h> or "foo.h" after #include

	IDENT   // main
	LITERAL // 123, 1.5f, 'a', "abc"
	PUNCT   // + ## <<= ...
	PLAIN   // anything else, e.g. `@` or a half pasted token
	COMMENT // /* ... */ or // ...

	// Expansion only.
	MACRO_ARG   // reference to a macro parameter
	VAR_ARGS    // __VA_ARGS__
	PLACEMARKER // empty argument taking part in ##
)

var tokenKindToStr = [...]string{
	ERROR:           "error",
	EOF:             "EOF",
	FUNCLIKE_DEFINE: "funclikedefine",
	DIRECTIVE:       "cppdirective",
	END_DIRECTIVE:   "enddirective",
	HEADER:          "header",
	IDENT:           "ident",
	LITERAL:         "literal",
	PUNCT:           "punct",
	PLAIN:           "plain",
	COMMENT:         "comment",
	MACRO_ARG:       "macroarg",
	VAR_ARGS:        "varargs",
	PLACEMARKER:     "placemarker",
}

type TokenKind uint32

func (tk TokenKind) String() string {
	if uint32(tk) >= uint32(len(tokenKindToStr)) {
		return "Unknown"
	}
	ret := tokenKindToStr[tk]
	if ret == "" {
		return "Unknown"
	}
	return ret
}

type FilePos struct {
	File string
	Line int
	Col  int
}

func (pos FilePos) String() string {
	return fmt.Sprintf("%s:%d:%d", pos.File, pos.Line, pos.Col)
}

// Token is a classified piece of a macro definition or of a header.
//
// Painted marks a token that must not be considered for replacement again
// in the current expansion. Tokens returned from a MacroSet are never painted.
type Token struct {
	Kind    TokenKind
	Val     string
	Pos     FilePos
	Arg     int
	Lit     Lit
	Painted bool
}

func (t Token) String() string {
	switch t.Kind {
	case MACRO_ARG:
		return fmt.Sprintf("$%d", t.Arg)
	case PLACEMARKER:
		return "<placemarker>"
	}
	return t.Val
}

func (t Token) Is(kind TokenKind, val string) bool {
	return t.Kind == kind && t.Val == val
}

func (t Token) IsPunct(val string) bool {
	return t.Is(PUNCT, val)
}

// Ident returns an identifier token.
func Ident(s string) Token {
	return Token{Kind: IDENT, Val: s}
}

// Punct returns a punctuation token.
func Punct(s string) Token {
	return Token{Kind: PUNCT, Val: s}
}

// Arg returns a token referring to the macro parameter at index.
func Arg(index int) Token {
	return Token{Kind: MACRO_ARG, Arg: index}
}

func joinTokens(toks []Token) string {
	s := ""
	for i, t := range toks {
		if i != 0 {
			s += " "
		}
		s += t.String()
	}
	return s
}
