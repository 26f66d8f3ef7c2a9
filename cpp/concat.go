package cpp

import "strings"

type punctPair struct {
	lhs, rhs string
}

var pastedPunctuators = map[punctPair]string{
	{"-", ">"}:   "->",
	{"+", "+"}:   "++",
	{"-", "-"}:   "--",
	{"<", "<"}:   "<<",
	{">", ">"}:   ">>",
	{"<", "="}:   "<=",
	{">", "="}:   ">=",
	{"=", "="}:   "==",
	{"!", "="}:   "!=",
	{"&", "&"}:   "&&",
	{"|", "|"}:   "||",
	{"*", "="}:   "*=",
	{"/", "="}:   "/=",
	{"%", "="}:   "%=",
	{"+", "="}:   "+=",
	{"-", "="}:   "-=",
	{"<<", "="}:  "<<=",
	{"<", "<="}:  "<<=",
	{">>", "="}:  ">>=",
	{">", ">="}:  ">>=",
	{"&", "="}:   "&=",
	{"^", "="}:   "^=",
	{"|", "="}:   "|=",
	{"#", "#"}:   "##",
	{"<", ":"}:   "<:",
	{":", ">"}:   ":>",
	{"<", "%"}:   "<%",
	{"%", ">"}:   "%>",
	{"%", ":"}:   "%:",
	{"%:", "%:"}: "%:%:",
}

func isCharOrString(t Token) bool {
	if t.Kind != LITERAL {
		return false
	}
	switch t.Lit.(type) {
	case CharLit, StringLit:
		return true
	}
	return false
}

func isOrdinaryCharOrString(t Token) bool {
	switch l := t.Lit.(type) {
	case CharLit:
		return l.Enc == Ordinary
	case StringLit:
		return l.Enc == Ordinary
	}
	return false
}

// concat pastes two tokens with the ## operator.
func concat(lhs, rhs Token) (Token, error) {
	lhs.Painted = false
	rhs.Painted = false
	if lhs.Kind == PLACEMARKER {
		return rhs, nil
	}
	if rhs.Kind == PLACEMARKER {
		return lhs, nil
	}
	switch {
	case lhs.Kind == IDENT && rhs.Kind == IDENT:
		return Ident(lhs.Val + rhs.Val), nil
	case lhs.Kind == PUNCT && rhs.Kind == PUNCT:
		v, ok := pastedPunctuators[punctPair{lhs.Val, rhs.Val}]
		if !ok {
			return Token{}, expansionError(InvalidConcat)
		}
		// The pasted operator must not act as # or ## in this expansion.
		ret := Punct(v)
		ret.Painted = true
		return ret, nil
	case isCharOrString(lhs):
		return Token{}, expansionError(InvalidConcat)
	case lhs.Kind == PUNCT && rhs.Kind == LITERAL:
		if lhs.Val == "." && !isCharOrString(rhs) {
			s := lhs.Val + rhs.Val
			if lit, ok := ParseLit(s); ok {
				return Token{Kind: LITERAL, Val: s, Lit: lit}, nil
			}
		}
		return Token{}, expansionError(InvalidConcat)
	case lhs.Kind == IDENT && rhs.Kind == LITERAL:
		switch rhs.Lit.(type) {
		case CharLit, StringLit:
			if isOrdinaryCharOrString(rhs) {
				switch lhs.Val {
				case "u8", "u", "U", "L":
					s := lhs.Val + rhs.Val
					if lit, ok := ParseLit(s); ok {
						return Token{Kind: LITERAL, Val: s, Lit: lit}, nil
					}
				}
			}
		case IntLit:
			return Ident(lhs.Val + rhs.Val), nil
		case FloatLit:
			// Only exponent forms such as 123e4 continue an identifier.
			if IsIdentContinue(rhs.Val) {
				return Ident(lhs.Val + rhs.Val), nil
			}
		}
		return Token{}, expansionError(InvalidConcat)
	case isPasteOperand(lhs) && isPasteOperand(rhs):
		return reclassify(lhs.Val + rhs.Val), nil
	}
	return Token{}, expansionError(InvalidConcat)
}

func isPasteOperand(t Token) bool {
	return t.Kind == IDENT || t.Kind == LITERAL || t.Kind == PLAIN
}

// expandConcat applies every ## operator of an expansion whose operands are
// already substituted. Painted ## tokens are plain punctuation.
func expandConcat(toks []Token) ([]Token, error) {
	ret := make([]Token, 0, len(toks))
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if !t.IsPunct("##") || t.Painted {
			ret = append(ret, t)
			continue
		}
		if len(ret) != 0 && isParam(ret[len(ret)-1]) {
			ret = append(ret, t)
			continue
		}
		if i+1 < len(toks) && isParam(toks[i+1]) {
			ret = append(ret, t)
			continue
		}
		var lhs Token
		found := false
		for len(ret) != 0 {
			lhs = ret[len(ret)-1]
			ret = ret[:len(ret)-1]
			if lhs.Kind != COMMENT {
				found = true
				break
			}
		}
		if !found {
			return nil, expansionError(ConcatBegin)
		}
		var rhs Token
		if i+1 < len(toks) && toks[i+1].IsPunct("##") && !toks[i+1].Painted {
			// Consecutive ## collapse into one.
			rhs = Token{Kind: PLACEMARKER}
		} else {
			found = false
			for i+1 < len(toks) {
				i++
				rhs = toks[i]
				if rhs.Kind != COMMENT {
					found = true
					break
				}
			}
			if !found {
				return nil, expansionError(ConcatEnd)
			}
		}
		pasted, err := concat(lhs, rhs)
		if err != nil {
			return nil, err
		}
		ret = append(ret, pasted)
	}
	return ret, nil
}

func isParam(t Token) bool {
	return t.Kind == MACRO_ARG || t.Kind == VAR_ARGS
}

func removePlacemarkers(toks []Token) []Token {
	ret := toks[:0]
	for _, t := range toks {
		if t.Kind != PLACEMARKER {
			ret = append(ret, t)
		}
	}
	return ret
}

func stringEscape(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
