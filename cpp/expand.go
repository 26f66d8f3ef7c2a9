package cpp

import "strings"

// expandBody rescans toks until no replaceable macro is left. After every
// substitution the scan restarts from the beginning so that the replacement
// sees its new neighbours.
func (ms *MacroSet) expandBody(ps *paintset, toks []Token) ([]Token, error) {
rescan:
	for {
		ret := make([]Token, 0, len(toks))
		for i := 0; i < len(toks); i++ {
			t := toks[i]
			if t.Kind != IDENT || t.Painted {
				ret = append(ret, t)
				continue
			}
			if ps.contains(t.Val) {
				t.Painted = true
				ret = append(ret, t)
				continue
			}
			if m, ok := ms.fns[t.Val]; ok {
				if open := skipComments(toks, i+1); open < len(toks) && toks[open].IsPunct("(") {
					// An invocation that cannot be collected is left alone.
					if args, next, err := collectArgs(toks, open); err == nil {
						body := classifyAll(m.body, m.params)
						exp, err := ms.expandFnBody(ps, t.Val, m.params, args, body)
						if err != nil {
							return nil, err
						}
						toks = append(append(ret, exp...), toks[next:]...)
						continue rescan
					}
				}
			}
			if body, ok := ms.vars[t.Val]; ok {
				exp, err := ms.expandVarBody(ps, t.Val, classifyAll(body, nil))
				if err != nil {
					return nil, err
				}
				toks = append(append(ret, exp...), toks[i+1:]...)
				continue rescan
			}
			ret = append(ret, t)
		}
		return ret, nil
	}
}

// skipComments returns the index of the first token at or after i that is
// not a comment or whitespace.
func skipComments(toks []Token, i int) int {
	for i < len(toks) && (toks[i].Kind == COMMENT || toks[i].Kind == PLAIN && strings.TrimSpace(toks[i].Val) == "") {
		i++
	}
	return i
}

// checkOperators reports a misplaced # or ## in the body of a function-like
// macro, whether or not it is being invoked.
func checkOperators(body []Token) error {
	for i, t := range body {
		if isOperator(t, "#") && (i+1 >= len(body) || !isParam(body[i+1])) {
			return expansionError(StringifyNonParameter)
		}
	}
	if first := skipComments(body, 0); first < len(body) && isOperator(body[first], "##") {
		return expansionError(ConcatBegin)
	}
	last := len(body) - 1
	for last >= 0 && skipComments(body, last) != last {
		last--
	}
	if last >= 0 && isOperator(body[last], "##") {
		return expansionError(ConcatEnd)
	}
	return nil
}

func containsVarArgs(toks []Token) bool {
	for _, t := range toks {
		if t.Kind == VAR_ARGS {
			return true
		}
	}
	return false
}

func isVariadic(params []string) bool {
	return len(params) != 0 && params[len(params)-1] == "..."
}

func (ms *MacroSet) expandVarBody(ps *paintset, name string, body []Token) ([]Token, error) {
	if containsVarArgs(body) {
		return nil, expansionError(NonVariadicVarArgs)
	}
	body, err := expandConcat(body)
	if err != nil {
		return nil, err
	}
	body = removePlacemarkers(body)
	return ms.expandBody(ps.add(name), body)
}

// expandFnBody expands the body of a function-like macro. With nil args the
// parameters stay unbound and the result is a template.
func (ms *MacroSet) expandFnBody(ps *paintset, name string, params []string, args [][]Token, body []Token) ([]Token, error) {
	if !isVariadic(params) {
		if containsVarArgs(body) {
			return nil, expansionError(NonVariadicVarArgs)
		}
		// FOO() passes one empty argument to a macro without parameters.
		emptyCall := len(params) == 0 && (len(args) == 0 || len(args[0]) == 0)
		if args != nil && len(params) != len(args) && !emptyCall {
			return nil, &ExpansionError{Kind: FnMacroArgumentError, Name: name, Required: len(params), Given: len(args)}
		}
	} else if args != nil && len(args) < len(params)-1 {
		return nil, &ExpansionError{Kind: FnMacroArgumentError, Name: name, Required: len(params) - 1, Given: len(args)}
	}

	for i, p := range params {
		for _, p2 := range params[i+1:] {
			if p == p2 {
				return nil, &ExpansionError{Kind: NonUniqueParameter, Name: p}
			}
		}
	}

	if err := checkOperators(body); err != nil {
		return nil, err
	}
	var err error
	if args != nil {
		body, err = ms.expandArguments(ps, params, args, body)
		if err != nil {
			return nil, err
		}
	}
	body, err = expandConcat(body)
	if err != nil {
		return nil, err
	}
	body = removePlacemarkers(body)
	return ms.expandBody(ps.add(name), body)
}

// collectArgs reads the arguments of an invocation whose ( is at toks[start].
// It returns the arguments and the index following the closing ).
func collectArgs(toks []Token, start int) ([][]Token, int, error) {
	if start >= len(toks) || !toks[start].IsPunct("(") {
		return nil, 0, parenError(MissingOpenParenthesis, '(')
	}
	var parens []rune
	pop := func(open, close rune) error {
		if len(parens) == 0 {
			return parenError(MissingOpenParenthesis, close)
		}
		p := parens[len(parens)-1]
		parens = parens[:len(parens)-1]
		if p != open {
			return parenError(UnclosedParenthesis, p)
		}
		return nil
	}
	var args [][]Token
	cur := []Token{}
	for i := start + 1; i < len(toks); i++ {
		t := toks[i]
		if t.Kind == PUNCT && !t.Painted {
			var err error
			switch t.Val {
			case "(":
				parens = append(parens, '(')
			case ")":
				if len(parens) == 0 {
					args = append(args, cur)
					return args, i + 1, nil
				}
				err = pop('(', ')')
			case "[":
				parens = append(parens, '[')
			case "]":
				err = pop('[', ']')
			case "{":
				parens = append(parens, '{')
			case "}":
				err = pop('{', '}')
			case ",":
				if len(parens) == 0 {
					args = append(args, cur)
					cur = []Token{}
					continue
				}
			}
			if err != nil {
				return nil, 0, err
			}
		}
		cur = append(cur, t)
	}
	return nil, 0, parenError(UnclosedParenthesis, '(')
}

func (ms *MacroSet) expandArguments(ps *paintset, params []string, args [][]Token, body []Token) ([]Token, error) {
	ret := make([]Token, 0, len(body))
	for i := 0; i < len(body); i++ {
		t := body[i]
		if !isParam(t) {
			ret = append(ret, t)
			continue
		}

		var arg []Token
		if t.Kind == MACRO_ARG {
			arg = args[t.Arg]
		} else {
			for j, a := range args[len(params)-1:] {
				if j > 0 {
					arg = append(arg, Punct(","))
				}
				arg = append(arg, a...)
			}
		}

		switch {
		case len(ret) != 0 && isOperator(ret[len(ret)-1], "#"):
			ret = ret[:len(ret)-1]
			ret = append(ret, stringify(arg, ps.len() > 1)...)
		case (len(ret) != 0 && isOperator(ret[len(ret)-1], "##")) ||
			(i+1 < len(body) && isOperator(body[i+1], "##")):
			// Operands of ## are not macro expanded.
			if len(arg) == 0 {
				ret = append(ret, Token{Kind: PLACEMARKER})
			} else {
				ret = append(ret, paintOperators(arg)...)
			}
		default:
			exp, err := ms.expandBody(ps, arg)
			if err != nil {
				return nil, err
			}
			ret = append(ret, paintOperators(exp)...)
		}
	}
	return ret, nil
}

func isOperator(t Token, op string) bool {
	return t.IsPunct(op) && !t.Painted
}

// paintOperators paints the # and ## tokens of an argument, they are never
// operators of the macro they are substituted into.
func paintOperators(toks []Token) []Token {
	ret := make([]Token, len(toks))
	for i, t := range toks {
		if t.IsPunct("#") || t.IsPunct("##") {
			t.Painted = true
		}
		ret[i] = t
	}
	return ret
}

// detokenize strips the expansion-only state from the result of an expansion.
func detokenize(params []string, toks []Token) []Token {
	ret := make([]Token, 0, len(toks))
	for _, t := range toks {
		t.Painted = false
		switch t.Kind {
		case VAR_ARGS:
			if len(params) != 0 {
				t = Arg(len(params) - 1)
			}
		case PLACEMARKER:
			panic("placemarker survived macro expansion")
		}
		ret = append(ret, t)
	}
	return ret
}
