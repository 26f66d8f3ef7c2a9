package cpp

import "sort"

type fnMacro struct {
	params []string
	body   []string
}

// MacroSet holds variable-like and function-like macro definitions and
// expands them. A name is defined as at most one kind of macro.
//
// Expansion never modifies the set, so any number of goroutines may expand
// concurrently as long as nothing defines or undefines at the same time.
type MacroSet struct {
	vars map[string][]string
	fns  map[string]fnMacro
}

func NewMacroSet() *MacroSet {
	return &MacroSet{
		vars: make(map[string][]string),
		fns:  make(map[string]fnMacro),
	}
}

func equalIgnoringBlanks(a, b []string) bool {
	a = nonBlank(a)
	b = nonBlank(b)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func nonBlank(toks []string) []string {
	var ret []string
	for _, t := range toks {
		if !isBlank(t) {
			ret = append(ret, t)
		}
	}
	return ret
}

// DefineVarMacro defines an object-like macro. It reports whether an
// existing, different definition was replaced.
func (ms *MacroSet) DefineVarMacro(name string, body []string) bool {
	redefined := false
	if old, ok := ms.vars[name]; ok {
		redefined = !equalIgnoringBlanks(old, body)
	} else if _, ok := ms.fns[name]; ok {
		delete(ms.fns, name)
		redefined = true
	}
	ms.vars[name] = append([]string(nil), body...)
	return redefined
}

// DefineFnMacro defines a function-like macro. A trailing "..." parameter
// makes it variadic.
func (ms *MacroSet) DefineFnMacro(name string, params, body []string) bool {
	redefined := false
	if old, ok := ms.fns[name]; ok {
		redefined = !equalIgnoringBlanks(old.params, params) || !equalIgnoringBlanks(old.body, body)
	} else if _, ok := ms.vars[name]; ok {
		delete(ms.vars, name)
		redefined = true
	}
	ms.fns[name] = fnMacro{
		params: append([]string(nil), params...),
		body:   append([]string(nil), body...),
	}
	return redefined
}

// UndefineMacro removes a macro of either kind and reports whether it existed.
func (ms *MacroSet) UndefineMacro(name string) bool {
	if _, ok := ms.vars[name]; ok {
		delete(ms.vars, name)
		return true
	}
	if _, ok := ms.fns[name]; ok {
		delete(ms.fns, name)
		return true
	}
	return false
}

func (ms *MacroSet) IsVarMacro(name string) bool {
	_, ok := ms.vars[name]
	return ok
}

func (ms *MacroSet) IsFnMacro(name string) bool {
	_, ok := ms.fns[name]
	return ok
}

// FnParams returns the parameter names of a function-like macro.
func (ms *MacroSet) FnParams(name string) ([]string, bool) {
	m, ok := ms.fns[name]
	if !ok {
		return nil, false
	}
	return append([]string(nil), m.params...), true
}

// VarMacros returns the sorted names of all variable-like macros.
func (ms *MacroSet) VarMacros() []string {
	ret := make([]string, 0, len(ms.vars))
	for name := range ms.vars {
		ret = append(ret, name)
	}
	sort.Strings(ret)
	return ret
}

// FnMacros returns the sorted names of all function-like macros.
func (ms *MacroSet) FnMacros() []string {
	ret := make([]string, 0, len(ms.fns))
	for name := range ms.fns {
		ret = append(ret, name)
	}
	sort.Strings(ret)
	return ret
}

// ExpandVarMacro fully expands the body of a variable-like macro.
func (ms *MacroSet) ExpandVarMacro(name string) ([]Token, error) {
	body, ok := ms.vars[name]
	if !ok {
		return nil, expansionError(MacroNotFound)
	}
	toks, err := ms.expandVarBody(nil, name, classifyAll(body, nil))
	if err != nil {
		return nil, err
	}
	return detokenize(nil, toks), nil
}

// ExpandFnMacro expands the body of a function-like macro with its parameters
// left unbound. Parameters appear as MACRO_ARG tokens in the returned body,
// __VA_ARGS__ refers to the last parameter.
func (ms *MacroSet) ExpandFnMacro(name string) ([]Token, []Token, error) {
	m, ok := ms.fns[name]
	if !ok {
		return nil, nil, expansionError(MacroNotFound)
	}
	toks, err := ms.expandFnBody(nil, name, m.params, nil, classifyAll(m.body, m.params))
	if err != nil {
		return nil, nil, err
	}
	params := make([]Token, 0, len(m.params))
	for _, p := range m.params {
		if id, ok := ParseIdent(p); ok {
			params = append(params, Ident(id))
		} else {
			params = append(params, Token{Kind: PLAIN, Val: p})
		}
	}
	return params, detokenize(m.params, toks), nil
}
