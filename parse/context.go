package parse

// ParseContext names the macro being parsed and its parameters.
type ParseContext struct {
	Name string
	// Fn is set for function-like macros, which may have zero parameters.
	Fn       bool
	Params   []string
	Variadic bool
}

// VarArgsName is the parameter name used for the variadic part of a macro.
const VarArgsName = "__VA_ARGS__"

func VarMacroContext(name string) ParseContext {
	return ParseContext{Name: name}
}

// FnMacroContext builds the context of a function-like macro. A trailing
// "..." parameter is renamed to __VA_ARGS__.
func FnMacroContext(name string, params []string) ParseContext {
	ctx := ParseContext{Name: name, Fn: true, Params: append([]string{}, params...)}
	if n := len(ctx.Params); n != 0 && ctx.Params[n-1] == "..." {
		ctx.Params[n-1] = VarArgsName
		ctx.Variadic = true
	}
	return ctx
}

// ArgIndex returns the index of the parameter called name or -1.
func (c ParseContext) ArgIndex(name string) int {
	for i, p := range c.Params {
		if p == name {
			return i
		}
	}
	return -1
}

func (c ParseContext) paramName(idx int) (string, bool) {
	if idx < 0 || idx >= len(c.Params) {
		return "", false
	}
	return c.Params[idx], true
}

// Oracle answers questions about the world outside the macro: the types,
// functions and variables of the C headers it comes from, and the other
// macros already translated.
type Oracle interface {
	ResolveType(name string) (Type, bool)
	Function(name string) (params []Type, ret Type, ok bool)
	Variable(name string) (Type, bool)
	MacroVariable(name string) (Expr, bool)
	MacroFunction(name string) (params []string, body Expr, ok bool)
	FFIPrefix() string
}

const DefaultFFIPrefix = "::core::ffi"

type emptyOracle struct{}

func (emptyOracle) ResolveType(string) (Type, bool)             { return nil, false }
func (emptyOracle) Function(string) ([]Type, Type, bool)        { return nil, nil, false }
func (emptyOracle) Variable(string) (Type, bool)                { return nil, false }
func (emptyOracle) MacroVariable(string) (Expr, bool)           { return nil, false }
func (emptyOracle) MacroFunction(string) ([]string, Expr, bool) { return nil, nil, false }
func (emptyOracle) FFIPrefix() string                           { return DefaultFFIPrefix }

type ArgTypeKind int

const (
	ArgUnknown ArgTypeKind = iota
	// Used where only an identifier fits, e.g. as a field or variable name.
	ArgIdent
	// Used as a value.
	ArgExpr
	// Passed on to a function with a known parameter type.
	ArgKnown
)

type ArgType struct {
	Kind ArgTypeKind
	Type Type
}

// LocalContext carries the state of one Finish over a macro body.
type LocalContext struct {
	ParseContext
	ArgTypes []ArgType
	// Set when the body uses something only a macro can express, such as
	// __LINE__.
	ExportAsMacro bool
	Oracle        Oracle

	locals    *scope
	funcs     map[string]*FuncDecl
	expanding map[string]bool
}

func NewLocalContext(pc ParseContext, o Oracle) *LocalContext {
	if o == nil {
		o = emptyOracle{}
	}
	return &LocalContext{
		ParseContext: pc,
		ArgTypes:     make([]ArgType, len(pc.Params)),
		Oracle:       o,
		locals:       newScope(nil),
		funcs:        make(map[string]*FuncDecl),
		expanding:    map[string]bool{pc.Name: true},
	}
}

func (ctx *LocalContext) FFIPrefix() string {
	if p := ctx.Oracle.FFIPrefix(); p != "" {
		return p
	}
	return DefaultFFIPrefix
}

func (ctx *LocalContext) useAsIdent(idx int) {
	if ctx.ArgTypes[idx].Kind != ArgKnown {
		ctx.ArgTypes[idx] = ArgType{Kind: ArgIdent}
	}
}

func (ctx *LocalContext) useAsExpr(idx int) {
	if ctx.ArgTypes[idx].Kind == ArgUnknown {
		ctx.ArgTypes[idx].Kind = ArgExpr
	}
}

func (ctx *LocalContext) inferArgType(idx int, t Type) {
	switch ctx.ArgTypes[idx].Kind {
	case ArgUnknown, ArgExpr:
		ctx.ArgTypes[idx] = ArgType{Kind: ArgKnown, Type: t}
	}
}

// AllArgsKnown reports whether every parameter has a known type.
func (ctx *LocalContext) AllArgsKnown() bool {
	for _, at := range ctx.ArgTypes {
		if at.Kind != ArgKnown {
			return false
		}
	}
	return true
}

func (ctx *LocalContext) pushScope() {
	ctx.locals = newScope(ctx.locals)
}

func (ctx *LocalContext) popScope() {
	ctx.locals = ctx.locals.parent
}
