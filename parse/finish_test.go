package parse

import (
	"testing"

	"github.com/andrewchambers/cmacro/cpp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testFunc struct {
	params []Type
	ret    Type
}

type testMacro struct {
	params []string
	body   Expr
}

type testOracle struct {
	types  map[string]Type
	funcs  map[string]testFunc
	vars   map[string]Type
	macros map[string]testMacro
}

func (o *testOracle) ResolveType(name string) (Type, bool) {
	t, ok := o.types[name]
	return t, ok
}

func (o *testOracle) Function(name string) ([]Type, Type, bool) {
	f, ok := o.funcs[name]
	return append([]Type(nil), f.params...), f.ret, ok
}

func (o *testOracle) Variable(name string) (Type, bool) {
	t, ok := o.vars[name]
	return t, ok
}

func (o *testOracle) MacroVariable(name string) (Expr, bool) {
	m, ok := o.macros[name]
	if !ok || m.params != nil {
		return nil, false
	}
	return m.body, true
}

func (o *testOracle) MacroFunction(name string) ([]string, Expr, bool) {
	m, ok := o.macros[name]
	if !ok || m.params == nil {
		return nil, nil, false
	}
	return m.params, m.body, true
}

func (o *testOracle) FFIPrefix() string { return "" }

func newTestOracle(t *testing.T) *testOracle {
	o := &testOracle{
		types: map[string]Type{
			"uint32_t": UInt,
			"mytype":   Int,
		},
		funcs: map[string]testFunc{
			"strlen": {params: []Type{CharPtr()}, ret: SizeT},
			"abs":    {params: []Type{Int}, ret: Int},
		},
		vars: map[string]Type{
			"a":     Int,
			"b":     Long,
			"errno": Int,
			"s":     &Identifier{Name: "stat", Struct: true},
			"buf":   &Ptr{To: UChar},
		},
		macros: map[string]testMacro{},
	}
	o.macros["TWO"] = testMacro{body: mustParse(t, "2", ParseContext{})}
	o.macros["SQ"] = testMacro{params: []string{"x"}, body: mustParse(t, "x * x", FnMacroContext("SQ", []string{"x"}))}
	o.macros["CALL"] = testMacro{
		params: []string{"f", VarArgsName},
		body:   mustParse(t, "f(__VA_ARGS__)", FnMacroContext("CALL", []string{"f", "..."})),
	}
	return o
}

func mustParse(t *testing.T, src string, ctx ParseContext) Expr {
	e, err := ParseExpression(tokenize(t, src, ctx.Params...), ctx)
	require.NoError(t, err, src)
	return e
}

func finishString(t *testing.T, ctx *LocalContext, src string) (Expr, Type, error) {
	e := mustParse(t, src, ctx.ParseContext)
	return FinishExpr(ctx, e)
}

func TestFold(t *testing.T) {
	for _, tc := range []struct {
		src    string
		expect cpp.Lit
	}{
		{"1 + 2 * 3", cpp.IntLit{Value: 7}},
		{"(1 + 2) * 3", cpp.IntLit{Value: 9}},
		{"10 / 3", cpp.IntLit{Value: 3}},
		{"-7 / 2", cpp.IntLit{Value: ^uint64(2)}},
		{"-7 % 2", cpp.IntLit{Value: ^uint64(0)}},
		{"-1u", cpp.IntLit{Value: ^uint64(0)}},
		{"-1ul", cpp.IntLit{Value: ^uint64(0), Suffix: cpp.SuffixL}},
		{"-8 >> 1", cpp.IntLit{Value: ^uint64(3)}},
		{"0xffffffffffffffffu >> 60", cpp.IntLit{Value: 15, Suffix: cpp.SuffixUL}},
		{"1u - 2u", cpp.IntLit{Value: 4294967295, Suffix: cpp.SuffixU}},
		{"0xFFFFFFFFFFFFFFFF / 2", cpp.IntLit{Value: 0x7FFFFFFFFFFFFFFF, Suffix: cpp.SuffixUL}},
		{"2147483647 + 1", cpp.IntLit{Value: ^uint64(0x7FFFFFFF)}},
		{"1 << 31", cpp.IntLit{Value: ^uint64(0x7FFFFFFF)}},
		{"0xffffffff + 1", cpp.IntLit{Value: 0, Suffix: cpp.SuffixU}},
		{"4294967295 + 1", cpp.IntLit{Value: 4294967296, Suffix: cpp.SuffixL}},
		{"-1 + 0u", cpp.IntLit{Value: 4294967295, Suffix: cpp.SuffixU}},
		{"~0u", cpp.IntLit{Value: 4294967295, Suffix: cpp.SuffixU}},
		{"-1 >> 1", cpp.IntLit{Value: ^uint64(0)}},
		{"1 << 3", cpp.IntLit{Value: 8}},
		{"1ul + 1", cpp.IntLit{Value: 2, Suffix: cpp.SuffixUL}},
		{"1ll | 1u", cpp.IntLit{Value: 1, Suffix: cpp.SuffixLL}},
		{"6 & 3 ^ 1", cpp.IntLit{Value: 3}},
		{"!0", cpp.IntLit{Value: 1}},
		{"!5", cpp.IntLit{Value: 0}},
		{"~0", cpp.IntLit{Value: ^uint64(0)}},
		{"+4", cpp.IntLit{Value: 4}},
		{"1.5 * 2.0", cpp.FloatLit{Value: 3}},
		{"1.5f + 1.0f", cpp.FloatLit{Value: 2.5, Suffix: cpp.FloatF}},
		{"1.5f + 1.0", cpp.FloatLit{Value: 2.5}},
		{"-2.5", cpp.FloatLit{Value: -2.5}},
		{"!0.0", cpp.FloatLit{Value: 1}},
		{"TWO * 3", cpp.IntLit{Value: 6}},
		{"SQ(3)", cpp.IntLit{Value: 9}},
		{`"ab" "cd"`, cpp.StringLit{Bytes: []byte("abcd")}},
		{`"ab" u8"cd"`, cpp.StringLit{Enc: cpp.UTF8, Bytes: []byte("abcd")}},
	} {
		ctx := NewLocalContext(VarMacroContext("X"), newTestOracle(t))
		e, _, err := finishString(t, ctx, tc.src)
		if !assert.NoError(t, err, tc.src) {
			continue
		}
		l, ok := e.(*Literal)
		if assert.True(t, ok, "%s: got %s", tc.src, dumpExpr(e)) {
			assert.Equal(t, tc.expect, l.Lit, tc.src)
		}

		// Finishing again changes nothing.
		again, _, err := FinishExpr(ctx, e)
		require.NoError(t, err)
		assert.Equal(t, e, again, tc.src)
	}
}

func TestFoldErrors(t *testing.T) {
	for _, src := range []string{"1 / 0", "1 % 0", "1.0 / 0.0", "~1.0", `~"a"`, `u"a" U"b"`, "1 << 32", "1ll << 64"} {
		ctx := NewLocalContext(VarMacroContext("X"), nil)
		_, _, err := finishString(t, ctx, src)
		var ferr *FinishError
		if assert.ErrorAs(t, err, &ferr, src) {
			assert.Equal(t, UnsupportedExpression, ferr.Kind, src)
		}
	}
}

func TestFinishTypes(t *testing.T) {
	for _, tc := range []struct {
		src    string
		expect Type
	}{
		{"1", nil},
		{"1u", UInt},
		{"1z", SSizeT},
		{"1.0f", Float},
		{"'a'", Char},
		{"U'a'", Char32},
		{`"abc"`, CharPtr()},
		{`u"abc"`, &Ptr{To: Qualify(Char16, Const)}},
		{"a", Int},
		{"a + 1", Int},
		{"a + b", nil},
		{"a + a", Int},
		{"a < 1", Bool},
		{"a && b", Bool},
		{"!a", Bool},
		{"a = 3", Int},
		{"a ? a : 1", Int},
		{"a ? a : b", nil},
		{"&a", &Ptr{To: Int}},
		{"*buf", UChar},
		{"buf[1]", UChar},
		{"-a", Int},
		{"(uint32_t)a", UInt},
		{"(unsigned char)1", UChar},
		{"(struct stat *)0", &Ptr{To: &Identifier{Name: "stat", Struct: true}}},
		{"strlen(\"x\")", SizeT},
		{"NULL", &Ptr{To: Void}},
		{"true", Bool},
		{"__INT_MAX__", Int},
		{"__LONG_LONG_MAX__", LongLong},
		{"s.st_size", nil},
	} {
		ctx := NewLocalContext(VarMacroContext("X"), newTestOracle(t))
		_, ty, err := finishString(t, ctx, tc.src)
		if !assert.NoError(t, err, tc.src) {
			continue
		}
		assert.True(t, TypesEqual(tc.expect, ty), "%s: got %v", tc.src, ty)
		assert.False(t, ctx.ExportAsMacro, tc.src)
	}
}

func TestFinishUnknownVariable(t *testing.T) {
	ctx := NewLocalContext(VarMacroContext("X"), newTestOracle(t))
	_, _, err := finishString(t, ctx, "a + nope")
	var ferr *FinishError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, UnknownVariable, ferr.Kind)
	assert.Equal(t, "unknown variable nope", err.Error())
}

func TestFinishSelfReference(t *testing.T) {
	ctx := NewLocalContext(VarMacroContext("TWO"), newTestOracle(t))
	_, _, err := finishString(t, ctx, "TWO")
	var ferr *FinishError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, UnknownVariable, ferr.Kind)
}

func TestFinishBuiltinLineFile(t *testing.T) {
	ctx := NewLocalContext(VarMacroContext("HERE"), nil)
	_, ty, err := finishString(t, ctx, "__LINE__")
	require.NoError(t, err)
	assert.Equal(t, UInt, ty)
	assert.True(t, ctx.ExportAsMacro)

	ctx = NewLocalContext(VarMacroContext("WHERE"), nil)
	_, ty, err = finishString(t, ctx, "__FILE__")
	require.NoError(t, err)
	assert.True(t, TypesEqual(CharPtr(), ty))
	assert.True(t, ctx.ExportAsMacro)
}

func TestFinishArgTypes(t *testing.T) {
	for _, tc := range []struct {
		src    string
		params []string
		expect []ArgType
		export bool
	}{
		{src: "x + 1", params: []string{"x"}, expect: []ArgType{{Kind: ArgExpr}}},
		{src: "strlen(p)", params: []string{"p"}, expect: []ArgType{{Kind: ArgKnown, Type: CharPtr()}}},
		{src: "abs(v) + strlen(p)", params: []string{"p", "v"}, expect: []ArgType{{Kind: ArgKnown, Type: CharPtr()}, {Kind: ArgKnown, Type: Int}}},
		{src: "s.f", params: []string{"f"}, expect: []ArgType{{Kind: ArgIdent}}},
		{src: "f(1)", params: []string{"f"}, expect: []ArgType{{Kind: ArgIdent}}},
		{src: "\"v=\" # v", params: []string{"v"}, expect: []ArgType{{Kind: ArgExpr}}, export: true},
		{src: "0", params: []string{"unused"}, expect: []ArgType{{Kind: ArgUnknown}}},
	} {
		ctx := NewLocalContext(FnMacroContext("M", tc.params), newTestOracle(t))
		_, _, err := finishString(t, ctx, tc.src)
		if !assert.NoError(t, err, tc.src) {
			continue
		}
		require.Len(t, ctx.ArgTypes, len(tc.expect), tc.src)
		for i, at := range ctx.ArgTypes {
			assert.Equal(t, tc.expect[i].Kind, at.Kind, tc.src)
			assert.True(t, TypesEqual(tc.expect[i].Type, at.Type), tc.src)
		}
		assert.Equal(t, tc.export, ctx.ExportAsMacro, tc.src)
	}
}

func TestFinishKnownArgType(t *testing.T) {
	ctx := NewLocalContext(FnMacroContext("LEN", []string{"p"}), newTestOracle(t))
	e, ty, err := finishString(t, ctx, "strlen(p)")
	require.NoError(t, err)
	assert.Equal(t, SizeT, ty)
	assert.True(t, ctx.AllArgsKnown())
	arg := e.(*FuncCall).Args[0]
	assert.True(t, TypesEqual(CharPtr(), arg.Type()))
}

func TestFinishCastRewrite(t *testing.T) {
	for _, tc := range []struct {
		src    string
		params []string
		expect string
	}{
		{src: "(a) - 1", expect: "(- a 1)"},
		{src: "(a) & b", expect: "(& a b)"},
		{src: "(a) * b", expect: "(* a b)"},
		{src: "(x) + 1", params: []string{"x"}, expect: "(+ x 1)"},
		{src: "(mytype) -1", expect: "(cast int -1)"},
		{src: "(unknown_t) -a", expect: "(cast unknown_t (- a))"},
		{src: "(a) !b", expect: "(cast a (! b))"},
		{src: "(a) - b * 3", expect: "(- a (* b 3))"},
		{src: "(a) & b == 1", expect: "(& a (== b 1))"},
		{src: "(x) + 1 << 2", params: []string{"x"}, expect: "(<< (+ x 1) 2)"},
		{src: "(a) - b - 1", expect: "(- (- a b) 1)"},
		{src: "(a) - (b) - 1", expect: "(- (- a b) 1)"},
		{src: "(a) * b + 1", expect: "(+ (* a b) 1)"},
		{src: "x * (a) - b", params: []string{"x"}, expect: "(- (* x a) b)"},
		{src: "-(a) - b", expect: "(- (- a) b)"},
		{src: "((a) - b) * 3", expect: "(* (- a b) 3)"},
		{src: "(a) - b ? 1 : 2", expect: "(? (- a b) 1 2)"},
		{src: "(mytype) -b * 2", expect: "(* (cast int (- b)) 2)"},
	} {
		ctx := NewLocalContext(FnMacroContext("M", tc.params), newTestOracle(t))
		e, _, err := finishString(t, ctx, tc.src)
		if !assert.NoError(t, err, tc.src) {
			continue
		}
		assert.Equal(t, tc.expect, dumpExpr(e), tc.src)

		again, _, err := FinishExpr(ctx, e)
		require.NoError(t, err, tc.src)
		assert.Equal(t, tc.expect, dumpExpr(again), tc.src)
	}
}

func TestFinishInlineMacroFunction(t *testing.T) {
	ctx := NewLocalContext(FnMacroContext("M", []string{"y"}), newTestOracle(t))
	e, ty, err := finishString(t, ctx, "SQ(a + y)")
	require.NoError(t, err)
	assert.Equal(t, "(* (+ a y) (+ a y))", dumpExpr(e))
	assert.Equal(t, Int, ty)

	e, ty, err = finishString(t, ctx, "CALL(abs, a)")
	require.NoError(t, err)
	assert.Equal(t, "abs(a)", dumpExpr(e))
	assert.Equal(t, Int, ty)

	_, _, err = finishString(t, ctx, "SQ(1, 2)")
	assert.Error(t, err)
}

func TestFinishConcat(t *testing.T) {
	ctx := NewLocalContext(FnMacroContext("M", []string{"v"}), nil)
	e, ty, err := finishString(t, ctx, `"a" "b" # v "c" "d"`)
	require.NoError(t, err)
	assert.Equal(t, `(concat "ab" (# v) "cd")`, dumpExpr(e))
	assert.True(t, TypesEqual(CharPtr(), ty))
}

func finishBody(t *testing.T, src string, ctx *LocalContext) (*MacroBody, Type, error) {
	body, err := ParseMacroBody(tokenize(t, src, ctx.Params...), ctx.ParseContext)
	require.NoError(t, err, src)
	ty, err := body.Finish(ctx)
	return body, ty, err
}

func TestFinishStatements(t *testing.T) {
	ctx := NewLocalContext(FnMacroContext("SWAP", []string{"x", "y"}), newTestOracle(t))
	body, ty, err := finishBody(t, "do { int t = x; x = y; y = t; } while (0)", ctx)
	require.NoError(t, err)
	assert.Equal(t, Void, ty)
	assign := body.Stmt.(*DoWhile).Body[2].(*ExprStmt).Expr
	assert.Equal(t, Int, assign.(*Binary).RHS.Type())
	assert.Equal(t, ArgExpr, ctx.ArgTypes[0].Kind)

	ctx = NewLocalContext(FnMacroContext("DECL", []string{"name"}), newTestOracle(t))
	_, _, err = finishBody(t, "static int name = 0", ctx)
	require.NoError(t, err)
	assert.Equal(t, ArgIdent, ctx.ArgTypes[0].Kind)

	ctx = NewLocalContext(VarMacroContext("F"), newTestOracle(t))
	_, _, err = finishBody(t, "int g(const char *); g(\"x\") + 1;", ctx)
	require.NoError(t, err)

	ctx = NewLocalContext(VarMacroContext("IF"), newTestOracle(t))
	body, _, err = finishBody(t, "if (a) { errno = 1 + 1; } else errno = 0;", ctx)
	require.NoError(t, err)
	folded := body.Stmt.(*If).Then[0].(*ExprStmt).Expr.(*Binary).RHS
	assert.Equal(t, "2", dumpExpr(folded))
}

func TestFinishStatementsTwice(t *testing.T) {
	ctx := NewLocalContext(FnMacroContext("TMP", []string{"x"}), newTestOracle(t))
	body, _, err := finishBody(t, "int tmp = x;", ctx)
	require.NoError(t, err)
	first := dumpStmt(body.Stmt)

	ty, err := body.Finish(ctx)
	require.NoError(t, err)
	assert.Equal(t, Void, ty)
	assert.Equal(t, first, dumpStmt(body.Stmt))
}

func TestFinishStatementErrors(t *testing.T) {
	for _, tc := range []struct {
		src  string
		kind FinishErrorKind
	}{
		{"{ int t = 1; int t = 2; }", Redefinition},
		{"do { int t = 1; } while (t)", UnknownVariable},
		{"if (a) { int t = 1; } else { t; }", UnknownVariable},
		{`__asm__("nop" : "r"(a))`, UnsupportedExpression},
		{`__asm__("nop" : "=r"(a) : "=r"(b))`, UnsupportedExpression},
	} {
		ctx := NewLocalContext(VarMacroContext("S"), newTestOracle(t))
		_, _, err := finishBody(t, tc.src, ctx)
		var ferr *FinishError
		if assert.ErrorAs(t, err, &ferr, tc.src) {
			assert.Equal(t, tc.kind, ferr.Kind, tc.src)
		}
	}
}
