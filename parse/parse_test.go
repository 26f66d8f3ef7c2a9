package parse

import (
	"fmt"
	"strings"
	"testing"

	"github.com/andrewchambers/cmacro/cpp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tokenize splits src the way a header would be, naming params as macro
// arguments.
func tokenize(t *testing.T, src string, params ...string) []cpp.Token {
	lexed, err := cpp.LexString("test.h", src)
	require.NoError(t, err)
	var toks []cpp.Token
	for _, lt := range lexed {
		toks = append(toks, cpp.Classify(lt.Val, params))
	}
	return toks
}

func litString(l cpp.Lit) string {
	switch l := l.(type) {
	case cpp.IntLit:
		if l.Suffix.Unsigned() {
			return fmt.Sprintf("%d%s", l.Value, l.Suffix)
		}
		return fmt.Sprintf("%d%s", int64(l.Value), l.Suffix)
	case cpp.FloatLit:
		return fmt.Sprintf("%g", l.Value)
	case cpp.CharLit:
		return fmt.Sprintf("%s'%d'", l.Enc.Prefix(), l.Value)
	case cpp.StringLit:
		if l.Enc == cpp.Ordinary || l.Enc == cpp.UTF8 {
			return l.Enc.Prefix() + fmt.Sprintf("%q", l.Bytes)
		}
		return fmt.Sprintf("%s%v", l.Enc.Prefix(), l.Units)
	}
	return "?"
}

func dumpExpr(e Expr) string {
	switch e := e.(type) {
	case *Variable:
		return e.Name
	case *Literal:
		return litString(e.Lit)
	case *FuncCall:
		var args []string
		for _, a := range e.Args {
			args = append(args, dumpExpr(a))
		}
		return e.Name + "(" + strings.Join(args, ", ") + ")"
	case *Cast:
		return fmt.Sprintf("(cast %s %s)", e.To, dumpExpr(e.Expr))
	case *FieldAccess:
		return fmt.Sprintf("(. %s %s)", dumpExpr(e.Expr), e.Field)
	case *ArrayAccess:
		return fmt.Sprintf("(index %s %s)", dumpExpr(e.Expr), dumpExpr(e.Index))
	case *Stringify:
		return "(# " + e.Name + ")"
	case *Concat:
		var parts []string
		for _, p := range e.Parts {
			parts = append(parts, dumpExpr(p))
		}
		return "(concat " + strings.Join(parts, " ") + ")"
	case *Unary:
		switch e.Op {
		case PostInc, PostDec:
			return fmt.Sprintf("(post%s %s)", e.Op, dumpExpr(e.Expr))
		}
		return fmt.Sprintf("(%s %s)", e.Op, dumpExpr(e.Expr))
	case *Binary:
		return fmt.Sprintf("(%s %s %s)", e.Op, dumpExpr(e.LHS), dumpExpr(e.RHS))
	case *Ternary:
		return fmt.Sprintf("(? %s %s %s)", dumpExpr(e.Cond), dumpExpr(e.Then), dumpExpr(e.Else))
	case *Asm:
		return fmt.Sprintf("(asm %q)", e.Template)
	}
	return "?"
}

func dumpStmts(ss []Stmt) string {
	var parts []string
	for _, s := range ss {
		parts = append(parts, dumpStmt(s))
	}
	return strings.Join(parts, " ")
}

func dumpStmt(s Stmt) string {
	switch s := s.(type) {
	case *ExprStmt:
		return dumpExpr(s.Expr) + ";"
	case *VarDecl:
		static := ""
		if s.Static {
			static = "static "
		}
		return fmt.Sprintf("%s%s %s = %s;", static, s.Type, s.Name, dumpExpr(s.Init))
	case *FuncDecl:
		var params []string
		for _, p := range s.Params {
			params = append(params, strings.TrimSpace(p.Type.String()+" "+p.Name))
		}
		if s.Variadic {
			params = append(params, "...")
		}
		return fmt.Sprintf("%s %s(%s);", s.Ret, s.Name, strings.Join(params, ", "))
	case *Block:
		return "{ " + dumpStmts(s.Stmts) + " }"
	case *If:
		ret := fmt.Sprintf("if %s { %s }", dumpExpr(s.Cond), dumpStmts(s.Then))
		if s.Else != nil {
			ret += fmt.Sprintf(" else { %s }", dumpStmts(s.Else))
		}
		return ret
	case *DoWhile:
		return fmt.Sprintf("do { %s } while %s;", dumpStmts(s.Body), dumpExpr(s.Cond))
	case *AsmStmt:
		return dumpExpr(s.Asm) + ";"
	}
	return "?"
}

func TestParseExpression(t *testing.T) {
	for _, tc := range []struct {
		src    string
		params []string
		expect string
	}{
		{src: "a + b * c", expect: "(+ a (* b c))"},
		{src: "a - b - c", expect: "(- (- a b) c)"},
		{src: "a = b += c", expect: "(= a (+= b c))"},
		{src: "a ? b : c ? d : e", expect: "(? a b (? c d e))"},
		{src: "a || b && c | d ^ e & f", expect: "(|| a (&& b (| c (^ d (& e f)))))"},
		{src: "a == b < c << d", expect: "(== a (< b (<< c d)))"},
		{src: "a % b / c", expect: "(/ (% a b) c)"},
		{src: "(int)x", expect: "(cast int x)"},
		{src: "(unsigned long)-1", expect: "(cast unsigned long (- 1))"},
		{src: "(const char *)s", expect: "(cast const char * s)"},
		{src: "(struct foo *)p", expect: "(cast struct foo * p)"},
		{src: "(a) - b", expect: "(cast a (- b))"},
		{src: "(a)[0]", expect: "(index a 0)"},
		{src: "(a) + (b)", expect: "(cast a (+ b))"},
		{src: "(a + b) * c", expect: "(* (+ a b) c)"},
		{src: "a <: 0 :>", expect: "(index a 0)"},
		{src: "p->x.y", expect: "(. (. (* p) x) y)"},
		{src: "f(1, g(2))", expect: "f(1, g(2))"},
		{src: "f()", expect: "f()"},
		{src: "x++", expect: "(post++ x)"},
		{src: "--x", expect: "(-- x)"},
		{src: "- -x", expect: "(- (- x))"},
		{src: "!~x", expect: "(! (~ x))"},
		{src: "*&x", expect: "(* (& x))"},
		{src: "0x10u", expect: "16u"},
		{src: "1.5f", expect: "1.5"},
		{src: `"a" "b"`, expect: `(concat "a" "b")`},
		{src: `"x=" # v`, params: []string{"v"}, expect: `(concat "x=" (# v))`},
		{src: `"at " # __LINE__`, expect: `(concat "at " (# __LINE__))`},
		{src: "a + 1", params: []string{"a"}, expect: "(+ a 1)"},
		{src: "s.f", params: []string{"f"}, expect: "(. s f)"},
		{src: "f(__VA_ARGS__)", params: []string{"fmt", "__VA_ARGS__"}, expect: "f(__VA_ARGS__)"},
		{src: "/* c */ a /* d */ + b", expect: "(+ a b)"},
	} {
		e, err := ParseExpression(tokenize(t, tc.src, tc.params...), ParseContext{Params: tc.params})
		if !assert.NoError(t, err, tc.src) {
			continue
		}
		assert.Equal(t, tc.expect, dumpExpr(e), tc.src)
	}
}

func TestParseExpressionErrors(t *testing.T) {
	for _, tc := range []struct {
		src    string
		expect string
	}{
		{"a +", "expected an identifier, literal or expression got end of input"},
		{"x++ ++", "unexpected '++' after postfix ++"},
		{"x++.y", "unexpected '.' after postfix ++"},
		{"(a + b)(c)", "only named functions can be called"},
		{"f(1,", "expected an identifier, literal or expression got end of input"},
		{"1 2", "unexpected '2'"},
		{"int", "unexpected keyword int"},
		{"a ? b", "expected ':' got end of input"},
		{"# a", "'#' is not followed by a macro parameter"},
	} {
		_, err := ParseExpression(tokenize(t, "x, "+tc.src)[2:], ParseContext{})
		var perr *ParseError
		if assert.ErrorAs(t, err, &perr, tc.src) {
			assert.Equal(t, tc.expect, perr.Msg, tc.src)
		}
	}
}

func TestParseErrorIndex(t *testing.T) {
	_, err := ParseExpression(tokenize(t, "a /* c */ + + )"), ParseContext{})
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 4, perr.Index)
	assert.Equal(t, "syntax error: expected an identifier, literal or expression got ')' at token 4", err.Error())
}

func TestParseAsm(t *testing.T) {
	src := `__asm__ __volatile__("mov %1, %0" "\n" : "=r"(x) : [in] "r"(y + 1) : "memory", "cc")`
	e, err := ParseExpression(tokenize(t, src), ParseContext{})
	require.NoError(t, err)
	a, ok := e.(*Asm)
	require.True(t, ok)
	assert.True(t, a.Volatile)
	assert.Equal(t, "mov %1, %0\n", a.Template)
	require.Len(t, a.Outputs, 1)
	assert.Equal(t, "=r", a.Outputs[0].Constraint)
	assert.Equal(t, "x", dumpExpr(a.Outputs[0].Expr))
	require.Len(t, a.Inputs, 1)
	assert.Equal(t, "in", a.Inputs[0].Name)
	assert.Equal(t, "(+ y 1)", dumpExpr(a.Inputs[0].Expr))
	assert.Equal(t, []string{"memory", "cc"}, a.Clobbers)

	e, err = ParseExpression(tokenize(t, `asm goto("jmp %l0" :::: done)`), ParseContext{})
	require.NoError(t, err)
	a = e.(*Asm)
	assert.True(t, a.Goto)
	assert.Nil(t, a.Outputs)
	assert.Equal(t, []string{"done"}, a.Labels)
}

func TestParseStatement(t *testing.T) {
	for _, tc := range []struct {
		src    string
		params []string
		expect string
	}{
		{src: "do { x = 1; } while (0)", expect: "do { (= x 1); } while 0;"},
		{src: "if (a) b(); else { c(); d(); }", expect: "if a { b(); } else { c(); d(); }"},
		{src: "if (a) { b(); }", expect: "if a { b(); }"},
		{src: "int x = 1; f(x);", expect: "{ int x = 1; f(x); }"},
		{src: "static const int y = 2", expect: "static const int y = 2;"},
		{src: "unsigned long *p = q", expect: "unsigned long * p = q;"},
		{src: "size_t n = a", params: []string{"n", "a"}, expect: "size_t n = a;"},
		{src: "int f(void)", expect: "int f();"},
		{src: "int printf(const char *fmt, ...)", expect: "int printf(const char * fmt, ...);"},
		{src: "void g(int, char *)", expect: "void g(int, char *);"},
		{src: "a * b;", expect: "(* a b);"},
		{src: "x = 1;;", expect: "(= x 1);"},
		{src: "{ }", expect: "{  }"},
		{src: `__asm__ volatile("nop")`, expect: `(asm "nop");`},
	} {
		s, err := ParseStatement(tokenize(t, tc.src, tc.params...), ParseContext{Params: tc.params})
		if !assert.NoError(t, err, tc.src) {
			continue
		}
		assert.Equal(t, tc.expect, dumpStmt(s), tc.src)
	}
}

func TestParseStatementErrors(t *testing.T) {
	for _, src := range []string{
		"do x; while (1) y",
		"if a b;",
		"{ x;",
		"int x",
		"x y z",
	} {
		_, err := ParseStatement(tokenize(t, src), ParseContext{})
		var perr *ParseError
		assert.ErrorAs(t, err, &perr, src)
	}
}

func TestParseType(t *testing.T) {
	for _, tc := range []struct {
		src    string
		expect Type
	}{
		{"int", Int},
		{"unsigned", UInt},
		{"signed", Int},
		{"long unsigned int", ULong},
		{"long long", LongLong},
		{"unsigned long long int", ULongLong},
		{"long int long", LongLong},
		{"short unsigned", UShort},
		{"char", Char},
		{"signed char", SChar},
		{"unsigned char", UChar},
		{"long double", LongDouble},
		{"_Bool", Bool},
		{"size_t", SizeT},
		{"char16_t", Char16},
		{"void", Void},
		{"const char *", &Ptr{To: Qualify(Char, Const)}},
		{"char const *", &Ptr{To: Qualify(Char, Const)}},
		{"char *const", Qualify(&Ptr{To: Char}, Const)},
		{"int const volatile", Qualify(Int, Const|Volatile)},
		{"long const long", Qualify(LongLong, Const)},
		{"struct foo", &Identifier{Name: "foo", Struct: true}},
		{"enum e **", &Ptr{To: &Ptr{To: &Identifier{Name: "e", Struct: true}}}},
		{"uint32_t", &Identifier{Name: "uint32_t"}},
		{"volatile FILE *", &Ptr{To: Qualify(&Identifier{Name: "FILE"}, Volatile)}},
	} {
		ty, err := ParseType(tokenize(t, tc.src), ParseContext{})
		if !assert.NoError(t, err, tc.src) {
			continue
		}
		assert.True(t, TypesEqual(tc.expect, ty), "%s: got %s", tc.src, ty)
	}
}

func TestParseTypeErrors(t *testing.T) {
	for _, src := range []string{
		"",
		"signed unsigned",
		"long long long",
		"short char",
		"double float",
		"struct",
		"struct int",
		"int int",
		"int x",
		"*",
	} {
		_, err := ParseType(tokenize(t, src), ParseContext{})
		assert.Error(t, err, src)
	}
}

func TestParseMacroBody(t *testing.T) {
	body, err := ParseMacroBody(nil, ParseContext{})
	require.NoError(t, err)
	assert.Nil(t, body.Expr)
	assert.Equal(t, &Block{}, body.Stmt)

	body, err = ParseMacroBody(tokenize(t, "/* only a comment */"), ParseContext{})
	require.NoError(t, err)
	assert.Equal(t, &Block{}, body.Stmt)

	body, err = ParseMacroBody(tokenize(t, "(1 + 2)"), ParseContext{})
	require.NoError(t, err)
	assert.Nil(t, body.Stmt)
	assert.Equal(t, "(+ 1 2)", dumpExpr(body.Expr))

	body, err = ParseMacroBody(tokenize(t, "x = 1; y = 2"), ParseContext{})
	require.NoError(t, err)
	assert.Nil(t, body.Expr)
	assert.Equal(t, "{ (= x 1); (= y 2); }", dumpStmt(body.Stmt))

	_, err = ParseMacroBody(tokenize(t, "x = ;"), ParseContext{})
	assert.Error(t, err)
}

func TestCloneIsDeep(t *testing.T) {
	body, err := ParseMacroBody(tokenize(t, "f(a + 1, b[2])"), ParseContext{})
	require.NoError(t, err)
	c := body.Clone()
	c.Expr.(*FuncCall).Args[0].(*Binary).Op = Sub
	assert.Equal(t, "f((+ a 1), (index b 2))", dumpExpr(body.Expr))
	assert.Equal(t, "f((- a 1), (index b 2))", dumpExpr(c.Expr))
}
