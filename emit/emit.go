package emit

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/pkg/errors"

	"github.com/andrewchambers/cmacro/cpp"
	"github.com/andrewchambers/cmacro/parse"
)

// Form is the kind of Rust item a macro turns into.
type Form int

const (
	// pub const NAME: T = ...;
	ConstForm Form = iota
	// #[inline(always)] pub unsafe extern "C" fn NAME(...)
	FnForm
	// macro_rules! re-exported under the macro's name.
	MacroForm
)

func (f Form) String() string {
	switch f {
	case ConstForm:
		return "const"
	case FnForm:
		return "fn"
	}
	return "macro"
}

// Item is a finished macro body together with the context it was finished in.
type Item struct {
	Ctx  *parse.LocalContext
	Body *parse.MacroBody
}

type emitter struct {
	o   io.Writer
	err error
}

// Emit writes every item to o, one after another. Rendering stops at the
// first item that cannot be expressed in Rust.
func Emit(items []Item, o io.Writer) error {
	e := &emitter{o: o}
	for i, it := range items {
		if i != 0 {
			e.emit("\n")
		}
		if err := e.emitItem(it.Ctx, it.Body); err != nil {
			return err
		}
	}
	return e.err
}

// Macro renders a single item as a string.
func Macro(ctx *parse.LocalContext, body *parse.MacroBody) (string, error) {
	var sb strings.Builder
	e := &emitter{o: &sb}
	if err := e.emitItem(ctx, body); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (e *emitter) emit(s string, args ...interface{}) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.o, s, args...)
}

func (e *emitter) emiti(depth int, s string, args ...interface{}) {
	e.emit(strings.Repeat("    ", depth)+s, args...)
}

func (e *emitter) emitItem(ctx *parse.LocalContext, body *parse.MacroBody) error {
	p := &printer{ctx: ctx}
	switch FormOf(ctx, body) {
	case ConstForm:
		e.emitConst(p, body.Expr)
	case FnForm:
		e.emitFn(p, body)
	default:
		p.macro = true
		e.emitMacro(p, body)
	}
	if p.err != nil {
		return p.err
	}
	return errors.Wrapf(e.err, "writing %s", ctx.Name)
}

// FormOf decides how a finished macro is exported.
func FormOf(ctx *parse.LocalContext, body *parse.MacroBody) Form {
	if ctx.ExportAsMacro {
		return MacroForm
	}
	if !ctx.Fn {
		if body.Expr != nil && isConst(body.Expr) && valueType(body.Expr) != nil {
			return ConstForm
		}
		return MacroForm
	}
	if ctx.Variadic || !ctx.AllArgsKnown() || mutatesParam(ctx, body) {
		return MacroForm
	}
	if body.Expr != nil && body.Expr.Type() == nil {
		return MacroForm
	}
	return FnForm
}

// valueType is the declared type of a constant. Unsuffixed integers get the
// smallest of int, unsigned int, long long and unsigned long long that holds
// them.
func valueType(e parse.Expr) parse.Type {
	if t := e.Type(); t != nil {
		return t
	}
	l, ok := e.(*parse.Literal)
	if !ok {
		return nil
	}
	i, ok := l.Lit.(cpp.IntLit)
	if !ok {
		return nil
	}
	v := int64(i.Value)
	switch {
	case i.Typed().Suffix.Unsigned() && i.Value > math.MaxInt64:
		return parse.ULongLong
	case v >= math.MinInt32 && v <= math.MaxInt32:
		return parse.Int
	case v > 0 && v <= math.MaxUint32:
		return parse.UInt
	}
	return parse.LongLong
}

// isConst reports whether e can be evaluated in a Rust const item.
func isConst(e parse.Expr) bool {
	switch e := e.(type) {
	case *parse.Literal:
		return true
	case *parse.Concat:
		for _, part := range e.Parts {
			if s, ok := part.(*parse.Stringify); ok && s.Arg >= 0 {
				return false
			}
		}
		return true
	case *parse.Stringify:
		return e.Arg < 0
	case *parse.Variable:
		if _, ok := parse.BuiltinMaximum(e.Name); ok {
			return true
		}
		switch e.Name {
		case "NULL", "true", "false":
			return true
		}
		return false
	case *parse.Cast:
		return !parse.IsVoid(parse.Unqualified(e.To)) && isConst(e.Expr)
	case *parse.Unary:
		switch e.Op {
		case parse.Plus, parse.Minus, parse.Not, parse.Comp:
			return isConst(e.Expr)
		}
		return false
	case *parse.Binary:
		if e.Op.IsAssign() || parse.IsPtrType(e.LHS.Type()) || parse.IsPtrType(e.RHS.Type()) {
			return false
		}
		return isConst(e.LHS) && isConst(e.RHS)
	case *parse.Ternary:
		return isConst(e.Cond) && isConst(e.Then) && isConst(e.Else)
	}
	return false
}

// mutatesParam reports whether the body assigns to, increments or takes the
// address of one of its parameters. Such macros write through to the caller's
// variable and cannot become functions.
func mutatesParam(ctx *parse.LocalContext, body *parse.MacroBody) bool {
	isParam := func(e parse.Expr) bool {
		v, ok := e.(*parse.Variable)
		return ok && ctx.ArgIndex(v.Name) >= 0
	}
	found := false
	visit := func(e parse.Expr) {
		switch e := e.(type) {
		case *parse.Unary:
			switch e.Op {
			case parse.AddrOf, parse.PreInc, parse.PreDec, parse.PostInc, parse.PostDec:
				found = found || isParam(e.Expr)
			}
		case *parse.Binary:
			found = found || (e.Op.IsAssign() && isParam(e.LHS))
		case *parse.Asm:
			for _, o := range e.Outputs {
				found = found || isParam(o.Expr)
			}
		}
	}
	if body.Expr != nil {
		walkExpr(body.Expr, visit)
	} else {
		walkStmt(body.Stmt, visit)
	}
	return found
}

func (e *emitter) emitConst(p *printer, x parse.Expr) {
	ty := valueType(x)
	e.emit("pub const %s: %s = %s;\n", rustIdent(p.ctx.Name), Type(p.ctx, ty), p.expr(x))
}

func (e *emitter) emitFn(p *printer, body *parse.MacroBody) {
	ctx := p.ctx
	var params []string
	for i, name := range ctx.Params {
		params = append(params, fmt.Sprintf("%s: %s", rustIdent(name), Type(ctx, ctx.ArgTypes[i].Type)))
	}
	ret := ""
	if body.Expr != nil && !parse.IsVoid(parse.Unqualified(body.Expr.Type())) {
		ret = " -> " + Type(ctx, body.Expr.Type())
	}
	e.emit("#[inline(always)]\n")
	e.emit("pub unsafe extern \"C\" fn %s(%s)%s {\n", rustIdent(ctx.Name), strings.Join(params, ", "), ret)
	switch {
	case body.Expr != nil && ret == "":
		e.emiti(1, "%s;\n", p.expr(body.Expr))
	case body.Expr != nil:
		e.emiti(1, "%s\n", p.expr(body.Expr))
	default:
		for _, s := range stmtsOf(body.Stmt) {
			e.emiti(1, "%s\n", p.stmt(s))
		}
	}
	e.emit("}\n")
}

func (e *emitter) emitMacro(p *printer, body *parse.MacroBody) {
	ctx := p.ctx
	inner := "__cmacro__" + ctx.Name
	e.emit("#[doc(hidden)]\n")
	e.emit("#[macro_export]\n")
	e.emit("macro_rules! %s {\n", inner)
	e.emiti(1, "(%s) => {\n", macroMatcher(ctx))
	if body.Expr != nil {
		e.emiti(2, "%s\n", p.expr(body.Expr))
	} else {
		e.emiti(2, "%s\n", p.block(stmtsOf(body.Stmt)))
	}
	e.emiti(1, "};\n")
	e.emit("}\n")
	e.emit("pub use crate::%s as %s;\n", inner, rustIdent(ctx.Name))
}

// macroMatcher builds the macro_rules pattern: identifiers for parameters
// only ever used as names, expressions for everything else.
func macroMatcher(ctx *parse.LocalContext) string {
	var parts []string
	for i, name := range ctx.Params {
		if ctx.Variadic && i == len(ctx.Params)-1 {
			break
		}
		frag := "expr"
		if ctx.ArgTypes[i].Kind == parse.ArgIdent {
			frag = "ident"
		}
		parts = append(parts, fmt.Sprintf("$%s:%s", name, frag))
	}
	ret := strings.Join(parts, ", ")
	if ctx.Variadic {
		if len(parts) == 0 {
			return "$($" + parse.VarArgsName + ":expr),*"
		}
		ret += " $(, $" + parse.VarArgsName + ":expr)*"
	}
	return ret
}

func stmtsOf(s parse.Stmt) []parse.Stmt {
	if b, ok := s.(*parse.Block); ok {
		return b.Stmts
	}
	return []parse.Stmt{s}
}

func walkExpr(e parse.Expr, f func(parse.Expr)) {
	if e == nil {
		return
	}
	f(e)
	switch e := e.(type) {
	case *parse.FuncCall:
		for _, a := range e.Args {
			walkExpr(a, f)
		}
	case *parse.Cast:
		walkExpr(e.Expr, f)
	case *parse.FieldAccess:
		walkExpr(e.Expr, f)
	case *parse.ArrayAccess:
		walkExpr(e.Expr, f)
		walkExpr(e.Index, f)
	case *parse.Concat:
		for _, part := range e.Parts {
			walkExpr(part, f)
		}
	case *parse.Unary:
		walkExpr(e.Expr, f)
	case *parse.Binary:
		walkExpr(e.LHS, f)
		walkExpr(e.RHS, f)
	case *parse.Ternary:
		walkExpr(e.Cond, f)
		walkExpr(e.Then, f)
		walkExpr(e.Else, f)
	case *parse.Asm:
		for _, o := range e.Outputs {
			walkExpr(o.Expr, f)
		}
		for _, in := range e.Inputs {
			walkExpr(in.Expr, f)
		}
	}
}

func walkStmt(s parse.Stmt, f func(parse.Expr)) {
	switch s := s.(type) {
	case *parse.ExprStmt:
		walkExpr(s.Expr, f)
	case *parse.VarDecl:
		walkExpr(s.Init, f)
	case *parse.Block:
		for _, st := range s.Stmts {
			walkStmt(st, f)
		}
	case *parse.If:
		walkExpr(s.Cond, f)
		for _, st := range s.Then {
			walkStmt(st, f)
		}
		for _, st := range s.Else {
			walkStmt(st, f)
		}
	case *parse.DoWhile:
		for _, st := range s.Body {
			walkStmt(st, f)
		}
		walkExpr(s.Cond, f)
	case *parse.AsmStmt:
		walkExpr(s.Asm, f)
	}
}
