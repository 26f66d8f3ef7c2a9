package parse

import (
	"github.com/andrewchambers/cmacro/cpp"
)

// Finish resolves names and types in the body and folds constants. It
// returns the type of an expression body, or void for statements.
func (b *MacroBody) Finish(ctx *LocalContext) (Type, error) {
	if b.Expr != nil {
		e, ty, err := FinishExpr(ctx, b.Expr)
		if err != nil {
			return nil, err
		}
		b.Expr = e
		return ty, nil
	}
	// Declarations from an earlier pass over the same body are not
	// redefinitions.
	ctx.locals = newScope(nil)
	if err := FinishStmt(ctx, b.Stmt); err != nil {
		return nil, err
	}
	return Void, nil
}

// FinishExpr returns the finished replacement for e along with its type,
// which may be nil when nothing is known. Finishing an already finished
// expression changes nothing.
func FinishExpr(ctx *LocalContext, e Expr) (Expr, Type, error) {
	ret, err := finishExpr(ctx, e)
	if err != nil {
		return nil, nil, err
	}
	return ret, ret.Type(), nil
}

func finishExpr(ctx *LocalContext, e Expr) (Expr, error) {
	old := e.Type()
	ret, err := finishNode(ctx, e)
	if err != nil {
		return nil, err
	}
	// A resolved type is never lost again.
	if ret.Type() == nil && old != nil {
		ret.setType(old)
	}
	return ret, nil
}

func finishNode(ctx *LocalContext, e Expr) (Expr, error) {
	switch e := e.(type) {
	case *Variable:
		return finishVariable(ctx, e)
	case *FuncCall:
		return finishFuncCall(ctx, e)
	case *Cast:
		if r, ok := regroup(ctx, e); ok {
			return finishExpr(ctx, r)
		}
		return finishCast(ctx, e)
	case *Literal:
		e.setType(literalType(e.Lit))
		return e, nil
	case *FieldAccess:
		inner, err := finishExpr(ctx, e.Expr)
		if err != nil {
			return nil, err
		}
		e.Expr = inner
		if idx := ctx.ArgIndex(e.Field); idx >= 0 {
			ctx.useAsIdent(idx)
		}
		return e, nil
	case *ArrayAccess:
		return finishArrayAccess(ctx, e)
	case *Stringify:
		if e.Arg >= 0 {
			ctx.useAsExpr(e.Arg)
			ctx.ExportAsMacro = true
		}
		e.setType(CharPtr())
		return e, nil
	case *Concat:
		return finishConcat(ctx, e)
	case *Unary:
		if r, ok := regroup(ctx, e); ok {
			return finishExpr(ctx, r)
		}
		return finishUnary(ctx, e)
	case *Binary:
		if r, ok := regroup(ctx, e); ok {
			return finishExpr(ctx, r)
		}
		return finishBinary(ctx, e)
	case *Ternary:
		return finishTernary(ctx, e)
	case *Asm:
		if err := finishAsm(ctx, e); err != nil {
			return nil, err
		}
		return e, nil
	}
	panic("unknown expression node")
}

var builtinMaxima = map[string]BuiltInType{
	"__SCHAR_MAX__":     SChar,
	"__SHRT_MAX__":      Short,
	"__INT_MAX__":       Int,
	"__LONG_MAX__":      Long,
	"__LONG_LONG_MAX__": LongLong,
}

// BuiltinMaximum reports the type whose maximum value the builtin macro
// name stands for.
func BuiltinMaximum(name string) (BuiltInType, bool) {
	t, ok := builtinMaxima[name]
	return t, ok
}

func finishVariable(ctx *LocalContext, v *Variable) (Expr, error) {
	if idx := ctx.ArgIndex(v.Name); idx >= 0 {
		ctx.useAsExpr(idx)
		if at := ctx.ArgTypes[idx]; at.Kind == ArgKnown {
			v.setType(at.Type)
		}
		return v, nil
	}
	if ty, err := ctx.locals.lookup(v.Name); err == nil {
		v.setType(ty)
		return v, nil
	}
	if !ctx.expanding[v.Name] {
		if body, ok := ctx.Oracle.MacroVariable(v.Name); ok {
			ctx.expanding[v.Name] = true
			defer delete(ctx.expanding, v.Name)
			inlined := CloneExpr(body)
			inlined.group()
			return finishExpr(ctx, inlined)
		}
	}
	if t, ok := builtinMaxima[v.Name]; ok {
		v.setType(t)
		return v, nil
	}
	switch v.Name {
	case "__LINE__":
		ctx.ExportAsMacro = true
		v.setType(UInt)
		return v, nil
	case "__FILE__":
		ctx.ExportAsMacro = true
		v.setType(CharPtr())
		return v, nil
	}
	if ty, ok := ctx.Oracle.Variable(v.Name); ok {
		v.setType(ctx.resolveType(ty))
		return v, nil
	}
	switch v.Name {
	case "NULL":
		v.setType(&Ptr{To: Void})
		return v, nil
	case "true", "false":
		v.setType(Bool)
		return v, nil
	}
	if _, _, ok := ctx.Oracle.MacroFunction(v.Name); ok {
		return v, nil
	}
	if _, _, ok := ctx.Oracle.Function(v.Name); ok {
		return v, nil
	}
	if _, ok := ctx.funcs[v.Name]; ok {
		return v, nil
	}
	return nil, &FinishError{Kind: UnknownVariable, Name: v.Name}
}

// isValue reports whether name can be used as a value, which decides if
// (name) -x is a subtraction rather than a cast.
func (ctx *LocalContext) isValue(name string) bool {
	if ctx.ArgIndex(name) >= 0 {
		return true
	}
	if _, err := ctx.locals.lookup(name); err == nil {
		return true
	}
	if _, ok := ctx.Oracle.Variable(name); ok {
		return true
	}
	if _, ok := builtinMaxima[name]; ok {
		return true
	}
	_, ok := ctx.Oracle.MacroVariable(name)
	return ok
}

func (ctx *LocalContext) resolveType(t Type) Type {
	switch t := t.(type) {
	case *Identifier:
		if rt, ok := ctx.Oracle.ResolveType(t.String()); ok {
			return rt
		}
	case *Ptr:
		return &Ptr{To: ctx.resolveType(t.To)}
	case *Qualified:
		return Qualify(ctx.resolveType(t.Type), t.Qual)
	}
	return t
}

func finishFuncCall(ctx *LocalContext, c *FuncCall) (Expr, error) {
	for i, a := range c.Args {
		fa, err := finishExpr(ctx, a)
		if err != nil {
			return nil, err
		}
		c.Args[i] = fa
	}
	if idx := ctx.ArgIndex(c.Name); idx >= 0 {
		ctx.useAsIdent(idx)
		return c, nil
	}
	if params, ret, ok := ctx.function(c.Name); ok {
		for i, a := range c.Args {
			if i >= len(params) {
				break
			}
			v, ok := a.(*Variable)
			if !ok {
				continue
			}
			if idx := ctx.ArgIndex(v.Name); idx >= 0 {
				ctx.inferArgType(idx, params[i])
				fa, err := finishExpr(ctx, v)
				if err != nil {
					return nil, err
				}
				c.Args[i] = fa
			}
		}
		c.setType(ret)
		return c, nil
	}
	if !ctx.expanding[c.Name] {
		if params, body, ok := ctx.Oracle.MacroFunction(c.Name); ok {
			inlined, err := inlineCall(c, params, body)
			if err != nil {
				return nil, err
			}
			inlined.group()
			ctx.expanding[c.Name] = true
			defer delete(ctx.expanding, c.Name)
			return finishExpr(ctx, inlined)
		}
	}
	return c, nil
}

// function looks up functions declared by the body before the oracle.
func (ctx *LocalContext) function(name string) ([]Type, Type, bool) {
	if d, ok := ctx.funcs[name]; ok {
		params := make([]Type, len(d.Params))
		for i, p := range d.Params {
			params[i] = p.Type
		}
		return params, d.Ret, true
	}
	params, ret, ok := ctx.Oracle.Function(name)
	if !ok {
		return nil, nil, false
	}
	for i, p := range params {
		params[i] = ctx.resolveType(p)
	}
	return params, ctx.resolveType(ret), true
}

// inlineCall substitutes the arguments of c for the parameters of a
// function-like macro body.
func inlineCall(c *FuncCall, params []string, body Expr) (Expr, error) {
	variadic := len(params) != 0 && (params[len(params)-1] == VarArgsName || params[len(params)-1] == "...")
	fixed := len(params)
	if variadic {
		fixed--
		if len(c.Args) < fixed {
			return nil, unsupported("call of %s with %d arguments", c.Name, len(c.Args))
		}
	} else if len(c.Args) != fixed {
		return nil, unsupported("call of %s with %d arguments", c.Name, len(c.Args))
	}
	args := make(map[string][]Expr)
	for i := 0; i < fixed; i++ {
		args[params[i]] = []Expr{c.Args[i]}
	}
	if variadic {
		args[VarArgsName] = c.Args[fixed:]
	}
	return substitute(CloneExpr(body), args)
}

func substitute(e Expr, args map[string][]Expr) (Expr, error) {
	var err error
	sub := func(e Expr) Expr {
		if err != nil {
			return e
		}
		var ret Expr
		ret, err = substitute(e, args)
		return ret
	}
	switch e := e.(type) {
	case *Variable:
		a, ok := args[e.Name]
		if !ok {
			return e, nil
		}
		if len(a) != 1 {
			return nil, unsupported("%s used outside of an argument list", e.Name)
		}
		arg := CloneExpr(a[0])
		arg.group()
		return arg, nil
	case *FuncCall:
		if a, ok := args[e.Name]; ok && len(a) == 1 {
			v, ok := a[0].(*Variable)
			if !ok {
				return nil, unsupported("call of a computed function in %s", e.Name)
			}
			e.Name = v.Name
		}
		var out []Expr
		for _, a := range e.Args {
			if v, ok := a.(*Variable); ok && v.Name == VarArgsName {
				for _, va := range args[VarArgsName] {
					out = append(out, CloneExpr(va))
				}
				continue
			}
			out = append(out, sub(a))
		}
		e.Args = out
	case *Cast:
		e.Expr = sub(e.Expr)
	case *FieldAccess:
		e.Expr = sub(e.Expr)
	case *ArrayAccess:
		e.Expr = sub(e.Expr)
		e.Index = sub(e.Index)
	case *Concat:
		for i, p := range e.Parts {
			e.Parts[i] = sub(p)
		}
	case *Unary:
		e.Expr = sub(e.Expr)
	case *Binary:
		e.LHS = sub(e.LHS)
		e.RHS = sub(e.RHS)
	case *Ternary:
		e.Cond = sub(e.Cond)
		e.Then = sub(e.Then)
		e.Else = sub(e.Else)
	case *Asm:
		for i := range e.Outputs {
			e.Outputs[i].Expr = sub(e.Outputs[i].Expr)
		}
		for i := range e.Inputs {
			e.Inputs[i].Expr = sub(e.Inputs[i].Expr)
		}
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

var castRewriteOps = map[UnaryOp]BinaryOp{
	AddrOf: BitAnd,
	Deref:  Mul,
	Plus:   Add,
	Minus:  Sub,
}

// castAsBinary reports whether c is really name op operand, e.g. (a) - b
// where a is a value rather than a type.
func castAsBinary(ctx *LocalContext, c *Cast) (name string, op BinaryOp, operand Expr, ok bool) {
	id, ok := c.To.(*Identifier)
	if !ok || id.Struct {
		return "", 0, nil, false
	}
	u, ok := c.Expr.(*Unary)
	if !ok || u.grouped() {
		return "", 0, nil, false
	}
	op, ok = castRewriteOps[u.Op]
	if !ok {
		return "", 0, nil, false
	}
	if _, isType := ctx.Oracle.ResolveType(id.Name); isType || !ctx.isValue(id.Name) {
		return "", 0, nil, false
	}
	return id.Name, op, u.Expr, true
}

func finishCast(ctx *LocalContext, c *Cast) (Expr, error) {
	inner, err := finishExpr(ctx, c.Expr)
	if err != nil {
		return nil, err
	}
	c.Expr = inner
	c.To = ctx.resolveType(c.To)
	c.setType(c.To)
	return c, nil
}

func finishArrayAccess(ctx *LocalContext, a *ArrayAccess) (Expr, error) {
	base, err := finishExpr(ctx, a.Expr)
	if err != nil {
		return nil, err
	}
	idx, err := finishExpr(ctx, a.Index)
	if err != nil {
		return nil, err
	}
	a.Expr, a.Index = base, idx
	if to, ok := Pointee(base.Type()); ok {
		a.setType(to)
	}
	return a, nil
}

func finishConcat(ctx *LocalContext, c *Concat) (Expr, error) {
	var parts []Expr
	for _, p := range c.Parts {
		fp, err := finishExpr(ctx, p)
		if err != nil {
			return nil, err
		}
		if len(parts) != 0 {
			prev, ok1 := stringLiteral(parts[len(parts)-1])
			cur, ok2 := stringLiteral(fp)
			if ok1 && ok2 {
				merged, ok := prev.Append(cur)
				if !ok {
					return nil, unsupported("concatenation of %s and %s string literals", prev.Enc.Prefix(), cur.Enc.Prefix())
				}
				parts[len(parts)-1] = &Literal{Lit: merged}
				continue
			}
		}
		parts = append(parts, fp)
	}
	if len(parts) == 1 {
		return finishExpr(ctx, parts[0])
	}
	c.Parts = parts
	c.setType(CharPtr())
	return c, nil
}

func stringLiteral(e Expr) (cpp.StringLit, bool) {
	l, ok := e.(*Literal)
	if !ok {
		return cpp.StringLit{}, false
	}
	s, ok := l.Lit.(cpp.StringLit)
	return s, ok
}

func finishUnary(ctx *LocalContext, u *Unary) (Expr, error) {
	inner, err := finishExpr(ctx, u.Expr)
	if err != nil {
		return nil, err
	}
	u.Expr = inner
	if l, ok := inner.(*Literal); ok {
		folded, ok, err := foldUnary(u.Op, l.Lit)
		if err != nil {
			return nil, err
		}
		if ok {
			return finishExpr(ctx, &Literal{Lit: folded})
		}
	}
	ty := inner.Type()
	switch u.Op {
	case Not:
		u.setType(Bool)
	case Deref:
		if to, ok := Pointee(ty); ok {
			u.setType(to)
		}
	case AddrOf:
		if ty != nil {
			u.setType(&Ptr{To: ty})
		}
	case Comp:
		if b, ok := Unqualified(ty).(BuiltInType); ok && b.IsFloat() {
			return nil, unsupported("~ on %s", b)
		}
		u.setType(ty)
	default:
		u.setType(ty)
	}
	return u, nil
}

// commonType picks the type of an operator with two operands: equal types
// are kept, otherwise whichever side alone has a type wins.
func commonType(a, b Type) Type {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case TypesEqual(a, b):
		return a
	}
	return nil
}

func finishBinary(ctx *LocalContext, b *Binary) (Expr, error) {
	l, err := finishExpr(ctx, b.LHS)
	if err != nil {
		return nil, err
	}
	r, err := finishExpr(ctx, b.RHS)
	if err != nil {
		return nil, err
	}
	b.LHS, b.RHS = l, r
	ll, lok := l.(*Literal)
	rl, rok := r.(*Literal)
	if lok && rok {
		folded, ok, err := foldBinary(b.Op, ll.Lit, rl.Lit)
		if err != nil {
			return nil, err
		}
		if ok {
			return finishExpr(ctx, &Literal{Lit: folded})
		}
	}
	switch {
	case b.Op.IsComparison():
		b.setType(Bool)
	case b.Op.IsAssign():
		b.setType(l.Type())
	default:
		b.setType(commonType(l.Type(), r.Type()))
	}
	return b, nil
}

func finishTernary(ctx *LocalContext, t *Ternary) (Expr, error) {
	var err error
	if t.Cond, err = finishExpr(ctx, t.Cond); err != nil {
		return nil, err
	}
	if t.Then, err = finishExpr(ctx, t.Then); err != nil {
		return nil, err
	}
	if t.Else, err = finishExpr(ctx, t.Else); err != nil {
		return nil, err
	}
	t.setType(commonType(t.Then.Type(), t.Else.Type()))
	return t, nil
}

func finishAsm(ctx *LocalContext, a *Asm) error {
	for i, op := range a.Outputs {
		if len(op.Constraint) == 0 || (op.Constraint[0] != '=' && op.Constraint[0] != '+') {
			return unsupported("asm output constraint %q", op.Constraint)
		}
		e, err := finishExpr(ctx, op.Expr)
		if err != nil {
			return err
		}
		a.Outputs[i].Expr = e
	}
	for i, op := range a.Inputs {
		if len(op.Constraint) == 0 || op.Constraint[0] == '=' || op.Constraint[0] == '+' {
			return unsupported("asm input constraint %q", op.Constraint)
		}
		e, err := finishExpr(ctx, op.Expr)
		if err != nil {
			return err
		}
		a.Inputs[i].Expr = e
	}
	return nil
}

// FinishStmt finishes every expression in s, declaring local variables as
// it goes.
func FinishStmt(ctx *LocalContext, s Stmt) error {
	switch s := s.(type) {
	case *ExprStmt:
		e, err := finishExpr(ctx, s.Expr)
		if err != nil {
			return err
		}
		s.Expr = e
	case *VarDecl:
		s.Type = ctx.resolveType(s.Type)
		init, err := finishExpr(ctx, s.Init)
		if err != nil {
			return err
		}
		s.Init = init
		if idx := ctx.ArgIndex(s.Name); idx >= 0 {
			ctx.useAsIdent(idx)
		}
		return ctx.locals.define(s.Name, s.Type)
	case *FuncDecl:
		s.Ret = ctx.resolveType(s.Ret)
		for i := range s.Params {
			s.Params[i].Type = ctx.resolveType(s.Params[i].Type)
		}
		if idx := ctx.ArgIndex(s.Name); idx >= 0 {
			ctx.useAsIdent(idx)
		}
		ctx.funcs[s.Name] = s
	case *Block:
		return finishScoped(ctx, s.Stmts)
	case *If:
		cond, err := finishExpr(ctx, s.Cond)
		if err != nil {
			return err
		}
		s.Cond = cond
		if err := finishScoped(ctx, s.Then); err != nil {
			return err
		}
		return finishScoped(ctx, s.Else)
	case *DoWhile:
		if err := finishScoped(ctx, s.Body); err != nil {
			return err
		}
		cond, err := finishExpr(ctx, s.Cond)
		if err != nil {
			return err
		}
		s.Cond = cond
	case *AsmStmt:
		return finishAsm(ctx, s.Asm)
	default:
		panic("unknown statement node")
	}
	return nil
}

func finishScoped(ctx *LocalContext, stmts []Stmt) error {
	ctx.pushScope()
	defer ctx.popScope()
	for _, s := range stmts {
		if err := FinishStmt(ctx, s); err != nil {
			return err
		}
	}
	return nil
}
