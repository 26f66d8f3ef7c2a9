package emit

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/andrewchambers/cmacro/cpp"
	"github.com/andrewchambers/cmacro/parse"
)

// printer renders finished AST nodes as Rust source.
type printer struct {
	ctx *parse.LocalContext
	// Parameters are macro_rules metavariables, e.g. $x.
	macro bool
	err   error
}

// Expr renders e. Parameters of function-like macros are written as
// macro_rules metavariables.
func Expr(ctx *parse.LocalContext, e parse.Expr) string {
	p := &printer{ctx: ctx, macro: ctx.Fn}
	return p.expr(e)
}

// Stmt renders s the same way Expr does.
func Stmt(ctx *parse.LocalContext, s parse.Stmt) string {
	p := &printer{ctx: ctx, macro: ctx.Fn}
	return p.stmt(s)
}

// fail records the first error and renders a compile error in its place so
// the output still says what went wrong.
func (p *printer) fail(format string, args ...interface{}) string {
	msg := fmt.Sprintf(format, args...)
	if p.err == nil {
		p.err = errors.Errorf("%s: %s", p.ctx.Name, msg)
	}
	return "::core::compile_error!(" + strconv.Quote(msg) + ")"
}

func (p *printer) ffi(name string) string {
	return p.ctx.FFIPrefix() + "::" + name
}

func (p *printer) name(name string) string {
	if p.ctx.ArgIndex(name) >= 0 {
		if p.macro {
			return "$" + name
		}
		if name == parse.VarArgsName {
			return p.fail("variadic arguments outside of a macro")
		}
	}
	return rustIdent(name)
}

func (p *printer) expr(e parse.Expr) string {
	switch e := e.(type) {
	case *parse.Variable:
		return p.variable(e)
	case *parse.FuncCall:
		return p.funcCall(e)
	case *parse.Cast:
		x := p.expr(e.Expr)
		if parse.IsVoid(parse.Unqualified(e.To)) {
			return "{ let _ = " + x + "; }"
		}
		return fmt.Sprintf("(%s as %s)", x, Type(p.ctx, e.To))
	case *parse.Literal:
		return p.literal(e)
	case *parse.FieldAccess:
		return fmt.Sprintf("(%s).%s", p.expr(e.Expr), p.name(e.Field))
	case *parse.ArrayAccess:
		return fmt.Sprintf("(*(%s).offset((%s) as isize))", p.expr(e.Expr), p.expr(e.Index))
	case *parse.Stringify:
		return p.cString("::core::concat!(" + p.stringifyPart(e) + ", '\\0')")
	case *parse.Concat:
		return p.concat(e)
	case *parse.Unary:
		return p.unary(e)
	case *parse.Binary:
		return p.binary(e)
	case *parse.Ternary:
		return fmt.Sprintf("(if %s { %s } else { %s })", p.truthy(e.Cond), p.expr(e.Then), p.expr(e.Else))
	case *parse.Asm:
		return p.asm(e)
	}
	panic("unknown expression node")
}

func (p *printer) variable(v *parse.Variable) string {
	if v.Name == parse.VarArgsName && p.macro && p.ctx.ArgIndex(v.Name) >= 0 {
		return "$($" + parse.VarArgsName + "),*"
	}
	if p.ctx.ArgIndex(v.Name) >= 0 {
		return p.name(v.Name)
	}
	if b, ok := parse.BuiltinMaximum(v.Name); ok {
		return Type(p.ctx, b) + "::MAX"
	}
	switch v.Name {
	case "NULL":
		return "::core::ptr::null_mut()"
	case "__LINE__":
		return "(::core::line!() as " + Type(p.ctx, parse.UInt) + ")"
	case "__FILE__":
		return p.cString("::core::concat!(::core::file!(), '\\0')")
	}
	return p.name(v.Name)
}

// cString turns a Rust string expression ending in NUL into a C string
// pointer.
func (p *printer) cString(s string) string {
	return fmt.Sprintf("{ const BYTES: &[u8] = %s.as_bytes(); BYTES.as_ptr() as *const %s }", s, p.ffi("c_char"))
}

func (p *printer) funcCall(c *parse.FuncCall) string {
	var args []string
	for _, a := range c.Args {
		args = append(args, p.expr(a))
	}
	return p.name(c.Name) + "(" + strings.Join(args, ", ") + ")"
}

func intText(l cpp.IntLit) string {
	if l.Typed().Suffix.Unsigned() {
		return strconv.FormatUint(l.Value, 10)
	}
	return strconv.FormatInt(int64(l.Value), 10)
}

func floatText(l cpp.FloatLit) string {
	ty := "f64"
	if l.Suffix == cpp.FloatF {
		ty = "f32"
	}
	switch {
	case math.IsNaN(l.Value):
		return ty + "::NAN"
	case math.IsInf(l.Value, 1):
		return ty + "::INFINITY"
	case math.IsInf(l.Value, -1):
		return ty + "::NEG_INFINITY"
	}
	s := strconv.FormatFloat(l.Value, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	if l.Suffix == cpp.FloatF {
		s += "f32"
	}
	return s
}

func (p *printer) literal(l *parse.Literal) string {
	switch lit := l.Lit.(type) {
	case cpp.IntLit:
		if l.Type() == nil {
			return intText(lit)
		}
		return fmt.Sprintf("(%s as %s)", intText(lit), Type(p.ctx, l.Type()))
	case cpp.FloatLit:
		return floatText(lit)
	case cpp.CharLit:
		ty := Type(p.ctx, l.Type())
		if lit.Enc == cpp.Ordinary && lit.Value >= 0x20 && lit.Value < 0x7f && lit.Value != '\'' && lit.Value != '\\' {
			return fmt.Sprintf("(b'%c' as %s)", rune(lit.Value), ty)
		}
		return fmt.Sprintf("(%d as %s)", lit.Value, ty)
	case cpp.StringLit:
		return p.stringLit(lit, l.Type())
	}
	panic("unknown literal")
}

func (p *printer) stringLit(s cpp.StringLit, ty parse.Type) string {
	if ty == nil {
		ty = parse.CharPtr()
	}
	if s.Enc == cpp.Ordinary || s.Enc == cpp.UTF8 {
		return fmt.Sprintf("{ const BYTES: &[u8; %d] = b\"%s\\0\"; BYTES.as_ptr() as %s }", s.Len()+1, byteString(s.Bytes), Type(p.ctx, ty))
	}
	unit := "u32"
	if s.Enc == cpp.UTF16 {
		unit = "u16"
	}
	var units []string
	for _, u := range s.Units {
		units = append(units, strconv.FormatUint(uint64(u), 10))
	}
	units = append(units, "0")
	return fmt.Sprintf("{ const UNITS: &[%s; %d] = &[%s]; UNITS.as_ptr() as %s }", unit, len(units), strings.Join(units, ", "), Type(p.ctx, ty))
}

func byteString(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		switch {
		case c == '"' || c == '\\':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case c >= 0x20 && c < 0x7f:
			sb.WriteByte(c)
		default:
			fmt.Fprintf(&sb, "\\x%02x", c)
		}
	}
	return sb.String()
}

// rustStr quotes b as a Rust string literal, for use inside concat!.
func (p *printer) rustStr(b []byte) string {
	if !utf8.Valid(b) {
		return p.fail("string literal is not valid UTF-8")
	}
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range string(b) {
		switch {
		case r == '"' || r == '\\':
			sb.WriteByte('\\')
			sb.WriteRune(r)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&sb, "\\x%02x", r)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

func (p *printer) stringifyPart(s *parse.Stringify) string {
	if s.Arg < 0 {
		return p.rustStr([]byte(s.Name))
	}
	if !p.macro {
		return p.fail("stringification of %s outside of a macro", s.Name)
	}
	return "::core::stringify!($" + s.Name + ")"
}

func (p *printer) concat(c *parse.Concat) string {
	var parts []string
	for _, part := range c.Parts {
		switch part := part.(type) {
		case *parse.Stringify:
			parts = append(parts, p.stringifyPart(part))
		case *parse.Literal:
			s, ok := part.Lit.(cpp.StringLit)
			if !ok || (s.Enc != cpp.Ordinary && s.Enc != cpp.UTF8) {
				return p.fail("concatenation of a non string literal")
			}
			parts = append(parts, p.rustStr(s.Bytes))
		default:
			return p.fail("concatenation of a non string literal")
		}
	}
	parts = append(parts, "'\\0'")
	return p.cString("::core::concat!(" + strings.Join(parts, ", ") + ")")
}

// typeOf is the type of e, falling back to what was learned about a
// parameter after e was finished.
func (p *printer) typeOf(e parse.Expr) parse.Type {
	if v, ok := e.(*parse.Variable); ok {
		if idx := p.ctx.ArgIndex(v.Name); idx >= 0 && p.ctx.ArgTypes[idx].Kind == parse.ArgKnown {
			return p.ctx.ArgTypes[idx].Type
		}
	}
	return e.Type()
}

// truthy renders e as a Rust bool.
func (p *printer) truthy(e parse.Expr) string {
	s := p.expr(e)
	t := parse.Unqualified(p.typeOf(e))
	switch {
	case t == parse.Bool:
		return s
	case parse.IsPtrType(t):
		return "!(" + s + ").is_null()"
	}
	return "(" + s + " != " + zeroFor(t) + ")"
}

func zeroFor(t parse.Type) string {
	if b, ok := t.(parse.BuiltInType); ok {
		switch {
		case b.IsInteger():
			return "0"
		case b.IsFloat():
			return "0.0"
		}
	}
	return "Default::default()"
}

func (p *printer) unary(u *parse.Unary) string {
	x := p.expr(u.Expr)
	ty := p.typeOf(u.Expr)
	switch u.Op {
	case parse.AddrOf:
		return "::core::ptr::addr_of_mut!(" + x + ")"
	case parse.Deref:
		return "(*" + x + ")"
	case parse.Plus:
		return "(" + x + ")"
	case parse.Minus:
		if isUnsigned(ty) {
			return "(" + x + ").wrapping_neg()"
		}
		return "(-" + x + ")"
	case parse.Not:
		t := parse.Unqualified(ty)
		switch {
		case t == parse.Bool:
			return "(!" + x + ")"
		case parse.IsPtrType(t):
			return "(" + x + ").is_null()"
		}
		return "(" + x + " == " + zeroFor(t) + ")"
	case parse.Comp:
		return "(!" + x + ")"
	case parse.PreInc, parse.PreDec:
		return fmt.Sprintf("{ %s; %s }", p.step(x, ty, u.Op == parse.PreInc), x)
	case parse.PostInc, parse.PostDec:
		return fmt.Sprintf("{ let __cmacro_tmp = %s; %s; __cmacro_tmp }", x, p.step(x, ty, u.Op == parse.PostInc))
	}
	panic("unknown unary operator")
}

func (p *printer) step(x string, ty parse.Type, inc bool) string {
	switch {
	case parse.IsPtrType(ty) && inc:
		return x + " = " + x + ".offset(1)"
	case parse.IsPtrType(ty):
		return x + " = " + x + ".offset(-1)"
	case inc:
		return x + " += 1"
	}
	return x + " -= 1"
}

// operand renders e, cast to want when it has a different scalar type.
func (p *printer) operand(e parse.Expr, want parse.Type) string {
	s := p.expr(e)
	have := parse.Unqualified(p.typeOf(e))
	want = parse.Unqualified(want)
	_, hb := have.(parse.BuiltInType)
	_, wb := want.(parse.BuiltInType)
	if hb && wb && !parse.TypesEqual(have, want) {
		return fmt.Sprintf("(%s as %s)", s, Type(p.ctx, want))
	}
	return s
}

func (p *printer) binary(b *parse.Binary) string {
	lt, rt := p.typeOf(b.LHS), p.typeOf(b.RHS)
	switch {
	case b.Op == parse.And || b.Op == parse.Or:
		return fmt.Sprintf("(%s %s %s)", p.truthy(b.LHS), b.Op, p.truthy(b.RHS))
	case b.Op == parse.Assign:
		l := p.expr(b.LHS)
		return fmt.Sprintf("{ %s = %s; %s }", l, p.operand(b.RHS, lt), l)
	case b.Op.IsAssign():
		l := p.expr(b.LHS)
		op := strings.TrimSuffix(b.Op.String(), "=")
		if parse.IsPtrType(lt) && (b.Op == parse.AddAssign || b.Op == parse.SubAssign) {
			off := fmt.Sprintf("(%s) as isize", p.expr(b.RHS))
			if b.Op == parse.SubAssign {
				off = "-(" + off + ")"
			}
			return fmt.Sprintf("{ %s = (%s).offset(%s); %s }", l, l, off, l)
		}
		return fmt.Sprintf("{ %s %s= %s; %s }", l, op, p.operand(b.RHS, lt), l)
	case b.Op == parse.Add && parse.IsPtrType(lt) && !parse.IsPtrType(rt):
		return fmt.Sprintf("(%s).offset((%s) as isize)", p.expr(b.LHS), p.expr(b.RHS))
	case b.Op == parse.Add && parse.IsPtrType(rt) && !parse.IsPtrType(lt):
		return fmt.Sprintf("(%s).offset((%s) as isize)", p.expr(b.RHS), p.expr(b.LHS))
	case b.Op == parse.Sub && parse.IsPtrType(lt) && parse.IsPtrType(rt):
		return fmt.Sprintf("(%s).offset_from(%s)", p.expr(b.LHS), p.expr(b.RHS))
	case b.Op == parse.Sub && parse.IsPtrType(lt):
		return fmt.Sprintf("(%s).offset(-((%s) as isize))", p.expr(b.LHS), p.expr(b.RHS))
	case b.Op == parse.Shl || b.Op == parse.Shr:
		return fmt.Sprintf("(%s %s %s)", p.expr(b.LHS), b.Op, p.expr(b.RHS))
	case b.Op.IsComparison():
		want := lt
		if want == nil {
			want = rt
		}
		return fmt.Sprintf("(%s %s %s)", p.operand(b.LHS, want), b.Op, p.operand(b.RHS, want))
	}
	want := b.Type()
	return fmt.Sprintf("(%s %s %s)", p.operand(b.LHS, want), b.Op, p.operand(b.RHS, want))
}

var asmRegisters = map[byte]string{
	'a': "eax",
	'b': "ebx",
	'c': "ecx",
	'd': "edx",
	'S': "esi",
	'D': "edi",
}

// asmClass picks the Rust operand class for a GCC constraint, ignoring the
// leading modifiers. imm is set for immediate constraints.
func asmClass(constraint string) (class string, imm bool, ok bool) {
	for i := 0; i < len(constraint); i++ {
		c := constraint[i]
		switch c {
		case '=', '+', '&', '%':
			continue
		case 'r', 'q', 'g':
			return "reg", false, true
		case 'i', 'n':
			return "", true, true
		}
		if r, ok := asmRegisters[c]; ok {
			return strconv.Quote(r), false, true
		}
	}
	return "", false, false
}

type asmArg struct {
	// Index into the Rust operand list.
	slot int
	text string
}

func (p *printer) asm(a *parse.Asm) string {
	if a.Goto {
		return p.fail("asm goto")
	}
	var args []asmArg
	// C operand number to Rust operand number.
	slots := make([]int, 0, len(a.Outputs)+len(a.Inputs))
	names := map[string]int{}
	for i, o := range a.Outputs {
		class, imm, ok := asmClass(o.Constraint)
		if !ok || imm {
			return p.fail("unsupported asm output constraint %q", o.Constraint)
		}
		dir := "out"
		if strings.HasPrefix(o.Constraint, "+") {
			dir = "inout"
		}
		slots = append(slots, len(args))
		args = append(args, asmArg{slot: len(args), text: fmt.Sprintf("%s(%s) %s", dir, class, p.expr(o.Expr))})
		if o.Name != "" {
			names[o.Name] = i
		}
	}
	for i, in := range a.Inputs {
		n := len(a.Outputs) + i
		if in.Name != "" {
			names[in.Name] = n
		}
		if tied, err := strconv.Atoi(in.Constraint); err == nil {
			if tied < 0 || tied >= len(a.Outputs) || !strings.HasPrefix(args[tied].text, "out(") {
				return p.fail("unsupported asm input constraint %q", in.Constraint)
			}
			o := a.Outputs[tied]
			class, _, _ := asmClass(o.Constraint)
			args[tied].text = fmt.Sprintf("inout(%s) %s => %s", class, p.expr(in.Expr), p.expr(o.Expr))
			slots = append(slots, tied)
			continue
		}
		class, imm, ok := asmClass(in.Constraint)
		if !ok {
			return p.fail("unsupported asm input constraint %q", in.Constraint)
		}
		slots = append(slots, len(args))
		if imm {
			args = append(args, asmArg{slot: len(args), text: "const " + p.expr(in.Expr)})
		} else {
			args = append(args, asmArg{slot: len(args), text: fmt.Sprintf("in(%s) %s", class, p.expr(in.Expr))})
		}
	}
	tmpl, err := asmTemplate(a.Template, slots, names)
	if err != nil {
		return p.fail("%s", err)
	}
	parts := []string{strconv.Quote(tmpl)}
	for _, arg := range args {
		parts = append(parts, arg.text)
	}
	for _, c := range a.Clobbers {
		c = strings.TrimPrefix(c, "%")
		switch c {
		case "memory", "cc":
		default:
			parts = append(parts, fmt.Sprintf("out(%s) _", strconv.Quote(c)))
		}
	}
	parts = append(parts, "options(att_syntax)")
	return "::core::arch::asm!(" + strings.Join(parts, ", ") + ")"
}

// asmTemplate rewrites GCC operand references into Rust format syntax.
func asmTemplate(s string, slots []int, names map[string]int) (string, error) {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '{', '}':
			sb.WriteByte(c)
			sb.WriteByte(c)
			continue
		case '%':
		default:
			sb.WriteByte(c)
			continue
		}
		i++
		if i == len(s) {
			return "", errors.New("asm template ends in '%'")
		}
		switch c := s[i]; {
		case c == '%':
			sb.WriteByte('%')
		case c == '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return "", errors.New("unterminated operand name in asm template")
			}
			n, ok := names[s[i+1:i+end]]
			if !ok {
				return "", errors.Errorf("unknown asm operand %q", s[i+1:i+end])
			}
			fmt.Fprintf(&sb, "{%d}", slots[n])
			i += end
		case c >= '0' && c <= '9':
			j := i
			for j < len(s) && s[j] >= '0' && s[j] <= '9' {
				j++
			}
			n, _ := strconv.Atoi(s[i:j])
			if n >= len(slots) {
				return "", errors.Errorf("asm operand %d out of range", n)
			}
			fmt.Fprintf(&sb, "{%d}", slots[n])
			i = j - 1
		default:
			return "", errors.Errorf("unsupported asm template modifier '%%%c'", c)
		}
	}
	return sb.String(), nil
}

func (p *printer) stmt(s parse.Stmt) string {
	switch s := s.(type) {
	case *parse.ExprStmt:
		return p.expr(s.Expr) + ";"
	case *parse.VarDecl:
		kw := "let mut"
		if s.Static {
			kw = "static mut"
		}
		if s.Init == nil {
			return p.fail("declaration of %s without an initializer", s.Name)
		}
		return fmt.Sprintf("%s %s: %s = %s;", kw, p.name(s.Name), Type(p.ctx, s.Type), p.operand(s.Init, s.Type))
	case *parse.FuncDecl:
		var params []string
		for _, prm := range s.Params {
			params = append(params, "_: "+Type(p.ctx, prm.Type))
		}
		if s.Variadic {
			params = append(params, "...")
		}
		ret := ""
		if !parse.IsVoid(parse.Unqualified(s.Ret)) {
			ret = " -> " + Type(p.ctx, s.Ret)
		}
		return fmt.Sprintf("extern \"C\" { fn %s(%s)%s; }", p.name(s.Name), strings.Join(params, ", "), ret)
	case *parse.Block:
		return p.block(s.Stmts)
	case *parse.If:
		ret := "if " + p.truthy(s.Cond) + " " + p.block(s.Then)
		if len(s.Else) != 0 {
			ret += " else " + p.block(s.Else)
		}
		return ret
	case *parse.DoWhile:
		if l, ok := s.Cond.(*parse.Literal); ok {
			if i, ok := l.Lit.(cpp.IntLit); ok && i.Value == 0 {
				return p.block(s.Body)
			}
		}
		var parts []string
		for _, st := range s.Body {
			parts = append(parts, p.stmt(st))
		}
		parts = append(parts, "if !("+p.truthy(s.Cond)+") { break; }")
		return "loop { " + strings.Join(parts, " ") + " }"
	case *parse.AsmStmt:
		return p.asm(s.Asm) + ";"
	}
	panic("unknown statement node")
}

func (p *printer) block(stmts []parse.Stmt) string {
	if len(stmts) == 0 {
		return "{}"
	}
	var parts []string
	for _, st := range stmts {
		parts = append(parts, p.stmt(st))
	}
	return "{ " + strings.Join(parts, " ") + " }"
}
