package parse

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/andrewchambers/cmacro/cpp"
)

type parser struct {
	ctx ParseContext
	// Comments are dropped, orig maps back to the caller's token index.
	toks        []cpp.Token
	orig        []int
	idx         int
	curt, nextt cpp.Token
}

type parseErrorBreakOut struct {
	err error
}

var digraphs = map[string]string{
	"<:":   "[",
	":>":   "]",
	"<%":   "{",
	"%>":   "}",
	"%:":   "#",
	"%:%:": "##",
}

func newParser(toks []cpp.Token, ctx ParseContext) *parser {
	p := &parser{ctx: ctx}
	for i, t := range toks {
		switch {
		case t.Kind == cpp.COMMENT:
			continue
		case t.Kind == cpp.PUNCT && digraphs[t.Val] != "":
			t.Val = digraphs[t.Val]
		case t.Is(cpp.PLAIN, "::"):
			// Only seen between asm operand sections.
			colon := cpp.Punct(":")
			p.toks = append(p.toks, colon)
			p.orig = append(p.orig, i)
			t = colon
		}
		p.toks = append(p.toks, t)
		p.orig = append(p.orig, i)
	}
	p.toks = append(p.toks, cpp.Token{Kind: cpp.EOF})
	p.orig = append(p.orig, len(toks))
	p.seek(0)
	return p
}

func (p *parser) seek(idx int) {
	p.idx = idx
	p.curt = p.toks[idx]
	if idx+1 < len(p.toks) {
		p.nextt = p.toks[idx+1]
	} else {
		p.nextt = p.curt
	}
}

func (p *parser) next() {
	if p.curt.Kind == cpp.EOF {
		return
	}
	p.seek(p.idx + 1)
}

// run calls f, turning a syntax error breakout into an error.
func (p *parser) run(f func()) (errRet error) {
	defer func() {
		if e := recover(); e != nil {
			peb := e.(parseErrorBreakOut) // Will re-panic if not a breakout.
			errRet = peb.err
		}
	}()
	f()
	return nil
}

// try calls f and rewinds to where it started if f fails.
func (p *parser) try(f func()) bool {
	start := p.idx
	if err := p.run(f); err != nil {
		p.seek(start)
		return false
	}
	return true
}

func (p *parser) error(m string, vals ...interface{}) {
	msg := fmt.Sprintf(m, vals...)
	if os.Getenv("CMACRODEBUG") == "true" {
		msg = fmt.Sprintf("%s\n%s", msg, debug.Stack())
	}
	panic(parseErrorBreakOut{&ParseError{Msg: msg, Index: p.orig[p.idx]}})
}

func describe(t cpp.Token) string {
	if t.Kind == cpp.EOF {
		return "end of input"
	}
	return fmt.Sprintf("'%s'", t)
}

func (p *parser) isPunct(s string) bool {
	return p.curt.IsPunct(s)
}

func (p *parser) isKeyword(s string) bool {
	return p.curt.Is(cpp.IDENT, s)
}

func (p *parser) acceptPunct(s string) bool {
	if !p.isPunct(s) {
		return false
	}
	p.next()
	return true
}

func (p *parser) expectPunct(s string) {
	if !p.isPunct(s) {
		p.error("expected '%s' got %s", s, describe(p.curt))
	}
	p.next()
}

func (p *parser) expectKeyword(s string) {
	if !p.isKeyword(s) {
		p.error("expected %s got %s", s, describe(p.curt))
	}
	p.next()
}

func (p *parser) expectEOF() {
	if p.curt.Kind != cpp.EOF {
		p.error("unexpected %s", describe(p.curt))
	}
}

// ParseExpression parses tokens as a single expression.
func ParseExpression(toks []cpp.Token, ctx ParseContext) (Expr, error) {
	p := newParser(toks, ctx)
	var ret Expr
	err := p.run(func() {
		ret = p.parseExpression()
		p.expectEOF()
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// ParseStatement parses tokens as statements. More than one statement is
// returned as a Block.
func ParseStatement(toks []cpp.Token, ctx ParseContext) (Stmt, error) {
	p := newParser(toks, ctx)
	var ret Stmt
	err := p.run(func() {
		ret = p.parseStatements()
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// ParseType parses tokens as a type name.
func ParseType(toks []cpp.Token, ctx ParseContext) (Type, error) {
	p := newParser(toks, ctx)
	var ret Type
	err := p.run(func() {
		ret = p.parseType()
		p.expectEOF()
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// ParseMacroBody parses the expansion of a macro. A body that is a complete
// expression is an expression, anything else must be statements. An empty
// body is an empty block.
func ParseMacroBody(toks []cpp.Token, ctx ParseContext) (*MacroBody, error) {
	p := newParser(toks, ctx)
	if p.curt.Kind == cpp.EOF {
		return &MacroBody{Stmt: &Block{}}, nil
	}
	var e Expr
	if p.try(func() {
		e = p.parseExpression()
		p.expectEOF()
	}) {
		return &MacroBody{Expr: e}, nil
	}
	var s Stmt
	err := p.run(func() {
		s = p.parseStatements()
	})
	if err != nil {
		return nil, err
	}
	return &MacroBody{Stmt: s}, nil
}

func (p *parser) parseStatements() Stmt {
	stmts := p.parseStatementList()
	p.expectEOF()
	if len(stmts) == 1 {
		return stmts[0]
	}
	return &Block{Stmts: stmts}
}

func (p *parser) parseStatementList() []Stmt {
	var stmts []Stmt
	for p.curt.Kind != cpp.EOF && !p.isPunct("}") {
		if s := p.parseStatement(); s != nil {
			stmts = append(stmts, s)
		}
	}
	return stmts
}

// parseStatement returns nil for an empty statement.
func (p *parser) parseStatement() Stmt {
	switch {
	case p.isPunct(";"):
		p.next()
		return nil
	case p.isPunct("{"):
		return p.parseBlock()
	case p.isKeyword("if"):
		return p.parseIf()
	case p.isKeyword("do"):
		return p.parseDoWhile()
	case p.curt.Kind == cpp.IDENT && isAsmKeyword(p.curt.Val):
		a := p.parseAsm()
		p.endStatement()
		return &AsmStmt{Asm: a}
	}
	var decl Stmt
	if p.startsDeclaration() && p.try(func() {
		decl = p.parseDeclaration()
		p.endStatement()
	}) {
		return decl
	}
	e := p.parseExpression()
	p.endStatement()
	return &ExprStmt{Expr: e}
}

func (p *parser) endStatement() {
	if p.curt.Kind == cpp.EOF {
		return
	}
	p.expectPunct(";")
}

func (p *parser) parseBlock() Stmt {
	p.expectPunct("{")
	stmts := p.parseStatementList()
	p.expectPunct("}")
	return &Block{Stmts: stmts}
}

// parseBody parses the statement controlled by an if, else or do.
func (p *parser) parseBody() []Stmt {
	switch s := p.parseStatement().(type) {
	case nil:
		return nil
	case *Block:
		return s.Stmts
	default:
		return []Stmt{s}
	}
}

func (p *parser) parseIf() Stmt {
	p.expectKeyword("if")
	p.expectPunct("(")
	cond := p.parseExpression()
	p.expectPunct(")")
	ret := &If{Cond: cond, Then: p.parseBody()}
	if p.isKeyword("else") {
		p.next()
		ret.Else = p.parseBody()
	}
	return ret
}

func (p *parser) parseDoWhile() Stmt {
	p.expectKeyword("do")
	body := p.parseBody()
	p.expectKeyword("while")
	p.expectPunct("(")
	cond := p.parseExpression()
	p.expectPunct(")")
	p.endStatement()
	return &DoWhile{Body: body, Cond: cond}
}

func (p *parser) startsDeclaration() bool {
	if p.curt.Kind != cpp.IDENT {
		return false
	}
	if p.curt.Val == "static" || typeKeywords[p.curt.Val] {
		return true
	}
	return p.nextt.Kind == cpp.IDENT || p.nextt.Kind == cpp.MACRO_ARG || p.nextt.IsPunct("*")
}

func (p *parser) parseDeclaration() Stmt {
	static := false
	if p.isKeyword("static") {
		static = true
		p.next()
	}
	ty := p.parseType()
	name := p.parseName()
	if p.isPunct("(") {
		return p.parseFuncDeclTail(ty, name)
	}
	p.expectPunct("=")
	init := p.parseExpression()
	return &VarDecl{Type: ty, Name: name, Init: init, Static: static}
}

func (p *parser) parseFuncDeclTail(ret Type, name string) Stmt {
	decl := &FuncDecl{Ret: ret, Name: name}
	p.expectPunct("(")
	if p.isKeyword("void") && p.nextt.IsPunct(")") {
		p.next()
	}
	for !p.isPunct(")") {
		if p.acceptPunct("...") {
			decl.Variadic = true
			break
		}
		param := Param{Type: p.parseType()}
		if p.curt.Kind == cpp.IDENT || p.curt.Kind == cpp.MACRO_ARG {
			param.Name = p.parseName()
		}
		decl.Params = append(decl.Params, param)
		if !p.acceptPunct(",") {
			break
		}
	}
	p.expectPunct(")")
	return decl
}

// parseName reads an identifier or a macro parameter standing in for one.
func (p *parser) parseName() string {
	switch p.curt.Kind {
	case cpp.IDENT:
		if reserved[p.curt.Val] {
			p.error("unexpected keyword %s", p.curt.Val)
		}
		name := p.curt.Val
		p.next()
		return name
	case cpp.MACRO_ARG:
		name := p.argName()
		p.next()
		return name
	}
	p.error("expected an identifier got %s", describe(p.curt))
	panic("unreachable")
}

func (p *parser) argName() string {
	name, ok := p.ctx.paramName(p.curt.Arg)
	if !ok {
		p.error("macro argument %s out of range", p.curt)
	}
	return name
}

var assignmentOps = map[string]BinaryOp{
	"=":   Assign,
	"*=":  MulAssign,
	"/=":  DivAssign,
	"%=":  RemAssign,
	"+=":  AddAssign,
	"-=":  SubAssign,
	"<<=": ShlAssign,
	">>=": ShrAssign,
	"&=":  BitAndAssign,
	"^=":  BitXorAssign,
	"|=":  BitOrAssign,
}

func (p *parser) parseExpression() Expr {
	return p.parseAssignmentExpression()
}

// Assignment is right associative.
func (p *parser) parseAssignmentExpression() Expr {
	l := p.parseConditionalExpression()
	if op, ok := assignmentOps[p.curt.Val]; ok && p.curt.Kind == cpp.PUNCT {
		p.next()
		r := p.parseAssignmentExpression()
		return &Binary{Op: op, LHS: l, RHS: r}
	}
	return l
}

// Aka Ternary operator.
func (p *parser) parseConditionalExpression() Expr {
	cond := p.parseLogicalOrExpression()
	if !p.acceptPunct("?") {
		return cond
	}
	then := p.parseExpression()
	p.expectPunct(":")
	els := p.parseConditionalExpression()
	return &Ternary{Cond: cond, Then: then, Else: els}
}

func (p *parser) binop(ops ...BinaryOp) (BinaryOp, bool) {
	if p.curt.Kind != cpp.PUNCT {
		return 0, false
	}
	for _, op := range ops {
		if p.curt.Val == op.String() {
			return op, true
		}
	}
	return 0, false
}

func (p *parser) parseLogicalOrExpression() Expr {
	l := p.parseLogicalAndExpression()
	for p.acceptPunct("||") {
		l = &Binary{Op: Or, LHS: l, RHS: p.parseLogicalAndExpression()}
	}
	return l
}

func (p *parser) parseLogicalAndExpression() Expr {
	l := p.parseInclusiveOrExpression()
	for p.acceptPunct("&&") {
		l = &Binary{Op: And, LHS: l, RHS: p.parseInclusiveOrExpression()}
	}
	return l
}

func (p *parser) parseInclusiveOrExpression() Expr {
	l := p.parseExclusiveOrExpression()
	for p.acceptPunct("|") {
		l = &Binary{Op: BitOr, LHS: l, RHS: p.parseExclusiveOrExpression()}
	}
	return l
}

func (p *parser) parseExclusiveOrExpression() Expr {
	l := p.parseAndExpression()
	for p.acceptPunct("^") {
		l = &Binary{Op: BitXor, LHS: l, RHS: p.parseAndExpression()}
	}
	return l
}

func (p *parser) parseAndExpression() Expr {
	l := p.parseEqualityExpression()
	for p.acceptPunct("&") {
		l = &Binary{Op: BitAnd, LHS: l, RHS: p.parseEqualityExpression()}
	}
	return l
}

func (p *parser) parseEqualityExpression() Expr {
	l := p.parseRelationalExpression()
	for {
		op, ok := p.binop(Eq, Neq)
		if !ok {
			return l
		}
		p.next()
		l = &Binary{Op: op, LHS: l, RHS: p.parseRelationalExpression()}
	}
}

func (p *parser) parseRelationalExpression() Expr {
	l := p.parseShiftExpression()
	for {
		op, ok := p.binop(Lt, Lte, Gt, Gte)
		if !ok {
			return l
		}
		p.next()
		l = &Binary{Op: op, LHS: l, RHS: p.parseShiftExpression()}
	}
}

func (p *parser) parseShiftExpression() Expr {
	l := p.parseAdditiveExpression()
	for {
		op, ok := p.binop(Shl, Shr)
		if !ok {
			return l
		}
		p.next()
		l = &Binary{Op: op, LHS: l, RHS: p.parseAdditiveExpression()}
	}
}

func (p *parser) parseAdditiveExpression() Expr {
	l := p.parseMultiplicativeExpression()
	for {
		op, ok := p.binop(Add, Sub)
		if !ok {
			return l
		}
		p.next()
		l = &Binary{Op: op, LHS: l, RHS: p.parseMultiplicativeExpression()}
	}
}

func (p *parser) parseMultiplicativeExpression() Expr {
	l := p.parseCastExpression()
	for {
		op, ok := p.binop(Mul, Div, Rem)
		if !ok {
			return l
		}
		p.next()
		l = &Binary{Op: op, LHS: l, RHS: p.parseCastExpression()}
	}
}

// A parenthesised lone identifier followed by something that can start an
// operand is read as a cast. Finish turns it back into a binary expression
// when the identifier turns out to be a value, e.g. (a) - b.
func (p *parser) parseCastExpression() Expr {
	if p.isPunct("(") {
		var ty Type
		if p.try(func() { ty = p.parseParenType() }) {
			return &Cast{To: ty, Expr: p.parseCastExpression()}
		}
	}
	return p.parseUnaryExpression()
}

func (p *parser) parseParenType() Type {
	p.expectPunct("(")
	ty := p.parseType()
	p.expectPunct(")")
	if !startsCastExpression(p.curt) {
		p.error("expected an expression after (%s)", ty)
	}
	return ty
}

func startsCastExpression(t cpp.Token) bool {
	switch t.Kind {
	case cpp.IDENT, cpp.LITERAL, cpp.MACRO_ARG:
		return true
	case cpp.PUNCT:
		switch t.Val {
		case "(", "&", "*", "+", "-", "!", "~", "++", "--", "#":
			return true
		}
	}
	return false
}

var prefixOps = map[string]UnaryOp{
	"&": AddrOf,
	"*": Deref,
	"+": Plus,
	"-": Minus,
	"!": Not,
	"~": Comp,
}

func (p *parser) parseUnaryExpression() Expr {
	if p.curt.Kind == cpp.PUNCT {
		switch p.curt.Val {
		case "++", "--":
			op := PreInc
			if p.curt.Val == "--" {
				op = PreDec
			}
			p.next()
			return &Unary{Op: op, Expr: p.parseUnaryExpression()}
		case "&", "*", "+", "-", "!", "~":
			op := prefixOps[p.curt.Val]
			p.next()
			return &Unary{Op: op, Expr: p.parseCastExpression()}
		}
	}
	return p.parsePostfixExpression()
}

func (p *parser) parsePostfixExpression() Expr {
	l := p.parsePrimaryExpression()
	for {
		switch {
		case p.isPunct("["):
			p.next()
			idx := p.parseExpression()
			p.expectPunct("]")
			l = &ArrayAccess{Expr: l, Index: idx}
		case p.isPunct("."), p.isPunct("->"):
			deref := p.isPunct("->")
			p.next()
			field := p.parseName()
			if deref {
				l = &Unary{Op: Deref, Expr: l}
			}
			l = &FieldAccess{Expr: l, Field: field}
		case p.isPunct("("):
			v, ok := l.(*Variable)
			if !ok {
				p.error("only named functions can be called")
			}
			l = &FuncCall{Name: v.Name, Args: p.parseArguments()}
		case p.isPunct("++"), p.isPunct("--"):
			op := PostInc
			if p.curt.Val == "--" {
				op = PostDec
			}
			p.next()
			switch {
			case p.isPunct("["), p.isPunct("."), p.isPunct("->"), p.isPunct("("), p.isPunct("++"), p.isPunct("--"):
				p.error("unexpected %s after postfix %s", describe(p.curt), op)
			}
			return &Unary{Op: op, Expr: l}
		default:
			return l
		}
	}
}

func (p *parser) parseArguments() []Expr {
	var args []Expr
	p.expectPunct("(")
	if p.acceptPunct(")") {
		return args
	}
	for {
		args = append(args, p.parseAssignmentExpression())
		if !p.acceptPunct(",") {
			break
		}
	}
	p.expectPunct(")")
	return args
}

func (p *parser) parsePrimaryExpression() Expr {
	switch p.curt.Kind {
	case cpp.LITERAL:
		if p.atStringPart() {
			return p.parseStringConcat()
		}
		lit := p.curt.Lit
		if lit == nil {
			var ok bool
			if lit, ok = cpp.ParseLit(p.curt.Val); !ok {
				p.error("invalid literal %s", p.curt.Val)
			}
		}
		p.next()
		return &Literal{Lit: lit}
	case cpp.PUNCT:
		switch p.curt.Val {
		case "#":
			return p.parseStringConcat()
		case "(":
			p.next()
			e := p.parseExpression()
			p.expectPunct(")")
			e.group()
			return e
		}
	case cpp.IDENT:
		if isAsmKeyword(p.curt.Val) {
			return p.parseAsm()
		}
		return &Variable{Name: p.parseName()}
	case cpp.MACRO_ARG:
		return &Variable{Name: p.parseName()}
	}
	p.error("expected an identifier, literal or expression got %s", describe(p.curt))
	panic("unreachable")
}

func (p *parser) atStringPart() bool {
	if p.isPunct("#") {
		return true
	}
	_, ok := p.curt.Lit.(cpp.StringLit)
	return ok && p.curt.Kind == cpp.LITERAL
}

// Adjacent string literals and stringifications form one Concat, Finish
// merges the literal parts.
func (p *parser) parseStringConcat() Expr {
	var parts []Expr
	for p.atStringPart() {
		if p.isPunct("#") {
			parts = append(parts, p.parseStringify())
			continue
		}
		parts = append(parts, &Literal{Lit: p.curt.Lit})
		p.next()
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return &Concat{Parts: parts}
}

func (p *parser) parseStringify() Expr {
	p.expectPunct("#")
	switch {
	case p.curt.Kind == cpp.MACRO_ARG:
		s := &Stringify{Arg: p.curt.Arg, Name: p.argName()}
		p.next()
		return s
	case p.isKeyword("__LINE__"), p.isKeyword("__FILE__"):
		s := &Stringify{Arg: -1, Name: p.curt.Val}
		p.next()
		return s
	}
	p.error("'#' is not followed by a macro parameter")
	panic("unreachable")
}

func isAsmKeyword(s string) bool {
	return s == "asm" || s == "__asm" || s == "__asm__"
}

func (p *parser) parseAsm() *Asm {
	p.next()
	a := &Asm{}
	for p.curt.Kind == cpp.IDENT {
		switch p.curt.Val {
		case "volatile", "__volatile", "__volatile__":
			a.Volatile = true
		case "inline", "__inline", "__inline__":
		case "goto":
			a.Goto = true
		default:
			p.error("unexpected %s in asm statement", p.curt.Val)
		}
		p.next()
	}
	p.expectPunct("(")
	a.Template = p.parseAsmString()
	if p.acceptPunct(":") {
		a.Outputs = p.parseAsmOperands()
		if p.acceptPunct(":") {
			a.Inputs = p.parseAsmOperands()
			if p.acceptPunct(":") {
				a.Clobbers = p.parseAsmClobbers()
				if a.Goto && p.acceptPunct(":") {
					a.Labels = p.parseAsmLabels()
				}
			}
		}
	}
	p.expectPunct(")")
	return a
}

func (p *parser) parseAsmString() string {
	var s cpp.StringLit
	n := 0
	for p.curt.Kind == cpp.LITERAL {
		lit, ok := p.curt.Lit.(cpp.StringLit)
		if !ok || (lit.Enc != cpp.Ordinary && lit.Enc != cpp.UTF8) {
			break
		}
		s.Bytes = append(s.Bytes, lit.Bytes...)
		n++
		p.next()
	}
	if n == 0 {
		p.error("expected a string got %s", describe(p.curt))
	}
	return string(s.Bytes)
}

func (p *parser) parseAsmOperands() []AsmOperand {
	var ops []AsmOperand
	if p.isPunct(":") || p.isPunct(")") {
		return ops
	}
	for {
		var op AsmOperand
		if p.acceptPunct("[") {
			op.Name = p.parseName()
			p.expectPunct("]")
		}
		op.Constraint = p.parseAsmString()
		p.expectPunct("(")
		op.Expr = p.parseExpression()
		p.expectPunct(")")
		ops = append(ops, op)
		if !p.acceptPunct(",") {
			return ops
		}
	}
}

func (p *parser) parseAsmClobbers() []string {
	var ret []string
	if p.isPunct(":") || p.isPunct(")") {
		return ret
	}
	for {
		ret = append(ret, p.parseAsmString())
		if !p.acceptPunct(",") {
			return ret
		}
	}
}

func (p *parser) parseAsmLabels() []string {
	var ret []string
	for {
		ret = append(ret, p.parseName())
		if !p.acceptPunct(",") {
			return ret
		}
	}
}

var builtinSpecifiers = map[string]bool{
	"signed":   true,
	"unsigned": true,
	"short":    true,
	"long":     true,
	"int":      true,
	"char":     true,
	"float":    true,
	"double":   true,
	"_Bool":    true,
	"bool":     true,
	"void":     true,
	"size_t":   true,
	"ssize_t":  true,
	"char8_t":  true,
	"char16_t": true,
	"char32_t": true,
}

// typeKeywords start a type name.
var typeKeywords = map[string]bool{}

// reserved words are never variable names.
var reserved = map[string]bool{
	"static": true,
	"if":     true,
	"else":   true,
	"do":     true,
	"while":  true,
}

func init() {
	for k := range builtinSpecifiers {
		typeKeywords[k] = true
	}
	for _, k := range []string{"const", "volatile", "struct", "union", "enum"} {
		typeKeywords[k] = true
	}
	for k := range typeKeywords {
		reserved[k] = true
	}
}

func (p *parser) parseType() Type {
	qual := p.parseQualifiers()
	var ty Type
	switch {
	case p.isKeyword("struct"), p.isKeyword("union"), p.isKeyword("enum"):
		p.next()
		if p.curt.Kind != cpp.IDENT || reserved[p.curt.Val] {
			p.error("expected a tag name got %s", describe(p.curt))
		}
		ty = &Identifier{Name: p.curt.Val, Struct: true}
		p.next()
	case p.curt.Kind == cpp.IDENT && builtinSpecifiers[p.curt.Val]:
		ty, qual = p.parseBuiltInType(qual)
	case p.curt.Kind == cpp.IDENT && !reserved[p.curt.Val] && !isAsmKeyword(p.curt.Val):
		ty = &Identifier{Name: p.curt.Val}
		p.next()
	default:
		p.error("expected a type got %s", describe(p.curt))
	}
	ty = Qualify(ty, qual|p.parseQualifiers())
	for p.acceptPunct("*") {
		ty = Qualify(&Ptr{To: ty}, p.parseQualifiers())
	}
	return ty
}

func (p *parser) parseQualifiers() Qualifier {
	var q Qualifier
	for {
		switch {
		case p.isKeyword("const"):
			q |= Const
		case p.isKeyword("volatile"):
			q |= Volatile
		default:
			return q
		}
		p.next()
	}
}

// parseBuiltInType reads specifiers in any order, e.g. "long unsigned const
// long int". Qualifiers may be mixed in.
func (p *parser) parseBuiltInType(qual Qualifier) (Type, Qualifier) {
	counts := make(map[string]int)
loop:
	for p.curt.Kind == cpp.IDENT {
		switch {
		case builtinSpecifiers[p.curt.Val]:
			counts[p.curt.Val]++
		case p.curt.Val == "const":
			qual |= Const
		case p.curt.Val == "volatile":
			qual |= Volatile
		default:
			break loop
		}
		p.next()
	}
	ty, ok := builtInFromSpecifiers(counts)
	if !ok {
		p.error("invalid combination of type specifiers")
	}
	return ty, qual
}

func builtInFromSpecifiers(c map[string]int) (BuiltInType, bool) {
	total := 0
	for _, n := range c {
		total += n
	}
	signed, unsigned := c["signed"], c["unsigned"]
	sign := signed + unsigned
	if sign > 1 || c["int"] > 1 {
		return 0, false
	}
	pick := func(s, u BuiltInType) BuiltInType {
		if unsigned != 0 {
			return u
		}
		return s
	}
	ints := sign + c["int"]
	switch {
	case total == 1 && c["void"] == 1:
		return Void, true
	case total == 1 && (c["bool"] == 1 || c["_Bool"] == 1):
		return Bool, true
	case total == 1 && c["float"] == 1:
		return Float, true
	case total == 1 && c["double"] == 1:
		return Double, true
	case total == 2 && c["double"] == 1 && c["long"] == 1:
		return LongDouble, true
	case total == 1 && c["size_t"] == 1:
		return SizeT, true
	case total == 1 && c["ssize_t"] == 1:
		return SSizeT, true
	case total == 1 && c["char8_t"] == 1:
		return Char8, true
	case total == 1 && c["char16_t"] == 1:
		return Char16, true
	case total == 1 && c["char32_t"] == 1:
		return Char32, true
	case c["char"] == 1 && total == 1+sign:
		switch {
		case signed != 0:
			return SChar, true
		case unsigned != 0:
			return UChar, true
		}
		return Char, true
	case c["short"] == 1 && total == 1+ints:
		return pick(Short, UShort), true
	case c["long"] == 2 && total == 2+ints:
		return pick(LongLong, ULongLong), true
	case c["long"] == 1 && total == 1+ints:
		return pick(Long, ULong), true
	case total != 0 && total == ints:
		return pick(Int, UInt), true
	}
	return 0, false
}
