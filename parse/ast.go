package parse

import "github.com/andrewchambers/cmacro/cpp"

// Expr is an expression node. The type slot is empty until the node has been
// through Finish, and may stay empty when nothing is known.
type Expr interface {
	Type() Type
	setType(Type)
	grouped() bool
	group()
}

// paren is set on an expression written inside parentheses.
type typed struct {
	ty    Type
	paren bool
}

func (t *typed) Type() Type      { return t.ty }
func (t *typed) setType(ty Type) { t.ty = ty }
func (t *typed) grouped() bool   { return t.paren }
func (t *typed) group()          { t.paren = true }

type Variable struct {
	typed
	Name string
}

// FuncCall is only ever a call of a named function or macro.
type FuncCall struct {
	typed
	Name string
	Args []Expr
}

type Cast struct {
	typed
	Expr Expr
	To   Type
}

type Literal struct {
	typed
	Lit cpp.Lit
}

// a->b is parsed as (*a).b
type FieldAccess struct {
	typed
	Expr  Expr
	Field string
}

type ArrayAccess struct {
	typed
	Expr  Expr
	Index Expr
}

// Stringify is #param. Arg is -1 for the builtin names __LINE__ and
// __FILE__, which survive stringification inside nested expansions.
type Stringify struct {
	typed
	Arg  int
	Name string
}

// Concat is a run of adjacent string literals and stringifications.
type Concat struct {
	typed
	Parts []Expr
}

type Unary struct {
	typed
	Op   UnaryOp
	Expr Expr
}

type Binary struct {
	typed
	Op  BinaryOp
	LHS Expr
	RHS Expr
}

type Ternary struct {
	typed
	Cond Expr
	Then Expr
	Else Expr
}

type AsmOperand struct {
	// Symbolic name from [name], may be empty.
	Name       string
	Constraint string
	Expr       Expr
}

type Asm struct {
	typed
	Volatile bool
	Goto     bool
	Template string
	Outputs  []AsmOperand
	Inputs   []AsmOperand
	Clobbers []string
	Labels   []string
}

type UnaryOp int

const (
	AddrOf UnaryOp = iota
	Deref
	Plus
	Minus
	Not
	Comp
	PreInc
	PreDec
	PostInc
	PostDec
)

var unaryOpToStr = [...]string{
	AddrOf:  "&",
	Deref:   "*",
	Plus:    "+",
	Minus:   "-",
	Not:     "!",
	Comp:    "~",
	PreInc:  "++",
	PreDec:  "--",
	PostInc: "++",
	PostDec: "--",
}

func (op UnaryOp) String() string { return unaryOpToStr[op] }

type BinaryOp int

const (
	Mul BinaryOp = iota
	Div
	Rem
	Add
	Sub
	Shl
	Shr
	Lt
	Lte
	Gt
	Gte
	Eq
	Neq
	BitAnd
	BitXor
	BitOr
	And
	Or
	Assign
	MulAssign
	DivAssign
	RemAssign
	AddAssign
	SubAssign
	ShlAssign
	ShrAssign
	BitAndAssign
	BitXorAssign
	BitOrAssign
)

var binaryOpToStr = [...]string{
	Mul:          "*",
	Div:          "/",
	Rem:          "%",
	Add:          "+",
	Sub:          "-",
	Shl:          "<<",
	Shr:          ">>",
	Lt:           "<",
	Lte:          "<=",
	Gt:           ">",
	Gte:          ">=",
	Eq:           "==",
	Neq:          "!=",
	BitAnd:       "&",
	BitXor:       "^",
	BitOr:        "|",
	And:          "&&",
	Or:           "||",
	Assign:       "=",
	MulAssign:    "*=",
	DivAssign:    "/=",
	RemAssign:    "%=",
	AddAssign:    "+=",
	SubAssign:    "-=",
	ShlAssign:    "<<=",
	ShrAssign:    ">>=",
	BitAndAssign: "&=",
	BitXorAssign: "^=",
	BitOrAssign:  "|=",
}

func (op BinaryOp) String() string { return binaryOpToStr[op] }

func (op BinaryOp) IsAssign() bool { return op >= Assign }

var binaryPrec = [...]int{
	Mul:    10,
	Div:    10,
	Rem:    10,
	Add:    9,
	Sub:    9,
	Shl:    8,
	Shr:    8,
	Lt:     7,
	Lte:    7,
	Gt:     7,
	Gte:    7,
	Eq:     6,
	Neq:    6,
	BitAnd: 5,
	BitXor: 4,
	BitOr:  3,
	And:    2,
	Or:     1,
}

// Precedence orders the non-assignment operators, higher binds tighter.
// Assignments have precedence 0.
func (op BinaryOp) Precedence() int {
	if op.IsAssign() {
		return 0
	}
	return binaryPrec[op]
}

// IsComparison covers the relational, equality and logical operators, all of
// which yield bool.
func (op BinaryOp) IsComparison() bool {
	switch op {
	case Lt, Lte, Gt, Gte, Eq, Neq, And, Or:
		return true
	}
	return false
}

// Stmt is a statement node.
type Stmt interface {
	isStmt()
}

type ExprStmt struct {
	Expr Expr
}

type VarDecl struct {
	Type   Type
	Name   string
	Init   Expr
	Static bool
}

type Param struct {
	Type Type
	Name string
}

type FuncDecl struct {
	Ret      Type
	Name     string
	Params   []Param
	Variadic bool
}

type Block struct {
	Stmts []Stmt
}

type If struct {
	Cond Expr
	Then []Stmt
	Else []Stmt
}

type DoWhile struct {
	Body []Stmt
	Cond Expr
}

type AsmStmt struct {
	Asm *Asm
}

func (*ExprStmt) isStmt() {}
func (*VarDecl) isStmt()  {}
func (*FuncDecl) isStmt() {}
func (*Block) isStmt()    {}
func (*If) isStmt()       {}
func (*DoWhile) isStmt()  {}
func (*AsmStmt) isStmt()  {}

// MacroBody is what a macro expands to, exactly one of Expr and Stmt is set.
type MacroBody struct {
	Expr Expr
	Stmt Stmt
}

// CloneExpr returns a deep copy of e, types included.
func CloneExpr(e Expr) Expr {
	switch e := e.(type) {
	case nil:
		return nil
	case *Variable:
		c := *e
		return &c
	case *FuncCall:
		c := *e
		c.Args = cloneExprs(e.Args)
		return &c
	case *Cast:
		c := *e
		c.Expr = CloneExpr(e.Expr)
		return &c
	case *Literal:
		c := *e
		return &c
	case *FieldAccess:
		c := *e
		c.Expr = CloneExpr(e.Expr)
		return &c
	case *ArrayAccess:
		c := *e
		c.Expr = CloneExpr(e.Expr)
		c.Index = CloneExpr(e.Index)
		return &c
	case *Stringify:
		c := *e
		return &c
	case *Concat:
		c := *e
		c.Parts = cloneExprs(e.Parts)
		return &c
	case *Unary:
		c := *e
		c.Expr = CloneExpr(e.Expr)
		return &c
	case *Binary:
		c := *e
		c.LHS = CloneExpr(e.LHS)
		c.RHS = CloneExpr(e.RHS)
		return &c
	case *Ternary:
		c := *e
		c.Cond = CloneExpr(e.Cond)
		c.Then = CloneExpr(e.Then)
		c.Else = CloneExpr(e.Else)
		return &c
	case *Asm:
		return cloneAsm(e)
	}
	panic("unknown expression node")
}

func cloneExprs(es []Expr) []Expr {
	if es == nil {
		return nil
	}
	ret := make([]Expr, len(es))
	for i, e := range es {
		ret[i] = CloneExpr(e)
	}
	return ret
}

func cloneAsm(a *Asm) *Asm {
	c := *a
	c.Outputs = cloneOperands(a.Outputs)
	c.Inputs = cloneOperands(a.Inputs)
	c.Clobbers = append([]string(nil), a.Clobbers...)
	c.Labels = append([]string(nil), a.Labels...)
	return &c
}

func cloneOperands(ops []AsmOperand) []AsmOperand {
	if ops == nil {
		return nil
	}
	ret := make([]AsmOperand, len(ops))
	for i, op := range ops {
		ret[i] = op
		ret[i].Expr = CloneExpr(op.Expr)
	}
	return ret
}

// CloneStmt returns a deep copy of s.
func CloneStmt(s Stmt) Stmt {
	switch s := s.(type) {
	case nil:
		return nil
	case *ExprStmt:
		return &ExprStmt{Expr: CloneExpr(s.Expr)}
	case *VarDecl:
		c := *s
		c.Init = CloneExpr(s.Init)
		return &c
	case *FuncDecl:
		c := *s
		c.Params = append([]Param(nil), s.Params...)
		return &c
	case *Block:
		return &Block{Stmts: cloneStmts(s.Stmts)}
	case *If:
		return &If{Cond: CloneExpr(s.Cond), Then: cloneStmts(s.Then), Else: cloneStmts(s.Else)}
	case *DoWhile:
		return &DoWhile{Body: cloneStmts(s.Body), Cond: CloneExpr(s.Cond)}
	case *AsmStmt:
		return &AsmStmt{Asm: cloneAsm(s.Asm)}
	}
	panic("unknown statement node")
}

func cloneStmts(ss []Stmt) []Stmt {
	if ss == nil {
		return nil
	}
	ret := make([]Stmt, len(ss))
	for i, s := range ss {
		ret[i] = CloneStmt(s)
	}
	return ret
}

// Clone returns a deep copy of the body.
func (b *MacroBody) Clone() *MacroBody {
	return &MacroBody{Expr: CloneExpr(b.Expr), Stmt: CloneStmt(b.Stmt)}
}
