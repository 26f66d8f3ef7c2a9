package parse

// The parser reads (a) - b * 3 as a cast of -b, which binds tighter than any
// binary operator. When finish learns that a is a value the operators around
// the cast have to be associated again: regroup flattens the run of binary
// operators that are not separated by parentheses and builds it anew with C
// precedence.

type opRun struct {
	operands []Expr
	ops      []BinaryOp
}

func (r *opRun) append(o *opRun) {
	r.operands = append(r.operands, o.operands...)
	r.ops = append(r.ops, o.ops...)
}

// regroup returns the reassociated expression and true when e contains a
// cast that is really a binary operation.
func regroup(ctx *LocalContext, e Expr) (Expr, bool) {
	run, changed := flatten(ctx, e, true)
	if !changed {
		return e, false
	}
	pos := 0
	ret := run.climb(&pos, run.operands[0], 1)
	if e.grouped() {
		ret.group()
	}
	return ret, true
}

func atom(e Expr) *opRun {
	return &opRun{operands: []Expr{e}}
}

func flatten(ctx *LocalContext, e Expr, top bool) (*opRun, bool) {
	if !top && e.grouped() {
		return atom(e), false
	}
	switch e := e.(type) {
	case *Binary:
		if e.Op.IsAssign() {
			break
		}
		l, lchanged := flatten(ctx, e.LHS, false)
		r, rchanged := flatten(ctx, e.RHS, false)
		if !lchanged && !rchanged {
			break
		}
		l.ops = append(l.ops, e.Op)
		l.append(r)
		return l, true
	case *Cast:
		if name, op, operand, ok := castAsBinary(ctx, e); ok {
			run := atom(&Variable{Name: name})
			run.ops = append(run.ops, op)
			rest, _ := flatten(ctx, operand, false)
			run.append(rest)
			return run, true
		}
		// A real cast applies to the first operand only.
		run, changed := flatten(ctx, e.Expr, false)
		if !changed {
			break
		}
		e.Expr = run.operands[0]
		run.operands[0] = e
		return run, true
	case *Unary:
		switch e.Op {
		case AddrOf, Deref, Plus, Minus, Not, Comp:
		default:
			return atom(e), false
		}
		run, changed := flatten(ctx, e.Expr, false)
		if !changed {
			break
		}
		e.Expr = run.operands[0]
		run.operands[0] = e
		return run, true
	}
	return atom(e), false
}

// climb extends l with the operators at pos and after it that bind at least
// as tightly as minPrec. All operators are left associative.
func (r *opRun) climb(pos *int, l Expr, minPrec int) Expr {
	for *pos < len(r.ops) && r.ops[*pos].Precedence() >= minPrec {
		op := r.ops[*pos]
		*pos++
		rhs := r.operands[*pos]
		for *pos < len(r.ops) && r.ops[*pos].Precedence() > op.Precedence() {
			rhs = r.climb(pos, rhs, op.Precedence()+1)
		}
		l = &Binary{Op: op, LHS: l, RHS: rhs}
	}
	return l
}
