package parse

import (
	"github.com/andrewchambers/cmacro/cpp"
)

// foldUnary evaluates op applied to a literal. ok is false when the result
// is not a literal.
func foldUnary(op UnaryOp, l cpp.Lit) (cpp.Lit, bool, error) {
	switch l := l.(type) {
	case cpp.IntLit:
		t := l.Typed()
		switch op {
		case Plus:
			return l, true, nil
		case Minus:
			s := t.Suffix.Signed()
			return cpp.IntLit{Value: truncate(-t.Value, s), Suffix: s}, true, nil
		case Not:
			return cpp.IntLit{Value: boolValue(l.Value == 0), Suffix: l.Suffix}, true, nil
		case Comp:
			return cpp.IntLit{Value: truncate(^t.Value, t.Suffix), Suffix: t.Suffix}, true, nil
		}
	case cpp.FloatLit:
		switch op {
		case Plus:
			return l, true, nil
		case Minus:
			return cpp.FloatLit{Value: -l.Value, Suffix: l.Suffix}, true, nil
		case Not:
			return cpp.FloatLit{Value: float64(boolValue(l.Value == 0)), Suffix: l.Suffix}, true, nil
		case Comp:
			return nil, false, unsupported("~ on a floating point literal")
		}
	case cpp.StringLit:
		if op == Comp {
			return nil, false, unsupported("~ on a string literal")
		}
	}
	return nil, false, nil
}

func boolValue(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// foldBinary evaluates two literals of the same category. Integers are
// converted to their common C type first and the result wraps at the width
// of that type.
func foldBinary(op BinaryOp, a, b cpp.Lit) (cpp.Lit, bool, error) {
	switch a := a.(type) {
	case cpp.IntLit:
		b, ok := b.(cpp.IntLit)
		if !ok {
			return nil, false, nil
		}
		return foldInt(op, a, b)
	case cpp.FloatLit:
		b, ok := b.(cpp.FloatLit)
		if !ok {
			return nil, false, nil
		}
		return foldFloat(op, a, b)
	}
	return nil, false, nil
}

// truncate cuts v to the width of the type s denotes, then sign extends it
// back to 64 bits when that type is signed.
func truncate(v uint64, s cpp.IntSuffix) uint64 {
	switch {
	case s.Bits() == 64:
		return v
	case s.Unsigned():
		return uint64(uint32(v))
	}
	return uint64(int64(int32(v)))
}

// commonSuffix applies the usual arithmetic conversions.
func commonSuffix(a, b cpp.IntSuffix) cpp.IntSuffix {
	if a.Rank() < b.Rank() {
		a, b = b, a
	}
	if a.Unsigned() || !b.Unsigned() || a.Bits() > b.Bits() {
		return a
	}
	return a.ToUnsigned()
}

func foldInt(op BinaryOp, a, b cpp.IntLit) (cpp.Lit, bool, error) {
	a, b = a.Typed(), b.Typed()
	suffix := commonSuffix(a.Suffix, b.Suffix)
	if op == Shl || op == Shr {
		// The type of a shift is that of its left operand.
		suffix = a.Suffix
	}
	signed := !suffix.Unsigned()
	x, y := truncate(a.Value, suffix), truncate(b.Value, suffix)
	var v uint64
	switch op {
	case Mul:
		v = x * y
	case Div, Rem:
		if y == 0 {
			return nil, false, unsupported("division by zero")
		}
		switch {
		case signed && op == Div:
			v = uint64(int64(x) / int64(y))
		case signed:
			v = uint64(int64(x) % int64(y))
		case op == Div:
			v = x / y
		default:
			v = x % y
		}
	case Add:
		v = x + y
	case Sub:
		v = x - y
	case Shl, Shr:
		// Negative counts are huge here too.
		n := b.Value
		if n >= uint64(suffix.Bits()) {
			return nil, false, unsupported("shift by %d", int64(n))
		}
		switch {
		case op == Shl:
			v = x << n
		case signed:
			v = uint64(int64(x) >> n)
		default:
			v = x >> n
		}
	case BitAnd:
		v = x & y
	case BitOr:
		v = x | y
	case BitXor:
		v = x ^ y
	default:
		return nil, false, nil
	}
	return cpp.IntLit{Value: truncate(v, suffix), Suffix: suffix}, true, nil
}

func floatRank(s cpp.FloatSuffix) int {
	switch s {
	case cpp.FloatF:
		return 0
	case cpp.FloatDouble:
		return 1
	}
	return 2
}

func foldFloat(op BinaryOp, a, b cpp.FloatLit) (cpp.Lit, bool, error) {
	suffix := a.Suffix
	if floatRank(b.Suffix) > floatRank(suffix) {
		suffix = b.Suffix
	}
	var v float64
	switch op {
	case Mul:
		v = a.Value * b.Value
	case Div:
		if b.Value == 0 {
			return nil, false, unsupported("division by zero")
		}
		v = a.Value / b.Value
	case Add:
		v = a.Value + b.Value
	case Sub:
		v = a.Value - b.Value
	default:
		return nil, false, nil
	}
	return cpp.FloatLit{Value: v, Suffix: suffix}, true, nil
}

// literalType is the C type of a literal. Unsuffixed integers have no type
// so that they adopt the type of whatever they are combined with.
func literalType(l cpp.Lit) Type {
	switch l := l.(type) {
	case cpp.IntLit:
		switch l.Suffix {
		case cpp.SuffixU:
			return UInt
		case cpp.SuffixL:
			return Long
		case cpp.SuffixUL:
			return ULong
		case cpp.SuffixLL:
			return LongLong
		case cpp.SuffixULL:
			return ULongLong
		case cpp.SuffixZ:
			return SSizeT
		case cpp.SuffixUZ:
			return SizeT
		}
		return nil
	case cpp.FloatLit:
		switch l.Suffix {
		case cpp.FloatF:
			return Float
		case cpp.FloatL:
			return LongDouble
		}
		return Double
	case cpp.CharLit:
		return charType(l.Enc)
	case cpp.StringLit:
		return &Ptr{To: Qualify(charType(l.Enc), Const)}
	}
	return nil
}

func charType(enc cpp.Encoding) Type {
	switch enc {
	case cpp.UTF8:
		return Char8
	case cpp.UTF16:
		return Char16
	case cpp.UTF32:
		return Char32
	case cpp.Wide:
		return &Identifier{Name: "wchar_t"}
	}
	return Char
}
