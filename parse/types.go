package parse

import (
	"fmt"
	"strings"

	"github.com/andrewchambers/cmacro/cpp"
)

// Type is a C type as far as macro translation needs one.
type Type interface {
	String() string
	isType()
}

type BuiltInType int

const (
	Float BuiltInType = iota
	Double
	LongDouble
	Bool
	Char
	SChar
	UChar
	Char8
	Char16
	Char32
	Short
	UShort
	Int
	UInt
	Long
	ULong
	LongLong
	ULongLong
	SizeT
	SSizeT
	Void
)

var builtInToStr = [...]string{
	Float:      "float",
	Double:     "double",
	LongDouble: "long double",
	Bool:       "bool",
	Char:       "char",
	SChar:      "signed char",
	UChar:      "unsigned char",
	Char8:      "char8_t",
	Char16:     "char16_t",
	Char32:     "char32_t",
	Short:      "short",
	UShort:     "unsigned short",
	Int:        "int",
	UInt:       "unsigned int",
	Long:       "long",
	ULong:      "unsigned long",
	LongLong:   "long long",
	ULongLong:  "unsigned long long",
	SizeT:      "size_t",
	SSizeT:     "ssize_t",
	Void:       "void",
}

func (b BuiltInType) String() string { return builtInToStr[b] }
func (BuiltInType) isType()          {}

// IsInteger reports whether b is one of the integer types, bool and the
// character types included.
func (b BuiltInType) IsInteger() bool {
	switch b {
	case Float, Double, LongDouble, Void:
		return false
	}
	return true
}

func (b BuiltInType) IsFloat() bool {
	return b == Float || b == Double || b == LongDouble
}

// Identifier is a typedef name or a struct, union or enum tag.
type Identifier struct {
	Name   string
	Struct bool
}

func (t *Identifier) String() string {
	if t.Struct {
		return "struct " + t.Name
	}
	return t.Name
}
func (*Identifier) isType() {}

// Path is a type already spelled in the target language, e.g. ::libc::FILE.
type Path struct {
	LeadingColon bool
	Segments     []string
}

func (t *Path) String() string {
	s := strings.Join(t.Segments, "::")
	if t.LeadingColon {
		return "::" + s
	}
	return s
}
func (*Path) isType() {}

type Ptr struct {
	To Type
}

func (t *Ptr) String() string { return t.To.String() + " *" }
func (*Ptr) isType()          {}

type Qualifier int

const (
	Const Qualifier = 1 << iota
	Volatile
)

func (q Qualifier) String() string {
	switch q {
	case Const:
		return "const"
	case Volatile:
		return "volatile"
	case Const | Volatile:
		return "const volatile"
	}
	return ""
}

// Qualified never wraps another Qualified, use Qualify to build one.
type Qualified struct {
	Type Type
	Qual Qualifier
}

func (t *Qualified) String() string {
	if _, ok := t.Type.(*Ptr); ok {
		return t.Type.String() + " " + t.Qual.String()
	}
	return t.Qual.String() + " " + t.Type.String()
}
func (*Qualified) isType() {}

// Qualify adds q to t, merging with an existing qualifier.
func Qualify(t Type, q Qualifier) Type {
	if q == 0 {
		return t
	}
	if qt, ok := t.(*Qualified); ok {
		return &Qualified{Type: qt.Type, Qual: qt.Qual | q}
	}
	return &Qualified{Type: t, Qual: q}
}

// Unqualified strips a top level qualifier.
func Unqualified(t Type) Type {
	if qt, ok := t.(*Qualified); ok {
		return qt.Type
	}
	return t
}

func IsPtrType(t Type) bool {
	_, ok := Unqualified(t).(*Ptr)
	return ok
}

func IsVoid(t Type) bool {
	b, ok := t.(BuiltInType)
	return ok && b == Void
}

func IsIntType(t Type) bool {
	b, ok := Unqualified(t).(BuiltInType)
	return ok && b.IsInteger()
}

// Pointee returns the type a pointer type points to.
func Pointee(t Type) (Type, bool) {
	p, ok := Unqualified(t).(*Ptr)
	if !ok {
		return nil, false
	}
	return p.To, true
}

// TypesEqual compares types structurally. Two nil types are equal.
func TypesEqual(a, b Type) bool {
	switch a := a.(type) {
	case nil:
		return b == nil
	case BuiltInType:
		bt, ok := b.(BuiltInType)
		return ok && a == bt
	case *Identifier:
		bt, ok := b.(*Identifier)
		return ok && *a == *bt
	case *Path:
		bt, ok := b.(*Path)
		if !ok || a.LeadingColon != bt.LeadingColon || len(a.Segments) != len(bt.Segments) {
			return false
		}
		for i := range a.Segments {
			if a.Segments[i] != bt.Segments[i] {
				return false
			}
		}
		return true
	case *Ptr:
		bt, ok := b.(*Ptr)
		return ok && TypesEqual(a.To, bt.To)
	case *Qualified:
		bt, ok := b.(*Qualified)
		return ok && a.Qual == bt.Qual && TypesEqual(a.Type, bt.Type)
	}
	panic(fmt.Sprintf("unknown type %T", a))
}

// CharPtr is the type of a string literal after decay.
func CharPtr() Type {
	return &Ptr{To: Qualify(Char, Const)}
}

// ParseTypeString parses a type written as text, e.g. "const char *". Rust
// spellings are accepted too: anything containing "::" becomes a Path and
// "*const T" / "*mut T" become pointers.
func ParseTypeString(s string) (Type, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "::") || strings.HasPrefix(s, "*const ") || strings.HasPrefix(s, "*mut ") {
		return parseRustType(s)
	}
	var toks []cpp.Token
	for _, f := range strings.Fields(strings.ReplaceAll(s, "*", " * ")) {
		t := cpp.Classify(f, nil)
		if t.Kind != cpp.IDENT && !t.IsPunct("*") {
			return nil, &FinishError{Kind: UnsupportedType, Name: s}
		}
		toks = append(toks, t)
	}
	ty, err := ParseType(toks, ParseContext{})
	if err != nil {
		return nil, &FinishError{Kind: UnsupportedType, Name: s}
	}
	return ty, nil
}

func parseRustType(s string) (Type, error) {
	switch {
	case strings.HasPrefix(s, "*const "):
		to, err := parseRustType(strings.TrimSpace(s[len("*const "):]))
		if err != nil {
			return nil, err
		}
		return &Ptr{To: Qualify(to, Const)}, nil
	case strings.HasPrefix(s, "*mut "):
		to, err := parseRustType(strings.TrimSpace(s[len("*mut "):]))
		if err != nil {
			return nil, err
		}
		return &Ptr{To: to}, nil
	}
	ret := &Path{}
	rest := s
	if strings.HasPrefix(rest, "::") {
		ret.LeadingColon = true
		rest = rest[2:]
	}
	for _, seg := range strings.Split(rest, "::") {
		if _, ok := cpp.ParseIdent(seg); !ok {
			return nil, &FinishError{Kind: UnsupportedType, Name: s}
		}
		ret.Segments = append(ret.Segments, seg)
	}
	if !ret.LeadingColon && len(ret.Segments) == 1 {
		return &Identifier{Name: ret.Segments[0]}, nil
	}
	return ret, nil
}
