package emit

import (
	"github.com/andrewchambers/cmacro/parse"
)

type rustScalar struct {
	name string
	// ffi types live under the oracle's FFI prefix.
	ffi bool
}

var builtinToRust = [...]rustScalar{
	parse.Float:      {"f32", false},
	parse.Double:     {"f64", false},
	parse.LongDouble: {"f64", false},
	parse.Bool:       {"bool", false},
	parse.Char:       {"c_char", true},
	parse.SChar:      {"c_schar", true},
	parse.UChar:      {"c_uchar", true},
	parse.Char8:      {"u8", false},
	parse.Char16:     {"u16", false},
	parse.Char32:     {"u32", false},
	parse.Short:      {"c_short", true},
	parse.UShort:     {"c_ushort", true},
	parse.Int:        {"c_int", true},
	parse.UInt:       {"c_uint", true},
	parse.Long:       {"c_long", true},
	parse.ULong:      {"c_ulong", true},
	parse.LongLong:   {"c_longlong", true},
	parse.ULongLong:  {"c_ulonglong", true},
	parse.SizeT:      {"usize", false},
	parse.SSizeT:     {"isize", false},
	parse.Void:       {"c_void", true},
}

func builtinName(prefix string, b parse.BuiltInType) string {
	s := builtinToRust[b]
	if s.ffi && prefix != "" {
		return prefix + "::" + s.name
	}
	return s.name
}

// BuiltInFromRust maps a Rust spelling back to the C type it stands for.
// long double has no Rust type of its own and reads back as double.
func BuiltInFromRust(prefix, s string) (parse.BuiltInType, bool) {
	for b := range builtinToRust {
		if builtinName(prefix, parse.BuiltInType(b)) == s {
			return parse.BuiltInType(b), true
		}
	}
	return 0, false
}

// Type renders t as a Rust type. A nil type is left to inference.
func Type(ctx *parse.LocalContext, t parse.Type) string {
	switch t := t.(type) {
	case nil:
		return "_"
	case parse.BuiltInType:
		return builtinName(ctx.FFIPrefix(), t)
	case *parse.Identifier:
		return rustIdent(t.Name)
	case *parse.Path:
		return t.String()
	case *parse.Ptr:
		if q, ok := t.To.(*parse.Qualified); ok && q.Qual&parse.Const != 0 {
			return "*const " + Type(ctx, t.To)
		}
		return "*mut " + Type(ctx, t.To)
	case *parse.Qualified:
		return Type(ctx, t.Type)
	}
	panic("unknown type")
}

func isUnsigned(t parse.Type) bool {
	b, ok := parse.Unqualified(t).(parse.BuiltInType)
	if !ok {
		return false
	}
	switch b {
	case parse.UChar, parse.Char8, parse.Char16, parse.Char32, parse.UShort, parse.UInt, parse.ULong, parse.ULongLong, parse.SizeT:
		return true
	}
	return false
}

var rustKeywords = map[string]bool{
	"as": true, "async": true, "await": true, "break": true, "const": true,
	"continue": true, "dyn": true, "else": true, "enum": true, "extern": true,
	"fn": true, "for": true, "if": true, "impl": true, "in": true, "let": true,
	"loop": true, "match": true, "mod": true, "move": true, "mut": true,
	"pub": true, "ref": true, "return": true, "static": true, "struct": true,
	"trait": true, "type": true, "unsafe": true, "use": true, "where": true,
	"while": true, "abstract": true, "become": true, "box": true, "do": true,
	"final": true, "macro": true, "override": true, "priv": true, "try": true,
	"typeof": true, "unsized": true, "virtual": true, "yield": true,
}

func rustIdent(s string) string {
	if rustKeywords[s] {
		return "r#" + s
	}
	return s
}
