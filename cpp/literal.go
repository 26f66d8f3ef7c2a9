package cpp

import (
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"
)

// Lit is the decoded payload of a LITERAL token.
type Lit interface {
	lit()
}

type IntSuffix int

const (
	NoSuffix IntSuffix = iota
	SuffixU
	SuffixL
	SuffixUL
	SuffixLL
	SuffixULL
	SuffixZ
	SuffixUZ
)

var intSuffixToStr = [...]string{
	NoSuffix:  "",
	SuffixU:   "u",
	SuffixL:   "l",
	SuffixUL:  "ul",
	SuffixLL:  "ll",
	SuffixULL: "ull",
	SuffixZ:   "z",
	SuffixUZ:  "uz",
}

func (s IntSuffix) String() string { return intSuffixToStr[s] }

func (s IntSuffix) Unsigned() bool {
	switch s {
	case SuffixU, SuffixUL, SuffixULL, SuffixUZ:
		return true
	}
	return false
}

// Signed returns the signed suffix of the same width.
func (s IntSuffix) Signed() IntSuffix {
	switch s {
	case SuffixU:
		return NoSuffix
	case SuffixUL:
		return SuffixL
	case SuffixULL:
		return SuffixLL
	case SuffixUZ:
		return SuffixZ
	}
	return s
}

// ToUnsigned returns the unsigned suffix of the same width.
func (s IntSuffix) ToUnsigned() IntSuffix {
	switch s {
	case NoSuffix:
		return SuffixU
	case SuffixL:
		return SuffixUL
	case SuffixLL:
		return SuffixULL
	case SuffixZ:
		return SuffixUZ
	}
	return s
}

// Bits is the width of the type the suffix denotes on an LP64 target.
func (s IntSuffix) Bits() int {
	switch s {
	case NoSuffix, SuffixU:
		return 32
	}
	return 64
}

// Rank orders suffixes by the width of the type they denote.
func (s IntSuffix) Rank() int {
	switch s {
	case NoSuffix:
		return 0
	case SuffixU:
		return 1
	case SuffixL:
		return 2
	case SuffixUL:
		return 3
	case SuffixZ:
		return 4
	case SuffixUZ:
		return 5
	case SuffixLL:
		return 6
	}
	return 7
}

type FloatSuffix int

const (
	FloatDouble FloatSuffix = iota
	FloatF
	FloatL
)

// Encoding is the prefix of a character or string literal.
type Encoding int

const (
	Ordinary Encoding = iota
	UTF8              // u8
	UTF16             // u
	UTF32             // U
	Wide              // L
)

var encodingPrefix = [...]string{
	Ordinary: "",
	UTF8:     "u8",
	UTF16:    "u",
	UTF32:    "U",
	Wide:     "L",
}

func (e Encoding) Prefix() string { return encodingPrefix[e] }

// Value is stored as a bit pattern, the suffix decides whether it is signed.
// Signed values are kept sign extended to 64 bits.
type IntLit struct {
	Value  uint64
	Suffix IntSuffix
	// NonDecimal is set for octal, hexadecimal and binary literals, which
	// may have an unsigned type without a u suffix.
	NonDecimal bool
}

// Typed returns l with the suffix of the type C 6.4.4.1 gives it: the first
// type of the suffix's list that can represent the value. An unsuffixed
// decimal is int or long, an unsuffixed octal or hexadecimal literal may
// also be unsigned int or unsigned long.
func (l IntLit) Typed() IntLit {
	v := l.Value
	switch l.Suffix {
	case NoSuffix:
		if !l.NonDecimal {
			if n := int64(v); n >= math.MinInt32 && n <= math.MaxInt32 {
				return l
			}
			l.Suffix = SuffixL
			if v > math.MaxInt64 {
				l.Suffix = SuffixUL
			}
			return l
		}
		switch {
		case v <= math.MaxInt32:
		case v <= math.MaxUint32:
			l.Suffix = SuffixU
		case v <= math.MaxInt64:
			l.Suffix = SuffixL
		default:
			l.Suffix = SuffixUL
		}
	case SuffixU:
		if v > math.MaxUint32 {
			l.Suffix = SuffixUL
		}
	case SuffixL, SuffixLL, SuffixZ:
		if l.NonDecimal && v > math.MaxInt64 {
			l.Suffix = l.Suffix.ToUnsigned()
		}
	}
	return l
}

type FloatLit struct {
	Value  float64
	Suffix FloatSuffix
}

type CharLit struct {
	Enc   Encoding
	Value uint32
}

// Ordinary and UTF8 strings use Bytes, the wider encodings use Units.
// Neither includes the terminating NUL.
type StringLit struct {
	Enc   Encoding
	Bytes []byte
	Units []uint32
}

func (IntLit) lit()    {}
func (FloatLit) lit()  {}
func (CharLit) lit()   {}
func (StringLit) lit() {}

// Len is the number of code units, without the terminator.
func (s StringLit) Len() int {
	if s.Enc == Ordinary || s.Enc == UTF8 {
		return len(s.Bytes)
	}
	return len(s.Units)
}

// Append concatenates two adjacent string literals, or reports false if
// their prefixes cannot be combined.
func (s StringLit) Append(o StringLit) (StringLit, bool) {
	enc := s.Enc
	switch {
	case s.Enc == o.Enc:
	case s.Enc == Ordinary:
		enc = o.Enc
	case o.Enc == Ordinary:
	default:
		return StringLit{}, false
	}
	ret := StringLit{Enc: enc}
	if enc == Ordinary || enc == UTF8 {
		ret.Bytes = append(append([]byte{}, s.Bytes...), o.Bytes...)
		return ret, true
	}
	ret.Units = append(append([]uint32{}, s.widen(enc)...), o.widen(enc)...)
	return ret, true
}

func (s StringLit) widen(enc Encoding) []uint32 {
	if s.Enc != Ordinary && s.Enc != UTF8 {
		return s.Units
	}
	return encodeUnits(enc, []rune(string(s.Bytes)))
}

func encodeUnits(enc Encoding, rs []rune) []uint32 {
	var units []uint32
	for _, r := range rs {
		if enc == UTF16 {
			if r1, r2 := utf16.EncodeRune(r); r1 != unicode.ReplacementChar {
				units = append(units, uint32(r1), uint32(r2))
				continue
			}
		}
		units = append(units, uint32(r))
	}
	return units
}

// ParseLit decodes a C integer, floating, character or string literal.
func ParseLit(s string) (Lit, bool) {
	if s == "" {
		return nil, false
	}
	if l, ok := parseStringLit(s); ok {
		return l, true
	}
	if l, ok := parseCharLit(s); ok {
		return l, true
	}
	if !isNumeric(rune(s[0])) && s[0] != '.' {
		return nil, false
	}
	if l, ok := parseIntLit(s); ok {
		return l, true
	}
	if l, ok := parseFloatLit(s); ok {
		return l, true
	}
	return nil, false
}

func parseIntSuffix(s string) (IntSuffix, bool) {
	switch strings.ToLower(s) {
	case "":
		return NoSuffix, true
	case "u":
		return SuffixU, true
	case "l":
		return SuffixL, true
	case "ul", "lu":
		return SuffixUL, true
	case "z":
		return SuffixZ, true
	case "uz", "zu":
		return SuffixUZ, true
	}
	// ll must not mix case.
	if strings.Contains(s, "lL") || strings.Contains(s, "Ll") {
		return NoSuffix, false
	}
	switch strings.ToLower(s) {
	case "ll":
		return SuffixLL, true
	case "ull", "llu":
		return SuffixULL, true
	}
	return NoSuffix, false
}

func parseIntLit(s string) (IntLit, bool) {
	base := 10
	digits := s
	switch {
	case len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X"):
		base = 16
		digits = s[2:]
	case len(s) > 2 && (s[:2] == "0b" || s[:2] == "0B"):
		base = 2
		digits = s[2:]
	case len(s) > 1 && s[0] == '0':
		base = 8
		digits = s[1:]
	}
	end := 0
	for end < len(digits) && isDigitOfBase(rune(digits[end]), base) {
		end++
	}
	if end == 0 && base != 8 {
		return IntLit{}, false
	}
	suffix, ok := parseIntSuffix(digits[end:])
	if !ok {
		return IntLit{}, false
	}
	if end == 0 {
		return IntLit{Value: 0, Suffix: suffix, NonDecimal: true}, true
	}
	v, err := strconv.ParseUint(digits[:end], base, 64)
	if err != nil {
		return IntLit{}, false
	}
	return IntLit{Value: v, Suffix: suffix, NonDecimal: base != 10}, true
}

func isDigitOfBase(r rune, base int) bool {
	switch base {
	case 2:
		return r == '0' || r == '1'
	case 8:
		return r >= '0' && r <= '7'
	case 16:
		return isHexDigit(r)
	}
	return isNumeric(r)
}

func parseFloatLit(s string) (FloatLit, bool) {
	suffix := FloatDouble
	body := s
	switch s[len(s)-1] {
	case 'f', 'F':
		suffix = FloatF
		body = s[:len(s)-1]
	case 'l', 'L':
		suffix = FloatL
		body = s[:len(s)-1]
	}
	hex := len(body) > 2 && (body[:2] == "0x" || body[:2] == "0X")
	if hex && suffix == FloatF {
		// 0x1f is an integer, a hex float needs an exponent.
		if !strings.ContainsAny(body, "pP") {
			return FloatLit{}, false
		}
	}
	if !validFloatBody(body, hex) {
		return FloatLit{}, false
	}
	v, err := strconv.ParseFloat(body, 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); !ok || ne.Err != strconv.ErrRange {
			return FloatLit{}, false
		}
	}
	return FloatLit{Value: v, Suffix: suffix}, true
}

func validFloatBody(s string, hex bool) bool {
	i := 0
	digit := isNumeric
	expChar := "eE"
	if hex {
		i = 2
		digit = isHexDigit
		expChar = "pP"
	}
	mantissa := 0
	sawPoint := false
	for ; i < len(s); i++ {
		c := rune(s[i])
		if digit(c) {
			mantissa++
			continue
		}
		if c == '.' && !sawPoint {
			sawPoint = true
			continue
		}
		break
	}
	if mantissa == 0 {
		return false
	}
	if i == len(s) {
		return sawPoint && !hex
	}
	if !strings.ContainsRune(expChar, rune(s[i])) {
		return false
	}
	i++
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	exp := 0
	for ; i < len(s) && isNumeric(rune(s[i])); i++ {
		exp++
	}
	return exp != 0 && i == len(s)
}

func splitEncoding(s string) (Encoding, string) {
	switch {
	case strings.HasPrefix(s, "u8"):
		return UTF8, s[2:]
	case strings.HasPrefix(s, "u"):
		return UTF16, s[1:]
	case strings.HasPrefix(s, "U"):
		return UTF32, s[1:]
	case strings.HasPrefix(s, "L"):
		return Wide, s[1:]
	}
	return Ordinary, s
}

func parseCharLit(s string) (CharLit, bool) {
	enc, rest := splitEncoding(s)
	if len(rest) < 3 || rest[0] != '\'' || rest[len(rest)-1] != '\'' {
		return CharLit{}, false
	}
	rs := []rune(rest[1 : len(rest)-1])
	vals, ok := decodeLiteralBody(rs, '\'')
	if !ok || len(vals) != 1 {
		return CharLit{}, false
	}
	v := vals[0]
	limit := uint32(0x10FFFF)
	switch enc {
	case Ordinary, UTF8:
		limit = 0xFF
		if v.ucn || (!v.escaped && v.value > 0x7F) {
			return CharLit{}, false
		}
	case UTF16:
		limit = 0xFFFF
	case UTF32, Wide:
		limit = 0xFFFFFFFF
	}
	if v.value > limit {
		return CharLit{}, false
	}
	return CharLit{Enc: enc, Value: v.value}, true
}

func parseStringLit(s string) (StringLit, bool) {
	enc, rest := splitEncoding(s)
	if len(rest) < 2 || rest[0] != '"' || rest[len(rest)-1] != '"' {
		return StringLit{}, false
	}
	rs := []rune(rest[1 : len(rest)-1])
	vals, ok := decodeLiteralBody(rs, '"')
	if !ok {
		return StringLit{}, false
	}
	ret := StringLit{Enc: enc}
	switch enc {
	case Ordinary, UTF8:
		ret.Bytes = []byte{}
		for _, v := range vals {
			if v.escaped && !v.ucn {
				if v.value > 0xFF {
					return StringLit{}, false
				}
				ret.Bytes = append(ret.Bytes, byte(v.value))
				continue
			}
			ret.Bytes = utf8.AppendRune(ret.Bytes, rune(v.value))
		}
	case UTF16:
		ret.Units = []uint32{}
		for _, v := range vals {
			if v.escaped && !v.ucn {
				if v.value > 0xFFFF {
					return StringLit{}, false
				}
				ret.Units = append(ret.Units, v.value)
				continue
			}
			ret.Units = append(ret.Units, encodeUnits(UTF16, []rune{rune(v.value)})...)
		}
	default:
		ret.Units = []uint32{}
		for _, v := range vals {
			ret.Units = append(ret.Units, v.value)
		}
	}
	return ret, true
}

type litChar struct {
	value   uint32
	escaped bool
	ucn     bool
}

// decodeLiteralBody decodes the characters between the quotes of a
// character or string literal.
func decodeLiteralBody(rs []rune, quote rune) ([]litChar, bool) {
	var ret []litChar
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case r == utf8.RuneError:
			return nil, false
		case r == quote || r == '\n':
			return nil, false
		case r != '\\':
			ret = append(ret, litChar{value: uint32(r)})
			i++
			continue
		}
		c, next, ok := readEscape(rs, i)
		if !ok {
			return nil, false
		}
		// Two escaped halves of a surrogate pair form one code point.
		if c.ucn && utf16.IsSurrogate(rune(c.value)) {
			c2, next2, ok := readEscape(rs, next)
			if !ok || !c2.ucn || c.value >= 0xDC00 || c2.value < 0xDC00 || c2.value > 0xDFFF {
				return nil, false
			}
			c.value = uint32(utf16.DecodeRune(rune(c.value), rune(c2.value)))
			next = next2
		}
		ret = append(ret, c)
		i = next
	}
	return ret, true
}

func readEscape(rs []rune, i int) (litChar, int, bool) {
	if i+1 >= len(rs) || rs[i] != '\\' {
		return litChar{}, i, false
	}
	i++
	c := litChar{escaped: true}
	switch r := rs[i]; r {
	case '\'', '"', '?', '\\':
		c.value = uint32(r)
		return c, i + 1, true
	case 'a':
		c.value = 7
	case 'b':
		c.value = 8
	case 'e':
		c.value = 27
	case 'f':
		c.value = 12
	case 'n':
		c.value = 10
	case 'r':
		c.value = 13
	case 't':
		c.value = 9
	case 'v':
		c.value = 11
	case 'x':
		i++
		start := i
		var v uint64
		for i < len(rs) && isHexDigit(rs[i]) {
			v = v<<4 | uint64(hexVal(rs[i]))
			if v > 0xFFFFFFFF {
				return litChar{}, i, false
			}
			i++
		}
		if i == start {
			return litChar{}, i, false
		}
		c.value = uint32(v)
		return c, i, true
	case 'u', 'U':
		n := 4
		if r == 'U' {
			n = 8
		}
		v, ok := readUCN(rs, i+1, n)
		if !ok {
			return litChar{}, i, false
		}
		c.value = v
		c.ucn = true
		return c, i + 1 + n, true
	default:
		if r < '0' || r > '7' {
			return litChar{}, i, false
		}
		var v uint32
		n := 0
		for i < len(rs) && n < 3 && rs[i] >= '0' && rs[i] <= '7' {
			v = v<<3 | uint32(rs[i]-'0')
			i++
			n++
		}
		c.value = v
		return c, i, true
	}
	return c, i + 1, true
}

// readUCN reads the n hex digits of a universal character name. Surrogates
// are returned as is so that the caller can pair them.
func readUCN(rs []rune, i, n int) (uint32, bool) {
	if i+n > len(rs) {
		return 0, false
	}
	var v uint32
	for _, r := range rs[i : i+n] {
		if !isHexDigit(r) {
			return 0, false
		}
		v = v<<4 | hexVal(r)
	}
	if v > unicode.MaxRune {
		return 0, false
	}
	return v, true
}

func hexVal(r rune) uint32 {
	switch {
	case r >= '0' && r <= '9':
		return uint32(r - '0')
	case r >= 'a' && r <= 'f':
		return uint32(r-'a') + 10
	}
	return uint32(r-'A') + 10
}

// ParseIdent returns the identifier spelled by s with universal character
// names decoded.
func ParseIdent(s string) (string, bool) {
	rs := []rune(s)
	if len(rs) == 0 {
		return "", false
	}
	var b strings.Builder
	for i := 0; i < len(rs); {
		r := rs[i]
		next := i + 1
		if r == '\\' {
			if i+1 >= len(rs) || (rs[i+1] != 'u' && rs[i+1] != 'U') {
				return "", false
			}
			n := 4
			if rs[i+1] == 'U' {
				n = 8
			}
			v, ok := readUCN(rs, i+2, n)
			if !ok || utf16.IsSurrogate(rune(v)) {
				return "", false
			}
			r = rune(v)
			next = i + 2 + n
		}
		if i == 0 && !isValidIdentStart(r) {
			return "", false
		}
		if i != 0 && !isValidIdentTail(r) {
			return "", false
		}
		b.WriteRune(r)
		i = next
	}
	return b.String(), true
}

// IsIdentContinue reports whether every rune of s may continue an identifier.
func IsIdentContinue(s string) bool {
	for _, r := range s {
		if !isValidIdentTail(r) {
			return false
		}
	}
	return true
}
