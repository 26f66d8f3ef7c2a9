package cpp

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// Lexer splits a C source file into raw preprocessing tokens. Comments are
// kept as COMMENT tokens and backslash-newline pairs are spliced away.
// Directive lines are delimited by DIRECTIVE and END_DIRECTIVE tokens.
type Lexer struct {
	src []rune
	off int

	pos       FilePos
	lastOff   int
	lastPos   FilePos
	markedPos FilePos
	lastChar  rune
	// At the beginning on line not including whitespace.
	bol bool
	// Set to true if we have hit the end of file.
	eof bool
	// Set to true if we are currently reading a # directive line
	inDirective bool

	pending []*Token
	err     error
}

type breakout struct {
	err error
}

// Lex reads the whole of r and returns a lexer over it.
// fname is used for error messages when showing the source location.
// No preprocessing is done, this is just pure reading of the unprocessed
// source file.
func Lex(fname string, r io.Reader) *Lexer {
	lx := new(Lexer)
	lx.pos.File = fname
	lx.pos.Line = 1
	lx.pos.Col = 1
	lx.markedPos = lx.pos
	lx.lastPos = lx.pos
	lx.bol = true
	data, err := io.ReadAll(r)
	if err != nil {
		lx.err = ErrWithLoc(err, lx.pos)
		return lx
	}
	lx.src = bytes.Runes(data)
	return lx
}

func (lx *Lexer) Next() (tok *Token, err error) {
	if lx.err != nil {
		return &Token{Kind: ERROR, Val: lx.err.Error(), Pos: lx.pos}, lx.err
	}
	defer func() {
		if e := recover(); e != nil {
			b, ok := e.(*breakout)
			if !ok {
				panic(e)
			}
			lx.err = b.err
			tok = &Token{Kind: ERROR, Val: b.err.Error(), Pos: lx.pos}
			err = b.err
		}
	}()
	for len(lx.pending) == 0 {
		lx.lexOne()
	}
	tok = lx.pending[0]
	lx.pending = lx.pending[1:]
	return tok, nil
}

func (lx *Lexer) markPos() {
	lx.markedPos = lx.pos
}

func (lx *Lexer) sendTok(kind TokenKind, val string) {
	var tok Token
	tok.Kind = kind
	tok.Val = val
	tok.Pos = lx.markedPos
	switch kind {
	case END_DIRECTIVE, COMMENT:
		// Neither ends the start of a line.
	default:
		lx.bol = false
	}
	lx.pending = append(lx.pending, &tok)
}

func (lx *Lexer) unreadRune() {
	lx.pos = lx.lastPos
	lx.off = lx.lastOff
	if lx.lastChar == '\n' {
		lx.bol = false
	}
	lx.eof = false
}

func (lx *Lexer) readRune() (rune, bool) {
	lx.lastPos = lx.pos
	lx.lastOff = lx.off
	for {
		if lx.off >= len(lx.src) {
			lx.eof = true
			lx.lastChar = 0
			return 0, true
		}
		r := lx.src[lx.off]
		if r == '\\' && lx.spliceLen() != 0 {
			lx.off += lx.spliceLen()
			lx.pos.Line += 1
			lx.pos.Col = 1
			continue
		}
		lx.off++
		switch r {
		case '\n':
			lx.pos.Line += 1
			lx.pos.Col = 1
			lx.bol = true
		case '\t':
			lx.pos.Col += 4
		default:
			lx.pos.Col += 1
		}
		lx.lastChar = r
		return r, false
	}
}

// spliceLen is the length of a backslash-newline at the current offset.
func (lx *Lexer) spliceLen() int {
	rest := lx.src[lx.off:]
	if len(rest) >= 2 && rest[1] == '\n' {
		return 2
	}
	if len(rest) >= 3 && rest[1] == '\r' && rest[2] == '\n' {
		return 3
	}
	return 0
}

func (lx *Lexer) peekRune() rune {
	r, eof := lx.readRune()
	if eof {
		return 0
	}
	lx.unreadRune()
	return r
}

func (lx *Lexer) Error(e string) {
	panic(&breakout{err: ErrWithLoc(errors.New(e), lx.pos)})
}

func (lx *Lexer) lexOne() {
	lx.markPos()
	first, eof := lx.readRune()
	if eof {
		if lx.inDirective {
			lx.sendTok(END_DIRECTIVE, "")
			lx.inDirective = false
		}
		lx.sendTok(EOF, "")
		return
	}
	switch {
	case isValidIdentStart(first) || (first == '\\' && lx.atUCN()):
		lx.unreadRune()
		lx.readIdentOrLiteral()
	case isNumeric(first):
		lx.unreadRune()
		lx.readNumber("")
	case first == '.' && isNumeric(lx.peekRune()):
		lx.readNumber(".")
	case isWhiteSpace(first):
		lx.unreadRune()
		lx.skipWhiteSpace()
	case first == '#' && lx.isAtLineStart() && !lx.inDirective:
		lx.readDirective()
	case first == '\'' || first == '"':
		lx.unreadRune()
		lx.readQuoted("")
	case first == '/' && lx.peekRune() == '*':
		lx.readBlockComment()
	case first == '/' && lx.peekRune() == '/':
		lx.readLineComment()
	default:
		lx.readPunct(first)
	}
}

// atUCN reports whether a universal character name follows a backslash
// that was just read.
func (lx *Lexer) atUCN() bool {
	if lx.off >= len(lx.src) {
		return false
	}
	switch lx.src[lx.off] {
	case 'u', 'U':
		return true
	}
	return false
}

func (lx *Lexer) readPunct(first rune) {
	start := lx.off - 1
	for n := 4; n >= 2; n-- {
		if start+n > len(lx.src) {
			continue
		}
		p := string(lx.src[start : start+n])
		if !IsPunctuator(p) {
			continue
		}
		for i := 1; i < n; i++ {
			lx.readRune()
		}
		lx.sendTok(PUNCT, p)
		return
	}
	if IsPunctuator(string(first)) {
		lx.sendTok(PUNCT, string(first))
		return
	}
	lx.sendTok(PLAIN, string(first))
}

func (lx *Lexer) readBlockComment() {
	var buff bytes.Buffer
	buff.WriteRune('/')
	r, _ := lx.readRune()
	buff.WriteRune(r)
	for {
		c, eof := lx.readRune()
		if eof {
			lx.Error("unclosed comment.")
		}
		buff.WriteRune(c)
		if c == '*' {
			closeBar, eof := lx.readRune()
			if eof {
				lx.Error("unclosed comment.")
			}
			if closeBar == '/' {
				buff.WriteRune(closeBar)
				break
			}
			//Unread so that we dont lose newlines.
			lx.unreadRune()
		}
	}
	lx.sendTok(COMMENT, buff.String())
}

func (lx *Lexer) readLineComment() {
	var buff bytes.Buffer
	buff.WriteRune('/')
	for {
		c, eof := lx.readRune()
		if eof {
			break
		}
		if c == '\n' {
			// The newline still ends a directive.
			lx.unreadRune()
			break
		}
		buff.WriteRune(c)
	}
	lx.sendTok(COMMENT, buff.String())
}

func (lx *Lexer) readDirective() {
	directiveLine := lx.pos.Line
	lx.skipLineSpace()
	if lx.pos.Line != directiveLine {
		return
	}
	var buff bytes.Buffer
	lx.markPos()
	directiveChar, eof := lx.readRune()
	if eof {
		return
	}
	if !isAlpha(directiveChar) {
		// The null directive or something the scanner will reject.
		lx.unreadRune()
		lx.inDirective = true
		lx.sendTok(DIRECTIVE, "")
		return
	}
	lx.inDirective = true
	for isAlpha(directiveChar) {
		buff.WriteRune(directiveChar)
		directiveChar, eof = lx.readRune()
	}
	if !eof {
		lx.unreadRune()
	}
	directive := buff.String()
	lx.sendTok(DIRECTIVE, directive)
	switch directive {
	case "include", "include_next", "import":
		lx.readHeaderInclude()
	case "define":
		lx.readDefine()
	}
}

func (lx *Lexer) readDefine() {
	lx.skipLineSpace()
	lx.markPos()
	r, eof := lx.readRune()
	if eof || r == '\n' {
		lx.Error("no identifier after define")
	}
	if !isValidIdentStart(r) {
		lx.Error("macro names must be identifiers")
	}
	lx.unreadRune()
	lx.readIdentOrLiteral()
	r, eof = lx.readRune()
	if eof {
		return
	}
	lx.unreadRune()
	//Distinguish between a funclike macro
	//and a regular macro.
	if r == '(' {
		lx.markPos()
		lx.sendTok(FUNCLIKE_DEFINE, "")
	}
}

func (lx *Lexer) readHeaderInclude() {
	var buff bytes.Buffer
	lx.skipLineSpace()
	lx.markPos()
	opening, eof := lx.readRune()
	if eof {
		return
	}
	var terminator rune
	switch opening {
	case '"':
		terminator = '"'
	case '<':
		terminator = '>'
	default:
		// A computed include, left to the scanner.
		lx.unreadRune()
		return
	}
	buff.WriteRune(opening)
	for {
		c, eof := lx.readRune()
		if eof {
			lx.Error("EOF encountered in header include.")
		}
		if c == '\n' {
			lx.Error("new line in header include.")
		}
		buff.WriteRune(c)
		if c == terminator {
			break
		}
	}
	lx.sendTok(HEADER, buff.String())
}

func (lx *Lexer) readIdentOrLiteral() {
	var buff bytes.Buffer
	lx.markPos()
	for {
		b, eof := lx.readRune()
		if eof {
			break
		}
		if b == '\\' && lx.atUCN() {
			buff.WriteRune(b)
			continue
		}
		if !isValidIdentTail(b) {
			lx.unreadRune()
			break
		}
		buff.WriteRune(b)
	}
	str := buff.String()
	switch str {
	case "u8", "u", "U", "L":
		if q := lx.peekRune(); q == '"' || q == '\'' {
			lx.readQuoted(str)
			return
		}
	}
	if _, ok := ParseIdent(str); !ok {
		lx.sendTok(PLAIN, str)
		return
	}
	lx.sendTok(IDENT, str)
}

// readNumber reads a preprocessing number. It becomes a LITERAL only if it is
// a valid integer or floating constant.
func (lx *Lexer) readNumber(prefix string) {
	var buff bytes.Buffer
	buff.WriteString(prefix)
	for {
		r, eof := lx.readRune()
		if eof {
			break
		}
		if (r == '+' || r == '-') && buff.Len() != 0 {
			switch buff.Bytes()[buff.Len()-1] {
			case 'e', 'E', 'p', 'P':
				buff.WriteRune(r)
				continue
			}
		}
		if !isValidIdentTail(r) && r != '.' {
			lx.unreadRune()
			break
		}
		buff.WriteRune(r)
	}
	str := buff.String()
	if _, ok := ParseLit(str); ok {
		lx.sendTok(LITERAL, str)
		return
	}
	lx.sendTok(PLAIN, str)
}

// readQuoted reads a character or string literal after its encoding prefix.
// An unterminated literal becomes a PLAIN token ending at the newline.
func (lx *Lexer) readQuoted(prefix string) {
	var buff bytes.Buffer
	buff.WriteString(prefix)
	quote, _ := lx.readRune()
	buff.WriteRune(quote)
	for {
		r, eof := lx.readRune()
		if eof {
			lx.sendTok(PLAIN, buff.String())
			return
		}
		if r == '\n' {
			lx.unreadRune()
			lx.sendTok(PLAIN, buff.String())
			return
		}
		buff.WriteRune(r)
		if r == '\\' {
			esc, eof := lx.readRune()
			if eof {
				continue
			}
			if esc == '\n' {
				lx.unreadRune()
				continue
			}
			buff.WriteRune(esc)
			continue
		}
		if r == quote {
			break
		}
	}
	str := buff.String()
	if _, ok := ParseLit(str); ok {
		lx.sendTok(LITERAL, str)
		return
	}
	lx.sendTok(PLAIN, str)
}

func (lx *Lexer) skipWhiteSpace() {
	for {
		r, eof := lx.readRune()
		if eof {
			return
		}
		if !isWhiteSpace(r) {
			lx.unreadRune()
			break
		}
		if r == '\n' {
			if lx.inDirective {
				lx.markPos()
				lx.sendTok(END_DIRECTIVE, "")
				lx.inDirective = false
			}
		}
	}
}

// skipLineSpace skips whitespace without crossing a newline.
func (lx *Lexer) skipLineSpace() {
	for {
		r, eof := lx.readRune()
		if eof {
			return
		}
		if r == '\n' || !isWhiteSpace(r) {
			lx.unreadRune()
			return
		}
	}
}

func (lx *Lexer) isAtLineStart() bool {
	return lx.bol
}

// LexString lexes src completely and returns its tokens without the EOF.
func LexString(fname, src string) ([]*Token, error) {
	lx := Lex(fname, bytes.NewBufferString(src))
	var ret []*Token
	for {
		t, err := lx.Next()
		if err != nil {
			return nil, err
		}
		if t.Kind == EOF {
			return ret, nil
		}
		ret = append(ret, t)
	}
}

func (t *Token) debugString() string {
	return fmt.Sprintf("%s:%s:%d:%d", t.Kind, t.Val, t.Pos.Line, t.Pos.Col)
}
