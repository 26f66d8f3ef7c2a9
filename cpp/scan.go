package cpp

import (
	"errors"
	"fmt"
	"io"
)

const maxIncludeDepth = 200

// Event reports one #define or #undef applied by a Scanner.
type Event struct {
	Name string
	Pos  FilePos
	// Fn is set for function-like definitions.
	Fn bool
	// Redefined is set when a different definition was replaced.
	Redefined bool
	// Undef is set for #undef, Redefined then reports whether the macro existed.
	Undef bool
}

// Scanner collects macro definitions from a header and the headers it
// includes. Conditional directives are not evaluated, every #define and
// #undef is applied in source order.
type Scanner struct {
	lexers   []*Lexer
	is       IncludeSearcher
	included map[string]bool
	unget    *Token

	// Comments are only kept inside macro bodies.
	keepComments bool
}

type scanbreakout struct {
	err error
}

func NewScanner(l *Lexer, is IncludeSearcher) *Scanner {
	ret := new(Scanner)
	ret.lexers = []*Lexer{l}
	ret.is = is
	ret.included = make(map[string]bool)
	ret.included[l.pos.File] = true
	return ret
}

func (s *Scanner) scanError(e string, pos FilePos) {
	panic(&scanbreakout{err: ErrWithLoc(errors.New(e), pos)})
}

func (s *Scanner) next() *Token {
	if s.unget != nil {
		t := s.unget
		s.unget = nil
		return t
	}
	for {
		lx := s.lexers[len(s.lexers)-1]
		t, err := lx.Next()
		if err != nil {
			panic(&scanbreakout{err: err})
		}
		if t.Kind == COMMENT && !s.keepComments {
			continue
		}
		if t.Kind == EOF && len(s.lexers) > 1 {
			s.lexers = s.lexers[:len(s.lexers)-1]
			continue
		}
		return t
	}
}

func (s *Scanner) ungetToken(t *Token) {
	s.unget = t
}

// Scan applies every definition to ms and returns them in order.
func (s *Scanner) Scan(ms *MacroSet) (events []Event, err error) {
	defer func() {
		if e := recover(); e != nil {
			b, ok := e.(*scanbreakout)
			if !ok {
				panic(e)
			}
			err = b.err
		}
	}()
	for {
		t := s.next()
		switch t.Kind {
		case EOF:
			return events, nil
		case DIRECTIVE:
			if ev, ok := s.handleDirective(ms, t); ok {
				events = append(events, ev)
			}
		}
	}
}

func (s *Scanner) handleDirective(ms *MacroSet, dirTok *Token) (Event, bool) {
	switch dirTok.Val {
	case "define":
		return s.handleDefine(ms), true
	case "undef":
		return s.handleUndefine(ms), true
	case "include", "include_next", "import":
		s.handleInclude()
	default:
		s.skipDirective()
	}
	return Event{}, false
}

func (s *Scanner) skipDirective() {
	for {
		t := s.next()
		if t.Kind == END_DIRECTIVE || t.Kind == EOF {
			return
		}
	}
}

// readBody returns the raw tokens up to the end of the directive.
func (s *Scanner) readBody() []string {
	var body []string
	s.keepComments = true
	defer func() { s.keepComments = false }()
	for {
		t := s.next()
		if t.Kind == END_DIRECTIVE || t.Kind == EOF {
			return body
		}
		body = append(body, t.Val)
	}
}

func (s *Scanner) handleDefine(ms *MacroSet) Event {
	ident := s.next()
	if ident.Kind != IDENT {
		s.scanError("#define expected an ident", ident.Pos)
	}
	ev := Event{Name: ident.Val, Pos: ident.Pos}
	t := s.next()
	if t.Kind != FUNCLIKE_DEFINE {
		s.ungetToken(t)
		ev.Redefined = ms.DefineVarMacro(ident.Val, s.readBody())
		return ev
	}
	paren := s.next()
	if !paren.IsPunct("(") {
		panic("Bug, func like define without opening paren")
	}
	var params []string
	for {
		t := s.next()
		if t.IsPunct(")") && len(params) == 0 {
			break
		}
		if t.Kind != IDENT && !t.IsPunct("...") {
			s.scanError("Expected macro argument", t.Pos)
		}
		params = append(params, t.Val)
		t2 := s.next()
		if t2.IsPunct(",") && !t.IsPunct("...") {
			continue
		} else if t2.IsPunct(")") {
			break
		} else {
			s.scanError("Error in macro definition expected , or )", t2.Pos)
		}
	}
	ev.Fn = true
	ev.Redefined = ms.DefineFnMacro(ident.Val, params, s.readBody())
	return ev
}

func (s *Scanner) handleUndefine(ms *MacroSet) Event {
	ident := s.next()
	if ident.Kind != IDENT {
		s.scanError("#undef expected an ident", ident.Pos)
	}
	existed := ms.UndefineMacro(ident.Val)
	s.skipDirective()
	return Event{Name: ident.Val, Pos: ident.Pos, Undef: true, Redefined: existed}
}

func (s *Scanner) handleInclude() {
	tok := s.next()
	if tok.Kind != HEADER {
		s.scanError("expected a header", tok.Pos)
	}
	headerStr := tok.Val
	path := headerStr[1 : len(headerStr)-1]
	var headerName string
	var rdr io.Reader
	var err error
	switch headerStr[0] {
	case '<':
		headerName, rdr, err = s.is.IncludeAngled(tok.Pos.File, path)
	case '"':
		headerName, rdr, err = s.is.IncludeQuote(tok.Pos.File, path)
	default:
		s.scanError("internal error", tok.Pos)
	}
	end := s.next()
	if end.Kind != END_DIRECTIVE && end.Kind != EOF {
		s.scanError("Expected newline after include", end.Pos)
	}
	if err != nil {
		s.scanError(fmt.Sprintf("error during include %s", err), tok.Pos)
	}
	if c, ok := rdr.(io.Closer); ok {
		defer c.Close()
	}
	// Without conditionals include guards do nothing, so every header is
	// read at most once.
	if s.included[headerName] {
		return
	}
	if len(s.lexers) >= maxIncludeDepth {
		s.scanError("includes nested too deeply", tok.Pos)
	}
	s.included[headerName] = true
	s.lexers = append(s.lexers, Lex(headerName, rdr))
}
