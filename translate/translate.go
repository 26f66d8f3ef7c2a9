// Package translate runs macros from a MacroSet through expansion, parsing,
// finishing and emission.
package translate

import (
	"context"
	"runtime"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/andrewchambers/cmacro/cpp"
	"github.com/andrewchambers/cmacro/emit"
	"github.com/andrewchambers/cmacro/oracle"
	"github.com/andrewchambers/cmacro/parse"
)

const DefaultCacheSize = 1024

type Options struct {
	// Jobs bounds TranslateAll, the number of CPUs when zero.
	Jobs int
	// Strict makes TranslateAll fail on the first macro that fails.
	Strict    bool
	CacheSize int
	Filter    *Filter
}

// Result is one translated macro.
type Result struct {
	Name string
	Fn   bool
	Form emit.Form
	// Type of the body, Void for statements and nil when unknown.
	Type parse.Type
	Ctx  *parse.LocalContext
	Body *parse.MacroBody
	Code string
}

// Item returns the result in the shape emit.Emit takes.
func (r *Result) Item() emit.Item {
	return emit.Item{Ctx: r.Ctx, Body: r.Body}
}

type parsed struct {
	pc   parse.ParseContext
	body *parse.MacroBody
	err  error
}

// Translator translates the macros of one MacroSet. It also serves as the
// oracle its macros are finished against, answering macro lookups from the
// set and everything else from the wrapped oracle.
//
// The MacroSet must not change while a Translator uses it.
type Translator struct {
	ms     *cpp.MacroSet
	oracle parse.Oracle
	log    logrus.FieldLogger
	opts   Options
	cache  *lru.Cache[string, parsed]
}

var _ parse.Oracle = (*Translator)(nil)

// New creates a Translator. A nil oracle knows nothing and a nil log
// discards everything.
func New(ms *cpp.MacroSet, o parse.Oracle, log logrus.FieldLogger, opts Options) *Translator {
	if o == nil {
		o = oracle.Identity{}
	}
	if opts.Jobs <= 0 {
		opts.Jobs = runtime.NumCPU()
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		log = l
	}
	cache, err := lru.New[string, parsed](opts.CacheSize)
	if err != nil {
		// Only reachable with a non-positive size.
		panic(err)
	}
	return &Translator{ms: ms, oracle: o, log: log, opts: opts, cache: cache}
}

func kind(fn bool) string {
	if fn {
		return "fn"
	}
	return "var"
}

// Names lists the macros selected by the filter, sorted.
func (t *Translator) Names() []string {
	var names []string
	for _, n := range append(t.ms.VarMacros(), t.ms.FnMacros()...) {
		if t.opts.Filter.Match(n) {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

// parse expands and parses a macro, handing out a private copy of the body.
func (t *Translator) parse(name string) (parse.ParseContext, *parse.MacroBody, error) {
	p, ok := t.cache.Get(name)
	if !ok {
		p = t.parseUncached(name)
		t.cache.Add(name, p)
	}
	if p.err != nil {
		return p.pc, nil, p.err
	}
	return p.pc, p.body.Clone(), nil
}

func (t *Translator) parseUncached(name string) parsed {
	var toks []cpp.Token
	var p parsed
	switch {
	case t.ms.IsVarMacro(name):
		p.pc = parse.VarMacroContext(name)
		toks, p.err = t.ms.ExpandVarMacro(name)
	case t.ms.IsFnMacro(name):
		var params []cpp.Token
		params, toks, p.err = t.ms.ExpandFnMacro(name)
		var names []string
		for _, prm := range params {
			names = append(names, prm.Val)
		}
		p.pc = parse.FnMacroContext(name, names)
	default:
		p.err = &cpp.ExpansionError{Kind: cpp.MacroNotFound, Name: name}
	}
	if p.err != nil {
		return p
	}
	p.body, p.err = parse.ParseMacroBody(toks, p.pc)
	return p
}

// Expansion is the expanded body of one macro as token text.
type Expansion struct {
	Name   string   `json:"name"`
	Params []string `json:"params,omitempty"`
	Tokens []string `json:"tokens"`
}

// Expand expands a macro without parsing it. Parameter references are shown
// by name.
func (t *Translator) Expand(name string) (*Expansion, error) {
	ret := &Expansion{Name: name, Tokens: []string{}}
	var toks []cpp.Token
	var err error
	if t.ms.IsFnMacro(name) {
		var params []cpp.Token
		params, toks, err = t.ms.ExpandFnMacro(name)
		for _, p := range params {
			ret.Params = append(ret.Params, p.Val)
		}
	} else {
		toks, err = t.ms.ExpandVarMacro(name)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "%s", name)
	}
	for _, tok := range toks {
		s := tok.String()
		if tok.Kind == cpp.MACRO_ARG && tok.Arg < len(ret.Params) {
			s = ret.Params[tok.Arg]
			if s == "..." {
				s = parse.VarArgsName
			}
		}
		ret.Tokens = append(ret.Tokens, s)
	}
	return ret, nil
}

// Translate runs one macro through the whole pipeline.
func (t *Translator) Translate(name string) (*Result, error) {
	pc, body, err := t.parse(name)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", name)
	}
	ctx := parse.NewLocalContext(pc, t)
	ty, err := body.Finish(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", name)
	}
	code, err := emit.Macro(ctx, body)
	if err != nil {
		return nil, err
	}
	return &Result{
		Name: name,
		Fn:   pc.Fn,
		Form: emit.FormOf(ctx, body),
		Type: ty,
		Ctx:  ctx,
		Body: body,
		Code: code,
	}, nil
}

// TranslateAll translates names concurrently. Results come back in the order
// of names. Failed macros are logged and left out, unless the translator is
// strict, in which case the first failure is returned.
func (t *Translator) TranslateAll(ctx context.Context, names []string) ([]*Result, error) {
	results := make([]*Result, len(names))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(t.opts.Jobs)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			log := t.log.WithFields(logrus.Fields{
				"macro": name,
				"kind":  kind(t.ms.IsFnMacro(name)),
			})
			r, err := t.Translate(name)
			if err != nil {
				if t.opts.Strict {
					return err
				}
				log.WithError(errors.Cause(err)).Warn("skipping macro")
				return nil
			}
			log.WithField("form", r.Form).Debug("translated")
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	ret := results[:0]
	for _, r := range results {
		if r != nil {
			ret = append(ret, r)
		}
	}
	return ret, nil
}

func (t *Translator) ResolveType(name string) (parse.Type, bool) {
	return t.oracle.ResolveType(name)
}

func (t *Translator) Function(name string) ([]parse.Type, parse.Type, bool) {
	return t.oracle.Function(name)
}

func (t *Translator) Variable(name string) (parse.Type, bool) {
	return t.oracle.Variable(name)
}

func (t *Translator) FFIPrefix() string {
	return t.oracle.FFIPrefix()
}

// MacroVariable hands out the unfinished body of a variable-like macro that
// parsed as an expression.
func (t *Translator) MacroVariable(name string) (parse.Expr, bool) {
	if !t.ms.IsVarMacro(name) {
		return nil, false
	}
	_, body, err := t.parse(name)
	if err != nil || body.Expr == nil {
		return nil, false
	}
	return body.Expr, true
}

func (t *Translator) MacroFunction(name string) ([]string, parse.Expr, bool) {
	if !t.ms.IsFnMacro(name) {
		return nil, nil, false
	}
	pc, body, err := t.parse(name)
	if err != nil || body.Expr == nil {
		return nil, nil, false
	}
	return pc.Params, body.Expr, true
}
