package translate

import (
	"github.com/gobwas/glob"
	"github.com/pkg/errors"
)

// Filter selects macros by name. A nil or empty Filter selects everything.
type Filter struct {
	globs []glob.Glob
}

func NewFilter(patterns ...string) (*Filter, error) {
	f := &Filter{}
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, errors.Wrapf(err, "bad filter %q", p)
		}
		f.globs = append(f.globs, g)
	}
	return f, nil
}

// Match reports whether any pattern matches name.
func (f *Filter) Match(name string) bool {
	if f == nil || len(f.globs) == 0 {
		return true
	}
	for _, g := range f.globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}
