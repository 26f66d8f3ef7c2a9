package parse

import "fmt"

// scope holds the variables declared by a statement macro, e.g.
// `int tmp = x;` inside a do/while block.
type scope struct {
	parent *scope
	kv     map[string]Type
}

func (s *scope) lookup(k string) (Type, error) {
	ty, ok := s.kv[k]
	if ok {
		return ty, nil
	}
	if s.parent != nil {
		return s.parent.lookup(k)
	}
	return nil, fmt.Errorf("%s is not defined", k)
}

func (s *scope) define(k string, v Type) error {
	_, ok := s.kv[k]
	if ok {
		return &FinishError{Kind: Redefinition, Name: k}
	}
	s.kv[k] = v
	return nil
}

func newScope(parent *scope) *scope {
	ret := &scope{}
	ret.parent = parent
	ret.kv = make(map[string]Type)
	return ret
}
