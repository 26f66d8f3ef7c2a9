package cpp

// A paintset holds the names of the macros whose expansion is in progress.
// Identifiers naming one of them are painted and never replaced again.
// Nested expansions extend their caller's set without changing it, so a set
// is a chain of frames, innermost first. The nil set is empty.
type paintset struct {
	name  string
	depth int
	outer *paintset
}

func (ps *paintset) len() int {
	if ps == nil {
		return 0
	}
	return ps.depth
}

func (ps *paintset) contains(name string) bool {
	for f := ps; f != nil; f = f.outer {
		if f.name == name {
			return true
		}
	}
	return false
}

func (ps *paintset) add(name string) *paintset {
	if ps.contains(name) {
		return ps
	}
	return &paintset{name: name, depth: ps.len() + 1, outer: ps}
}
