package parse

import "fmt"

// ParseError reports the index of the token the parser gave up at.
type ParseError struct {
	Msg   string
	Index int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("syntax error: %s at token %d", e.Msg, e.Index)
}

type FinishErrorKind int

const (
	UnknownVariable FinishErrorKind = iota
	UnsupportedExpression
	UnsupportedType
	Redefinition
)

type FinishError struct {
	Kind FinishErrorKind
	Name string
}

func (e *FinishError) Error() string {
	switch e.Kind {
	case UnknownVariable:
		return fmt.Sprintf("unknown variable %s", e.Name)
	case UnsupportedExpression:
		return fmt.Sprintf("unsupported expression %s", e.Name)
	case UnsupportedType:
		return fmt.Sprintf("unsupported type %s", e.Name)
	case Redefinition:
		return fmt.Sprintf("redefinition of %s", e.Name)
	}
	return "finish error"
}

func unsupported(format string, args ...interface{}) error {
	return &FinishError{Kind: UnsupportedExpression, Name: fmt.Sprintf(format, args...)}
}
