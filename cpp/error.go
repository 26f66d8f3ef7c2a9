package cpp

import "fmt"

type ErrorLoc struct {
	Err error
	Pos FilePos
}

func ErrWithLoc(e error, pos FilePos) error {
	return ErrorLoc{
		Err: e,
		Pos: pos,
	}
}

func (e ErrorLoc) Error() string {
	return fmt.Sprintf("%s at %s", e.Err, e.Pos)
}

func (e ErrorLoc) Unwrap() error {
	return e.Err
}

type ExpansionErrorKind int

const (
	MacroNotFound ExpansionErrorKind = iota
	MissingOpenParenthesis
	UnclosedParenthesis
	FnMacroArgumentError
	ConcatBegin
	ConcatEnd
	NonVariadicVarArgs
	NonUniqueParameter
	StringifyNonParameter
	InvalidConcat
)

// ExpansionError is returned when a macro definition or invocation is
// malformed. Only the fields relevant to Kind are set.
type ExpansionError struct {
	Kind ExpansionErrorKind
	// Paren is the offending parenthesis.
	Paren rune
	// Name is the called macro or the duplicated parameter.
	Name     string
	Required int
	Given    int
}

func (e *ExpansionError) Error() string {
	switch e.Kind {
	case MacroNotFound:
		return "macro not found"
	case MissingOpenParenthesis:
		return fmt.Sprintf("missing open parenthesis for %c", e.Paren)
	case UnclosedParenthesis:
		return fmt.Sprintf("missing closing parenthesis for %c", e.Paren)
	case FnMacroArgumentError:
		return fmt.Sprintf("macro %s requires %d arguments, %d given", e.Name, e.Required, e.Given)
	case ConcatBegin:
		return "macro starts with `##`"
	case ConcatEnd:
		return "macro ends with `##`"
	case NonVariadicVarArgs:
		return "`__VA_ARGS__` found in non-variadic macro"
	case NonUniqueParameter:
		return fmt.Sprintf("macro argument %s is not unique", e.Name)
	case StringifyNonParameter:
		return "`#` is not followed by a macro parameter"
	case InvalidConcat:
		return "concatenation does not produce a valid pre-processing token"
	}
	return fmt.Sprintf("expansion error %d", int(e.Kind))
}

func expansionError(kind ExpansionErrorKind) *ExpansionError {
	return &ExpansionError{Kind: kind}
}

func parenError(kind ExpansionErrorKind, paren rune) *ExpansionError {
	return &ExpansionError{Kind: kind, Paren: paren}
}
