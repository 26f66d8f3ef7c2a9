package cpp

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapSearcher map[string]string

func (m mapSearcher) IncludeQuote(requestingFile, headerPath string) (string, io.Reader, error) {
	return m.IncludeAngled(requestingFile, headerPath)
}

func (m mapSearcher) IncludeAngled(requestingFile, headerPath string) (string, io.Reader, error) {
	src, ok := m[headerPath]
	if !ok {
		return "", nil, fmt.Errorf("header %s not found", headerPath)
	}
	return headerPath, strings.NewReader(src), nil
}

const scanMainHeader = `#include "inner.h"
#define A 1
#define F(x, y) ((x) + (y))
#define V(fmt, ...) printf(fmt, __VA_ARGS__)
#ifdef A
#define A 2
#endif
#undef F
#define EMPTY
#define S 1 + \
  2
#include <inner.h>
`

func scanHeaders(t *testing.T, main string, headers mapSearcher) (*MacroSet, []Event, error) {
	t.Helper()
	ms := NewMacroSet()
	s := NewScanner(Lex("main.h", strings.NewReader(main)), headers)
	events, err := s.Scan(ms)
	return ms, events, err
}

func TestScan(t *testing.T) {
	headers := mapSearcher{"inner.h": "#define INNER /* c */ 3"}
	ms, events, err := scanHeaders(t, scanMainHeader, headers)
	require.NoError(t, err)

	expected := []Event{
		{Name: "INNER", Pos: FilePos{"inner.h", 1, 9}},
		{Name: "A", Pos: FilePos{"main.h", 2, 9}},
		{Name: "F", Pos: FilePos{"main.h", 3, 9}, Fn: true},
		{Name: "V", Pos: FilePos{"main.h", 4, 9}, Fn: true},
		{Name: "A", Pos: FilePos{"main.h", 6, 9}, Redefined: true},
		{Name: "F", Pos: FilePos{"main.h", 8, 8}, Undef: true, Redefined: true},
		{Name: "EMPTY", Pos: FilePos{"main.h", 9, 9}},
		{Name: "S", Pos: FilePos{"main.h", 10, 9}},
	}
	assert.Equal(t, expected, events)

	assert.Equal(t, []string{"A", "EMPTY", "INNER", "S"}, ms.VarMacros())
	assert.Equal(t, []string{"V"}, ms.FnMacros())
	assert.False(t, ms.IsFnMacro("F"))

	a, err := ms.ExpandVarMacro("A")
	require.NoError(t, err)
	assert.Equal(t, "2", joinTokens(a))

	inner, err := ms.ExpandVarMacro("INNER")
	require.NoError(t, err)
	assert.Equal(t, "/* c */ 3", joinTokens(inner))

	sum, err := ms.ExpandVarMacro("S")
	require.NoError(t, err)
	assert.Equal(t, "1 + 2", joinTokens(sum))

	empty, err := ms.ExpandVarMacro("EMPTY")
	require.NoError(t, err)
	assert.Empty(t, empty)

	params, body, err := ms.ExpandFnMacro("V")
	require.NoError(t, err)
	assert.Equal(t, "fmt ...", joinTokens(params))
	assert.Equal(t, "printf ( $0 , $1 )", joinTokens(body))
}

func TestScanMissingInclude(t *testing.T) {
	_, _, err := scanHeaders(t, "#define A 1\n#include \"missing.h\"\n", mapSearcher{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "header missing.h not found")

	var loc ErrorLoc
	require.ErrorAs(t, err, &loc)
	assert.Equal(t, 2, loc.Pos.Line)
}

func TestScanErrors(t *testing.T) {
	testCases := []struct {
		src string
		msg string
	}{
		{"#define 1\n", "macro names must be identifiers"},
		{"#define F(1) x\n", "Expected macro argument"},
		{"#define F(a b) x\n", "expected , or )"},
		{"#define F(..., a) x\n", "expected , or )"},
		{"#undef \"x\"\n", "#undef expected an ident"},
		{"#include FOO\n", "expected a header"},
	}
	for idx := range testCases {
		tc := &testCases[idx]
		_, _, err := scanHeaders(t, tc.src, mapSearcher{})
		if assert.Error(t, err, tc.src) {
			assert.Contains(t, err.Error(), tc.msg, tc.src)
		}
	}
}

func TestScanIgnoresOtherDirectives(t *testing.T) {
	src := "#pragma once\n#\n#if X > 1\n#define IN_IF 1\n#else\n#error nope\n#endif\nint #define x;\n"
	ms, events, err := scanHeaders(t, src, mapSearcher{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "IN_IF", events[0].Name)
	assert.Equal(t, []string{"IN_IF"}, ms.VarMacros())
}
