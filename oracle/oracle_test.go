package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrewchambers/cmacro/parse"
)

func TestLoad(t *testing.T) {
	o, err := Load("testdata/libc.yaml")
	require.NoError(t, err)

	assert.Equal(t, parse.DefaultFFIPrefix, o.FFIPrefix())

	ty, ok := o.ResolveType("uint32_t")
	require.True(t, ok)
	assert.Equal(t, parse.UInt, ty)

	ty, ok = o.ResolveType("FILE")
	require.True(t, ok)
	assert.Equal(t, "::libc::FILE", ty.String())

	ty, ok = o.ResolveType("struct stat")
	require.True(t, ok)
	assert.Equal(t, "::libc::stat", ty.String())

	params, ret, ok := o.Function("strlen")
	require.True(t, ok)
	require.Len(t, params, 1)
	assert.True(t, parse.TypesEqual(parse.CharPtr(), params[0]))
	assert.Equal(t, parse.SizeT, ret)

	params, ret, ok = o.Function("abort")
	require.True(t, ok)
	assert.Empty(t, params)
	assert.Equal(t, parse.Void, ret)

	ty, ok = o.Variable("stdout")
	require.True(t, ok)
	assert.True(t, parse.TypesEqual(&parse.Ptr{To: &parse.Identifier{Name: "FILE"}}, ty))

	_, ok = o.Variable("nope")
	assert.False(t, ok)
	_, ok = o.MacroVariable("errno")
	assert.False(t, ok)
}

func TestLoadOverride(t *testing.T) {
	o, err := Load("testdata/libc.yaml", "testdata/override.json")
	require.NoError(t, err)

	assert.Equal(t, "::libc", o.FFIPrefix())

	ty, ok := o.ResolveType("uint32_t")
	require.True(t, ok)
	assert.Equal(t, parse.ULong, ty)

	ty, ok = o.Variable("environ")
	require.True(t, ok)
	assert.True(t, parse.TypesEqual(&parse.Ptr{To: &parse.Ptr{To: parse.Char}}, ty))

	_, ok = o.Variable("errno")
	assert.True(t, ok)
}

func TestLoadErrors(t *testing.T) {
	for _, tc := range []struct {
		path string
		msg  string
	}{
		{"testdata/badtype.yaml", "variable x"},
		{"testdata/unknownfield.yaml", "field macros not found"},
		{"testdata/missing.yaml", "reading oracle"},
		{"testdata/libc.toml", "unknown oracle format"},
	} {
		_, err := Load(tc.path)
		require.Error(t, err, tc.path)
		assert.Contains(t, err.Error(), tc.msg, tc.path)
	}
}

func TestFunctionParamsAreCopied(t *testing.T) {
	o, err := Load("testdata/libc.yaml")
	require.NoError(t, err)
	params, _, _ := o.Function("strlen")
	params[0] = parse.Int
	again, _, _ := o.Function("strlen")
	assert.True(t, parse.TypesEqual(parse.CharPtr(), again[0]))
}

func TestIdentity(t *testing.T) {
	var o parse.Oracle = Identity{}
	_, ok := o.ResolveType("size_t")
	assert.False(t, ok)
	assert.Equal(t, parse.DefaultFFIPrefix, o.FFIPrefix())
}
