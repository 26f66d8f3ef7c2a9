package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrewchambers/cmacro/cpp"
)

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// TestFixtures translates every testdata/*.h, using the oracle file of the
// same name when there is one, and compares with the .rs file next to it.
func TestFixtures(t *testing.T) {
	headers, err := filepath.Glob("testdata/*.h")
	require.NoError(t, err)
	require.NotEmpty(t, headers)
	for _, h := range headers {
		base := strings.TrimSuffix(h, ".h")
		t.Run(filepath.Base(base), func(t *testing.T) {
			cfg := config{
				headers:     []string{h},
				includeDirs: []string{"testdata/include"},
				jobs:        2,
			}
			if _, err := os.Stat(base + ".yaml"); err == nil {
				cfg.oracles = []string{base + ".yaml"}
			}
			expected, err := os.ReadFile(base + ".rs")
			require.NoError(t, err)

			log, _ := test.NewNullLogger()
			var out bytes.Buffer
			_, _, err = translateHeaders(context.Background(), cfg, log, &out)
			require.NoError(t, err)
			assert.Equal(t, normalize(string(expected)), normalize(out.String()))
		})
	}
}

func TestTranslateHeadersSkipsFailures(t *testing.T) {
	log, hook := test.NewNullLogger()
	cfg := config{
		headers:     []string{"testdata/basic.h"},
		includeDirs: []string{"testdata/include"},
		oracles:     []string{"testdata/basic.yaml"},
		jobs:        1,
	}
	var out bytes.Buffer
	done, total, err := translateHeaders(context.Background(), cfg, log, &out)
	require.NoError(t, err)
	assert.Equal(t, 5, done)
	assert.Equal(t, 6, total)

	var skipped []string
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			skipped = append(skipped, e.Data["macro"].(string))
		}
	}
	assert.Equal(t, []string{"BROKEN"}, skipped)

	cfg.strict = true
	_, _, err = translateHeaders(context.Background(), cfg, log, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BROKEN: unknown variable nowhere")
}

func TestTranslateHeadersOptions(t *testing.T) {
	log, _ := test.NewNullLogger()
	cfg := config{
		headers:     []string{"testdata/basic.h"},
		includeDirs: []string{"testdata/include"},
		filters:     []string{"ERR_*", "NAME"},
		ffiPrefix:   "::libc",
		jobs:        1,
	}
	var out bytes.Buffer
	done, total, err := translateHeaders(context.Background(), cfg, log, &out)
	require.NoError(t, err)
	assert.Equal(t, 2, done)
	assert.Equal(t, 2, total)
	assert.Contains(t, out.String(), "pub const ERR_MASK: ::libc::c_int = 16;")
	assert.NotContains(t, out.String(), "STATUS_BITS")

	cfg.dumpTokens = true
	cfg.filters = []string{"STATUS_BITS", "ADD"}
	out.Reset()
	_, _, err = translateHeaders(context.Background(), cfg, log, &out)
	require.NoError(t, err)
	assert.Equal(t,
		`{"name":"ADD","params":["a","b"],"tokens":["a","+","b"]}`+"\n"+
			`{"name":"STATUS_BITS","tokens":["(","0x10","|","1",")"]}`+"\n",
		out.String())
}

func TestTranslateHeadersErrors(t *testing.T) {
	log, _ := test.NewNullLogger()
	var out bytes.Buffer
	for _, cfg := range []config{
		{headers: []string{"testdata/missing.h"}},
		{headers: []string{"testdata/basic.h"}},
		{headers: []string{"testdata/libc.h"}, oracles: []string{"testdata/missing.yaml"}},
		{headers: []string{"testdata/libc.h"}, filters: []string{"["}},
	} {
		_, _, err := translateHeaders(context.Background(), cfg, log, &out)
		assert.Error(t, err, "%v", cfg)
	}
}

func TestReportError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.h")
	require.NoError(t, os.WriteFile(path, []byte("#define A 1\n\t#define 3\n"), 0o644))

	var buf bytes.Buffer
	reportError(&buf, cpp.ErrWithLoc(assert.AnError, cpp.FilePos{File: path, Line: 2, Col: 10}))
	lines := strings.Split(buf.String(), "\n")
	require.GreaterOrEqual(t, len(lines), 4)
	assert.Equal(t, "", lines[1])
	assert.Equal(t, "    #define 3", lines[2])
	assert.Equal(t, "            ^", lines[3])

	buf.Reset()
	reportError(&buf, assert.AnError)
	assert.Equal(t, assert.AnError.Error()+"\n", buf.String())
}
