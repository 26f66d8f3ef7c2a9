// Package oracle describes the C world around a set of macros: which type
// names exist, which functions and variables are declared and with what
// types. A Static oracle is read from YAML or JSON description files.
package oracle

import (
	"bytes"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/andrewchambers/cmacro/parse"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// File is the on-disk description format. Types are written as C type names
// ("const char *") or as Rust paths ("::libc::FILE").
type File struct {
	FFIPrefix string              `yaml:"ffi_prefix" json:"ffi_prefix"`
	Types     map[string]string   `yaml:"types" json:"types"`
	Functions map[string]Function `yaml:"functions" json:"functions"`
	Variables map[string]string   `yaml:"variables" json:"variables"`
}

type Function struct {
	Params []string `yaml:"params" json:"params"`
	// Empty for void.
	Ret string `yaml:"ret" json:"ret"`
}

type signature struct {
	params []parse.Type
	ret    parse.Type
}

// Static answers oracle questions from a fixed table. It never knows about
// macros. A loaded Static is safe for concurrent use.
type Static struct {
	prefix string
	types  map[string]parse.Type
	funcs  map[string]signature
	vars   map[string]parse.Type
}

var _ parse.Oracle = (*Static)(nil)

func New() *Static {
	return &Static{
		types: make(map[string]parse.Type),
		funcs: make(map[string]signature),
		vars:  make(map[string]parse.Type),
	}
}

// Load reads every file in order. Later files override earlier ones entry by
// entry.
func Load(paths ...string) (*Static, error) {
	s := New()
	for _, path := range paths {
		f, err := ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := s.Add(f); err != nil {
			return nil, errors.Wrapf(err, "%s", path)
		}
	}
	return s, nil
}

// ReadFile decodes a description file, choosing the format by extension.
func ReadFile(path string) (*File, error) {
	var decode func([]byte, *File) error
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		decode = decodeYAML
	case ".json":
		decode = func(data []byte, f *File) error { return json.Unmarshal(data, f) }
	default:
		return nil, errors.Errorf("%s: unknown oracle format %q", path, ext)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading oracle")
	}
	f := &File{}
	if err := decode(data, f); err != nil {
		return nil, errors.Wrapf(err, "decoding %s", path)
	}
	return f, nil
}

func decodeYAML(data []byte, f *File) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(f)
}

// Add merges the entries of f into s.
func (s *Static) Add(f *File) error {
	if f.FFIPrefix != "" {
		s.prefix = f.FFIPrefix
	}
	for name, ts := range f.Types {
		t, err := parse.ParseTypeString(ts)
		if err != nil {
			return errors.Wrapf(err, "type %s", name)
		}
		s.types[name] = t
	}
	for name, ts := range f.Variables {
		t, err := parse.ParseTypeString(ts)
		if err != nil {
			return errors.Wrapf(err, "variable %s", name)
		}
		s.vars[name] = t
	}
	for name, fn := range f.Functions {
		sig := signature{ret: parse.Void}
		for i, ps := range fn.Params {
			t, err := parse.ParseTypeString(ps)
			if err != nil {
				return errors.Wrapf(err, "function %s parameter %d", name, i)
			}
			sig.params = append(sig.params, t)
		}
		if fn.Ret != "" {
			t, err := parse.ParseTypeString(fn.Ret)
			if err != nil {
				return errors.Wrapf(err, "function %s return type", name)
			}
			sig.ret = t
		}
		s.funcs[name] = sig
	}
	return nil
}

func (s *Static) ResolveType(name string) (parse.Type, bool) {
	t, ok := s.types[name]
	return t, ok
}

// Function returns a fresh parameter slice on every call.
func (s *Static) Function(name string) ([]parse.Type, parse.Type, bool) {
	sig, ok := s.funcs[name]
	if !ok {
		return nil, nil, false
	}
	return append([]parse.Type(nil), sig.params...), sig.ret, true
}

func (s *Static) Variable(name string) (parse.Type, bool) {
	t, ok := s.vars[name]
	return t, ok
}

func (s *Static) MacroVariable(string) (parse.Expr, bool)           { return nil, false }
func (s *Static) MacroFunction(string) ([]string, parse.Expr, bool) { return nil, nil, false }

func (s *Static) FFIPrefix() string {
	if s.prefix == "" {
		return parse.DefaultFFIPrefix
	}
	return s.prefix
}

// Identity knows nothing; every type name stays as written.
type Identity struct{}

var _ parse.Oracle = Identity{}

func (Identity) ResolveType(string) (parse.Type, bool)             { return nil, false }
func (Identity) Function(string) ([]parse.Type, parse.Type, bool)  { return nil, nil, false }
func (Identity) Variable(string) (parse.Type, bool)                { return nil, false }
func (Identity) MacroVariable(string) (parse.Expr, bool)           { return nil, false }
func (Identity) MacroFunction(string) ([]string, parse.Expr, bool) { return nil, nil, false }
func (Identity) FFIPrefix() string                                 { return parse.DefaultFFIPrefix }
