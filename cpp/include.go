package cpp

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// IncludeSearcher locates the headers named by #include directives.
// Both methods return the resolved path of the header and its contents.
type IncludeSearcher interface {
	// IncludeQuote resolves #include "foo.h".
	IncludeQuote(requestingFile, headerPath string) (string, io.Reader, error)
	// IncludeAngled resolves #include <foo.h>.
	IncludeAngled(requestingFile, headerPath string) (string, io.Reader, error)
}

// ErrHeaderNotFound is returned, possibly wrapped, when no search directory
// holds the requested header.
var ErrHeaderNotFound = errors.New("header not found")

type StandardIncludeSearcher struct {
	// Search order for angled includes.
	dirs []string
}

// NewStandardIncludeSearcher searches angled includes in dirs, in order.
// Quoted includes are looked up next to the including file first.
func NewStandardIncludeSearcher(dirs ...string) IncludeSearcher {
	return &StandardIncludeSearcher{dirs: append([]string(nil), dirs...)}
}

// openHeader opens path, a missing file is reported as found == false.
func openHeader(path string) (r io.Reader, found bool, err error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "opening %s", path)
	}
	return f, true, nil
}

func (is *StandardIncludeSearcher) IncludeQuote(requestingFile, headerPath string) (string, io.Reader, error) {
	path := filepath.Join(filepath.Dir(requestingFile), headerPath)
	r, found, err := openHeader(path)
	if err != nil {
		return "", nil, err
	}
	if !found {
		return is.IncludeAngled(requestingFile, headerPath)
	}
	return path, r, nil
}

func (is *StandardIncludeSearcher) IncludeAngled(requestingFile, headerPath string) (string, io.Reader, error) {
	if filepath.IsAbs(headerPath) {
		r, found, err := openHeader(headerPath)
		if err != nil || found {
			return headerPath, r, err
		}
	} else {
		for _, dir := range is.dirs {
			path := filepath.Join(dir, headerPath)
			r, found, err := openHeader(path)
			if err != nil {
				return "", nil, err
			}
			if found {
				return path, r, nil
			}
		}
	}
	return "", nil, errors.Wrap(ErrHeaderNotFound, headerPath)
}
