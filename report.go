package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/andrewchambers/cmacro/cpp"
)

// reportError prints err and, when it carries a source position, the
// offending line with a caret under the column.
func reportError(w io.Writer, err error) {
	fmt.Fprintln(w, err)
	var loc cpp.ErrorLoc
	if !errors.As(err, &loc) {
		return
	}
	fmt.Fprintln(w, "")
	f, err := os.Open(loc.Pos.File)
	if err != nil {
		return
	}
	defer f.Close()
	showLine(w, f, loc.Pos)
}

func showLine(w io.Writer, r io.Reader, pos cpp.FilePos) {
	b := bufio.NewScanner(r)
	for lineno := 1; b.Scan(); lineno++ {
		if lineno != pos.Line {
			continue
		}
		line := strings.ReplaceAll(b.Text(), "\t", "    ")
		fmt.Fprintln(w, line)
		// Tabs count as four columns.
		col, n := 0, 1
		for _, v := range b.Text() {
			if n >= pos.Col {
				break
			}
			if v == '\t' {
				col += 4
			} else {
				col++
			}
			n++
		}
		fmt.Fprintln(w, strings.Repeat(" ", col)+"^")
		return
	}
}
