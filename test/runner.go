// Command runner checks that the Rust generated for each test header
// compiles. Every testcases/NAME.h is translated with the oracle NAME.yaml
// when present, prefixed with NAME.prelude.rs when present, and handed to
// rustc as a library crate.
package main

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/gobwas/glob"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

type Config struct {
	TranslateCmd string
	RustcCmd     string
	Timeout      time.Duration
}

type cmdData struct {
	In, Out, Oracle string
}

func (c Config) Translate(in, out, oracle string) error {
	return RunWithTemplate(cmdData{In: in, Out: out, Oracle: oracle}, c.TranslateCmd, c.Timeout)
}

func (c Config) Rustc(in, out string) error {
	return RunWithTemplate(cmdData{In: in, Out: out}, c.RustcCmd, c.Timeout)
}

func RunWithTemplate(data cmdData, templ string, timeout time.Duration) error {
	t, err := template.New("gencmdline").Parse(templ)
	if err != nil {
		return err
	}
	var b bytes.Buffer
	if err := t.Execute(&b, data); err != nil {
		return err
	}
	return RunWithTimeout(b.String(), timeout)
}

func RunWithTimeout(command string, timeout time.Duration) error {
	args := strings.Fields(command)
	if len(args) == 0 {
		return errors.Errorf("malformed command %q", command)
	}
	c := exec.Command(args[0], args[1:]...)
	var stderr bytes.Buffer
	c.Stderr = &stderr
	rc := make(chan error, 1)
	go func() {
		rc <- c.Run()
	}()
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-t.C:
		_ = c.Process.Kill()
		return errors.Errorf("%s timed out", args[0])
	case err := <-rc:
		if err != nil {
			return errors.Wrap(err, strings.TrimSpace(stderr.String()))
		}
		return nil
	}
}

// buildCrate writes the prelude followed by the generated code.
func buildCrate(prelude, generated, crate string) error {
	var src []byte
	if p, err := os.ReadFile(prelude); err == nil {
		src = append(src, p...)
	}
	g, err := os.ReadFile(generated)
	if err != nil {
		return err
	}
	src = append(src, g...)
	return os.WriteFile(crate, src, 0o644)
}

func runTests(cfg Config, tdir string, filter glob.Glob) error {
	fmt.Println("rustc tests in", tdir)
	headers, err := filepath.Glob(filepath.Join(tdir, "*.h"))
	if err != nil {
		return err
	}
	passcount := 0
	runcount := 0
	for _, tc := range headers {
		name := strings.TrimSuffix(tc, ".h")
		if !filter.Match(filepath.Base(name)) {
			continue
		}
		runcount++
		oracle := ""
		if _, err := os.Stat(name + ".yaml"); err == nil {
			oracle = name + ".yaml"
		}
		generated := name + ".out.rs"
		crate := name + ".crate.rs"
		if err := cfg.Translate(tc, generated, oracle); err != nil {
			fmt.Printf("FAIL: %s translate - %s\n", tc, err)
			continue
		}
		if err := buildCrate(name+".prelude.rs", generated, crate); err != nil {
			fmt.Printf("FAIL: %s crate - %s\n", tc, err)
			continue
		}
		if err := cfg.Rustc(crate, name+".rlib"); err != nil {
			fmt.Printf("FAIL: %s rustc - %s\n", tc, err)
			continue
		}
		fmt.Printf("PASS: %s\n", tc)
		passcount++
	}
	if passcount != runcount {
		return errors.Errorf("passed %d/%d", passcount, runcount)
	}
	return nil
}

func main() {
	app := cli.NewApp()
	app.Name = "runner"
	app.Usage = "Check that translated test headers compile with rustc"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:  "filter",
			Value: "*",
			Usage: "Glob selecting which tests to run",
		},
		&cli.StringFlag{
			Name:  "translate",
			Value: "cmacro --strict {{if .Oracle}}--oracle {{.Oracle}} {{end}}-o {{.Out}} {{.In}}",
			Usage: "Command template translating {{.In}} to {{.Out}}",
		},
		&cli.StringFlag{
			Name:  "rustc",
			Value: "rustc --edition 2021 --crate-type lib -o {{.Out}} {{.In}}",
			Usage: "Command template compiling {{.In}}",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Value: 30 * time.Second,
		},
	}
	app.Action = func(c *cli.Context) error {
		filter, err := glob.Compile(c.String("filter"))
		if err != nil {
			return errors.Wrap(err, "bad filter")
		}
		cfg := Config{
			TranslateCmd: c.String("translate"),
			RustcCmd:     c.String("rustc"),
			Timeout:      c.Duration("timeout"),
		}
		return runTests(cfg, "test/testcases", filter)
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "FAIL: %s\n", err)
		os.Exit(1)
	}
}
