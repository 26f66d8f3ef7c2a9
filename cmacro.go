package main

import (
	"context"
	"io"
	"os"
	"runtime"

	"github.com/dustin/go-humanize"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/andrewchambers/cmacro/cpp"
	"github.com/andrewchambers/cmacro/emit"
	"github.com/andrewchambers/cmacro/oracle"
	"github.com/andrewchambers/cmacro/parse"
	"github.com/andrewchambers/cmacro/translate"
)

type config struct {
	headers     []string
	includeDirs []string
	oracles     []string
	// Empty keeps whatever the oracle files say.
	ffiPrefix  string
	filters    []string
	jobs       int
	strict     bool
	dumpTokens bool
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "cmacro"
	app.Usage = "Translate C preprocessor macros into Rust"
	app.Description = `cmacro collects the #define directives of the given headers, expands each macro,
types it against an optional oracle file and prints the equivalent Rust items.

Set CMACRODEBUG=true to add stack traces to syntax errors.`
	app.ArgsUsage = "HEADER..."
	app.Version = "0.1"
	app.Flags = []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "oracle",
			Usage: "YAML or JSON file describing known C types, functions and variables",
		},
		&cli.StringFlag{
			Name:  "ffi-prefix",
			Usage: "Rust path of the C scalar types (default " + parse.DefaultFFIPrefix + ")",
		},
		&cli.StringSliceFlag{
			Name:    "include",
			Aliases: []string{"I"},
			Usage:   "Directory searched for #include <...>",
		},
		&cli.StringSliceFlag{
			Name:  "filter",
			Usage: "Only translate macros whose name matches this glob",
		},
		&cli.IntFlag{
			Name:  "jobs",
			Value: runtime.NumCPU(),
			Usage: "Number of macros translated concurrently",
		},
		&cli.BoolFlag{
			Name:  "strict",
			Usage: "Fail on the first macro that cannot be translated",
		},
		&cli.BoolFlag{
			Name:  "dump-tokens",
			Usage: "Print the expansion of every macro as JSON lines instead of Rust",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Value:   "-",
			Usage:   "File to write output to, - for stdout",
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "Log every translated macro",
		},
	}
	app.Action = runCmacro
	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		reportError(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(debug bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if debug {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

func runCmacro(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("no headers given")
	}
	cfg := config{
		headers:     c.Args().Slice(),
		includeDirs: c.StringSlice("include"),
		oracles:     c.StringSlice("oracle"),
		ffiPrefix:   c.String("ffi-prefix"),
		filters:     c.StringSlice("filter"),
		jobs:        c.Int("jobs"),
		strict:      c.Bool("strict"),
		dumpTokens:  c.Bool("dump-tokens"),
	}
	log := newLogger(c.Bool("debug"))

	var out io.Writer = os.Stdout
	if path := c.String("output"); path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return errors.Wrap(err, "opening output")
		}
		defer f.Close()
		out = f
	}

	done, total, err := translateHeaders(c.Context, cfg, log, out)
	if err != nil {
		return err
	}
	if !cfg.dumpTokens {
		log.Infof("translated %s of %s macros", humanize.Comma(int64(done)), humanize.Comma(int64(total)))
	}
	return nil
}

// scanHeaders collects the definitions of every header into one set.
func scanHeaders(cfg config, log logrus.FieldLogger) (*cpp.MacroSet, error) {
	ms := cpp.NewMacroSet()
	is := cpp.NewStandardIncludeSearcher(cfg.includeDirs...)
	for _, path := range cfg.headers {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrap(err, "opening header")
		}
		events, err := cpp.NewScanner(cpp.Lex(path, f), is).Scan(ms)
		f.Close()
		if err != nil {
			return nil, err
		}
		for _, ev := range events {
			if ev.Redefined && !ev.Undef {
				log.WithFields(logrus.Fields{
					"macro": ev.Name,
					"kind":  kindName(ev.Fn),
					"pos":   ev.Pos.String(),
				}).Warn("macro redefined")
			}
		}
	}
	return ms, nil
}

func kindName(fn bool) string {
	if fn {
		return "fn"
	}
	return "var"
}

func loadOracle(cfg config) (*oracle.Static, error) {
	o, err := oracle.Load(cfg.oracles...)
	if err != nil {
		return nil, err
	}
	if cfg.ffiPrefix != "" {
		if err := o.Add(&oracle.File{FFIPrefix: cfg.ffiPrefix}); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// translateHeaders writes the translation of every selected macro to out and
// reports how many of them made it.
func translateHeaders(ctx context.Context, cfg config, log logrus.FieldLogger, out io.Writer) (int, int, error) {
	ms, err := scanHeaders(cfg, log)
	if err != nil {
		return 0, 0, err
	}
	o, err := loadOracle(cfg)
	if err != nil {
		return 0, 0, err
	}
	filter, err := translate.NewFilter(cfg.filters...)
	if err != nil {
		return 0, 0, err
	}
	tr := translate.New(ms, o, log, translate.Options{
		Jobs:   cfg.jobs,
		Strict: cfg.strict,
		Filter: filter,
	})
	names := tr.Names()

	if cfg.dumpTokens {
		enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(out)
		for _, name := range names {
			e, err := tr.Expand(name)
			if err != nil {
				if cfg.strict {
					return 0, len(names), err
				}
				log.WithField("macro", name).WithError(errors.Cause(err)).Warn("skipping macro")
				continue
			}
			if err := enc.Encode(e); err != nil {
				return 0, len(names), errors.Wrap(err, "writing tokens")
			}
		}
		return len(names), len(names), nil
	}

	results, err := tr.TranslateAll(ctx, names)
	if err != nil {
		return 0, len(names), err
	}
	items := make([]emit.Item, 0, len(results))
	for _, r := range results {
		items = append(items, r.Item())
	}
	if err := emit.Emit(items, out); err != nil {
		return 0, len(names), errors.Wrap(err, "writing output")
	}
	return len(results), len(names), nil
}
