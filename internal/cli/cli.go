// Package cli implements the affx command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/eunmann/affxfusion/internal/logctx"
	"github.com/eunmann/affxfusion/pkg/cdf"
	"github.com/eunmann/affxfusion/pkg/cel"
	"github.com/eunmann/affxfusion/pkg/fetch"
	"github.com/eunmann/affxfusion/pkg/format"
	"github.com/eunmann/affxfusion/pkg/logging"
)

// globals holds the root flags after config and env defaults are applied.
type globals struct {
	configPath    string
	libPath       string
	complementary bool
	mode          string
	debug         bool
	human         bool
	jsonOut       bool
	cacheDir      string
	concurrency   int
	serverAddress string

	out      io.Writer
	errOut   io.Writer
	resolver *fetch.Resolver
}

// New builds the root command. Results go to out, logs to errOut.
func New(out, errOut io.Writer) *cli.Command {
	g := &globals{out: out, errOut: errOut}
	return &cli.Command{
		Name:      "affx",
		Usage:     "Inspect and export Affymetrix CDF and CEL files",
		Writer:    out,
		ErrWriter: errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "config file", Value: DefaultConfigPath(), Destination: &g.configPath},
			&cli.StringFlag{Name: "lib-path", Usage: "directory searched for bare file names (env " + libPathEnv + ")", Destination: &g.libPath},
			&cli.BoolFlag{Name: "complementary", Usage: "use complementary logic for CDF mismatch classification", Destination: &g.complementary},
			&cli.StringFlag{Name: "mode", Usage: "access mode: auto, stream or mapped", Value: "auto", Destination: &g.mode},
			&cli.BoolFlag{Name: "debug", Usage: "debug logging", Destination: &g.debug},
			&cli.BoolFlag{Name: "human", Usage: "human-readable logs", Destination: &g.human},
			&cli.BoolFlag{Name: "json", Usage: "print results as JSON", Destination: &g.jsonOut},
			&cli.StringFlag{Name: "cache-dir", Usage: "download cache for s3:// inputs", Destination: &g.cacheDir},
			&cli.IntFlag{Name: "concurrency", Usage: "files processed in parallel", Value: 4, Destination: &g.concurrency},
		},
		Before: g.before,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			g.infoCmd(),
			g.cdfCmd(),
			g.celCmd(),
			g.exportCmd(),
			g.batchCmd(),
			g.catalogCmd(),
			g.serveCmd(),
		},
	}
}

// Run executes the CLI with the given arguments (without the program name).
func Run(ctx context.Context, args []string, out, errOut io.Writer) error {
	return New(out, errOut).Run(ctx, append([]string{"affx"}, args...))
}

func (g *globals) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg, err := LoadConfig(g.configPath)
	if err != nil {
		return ctx, err
	}
	g.apply(cmd, cfg)

	logging.InitWriter(g.errOut, g.debug, g.human)
	if cfg.LogLevel != "" && !cmd.IsSet("debug") {
		zerolog.SetGlobalLevel(logging.ParseLevel(cfg.LogLevel))
	}
	ctx = logctx.WithLogger(ctx, *logging.L())

	g.resolver = fetch.NewResolver(fetch.Config{
		CacheDir:    g.cacheDir,
		Concurrency: g.concurrency,
	})
	return ctx, nil
}

func (g *globals) printer() printer {
	return printer{w: g.out, json: g.jsonOut}
}

func (g *globals) accessMode() (format.Mode, error) {
	return format.ParseMode(g.mode)
}

func (g *globals) logic() cdf.Logic {
	if g.complementary {
		return cdf.ComplementaryLogic
	}
	return cdf.StandardLogic
}

// location applies the library directory to bare file names.
func (g *globals) location(name string) string {
	if g.libPath == "" || fetch.IsS3URI(name) || strings.ContainsAny(name, `/\`) {
		return name
	}
	return filepath.Join(g.libPath, name)
}

// resolve returns a local path for name plus its cleanup.
func (g *globals) resolve(ctx context.Context, name string) (*fetch.Resolved, error) {
	loc := g.location(name)
	res, err := g.resolver.Resolve(ctx, loc)
	if err != nil {
		return nil, err
	}
	log := logctx.FromContext(ctx)
	log.Debug().Str("input", name).Str("path", res.Path).Msg("resolved input")
	return res, nil
}

func (g *globals) openCDF(ctx context.Context, name string, headerOnly bool) (*cdf.File, func(), error) {
	res, err := g.resolve(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	return g.loadCDF(name, res, headerOnly)
}

// loadCDF opens a resolved file. The returned func closes both.
func (g *globals) loadCDF(name string, res *fetch.Resolved, headerOnly bool) (*cdf.File, func(), error) {
	mode, err := g.accessMode()
	if err != nil {
		res.Close()
		return nil, nil, err
	}
	f := cdf.New(cdf.Options{Logic: g.logic(), Mode: mode})
	f.SetFileName(res.Path)
	ok := f.Read
	if headerOnly {
		ok = f.ReadHeader
	}
	if !ok() {
		res.Close()
		return nil, nil, fmt.Errorf("%s: %w", name, f.Err())
	}
	return f, func() { f.Close(); res.Close() }, nil
}

func (g *globals) openCEL(ctx context.Context, name string, headerOnly, sparse bool) (*cel.File, func(), error) {
	res, err := g.resolve(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	return g.loadCEL(name, res, headerOnly, sparse)
}

func (g *globals) loadCEL(name string, res *fetch.Resolved, headerOnly, sparse bool) (*cel.File, func(), error) {
	mode, err := g.accessMode()
	if err != nil {
		res.Close()
		return nil, nil, err
	}
	f := cel.New(cel.Options{Mode: mode, IncludeMaskAndOutliers: sparse})
	f.SetFileName(res.Path)
	ok := f.Read
	if headerOnly {
		ok = f.ReadHeader
	}
	if !ok() {
		res.Close()
		return nil, nil, fmt.Errorf("%s: %w", name, f.Err())
	}
	return f, func() { f.Close(); res.Close() }, nil
}
