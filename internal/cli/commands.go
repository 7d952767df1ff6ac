package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/eunmann/affxfusion/internal/logctx"
	"github.com/eunmann/affxfusion/pkg/batch"
	"github.com/eunmann/affxfusion/pkg/catalog"
	"github.com/eunmann/affxfusion/pkg/cel"
	"github.com/eunmann/affxfusion/pkg/export"
	"github.com/eunmann/affxfusion/pkg/fetch"
	"github.com/eunmann/affxfusion/pkg/fileutil"
	"github.com/eunmann/affxfusion/pkg/format"
	"github.com/eunmann/affxfusion/pkg/logging"
	"github.com/eunmann/affxfusion/pkg/server"
)

type cellRow struct {
	Index     int     `json:"index"`
	X         int     `json:"x"`
	Y         int     `json:"y"`
	Intensity float32 `json:"intensity"`
	Stdv      float32 `json:"stdv"`
	Pixels    int16   `json:"pixels"`
	Outlier   bool    `json:"outlier"`
	Masked    bool    `json:"masked"`
}

func (g *globals) celCmd() *cli.Command {
	var indices string
	var limit int
	var outliers, masked bool
	return &cli.Command{
		Name:  "cel",
		Usage: "Query CEL intensity files",
		Commands: []*cli.Command{
			{
				Name:      "cells",
				Usage:     "Print cell entries",
				ArgsUsage: "FILE",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "indices", Usage: "comma separated cell indices", Destination: &indices},
					&cli.IntFlag{Name: "limit", Usage: "cells to print when no indices are given", Value: 10, Destination: &limit},
					&cli.BoolFlag{Name: "outliers", Usage: "print the outlier cells", Destination: &outliers},
					&cli.BoolFlag{Name: "masked", Usage: "print the masked cells", Destination: &masked},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.NArg() != 1 {
						return errors.New("exactly one CEL file is required")
					}
					idx, err := parseIndices(indices)
					if err != nil {
						return err
					}
					f, done, err := g.openCEL(ctx, cmd.Args().First(), false, true)
					if err != nil {
						return err
					}
					defer done()

					switch {
					case outliers:
						if idx, err = f.Outliers(); err != nil {
							return err
						}
					case masked:
						if idx, err = f.Masked(); err != nil {
							return err
						}
					case idx == nil:
						for i := range min(limit, f.NumCells()) {
							idx = append(idx, i)
						}
					}
					return g.printCells(f, idx)
				},
			},
		},
	}
}

func (g *globals) printCells(f *cel.File, idx []int) error {
	rows := make([]cellRow, len(idx))
	for k, i := range idx {
		e, err := f.Entry(i)
		if err != nil {
			return err
		}
		outlier, err := f.IsOutlier(i)
		if err != nil {
			return err
		}
		masked, err := f.IsMasked(i)
		if err != nil {
			return err
		}
		rows[k] = cellRow{
			Index: i, X: f.IndexToX(i), Y: f.IndexToY(i),
			Intensity: e.Intensity, Stdv: e.Stdv, Pixels: e.Pixels,
			Outlier: outlier, Masked: masked,
		}
	}

	p := g.printer()
	if p.json {
		return p.value(rows)
	}
	text := make([][]string, len(rows))
	for k, r := range rows {
		text[k] = []string{
			strconv.Itoa(r.Index), strconv.Itoa(r.X), strconv.Itoa(r.Y),
			strconv.FormatFloat(float64(r.Intensity), 'f', 1, 32),
			strconv.FormatFloat(float64(r.Stdv), 'f', 1, 32),
			strconv.Itoa(int(r.Pixels)),
			strconv.FormatBool(r.Outlier), strconv.FormatBool(r.Masked),
		}
	}
	return p.table([]string{"INDEX", "X", "Y", "INTENSITY", "STDV", "PIXELS", "OUTLIER", "MASKED"}, text)
}

func (g *globals) exportCmd() *cli.Command {
	var out string
	return &cli.Command{
		Name:      "export",
		Usage:     "Write a CDF or CEL file as Parquet",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output .parquet path", Required: true, Destination: &out},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return errors.New("exactly one input file is required")
			}
			name := cmd.Args().First()
			ctx = logctx.WithStr(ctx, "input", name)
			start := time.Now()

			res, err := g.resolve(ctx, name)
			if err != nil {
				return err
			}
			kind, _ := format.Sniff(res.Path)

			var rows int64
			err = fileutil.WriteTmpThenMove("", out, func(w io.Writer) error {
				var err error
				rows, err = g.writeParquet(name, res, kind, w)
				return err
			})
			if err != nil {
				return err
			}

			info, _ := os.Stat(out)
			ev := logging.FileWritten(logctx.FromContext(ctx), "export", time.Since(start)).
				Str("output", out).
				Count("rows", rows)
			if info != nil {
				ev = ev.Bytes("size", info.Size()).Throughput(info.Size())
			}
			ev.Log("export complete")

			if g.printer().json {
				return g.printer().value(map[string]any{"output": out, "rows": rows})
			}
			fmt.Fprintf(g.out, "wrote %d rows to %s\n", rows, out)
			return nil
		},
	}
}

func (g *globals) writeParquet(name string, res *fetch.Resolved, kind format.Kind, w io.Writer) (int64, error) {
	switch kind {
	case format.KindCDF:
		f, done, err := g.loadCDF(name, res, false)
		if err != nil {
			return 0, err
		}
		defer done()
		return export.WriteCDFParquet(w, f)
	case format.KindCEL:
		f, done, err := g.loadCEL(name, res, false, true)
		if err != nil {
			return 0, err
		}
		defer done()
		return export.WriteCELParquet(w, f)
	default:
		res.Close()
		return 0, fmt.Errorf("%s: %w", name, format.ErrFormatMismatch)
	}
}

func (g *globals) batchCmd() *cli.Command {
	var indices, out string
	return &cli.Command{
		Name:      "batch",
		Usage:     "Read intensities from many CEL files into a matrix",
		ArgsUsage: "FILE...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "indices", Usage: "comma separated cell indices (default: all)", Destination: &indices},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "write the matrix here instead of stdout", Destination: &out},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() == 0 {
				return errors.New("at least one CEL file is required")
			}
			idx, err := parseIndices(indices)
			if err != nil {
				return err
			}
			mode, err := g.accessMode()
			if err != nil {
				return err
			}

			names := cmd.Args().Slice()
			ctx = logctx.WithInt(ctx, "files", len(names))
			locs := make([]string, len(names))
			for i, n := range names {
				locs[i] = g.location(n)
			}
			resolved, err := g.resolver.ResolveAll(ctx, locs)
			if err != nil {
				return err
			}
			defer func() {
				for _, r := range resolved {
					r.Close()
				}
			}()
			paths := make([]string, len(resolved))
			for i, r := range resolved {
				paths[i] = r.Path
			}

			cfg := batch.DefaultConfig()
			cfg.Concurrency = g.concurrency
			cfg.CEL = cel.Options{Mode: mode}
			m, err := batch.ReadIntensities(ctx, paths, idx, cfg)
			if err != nil {
				return err
			}
			m.Paths = names
			log := logctx.FromContext(ctx)
			log.Debug().Int("cells", len(m.Indices)).Msg("matrix ready")

			w := g.out
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer f.Close()
				w = f
			}
			p := printer{w: w, json: g.jsonOut}
			if p.json {
				return p.value(m)
			}
			return writeMatrix(p, m)
		},
	}
}

// writeMatrix prints one row per cell and one column per file.
func writeMatrix(p printer, m *batch.Matrix) error {
	header := append([]string{"INDEX"}, m.Paths...)
	rows := make([][]string, len(m.Indices))
	for k, i := range m.Indices {
		row := make([]string, 1, len(m.Paths)+1)
		row[0] = strconv.Itoa(i)
		for j := range m.Paths {
			row = append(row, strconv.FormatFloat(float64(m.Intensity(j, k)), 'f', 1, 32))
		}
		rows[k] = row
	}
	return p.table(header, rows)
}

func (g *globals) catalogCmd() *cli.Command {
	var write, verify bool
	return &cli.Command{
		Name:      "catalog",
		Usage:     "Describe every CDF and CEL file under a directory",
		ArgsUsage: "DIR",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "write", Usage: "store the catalog as " + catalog.FileName + " in DIR", Destination: &write},
			&cli.BoolFlag{Name: "verify", Usage: "check DIR against its stored catalog", Destination: &verify},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return errors.New("exactly one directory is required")
			}
			dir := cmd.Args().First()

			if verify {
				c, err := catalog.Read(dir)
				if err != nil {
					return err
				}
				if err := catalog.Verify(dir, c); err != nil {
					return err
				}
				fmt.Fprintf(g.out, "%d files verified\n", len(c.Files))
				return nil
			}

			c, err := catalog.Build(ctx, dir, g.concurrency)
			if err != nil {
				return err
			}
			if write {
				if err := catalog.Write(dir, c); err != nil {
					return err
				}
			}

			p := g.printer()
			if p.json {
				return p.value(c)
			}
			rows := make([][]string, len(c.Files))
			for i, e := range c.Files {
				rows[i] = []string{e.Name, e.Kind, e.Encoding, e.ChipType,
					fmt.Sprintf("%dx%d", e.Cols, e.Rows), e.Checksum[:12], e.Error}
			}
			return p.table([]string{"NAME", "KIND", "ENCODING", "CHIP", "SIZE", "SHA256", "ERROR"}, rows)
		},
	}
}

func (g *globals) serveCmd() *cli.Command {
	var addr string
	var maxOpen int
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve a read-only HTTP API over opened files",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "listen address (default 127.0.0.1:8080)", Destination: &addr},
			&cli.IntFlag{Name: "max-open", Usage: "maximum open files (0 = unlimited)", Value: 64, Destination: &maxOpen},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			mode, err := g.accessMode()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = g.serverAddress
			}
			srv := server.New(server.Config{
				Address:      addr,
				MaxOpenFiles: maxOpen,
				Logic:        g.logic(),
				Mode:         mode,
			}, g.resolver)
			return srv.Start(ctx)
		},
	}
}
