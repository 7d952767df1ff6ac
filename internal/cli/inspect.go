package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/eunmann/affxfusion/internal/logctx"
	"github.com/eunmann/affxfusion/pkg/cdf"
	"github.com/eunmann/affxfusion/pkg/format"
	"github.com/eunmann/affxfusion/pkg/humanfmt"
)

type fileInfo struct {
	Path        string `json:"path"`
	Kind        string `json:"kind"`
	Encoding    string `json:"encoding"`
	Size        int64  `json:"size"`
	ChipType    string `json:"chip_type,omitempty"`
	Version     int32  `json:"version"`
	Cols        int    `json:"cols"`
	Rows        int    `json:"rows"`
	ProbeSets   int    `json:"probe_sets,omitempty"`
	QCProbeSets int    `json:"qc_probe_sets,omitempty"`
	Cells       int    `json:"cells,omitempty"`
	Algorithm   string `json:"algorithm,omitempty"`
	Outliers    int    `json:"outliers,omitempty"`
	Masked      int    `json:"masked,omitempty"`
}

func (g *globals) infoCmd() *cli.Command {
	return &cli.Command{
		Name:      "info",
		Usage:     "Print the header summary of CDF or CEL files",
		ArgsUsage: "FILE...",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() == 0 {
				return errors.New("at least one file is required")
			}
			var infos []fileInfo
			for _, name := range cmd.Args().Slice() {
				info, err := g.info(ctx, name)
				if err != nil {
					return err
				}
				infos = append(infos, info)
			}

			p := g.printer()
			if p.json {
				return p.value(infos)
			}
			for i, info := range infos {
				if i > 0 {
					fmt.Fprintln(g.out)
				}
				pairs := [][2]string{
					{"path", info.Path},
					{"kind", info.Kind},
					{"encoding", info.Encoding},
					{"size", humanfmt.Bytes(info.Size)},
					{"chip type", info.ChipType},
					{"version", strconv.Itoa(int(info.Version))},
					{"dimensions", fmt.Sprintf("%d x %d", info.Cols, info.Rows)},
				}
				if info.Kind == "cdf" {
					pairs = append(pairs,
						[2]string{"probe sets", strconv.Itoa(info.ProbeSets)},
						[2]string{"qc probe sets", strconv.Itoa(info.QCProbeSets)})
				} else {
					pairs = append(pairs,
						[2]string{"cells", strconv.Itoa(info.Cells)},
						[2]string{"algorithm", info.Algorithm},
						[2]string{"outliers", strconv.Itoa(info.Outliers)},
						[2]string{"masked", strconv.Itoa(info.Masked)})
				}
				if err := p.kv(pairs); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func (g *globals) info(ctx context.Context, name string) (fileInfo, error) {
	res, err := g.resolve(ctx, name)
	if err != nil {
		return fileInfo{}, err
	}
	kind, enc := format.Sniff(res.Path)
	loc := format.Location{}
	loc.SetFileName(res.Path)
	size, err := loc.Stat()
	if err != nil {
		res.Close()
		return fileInfo{}, err
	}

	info := fileInfo{Path: name, Kind: kind.String(), Encoding: enc.String(), Size: size}
	switch kind {
	case format.KindCDF:
		f, done, err := g.loadCDF(name, res, true)
		if err != nil {
			return info, err
		}
		defer done()
		h := f.Header()
		info.ChipType = f.ChipType()
		info.Version = h.Version
		info.Cols, info.Rows = int(h.Cols), int(h.Rows)
		info.ProbeSets = f.NumProbeSets()
		info.QCProbeSets = f.NumQCProbeSets()
	case format.KindCEL:
		f, done, err := g.loadCEL(name, res, true, true)
		if err != nil {
			return info, err
		}
		defer done()
		h := f.Header()
		info.ChipType = f.ChipType()
		info.Version = h.Version
		info.Cols, info.Rows = f.Cols(), f.Rows()
		info.Cells = f.NumCells()
		info.Algorithm = h.Algorithm
		info.Outliers = f.NumOutliers()
		info.Masked = f.NumMasked()
	default:
		res.Close()
		return info, fmt.Errorf("%s: %s files are not supported: %w", name, kind, format.ErrFormatMismatch)
	}

	log := logctx.FromContext(ctx)
	log.Debug().Str("path", name).Str("kind", info.Kind).Msg("header read")
	return info, nil
}

type unitSummary struct {
	Index     int    `json:"index"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Direction string `json:"direction"`
	Groups    int32  `json:"groups"`
	Cells     int32  `json:"cells"`
}

type unitCell struct {
	Group    string `json:"group"`
	X        uint16 `json:"x"`
	Y        uint16 `json:"y"`
	Index    int    `json:"index"`
	List     int32  `json:"list"`
	Expos    int32  `json:"expos"`
	PBase    string `json:"pbase"`
	TBase    string `json:"tbase"`
	Mismatch bool   `json:"mismatch"`
}

func (g *globals) cdfCmd() *cli.Command {
	var offset, limit int
	var pairs bool
	return &cli.Command{
		Name:  "cdf",
		Usage: "Query CDF layout files",
		Commands: []*cli.Command{
			{
				Name:      "units",
				Usage:     "List probe sets",
				ArgsUsage: "FILE",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "offset", Usage: "first probe set", Destination: &offset},
					&cli.IntFlag{Name: "limit", Usage: "probe sets to list (0 = all)", Value: 20, Destination: &limit},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.NArg() != 1 {
						return errors.New("exactly one CDF file is required")
					}
					f, done, err := g.openCDF(ctx, cmd.Args().First(), false)
					if err != nil {
						return err
					}
					defer done()
					return g.listUnits(f, offset, limit)
				},
			},
			{
				Name:      "unit",
				Usage:     "Print the cells of one probe set",
				ArgsUsage: "FILE INDEX|NAME",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "pairs", Usage: "print PM/MM index pairs instead of cells", Destination: &pairs},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.NArg() != 2 {
						return errors.New("a CDF file and a probe set index or name are required")
					}
					f, done, err := g.openCDF(ctx, cmd.Args().Get(0), false)
					if err != nil {
						return err
					}
					defer done()
					i, err := probeSetIndex(f, cmd.Args().Get(1))
					if err != nil {
						return err
					}
					if pairs {
						return g.printPairs(f, i)
					}
					return g.printUnit(f, i)
				},
			},
		},
	}
}

// probeSetIndex accepts a numeric index or a probe set name.
func probeSetIndex(f *cdf.File, arg string) (int, error) {
	if i, err := strconv.Atoi(arg); err == nil {
		return i, nil
	}
	i, ok, err := f.LookupProbeSet(arg)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("probe set %q: %w", arg, format.ErrNotFound)
	}
	return i, nil
}

func (g *globals) listUnits(f *cdf.File, offset, limit int) error {
	end := f.NumProbeSets()
	if limit > 0 {
		end = min(end, offset+limit)
	}
	var units []unitSummary
	for i := offset; i < end; i++ {
		ps, err := f.ProbeSet(i)
		if err != nil {
			return err
		}
		name, err := ps.Name()
		if err != nil {
			return err
		}
		units = append(units, unitSummary{
			Index:     i,
			Name:      name,
			Type:      ps.Type.String(),
			Direction: ps.Direction.String(),
			Groups:    ps.NumGroups,
			Cells:     ps.NumCells,
		})
	}

	p := g.printer()
	if p.json {
		return p.value(units)
	}
	rows := make([][]string, len(units))
	for i, u := range units {
		rows[i] = []string{strconv.Itoa(u.Index), u.Name, u.Type, u.Direction,
			strconv.Itoa(int(u.Groups)), strconv.Itoa(int(u.Cells))}
	}
	return p.table([]string{"INDEX", "NAME", "TYPE", "DIRECTION", "GROUPS", "CELLS"}, rows)
}

func (g *globals) printUnit(f *cdf.File, i int) error {
	ps, err := f.ProbeSet(i)
	if err != nil {
		return err
	}
	cols := int(f.Header().Cols)
	var cells []unitCell
	for gi := 0; gi < int(ps.NumGroups); gi++ {
		grp, err := ps.Group(gi)
		if err != nil {
			return err
		}
		probes, err := grp.Cells()
		if err != nil {
			return err
		}
		for _, pr := range probes {
			cells = append(cells, unitCell{
				Group:    grp.Name,
				X:        pr.X,
				Y:        pr.Y,
				Index:    int(pr.Y)*cols + int(pr.X),
				List:     pr.ListIndex,
				Expos:    pr.Expos,
				PBase:    string(pr.PBase),
				TBase:    string(pr.TBase),
				Mismatch: pr.IsMismatch(f.Options().Logic),
			})
		}
	}

	p := g.printer()
	if p.json {
		return p.value(cells)
	}
	rows := make([][]string, len(cells))
	for k, c := range cells {
		kind := "pm"
		if c.Mismatch {
			kind = "mm"
		}
		rows[k] = []string{c.Group, strconv.Itoa(int(c.X)), strconv.Itoa(int(c.Y)), strconv.Itoa(c.Index),
			strconv.Itoa(int(c.List)), strconv.Itoa(int(c.Expos)), c.PBase, c.TBase, kind}
	}
	return p.table([]string{"GROUP", "X", "Y", "INDEX", "LIST", "EXPOS", "PBASE", "TBASE", "MATCH"}, rows)
}

func (g *globals) printPairs(f *cdf.File, i int) error {
	groups, err := f.PMMMPairs(i)
	if err != nil {
		return err
	}
	p := g.printer()
	if p.json {
		return p.value(groups)
	}
	var rows [][]string
	for gi, pairs := range groups {
		for _, pr := range pairs {
			rows = append(rows, []string{strconv.Itoa(gi), strconv.Itoa(pr.PM), strconv.Itoa(pr.MM)})
		}
	}
	return p.table([]string{"GROUP", "PM", "MM"}, rows)
}

// parseIndices reads "1,2,5" into a slice. Empty input yields nil.
func parseIndices(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, len(parts))
	for k, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid index %q", part)
		}
		out[k] = v
	}
	return out, nil
}
