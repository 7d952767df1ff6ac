package server

import (
	"github.com/eunmann/affxfusion/pkg/cdf"
	"github.com/eunmann/affxfusion/pkg/cel"
)

type openRequest struct {
	Path string `json:"path"`
	// Mode is auto, stream or mapped.
	Mode string `json:"mode,omitempty"`
	// Logic is standard or complementary. CDF only.
	Logic string `json:"logic,omitempty"`
	// SkipMaskAndOutliers skips the sparse lists of a CEL file.
	SkipMaskAndOutliers bool `json:"skip_mask_and_outliers,omitempty"`
}

type fileResponse struct {
	ID       string     `json:"id"`
	Source   string     `json:"source"`
	Kind     string     `json:"kind"`
	Encoding string     `json:"encoding"`
	Mapped   bool       `json:"mapped"`
	CDF      *cdfHeader `json:"cdf,omitempty"`
	CEL      *celHeader `json:"cel,omitempty"`
}

type cdfHeader struct {
	ChipType       string `json:"chip_type"`
	Version        int32  `json:"version"`
	Cols           int    `json:"cols"`
	Rows           int    `json:"rows"`
	NumProbeSets   int    `json:"num_probe_sets"`
	NumQCProbeSets int    `json:"num_qc_probe_sets"`
	Reference      string `json:"reference,omitempty"`
	Logic          string `json:"logic"`
}

type celHeader struct {
	ChipType    string            `json:"chip_type"`
	Version     int32             `json:"version"`
	Cols        int               `json:"cols"`
	Rows        int               `json:"rows"`
	NumCells    int               `json:"num_cells"`
	Algorithm   string            `json:"algorithm"`
	Parameters  map[string]string `json:"parameters,omitempty"`
	Margin      int32             `json:"margin"`
	NumOutliers int               `json:"num_outliers"`
	NumMasked   int               `json:"num_masked"`
	Grid        cel.GridCorners   `json:"grid"`
}

type probeSetResponse struct {
	Index     int             `json:"index"`
	Name      string          `json:"name"`
	Type      string          `json:"type"`
	Direction string          `json:"direction"`
	NumLists  int32           `json:"num_lists"`
	NumCells  int32           `json:"num_cells"`
	Number    int32           `json:"number"`
	Groups    []groupResponse `json:"groups"`
}

type groupResponse struct {
	Name      string          `json:"name"`
	Direction string          `json:"direction"`
	NumLists  int32           `json:"num_lists"`
	Start     int32           `json:"start"`
	Stop      int32           `json:"stop"`
	Cells     []probeResponse `json:"cells"`
}

type probeResponse struct {
	X         uint16 `json:"x"`
	Y         uint16 `json:"y"`
	Index     int    `json:"index"`
	ListIndex int32  `json:"list_index"`
	Expos     int32  `json:"expos"`
	PBase     string `json:"pbase"`
	TBase     string `json:"tbase"`
	Mismatch  bool   `json:"mismatch"`
}

type cellResponse struct {
	Index     int     `json:"index"`
	X         int     `json:"x"`
	Y         int     `json:"y"`
	Intensity float32 `json:"intensity"`
	Stdv      float32 `json:"stdv"`
	Pixels    int16   `json:"pixels"`
	Outlier   bool    `json:"outlier"`
	Masked    bool    `json:"masked"`
}

func describeCDF(f *cdf.File) *cdfHeader {
	h := f.Header()
	return &cdfHeader{
		ChipType:       f.ChipType(),
		Version:        h.Version,
		Cols:           int(h.Cols),
		Rows:           int(h.Rows),
		NumProbeSets:   f.NumProbeSets(),
		NumQCProbeSets: f.NumQCProbeSets(),
		Reference:      h.Reference,
		Logic:          f.Options().Logic.String(),
	}
}

func describeCEL(f *cel.File) *celHeader {
	h := f.Header()
	out := &celHeader{
		ChipType:    f.ChipType(),
		Version:     h.Version,
		Cols:        f.Cols(),
		Rows:        f.Rows(),
		NumCells:    f.NumCells(),
		Algorithm:   h.Algorithm,
		Margin:      h.Margin,
		NumOutliers: f.NumOutliers(),
		NumMasked:   f.NumMasked(),
		Grid:        h.Grid,
	}
	if len(h.AlgorithmParameters) > 0 {
		out.Parameters = make(map[string]string, len(h.AlgorithmParameters))
		for _, p := range h.AlgorithmParameters {
			out.Parameters[p.Tag] = p.Value
		}
	}
	return out
}

func probeSetView(f *cdf.File, i int) (*probeSetResponse, error) {
	ps, err := f.ProbeSet(i)
	if err != nil {
		return nil, err
	}
	name, err := ps.Name()
	if err != nil {
		return nil, err
	}
	out := &probeSetResponse{
		Index:     i,
		Name:      name,
		Type:      ps.Type.String(),
		Direction: ps.Direction.String(),
		NumLists:  ps.NumLists,
		NumCells:  ps.NumCells,
		Number:    ps.ProbeSetNumber,
		Groups:    make([]groupResponse, ps.NumGroups),
	}
	cols := int(f.Header().Cols)
	for g := range out.Groups {
		grp, err := ps.Group(g)
		if err != nil {
			return nil, err
		}
		cells, err := grp.Cells()
		if err != nil {
			return nil, err
		}
		gr := groupResponse{
			Name:      grp.Name,
			Direction: grp.Direction.String(),
			NumLists:  grp.NumLists,
			Start:     grp.Start,
			Stop:      grp.Stop,
			Cells:     make([]probeResponse, len(cells)),
		}
		for c, p := range cells {
			gr.Cells[c] = probeResponse{
				X:         p.X,
				Y:         p.Y,
				Index:     int(p.Y)*cols + int(p.X),
				ListIndex: p.ListIndex,
				Expos:     p.Expos,
				PBase:     string(p.PBase),
				TBase:     string(p.TBase),
				Mismatch:  p.IsMismatch(f.Options().Logic),
			}
		}
		out.Groups[g] = gr
	}
	return out, nil
}

func cellView(f *cel.File, i int) (*cellResponse, error) {
	e, err := f.Entry(i)
	if err != nil {
		return nil, err
	}
	out := &cellResponse{
		Index:     i,
		X:         f.IndexToX(i),
		Y:         f.IndexToY(i),
		Intensity: e.Intensity,
		Stdv:      e.Stdv,
		Pixels:    e.Pixels,
	}
	if f.Options().IncludeMaskAndOutliers {
		if out.Outlier, err = f.IsOutlier(i); err != nil {
			return nil, err
		}
		if out.Masked, err = f.IsMasked(i); err != nil {
			return nil, err
		}
	}
	return out, nil
}
