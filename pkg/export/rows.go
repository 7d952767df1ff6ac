// Package export writes decoded CEL intensities and CDF layouts as Parquet
// tables and reads intensity tables back.
package export

// CELRow is one cell of an intensity file.
type CELRow struct {
	Index     int32   `parquet:"index"`
	X         int32   `parquet:"x"`
	Y         int32   `parquet:"y"`
	Intensity float32 `parquet:"intensity"`
	Stdv      float32 `parquet:"stdv"`
	Pixels    int32   `parquet:"pixels"`
	Outlier   bool    `parquet:"outlier"`
	Masked    bool    `parquet:"masked"`
}

// CDFRow is one probe of a layout, flattened with its probe set and group.
type CDFRow struct {
	ProbeSet     int32  `parquet:"probe_set"`
	ProbeSetName string `parquet:"probe_set_name,dict"`
	Type         string `parquet:"type,dict"`
	Group        int32  `parquet:"group"`
	GroupName    string `parquet:"group_name,dict"`
	Direction    string `parquet:"direction,dict"`
	Cell         int32  `parquet:"cell"`
	X            int32  `parquet:"x"`
	Y            int32  `parquet:"y"`
	CellIndex    int32  `parquet:"cell_index"`
	ListIndex    int32  `parquet:"list_index"`
	Expos        int32  `parquet:"expos"`
	PBase        string `parquet:"pbase"`
	TBase        string `parquet:"tbase"`
	Mismatch     bool   `parquet:"mismatch"`
}
