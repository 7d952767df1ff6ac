package fixture

import (
	"fmt"
	"math/rand"
)

// DefaultSeed makes generated arrays reproducible.
const DefaultSeed = 42

// CDFConfig configures synthetic layout generation.
type CDFConfig struct {
	Cols  uint16
	Rows  uint16
	Units int
	// QCUnits is the number of QC probe sets.
	QCUnits int
	// ListsPerGroup is the number of lists (atoms) in each group.
	ListsPerGroup int
	// Seed for reproducible generation. 0 = DefaultSeed.
	Seed int64
}

// DefaultCDFConfig returns a small layout exercising every unit type.
func DefaultCDFConfig() CDFConfig {
	return CDFConfig{
		Cols:          64,
		Rows:          64,
		Units:         10,
		QCUnits:       3,
		ListsPerGroup: 3,
		Seed:          DefaultSeed,
	}
}

var bases = []byte("ACGT")

func complement(b byte) byte {
	switch b {
	case 'A':
		return 'T'
	case 'T':
		return 'A'
	case 'C':
		return 'G'
	default:
		return 'C'
	}
}

// GenerateCDF builds a layout cycling through expression, genotyping,
// resequencing, tag and unknown units. Cells are laid out row-major and
// wrap around the array when it is full.
func GenerateCDF(cfg CDFConfig) *CDF {
	seed := cfg.Seed
	if seed == 0 {
		seed = DefaultSeed
	}
	rng := rand.New(rand.NewSource(seed))
	lists := cfg.ListsPerGroup
	if lists <= 0 {
		lists = 1
	}

	c := &CDF{
		ChipName:  "Synth-1",
		Cols:      cfg.Cols,
		Rows:      cfg.Rows,
		Reference: "synthetic reference",
	}
	total := int(cfg.Cols) * int(cfg.Rows)
	pos := 0
	nextXY := func() (uint16, uint16) {
		p := pos % total
		pos++
		return uint16(p % int(cfg.Cols)), uint16(p / int(cfg.Cols))
	}

	for q := 0; q < cfg.QCUnits; q++ {
		unit := CDFQCUnit{Type: uint16(1 + q%18)}
		cells := 2 + rng.Intn(4)
		for k := 0; k < cells; k++ {
			x, y := nextXY()
			unit.Cells = append(unit.Cells, CDFQCCell{X: x, Y: y, ProbeLength: uint8(20 + rng.Intn(6))})
		}
		c.QC = append(c.QC, unit)
	}

	types := []uint16{TypeExpression, TypeGenotyping, TypeResequencing, TypeTag, TypeUnknown}
	for u := 0; u < cfg.Units; u++ {
		typ := types[u%len(types)]
		unit := CDFUnit{
			Name:      fmt.Sprintf("unit_%04d", u),
			Type:      typ,
			Direction: uint8(1 + rng.Intn(2)),
			Number:    int32(1000 + u),
		}

		groups := 1
		unit.CellsPerList = 4
		switch typ {
		case TypeExpression:
			unit.Name = fmt.Sprintf("AFFX-%04d_at", u)
			unit.CellsPerList = 2
		case TypeGenotyping:
			groups = 2
		}
		unit.NumLists = int32(groups * lists)

		atom := int32(rng.Intn(50))
		for g := 0; g < groups; g++ {
			grp := CDFGroup{
				Name:      fmt.Sprintf("%s_g%d", unit.Name, g),
				NumLists:  int32(lists),
				Direction: unit.Direction,
			}
			if typ == TypeExpression {
				grp.Name = unit.Name
			}
			if typ == TypeGenotyping {
				grp.Direction = uint8(1 + g%2)
			}
			for l := 0; l < lists; l++ {
				target := bases[rng.Intn(4)]
				for k := 0; k < int(unit.CellsPerList); k++ {
					x, y := nextXY()
					pb := bases[(k+rng.Intn(4))%4]
					if typ == TypeExpression {
						// perfect match first, then the mismatch
						pb = complement(target)
						if k == 1 {
							pb = target
						}
					}
					grp.Cells = append(grp.Cells, CDFCell{
						X:         x,
						Y:         y,
						ListIndex: atom,
						Expos:     int32(l),
						PBase:     pb,
						TBase:     target,
					})
				}
				atom++
			}
			unit.Groups = append(unit.Groups, grp)
		}
		c.Units = append(c.Units, unit)
	}
	return c
}

// CELConfig configures synthetic intensity generation.
type CELConfig struct {
	Cols     int32
	Rows     int32
	Masked   []int
	Outliers []int
	Seed     int64
}

// GenerateCEL fills every cell with a reproducible intensity.
func GenerateCEL(cfg CELConfig) *CEL {
	seed := cfg.Seed
	if seed == 0 {
		seed = DefaultSeed
	}
	rng := rand.New(rand.NewSource(seed))

	c := &CEL{
		Cols:       cfg.Cols,
		Rows:       cfg.Rows,
		ChipType:   "Synth-1",
		Algorithm:  "Percentile",
		Parameters: "Percentile:75;CellMargin:2;OutlierHigh:1.500;OutlierLow:1.004",
		Margin:     2,
		Grid:       [8]int32{10, 12, cfg.Cols*8 - 10, 11, cfg.Cols*8 - 9, cfg.Rows*8 - 12, 9, cfg.Rows*8 - 11},
		Masked:     append([]int(nil), cfg.Masked...),
		Outliers:   append([]int(nil), cfg.Outliers...),
	}
	n := int(cfg.Cols) * int(cfg.Rows)
	c.Entries = make([]CELEntry, n)
	for i := range c.Entries {
		c.Entries[i] = CELEntry{
			Intensity: float32(rng.Intn(200000)) / 10,
			Stdv:      float32(rng.Intn(5000)) / 10,
			Pixels:    int16(9 + rng.Intn(8)),
		}
	}
	return c
}
