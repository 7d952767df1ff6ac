package cel

import "sort"

// EntrySize is the on-disk size of one XDA intensity entry.
const EntrySize = 10

// Entry is the measurement for one cell.
type Entry struct {
	Intensity float32
	Stdv      float32
	Pixels    int16
}

// Point is an x,y pixel coordinate.
type Point struct {
	X, Y int32
}

// GridCorners locates the feature grid on the scanned image.
type GridCorners struct {
	UpperLeft  Point
	UpperRight Point
	LowerRight Point
	LowerLeft  Point
}

// Param is one algorithm parameter, kept in file order.
type Param struct {
	Tag   string
	Value string
}

// CellSet is a sparse set of cell indices.
type CellSet map[int32]struct{}

func (s CellSet) add(i int32) { s[i] = struct{}{} }

// Has reports whether i is in the set.
func (s CellSet) Has(i int) bool {
	_, ok := s[int32(i)]
	return ok
}

// Len returns the number of cells in the set.
func (s CellSet) Len() int { return len(s) }

// Sorted returns the members in ascending order.
func (s CellSet) Sorted() []int {
	out := make([]int, 0, len(s))
	for i := range s {
		out = append(out, int(i))
	}
	sort.Ints(out)
	return out
}
