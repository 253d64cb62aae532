package utils

import (
	"fmt"
	"math"
	"strings"
)

// DType is the semantic numeric type of a band.
type DType int

const (
	Byte DType = iota
	Int16
	UInt16
	Int32
	Float32
	Float64
)

var dtypeNames = map[DType]string{
	Byte:    "Byte",
	Int16:   "Int16",
	UInt16:  "UInt16",
	Int32:   "Int32",
	Float32: "Float32",
	Float64: "Float64",
}

func (d DType) String() string {
	if name, ok := dtypeNames[d]; ok {
		return name
	}
	return fmt.Sprintf("DType(%d)", int(d))
}

// ParseDType accepts the GDAL style names (Byte, Int16, ...) case insensitively.
func ParseDType(name string) (DType, error) {
	for d, n := range dtypeNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return d, nil
		}
	}
	return Float64, fmt.Errorf("unknown data type: %q", name)
}

func (d DType) IsInteger() bool {
	switch d {
	case Byte, Int16, UInt16, Int32:
		return true
	}
	return false
}

func (d DType) Bits() int {
	switch d {
	case Byte:
		return 8
	case Int16, UInt16:
		return 16
	case Int32, Float32:
		return 32
	}
	return 64
}

// Range returns the representable value range of integer types.
func (d DType) Range() (float64, float64) {
	switch d {
	case Byte:
		return 0, math.MaxUint8
	case Int16:
		return math.MinInt16, math.MaxInt16
	case UInt16:
		return 0, math.MaxUint16
	case Int32:
		return math.MinInt32, math.MaxInt32
	case Float32:
		return -math.MaxFloat32, math.MaxFloat32
	}
	return -math.MaxFloat64, math.MaxFloat64
}

// Grid is one band of raster data held as row-major float64 values.
// NoData cells are represented as NaN while a Grid is being processed;
// NoData keeps the sentinel to restore on output.
type Grid struct {
	Rows, Cols   int
	DType        DType
	NoData       *float64
	GeoTransform []float64
	Data         []float64
}

func NewGrid(rows, cols int, dtype DType) *Grid {
	if rows < 0 {
		rows = 0
	}
	if cols < 0 {
		cols = 0
	}
	return &Grid{Rows: rows, Cols: cols, DType: dtype, Data: make([]float64, rows*cols)}
}

// NewGridFromRows builds a Float64 grid from a slice of equally sized rows.
func NewGridFromRows(rows [][]float64) (*Grid, error) {
	if len(rows) == 0 {
		return NewGrid(0, 0, Float64), nil
	}
	g := NewGrid(len(rows), len(rows[0]), Float64)
	for r, row := range rows {
		if len(row) != g.Cols {
			return nil, fmt.Errorf("%w: row %d has %d columns, expected %d", ErrMalformedGrid, r, len(row), g.Cols)
		}
		copy(g.Data[r*g.Cols:], row)
	}
	return g, nil
}

func (g *Grid) At(row, col int) float64 {
	return g.Data[row*g.Cols+col]
}

func (g *Grid) Set(row, col int, v float64) {
	g.Data[row*g.Cols+col] = v
}

func (g *Grid) Row(row int) []float64 {
	return g.Data[row*g.Cols : (row+1)*g.Cols]
}

func (g *Grid) Empty() bool {
	return g.Rows == 0 || g.Cols == 0
}

// SameShape reports whether both grids have the same dimensions.
func (g *Grid) SameShape(o *Grid) bool {
	return g.Rows == o.Rows && g.Cols == o.Cols
}

func (g *Grid) SetNoData(v float64) {
	nd := v
	g.NoData = &nd
}

// Clone returns a deep copy.
func (g *Grid) Clone() *Grid {
	out := &Grid{Rows: g.Rows, Cols: g.Cols, DType: g.DType}
	if g.NoData != nil {
		out.SetNoData(*g.NoData)
	}
	if g.GeoTransform != nil {
		out.GeoTransform = append([]float64(nil), g.GeoTransform...)
	}
	out.Data = append([]float64(nil), g.Data...)
	return out
}

// CopyMeta returns an empty grid of the given shape carrying g's type, NoData
// and georeferencing, with the origin shifted by (offRow, offCol) cells.
func (g *Grid) CopyMeta(rows, cols, offRow, offCol int) *Grid {
	out := NewGrid(rows, cols, g.DType)
	if g.NoData != nil {
		out.SetNoData(*g.NoData)
	}
	if len(g.GeoTransform) == 6 {
		gt := append([]float64(nil), g.GeoTransform...)
		gt[0] += float64(offCol)*gt[1] + float64(offRow)*gt[2]
		gt[3] += float64(offCol)*gt[4] + float64(offRow)*gt[5]
		out.GeoTransform = gt
	}
	return out
}

// MaskNoData replaces the NoData sentinel with NaN in place.
func (g *Grid) MaskNoData() {
	if g.NoData == nil || math.IsNaN(*g.NoData) {
		return
	}
	nd := *g.NoData
	for i, v := range g.Data {
		if v == nd {
			g.Data[i] = math.NaN()
		}
	}
}

// FillNoData returns a copy where NaN cells carry the NoData sentinel, or
// fallback when the grid has none. The returned grid's NoData is set.
func (g *Grid) FillNoData(fallback float64) *Grid {
	out := g.Clone()
	nd := fallback
	if g.NoData != nil {
		nd = *g.NoData
	}
	out.SetNoData(nd)
	for i, v := range out.Data {
		if math.IsNaN(v) {
			out.Data[i] = nd
		}
	}
	return out
}

// CountNaN returns the number of invalid cells.
func (g *Grid) CountNaN() int {
	n := 0
	for _, v := range g.Data {
		if math.IsNaN(v) {
			n++
		}
	}
	return n
}

// Bounds returns minX, minY, maxX, maxY of a georeferenced, north-up grid.
func (g *Grid) Bounds() ([]float64, bool) {
	if len(g.GeoTransform) != 6 {
		return nil, false
	}
	gt := g.GeoTransform
	x0, y0 := gt[0], gt[3]
	x1 := gt[0] + float64(g.Cols)*gt[1] + float64(g.Rows)*gt[2]
	y1 := gt[3] + float64(g.Cols)*gt[4] + float64(g.Rows)*gt[5]
	return []float64{math.Min(x0, x1), math.Min(y0, y1), math.Max(x0, x1), math.Max(y0, y1)}, true
}
