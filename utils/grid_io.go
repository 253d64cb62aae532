package utils

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// RasterHandle is an opened raster dataset. Band indices start at 1.
type RasterHandle interface {
	BandCount() int
	ReadBand(index int) (*Grid, error)
	WriteBand(index int, g *Grid) error
	Close() error
}

// OpenRaster opens an existing raster for reading.
func OpenRaster(path string) (RasterHandle, error) {
	switch rasterFormat(path) {
	case "asc":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		g, err := ReadASCIIGrid(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return &asciiRaster{path: path, grid: g, rows: g.Rows, cols: g.Cols, dtype: g.DType}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}

// CreateRaster creates a raster sink of the given shape and type.
func CreateRaster(path string, cols, rows, bandCount int, dtype DType) (RasterHandle, error) {
	switch rasterFormat(path) {
	case "asc":
		if bandCount != 1 {
			return nil, fmt.Errorf("%w: ASCII grids hold a single band, %d requested", ErrUnsupportedFormat, bandCount)
		}
		if rows <= 0 || cols <= 0 {
			return nil, fmt.Errorf("%w: cannot create %dx%d raster", ErrMalformedGrid, rows, cols)
		}
		return &asciiRaster{path: path, rows: rows, cols: cols, dtype: dtype, writable: true}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}

func rasterFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".asc", ".txt":
		return "asc"
	}
	return ""
}

// IsRasterFile reports whether path has an extension OpenRaster understands.
func IsRasterFile(path string) bool {
	return rasterFormat(path) != ""
}

type asciiRaster struct {
	path       string
	grid       *Grid
	rows, cols int
	dtype      DType
	writable   bool
}

func (a *asciiRaster) BandCount() int {
	return 1
}

func (a *asciiRaster) ReadBand(index int) (*Grid, error) {
	if index != 1 {
		return nil, fmt.Errorf("%w: band %d of %s", ErrBandIndex, index, a.path)
	}
	if a.grid == nil {
		return nil, fmt.Errorf("%s: nothing written yet", a.path)
	}
	return a.grid.Clone(), nil
}

func (a *asciiRaster) WriteBand(index int, g *Grid) error {
	if !a.writable {
		return fmt.Errorf("%s: raster opened read only", a.path)
	}
	if index != 1 {
		return fmt.Errorf("%w: band %d of %s", ErrBandIndex, index, a.path)
	}
	if g.Rows != a.rows || g.Cols != a.cols {
		return fmt.Errorf("%w: writing %dx%d band into %dx%d raster", ErrMalformedGrid, g.Rows, g.Cols, a.rows, a.cols)
	}

	out, err := narrowGrid(g, a.dtype)
	if err != nil {
		return err
	}

	f, err := os.Create(a.path)
	if err != nil {
		return err
	}
	if err := WriteASCIIGrid(f, out); err != nil {
		f.Close()
		return err
	}
	a.grid = out
	return f.Close()
}

// narrowGrid rounds and clamps the valid cells of g to what dtype holds.
// NaN cells stay NaN and g's NoData is kept.
func narrowGrid(g *Grid, dtype DType) (*Grid, error) {
	out := g.Clone()
	out.DType = dtype
	if dtype == Float64 {
		return out, nil
	}

	r, err := FromGrid(g, dtype)
	if err != nil {
		return nil, err
	}
	narrowed, err := ToGrid(r)
	if err != nil {
		return nil, err
	}
	for i, v := range narrowed.Data {
		switch {
		case math.IsNaN(g.Data[i]):
			out.Data[i] = math.NaN()
		case math.IsNaN(v):
			// a valid cell narrowed onto the sentinel
			out.Data[i] = r.GetNoData()
		default:
			out.Data[i] = v
		}
	}
	return out, nil
}

func (a *asciiRaster) Close() error {
	return nil
}
