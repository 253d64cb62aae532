package utils

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

const defaultASCIINoData = -9999

var asciiHeaders = map[string]bool{
	"NCOLS":        true,
	"NROWS":        true,
	"XLLCORNER":    true,
	"XLLCENTER":    true,
	"YLLCORNER":    true,
	"YLLCENTER":    true,
	"CELLSIZE":     true,
	"NODATA_VALUE": true,
}

// ReadASCIIGrid parses an Esri ASCII grid. NoData cells are returned as NaN
// and the sentinel is kept in Grid.NoData.
func ReadASCIIGrid(r io.Reader) (*Grid, error) {
	header := map[string]float64{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 64*1024*1024)

	var g *Grid
	n := 0
	allInts := true
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		keyword := strings.ToUpper(fields[0])
		if g == nil && asciiHeaders[keyword] {
			if len(fields) != 2 {
				return nil, fmt.Errorf("%w: line %d: header %s expects one value", ErrMalformedGrid, line, keyword)
			}
			val, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: header %s: %v", ErrMalformedGrid, line, keyword, err)
			}
			header[keyword] = val
			continue
		}

		if g == nil {
			var err error
			g, err = gridFromASCIIHeader(header)
			if err != nil {
				return nil, err
			}
		}

		for _, tok := range fields {
			if n >= len(g.Data) {
				return nil, fmt.Errorf("%w: line %d: more than %d values", ErrMalformedGrid, line, len(g.Data))
			}
			val, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedGrid, line, err)
			}
			if allInts && strings.ContainsAny(tok, ".eEnN") {
				allInts = false
			}
			g.Data[n] = val
			n++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if g == nil {
		var err error
		if g, err = gridFromASCIIHeader(header); err != nil {
			return nil, err
		}
	}
	if n != len(g.Data) {
		return nil, fmt.Errorf("%w: expected %d values, found %d", ErrMalformedGrid, len(g.Data), n)
	}

	if allInts {
		g.DType = Int32
	}
	g.MaskNoData()
	return g, nil
}

func gridFromASCIIHeader(header map[string]float64) (*Grid, error) {
	for _, k := range []string{"NCOLS", "NROWS", "CELLSIZE"} {
		if _, ok := header[k]; !ok {
			return nil, fmt.Errorf("%w: missing %s header", ErrMalformedGrid, k)
		}
	}
	cols, rows := int(header["NCOLS"]), int(header["NROWS"])
	if cols <= 0 || rows <= 0 {
		return nil, fmt.Errorf("%w: invalid dimensions %dx%d", ErrMalformedGrid, rows, cols)
	}
	cellSize := header["CELLSIZE"]

	var xll, yll float64
	if v, ok := header["XLLCORNER"]; ok {
		xll = v
	} else if v, ok := header["XLLCENTER"]; ok {
		xll = v - cellSize/2
	} else {
		return nil, fmt.Errorf("%w: missing XLLCORNER or XLLCENTER header", ErrMalformedGrid)
	}
	if v, ok := header["YLLCORNER"]; ok {
		yll = v
	} else if v, ok := header["YLLCENTER"]; ok {
		yll = v - cellSize/2
	} else {
		return nil, fmt.Errorf("%w: missing YLLCORNER or YLLCENTER header", ErrMalformedGrid)
	}

	g := NewGrid(rows, cols, Float32)
	g.GeoTransform = []float64{xll, cellSize, 0, yll + float64(rows)*cellSize, 0, -cellSize}
	if nd, ok := header["NODATA_VALUE"]; ok {
		g.SetNoData(nd)
	}
	return g, nil
}

// WriteASCIIGrid writes g as an Esri ASCII grid. NaN cells are written as the
// grid's NoData value, or -9999 when it has none.
func WriteASCIIGrid(w io.Writer, g *Grid) error {
	if g.Empty() {
		return fmt.Errorf("%w: cannot write an empty %dx%d grid", ErrMalformedGrid, g.Rows, g.Cols)
	}
	if len(g.Data) != g.Rows*g.Cols {
		return fmt.Errorf("%w: %d values for %dx%d grid", ErrMalformedGrid, len(g.Data), g.Rows, g.Cols)
	}

	xll, yll, cellSize := 0.0, 0.0, 1.0
	if len(g.GeoTransform) == 6 {
		cellSize = g.GeoTransform[1]
		xll = g.GeoTransform[0]
		yll = g.GeoTransform[3] + float64(g.Rows)*g.GeoTransform[5]
	}
	noData := float64(defaultASCIINoData)
	if g.NoData != nil && !math.IsNaN(*g.NoData) {
		noData = *g.NoData
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "ncols %d\n", g.Cols)
	fmt.Fprintf(bw, "nrows %d\n", g.Rows)
	fmt.Fprintf(bw, "xllcorner %s\n", formatASCIIValue(xll, Float64))
	fmt.Fprintf(bw, "yllcorner %s\n", formatASCIIValue(yll, Float64))
	fmt.Fprintf(bw, "cellsize %s\n", formatASCIIValue(cellSize, Float64))
	fmt.Fprintf(bw, "NODATA_value %s\n", formatASCIIValue(noData, g.DType))

	for r := 0; r < g.Rows; r++ {
		for c, v := range g.Row(r) {
			if c > 0 {
				bw.WriteByte(' ')
			}
			if math.IsNaN(v) {
				v = noData
			}
			bw.WriteString(formatASCIIValue(v, g.DType))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

func formatASCIIValue(v float64, dtype DType) string {
	switch {
	case dtype.IsInteger():
		return strconv.FormatInt(int64(math.Round(v)), 10)
	case dtype == Float32 && math.Abs(v) <= math.MaxFloat32:
		return strconv.FormatFloat(v, 'g', -1, 32)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
