package utils

import (
	"fmt"
	"math"
)

type Raster interface {
	GetNoData() float64
}

type ByteRaster struct {
	Data          []uint8
	Height, Width int
	NoData        float64
}

func (r *ByteRaster) GetNoData() float64 {
	return r.NoData
}

type Int16Raster struct {
	Data          []int16
	Height, Width int
	NoData        float64
}

func (r *Int16Raster) GetNoData() float64 {
	return r.NoData
}

type UInt16Raster struct {
	Data          []uint16
	Height, Width int
	NoData        float64
}

func (r *UInt16Raster) GetNoData() float64 {
	return r.NoData
}

type Int32Raster struct {
	Data          []int32
	Height, Width int
	NoData        float64
}

func (r *Int32Raster) GetNoData() float64 {
	return r.NoData
}

type Float32Raster struct {
	Data          []float32
	Height, Width int
	NoData        float64
}

func (r *Float32Raster) GetNoData() float64 {
	return r.NoData
}

// ToGrid widens a typed raster into a working Grid, NoData cells become NaN.
func ToGrid(r Raster) (*Grid, error) {
	var g *Grid
	switch t := r.(type) {
	case *ByteRaster:
		if err := checkRasterLen(len(t.Data), t.Height, t.Width); err != nil {
			return nil, err
		}
		g = NewGrid(t.Height, t.Width, Byte)
		for i, v := range t.Data {
			g.Data[i] = float64(v)
		}
	case *Int16Raster:
		if err := checkRasterLen(len(t.Data), t.Height, t.Width); err != nil {
			return nil, err
		}
		g = NewGrid(t.Height, t.Width, Int16)
		for i, v := range t.Data {
			g.Data[i] = float64(v)
		}
	case *UInt16Raster:
		if err := checkRasterLen(len(t.Data), t.Height, t.Width); err != nil {
			return nil, err
		}
		g = NewGrid(t.Height, t.Width, UInt16)
		for i, v := range t.Data {
			g.Data[i] = float64(v)
		}
	case *Int32Raster:
		if err := checkRasterLen(len(t.Data), t.Height, t.Width); err != nil {
			return nil, err
		}
		g = NewGrid(t.Height, t.Width, Int32)
		for i, v := range t.Data {
			g.Data[i] = float64(v)
		}
	case *Float32Raster:
		if err := checkRasterLen(len(t.Data), t.Height, t.Width); err != nil {
			return nil, err
		}
		g = NewGrid(t.Height, t.Width, Float32)
		for i, v := range t.Data {
			g.Data[i] = float64(v)
		}
	default:
		return nil, fmt.Errorf("Raster type not implemented")
	}
	g.SetNoData(r.GetNoData())
	g.MaskNoData()
	return g, nil
}

func checkRasterLen(n, height, width int) error {
	if height < 0 || width < 0 || n != height*width {
		return fmt.Errorf("%w: %d values for %dx%d raster", ErrMalformedGrid, n, height, width)
	}
	return nil
}

// FromGrid narrows a Grid into a typed raster. NaN cells take the grid's
// NoData value; integer types are rounded and clamped to their range.
func FromGrid(g *Grid, dtype DType) (Raster, error) {
	noData := 0.0
	if g.NoData != nil {
		noData = *g.NoData
	}
	lo, hi := dtype.Range()
	narrow := func(v float64) float64 {
		if math.IsNaN(v) {
			v = noData
		}
		if dtype.IsInteger() {
			v = math.Round(v)
		}
		return math.Max(lo, math.Min(hi, v))
	}

	if err := checkRasterLen(len(g.Data), g.Rows, g.Cols); err != nil {
		return nil, err
	}
	n := len(g.Data)
	switch dtype {
	case Byte:
		out := &ByteRaster{Data: make([]uint8, n), Height: g.Rows, Width: g.Cols, NoData: noData}
		for i, v := range g.Data {
			out.Data[i] = uint8(narrow(v))
		}
		return out, nil
	case Int16:
		out := &Int16Raster{Data: make([]int16, n), Height: g.Rows, Width: g.Cols, NoData: noData}
		for i, v := range g.Data {
			out.Data[i] = int16(narrow(v))
		}
		return out, nil
	case UInt16:
		out := &UInt16Raster{Data: make([]uint16, n), Height: g.Rows, Width: g.Cols, NoData: noData}
		for i, v := range g.Data {
			out.Data[i] = uint16(narrow(v))
		}
		return out, nil
	case Int32:
		out := &Int32Raster{Data: make([]int32, n), Height: g.Rows, Width: g.Cols, NoData: noData}
		for i, v := range g.Data {
			out.Data[i] = int32(narrow(v))
		}
		return out, nil
	case Float32:
		out := &Float32Raster{Data: make([]float32, n), Height: g.Rows, Width: g.Cols, NoData: noData}
		for i, v := range g.Data {
			out.Data[i] = float32(narrow(v))
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: no typed raster for %v", ErrUnsupportedFormat, dtype)
}
