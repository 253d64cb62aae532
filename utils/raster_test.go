package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGridFromRows(t *testing.T) {
	g, err := NewGridFromRows([][]float64{{1, 2, 3}, {4, 5, 6}})
	require.NoError(t, err)
	assert.Equal(t, 2, g.Rows)
	assert.Equal(t, 3, g.Cols)
	assert.Equal(t, 6.0, g.At(1, 2))
	assert.Equal(t, []float64{4, 5, 6}, g.Row(1))

	_, err = NewGridFromRows([][]float64{{1, 2}, {3}})
	assert.ErrorIs(t, err, ErrMalformedGrid)

	empty, err := NewGridFromRows(nil)
	require.NoError(t, err)
	assert.True(t, empty.Empty())
}

func TestGridCopyMetaShiftsOrigin(t *testing.T) {
	g := NewGrid(5, 5, Int16)
	g.SetNoData(-1)
	g.GeoTransform = []float64{100, 2, 0, 50, 0, -2}

	out := g.CopyMeta(3, 3, 1, 1)
	assert.Equal(t, Int16, out.DType)
	assert.Equal(t, -1.0, *out.NoData)
	assert.Equal(t, []float64{102, 2, 0, 48, 0, -2}, out.GeoTransform)
	assert.Len(t, out.Data, 9)

	out.GeoTransform[0] = 0
	*out.NoData = 7
	assert.Equal(t, 100.0, g.GeoTransform[0])
	assert.Equal(t, -1.0, *g.NoData)
}

func TestGridNoDataMasking(t *testing.T) {
	g, err := NewGridFromRows([][]float64{{-9999, 1}, {2, -9999}})
	require.NoError(t, err)
	g.SetNoData(-9999)
	g.MaskNoData()
	assert.Equal(t, 2, g.CountNaN())
	assert.True(t, math.IsNaN(g.At(0, 0)))

	filled := g.FillNoData(0)
	assert.Equal(t, []float64{-9999, 1, 2, -9999}, filled.Data)
	assert.Equal(t, 2, g.CountNaN())

	bare := NewGrid(1, 1, Float32)
	bare.Data[0] = math.NaN()
	out := bare.FillNoData(-1)
	assert.Equal(t, []float64{-1}, out.Data)
	assert.Equal(t, -1.0, *out.NoData)
}

func TestGridBounds(t *testing.T) {
	g := NewGrid(2, 4, Float32)
	_, ok := g.Bounds()
	assert.False(t, ok)

	g.GeoTransform = []float64{10, 0.5, 0, -20, 0, -0.5}
	b, ok := g.Bounds()
	require.True(t, ok)
	assert.Equal(t, []float64{10, -21, 12, -20}, b)
}

func TestDType(t *testing.T) {
	d, err := ParseDType("float32")
	require.NoError(t, err)
	assert.Equal(t, Float32, d)
	assert.False(t, d.IsInteger())
	assert.Equal(t, 32, d.Bits())

	_, err = ParseDType("complex64")
	assert.Error(t, err)

	lo, hi := UInt16.Range()
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 65535.0, hi)
}

func TestTypedRasterConversion(t *testing.T) {
	r := &Int16Raster{Data: []int16{-5, 300, -999}, Height: 1, Width: 3, NoData: -999}
	g, err := ToGrid(r)
	require.NoError(t, err)
	assert.Equal(t, Int16, g.DType)
	assert.True(t, math.IsNaN(g.Data[2]))

	g.Data[1] = 300.6
	out, err := FromGrid(g, Byte)
	require.NoError(t, err)
	br := out.(*ByteRaster)
	assert.Equal(t, []uint8{0, 255, 0}, br.Data)

	_, err = ToGrid(&Int16Raster{Data: []int16{1}, Height: 2, Width: 2})
	assert.ErrorIs(t, err, ErrMalformedGrid)
}

func TestTypedRasterLengthMismatch(t *testing.T) {
	tests := []struct {
		name string
		r    Raster
	}{
		{"short int16", &Int16Raster{Data: []int16{1}, Height: 2, Width: 2}},
		{"long int16", &Int16Raster{Data: []int16{1, 2, 3, 4, 5}, Height: 2, Width: 2}},
		{"short byte", &ByteRaster{Data: []uint8{1, 2, 3}, Height: 2, Width: 2}},
		{"long uint16", &UInt16Raster{Data: make([]uint16, 7), Height: 3, Width: 2}},
		{"long float32", &Float32Raster{Data: make([]float32, 3), Height: 1, Width: 2}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var g *Grid
			var err error
			require.NotPanics(t, func() { g, err = ToGrid(tc.r) })
			assert.ErrorIs(t, err, ErrMalformedGrid)
			assert.Nil(t, g)
		})
	}

	g := NewGrid(2, 2, Float32)
	g.Data = append(g.Data, 9)
	var out Raster
	var err error
	require.NotPanics(t, func() { out, err = FromGrid(g, Int16) })
	assert.ErrorIs(t, err, ErrMalformedGrid)
	assert.Nil(t, out)
}
