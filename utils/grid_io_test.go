package utils

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndOpenRaster(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.asc")

	src, err := NewGridFromRows([][]float64{{1.5, 2}, {3, 4}})
	require.NoError(t, err)
	src.GeoTransform = []float64{0, 1, 0, 2, 0, -1}

	sink, err := CreateRaster(path, 2, 2, 1, Float32)
	require.NoError(t, err)
	require.NoError(t, sink.WriteBand(1, src))
	require.NoError(t, sink.Close())

	h, err := OpenRaster(path)
	require.NoError(t, err)
	defer h.Close()
	assert.Equal(t, 1, h.BandCount())

	g, err := h.ReadBand(1)
	require.NoError(t, err)
	assert.Equal(t, src.Data, g.Data)
	assert.Equal(t, src.GeoTransform, g.GeoTransform)

	_, err = h.ReadBand(2)
	assert.ErrorIs(t, err, ErrBandIndex)
	assert.Error(t, h.WriteBand(1, g))
}

func TestCreateRasterRejects(t *testing.T) {
	dir := t.TempDir()

	_, err := CreateRaster(filepath.Join(dir, "a.asc"), 2, 2, 3, Float32)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = CreateRaster(filepath.Join(dir, "a.tif"), 2, 2, 1, Float32)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = CreateRaster(filepath.Join(dir, "a.asc"), 0, 2, 1, Float32)
	assert.ErrorIs(t, err, ErrMalformedGrid)

	sink, err := CreateRaster(filepath.Join(dir, "a.asc"), 2, 2, 1, Float32)
	require.NoError(t, err)
	assert.ErrorIs(t, sink.WriteBand(1, NewGrid(3, 3, Float32)), ErrMalformedGrid)
	assert.ErrorIs(t, sink.WriteBand(2, NewGrid(2, 2, Float32)), ErrBandIndex)
}

func TestOpenRasterMissing(t *testing.T) {
	_, err := OpenRaster(filepath.Join(t.TempDir(), "missing.asc"))
	assert.True(t, os.IsNotExist(err))

	assert.True(t, IsRasterFile("/data/x.TXT"))
	assert.False(t, IsRasterFile("/data/x.nc"))
}

func TestWriteBandNarrowsToSinkType(t *testing.T) {
	dir := t.TempDir()
	nan := math.NaN()

	tests := []struct {
		dtype DType
		in    []float64
		want  []float64
	}{
		{Byte, []float64{300.7, -4, 2.6, nan, 0, 127.4}, []float64{255, 0, 3, nan, 0, 127}},
		{Int16, []float64{40000.2, -40000, 2.6, -2.5, nan, 7}, []float64{32767, -32768, 3, -3, nan, 7}},
		{UInt16, []float64{70000, -1, 1.5, nan, 65535, 9.49}, []float64{65535, 0, 2, nan, 65535, 9}},
		{Int32, []float64{1e10, -1e10, 0.4, nan, -7.6, 1}, []float64{math.MaxInt32, math.MinInt32, 0, nan, -8, 1}},
	}
	for _, tc := range tests {
		t.Run(tc.dtype.String(), func(t *testing.T) {
			src, err := NewGridFromRows([][]float64{tc.in[:3], tc.in[3:]})
			require.NoError(t, err)
			src.SetNoData(-9999)

			path := filepath.Join(dir, tc.dtype.String()+".asc")
			sink, err := CreateRaster(path, 3, 2, 1, tc.dtype)
			require.NoError(t, err)
			require.NoError(t, sink.WriteBand(1, src))
			require.NoError(t, sink.Close())

			h, err := OpenRaster(path)
			require.NoError(t, err)
			got, err := h.ReadBand(1)
			require.NoError(t, err)
			require.Len(t, got.Data, len(tc.want))
			for i, w := range tc.want {
				if math.IsNaN(w) {
					assert.True(t, math.IsNaN(got.Data[i]), "cell %d", i)
					continue
				}
				assert.Equal(t, w, got.Data[i], "cell %d", i)
			}
		})
	}
}

func TestWriteBandFloat32Precision(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f32.asc")
	src, err := NewGridFromRows([][]float64{{8.0 / 3, 0.1}})
	require.NoError(t, err)

	sink, err := CreateRaster(path, 2, 1, 1, Float32)
	require.NoError(t, err)
	require.NoError(t, sink.WriteBand(1, src))

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(body), "2.6666667 0.1\n")
}
