package processor

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nci/gfocal/utils"
)

func TestRasterCalc(t *testing.T) {
	nan := math.NaN()
	a := mustGrid(t, [][]float64{{6, 4}, {nan, 1}})
	b := mustGrid(t, [][]float64{{3, 0}, {2, 2}})

	tests := []struct {
		op   CalcOp
		want []float64
	}{
		{CalcAdd, []float64{9, 4, nan, 3}},
		{CalcSubtract, []float64{3, 4, nan, -1}},
		{CalcMultiply, []float64{18, 0, nan, 2}},
		{CalcDivide, []float64{2, nan, nan, 0.5}},
	}
	for _, tc := range tests {
		t.Run(tc.op.String(), func(t *testing.T) {
			out, err := RasterCalc(a, b, tc.op)
			require.NoError(t, err)
			if diff := cmp.Diff(tc.want, out.Data, nanEqual); diff != "" {
				t.Errorf("RasterCalc(%v) mismatch (-want +got):\n%s", tc.op, diff)
			}
		})
	}
}

func TestRasterCalcOutputType(t *testing.T) {
	a := mustGrid(t, [][]float64{{6}})
	b := mustGrid(t, [][]float64{{4}})
	a.DType, b.DType = utils.Int16, utils.Byte

	out, err := RasterCalc(a, b, CalcAdd)
	require.NoError(t, err)
	assert.Equal(t, utils.Int32, out.DType)

	out, err = RasterCalc(a, b, CalcDivide)
	require.NoError(t, err)
	assert.Equal(t, utils.Float32, out.DType)
	assert.Equal(t, []float64{1.5}, out.Data)
}

func TestRasterCalcErrors(t *testing.T) {
	a := mustGrid(t, [][]float64{{1, 2}})
	b := mustGrid(t, [][]float64{{1, 2, 3}})

	_, err := RasterCalc(a, b, CalcAdd)
	assert.True(t, errors.Is(err, ErrShapeMismatch))

	_, err = RasterCalc(a, a, CalcOp(9))
	assert.True(t, errors.Is(err, ErrUnsupportedOperation))

	_, err = ParseCalcOp("power")
	assert.True(t, errors.Is(err, ErrUnsupportedOperation))

	op, err := ParseCalcOp("Divide")
	require.NoError(t, err)
	assert.Equal(t, CalcDivide, op)
}
