package processor

import (
	"fmt"
	"math"
	"strings"

	"github.com/nci/gfocal/utils"
)

// BandStatistic is a per-pixel statistic computed across the bands of a stack.
type BandStatistic int

const (
	BandMean BandStatistic = iota
	BandMedian
	BandMin
	BandMax
	BandSum
	BandStd
)

var bandStatNames = []string{"mean", "median", "min", "max", "sum", "std"}

func (s BandStatistic) String() string {
	if s >= BandMean && s <= BandStd {
		return bandStatNames[s]
	}
	return fmt.Sprintf("BandStatistic(%d)", int(s))
}

func ParseBandStatistic(name string) (BandStatistic, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, s := range bandStatNames {
		if n == s {
			return BandStatistic(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q, expecting one of %v", ErrUnsupportedStatistic, name, bandStatNames)
}

func (s BandStatistic) reducer() (reduceFunc, error) {
	switch s {
	case BandMean:
		return nanMean, nil
	case BandMedian:
		return nanMedian, nil
	case BandMin:
		return nanMin, nil
	case BandMax:
		return nanMax, nil
	case BandSum:
		return nanSum, nil
	case BandStd:
		return nanStd, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnsupportedStatistic, s)
}

// BandStats reduces a stack of same-shape bands pixel by pixel. NaN values
// are skipped; a pixel with no valid value in any band is NaN.
func BandStats(bands []*utils.Grid, stat BandStatistic) (*utils.Grid, error) {
	reduce, err := stat.reducer()
	if err != nil {
		return nil, err
	}
	if err := checkStack(bands); err != nil {
		return nil, err
	}

	first := bands[0]
	out := first.CopyMeta(first.Rows, first.Cols, 0, 0)
	out.DType = utils.Float32
	if first.DType == utils.Float64 {
		out.DType = utils.Float64
	}

	stack := make([]float64, 0, len(bands))
	for i := range out.Data {
		stack = stack[:0]
		for _, b := range bands {
			v := b.Data[i]
			if b.NoData != nil && v == *b.NoData {
				continue
			}
			if !math.IsNaN(v) {
				stack = append(stack, v)
			}
		}
		out.Data[i] = reduce(stack)
	}
	return out, nil
}

func checkStack(bands []*utils.Grid) error {
	if len(bands) == 0 {
		return fmt.Errorf("%w: no bands given", ErrEmptyGrid)
	}
	for i, b := range bands {
		if b == nil || b.Empty() {
			return fmt.Errorf("%w: band %d", ErrEmptyGrid, i+1)
		}
		if len(b.Data) != b.Rows*b.Cols {
			return fmt.Errorf("%w: band %d", ErrGridShape, i+1)
		}
		if !b.SameShape(bands[0]) {
			return fmt.Errorf("%w: band %d is %dx%d, band 1 is %dx%d",
				ErrShapeMismatch, i+1, b.Rows, b.Cols, bands[0].Rows, bands[0].Cols)
		}
	}
	return nil
}
