package processor

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// reduceFunc collapses the valid (non-NaN) values of one window or pixel
// stack into a single value. An empty stack yields NaN.
type reduceFunc func(valid []float64) float64

func focalReducer(s StatisticKind) (reduceFunc, error) {
	switch s {
	case StatMean:
		return nanMean, nil
	case StatMedian:
		return nanMedian, nil
	case StatMin:
		return nanMin, nil
	case StatMax:
		return nanMax, nil
	}
	return nil, ErrUnsupportedStatistic
}

func nanMean(valid []float64) float64 {
	if len(valid) == 0 {
		return math.NaN()
	}
	return stat.Mean(valid, nil)
}

func nanMin(valid []float64) float64 {
	if len(valid) == 0 {
		return math.NaN()
	}
	return floats.Min(valid)
}

func nanMax(valid []float64) float64 {
	if len(valid) == 0 {
		return math.NaN()
	}
	return floats.Max(valid)
}

func nanSum(valid []float64) float64 {
	if len(valid) == 0 {
		return math.NaN()
	}
	return floats.Sum(valid)
}

// nanStd is the population standard deviation (ddof=0).
func nanStd(valid []float64) float64 {
	if len(valid) == 0 {
		return math.NaN()
	}
	_, variance := stat.PopMeanVariance(valid, nil)
	return math.Sqrt(variance)
}

// nanMedian sorts valid in place. An even count averages the two middle values.
func nanMedian(valid []float64) float64 {
	n := len(valid)
	if n == 0 {
		return math.NaN()
	}
	sort.Float64s(valid)
	if n%2 == 1 {
		return valid[n/2]
	}
	return (valid[n/2-1] + valid[n/2]) / 2
}
