package processor

import (
	"math"

	"github.com/nci/gfocal/utils"
)

type offset struct {
	di, dj int
}

// windowOffsets enumerates every (row, col) offset of a window of radius k,
// row-major from (-k, -k) to (k, k).
func windowOffsets(k int) []offset {
	size := 2*k + 1
	offsets := make([]offset, 0, size*size)
	for di := -k; di <= k; di++ {
		for dj := -k; dj <= k; dj++ {
			offsets = append(offsets, offset{di, dj})
		}
	}
	return offsets
}

// padReplicate returns a copy of g extended by k cells on every side, the
// new cells repeating the nearest edge or corner value.
func padReplicate(g *utils.Grid, k int) *utils.Grid {
	if k == 0 {
		return g
	}
	rows, cols := g.Rows+2*k, g.Cols+2*k
	out := utils.NewGrid(rows, cols, g.DType)
	for r := 0; r < rows; r++ {
		src := g.Row(clampIndex(r-k, g.Rows))
		dst := out.Row(r)
		for c := 0; c < k; c++ {
			dst[c] = src[0]
			dst[cols-1-c] = src[g.Cols-1]
		}
		copy(dst[k:k+g.Cols], src)
	}
	return out
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// focalRows fills output rows [r0, r1). Output cell (r, c) is centred on
// source cell (r+k, c+k); for each window offset the matching row of the
// shifted source view is stacked per output column, skipping NaN, and each
// stack is then reduced.
func focalRows(src, out *utils.Grid, k int, offsets []offset, reduce reduceFunc, r0, r1 int) {
	n := out.Cols
	stack := make([][]float64, n)
	for c := range stack {
		stack[c] = make([]float64, 0, len(offsets))
	}

	for r := r0; r < r1; r++ {
		for c := range stack {
			stack[c] = stack[c][:0]
		}
		for _, o := range offsets {
			start := (r+k+o.di)*src.Cols + k + o.dj
			view := src.Data[start : start+n]
			for c, v := range view {
				if !math.IsNaN(v) {
					stack[c] = append(stack[c], v)
				}
			}
		}
		dst := out.Row(r)
		for c := range dst {
			dst[c] = reduce(stack[c])
		}
	}
}
