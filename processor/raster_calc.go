package processor

import (
	"fmt"
	"math"
	"strings"

	"github.com/nci/gfocal/utils"
)

type CalcOp int

const (
	CalcAdd CalcOp = iota
	CalcSubtract
	CalcMultiply
	CalcDivide
)

var calcOpNames = []string{"add", "subtract", "multiply", "divide"}

func (op CalcOp) String() string {
	if op >= CalcAdd && op <= CalcDivide {
		return calcOpNames[op]
	}
	return fmt.Sprintf("CalcOp(%d)", int(op))
}

func ParseCalcOp(name string) (CalcOp, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, s := range calcOpNames {
		if n == s {
			return CalcOp(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q, expecting one of %v", ErrUnsupportedOperation, name, calcOpNames)
}

// RasterCalc combines two same-shape grids cell by cell. NaN in either
// operand gives NaN, as does division by zero.
func RasterCalc(a, b *utils.Grid, op CalcOp) (*utils.Grid, error) {
	var fn func(x, y float64) float64
	switch op {
	case CalcAdd:
		fn = func(x, y float64) float64 { return x + y }
	case CalcSubtract:
		fn = func(x, y float64) float64 { return x - y }
	case CalcMultiply:
		fn = func(x, y float64) float64 { return x * y }
	case CalcDivide:
		fn = func(x, y float64) float64 {
			if y == 0 {
				return math.NaN()
			}
			return x / y
		}
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedOperation, op)
	}
	if err := checkStack([]*utils.Grid{a, b}); err != nil {
		return nil, err
	}

	out := a.CopyMeta(a.Rows, a.Cols, 0, 0)
	if op == CalcDivide || !a.DType.IsInteger() || !b.DType.IsInteger() {
		out.DType = utils.Float32
		if a.DType == utils.Float64 || b.DType == utils.Float64 {
			out.DType = utils.Float64
		}
	} else {
		out.DType = utils.Int32
	}

	for i := range out.Data {
		x, y := a.Data[i], b.Data[i]
		if isNoData(a, x) || isNoData(b, y) {
			out.Data[i] = math.NaN()
			continue
		}
		out.Data[i] = fn(x, y)
	}
	return out, nil
}

func isNoData(g *utils.Grid, v float64) bool {
	return math.IsNaN(v) || (g.NoData != nil && v == *g.NoData)
}
