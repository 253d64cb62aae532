package processor

import (
	"fmt"
	"math"
	"strings"

	goeval "github.com/edisonguo/govaluate"
	"github.com/nci/gfocal/utils"
)

// MaskRule selects the cells kept by CreateMask. Exactly one of Range,
// Values or Expr is expected to be set.
type MaskRule struct {
	Range  *[2]float64
	Values []float64
	Expr   string
}

func RangeMask(min, max float64) MaskRule {
	return MaskRule{Range: &[2]float64{min, max}}
}

func ValueMask(values ...float64) MaskRule {
	return MaskRule{Values: values}
}

func ExprMask(expr string) MaskRule {
	return MaskRule{Expr: expr}
}

// compileMaskExpression compiles a boolean expression over the single
// variable "value".
func compileMaskExpression(expr string) (*goeval.EvaluableExpression, error) {
	ee, err := goeval.NewEvaluableExpression(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMask, err)
	}
	for _, token := range ee.Tokens() {
		if token.Kind != goeval.VARIABLE {
			continue
		}
		varName, ok := token.Value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: variable token '%v' failed to cast string", ErrInvalidMask, token.Value)
		}
		if varName != "value" {
			return nil, fmt.Errorf("%w: variable %v is not supported, only 'value' is", ErrInvalidMask, varName)
		}
	}
	return ee, nil
}

func (r MaskRule) matcher() (func(v float64) (bool, error), error) {
	set := 0
	if r.Range != nil {
		set++
	}
	if len(r.Values) > 0 {
		set++
	}
	if len(strings.TrimSpace(r.Expr)) > 0 {
		set++
	}
	if set != 1 {
		return nil, fmt.Errorf("%w: exactly one of range, values or expression is required", ErrInvalidMask)
	}

	switch {
	case r.Range != nil:
		lo, hi := r.Range[0], r.Range[1]
		if lo > hi {
			return nil, fmt.Errorf("%w: range min %v above max %v", ErrInvalidMask, lo, hi)
		}
		return func(v float64) (bool, error) { return v >= lo && v <= hi, nil }, nil
	case len(r.Values) > 0:
		lookup := make(map[float64]struct{}, len(r.Values))
		for _, v := range r.Values {
			lookup[v] = struct{}{}
		}
		return func(v float64) (bool, error) {
			_, ok := lookup[v]
			return ok, nil
		}, nil
	}

	expr, err := compileMaskExpression(r.Expr)
	if err != nil {
		return nil, err
	}
	params := map[string]interface{}{}
	return func(v float64) (bool, error) {
		params["value"] = v
		res, err := expr.Evaluate(params)
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrInvalidMask, err)
		}
		b, ok := res.(bool)
		if !ok {
			return false, fmt.Errorf("%w: expression %q is not boolean", ErrInvalidMask, r.Expr)
		}
		return b, nil
	}, nil
}

// CreateMask returns a Byte grid holding 1 where the rule matches and 0
// elsewhere. Invalid cells never match.
func CreateMask(g *utils.Grid, rule MaskRule) (*utils.Grid, error) {
	match, err := rule.matcher()
	if err != nil {
		return nil, err
	}
	if err := checkStack([]*utils.Grid{g}); err != nil {
		return nil, err
	}

	out := g.CopyMeta(g.Rows, g.Cols, 0, 0)
	out.DType = utils.Byte
	out.NoData = nil
	for i, v := range g.Data {
		if isNoData(g, v) {
			continue
		}
		ok, err := match(v)
		if err != nil {
			return nil, err
		}
		if ok {
			out.Data[i] = 1
		}
	}
	return out, nil
}

// ApplyMask invalidates the cells of g where mask is 0. The result carries
// noData as its sentinel.
func ApplyMask(g, mask *utils.Grid, noData float64) (*utils.Grid, error) {
	if err := checkStack([]*utils.Grid{g, mask}); err != nil {
		return nil, err
	}
	out := g.Clone()
	out.SetNoData(noData)
	for i, m := range mask.Data {
		if m == 0 || math.IsNaN(m) || isNoData(g, out.Data[i]) {
			out.Data[i] = math.NaN()
		}
	}
	return out, nil
}
