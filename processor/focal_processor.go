package processor

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/nci/gfocal/utils"
)

const DefaultBandRows = 64

// ProgressFunc receives the number of completed row bands out of total.
// Calls are serialised and done increases by one per call.
type ProgressFunc func(done, total int)

// FocalProcessor computes moving-window statistics over a Grid. It holds no
// state between calls and is safe for concurrent use.
type FocalProcessor struct {
	// Concurrency is the number of row bands computed at once. Values
	// below 2 compute serially.
	Concurrency int
	BandRows    int
	Progress    ProgressFunc
}

type FocalOption func(*FocalProcessor)

func WithConcurrency(n int) FocalOption {
	return func(fp *FocalProcessor) { fp.Concurrency = n }
}

func WithBandRows(n int) FocalOption {
	return func(fp *FocalProcessor) { fp.BandRows = n }
}

func WithProgress(fn ProgressFunc) FocalOption {
	return func(fp *FocalProcessor) { fp.Progress = fn }
}

func NewFocalProcessor(opts ...FocalOption) *FocalProcessor {
	fp := &FocalProcessor{Concurrency: 1, BandRows: DefaultBandRows}
	for _, opt := range opts {
		opt(fp)
	}
	return fp
}

// ApplyFocal runs a serial FocalProcessor.
func ApplyFocal(in *utils.Grid, win WindowSpec, stat StatisticKind, boundary BoundaryPolicy) (*utils.Grid, error) {
	return NewFocalProcessor().Apply(in, win, stat, boundary)
}

// Apply returns a new grid whose cells hold stat over the win-sized window
// centred on the matching input cell. Under BoundaryReplicate the output has
// the input shape; under BoundaryTruncate it loses the window radius on each
// edge and output (0, 0) is centred on input (radius, radius). A window
// without any valid value yields NaN. in is never modified.
func (fp *FocalProcessor) Apply(in *utils.Grid, win WindowSpec, stat StatisticKind, boundary BoundaryPolicy) (*utils.Grid, error) {
	if err := validateFocal(in, win, stat, boundary); err != nil {
		return nil, err
	}
	reduce, _ := focalReducer(stat)
	k := win.Radius()

	src := in
	if in.NoData != nil && !math.IsNaN(*in.NoData) {
		src = in.Clone()
		src.MaskNoData()
	}

	shift := k
	if boundary == BoundaryReplicate {
		src = padReplicate(src, k)
		shift = 0
	}

	outRows, outCols := src.Rows-2*k, src.Cols-2*k
	if outRows <= 0 || outCols <= 0 {
		outRows, outCols = 0, 0
	}
	out := in.CopyMeta(outRows, outCols, shift, shift)
	out.DType = focalOutputType(in.DType, stat)
	if out.Empty() {
		return out, nil
	}

	fp.run(src, out, k, reduce)
	return out, nil
}

func validateFocal(in *utils.Grid, win WindowSpec, stat StatisticKind, boundary BoundaryPolicy) error {
	if in == nil || in.Empty() {
		rows, cols := 0, 0
		if in != nil {
			rows, cols = in.Rows, in.Cols
		}
		return fmt.Errorf("%w: %dx%d", ErrEmptyGrid, rows, cols)
	}
	if len(in.Data) != in.Rows*in.Cols {
		return fmt.Errorf("%w: %d values for %dx%d", ErrGridShape, len(in.Data), in.Rows, in.Cols)
	}
	if !stat.valid() {
		return fmt.Errorf("%w: %v", ErrUnsupportedStatistic, stat)
	}
	if err := win.validate(); err != nil {
		return err
	}

	switch boundary {
	case BoundaryReplicate:
		minDim := in.Rows
		if in.Cols < minDim {
			minDim = in.Cols
		}
		if win.Size > minDim {
			return fmt.Errorf("%w: size %d exceeds the %dx%d grid", ErrInvalidWindow, win.Size, in.Rows, in.Cols)
		}
	case BoundaryTruncate:
	default:
		return fmt.Errorf("%w: unknown boundary policy %v", ErrInvalidWindow, boundary)
	}
	return nil
}

func focalOutputType(in utils.DType, stat StatisticKind) utils.DType {
	switch stat {
	case StatMin, StatMax:
		return in
	}
	if in.IsInteger() {
		return utils.Float32
	}
	return in
}

type rowBand struct {
	r0, r1 int
}

func splitRowBands(rows, bandRows int) []rowBand {
	if bandRows <= 0 {
		bandRows = DefaultBandRows
	}
	var bands []rowBand
	for r := 0; r < rows; r += bandRows {
		end := r + bandRows
		if end > rows {
			end = rows
		}
		bands = append(bands, rowBand{r, end})
	}
	return bands
}

// run computes the output row bands. Each band reads its own rows of src plus
// k rows either side and writes disjoint rows of out, so bands need no
// coordination besides progress reporting.
func (fp *FocalProcessor) run(src, out *utils.Grid, k int, reduce reduceFunc) {
	offsets := windowOffsets(k)
	bands := splitRowBands(out.Rows, fp.BandRows)

	var mu sync.Mutex
	done := 0
	report := func() {
		if fp.Progress == nil {
			return
		}
		mu.Lock()
		done++
		fp.Progress(done, len(bands))
		mu.Unlock()
	}

	conc := fp.Concurrency
	if conc > runtime.NumCPU()*4 {
		conc = runtime.NumCPU() * 4
	}
	if conc < 2 || len(bands) == 1 {
		for _, b := range bands {
			focalRows(src, out, k, offsets, reduce, b.r0, b.r1)
			report()
		}
		return
	}

	limiter := NewConcLimiter(conc)
	for _, b := range bands {
		b := b
		limiter.Go(func() {
			focalRows(src, out, k, offsets, reduce, b.r0, b.r1)
			report()
		})
	}
	limiter.Wait()
}

// FocalSummary describes a focal result for logging and warnings.
type FocalSummary struct {
	Rows, Cols int
	Cells      int
	NaNCells   int
	Degenerate bool
}

func Summarise(out *utils.Grid) FocalSummary {
	return FocalSummary{
		Rows:       out.Rows,
		Cols:       out.Cols,
		Cells:      out.Rows * out.Cols,
		NaNCells:   out.CountNaN(),
		Degenerate: out.Empty(),
	}
}
