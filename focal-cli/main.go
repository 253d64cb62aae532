package main

/* focal-cli runs focal statistics and the supporting grid utilities
   over Esri ASCII grids from the command line. */

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/crypto/ssh/terminal"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/nci/gfocal/processor"
	"github.com/nci/gfocal/utils"
)

const (
	exitOK           = 0
	exitIOError      = 1
	exitPrecondition = 2
)

// stderrIsTerminal gates the progress bar.
var stderrIsTerminal = func() bool {
	return terminal.IsTerminal(int(os.Stderr.Fd()))
}

type options struct {
	op         string
	input      string
	inputs     string
	output     string
	windowSize int
	mode       string
	band       int
	boundary   string
	conc       int
	hist       string
	calc       string
	maskRange  string
	maskValues string
	maskExpr   string
	mask       string
	noData     float64
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("focal-cli", flag.ContinueOnError)
	fs.SetOutput(stderr)
	o := &options{}
	fs.StringVar(&o.op, "op", "focal", "Operation: focal, bandstats, calc, mask or applymask.")
	fs.StringVar(&o.input, "input", "", "Input grid.")
	fs.StringVar(&o.inputs, "inputs", "", "Comma separated input grids for bandstats and calc.")
	fs.StringVar(&o.output, "output", "", "Output grid.")
	fs.IntVar(&o.windowSize, "window-size", 3, "Odd window size.")
	fs.StringVar(&o.mode, "mode", "mean", "Statistic: mean, median, min, max (bandstats also sum, std).")
	fs.IntVar(&o.band, "band", 1, "Band to read, starting at 1.")
	fs.StringVar(&o.boundary, "boundary", "replicate-edge", "Boundary policy: replicate-edge or truncate.")
	fs.IntVar(&o.conc, "conc", 1, "Goroutines used by the focal kernel.")
	fs.StringVar(&o.hist, "hist", "", "Write a PNG histogram of the output values.")
	fs.StringVar(&o.calc, "calc", "add", "Raster calc operation: add, subtract, multiply, divide.")
	fs.StringVar(&o.maskRange, "mask-range", "", "Inclusive mask range min,max.")
	fs.StringVar(&o.maskValues, "mask-values", "", "Comma separated values kept by the mask.")
	fs.StringVar(&o.maskExpr, "mask-expr", "", "Mask expression over 'value', e.g. 'value > 3'.")
	fs.StringVar(&o.mask, "mask", "", "Mask grid for applymask, cells equal to 0 are invalidated.")
	fs.Float64Var(&o.noData, "nodata", -9999, "NoData value written by applymask.")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if o.output == "" {
		return nil, fmt.Errorf("-output is required")
	}
	return o, nil
}

// precondition marks failures reported with exit status 2.
type precondition struct{ error }

func (p precondition) Unwrap() error { return p.error }

func readGrid(path string, band int) (*utils.Grid, error) {
	h, err := utils.OpenRaster(path)
	if err != nil {
		if errors.Is(err, utils.ErrUnsupportedFormat) || errors.Is(err, utils.ErrMalformedGrid) {
			return nil, precondition{err}
		}
		return nil, err
	}
	defer h.Close()
	g, err := h.ReadBand(band)
	if errors.Is(err, utils.ErrBandIndex) {
		return nil, precondition{err}
	}
	return g, err
}

func readGrids(list string, band int) ([]*utils.Grid, error) {
	var grids []*utils.Grid
	for _, path := range strings.Split(list, ",") {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		g, err := readGrid(path, band)
		if err != nil {
			return nil, err
		}
		grids = append(grids, g)
	}
	if len(grids) == 0 {
		return nil, precondition{fmt.Errorf("-inputs is empty")}
	}
	return grids, nil
}

func writeGrid(path string, g *utils.Grid) error {
	sink, err := utils.CreateRaster(path, g.Cols, g.Rows, 1, g.DType)
	if err != nil {
		if errors.Is(err, utils.ErrUnsupportedFormat) {
			return precondition{err}
		}
		return err
	}
	if err := sink.WriteBand(1, g); err != nil {
		sink.Close()
		return err
	}
	return sink.Close()
}

func runFocal(o *options, stderr io.Writer) (*utils.Grid, error) {
	stat, err := processor.ParseStatistic(o.mode)
	if err != nil {
		return nil, err
	}
	boundary, err := processor.ParseBoundary(o.boundary)
	if err != nil {
		return nil, err
	}
	in, err := readGrid(o.input, o.band)
	if err != nil {
		return nil, err
	}

	opts := []processor.FocalOption{processor.WithConcurrency(o.conc)}
	if stderrIsTerminal() {
		bar := progressbar.NewOptions(in.Rows,
			progressbar.OptionSetWriter(stderr),
			progressbar.OptionSetDescription("focal "+stat.String()),
			progressbar.OptionClearOnFinish(),
		)
		opts = append(opts, processor.WithProgress(func(done, total int) {
			bar.ChangeMax(total)
			bar.Set(done)
		}))
		defer bar.Finish()
	}
	return processor.NewFocalProcessor(opts...).Apply(in, processor.WindowSpec{Size: o.windowSize}, stat, boundary)
}

func parseFloatList(list string) ([]float64, error) {
	var values []float64
	for _, part := range strings.Split(list, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

// parseMaskRule builds the rule from whichever one of -mask-range,
// -mask-values and -mask-expr was given.
func parseMaskRule(o *options) (processor.MaskRule, error) {
	var rules []processor.MaskRule
	if o.maskRange != "" {
		bounds, err := parseFloatList(o.maskRange)
		if err != nil || len(bounds) != 2 {
			return processor.MaskRule{}, fmt.Errorf("%w: -mask-range expects numeric min,max, got %q", processor.ErrInvalidMask, o.maskRange)
		}
		rules = append(rules, processor.RangeMask(bounds[0], bounds[1]))
	}
	if o.maskValues != "" {
		values, err := parseFloatList(o.maskValues)
		if err != nil {
			return processor.MaskRule{}, fmt.Errorf("%w: -mask-values %q: %v", processor.ErrInvalidMask, o.maskValues, err)
		}
		rules = append(rules, processor.ValueMask(values...))
	}
	if o.maskExpr != "" {
		rules = append(rules, processor.ExprMask(o.maskExpr))
	}
	if len(rules) != 1 {
		return processor.MaskRule{}, fmt.Errorf("%w: exactly one of -mask-range, -mask-values or -mask-expr is required", processor.ErrInvalidMask)
	}
	return rules[0], nil
}

func compute(o *options, stderr io.Writer) (*utils.Grid, error) {
	switch o.op {
	case "focal":
		return runFocal(o, stderr)
	case "bandstats":
		stat, err := processor.ParseBandStatistic(o.mode)
		if err != nil {
			return nil, err
		}
		bands, err := readGrids(o.inputs, o.band)
		if err != nil {
			return nil, err
		}
		return processor.BandStats(bands, stat)
	case "calc":
		op, err := processor.ParseCalcOp(o.calc)
		if err != nil {
			return nil, err
		}
		grids, err := readGrids(o.inputs, o.band)
		if err != nil {
			return nil, err
		}
		if len(grids) != 2 {
			return nil, precondition{fmt.Errorf("calc needs exactly 2 inputs, got %d", len(grids))}
		}
		return processor.RasterCalc(grids[0], grids[1], op)
	case "mask":
		rule, err := parseMaskRule(o)
		if err != nil {
			return nil, err
		}
		in, err := readGrid(o.input, o.band)
		if err != nil {
			return nil, err
		}
		return processor.CreateMask(in, rule)
	case "applymask":
		if o.mask == "" {
			return nil, precondition{fmt.Errorf("-mask is required for applymask")}
		}
		in, err := readGrid(o.input, o.band)
		if err != nil {
			return nil, err
		}
		mask, err := readGrid(o.mask, 1)
		if err != nil {
			return nil, err
		}
		return processor.ApplyMask(in, mask, o.noData)
	}
	return nil, fmt.Errorf("%w: -op %q", processor.ErrUnsupportedOperation, o.op)
}

// writeHistogram plots the distribution of the valid output values.
func writeHistogram(path string, g *utils.Grid, title string) error {
	values := make(plotter.Values, 0, len(g.Data))
	for _, v := range g.Data {
		if !math.IsNaN(v) {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return fmt.Errorf("no valid values to plot")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "value"
	p.Y.Label.Text = "cells"
	h, err := plotter.NewHist(values, 32)
	if err != nil {
		return err
	}
	p.Add(h)
	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}

func exitCode(err error) int {
	var pre precondition
	if processor.IsPrecondition(err) || errors.As(err, &pre) {
		return exitPrecondition
	}
	return exitIOError
}

func run(args []string, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		if err != flag.ErrHelp {
			fmt.Fprintln(stderr, err)
		}
		return exitPrecondition
	}

	out, err := compute(o, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "focal-cli: %v\n", err)
		return exitCode(err)
	}

	summary := processor.Summarise(out)
	if summary.Degenerate {
		fmt.Fprintf(stderr, "focal-cli: warning: window size %d leaves no output cells, nothing written\n", o.windowSize)
		return exitOK
	}
	if err := writeGrid(o.output, out); err != nil {
		fmt.Fprintf(stderr, "focal-cli: %v\n", err)
		return exitCode(err)
	}
	if o.hist != "" {
		if err := writeHistogram(o.hist, out, fmt.Sprintf("%s %s", o.op, o.mode)); err != nil {
			fmt.Fprintf(stderr, "focal-cli: histogram: %v\n", err)
			return exitIOError
		}
	}
	return exitOK
}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}
