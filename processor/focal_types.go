package processor

import (
	"fmt"
	"strings"
)

// WindowSpec is a square window of Size x Size cells centred on the output cell.
type WindowSpec struct {
	Size int
}

// Radius is the number of cells between the window centre and its edge.
func (w WindowSpec) Radius() int {
	return w.Size / 2
}

func (w WindowSpec) validate() error {
	if w.Size <= 0 {
		return fmt.Errorf("%w: size %d must be positive", ErrInvalidWindow, w.Size)
	}
	if w.Size%2 == 0 {
		return fmt.Errorf("%w: size %d must be odd", ErrInvalidWindow, w.Size)
	}
	return nil
}

type StatisticKind int

const (
	StatMean StatisticKind = iota
	StatMedian
	StatMin
	StatMax
)

var statisticNames = []string{"mean", "median", "min", "max"}

func (s StatisticKind) String() string {
	if s.valid() {
		return statisticNames[s]
	}
	return fmt.Sprintf("StatisticKind(%d)", int(s))
}

func (s StatisticKind) valid() bool {
	return s >= StatMean && s <= StatMax
}

// ParseStatistic accepts mean, median, min and max, optionally prefixed with
// "nan" as the legacy filter modes were written.
func ParseStatistic(name string) (StatisticKind, error) {
	n := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), "nan")
	for i, s := range statisticNames {
		if n == s {
			return StatisticKind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q, expecting one of %v", ErrUnsupportedStatistic, name, statisticNames)
}

type BoundaryPolicy int

const (
	// BoundaryReplicate extends the grid by duplicating the outermost rows
	// and columns so the output keeps the input shape.
	BoundaryReplicate BoundaryPolicy = iota
	// BoundaryTruncate only computes cells whose whole window lies inside
	// the grid; the output shrinks by the radius on every edge.
	BoundaryTruncate
)

func (b BoundaryPolicy) String() string {
	switch b {
	case BoundaryReplicate:
		return "replicate-edge"
	case BoundaryTruncate:
		return "truncate"
	}
	return fmt.Sprintf("BoundaryPolicy(%d)", int(b))
}

// ParseBoundary maps a policy name to a BoundaryPolicy. An empty name
// selects replicate-edge.
func ParseBoundary(name string) (BoundaryPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "replicate-edge", "replicate", "edge", "":
		return BoundaryReplicate, nil
	case "truncate", "shrink":
		return BoundaryTruncate, nil
	}
	return 0, fmt.Errorf("%w: unknown boundary policy %q", ErrInvalidWindow, name)
}

// StatisticNames lists the canonical statistic names.
func StatisticNames() []string {
	return append([]string(nil), statisticNames...)
}

// BoundaryNames lists the canonical boundary policy names.
func BoundaryNames() []string {
	return []string{BoundaryReplicate.String(), BoundaryTruncate.String()}
}
