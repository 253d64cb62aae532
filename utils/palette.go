package utils

import (
	"fmt"
	"image/color"
)

// lerpUint8 moves from a towards b by i/n of the way.
func lerpUint8(a, b uint8, i, n int) uint8 {
	return uint8(int(a) + i*(int(b)-int(a))/n)
}

// InterpolateColor blends a and b at position i of n. The result is opaque.
func InterpolateColor(a, b color.RGBA, i, n int) color.RGBA {
	return color.RGBA{
		R: lerpUint8(a.R, b.R, i, n),
		G: lerpUint8(a.G, b.G, i, n),
		B: lerpUint8(a.B, b.B, i, n),
		A: 255,
	}
}

// sectionWidths splits 256 ramp entries into bins sections, handing the
// remainder out one entry at a time from the first section.
func sectionWidths(bins int) []int {
	widths := make([]int, bins)
	base := 256 / bins
	for i := range widths {
		widths[i] = base
		if i < 256-base*bins {
			widths[i]++
		}
	}
	return widths
}

// GradientRGBAPalette returns a ramp of 256 colours, either interpolated
// through the palette colours or as equal width bands of them.
func GradientRGBAPalette(palette *Palette) ([]color.RGBA, error) {
	if palette == nil {
		return nil, nil
	}
	if len(palette.Colours) < 2 {
		return nil, fmt.Errorf("palette needs at least 2 colours, got %d", len(palette.Colours))
	}

	ramp := make([]color.RGBA, 0, 256)
	if palette.Interpolate {
		base := 256 / (len(palette.Colours) - 1)
		for s, width := range sectionWidths(len(palette.Colours) - 1) {
			lo, hi := palette.Colours[s], palette.Colours[s+1]
			for i := 0; i < width; i++ {
				ramp = append(ramp, InterpolateColor(lo, hi, i, base))
			}
		}
		return ramp, nil
	}

	for s, width := range sectionWidths(len(palette.Colours)) {
		for i := 0; i < width; i++ {
			ramp = append(ramp, palette.Colours[s])
		}
	}
	return ramp, nil
}
