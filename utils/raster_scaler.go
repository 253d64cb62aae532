package utils

import (
	"fmt"
	"math"
)

// ScaleParams maps grid values into the 0..254 byte range used by previews.
// Values are shifted by Offset, clipped to [0, Clip] and multiplied by Scale.
// A zero Scale stretches [0, Clip] over the full range; a zero Clip uses the
// largest shifted value in the grid.
type ScaleParams struct {
	Offset float64 `json:"offset" yaml:"offset"`
	Scale  float64 `json:"scale" yaml:"scale"`
	Clip   float64 `json:"clip" yaml:"clip"`
}

// ScaleGrid converts g to a ByteRaster. Invalid cells are set to 0xFF.
func ScaleGrid(g *Grid, params ScaleParams) (*ByteRaster, error) {
	if len(g.Data) != g.Rows*g.Cols {
		return nil, fmt.Errorf("%w: %d values for %dx%d grid", ErrMalformedGrid, len(g.Data), g.Rows, g.Cols)
	}
	out := &ByteRaster{NoData: 0xFF, Data: make([]uint8, len(g.Data)), Width: g.Cols, Height: g.Rows}

	clip := params.Clip
	if clip <= 0 {
		for _, value := range g.Data {
			if !math.IsNaN(value) && value+params.Offset > clip {
				clip = value + params.Offset
			}
		}
	}
	scale := params.Scale
	if scale == 0 {
		scale = 1
		if clip > 0 {
			scale = 254.0 / clip
		}
	}

	for i, value := range g.Data {
		if math.IsNaN(value) {
			out.Data[i] = 0xFF
			continue
		}
		value += params.Offset
		if value > clip {
			value = clip
		}
		if value < 0 {
			value = 0
		}
		out.Data[i] = uint8(math.Min(254, value*scale))
	}
	return out, nil
}

func Scale(gs []*Grid, params ScaleParams) ([]*ByteRaster, error) {
	out := make([]*ByteRaster, len(gs))

	for i, g := range gs {
		br, err := ScaleGrid(g, params)
		if err != nil {
			return out, err
		}
		out[i] = br
	}

	return out, nil
}
