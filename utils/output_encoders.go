package utils

import (
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	geojson "github.com/paulmach/go.geojson"
)

// Output formats understood by EncodeGrid.
const (
	FormatASCII = "asc"
	FormatPNG   = "png"
	FormatJSON  = "json"
)

var formatContentTypes = map[string]string{
	FormatASCII: "text/plain",
	FormatPNG:   "image/png",
	FormatJSON:  "application/json",
}

// ContentType returns the MIME type of an output format.
func ContentType(format string) (string, error) {
	ct, ok := formatContentTypes[format]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return ct, nil
}

// EncodeGrid writes g in the named format. Palette and scaling only apply
// to PNG previews.
func EncodeGrid(w io.Writer, format string, g *Grid, sp ScaleParams, palette *Palette) error {
	switch format {
	case FormatASCII:
		return EncodeASCII(w, g)
	case FormatPNG:
		return EncodePNG(w, g, sp, palette)
	case FormatJSON:
		return EncodeJSON(w, g)
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

func EncodeASCII(w io.Writer, g *Grid) error {
	return WriteASCIIGrid(w, g)
}

// EncodePNG renders a preview of g. Without a palette the image is
// greyscale. Invalid cells are transparent.
func EncodePNG(w io.Writer, g *Grid, sp ScaleParams, palette *Palette) error {
	if g.Empty() {
		return fmt.Errorf("%w: cannot render an empty %dx%d grid", ErrMalformedGrid, g.Rows, g.Cols)
	}
	br, err := ScaleGrid(g, sp)
	if err != nil {
		return err
	}
	plt, err := GradientRGBAPalette(palette)
	if err != nil {
		return err
	}

	canvas := image.NewRGBA(image.Rect(0, 0, br.Width, br.Height))
	for y := 0; y < br.Height; y++ {
		for x := 0; x < br.Width; x++ {
			v := br.Data[y*br.Width+x]
			if v == 0xFF {
				continue
			}
			if plt != nil {
				canvas.SetRGBA(x, y, plt[v])
			} else {
				canvas.SetRGBA(x, y, color.RGBA{v, v, v, 0xFF})
			}
		}
	}
	return png.Encode(w, canvas)
}

type gridDocument struct {
	Rows      int              `json:"rows"`
	Cols      int              `json:"cols"`
	DType     string           `json:"dtype"`
	NoData    *float64         `json:"nodata"`
	Data      [][]*float64     `json:"data"`
	Footprint *geojson.Feature `json:"footprint,omitempty"`
}

// EncodeJSON writes g as a JSON document. Invalid cells are null.
func EncodeJSON(w io.Writer, g *Grid) error {
	if len(g.Data) != g.Rows*g.Cols {
		return fmt.Errorf("%w: %d values for %dx%d grid", ErrMalformedGrid, len(g.Data), g.Rows, g.Cols)
	}
	doc := gridDocument{
		Rows:      g.Rows,
		Cols:      g.Cols,
		DType:     g.DType.String(),
		NoData:    g.NoData,
		Data:      make([][]*float64, g.Rows),
		Footprint: GridFootprint(g),
	}
	if doc.NoData != nil && math.IsNaN(*doc.NoData) {
		doc.NoData = nil
	}
	for r := 0; r < g.Rows; r++ {
		row := make([]*float64, g.Cols)
		for c, v := range g.Row(r) {
			if !math.IsNaN(v) {
				val := v
				row[c] = &val
			}
		}
		doc.Data[r] = row
	}
	return json.NewEncoder(w).Encode(doc)
}

// GridFootprint returns the extent of a georeferenced grid as a GeoJSON
// polygon feature, or nil when g carries no geotransform.
func GridFootprint(g *Grid) *geojson.Feature {
	b, ok := g.Bounds()
	if !ok || g.Empty() {
		return nil
	}
	ring := [][]float64{
		{b[0], b[1]},
		{b[2], b[1]},
		{b[2], b[3]},
		{b[0], b[3]},
		{b[0], b[1]},
	}
	f := geojson.NewPolygonFeature([][][]float64{ring})
	f.SetProperty("rows", g.Rows)
	f.SetProperty("cols", g.Cols)
	f.SetProperty("cellsize", g.GeoTransform[1])
	return f
}
