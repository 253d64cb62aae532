package utils

import "errors"

var (
	ErrUnsupportedFormat = errors.New("unsupported raster format")
	ErrMalformedGrid     = errors.New("malformed grid")
	ErrDatasetNotFound   = errors.New("dataset not found")
	ErrBandIndex         = errors.New("band index out of range")
	ErrBadParam          = errors.New("bad request parameter")
)
