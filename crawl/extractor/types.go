package extractor

import (
	"time"

	geojson "github.com/paulmach/go.geojson"
)

// GridMetaData describes one band of a raster file.
type GridMetaData struct {
	DataSetName  string           `json:"ds_name" yaml:"ds_name"`
	NameSpace    string           `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	Type         string           `json:"array_type" yaml:"array_type"`
	Band         int              `json:"band" yaml:"band"`
	RasterCount  int              `json:"raster_count" yaml:"raster_count"`
	TimeStamps   []time.Time      `json:"timestamps,omitempty" yaml:"timestamps,omitempty"`
	XSize        int              `json:"x_size" yaml:"x_size"`
	YSize        int              `json:"y_size" yaml:"y_size"`
	GeoTransform []float64        `json:"geotransform,omitempty" yaml:"geotransform,omitempty"`
	Polygon      string           `json:"polygon,omitempty" yaml:"polygon,omitempty"`
	Footprint    *geojson.Feature `json:"footprint,omitempty" yaml:"-"`
	NoData       *float64         `json:"nodata,omitempty" yaml:"nodata,omitempty"`
	ValidCells   int              `json:"valid_cells" yaml:"valid_cells"`
	Min          float64          `json:"min" yaml:"min"`
	Max          float64          `json:"max" yaml:"max"`
	Mean         float64          `json:"mean" yaml:"mean"`
	StdDev       float64          `json:"stddev" yaml:"stddev"`
}

type GridFile struct {
	FileName string          `json:"filename,omitempty" yaml:"filename,omitempty"`
	Driver   string          `json:"file_type" yaml:"file_type"`
	DataSets []*GridMetaData `json:"geo_metadata" yaml:"geo_metadata"`
}

type PosixInfo struct {
	FilePath string          `json:"file_path" yaml:"file_path"`
	Size     int64           `json:"size" yaml:"size"`
	MTime    time.Time       `json:"mtime" yaml:"mtime"`
	ID       string          `json:"id" yaml:"id"`
	Grids    []*GridMetaData `json:"grids,omitempty" yaml:"grids,omitempty"`
}
