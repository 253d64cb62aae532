package extractor

import (
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/nci/gfocal/utils"
)

// NameRule extracts a namespace and an acquisition time from a file's
// base name through named capture groups.
type NameRule struct {
	Pattern *regexp.Regexp
}

var NameRules = []NameRule{
	{regexp.MustCompile(`^(?P<namespace>[A-Za-z0-9]+)_(?P<year>\d{4})(?P<month>\d{2})(?P<day>\d{2})(T(?P<hour>\d{2})(?P<minute>\d{2})(?P<second>\d{2}))?`)},
	{regexp.MustCompile(`^(?P<namespace>[A-Za-z0-9]+)\.A(?P<year>\d{4})(?P<julian_day>\d{3})`)},
	{regexp.MustCompile(`^(?P<namespace>[A-Za-z0-9_]+?)_(?P<year>\d{4})$`)},
}

var driverNames = map[string]string{".asc": "AAIGrid", ".txt": "AAIGrid"}

// ExtractGridInfo opens a raster file and describes each of its bands.
func ExtractGridInfo(path string) (*GridFile, error) {
	h, err := utils.OpenRaster(path)
	if err != nil {
		return &GridFile{}, err
	}
	defer h.Close()

	nameSpace, timeStamp := parseName(path)
	datasets := []*GridMetaData{}
	for band := 1; band <= h.BandCount(); band++ {
		g, err := h.ReadBand(band)
		if err != nil {
			return &GridFile{}, fmt.Errorf("%s band %d: %v", path, band, err)
		}
		md := describeGrid(g)
		md.DataSetName = path
		if h.BandCount() > 1 {
			md.DataSetName = fmt.Sprintf("%s:%d", path, band)
		}
		md.NameSpace = nameSpace
		md.Band = band
		md.RasterCount = h.BandCount()
		if !timeStamp.IsZero() {
			md.TimeStamps = []time.Time{timeStamp}
		}
		datasets = append(datasets, md)
	}

	return &GridFile{FileName: path, Driver: driverNames[strings.ToLower(filepath.Ext(path))], DataSets: datasets}, nil
}

func describeGrid(g *utils.Grid) *GridMetaData {
	md := &GridMetaData{
		Type:         g.DType.String(),
		XSize:        g.Cols,
		YSize:        g.Rows,
		GeoTransform: g.GeoTransform,
		NoData:       g.NoData,
		Polygon:      getGeometryWKT(g),
		Footprint:    utils.GridFootprint(g),
	}

	valid := make([]float64, 0, len(g.Data))
	for _, v := range g.Data {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}
	md.ValidCells = len(valid)
	if len(valid) > 0 {
		md.Min = floats.Min(valid)
		md.Max = floats.Max(valid)
		md.Mean, md.StdDev = stat.PopMeanStdDev(valid, nil)
	}
	return md
}

func getGeometryWKT(g *utils.Grid) string {
	bbox, ok := g.Bounds()
	if !ok {
		return ""
	}
	minX, minY, maxX, maxY := bbox[0], bbox[1], bbox[2], bbox[3]
	return fmt.Sprintf("POLYGON ((%f %f,%f %f,%f %f,%f %f,%f %f))", minX, maxY, minX, minY, maxX, minY, maxX, maxY, minX, maxY)
}

// parseName falls back to the base name without extension as the namespace.
func parseName(path string) (string, time.Time) {
	basename := filepath.Base(path)
	stem := strings.TrimSuffix(basename, filepath.Ext(basename))

	for _, rule := range NameRules {
		match := rule.Pattern.FindStringSubmatch(stem)
		if match == nil {
			continue
		}
		fields := make(map[string]string)
		for i, name := range rule.Pattern.SubexpNames() {
			if i != 0 && name != "" && match[i] != "" {
				fields[name] = match[i]
			}
		}
		return fields["namespace"], parseTime(fields)
	}
	return stem, time.Time{}
}

func parseTime(nameFields map[string]string) time.Time {
	yearStr, ok := nameFields["year"]
	if !ok {
		return time.Time{}
	}
	atoi := func(key string) int {
		v, _ := strconv.Atoi(nameFields[key])
		return v
	}

	year, _ := strconv.Atoi(yearStr)
	t := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, ok := nameFields["julian_day"]; ok {
		t = t.AddDate(0, 0, atoi("julian_day")-1)
	}
	if _, ok := nameFields["month"]; ok {
		t = time.Date(year, time.Month(atoi("month")), atoi("day"), 0, 0, 0, 0, time.UTC)
	}
	return t.Add(time.Duration(atoi("hour"))*time.Hour +
		time.Duration(atoi("minute"))*time.Minute +
		time.Duration(atoi("second"))*time.Second)
}
