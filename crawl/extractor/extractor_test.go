package extractor

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	yaml "gopkg.in/yaml.v2"
)

const demASCII = `ncols 3
nrows 2
xllcorner 100
yllcorner -30
cellsize 0.5
NODATA_value -9999
1 2 3
4 -9999 6
`

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
}

func TestExtractGridInfo(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dem_20200315.asc")
	writeFile(t, path, demASCII)

	gf, err := ExtractGridInfo(path)
	require.NoError(t, err)
	assert.Equal(t, "AAIGrid", gf.Driver)
	require.Len(t, gf.DataSets, 1)

	md := gf.DataSets[0]
	assert.Equal(t, "dem", md.NameSpace)
	assert.Equal(t, "Int32", md.Type)
	assert.Equal(t, 3, md.XSize)
	assert.Equal(t, 2, md.YSize)
	assert.Equal(t, 5, md.ValidCells)
	assert.Equal(t, 1.0, md.Min)
	assert.Equal(t, 6.0, md.Max)
	assert.InDelta(t, 3.2, md.Mean, 1e-9)
	require.NotNil(t, md.NoData)
	assert.Equal(t, -9999.0, *md.NoData)
	assert.Equal(t, []time.Time{time.Date(2020, 3, 15, 0, 0, 0, 0, time.UTC)}, md.TimeStamps)
	assert.Equal(t, "POLYGON ((100.000000 -29.000000,100.000000 -30.000000,101.500000 -30.000000,101.500000 -29.000000,100.000000 -29.000000))", md.Polygon)
	assert.NotNil(t, md.Footprint)
}

func TestExtractGridInfoErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := ExtractGridInfo(filepath.Join(dir, "missing.asc"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.asc")
	writeFile(t, bad, "ncols 2\nnrows 2\n1 2\n")
	_, err = ExtractGridInfo(bad)
	assert.Error(t, err)
}

func TestParseName(t *testing.T) {
	tests := []struct {
		name   string
		ns     string
		expect time.Time
	}{
		{"/data/rain_20190102T061530.asc", "rain", time.Date(2019, 1, 2, 6, 15, 30, 0, time.UTC)},
		{"/data/NDVI.A2018032.asc", "NDVI", time.Date(2018, 2, 1, 0, 0, 0, 0, time.UTC)},
		{"/data/land_cover_2015.asc", "land_cover", time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"/data/elevation.asc", "elevation", time.Time{}},
	}
	for _, tc := range tests {
		ns, ts := parseName(tc.name)
		assert.Equal(t, tc.ns, ns, tc.name)
		assert.True(t, tc.expect.Equal(ts), "%s: got %v", tc.name, ts)
	}
}

func TestParsePatternExpression(t *testing.T) {
	expr, err := parsePatternExpression("   ")
	assert.NoError(t, err)
	assert.Nil(t, expr)

	_, err = parsePatternExpression("size > 10")
	assert.Error(t, err)

	expr, err = parsePatternExpression("type == 'd' || path =~ '\\\\.asc$'")
	require.NoError(t, err)
	assert.NotNil(t, expr)
}

func crawlTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a_20200101.asc"), demASCII)
	writeFile(t, filepath.Join(root, "notes.md"), "notes")
	writeFile(t, filepath.Join(root, "sub", "b.asc"), demASCII)
	writeFile(t, filepath.Join(root, "sub", "deeper", "c.asc"), demASCII)
	return root
}

func decodeLines(t *testing.T, out string) []*PosixInfo {
	t.Helper()
	var infos []*PosixInfo
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		info := &PosixInfo{}
		require.NoError(t, json.Unmarshal([]byte(line), info))
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].FilePath < infos[j].FilePath })
	return infos
}

func TestExtractPosix(t *testing.T) {
	root := crawlTree(t)

	var buf bytes.Buffer
	require.NoError(t, ExtractPosix(&buf, root, CrawlOptions{Conc: 4}))
	infos := decodeLines(t, buf.String())
	require.Len(t, infos, 4)
	for _, info := range infos {
		assert.Len(t, info.ID, 32)
		assert.Empty(t, info.Grids)
	}
}

func TestExtractPosixPatternAndGridInfo(t *testing.T) {
	root := crawlTree(t)

	var buf bytes.Buffer
	opts := CrawlOptions{Conc: 2, Pattern: "type == 'd' || path =~ '\\\\.asc$'", GridInfo: true}
	require.NoError(t, ExtractPosix(&buf, root, opts))

	infos := decodeLines(t, buf.String())
	require.Len(t, infos, 3)
	assert.Equal(t, filepath.Join(root, "a_20200101.asc"), infos[0].FilePath)
	for _, info := range infos {
		require.Len(t, info.Grids, 1)
		assert.Equal(t, 3, info.Grids[0].XSize)
	}
	assert.Equal(t, "a", infos[0].Grids[0].NameSpace)
}

func TestExtractPosixSkipsFilteredDirs(t *testing.T) {
	root := crawlTree(t)

	var buf bytes.Buffer
	opts := CrawlOptions{Conc: 1, Pattern: "type == 'f' || path !~ 'deeper'"}
	require.NoError(t, ExtractPosix(&buf, root, opts))
	assert.Len(t, decodeLines(t, buf.String()), 3)
}

func TestExtractPosixFormats(t *testing.T) {
	root := crawlTree(t)

	var buf bytes.Buffer
	require.NoError(t, ExtractPosix(&buf, root, CrawlOptions{OutputFormat: "tsv", Pattern: "path !~ 'sub'"}))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	sort.Strings(lines)
	require.Len(t, lines, 2)
	fields := strings.SplitN(lines[0], "\t", 3)
	require.Len(t, fields, 3)
	assert.Equal(t, filepath.Join(root, "a_20200101.asc"), fields[0])
	assert.Equal(t, "posix", fields[1])

	buf.Reset()
	require.NoError(t, ExtractPosix(&buf, root, CrawlOptions{OutputFormat: "yaml", Pattern: "path =~ 'notes'"}))
	assert.True(t, strings.HasPrefix(buf.String(), "---\n"))
	var info PosixInfo
	require.NoError(t, yaml.Unmarshal([]byte(strings.TrimPrefix(buf.String(), "---\n")), &info))
	assert.Equal(t, filepath.Join(root, "notes.md"), info.FilePath)
	assert.Equal(t, int64(5), info.Size)

	assert.Error(t, ExtractPosix(&buf, root, CrawlOptions{OutputFormat: "xml"}))
}

func TestExtractPosixReportsErrors(t *testing.T) {
	err := ExtractPosix(&bytes.Buffer{}, filepath.Join(t.TempDir(), "missing"), CrawlOptions{})
	assert.Error(t, err)

	err = ExtractPosix(&bytes.Buffer{}, t.TempDir(), CrawlOptions{Pattern: "depth > 1"})
	assert.Error(t, err)
}
