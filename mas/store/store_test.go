package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("sqlite", filepath.Join(t.TempDir(), "mas.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Init(context.Background()))
	return s
}

func TestRebind(t *testing.T) {
	pg := &Store{driver: "postgres"}
	assert.Equal(t, "select a from b where c = $1 and d = $2", pg.rebind("select a from b where c = ? and d = ?"))
	lite := &Store{driver: "sqlite"}
	assert.Equal(t, "where c = ?", lite.rebind("where c = ?"))
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "x")
	assert.Error(t, err)
}

func TestIngestLookupList(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	mtime := time.Date(2021, 7, 4, 10, 0, 0, 0, time.UTC)

	n, err := s.Ingest(ctx, []GridRecord{
		{Name: "dem_a", NameSpace: "dem", Path: "/data/dem_a.asc", Rows: 4, Cols: 5, DType: "Int32", FileID: "1", MTime: mtime},
		{Name: "dem_b", NameSpace: "dem", Path: "/data/dem_b.asc", Rows: 4, Cols: 5, DType: "Float32", FileID: "2", MTime: mtime},
		{Name: "dem%x", NameSpace: "dem", Path: "/data/odd.asc", Rows: 1, Cols: 1, DType: "Byte", FileID: "3", MTime: mtime},
		{Name: "rain", NameSpace: "rain", Path: "/data/rain.asc", Rows: 2, Cols: 2, DType: "Float32", FileID: "4", MTime: mtime},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	rec, err := s.Lookup(ctx, "dem_b")
	require.NoError(t, err)
	assert.Equal(t, "/data/dem_b.asc", rec.Path)
	assert.Equal(t, "Float32", rec.DType)
	assert.True(t, mtime.Equal(rec.MTime))

	_, err = s.Lookup(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	recs, err := s.List(ctx, "dem_")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "dem_a", recs[0].Name)
	assert.Equal(t, "dem_b", recs[1].Name)

	recs, err = s.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, recs, 4)

	// Re-ingesting a name replaces the record.
	_, err = s.Ingest(ctx, []GridRecord{{Name: "rain", NameSpace: "rain", Path: "/data/rain_v2.asc", Rows: 3, Cols: 3, DType: "Float32", FileID: "5", MTime: mtime}})
	require.NoError(t, err)
	rec, err = s.Lookup(ctx, "rain")
	require.NoError(t, err)
	assert.Equal(t, "/data/rain_v2.asc", rec.Path)
	assert.Equal(t, 3, rec.Rows)
}

func TestIngestRejectsIncompleteRecords(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.Ingest(ctx, []GridRecord{
		{Name: "ok", Path: "/data/ok.asc"},
		{Name: "nopath"},
	})
	assert.Error(t, err)

	recs, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestRecordsFromCrawl(t *testing.T) {
	crawl := strings.Join([]string{
		"/data/dem_20200101.asc\tposix\t" + `{"file_path":"/data/dem_20200101.asc","size":10,"mtime":"2020-01-02T00:00:00Z","id":"abc","grids":[{"ds_name":"/data/dem_20200101.asc","namespace":"dem","array_type":"Int32","band":1,"raster_count":1,"x_size":5,"y_size":4}]}`,
		"",
		"/data/notes.md\tposix\t" + `{"file_path":"/data/notes.md","size":5,"mtime":"2020-01-02T00:00:00Z","id":"def"}`,
	}, "\n")

	recs, err := RecordsFromCrawl(strings.NewReader(crawl))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "dem_20200101", recs[0].Name)
	assert.Equal(t, "dem", recs[0].NameSpace)
	assert.Equal(t, 4, recs[0].Rows)
	assert.Equal(t, 5, recs[0].Cols)
	assert.Equal(t, "abc", recs[0].FileID)

	_, err = RecordsFromCrawl(strings.NewReader("just a path\n"))
	assert.Error(t, err)
	_, err = RecordsFromCrawl(strings.NewReader("p\tposix\tnot json\n"))
	assert.Error(t, err)
}
