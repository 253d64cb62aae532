package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nci/gfocal/mas/store"
	"github.com/nci/gfocal/utils"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	s, err := store.Open("sqlite", filepath.Join(t.TempDir(), "mas.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	require.NoError(t, s.Init(ctx))

	crawl := filepath.Join(t.TempDir(), "crawl.tsv")
	line := "/data/dem_20200101.asc\tposix\t" + `{"file_path":"/data/dem_20200101.asc","size":10,"mtime":"2020-01-02T00:00:00Z","id":"abc","grids":[{"namespace":"dem","array_type":"Int32","band":1,"raster_count":1,"x_size":5,"y_size":4}]}` + "\n"
	require.NoError(t, os.WriteFile(crawl, []byte(line), 0644))
	n, err := loadCrawl(ctx, s, crawl)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = s.Ingest(ctx, []store.GridRecord{{Name: "rain", NameSpace: "rain", Path: "/data/rain.asc", DType: "Float32", MTime: time.Now()}})
	require.NoError(t, err)

	srv := httptest.NewServer(&masHandler{store: s})
	t.Cleanup(srv.Close)
	return srv
}

func TestLookup(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/?lookup=dem_20200101")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var rec store.GridRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	assert.Equal(t, "/data/dem_20200101.asc", rec.Path)
	assert.Equal(t, 4, rec.Rows)

	resp2, err := http.Get(srv.URL + "/?lookup=nothing")
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestList(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/?list&prefix=ra")
	require.NoError(t, err)
	defer resp.Body.Close()
	var out struct {
		Grids []store.GridRecord `json:"grids"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Grids, 1)
	assert.Equal(t, "rain", out.Grids[0].Name)

	resp2, err := http.Get(srv.URL + "/?intersects")
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}

func TestClientAgainstAPI(t *testing.T) {
	srv := newTestServer(t)
	client := utils.NewMASClient(srv.Listener.Addr().String(), false)

	path, err := client.Lookup(context.Background(), "rain")
	require.NoError(t, err)
	assert.Equal(t, "/data/rain.asc", path)

	_, err = client.Lookup(context.Background(), "snow")
	assert.ErrorIs(t, err, utils.ErrDatasetNotFound)
}
