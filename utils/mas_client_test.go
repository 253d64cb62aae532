package utils

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMASClientLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("lookup") {
		case "dem/a b":
			w.Write([]byte(`{"path": "/data/dem/a b.asc"}`))
		case "broken":
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error": "db down"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error": "not found"}`))
		}
	}))
	defer srv.Close()

	mas := NewMASClient(strings.TrimPrefix(srv.URL, "http://"), false)

	path, err := mas.Lookup(context.Background(), "dem/a b")
	require.NoError(t, err)
	assert.Equal(t, "/data/dem/a b.asc", path)

	_, err = mas.Lookup(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrDatasetNotFound)

	_, err = mas.Lookup(context.Background(), "broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}
