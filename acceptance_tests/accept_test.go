package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeOWS() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ows/terrain" || r.URL.Query().Get("identifier") == "missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("ok"))
	}))
}

func TestCapabilities(t *testing.T) {
	srv := fakeOWS()
	defer srv.Close()
	host := srv.Listener.Addr().String()

	assert.True(t, Capabilities(host, "terrain", ""))
	assert.True(t, Capabilities(host, "terrain", "smooth"))
	assert.False(t, Capabilities(host, "terrain", "missing"))
	assert.False(t, Capabilities(host, "ocean", ""))
}

func TestExecute(t *testing.T) {
	srv := fakeOWS()
	defer srv.Close()

	list := strings.Join([]string{
		"http://%s/ows/terrain?request=Execute&identifier=smooth&input=dem.asc",
		"",
		"http://%s/ows/terrain?request=Execute&identifier=peaks&input=dem.asc",
		"http://%s/ows/ocean?request=Execute&identifier=smooth&input=dem.asc",
	}, "\n")
	total, failures, _, err := Execute(srv.Listener.Addr().String(), strings.NewReader(list), 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, 1, failures)
}
