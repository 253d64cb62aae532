package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuery(t *testing.T) {
	m, err := ParseQuery("REQUEST=Execute&input=dem%2Fa.asc&&expr=a\\&b&flag")
	require.NoError(t, err)
	assert.Equal(t, []string{"Execute"}, m["request"])
	assert.Equal(t, []string{"dem/a.asc"}, m["input"])
	assert.Equal(t, []string{"a&b"}, m["expr"])
	assert.Equal(t, []string{""}, m["flag"])

	m, err = ParseQuery("a=%zz&b=1")
	assert.Error(t, err)
	assert.Equal(t, []string{"1"}, m["b"])
}

func TestCheckFocalParams(t *testing.T) {
	m, err := ParseQuery("request=execute&identifier=smooth&input=dem.asc&size=5&band=2&statistic=max&boundary=truncate&format=PNG")
	require.NoError(t, err)

	fp, err := CheckFocalParams(m)
	require.NoError(t, err)
	assert.Equal(t, FocalParams{
		Request:    "Execute",
		Identifier: "smooth",
		Input:      "dem.asc",
		Band:       2,
		WindowSize: 5,
		Statistic:  "max",
		Boundary:   "truncate",
		Format:     "png",
	}, fp)
}

func TestCheckFocalParamsErrors(t *testing.T) {
	for _, q := range []string{
		"",
		"request=GetMap",
		"request=Execute&size=three",
		"request=Execute&band=-1",
		"request=Execute&format=tiff",
		"request=DescribeProcess",
	} {
		m, err := ParseQuery(q)
		require.NoError(t, err)
		_, err = CheckFocalParams(m)
		assert.ErrorIs(t, err, ErrBadParam, q)
	}
}

func TestParseRemoteAddr(t *testing.T) {
	r := httptest.NewRequest("GET", "/ows", nil)
	r.RemoteAddr = "10.1.1.1:4000"
	assert.Equal(t, "10.1.1.1:4000", ParseRemoteAddr(r))

	r.Header.Set("X-Forwarded-For", "192.168.0.9, 10.0.0.1")
	assert.Equal(t, "192.168.0.9", ParseRemoteAddr(r))
}
