package utils

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteCapabilities(t *testing.T) {
	var buf bytes.Buffer
	err := ExecuteCapabilities(&buf, &CapabilitiesData{
		Hostname:  "localhost:8080",
		NameSpace: "terrain",
		Processes: []Process{
			{Identifier: "smooth", Title: "Smooth & fill"},
			{Identifier: "peaks", Title: "Peaks"},
		},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "<Endpoint>http://localhost:8080/ows/terrain</Endpoint>")
	assert.Contains(t, out, "<Identifier>smooth</Identifier>")
	assert.Contains(t, out, "<Identifier>peaks</Identifier>")
	assert.Contains(t, out, "Smooth &amp; fill")
	assert.NotContains(t, out, "Smooth & fill")
}

func TestExecuteDescribeProcess(t *testing.T) {
	var buf bytes.Buffer
	err := ExecuteDescribeProcess(&buf, &DescribeData{
		Process:       Process{Identifier: "smooth", Statistic: "mean", Boundary: "replicate-edge", WindowSize: 3, Band: 1},
		MaxWindowSize: 99,
		Statistics:    []string{"mean", "median", "min", "max"},
		Boundaries:    []string{"replicate-edge", "truncate"},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `<Input name="size" type="integer" default="3" max="99"/>`)
	assert.Contains(t, out, "<AllowedValue>median</AllowedValue>")
	assert.Contains(t, out, "<AllowedValue>truncate</AllowedValue>")
	assert.Contains(t, out, `default="replicate-edge"`)
}
