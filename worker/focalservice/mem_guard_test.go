package focalservice

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const fakeMemInfo = `MemTotal:       16384000 kB
MemFree:         1024000 kB
MemAvailable:    2048000 kB
HugePages_Total:       0
`

func writeMemInfo(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "meminfo")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestParseProcInfo(t *testing.T) {
	path := writeMemInfo(t, fakeMemInfo)

	info, err := getMemoryInfo(path)
	require.NoError(t, err)
	assert.Equal(t, int64(16384000), info.TotalMemory)
	assert.Equal(t, int64(2048000), info.AvailableMemory)

	pi, err := parseProcInfo(path, []string{"HugePages_Total"})
	require.NoError(t, err)
	assert.Equal(t, "0", pi.Strings["HugePages_Total"])

	_, err = parseProcInfo(path, []string{"SwapTotal"})
	assert.Error(t, err)

	_, err = getMemoryInfo(writeMemInfo(t, "MemTotal: lots kB\nMemAvailable: 1 kB\n"))
	assert.Error(t, err)
}

func TestTaskMemoryKB(t *testing.T) {
	assert.Equal(t, int64(0), TaskMemoryKB(nil))
	task := &FocalTask{WindowSize: 3, Grid: &GridMessage{Rows: 126, Cols: 126}}
	// 2*126*126 + 128*128 cells of 8 bytes
	assert.Equal(t, int64((2*126*126+128*128)*8/1024), TaskMemoryKB(task))
}

func TestMemoryGuardAdmit(t *testing.T) {
	task := &FocalTask{WindowSize: 3, Grid: &GridMessage{Rows: 1000, Cols: 1000}}

	var nilGuard *MemoryGuard
	assert.NoError(t, nilGuard.Admit(task))

	g := &MemoryGuard{ThresholdKB: 1024000, MemInfoPath: writeMemInfo(t, fakeMemInfo)}
	assert.NoError(t, g.Admit(task))

	g.ThresholdKB = 2040000
	assert.ErrorIs(t, g.Admit(task), ErrLowMemory)

	g.MemInfoPath = filepath.Join(t.TempDir(), "missing")
	assert.NoError(t, g.Admit(task))

	g = NewMemoryGuard(0)
	assert.NoError(t, g.Admit(task))
}

func TestServerRejectsOnLowMemory(t *testing.T) {
	p, err := CreateProcessPool(1, 1, false)
	require.NoError(t, err)

	guard := &MemoryGuard{ThresholdKB: 4096000, MemInfoPath: writeMemInfo(t, fakeMemInfo)}
	s := &Server{Pool: p, Guard: guard}
	task := &FocalTask{WindowSize: 3, Grid: &GridMessage{Rows: 10, Cols: 10, Data: make([]byte, 800)}}

	_, err = s.Process(context.Background(), task)
	require.Error(t, err)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}
