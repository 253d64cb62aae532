package focalservice

import (
	"errors"
	"fmt"
	"io/ioutil"
	"strconv"
	"strings"
)

var ErrLowMemory = errors.New("not enough memory available")

const defaultMemInfoPath = "/proc/meminfo"

type procInfo struct {
	KBytes  map[string]int64
	Strings map[string]string
}

// parseProcInfo reads the "Key: value" lines of a /proc file. Values
// ending in kB are parsed as numbers.
func parseProcInfo(procPath string, lookupKeys []string) (*procInfo, error) {
	data, err := ioutil.ReadFile(procPath)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool)
	for _, key := range lookupKeys {
		wanted[key] = false
	}

	info := &procInfo{KBytes: make(map[string]int64), Strings: make(map[string]string)}
	found := 0
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.SplitN(line, ":", 2)
		if len(fields) != 2 {
			continue
		}
		key := strings.TrimSpace(fields[0])
		seen, ok := wanted[key]
		if !ok || seen {
			continue
		}
		wanted[key] = true
		found++

		val := strings.TrimSpace(fields[1])
		if !strings.HasSuffix(val, " kB") {
			info.Strings[key] = val
		} else {
			n, err := strconv.ParseInt(strings.TrimSuffix(val, " kB"), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: failed to parse %s", procPath, line)
			}
			info.KBytes[key] = n
		}
		if found == len(wanted) {
			return info, nil
		}
	}

	for k, v := range wanted {
		if !v {
			return nil, fmt.Errorf("%s: %s not found", procPath, k)
		}
	}
	return info, nil
}

type memoryInfo struct {
	TotalMemory     int64
	AvailableMemory int64
}

func getMemoryInfo(path string) (*memoryInfo, error) {
	info, err := parseProcInfo(path, []string{"MemTotal", "MemAvailable"})
	if err != nil {
		return nil, err
	}
	return &memoryInfo{TotalMemory: info.KBytes["MemTotal"], AvailableMemory: info.KBytes["MemAvailable"]}, nil
}

// MemoryGuard rejects tasks whose working set would leave less than
// ThresholdKB of available memory. It admits everything when meminfo
// cannot be read.
type MemoryGuard struct {
	ThresholdKB int64
	MemInfoPath string
}

func NewMemoryGuard(thresholdKB int64) *MemoryGuard {
	return &MemoryGuard{ThresholdKB: thresholdKB, MemInfoPath: defaultMemInfoPath}
}

// TaskMemoryKB estimates the working set of a focal task: the input,
// the padded copy and the output, held as float64.
func TaskMemoryKB(task *FocalTask) int64 {
	if task == nil || task.Grid == nil {
		return 0
	}
	k := int64(task.WindowSize / 2)
	rows, cols := int64(task.Grid.Rows), int64(task.Grid.Cols)
	padded := (rows + 2*k) * (cols + 2*k)
	return (2*rows*cols + padded) * 8 / 1024
}

func (g *MemoryGuard) Admit(task *FocalTask) error {
	if g == nil || g.ThresholdKB <= 0 {
		return nil
	}
	mem, err := getMemoryInfo(g.MemInfoPath)
	if err != nil {
		return nil
	}
	need := TaskMemoryKB(task)
	if mem.AvailableMemory-need < g.ThresholdKB {
		return fmt.Errorf("%w: task needs %d kB, %d kB available, threshold %d kB", ErrLowMemory, need, mem.AvailableMemory, g.ThresholdKB)
	}
	return nil
}
