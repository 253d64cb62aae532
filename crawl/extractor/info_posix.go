package extractor

import (
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	goeval "github.com/edisonguo/govaluate"
	yaml "gopkg.in/yaml.v2"

	"github.com/nci/gfocal/utils"
)

const DefaultMaxPosixErrors = 1000

var outputFormats = map[string]struct{}{"json": {}, "tsv": {}, "yaml": {}}

// CrawlOptions controls a posix crawl.
type CrawlOptions struct {
	Conc          int
	Pattern       string
	FollowSymlink bool
	OutputFormat  string
	// GridInfo attaches band metadata to every raster file found.
	GridInfo bool
}

// ExtractPosix walks rootDir and writes one record per matching file to w.
func ExtractPosix(w io.Writer, rootDir string, opts CrawlOptions) error {
	absRootDir, err := filepath.Abs(rootDir)
	if err != nil {
		return err
	}

	expr, err := parsePatternExpression(opts.Pattern)
	if err != nil {
		return err
	}
	if opts.OutputFormat == "" {
		opts.OutputFormat = "json"
	}
	if _, ok := outputFormats[opts.OutputFormat]; !ok {
		return fmt.Errorf("unknown output format %q", opts.OutputFormat)
	}
	if opts.Conc < 1 {
		opts.Conc = 1
	}

	crawler := NewPosixCrawler(w, expr, opts)
	return crawler.Crawl(absRootDir)
}

func GetPosixInfo(filePath string, fStat os.FileInfo) *PosixInfo {
	mtime := fStat.ModTime().UTC()
	fileSignature := fmt.Sprintf("%s%d%d", filePath, fStat.Size(), mtime.UnixNano())
	return &PosixInfo{
		FilePath: filePath,
		Size:     fStat.Size(),
		MTime:    mtime,
		ID:       fmt.Sprintf("%x", md5.Sum([]byte(fileSignature))),
	}
}

func parsePatternExpression(pattern string) (*goeval.EvaluableExpression, error) {
	if len(strings.TrimSpace(pattern)) == 0 {
		return nil, nil
	}

	expr, err := goeval.NewEvaluableExpression(pattern)
	if err != nil {
		return nil, err
	}

	validVariables := map[string]struct{}{"path": {}, "type": {}}
	for _, token := range expr.Tokens() {
		if token.Kind == goeval.VARIABLE {
			varName, ok := token.Value.(string)
			if !ok {
				return nil, fmt.Errorf("variable token '%v' failed to cast string", token.Value)
			}
			if _, found := validVariables[varName]; !found {
				return nil, fmt.Errorf("variable %v is not supported, valid variables are path and type", varName)
			}
		}
	}
	return expr, nil
}

type entryKind int

const (
	kindOther entryKind = iota
	kindDir
	kindFile
)

type PosixCrawler struct {
	Outputs    chan *PosixInfo
	Error      chan error
	wg         sync.WaitGroup
	concLimit  chan struct{}
	outputDone chan error
	pattern    *goeval.EvaluableExpression
	opts       CrawlOptions
	w          io.Writer
}

func NewPosixCrawler(w io.Writer, pattern *goeval.EvaluableExpression, opts CrawlOptions) *PosixCrawler {
	return &PosixCrawler{
		Outputs:    make(chan *PosixInfo, 4096),
		Error:      make(chan error, DefaultMaxPosixErrors),
		concLimit:  make(chan struct{}, opts.Conc),
		outputDone: make(chan error, 1),
		pattern:    pattern,
		opts:       opts,
		w:          w,
	}
}

func (pc *PosixCrawler) Crawl(currPath string) error {
	go pc.outputResult()

	pc.wg.Add(1)
	pc.concLimit <- struct{}{}
	pc.crawlDir(currPath, false)
	pc.wg.Wait()

	close(pc.Outputs)
	outErr := <-pc.outputDone

	close(pc.Error)
	var msgs []string
	for err := range pc.Error {
		msgs = append(msgs, err.Error())
	}
	if len(msgs) >= DefaultMaxPosixErrors {
		msgs = append(msgs, " ... too many errors")
	}
	if outErr != nil {
		msgs = append(msgs, outErr.Error())
	}

	if len(msgs) > 0 {
		return errors.New(strings.Join(msgs, "\n"))
	}
	return nil
}

func (pc *PosixCrawler) reportError(err error) {
	select {
	case pc.Error <- err:
	default:
	}
}

func (pc *PosixCrawler) crawlDir(currPath string, serialised bool) {
	defer pc.wg.Done()
	if !serialised {
		defer func() { <-pc.concLimit }()
	}

	entries, err := os.ReadDir(currPath)
	if err != nil {
		pc.reportError(err)
		return
	}

	for _, entry := range entries {
		filePath := filepath.Join(currPath, entry.Name())

		var fStat os.FileInfo
		kind := kindOther
		switch mode := entry.Type(); {
		case mode&os.ModeSymlink != 0:
			if !pc.opts.FollowSymlink {
				continue
			}
			fStat, err = os.Stat(filePath)
			if err != nil {
				pc.reportError(err)
				continue
			}
			if fStat.IsDir() {
				kind = kindDir
			} else if fStat.Mode().IsRegular() {
				kind = kindFile
			}
		case mode.IsDir():
			kind = kindDir
		case mode.IsRegular():
			kind = kindFile
		}
		if kind == kindOther {
			continue
		}

		if pc.pattern != nil {
			result, err := pc.evaluatePatternExpression(filePath, kind)
			if err != nil {
				pc.reportError(err)
				continue
			}
			if !result {
				continue
			}
		}

		if kind == kindDir {
			pc.wg.Add(1)
			select {
			case pc.concLimit <- struct{}{}:
				go pc.crawlDir(filePath, false)
			default:
				pc.crawlDir(filePath, true)
			}
			continue
		}

		if fStat == nil {
			fStat, err = entry.Info()
			if err != nil {
				pc.reportError(err)
				continue
			}
		}

		info := GetPosixInfo(filePath, fStat)
		if pc.opts.GridInfo && utils.IsRasterFile(filePath) {
			gf, err := ExtractGridInfo(filePath)
			if err != nil {
				pc.reportError(err)
			} else {
				info.Grids = gf.DataSets
			}
		}
		pc.Outputs <- info
	}
}

func (pc *PosixCrawler) evaluatePatternExpression(filePath string, kind entryKind) (bool, error) {
	fileType := "f"
	if kind == kindDir {
		fileType = "d"
	}

	parameters := map[string]interface{}{"type": fileType, "path": filePath}
	result, err := pc.pattern.Evaluate(parameters)
	if err != nil {
		return false, fmt.Errorf("pattern expression: %v", err)
	}

	val, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("pattern expression: result '%v' is not boolean", result)
	}
	return val, nil
}

// outputResult drains Outputs so the walkers never block on a failed writer.
func (pc *PosixCrawler) outputResult() {
	var firstErr error
	for info := range pc.Outputs {
		if firstErr != nil {
			continue
		}
		rec, err := FormatRecord(info, pc.opts.OutputFormat)
		if err == nil {
			_, err = io.WriteString(pc.w, rec)
		}
		firstErr = err
	}
	pc.outputDone <- firstErr
}

// FormatRecord renders one crawl record. tsv lines are "path\tposix\tjson",
// yaml records are separate documents.
func FormatRecord(info *PosixInfo, format string) (string, error) {
	switch format {
	case "yaml":
		out, err := yaml.Marshal(info)
		if err != nil {
			return "", err
		}
		return "---\n" + string(out), nil
	case "tsv":
		out, err := json.Marshal(info)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s\tposix\t%s\n", info.FilePath, out), nil
	}
	out, err := json.Marshal(info)
	if err != nil {
		return "", err
	}
	return string(out) + "\n", nil
}
