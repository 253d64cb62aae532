package main

/* crawl walks a directory tree of grids and prints one metadata record per
   file. With -info it describes the bands of a single grid instead, reading
   the path from stdin when given '-'. */

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	extr "github.com/nci/gfocal/crawl/extractor"
)

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("crawl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	conc := fs.Int("conc", 16, "Number of directories crawled concurrently.")
	pattern := fs.String("pattern", "", "Filter expression over 'path' and 'type' (d or f), e.g. \"type == 'd' || path =~ '\\\\.asc$'\".")
	followSymlink := fs.Bool("follow_symlink", false, "Follow symbolic links.")
	outputFormat := fs.String("fmt", "tsv", "Output format: json, tsv or yaml.")
	gridInfo := fs.Bool("grid_info", true, "Attach band metadata to raster files.")
	info := fs.Bool("info", false, "Describe a single grid file.")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Please provide a path to a directory, a file with -info, or '-' for reading from stdin")
		return 2
	}
	path := fs.Arg(0)

	if *info {
		if path == "-" {
			scanner := bufio.NewScanner(stdin)
			scanner.Scan()
			path = strings.TrimSpace(scanner.Text())
		}
		geoFile, err := extr.ExtractGridInfo(path)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		out, err := json.Marshal(geoFile)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		fmt.Fprintf(stdout, "%s\n", out)
		return 0
	}

	opts := extr.CrawlOptions{
		Conc:          *conc,
		Pattern:       *pattern,
		FollowSymlink: *followSymlink,
		OutputFormat:  *outputFormat,
		GridInfo:      *gridInfo,
	}
	if err := extr.ExtractPosix(stdout, path, opts); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
