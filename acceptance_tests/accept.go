package main

/* accept runs acceptance checks against a running focal service: the
   capabilities documents of a namespace and a batch of Execute requests
   read from a url list, one per line with %s standing for the host. */

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/ssh/terminal"

	proc "github.com/nci/gfocal/processor"
)

var capsURL = "http://%s/ows/%s?request=GetCapabilities"
var describeURL = "http://%s/ows/%s?request=DescribeProcess&identifier=%s"
var passed = "Passed"
var failed = "Failed"

func statusOK(url string) bool {
	resp, err := http.Get(url)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

// Capabilities checks GetCapabilities and, when identifier is set,
// DescribeProcess.
func Capabilities(host, namespace, identifier string) bool {
	if !statusOK(fmt.Sprintf(capsURL, host, namespace)) {
		return false
	}
	if identifier == "" {
		return true
	}
	return statusOK(fmt.Sprintf(describeURL, host, namespace, identifier))
}

// Execute sends every request of urlList with at most concLevel in flight
// and returns the number of requests and failures.
func Execute(host string, urlList io.Reader, concLevel int) (int, int, time.Duration, error) {
	start := time.Now()
	var total, failures int64

	conc := proc.NewConcLimiter(concLevel)
	scanner := bufio.NewScanner(urlList)
	for scanner.Scan() {
		tpl := scanner.Text()
		if tpl == "" {
			continue
		}
		total++
		conc.Go(func() {
			if !statusOK(fmt.Sprintf(tpl, host)) {
				atomic.AddInt64(&failures, 1)
			}
		})
	}
	conc.Wait()

	return int(total), int(failures), time.Since(start), scanner.Err()
}

func inRed(str string) string {
	return fmt.Sprintf("\x1b[31;1m%s\x1b[0m", str)
}

func inGreen(str string) string {
	return fmt.Sprintf("\x1b[32;1m%s\x1b[0m", str)
}

func main() {
	host := flag.String("h", "localhost:8080", "OWS host name or address")
	namespace := flag.String("ns", "", "Namespace to test")
	identifier := flag.String("id", "", "Process identifier for DescribeProcess")
	urls := flag.String("urls", "acpt_url.tpl", "Execute request list")
	conc := flag.Int("n", 6, "Concurrency level for acceptance tests")
	flag.Parse()

	if terminal.IsTerminal(int(os.Stdout.Fd())) {
		passed = inGreen(passed)
		failed = inRed(failed)
	}

	fmt.Printf("Testing GetCapabilities and DescribeProcess: ")
	if !Capabilities(*host, *namespace, *identifier) {
		fmt.Println(failed)
		os.Exit(1)
	}
	fmt.Println(passed)

	f, err := os.Open(*urls)
	if err != nil {
		fmt.Println(failed, err)
		os.Exit(1)
	}
	defer f.Close()

	fmt.Printf("Testing Execute requests from %s: ", *urls)
	total, failures, t, err := Execute(*host, f, *conc)
	if err != nil || failures > 0 {
		fmt.Printf("%s %d of %d failed %v\n", failed, failures, total, err)
		os.Exit(1)
	}
	fmt.Println(passed, total, t)
}
