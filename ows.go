package main

/* ows is a web server running focal (moving window) statistics over
   raster grids. Processes are published per namespace through
   GetCapabilities and DescribeProcess and run through Execute.
   Configuration of the server is specified in config.json or
   config.yaml files under the config directory.
   Grids are either read from the data directory or resolved through
   the metadata API (MAS), and the work runs in process or on the gRPC
   workers listed in the config. */

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	reuseport "github.com/kavu/go_reuseport"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/nci/gfocal/metrics"
	"github.com/nci/gfocal/processor"
	"github.com/nci/gfocal/utils"
	pb "github.com/nci/gfocal/worker/focalservice"
)

// Global variable to hold the values specified
// on the config documents.
var configMap map[string]*utils.Config

var (
	port            = flag.Int("p", 8080, "Server listening port.")
	serverDataDir   = flag.String("data_dir", utils.DataDir, "Server data directory.")
	serverConfigDir = flag.String("conf_dir", utils.EtcDir, "Server config directory.")
	serverLogDir    = flag.String("log_dir", "", "Server log directory, '-' logs metrics to stdout.")
	validateConfig  = flag.Bool("check_conf", false, "Validate server config files.")
	dumpConfig      = flag.Bool("dump_conf", false, "Dump server config files.")
	verbose         = flag.Bool("v", false, "Verbose mode for more server outputs.")
)

var (
	Error *log.Logger
	Info  *log.Logger
)

func init() {
	Error = log.New(os.Stderr, "FOCAL: ", log.Ldate|log.Ltime|log.Lshortfile)
	Info = log.New(os.Stdout, "FOCAL: ", log.Ldate|log.Ltime|log.Lshortfile)
}

// FocalWarningHeader carries a warning for a successful but degenerate result.
const FocalWarningHeader = "X-Focal-Warning"

// owsServer holds the connections shared by requests. Workers, caches and
// MAS clients are created on first use per address.
type owsServer struct {
	configs *map[string]*utils.Config
	logger  metrics.Logger
	verbose bool

	mu      sync.Mutex
	workers map[string]*pb.WorkerSet
	caches  map[string]*utils.ResponseCache
	mas     map[string]*utils.MASClient
}

func newOWSServer(configs *map[string]*utils.Config, logger metrics.Logger, verbose bool) *owsServer {
	return &owsServer{
		configs: configs,
		logger:  logger,
		verbose: verbose,
		workers: make(map[string]*pb.WorkerSet),
		caches:  make(map[string]*utils.ResponseCache),
		mas:     make(map[string]*utils.MASClient),
	}
}

// validateProcesses checks the presets of every namespace against the
// processor's statistic and boundary names.
func validateProcesses(confMap map[string]*utils.Config) error {
	for ns, conf := range confMap {
		for _, p := range conf.Processes {
			if p.Statistic != "" {
				if _, err := processor.ParseStatistic(p.Statistic); err != nil {
					return fmt.Errorf("namespace %s, process %s: %v", ns, p.Identifier, err)
				}
			}
			if _, err := processor.ParseBoundary(p.Boundary); err != nil {
				return fmt.Errorf("namespace %s, process %s: %v", ns, p.Identifier, err)
			}
		}
	}
	return nil
}

func (s *owsServer) workerSet(sc utils.ServiceConfig) (*pb.WorkerSet, error) {
	key := strings.Join(sc.WorkerNodes, ",")
	s.mu.Lock()
	defer s.mu.Unlock()
	if ws, ok := s.workers[key]; ok {
		return ws, nil
	}
	ws, err := pb.NewWorkerSet(sc.WorkerNodes, sc.MaxGrpcRecvMsgSize)
	if err != nil {
		return nil, err
	}
	s.workers[key] = ws
	return ws, nil
}

func (s *owsServer) responseCache(addr string) *utils.ResponseCache {
	if addr == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.caches[addr]
	if !ok {
		c = utils.NewResponseCache(addr)
		s.caches[addr] = c
	}
	return c
}

func (s *owsServer) masClient(addr string) *utils.MASClient {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.mas[addr]
	if !ok {
		c = utils.NewMASClient(addr, s.verbose)
		s.mas[addr] = c
	}
	return c
}

// httpStatus maps request failures to status codes.
func httpStatus(err error) int {
	switch {
	case processor.IsPrecondition(err),
		errors.Is(err, utils.ErrBadParam),
		errors.Is(err, utils.ErrBandIndex),
		errors.Is(err, utils.ErrUnsupportedFormat),
		errors.Is(err, utils.ErrMalformedGrid):
		return http.StatusBadRequest
	case errors.Is(err, utils.ErrDatasetNotFound), os.IsNotExist(err):
		return http.StatusNotFound
	case status.Code(err) == codes.ResourceExhausted:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func httpError(w http.ResponseWriter, err error, mc *metrics.MetricsCollector) {
	code := httpStatus(err)
	mc.Info.HTTPStatus = code
	msg := strings.Replace(err.Error(), "\n", " ", -1)
	if code == http.StatusInternalServerError {
		Error.Printf("%v", err)
	}
	http.Error(w, msg, code)
}

// resolveInput turns a dataset name into a readable path.
func (s *owsServer) resolveInput(r *http.Request, sc utils.ServiceConfig, input string) (string, error) {
	if input == "" {
		return "", fmt.Errorf("%w: input parameter is missing", utils.ErrBadParam)
	}
	if sc.MASAddress != "" {
		return s.masClient(sc.MASAddress).Lookup(r.Context(), input)
	}

	dataDir := sc.DataDir
	if dataDir == "" {
		dataDir = utils.DataDir
	}
	return utils.NewRuntimeFileResolver(dataDir).Resolve(input)
}

func readBand(path string, band int) (*utils.Grid, error) {
	h, err := utils.OpenRaster(path)
	if err != nil {
		return nil, err
	}
	defer h.Close()
	return h.ReadBand(band)
}

// focalJob is an Execute request with preset values applied.
type focalJob struct {
	input      string
	band       int
	windowSize int
	statistic  string
	boundary   string
	format     string
	scale      utils.ScaleParams
	palette    *utils.Palette
}

func mergePreset(params utils.FocalParams, conf *utils.Config) (*focalJob, error) {
	job := &focalJob{
		input:      params.Input,
		band:       1,
		windowSize: params.WindowSize,
		statistic:  params.Statistic,
		boundary:   params.Boundary,
		format:     params.Format,
	}
	if params.Identifier != "" {
		p, ok := conf.GetProcess(params.Identifier)
		if !ok {
			return nil, fmt.Errorf("%w: process %q", utils.ErrDatasetNotFound, params.Identifier)
		}
		job.band = p.Band
		if job.windowSize == 0 {
			job.windowSize = p.WindowSize
		}
		if job.statistic == "" {
			job.statistic = p.Statistic
		}
		if job.boundary == "" {
			job.boundary = p.Boundary
		}
		if p.Scale != nil {
			job.scale = *p.Scale
		}
		job.palette = p.Palette
	}
	if params.Band > 0 {
		job.band = params.Band
	}
	if job.format == "" {
		job.format = utils.FormatASCII
	}
	if job.statistic == "" {
		return nil, fmt.Errorf("%w: statistic parameter is missing", utils.ErrBadParam)
	}
	if job.windowSize == 0 {
		return nil, fmt.Errorf("%w: size parameter is missing", utils.ErrBadParam)
	}
	if job.windowSize > conf.ServiceConfig.MaxWindowSize {
		return nil, fmt.Errorf("%w: size %d exceeds the maximum of %d", processor.ErrInvalidWindow, job.windowSize, conf.ServiceConfig.MaxWindowSize)
	}
	return job, nil
}

func (s *owsServer) runFocal(r *http.Request, sc utils.ServiceConfig, g *utils.Grid, job *focalJob, mc *metrics.MetricsCollector) (*utils.Grid, error) {
	if len(sc.WorkerNodes) == 0 {
		stat, err := processor.ParseStatistic(job.statistic)
		if err != nil {
			return nil, err
		}
		boundary, err := processor.ParseBoundary(job.boundary)
		if err != nil {
			return nil, err
		}
		fp := processor.NewFocalProcessor(processor.WithConcurrency(sc.Concurrency))
		return fp.Apply(g, processor.WindowSpec{Size: job.windowSize}, stat, boundary)
	}

	ws, err := s.workerSet(sc)
	if err != nil {
		return nil, err
	}
	task := &pb.FocalTask{
		Id:         mc.Info.Focal.JobID,
		Grid:       pb.NewGridMessage(g),
		WindowSize: int32(job.windowSize),
		Statistic:  job.statistic,
		Boundary:   job.boundary,
	}
	t0 := time.Now()
	res, node, err := ws.Process(r.Context(), task)
	mc.Info.RPC.Worker = node
	mc.Info.RPC.Duration = time.Since(t0)
	mc.Info.RPC.BytesSent = int64(len(task.Grid.Data))
	if err != nil {
		return nil, err
	}
	return res.Grid.ToGrid()
}

func (s *owsServer) execute(w http.ResponseWriter, r *http.Request, conf *utils.Config, ns string, params utils.FocalParams, mc *metrics.MetricsCollector) {
	sc := conf.ServiceConfig
	cache := s.responseCache(sc.Memcache)
	cacheKey := utils.CacheKey(ns + "|" + r.URL.RequestURI())
	if cached, ok := cache.Get(cacheKey); ok {
		mc.Info.Focal.CacheHit = true
		writeResponse(w, cached)
		return
	}

	job, err := mergePreset(params, conf)
	if err != nil {
		httpError(w, err, mc)
		return
	}
	fi := mc.Info.Focal
	fi.Input, fi.Band, fi.WindowSize, fi.Statistic, fi.Boundary = job.input, job.band, job.windowSize, job.statistic, job.boundary

	path, err := s.resolveInput(r, sc, job.input)
	if err != nil {
		httpError(w, err, mc)
		return
	}
	g, err := readBand(path, job.band)
	if err != nil {
		httpError(w, err, mc)
		return
	}
	fi.Rows, fi.Cols = g.Rows, g.Cols

	t0 := time.Now()
	out, err := s.runFocal(r, sc, g, job, mc)
	fi.Duration = time.Since(t0)
	if err != nil {
		httpError(w, err, mc)
		return
	}

	summary := processor.Summarise(out)
	fi.OutRows, fi.OutCols, fi.NaNCells, fi.Degenerate = summary.Rows, summary.Cols, summary.NaNCells, summary.Degenerate

	contentType, _ := utils.ContentType(job.format)
	resp := &utils.CachedResponse{ContentType: contentType}
	if summary.Degenerate {
		resp.Warning = fmt.Sprintf("window size %d leaves no cells of the %dx%d grid under %s boundary", job.windowSize, g.Rows, g.Cols, job.boundary)
		if *verbose {
			Info.Printf("%s: %s", r.URL.String(), resp.Warning)
		}
	}
	if !summary.Degenerate || job.format == utils.FormatJSON {
		var buf bytes.Buffer
		if err := utils.EncodeGrid(&buf, job.format, out, job.scale, job.palette); err != nil {
			httpError(w, err, mc)
			return
		}
		resp.Body = buf.Bytes()
	}

	writeResponse(w, resp)
	if err := cache.Set(cacheKey, resp); err != nil && s.verbose {
		Info.Printf("memcache set failed: %v", err)
	}
}

func writeResponse(w http.ResponseWriter, resp *utils.CachedResponse) {
	w.Header().Set("Content-Type", resp.ContentType)
	if resp.Warning != "" {
		w.Header().Set(FocalWarningHeader, resp.Warning)
	}
	w.Write(resp.Body)
}

func (s *owsServer) generalHandler(conf *utils.Config, ns string, w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate, max-age=0")
	if s.verbose {
		Info.Printf("%s\n", r.URL.String())
	}

	metricsCollector := metrics.NewMetricsCollector(s.logger)
	defer metricsCollector.Log()

	t0 := time.Now()
	metricsCollector.Info.ReqTime = t0.Format(utils.ISOFormat)
	defer func() { metricsCollector.Info.ReqDuration = time.Since(t0) }()

	reqUrl, e := url.QueryUnescape(r.URL.String())
	if e == nil {
		metricsCollector.Info.URL.RawURL = reqUrl
	} else {
		metricsCollector.Info.URL.RawURL = r.URL.String()
	}
	metricsCollector.Info.RemoteAddr = utils.ParseRemoteAddr(r)
	metricsCollector.Info.HTTPStatus = 200

	rawQuery := r.URL.RawQuery
	if r.Method == "POST" {
		body, err := ioutil.ReadAll(r.Body)
		if err != nil {
			httpError(w, fmt.Errorf("%w: reading POST body: %v", utils.ErrBadParam, err), metricsCollector)
			return
		}
		rawQuery = string(body)
	}
	query, err := utils.ParseQuery(rawQuery)
	if err != nil {
		httpError(w, fmt.Errorf("%w: failed to parse query: %v", utils.ErrBadParam, err), metricsCollector)
		return
	}
	params, err := utils.CheckFocalParams(query)
	if err != nil {
		httpError(w, err, metricsCollector)
		return
	}

	switch params.Request {
	case "GetCapabilities":
		hostname := conf.ServiceConfig.OWSHostname
		if hostname == "" {
			hostname = r.Host
		}
		nsName := ns
		if nsName == "." {
			nsName = ""
		}
		w.Header().Set("Content-Type", "text/xml")
		err = utils.ExecuteCapabilities(w, &utils.CapabilitiesData{Hostname: hostname, NameSpace: nsName, Processes: conf.Processes})
		if err != nil {
			httpError(w, err, metricsCollector)
		}
	case "DescribeProcess":
		p, ok := conf.GetProcess(params.Identifier)
		if !ok {
			httpError(w, fmt.Errorf("%w: process %q", utils.ErrDatasetNotFound, params.Identifier), metricsCollector)
			return
		}
		w.Header().Set("Content-Type", "text/xml")
		err = utils.ExecuteDescribeProcess(w, &utils.DescribeData{
			Process:       *p,
			MaxWindowSize: conf.ServiceConfig.MaxWindowSize,
			Statistics:    processor.StatisticNames(),
			Boundaries:    processor.BoundaryNames(),
		})
		if err != nil {
			httpError(w, err, metricsCollector)
		}
	case "Execute":
		s.execute(w, r, conf, ns, params, metricsCollector)
	}
}

func (s *owsServer) owsHandler(w http.ResponseWriter, r *http.Request) {
	namespace := "."
	if len(r.URL.Path) > len("/ows/") {
		namespace = strings.Trim(r.URL.Path[len("/ows/"):], "/")
	}

	utils.ConfigMu.RLock()
	config, ok := (*s.configs)[namespace]
	utils.ConfigMu.RUnlock()
	if !ok {
		Info.Printf("Invalid dataset namespace: %v for url: %v\n", namespace, r.URL.Path)
		http.Error(w, fmt.Sprintf("Invalid dataset namespace: %v\n", namespace), 404)
		return
	}
	s.generalHandler(config, namespace, w, r)
}

func (s *owsServer) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ows", s.owsHandler)
	mux.HandleFunc("/ows/", s.owsHandler)
	return mux
}

func newMetricsLogger(logDir string) metrics.Logger {
	switch logDir {
	case "":
		return nil
	case "-":
		return metrics.NewStdoutLogger()
	}
	maxLogFileSize, maxLogFiles := metrics.LimitsFromEnv()
	return metrics.NewFileLogger(logDir, maxLogFileSize, maxLogFiles, *verbose)
}

func main() {
	flag.Parse()
	utils.DataDir = *serverDataDir
	utils.EtcDir = *serverConfigDir

	confMap, err := utils.LoadAllConfigFiles(utils.EtcDir)
	if err == nil {
		err = validateProcesses(confMap)
	}
	if err != nil {
		Error.Printf("Error in loading config files: %v\n", err)
		os.Exit(1)
	}

	if *validateConfig {
		os.Exit(0)
	}

	if *dumpConfig {
		configJson, err := json.MarshalIndent(confMap, "", "  ")
		if err != nil {
			Error.Printf("Error in dumping configs: %v\n", err)
			os.Exit(1)
		}
		log.Print(string(configJson))
		os.Exit(0)
	}

	configMap = confMap
	utils.WatchConfig(Info, Error, &configMap, validateProcesses)

	srv := newOWSServer(&configMap, newMetricsLogger(*serverLogDir), *verbose)

	listener, err := reuseport.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", *port))
	if err != nil {
		Error.Fatalf("failed to listen: %v", err)
	}
	Info.Printf("focal service is ready on %v", listener.Addr())
	log.Fatal(http.Serve(listener, srv.routes()))
}
