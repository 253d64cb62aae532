package main

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/nci/gomemcache/memcache"

	"github.com/nci/gfocal/mas/store"
)

var (
	dbDriver = flag.String("driver", "postgres", "database driver: postgres or sqlite")
	dbName   = flag.String("database", "mas", "database name, or file path for sqlite")
	dbUser   = flag.String("user", "api", "database user name")
	dbPool   = flag.Int("pool", 8, "database pool size")
	dbLimit  = flag.Int("limit", 64, "database concurrent requests")
	httpPort = flag.Int("port", 8080, "http port")
	mcURI    = flag.String("memcache", "", "memcache uri host:port")
	ingest   = flag.String("ingest", "", "crawler tsv output to load before serving, '-' for stdin")
)

type masHandler struct {
	store *store.Store
	mc    *memcache.Client
}

// Spit out a simple JSON-formatted error message for Content-Type: application/json
func httpJSONError(response http.ResponseWriter, err error, status int) {
	http.Error(response, fmt.Sprintf(`{ "error": %q }`, err.Error()), status)
}

func (h *masHandler) ServeHTTP(response http.ResponseWriter, request *http.Request) {
	response.Header().Set("Content-Type", "application/json")

	var hash string
	if h.mc != nil {
		buff := md5.Sum([]byte(request.URL.RequestURI()))
		hash = hex.EncodeToString(buff[:])

		if cached, err := h.mc.Get(hash); err == nil {
			response.Write(cached.Value)
			return
		}
	}

	query := request.URL.Query()
	ctx, cancel := context.WithTimeout(request.Context(), 30*time.Second)
	defer cancel()

	var payload interface{}
	switch {
	case query.Get("lookup") != "":
		rec, err := h.store.Lookup(ctx, query.Get("lookup"))
		if errors.Is(err, store.ErrNotFound) {
			httpJSONError(response, err, http.StatusNotFound)
			return
		}
		if err != nil {
			httpJSONError(response, err, http.StatusInternalServerError)
			return
		}
		payload = rec

	case query.Has("list"):
		recs, err := h.store.List(ctx, query.Get("prefix"))
		if err != nil {
			httpJSONError(response, err, http.StatusInternalServerError)
			return
		}
		payload = map[string]interface{}{"grids": recs}

	default:
		httpJSONError(response, errors.New("unknown operation; currently supported: ?lookup, ?list"), http.StatusBadRequest)
		return
	}

	out, err := json.Marshal(payload)
	if err != nil {
		httpJSONError(response, err, http.StatusInternalServerError)
		return
	}
	response.Write(out)

	if h.mc != nil {
		// don't care about errors; memcache may not necessarily retain this anyway
		h.mc.Set(&memcache.Item{Key: hash, Value: out})
	}
}

func loadCrawl(ctx context.Context, s *store.Store, path string) (int, error) {
	in := os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return 0, err
		}
		defer f.Close()
		in = f
	}
	recs, err := store.RecordsFromCrawl(in)
	if err != nil {
		return 0, err
	}
	return s.Ingest(ctx, recs)
}

func dataSource() string {
	if *dbDriver == "sqlite" {
		return *dbName
	}
	return fmt.Sprintf("user=%s host=/var/run/postgresql dbname=%s sslmode=disable", *dbUser, *dbName)
}

func main() {
	flag.Parse()

	log.Printf("dbDriver %s dbUser %s dbName %s dbPool %d httpPort %d", *dbDriver, *dbUser, *dbName, *dbPool, *httpPort)

	s, err := store.Open(*dbDriver, dataSource())
	if err != nil {
		log.Fatal(err)
	}
	defer s.Close()

	s.DB().SetMaxIdleConns(*dbPool)
	s.DB().SetMaxOpenConns(*dbLimit)

	ctx := context.Background()
	if err := s.Init(ctx); err != nil {
		log.Fatal(err)
	}
	if *ingest != "" {
		n, err := loadCrawl(ctx, s, *ingest)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("ingested %d grids from %s", n, *ingest)
	}

	h := &masHandler{store: s}
	if *mcURI != "" {
		// lazy connection; errors returned in .Get
		h.mc = memcache.New(*mcURI)
	}

	http.Handle("/", h)
	log.Fatal(http.ListenAndServe(fmt.Sprintf(":%d", *httpPort), nil))
}
