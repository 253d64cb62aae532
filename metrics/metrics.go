package metrics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/nci/gfocal/utils"
)

type URLInfo struct {
	RawURL string            `json:"raw_url"`
	Host   string            `json:"host"`
	Path   string            `json:"path"`
	Query  map[string]string `json:"query"`
}

// FocalInfo describes the focal job behind a request.
type FocalInfo struct {
	JobID      string        `json:"job_id"`
	Input      string        `json:"input"`
	Band       int           `json:"band"`
	Rows       int           `json:"rows"`
	Cols       int           `json:"cols"`
	WindowSize int           `json:"window_size"`
	Statistic  string        `json:"statistic"`
	Boundary   string        `json:"boundary"`
	OutRows    int           `json:"out_rows"`
	OutCols    int           `json:"out_cols"`
	NaNCells   int           `json:"nan_cells"`
	Degenerate bool          `json:"degenerate"`
	CacheHit   bool          `json:"cache_hit"`
	Duration   time.Duration `json:"duration"`
}

type RPCInfo struct {
	Worker    string        `json:"worker"`
	Duration  time.Duration `json:"duration"`
	BytesSent int64         `json:"bytes_sent"`
}

type MetricsInfo struct {
	ReqTime     string        `json:"req_time"`
	ReqDuration time.Duration `json:"req_duration"`
	URL         URLInfo       `json:"url"`
	RemoteAddr  string        `json:"remote_addr"`
	RemoteHost  string        `json:"remote_host"`
	RemotePort  string        `json:"remote_port"`
	HTTPStatus  int           `json:"http_status"`
	Focal       *FocalInfo    `json:"focal"`
	RPC         *RPCInfo      `json:"rpc"`
}

type MetricsCollector struct {
	Info   *MetricsInfo
	logger Logger
}

func NewMetricsCollector(logger Logger) *MetricsCollector {
	return &MetricsCollector{
		Info: &MetricsInfo{
			Focal: &FocalInfo{JobID: uuid.New().String()},
			RPC:   &RPCInfo{},
		},
		logger: logger,
	}
}

func (m *MetricsCollector) Log() {
	if m.logger != nil {
		m.logger.Log(m.Info)
	}
}

func (i *MetricsInfo) ToJSON() (string, error) {
	i.normaliseNetworkAddr(i.RemoteAddr)
	if err := normaliseURL(&i.URL); err != nil {
		log.Printf("metrics: normaliseUrl() error: %v", err)
	}

	buf := new(bytes.Buffer)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(i); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (i *MetricsInfo) normaliseNetworkAddr(addr string) {
	host, port, err := net.SplitHostPort(addr)
	if err == nil {
		i.RemoteHost = host
		i.RemotePort = port
	} else {
		i.RemoteHost = addr
	}
}

func normaliseURL(u *URLInfo) error {
	r, err := url.Parse(u.RawURL)
	if err != nil {
		return err
	}

	u.Host = r.Host
	u.Path = r.Path
	query, err := utils.ParseQuery(r.RawQuery)
	if err != nil {
		return err
	}

	if u.Query == nil {
		u.Query = make(map[string]string)
	}
	for k, v := range query {
		switch len(v) {
		case 0:
			u.Query[k] = ""
		case 1:
			u.Query[k] = v[0]
		default:
			u.Query[k] = fmt.Sprintf("%v", v)
		}
	}
	return nil
}
