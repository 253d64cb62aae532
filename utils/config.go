package utils

import (
	"encoding/json"
	"fmt"
	"image/color"
	"io/ioutil"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"

	yaml "gopkg.in/yaml.v2"
)

var EtcDir = "."
var DataDir = "."

// ConfigMu guards config maps swapped by WatchConfig.
var ConfigMu sync.RWMutex

// string used to format Go ISO times
const ISOFormat = "2006-01-02T15:04:05.000Z"

const (
	DefaultMaxWindowSize = 99
	DefaultRecvMsgSize   = 10 * 1024 * 1024
)

type ServiceConfig struct {
	OWSHostname        string   `json:"ows_hostname" yaml:"ows_hostname"`
	MASAddress         string   `json:"mas_address" yaml:"mas_address"`
	WorkerNodes        []string `json:"worker_nodes" yaml:"worker_nodes"`
	Memcache           string   `json:"memcache" yaml:"memcache"`
	DataDir            string   `json:"data_dir" yaml:"data_dir"`
	MaxWindowSize      int      `json:"max_window_size" yaml:"max_window_size"`
	Concurrency        int      `json:"concurrency" yaml:"concurrency"`
	MaxGrpcRecvMsgSize int      `json:"max_grpc_recv_msg_size" yaml:"max_grpc_recv_msg_size"`
}

type Palette struct {
	Interpolate bool         `json:"interpolate" yaml:"interpolate"`
	Colours     []color.RGBA `json:"colours" yaml:"colours"`
}

// Process is a published focal operation preset. Requests may override
// any of its parameters.
type Process struct {
	NameSpace  string       `json:"-" yaml:"-"`
	Identifier string       `json:"identifier" yaml:"identifier"`
	Title      string       `json:"title" yaml:"title"`
	Abstract   string       `json:"abstract" yaml:"abstract"`
	Statistic  string       `json:"statistic" yaml:"statistic"`
	Boundary   string       `json:"boundary" yaml:"boundary"`
	WindowSize int          `json:"window_size" yaml:"window_size"`
	Band       int          `json:"band" yaml:"band"`
	Palette    *Palette     `json:"palette" yaml:"palette"`
	Scale      *ScaleParams `json:"scale" yaml:"scale"`
}

// Config is the configuration of one namespace of the focal service.
type Config struct {
	ServiceConfig ServiceConfig `json:"service_config" yaml:"service_config"`
	Processes     []Process     `json:"processes" yaml:"processes"`
}

// GetProcess returns the preset with the given identifier.
func (config *Config) GetProcess(identifier string) (*Process, bool) {
	for i := range config.Processes {
		if config.Processes[i].Identifier == identifier {
			return &config.Processes[i], true
		}
	}
	return nil, false
}

var configFileNames = map[string]bool{
	"config.json": true,
	"config.yaml": true,
	"config.yml":  true,
}

func LoadAllConfigFiles(rootDir string) (map[string]*Config, error) {
	configMap := make(map[string]*Config)
	err := filepath.Walk(rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() && configFileNames[info.Name()] {
			relPath, _ := filepath.Rel(rootDir, filepath.Dir(path))
			if _, found := configMap[relPath]; found {
				return fmt.Errorf("namespace %s has more than one config file", relPath)
			}
			log.Printf("Loading config file: %s under namespace: %s\n", path, relPath)

			config := &Config{}
			e := config.LoadConfigFile(path)
			if e != nil {
				return e
			}

			configMap[relPath] = config

			for i := range config.Processes {
				ns := relPath
				if relPath == "." {
					ns = ""
				}
				config.Processes[i].NameSpace = ns
			}
		}
		return nil
	})

	if err == nil && len(configMap) == 0 {
		err = fmt.Errorf("No config file found")
	}

	return configMap, err
}

// LoadConfigFile unmarshals a config.json or config.yaml document, applies
// defaults and validates the result.
func (config *Config) LoadConfigFile(configFile string) error {
	*config = Config{}
	cfg, err := ioutil.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("Error while reading config file: %s. Error: %v", configFile, err)
	}

	switch filepath.Ext(configFile) {
	case ".yaml", ".yml":
		err = yaml.UnmarshalStrict(cfg, config)
		if err != nil {
			return fmt.Errorf("Error at YAML parsing config document: %s. Error: %v", configFile, err)
		}
	default:
		err = json.Unmarshal(cfg, config)
		if err != nil {
			return fmt.Errorf("Error at JSON parsing config document: %s. Error: %v", configFile, err)
		}
	}

	config.applyDefaults()
	if err := config.validate(); err != nil {
		return fmt.Errorf("Invalid config file: %s. Error: %v", configFile, err)
	}
	return nil
}

func (config *Config) applyDefaults() {
	sc := &config.ServiceConfig
	if sc.MaxWindowSize <= 0 {
		sc.MaxWindowSize = DefaultMaxWindowSize
	}
	if sc.Concurrency <= 0 {
		sc.Concurrency = runtime.NumCPU()
	}
	if sc.MaxGrpcRecvMsgSize <= 0 {
		sc.MaxGrpcRecvMsgSize = DefaultRecvMsgSize
	}
	for i := range config.Processes {
		if config.Processes[i].Band <= 0 {
			config.Processes[i].Band = 1
		}
	}
}

func (config *Config) validate() error {
	sc := config.ServiceConfig
	if sc.MaxWindowSize%2 == 0 {
		return fmt.Errorf("service_config.max_window_size must be odd, got %d", sc.MaxWindowSize)
	}

	seen := make(map[string]bool)
	for i, p := range config.Processes {
		if len(p.Identifier) == 0 {
			return fmt.Errorf("processes[%d].identifier is empty", i)
		}
		if seen[p.Identifier] {
			return fmt.Errorf("processes[%d].identifier %q is duplicated", i, p.Identifier)
		}
		seen[p.Identifier] = true

		if p.WindowSize != 0 && (p.WindowSize < 0 || p.WindowSize%2 == 0 || p.WindowSize > sc.MaxWindowSize) {
			return fmt.Errorf("processes[%d].window_size must be odd and within 1..%d, got %d", i, sc.MaxWindowSize, p.WindowSize)
		}
		if p.Palette != nil && len(p.Palette.Colours) < 2 {
			return fmt.Errorf("processes[%d].palette must contain at least 2 colours", i)
		}
	}
	return nil
}

// WatchConfig reloads every config under EtcDir on SIGHUP. check vets the
// new set before it replaces the current one.
func WatchConfig(infoLog, errLog *log.Logger, configMap *map[string]*Config, check func(map[string]*Config) error) {
	// Catch SIGHUP to automatically reload cache
	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	go func() {
		for range sighup {
			infoLog.Println("Caught SIGHUP, reloading config...")
			confMap, err := LoadAllConfigFiles(EtcDir)
			if err == nil && check != nil {
				err = check(confMap)
			}
			if err != nil {
				errLog.Printf("Error in loading config files, keeping the current config: %v\n", err)
				continue
			}

			ConfigMu.Lock()
			*configMap = confMap
			ConfigMu.Unlock()
		}
	}()
}
