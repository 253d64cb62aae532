package metrics

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

type Logger interface {
	Log(info *MetricsInfo)
}

type StdoutLogger struct{}

func NewStdoutLogger() *StdoutLogger {
	return &StdoutLogger{}
}

func (l *StdoutLogger) Log(info *MetricsInfo) {
	infoStr, err := info.ToJSON()
	if err == nil {
		log.Print(infoStr)
	} else {
		log.Printf("StdoutLogger: error: %v", err)
	}
}

const defaultQueueSize = 2000
const defaultLogWriters = 2
const defaultMaxLogFileSize = 1024 * 1024 * 1024
const defaultMaxLogFiles = 10

// FileLogger writes metrics records as JSON lines into LogDir. Each writer
// owns a file logN which is rotated into logN.0 .. logN.(MaxLogFiles-1)
// once it reaches MaxLogFileSize.
type FileLogger struct {
	MetricsQueue   chan *MetricsInfo
	LogDir         string
	MaxLogFileSize int64
	MaxLogFiles    int
	Verbose        bool

	wg sync.WaitGroup
}

// LimitsFromEnv reads FOCAL_MAX_LOG_FILE_SIZE and FOCAL_MAX_LOG_FILES.
// Unset or malformed values give 0, which selects the defaults.
func LimitsFromEnv() (int64, int) {
	size, _ := strconv.ParseInt(os.Getenv("FOCAL_MAX_LOG_FILE_SIZE"), 10, 64)
	files, _ := strconv.Atoi(os.Getenv("FOCAL_MAX_LOG_FILES"))
	return size, files
}

func NewFileLogger(logDir string, maxLogFileSize int64, maxLogFiles int, verbose bool) *FileLogger {
	if maxLogFileSize <= 0 {
		maxLogFileSize = defaultMaxLogFileSize
	}
	if maxLogFiles <= 0 {
		maxLogFiles = defaultMaxLogFiles
	}
	logger := &FileLogger{
		MetricsQueue:   make(chan *MetricsInfo, defaultQueueSize),
		LogDir:         logDir,
		MaxLogFileSize: maxLogFileSize,
		MaxLogFiles:    maxLogFiles,
		Verbose:        verbose,
	}

	for i := 0; i < defaultLogWriters; i++ {
		logger.wg.Add(1)
		go logger.startLogWriter(i)
	}

	return logger
}

func (l *FileLogger) Log(info *MetricsInfo) {
	l.MetricsQueue <- info
}

// Close drains the queue and waits for the writers to finish.
func (l *FileLogger) Close() {
	close(l.MetricsQueue)
	l.wg.Wait()
}

func (l *FileLogger) startLogWriter(idx int) {
	defer l.wg.Done()

	f, err := l.openLogFile(idx)
	if err != nil {
		log.Printf("FileLogger%d: log open error: %v", idx, err)
	}

	for info := range l.MetricsQueue {
		infoStr, err := info.ToJSON()
		if err != nil {
			log.Printf("FileLogger%d: info.ToJSON() error: %v", idx, err)
			continue
		}

		f = l.rotateIfFull(f, idx)
		if f == nil {
			continue
		}
		if _, err := f.WriteString(infoStr); err != nil {
			log.Printf("FileLogger%d: write error: %v", idx, err)
			continue
		}
		f.Sync()
	}

	if f != nil {
		f.Close()
	}
}

func (l *FileLogger) logFilePath(idx int) string {
	return filepath.Join(l.LogDir, fmt.Sprintf("log%d", idx))
}

func (l *FileLogger) openLogFile(idx int) (*os.File, error) {
	return os.OpenFile(l.logFilePath(idx), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

// rotatedPath picks the first free rotation slot, or the oldest one when all
// slots are taken.
func (l *FileLogger) rotatedPath(idx int) string {
	var oldest string
	var oldestInfo os.FileInfo
	for i := 0; i < l.MaxLogFiles; i++ {
		p := fmt.Sprintf("%s.%d", l.logFilePath(idx), i)
		info, err := os.Stat(p)
		if os.IsNotExist(err) {
			return p
		}
		if err == nil && (oldestInfo == nil || info.ModTime().Before(oldestInfo.ModTime())) {
			oldest, oldestInfo = p, info
		}
	}
	if oldest == "" {
		oldest = l.logFilePath(idx) + ".0"
	}
	return oldest
}

func (l *FileLogger) rotateIfFull(f *os.File, idx int) *os.File {
	if f == nil {
		nf, err := l.openLogFile(idx)
		if err != nil {
			log.Printf("FileLogger%d: log open error: %v", idx, err)
			return nil
		}
		return nf
	}

	info, err := f.Stat()
	if err != nil {
		log.Printf("FileLogger%d: log rotation error: %v", idx, err)
		return f
	}
	if info.Size() < l.MaxLogFileSize {
		return f
	}

	target := l.rotatedPath(idx)
	if l.Verbose {
		log.Printf("FileLogger%d: rotating log file into %s", idx, target)
	}
	f.Close()
	if err := os.Rename(l.logFilePath(idx), target); err != nil {
		log.Printf("FileLogger%d: log rotation error: %v", idx, err)
	}

	nf, err := l.openLogFile(idx)
	if err != nil {
		log.Printf("FileLogger%d: log rotation error: %v", idx, err)
		return nil
	}
	return nf
}
