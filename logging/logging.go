package libpack_logging

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	LEVEL_DEBUG = iota
	LEVEL_INFO
	LEVEL_WARN
	LEVEL_ERROR
	LEVEL_FATAL
)

const defaultMinLevel = LEVEL_INFO

var LevelNames = map[int]string{
	LEVEL_DEBUG: "debug",
	LEVEL_INFO:  "info",
	LEVEL_WARN:  "warn",
	LEVEL_ERROR: "error",
	LEVEL_FATAL: "fatal",
}

var zerologLevels = map[int]zerolog.Level{
	LEVEL_DEBUG: zerolog.DebugLevel,
	LEVEL_INFO:  zerolog.InfoLevel,
	LEVEL_WARN:  zerolog.WarnLevel,
	LEVEL_ERROR: zerolog.ErrorLevel,
	LEVEL_FATAL: zerolog.FatalLevel,
}

// LogMessage is a single structured log line.
type LogMessage struct {
	Pairs   map[string]any
	Message string
}

func (m *LogMessage) String() string {
	return m.Message
}

type Logger struct {
	output      io.Writer
	base        zerolog.Logger
	format      string
	minLogLevel int
	showCaller  bool
	mu          sync.RWMutex
}

func New() *Logger {
	return &Logger{
		output:      os.Stdout,
		base:        zerolog.New(os.Stdout),
		format:      time.RFC3339,
		minLogLevel: defaultMinLevel,
	}
}

// GetLogLevel maps a LOG_LEVEL style string to a level constant.
func GetLogLevel(level string) int {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return LEVEL_DEBUG
	case "info":
		return LEVEL_INFO
	case "warn", "warning":
		return LEVEL_WARN
	case "error":
		return LEVEL_ERROR
	case "fatal", "critical":
		return LEVEL_FATAL
	default:
		return defaultMinLevel
	}
}

func (l *Logger) SetOutput(output io.Writer) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = output
	l.base = zerolog.New(output)
	return l
}

func (l *Logger) SetFormat(format string) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.format = format
	return l
}

func (l *Logger) SetMinLogLevel(level int) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minLogLevel = level
	return l
}

// SetShowCaller adds the "file:line" of the logging call site to every line.
func (l *Logger) SetShowCaller(show bool) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.showCaller = show
	return l
}

func (l *Logger) shouldLog(level int) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return level >= l.minLogLevel
}

func (l *Logger) log(level int, m *LogMessage) {
	if m == nil || !l.shouldLog(level) {
		return
	}

	l.mu.RLock()
	base, format, showCaller := l.base, l.format, l.showCaller
	l.mu.RUnlock()

	event := base.WithLevel(zerologLevels[level]).Str("timestamp", time.Now().Format(format))
	if showCaller {
		// log <- level method <- call site
		if _, file, line, ok := runtime.Caller(2); ok {
			event.Str("caller", filepath.Base(file)+":"+strconv.Itoa(line))
		}
	}
	for k, val := range m.Pairs {
		switch v := val.(type) {
		case string:
			event.Str(k, v)
		case int:
			event.Int(k, v)
		case float64:
			event.Float64(k, v)
		case bool:
			event.Bool(k, v)
		case error:
			event.AnErr(k, v)
		default:
			event.Interface(k, v)
		}
	}
	event.Msg(m.Message)
}

func (l *Logger) Debug(m *LogMessage) {
	l.log(LEVEL_DEBUG, m)
}

func (l *Logger) Info(m *LogMessage) {
	l.log(LEVEL_INFO, m)
}

func (l *Logger) Warn(m *LogMessage) {
	l.log(LEVEL_WARN, m)
}

// alias Warning to Warn
func (l *Logger) Warning(m *LogMessage) {
	l.log(LEVEL_WARN, m)
}

func (l *Logger) Error(m *LogMessage) {
	l.log(LEVEL_ERROR, m)
}

// Fatal logs at the fatal level. It does not terminate the process.
func (l *Logger) Fatal(m *LogMessage) {
	l.log(LEVEL_FATAL, m)
}

// alias Critical to Fatal
func (l *Logger) Critical(m *LogMessage) {
	l.log(LEVEL_FATAL, m)
}
