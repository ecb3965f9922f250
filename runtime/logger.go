package runtime

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	LogLevelOff
)

// String returns the string representation of a log level
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	case LogLevelOff:
		return "OFF"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel parses a string into a LogLevel
func ParseLogLevel(s string) (LogLevel, error) {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return LogLevelDebug, nil
	case "INFO":
		return LogLevelInfo, nil
	case "WARN", "WARNING":
		return LogLevelWarn, nil
	case "ERROR":
		return LogLevelError, nil
	case "OFF", "NONE":
		return LogLevelOff, nil
	default:
		return LogLevelInfo, fmt.Errorf("unknown log level: %s", s)
	}
}

// Logger is the leveled logger used by engines and the CLI.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
	SetLevel(level LogLevel)
	GetLevel() LogLevel
}

// DefaultLogger implements the Logger interface
type DefaultLogger struct {
	level  LogLevel
	output io.Writer
	logger *log.Logger
	mu     sync.RWMutex
}

// NewLogger creates a new logger instance
func NewLogger(output io.Writer, level LogLevel) *DefaultLogger {
	return &DefaultLogger{
		level:  level,
		output: output,
		logger: log.New(output, "", log.LstdFlags),
	}
}

// SetLevel sets the minimum log level
func (l *DefaultLogger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the current log level
func (l *DefaultLogger) GetLevel() LogLevel {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level
}

func (l *DefaultLogger) log(level LogLevel, format string, args ...any) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if level < l.level {
		return
	}
	l.logger.Printf("[%s] %s", level.String(), fmt.Sprintf(format, args...))
}

func (l *DefaultLogger) Debug(format string, args ...any) { l.log(LogLevelDebug, format, args...) }
func (l *DefaultLogger) Info(format string, args ...any)  { l.log(LogLevelInfo, format, args...) }
func (l *DefaultLogger) Warn(format string, args ...any)  { l.log(LogLevelWarn, format, args...) }
func (l *DefaultLogger) Error(format string, args ...any) { l.log(LogLevelError, format, args...) }

// LogSink receives the output of "log" expressions.  Values arrive already
// encoded as JSON and joined by spaces.
type LogSink func(namespace string, line string)

// LoggerSink forwards "log" output to a Logger at info level.
func LoggerSink(l Logger) LogSink {
	return func(namespace, line string) {
		if namespace == "" {
			l.Info("%s", line)
		} else {
			l.Info("%s: %s", namespace, line)
		}
	}
}

// WriterSink writes one line per "log" expression to w.
func WriterSink(w io.Writer) LogSink {
	var mu sync.Mutex
	return func(namespace, line string) {
		mu.Lock()
		defer mu.Unlock()
		if namespace == "" {
			fmt.Fprintln(w, line)
		} else {
			fmt.Fprintf(w, "%s: %s\n", namespace, line)
		}
	}
}

// Global logger instance
var globalLogger Logger = NewLogger(os.Stderr, LogLevelInfo)

// SetLogLevel sets the global log level
func SetLogLevel(level LogLevel) {
	globalLogger.SetLevel(level)
}

// GetLogLevel returns the current global log level
func GetLogLevel() LogLevel {
	return globalLogger.GetLevel()
}

// GlobalLogger returns the logger engines fall back on.
func GlobalLogger() Logger {
	return globalLogger
}

func Debug(format string, args ...any) { globalLogger.Debug(format, args...) }
func Info(format string, args ...any)  { globalLogger.Info(format, args...) }
func Warn(format string, args ...any)  { globalLogger.Warn(format, args...) }
func Error(format string, args ...any) { globalLogger.Error(format, args...) }

func init() {
	if levelStr := os.Getenv("PFA_LOG_LEVEL"); levelStr != "" {
		if level, err := ParseLogLevel(levelStr); err == nil {
			SetLogLevel(level)
		}
	}

	// In test mode, default to ERROR level only
	if strings.HasSuffix(os.Args[0], ".test") {
		SetLogLevel(LogLevelError)
	}
}
