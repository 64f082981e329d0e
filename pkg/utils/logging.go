package utils

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	logMu   sync.Mutex
	loggers = make(map[string]*LogHandle)
	logOut  io.Writer = os.Stderr
	logLvl            = logrus.InfoLevel
)

// LogHandle is a named logrus logger with a compact single-line format.
type LogHandle struct {
	logrus.Logger

	name string
}

// Format implements logrus.Formatter.
func (l *LogHandle) Format(e *logrus.Entry) ([]byte, error) {
	const timeFormat = "2006/01/02 15:04:05.000000"

	str := fmt.Sprintf("%v %s[%d] <%v>: %v",
		e.Time.Format(timeFormat),
		l.name,
		os.Getpid(),
		strings.ToUpper(e.Level.String()),
		e.Message)

	if len(e.Data) != 0 {
		str += fmt.Sprintf(" %v", e.Data)
	}

	return []byte(str + "\n"), nil
}

func newLogger(name string) *LogHandle {
	l := &LogHandle{name: name}
	l.Out = logOut
	l.Formatter = l
	l.Level = logLvl
	l.Hooks = make(logrus.LevelHooks)
	return l
}

// GetLogger returns the logger registered under name, creating it on first use.
func GetLogger(name string) *LogHandle {
	logMu.Lock()
	defer logMu.Unlock()

	if logger, ok := loggers[name]; ok {
		return logger
	}
	logger := newLogger(name)
	loggers[name] = logger
	return logger
}

// SetLogLevel sets the level of every registered logger and of loggers created later.
func SetLogLevel(lvl logrus.Level) {
	logMu.Lock()
	defer logMu.Unlock()

	logLvl = lvl
	for _, logger := range loggers {
		logger.SetLevel(lvl)
	}
}

// SetOutput redirects every registered logger and loggers created later.
func SetOutput(w io.Writer) {
	logMu.Lock()
	defer logMu.Unlock()

	logOut = w
	for _, logger := range loggers {
		logger.SetOutput(w)
	}
}

// SetOutFile appends all log output to the named file.
func SetOutFile(name string) error {
	file, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	SetOutput(file)
	return nil
}

// ParseLogLevel parses a string log level
func ParseLogLevel(level string) (logrus.Level, error) {
	switch strings.ToUpper(level) {
	case "TRACE":
		return logrus.TraceLevel, nil
	case "DEBUG":
		return logrus.DebugLevel, nil
	case "INFO":
		return logrus.InfoLevel, nil
	case "WARN", "WARNING":
		return logrus.WarnLevel, nil
	case "ERROR":
		return logrus.ErrorLevel, nil
	default:
		return logrus.InfoLevel, fmt.Errorf("invalid log level: %s", level)
	}
}

// SetupLogging configures every logger from a level name and an optional log file.
func SetupLogging(levelStr, logFile string) error {
	level, err := ParseLogLevel(levelStr)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	SetLogLevel(level)

	if logFile != "" {
		return SetOutFile(logFile)
	}
	return nil
}

// FormatBytes formats bytes as human-readable string
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// ParseBytes parses a human-readable byte string such as "4KB" or "64M".
func ParseBytes(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty string")
	}

	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, "B")

	var multiplier int64 = 1
	numStr := s

	if len(s) > 0 {
		switch s[len(s)-1] {
		case 'K':
			multiplier = 1024
		case 'M':
			multiplier = 1024 * 1024
		case 'G':
			multiplier = 1024 * 1024 * 1024
		case 'T':
			multiplier = 1024 * 1024 * 1024 * 1024
		}
		if multiplier > 1 {
			numStr = s[:len(s)-1]
		}
	}

	var num float64
	if _, err := fmt.Sscanf(numStr, "%f", &num); err != nil {
		return 0, fmt.Errorf("invalid number format: %s", s)
	}
	if num < 0 {
		return 0, fmt.Errorf("negative size: %s", s)
	}

	return int64(num * float64(multiplier)), nil
}
