// Package logger is the bridge's ambient logging façade: a package-level
// level switch plus Log* convenience functions used by every other
// package, so collaborators don't each thread a logger instance through
// their constructors.
package logger

import (
	"log"
	"os"
	"strings"
)

// Log level names, ordered least to most verbose.
const (
	LogLevelError = "error"
	LogLevelWarn  = "warn"
	LogLevelInfo  = "info"
	LogLevelDebug = "debug"
	LogLevelTrace = "trace"
)

// LoggingConfig is the `logging:` block of the bridge's YAML config.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	MaxSize int    `yaml:"max_size"`
	MaxAge  int    `yaml:"max_age"`
}

// GlobalLogging is set once at startup by main.go's NewApplication and read
// by every Log* call below.
var GlobalLogging *LoggingConfig

func shouldLog(currentLevel, messageLevel string) bool {
	levels := []string{LogLevelError, LogLevelWarn, LogLevelInfo, LogLevelDebug, LogLevelTrace}

	currentIndex, messageIndex := -1, -1
	for i, level := range levels {
		if level == currentLevel {
			currentIndex = i
		}
		if level == messageLevel {
			messageIndex = i
		}
	}

	if currentIndex == -1 || messageIndex == -1 {
		return true
	}
	return messageIndex <= currentIndex
}

// LogStartup is always visible, regardless of configured level — used
// before GlobalLogging is set (config/logging setup itself) and for the
// handful of messages that must survive even at "error" level.
func LogStartup(format string, args ...interface{}) {
	log.Printf("🔧 "+format, args...)
}

func LogError(format string, args ...interface{}) {
	if GlobalLogging != nil && shouldLog(strings.ToLower(GlobalLogging.Level), LogLevelError) {
		log.Printf("❌ "+format, args...)
	}
}

func LogWarn(format string, args ...interface{}) {
	if GlobalLogging != nil && shouldLog(strings.ToLower(GlobalLogging.Level), LogLevelWarn) {
		log.Printf("⚠️ "+format, args...)
	}
}

func LogInfo(format string, args ...interface{}) {
	if GlobalLogging != nil && shouldLog(strings.ToLower(GlobalLogging.Level), LogLevelInfo) {
		log.Printf("ℹ️ "+format, args...)
	}
}

func LogDebug(format string, args ...interface{}) {
	if GlobalLogging != nil && shouldLog(strings.ToLower(GlobalLogging.Level), LogLevelDebug) {
		log.Printf("🔧 "+format, args...)
	}
}

// openLogFile is called by ConfigureOutput during startup when logging.file
// is set, redirecting the standard logger's output from stderr. Owner-only
// permissions since a C-Bus install's log may carry MQTT credentials from
// connection-failure messages.
func openLogFile(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
}

// ConfigureOutput points the standard logger at config.File, leaving it on
// stderr (and logging why) if the file can't be opened.
func ConfigureOutput(config *LoggingConfig) {
	if config == nil || config.File == "" {
		return
	}
	f, err := openLogFile(config.File)
	if err != nil {
		log.Printf("failed to open log file %s: %v", config.File, err)
		return
	}
	log.SetOutput(f)
}
