// Package logging provides config-driven, categorized file-based logging
// for the coordination kernel. Logs are written to <workdir>/logs/, one file
// per category, gated by a debug_mode flag and a per-category enable map.
package logging

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category groups log output by subsystem so operators can tail one
// component without wading through the rest.
type Category string

const (
	CategoryBoot       Category = "boot"
	CategoryRegistry   Category = "registry"
	CategoryMessaging  Category = "messaging"
	CategoryTasks      Category = "tasks"
	CategoryClaims     Category = "claims"
	CategoryWarroom    Category = "warroom"
	CategoryHealth     Category = "health"
	CategoryDaemon     Category = "daemon"
	CategoryProvider   Category = "provider"
	CategoryTriggers   Category = "triggers"
	CategoryDatastore  Category = "datastore"
)

// Config mirrors the logging section of the kernel's own config document,
// kept local so this package does not import internal/config.
type Config struct {
	DebugMode  bool
	Categories map[string]bool
	JSONFormat bool
}

// Entry is one structured log line.
type Entry struct {
	Timestamp int64                  `json:"timestamp"`
	Category  string                 `json:"category"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

var (
	mu       sync.Mutex
	cfg      = Config{DebugMode: false, Categories: map[string]bool{}}
	logDir   = "logs"
	loggers  = map[Category]*Logger{}
)

// Configure sets the active config and base log directory. Safe to call
// again to hot-reload settings (e.g. on a contract-document change).
func Configure(c Config, dir string) {
	mu.Lock()
	defer mu.Unlock()
	cfg = c
	if dir != "" {
		logDir = dir
	}
}

// Logger writes structured entries for one category to its own file.
type Logger struct {
	category Category
	file     *os.File
	logger   *log.Logger
	mu       sync.Mutex
}

// Get returns (creating if needed) the Logger for category.
func Get(category Category) *Logger {
	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	l := &Logger{category: category}
	if err := os.MkdirAll(logDir, 0o755); err == nil {
		path := filepath.Join(logDir, string(category)+".log")
		if f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644); err == nil {
			l.file = f
			l.logger = log.New(f, "", 0)
		}
	}
	loggers[category] = l
	return l
}

func (l *Logger) enabled(level string) bool {
	if level == "debug" && !cfg.DebugMode {
		return false
	}
	if enabled, ok := cfg.Categories[string(l.category)]; ok {
		return enabled
	}
	return true
}

func (l *Logger) write(level, msg string, fields map[string]interface{}) {
	if !l.enabled(level) {
		return
	}
	entry := Entry{
		Timestamp: time.Now().UnixMilli(),
		Category:  string(l.category),
		Level:     level,
		Message:   msg,
		Fields:    fields,
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.logger == nil {
		return
	}
	if cfg.JSONFormat {
		if b, err := json.Marshal(entry); err == nil {
			l.logger.Println(string(b))
			return
		}
	}
	l.logger.Printf("[%s] %s %s", level, msg, fieldsString(fields))
}

func fieldsString(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return ""
	}
	return string(b)
}

// Debug logs at debug level (suppressed unless DebugMode is on).
func (l *Logger) Debug(msg string, fields map[string]interface{}) { l.write("debug", msg, fields) }

// Info logs at info level.
func (l *Logger) Info(msg string, fields map[string]interface{}) { l.write("info", msg, fields) }

// Warn logs at warn level.
func (l *Logger) Warn(msg string, fields map[string]interface{}) { l.write("warn", msg, fields) }

// Error logs at error level.
func (l *Logger) Error(msg string, fields map[string]interface{}) { l.write("error", msg, fields) }

// Close releases the underlying file handle, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// StartTimer logs category/label at debug level on entry and returns a func
// that logs the elapsed duration when called, matching the teacher's
// timer-around-constructor idiom used throughout the store layer.
func StartTimer(category Category, label string) func() {
	start := time.Now()
	l := Get(category)
	l.Debug(fmt.Sprintf("%s: start", label), nil)
	return func() {
		l.Debug(fmt.Sprintf("%s: done", label), map[string]interface{}{"elapsed_ms": time.Since(start).Milliseconds()})
	}
}
