// Package logging provides config-driven categorized file-based logging for orgkeep.
// Logs are written to .orgkeep/logs/ with one file per category. Logging is
// controlled by debug_mode in the loaded config — when false, no logs are written.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category represents a log subsystem.
type Category string

const (
	CategoryBoot       Category = "boot"       // startup and shutdown
	CategoryCorpus     Category = "corpus"     // corpus scanning
	CategoryHealth     Category = "health"     // health scoring
	CategoryPlanner    Category = "planner"    // goal evaluation, backward chaining
	CategoryExecutor   Category = "executor"   // plan execution
	CategoryPatch      Category = "patch"      // diffing, backups, proposals
	CategoryEmbedCache Category = "embedcache" // embedding cache persistence
	CategorySemantic   Category = "semantic"   // semantic-search gateway calls
	CategoryChat       Category = "chat"       // chat gateway calls
	CategoryCLI        Category = "cli"        // cobra command handlers
)

// Logger wraps a standard logger bound to one category.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	loggers    = make(map[Category]*Logger)
	loggersMu  sync.RWMutex
	logsDir    string
	debugMode  bool
	initOnce   sync.Once
	initialErr error
)

// Initialize sets up the logs directory under root. When debugMode is false
// this is a silent no-op: Get always returns a logger whose writes go nowhere.
func Initialize(root string, debug bool) error {
	if root == "" {
		return fmt.Errorf("logging: workspace root required")
	}

	initOnce.Do(func() {
		debugMode = debug
		if !debugMode {
			return
		}
		logsDir = filepath.Join(root, ".orgkeep", "logs")
		if err := os.MkdirAll(logsDir, 0o755); err != nil {
			initialErr = fmt.Errorf("logging: create logs dir: %w", err)
			return
		}
		Get(CategoryBoot).Info("logging initialized, dir=%s", logsDir)
	})
	return initialErr
}

// Get returns (or lazily creates) the logger for category. Safe to call
// before Initialize or when debug mode is off — both return a no-op logger.
func Get(category Category) *Logger {
	if !debugMode || logsDir == "" {
		return &Logger{category: category}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	logPath := filepath.Join(logsDir, string(category)+".log")
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: could not open %s: %v\n", logPath, err)
		return &Logger{category: category}
	}

	l := &Logger{
		category: category,
		file:     file,
		logger:   log.New(file, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	loggers[category] = l
	return l
}

func (l *Logger) Debug(format string, args ...interface{}) {
	if l.logger == nil {
		return
	}
	l.logger.Printf("[DEBUG] "+format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	if l.logger == nil {
		return
	}
	l.logger.Printf("[INFO] "+format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	if l.logger == nil {
		return
	}
	l.logger.Printf("[WARN] "+format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	if l.logger == nil {
		return
	}
	l.logger.Printf("[ERROR] "+format, args...)
}

// CloseAll closes every open log file. Call once at shutdown.
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	for _, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

// Timer measures an operation's duration and logs it to a category on Stop.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}
