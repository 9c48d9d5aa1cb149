// Package logging provides config-driven categorized file-based logging for sheetmind.
// Logs are written to .sheetmind/logs/ with separate files per category.
// Logging is controlled by debug_mode in .sheetmind/config.yaml - when false, no
// logs are written.
package logging

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Category represents a log category/system
type Category string

const (
	// Core system categories
	CategoryBoot      Category = "boot"      // Boot/initialization
	CategoryAPI       Category = "api"       // LLM provider calls
	CategoryEmbedding Category = "embedding" // Embedding engine
	CategoryStore     Category = "store"     // Intent cache store operations

	// Pipeline categories
	CategoryAnalyzer  Category = "analyzer"  // Request specificity analysis
	CategoryRouter    Category = "router"    // Intent classification cascade
	CategorySkills    Category = "skills"    // Skill selection and assembly
	CategoryParser    Category = "parser"    // Plan parsing and normalization
	CategoryAllocator Category = "allocator" // Output column assignment
	CategoryExecutor  Category = "executor"  // Self-correcting tool loop
	CategoryTelemetry Category = "telemetry" // Fire-and-forget learning writes
)

// loggingConfig mirrors the relevant parts of config.LoggingConfig
// to avoid circular imports
type loggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
	JSONFormat bool            `yaml:"json_format"`
}

// configFile structure for reading .sheetmind/config.yaml
type configFile struct {
	Logging loggingConfig `yaml:"logging"`
}

// StructuredLogEntry is the JSON form of a log line when json_format is on.
type StructuredLogEntry struct {
	Timestamp int64                  `json:"ts"`  // Unix milliseconds
	Category  string                 `json:"cat"` // Log category
	Level     string                 `json:"lvl"` // debug/info/warn/error
	Message   string                 `json:"msg"` // Log message
	RequestID string                 `json:"req,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Logger wraps a standard logger with category and file output
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	loggers      = make(map[Category]*Logger)
	loggersMu    sync.RWMutex
	logsDir      string
	workspace    string
	config       loggingConfig
	configLoaded bool
	configMu     sync.RWMutex
	logLevel     int // 0=debug, 1=info, 2=warn, 3=error
)

// Log levels
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// Initialize sets up the logging directory and loads config.
// Should be called once at startup with the workspace path.
func Initialize(ws string) error {
	if ws == "" {
		return fmt.Errorf("workspace path required")
	}

	workspace = ws
	logsDir = filepath.Join(workspace, ".sheetmind", "logs")

	if err := loadConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not load config: %v\n", err)
		config.DebugMode = false
	}

	// Only create logs directory if debug mode is enabled
	if !config.DebugMode {
		return nil // Silent no-op in production mode
	}

	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	bootLogger := Get(CategoryBoot)
	bootLogger.Info("=== sheetmind logging initialized ===")
	bootLogger.Info("Workspace: %s", workspace)
	bootLogger.Info("Log level: %s", config.Level)

	return nil
}

// loadConfig reads the logging config from .sheetmind/config.yaml
func loadConfig() error {
	configMu.Lock()
	defer configMu.Unlock()

	configPath := filepath.Join(workspace, ".sheetmind", "config.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// No config = production mode (no logging)
			config.DebugMode = false
			configLoaded = true
			return nil
		}
		return err
	}

	var cf configFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	config = cf.Logging
	configLoaded = true

	switch config.Level {
	case "debug":
		logLevel = LevelDebug
	case "info":
		logLevel = LevelInfo
	case "warn", "warning":
		logLevel = LevelWarn
	case "error":
		logLevel = LevelError
	default:
		logLevel = LevelInfo
	}

	return nil
}

// ReloadConfig reloads the config from disk.
func ReloadConfig() error {
	return loadConfig()
}

// IsDebugMode returns whether debug logging is enabled
func IsDebugMode() bool {
	configMu.RLock()
	defer configMu.RUnlock()
	return config.DebugMode
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	configMu.RLock()
	defer configMu.RUnlock()

	if !config.DebugMode {
		return false
	}

	if config.Categories == nil {
		return true // All enabled by default in debug mode
	}

	enabled, exists := config.Categories[string(category)]
	if !exists {
		return true // Enable by default if not specified
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if debug mode is disabled or category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		return &Logger{category: category}
	}

	if logsDir == "" {
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

	// Double-check after acquiring write lock
	if l, ok := loggers[category]; ok {
		return l
	}

	// Date prefix keeps rotation trivial
	date := time.Now().Format("2006-01-02")
	filename := fmt.Sprintf("%s_%s.log", date, category)
	logPath := filepath.Join(logsDir, filename)

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not open log file %s: %v\n", logPath, err)
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

// logJSON writes a structured JSON log entry
func (l *Logger) logJSON(level, msg string) {
	entry := StructuredLogEntry{
		Timestamp: time.Now().UnixMilli(),
		Category:  string(l.category),
		Level:     level,
		Message:   msg,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		l.logger.Printf("[%s] %s", level, msg) // Fallback to text
		return
	}
	l.logger.Printf("%s", data)
}

// Debug logs a debug message (only if level <= debug)
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelDebug {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if config.JSONFormat {
		l.logJSON("debug", msg)
	} else {
		l.logger.Printf("[DEBUG] %s", msg)
	}
}

// Info logs an informational message (only if level <= info)
func (l *Logger) Info(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelInfo {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if config.JSONFormat {
		l.logJSON("info", msg)
	} else {
		l.logger.Printf("[INFO] %s", msg)
	}
}

// Warn logs a warning message (only if level <= warn)
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelWarn {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if config.JSONFormat {
		l.logJSON("warn", msg)
	} else {
		l.logger.Printf("[WARN] %s", msg)
	}
}

// Error logs an error message (always logged if logger exists)
func (l *Logger) Error(format string, args ...interface{}) {
	if l.logger == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if config.JSONFormat {
		l.logJSON("error", msg)
	} else {
		l.logger.Printf("[ERROR] %s", msg)
	}
}

// CloseAll closes all open log files (call at shutdown)
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

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// These are no-ops if the category is disabled
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Info(format, args...)
}

// BootDebug logs debug to the boot category
func BootDebug(format string, args ...interface{}) {
	Get(CategoryBoot).Debug(format, args...)
}

// API logs to the api category
func API(format string, args ...interface{}) {
	Get(CategoryAPI).Info(format, args...)
}

// APIDebug logs debug to the api category
func APIDebug(format string, args ...interface{}) {
	Get(CategoryAPI).Debug(format, args...)
}

// Embedding logs to the embedding category
func Embedding(format string, args ...interface{}) {
	Get(CategoryEmbedding).Info(format, args...)
}

// EmbeddingDebug logs debug to the embedding category
func EmbeddingDebug(format string, args ...interface{}) {
	Get(CategoryEmbedding).Debug(format, args...)
}

// Store logs to the store category
func Store(format string, args ...interface{}) {
	Get(CategoryStore).Info(format, args...)
}

// StoreDebug logs debug to the store category
func StoreDebug(format string, args ...interface{}) {
	Get(CategoryStore).Debug(format, args...)
}

// Analyzer logs to the analyzer category
func Analyzer(format string, args ...interface{}) {
	Get(CategoryAnalyzer).Info(format, args...)
}

// AnalyzerDebug logs debug to the analyzer category
func AnalyzerDebug(format string, args ...interface{}) {
	Get(CategoryAnalyzer).Debug(format, args...)
}

// Router logs to the router category
func Router(format string, args ...interface{}) {
	Get(CategoryRouter).Info(format, args...)
}

// RouterDebug logs debug to the router category
func RouterDebug(format string, args ...interface{}) {
	Get(CategoryRouter).Debug(format, args...)
}

// Skills logs to the skills category
func Skills(format string, args ...interface{}) {
	Get(CategorySkills).Info(format, args...)
}

// SkillsDebug logs debug to the skills category
func SkillsDebug(format string, args ...interface{}) {
	Get(CategorySkills).Debug(format, args...)
}

// Parser logs to the parser category
func Parser(format string, args ...interface{}) {
	Get(CategoryParser).Info(format, args...)
}

// ParserDebug logs debug to the parser category
func ParserDebug(format string, args ...interface{}) {
	Get(CategoryParser).Debug(format, args...)
}

// Allocator logs to the allocator category
func Allocator(format string, args ...interface{}) {
	Get(CategoryAllocator).Info(format, args...)
}

// AllocatorDebug logs debug to the allocator category
func AllocatorDebug(format string, args ...interface{}) {
	Get(CategoryAllocator).Debug(format, args...)
}

// Executor logs to the executor category
func Executor(format string, args ...interface{}) {
	Get(CategoryExecutor).Info(format, args...)
}

// ExecutorDebug logs debug to the executor category
func ExecutorDebug(format string, args ...interface{}) {
	Get(CategoryExecutor).Debug(format, args...)
}

// Telemetry logs to the telemetry category
func Telemetry(format string, args ...interface{}) {
	Get(CategoryTelemetry).Info(format, args...)
}

// TelemetryDebug logs debug to the telemetry category
func TelemetryDebug(format string, args ...interface{}) {
	Get(CategoryTelemetry).Debug(format, args...)
}

// =============================================================================
// TIMING HELPERS - For performance logging
// =============================================================================

// Timer helps measure operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs a warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
