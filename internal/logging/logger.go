// Package logging provides the correlation-aware structured logger shared by
// every component of the simulator control plane.
package logging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps logrus.Logger and adds correlation ID tracking and component
// identification.
type Logger struct {
	*logrus.Logger
	correlationID string
	component     string
	mu            sync.RWMutex
}

// Config represents logging configuration settings.
type Config struct {
	Level          string `mapstructure:"level"`
	Format         string `mapstructure:"format"`
	FileEnabled    bool   `mapstructure:"file_enabled"`
	FilePath       string `mapstructure:"file_path"`
	MaxFileSizeMB  int    `mapstructure:"max_file_size_mb"`
	BackupCount    int    `mapstructure:"backup_count"`
	ConsoleEnabled bool   `mapstructure:"console_enabled"`
}

// CorrelationIDKey is the context key for correlation IDs.
const CorrelationIDKey = "correlation_id"

var (
	globalLogger *Logger
	once         sync.Once
)

// NewLogger creates a new logger instance for the specified component.
func NewLogger(component string) *Logger {
	logger := &Logger{
		Logger:    logrus.New(),
		component: component,
	}

	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	return logger
}

// GetLogger returns the global logger instance, created once.
func GetLogger() *Logger {
	once.Do(func() {
		globalLogger = NewLogger("simctrl")
	})
	return globalLogger
}

// Setup initializes the logging system with the given configuration.
func Setup(config *Config) error {
	logger := GetLogger()

	level, err := logrus.ParseLevel(strings.ToLower(config.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	logger.ReplaceHooks(logrus.LevelHooks{})

	if config.ConsoleEnabled {
		logger.SetOutput(os.Stdout)
		logger.SetFormatter(createConsoleFormatter(config.Format))
		logger.SetLevel(level)
	}

	if config.FileEnabled && config.FilePath != "" {
		if err := setupFileHandler(logger, config); err != nil {
			return fmt.Errorf("failed to setup file handler: %w", err)
		}
	}

	return nil
}

func setupFileHandler(logger *Logger, config *Config) error {
	logDir := filepath.Dir(config.FilePath)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	fileHandler := &lumberjack.Logger{
		Filename:   config.FilePath,
		MaxSize:    config.MaxFileSizeMB,
		MaxBackups: config.BackupCount,
		MaxAge:     30,
		Compress:   true,
	}

	logger.SetOutput(fileHandler)
	logger.SetFormatter(createFileFormatter(config.Format))

	return nil
}

func createConsoleFormatter(format string) logrus.Formatter {
	return &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
		ForceColors:     true,
	}
}

func createFileFormatter(format string) logrus.Formatter {
	if strings.Contains(strings.ToLower(format), "json") || os.Getenv("SIMCTRL_ENV") == "production" {
		return &logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05"}
	}
	return &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
		DisableColors:   true,
	}
}

// WithCorrelationID returns a new logger instance bound to the given
// correlation ID.
func (l *Logger) WithCorrelationID(id string) *Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return &Logger{
		Logger:        l.Logger,
		correlationID: id,
		component:     l.component,
	}
}

// WithField returns a new logger instance with the given field attached.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{
		Logger:        l.Logger.WithField(key, value).Logger,
		correlationID: l.correlationID,
		component:     l.component,
	}
}

// WithError returns a new logger instance with the given error attached.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{
		Logger:        l.Logger.WithError(err).Logger,
		correlationID: l.correlationID,
		component:     l.component,
	}
}

// Fields is a type alias for logrus.Fields.
type Fields = logrus.Fields

// WithFields returns a new logger instance with the given fields attached.
func (l *Logger) WithFields(fields Fields) *Logger {
	return &Logger{
		Logger:        l.Logger.WithFields(fields).Logger,
		correlationID: l.correlationID,
		component:     l.component,
	}
}

// LogWithContext logs a message, attaching component and correlation ID
// (from the receiver or, failing that, from ctx).
func (l *Logger) LogWithContext(ctx context.Context, level logrus.Level, msg string) {
	entry := l.Logger.WithField("component", l.component)

	if l.correlationID != "" {
		entry = entry.WithField("correlation_id", l.correlationID)
	} else if id := CorrelationIDFromContext(ctx); id != "" {
		entry = entry.WithField("correlation_id", id)
	}

	entry.Log(level, msg)
}

// GenerateCorrelationID returns a new correlation ID.
func GenerateCorrelationID() string {
	return uuid.New().String()
}

// CorrelationIDFromContext extracts a correlation ID from ctx, if present.
func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithCorrelationID attaches a correlation ID to ctx.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, id)
}

func (l *Logger) DebugWithContext(ctx context.Context, msg string) { l.LogWithContext(ctx, logrus.DebugLevel, msg) }
func (l *Logger) InfoWithContext(ctx context.Context, msg string)  { l.LogWithContext(ctx, logrus.InfoLevel, msg) }
func (l *Logger) WarnWithContext(ctx context.Context, msg string)  { l.LogWithContext(ctx, logrus.WarnLevel, msg) }
func (l *Logger) ErrorWithContext(ctx context.Context, msg string) { l.LogWithContext(ctx, logrus.ErrorLevel, msg) }
