package node

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogFileConfig configures rotated file output
type LogFileConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	Path       string `mapstructure:"path" yaml:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// LogConfig configures the node logger
type LogConfig struct {
	Level  string        `mapstructure:"level" yaml:"level"`
	Format string        `mapstructure:"format" yaml:"format"`
	File   LogFileConfig `mapstructure:"file" yaml:"file"`
}

// logLevelFromString converts a string to a logrus level
func logLevelFromString(level string) (logrus.Level, error) {
	switch strings.ToLower(level) {
	case "trace":
		return logrus.TraceLevel, nil
	case "debug":
		return logrus.DebugLevel, nil
	case "", "info":
		return logrus.InfoLevel, nil
	case "warn", "warning":
		return logrus.WarnLevel, nil
	case "error":
		return logrus.ErrorLevel, nil
	case "fatal":
		return logrus.FatalLevel, nil
	default:
		return logrus.InfoLevel, fmt.Errorf("unknown log level: %s", level)
	}
}

// Logger provides logging functionality for the node
type Logger struct {
	// prefix names the node in every entry
	prefix string

	// logger is the underlying logrus logger
	logger *logrus.Logger

	// closer releases the log file, if any
	closer io.Closer
}

// NewLogger creates a text logger on stdout with the specified prefix and log level
func NewLogger(prefix string, level string) *Logger {
	l := &Logger{
		prefix: prefix,
		logger: logrus.New(),
	}
	l.logger.SetOutput(os.Stdout)
	l.logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})
	lvl, _ := logLevelFromString(level)
	l.logger.SetLevel(lvl)
	return l
}

// NewLoggerFromConfig creates a logger honouring format and file output settings
func NewLoggerFromConfig(prefix string, cfg LogConfig) (*Logger, error) {
	lvl, err := logLevelFromString(cfg.Level)
	if err != nil {
		return nil, err
	}

	l := NewLogger(prefix, cfg.Level)
	l.logger.SetLevel(lvl)

	switch strings.ToLower(cfg.Format) {
	case "", "text":
	case "json":
		l.logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	default:
		return nil, fmt.Errorf("unsupported log format: %s (must be json or text)", cfg.Format)
	}

	if cfg.File.Enabled {
		if cfg.File.Path == "" {
			return nil, fmt.Errorf("file output requires 'path' field")
		}
		file := &lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSizeMB,  // megabytes
			MaxBackups: cfg.File.MaxBackups, // number of backups
			MaxAge:     cfg.File.MaxAgeDays, // days
			Compress:   cfg.File.Compress,
		}
		l.logger.SetOutput(io.MultiWriter(os.Stdout, file))
		l.closer = file
	}

	return l, nil
}

// Entry returns a field logger tagged with the node prefix, for components
func (l *Logger) Entry() *logrus.Entry {
	return l.logger.WithField("node", l.prefix)
}

// SetOutput redirects log output
func (l *Logger) SetOutput(w io.Writer) {
	l.logger.SetOutput(w)
}

// Debug logs a debug level message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.Entry().Debugf(format, args...)
}

// Info logs an info level message
func (l *Logger) Info(format string, args ...interface{}) {
	l.Entry().Infof(format, args...)
}

// Warn logs a warning level message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.Entry().Warnf(format, args...)
}

// Error logs an error level message
func (l *Logger) Error(format string, args ...interface{}) {
	l.Entry().Errorf(format, args...)
}

// Fatal logs a fatal level message and exits the program
func (l *Logger) Fatal(format string, args ...interface{}) {
	l.Entry().Fatalf(format, args...)
}

// SetLevel changes the log level of the logger
func (l *Logger) SetLevel(level string) error {
	lvl, err := logLevelFromString(level)
	if err != nil {
		return err
	}
	l.logger.SetLevel(lvl)
	l.Info("Log level set to %s", level)
	return nil
}

// Close releases the log file
func (l *Logger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}
