package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var sugar *zap.SugaredLogger

// Init initializes the global logger. Verbose enables debug-level output;
// otherwise only warnings and errors are emitted.
func Init(verbose bool) {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	l, err := cfg.Build()
	if err != nil {
		l = zap.NewNop()
	}

	zap.ReplaceGlobals(l)
	sugar = l.Sugar()
}

// Close flushes any buffered log entries.
func Close() {
	if sugar != nil {
		_ = sugar.Sync()
	}
}

// Debug logs a debug message with key-value pairs
func Debug(msg string, keysAndValues ...any) {
	logger().Debugw(msg, keysAndValues...)
}

// Info logs an info message with key-value pairs
func Info(msg string, keysAndValues ...any) {
	logger().Infow(msg, keysAndValues...)
}

// Warn logs a warning message with key-value pairs
func Warn(msg string, keysAndValues ...any) {
	logger().Warnw(msg, keysAndValues...)
}

// Error logs an error message with key-value pairs
func Error(msg string, keysAndValues ...any) {
	logger().Errorw(msg, keysAndValues...)
}

func logger() *zap.SugaredLogger {
	if sugar != nil {
		return sugar
	}
	return zap.S()
}
