// Package logger provides the shared zap sugared logger for the application.
// It is initialized once based on LOG_LEVEL and ENVIRONMENT.
package logger

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	log  *zap.SugaredLogger
	once sync.Once
)

func initLogger() {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(os.Getenv("LOG_LEVEL"))); err != nil {
		level = zapcore.InfoLevel
	}

	var cfg zap.Config
	if os.Getenv("ENVIRONMENT") == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	zapLogger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	log = zapLogger.Sugar()
}

// Get returns the shared logger, initializing it on first use.
func Get() *zap.SugaredLogger {
	once.Do(initLogger)
	return log
}

// Close flushes buffered log entries. Call before the process exits.
func Close() error {
	if log != nil {
		return log.Sync()
	}
	return nil
}
