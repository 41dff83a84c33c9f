// Package logger builds the logger of the camstream command.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New allocates a logger.
// Valid levels are debug, info, warn, error, dpanic, panic, fatal.
// When json is false, a human-readable development encoder is used.
func New(level string, json bool) (*zap.Logger, error) {
	var config zap.Config
	if json {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.DisableStacktrace = true
	}

	if level != "" {
		lvl := zapcore.Level(0)
		err := lvl.UnmarshalText([]byte(level))
		if err != nil {
			return nil, err
		}
		config.Level = zap.NewAtomicLevelAt(lvl)
	}

	return config.Build()
}
