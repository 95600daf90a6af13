package shared

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a zap logger from the service configuration
func NewLogger(config *ServiceConfig) (*zap.Logger, error) {
	zapCfg, err := loggerConfig(config)
	if err != nil {
		return nil, err
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return logger.With(zap.String("service", config.ServiceName)), nil
}

// loggerConfig picks the encoder and level; production always logs JSON
func loggerConfig(config *ServiceConfig) (zap.Config, error) {
	var zapCfg zap.Config

	if config.LogFormat == "json" || IsProduction(config) {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	level, err := zapcore.ParseLevel(GetLogLevel(config))
	if err != nil {
		return zap.Config{}, fmt.Errorf("invalid log level %q: %w", config.LogLevel, err)
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg, nil
}
