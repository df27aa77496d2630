package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config 定義 logger 設定
type Config struct {
	// Level: debug, info, warn, error
	Level string `yaml:"level"`
	// Format: json 或 console
	Format string `yaml:"format"`
	// Development 開啟後 DPanic 會 panic，並輸出 caller 與 stacktrace
	Development bool `yaml:"development"`
}

// DefaultConfig 預設設定
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "json",
	}
}

// NewLogger 依設定建立 zap logger
func NewLogger(cfg Config) (*zap.Logger, error) {
	var encoderConfig zapcore.EncoderConfig
	if cfg.Development {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
	}
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeDuration = zapcore.StringDurationEncoder

	format := cfg.Format
	if format != "console" {
		format = "json"
	}

	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(ParseLevel(cfg.Level)),
		Development:       cfg.Development,
		DisableCaller:     !cfg.Development,
		DisableStacktrace: !cfg.Development,
		Encoding:          format,
		EncoderConfig:     encoderConfig,
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
	}
	return zapConfig.Build()
}

// ParseLevel 轉換字串為 zapcore.Level，無法辨識時使用 info
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// NewNoOpLogger 不輸出任何內容 (測試用)
func NewNoOpLogger() *zap.Logger {
	return zap.NewNop()
}
