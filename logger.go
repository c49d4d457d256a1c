package kiln

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the pipeline's structured logger: one JSON object per
// line with timestamp/level/message keys. Info and warn lines go to
// stdout, error lines to stderr, so build output can be filtered by
// stream alone.
func NewLogger() *zap.Logger {
	encCfg := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		MessageKey:     "message",
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
	}
	enc := zapcore.NewJSONEncoder(encCfg)

	outCore := zapcore.NewCore(enc, zapcore.Lock(os.Stdout),
		zap.LevelEnablerFunc(func(l zapcore.Level) bool {
			return l >= zapcore.InfoLevel && l < zapcore.ErrorLevel
		}))
	errCore := zapcore.NewCore(enc, zapcore.Lock(os.Stderr),
		zap.LevelEnablerFunc(func(l zapcore.Level) bool {
			return l >= zapcore.ErrorLevel
		}))

	return zap.New(zapcore.NewTee(outCore, errCore))
}
