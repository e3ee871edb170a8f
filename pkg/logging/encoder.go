package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewJSONEncoder returns the zapcore.Encoder used when --log-format=json.
// It uses production defaults and adjusts field names and encoders to match
// what the log pipeline indexes on: time in RFC3339Nano format, upper-case
// levels and consistent key names.
func NewJSONEncoder() zapcore.Encoder {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "time"
	enc.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	enc.LevelKey = "level"
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	enc.MessageKey = "msg"
	enc.StacktraceKey = "stacktrace"
	enc.EncodeCaller = zapcore.ShortCallerEncoder
	return zapcore.NewJSONEncoder(enc)
}
