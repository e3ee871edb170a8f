package logging

import (
	"go.uber.org/zap/zapcore"
)

// WrapCore layers the augmentation and source-annotation cores on top of the
// base core built by controller-runtime. skipWrapperFrames tells the source
// core how many logging-internal frames sit between the caller and the core.
func WrapCore(c zapcore.Core, skipWrapperFrames int) zapcore.Core {
	core := c
	if isActiveJSON() {
		core = newAugmentCore(core)
	}
	return NewSourceCore(core, skipWrapperFrames)
}

// augmentCore adds a numeric severity field alongside the textual level so
// the collector does not have to re-derive it from the level string.
type augmentCore struct {
	zapcore.Core
}

func newAugmentCore(c zapcore.Core) zapcore.Core {
	return &augmentCore{Core: c}
}

func (c *augmentCore) With(fields []zapcore.Field) zapcore.Core {
	return &augmentCore{Core: c.Core.With(fields)}
}

func (c *augmentCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *augmentCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	fields = append(fields, zapcore.Field{
		Key:     "severity_number",
		Type:    zapcore.Int64Type,
		Integer: severityNumber(ent.Level),
	})
	return c.Core.Write(ent, fields)
}

// severityNumber maps zap levels onto OpenTelemetry severity numbers.
func severityNumber(level zapcore.Level) int64 {
	switch level {
	case zapcore.DebugLevel:
		return 5
	case zapcore.InfoLevel:
		return 9
	case zapcore.WarnLevel:
		return 13
	case zapcore.ErrorLevel:
		return 17
	case zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return 21
	default:
		return 9
	}
}
