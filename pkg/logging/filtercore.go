package logging

import (
	gozapcore "go.uber.org/zap/zapcore"
)

// filterCore wraps a zapcore.Core and drops specific field keys.
// It keeps the "context" field out of console/JSON output while the otelzap
// bridge core still receives it for trace correlation.
type filterCore struct {
	gozapcore.Core
	keysToFilter map[string]bool
}

func newFilterCore(core gozapcore.Core, keysToFilter map[string]bool) gozapcore.Core {
	return &filterCore{
		Core:         core,
		keysToFilter: keysToFilter,
	}
}

// With drops filtered keys before handing fields to the wrapped core. The
// filtered keys only ever arrive via WithValues, so Write stays untouched.
func (c *filterCore) With(fields []gozapcore.Field) gozapcore.Core {
	filtered := make([]gozapcore.Field, 0, len(fields))
	for _, f := range fields {
		if !c.keysToFilter[f.Key] {
			filtered = append(filtered, f)
		}
	}
	return &filterCore{
		Core:         c.Core.With(filtered),
		keysToFilter: c.keysToFilter,
	}
}

func (c *filterCore) Check(e gozapcore.Entry, ce *gozapcore.CheckedEntry) *gozapcore.CheckedEntry {
	if c.Enabled(e.Level) {
		return ce.AddCore(e, c)
	}
	return ce
}
