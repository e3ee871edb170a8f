package logging

import (
	"path/filepath"
	"runtime"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// stackDepth bounds the walk when zap's recorded caller is unusable and the
// real call site has to be recovered from the runtime stack.
const stackDepth = 32

// Frames belonging to logging machinery rather than application code. A
// call site inside any of these is skipped so the `code` attributes point
// at the line that actually logged.
var wrapperPathMarkers = []string{
	"/k8s.io/klog/",
	"/github.com/go-logr/",
	"/go.uber.org/zap/",
	"/sigs.k8s.io/controller-runtime/pkg/log/",
	"/github.com/skynet-mc/skynet/pkg/logging/",
}

// sourceCore decorates every entry of the wrapped core with a structured
// `code` object (function, filepath, lineno) naming the real call site.
type sourceCore struct {
	zapcore.Core
	callerSkip int
}

// NewSourceCore wraps core so entries carry `code.*` attributes. callerSkip
// counts the logging wrappers between the caller and Write; it only matters
// when the zap-recorded caller is missing and the stack has to be walked.
func NewSourceCore(core zapcore.Core, callerSkip int) zapcore.Core {
	return &sourceCore{Core: core, callerSkip: callerSkip}
}

func (c *sourceCore) With(fields []zapcore.Field) zapcore.Core {
	return &sourceCore{Core: c.Core.With(fields), callerSkip: c.callerSkip}
}

func (c *sourceCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *sourceCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	site, ok := c.resolveCallsite(entry)
	if ok {
		fields = append(fields, zap.Object("code", site))
		entry.Caller = zapcore.NewEntryCaller(site.pc, site.file, site.line, true)
	}
	return c.Core.Write(entry, fields)
}

// resolveCallsite trusts the caller zap recorded unless it lands inside a
// logging wrapper, in which case the runtime stack is walked down to the
// first application frame.
func (c *sourceCore) resolveCallsite(entry zapcore.Entry) (callsite, bool) {
	if entry.Caller.Defined && !isWrapperFrame(entry.Caller.File) {
		site := callsite{
			file: entry.Caller.File,
			line: entry.Caller.Line,
			pc:   entry.Caller.PC,
		}
		if fn := runtime.FuncForPC(entry.Caller.PC); fn != nil {
			site.function = fn.Name()
		}
		return site, true
	}
	return c.walkStack()
}

func (c *sourceCore) walkStack() (callsite, bool) {
	const extraSkip = 2 // Write and runtime.Callers itself
	pcs := make([]uintptr, stackDepth)
	n := runtime.Callers(c.callerSkip+extraSkip, pcs)
	if n == 0 {
		return callsite{}, false
	}

	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if applicationFrame(frame) {
			return callsite{
				function: frame.Function,
				file:     frame.File,
				line:     frame.Line,
				pc:       frame.PC,
			}, true
		}
		if !more {
			return callsite{}, false
		}
	}
}

func applicationFrame(frame runtime.Frame) bool {
	if frame.Function == "" && frame.File == "" {
		return false
	}
	return !isWrapperFrame(frame.File) && !isRuntimeFrame(frame.Function)
}

func isWrapperFrame(file string) bool {
	path := normalizeFramePath(file)
	if path == "" {
		return false
	}
	// Test files log from this package too; they are never wrappers.
	if strings.HasSuffix(path, "_test.go") {
		return false
	}
	for _, marker := range wrapperPathMarkers {
		if strings.Contains(path, marker) {
			return true
		}
	}
	return false
}

func isRuntimeFrame(function string) bool {
	return strings.HasPrefix(function, "runtime.") ||
		strings.HasPrefix(function, "testing.")
}

// normalizeFramePath drops module version suffixes (pkg@v1.2.3) so the
// wrapper markers match both module-cache and workspace paths.
func normalizeFramePath(file string) string {
	if file == "" {
		return ""
	}
	segments := strings.Split(filepath.ToSlash(file), "/")
	for i, segment := range segments {
		if bare, _, found := strings.Cut(segment, "@"); found {
			segments[i] = bare
		}
	}
	return strings.Join(segments, "/")
}

// callsite is the resolved origin of a log entry.
type callsite struct {
	function string
	file     string
	line     int
	pc       uintptr
}

func (s callsite) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("function", s.function)
	enc.AddString("filepath", s.file)
	enc.AddInt("lineno", s.line)
	return nil
}
