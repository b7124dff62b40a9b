package logger

import (
	"regexp"

	"go.uber.org/zap/zapcore"
)

// Log output may carry request/response fragments from the catalog and
// storage APIs, which in turn may carry credentials. These patterns mask
// the sensitive part while leaving enough of the line to debug with.
var sanitizePatterns = []struct {
	re          *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9._\-]{8,}`), "${1}***"},
	{regexp.MustCompile(`(?i)(api[_-]?key["'=:\s]+)[A-Za-z0-9._\-]{8,}`), "${1}***"},
	{regexp.MustCompile(`(?i)(token["'=:\s]+)[A-Za-z0-9._\-]{8,}`), "${1}***"},
	{regexp.MustCompile(`(?i)(password["'=:\s]+)\S+`), "${1}***"},
	{regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`), "***@***"},
}

// Sanitize masks credentials and email addresses in a string.
func Sanitize(s string) string {
	for _, p := range sanitizePatterns {
		s = p.re.ReplaceAllString(s, p.replacement)
	}
	return s
}

// sanitizingCore wraps a zapcore.Core and sanitizes the message and every
// string field before handing the entry to the wrapped core.
type sanitizingCore struct {
	zapcore.Core
}

// NewSanitizingCore wraps core with credential masking.
func NewSanitizingCore(core zapcore.Core) zapcore.Core {
	return &sanitizingCore{Core: core}
}

func (c *sanitizingCore) With(fields []zapcore.Field) zapcore.Core {
	return &sanitizingCore{Core: c.Core.With(sanitizeFields(fields))}
}

func (c *sanitizingCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *sanitizingCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	entry.Message = Sanitize(entry.Message)
	return c.Core.Write(entry, sanitizeFields(fields))
}

func sanitizeFields(fields []zapcore.Field) []zapcore.Field {
	out := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		if f.Type == zapcore.StringType {
			f.String = Sanitize(f.String)
		}
		out[i] = f
	}
	return out
}
