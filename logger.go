package scriptrpc

// LogSink is the single-method callback surface a session uses to report
// FingerprintMismatch and FollowTransient diagnostics (see errors.go). It
// mirrors the shape of a capability interface with one method so a caller
// can implement it with a small named function type. The log package provides a
// zerolog-backed default.
type LogSink interface {
	Errorf(format string, args ...interface{})
}

// NopLogSink discards everything written to it. Useful as a zero-value
// default so callers never need a nil check before logging.
type NopLogSink struct{}

func (NopLogSink) Errorf(string, ...interface{}) {}
