package noolite

import "sync"

// Logger is the structured logger used by bridge components.
// Compatible with *logging.Logger and *slog.Logger.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// optionalLogger guards a Logger that may be nil or replaced at runtime.
type optionalLogger struct {
	mu     sync.RWMutex
	logger Logger
}

func (o *optionalLogger) set(logger Logger) {
	o.mu.Lock()
	o.logger = logger
	o.mu.Unlock()
}

func (o *optionalLogger) get() Logger {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.logger
}

func (o *optionalLogger) logDebug(msg string, keysAndValues ...any) {
	if l := o.get(); l != nil {
		l.Debug(msg, keysAndValues...)
	}
}

func (o *optionalLogger) logInfo(msg string, keysAndValues ...any) {
	if l := o.get(); l != nil {
		l.Info(msg, keysAndValues...)
	}
}

func (o *optionalLogger) logWarn(msg string, keysAndValues ...any) {
	if l := o.get(); l != nil {
		l.Warn(msg, keysAndValues...)
	}
}

func (o *optionalLogger) logError(msg string, keysAndValues ...any) {
	if l := o.get(); l != nil {
		l.Error(msg, keysAndValues...)
	}
}
