package logger

import "time"

// multiLogger forwards every log call to a list of underlying loggers.
type multiLogger struct {
	sinks []Logger
}

// Multi returns a Logger that duplicates each call to all of the provided
// loggers, in order. Nil entries are skipped and nested multi loggers are
// flattened. With no usable loggers the result discards everything, like
// a NoOpLogger.
func Multi(loggers ...Logger) Logger {
	sinks := make([]Logger, 0, len(loggers))
	for _, l := range loggers {
		switch v := l.(type) {
		case nil:
		case *multiLogger:
			sinks = append(sinks, v.sinks...)
		default:
			sinks = append(sinks, l)
		}
	}
	return &multiLogger{sinks: sinks}
}

func (m *multiLogger) LogTrace(message string) {
	for _, l := range m.sinks {
		l.LogTrace(message)
	}
}

func (m *multiLogger) LogDebug(message string) {
	for _, l := range m.sinks {
		l.LogDebug(message)
	}
}

func (m *multiLogger) LogInfo(message string) {
	for _, l := range m.sinks {
		l.LogInfo(message)
	}
}

func (m *multiLogger) LogWarn(message string) {
	for _, l := range m.sinks {
		l.LogWarn(message)
	}
}

func (m *multiLogger) LogError(message string) {
	for _, l := range m.sinks {
		l.LogError(message)
	}
}

func (m *multiLogger) LogSuiteStart(suite string, scenarios int) {
	for _, l := range m.sinks {
		l.LogSuiteStart(suite, scenarios)
	}
}

func (m *multiLogger) LogSuiteComplete(suite string, duration time.Duration) {
	for _, l := range m.sinks {
		l.LogSuiteComplete(suite, duration)
	}
}

// LogScenarioResult forwards to every sink and reports the first error
// encountered, after all sinks have been called.
func (m *multiLogger) LogScenarioResult(name string, passed bool, duration time.Duration) error {
	var firstErr error
	for _, l := range m.sinks {
		if err := l.LogScenarioResult(name, passed, duration); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
