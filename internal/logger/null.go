package logger

// NullLogger discards all output (useful for tests).
type NullLogger struct{}

// NewNullLogger creates a new null logger.
func NewNullLogger() *NullLogger {
	return &NullLogger{}
}

func (l *NullLogger) Debug(msg string, args ...any) {}
func (l *NullLogger) Info(msg string, args ...any)  {}
func (l *NullLogger) Warn(msg string, args ...any)  {}
func (l *NullLogger) Error(msg string, args ...any) {}

func (l *NullLogger) WithField(key string, value interface{}) Logger { return l }

func (l *NullLogger) WithFields(fields map[string]interface{}) Logger { return l }

func (l *NullLogger) StartOperation(name string) OperationLogger { return &nullOperation{} }

type nullOperation struct{}

func (o *nullOperation) Update(msg string, args ...any)   {}
func (o *nullOperation) Complete(msg string, args ...any) {}
func (o *nullOperation) Fail(msg string, args ...any)     {}
