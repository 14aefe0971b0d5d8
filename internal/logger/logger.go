// Package logger provides structured logging for the backup engine,
// backed by logrus with a clean human-readable formatter and a JSON mode.
package logger

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var bufferPool = sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}

// Logger is the logging interface used throughout the engine.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger

	// StartOperation returns a logger that stamps elapsed time onto
	// update/complete/fail messages for a long-running operation.
	StartOperation(name string) OperationLogger
}

// OperationLogger tracks timing for a single named operation.
type OperationLogger interface {
	Update(msg string, args ...any)
	Complete(msg string, args ...any)
	Fail(msg string, args ...any)
}

type logger struct {
	logrus *logrus.Logger
	fields logrus.Fields
}

type operationLogger struct {
	name      string
	startTime time.Time
	parent    *logger
}

// New creates a logger at the given level ("debug", "info", "warn", "error")
// and format ("text" or "json").
func New(level, format string) Logger {
	var logLevel logrus.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = logrus.DebugLevel
	case "warn", "warning":
		logLevel = logrus.WarnLevel
	case "error":
		logLevel = logrus.ErrorLevel
	default:
		logLevel = logrus.InfoLevel
	}

	l := logrus.New()
	l.SetLevel(logLevel)
	l.SetOutput(os.Stdout)

	switch strings.ToLower(format) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&CleanFormatter{})
	}

	return &logger{logrus: l}
}

// NewSilent creates a logger that discards all output.
func NewSilent() Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetFormatter(&CleanFormatter{})
	return &logger{logrus: l}
}

func (l *logger) Debug(msg string, args ...any) { l.log(logrus.DebugLevel, msg, args...) }
func (l *logger) Info(msg string, args ...any)  { l.log(logrus.InfoLevel, msg, args...) }
func (l *logger) Warn(msg string, args ...any)  { l.log(logrus.WarnLevel, msg, args...) }
func (l *logger) Error(msg string, args ...any) { l.log(logrus.ErrorLevel, msg, args...) }

func (l *logger) WithField(key string, value interface{}) Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

func (l *logger) WithFields(fields map[string]interface{}) Logger {
	merged := make(logrus.Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &logger{logrus: l.logrus, fields: merged}
}

func (l *logger) StartOperation(name string) OperationLogger {
	return &operationLogger{
		name:      name,
		startTime: time.Now(),
		parent:    l,
	}
}

func (ol *operationLogger) Update(msg string, args ...any) {
	ol.parent.Info(fmt.Sprintf("[%s] %s", ol.name, msg),
		append(args, "elapsed", time.Since(ol.startTime).String())...)
}

func (ol *operationLogger) Complete(msg string, args ...any) {
	ol.parent.Info(fmt.Sprintf("[%s] COMPLETED: %s", ol.name, msg),
		append(args, "duration", formatDuration(time.Since(ol.startTime)))...)
}

func (ol *operationLogger) Fail(msg string, args ...any) {
	ol.parent.Error(fmt.Sprintf("[%s] FAILED: %s", ol.name, msg),
		append(args, "duration", formatDuration(time.Since(ol.startTime)))...)
}

func (l *logger) log(level logrus.Level, msg string, args ...any) {
	if l == nil || l.logrus == nil {
		return
	}
	if !l.logrus.IsLevelEnabled(level) {
		return
	}

	fields := fieldsFromArgs(args...)
	entry := logrus.NewEntry(l.logrus)
	if len(l.fields) > 0 {
		entry = entry.WithFields(l.fields)
	}
	if fields != nil {
		entry = entry.WithFields(fields)
	}

	switch level {
	case logrus.DebugLevel:
		entry.Debug(msg)
	case logrus.WarnLevel:
		entry.Warn(msg)
	case logrus.ErrorLevel:
		entry.Error(msg)
	default:
		entry.Info(msg)
	}
}

// fieldsFromArgs converts variadic key/value pairs into logrus fields.
func fieldsFromArgs(args ...any) logrus.Fields {
	if len(args) == 0 {
		return nil
	}

	fields := make(logrus.Fields, len(args)/2+1)
	for i := 0; i < len(args); {
		if i+1 < len(args) {
			if key, ok := args[i].(string); ok {
				fields[key] = args[i+1]
				i += 2
				continue
			}
		}
		fields[fmt.Sprintf("arg%d", i)] = args[i]
		i++
	}
	return fields
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm %ds", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}

// CleanFormatter renders entries as "LEVEL [timestamp] message key=value".
type CleanFormatter struct {
	levelStrings     map[logrus.Level]string
	levelStringsOnce sync.Once
}

func (f *CleanFormatter) getLevelStrings() map[logrus.Level]string {
	f.levelStringsOnce.Do(func() {
		f.levelStrings = map[logrus.Level]string{
			logrus.DebugLevel: DebugColor.Sprint("DEBUG"),
			logrus.InfoLevel:  SuccessColor.Sprint("INFO "),
			logrus.WarnLevel:  WarnColor.Sprint("WARN "),
			logrus.ErrorLevel: ErrorColor.Sprint("ERROR"),
			logrus.FatalLevel: ErrorColor.Sprint("FATAL"),
			logrus.PanicLevel: ErrorColor.Sprint("PANIC"),
			logrus.TraceLevel: DebugColor.Sprint("TRACE"),
		}
	})
	return f.levelStrings
}

// Format implements logrus.Formatter.
func (f *CleanFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	levelText, ok := f.getLevelStrings()[entry.Level]
	if !ok {
		levelText = f.getLevelStrings()[logrus.InfoLevel]
	}

	buf.WriteString(levelText)
	buf.WriteString(" [")
	buf.WriteString(entry.Time.Format("2006-01-02T15:04:05"))
	buf.WriteString("] ")
	buf.WriteString(entry.Message)

	if len(entry.Data) > 0 {
		keys := make([]string, 0, len(entry.Data))
		for k := range entry.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			buf.WriteByte(' ')
			buf.WriteString(DimColor.Sprintf("%s=%v", k, entry.Data[k]))
		}
	}
	buf.WriteByte('\n')

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}
