package pbgatt

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

type Logger interface {
	Info(...interface{})
	Debug(...interface{})
	Error(...interface{})
	Warn(...interface{})

	Infof(string, ...interface{})
	Debugf(string, ...interface{})
	Errorf(string, ...interface{})
	Warnf(string, ...interface{})

	ChildLogger(tags map[string]interface{}) Logger
}

var logger Logger
var loggerMu sync.Mutex

// SetLogLevel sets the level of the default logger. The name is one of
// logrus' level names ("trace", "debug", "info", "warn", "error").
func SetLogLevel(name string) error {
	lvl, err := logrus.ParseLevel(name)
	if err != nil {
		return err
	}

	l := GetLogger()
	lg, ok := l.(*defaultLogger)
	if !ok {
		l.Warnf("non-default logger, can't set level %v", name)
		return nil
	}
	lg.Entry.Logger.SetLevel(lvl)
	return nil
}

func SetLogger(l Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	logger = l
}

func GetLogger() Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	if logger == nil {
		logger = buildDefaultLogger()
	}

	return logger
}

type defaultLogger struct {
	*logrus.Entry
}

func buildDefaultLogger() Logger {
	l := &logrus.Logger{
		Formatter: &logrus.TextFormatter{DisableTimestamp: true},
		Level:     logrus.InfoLevel,
		Out:       os.Stderr,
		Hooks:     make(logrus.LevelHooks),
	}

	return &defaultLogger{Entry: l.WithFields(map[string]interface{}{"pkg": "pbgatt"})}
}

func (d *defaultLogger) ChildLogger(ff map[string]interface{}) Logger {
	return &defaultLogger{d.Entry.WithFields(ff)}
}

// nopLogger discards everything; handy for tests and tools that print
// their own output.
type nopLogger struct{}

// NopLogger returns a Logger that discards all output.
func NopLogger() Logger { return nopLogger{} }

func (nopLogger) Info(...interface{})                         {}
func (nopLogger) Debug(...interface{})                        {}
func (nopLogger) Error(...interface{})                        {}
func (nopLogger) Warn(...interface{})                         {}
func (nopLogger) Infof(string, ...interface{})                {}
func (nopLogger) Debugf(string, ...interface{})               {}
func (nopLogger) Errorf(string, ...interface{})               {}
func (nopLogger) Warnf(string, ...interface{})                {}
func (n nopLogger) ChildLogger(map[string]interface{}) Logger { return n }
