package logger

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	log     *logrus.Logger
	logFile *os.File
	once    sync.Once
)

// Init sets up a stderr logger at the level named by LOG_LEVEL (default info).
func Init() {
	once.Do(func() {
		log = newLogger(os.Stderr, os.Getenv("LOG_LEVEL"))
	})
}

// InitLogger routes output to stderr and, when filename is set, to that file too.
func InitLogger(filename string, level string) error {
	var out io.Writer = os.Stderr
	if filename != "" {
		f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return err
		}
		Close()
		logFile = f
		out = io.MultiWriter(os.Stderr, f)
	}

	once.Do(func() {})
	log = newLogger(out, level)
	return nil
}

func newLogger(out io.Writer, level string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return l
}

// GetLogger returns the shared logger, initializing it on first use.
func GetLogger() *logrus.Logger {
	if log == nil {
		Init()
	}
	return log
}

// SetOutput redirects the shared logger, mostly useful in tests.
func SetOutput(w io.Writer) {
	GetLogger().SetOutput(w)
}

func Close() {
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

// WithFields returns an entry carrying structured context.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return GetLogger().WithFields(fields)
}

func Info(args ...interface{}) {
	GetLogger().Info(args...)
}

func Infof(format string, v ...interface{}) {
	GetLogger().Infof(format, v...)
}

func Debugf(format string, v ...interface{}) {
	GetLogger().Debugf(format, v...)
}

func Error(args ...interface{}) {
	GetLogger().Error(args...)
}

func Errorf(format string, v ...interface{}) {
	GetLogger().Errorf(format, v...)
}

func Warn(args ...interface{}) {
	GetLogger().Warn(args...)
}

func Warnf(format string, v ...interface{}) {
	GetLogger().Warnf(format, v...)
}
