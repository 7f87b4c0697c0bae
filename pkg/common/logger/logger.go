package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Log is usable before Init so packages can log from tests.
var Log = logrus.New()

func Init(service string) {
	Log = logrus.New()
	Log.SetOutput(os.Stdout)
	Log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})

	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	Log.SetLevel(logLevel)

	if service != "" {
		Log.AddHook(serviceHook{service: service})
	}
}

func WithField(key string, value interface{}) *logrus.Entry {
	return Log.WithField(key, value)
}

func WithFields(fields logrus.Fields) *logrus.Entry {
	return Log.WithFields(fields)
}

type serviceHook struct {
	service string
}

func (h serviceHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h serviceHook) Fire(entry *logrus.Entry) error {
	if _, ok := entry.Data["service"]; !ok {
		entry.Data["service"] = h.service
	}
	return nil
}
