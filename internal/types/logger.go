package types

import "github.com/sirupsen/logrus"

// NewLogger returns the logrus-backed Logger used throughout the pipeline.
func NewLogger(debug bool) Logger {
	l := logrus.New()
	if debug {
		l.SetLevel(logrus.DebugLevel)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}
	return &logrusLogger{l}
}

type logrusLogger struct {
	*logrus.Logger
}
