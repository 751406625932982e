package log

import (
	"os"

	charmlog "github.com/charmbracelet/log"
)

var logger = charmlog.NewWithOptions(os.Stderr, charmlog.Options{
	ReportTimestamp: true,
})

// SetDebug enables debug-level output.
func SetDebug(enabled bool) {
	if enabled {
		logger.SetLevel(charmlog.DebugLevel)
	} else {
		logger.SetLevel(charmlog.InfoLevel)
	}
}

func Debug(msg string, args ...any) { logger.Debug(msg, args...) }
func Info(msg string, args ...any)  { logger.Info(msg, args...) }
func Warn(msg string, args ...any)  { logger.Warn(msg, args...) }
func Error(msg string, args ...any) { logger.Error(msg, args...) }

func Debugf(format string, args ...any) { logger.Debugf(format, args...) }
func Infof(format string, args ...any)  { logger.Infof(format, args...) }
func Warnf(format string, args ...any)  { logger.Warnf(format, args...) }
func Errorf(format string, args ...any) { logger.Errorf(format, args...) }

func Fatalf(format string, args ...any) {
	logger.Errorf(format, args...)
	os.Exit(1)
}
