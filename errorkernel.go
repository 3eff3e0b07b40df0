package serve

import (
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

type logLevel string

const (
	logError   logLevel = "error"
	logInfo    logLevel = "info"
	logWarning logLevel = "warning"
	logDebug   logLevel = "debug"
	logNone    logLevel = "none"
)

// levelNone is above every level used, so nothing is written.
const levelNone = slog.LevelError + 4

// errorKernel is where all the logging is done. Errors and warnings are
// also counted in the metrics.
type errorKernel struct {
	logger  *slog.Logger
	level   slog.Level
	metrics *metrics
}

// newErrorKernel will prepare and return an *errorKernel writing to out,
// with the log level and timestamp settings from the configuration.
func newErrorKernel(c *Configuration, out io.Writer, m *metrics) *errorKernel {
	level := slogLevel(logLevel(c.LogLevel))

	opts := slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 && !c.LogConsoleTimestamps {
				return slog.Attr{}
			}
			return a
		},
	}

	e := errorKernel{
		logger:  slog.New(slog.NewTextHandler(out, &opts)),
		level:   level,
		metrics: m,
	}

	return &e
}

func slogLevel(l logLevel) slog.Level {
	switch l {
	case logError:
		return slog.LevelError
	case logWarning:
		return slog.LevelWarn
	case logInfo:
		return slog.LevelInfo
	case logDebug:
		return slog.LevelDebug
	default:
		return levelNone
	}
}

// debugEnabled is true when the debug messages will be written.
func (e *errorKernel) debugEnabled() bool {
	return e.level <= slog.LevelDebug
}

func (e *errorKernel) logError(msg string, args ...any) {
	e.metrics.promLogEntriesTotal.With(prometheus.Labels{"level": string(logError)}).Inc()
	e.logger.Error(msg, args...)
}

func (e *errorKernel) logWarn(msg string, args ...any) {
	e.metrics.promLogEntriesTotal.With(prometheus.Labels{"level": string(logWarning)}).Inc()
	e.logger.Warn(msg, args...)
}

func (e *errorKernel) logInfo(msg string, args ...any) {
	e.logger.Info(msg, args...)
}

func (e *errorKernel) logDebug(msg string, args ...any) {
	e.logger.Debug(msg, args...)
}
