package log

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/YuminosukeSato/mindscope/pkg/errors"
)

// SetupLogger configures the global zerolog logger and the default provider.
// format is "json" or "console". Warnings raised through errors.Warn are
// routed to the same logger.
func SetupLogger(loglevel, format string) error {
	return SetupLoggerTo(os.Stdout, loglevel, format)
}

// SetupLoggerTo is SetupLogger with an explicit destination.
func SetupLoggerTo(w io.Writer, loglevel, format string) error {
	level, err := ToLogLevel(loglevel)
	if err != nil {
		return err
	}

	var out io.Writer = w
	switch strings.ToLower(format) {
	case "", "json":
	case "console", "text":
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	default:
		return errors.NewValidationError("log.format", "must be json or console", format)
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	zl := zerolog.New(out).Level(toZerologLevel(level)).With().Timestamp().Logger()
	zlog.Logger = zl
	SetProvider(NewZerologProvider(zl))

	warnLogger := GetLoggerWithName("warnings")
	errors.SetWarningHandler(func(w error) {
		warnLogger.Warn(w.Error(), ErrorTypeKey, warningType(w))
	})
	return nil
}

// ToLogLevel parses a textual log level.
func ToLogLevel(level string) (Level, error) {
	switch strings.ToLower(level) {
	case "info":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, errors.NewValidationError("log.level", "must be one of debug, info, warn, error", level)
	}
}

func toZerologLevel(l Level) zerolog.Level {
	switch {
	case l <= LevelDebug:
		return zerolog.DebugLevel
	case l <= LevelInfo:
		return zerolog.InfoLevel
	case l <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

func warningType(w error) string {
	switch w.(type) {
	case *errors.ConvergenceWarning:
		return "ConvergenceWarning"
	case *errors.UndefinedMetricWarning:
		return "UndefinedMetricWarning"
	case *errors.DataConversionWarning:
		return "DataConversionWarning"
	default:
		return "Warning"
	}
}

// ErrAttrKey is the field name under which error values are logged.
const ErrAttrKey = "error"
