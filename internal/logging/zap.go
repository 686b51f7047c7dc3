package logging

import (
	"fmt"
	"strings"

	"github.com/go-logr/logr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	ctrlzap "sigs.k8s.io/controller-runtime/pkg/log/zap"
)

// Supported values for --log-format.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// ApplyFormat sets the encoder of opts for the given format.
// An empty format leaves the encoder chosen by the zap flags untouched.
func ApplyFormat(opts *ctrlzap.Options, format string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "":
		return nil
	case FormatJSON:
		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "time"
		encoderConfig.LevelKey = "level"
		encoderConfig.MessageKey = "msg"
		encoderConfig.CallerKey = "caller"
		encoderConfig.StacktraceKey = "stacktrace"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
		opts.Encoder = zapcore.NewJSONEncoder(encoderConfig)
	case FormatConsole:
		encoderConfig := zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		opts.Encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		return fmt.Errorf("unsupported log format %q (expected %q or %q)", format, FormatJSON, FormatConsole)
	}
	return nil
}

// NewLogger builds a controller-runtime compatible zap logger.
func NewLogger(format string, development bool) (logr.Logger, error) {
	opts := ctrlzap.Options{Development: development}
	if err := ApplyFormat(&opts, format); err != nil {
		return logr.Discard(), err
	}
	return ctrlzap.New(ctrlzap.UseFlagOptions(&opts)), nil
}
