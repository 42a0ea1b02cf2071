// Package observability provides logging and telemetry for the pagehost CLI
// and gate service.
//
// Two logging surfaces exist: CLILogger for human-facing command output
// (bare console messages with optional structured fields) and NewLogger for
// the gate, which emits JSON in the STRUCTURED profile.
package observability

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// cliLevel gates CLILogger output. Adjusted by --verbose and --quiet.
var cliLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)

// CLILogger is the human-facing logger for command output. Messages print
// without timestamps or level prefixes so progress lines read cleanly;
// structured fields still append for machine consumption in verbose runs.
var CLILogger = newCLILogger()

func newCLILogger() *zap.Logger {
	encCfg := zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       zapcore.OmitKey,
		TimeKey:        zapcore.OmitKey,
		NameKey:        zapcore.OmitKey,
		CallerKey:      zapcore.OmitKey,
		StacktraceKey:  zapcore.OmitKey,
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeDuration: zapcore.StringDurationEncoder,
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		cliLevel,
	)
	return zap.New(core)
}

// InitCLILogger rebuilds the CLI logger under the given name. Verbose
// lowers the threshold to debug so progress details surface.
func InitCLILogger(name string, verbose bool) {
	if verbose {
		cliLevel.SetLevel(zapcore.DebugLevel)
	}
	CLILogger = newCLILogger().Named(name)
}

// SetCLILevel adjusts the CLILogger verbosity at runtime.
func SetCLILevel(level zapcore.Level) {
	cliLevel.SetLevel(level)
}

// NewLogger builds a logger for the gate service.
//
// Profile selects the encoding: "STRUCTURED" (default) emits JSON suitable
// for log aggregation, "CONSOLE" emits human-readable lines. Level accepts
// the usual zap names (debug, info, warn, error).
func NewLogger(level, profile string) (*zap.Logger, error) {
	parsed, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	switch strings.ToUpper(profile) {
	case "", "STRUCTURED":
		cfg = zap.NewProductionConfig()
	case "CONSOLE":
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown logging profile %q", profile)
	}
	cfg.Level = zap.NewAtomicLevelAt(parsed)

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
