package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

// Init initializes the logging subsystem.
//
// The returned atomic level can be used to change verbosity at runtime.
func Init(cfg *Config) (*zap.SugaredLogger, zap.AtomicLevel, error) {
	encoding := cfg.Encoding
	if encoding == "" {
		encoding = "console"
	}
	if encoding != "console" && encoding != "json" {
		return nil, zap.AtomicLevel{}, fmt.Errorf("unsupported log encoding %q", encoding)
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	if encoding == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		if isTerminalOnly(outputs) {
			encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(cfg.Level),
		Development:      false,
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := config.Build()
	if err != nil {
		return nil, zap.AtomicLevel{}, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return logger.Sugar(), config.Level, nil
}

// isTerminalOnly reports whether every output is a standard stream attached
// to a terminal, so that colored levels do not end up in files.
func isTerminalOnly(outputs []string) bool {
	for _, out := range outputs {
		var fd uintptr
		switch out {
		case "stderr":
			fd = os.Stderr.Fd()
		case "stdout":
			fd = os.Stdout.Fd()
		default:
			return false
		}
		if !term.IsTerminal(int(fd)) {
			return false
		}
	}

	return true
}
