// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package process

import (
	"os"
	"runtime"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logFlags = pflag.NewFlagSet("log", pflag.ContinueOnError)

	logLevel    = logFlags.String("log.level", "info", "the minimum log level to log")
	logDev      = logFlags.Bool("log.development", false, "if true, set logging to development mode")
	logCaller   = logFlags.Bool("log.caller", false, "if true, log function filename and line number")
	logStack    = logFlags.Bool("log.stack", false, "if true, log stack traces")
	logEncoding = logFlags.String("log.encoding", "console", "configures log encoding. can either be 'console' or 'json'")
	logOutput   = logFlags.String("log.output", "stderr", "can be stdout, stderr, or a filename")
)

// NewLogger creates new logger configured by the process flags.
func NewLogger() (*zap.Logger, error) {
	return NewLoggerWithOutputPaths(*logOutput)
}

// NewLoggerWithOutputPaths is the same as NewLogger, but overrides the log output paths.
func NewLoggerWithOutputPaths(outputPaths ...string) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(*logLevel)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	levelEncoder := zapcore.CapitalColorLevelEncoder
	if runtime.GOOS == "windows" || *logEncoding == "json" {
		levelEncoder = zapcore.CapitalLevelEncoder
	}

	timeKey := "T"
	if os.Getenv("DEPOSITCORE_LOG_NOTIME") != "" {
		timeKey = ""
	}

	return zap.Config{
		Level:             level,
		Development:       *logDev,
		DisableCaller:     !*logCaller,
		DisableStacktrace: !*logStack,
		Encoding:          *logEncoding,
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        timeKey,
			LevelKey:       "L",
			NameKey:        "N",
			CallerKey:      "C",
			MessageKey:     "M",
			StacktraceKey:  "S",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    levelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      outputPaths,
		ErrorOutputPaths: outputPaths,
	}.Build()
}
