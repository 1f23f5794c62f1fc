// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the zap logger used by the wrapper and the CLI.
// Stdout belongs to the envelope, so logs go to stderr or a rotating file.
package logging

import (
	"io"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileName is the log file created under Options.Path.
const FileName = "skillkit.log"

// Options selects level, destination and encoding.
type Options struct {
	Level string
	// Path is a directory; when set, logs rotate under it via lumberjack.
	Path string
	// Stderr forces stderr even when Path is set.
	Stderr bool
	Debug  bool
	// Writer overrides the destination entirely. Used by tests.
	Writer io.Writer
}

// New builds a logger from opts. An unknown level is an error.
func New(opts Options) (*zap.Logger, error) {
	level := zapcore.WarnLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(opts.Level))); err != nil {
			return nil, err
		}
	}
	if opts.Debug {
		level = zapcore.DebugLevel
	}

	writer, err := sink(opts)
	if err != nil {
		return nil, err
	}

	core := zapcore.NewCore(encoder(opts.Debug), writer, level)
	return zap.New(core, zap.AddCaller()), nil
}

// Nop returns a logger that discards everything.
func Nop() *zap.Logger { return zap.NewNop() }

func sink(opts Options) (zapcore.WriteSyncer, error) {
	switch {
	case opts.Writer != nil:
		return zapcore.AddSync(opts.Writer), nil
	case opts.Path != "" && !opts.Stderr:
		return zapcore.AddSync(&lumberjack.Logger{
			Filename:   filepath.Join(strings.TrimRight(opts.Path, "/"), FileName),
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}), nil
	default:
		w, _, err := zap.Open("stderr")
		return w, err
	}
}

func encoder(debug bool) zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	if debug {
		cfg = zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		cfg.EncodeCaller = zapcore.FullCallerEncoder
	}
	return zapcore.NewConsoleEncoder(cfg)
}
