// Copyright 2024 The gokern Authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger provides the kernel log: a process-wide slog logger with
// TRACE..ERROR severities, text or JSON output, and optional file rotation.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/gokern/gokern/cfg"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LevelTrace sits below slog.LevelDebug, mirroring the TRACE severity.
const LevelTrace = slog.Level(-8)

// LevelOff discards everything.
const LevelOff = slog.Level(127)

var (
	mu            sync.Mutex
	programLevel  = new(slog.LevelVar)
	defaultLogger = slog.New(newHandler(os.Stderr, "text", programLevel))
)

func severityLevel(s cfg.LogSeverity) slog.Level {
	switch s {
	case cfg.TraceSeverity:
		return LevelTrace
	case cfg.DebugSeverity:
		return slog.LevelDebug
	case cfg.InfoSeverity:
		return slog.LevelInfo
	case cfg.WarningSeverity:
		return slog.LevelWarn
	case cfg.ErrorSeverity:
		return slog.LevelError
	case cfg.OffSeverity:
		return LevelOff
	default:
		return slog.LevelInfo
	}
}

// severityName maps levels back to the names the log uses, covering the
// custom TRACE level that slog would otherwise print as "DEBUG-4".
func severityName(l slog.Level) string {
	switch {
	case l < slog.LevelDebug:
		return "TRACE"
	case l < slog.LevelInfo:
		return "DEBUG"
	case l < slog.LevelWarn:
		return "INFO"
	case l < slog.LevelError:
		return "WARNING"
	default:
		return "ERROR"
	}
}

func newHandler(w io.Writer, format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				a.Value = slog.StringValue(severityName(a.Value.Any().(slog.Level)))
			}
			return a
		},
	}

	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// Setup reconfigures the process-wide logger. It may be called again to
// change settings.
func Setup(c cfg.LoggingConfig) error {
	var w io.Writer = os.Stderr
	if c.FilePath != "" {
		w = &lumberjack.Logger{
			Filename:   c.FilePath,
			MaxSize:    c.MaxFileSizeMb,
			MaxBackups: c.BackupFileCount,
		}
	}

	if c.Format != "" && c.Format != "text" && c.Format != "json" {
		return fmt.Errorf("unsupported log format: %q", c.Format)
	}

	mu.Lock()
	defer mu.Unlock()

	programLevel.Set(severityLevel(c.Severity))
	defaultLogger = slog.New(newHandler(w, c.Format, programLevel))
	return nil
}

// Logger returns the current process-wide logger.
func Logger() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()

	return defaultLogger
}

// Tracef logs at TRACE severity.
func Tracef(format string, args ...interface{}) {
	Logger().Log(nil, LevelTrace, fmt.Sprintf(format, args...))
}

// Debugf logs at DEBUG severity.
func Debugf(format string, args ...interface{}) {
	Logger().Debug(fmt.Sprintf(format, args...))
}

// Infof logs at INFO severity.
func Infof(format string, args ...interface{}) {
	Logger().Info(fmt.Sprintf(format, args...))
}

// Warnf logs at WARNING severity.
func Warnf(format string, args ...interface{}) {
	Logger().Warn(fmt.Sprintf(format, args...))
}

// Errorf logs at ERROR severity.
func Errorf(format string, args ...interface{}) {
	Logger().Error(fmt.Sprintf(format, args...))
}
