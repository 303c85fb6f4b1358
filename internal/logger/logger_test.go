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

package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/gokern/gokern/cfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type LoggerTest struct {
	suite.Suite

	buf   bytes.Buffer
	level *slog.LevelVar
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerTest))
}

func (t *LoggerTest) SetupTest() {
	t.buf.Reset()
	t.level = new(slog.LevelVar)
}

// newTestLogger builds a logger writing to the suite's buffer in the given
// format.
func (t *LoggerTest) newTestLogger(format string) *slog.Logger {
	return slog.New(newHandler(&t.buf, format, t.level))
}

func (t *LoggerTest) TestSeverityFiltering() {
	l := t.newTestLogger("text")
	t.level.Set(severityLevel(cfg.WarningSeverity))

	l.Info("quiet")
	assert.Empty(t.T(), t.buf.String())

	l.Warn("loud")
	assert.Contains(t.T(), t.buf.String(), "loud")
}

func (t *LoggerTest) TestTraceLevelName() {
	l := t.newTestLogger("text")
	t.level.Set(severityLevel(cfg.TraceSeverity))

	l.Log(nil, LevelTrace, "whisper")

	out := t.buf.String()
	assert.Contains(t.T(), out, "level=TRACE")
	assert.Contains(t.T(), out, "whisper")
}

func (t *LoggerTest) TestWarningLevelName() {
	l := t.newTestLogger("text")

	l.Warn("careful")
	assert.Contains(t.T(), t.buf.String(), "level=WARNING")
}

func (t *LoggerTest) TestJSONFormat() {
	l := t.newTestLogger("json")

	l.Info("structured")

	out := t.buf.String()
	assert.Contains(t.T(), out, `"level":"INFO"`)
	assert.Contains(t.T(), out, `"msg":"structured"`)
}

func (t *LoggerTest) TestOffDiscardsEverything() {
	l := t.newTestLogger("text")
	t.level.Set(severityLevel(cfg.OffSeverity))

	l.Error("even this")
	assert.Empty(t.T(), t.buf.String())
}

func (t *LoggerTest) TestSetupRejectsUnknownFormat() {
	err := Setup(cfg.LoggingConfig{Severity: cfg.InfoSeverity, Format: "xml"})
	require.Error(t.T(), err)
}

func (t *LoggerTest) TestSetupInstallsLogger() {
	err := Setup(cfg.LoggingConfig{Severity: cfg.InfoSeverity, Format: "text"})
	require.NoError(t.T(), err)
	assert.NotNil(t.T(), Logger())
}
