package logger

import (
	"bytes"
	"log/slog"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func redirectLogsToBuffer(buf *bytes.Buffer, format, severity string) {
	defaultLoggerFactory.format = format
	defaultLoggerFactory.level = severity
	setLoggingLevel(severity, defaultProgramLevel)
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(buf, defaultProgramLevel, ""))
}

func TestSeverityFiltering(t *testing.T) {
	var buf bytes.Buffer
	redirectLogsToBuffer(&buf, "text", WARNING)

	Infof("should not appear")
	assert.Empty(t, buf.String())

	Warnf("should appear")
	assert.Regexp(t, regexp.MustCompile(`severity=WARNING`), buf.String())
}

func TestTraceBelowDebug(t *testing.T) {
	var buf bytes.Buffer
	redirectLogsToBuffer(&buf, "text", TRACE)

	Tracef("trace line")
	assert.Regexp(t, regexp.MustCompile(`severity=TRACE`), buf.String())
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	redirectLogsToBuffer(&buf, "json", DEBUG)

	Errorf("boom %d", 42)
	assert.Regexp(t, regexp.MustCompile(`"severity":"ERROR"`), buf.String())
	assert.Regexp(t, regexp.MustCompile(`boom 42`), buf.String())
}

func TestOffSuppressesEverything(t *testing.T) {
	var buf bytes.Buffer
	redirectLogsToBuffer(&buf, "text", OFF)

	Errorf("should not appear")
	assert.Empty(t, buf.String())
}

func TestSetLoggingLevel(t *testing.T) {
	SetLoggingLevel(DEBUG)
	assert.Equal(t, LevelDebug, defaultProgramLevel.Level())
	SetLoggingLevel(OFF)
	assert.Equal(t, LevelOff, defaultProgramLevel.Level())
}
