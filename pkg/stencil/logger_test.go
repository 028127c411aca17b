package stencil

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, LogWarn)

	l.Info("hidden %d", 1)
	l.Warn("visible %d", 2)
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible 2")
	assert.Contains(t, out, "level=WARN")
	assert.False(t, l.IsDebugMode())

	l.SetLevel(LogDebug)
	assert.True(t, l.IsDebugMode())
	l.Debug("now shown")
	assert.Contains(t, buf.String(), "now shown")
}

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, LogInfo).WithField("run_id", "abc").WithFields(Fields{"shape_id": 4})

	l.Info("processed")
	out := buf.String()
	assert.Contains(t, out, "run_id=abc")
	assert.Contains(t, out, "shape_id=4")
	assert.Contains(t, out, `msg=processed`)
}

func TestDerivedLoggerSharesLevel(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLogger(&buf, LogError)
	child := parent.WithField("k", "v")

	child.Info("quiet")
	assert.Empty(t, buf.String())

	parent.SetLevel(LogInfo)
	child.Info("loud")
	assert.Contains(t, buf.String(), "loud")
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Error("nothing happens")
	assert.False(t, l.IsDebugMode())
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, LogDebug, parseLogLevel("debug"))
	assert.Equal(t, LogOff, parseLogLevel("off"))
	assert.Equal(t, LogInfo, parseLogLevel("verbose"))
	assert.Equal(t, "WARN", LogWarn.String())
}
