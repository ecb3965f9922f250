package runtime

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogger(t *testing.T) {
	buffer, cleanup := CaptureLog(t, LogLevelInfo)
	defer cleanup()

	Debug("This should not appear")
	Info("This should appear")
	Warn("This warning should appear")
	Error("This error should appear")

	logs := buffer.String()
	assert.NotContains(t, logs, "This should not appear")
	AssertLogContains(t, logs, "[INFO] This should appear")
	AssertLogContains(t, logs, "[WARN] This warning should appear")
	AssertLogContains(t, logs, "[ERROR] This error should appear")
}

func TestQuietTest(t *testing.T) {
	defer QuietTest(t)()
	assert.Equal(t, LogLevelOff, GetLogLevel())

	buffer, cleanup := CaptureLog(t, GetLogLevel())
	defer cleanup()
	Error("Error message")
	assert.Empty(t, buffer.String())
}

func TestLogLevels(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
		hasError bool
	}{
		{"DEBUG", LogLevelDebug, false},
		{"debug", LogLevelDebug, false},
		{"INFO", LogLevelInfo, false},
		{"WARN", LogLevelWarn, false},
		{"WARNING", LogLevelWarn, false},
		{"ERROR", LogLevelError, false},
		{"OFF", LogLevelOff, false},
		{"NONE", LogLevelOff, false},
		{"INVALID", LogLevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := ParseLogLevel(tt.input)
			if tt.hasError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestVerboseTest(t *testing.T) {
	defer VerboseTest(t)()

	buffer, cleanup := CaptureLog(t, GetLogLevel())
	defer cleanup()

	Debug("Debug message in verbose mode")
	if testing.Verbose() {
		AssertLogContains(t, buffer.String(), "Debug message in verbose mode")
	}
}

func TestSinks(t *testing.T) {
	var out bytes.Buffer
	sink := WriterSink(&out)
	sink("", "1")
	sink("scores", `{"a":2}`)
	assert.Equal(t, "1\nscores: {\"a\":2}\n", out.String())

	buffer, cleanup := CaptureLog(t, LogLevelInfo)
	defer cleanup()
	LoggerSink(GlobalLogger())("ns", "hello")
	AssertLogContains(t, buffer.String(), "[INFO] ns: hello")
}
