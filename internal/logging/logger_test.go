package logging

import (
	"bytes"
	"errors"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(level Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf)
	logger.SetOutput(log.New(&buf, "", 0))
	logger.SetLevel(level)
	return logger, &buf
}

func TestLoggerLevels(t *testing.T) {
	tests := []struct {
		name      string
		minLevel  Level
		logLevel  Level
		shouldLog bool
	}{
		{"debug allowed at debug", LevelDebug, LevelDebug, true},
		{"info allowed at debug", LevelDebug, LevelInfo, true},
		{"debug blocked at info", LevelInfo, LevelDebug, false},
		{"info blocked at warn", LevelWarn, LevelInfo, false},
		{"warn allowed at warn", LevelWarn, LevelWarn, true},
		{"error allowed at warn", LevelWarn, LevelError, true},
		{"warn blocked at error", LevelError, LevelWarn, false},
		{"error allowed at error", LevelError, LevelError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := newBufferLogger(tt.minLevel)

			switch tt.logLevel {
			case LevelDebug:
				logger.Debug("stage started")
			case LevelInfo:
				logger.Info("stage started")
			case LevelWarn:
				logger.Warn("stage started")
			case LevelError:
				logger.Error("stage started")
			}

			if tt.shouldLog {
				assert.Contains(t, buf.String(), "stage started")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestLoggerFieldsAreSorted(t *testing.T) {
	logger, buf := newBufferLogger(LevelDebug)

	logger.WithComponent("pipeline").Info("stage done", "stage", "codegen", "index", 4, "exit", 0)

	assert.Equal(t, "INFO: stage done | component=pipeline exit=0 index=4 stage=codegen\n", buf.String())
}

func TestLoggerWithDoesNotMutateParent(t *testing.T) {
	logger, buf := newBufferLogger(LevelDebug)

	child := logger.With("session", "abc")
	child.Info("from child")
	logger.Info("from parent")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	assert.Contains(t, string(lines[0]), "session=abc")
	assert.NotContains(t, string(lines[1]), "session=")
}

func TestLoggerQuotesValues(t *testing.T) {
	logger, buf := newBufferLogger(LevelDebug)

	logger.Warn("session dropped", "err", errors.New("read frame: short frame"), "peer", "", "cmd", "add 7 x")

	out := buf.String()
	assert.Contains(t, out, `err="read frame: short frame"`)
	assert.Contains(t, out, `peer=""`)
	assert.Contains(t, out, `cmd="add 7 x"`)
}

func TestLoggerOddKeyVals(t *testing.T) {
	logger, buf := newBufferLogger(LevelDebug)

	logger.Info("odd", "key1", "value1", "dangling")

	assert.Contains(t, buf.String(), "key1=value1")
	assert.NotContains(t, buf.String(), "dangling")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"", LevelWarn, false},
		{" error ", LevelError, false},
		{"verbose", LevelWarn, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "LEVEL(9)", Level(9).String())
}

func TestDefaultLogger(t *testing.T) {
	var buf bytes.Buffer
	original := Default().Level()
	SetOutput(log.New(&buf, "", 0))
	SetLevel(LevelInfo)
	defer func() {
		SetLevel(original)
		SetOutput(log.New(os.Stderr, "", log.LstdFlags))
	}()

	Info("listening", "port", 1221)
	Debug("hidden")

	assert.Equal(t, "INFO: listening | port=1221\n", buf.String())
}
