package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   DEBUG,
		"INFO":    INFO,
		"":        INFO,
		"warning": WARN,
		" Error ": ERROR,
		"fatal":   FATAL,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: WARN, Output: &buf})

	l.Infof("hidden %d", 1)
	l.Warnf("shown %d", 2)
	l.Errorf("also shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown 2")
	assert.Contains(t, out, "WARN")
	assert.Contains(t, out, "ERROR")

	l.SetLevel(DEBUG)
	assert.Equal(t, DEBUG, l.Level())
	l.Debugf("now visible")
	assert.Contains(t, buf.String(), "now visible")
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: INFO, Format: FormatJSON, Output: &buf})
	l.Infow("search finished", "results", 3)

	line := strings.TrimSpace(buf.String())
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &rec))
	assert.Equal(t, "search finished", rec["msg"])
	assert.Equal(t, "info", rec["level"])
	assert.EqualValues(t, 3, rec["results"])
}

func TestSetOutputRebuilds(t *testing.T) {
	var first, second bytes.Buffer
	l := New(Config{Level: INFO, Output: &first})
	l.Infof("one")
	l.SetOutput(&second)
	l.Infof("two")

	assert.Contains(t, first.String(), "one")
	assert.NotContains(t, first.String(), "two")
	assert.Contains(t, second.String(), "two")
}

func TestNoColourWhenDisabled(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: INFO, Output: &buf, Colorize: false})
	l.Infof("plain")
	assert.NotContains(t, buf.String(), "\x1b[")

	l.SetColorize(true)
	l.Infof("coloured")
	assert.Contains(t, buf.String(), "\x1b[")
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: INFO, Output: &buf})
	ctx := ContextWithLogger(context.Background(), l)
	assert.Same(t, l, FromContext(ctx))
	assert.Same(t, GetLogger(), FromContext(context.Background()))
}
