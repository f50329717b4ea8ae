package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapturingLoggerKeepsMessagesInOrder(t *testing.T) {
	var l CapturingLogger
	l.Printf("first %d", 1)
	l.Printf("second %s", "two")

	out := l.Output()
	require.Len(t, out, 2)
	assert.Equal(t, "first 1", out[0].Message)
	assert.Equal(t, "second two", out[1].Message)
	assert.False(t, out[1].Time.Before(out[0].Time))
}

func TestCapturedOutputDump(t *testing.T) {
	var l CapturingLogger
	l.Printf("hello")

	var buf bytes.Buffer
	l.Output().Dump(&buf, "  DEBUG ")

	line := buf.String()
	assert.True(t, strings.HasPrefix(line, "  DEBUG ["), line)
	assert.True(t, strings.HasSuffix(line, "] hello\n"), line)
}

func TestLoggerWithPrefix(t *testing.T) {
	var l CapturingLogger
	LoggerWithPrefix(&l, "[grid] ").Printf("started on %d", 4444)

	out := l.Output()
	require.Len(t, out, 1)
	assert.Equal(t, "[grid] started on 4444", out[0].Message)
}

func TestLoggerWithPrefixNilBase(t *testing.T) {
	assert.NotPanics(t, func() {
		LoggerWithPrefix(nil, "x").Printf("ignored")
	})
}

func TestConsoleLoggerWritesToWriter(t *testing.T) {
	var buf bytes.Buffer
	NewConsoleLogger(&buf, "testenv: ").Printf("value=%s", "abc")
	assert.Contains(t, buf.String(), "testenv: ")
	assert.Contains(t, buf.String(), "value=abc")
}
