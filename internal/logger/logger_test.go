package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStandardLogger_Prefixes(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "gymsniper ")

	l.Info("hello %s", "world")
	l.Warning("retry %d/%d", 2, 3)
	l.Error("boom")

	out := buf.String()
	assert.Contains(t, out, "[INFO] hello world")
	assert.Contains(t, out, "[WARNING] retry 2/3")
	assert.Contains(t, out, "[ERROR] boom")
	assert.Equal(t, 3, strings.Count(out, "gymsniper "))
	assert.NoError(t, l.Close())
}

func TestMockLogger_Records(t *testing.T) {
	m := NewMockLogger()
	m.Info("a %d", 1)
	m.Warning("b")
	m.Error("c %s", "x")

	assert.Equal(t, []string{"a 1"}, m.InfoCalls)
	assert.Equal(t, []string{"b"}, m.Warnings())
	assert.Equal(t, []string{"c x"}, m.Errors())
	assert.NoError(t, m.Close())
	assert.True(t, m.CloseCalled)
}

func TestOrNop(t *testing.T) {
	assert.IsType(t, &NopLogger{}, OrNop(nil))
	m := NewMockLogger()
	assert.Same(t, m, OrNop(m))
}
