package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatLogLine(t *testing.T) {
	t.Run("key value pairs", func(t *testing.T) {
		line := formatLogLine("INF", "login attempt", []any{"identifier", "alice", "attempt", 2})
		assert.Equal(t, "[INF] AUTH login attempt identifier=alice attempt=2", line)
	})

	t.Run("no args", func(t *testing.T) {
		assert.Equal(t, "[ERR] AUTH boom", formatLogLine("ERR", "boom", nil))
	})

	t.Run("odd trailing arg", func(t *testing.T) {
		assert.Equal(t, "[WRN] AUTH odd dangling", formatLogLine("WRN", "odd", []any{"dangling"}))
	})
}
