package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext(t *testing.T) {
	t.Run("Should return attached logger", func(t *testing.T) {
		expected := NewForTests()
		ctx := ContextWithLogger(t.Context(), expected)
		assert.Equal(t, expected, FromContext(ctx))
	})
	t.Run("Should return default logger when none attached", func(t *testing.T) {
		log := FromContext(t.Context())
		require.NotNil(t, log)
	})
}

func TestNewLogger(t *testing.T) {
	t.Run("Should respect configured level", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewLogger(&Config{Level: WarnLevel, Output: &buf})
		log.Info("hidden")
		log.Warn("visible")
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "visible")
	})
	t.Run("Should carry With fields", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewLogger(&Config{Level: InfoLevel, Output: &buf})
		log.With("request_id", "abc").Info("fielded")
		assert.Contains(t, buf.String(), "request_id")
		assert.Contains(t, buf.String(), "abc")
	})
}
