package tplengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	ctx := map[string]any{
		"inputs": map[string]any{
			"valuation": "10M",
			"round":     map[string]any{"size": float64(2)},
		},
		"toggles": map[string]any{
			"persona": map[string]any{"label": "Founder"},
		},
		"flag":  true,
		"count": 42,
	}
	t.Run("Should substitute dotted paths", func(t *testing.T) {
		out := Render("valuation is {{ inputs.valuation }} for {{ toggles.persona.label }}", ctx)
		assert.Equal(t, "valuation is 10M for Founder", out)
	})
	t.Run("Should render missing paths as empty string", func(t *testing.T) {
		assert.Equal(t, "x  y", Render("x {{ toggles.missing.label }} y", ctx))
	})
	t.Run("Should render path through scalar as empty string", func(t *testing.T) {
		assert.Equal(t, "", Render("{{ inputs.valuation.deep }}", ctx))
	})
	t.Run("Should JSON-encode non-scalar values", func(t *testing.T) {
		assert.Equal(t, `{"size":2}`, Render("{{ inputs.round }}", ctx))
	})
	t.Run("Should format booleans and numbers naturally", func(t *testing.T) {
		assert.Equal(t, "true 42 2", Render("{{ flag }} {{ count }} {{ inputs.round.size }}", ctx))
	})
	t.Run("Should tolerate irregular whitespace", func(t *testing.T) {
		assert.Equal(t, "10M", Render("{{inputs.valuation   }}", ctx))
	})
	t.Run("Should leave text without placeholders untouched", func(t *testing.T) {
		assert.Equal(t, "plain text", Render("plain text", ctx))
	})
	t.Run("Should never raise on nil context", func(t *testing.T) {
		assert.Equal(t, "", Render("{{ anything.at.all }}", nil))
	})
}

func TestLookup(t *testing.T) {
	t.Run("Should return nested value", func(t *testing.T) {
		ctx := map[string]any{"a": map[string]any{"b": "c"}}
		assert.Equal(t, "c", Lookup(ctx, "a.b"))
	})
	t.Run("Should return nil for unknown key", func(t *testing.T) {
		assert.Nil(t, Lookup(map[string]any{}, "nope"))
	})
}

func TestHasPlaceholders(t *testing.T) {
	t.Run("Should detect placeholders", func(t *testing.T) {
		assert.True(t, HasPlaceholders("{{ a }}"))
		assert.False(t, HasPlaceholders("a"))
	})
}
