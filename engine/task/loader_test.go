package task

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskgate/taskgate/engine/content"
)

const validTaskJSON = `{
	"version": "1",
	"id": "%s",
	"moduleId": "%s",
	"metadata": {"title": "T"},
	"placement": {"pageSlug": "p", "anchorId": "a"},
	"ui": {"component": "Card"},
	"inputs": [],
	"prompt": {"segments": [{"role": "user", "template": "hi"}]}
}`

const validTaskYAML = `version: "1"
id: %s
moduleId: %s
metadata:
  title: T
placement:
  pageSlug: p
  anchorId: a
ui:
  component: Card
inputs: []
prompt:
  segments:
    - role: user
      template: hi
`

func newTestLoader(t *testing.T) (*Loader, string) {
	t.Helper()
	root := t.TempDir()
	repo, err := content.NewRepository(root)
	require.NoError(t, err)
	return NewLoader(repo), root
}

func writeTask(t *testing.T, root, moduleID, name, body string) {
	t.Helper()
	dir := filepath.Join(root, moduleID, "ai-tasks")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestLoaderLoad(t *testing.T) {
	t.Run("Should load a JSON definition by id", func(t *testing.T) {
		loader, root := newTestLoader(t)
		writeTask(t, root, "CS01", "explainer.json", fmt.Sprintf(validTaskJSON, "explainer", "CS01"))
		def, err := loader.Load(t.Context(), "CS01", "explainer")
		require.NoError(t, err)
		assert.Equal(t, "explainer", def.ID)
	})
	t.Run("Should load a YAML definition by id", func(t *testing.T) {
		loader, root := newTestLoader(t)
		writeTask(t, root, "CS01", "explainer.yaml", fmt.Sprintf(validTaskYAML, "explainer", "CS01"))
		def, err := loader.Load(t.Context(), "CS01", "explainer")
		require.NoError(t, err)
		assert.Equal(t, "explainer", def.ID)
	})
	t.Run("Should return NotFoundError for a missing module", func(t *testing.T) {
		loader, _ := newTestLoader(t)
		_, err := loader.Load(t.Context(), "CS99", "anything")
		var nfe *NotFoundError
		require.ErrorAs(t, err, &nfe)
		assert.Equal(t, "CS99", nfe.ModuleID)
	})
	t.Run("Should return NotFoundError when no definition matches", func(t *testing.T) {
		loader, root := newTestLoader(t)
		writeTask(t, root, "CS01", "other.json", fmt.Sprintf(validTaskJSON, "other", "CS01"))
		_, err := loader.Load(t.Context(), "CS01", "explainer")
		var nfe *NotFoundError
		require.ErrorAs(t, err, &nfe)
	})
	t.Run("Should surface validation errors from any scanned file", func(t *testing.T) {
		loader, root := newTestLoader(t)
		writeTask(t, root, "CS01", "broken.json", `{"id": "broken"}`)
		_, err := loader.Load(t.Context(), "CS01", "explainer")
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.NotEmpty(t, verr.Violations)
	})
	t.Run("Should reject moduleId that does not match the folder", func(t *testing.T) {
		loader, root := newTestLoader(t)
		writeTask(t, root, "CS01", "explainer.json", fmt.Sprintf(validTaskJSON, "explainer", "CS02"))
		_, err := loader.Load(t.Context(), "CS01", "explainer")
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Violations, "`moduleId` must match the parent module (CS01).")
	})
	t.Run("Should fail on malformed JSON", func(t *testing.T) {
		loader, root := newTestLoader(t)
		writeTask(t, root, "CS01", "bad.json", "{not json")
		_, err := loader.Load(t.Context(), "CS01", "explainer")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parsing task definition JSON")
	})
	t.Run("Should ignore non-definition files", func(t *testing.T) {
		loader, root := newTestLoader(t)
		writeTask(t, root, "CS01", "README.md", "# notes")
		writeTask(t, root, "CS01", "explainer.json", fmt.Sprintf(validTaskJSON, "explainer", "CS01"))
		def, err := loader.Load(t.Context(), "CS01", "explainer")
		require.NoError(t, err)
		assert.Equal(t, "explainer", def.ID)
	})
}
