package config

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultKeymap(t *testing.T) {
	km := DefaultKeymap()
	assert.Equal(t, "stepDown", km["j"])
	assert.Equal(t, "toggleSelect", km[" "])
	assert.Equal(t, []string{"Ctrl+R", "R"}, km.Keys("refresh"))
}

func TestKeymap_Merge(t *testing.T) {
	km := DefaultKeymap()
	err := km.Merge(strings.NewReader(`
bindings:
  n: stepDown
  d: ""
  "?": undo
unbind:
  - u
`))
	require.NoError(t, err)

	assert.Equal(t, "stepDown", km["n"])
	assert.Equal(t, "undo", km["?"])
	assert.NotContains(t, km, "d")
	assert.NotContains(t, km, "u")
	assert.Equal(t, "stepDown", km["j"])
}

func TestKeymap_MergeRejectsUnknownFields(t *testing.T) {
	km := DefaultKeymap()
	assert.Error(t, km.Merge(strings.NewReader("keys:\n  j: stepDown\n")))
	assert.NoError(t, km.Merge(strings.NewReader("")))
}

func TestKeymap_Validate(t *testing.T) {
	km := Keymap{"j": "stepDown", "x": "explode"}
	err := km.Validate([]string{"stepDown"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"x" -> "explode"`)

	assert.NoError(t, Keymap{"j": "stepDown"}.Validate([]string{"stepDown"}))
}

func TestLoadKeymap(t *testing.T) {
	km, err := LoadKeymap("")
	require.NoError(t, err)
	assert.Equal(t, DefaultKeymap(), km)

	dir := t.TempDir()
	_, err = LoadKeymap(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	custom := Keymap{"n": "stepDown"}
	path := filepath.Join(dir, "keys.yaml")
	require.NoError(t, custom.Save(path))

	km, err = LoadKeymap(path)
	require.NoError(t, err)
	assert.Equal(t, "stepDown", km["n"])
	assert.Equal(t, "stepUp", km["k"])
}
