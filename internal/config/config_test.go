package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the home directory at a temp dir so no real config leaks in
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfig(t *testing.T) {
	home := isolate(t)
	cfg := DefaultConfig()

	assert.Equal(t, BackendLocal, cfg.Backend)
	assert.Equal(t, filepath.Join(home, ".config", "tagmail", "tagmail.db"), cfg.Database)
	assert.Equal(t, "tag:todo", cfg.TodoQuery)
	assert.Equal(t, 50, cfg.MaxResults)
	assert.Equal(t, "focused", cfg.DefaultMode)
	assert.Equal(t, 5*time.Minute, cfg.MessageCacheTTL)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_NoFile(t *testing.T) {
	isolate(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_ExplicitMissingFile(t *testing.T) {
	home := isolate(t)

	_, err := LoadConfig(filepath.Join(home, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config file")
}

func TestLoadConfig_File(t *testing.T) {
	home := isolate(t)
	path := writeFile(t, home, "config.yaml", `
backend: local
database: ~/mail/tagmail.db
default_query: tag:work
max_results: 20
default_mode: flat
message_cache_ttl: 90s
logging:
  level: debug
colors:
  unread: red
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "mail", "tagmail.db"), cfg.Database)
	assert.Equal(t, "tag:work", cfg.DefaultQuery)
	assert.Equal(t, 20, cfg.MaxResults)
	assert.Equal(t, "flat", cfg.DefaultMode)
	assert.Equal(t, 90*time.Second, cfg.MessageCacheTTL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, Color("red"), cfg.Colors.Unread)
	assert.Equal(t, DefaultColors().Group, cfg.Colors.Group)
	assert.Equal(t, "tag:todo", cfg.TodoQuery)
}

func TestLoadConfig_DefaultLocation(t *testing.T) {
	home := isolate(t)
	dir := filepath.Join(home, ".config", "tagmail")
	require.NoError(t, os.MkdirAll(dir, 0o700))
	writeFile(t, dir, "config.yaml", "max_results: 7\n")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MaxResults)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	home := isolate(t)
	path := writeFile(t, home, "config.yaml", "max_results: 20\n")
	t.Setenv("TAGMAIL_MAX_RESULTS", "30")
	t.Setenv("TAGMAIL_LOGGING_LEVEL", "warn")
	t.Setenv("TAGMAIL_MESSAGE_CACHE_TTL", "1m")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.MaxResults)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, time.Minute, cfg.MessageCacheTTL)
}

func TestLoadConfig_Invalid(t *testing.T) {
	home := isolate(t)
	tests := map[string]string{
		"unknown backend": "backend: imap\n",
		"unknown mode":    "default_mode: tree\n",
		"zero results":    "max_results: 0\n",
		"bad yaml":        "max_results: [\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeFile(t, home, "bad.yaml", content))
			assert.Error(t, err)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendGmail
	assert.NoError(t, cfg.Validate())

	cfg.Token = ""
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Database = " "
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.MessageCacheTTL = -time.Second
	assert.Error(t, cfg.Validate())
}

func TestConfig_IsTodoQuery(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.IsTodoQuery("tag:todo"))
	assert.True(t, cfg.IsTodoQuery(" tag:todo "))
	assert.False(t, cfg.IsTodoQuery("tag:inbox"))

	cfg.TodoQuery = ""
	assert.False(t, cfg.IsTodoQuery(""))
}

func TestColor(t *testing.T) {
	assert.Equal(t, tcell.ColorDefault, DefaultColor.Color())
	assert.Equal(t, tcell.ColorDefault, Color("").Color())
	assert.Equal(t, "-", DefaultColor.String())
	assert.Equal(t, "#ff5555", Color("#ff5555").String())
	assert.Equal(t, tcell.NewHexColor(0xff5555), Color("#ff5555").Color())
	assert.Equal(t, "#ff0000", Color("red").String())
}
