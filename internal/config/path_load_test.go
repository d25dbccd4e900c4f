package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolvePathPrecedence(t *testing.T) {
	explicit := "/tmp/custom.jsonc"
	resolved, err := ResolvePath(explicit)
	require.NoError(t, err)
	require.Equal(t, explicit, resolved)

	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	resolved, err = ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(xdg, "shadow", "config.jsonc"), resolved)

	t.Setenv("XDG_CONFIG_HOME", "")
	home := t.TempDir()
	t.Setenv("HOME", home)
	resolved, err = ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".config", "shadow", "config.jsonc"), resolved)
}

func TestExpandUser(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	require.Equal(t, home, ExpandUser("~"))
	require.Equal(t, filepath.Join(home, "Music", "shadow"), ExpandUser("~/Music/shadow"))
	require.Equal(t, "/srv/out", ExpandUser(" /srv/out "))
	require.Equal(t, "~other/x", ExpandUser("~other/x"))
}

func TestLoadMissingConfigUsesDefaultsWithWarning(t *testing.T) {
	t.Setenv(EnvironmentVar, "")
	path := filepath.Join(t.TempDir(), "missing.jsonc")

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, path, loaded.Path)
	require.False(t, loaded.Exists)
	require.Equal(t, Default(), loaded.Config)
	require.NotEmpty(t, loaded.Warnings)
	require.Contains(t, loaded.Warnings[0].Message, "not found")
}

func TestLoadExistingJSONCParsesAndValidates(t *testing.T) {
	t.Setenv(EnvironmentVar, "")
	path := filepath.Join(t.TempDir(), "config.jsonc")
	contents := `
{
  "audio": {
    "input": "default",
    "fallback": "default",
  },
  "output": {
    "copy_transcript": true
  }
}
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.True(t, loaded.Exists)
	require.Equal(t, path, loaded.Path)
	require.True(t, loaded.Config.Output.CopyTranscript)
	require.Equal(t, EnvironmentProduction, loaded.Config.Environment)
}

func TestLoadYAMLByExtension(t *testing.T) {
	t.Setenv(EnvironmentVar, "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("practice:\n  grace_period_ms: 1000\n"), 0o600))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 1000, loaded.Config.Practice.GracePeriodMS)
}

func TestLoadEnvironmentOverride(t *testing.T) {
	t.Setenv(EnvironmentVar, "dev")
	path := filepath.Join(t.TempDir(), "config.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(`{"environment":"production"}`), 0o600))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.True(t, loaded.Config.Development())
}

func TestLoadEnvironmentOverrideRejectsUnknownValue(t *testing.T) {
	t.Setenv(EnvironmentVar, "staging")
	path := filepath.Join(t.TempDir(), "missing.jsonc")

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, EnvironmentProduction, loaded.Config.Environment)
	require.Contains(t, loaded.Warnings[len(loaded.Warnings)-1].Message, "staging")
}

func TestLoadParseErrorIncludesPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.jsonc")
	require.NoError(t, os.WriteFile(path, []byte("{ not-json }"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse config")
	require.Contains(t, err.Error(), path)
}
