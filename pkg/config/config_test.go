// pkg/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("APGATE_ENV", "prod")
	t.Setenv("APGATE_HTTP_ADDR", ":9090")
	t.Setenv("FIREBASE_WEB_API_KEY", "web-key")
	t.Setenv("SQUIDEX_DEFAULT_APP", "games")
	t.Setenv("SQUIDEX_APPS", `{"games":{"clientId":"games:default","clientSecret":"s1"},"lottery":{"clientId":"lottery:default","clientSecret":"s2","url":"https://lotto.example.com"}}`)
	t.Setenv("APGATE_CONFIG_PATH", "")

	cfg := Load()
	require.Equal(t, "prod", cfg.Env)
	require.Equal(t, ":9090", cfg.HTTPAddr)
	require.Equal(t, "/", cfg.BasePath)
	require.Equal(t, "web-key", cfg.FirebaseWebAPIKey)
	require.Equal(t, "games", cfg.SquidexDefaultApp)
	require.Len(t, cfg.SquidexApps, 2)
	require.Equal(t, "games:default", cfg.SquidexApps["games"].ClientID)
	require.Equal(t, "https://lotto.example.com", cfg.SquidexApps["lottery"].URL)
}

func TestLoadFilePrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"FIREBASE_WEB_API_KEY": "file-key",
		"SQUIDEX_DEFAULT_APP": "file-app",
		"SQUIDEX_APPS": {"file-app": {"clientId": "c", "clientSecret": "s"}}
	}`), 0o600))

	t.Setenv("APGATE_CONFIG_PATH", path)
	t.Setenv("FIREBASE_WEB_API_KEY", "env-key")
	t.Setenv("SQUIDEX_DEFAULT_APP", "env-app")
	t.Setenv("SQUIDEX_APPS", `{"env-app":{"clientId":"e","clientSecret":"s"}}`)

	cfg := Load()
	require.Equal(t, "file-key", cfg.FirebaseWebAPIKey)
	require.Equal(t, "file-app", cfg.SquidexDefaultApp)
	require.Contains(t, cfg.SquidexApps, "file-app")
	require.NotContains(t, cfg.SquidexApps, "env-app")
}

func TestLoadIgnoresBrokenInputs(t *testing.T) {
	t.Setenv("APGATE_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.json"))
	t.Setenv("SQUIDEX_APPS", "not json")
	t.Setenv("FIREBASE_WEB_API_KEY", "")

	cfg := Load()
	require.Empty(t, cfg.SquidexApps)
	require.Equal(t, "dev", cfg.Env)
}
