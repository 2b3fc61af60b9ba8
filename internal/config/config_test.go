package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsWhenPathEmpty(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 25, cfg.Agent.UsageLimit)
}

func TestLoadOverridesFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\nagent:\n  usage_limit: 30\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, 30, cfg.Agent.UsageLimit)
}

func TestLoadEnvReadsCredentials(t *testing.T) {
	t.Setenv("OKTA_AI_AGENT_UPSTREAM_BASE_URL", "https://example.okta.com")
	t.Setenv("OKTA_AI_AGENT_UPSTREAM_TOKEN", "secret-token")

	creds := LoadEnv()
	require.Equal(t, "https://example.okta.com", creds.UpstreamBaseURL)
	require.Equal(t, "secret-token", creds.UpstreamToken)
}
