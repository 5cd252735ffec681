package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, extra string) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`discord:
  bot_token: bot-token
  client_id: "1100"
  client_secret: secret
  redirect_uri: https://verify.example.com/oauth/callback
storage:
  type: file
  config_path: %s
  audit_path: %s
log:
  level: error
%s`, filepath.Join(dir, "server_configs.json"), filepath.Join(dir, "user_verification_data.json"), extra)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func run(t *testing.T, configPath string, args ...string) (string, error) {
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestGuildctl_ConfigCommands(t *testing.T) {
	configPath := writeConfig(t, "")

	out, err := run(t, configPath, "show", "100")
	require.NoError(t, err)
	assert.Contains(t, out, "Flag channel:     (not set)")

	_, err = run(t, configPath, "set-flag-channel", "100", "300")
	require.NoError(t, err)
	_, err = run(t, configPath, "set-log-channel", "100", "301")
	require.NoError(t, err)
	_, err = run(t, configPath, "set-roles", "100", "400", "401")
	require.NoError(t, err)

	out, err = run(t, configPath, "show", "100")
	require.NoError(t, err)
	assert.Contains(t, out, "Flag channel:     300")
	assert.Contains(t, out, "Log channel:      301")
	assert.Contains(t, out, "Verified role:    400")
	assert.Contains(t, out, "Unverified role:  401")
}

func TestGuildctl_Blacklist(t *testing.T) {
	configPath := writeConfig(t, "")

	out, err := run(t, configPath, "blacklist", "add", "100", "555", "Evil", "Guild")
	require.NoError(t, err)
	assert.Contains(t, out, "Blacklisted Evil Guild (555)")

	_, err = run(t, configPath, "blacklist", "add", "100", "777")
	require.NoError(t, err)

	out, err = run(t, configPath, "blacklist", "list", "100")
	require.NoError(t, err)
	assert.Equal(t, "555\tEvil Guild\n777\t777\n", out)

	out, err = run(t, configPath, "blacklist", "remove", "100", "555")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed Evil Guild (555)")

	_, err = run(t, configPath, "blacklist", "remove", "100", "555")
	assert.ErrorContains(t, err, "not blacklisted")

	_, err = run(t, configPath, "blacklist", "add", "100", "not-an-id")
	assert.Error(t, err)
}

func TestGuildctl_InvalidGuildID(t *testing.T) {
	configPath := writeConfig(t, "")
	_, err := run(t, configPath, "show", "my-guild")
	assert.ErrorContains(t, err, "invalid guild id")
}

func TestGuildctl_RecordNotFound(t *testing.T) {
	configPath := writeConfig(t, "")
	_, err := run(t, configPath, "record", "100", "200")
	assert.ErrorContains(t, err, "no verification record")
}

func TestGuildctl_Link(t *testing.T) {
	t.Run("Plain state", func(t *testing.T) {
		out, err := run(t, writeConfig(t, ""), "link", "100")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(out, "https://discord.com/api/oauth2/authorize?"))
		assert.Contains(t, out, "state=100")
		assert.Contains(t, out, "client_id=1100")
	})

	t.Run("Short link from base url", func(t *testing.T) {
		out, err := run(t, writeConfig(t, "server:\n  base_url: https://verify.example.com/\n"), "link", "100")
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(out), "\n")
		require.Len(t, lines, 2)
		assert.True(t, strings.HasPrefix(lines[0], "https://discord.com/api/oauth2/authorize?"))
		assert.Equal(t, "Short link: https://verify.example.com/verify/100", lines[1])
	})

	t.Run("No short link without base url", func(t *testing.T) {
		out, err := run(t, writeConfig(t, ""), "link", "100")
		require.NoError(t, err)
		assert.NotContains(t, out, "Short link")
	})

	t.Run("Signed state", func(t *testing.T) {
		out, err := run(t, writeConfig(t, "oauth:\n  state_secret: 0123456789abcdef0123456789abcdef\n"), "link", "100")
		require.NoError(t, err)
		assert.NotContains(t, out, "state=100&")
		assert.Contains(t, out, "state=ey")
	})
}
