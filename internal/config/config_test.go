package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetConfig(t *testing.T) {
	t.Helper()
	viper.Reset()
	cfg = nil
	configPathOverride = ""
	t.Cleanup(func() {
		viper.Reset()
		cfg = nil
		configPathOverride = ""
	})
}

func TestInit(t *testing.T) {
	t.Run("initializes with defaults when no config exists", func(t *testing.T) {
		resetConfig(t)
		t.Setenv("HOME", t.TempDir())
		SetConfigPath(filepath.Join(t.TempDir(), "missing.toml"))

		require.NoError(t, Init())

		c := Get()
		assert.Equal(t, TransportAuto, c.Backend.Transport)
		assert.True(t, c.Backend.FallbackNoop)
		assert.Equal(t, 10*time.Millisecond, c.Backend.ScrollStepDelay)
		assert.Equal(t, 1920, c.Display.DefaultWidth)
		assert.Equal(t, 1080, c.Display.DefaultHeight)
		assert.False(t, c.Server.WSEnabled)
		assert.Empty(t, c.Server.WSToken)
	})

	t.Run("reads values from file", func(t *testing.T) {
		resetConfig(t)
		path := filepath.Join(t.TempDir(), "waygui.toml")
		content := `[backend]
transport = "socket"
socket_path = "/run/user/1000/eis-1"
scroll_step_delay = "25ms"

[display]
provider = "static"
default_width = 2560
default_height = 1440
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		SetConfigPath(path)

		require.NoError(t, Init())

		c := Get()
		assert.Equal(t, TransportSocket, c.Backend.Transport)
		assert.Equal(t, "/run/user/1000/eis-1", c.Backend.SocketPath)
		assert.Equal(t, 25*time.Millisecond, c.Backend.ScrollStepDelay)
		assert.Equal(t, ProviderStatic, c.Display.Provider)
		assert.Equal(t, 2560, c.Display.DefaultWidth)
	})

	t.Run("rejects unknown transport", func(t *testing.T) {
		resetConfig(t)
		path := filepath.Join(t.TempDir(), "waygui.toml")
		require.NoError(t, os.WriteFile(path, []byte("[backend]\ntransport = \"x11\"\n"), 0644))
		SetConfigPath(path)

		err := Init()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "backend.transport")
	})

	t.Run("handles invalid TOML", func(t *testing.T) {
		resetConfig(t)
		path := filepath.Join(t.TempDir(), "waygui.toml")
		require.NoError(t, os.WriteFile(path, []byte("[backend\ntransport = 1"), 0644))
		SetConfigPath(path)

		assert.Error(t, Init())
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"bad provider", func(c *Config) { c.Display.Provider = "kscreen" }, true},
		{"zero width", func(c *Config) { c.Display.DefaultWidth = 0 }, true},
		{"negative delay", func(c *Config) { c.Backend.ScrollStepDelay = -time.Millisecond }, true},
		{"noop transport", func(c *Config) { c.Backend.Transport = TransportNoop }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigPathResolution(t *testing.T) {
	resetConfig(t)
	home := t.TempDir()
	t.Setenv("HOME", home)

	assert.Equal(t, filepath.Join(home, ".config", "waygui", "waygui.toml"), GetConfigPath())

	SetConfigPath("/tmp/custom.toml")
	assert.Equal(t, "/tmp/custom.toml", GetConfigPath())
}

func TestSSHWhitelist(t *testing.T) {
	resetConfig(t)
	path := filepath.Join(t.TempDir(), "waygui.toml")
	SetConfigPath(path)
	require.NoError(t, Init())

	assert.False(t, IsSSHKeyWhitelisted("SHA256:abc"))
	require.NoError(t, AddSSHKeyToWhitelist("SHA256:abc"))
	assert.True(t, IsSSHKeyWhitelisted("SHA256:abc"))
	assert.Error(t, AddSSHKeyToWhitelist("SHA256:abc"))
	assert.FileExists(t, path)
}

func TestSaveRestrictsPermissions(t *testing.T) {
	resetConfig(t)
	path := filepath.Join(t.TempDir(), "waygui.toml")
	SetConfigPath(path)
	require.NoError(t, Init())

	viper.Set("server.ws_token", "s3cret")
	require.NoError(t, Save())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}
