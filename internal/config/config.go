// Package config handles configuration management using Viper
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Transport names accepted by backend.transport
const (
	TransportAuto   = "auto"
	TransportPortal = "portal"
	TransportSocket = "socket"
	TransportUinput = "uinput"
	TransportNoop   = "noop"
)

// Display provider names accepted by display.provider
const (
	ProviderAuto     = "auto"
	ProviderWlrRandr = "wlr-randr"
	ProviderHyprctl  = "hyprctl"
	ProviderXrandr   = "xrandr"
	ProviderStatic   = "static"
)

// Config represents the application configuration
type Config struct {
	Backend BackendConfig `mapstructure:"backend"`
	Display DisplayConfig `mapstructure:"display"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// BackendConfig controls how the input-emulation session is established
type BackendConfig struct {
	Transport       string        `mapstructure:"transport"`         // auto, portal, socket, uinput, noop
	SocketPath      string        `mapstructure:"socket_path"`       // Overrides LIBEI_SOCKET / XDG_RUNTIME_DIR discovery
	AppName         string        `mapstructure:"app_name"`          // Name announced to the EIS server
	FallbackNoop    bool          `mapstructure:"fallback_noop"`     // Degrade to no-op instead of failing
	Strict          bool          `mapstructure:"strict"`            // Abort on emission errors instead of logging them
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`   // Handshake deadline (portal consent included)
	ScrollStepDelay time.Duration `mapstructure:"scroll_step_delay"` // Pause between discrete scroll steps
	UinputPath      string        `mapstructure:"uinput_path"`
}

// DisplayConfig controls screen-size discovery
type DisplayConfig struct {
	Provider        string        `mapstructure:"provider"` // auto, wlr-randr, hyprctl, xrandr, static
	DefaultWidth    int           `mapstructure:"default_width"`
	DefaultHeight   int           `mapstructure:"default_height"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"` // How long a queried size stays fresh
}

// ServerConfig contains remote automation endpoint settings
type ServerConfig struct {
	BindAddress string `mapstructure:"bind_address"`
	WSPort      int    `mapstructure:"ws_port"`
	SSHPort     int    `mapstructure:"ssh_port"`

	WSEnabled bool   `mapstructure:"ws_enabled"` // WebSocket is off unless enabled here or with serve --ws
	WSToken   string `mapstructure:"ws_token"`   // Shared secret every WebSocket client must present

	SSHHostKeyPath   string   `mapstructure:"ssh_host_key_path"`
	SSHWhitelist     []string `mapstructure:"ssh_whitelist"`      // Allowed SSH key fingerprints
	SSHWhitelistOnly bool     `mapstructure:"ssh_whitelist_only"` // Reject keys not in the whitelist
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	FileLogging bool   `mapstructure:"file_logging"`
	LogLevel    string `mapstructure:"log_level"` // Override LOG_LEVEL env var
}

var (
	// DefaultConfig provides sensible defaults
	DefaultConfig = Config{
		Backend: BackendConfig{
			Transport:       TransportAuto,
			SocketPath:      "",
			AppName:         "waygui",
			FallbackNoop:    true,
			Strict:          false,
			ConnectTimeout:  30 * time.Second,
			ScrollStepDelay: 10 * time.Millisecond,
			UinputPath:      "/dev/uinput",
		},
		Display: DisplayConfig{
			Provider:        ProviderAuto,
			DefaultWidth:    1920,
			DefaultHeight:   1080,
			RefreshInterval: 5 * time.Second,
		},
		Server: ServerConfig{
			BindAddress:      "127.0.0.1",
			WSPort:           52530,
			SSHPort:          52531,
			WSEnabled:        false,
			WSToken:          "",
			SSHHostKeyPath:   defaultHostKeyPath(),
			SSHWhitelist:     []string{},
			SSHWhitelistOnly: true,
		},
		Logging: LoggingConfig{
			FileLogging: false,
			LogLevel:    "", // Empty means use LOG_LEVEL env var
		},
	}

	// Global config instance
	cfg *Config

	// Override config path if set
	configPathOverride string
)

// SetConfigPath allows overriding the config path
func SetConfigPath(path string) {
	configPathOverride = path
}

// Init initializes the configuration system
func Init() error {
	viper.SetConfigName("waygui")
	viper.SetConfigType("toml")

	if configPathOverride != "" {
		viper.SetConfigFile(configPathOverride)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "waygui"))
		}
		viper.AddConfigPath("/etc/waygui")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("WAYGUI")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// An explicit --config path that does not exist yet is fine too
			if configPathOverride == "" || !os.IsNotExist(err) {
				return fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	c := &Config{}
	if err := viper.Unmarshal(c); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return err
	}

	cfg = c
	return nil
}

func setDefaults() {
	viper.SetDefault("backend.transport", DefaultConfig.Backend.Transport)
	viper.SetDefault("backend.socket_path", DefaultConfig.Backend.SocketPath)
	viper.SetDefault("backend.app_name", DefaultConfig.Backend.AppName)
	viper.SetDefault("backend.fallback_noop", DefaultConfig.Backend.FallbackNoop)
	viper.SetDefault("backend.strict", DefaultConfig.Backend.Strict)
	viper.SetDefault("backend.connect_timeout", DefaultConfig.Backend.ConnectTimeout)
	viper.SetDefault("backend.scroll_step_delay", DefaultConfig.Backend.ScrollStepDelay)
	viper.SetDefault("backend.uinput_path", DefaultConfig.Backend.UinputPath)

	viper.SetDefault("display.provider", DefaultConfig.Display.Provider)
	viper.SetDefault("display.default_width", DefaultConfig.Display.DefaultWidth)
	viper.SetDefault("display.default_height", DefaultConfig.Display.DefaultHeight)
	viper.SetDefault("display.refresh_interval", DefaultConfig.Display.RefreshInterval)

	viper.SetDefault("server.bind_address", DefaultConfig.Server.BindAddress)
	viper.SetDefault("server.ws_port", DefaultConfig.Server.WSPort)
	viper.SetDefault("server.ssh_port", DefaultConfig.Server.SSHPort)
	viper.SetDefault("server.ws_enabled", DefaultConfig.Server.WSEnabled)
	viper.SetDefault("server.ws_token", DefaultConfig.Server.WSToken)
	viper.SetDefault("server.ssh_host_key_path", DefaultConfig.Server.SSHHostKeyPath)
	viper.SetDefault("server.ssh_whitelist", DefaultConfig.Server.SSHWhitelist)
	viper.SetDefault("server.ssh_whitelist_only", DefaultConfig.Server.SSHWhitelistOnly)

	viper.SetDefault("logging.file_logging", DefaultConfig.Logging.FileLogging)
	viper.SetDefault("logging.log_level", DefaultConfig.Logging.LogLevel)
}

// Validate checks enumerated settings and sizes
func (c *Config) Validate() error {
	switch c.Backend.Transport {
	case TransportAuto, TransportPortal, TransportSocket, TransportUinput, TransportNoop:
	default:
		return fmt.Errorf("invalid backend.transport %q: want one of auto, portal, socket, uinput, noop", c.Backend.Transport)
	}

	switch c.Display.Provider {
	case ProviderAuto, ProviderWlrRandr, ProviderHyprctl, ProviderXrandr, ProviderStatic:
	default:
		return fmt.Errorf("invalid display.provider %q: want one of auto, wlr-randr, hyprctl, xrandr, static", c.Display.Provider)
	}

	if c.Display.DefaultWidth <= 0 || c.Display.DefaultHeight <= 0 {
		return fmt.Errorf("invalid default screen size %dx%d", c.Display.DefaultWidth, c.Display.DefaultHeight)
	}
	if c.Backend.ScrollStepDelay < 0 {
		return fmt.Errorf("backend.scroll_step_delay must not be negative")
	}

	return nil
}

// Get returns the current configuration
func Get() *Config {
	if cfg == nil {
		// Return defaults if not initialized
		d := DefaultConfig
		return &d
	}
	return cfg
}

// Set sets the current configuration (for testing)
func Set(c *Config) {
	cfg = c
}

// Save saves the current configuration to file
func Save() error {
	configPath := GetConfigPath()

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		if os.IsPermission(err) && strings.Contains(configPath, "/etc/") {
			return fmt.Errorf("failed to create config directory %s: permission denied. Try running with sudo", dir)
		}
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := viper.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	// The file may carry server.ws_token
	if err := os.Chmod(configPath, 0600); err != nil {
		return fmt.Errorf("failed to restrict config permissions: %w", err)
	}

	return nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() string {
	if configPathOverride != "" {
		return configPathOverride
	}

	if viper.ConfigFileUsed() != "" {
		return viper.ConfigFileUsed()
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "/etc/waygui/waygui.toml"
	}

	return filepath.Join(home, ".config", "waygui", "waygui.toml")
}

// UpdateBackend updates backend configuration
func UpdateBackend(backendCfg BackendConfig) error {
	viper.Set("backend", backendCfg)
	Get().Backend = backendCfg
	return Save()
}

// UpdateDisplay updates display configuration
func UpdateDisplay(displayCfg DisplayConfig) error {
	viper.Set("display", displayCfg)
	Get().Display = displayCfg
	return Save()
}

// AddSSHKeyToWhitelist adds an SSH key fingerprint to the whitelist
func AddSSHKeyToWhitelist(fingerprint string) error {
	c := Get()

	for _, fp := range c.Server.SSHWhitelist {
		if fp == fingerprint {
			return fmt.Errorf("key already whitelisted")
		}
	}

	c.Server.SSHWhitelist = append(c.Server.SSHWhitelist, fingerprint)
	viper.Set("server.ssh_whitelist", c.Server.SSHWhitelist)
	return Save()
}

// IsSSHKeyWhitelisted checks if an SSH key fingerprint is whitelisted
func IsSSHKeyWhitelisted(fingerprint string) bool {
	for _, fp := range Get().Server.SSHWhitelist {
		if fp == fingerprint {
			return true
		}
	}
	return false
}

func defaultHostKeyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "/etc/waygui/host_key"
	}
	return filepath.Join(home, ".config", "waygui", "host_key")
}
