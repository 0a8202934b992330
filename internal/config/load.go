package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
)

var ErrConfigNotFound = errors.New("config not found")

// APIKeyEnv is consulted when providers.deepgram.api_key is empty.
const APIKeyEnv = "DEEPGRAM_API_KEY"

func logger() *log.Logger { return log.Default().WithPrefix("config") }

func GetConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}

	wordDir := filepath.Join(configDir, "word")
	if err := os.MkdirAll(wordDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return filepath.Join(wordDir, "config.toml"), nil
}

// Load reads the file at path over the defaults. An empty path selects the
// user config file, which is optional; an explicit path must exist.
func Load(path string) (*Config, error) {
	if path != "" {
		return loadFile(path, false)
	}
	p, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return loadFile(p, true)
}

func loadFile(path string, optional bool) (*Config, error) {
	config := DefaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if !optional {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		logger().Debug("no config file, using defaults", "path", path)
		return config, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat config file %s: %w", path, err)
	}

	logger().Debug("loading configuration", "path", path)
	meta, err := toml.DecodeFile(path, config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		logger().Warn("unknown config keys ignored", "path", path, "keys", undecoded)
	}
	if config.Providers == nil {
		config.Providers = make(map[string]ProviderConfig)
	}
	return config, nil
}

// Save writes config as TOML to path, creating parent directories.
func Save(config *Config, path string) error {
	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	if _, err := file.WriteString(header); err != nil {
		return fmt.Errorf("failed to write config header: %w", err)
	}
	if err := toml.NewEncoder(file).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

const header = `# Word configuration
# Changes to spotter.confidence_threshold apply to a running daemon.
# Other changes apply on the next run.

`
