package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".tsumugi"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
)

// ConfigPath returns the path to the config file. TSUMUGI_CONFIG overrides
// the default ~/.tsumugi/config.json.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("TSUMUGI_CONFIG")); explicit != "" {
		if strings.HasPrefix(explicit, "~") {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, explicit[1:]), nil
		}
		return explicit, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

// Load reads the config file (if present), then applies environment
// overrides. A .env in the working directory is loaded first so local
// development matches production env wiring.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	path, err := ConfigPath()
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Env-only operation is fine.
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Validate checks the credentials the gateway cannot run without.
func (c *Config) Validate() error {
	var missing []string
	if c.Slack.BotToken == "" {
		missing = append(missing, "SLACK_BOT_TOKEN")
	}
	if c.OpenAI.APIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if c.Notion.Token == "" {
		missing = append(missing, "NOTION_TOKEN")
	}
	if c.Notion.DatabaseID == "" {
		missing = append(missing, "NOTION_DATABASE_ID")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}
