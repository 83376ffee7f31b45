package bot

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	coreconfig "github.com/m3rciful/groupwarden/core/config"
	coredatabase "github.com/m3rciful/groupwarden/core/database"
)

// AdminsConfig holds the static allowlist of bot operators.
type AdminsConfig struct {
	IDs []int64 `yaml:"ids" envconfig:"ADMIN_IDS"`
}

// ModerationConfig holds the tunable moderation constants.
type ModerationConfig struct {
	WarnThreshold        int `yaml:"warn_threshold" envconfig:"MODERATION_WARN_THRESHOLD"`
	MaxMessageLength     int `yaml:"max_message_length" envconfig:"MODERATION_MAX_MESSAGE_LENGTH"`
	CommandDeleteSeconds int `yaml:"command_delete_seconds" envconfig:"MODERATION_COMMAND_DELETE_SECONDS"`
}

// Config aggregates core settings with the bot's own sections.
type Config struct {
	Core       coreconfig.Config   `yaml:",inline"`
	Database   coredatabase.Config `yaml:"database"`
	Admins     AdminsConfig        `yaml:"admins"`
	Moderation ModerationConfig    `yaml:"moderation"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Core
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := coreconfig.Normalize(&cfg.Core); err != nil {
		return nil, err
	}
	if err := normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func normalize(cfg *Config) error {
	if len(cfg.Admins.IDs) == 0 && cfg.Core.Telegram.AdminID != 0 {
		cfg.Admins.IDs = []int64{cfg.Core.Telegram.AdminID}
	}
	if len(cfg.Admins.IDs) == 0 {
		return fmt.Errorf("admins.ids must contain at least one Telegram user id")
	}
	if cfg.Moderation.WarnThreshold < 0 {
		return fmt.Errorf("moderation.warn_threshold must be >= 0")
	}
	if cfg.Moderation.MaxMessageLength < 0 {
		return fmt.Errorf("moderation.max_message_length must be >= 0")
	}
	if cfg.Moderation.CommandDeleteSeconds == 0 {
		cfg.Moderation.CommandDeleteSeconds = 5
	}
	if cfg.Moderation.CommandDeleteSeconds < 0 {
		return fmt.Errorf("moderation.command_delete_seconds must be >= 0")
	}
	return nil
}
