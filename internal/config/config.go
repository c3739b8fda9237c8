package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	DefaultConfigDir  = ".gitlab-slack-notifier"
	DefaultConfigFile = "config.json"
	DefaultDBFile     = ".gitlab-slack-notifier/directory.db"

	DefaultFallbackChannel = "#_gitlab"
	DefaultDebugChannel    = "#_gitlab_debug"
)

// legacyEnv maps the environment variables of earlier deployments onto
// config keys.
var legacyEnv = map[string]string{
	"server.webhook_secret": "X_GITLAB_TOKEN",
	"gitlab.base_url":       "GITLAB_BASE_URL",
	"gitlab.token":          "GITLAB_TOKEN",
	"slack.token":           "SLACK_API_TOKEN",
}

// Load reads the config file (falling back to defaults if absent) and returns
// a populated Config. The configPath flag may override the default location.
func Load(configPath string) (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine home directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(filepath.Join(home, DefaultConfigDir))
	}

	setDefaults(v, home)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file exists but is malformed.
			if !isNotExist(err) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
		// No config file: defaults and environment only.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if os.Getenv("FLASK_ENV") == "development" {
		cfg.Debug = true
	}

	expandPaths(&cfg, home)
	cfg.GitLab.BaseURL = strings.TrimRight(cfg.GitLab.BaseURL, "/")
	return &cfg, nil
}

// Save writes the config to disk as JSON.
func Save(cfg *Config, configPath string) error {
	path, err := ConfigPath(configPath)
	if err != nil {
		return fmt.Errorf("cannot determine home directory: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("serialising config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

// ConfigPath returns the effective config file path.
func ConfigPath(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DefaultConfigDir, DefaultConfigFile), nil
}

// Redacted returns a copy of cfg with credentials masked, for display.
func Redacted(cfg *Config) Config {
	out := *cfg
	if out.GitLab.Token != "" {
		out.GitLab.Token = "glpat-***"
	}
	if out.Slack.Token != "" {
		out.Slack.Token = "xoxb-***"
	}
	if out.Server.WebhookSecret != "" {
		out.Server.WebhookSecret = "***"
	}
	if out.Database.DSN != "" {
		out.Database.DSN = "***"
	}
	return out
}

// setDefaults populates viper with sensible out-of-the-box values.
func setDefaults(v *viper.Viper, home string) {
	v.SetDefault("gitlab.base_url", "https://gitlab.com")

	v.SetDefault("slack.username", "gitlabnotifier")
	v.SetDefault("slack.icon_emoji", ":gitlab:")
	v.SetDefault("slack.fallback_channel", DefaultFallbackChannel)
	v.SetDefault("slack.debug_channel", DefaultDebugChannel)

	v.SetDefault("server.port", 5000)

	v.SetDefault("directory.refresh_schedule", "@every 1h")
	v.SetDefault("directory.static_file", filepath.Join(home, DefaultConfigDir, "directory.yaml"))

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", filepath.Join(home, DefaultDBFile))
	v.SetDefault("database.dsn", "")

	v.SetDefault("dispatch.workers", 4)
	v.SetDefault("debug", false)
}

// expandPaths resolves ~ in configured paths.
func expandPaths(cfg *Config, home string) {
	cfg.Database.Path = expandHome(cfg.Database.Path, home)
	cfg.Directory.StaticFile = expandHome(cfg.Directory.StaticFile, home)
}

func expandHome(path, home string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

func isNotExist(err error) bool {
	return os.IsNotExist(err) || strings.Contains(err.Error(), "no such file")
}
