package config

// Config is the root configuration structure for gitlab-slack-notifier.
// Serialised to ~/.gitlab-slack-notifier/config.json.
type Config struct {
	GitLab    GitLabConfig    `mapstructure:"gitlab"    json:"gitlab"`
	Slack     SlackConfig     `mapstructure:"slack"     json:"slack"`
	Server    ServerConfig    `mapstructure:"server"    json:"server"`
	Directory DirectoryConfig `mapstructure:"directory" json:"directory"`
	Database  DatabaseConfig  `mapstructure:"database"  json:"database"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch"  json:"dispatch"`
	// Debug mirrors every notification to Slack.DebugChannel and uses the
	// static directory instead of the Slack user list.
	Debug bool `mapstructure:"debug" json:"debug"`
}

// GitLabConfig holds the GitLab instance the webhooks come from.
type GitLabConfig struct {
	// BaseURL is the instance root, e.g. https://gitlab.example.com.
	BaseURL string `mapstructure:"base_url" json:"base_url"`
	Token   string `mapstructure:"token"    json:"token"`
}

// SlackConfig controls message delivery.
type SlackConfig struct {
	Token     string `mapstructure:"token"      json:"token"`
	Username  string `mapstructure:"username"   json:"username"`
	IconEmoji string `mapstructure:"icon_emoji" json:"icon_emoji"`
	// FallbackChannel receives messages whose recipients have no Slack account.
	FallbackChannel string `mapstructure:"fallback_channel" json:"fallback_channel"`
	// DebugChannel receives a copy of every message when Debug is on.
	DebugChannel string `mapstructure:"debug_channel" json:"debug_channel"`
	// APIURL overrides the Slack Web API endpoint (tests, proxies).
	APIURL string `mapstructure:"api_url" json:"api_url,omitempty"`
}

// ServerConfig controls the webhook listener.
type ServerConfig struct {
	Port int `mapstructure:"port" json:"port"`
	// WebhookSecret must match the X-Gitlab-Token header when set.
	WebhookSecret string `mapstructure:"webhook_secret" json:"webhook_secret"`
}

// DirectoryConfig controls the email to Slack handle directory.
type DirectoryConfig struct {
	// RefreshSchedule is a cron expression ("@every 1h", "0 * * * *").
	// Empty disables periodic refresh.
	RefreshSchedule string `mapstructure:"refresh_schedule" json:"refresh_schedule"`
	// StaticFile is a YAML email -> handle map used in debug mode or when no
	// Slack token is configured.
	StaticFile string `mapstructure:"static_file" json:"static_file"`
}

// DatabaseConfig controls where directory snapshots are kept.
type DatabaseConfig struct {
	// Driver is "sqlite" (default), "mysql" or "none".
	Driver string `mapstructure:"driver" json:"driver"`
	// Path is the SQLite file path (expanded at runtime).
	Path string `mapstructure:"path"   json:"path"`
	// DSN is the MySQL data source name (used when Driver == "mysql").
	DSN string `mapstructure:"dsn"    json:"dsn"`
}

// DispatchConfig tunes delivery.
type DispatchConfig struct {
	// Workers bounds concurrent per-recipient sends.
	Workers int `mapstructure:"workers" json:"workers"`
}
