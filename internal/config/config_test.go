package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Slack.FallbackChannel != DefaultFallbackChannel {
		t.Fatalf("fallback channel = %q", cfg.Slack.FallbackChannel)
	}
	if cfg.Server.Port != 5000 || cfg.Dispatch.Workers != 4 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Slack.Username != "gitlabnotifier" || cfg.Slack.IconEmoji != ":gitlab:" {
		t.Fatalf("unexpected bot identity: %+v", cfg.Slack)
	}
}

func TestLoadFileAndLegacyEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("X_GITLAB_TOKEN", "s3cret")
	t.Setenv("FLASK_ENV", "development")
	t.Setenv("GITLAB_TOKEN", "")

	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"gitlab":{"base_url":"https://gitlab.example.com/","token":"tok"},"dispatch":{"workers":2}}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GitLab.BaseURL != "https://gitlab.example.com" {
		t.Fatalf("base url = %q, want trailing slash trimmed", cfg.GitLab.BaseURL)
	}
	if cfg.GitLab.Token != "tok" || cfg.Dispatch.Workers != 2 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Server.WebhookSecret != "s3cret" {
		t.Fatalf("webhook secret = %q, want value of X_GITLAB_TOKEN", cfg.Server.WebhookSecret)
	}
	if !cfg.Debug {
		t.Fatal("FLASK_ENV=development should enable debug")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	in := &Config{Slack: SlackConfig{Token: "xoxb-1", FallbackChannel: "#ops"}}
	if err := Save(in, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	out, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out.Slack.Token != "xoxb-1" || out.Slack.FallbackChannel != "#ops" {
		t.Fatalf("round trip lost values: %+v", out.Slack)
	}
}

func TestRedacted(t *testing.T) {
	cfg := &Config{GitLab: GitLabConfig{Token: "a"}, Slack: SlackConfig{Token: "b"}, Server: ServerConfig{WebhookSecret: "c"}}
	r := Redacted(cfg)
	if r.GitLab.Token == "a" || r.Slack.Token == "b" || r.Server.WebhookSecret == "c" {
		t.Fatalf("secrets leaked: %+v", r)
	}
	if cfg.GitLab.Token != "a" {
		t.Fatal("Redacted modified its input")
	}
}
