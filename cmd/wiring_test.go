package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/heuritech/gitlab-slack-notifier/internal/config"
	"github.com/heuritech/gitlab-slack-notifier/internal/slack"
)

func TestDirectorySource(t *testing.T) {
	client := slack.New(config.SlackConfig{Token: "xoxb-test"})
	tests := []struct {
		name  string
		cfg   config.Config
		wants string
	}{
		{"slack token", config.Config{Slack: config.SlackConfig{Token: "xoxb-test"}}, "slack"},
		{"no slack token", config.Config{}, "static"},
		{"debug", config.Config{Debug: true, Slack: config.SlackConfig{Token: "xoxb-test"}}, "static"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := directorySource(&tt.cfg, client).Name(); got != tt.wants {
				t.Fatalf("directorySource() = %s, want %s", got, tt.wants)
			}
		})
	}
}

func TestReadPayload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "event.json")
	if err := os.WriteFile(path, []byte(`{"object_kind":"note"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	body, err := readPayload(path)
	if err != nil {
		t.Fatalf("readPayload: %v", err)
	}
	if string(body) != `{"object_kind":"note"}` {
		t.Fatalf("body = %q", body)
	}
	if _, err := readPayload(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
