package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/heuritech/gitlab-slack-notifier/internal/config"
	"github.com/heuritech/gitlab-slack-notifier/internal/database"
	"github.com/heuritech/gitlab-slack-notifier/internal/directory"
	"github.com/heuritech/gitlab-slack-notifier/internal/notify"
	"github.com/heuritech/gitlab-slack-notifier/internal/repository"
	"github.com/heuritech/gitlab-slack-notifier/internal/slack"
	"github.com/heuritech/gitlab-slack-notifier/models"
)

// engine bundles the collaborators every command that touches events needs.
type engine struct {
	cfg        *config.Config
	db         database.DB // nil when database.driver is "none"
	gitlab     *repository.GitLab
	slack      *slack.Client
	dir        *directory.Directory
	source     directory.Source
	refresher  *directory.Refresher
	dispatcher *notify.Dispatcher
}

// newEngine opens the database, builds the clients and warms the directory.
// onOutcome may be nil.
func newEngine(ctx context.Context, cfg *config.Config, onOutcome func(string, models.Outcome)) (*engine, error) {
	e := &engine{cfg: cfg}

	db, err := database.New(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if db != nil {
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		e.db = db
	}

	e.gitlab, err = repository.NewGitLab(cfg.GitLab)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("creating gitlab client: %w", err)
	}
	e.slack = slack.New(cfg.Slack)

	e.dir = directory.New(nil)
	e.source = directorySource(cfg, e.slack)
	var store directory.Store
	if e.db != nil {
		store = e.db
	}
	e.refresher = directory.NewRefresher(e.dir, e.source, store)
	if err := e.refresher.Warm(ctx); err != nil {
		// Everyone lands on the fallback channel until a refresh succeeds.
		slog.Warn("directory: starting empty", "source", e.source.Name(), "error", err)
	}

	debugChannel := ""
	if cfg.Debug {
		debugChannel = cfg.Slack.DebugChannel
	}
	deriver := notify.NewDeriver(e.gitlab, e.dir, cfg.GitLab.BaseURL)
	e.dispatcher = notify.NewDispatcher(deriver, e.slack, e.dir, notify.DispatcherOptions{
		FallbackChannel: cfg.Slack.FallbackChannel,
		DebugChannel:    debugChannel,
		Workers:         cfg.Dispatch.Workers,
		OnOutcome:       onOutcome,
	})
	return e, nil
}

// directorySource picks the static YAML file in debug mode or without a
// Slack token, and the Slack member list otherwise.
func directorySource(cfg *config.Config, client *slack.Client) directory.Source {
	if cfg.Debug || cfg.Slack.Token == "" {
		return directory.NewStaticSource(cfg.Directory.StaticFile)
	}
	return directory.NewSlackSource(client)
}

// Close stops the refresher and releases the database.
func (e *engine) Close() {
	if e.refresher != nil {
		e.refresher.Stop()
	}
	if e.db != nil {
		_ = e.db.Close()
	}
}
