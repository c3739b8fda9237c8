package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/heuritech/gitlab-slack-notifier/internal/config"
	"github.com/heuritech/gitlab-slack-notifier/internal/directory"
	"github.com/heuritech/gitlab-slack-notifier/internal/repository"
	"github.com/heuritech/gitlab-slack-notifier/internal/slack"
	"github.com/spf13/cobra"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Interactive setup wizard",
	Long: `Walks you through configuring the notifier:
  - GitLab instance and API token (reads merge requests, users and job logs)
  - Slack bot token and fallback channel
  - Webhook secret shared with GitLab
  - Directory refresh schedule and storage

The configuration is written to ~/.gitlab-slack-notifier/config.json
(or --config).`,
	RunE: runOnboard,
}

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#7C3AED")).
	MarginBottom(1)

var successStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#10B981"))

var warnStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#F59E0B"))

var dimStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#6B7280"))

func runOnboard(cmd *cobra.Command, args []string) error {
	fmt.Println()
	fmt.Println(headerStyle.Render("  gitlab-slack-notifier"))
	fmt.Println(dimStyle.Render("  GitLab pipeline, comment and merge request events as Slack messages.\n"))

	// Load existing config (defaults included) so re-running edits in place.
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// --- Step 1: GitLab ---
	fmt.Println(headerStyle.Render("  Step 1/4 · GitLab"))
	glForm := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("GitLab URL").
				Description("Root of your instance, e.g. https://gitlab.com or https://gitlab.example.com").
				Value(&cfg.GitLab.BaseURL).
				Validate(requireHTTPURL),
			huh.NewInput().
				Title("GitLab API token").
				Description("A token with read_api scope. Admin tokens can see private emails; others only public ones.").
				Placeholder("glpat-...").
				EchoMode(huh.EchoModePassword).
				Value(&cfg.GitLab.Token),
		),
	)
	if err := glForm.Run(); err != nil {
		return err
	}
	cfg.GitLab.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.GitLab.BaseURL), "/")
	checkGitLab(cfg.GitLab)

	// --- Step 2: Slack ---
	fmt.Println(headerStyle.Render("\n  Step 2/4 · Slack"))
	slackForm := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Slack bot token").
				Description("Needs chat:write, chat:write.customize, users:read and users:read.email scopes.").
				Placeholder("xoxb-...").
				EchoMode(huh.EchoModePassword).
				Value(&cfg.Slack.Token),
			huh.NewInput().
				Title("Fallback channel").
				Description("Receives notifications for people without a Slack account.").
				Value(&cfg.Slack.FallbackChannel).
				Validate(requireChannel),
			huh.NewConfirm().
				Title("Enable debug mode?").
				Description("Mirrors every message to the debug channel and reads the directory from a static YAML file.").
				Value(&cfg.Debug),
		),
	)
	if err := slackForm.Run(); err != nil {
		return err
	}
	checkSlack(cfg.Slack)

	// --- Step 3: Webhook listener ---
	fmt.Println(headerStyle.Render("\n  Step 3/4 · Webhook listener"))
	if cfg.Server.WebhookSecret == "" {
		cfg.Server.WebhookSecret = uuid.NewString()
	}
	port := strconv.Itoa(cfg.Server.Port)
	serverForm := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Port").
				Value(&port).
				Validate(func(s string) error {
					n, err := strconv.Atoi(strings.TrimSpace(s))
					if err != nil || n <= 0 || n > 65535 {
						return fmt.Errorf("enter a port between 1 and 65535")
					}
					return nil
				}),
			huh.NewInput().
				Title("Webhook secret token").
				Description("Paste the same value in the GitLab webhook 'Secret token' field.").
				Value(&cfg.Server.WebhookSecret),
		),
	)
	if err := serverForm.Run(); err != nil {
		return err
	}
	cfg.Server.Port, _ = strconv.Atoi(strings.TrimSpace(port))

	// --- Step 4: Directory ---
	fmt.Println(headerStyle.Render("\n  Step 4/4 · Directory"))
	dirForm := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Refresh the email → Slack directory").
				Options(
					huh.NewOption("Every hour", "@every 1h"),
					huh.NewOption("Every 15 minutes", "@every 15m"),
					huh.NewOption("Daily at 06:00", "0 6 * * *"),
					huh.NewOption("Only at startup", ""),
				).
				Value(&cfg.Directory.RefreshSchedule),
			huh.NewSelect[string]().
				Title("Store directory snapshots in").
				Options(
					huh.NewOption("SQLite (local file)", "sqlite"),
					huh.NewOption("MySQL", "mysql"),
					huh.NewOption("Nowhere", "none"),
				).
				Value(&cfg.Database.Driver),
		),
	)
	if err := dirForm.Run(); err != nil {
		return err
	}
	if err := directory.ValidateSchedule(cfg.Directory.RefreshSchedule); err != nil {
		return fmt.Errorf("refresh schedule: %w", err)
	}
	if cfg.Database.Driver == "mysql" {
		dsnForm := huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title("MySQL DSN").
				Placeholder("user:pass@tcp(localhost:3306)/notifier?parseTime=true").
				Value(&cfg.Database.DSN),
		))
		if err := dsnForm.Run(); err != nil {
			return err
		}
	}

	if err := config.Save(cfg, cfgFile); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	path, _ := config.ConfigPath(cfgFile)
	fmt.Println()
	fmt.Println(successStyle.Render("  Configuration saved to " + path))
	fmt.Println(dimStyle.Render("  Run 'gitlab-slack-notifier doctor' to verify, then 'gitlab-slack-notifier serve'."))
	return nil
}

func requireHTTPURL(s string) error {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return fmt.Errorf("must start with http:// or https://")
	}
	return nil
}

func requireChannel(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("a fallback channel is required")
	}
	return nil
}

func checkGitLab(cfg config.GitLabConfig) {
	if cfg.Token == "" {
		fmt.Println(warnStyle.Render("  No token: recipient lookups will fail."))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	gl, err := repository.NewGitLab(cfg)
	if err != nil {
		fmt.Println(warnStyle.Render("  Could not create GitLab client: " + err.Error()))
		return
	}
	me, err := gl.CurrentUser(ctx)
	if err != nil {
		fmt.Println(warnStyle.Render("  Could not verify GitLab token: " + err.Error()))
		return
	}
	fmt.Println(successStyle.Render("  Connected to GitLab as " + me.Username))
}

func checkSlack(cfg config.SlackConfig) {
	if cfg.Token == "" {
		fmt.Println(warnStyle.Render("  No token: only the static directory will be used and nothing can be sent."))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	who, err := slack.New(cfg).AuthTest(ctx)
	if err != nil {
		fmt.Println(warnStyle.Render("  Could not verify Slack token: " + err.Error()))
		return
	}
	fmt.Println(successStyle.Render("  Connected to Slack as " + who))
}
