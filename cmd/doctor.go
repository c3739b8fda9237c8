package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/heuritech/gitlab-slack-notifier/internal/config"
	"github.com/heuritech/gitlab-slack-notifier/internal/database"
	"github.com/heuritech/gitlab-slack-notifier/internal/directory"
	"github.com/heuritech/gitlab-slack-notifier/internal/repository"
	"github.com/heuritech/gitlab-slack-notifier/internal/slack"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Verify GitLab, Slack and database access",
	Long: `Checks that the GitLab token works, Slack accepts the bot token, the
email directory can be loaded and the database can be reached.`,
	RunE: runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	allOK := true

	fmt.Println("=== gitlab-slack-notifier doctor ===")
	fmt.Println()

	// Check database
	fmt.Print("Database ................. ")
	db, err := database.New(cfg.Database)
	switch {
	case err != nil:
		fmt.Printf("FAIL (%s)\n", err)
		allOK = false
	case db == nil:
		fmt.Println("disabled (directory snapshots are not stored)")
	default:
		if err := db.Ping(ctx); err != nil {
			fmt.Printf("FAIL (%s)\n", err)
			allOK = false
		} else if _, savedAt, err := db.LoadHandles(ctx); err == nil {
			fmt.Printf("OK (%s, snapshot from %s)\n", db.Driver(), savedAt.Format(time.RFC3339))
		} else {
			fmt.Printf("OK (%s, no snapshot yet)\n", db.Driver())
		}
		db.Close()
	}

	// Check GitLab token
	fmt.Print("GitLab token ............. ")
	if cfg.GitLab.Token == "" {
		fmt.Println("FAIL (not configured : run 'gitlab-slack-notifier onboard')")
		allOK = false
	} else if gl, err := repository.NewGitLab(cfg.GitLab); err != nil {
		fmt.Printf("FAIL (%s)\n", err)
		allOK = false
	} else if u, err := gl.CurrentUser(ctx); err != nil {
		fmt.Printf("FAIL (%s)\n", err)
		allOK = false
	} else {
		fmt.Printf("OK (%s as %s)\n", cfg.GitLab.BaseURL, u.Username)
	}

	// Check Slack token
	client := slack.New(cfg.Slack)
	fmt.Print("Slack token .............. ")
	if cfg.Slack.Token == "" {
		fmt.Println("WARN (not configured : nothing can be delivered)")
		allOK = false
	} else if who, err := client.AuthTest(ctx); err != nil {
		fmt.Printf("FAIL (%s)\n", err)
		allOK = false
	} else {
		fmt.Printf("OK (%s)\n", who)
	}

	// Check directory source
	fmt.Print("Directory ................ ")
	source := directorySource(cfg, client)
	if handles, err := source.Load(ctx); err != nil {
		fmt.Printf("FAIL (%s: %s)\n", source.Name(), err)
		allOK = false
	} else {
		fmt.Printf("OK (%s, %d entries)\n", source.Name(), len(handles))
	}

	fmt.Print("Refresh schedule ......... ")
	if err := directory.ValidateSchedule(cfg.Directory.RefreshSchedule); err != nil {
		fmt.Printf("FAIL (%s)\n", err)
		allOK = false
	} else if cfg.Directory.RefreshSchedule == "" {
		fmt.Println("disabled")
	} else {
		fmt.Printf("OK (%s)\n", cfg.Directory.RefreshSchedule)
	}

	fmt.Print("Webhook secret ........... ")
	if cfg.Server.WebhookSecret == "" {
		fmt.Println("WARN (not set : every request will be accepted)")
	} else {
		fmt.Println("OK")
	}

	fmt.Println()
	if allOK {
		fmt.Println(successStyle.Render("All checks passed : gitlab-slack-notifier is ready!"))
	} else {
		fmt.Println(warnStyle.Render("Some checks failed : run 'gitlab-slack-notifier onboard' to fix."))
	}

	return nil
}
