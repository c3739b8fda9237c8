package cmd

import (
	"context"
	"fmt"

	"github.com/heuritech/gitlab-slack-notifier/internal/config"
	"github.com/spf13/cobra"
)

var directoryCmd = &cobra.Command{
	Use:   "directory",
	Short: "Inspect the email to Slack handle directory",
}

var directoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the directory as the notifier sees it",
	Long: `Loads the directory from its source (Slack, or the static file in debug
mode) and prints every email with its handle. Falls back to the stored
snapshot when the source cannot be read.`,
	RunE: runDirectoryList,
}

var directoryRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Reload the directory from its source and store the snapshot",
	RunE:  runDirectoryRefresh,
}

func init() {
	directoryCmd.AddCommand(directoryListCmd, directoryRefreshCmd)
}

func runDirectoryList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	eng, err := newEngine(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer eng.Close()

	entries := eng.dir.Entries()
	fmt.Println(headerStyle.Render(fmt.Sprintf("Directory (%s, %d entries)", eng.source.Name(), len(entries))))
	for _, e := range entries {
		fmt.Printf("  %-40s %s\n", e.Email, successStyle.Render(e.Handle))
	}
	if _, lastErr := eng.refresher.Status(); lastErr != nil {
		fmt.Println()
		fmt.Println(warnStyle.Render("Source unavailable, showing stored snapshot: " + lastErr.Error()))
	}
	return nil
}

func runDirectoryRefresh(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	eng, err := newEngine(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer eng.Close()

	if _, lastErr := eng.refresher.Status(); lastErr != nil {
		return lastErr
	}
	fmt.Println(successStyle.Render(fmt.Sprintf("Directory refreshed from %s: %d entries", eng.source.Name(), eng.dir.Len())))
	if eng.db == nil {
		fmt.Println(dimStyle.Render("database.driver is none: snapshot not stored"))
	}
	return nil
}
