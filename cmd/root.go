package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "gitlab-slack-notifier",
	Short: "Turn GitLab webhooks into Slack direct messages",
	Long: `gitlab-slack-notifier receives GitLab webhooks and tells the right people
on Slack: failed pipelines to whoever pushed, comments to everyone in the
discussion, approvals to the MR author, merges to every participant and
assignments to the new assignee. Recipients without a Slack account are
reported on a fallback channel.

Get started:
  gitlab-slack-notifier onboard     Interactive setup wizard
  gitlab-slack-notifier doctor      Verify GitLab, Slack and database access
  gitlab-slack-notifier serve       Listen for webhooks
  gitlab-slack-notifier replay      Run a saved event through the notifier`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ~/.gitlab-slack-notifier/config.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable verbose/debug output")

	rootCmd.Version = Version
	rootCmd.AddCommand(
		onboardCmd,
		serveCmd,
		replayCmd,
		directoryCmd,
		configCmd,
		doctorCmd,
	)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
	if verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
		slog.Debug("Verbose logging enabled")
	}
}
