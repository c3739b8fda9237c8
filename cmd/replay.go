package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/heuritech/gitlab-slack-notifier/internal/config"
	"github.com/heuritech/gitlab-slack-notifier/internal/event"
	"github.com/spf13/cobra"
)

var replayDryRun bool

var replayCmd = &cobra.Command{
	Use:   "replay <event.json|->",
	Short: "Run a saved webhook payload through the notifier",
	Long: `Reads a GitLab webhook payload from a file (or stdin with "-") and processes
it exactly like POST / would. GitLab is queried for recipients and job traces.

With --dry-run nothing is sent: the derived message and recipients are
printed, each recipient with the Slack handle it resolves to.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().BoolVar(&replayDryRun, "dry-run", false,
		"print the notification instead of sending it")
}

func runReplay(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	body, err := readPayload(args[0])
	if err != nil {
		return err
	}
	ev, err := event.Decode(body)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", args[0], err)
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if replayDryRun {
		// The debug mirror would post to Slack.
		cfg.Debug = false
	}

	eng, err := newEngine(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer eng.Close()

	fmt.Println(headerStyle.Render("Event " + ev.Describe()))

	if replayDryRun {
		n, err := eng.dispatcher.Derive(ctx, ev)
		if err != nil {
			return err
		}
		fmt.Printf("Rule       : %s\n", n.Rule)
		if n.IsEmpty() {
			fmt.Println(dimStyle.Render("No notification."))
			return nil
		}
		fmt.Printf("Text       : %s\n", n.Message.Text)
		for _, a := range n.Message.Attachments {
			title := a.Title
			if title == "" {
				title = "attachment"
			}
			fmt.Printf("  %s\n", dimStyle.Render(title))
			if a.Text != "" {
				fmt.Printf("    %s\n", a.Text)
			}
		}
		fmt.Println("Recipients :")
		for _, email := range n.Recipients.Sorted() {
			if handle, ok := eng.dir.Lookup(email); ok {
				fmt.Printf("  %s -> %s\n", email, successStyle.Render(handle))
			} else {
				fmt.Printf("  %s -> %s\n", email, warnStyle.Render(cfg.Slack.FallbackChannel+" (no slack user)"))
			}
		}
		return nil
	}

	outcomes, err := eng.dispatcher.Dispatch(ctx, "replay-"+uuid.NewString(), ev)
	if err != nil {
		return err
	}
	if len(outcomes) == 0 {
		fmt.Println(dimStyle.Render("No notification sent."))
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(outcomes)
}

func readPayload(path string) ([]byte, error) {
	if path == "-" {
		body, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return body, nil
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return body, nil
}
