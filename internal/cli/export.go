package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tsumugi-bot/tsumugi/internal/config"
	"github.com/tsumugi-bot/tsumugi/internal/export"
	"github.com/tsumugi-bot/tsumugi/internal/slackx"
)

var exportFlags struct {
	channel string
	since   string
	output  string
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export channel history, threads included, to CSV",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportFlags.channel, "channel", "", "channel ID to export (required)")
	exportCmd.Flags().StringVar(&exportFlags.since, "since", "", "start date YYYY-MM-DD (required)")
	exportCmd.Flags().StringVar(&exportFlags.output, "output", "", "output file (default: export-<channel>-<since>.csv)")
	exportCmd.MarkFlagRequired("channel")
	exportCmd.MarkFlagRequired("since")
}

func runExport(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// The export only reads Slack; Notion and OpenAI settings may be absent.
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Slack.BotToken == "" {
		return fmt.Errorf("SLACK_BOT_TOKEN is required")
	}

	slackClient := slackx.New(cfg.Slack.BotToken, cfg.Slack.APIBase, logger)
	exporter := export.New(export.Options{Source: slackClient, Names: slackClient})

	printHeader("📤 Export")
	rows, err := exporter.Collect(cmd.Context(), exportFlags.channel, exportFlags.since)
	if err != nil {
		return err
	}

	out := exportFlags.output
	if out == "" {
		out = export.DefaultOutput(exportFlags.channel, exportFlags.since)
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create %s: %w", out, err)
	}
	defer f.Close()
	if err := export.WriteCSV(f, rows); err != nil {
		return err
	}

	fmt.Println(color.GreenString("Export complete"))
	fmt.Printf("  messages: %d\n", len(rows))
	fmt.Printf("  file:     %s\n", out)
	return nil
}
