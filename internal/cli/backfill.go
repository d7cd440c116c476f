package cli

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tsumugi-bot/tsumugi/internal/backfill"
	"github.com/tsumugi-bot/tsumugi/internal/journal"
)

var backfillFlags struct {
	channel string
	since   string
	until   string
	max     int
	dryRun  bool
}

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Scan channel history for reports and log them to Notion",
	RunE:  runBackfill,
}

func init() {
	backfillCmd.Flags().StringVar(&backfillFlags.channel, "channel", "", "channel ID to scan (required)")
	backfillCmd.Flags().StringVar(&backfillFlags.since, "since", "", "start date YYYY-MM-DD (required)")
	backfillCmd.Flags().StringVar(&backfillFlags.until, "until", "", "end date YYYY-MM-DD (default: latest)")
	backfillCmd.Flags().IntVar(&backfillFlags.max, "max", 0, "stop after N messages")
	backfillCmd.Flags().BoolVar(&backfillFlags.dryRun, "dry-run", false, "scan and extract without writing")
	backfillCmd.MarkFlagRequired("channel")
	backfillCmd.MarkFlagRequired("since")
}

func runBackfill(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	printHeader("📋 Backfill")
	started := time.Now()

	tally, err := rt.backfillRunner().Run(cmd.Context(), backfill.Request{
		Channel: backfillFlags.channel,
		Since:   backfillFlags.since,
		Until:   backfillFlags.until,
		Max:     backfillFlags.max,
		DryRun:  backfillFlags.dryRun,
	})
	if err != nil {
		return err
	}

	if rt.journal != nil {
		if jerr := rt.journal.RecordBackfillRun(journal.BackfillRun{
			Channel:         backfillFlags.channel,
			DryRun:          backfillFlags.dryRun,
			Scanned:         tally.Scanned,
			ReportLike:      tally.ReportLike,
			Written:         tally.Written,
			SkippedExisting: tally.SkippedExisting,
			Failed:          tally.Failed,
			StartedAt:       started,
		}); jerr != nil {
			rt.logger.Warn("journal write failed", "error", jerr)
		}
	}

	fmt.Println(color.GreenString("Backfill complete"))
	fmt.Printf("  scanned:          %d\n", tally.Scanned)
	fmt.Printf("  report-like:      %d\n", tally.ReportLike)
	fmt.Printf("  parsed reports:   %d\n", tally.ParsedReports)
	fmt.Printf("  skipped existing: %d\n", tally.SkippedExisting)
	fmt.Printf("  written:          %d\n", tally.Written)
	if tally.Failed > 0 {
		fmt.Println(color.RedString("  failed:           %d", tally.Failed))
	}
	return nil
}
